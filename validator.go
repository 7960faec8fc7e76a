package pulse

import (
	stderrors "errors"
	"strings"

	"github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

// validIdentifier rejects blank and whitespace-only identifiers.
func validIdentifier(method, argument, s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.InvalidInput(method, argument)
	}
	return nil
}

// normalizeProperties converts host properties into an owned Map. A nil map
// becomes empty. Any unrepresentable value rejects the whole map; the error
// carries the failing key path.
func normalizeProperties(method, argument string, props map[string]any) (*value.Map, error) {
	m, err := value.FromGoMap(props)
	if err != nil {
		return nil, errors.WithPath(withMethod(err, method), argument)
	}
	return m, nil
}

// normalizeValue converts a single host value such as a group id.
func normalizeValue(method, argument string, v any) (value.Value, error) {
	out, err := value.FromGo(v)
	if err != nil {
		return value.Value{}, errors.WithPath(withMethod(err, method), argument)
	}
	return out, nil
}

func withMethod(err error, method string) error {
	var e *errors.Error
	if !asError(err, &e) || e.Method != "" {
		return err
	}
	c := *e
	c.Method = method
	return &c
}

// callArgs accumulates the arguments of one call, keeping the first
// validation failure.
type callArgs struct {
	method string
	args   *value.Map
	err    error
	// mergeKey names the properties argument that receives library metadata.
	mergeKey string
}

func newCallArgs(method string) *callArgs {
	return &callArgs{method: method, args: value.NewMap()}
}

func (b *callArgs) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *callArgs) identifier(key, s string) {
	if err := validIdentifier(b.method, key, s); err != nil {
		b.fail(err)
		return
	}
	b.args.Set(key, value.String(s))
}

func (b *callArgs) properties(key string, props map[string]any) {
	m, err := normalizeProperties(b.method, key, props)
	if err != nil {
		b.fail(err)
		return
	}
	b.args.Set(key, value.MapValue(m))
}

// merged is properties plus library metadata applied after validation.
func (b *callArgs) merged(key string, props map[string]any) {
	b.properties(key, props)
	b.mergeKey = key
}

// value stores a required host value. nil is rejected.
func (b *callArgs) value(key string, v any) {
	if v == nil {
		b.fail(errors.InvalidInput(b.method, key))
		return
	}
	out, err := normalizeValue(b.method, key, v)
	if err != nil {
		b.fail(err)
		return
	}
	b.args.Set(key, out)
}

func (b *callArgs) set(key string, v value.Value) {
	b.args.Set(key, v)
}

// merge applies meta to the marked properties argument.
func (b *callArgs) merge(meta LibraryMetadata) {
	if b.mergeKey == "" {
		return
	}
	v, _ := b.args.Get(b.mergeKey)
	props, _ := v.Map()
	b.args.Set(b.mergeKey, value.MapValue(meta.Merge(props)))
}

func asError(err error, target **errors.Error) bool {
	return stderrors.As(err, target)
}

func joinPath(path []string) string {
	return strings.Join(path, ".")
}
