package codec

import (
	stderrors "errors"

	"github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

// ChannelCall is the unit crossing the boundary: a method name and its
// arguments. It is built per invocation and consumed by exactly one adapter.
type ChannelCall struct {
	Method    string
	Arguments *value.Map
}

// Reply envelope markers.
const (
	envelopeSuccess byte = 0
	envelopeError   byte = 1
)

// EncodeMethodCall writes the method name followed by the argument map.
func EncodeMethodCall(call ChannelCall) ([]byte, error) {
	e := newEncoder()
	if err := e.value(value.String(call.Method), 0); err != nil {
		return nil, err
	}
	if err := e.value(value.MapValue(call.Arguments), 0); err != nil {
		return nil, errors.WithPath(err, "arguments")
	}
	return e.w.buf, nil
}

// DecodeMethodCall reads a call written by EncodeMethodCall. A null argument
// slot decodes to an empty map.
func DecodeMethodCall(data []byte) (ChannelCall, error) {
	d := decoder{r: reader{buf: data}}

	mv, err := d.value(0)
	if err != nil {
		return ChannelCall{}, err
	}
	method, ok := mv.Str()
	if !ok || mv.Kind() != value.KindString {
		return ChannelCall{}, errors.Malformed(0, "method name must be a string, got %s", mv.Kind())
	}

	argPos := d.r.pos
	av, err := d.value(0)
	if err != nil {
		return ChannelCall{}, err
	}
	var args *value.Map
	switch av.Kind() {
	case value.KindNull:
		args = value.NewMap()
	case value.KindMap:
		args, _ = av.Map()
	default:
		return ChannelCall{}, errors.Malformed(argPos, "arguments must be a map, got %s", av.Kind())
	}

	if d.r.remaining() != 0 {
		return ChannelCall{}, errors.Malformed(d.r.pos, "%d trailing bytes", d.r.remaining())
	}
	return ChannelCall{Method: method, Arguments: args}, nil
}

// EncodeSuccessEnvelope wraps a successful result.
func EncodeSuccessEnvelope(result value.Value) ([]byte, error) {
	e := newEncoder()
	e.w.putByte(envelopeSuccess)
	if err := e.value(result, 0); err != nil {
		return nil, err
	}
	return e.w.buf, nil
}

// EncodeErrorEnvelope wraps a failure as code, message and details.
func EncodeErrorEnvelope(code, message string, details value.Value) ([]byte, error) {
	e := newEncoder()
	e.w.putByte(envelopeError)
	if err := e.value(value.String(code), 0); err != nil {
		return nil, err
	}
	msg := value.Null()
	if message != "" {
		msg = value.String(message)
	}
	if err := e.value(msg, 0); err != nil {
		return nil, err
	}
	if err := e.value(details, 0); err != nil {
		return nil, err
	}
	return e.w.buf, nil
}

// EncodeError builds an error envelope from err, keeping the structured
// kind, phase and path of an *errors.Error so the caller side can
// reconstruct it.
func EncodeError(err error) ([]byte, error) {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return EncodeErrorEnvelope(string(errors.KindPlatform), err.Error(), value.Null())
	}

	details := value.NewMap()
	details.Set("phase", value.String(string(e.Phase)))
	if e.Method != "" {
		details.Set("method", value.String(e.Method))
	}
	if len(e.Path) > 0 {
		path := make([]value.Value, len(e.Path))
		for i, p := range e.Path {
			path[i] = value.String(p)
		}
		details.Set("path", value.List(path...))
	}
	msg := e.Detail
	if e.Cause != nil {
		msg = e.Error()
	}
	return EncodeErrorEnvelope(string(e.Kind), msg, value.MapValue(details))
}

// DecodeEnvelope returns the result of a success envelope or the
// reconstructed *errors.Error of an error envelope. An empty reply means the
// receiver did not implement the method.
func DecodeEnvelope(data []byte) (value.Value, error) {
	if len(data) == 0 {
		return value.Value{}, errors.New(errors.PhaseAdapter, errors.KindUnimplemented).
			Detail("empty reply").
			Build()
	}

	d := decoder{r: reader{buf: data}}
	marker, _ := d.r.getByte()

	switch marker {
	case envelopeSuccess:
		v, err := d.value(0)
		if err != nil {
			return value.Value{}, err
		}
		if d.r.remaining() != 0 {
			return value.Value{}, errors.Malformed(d.r.pos, "%d trailing bytes", d.r.remaining())
		}
		return v, nil
	case envelopeError:
		return value.Value{}, d.errorEnvelope()
	}
	return value.Value{}, errors.Malformed(0, "unknown envelope marker %d", marker)
}

func (d *decoder) errorEnvelope() error {
	codeVal, err := d.value(0)
	if err != nil {
		return err
	}
	msgVal, err := d.value(0)
	if err != nil {
		return err
	}
	details, err := d.value(0)
	if err != nil {
		return err
	}
	if d.r.remaining() != 0 {
		return errors.Malformed(d.r.pos, "%d trailing bytes", d.r.remaining())
	}

	code, ok := codeVal.Str()
	if !ok {
		return errors.Malformed(1, "error code must be a string, got %s", codeVal.Kind())
	}
	msg, _ := msgVal.Str()

	out := &errors.Error{Phase: errors.PhaseAdapter, Kind: errors.Kind(code), Detail: msg}
	switch out.Kind {
	case errors.KindInvalidInput, errors.KindUnserializable, errors.KindMalformedPayload,
		errors.KindUnimplemented, errors.KindPlatform, errors.KindNotInitialized:
	default:
		out.Kind = errors.KindPlatform
		out.Detail = code + ": " + msg
	}

	if dm, ok := details.Map(); ok {
		if p, ok := dm.Get("phase"); ok {
			if s, _ := p.Str(); s != "" {
				out.Phase = errors.Phase(s)
			}
		}
		if m, ok := dm.Get("method"); ok {
			out.Method, _ = m.Str()
		}
		if p, ok := dm.Get("path"); ok {
			items, _ := p.Items()
			for _, it := range items {
				s, _ := it.Str()
				out.Path = append(out.Path, s)
			}
		}
	}
	return out
}
