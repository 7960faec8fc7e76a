package value

import (
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	"github.com/Tap30/pulse-go/errors"
)

// MaxDepth bounds nesting of lists and maps, both on conversion and on the wire.
const MaxDepth = 256

// visitKey identifies a map or a slice window. Slices sharing a backing
// array but differing in length are distinct.
type visitKey struct {
	ptr uintptr
	n   int
}

type converter struct {
	// visiting holds the maps and slices on the current path.
	visiting map[visitKey]struct{}
}

// FromGo converts a host value into a Value. Opaque values such as structs,
// channels, functions, or maps with non-string keys fail with an
// Unserializable error naming the offending path. Self-referencing maps and
// slices fail the same way, as do strings that are not valid UTF-8. Values
// and Maps built by the caller are checked against the same rules.
func FromGo(v any) (Value, error) {
	c := converter{}
	return c.convert(v, nil, 0)
}

// FromGoMap converts a property map. Keys are ordered lexicographically since
// Go maps carry no order. A nil map converts to an empty Map.
func FromGoMap(props map[string]any) (*Map, error) {
	if props == nil {
		return NewMap(), nil
	}
	c := converter{}
	v, err := c.convertMap(reflect.ValueOf(props), nil, 0)
	if err != nil {
		return nil, err
	}
	m, _ := v.Map()
	return m, nil
}

func unserializable(path []string, detail string, args ...any) error {
	return errors.New(errors.PhaseConvert, errors.KindUnserializable).
		Path(append([]string(nil), path...)...).
		Detail(detail, args...).
		Build()
}

func (c *converter) convert(v any, path []string, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, unserializable(path, "nesting exceeds %d levels", MaxDepth)
	}

	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return c.check(x, path, depth)
	case *Map:
		return c.check(MapValue(x), path, depth)
	case string:
		return c.str(x, path)
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, unserializable(path, "invalid number %q", string(x))
		}
		return Number(f), nil
	case time.Time:
		return TimestampOf(x), nil
	case *time.Time:
		if x == nil {
			return Null(), nil
		}
		return TimestampOf(*x), nil
	case url.URL:
		return URIOf(&x), nil
	case *url.URL:
		if x == nil {
			return Null(), nil
		}
		return URIOf(x), nil
	case []any:
		return c.convertSlice(reflect.ValueOf(x), path, depth)
	case map[string]any:
		return c.convertMap(reflect.ValueOf(x), path, depth)
	}

	return c.convertReflect(reflect.ValueOf(v), path, depth)
}

func (c *converter) convertReflect(rv reflect.Value, path []string, depth int) (Value, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil
	case reflect.String:
		return c.str(rv.String(), path)
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		return c.convertSlice(rv, path, depth)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, unserializable(path, "map key type %s is not a string", rv.Type().Key())
		}
		return c.convertMap(rv, path, depth)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return c.convert(rv.Elem().Interface(), path, depth+1)
	}
	return Value{}, unserializable(path, "unsupported type %s", rv.Type())
}

func (c *converter) str(s string, path []string) (Value, error) {
	if !utf8.ValidString(s) {
		return Value{}, unserializable(path, "string is not valid UTF-8")
	}
	return String(s), nil
}

func (c *converter) visit(key visitKey, path []string) (func(), error) {
	if c.visiting == nil {
		c.visiting = make(map[visitKey]struct{})
	}
	if _, ok := c.visiting[key]; ok {
		return nil, unserializable(path, "cyclic reference")
	}
	c.visiting[key] = struct{}{}
	return func() { delete(c.visiting, key) }, nil
}

func (c *converter) enter(rv reflect.Value, path []string) (func(), error) {
	if rv.Kind() == reflect.Array || rv.Len() == 0 {
		return func() {}, nil
	}
	key := visitKey{ptr: rv.Pointer()}
	if rv.Kind() == reflect.Slice {
		key.n = rv.Len()
	}
	return c.visit(key, path)
}

// check walks a caller-built Value. It returns v itself once it is known to
// be finite, acyclic and valid UTF-8 throughout.
func (c *converter) check(v Value, path []string, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, unserializable(path, "nesting exceeds %d levels", MaxDepth)
	}

	switch v.kind {
	case KindString, KindURI:
		if !utf8.ValidString(v.str) {
			return Value{}, unserializable(path, "string is not valid UTF-8")
		}
	case KindList:
		if len(v.list) == 0 {
			return v, nil
		}
		leave, err := c.visit(visitKey{ptr: reflect.ValueOf(v.list).Pointer(), n: len(v.list)}, path)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		for i, item := range v.list {
			if _, err := c.check(item, append(path, strconv.Itoa(i)), depth+1); err != nil {
				return Value{}, err
			}
		}
	case KindMap:
		if v.m == nil {
			return v, nil
		}
		leave, err := c.visit(visitKey{ptr: reflect.ValueOf(v.m).Pointer()}, path)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		for _, k := range v.m.keys {
			if !utf8.ValidString(k) {
				return Value{}, unserializable(append(path, k), "key is not valid UTF-8")
			}
			if _, err := c.check(v.m.items[k], append(path, k), depth+1); err != nil {
				return Value{}, err
			}
		}
	}
	return v, nil
}

func (c *converter) convertSlice(rv reflect.Value, path []string, depth int) (Value, error) {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return Null(), nil
	}
	leave, err := c.enter(rv, path)
	if err != nil {
		return Value{}, err
	}
	defer leave()

	items := make([]Value, rv.Len())
	for i := range items {
		item, err := c.convert(rv.Index(i).Interface(), append(path, strconv.Itoa(i)), depth+1)
		if err != nil {
			return Value{}, err
		}
		items[i] = item
	}
	return List(items...), nil
}

func (c *converter) convertMap(rv reflect.Value, path []string, depth int) (Value, error) {
	if rv.IsNil() {
		return Null(), nil
	}
	leave, err := c.enter(rv, path)
	if err != nil {
		return Value{}, err
	}
	defer leave()

	keys := make([]string, 0, rv.Len())
	byKey := make(map[string]reflect.Value, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		if !utf8.ValidString(k) {
			return Value{}, unserializable(append(path, k), "key is not valid UTF-8")
		}
		keys = append(keys, k)
		byKey[k] = iter.Value()
	}
	sort.Strings(keys)

	m := NewMap()
	for _, k := range keys {
		item, err := c.convert(byKey[k].Interface(), append(path, k), depth+1)
		if err != nil {
			return Value{}, err
		}
		m.Set(k, item)
	}
	return MapValue(m), nil
}
