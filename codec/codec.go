// Package codec encodes Values into the binary message format carried by the
// channel, and decodes them back.
//
// The substrate is the standard binary message format understood by the
// native and browser hosts: null, booleans, 32/64-bit integers, float64,
// strings, typed numeric lists, lists and maps. Timestamps and URIs are not
// part of the substrate, so they travel behind two extension tags:
//
//	TagTimestamp (128)  int64 little-endian epoch milliseconds
//	TagURI       (129)  size-prefixed UTF-8 string
//
// Decoding is strict: an unknown tag, truncated input, a non-string or
// duplicate map key, invalid UTF-8 or trailing bytes all fail with a
// MalformedPayload error.
package codec

import (
	"math"
	"math/big"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

const maxExactInt = 1 << 53

// Encode converts v to its wire form. It fails with an Unserializable error
// on cyclic structures, nesting deeper than value.MaxDepth, or strings that
// are not valid UTF-8.
func Encode(v value.Value) ([]byte, error) {
	e := newEncoder()
	if err := e.value(v, 0); err != nil {
		return nil, err
	}
	return e.w.buf, nil
}

// Decode parses a single Value that must span all of data.
func Decode(data []byte) (value.Value, error) {
	d := decoder{r: reader{buf: data}}
	v, err := d.value(0)
	if err != nil {
		return value.Value{}, err
	}
	if d.r.remaining() != 0 {
		return value.Value{}, errors.Malformed(d.r.pos, "%d trailing bytes", d.r.remaining())
	}
	return v, nil
}

// listKey identifies a list backing array; a cycle revisits the same key.
type listKey struct {
	ptr uintptr
	n   int
}

type encoder struct {
	w        writer
	visiting map[any]struct{}
}

func newEncoder() *encoder {
	return &encoder{visiting: make(map[any]struct{})}
}

func encodeFailure(detail string, args ...any) *errors.Error {
	return errors.New(errors.PhaseEncode, errors.KindUnserializable).Detail(detail, args...).Build()
}

func (e *encoder) value(v value.Value, depth int) error {
	if depth > value.MaxDepth {
		return encodeFailure("nesting exceeds %d levels", value.MaxDepth)
	}

	switch v.Kind() {
	case value.KindNull:
		e.w.putByte(tagNull)
	case value.KindBool:
		if b, _ := v.Boolean(); b {
			e.w.putByte(tagTrue)
		} else {
			e.w.putByte(tagFalse)
		}
	case value.KindNumber:
		n, _ := v.Num()
		e.number(n)
	case value.KindString:
		s, _ := v.Str()
		if !utf8.ValidString(s) {
			return encodeFailure("string is not valid UTF-8")
		}
		e.w.putByte(tagString)
		e.w.putString(s)
	case value.KindTimestamp:
		ms, _ := v.Millis()
		e.w.putByte(TagTimestamp)
		e.w.putInt64(ms)
	case value.KindURI:
		s, _ := v.Str()
		if !utf8.ValidString(s) {
			return encodeFailure("uri is not valid UTF-8")
		}
		e.w.putByte(TagURI)
		e.w.putString(s)
	case value.KindList:
		items, _ := v.Items()
		return e.list(items, depth)
	case value.KindMap:
		m, _ := v.Map()
		return e.mapValue(m, depth)
	default:
		return encodeFailure("unknown value kind %s", v.Kind())
	}
	return nil
}

// number picks the narrowest substrate representation that decodes back to
// the same float64. Negative zero stays a float so its sign survives.
func (e *encoder) number(n float64) {
	if n == math.Trunc(n) && !math.IsInf(n, 0) && !(n == 0 && math.Signbit(n)) {
		switch {
		case n >= math.MinInt32 && n <= math.MaxInt32:
			e.w.putByte(tagInt32)
			e.w.putInt32(int32(n))
			return
		case math.Abs(n) <= maxExactInt:
			e.w.putByte(tagInt64)
			e.w.putInt64(int64(n))
			return
		}
	}
	e.w.putByte(tagFloat64)
	e.w.putFloat64(n)
}

func (e *encoder) enter(key any) (func(), error) {
	if _, ok := e.visiting[key]; ok {
		return nil, encodeFailure("cyclic reference")
	}
	e.visiting[key] = struct{}{}
	return func() { delete(e.visiting, key) }, nil
}

func (e *encoder) list(items []value.Value, depth int) error {
	if len(items) > 0 {
		leave, err := e.enter(listKey{reflect.ValueOf(items).Pointer(), len(items)})
		if err != nil {
			return err
		}
		defer leave()
	}

	e.w.putByte(tagList)
	e.w.putSize(len(items))
	for i, it := range items {
		if err := e.value(it, depth+1); err != nil {
			return errors.WithPath(err, strconv.Itoa(i))
		}
	}
	return nil
}

func (e *encoder) mapValue(m *value.Map, depth int) error {
	if m != nil {
		leave, err := e.enter(m)
		if err != nil {
			return err
		}
		defer leave()
	}

	e.w.putByte(tagMap)
	e.w.putSize(m.Len())
	var err error
	m.Range(func(k string, v value.Value) bool {
		if !utf8.ValidString(k) {
			err = errors.WithPath(encodeFailure("key is not valid UTF-8"), k)
			return false
		}
		e.w.putByte(tagString)
		e.w.putString(k)
		if verr := e.value(v, depth+1); verr != nil {
			err = errors.WithPath(verr, k)
			return false
		}
		return true
	})
	return err
}

type decoder struct {
	r reader
}

func (d *decoder) value(depth int) (value.Value, error) {
	if depth > value.MaxDepth {
		return value.Value{}, errors.Malformed(d.r.pos, "nesting exceeds %d levels", value.MaxDepth)
	}

	start := d.r.pos
	tag, err := d.r.getByte()
	if err != nil {
		return value.Value{}, err
	}

	switch tag {
	case tagNull:
		return value.Null(), nil
	case tagTrue:
		return value.Bool(true), nil
	case tagFalse:
		return value.Bool(false), nil
	case tagInt32:
		n, err := d.r.getInt32()
		return value.Number(float64(n)), err
	case tagInt64:
		n, err := d.r.getInt64()
		return value.Number(float64(n)), err
	case tagLargeInt:
		return d.largeInt()
	case tagFloat64:
		f, err := d.r.getFloat64()
		return value.Number(f), err
	case tagString:
		s, err := d.utf8()
		return value.String(s), err
	case tagUint8List, tagInt32List, tagInt64List, tagFloat32List, tagFloat64List:
		return d.typedList(tag)
	case tagList:
		return d.list(depth)
	case tagMap:
		return d.mapValue(depth)
	case TagTimestamp:
		ms, err := d.r.getInt64()
		return value.Timestamp(ms), err
	case TagURI:
		s, err := d.utf8()
		return value.URI(s), err
	}
	return value.Value{}, errors.Malformed(start, "unknown type tag %d", tag)
}

func (d *decoder) utf8() (string, error) {
	n, err := d.r.getSize()
	if err != nil {
		return "", err
	}
	start := d.r.pos
	raw, err := d.r.take(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", errors.Malformed(start, "invalid UTF-8")
	}
	return string(raw), nil
}

// largeInt reads a hex encoded integer that did not fit in 64 bits.
func (d *decoder) largeInt() (value.Value, error) {
	start := d.r.pos
	s, err := d.utf8()
	if err != nil {
		return value.Value{}, err
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return value.Value{}, errors.Malformed(start, "invalid large integer %q", s)
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return value.Number(f), nil
}

func (d *decoder) typedList(tag byte) (value.Value, error) {
	width, align := 1, 1
	switch tag {
	case tagInt32List, tagFloat32List:
		width, align = 4, 4
	case tagInt64List, tagFloat64List:
		width, align = 8, 8
	}

	n, err := d.r.getElements(width)
	if err != nil {
		return value.Value{}, err
	}
	if err := d.r.align(align); err != nil {
		return value.Value{}, err
	}
	raw, err := d.r.take(n * width)
	if err != nil {
		return value.Value{}, err
	}

	items := make([]value.Value, n)
	for i := range items {
		chunk := raw[i*width : (i+1)*width]
		var f float64
		switch tag {
		case tagUint8List:
			f = float64(chunk[0])
		case tagInt32List:
			f = float64(int32(order.Uint32(chunk)))
		case tagFloat32List:
			f = float64(math.Float32frombits(order.Uint32(chunk)))
		case tagInt64List:
			f = float64(int64(order.Uint64(chunk)))
		case tagFloat64List:
			f = math.Float64frombits(order.Uint64(chunk))
		}
		items[i] = value.Number(f)
	}
	return value.List(items...), nil
}

func (d *decoder) list(depth int) (value.Value, error) {
	n, err := d.r.getElements(1)
	if err != nil {
		return value.Value{}, err
	}
	items := make([]value.Value, n)
	for i := range items {
		if items[i], err = d.value(depth + 1); err != nil {
			return value.Value{}, err
		}
	}
	return value.List(items...), nil
}

func (d *decoder) mapValue(depth int) (value.Value, error) {
	n, err := d.r.getElements(2)
	if err != nil {
		return value.Value{}, err
	}
	m := value.NewMap()
	for i := 0; i < n; i++ {
		keyPos := d.r.pos
		kv, err := d.value(depth + 1)
		if err != nil {
			return value.Value{}, err
		}
		if kv.Kind() != value.KindString {
			return value.Value{}, errors.Malformed(keyPos, "map key must be a string, got %s", kv.Kind())
		}
		key, _ := kv.Str()
		if m.Has(key) {
			return value.Value{}, errors.Malformed(keyPos, "duplicate map key %q", key)
		}
		v, err := d.value(depth + 1)
		if err != nil {
			return value.Value{}, err
		}
		m.Set(key, v)
	}
	return value.MapValue(m), nil
}
