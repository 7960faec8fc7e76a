// Package value defines the closed set of property values that can cross the
// facade/backend boundary.
//
// A Value is one of String, Number, Bool, Timestamp, URI, List, Map or Null.
// Host values are converted with FromGo at the edge of the SDK; past that
// point every property is a Value and nothing operates on untyped data.
package value

import (
	"math"
	"net/url"
	"strconv"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTimestamp
	KindURI
	KindList
	KindMap
)

var kindNames = [...]string{
	KindNull:      "null",
	KindString:    "string",
	KindNumber:    "number",
	KindBool:      "bool",
	KindTimestamp: "timestamp",
	KindURI:       "uri",
	KindList:      "list",
	KindMap:       "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is an immutable-by-convention tagged union. The zero Value is Null.
type Value struct {
	kind Kind
	str  string // String and URI
	num  float64
	ms   int64
	b    bool
	list []Value
	m    *Map
}

func Null() Value               { return Value{} }
func String(s string) Value     { return Value{kind: KindString, str: s} }
func Number(f float64) Value    { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Timestamp(ms int64) Value  { return Value{kind: KindTimestamp, ms: ms} }
func URI(s string) Value        { return Value{kind: KindURI, str: s} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// TimestampOf truncates t to millisecond precision.
func TimestampOf(t time.Time) Value { return Timestamp(t.UnixMilli()) }

// URIOf stores the canonical string form of u.
func URIOf(u *url.URL) Value { return URI(u.String()) }

// MapValue wraps m. A nil map becomes an empty Map value.
func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) String() string { return v.debugString() }

// Str returns the string payload of a String or URI value.
func (v Value) Str() (string, bool) {
	if v.kind == KindString || v.kind == KindURI {
		return v.str, true
	}
	return "", false
}

func (v Value) Num() (float64, bool)  { return v.num, v.kind == KindNumber }
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) Millis() (int64, bool) { return v.ms, v.kind == KindTimestamp }

// Time returns the timestamp as a UTC time.Time.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindTimestamp {
		return time.Time{}, false
	}
	return time.UnixMilli(v.ms).UTC(), true
}

// Items returns the elements of a List. The slice must not be modified.
func (v Value) Items() ([]Value, bool) { return v.list, v.kind == KindList }

// Map returns the map of a Map value.
func (v Value) Map() (*Map, bool) { return v.m, v.kind == KindMap }

// Equal reports deep structural equality. Numbers compare bitwise so NaN
// equals NaN and 0 differs from -0.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString, KindURI:
		return v.str == o.str
	case KindNumber:
		return math.Float64bits(v.num) == math.Float64bits(o.num)
	case KindBool:
		return v.b == o.b
	case KindTimestamp:
		return v.ms == o.ms
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(o.m)
	}
	return false
}

// Clone returns a deep copy. Shared or cyclic substructures are copied
// per occurrence, so Clone must only be called on acyclic values.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, it := range v.list {
			items[i] = it.Clone()
		}
		return List(items...)
	case KindMap:
		return MapValue(v.m.Clone())
	}
	return v
}

// ToGo converts v into plain Go values: string, float64, bool, time.Time,
// []any, map[string]any or nil. URIs become strings.
func (v Value) ToGo() any {
	switch v.kind {
	case KindString, KindURI:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindTimestamp:
		return time.UnixMilli(v.ms).UTC()
	case KindList:
		out := make([]any, len(v.list))
		for i, it := range v.list {
			out[i] = it.ToGo()
		}
		return out
	case KindMap:
		return v.m.ToGo()
	}
	return nil
}

func (v Value) debugString() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindURI:
		return "uri(" + v.str + ")"
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTimestamp:
		return "ts(" + strconv.FormatInt(v.ms, 10) + ")"
	case KindList:
		s := "["
		for i, it := range v.list {
			if i > 0 {
				s += ", "
			}
			s += it.debugString()
		}
		return s + "]"
	case KindMap:
		return v.m.String()
	}
	return "null"
}
