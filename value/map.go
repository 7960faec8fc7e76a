package value

import (
	"strconv"
	"strings"
)

// Map is a string-keyed map that preserves insertion order.
// A nil *Map behaves as an empty, read-only map.
type Map struct {
	keys  []string
	items map[string]Value
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{items: make(map[string]Value)}
}

// MapOf builds a map from alternating key/value pairs.
func MapOf(pairs ...any) *Map {
	if len(pairs)%2 != 0 {
		panic("value: MapOf requires key/value pairs")
	}
	m := NewMap()
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			panic("value: MapOf key must be a string")
		}
		v, ok := pairs[i+1].(Value)
		if !ok {
			panic("value: MapOf value must be a Value")
		}
		m.Set(k, v)
	}
	return m
}

// Set stores v under key. An existing key keeps its position.
func (m *Map) Set(key string, v Value) {
	if m.items == nil {
		m.items = make(map[string]Value)
	}
	if _, ok := m.items[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.items[key] = v
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.items[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key, keeping the relative order of the others.
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.items[key]; !ok {
		return
	}
	delete(m.items, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.items[k]) {
			return
		}
	}
}

// Clone returns a deep copy. A nil map clones to an empty map.
func (m *Map) Clone() *Map {
	out := NewMap()
	m.Range(func(k string, v Value) bool {
		out.Set(k, v.Clone())
		return true
	})
	return out
}

// Equal reports whether both maps hold equal entries in the same order.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i, k := range m.Keys() {
		if o.keys[i] != k {
			return false
		}
		if !m.items[k].Equal(o.items[k]) {
			return false
		}
	}
	return true
}

// ToGo converts the map to a map[string]any of plain Go values.
func (m *Map) ToGo() map[string]any {
	out := make(map[string]any, m.Len())
	m.Range(func(k string, v Value) bool {
		out[k] = v.ToGo()
		return true
	})
	return out
}

func (m *Map) String() string {
	var b strings.Builder
	b.WriteByte('{')
	i := 0
	m.Range(func(k string, v Value) bool {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(k))
		b.WriteString(": ")
		b.WriteString(v.debugString())
		i++
		return true
	})
	b.WriteByte('}')
	return b.String()
}
