package pulse

import "github.com/Tap30/pulse-go/value"

// Metadata keys injected into tracked events and profile writes.
const (
	MetaLibVersion = "$lib_version"
	MetaLib        = "mp_lib"
)

// LibraryMetadata is the fixed identity map set at initialize. It is never
// mutated after creation, so it is shared freely between calls.
type LibraryMetadata struct {
	m *value.Map
}

// NewLibraryMetadata builds the metadata for a library name and version.
func NewLibraryMetadata(lib, version string) LibraryMetadata {
	return LibraryMetadata{m: value.MapOf(
		MetaLibVersion, value.String(version),
		MetaLib, value.String(lib),
	)}
}

// Map returns a copy of the metadata entries.
func (l LibraryMetadata) Map() *value.Map {
	return l.m.Clone()
}

// Merge returns props with every metadata key written over it. props is not
// modified.
func (l LibraryMetadata) Merge(props *value.Map) *value.Map {
	return Merge(props, l.m)
}

// Merge copies p and writes every entry of m into the copy, overwriting keys
// present in both. Keys of p keep their order; new keys from m follow.
func Merge(p, m *value.Map) *value.Map {
	out := p.Clone()
	m.Range(func(k string, v value.Value) bool {
		out.Set(k, v.Clone())
		return true
	})
	return out
}
