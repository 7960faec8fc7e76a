package adapters

import "github.com/Tap30/pulse-go/value"

// UpdateKind names a profile operation.
type UpdateKind string

const (
	UpdateSet       UpdateKind = "set"
	UpdateSetOnce   UpdateKind = "setOnce"
	UpdateIncrement UpdateKind = "increment"
	UpdateAppend    UpdateKind = "append"
	UpdateUnion     UpdateKind = "union"
	UpdateUnset     UpdateKind = "unset"
	UpdateRemove    UpdateKind = "remove"
	UpdateDelete    UpdateKind = "delete"
)

// ProfileTarget selects the People profile of the current user or a group
// profile. The zero value targets People.
type ProfileTarget struct {
	GroupKey string
	GroupID  value.Value
}

// PeopleTarget targets the current user's profile.
func PeopleTarget() ProfileTarget { return ProfileTarget{} }

// GroupTarget targets the profile of group id under key.
func GroupTarget(key string, id value.Value) ProfileTarget {
	return ProfileTarget{GroupKey: key, GroupID: id}
}

// IsGroup reports whether the target is a group profile.
func (t ProfileTarget) IsGroup() bool { return t.GroupKey != "" }

// ProfileUpdate is one operation against a People or Group profile.
// Unset carries the property names as keys with null values.
type ProfileUpdate struct {
	Target     ProfileTarget
	Kind       UpdateKind
	Properties *value.Map
}

// GroupMembership identifies a group the current user belongs to.
type GroupMembership struct {
	GroupKey string
	GroupID  value.Value
}

// InitOptions configures a backend at initialize time.
type InitOptions struct {
	Token                 string
	OptOutTrackingDefault bool
	TrackAutomaticEvents  bool
	ServerURL             string
	// LibraryProperties identify the SDK build; backends attach them to
	// profile writes they originate.
	LibraryProperties *value.Map
	SuperProperties   *value.Map
	// Config holds backend specific settings passed through untouched.
	Config *value.Map
}
