package adapters

// Channel method names.
const (
	MethodInitialize                  = "initialize"
	MethodTrack                       = "track"
	MethodTrackWithGroups             = "trackWithGroups"
	MethodIdentify                    = "identify"
	MethodAlias                       = "alias"
	MethodRegisterSuperProperties     = "registerSuperProperties"
	MethodRegisterSuperPropertiesOnce = "registerSuperPropertiesOnce"
	MethodUnregisterSuperProperty     = "unregisterSuperProperty"
	MethodClearSuperProperties        = "clearSuperProperties"
	MethodTimeEvent                   = "timeEvent"

	MethodPeopleSet        = "set"
	MethodPeopleSetOnce    = "setOnce"
	MethodPeopleIncrement  = "increment"
	MethodPeopleAppend     = "append"
	MethodPeopleUnion      = "union"
	MethodPeopleRemove     = "remove"
	MethodPeopleUnset      = "unset"
	MethodPeopleDeleteUser = "deleteUser"

	MethodGroupSetProperties       = "groupSetProperties"
	MethodGroupSetPropertyOnce     = "groupSetPropertyOnce"
	MethodGroupUnionProperty       = "groupUnionProperty"
	MethodGroupRemovePropertyValue = "groupRemovePropertyValue"
	MethodGroupUnsetProperty       = "groupUnsetProperty"
	MethodDeleteGroup              = "deleteGroup"

	MethodSetGroup    = "setGroup"
	MethodAddGroup    = "addGroup"
	MethodRemoveGroup = "removeGroup"

	MethodOptOutTracking      = "optOutTracking"
	MethodOptInTracking       = "optInTracking"
	MethodHasOptedOutTracking = "hasOptedOutTracking"
	MethodGetDistinctID       = "getDistinctId"
	MethodFlush               = "flush"
	MethodReset               = "reset"
)

// Argument keys.
const (
	ArgToken                 = "token"
	ArgConfig                = "config"
	ArgOptOutTrackingDefault = "optOutTrackingDefault"
	ArgTrackAutomaticEvents  = "trackAutomaticEvents"
	ArgServerURL             = "serverURL"
	ArgLibraryProperties     = "mixpanelProperties"
	ArgSuperProperties       = "superProperties"
	ArgEventName             = "eventName"
	ArgProperties            = "properties"
	ArgGroups                = "groups"
	ArgDistinctID            = "distinctId"
	ArgAlias                 = "alias"
	ArgPropertyName          = "propertyName"
	ArgGroupKey              = "groupKey"
	ArgGroupID               = "groupID"
)

// peopleMethods maps People profile methods to update kinds.
var peopleMethods = map[string]UpdateKind{
	MethodPeopleSet:        UpdateSet,
	MethodPeopleSetOnce:    UpdateSetOnce,
	MethodPeopleIncrement:  UpdateIncrement,
	MethodPeopleAppend:     UpdateAppend,
	MethodPeopleUnion:      UpdateUnion,
	MethodPeopleRemove:     UpdateRemove,
	MethodPeopleUnset:      UpdateUnset,
	MethodPeopleDeleteUser: UpdateDelete,
}

// groupMethods maps Group profile methods to update kinds.
var groupMethods = map[string]UpdateKind{
	MethodGroupSetProperties:       UpdateSet,
	MethodGroupSetPropertyOnce:     UpdateSetOnce,
	MethodGroupUnionProperty:       UpdateUnion,
	MethodGroupRemovePropertyValue: UpdateRemove,
	MethodGroupUnsetProperty:       UpdateUnset,
	MethodDeleteGroup:              UpdateDelete,
}

// PeopleMethod returns the channel method for a People update kind.
func PeopleMethod(kind UpdateKind) (string, bool) {
	return methodFor(peopleMethods, kind)
}

// GroupMethod returns the channel method for a Group update kind.
func GroupMethod(kind UpdateKind) (string, bool) {
	return methodFor(groupMethods, kind)
}

func methodFor(table map[string]UpdateKind, kind UpdateKind) (string, bool) {
	for m, k := range table {
		if k == kind {
			return m, true
		}
	}
	return "", false
}
