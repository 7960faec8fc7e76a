package adapters

import (
	"context"
	"net/url"
	"sync"

	"github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

// NativeProperties is the property shape native SDK bindings accept.
// Timestamps arrive as time.Time and URIs as *url.URL.
type NativeProperties map[string]any

// NativeOptions is what a NativeFactory receives at initialize.
type NativeOptions struct {
	Token                 string
	OptOutTrackingDefault bool
	TrackAutomaticEvents  bool
	ServerURL             string
	SuperProperties       NativeProperties
	LibraryProperties     NativeProperties
	Config                NativeProperties
}

// NativeSDK is the platform analytics SDK bound by a mobile host.
type NativeSDK interface {
	Track(event string, props NativeProperties) error
	TrackWithGroups(event string, props, groups NativeProperties) error
	TimeEvent(event string) error
	Identify(distinctID string) error
	Alias(alias, distinctID string) error
	DistinctID() (string, error)
	RegisterSuperProperties(props NativeProperties) error
	RegisterSuperPropertiesOnce(props NativeProperties) error
	UnregisterSuperProperty(name string) error
	ClearSuperProperties() error
	People() NativeProfile
	Group(key string, id any) NativeGroup
	SetGroup(key string, id any) error
	AddGroup(key string, id any) error
	RemoveGroup(key string, id any) error
	OptOutTracking() error
	OptInTracking() error
	HasOptedOutTracking() (bool, error)
	Flush() error
	Reset() error
}

// NativeProfile is the People API of a NativeSDK.
type NativeProfile interface {
	Set(props NativeProperties) error
	SetOnce(props NativeProperties) error
	Increment(props map[string]float64) error
	Append(props NativeProperties) error
	Union(props NativeProperties) error
	Remove(props NativeProperties) error
	Unset(names []string) error
	DeleteUser() error
}

// NativeGroup is the Group API of a NativeSDK.
type NativeGroup interface {
	Set(props NativeProperties) error
	SetOnce(props NativeProperties) error
	Union(props NativeProperties) error
	Remove(props NativeProperties) error
	Unset(names []string) error
	Delete() error
}

// NativeFactory creates the SDK instance on initialize.
type NativeFactory func(opts NativeOptions) (NativeSDK, error)

// NativeAdapter drives a NativeSDK.
type NativeAdapter struct {
	factory NativeFactory

	mu  sync.RWMutex
	sdk NativeSDK
}

// Ensure NativeAdapter implements Adapter interface
var _ Adapter = (*NativeAdapter)(nil)

// NewNativeAdapter creates an adapter that builds its SDK with factory.
func NewNativeAdapter(factory NativeFactory) *NativeAdapter {
	return &NativeAdapter{factory: factory}
}

func (a *NativeAdapter) Initialize(_ context.Context, opts InitOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sdk != nil {
		return nil
	}
	if a.factory == nil {
		return errors.New(errors.PhaseAdapter, errors.KindPlatform).
			Method(MethodInitialize).
			Detail("no native sdk factory configured").
			Build()
	}
	sdk, err := a.factory(NativeOptions{
		Token:                 opts.Token,
		OptOutTrackingDefault: opts.OptOutTrackingDefault,
		TrackAutomaticEvents:  opts.TrackAutomaticEvents,
		ServerURL:             opts.ServerURL,
		SuperProperties:       ToNativeProperties(opts.SuperProperties),
		LibraryProperties:     ToNativeProperties(opts.LibraryProperties),
		Config:                ToNativeProperties(opts.Config),
	})
	if err != nil {
		return platformError(MethodInitialize, err)
	}
	a.sdk = sdk
	return nil
}

func (a *NativeAdapter) instance(method string) (NativeSDK, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.sdk == nil {
		return nil, errors.New(errors.PhaseAdapter, errors.KindNotInitialized).
			Method(method).
			Detail("native sdk is not initialized").
			Build()
	}
	return a.sdk, nil
}

// run resolves the SDK and wraps any failure it reports.
func (a *NativeAdapter) run(method string, fn func(NativeSDK) error) error {
	sdk, err := a.instance(method)
	if err != nil {
		return err
	}
	if err := fn(sdk); err != nil {
		return platformError(method, err)
	}
	return nil
}

func (a *NativeAdapter) Track(_ context.Context, event string, props *value.Map) error {
	return a.run(MethodTrack, func(s NativeSDK) error {
		return s.Track(event, ToNativeProperties(props))
	})
}

func (a *NativeAdapter) TrackWithGroups(_ context.Context, event string, props, groups *value.Map) error {
	return a.run(MethodTrackWithGroups, func(s NativeSDK) error {
		return s.TrackWithGroups(event, ToNativeProperties(props), ToNativeProperties(groups))
	})
}

func (a *NativeAdapter) TimeEvent(_ context.Context, event string) error {
	return a.run(MethodTimeEvent, func(s NativeSDK) error { return s.TimeEvent(event) })
}

func (a *NativeAdapter) Identify(_ context.Context, distinctID string) error {
	return a.run(MethodIdentify, func(s NativeSDK) error { return s.Identify(distinctID) })
}

func (a *NativeAdapter) Alias(_ context.Context, alias, distinctID string) error {
	return a.run(MethodAlias, func(s NativeSDK) error { return s.Alias(alias, distinctID) })
}

func (a *NativeAdapter) DistinctID(_ context.Context) (string, error) {
	var id string
	err := a.run(MethodGetDistinctID, func(s NativeSDK) (err error) {
		id, err = s.DistinctID()
		return err
	})
	return id, err
}

func (a *NativeAdapter) RegisterSuperProperties(_ context.Context, props *value.Map) error {
	return a.run(MethodRegisterSuperProperties, func(s NativeSDK) error {
		return s.RegisterSuperProperties(ToNativeProperties(props))
	})
}

func (a *NativeAdapter) RegisterSuperPropertiesOnce(_ context.Context, props *value.Map) error {
	return a.run(MethodRegisterSuperPropertiesOnce, func(s NativeSDK) error {
		return s.RegisterSuperPropertiesOnce(ToNativeProperties(props))
	})
}

func (a *NativeAdapter) UnregisterSuperProperty(_ context.Context, name string) error {
	return a.run(MethodUnregisterSuperProperty, func(s NativeSDK) error {
		return s.UnregisterSuperProperty(name)
	})
}

func (a *NativeAdapter) ClearSuperProperties(_ context.Context) error {
	return a.run(MethodClearSuperProperties, func(s NativeSDK) error { return s.ClearSuperProperties() })
}

func (a *NativeAdapter) UpdateProfile(_ context.Context, u ProfileUpdate) error {
	if u.Target.IsGroup() {
		method, _ := GroupMethod(u.Kind)
		return a.run(methodOr(method, u.Kind), func(s NativeSDK) error {
			return updateGroup(s.Group(u.Target.GroupKey, u.Target.GroupID.ToGo()), u)
		})
	}
	method, _ := PeopleMethod(u.Kind)
	return a.run(methodOr(method, u.Kind), func(s NativeSDK) error {
		return updatePeople(s.People(), u)
	})
}

func updatePeople(p NativeProfile, u ProfileUpdate) error {
	props := ToNativeProperties(u.Properties)
	switch u.Kind {
	case UpdateSet:
		return p.Set(props)
	case UpdateSetOnce:
		return p.SetOnce(props)
	case UpdateIncrement:
		by, err := increments(u.Properties)
		if err != nil {
			return err
		}
		return p.Increment(by)
	case UpdateAppend:
		return p.Append(props)
	case UpdateUnion:
		return p.Union(props)
	case UpdateRemove:
		return p.Remove(props)
	case UpdateUnset:
		return p.Unset(u.Properties.Keys())
	case UpdateDelete:
		return p.DeleteUser()
	}
	return errors.Unimplemented(string(u.Kind))
}

func updateGroup(g NativeGroup, u ProfileUpdate) error {
	props := ToNativeProperties(u.Properties)
	switch u.Kind {
	case UpdateSet:
		return g.Set(props)
	case UpdateSetOnce:
		return g.SetOnce(props)
	case UpdateUnion:
		return g.Union(props)
	case UpdateRemove:
		return g.Remove(props)
	case UpdateUnset:
		return g.Unset(u.Properties.Keys())
	case UpdateDelete:
		return g.Delete()
	}
	return errors.Unimplemented(string(u.Kind))
}

// increments requires every property to be a number.
func increments(props *value.Map) (map[string]float64, error) {
	out := make(map[string]float64, props.Len())
	var err error
	props.Range(func(k string, v value.Value) bool {
		n, ok := v.Num()
		if !ok {
			err = errors.New(errors.PhaseAdapter, errors.KindInvalidInput).
				Method(MethodPeopleIncrement).
				Path(k).
				Detail("increment needs a number, got %s", v.Kind()).
				Build()
			return false
		}
		out[k] = n
		return true
	})
	return out, err
}

func (a *NativeAdapter) SetGroup(_ context.Context, m GroupMembership) error {
	return a.run(MethodSetGroup, func(s NativeSDK) error { return s.SetGroup(m.GroupKey, m.GroupID.ToGo()) })
}

func (a *NativeAdapter) AddGroup(_ context.Context, m GroupMembership) error {
	return a.run(MethodAddGroup, func(s NativeSDK) error { return s.AddGroup(m.GroupKey, m.GroupID.ToGo()) })
}

func (a *NativeAdapter) RemoveGroup(_ context.Context, m GroupMembership) error {
	return a.run(MethodRemoveGroup, func(s NativeSDK) error { return s.RemoveGroup(m.GroupKey, m.GroupID.ToGo()) })
}

func (a *NativeAdapter) OptOutTracking(_ context.Context) error {
	return a.run(MethodOptOutTracking, func(s NativeSDK) error { return s.OptOutTracking() })
}

func (a *NativeAdapter) OptInTracking(_ context.Context) error {
	return a.run(MethodOptInTracking, func(s NativeSDK) error { return s.OptInTracking() })
}

func (a *NativeAdapter) HasOptedOutTracking(_ context.Context) (bool, error) {
	var out bool
	err := a.run(MethodHasOptedOutTracking, func(s NativeSDK) (err error) {
		out, err = s.HasOptedOutTracking()
		return err
	})
	return out, err
}

func (a *NativeAdapter) Flush(_ context.Context) error {
	return a.run(MethodFlush, func(s NativeSDK) error { return s.Flush() })
}

func (a *NativeAdapter) Reset(_ context.Context) error {
	return a.run(MethodReset, func(s NativeSDK) error { return s.Reset() })
}

// ToNativeProperties converts m into the native property shape. A nil map
// becomes an empty one.
func ToNativeProperties(m *value.Map) NativeProperties {
	out := make(NativeProperties, m.Len())
	m.Range(func(k string, v value.Value) bool {
		out[k] = toNative(v)
		return true
	})
	return out
}

func toNative(v value.Value) any {
	switch v.Kind() {
	case value.KindURI:
		s, _ := v.Str()
		if u, err := url.Parse(s); err == nil {
			return u
		}
		return s
	case value.KindList:
		items, _ := v.Items()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = toNative(it)
		}
		return out
	case value.KindMap:
		m, _ := v.Map()
		return map[string]any(ToNativeProperties(m))
	}
	return v.ToGo()
}

// platformError wraps a backend failure, keeping structured errors as is.
func platformError(method string, err error) error {
	if errors.KindOf(err) != "" {
		return err
	}
	return errors.New(errors.PhaseAdapter, errors.KindPlatform).
		Method(method).
		Cause(err).
		Build()
}

func methodOr(method string, kind UpdateKind) string {
	if method != "" {
		return method
	}
	return string(kind)
}
