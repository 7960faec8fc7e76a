package adapters

import (
	"bytes"
	"context"
	"math"
	"time"

	json "github.com/goccy/go-json"

	"github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

// Script receivers of the browser analytics library.
const (
	ReceiverMixpanel    = "mixpanel"
	ReceiverPeople      = "mixpanel.people"
	ReceiverGroup       = "mixpanel.get_group"
	ReceiverPersistence = "mixpanel.persistence"
)

// ScriptCall is one function call against the page's analytics library.
// When ReceiverArgs is non-nil the receiver is itself called with them
// first, as in mixpanel.get_group(key, id).set(props).
type ScriptCall struct {
	Receiver     string
	ReceiverArgs []any
	Method       string
	Args         []any
}

// ScriptHost runs script calls inside a browser page.
type ScriptHost interface {
	Call(ctx context.Context, call ScriptCall) (any, error)
}

// BrowserAdapter drives the browser analytics library through a ScriptHost.
// Arguments are the JSON object graph of the call's values.
type BrowserAdapter struct {
	host ScriptHost
}

// Ensure BrowserAdapter implements Adapter interface
var _ Adapter = (*BrowserAdapter)(nil)

// NewBrowserAdapter creates an adapter over host.
func NewBrowserAdapter(host ScriptHost) *BrowserAdapter {
	return &BrowserAdapter{host: host}
}

func (a *BrowserAdapter) call(ctx context.Context, method string, c ScriptCall) (any, error) {
	if a.host == nil {
		return nil, errors.New(errors.PhaseAdapter, errors.KindNotInitialized).
			Method(method).
			Detail("no script host configured").
			Build()
	}
	out, err := a.host.Call(ctx, c)
	if err != nil {
		return nil, platformError(method, err)
	}
	return out, nil
}

func (a *BrowserAdapter) exec(ctx context.Context, method string, c ScriptCall) error {
	_, err := a.call(ctx, method, c)
	return err
}

func mixpanel(method string, args ...any) ScriptCall {
	return ScriptCall{Receiver: ReceiverMixpanel, Method: method, Args: args}
}

func (a *BrowserAdapter) Initialize(ctx context.Context, opts InitOptions) error {
	config := NewScriptObject()
	config.Set("opt_out_tracking_by_default", opts.OptOutTrackingDefault)
	config.Set("track_pageview", opts.TrackAutomaticEvents)
	if opts.ServerURL != "" {
		config.Set("api_host", opts.ServerURL)
	}
	opts.Config.Range(func(k string, v value.Value) bool {
		config.Set(k, ScriptValue(v))
		return true
	})
	if err := a.exec(ctx, MethodInitialize, mixpanel("init", opts.Token, config)); err != nil {
		return err
	}
	if opts.SuperProperties.Len() == 0 {
		return nil
	}
	return a.exec(ctx, MethodInitialize, mixpanel("register", ScriptProperties(opts.SuperProperties)))
}

func (a *BrowserAdapter) Track(ctx context.Context, event string, props *value.Map) error {
	return a.exec(ctx, MethodTrack, mixpanel("track", event, ScriptProperties(props)))
}

func (a *BrowserAdapter) TrackWithGroups(ctx context.Context, event string, props, groups *value.Map) error {
	return a.exec(ctx, MethodTrackWithGroups,
		mixpanel("track_with_groups", event, ScriptProperties(props), ScriptProperties(groups)))
}

func (a *BrowserAdapter) TimeEvent(ctx context.Context, event string) error {
	return a.exec(ctx, MethodTimeEvent, mixpanel("time_event", event))
}

func (a *BrowserAdapter) Identify(ctx context.Context, distinctID string) error {
	return a.exec(ctx, MethodIdentify, mixpanel("identify", distinctID))
}

func (a *BrowserAdapter) Alias(ctx context.Context, alias, distinctID string) error {
	return a.exec(ctx, MethodAlias, mixpanel("alias", alias, distinctID))
}

func (a *BrowserAdapter) DistinctID(ctx context.Context) (string, error) {
	out, err := a.call(ctx, MethodGetDistinctID, mixpanel("get_distinct_id"))
	if err != nil {
		return "", err
	}
	id, _ := out.(string)
	return id, nil
}

func (a *BrowserAdapter) RegisterSuperProperties(ctx context.Context, props *value.Map) error {
	return a.exec(ctx, MethodRegisterSuperProperties, mixpanel("register", ScriptProperties(props)))
}

func (a *BrowserAdapter) RegisterSuperPropertiesOnce(ctx context.Context, props *value.Map) error {
	return a.exec(ctx, MethodRegisterSuperPropertiesOnce, mixpanel("register_once", ScriptProperties(props)))
}

func (a *BrowserAdapter) UnregisterSuperProperty(ctx context.Context, name string) error {
	return a.exec(ctx, MethodUnregisterSuperProperty, mixpanel("unregister", name))
}

func (a *BrowserAdapter) ClearSuperProperties(ctx context.Context) error {
	return a.exec(ctx, MethodClearSuperProperties, ScriptCall{Receiver: ReceiverPersistence, Method: "clear"})
}

var browserProfileMethods = map[UpdateKind]string{
	UpdateSet:       "set",
	UpdateSetOnce:   "set_once",
	UpdateIncrement: "increment",
	UpdateAppend:    "append",
	UpdateUnion:     "union",
	UpdateRemove:    "remove",
	UpdateUnset:     "unset",
	UpdateDelete:    "delete_user",
}

func (a *BrowserAdapter) UpdateProfile(ctx context.Context, u ProfileUpdate) error {
	if u.Target.IsGroup() {
		return a.updateGroup(ctx, u)
	}

	method, _ := PeopleMethod(u.Kind)
	fn, ok := browserProfileMethods[u.Kind]
	if !ok {
		return errors.Unimplemented(methodOr(method, u.Kind))
	}
	c := ScriptCall{Receiver: ReceiverPeople, Method: fn}
	switch u.Kind {
	case UpdateUnset:
		c.Args = []any{u.Properties.Keys()}
	case UpdateDelete:
	default:
		c.Args = []any{ScriptProperties(u.Properties)}
	}
	return a.exec(ctx, method, c)
}

func (a *BrowserAdapter) updateGroup(ctx context.Context, u ProfileUpdate) error {
	method, _ := GroupMethod(u.Kind)
	method = methodOr(method, u.Kind)
	switch u.Kind {
	case UpdateIncrement, UpdateAppend, UpdateDelete:
		// The browser library has no group counterpart for these.
		return errors.Unimplemented(method)
	}

	c := ScriptCall{
		Receiver:     ReceiverGroup,
		ReceiverArgs: []any{u.Target.GroupKey, ScriptValue(u.Target.GroupID)},
		Method:       browserProfileMethods[u.Kind],
	}
	if u.Kind == UpdateUnset {
		// unset takes one property name per call
		for _, name := range u.Properties.Keys() {
			c.Args = []any{name}
			if err := a.exec(ctx, method, c); err != nil {
				return err
			}
		}
		return nil
	}
	if u.Kind == UpdateUnion || u.Kind == UpdateRemove {
		var err error
		u.Properties.Range(func(name string, v value.Value) bool {
			c.Args = []any{name, ScriptValue(v)}
			err = a.exec(ctx, method, c)
			return err == nil
		})
		return err
	}
	c.Args = []any{ScriptProperties(u.Properties)}
	return a.exec(ctx, method, c)
}

func (a *BrowserAdapter) SetGroup(ctx context.Context, m GroupMembership) error {
	return a.exec(ctx, MethodSetGroup, mixpanel("set_group", m.GroupKey, ScriptValue(m.GroupID)))
}

func (a *BrowserAdapter) AddGroup(ctx context.Context, m GroupMembership) error {
	return a.exec(ctx, MethodAddGroup, mixpanel("add_group", m.GroupKey, ScriptValue(m.GroupID)))
}

func (a *BrowserAdapter) RemoveGroup(ctx context.Context, m GroupMembership) error {
	return a.exec(ctx, MethodRemoveGroup, mixpanel("remove_group", m.GroupKey, ScriptValue(m.GroupID)))
}

func (a *BrowserAdapter) OptOutTracking(ctx context.Context) error {
	return a.exec(ctx, MethodOptOutTracking, mixpanel("opt_out_tracking"))
}

func (a *BrowserAdapter) OptInTracking(ctx context.Context) error {
	return a.exec(ctx, MethodOptInTracking, mixpanel("opt_in_tracking"))
}

func (a *BrowserAdapter) HasOptedOutTracking(ctx context.Context) (bool, error) {
	out, err := a.call(ctx, MethodHasOptedOutTracking, mixpanel("has_opted_out_tracking"))
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}

// Flush is a no-op: the browser library sends as it goes.
func (a *BrowserAdapter) Flush(context.Context) error {
	return nil
}

func (a *BrowserAdapter) Reset(ctx context.Context) error {
	return a.exec(ctx, MethodReset, mixpanel("reset"))
}

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// ScriptValue converts v into its JSON object graph. Timestamps become
// ISO-8601 strings, URIs plain strings and maps ordered ScriptObjects.
// Non-finite numbers have no JSON form and become null.
func ScriptValue(v value.Value) any {
	switch v.Kind() {
	case value.KindString, value.KindURI:
		s, _ := v.Str()
		return s
	case value.KindNumber:
		n, _ := v.Num()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return n
	case value.KindBool:
		b, _ := v.Boolean()
		return b
	case value.KindTimestamp:
		ms, _ := v.Millis()
		return time.UnixMilli(ms).UTC().Format(timestampLayout)
	case value.KindList:
		items, _ := v.Items()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = ScriptValue(it)
		}
		return out
	case value.KindMap:
		m, _ := v.Map()
		return ScriptProperties(m)
	}
	return nil
}

// ScriptProperties converts m into an ordered ScriptObject.
func ScriptProperties(m *value.Map) *ScriptObject {
	o := &ScriptObject{keys: make([]string, 0, m.Len()), vals: make([]any, 0, m.Len())}
	m.Range(func(k string, v value.Value) bool {
		o.keys = append(o.keys, k)
		o.vals = append(o.vals, ScriptValue(v))
		return true
	})
	return o
}

// ScriptObject is a JSON object that keeps key order when marshaled.
type ScriptObject struct {
	keys []string
	vals []any
}

// NewScriptObject creates an empty object.
func NewScriptObject() *ScriptObject {
	return &ScriptObject{}
}

// Set adds or replaces key.
func (o *ScriptObject) Set(key string, v any) {
	for i, k := range o.keys {
		if k == key {
			o.vals[i] = v
			return
		}
	}
	o.keys = append(o.keys, key)
	o.vals = append(o.vals, v)
}

// Get returns the value stored under key.
func (o *ScriptObject) Get(key string) (any, bool) {
	for i, k := range o.keys {
		if k == key {
			return o.vals[i], true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (o *ScriptObject) Keys() []string {
	return append([]string(nil), o.keys...)
}

// MarshalJSON implements json.Marshaler.
func (o *ScriptObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
