package adapters

import (
	"context"
	"sync"

	"github.com/Tap30/pulse-go/value"
)

// Call is one adapter invocation seen by a RecordingAdapter. Arguments use
// the same keys as the wire call.
type Call struct {
	Method    string
	Arguments *value.Map
}

// RecordingAdapter implements Adapter by recording every call. It is the
// no-op backend on unsupported platforms and the test double elsewhere.
type RecordingAdapter struct {
	mu         sync.Mutex
	calls      []Call
	optedOut   bool
	distinctID string
	record     bool
}

// Ensure RecordingAdapter implements Adapter interface
var _ Adapter = (*RecordingAdapter)(nil)

// NewRecordingAdapter creates an adapter that keeps a log of calls.
func NewRecordingAdapter() *RecordingAdapter {
	return &RecordingAdapter{record: true}
}

// NewNoOpAdapter creates an adapter that accepts every call and keeps nothing.
func NewNoOpAdapter() *RecordingAdapter {
	return &RecordingAdapter{}
}

// Calls returns a copy of the recorded calls in arrival order.
func (r *RecordingAdapter) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Methods returns the recorded method names in arrival order.
func (r *RecordingAdapter) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Method
	}
	return out
}

// Clear drops the recorded calls.
func (r *RecordingAdapter) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// SetDistinctID sets the id reported by DistinctID.
func (r *RecordingAdapter) SetDistinctID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distinctID = id
}

func (r *RecordingAdapter) add(method string, pairs ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.record {
		return
	}
	args := value.MapOf(pairs...)
	r.calls = append(r.calls, Call{Method: method, Arguments: args.Clone()})
}

func (r *RecordingAdapter) Initialize(_ context.Context, opts InitOptions) error {
	r.mu.Lock()
	r.optedOut = opts.OptOutTrackingDefault
	r.mu.Unlock()
	r.add(MethodInitialize,
		ArgToken, value.String(opts.Token),
		ArgOptOutTrackingDefault, value.Bool(opts.OptOutTrackingDefault),
		ArgTrackAutomaticEvents, value.Bool(opts.TrackAutomaticEvents),
		ArgServerURL, value.String(opts.ServerURL),
		ArgLibraryProperties, value.MapValue(opts.LibraryProperties),
		ArgSuperProperties, value.MapValue(opts.SuperProperties),
		ArgConfig, value.MapValue(opts.Config),
	)
	return nil
}

func (r *RecordingAdapter) Track(_ context.Context, event string, props *value.Map) error {
	r.add(MethodTrack, ArgEventName, value.String(event), ArgProperties, value.MapValue(props))
	return nil
}

func (r *RecordingAdapter) TrackWithGroups(_ context.Context, event string, props, groups *value.Map) error {
	r.add(MethodTrackWithGroups,
		ArgEventName, value.String(event),
		ArgProperties, value.MapValue(props),
		ArgGroups, value.MapValue(groups),
	)
	return nil
}

func (r *RecordingAdapter) TimeEvent(_ context.Context, event string) error {
	r.add(MethodTimeEvent, ArgEventName, value.String(event))
	return nil
}

func (r *RecordingAdapter) Identify(_ context.Context, distinctID string) error {
	r.mu.Lock()
	r.distinctID = distinctID
	r.mu.Unlock()
	r.add(MethodIdentify, ArgDistinctID, value.String(distinctID))
	return nil
}

func (r *RecordingAdapter) Alias(_ context.Context, alias, distinctID string) error {
	r.add(MethodAlias, ArgAlias, value.String(alias), ArgDistinctID, value.String(distinctID))
	return nil
}

func (r *RecordingAdapter) DistinctID(_ context.Context) (string, error) {
	r.add(MethodGetDistinctID)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.distinctID, nil
}

func (r *RecordingAdapter) RegisterSuperProperties(_ context.Context, props *value.Map) error {
	r.add(MethodRegisterSuperProperties, ArgProperties, value.MapValue(props))
	return nil
}

func (r *RecordingAdapter) RegisterSuperPropertiesOnce(_ context.Context, props *value.Map) error {
	r.add(MethodRegisterSuperPropertiesOnce, ArgProperties, value.MapValue(props))
	return nil
}

func (r *RecordingAdapter) UnregisterSuperProperty(_ context.Context, name string) error {
	r.add(MethodUnregisterSuperProperty, ArgPropertyName, value.String(name))
	return nil
}

func (r *RecordingAdapter) ClearSuperProperties(_ context.Context) error {
	r.add(MethodClearSuperProperties)
	return nil
}

func (r *RecordingAdapter) UpdateProfile(_ context.Context, u ProfileUpdate) error {
	if u.Target.IsGroup() {
		method, _ := GroupMethod(u.Kind)
		r.add(methodOr(method, u.Kind),
			ArgGroupKey, value.String(u.Target.GroupKey),
			ArgGroupID, u.Target.GroupID,
			ArgProperties, value.MapValue(u.Properties),
		)
		return nil
	}
	method, _ := PeopleMethod(u.Kind)
	r.add(methodOr(method, u.Kind), ArgProperties, value.MapValue(u.Properties))
	return nil
}

func (r *RecordingAdapter) membership(method string, m GroupMembership) error {
	r.add(method, ArgGroupKey, value.String(m.GroupKey), ArgGroupID, m.GroupID)
	return nil
}

func (r *RecordingAdapter) SetGroup(_ context.Context, m GroupMembership) error {
	return r.membership(MethodSetGroup, m)
}

func (r *RecordingAdapter) AddGroup(_ context.Context, m GroupMembership) error {
	return r.membership(MethodAddGroup, m)
}

func (r *RecordingAdapter) RemoveGroup(_ context.Context, m GroupMembership) error {
	return r.membership(MethodRemoveGroup, m)
}

func (r *RecordingAdapter) OptOutTracking(_ context.Context) error {
	r.mu.Lock()
	r.optedOut = true
	r.mu.Unlock()
	r.add(MethodOptOutTracking)
	return nil
}

func (r *RecordingAdapter) OptInTracking(_ context.Context) error {
	r.mu.Lock()
	r.optedOut = false
	r.mu.Unlock()
	r.add(MethodOptInTracking)
	return nil
}

func (r *RecordingAdapter) HasOptedOutTracking(_ context.Context) (bool, error) {
	r.add(MethodHasOptedOutTracking)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.optedOut, nil
}

func (r *RecordingAdapter) Flush(_ context.Context) error {
	r.add(MethodFlush)
	return nil
}

func (r *RecordingAdapter) Reset(_ context.Context) error {
	r.mu.Lock()
	r.distinctID = ""
	r.mu.Unlock()
	r.add(MethodReset)
	return nil
}
