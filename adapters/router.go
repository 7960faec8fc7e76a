package adapters

import (
	"context"
	"strings"

	"github.com/Tap30/pulse-go/channel"
	"github.com/Tap30/pulse-go/codec"
	"github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

// Router decodes channel calls into Adapter invocations. Methods it does not
// know fail with an Unimplemented error; panics inside the adapter are
// recovered and reported as platform failures.
type Router struct {
	adapter Adapter
}

// Ensure Router implements channel.Handler interface
var _ channel.Handler = (*Router)(nil)

// NewRouter creates a router over adapter.
func NewRouter(adapter Adapter) *Router {
	return &Router{adapter: adapter}
}

// HandleCall implements channel.Handler.
func (r *Router) HandleCall(ctx context.Context, call codec.ChannelCall) (result value.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = value.Value{}
			err = errors.New(errors.PhaseAdapter, errors.KindPlatform).
				Method(call.Method).
				Detail("adapter panic: %v", p).
				Build()
		}
	}()

	args := arguments{method: call.Method, m: call.Arguments}
	a := r.adapter

	if kind, ok := peopleMethods[call.Method]; ok {
		props, err := args.props(ArgProperties)
		if err != nil {
			return value.Null(), err
		}
		return value.Null(), a.UpdateProfile(ctx, ProfileUpdate{Target: PeopleTarget(), Kind: kind, Properties: props})
	}
	if kind, ok := groupMethods[call.Method]; ok {
		target, err := args.group()
		if err != nil {
			return value.Null(), err
		}
		props, err := args.props(ArgProperties)
		if err != nil {
			return value.Null(), err
		}
		update := ProfileUpdate{Target: ProfileTarget(target), Kind: kind, Properties: props}
		return value.Null(), a.UpdateProfile(ctx, update)
	}

	switch call.Method {
	case MethodInitialize:
		opts, err := args.initOptions()
		if err != nil {
			return value.Null(), err
		}
		return value.Null(), a.Initialize(ctx, opts)

	case MethodTrack:
		event, err := args.identifier(ArgEventName)
		if err != nil {
			return value.Null(), err
		}
		props, err := args.props(ArgProperties)
		if err != nil {
			return value.Null(), err
		}
		return value.Null(), a.Track(ctx, event, props)

	case MethodTrackWithGroups:
		event, err := args.identifier(ArgEventName)
		if err != nil {
			return value.Null(), err
		}
		props, err := args.props(ArgProperties)
		if err != nil {
			return value.Null(), err
		}
		groups, err := args.props(ArgGroups)
		if err != nil {
			return value.Null(), err
		}
		return value.Null(), a.TrackWithGroups(ctx, event, props, groups)

	case MethodTimeEvent:
		event, err := args.identifier(ArgEventName)
		if err != nil {
			return value.Null(), err
		}
		return value.Null(), a.TimeEvent(ctx, event)

	case MethodIdentify:
		id, err := args.identifier(ArgDistinctID)
		if err != nil {
			return value.Null(), err
		}
		return value.Null(), a.Identify(ctx, id)

	case MethodAlias:
		alias, err := args.identifier(ArgAlias)
		if err != nil {
			return value.Null(), err
		}
		id, err := args.identifier(ArgDistinctID)
		if err != nil {
			return value.Null(), err
		}
		return value.Null(), a.Alias(ctx, alias, id)

	case MethodGetDistinctID:
		id, err := a.DistinctID(ctx)
		if err != nil {
			return value.Null(), err
		}
		return value.String(id), nil

	case MethodRegisterSuperProperties, MethodRegisterSuperPropertiesOnce:
		props, err := args.props(ArgProperties)
		if err != nil {
			return value.Null(), err
		}
		if call.Method == MethodRegisterSuperPropertiesOnce {
			return value.Null(), a.RegisterSuperPropertiesOnce(ctx, props)
		}
		return value.Null(), a.RegisterSuperProperties(ctx, props)

	case MethodUnregisterSuperProperty:
		name, err := args.identifier(ArgPropertyName)
		if err != nil {
			return value.Null(), err
		}
		return value.Null(), a.UnregisterSuperProperty(ctx, name)

	case MethodClearSuperProperties:
		return value.Null(), a.ClearSuperProperties(ctx)

	case MethodSetGroup, MethodAddGroup, MethodRemoveGroup:
		m, err := args.group()
		if err != nil {
			return value.Null(), err
		}
		switch call.Method {
		case MethodSetGroup:
			return value.Null(), a.SetGroup(ctx, m)
		case MethodAddGroup:
			return value.Null(), a.AddGroup(ctx, m)
		}
		return value.Null(), a.RemoveGroup(ctx, m)

	case MethodOptOutTracking:
		return value.Null(), a.OptOutTracking(ctx)

	case MethodOptInTracking:
		return value.Null(), a.OptInTracking(ctx)

	case MethodHasOptedOutTracking:
		out, err := a.HasOptedOutTracking(ctx)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(out), nil

	case MethodFlush:
		return value.Null(), a.Flush(ctx)

	case MethodReset:
		return value.Null(), a.Reset(ctx)
	}

	return value.Null(), errors.Unimplemented(call.Method)
}

// arguments reads typed values out of a call's argument map.
type arguments struct {
	method string
	m      *value.Map
}

func (a arguments) invalid(key, detail string) error {
	return errors.New(errors.PhaseValidate, errors.KindInvalidInput).
		Method(a.method).
		Path(key).
		Detail(detail).
		Build()
}

// identifier returns a required, non-blank string argument.
func (a arguments) identifier(key string) (string, error) {
	v, ok := a.m.Get(key)
	if !ok {
		return "", a.invalid(key, "argument is missing")
	}
	s, ok := v.Str()
	if !ok || v.Kind() != value.KindString {
		return "", a.invalid(key, "argument must be a string, got "+v.Kind().String())
	}
	if strings.TrimSpace(s) == "" {
		return "", errors.InvalidInput(a.method, key)
	}
	return s, nil
}

// props returns a map argument; missing or null becomes an empty map.
func (a arguments) props(key string) (*value.Map, error) {
	v, ok := a.m.Get(key)
	if !ok || v.IsNull() {
		return value.NewMap(), nil
	}
	m, ok := v.Map()
	if !ok {
		return nil, a.invalid(key, "argument must be a map, got "+v.Kind().String())
	}
	return m, nil
}

func (a arguments) optionalString(key string) string {
	v, _ := a.m.Get(key)
	s, _ := v.Str()
	return s
}

func (a arguments) optionalBool(key string) bool {
	v, _ := a.m.Get(key)
	b, _ := v.Boolean()
	return b
}

func (a arguments) group() (GroupMembership, error) {
	key, err := a.identifier(ArgGroupKey)
	if err != nil {
		return GroupMembership{}, err
	}
	id, ok := a.m.Get(ArgGroupID)
	if !ok || id.IsNull() {
		return GroupMembership{}, a.invalid(ArgGroupID, "argument is missing")
	}
	return GroupMembership{GroupKey: key, GroupID: id}, nil
}

func (a arguments) initOptions() (InitOptions, error) {
	token, err := a.identifier(ArgToken)
	if err != nil {
		return InitOptions{}, err
	}
	opts := InitOptions{
		Token:                 token,
		OptOutTrackingDefault: a.optionalBool(ArgOptOutTrackingDefault),
		TrackAutomaticEvents:  a.optionalBool(ArgTrackAutomaticEvents),
		ServerURL:             a.optionalString(ArgServerURL),
	}
	if opts.LibraryProperties, err = a.props(ArgLibraryProperties); err != nil {
		return InitOptions{}, err
	}
	if opts.SuperProperties, err = a.props(ArgSuperProperties); err != nil {
		return InitOptions{}, err
	}
	if opts.Config, err = a.props(ArgConfig); err != nil {
		return InitOptions{}, err
	}
	return opts, nil
}
