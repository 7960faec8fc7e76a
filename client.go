package pulse

import (
	"fmt"
	"sync"

	"github.com/Tap30/pulse-go/adapters"
	"github.com/Tap30/pulse-go/channel"
	"github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

// Client is the analytics facade. Every operation returns immediately with
// a Future; calls reach the backend in the order they were made. No
// operation panics or reports an error to the caller: problems go to the
// logger.
type Client struct {
	config        ClientConfig
	metadata      LibraryMetadata
	loggerAdapter LoggerAdapter
	channel       *channel.MethodChannel
	dispatcher    *Dispatcher

	mu          sync.RWMutex
	initialized bool
	disposed    bool
	backend     Adapter
}

// NewClient validates config, fills defaults and starts the dispatcher. The
// backend is selected later, by Initialize.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Resolve()

	client := &Client{
		config:   config,
		metadata: NewLibraryMetadata(LibName, LibVersion),
	}

	// Use provided logger or default
	if config.Adapters.Logger != nil {
		client.loggerAdapter = config.Adapters.Logger
	} else {
		logger, err := adapters.NewProductionLoggerAdapter(config.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
		client.loggerAdapter = logger
	}

	messenger := config.Adapters.Messenger
	if messenger == nil {
		messenger = channel.NewLocalMessenger()
	}
	client.channel = channel.New(config.ChannelName, messenger, channel.Options{
		CompressThreshold: config.CompressThreshold,
	})
	client.dispatcher = NewDispatcher(client.channel, client.loggerAdapter)
	return client, nil
}

// selectAdapter picks the backend for the configured platform.
func (c *Client) selectAdapter() Adapter {
	if c.config.Adapters.Backend != nil {
		return c.config.Adapters.Backend
	}
	platform := c.config.Platform
	if platform == PlatformAuto {
		platform = DetectPlatform()
	}
	switch platform {
	case PlatformNative:
		return adapters.NewNativeAdapter(c.config.Adapters.Native)
	case PlatformBrowser:
		return adapters.NewBrowserAdapter(c.config.Adapters.Script)
	}
	return adapters.NewNoOpAdapter()
}

// Initialize binds the backend and starts it with token. config holds
// backend specific settings passed through untouched. A blank token leaves
// the client uninitialized; a second call is ignored.
func (c *Client) Initialize(token string, config map[string]any) *Future[struct{}] {
	f := newFuture[struct{}](nil)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.disposed:
		c.loggerAdapter.Warn("Client disposed, call ignored", "method", adapters.MethodInitialize)
		f.settle(StateCompleted, value.Null())
		return f
	case c.initialized:
		c.loggerAdapter.Warn("Client already initialized, call ignored", "method", adapters.MethodInitialize)
		f.settle(StateCompleted, value.Null())
		return f
	}

	b := newCallArgs(adapters.MethodInitialize)
	b.identifier(adapters.ArgToken, token)
	b.properties(adapters.ArgConfig, config)
	b.properties(adapters.ArgSuperProperties, c.config.SuperProperties)
	b.set(adapters.ArgOptOutTrackingDefault, value.Bool(c.config.OptOutTrackingDefault))
	b.set(adapters.ArgTrackAutomaticEvents, value.Bool(c.config.TrackAutomaticEvents))
	b.set(adapters.ArgServerURL, value.String(c.config.ServerURL))
	b.set(adapters.ArgLibraryProperties, value.MapValue(c.metadata.Map()))
	if b.err != nil {
		c.logRejected(b.method, b.err)
		f.settle(StateCompleted, value.Null())
		return f
	}
	f.advance(StateValidated)
	f.advance(StateMerged)

	if c.config.Adapters.Messenger == nil {
		c.backend = c.selectAdapter()
		c.channel.SetCallHandler(adapters.NewRouter(c.backend))
	}
	c.initialized = true

	c.enqueue(newPendingCall(b.method, b.args, f))
	c.dispatcher.StartFlushTimer(c.config.FlushInterval)
	c.loggerAdapter.Info("Client initialized", "channel", c.channel.Name())
	return f
}

// submit validates and queues one call. build fills the arguments; decode
// turns the backend result into T.
func submit[T any](c *Client, method string, build func(*callArgs), decode func(value.Value) T) *Future[T] {
	f := newFuture(decode)

	c.mu.RLock()
	initialized, disposed := c.initialized, c.disposed
	c.mu.RUnlock()
	if disposed {
		c.loggerAdapter.Warn("Client disposed, call ignored", "method", method)
		f.settle(StateCompleted, value.Null())
		return f
	}
	if !initialized {
		c.loggerAdapter.Warn("Client not initialized, call ignored", "method", method)
		f.settle(StateCompleted, value.Null())
		return f
	}

	b := newCallArgs(method)
	if build != nil {
		build(b)
	}
	if b.err != nil {
		c.logRejected(method, b.err)
		f.settle(StateCompleted, value.Null())
		return f
	}
	f.advance(StateValidated)

	b.merge(c.metadata)
	f.advance(StateMerged)

	c.enqueue(newPendingCall(method, b.args, f))
	return f
}

func (c *Client) enqueue(p *pendingCall) {
	if !c.dispatcher.Enqueue(p) {
		c.loggerAdapter.Warn("Client disposed, call ignored", "method", p.method)
		p.future.settle(StateCompleted, value.Null())
	}
}

// logRejected reports a call dropped before dispatch.
func (c *Client) logRejected(method string, err error) {
	fields := []any{"method", method, "kind", string(errors.KindOf(err))}
	var e *errors.Error
	if asError(err, &e) && len(e.Path) > 0 {
		fields = append(fields, "path", joinPath(e.Path))
	}
	fields = append(fields, "error", err.Error())

	if errors.IsKind(err, errors.KindUnserializable) {
		c.loggerAdapter.Warn("Unserializable argument, call rejected", fields...)
		return
	}
	c.loggerAdapter.Warn("Invalid input, call ignored", fields...)
}

func (c *Client) Track(event string, props map[string]any) *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodTrack, func(b *callArgs) {
		b.identifier(adapters.ArgEventName, event)
		b.merged(adapters.ArgProperties, props)
	}, nil)
}

// TrackWithGroups tracks event attributed to groups, a map of group key to
// group id or list of ids.
func (c *Client) TrackWithGroups(event string, props, groups map[string]any) *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodTrackWithGroups, func(b *callArgs) {
		b.identifier(adapters.ArgEventName, event)
		b.merged(adapters.ArgProperties, props)
		b.properties(adapters.ArgGroups, groups)
	}, nil)
}

// TimeEvent starts a timer that the next Track of event stops.
func (c *Client) TimeEvent(event string) *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodTimeEvent, func(b *callArgs) {
		b.identifier(adapters.ArgEventName, event)
	}, nil)
}

func (c *Client) Identify(distinctID string) *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodIdentify, func(b *callArgs) {
		b.identifier(adapters.ArgDistinctID, distinctID)
	}, nil)
}

func (c *Client) Alias(alias, distinctID string) *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodAlias, func(b *callArgs) {
		b.identifier(adapters.ArgAlias, alias)
		b.identifier(adapters.ArgDistinctID, distinctID)
	}, nil)
}

func (c *Client) RegisterSuperProperties(props map[string]any) *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodRegisterSuperProperties, func(b *callArgs) {
		b.properties(adapters.ArgProperties, props)
	}, nil)
}

func (c *Client) RegisterSuperPropertiesOnce(props map[string]any) *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodRegisterSuperPropertiesOnce, func(b *callArgs) {
		b.properties(adapters.ArgProperties, props)
	}, nil)
}

func (c *Client) UnregisterSuperProperty(name string) *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodUnregisterSuperProperty, func(b *callArgs) {
		b.identifier(adapters.ArgPropertyName, name)
	}, nil)
}

func (c *Client) ClearSuperProperties() *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodClearSuperProperties, nil, nil)
}

// SetGroup makes the user a member of exactly the groups in id, a single
// id or a list of ids.
func (c *Client) SetGroup(groupKey string, id any) *Future[struct{}] {
	return c.membership(adapters.MethodSetGroup, groupKey, id)
}

func (c *Client) AddGroup(groupKey string, id any) *Future[struct{}] {
	return c.membership(adapters.MethodAddGroup, groupKey, id)
}

func (c *Client) RemoveGroup(groupKey string, id any) *Future[struct{}] {
	return c.membership(adapters.MethodRemoveGroup, groupKey, id)
}

func (c *Client) membership(method, groupKey string, id any) *Future[struct{}] {
	return submit[struct{}](c, method, func(b *callArgs) {
		b.identifier(adapters.ArgGroupKey, groupKey)
		b.value(adapters.ArgGroupID, id)
	}, nil)
}

func (c *Client) OptOutTracking() *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodOptOutTracking, nil, nil)
}

func (c *Client) OptInTracking() *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodOptInTracking, nil, nil)
}

func (c *Client) HasOptedOutTracking() *Future[bool] {
	return submit(c, adapters.MethodHasOptedOutTracking, nil, decodeBool)
}

func (c *Client) GetDistinctID() *Future[string] {
	return submit(c, adapters.MethodGetDistinctID, nil, decodeString)
}

// Flush asks the backend to send what it buffered. It covers every call
// queued before it.
func (c *Client) Flush() *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodFlush, nil, nil)
}

// Reset clears the identity and super properties held by the backend.
func (c *Client) Reset() *Future[struct{}] {
	return submit[struct{}](c, adapters.MethodReset, nil, nil)
}

// GetPeople returns the profile handle of the current user.
func (c *Client) GetPeople() *People {
	return &People{client: c}
}

// GetGroup returns the profile handle of group id under groupKey.
func (c *Client) GetGroup(groupKey string, id any) *Group {
	return &Group{client: c, key: groupKey, id: id}
}

// Dispose runs the calls already queued, stops the worker and unbinds the
// backend. Later calls are logged and ignored.
func (c *Client) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.mu.Unlock()

	c.dispatcher.Stop()
	if c.config.Adapters.Messenger == nil {
		c.channel.SetCallHandler(nil)
	}
	if s, ok := c.loggerAdapter.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}
