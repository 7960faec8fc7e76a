// Package channel carries encoded method calls between the facade and a
// backend handler.
//
// A MethodChannel encodes a codec.ChannelCall, frames it, hands the frame to
// a Messenger and decodes the reply envelope. On the receiving side the same
// channel type unframes, decodes and passes the call to a Handler. Frames at
// or above a size threshold are snappy compressed.
package channel

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/golang/snappy"

	"github.com/Tap30/pulse-go/codec"
	"github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

// Frame header bytes.
const (
	frameRaw    byte = 0
	frameSnappy byte = 1
)

// DefaultCompressThreshold is the frame size at which compression starts.
const DefaultCompressThreshold = 64 << 10

// Handler processes one decoded call on the backend side.
type Handler interface {
	HandleCall(ctx context.Context, call codec.ChannelCall) (value.Value, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, call codec.ChannelCall) (value.Value, error)

func (f HandlerFunc) HandleCall(ctx context.Context, call codec.ChannelCall) (value.Value, error) {
	return f(ctx, call)
}

// BinaryHandler receives a raw frame and returns the raw reply frame.
type BinaryHandler func(ctx context.Context, frame []byte) ([]byte, error)

// Messenger moves frames to the handler registered under a channel name.
type Messenger interface {
	Send(ctx context.Context, name string, frame []byte) ([]byte, error)
	SetHandler(name string, h BinaryHandler)
}

// LocalMessenger delivers frames in-process. Send runs the handler on the
// calling goroutine, so the sender controls ordering.
type LocalMessenger struct {
	mu       sync.RWMutex
	handlers map[string]BinaryHandler
}

// Ensure LocalMessenger implements Messenger interface
var _ Messenger = (*LocalMessenger)(nil)

// NewLocalMessenger creates an empty in-process messenger.
func NewLocalMessenger() *LocalMessenger {
	return &LocalMessenger{handlers: make(map[string]BinaryHandler)}
}

// SetHandler registers h for name. A nil handler unregisters it.
func (m *LocalMessenger) SetHandler(name string, h BinaryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h == nil {
		delete(m.handlers, name)
		return
	}
	m.handlers[name] = h
}

// Send delivers frame to the handler for name. With no handler registered
// the reply is empty, which the method layer reads as not implemented.
func (m *LocalMessenger) Send(ctx context.Context, name string, frame []byte) ([]byte, error) {
	m.mu.RLock()
	h := m.handlers[name]
	m.mu.RUnlock()
	if h == nil {
		return nil, nil
	}
	return h(ctx, frame)
}

// Options tunes a MethodChannel.
type Options struct {
	// CompressThreshold is the encoded size at which frames are snappy
	// compressed. Zero or less disables compression.
	CompressThreshold int
}

// MethodChannel is a named, codec-aware channel over a Messenger.
type MethodChannel struct {
	name      string
	messenger Messenger
	opts      Options
}

// New creates a method channel.
func New(name string, messenger Messenger, opts Options) *MethodChannel {
	return &MethodChannel{name: name, messenger: messenger, opts: opts}
}

// Name returns the channel name.
func (c *MethodChannel) Name() string {
	return c.name
}

// Invoke sends call and waits for the reply. Failures reported by the
// handler come back as *errors.Error values.
func (c *MethodChannel) Invoke(ctx context.Context, call codec.ChannelCall) (value.Value, error) {
	payload, err := codec.EncodeMethodCall(call)
	if err != nil {
		return value.Value{}, withMethod(err, call.Method)
	}
	return c.InvokeEncoded(ctx, call.Method, payload)
}

// InvokeEncoded sends a payload produced by codec.EncodeMethodCall for
// method and waits for the reply.
func (c *MethodChannel) InvokeEncoded(ctx context.Context, method string, payload []byte) (value.Value, error) {
	reply, err := c.messenger.Send(ctx, c.name, c.frame(payload))
	if err != nil {
		return value.Value{}, errors.New(errors.PhaseDispatch, errors.KindPlatform).
			Method(method).
			Cause(err).
			Build()
	}
	if len(reply) == 0 {
		return value.Value{}, errors.Unimplemented(method)
	}

	body, err := unframe(reply)
	if err != nil {
		return value.Value{}, err
	}
	result, err := codec.DecodeEnvelope(body)
	if err != nil {
		return value.Value{}, withMethod(err, method)
	}
	return result, nil
}

func withMethod(err error, method string) error {
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Method != "" {
		return err
	}
	c := *e
	c.Method = method
	return &c
}

// SetCallHandler binds h as the receiving side of this channel. A nil h
// unbinds it.
func (c *MethodChannel) SetCallHandler(h Handler) {
	if h == nil {
		c.messenger.SetHandler(c.name, nil)
		return
	}
	c.messenger.SetHandler(c.name, func(ctx context.Context, frame []byte) ([]byte, error) {
		return c.handle(ctx, h, frame)
	})
}

func (c *MethodChannel) handle(ctx context.Context, h Handler, frame []byte) ([]byte, error) {
	body, err := unframe(frame)
	if err != nil {
		return c.replyError(err)
	}
	call, err := codec.DecodeMethodCall(body)
	if err != nil {
		return c.replyError(err)
	}

	result, err := h.HandleCall(ctx, call)
	if err != nil {
		return c.replyError(err)
	}

	payload, err := codec.EncodeSuccessEnvelope(result)
	if err != nil {
		return c.replyError(err)
	}
	return c.frame(payload), nil
}

func (c *MethodChannel) replyError(err error) ([]byte, error) {
	payload, encErr := codec.EncodeError(err)
	if encErr != nil {
		return nil, fmt.Errorf("channel %s: encode error reply: %w", c.name, encErr)
	}
	return c.frame(payload), nil
}

func (c *MethodChannel) frame(payload []byte) []byte {
	if c.opts.CompressThreshold > 0 && len(payload) >= c.opts.CompressThreshold {
		out := make([]byte, 1, 1+snappy.MaxEncodedLen(len(payload)))
		out[0] = frameSnappy
		return append(out, snappy.Encode(nil, payload)...)
	}
	out := make([]byte, 0, 1+len(payload))
	out = append(out, frameRaw)
	return append(out, payload...)
}

func unframe(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, errors.Malformed(0, "empty frame")
	}
	switch frame[0] {
	case frameRaw:
		return frame[1:], nil
	case frameSnappy:
		body, err := snappy.Decode(nil, frame[1:])
		if err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindMalformedPayload).
				Detail("snappy decompress failed").
				Cause(err).
				Build()
		}
		return body, nil
	}
	return nil, errors.Malformed(0, "unknown frame header %d", frame[0])
}
