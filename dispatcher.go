package pulse

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tap30/pulse-go/adapters"
	"github.com/Tap30/pulse-go/channel"
	"github.com/Tap30/pulse-go/codec"
	"github.com/Tap30/pulse-go/errors"
	"github.com/Tap30/pulse-go/value"
)

// Dispatcher owns the call queue and the single worker that sends calls
// over the channel in the order they were queued.
type Dispatcher struct {
	queue         *Queue
	channel       *channel.MethodChannel
	loggerAdapter LoggerAdapter

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	ticker   *time.Ticker
	tickStop chan struct{}
}

// NewDispatcher creates a dispatcher over ch and starts its worker.
func NewDispatcher(ch *channel.MethodChannel, logger LoggerAdapter) *Dispatcher {
	d := &Dispatcher{
		queue:         NewQueue(),
		channel:       ch,
		loggerAdapter: logger,
		stopChan:      make(chan struct{}),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run()
	}()
	return d
}

// Enqueue queues a call. It reports false once the dispatcher is stopped.
func (d *Dispatcher) Enqueue(c *pendingCall) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.queue.Enqueue(c)
	return true
}

func (d *Dispatcher) run() {
	for {
		d.drain()
		select {
		case <-d.queue.Ready():
		case <-d.stopChan:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		c, ok := d.queue.Dequeue()
		if !ok {
			return
		}
		d.execute(c)
	}
}

// execute encodes and sends one call and settles its future.
func (d *Dispatcher) execute(c *pendingCall) {
	payload, err := codec.EncodeMethodCall(codec.ChannelCall{Method: c.method, Arguments: c.args})
	if err != nil {
		if errors.IsKind(err, errors.KindUnserializable) {
			d.loggerAdapter.Warn("Unserializable argument, call rejected", logFields(c, err)...)
			c.future.settle(StateCompleted, value.Null())
			return
		}
		d.loggerAdapter.Error("Failed to encode call", logFields(c, err)...)
		c.future.settle(StateFailed, value.Null())
		return
	}
	c.future.advance(StateEncoded)

	c.future.advance(StateDispatched)
	result, err := d.channel.InvokeEncoded(context.Background(), c.method, payload)
	if err != nil {
		d.logFailure(c, err)
		c.future.settle(StateFailed, value.Null())
		return
	}

	d.loggerAdapter.Debug("Call completed", "method", c.method, "call_id", c.id.String())
	c.future.settle(StateCompleted, result)
}

func (d *Dispatcher) logFailure(c *pendingCall, err error) {
	fields := logFields(c, err)
	switch errors.KindOf(err) {
	case errors.KindUnimplemented:
		d.loggerAdapter.Warn("Method not implemented by backend", fields...)
	case errors.KindInvalidInput, errors.KindNotInitialized:
		d.loggerAdapter.Warn("Backend rejected call", fields...)
	default:
		d.loggerAdapter.Error("Call failed", fields...)
	}
}

// StartFlushTimer enqueues a flush every interval until Stop. Calling it
// again replaces the previous timer.
func (d *Dispatcher) StartFlushTimer(interval time.Duration) {
	if interval <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.stopTimerLocked()

	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	d.ticker, d.tickStop = ticker, stop

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ticker.C:
				d.Enqueue(newPendingCall(adapters.MethodFlush, value.NewMap(), newFuture[struct{}](nil)))
			case <-stop:
				return
			}
		}
	}()
}

func (d *Dispatcher) stopTimerLocked() {
	if d.ticker == nil {
		return
	}
	d.ticker.Stop()
	close(d.tickStop)
	d.ticker, d.tickStop = nil, nil
}

// Stop rejects new calls, runs the calls already queued and waits for the
// worker to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.stopTimerLocked()
	d.mu.Unlock()

	if n := d.queue.Len(); n > 0 {
		d.loggerAdapter.Debug("Draining queued calls", "pending", n)
	}

	close(d.stopChan)
	d.wg.Wait()
}

func newPendingCall(method string, args *value.Map, f tracker) *pendingCall {
	return &pendingCall{id: uuid.New(), method: method, args: args, future: f}
}

// logFields renders the structured diagnostic fields of a failed call.
func logFields(c *pendingCall, err error) []any {
	fields := []any{"method", c.method, "call_id", c.id.String(), "kind", string(errors.KindOf(err))}
	var e *errors.Error
	if asError(err, &e) && len(e.Path) > 0 {
		fields = append(fields, "path", joinPath(e.Path))
	}
	return append(fields, "error", err.Error())
}
