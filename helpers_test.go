package pulse

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Tap30/pulse-go/adapters"
)

func newTestClient(t *testing.T, mutate ...func(*ClientConfig)) (*Client, *adapters.RecordingAdapter, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	rec := adapters.NewRecordingAdapter()

	cfg := ClientConfig{}
	cfg.Adapters.Backend = rec
	cfg.Adapters.Logger = adapters.NewZapLoggerAdapter(zap.New(core))
	for _, m := range mutate {
		m(&cfg)
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(client.Dispose)
	return client, rec, logs
}

func initialized(t *testing.T, mutate ...func(*ClientConfig)) (*Client, *adapters.RecordingAdapter, *observer.ObservedLogs) {
	t.Helper()
	client, rec, logs := newTestClient(t, mutate...)
	if s := await(t, client.Initialize("test-token", nil)); s != StateCompleted {
		t.Fatalf("expected initialize to complete, got %s", s)
	}
	rec.Clear()
	return client, rec, logs
}

func await[T any](t *testing.T, f *Future[T]) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s := f.Wait(ctx)
	if !s.Terminal() {
		t.Fatalf("future did not settle, state %s", s)
	}
	return s
}
