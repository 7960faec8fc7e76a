package pulse

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Tap30/pulse-go/adapters"
	"github.com/Tap30/pulse-go/channel"
	"github.com/Tap30/pulse-go/codec"
	"github.com/Tap30/pulse-go/value"
)

func argMap(t *testing.T, call adapters.Call, key string) *value.Map {
	t.Helper()
	v, ok := call.Arguments.Get(key)
	if !ok {
		t.Fatalf("%s: missing argument %s", call.Method, key)
	}
	m, ok := v.Map()
	if !ok {
		t.Fatalf("%s: argument %s is %s, not a map", call.Method, key, v.Kind())
	}
	return m
}

func TestNewClient(t *testing.T) {
	t.Run("should reject invalid config", func(t *testing.T) {
		_, err := NewClient(ClientConfig{Platform: "desktop"})
		if err == nil {
			t.Fatal("expected error for invalid platform")
		}
	})

	t.Run("should fill defaults", func(t *testing.T) {
		client, _, _ := newTestClient(t)
		if client.config.ChannelName != DefaultChannelName {
			t.Fatalf("expected default channel name, got %s", client.config.ChannelName)
		}
		if client.config.CompressThreshold != channel.DefaultCompressThreshold {
			t.Fatalf("expected default compress threshold, got %d", client.config.CompressThreshold)
		}
	})
}

func TestClient_Initialize(t *testing.T) {
	t.Run("should pass token, config and library metadata", func(t *testing.T) {
		client, rec, _ := newTestClient(t, func(c *ClientConfig) {
			c.OptOutTrackingDefault = true
			c.ServerURL = "https://api-eu.example.com"
			c.SuperProperties = map[string]any{"app": "shop"}
		})

		s := await(t, client.Initialize("tok", map[string]any{"batch_size": 50}))
		if s != StateCompleted {
			t.Fatalf("expected completed, got %s", s)
		}

		calls := rec.Calls()
		if len(calls) != 1 || calls[0].Method != adapters.MethodInitialize {
			t.Fatalf("expected one initialize call, got %v", rec.Methods())
		}
		tok, _ := calls[0].Arguments.Get(adapters.ArgToken)
		if s, _ := tok.Str(); s != "tok" {
			t.Fatalf("expected token, got %v", tok)
		}
		lib := argMap(t, calls[0], adapters.ArgLibraryProperties)
		if v, _ := lib.Get(MetaLib); !v.Equal(value.String(LibName)) {
			t.Fatalf("expected %s, got %v", LibName, v)
		}
		super := argMap(t, calls[0], adapters.ArgSuperProperties)
		if !super.Has("app") {
			t.Fatalf("expected super properties, got %v", super)
		}
		if out := await(t, client.HasOptedOutTracking()); out != StateCompleted {
			t.Fatalf("expected completed, got %s", out)
		}
		if !client.HasOptedOutTracking().Get(context.Background()) {
			t.Fatal("expected opt out default passed to backend")
		}
	})

	t.Run("should ignore calls before initialize", func(t *testing.T) {
		client, rec, logs := newTestClient(t)
		f := client.Track("early", nil)
		if s := await(t, f); s != StateCompleted {
			t.Fatalf("expected completed no-op, got %s", s)
		}
		if len(rec.Calls()) != 0 {
			t.Fatal("expected backend untouched")
		}
		if logs.FilterMessage("Client not initialized, call ignored").Len() != 1 {
			t.Fatal("expected not initialized diagnostic")
		}
	})

	t.Run("should stay uninitialized after a blank token", func(t *testing.T) {
		client, rec, logs := newTestClient(t)
		await(t, client.Initialize("   ", nil))
		await(t, client.Track("after", nil))

		if len(rec.Calls()) != 0 {
			t.Fatalf("expected backend untouched, got %v", rec.Methods())
		}
		if logs.FilterMessage("Invalid input, call ignored").Len() != 1 {
			t.Fatal("expected invalid token diagnostic")
		}
	})

	t.Run("should ignore a second initialize", func(t *testing.T) {
		client, rec, logs := initialized(t)
		await(t, client.Initialize("other", nil))
		if len(rec.Calls()) != 0 {
			t.Fatalf("expected no new calls, got %v", rec.Methods())
		}
		if logs.FilterMessage("Client already initialized, call ignored").Len() != 1 {
			t.Fatal("expected already initialized diagnostic")
		}
	})
}

func TestClient_Validation(t *testing.T) {
	client, rec, logs := initialized(t)

	cases := map[string]*Future[struct{}]{
		"blank event":         client.Track("", nil),
		"whitespace event":    client.Track(" \t", map[string]any{"a": 1}),
		"blank distinct id":   client.Identify(""),
		"blank alias":         client.Alias(" ", "user"),
		"blank property name": client.UnregisterSuperProperty(""),
		"blank group key":     client.SetGroup("", "acme"),
		"nil group id":        client.AddGroup("company", nil),
		"blank people name":   client.GetPeople().Append("", 1),
		"blank group profile": client.GetGroup(" ", "acme").Set(nil),
	}
	for name, f := range cases {
		t.Run("should ignore "+name, func(t *testing.T) {
			if s := await(t, f); s != StateCompleted {
				t.Fatalf("expected completed no-op, got %s", s)
			}
		})
	}

	await(t, client.Flush())
	if got := rec.Methods(); len(got) != 1 || got[0] != adapters.MethodFlush {
		t.Fatalf("expected only the flush to reach the backend, got %v", got)
	}
	if n := logs.FilterMessage("Invalid input, call ignored").Len(); n != len(cases) {
		t.Fatalf("expected %d diagnostics, got %d", len(cases), n)
	}
}

func TestClient_Unserializable(t *testing.T) {
	client, rec, logs := initialized(t)

	cyclic := map[string]any{"name": "x"}
	cyclic["self"] = cyclic

	await(t, client.Track("cyclic", map[string]any{"nested": cyclic}))
	await(t, client.Track("opaque", map[string]any{"cart": []any{"ok", make(chan int)}}))
	await(t, client.Flush())

	if got := rec.Methods(); len(got) != 1 {
		t.Fatalf("expected rejected calls to stay local, got %v", got)
	}

	entries := logs.FilterMessage("Unserializable argument, call rejected").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(entries))
	}
	fields := entries[1].ContextMap()
	if fields["path"] != "properties.cart.1" || fields["method"] != adapters.MethodTrack {
		t.Fatalf("expected failing key path, got %v", fields)
	}
}

func TestClient_CyclicValues(t *testing.T) {
	client, rec, logs := initialized(t)

	self := value.NewMap()
	self.Set("self", value.MapValue(self))
	items := make([]value.Value, 1)
	list := value.List(items...)
	items[0] = list

	cases := []struct {
		name string
		call func() *Future[struct{}]
	}{
		{"track", func() *Future[struct{}] { return client.Track("cyclic", map[string]any{"nested": self}) }},
		{"track with groups", func() *Future[struct{}] {
			return client.TrackWithGroups("cyclic", map[string]any{"nested": self}, nil)
		}},
		{"people set", func() *Future[struct{}] { return client.GetPeople().Set(map[string]any{"nested": self}) }},
		{"people set once", func() *Future[struct{}] { return client.GetPeople().SetOnce(map[string]any{"nested": self}) }},
		{"register", func() *Future[struct{}] { return client.RegisterSuperProperties(map[string]any{"nested": self}) }},
		{"list", func() *Future[struct{}] { return client.Track("cyclic", map[string]any{"items": list}) }},
		{"invalid utf8", func() *Future[struct{}] { return client.Track("bytes", map[string]any{"s": "\xff"}) }},
		{"invalid utf8 key", func() *Future[struct{}] { return client.Track("bytes", map[string]any{"\xfe": 1}) }},
	}
	for _, tc := range cases {
		t.Run("should reject "+tc.name+" without crashing", func(t *testing.T) {
			if s := await(t, tc.call()); s != StateCompleted {
				t.Fatalf("expected completed no-op, got %s", s)
			}
		})
	}

	await(t, client.Flush())
	if got := rec.Methods(); len(got) != 1 || got[0] != adapters.MethodFlush {
		t.Fatalf("expected rejected calls to stay local, got %v", got)
	}
	entries := logs.FilterMessage("Unserializable argument, call rejected").All()
	if len(entries) != len(cases) {
		t.Fatalf("expected %d diagnostics, got %d", len(cases), len(entries))
	}
	if fields := entries[0].ContextMap(); fields["path"] != "properties.nested.self" {
		t.Fatalf("expected cycle path, got %v", fields)
	}
	if logs.FilterMessage("Failed to encode call").Len() != 0 {
		t.Fatal("expected no encode defects")
	}
}

func TestClient_MetadataMerge(t *testing.T) {
	client, rec, _ := initialized(t)

	await(t, client.Track("checkout", map[string]any{"price": 9.5, MetaLib: "spoofed"}))
	await(t, client.GetPeople().Set(map[string]any{"plan": "pro"}))
	await(t, client.RegisterSuperProperties(map[string]any{"tier": "gold"}))

	calls := rec.Calls()
	track := argMap(t, calls[0], adapters.ArgProperties)
	if got := strings.Join(track.Keys(), ","); got != "mp_lib,price,$lib_version" {
		t.Fatalf("unexpected track keys %s", got)
	}
	if v, _ := track.Get(MetaLib); !v.Equal(value.String(LibName)) {
		t.Fatalf("expected library metadata to win, got %v", v)
	}

	people := argMap(t, calls[1], adapters.ArgProperties)
	if !people.Has(MetaLibVersion) {
		t.Fatalf("expected metadata on people set, got %v", people)
	}

	super := argMap(t, calls[2], adapters.ArgProperties)
	if super.Has(MetaLibVersion) {
		t.Fatalf("expected no metadata on super properties, got %v", super)
	}
}

func TestClient_Order(t *testing.T) {
	client, rec, _ := initialized(t)

	var last *Future[struct{}]
	for i := 0; i < 50; i++ {
		last = client.Track("event", map[string]any{"seq": i})
	}
	client.Identify("user-1")
	await(t, last)
	await(t, client.Flush())

	calls := rec.Calls()
	if len(calls) != 52 {
		t.Fatalf("expected 52 calls, got %d", len(calls))
	}
	for i := 0; i < 50; i++ {
		seq, _ := argMap(t, calls[i], adapters.ArgProperties).Get("seq")
		if !seq.Equal(value.Number(float64(i))) {
			t.Fatalf("call %d out of order: %v", i, seq)
		}
	}
	if calls[50].Method != adapters.MethodIdentify || calls[51].Method != adapters.MethodFlush {
		t.Fatalf("expected identify then flush, got %v", rec.Methods()[50:])
	}
}

func TestClient_Queries(t *testing.T) {
	client, rec, _ := initialized(t)
	ctx := context.Background()

	await(t, client.Identify("user-42"))
	if id := client.GetDistinctID().Get(ctx); id != "user-42" {
		t.Fatalf("expected user-42, got %q", id)
	}

	await(t, client.OptOutTracking())
	if !client.HasOptedOutTracking().Get(ctx) {
		t.Fatal("expected opted out")
	}
	await(t, client.OptInTracking())
	if client.HasOptedOutTracking().Get(ctx) {
		t.Fatal("expected opted in")
	}

	await(t, client.Reset())
	if id := client.GetDistinctID().Get(ctx); id != "" {
		t.Fatalf("expected reset id, got %q", id)
	}
	if len(rec.Calls()) == 0 {
		t.Fatal("expected recorded calls")
	}
}

func TestClient_Profiles(t *testing.T) {
	client, rec, _ := initialized(t)

	people := client.GetPeople()
	await(t, people.SetOnce(map[string]any{"first_seen": time.UnixMilli(1000)}))
	await(t, people.Increment(map[string]any{"visits": 1}))
	await(t, people.Append("history", "home"))
	await(t, people.Union("tags", []any{"a", "b"}))
	await(t, people.Remove("tags", "a"))
	await(t, people.Unset("legacy"))
	await(t, people.DeleteUser())

	group := client.GetGroup("company", "acme")
	await(t, group.Set(map[string]any{"plan": "pro"}))
	await(t, group.SetOnce(map[string]any{"founded": 1999}))
	await(t, group.Union("regions", []any{"eu"}))
	await(t, group.Remove("regions", "us"))
	await(t, group.Unset("legacy"))
	await(t, group.DeleteGroup())

	await(t, client.SetGroup("company", []any{"acme", "globex"}))
	await(t, client.AddGroup("company", "initech"))
	await(t, client.RemoveGroup("company", "globex"))
	await(t, client.TrackWithGroups("report", nil, map[string]any{"company": "acme"}))

	want := []string{
		"setOnce", "increment", "append", "union", "remove", "unset", "deleteUser",
		"groupSetProperties", "groupSetPropertyOnce", "groupUnionProperty",
		"groupRemovePropertyValue", "groupUnsetProperty", "deleteGroup",
		"setGroup", "addGroup", "removeGroup", "trackWithGroups",
	}
	if got := strings.Join(rec.Methods(), ","); got != strings.Join(want, ",") {
		t.Fatalf("unexpected methods\n got %s\nwant %s", got, strings.Join(want, ","))
	}

	calls := rec.Calls()
	first := argMap(t, calls[0], adapters.ArgProperties)
	if v, _ := first.Get("first_seen"); !v.Equal(value.Timestamp(1000)) {
		t.Fatalf("expected timestamp property, got %v", v)
	}
	unsetProps := argMap(t, calls[5], adapters.ArgProperties)
	if v, ok := unsetProps.Get("legacy"); !ok || !v.IsNull() {
		t.Fatalf("expected unset name with null value, got %v", unsetProps)
	}
	id, _ := calls[7].Arguments.Get(adapters.ArgGroupID)
	if !id.Equal(value.String("acme")) {
		t.Fatalf("expected group id, got %v", id)
	}
}

// unknownBackend answers every call as not implemented.
type unknownBackend struct{}

func (unknownBackend) HandleCall(_ context.Context, call codec.ChannelCall) (value.Value, error) {
	return adapters.NewRouter(adapters.NewNoOpAdapter()).HandleCall(context.Background(), codec.ChannelCall{
		Method:    "x-" + call.Method,
		Arguments: call.Arguments,
	})
}

func TestClient_UnknownMethod(t *testing.T) {
	messenger := channel.NewLocalMessenger()
	channel.New(DefaultChannelName, messenger, channel.Options{}).SetCallHandler(unknownBackend{})

	client, _, logs := newTestClient(t, func(c *ClientConfig) {
		c.Adapters.Backend = nil
		c.Adapters.Messenger = messenger
	})

	f := client.Initialize("tok", nil)
	if s := await(t, f); s != StateFailed {
		t.Fatalf("expected failed, got %s", s)
	}
	entries := logs.FilterMessage("Method not implemented by backend").All()
	if len(entries) != 1 {
		t.Fatalf("expected unimplemented diagnostic, got %d", len(entries))
	}
	if entries[0].ContextMap()["kind"] != "unimplemented" {
		t.Fatalf("unexpected fields %v", entries[0].ContextMap())
	}
}

func TestClient_RemoteMessenger(t *testing.T) {
	messenger := channel.NewLocalMessenger()
	rec := adapters.NewRecordingAdapter()
	channel.New("remote", messenger, channel.Options{}).SetCallHandler(adapters.NewRouter(rec))

	client, _, _ := newTestClient(t, func(c *ClientConfig) {
		c.Adapters.Backend = nil
		c.Adapters.Messenger = messenger
		c.ChannelName = "remote"
	})
	await(t, client.Initialize("tok", nil))
	await(t, client.Track("hello", nil))

	if got := strings.Join(rec.Methods(), ","); got != "initialize,track" {
		t.Fatalf("expected calls on the remote backend, got %s", got)
	}
}

func TestClient_LargePayload(t *testing.T) {
	client, rec, _ := initialized(t, func(c *ClientConfig) {
		c.CompressThreshold = 4096
	})
	big := strings.Repeat("abcdefghij", 100000)

	if s := await(t, client.Track("upload", map[string]any{"blob": big})); s != StateCompleted {
		t.Fatalf("expected completed, got %s", s)
	}
	v, _ := argMap(t, rec.Calls()[0], adapters.ArgProperties).Get("blob")
	if s, _ := v.Str(); s != big {
		t.Fatalf("expected 1000000 characters intact, got %d", len(s))
	}
}

// frameRecorder records the header byte of every frame it forwards.
type frameRecorder struct {
	*channel.LocalMessenger
	headers []byte
}

func (r *frameRecorder) Send(ctx context.Context, name string, frame []byte) ([]byte, error) {
	r.headers = append(r.headers, frame[0])
	return r.LocalMessenger.Send(ctx, name, frame)
}

func TestClient_CompressionDisabled(t *testing.T) {
	messenger := &frameRecorder{LocalMessenger: channel.NewLocalMessenger()}
	rec := adapters.NewRecordingAdapter()
	channel.New(DefaultChannelName, messenger, channel.Options{}).SetCallHandler(adapters.NewRouter(rec))

	client, _, _ := newTestClient(t, func(c *ClientConfig) {
		c.Adapters.Backend = nil
		c.Adapters.Messenger = messenger
		c.CompressThreshold = -1
	})
	if client.config.CompressThreshold != -1 {
		t.Fatalf("expected threshold kept, got %d", client.config.CompressThreshold)
	}
	await(t, client.Initialize("tok", nil))
	big := strings.Repeat("abcdefghij", 100000)
	if s := await(t, client.Track("upload", map[string]any{"blob": big})); s != StateCompleted {
		t.Fatalf("expected completed, got %s", s)
	}

	if len(messenger.headers) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(messenger.headers))
	}
	for _, h := range messenger.headers {
		if h != 0 {
			t.Fatalf("expected raw frames, got header %d", h)
		}
	}
	if len(rec.Calls()) != 2 {
		t.Fatalf("expected calls delivered, got %v", rec.Methods())
	}
}

func TestClient_Dispose(t *testing.T) {
	client, rec, logs := initialized(t)

	var pending []*Future[struct{}]
	for i := 0; i < 20; i++ {
		pending = append(pending, client.Track("queued", nil))
	}
	client.Dispose()

	for _, f := range pending {
		if f.State() != StateCompleted {
			t.Fatalf("expected queued calls drained, got %s", f.State())
		}
	}
	if len(rec.Calls()) != 20 {
		t.Fatalf("expected 20 calls delivered, got %d", len(rec.Calls()))
	}

	await(t, client.Track("late", nil))
	if len(rec.Calls()) != 20 {
		t.Fatal("expected late call ignored")
	}
	if logs.FilterMessage("Client disposed, call ignored").Len() != 1 {
		t.Fatal("expected disposed diagnostic")
	}
	client.Dispose()
}

func TestClient_FlushInterval(t *testing.T) {
	client, rec, _ := initialized(t, func(c *ClientConfig) {
		c.FlushInterval = 10 * time.Millisecond
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, m := range rec.Methods() {
			if m == adapters.MethodFlush {
				client.Dispose()
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected a periodic flush")
}

func TestClient_FailedBackend(t *testing.T) {
	client, _, logs := newTestClient(t, func(c *ClientConfig) {
		c.Adapters.Backend = nil
		c.Platform = PlatformNative
		c.Adapters.Native = func(NativeOptions) (NativeSDK, error) {
			return nil, context.DeadlineExceeded
		}
	})

	if s := await(t, client.Initialize("tok", nil)); s != StateFailed {
		t.Fatalf("expected failed initialize, got %s", s)
	}
	if s := await(t, client.Track("x", nil)); s != StateFailed {
		t.Fatalf("expected failed track, got %s", s)
	}
	if logs.FilterMessage("Call failed").Len() != 1 {
		t.Fatal("expected platform failure diagnostic")
	}
	if logs.FilterMessage("Backend rejected call").Len() != 1 {
		t.Fatal("expected not initialized diagnostic")
	}
}
