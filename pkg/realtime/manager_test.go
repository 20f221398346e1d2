package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClient struct {
	mu       sync.Mutex
	handlers ClientHandlers

	channel string
	token   string
	onPub   func(json.RawMessage)

	connectErr error
	closed     bool
}

func (c *fakeClient) Subscribe(channel, token string, onPublication func(json.RawMessage)) {
	c.channel, c.token, c.onPub = channel, token, onPublication
}

func (c *fakeClient) Connect(context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	if c.handlers.OnConnected != nil {
		c.handlers.OnConnected()
	}
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) record(s Status, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) count(s Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.statuses {
		if got == s {
			n++
		}
	}
	return n
}

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"connectionToken":"ct","subscriptionToken":"st"}`))
	}))
}

func newTestManager(t *testing.T, rec *statusRecorder) (*Manager, *int) {
	t.Helper()
	srv := newTokenServer(t)
	t.Cleanup(srv.Close)

	factoryCalls := 0
	cfg := Config{
		RoomID:         "42",
		UserIdentifier: "+77011234567",
		UserName:       "Aisha",
		ChatAPIURL:     srv.URL,
		RealtimeURL:    "ws://unused",
		NewClient: func(url, token string, h ClientHandlers) Client {
			factoryCalls++
			return &fakeClient{handlers: h, token: token}
		},
	}
	if rec != nil {
		cfg.OnStatusChange = rec.record
	}
	return New(cfg), &factoryCalls
}

func TestConnectIdempotent(t *testing.T) {
	rec := &statusRecorder{}
	m, calls := newTestManager(t, rec)

	m.Connect(context.Background())
	m.Connect(context.Background())

	if *calls != 1 {
		t.Fatalf("expected one client build, got %d", *calls)
	}
	if !m.IsConnected() {
		t.Fatal("manager should report connected")
	}
	if rec.count(StatusConnected) != 1 {
		t.Fatalf("expected one connected status, got %d", rec.count(StatusConnected))
	}
}

func TestSubscribeChannelName(t *testing.T) {
	srv := newTokenServer(t)
	defer srv.Close()

	var got *fakeClient
	m := New(Config{
		RoomID:         "42",
		UserIdentifier: "u@x.kz",
		ChatAPIURL:     srv.URL,
		NewClient: func(url, token string, h ClientHandlers) Client {
			got = &fakeClient{handlers: h}
			return got
		},
	})
	m.Connect(context.Background())

	if got == nil {
		t.Fatal("client never built")
	}
	if got.channel != "webinar:42:chat" {
		t.Fatalf("channel = %q", got.channel)
	}
	if got.token != "st" {
		t.Fatalf("subscription token = %q", got.token)
	}
}

func TestReconnectBackoffSequence(t *testing.T) {
	rec := &statusRecorder{}
	m, _ := newTestManager(t, rec)

	var delays []time.Duration
	m.after = func(d time.Duration, _ func()) *time.Timer {
		delays = append(delays, d)
		return time.NewTimer(time.Hour) // не срабатывает в тесте
	}

	// шесть обрывов подряд без успешного connected между ними
	for i := 0; i < 6; i++ {
		m.onDisconnected(errors.New("drop"))
	}

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}
	if len(delays) != len(want) {
		t.Fatalf("expected %d scheduled retries, got %d", len(want), len(delays))
	}
	for i, d := range want {
		if delays[i] != d {
			t.Fatalf("retry %d: delay = %v, want %v", i+1, delays[i], d)
		}
	}
}

func TestReconnectCounterResetsOnConnected(t *testing.T) {
	m, _ := newTestManager(t, nil)

	var delays []time.Duration
	m.after = func(d time.Duration, _ func()) *time.Timer {
		delays = append(delays, d)
		return time.NewTimer(time.Hour)
	}

	m.onDisconnected(errors.New("drop"))
	m.onDisconnected(errors.New("drop"))
	m.onConnected()
	m.onDisconnected(errors.New("drop"))

	if delays[len(delays)-1] != time.Second {
		t.Fatalf("delay after reset = %v, want 1s", delays[len(delays)-1])
	}
}

func TestDestroyStopsReconnects(t *testing.T) {
	rec := &statusRecorder{}
	m, _ := newTestManager(t, rec)

	scheduled := 0
	m.after = func(d time.Duration, _ func()) *time.Timer {
		scheduled++
		return time.NewTimer(time.Hour)
	}

	m.Destroy()
	m.onDisconnected(errors.New("drop"))

	if scheduled != 0 {
		t.Fatalf("reconnect scheduled after destroy")
	}

	// Connect после Destroy — no-op
	m.Connect(context.Background())
	if m.IsConnected() {
		t.Fatal("destroyed manager must not connect")
	}
}

func TestDestroyDiscardsLateTokenResponse(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"connectionToken":"ct","subscriptionToken":"st"}`))
	}))
	defer srv.Close()

	factoryCalls := 0
	m := New(Config{
		RoomID:         "42",
		UserIdentifier: "u@x.kz",
		ChatAPIURL:     srv.URL,
		NewClient: func(url, token string, h ClientHandlers) Client {
			factoryCalls++
			return &fakeClient{handlers: h}
		},
	})

	done := make(chan struct{})
	go func() {
		m.Connect(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond) // Connect висит на fetchTokens
	m.Destroy()
	close(release)
	<-done

	if factoryCalls != 0 {
		t.Fatal("client built from a token response that arrived after Destroy")
	}
}

func TestDisconnectSafeAndAnnounces(t *testing.T) {
	rec := &statusRecorder{}
	m, _ := newTestManager(t, rec)

	// ни разу не подключались
	m.Disconnect()
	m.Disconnect()

	if got := rec.count(StatusDisconnected); got != 2 {
		t.Fatalf("disconnected announced %d times, want 2", got)
	}
}

func TestIsConnectedRequiresIdentifier(t *testing.T) {
	srv := newTokenServer(t)
	defer srv.Close()

	m := New(Config{
		RoomID:     "42",
		ChatAPIURL: srv.URL,
		NewClient: func(url, token string, h ClientHandlers) Client {
			return &fakeClient{handlers: h}
		},
	})
	m.Connect(context.Background())

	if m.IsConnected() {
		t.Fatal("empty identifier must report not connected")
	}
}

func TestPublicationDispatch(t *testing.T) {
	srv := newTokenServer(t)
	defer srv.Close()

	var (
		mu     sync.Mutex
		msgs   []ChatMessage
		events []Event
	)
	var fc *fakeClient
	m := New(Config{
		RoomID:         "42",
		UserIdentifier: "u@x.kz",
		ChatAPIURL:     srv.URL,
		OnMessage: func(msg ChatMessage) {
			mu.Lock()
			msgs = append(msgs, msg)
			mu.Unlock()
		},
		OnEvent: func(ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
		NewClient: func(url, token string, h ClientHandlers) Client {
			fc = &fakeClient{handlers: h}
			return fc
		},
	})
	m.Connect(context.Background())

	fc.onPub(json.RawMessage(`{"type":"newMessage","data":{"id":"m1","message":"hello","username":"Aisha","createdAt":"2026-08-30T10:00:00Z"}}`))
	fc.onPub(json.RawMessage(`{"type":"webinarStarted","data":{"startedBy":"host"}}`))
	fc.onPub(json.RawMessage(`{"type":"newMessage"}`))        // нет data
	fc.onPub(json.RawMessage(`{"data":{"x":1}}`))             // нет type
	fc.onPub(json.RawMessage(`{"type":"x","data":"string"}`))       // data не объект
	fc.onPub(json.RawMessage(`{"type":"newMessage","data":null}`))  // data: null
	fc.onPub(json.RawMessage(`{"type":"roomClosed","data":null}`))  // null и для событий
	fc.onPub(json.RawMessage(`not json`))

	mu.Lock()
	defer mu.Unlock()
	if len(msgs) != 1 || msgs[0].Message != "hello" {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].UpdatedAt != msgs[0].CreatedAt {
		t.Fatal("updatedAt must default to createdAt")
	}
	if len(events) != 1 || events[0].Type != "webinarStarted" {
		t.Fatalf("events = %+v", events)
	}
}

func TestUpdateConfigSwapsCallbacks(t *testing.T) {
	m, _ := newTestManager(t, nil)

	var got []Status
	m.UpdateConfig(ConfigUpdate{
		OnStatusChange: func(s Status, _ error) { got = append(got, s) },
	})
	m.Disconnect()

	if len(got) != 1 || got[0] != StatusDisconnected {
		t.Fatalf("statuses = %v", got)
	}
}
