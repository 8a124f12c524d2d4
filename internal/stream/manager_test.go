package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nftwatch/opensea-stream/internal/codec"
	"github.com/nftwatch/opensea-stream/internal/event"
)

// phxServer is a mock stream endpoint speaking the Phoenix wire protocol:
// it acks heartbeats and channel joins/leaves and can push event frames.
type phxServer struct {
	t   *testing.T
	srv *httptest.Server

	heartbeatStatus string // "ok" acks, "error" rejects the key

	mu        sync.Mutex
	joins     []string
	leaves    []string
	conns     int
	connTimes []time.Time
	active    *websocket.Conn
	activeWr  sync.Mutex
}

func newPhxServer(t *testing.T) *phxServer {
	s := &phxServer{t: t, heartbeatStatus: "ok"}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		s.mu.Lock()
		s.conns++
		s.connTimes = append(s.connTimes, time.Now())
		s.active = conn
		s.mu.Unlock()

		s.serve(conn)
	}))

	t.Cleanup(s.srv.Close)
	return s
}

func (s *phxServer) url() string {
	return "ws" + s.srv.URL[len("http"):]
}

func (s *phxServer) serve(conn *websocket.Conn) {
	type wire struct {
		Topic   string          `json:"topic"`
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame wire
		if err := json.Unmarshal(data, &frame); err != nil {
			s.t.Logf("server: bad frame: %v", err)
			continue
		}

		switch frame.Event {
		case "heartbeat":
			response := `{}`
			if s.heartbeatStatus != "ok" {
				response = `{"reason":"unauthorized"}`
			}
			s.reply(conn, "phoenix", s.heartbeatStatus, response)

		case "phx_join":
			s.mu.Lock()
			s.joins = append(s.joins, frame.Topic)
			s.mu.Unlock()
			s.reply(conn, frame.Topic, "ok", `{}`)

		case "phx_leave":
			s.mu.Lock()
			s.leaves = append(s.leaves, frame.Topic)
			s.mu.Unlock()
			s.reply(conn, frame.Topic, "ok", `{}`)
		}
	}
}

func (s *phxServer) reply(conn *websocket.Conn, topic, status, response string) {
	msg := fmt.Sprintf(`{"topic":%q,"event":"phx_reply","payload":{"status":%q,"response":%s},"ref":0}`,
		topic, status, response)
	s.write(conn, msg)
}

func (s *phxServer) write(conn *websocket.Conn, msg string) {
	s.activeWr.Lock()
	defer s.activeWr.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		s.t.Logf("server write error: %v", err)
	}
}

// pushEvent sends a stream event frame on the most recent connection.
func (s *phxServer) pushEvent(topic, eventType, payload string) {
	s.mu.Lock()
	conn := s.active
	s.mu.Unlock()
	if conn == nil {
		s.t.Fatal("pushEvent with no active connection")
	}

	msg := fmt.Sprintf(`{"topic":%q,"event":%q,"payload":{"event_type":%q,"sent_at":"2024-01-15T12:00:00.000000+00:00","payload":%s},"ref":null}`,
		topic, eventType, eventType, payload)
	s.write(conn, msg)
}

// dropConnection closes the current socket, forcing the manager to
// reconnect.
func (s *phxServer) dropConnection() {
	s.mu.Lock()
	conn := s.active
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (s *phxServer) joinCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.joins)
}

func (s *phxServer) leaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leaves)
}

func (s *phxServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// connGap returns the time between the nth and n+1th connections.
func (s *phxServer) connGap(n int) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connTimes[n+1].Sub(s.connTimes[n])
}

const minimalListedPayload = `{
	"event_timestamp": "2024-01-15T12:00:00.000000+00:00",
	"collection": {"slug": "azuki"},
	"maker": {"address": "0x000000000000000000000000000000000000dead"},
	"base_price": "1000000000000000000",
	"order_hash": "0x35a922e5d30b4a4e8b1a8b8e1e6a0f1d1b2c3d4e5f60718293a4b5c6d7e8f901"
}`

func testManagerConfig(url string) Config {
	return Config{
		URL:               url,
		APIKey:            "test-key",
		HandshakeTimeout:  2 * time.Second,
		AuthTimeout:       2 * time.Second,
		WriteTimeout:      2 * time.Second,
		HeartbeatInterval: time.Hour, // authenticate sends the first one
		StaleTimeout:      time.Minute,
		ReconnectBaseWait: 10 * time.Millisecond,
		ReconnectMaxWait:  50 * time.Millisecond,
	}
}

// startManager runs the manager in the background and returns a channel
// with Run's result.
func startManager(t *testing.T, m *Manager) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	runErr := make(chan error, 1)
	go func() { runErr <- m.Run(ctx) }()

	t.Cleanup(m.Shutdown)
	return runErr
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestManager_SubscribeSendsJoin(t *testing.T) {
	server := newPhxServer(t)
	m := NewManager(testManagerConfig(server.url()), nil)
	startManager(t, m)

	id, err := m.Subscribe("collection:azuki", func(codec.Topic, event.StreamEvent) {})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if id == (SubscriptionID{}) {
		t.Error("Subscribe returned the zero id")
	}

	waitFor(t, time.Second, func() bool { return server.joinCount() == 1 }, "join frame never arrived")

	server.mu.Lock()
	topic := server.joins[0]
	server.mu.Unlock()
	if topic != "collection:azuki" {
		t.Errorf("join topic = %q, want collection:azuki", topic)
	}
}

func TestManager_DispatchesEvents(t *testing.T) {
	server := newPhxServer(t)
	m := NewManager(testManagerConfig(server.url()), nil)
	startManager(t, m)

	events := make(chan event.StreamEvent, 10)
	if _, err := m.Subscribe("collection:azuki", func(_ codec.Topic, ev event.StreamEvent) {
		events <- ev
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return server.joinCount() == 1 }, "join frame never arrived")

	server.pushEvent("collection:azuki", "item_listed", minimalListedPayload)

	select {
	case ev := <-events:
		if ev.Kind != event.KindItemListed {
			t.Errorf("Kind = %v, want KindItemListed", ev.Kind)
		}
		listed, ok := ev.Payload.(*event.ItemListed)
		if !ok {
			t.Fatalf("Payload is %T, want *event.ItemListed", ev.Payload)
		}
		if listed.Collection.Slug != "azuki" {
			t.Errorf("slug = %q, want azuki", listed.Collection.Slug)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	if got := m.Stats().EventsDispatched; got != 1 {
		t.Errorf("EventsDispatched = %d, want 1", got)
	}
}

func TestManager_ReplaceHandler(t *testing.T) {
	server := newPhxServer(t)
	m := NewManager(testManagerConfig(server.url()), nil)
	startManager(t, m)

	firstCalls := make(chan struct{}, 10)
	secondCalls := make(chan struct{}, 10)

	if _, err := m.Subscribe("collection:azuki", func(codec.Topic, event.StreamEvent) {
		firstCalls <- struct{}{}
	}); err != nil {
		t.Fatalf("first Subscribe failed: %v", err)
	}
	if _, err := m.Subscribe("collection:azuki", func(codec.Topic, event.StreamEvent) {
		secondCalls <- struct{}{}
	}); err != nil {
		t.Fatalf("second Subscribe failed: %v", err)
	}

	waitFor(t, time.Second, func() bool { return server.joinCount() >= 1 }, "join frame never arrived")
	server.pushEvent("collection:azuki", "item_listed", minimalListedPayload)

	select {
	case <-secondCalls:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for replacement handler")
	}
	select {
	case <-firstCalls:
		t.Error("replaced handler was invoked")
	default:
	}

	// The topic was already joined; replacing must not rejoin it.
	if got := server.joinCount(); got != 1 {
		t.Errorf("join count = %d, want 1", got)
	}
}

func TestManager_UnsubscribeSendsLeaveAndDropsEvents(t *testing.T) {
	server := newPhxServer(t)
	m := NewManager(testManagerConfig(server.url()), nil)
	startManager(t, m)

	calls := make(chan struct{}, 10)
	id, err := m.Subscribe("collection:azuki", func(codec.Topic, event.StreamEvent) {
		calls <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return server.joinCount() == 1 }, "join frame never arrived")

	if err := m.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return server.leaveCount() == 1 }, "leave frame never arrived")

	// A stale id fails.
	if err := m.Unsubscribe(id); !errors.Is(err, ErrUnknownSubscription) {
		t.Errorf("second Unsubscribe error = %v, want ErrUnknownSubscription", err)
	}

	// An in-flight event for the dropped topic is counted, not delivered.
	server.pushEvent("collection:azuki", "item_listed", minimalListedPayload)
	waitFor(t, time.Second, func() bool { return m.Stats().EventsDropped == 1 }, "dropped event never counted")

	select {
	case <-calls:
		t.Error("handler invoked after Unsubscribe")
	default:
	}
}

func TestManager_HandlerPanicRecovered(t *testing.T) {
	server := newPhxServer(t)
	m := NewManager(testManagerConfig(server.url()), nil)
	startManager(t, m)

	calls := make(chan struct{}, 10)
	first := true
	if _, err := m.Subscribe("collection:azuki", func(codec.Topic, event.StreamEvent) {
		if first {
			first = false
			panic("handler bug")
		}
		calls <- struct{}{}
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return server.joinCount() == 1 }, "join frame never arrived")

	server.pushEvent("collection:azuki", "item_listed", minimalListedPayload)
	server.pushEvent("collection:azuki", "item_listed", minimalListedPayload)

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("second event not delivered after handler panic")
	}

	stats := m.Stats()
	if stats.HandlerPanics != 1 {
		t.Errorf("HandlerPanics = %d, want 1", stats.HandlerPanics)
	}
	if stats.EventsDispatched != 1 {
		t.Errorf("EventsDispatched = %d, want 1", stats.EventsDispatched)
	}
}

func TestManager_UndecodableFrameIsNotFatal(t *testing.T) {
	server := newPhxServer(t)
	m := NewManager(testManagerConfig(server.url()), nil)
	startManager(t, m)

	events := make(chan event.StreamEvent, 10)
	if _, err := m.Subscribe("collection:azuki", func(_ codec.Topic, ev event.StreamEvent) {
		events <- ev
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return server.joinCount() == 1 }, "join frame never arrived")

	// Garbage, then a valid event: the stream continues.
	server.mu.Lock()
	conn := server.active
	server.mu.Unlock()
	server.write(conn, `{{{not json`)
	server.pushEvent("collection:azuki", "item_listed", minimalListedPayload)

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("event after a bad frame never arrived")
	}

	if got := m.Stats().DecodeErrors; got != 1 {
		t.Errorf("DecodeErrors = %d, want 1", got)
	}
}

func TestManager_ReconnectResubscribes(t *testing.T) {
	server := newPhxServer(t)
	m := NewManager(testManagerConfig(server.url()), nil)
	startManager(t, m)

	h := func(codec.Topic, event.StreamEvent) {}
	if _, err := m.Subscribe("collection:azuki", h); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := m.Subscribe("collection:boredapeyachtclub", h); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitFor(t, time.Second, func() bool { return server.joinCount() == 2 }, "initial joins never arrived")

	server.dropConnection()

	waitFor(t, 2*time.Second, func() bool { return server.connCount() == 2 }, "manager never reconnected")
	waitFor(t, 2*time.Second, func() bool { return server.joinCount() == 4 }, "subscriptions not replayed after reconnect")

	if got := m.Stats().Reconnects; got != 1 {
		t.Errorf("Reconnects = %d, want 1", got)
	}
}

func TestManager_BackoffResetsAfterStableConnection(t *testing.T) {
	server := newPhxServer(t)
	cfg := testManagerConfig(server.url())
	cfg.ReconnectBaseWait = 40 * time.Millisecond
	cfg.ReconnectMaxWait = time.Second
	// Every connection counts as stable, so each reconnect waits the
	// base interval again.
	cfg.StabilityThreshold = time.Millisecond
	m := NewManager(cfg, nil)
	startManager(t, m)

	for i := 1; i <= 3; i++ {
		want := i
		waitFor(t, 2*time.Second, func() bool { return m.State() == StateConnected && server.connCount() == want },
			"manager never connected")
		time.Sleep(5 * time.Millisecond) // exceed the stability threshold
		server.dropConnection()
	}
	waitFor(t, 2*time.Second, func() bool { return server.connCount() == 4 }, "manager never reconnected")

	for n := 0; n < 3; n++ {
		if gap := server.connGap(n); gap > 150*time.Millisecond {
			t.Errorf("gap before connection %d = %v, want near the base wait", n+2, gap)
		}
	}
}

func TestManager_BackoffGrowsWithoutStableConnection(t *testing.T) {
	server := newPhxServer(t)
	cfg := testManagerConfig(server.url())
	cfg.ReconnectBaseWait = 40 * time.Millisecond
	cfg.ReconnectMaxWait = time.Second
	// No connection ever counts as stable, so the waits climb
	// 40ms, 60ms, 90ms.
	cfg.StabilityThreshold = time.Hour
	m := NewManager(cfg, nil)
	startManager(t, m)

	for i := 1; i <= 3; i++ {
		want := i
		waitFor(t, 2*time.Second, func() bool { return m.State() == StateConnected && server.connCount() == want },
			"manager never connected")
		server.dropConnection()
	}
	waitFor(t, 2*time.Second, func() bool { return server.connCount() == 4 }, "manager never reconnected")

	first, third := server.connGap(0), server.connGap(2)
	if third < 85*time.Millisecond {
		t.Errorf("third reconnect gap = %v, want at least the grown 90ms wait", third)
	}
	if third <= first {
		t.Errorf("third reconnect gap %v not longer than first %v", third, first)
	}
}

func TestManager_DialFailureEntersReconnecting(t *testing.T) {
	cfg := testManagerConfig("ws://127.0.0.1:1/socket")
	cfg.ReconnectBaseWait = 200 * time.Millisecond
	cfg.ReconnectMaxWait = time.Second
	m := NewManager(cfg, nil)
	startManager(t, m)

	waitFor(t, 2*time.Second, func() bool { return m.State() == StateReconnecting },
		"manager never reported Reconnecting after a failed dial")
}

func TestManager_AuthRejectedByReply(t *testing.T) {
	server := newPhxServer(t)
	server.heartbeatStatus = "error"

	m := NewManager(testManagerConfig(server.url()), nil)
	runErr := startManager(t, m)

	select {
	case err := <-runErr:
		if !errors.Is(err, ErrAuthRejected) {
			t.Errorf("Run error = %v, want ErrAuthRejected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after auth rejection")
	}

	// The manager is closed; later operations fail fast.
	if _, err := m.Subscribe("collection:azuki", func(codec.Topic, event.StreamEvent) {}); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Subscribe after rejection error = %v, want ErrClientClosed", err)
	}
}

func TestManager_AuthRejectedByHandshake(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	m := NewManager(testManagerConfig("ws"+server.URL[len("http"):]), nil)
	runErr := startManager(t, m)

	select {
	case err := <-runErr:
		if !errors.Is(err, ErrAuthRejected) {
			t.Errorf("Run error = %v, want ErrAuthRejected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after handshake rejection")
	}
}

func TestManager_ShutdownReturnsNil(t *testing.T) {
	server := newPhxServer(t)
	m := NewManager(testManagerConfig(server.url()), nil)
	runErr := startManager(t, m)

	waitFor(t, time.Second, func() bool { return m.State() == StateConnected }, "never connected")

	m.Shutdown()

	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run error = %v, want nil after Shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	if m.State() != StateClosed {
		t.Errorf("State = %v, want StateClosed", m.State())
	}
}

func TestManager_SubscribeWhileDisconnected(t *testing.T) {
	// A dead endpoint keeps the manager cycling through backoff.
	cfg := testManagerConfig("ws://127.0.0.1:1")
	cfg.ReconnectBaseWait = 50 * time.Millisecond
	cfg.ReconnectMaxWait = 100 * time.Millisecond

	m := NewManager(cfg, nil)
	startManager(t, m)

	// Commands are serviced during the backoff wait: registration
	// succeeds with the wire catching up on the next connect.
	if _, err := m.Subscribe("collection:azuki", func(codec.Topic, event.StreamEvent) {}); err != nil {
		t.Fatalf("Subscribe while disconnected failed: %v", err)
	}
}

func TestManager_SubscribeNilHandler(t *testing.T) {
	m := NewManager(testManagerConfig("ws://127.0.0.1:1"), nil)
	if _, err := m.Subscribe("collection:azuki", nil); err == nil {
		t.Error("Subscribe accepted a nil handler")
	}
}

func TestManager_SubscribeAfterShutdown(t *testing.T) {
	m := NewManager(testManagerConfig("ws://127.0.0.1:1"), nil)
	m.Shutdown()

	if _, err := m.Subscribe("collection:azuki", func(codec.Topic, event.StreamEvent) {}); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Subscribe error = %v, want ErrClientClosed", err)
	}
	if err := m.Unsubscribe(SubscriptionID{}); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Unsubscribe error = %v, want ErrClientClosed", err)
	}
}
