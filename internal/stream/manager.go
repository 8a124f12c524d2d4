package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/nftwatch/opensea-stream/internal/codec"
	"github.com/nftwatch/opensea-stream/internal/event"
)

// Manager owns the connection to the stream and the channel registry.
//
// Run drives the state machine until Shutdown, context cancellation, or a
// fatal auth rejection; transport and decode failures are handled
// internally and never terminate Run.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	registry *registry
	commands chan any

	state  atomic.Int32
	closed chan struct{}
	once   sync.Once

	statsMu sync.Mutex
	stats   Stats
}

// NewManager creates a Manager. Zero config fields get defaults.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &Manager{
		cfg:      cfg,
		logger:   logger,
		registry: newRegistry(),
		commands: make(chan any, cfg.CommandBuffer),
		closed:   make(chan struct{}),
	}
}

// Connect builds a Manager for the common case: an API key and a network.
// The caller still drives it with Run.
func Connect(apiKey string, network Network, logger *slog.Logger) *Manager {
	cfg := DefaultConfig()
	cfg.APIKey = apiKey
	cfg.Network = network
	return NewManager(cfg, logger)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	old := State(m.state.Swap(int32(s)))
	if old != s {
		m.logger.Debug("state transition", "from", old, "to", s)
	}
}

// Stats returns a snapshot of the diagnostic counters.
func (m *Manager) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

func (m *Manager) count(f func(*Stats)) {
	m.statsMu.Lock()
	f(&m.stats)
	m.statsMu.Unlock()
}

// Shutdown requests termination. It is safe to call from any goroutine,
// more than once, and before Run; operations issued after it fail with
// ErrClientClosed.
func (m *Manager) Shutdown() {
	m.once.Do(func() { close(m.closed) })
}

func (m *Manager) isShutdown() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Subscribe registers handler for topic and, when connected, emits a
// subscribe frame. If the topic already has a handler it is replaced and
// never invoked again. Must not be called from inside a handler: the
// command is serviced by the same goroutine that runs dispatch.
func (m *Manager) Subscribe(topic codec.Topic, handler Handler) (SubscriptionID, error) {
	if handler == nil {
		return uuid.Nil, errors.New("nil handler")
	}
	cmd := subscribeCmd{
		topic:   codec.NewTopic(string(topic)),
		handler: handler,
		reply:   make(chan subscribeResult, 1),
	}

	select {
	case <-m.closed:
		return uuid.Nil, ErrClientClosed
	case m.commands <- cmd:
	}

	select {
	case <-m.closed:
		return uuid.Nil, ErrClientClosed
	case res := <-cmd.reply:
		return res.id, res.err
	}
}

// Unsubscribe removes the subscription and, when the topic is left with
// no handler, emits an unsubscribe frame.
func (m *Manager) Unsubscribe(id SubscriptionID) error {
	cmd := unsubscribeCmd{id: id, reply: make(chan error, 1)}

	select {
	case <-m.closed:
		return ErrClientClosed
	case m.commands <- cmd:
	}

	select {
	case <-m.closed:
		return ErrClientClosed
	case err := <-cmd.reply:
		return err
	}
}

// Run drives the connection state machine. It returns exactly once: an
// error wrapping ErrAuthRejected on a fatal auth rejection, or nil after
// Shutdown or context cancellation. Transport failures reconnect with
// bounded exponential backoff; the backoff resets after a connected
// period longer than StabilityThreshold.
func (m *Manager) Run(ctx context.Context) error {
	// Once Run returns nothing services the command queue; close so
	// blocked Subscribe/Unsubscribe callers fail with ErrClientClosed.
	defer m.Shutdown()
	defer m.setState(StateClosed)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.ReconnectBaseWait
	bo.MaxInterval = m.cfg.ReconnectMaxWait
	// No jitter: waits follow the base/multiplier progression exactly.
	bo.RandomizationFactor = 0
	bo.Reset()

	for {
		if m.isShutdown() || ctx.Err() != nil {
			return nil
		}

		m.setState(StateConnecting)
		conn, err := m.dial(ctx)
		if err != nil {
			if errors.Is(err, ErrAuthRejected) {
				m.logger.Error("authentication rejected", "error", err)
				return err
			}
			if ctx.Err() != nil || m.isShutdown() {
				return nil
			}
			m.logger.Warn("connect failed", "error", err)
			m.setState(StateReconnecting)
			if !m.waitBackoff(ctx, bo) {
				return nil
			}
			continue
		}

		m.setState(StateAuthenticating)
		if err := m.authenticate(ctx, conn); err != nil {
			conn.close()
			if errors.Is(err, ErrAuthRejected) {
				m.logger.Error("authentication rejected", "error", err)
				return err
			}
			if ctx.Err() != nil || m.isShutdown() {
				return nil
			}
			m.logger.Warn("authentication handshake failed", "error", err)
			m.setState(StateReconnecting)
			if !m.waitBackoff(ctx, bo) {
				return nil
			}
			continue
		}

		m.setState(StateConnected)
		connectedAt := time.Now()
		m.resubscribe(conn)

		err = m.receiveLoop(ctx, conn)
		conn.close()

		if ctx.Err() != nil || m.isShutdown() {
			return nil
		}

		// Transport failure: reconnect. Subscriptions are not durable on
		// the vendor side and are replayed on the next Connected.
		m.count(func(s *Stats) { s.Reconnects++ })
		m.logger.Warn("connection lost, reconnecting", "error", err)

		if time.Since(connectedAt) >= m.cfg.StabilityThreshold {
			bo.Reset()
		}

		m.setState(StateReconnecting)
		if !m.waitBackoff(ctx, bo) {
			return nil
		}
	}
}

// dial opens the transport.
func (m *Manager) dial(ctx context.Context) (*client, error) {
	conn := newClient(clientConfig{
		url:              m.cfg.endpoint(),
		handshakeTimeout: m.cfg.HandshakeTimeout,
		writeTimeout:     m.cfg.WriteTimeout,
		staleTimeout:     m.cfg.StaleTimeout,
		bufferSize:       m.cfg.MessageBuffer,
	}, m.logger)

	if err := conn.connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// authenticate sends the first heartbeat and waits for its reply. The
// vendor acknowledges a valid API key with an ok status; an error status
// is a fatal rejection. Events arriving before the ack are dispatched
// normally.
func (m *Manager) authenticate(ctx context.Context, conn *client) error {
	data, err := codec.Heartbeat()
	if err != nil {
		return err
	}
	if err := conn.send(data); err != nil {
		return err
	}

	timer := time.NewTimer(m.cfg.AuthTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return ErrClientClosed
		case <-timer.C:
			return ErrTimeout
		case err := <-conn.errors:
			return err
		case msg, ok := <-conn.messages:
			if !ok {
				return ErrNotConnected
			}
			m.count(func(s *Stats) { s.FramesReceived++ })
			frame, err := codec.DecodeFrame(msg.Data)
			if err != nil {
				m.count(func(s *Stats) { s.DecodeErrors++ })
				continue
			}
			if frame.Reply != nil {
				m.count(func(s *Stats) { s.RepliesReceived++ })
				if frame.Reply.OK() {
					return nil
				}
				return fmt.Errorf("%w: %s", ErrAuthRejected, frame.Reply.Response)
			}
			m.dispatch(frame.Topic, *frame.Event)
		}
	}
}

// resubscribe replays a subscribe frame for every registered topic.
func (m *Manager) resubscribe(conn *client) {
	topics := m.registry.topics()
	if len(topics) == 0 {
		return
	}
	m.logger.Info("replaying subscriptions", "count", len(topics))
	for _, topic := range topics {
		m.sendSubscribe(conn, topic)
	}
}

func (m *Manager) sendSubscribe(conn *client, topic codec.Topic) {
	data, err := codec.Subscribe(topic)
	if err != nil {
		m.logger.Error("encode subscribe frame", "topic", topic, "error", err)
		return
	}
	if err := conn.send(data); err != nil {
		// The connection is going down; the topic stays registered and
		// is replayed after reconnect.
		m.logger.Warn("send subscribe frame", "topic", topic, "error", err)
	}
}

func (m *Manager) sendUnsubscribe(conn *client, topic codec.Topic) {
	data, err := codec.Unsubscribe(topic)
	if err != nil {
		m.logger.Error("encode unsubscribe frame", "topic", topic, "error", err)
		return
	}
	if err := conn.send(data); err != nil {
		m.logger.Warn("send unsubscribe frame", "topic", topic, "error", err)
	}
}

// receiveLoop is the single loop that owns the socket and the registry
// while Connected. It returns the transport error that ended the
// connection, or nil on shutdown/cancellation.
func (m *Manager) receiveLoop(ctx context.Context, conn *client) error {
	heartbeat := time.NewTicker(m.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.closed:
			return nil

		case cmd := <-m.commands:
			m.handleCommand(conn, cmd)

		case <-heartbeat.C:
			data, err := codec.Heartbeat()
			if err != nil {
				m.logger.Error("encode heartbeat", "error", err)
				continue
			}
			if err := conn.send(data); err != nil {
				return err
			}

		case err := <-conn.errors:
			return err

		case msg, ok := <-conn.messages:
			if !ok {
				return ErrNotConnected
			}
			m.count(func(s *Stats) { s.FramesReceived++ })

			frame, err := codec.DecodeFrame(msg.Data)
			if err != nil {
				// One bad frame is dropped, never fatal.
				m.count(func(s *Stats) { s.DecodeErrors++ })
				m.logger.Warn("dropping undecodable frame", "error", err)
				continue
			}

			if frame.Reply != nil {
				m.count(func(s *Stats) { s.RepliesReceived++ })
				m.handleReply(frame)
				continue
			}

			m.dispatch(frame.Topic, *frame.Event)
		}
	}
}

// handleReply records subscription confirmations. Acks are observability
// only: events may legitimately arrive before them.
func (m *Manager) handleReply(frame codec.Frame) {
	if !frame.Reply.OK() {
		m.logger.Warn("error reply from server",
			"topic", frame.Topic,
			"response", string(frame.Reply.Response),
		)
		return
	}
	if m.registry.confirm(frame.Topic) {
		m.logger.Debug("subscription confirmed", "topic", frame.Topic)
	}
}

// handleCommand services one queued subscribe/unsubscribe. conn is nil
// while not connected; registry bookkeeping still applies and the wire
// catches up on the next resubscribe.
func (m *Manager) handleCommand(conn *client, cmd any) {
	switch cmd := cmd.(type) {
	case subscribeCmd:
		id, replaced := m.registry.subscribe(cmd.topic, cmd.handler)
		if conn != nil && conn.isConnected() && !replaced {
			m.sendSubscribe(conn, cmd.topic)
		}
		m.logger.Debug("subscribed", "topic", cmd.topic, "id", id, "replaced", replaced)
		cmd.reply <- subscribeResult{id: id}

	case unsubscribeCmd:
		topic, ok := m.registry.unsubscribe(cmd.id)
		if !ok {
			cmd.reply <- ErrUnknownSubscription
			return
		}
		if conn != nil && conn.isConnected() {
			m.sendUnsubscribe(conn, topic)
		}
		m.logger.Debug("unsubscribed", "topic", topic, "id", cmd.id)
		cmd.reply <- nil
	}
}

// dispatch delivers one event to the topic's handler. An event for a
// topic with no handler (an unsubscribe racing an in-flight event) is
// dropped and counted, never an error. A handler panic is recovered here
// so the next frame still gets delivered.
func (m *Manager) dispatch(topic codec.Topic, ev event.StreamEvent) {
	handler, ok := m.registry.lookup(topic)
	if !ok {
		m.count(func(s *Stats) { s.EventsDropped++ })
		m.logger.Debug("no handler for topic, dropping event", "topic", topic, "kind", ev.Kind)
		return
	}

	delivered := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
				m.count(func(s *Stats) { s.HandlerPanics++ })
				m.logger.Error("handler panic",
					"topic", topic,
					"kind", ev.Kind,
					"panic", r,
				)
			}
		}()
		handler(topic, ev)
		return true
	}()

	if delivered {
		m.count(func(s *Stats) { s.EventsDispatched++ })
	}
}

// waitBackoff sleeps for the next backoff interval while still servicing
// registry commands. It returns false when shutdown or cancellation
// arrived during the wait.
func (m *Manager) waitBackoff(ctx context.Context, bo *backoff.ExponentialBackOff) bool {
	wait := bo.NextBackOff()
	m.logger.Info("waiting before reconnect", "wait", wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-m.closed:
			return false
		case cmd := <-m.commands:
			m.handleCommand(nil, cmd)
		case <-timer.C:
			return true
		}
	}
}
