package stream

import (
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/nftwatch/opensea-stream/internal/codec"
	"github.com/nftwatch/opensea-stream/internal/event"
)

// Errors
var (
	ErrAuthRejected        = errors.New("authentication rejected")
	ErrClientClosed        = errors.New("client closed")
	ErrNotConnected        = errors.New("not connected")
	ErrStaleConnection     = errors.New("connection stale (no server activity)")
	ErrAlreadyClosed       = errors.New("already closed")
	ErrTimeout             = errors.New("operation timeout")
	ErrUnknownSubscription = errors.New("unknown subscription id")
)

// Handler is a caller-supplied callback invoked once per delivered event
// for a topic. Handlers run on the receive goroutine; a slow handler
// delays subsequent events, and a panicking handler is recovered at the
// dispatch boundary without taking down the loop.
type Handler func(topic codec.Topic, ev event.StreamEvent)

// SubscriptionID identifies one active subscription for Unsubscribe.
type SubscriptionID = uuid.UUID

// Network selects the vendor endpoint.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

const (
	mainnetURL = "wss://stream.openseabeta.com/socket/websocket"
	testnetURL = "wss://testnets-stream.openseabeta.com/socket/websocket"
)

// URL returns the WebSocket endpoint for the network.
func (n Network) URL() string {
	if n == NetworkTestnet {
		return testnetURL
	}
	return mainnetURL
}

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Config configures a Manager.
type Config struct {
	Network Network // endpoint selection, ignored if URL is set
	APIKey  string  // vendor API key, sent as the token query parameter
	URL     string  // endpoint override (tests, proxies)

	HandshakeTimeout  time.Duration // WebSocket dial deadline
	AuthTimeout       time.Duration // max wait for the first heartbeat ack
	WriteTimeout      time.Duration // write deadline for outbound frames
	HeartbeatInterval time.Duration // interval between keepalive frames
	StaleTimeout      time.Duration // max silence before the connection is declared dead

	ReconnectBaseWait  time.Duration // initial reconnect backoff
	ReconnectMaxWait   time.Duration // backoff ceiling
	StabilityThreshold time.Duration // connected period after which the backoff resets

	CommandBuffer int // queued subscribe/unsubscribe commands
	MessageBuffer int // inbound frame channel capacity
}

// DefaultConfig returns sensible defaults. The 30s heartbeat matches the
// vendor's Phoenix keepalive contract.
func DefaultConfig() Config {
	return Config{
		Network:            NetworkMainnet,
		HandshakeTimeout:   10 * time.Second,
		AuthTimeout:        10 * time.Second,
		WriteTimeout:       5 * time.Second,
		HeartbeatInterval:  30 * time.Second,
		StaleTimeout:       90 * time.Second,
		ReconnectBaseWait:  1 * time.Second,
		ReconnectMaxWait:   60 * time.Second,
		StabilityThreshold: 2 * time.Minute,
		CommandBuffer:      64,
		MessageBuffer:      1024,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.AuthTimeout == 0 {
		c.AuthTimeout = d.AuthTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.StaleTimeout == 0 {
		c.StaleTimeout = d.StaleTimeout
	}
	if c.ReconnectBaseWait == 0 {
		c.ReconnectBaseWait = d.ReconnectBaseWait
	}
	if c.ReconnectMaxWait == 0 {
		c.ReconnectMaxWait = d.ReconnectMaxWait
	}
	if c.StabilityThreshold == 0 {
		c.StabilityThreshold = d.StabilityThreshold
	}
	if c.CommandBuffer == 0 {
		c.CommandBuffer = d.CommandBuffer
	}
	if c.MessageBuffer == 0 {
		c.MessageBuffer = d.MessageBuffer
	}
}

// endpoint returns the dial URL including the auth token.
func (c *Config) endpoint() string {
	base := c.URL
	if base == "" {
		base = c.Network.URL()
	}
	if c.APIKey == "" {
		return base
	}
	sep := "?"
	for _, r := range base {
		if r == '?' {
			sep = "&"
			break
		}
	}
	return base + sep + "token=" + url.QueryEscape(c.APIKey)
}

// Stats are diagnostic counters exposed for observability. Dropped and
// panicked events are counted, never surfaced as run failures.
type Stats struct {
	FramesReceived   int64 // inbound frames read off the socket
	RepliesReceived  int64 // control acknowledgements
	EventsDispatched int64 // events delivered to a handler
	EventsDropped    int64 // events with no registered handler
	DecodeErrors     int64 // malformed or undecodable frames dropped
	HandlerPanics    int64 // panics recovered at the dispatch boundary
	Reconnects       int64 // transport failures that triggered reconnection
}

// Commands queued from caller goroutines to the run loop.

type subscribeResult struct {
	id  SubscriptionID
	err error
}

type subscribeCmd struct {
	topic   codec.Topic
	handler Handler
	reply   chan subscribeResult
}

type unsubscribeCmd struct {
	id    SubscriptionID
	reply chan error
}
