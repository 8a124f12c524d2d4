package stream

import (
	"testing"
	"time"
)

func TestNetwork_URL(t *testing.T) {
	if got := NetworkMainnet.URL(); got != "wss://stream.openseabeta.com/socket/websocket" {
		t.Errorf("mainnet URL = %q", got)
	}
	if got := NetworkTestnet.URL(); got != "wss://testnets-stream.openseabeta.com/socket/websocket" {
		t.Errorf("testnet URL = %q", got)
	}
}

func TestConfig_Endpoint(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "network with key",
			cfg:  Config{Network: NetworkMainnet, APIKey: "abc123"},
			want: "wss://stream.openseabeta.com/socket/websocket?token=abc123",
		},
		{
			name: "override without key",
			cfg:  Config{URL: "ws://localhost:9999/socket"},
			want: "ws://localhost:9999/socket",
		},
		{
			name: "override with existing query",
			cfg:  Config{URL: "ws://localhost:9999/socket?vsn=2.0.0", APIKey: "abc"},
			want: "ws://localhost:9999/socket?vsn=2.0.0&token=abc",
		},
		{
			name: "key with reserved characters",
			cfg:  Config{URL: "ws://localhost:9999/socket", APIKey: "a b&c#d"},
			want: "ws://localhost:9999/socket?token=a+b%26c%23d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.endpoint(); got != tt.want {
				t.Errorf("endpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 30s", cfg.HeartbeatInterval)
	}
	if cfg.StaleTimeout != 90*time.Second {
		t.Errorf("StaleTimeout = %v, want 90s", cfg.StaleTimeout)
	}
	if cfg.ReconnectMaxWait != 60*time.Second {
		t.Errorf("ReconnectMaxWait = %v, want 60s", cfg.ReconnectMaxWait)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateAuthenticating, "authenticating"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{StateClosed, "closed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
