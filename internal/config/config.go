package config

import "time"

// WatcherConfig is the root configuration for a watcher instance.
type WatcherConfig struct {
	Instance    InstanceConfig `yaml:"instance"`
	Stream      StreamConfig   `yaml:"stream"`
	Collections []string       `yaml:"collections"`
	Database    DatabaseConfig `yaml:"database"`
	Recorder    RecorderConfig `yaml:"recorder"`
}

// InstanceConfig identifies this watcher.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// StreamConfig holds OpenSea Stream API settings.
type StreamConfig struct {
	Network string `yaml:"network"` // "mainnet" or "testnet"
	APIKey  string `yaml:"api_key"`
	URL     string `yaml:"url"` // endpoint override; normally empty

	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	AuthTimeout       time.Duration `yaml:"auth_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StaleTimeout      time.Duration `yaml:"stale_timeout"`

	ReconnectBaseWait  time.Duration `yaml:"reconnect_base_wait"`
	ReconnectMaxWait   time.Duration `yaml:"reconnect_max_wait"`
	StabilityThreshold time.Duration `yaml:"stability_threshold"`
}

// DatabaseConfig holds the Postgres connection for the event recorder.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds event recorder batching settings. Disabled skips
// the database entirely; events are only logged.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}
