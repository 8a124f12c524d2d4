package recorder

import (
	"time"
)

// Config contains batching configuration for the recorder.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize is the capacity of the input buffer between the
	// dispatch loop and the consumer goroutine.
	BufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// eventRow represents a row to be inserted into the stream_events table.
type eventRow struct {
	Topic      string
	EventType  string
	SentAt     time.Time
	ReceivedAt time.Time
	Payload    []byte // JSONB: vendor payload as received
}

// Metrics holds counters for the recorder.
type Metrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Dropped int64
}
