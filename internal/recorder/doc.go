// Package recorder implements a batch writer that persists stream events
// to PostgreSQL.
//
// The recorder plugs into the stream dispatch loop as a Handler. Events
// are copied onto an internal buffer so the dispatch loop never blocks on
// the database; a consumer goroutine accumulates batches and flushes them
// on size or interval.
//
// Writes are append-only (never update, only insert).
package recorder
