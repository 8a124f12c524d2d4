// Package database provides connection pool management for PostgreSQL.
//
// The watcher keeps a single pool, used by the event recorder to persist
// raw stream events for later analysis.
package database
