// Package stream implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns one WebSocket connection to the OpenSea Stream API and the
//     channel registry of topic subscriptions
//   - Drives the connect/authenticate/receive/reconnect state machine
//   - Replays phx_join frames for every registered topic after reconnect
//   - Dispatches decoded events to registered handlers, one at a time,
//     from a single receive goroutine
//
// Subscribe, Unsubscribe and Shutdown are safe to call from any
// goroutine; they are funnelled to the run loop as queued commands so the
// registry needs no locking.
package stream
