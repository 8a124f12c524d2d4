// Package codec implements the Frame Codec component.
//
// The Frame Codec:
//   - Encodes subscribe/unsubscribe/heartbeat control frames in the
//     Phoenix channel wire format used by the OpenSea Stream API
//   - Decodes inbound frames into either a control reply or a typed
//     stream event (via the event package)
//   - Reports malformed bytes as a transport-level decode error so the
//     receive loop can drop the frame without tearing down the connection
package codec
