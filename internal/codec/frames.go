package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nftwatch/opensea-stream/internal/event"
)

// ErrMalformedFrame indicates bytes that are not a valid frame envelope.
// The caller drops the frame; one bad frame never tears down the connection.
var ErrMalformedFrame = errors.New("malformed frame")

// Phoenix control events.
const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
)

// topicPhoenix is the control topic used for heartbeats.
const topicPhoenix = "phoenix"

// ReplyStatusOK is the status of a successful control acknowledgement.
const ReplyStatusOK = "ok"

// Reply is a control acknowledgement from the server (subscription
// confirmed, heartbeat acknowledged, or an error reply).
type Reply struct {
	Status   string          // "ok" or "error"
	Response json.RawMessage // reply body, vendor-defined
}

// OK reports whether the reply acknowledges success.
func (r Reply) OK() bool { return r.Status == ReplyStatusOK }

// Frame is a decoded inbound frame: either a control reply or a stream
// event. Exactly one of Reply and Event is non-nil.
type Frame struct {
	Topic Topic
	Ref   int64
	Reply *Reply
	Event *event.StreamEvent
}

// wireFrame is the Phoenix envelope shared by inbound and outbound frames.
type wireFrame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     int64           `json:"ref"`
}

// replyWire is the payload of a phx_reply frame.
type replyWire struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

var emptyPayload = json.RawMessage(`{}`)

// Subscribe encodes a phx_join frame for the given topic.
func Subscribe(topic Topic) ([]byte, error) {
	return encodeControl(string(topic), eventJoin)
}

// Unsubscribe encodes a phx_leave frame for the given topic.
func Unsubscribe(topic Topic) ([]byte, error) {
	return encodeControl(string(topic), eventLeave)
}

// Heartbeat encodes the periodic keepalive frame.
func Heartbeat() ([]byte, error) {
	return encodeControl(topicPhoenix, eventHeartbeat)
}

func encodeControl(topic, phxEvent string) ([]byte, error) {
	data, err := json.Marshal(wireFrame{
		Topic:   topic,
		Event:   phxEvent,
		Payload: emptyPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", phxEvent, err)
	}
	return data, nil
}

// DecodeFrame parses one inbound frame. Control replies (phx_reply,
// phx_error, phx_close) become Frame.Reply; anything else is handed to the
// event package and becomes Frame.Event. Bytes that are not a valid JSON
// envelope return an error wrapping ErrMalformedFrame.
func DecodeFrame(data []byte) (Frame, error) {
	var wire wireFrame
	if err := json.Unmarshal(data, &wire); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	frame := Frame{Topic: Topic(wire.Topic), Ref: wire.Ref}

	switch wire.Event {
	case eventReply:
		var reply replyWire
		if err := json.Unmarshal(wire.Payload, &reply); err != nil {
			return Frame{}, fmt.Errorf("%w: reply payload: %v", ErrMalformedFrame, err)
		}
		frame.Reply = &Reply{Status: reply.Status, Response: reply.Response}
		return frame, nil

	case eventError, eventClose:
		// Channel-level failure frames carry no status field.
		frame.Reply = &Reply{Status: "error", Response: wire.Payload}
		return frame, nil

	default:
		ev, err := event.Decode(wire.Payload)
		if err != nil {
			return Frame{}, err
		}
		frame.Event = &ev
		return frame, nil
	}
}
