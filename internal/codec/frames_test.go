package codec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nftwatch/opensea-stream/internal/event"
)

func TestSubscribe_Wire(t *testing.T) {
	data, err := Subscribe("collection:boredapeyachtclub")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	var wire wireFrame
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if wire.Topic != "collection:boredapeyachtclub" {
		t.Errorf("topic = %q, want collection:boredapeyachtclub", wire.Topic)
	}
	if wire.Event != "phx_join" {
		t.Errorf("event = %q, want phx_join", wire.Event)
	}
	if string(wire.Payload) != "{}" {
		t.Errorf("payload = %s, want {}", wire.Payload)
	}
	if wire.Ref != 0 {
		t.Errorf("ref = %d, want 0", wire.Ref)
	}
}

func TestUnsubscribe_Wire(t *testing.T) {
	data, err := Unsubscribe("collection:azuki")
	if err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	var wire wireFrame
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if wire.Event != "phx_leave" {
		t.Errorf("event = %q, want phx_leave", wire.Event)
	}
	if wire.Topic != "collection:azuki" {
		t.Errorf("topic = %q, want collection:azuki", wire.Topic)
	}
}

func TestHeartbeat_Wire(t *testing.T) {
	data, err := Heartbeat()
	if err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}

	var wire wireFrame
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if wire.Topic != "phoenix" {
		t.Errorf("topic = %q, want phoenix", wire.Topic)
	}
	if wire.Event != "heartbeat" {
		t.Errorf("event = %q, want heartbeat", wire.Event)
	}
}

func TestDecodeFrame_Reply(t *testing.T) {
	data := `{"topic":"collection:azuki","event":"phx_reply","payload":{"status":"ok","response":{}},"ref":0}`

	frame, err := DecodeFrame([]byte(data))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	if frame.Topic != "collection:azuki" {
		t.Errorf("Topic = %q, want collection:azuki", frame.Topic)
	}
	if frame.Reply == nil {
		t.Fatal("Reply is nil, want control reply")
	}
	if frame.Event != nil {
		t.Error("Event is non-nil for a control reply")
	}
	if !frame.Reply.OK() {
		t.Errorf("Reply.OK() = false, status %q", frame.Reply.Status)
	}
}

func TestDecodeFrame_ErrorReply(t *testing.T) {
	data := `{"topic":"phoenix","event":"phx_reply","payload":{"status":"error","response":{"reason":"unauthorized"}},"ref":0}`

	frame, err := DecodeFrame([]byte(data))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	if frame.Reply == nil {
		t.Fatal("Reply is nil")
	}
	if frame.Reply.OK() {
		t.Error("Reply.OK() = true, want false")
	}
}

func TestDecodeFrame_ChannelError(t *testing.T) {
	data := `{"topic":"collection:azuki","event":"phx_error","payload":{},"ref":0}`

	frame, err := DecodeFrame([]byte(data))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if frame.Reply == nil || frame.Reply.OK() {
		t.Errorf("phx_error should decode as an error reply, got %+v", frame.Reply)
	}
}

func TestDecodeFrame_StreamEvent(t *testing.T) {
	data := `{
		"topic": "collection:boredapeyachtclub",
		"event": "item_listed",
		"payload": {
			"event_type": "item_listed",
			"sent_at": "2024-01-15T12:00:00.000000+00:00",
			"payload": {
				"event_timestamp": "2024-01-15T12:00:00.000000+00:00",
				"item": {
					"nft_id": "ethereum/0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d/1234",
					"permalink": "https://opensea.io/assets/ethereum/0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d/1234",
					"metadata": {"name": "Bored Ape #1234"}
				},
				"collection": {"slug": "boredapeyachtclub"},
				"maker": {"address": "0x000000000000000000000000000000000000dead"},
				"base_price": "1500000000000000000",
				"payment_token": {
					"address": "0x0000000000000000000000000000000000000000",
					"decimals": 18,
					"symbol": "ETH"
				},
				"quantity": 1,
				"is_private": false,
				"listing_date": "2024-01-15T12:00:00.000000+00:00",
				"listing_type": null,
				"expiration_date": "2024-01-22T12:00:00.000000+00:00",
				"order_hash": "0x35a922e5d30b4a4e8b1a8b8e1e6a0f1d1b2c3d4e5f60718293a4b5c6d7e8f901"
			}
		},
		"ref": null
	}`

	frame, err := DecodeFrame([]byte(data))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	if frame.Reply != nil {
		t.Error("Reply is non-nil for a stream event")
	}
	if frame.Event == nil {
		t.Fatal("Event is nil")
	}
	if frame.Event.Kind != event.KindItemListed {
		t.Errorf("Kind = %v, want KindItemListed", frame.Event.Kind)
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{{{`},
		{name: "truncated", data: `{"topic":"collection:azuki","event":"phx_re`},
		{name: "bad reply payload", data: `{"topic":"t","event":"phx_reply","payload":"nope","ref":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(tt.data))
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("DecodeFrame error = %v, want ErrMalformedFrame", err)
			}
		})
	}
}
