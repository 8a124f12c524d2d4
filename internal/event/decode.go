package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField is wrapped by DecodeErrors caused by an absent required
// field.
var ErrMissingField = errors.New("missing required field")

// DecodeError reports a payload that could not be decoded into its
// variant. Raw carries the payload bytes for diagnostics; Field names the
// offending field when one could be identified.
type DecodeError struct {
	Kind  Kind
	Field string
	Raw   json.RawMessage
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s: field %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func missing(field string) error {
	return &DecodeError{Field: field, Err: ErrMissingField}
}

type validator interface {
	validate() error
}

// envelopeWire is the stream-event envelope inside a frame payload.
type envelopeWire struct {
	EventType string          `json:"event_type"`
	SentAt    UTCTime         `json:"sent_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode parses one stream-event payload into exactly one variant or
// fails with a *DecodeError. An event_type outside the known set yields a
// KindUnknown event with the raw payload attached and no error.
func Decode(raw json.RawMessage) (StreamEvent, error) {
	var env envelopeWire
	if err := json.Unmarshal(raw, &env); err != nil {
		return StreamEvent{}, &DecodeError{Kind: KindUnknown, Raw: raw, Err: err}
	}

	ev := StreamEvent{
		Kind:     Kind(env.EventType),
		WireKind: env.EventType,
		SentAt:   env.SentAt.Time,
		Raw:      env.Payload,
	}

	var payload validator
	switch ev.Kind {
	case KindItemListed:
		payload = &ItemListed{}
	case KindItemSold:
		payload = &ItemSold{}
	case KindItemTransferred:
		payload = &ItemTransferred{}
	case KindItemMetadataUpdated:
		payload = &ItemMetadataUpdated{}
	case KindItemCancelled:
		payload = &ItemCancelled{}
	case KindItemReceivedOffer:
		payload = &ItemReceivedOffer{}
	case KindItemReceivedBid:
		payload = &ItemReceivedBid{}
	case KindCollectionOffer:
		payload = &CollectionOffer{}
	case KindTraitOffer:
		payload = &TraitOffer{}
	case KindOrderInvalidate:
		payload = &OrderInvalidate{}
	case KindOrderRevalidate:
		payload = &OrderRevalidate{}
	default:
		ev.Kind = KindUnknown
		return ev, nil
	}

	if err := decodePayload(ev.Kind, env.Payload, payload); err != nil {
		return StreamEvent{}, err
	}
	ev.Payload = payload
	return ev, nil
}

func decodePayload(kind Kind, raw json.RawMessage, dst validator) error {
	if len(raw) == 0 {
		return &DecodeError{Kind: kind, Field: "payload", Raw: raw, Err: ErrMissingField}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &DecodeError{Kind: kind, Raw: raw, Err: err}
	}
	if err := dst.validate(); err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Kind = kind
			de.Raw = raw
			return de
		}
		return &DecodeError{Kind: kind, Raw: raw, Err: err}
	}
	return nil
}
