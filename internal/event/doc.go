// Package event defines the typed model for OpenSea stream events.
//
// Conventions:
//   - Prices: arbitrary-precision decimals decoded from strings
//     (shopspring/decimal), never native floats
//   - Timestamps: UTC, millisecond precision, strict RFC 3339 parsing
//   - Addresses: fixed-length byte arrays with 0x-hex JSON encoding
//
// Decoding is total: a required field that is absent fails with a
// DecodeError naming the field, and an unrecognized event kind is
// surfaced as KindUnknown with the raw payload attached rather than
// being misread as a known variant.
package event
