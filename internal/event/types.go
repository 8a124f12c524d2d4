package event

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies one event variant. The set is closed; anything else on
// the wire decodes as KindUnknown.
type Kind string

const (
	KindItemListed          Kind = "item_listed"
	KindItemSold            Kind = "item_sold"
	KindItemTransferred     Kind = "item_transferred"
	KindItemMetadataUpdated Kind = "item_metadata_updated"
	KindItemCancelled       Kind = "item_cancelled"
	KindItemReceivedOffer   Kind = "item_received_offer"
	KindItemReceivedBid     Kind = "item_received_bid"
	KindCollectionOffer     Kind = "collection_offer"
	KindTraitOffer          Kind = "trait_offer"
	KindOrderInvalidate     Kind = "order_invalidate"
	KindOrderRevalidate     Kind = "order_revalidate"
	KindUnknown             Kind = "unknown"
)

// StreamEvent is one decoded event from the stream.
//
// Payload holds a pointer to the variant struct for Kind (*ItemListed,
// *ItemSold, ...). For KindUnknown, Payload is nil and WireKind preserves
// the tag as received; Raw always holds the undecoded payload bytes.
type StreamEvent struct {
	Kind     Kind
	WireKind string
	SentAt   time.Time
	Payload  any
	Raw      json.RawMessage
}

// Address is a 20-byte EVM account or contract address.
// JSON encoding is 0x-prefixed lowercase hex.
type Address [20]byte

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	hexPart, ok := cutHexPrefix(s)
	if !ok || len(hexPart) != 2*len(a) {
		return a, fmt.Errorf("invalid address %q", s)
	}
	b, err := hex.DecodeString(hexPart)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// IsZero reports whether the address is the zero value, which decoding
// treats as absent.
func (a Address) IsZero() bool { return a == Address{} }

func (a Address) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

func (a *Address) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hash is a 32-byte hash (order hashes, transaction hashes).
// JSON encoding is 0x-prefixed lowercase hex.
type Hash [32]byte

// ParseHash parses a 0x-prefixed 32-byte hex hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	hexPart, ok := cutHexPrefix(s)
	if !ok || len(hexPart) != 2*len(h) {
		return h, fmt.Errorf("invalid hash %q", s)
	}
	b, err := hex.DecodeString(hexPart)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) MarshalJSON() ([]byte, error) { return json.Marshal(h.String()) }

func (h *Hash) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func cutHexPrefix(s string) (string, bool) {
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		return rest, true
	}
	return strings.CutPrefix(s, "0X")
}

// Price is an arbitrary-precision decimal amount. The wire carries wei
// amounts and token rates as strings; both string and JSON-number tokens
// are parsed from their literal digits, never through a float64.
type Price struct {
	decimal.Decimal
	set bool
}

// NewPrice wraps a decimal as a present Price. Used by tests and callers
// constructing events by hand.
func NewPrice(d decimal.Decimal) Price { return Price{Decimal: d, set: true} }

// Valid reports whether the field was present on the wire.
func (p Price) Valid() bool { return p.set }

// Scaled divides the raw amount by 10^decimals, converting a base-unit
// amount (e.g. wei) into token units using the payment token's precision.
func (p Price) Scaled(decimals int32) decimal.Decimal {
	return p.Decimal.Div(decimal.New(1, decimals))
}

func (p *Price) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("price: expected string or number, got %s", data)
		}
		s = n.String()
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("price %q: %w", s, err)
	}
	p.Decimal = d
	p.set = true
	return nil
}

// UTCTime is a timestamp decoded strictly from RFC 3339 and normalized to
// UTC with millisecond precision. A value that fails calendar validation
// is a decode error, not a best-effort guess.
type UTCTime struct {
	time.Time
}

func (t *UTCTime) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC().Truncate(time.Millisecond)
	return nil
}

// EpochTime is a timestamp carried as epoch seconds, either a JSON number
// or a numeric string (Seaport start/end times).
type EpochTime struct {
	time.Time
}

func (t *EpochTime) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("epoch timestamp: expected number or string, got %s", data)
		}
		n = json.Number(s)
	}
	secs, err := n.Int64()
	if err != nil {
		return fmt.Errorf("epoch timestamp %q: %w", n, err)
	}
	t.Time = time.Unix(secs, 0).UTC()
	return nil
}

// Chain is the network an item lives on.
type Chain string

const (
	ChainEthereum     Chain = "ethereum"
	ChainPolygon      Chain = "matic"
	ChainKlaytn       Chain = "klaytn"
	ChainBase         Chain = "base"
	ChainBsc          Chain = "bsc"
	ChainAvalanche    Chain = "avalanche"
	ChainOptimism     Chain = "optimism"
	ChainArbitrum     Chain = "arbitrum"
	ChainArbitrumNova Chain = "arbitrum_nova"
	ChainSolana       Chain = "solana"
	ChainZora         Chain = "zora"
	ChainGoerli       Chain = "goerli"
	ChainMumbai       Chain = "mumbai"
	ChainBaobab       Chain = "baobab"
)

var knownChains = map[Chain]struct{}{
	ChainEthereum: {}, ChainPolygon: {}, ChainKlaytn: {}, ChainBase: {},
	ChainBsc: {}, ChainAvalanche: {}, ChainOptimism: {}, ChainArbitrum: {},
	ChainArbitrumNova: {}, ChainSolana: {}, ChainZora: {}, ChainGoerli: {},
	ChainMumbai: {}, ChainBaobab: {},
}

// ParseChain validates a chain name against the known set.
func ParseChain(s string) (Chain, error) {
	c := Chain(s)
	if _, ok := knownChains[c]; !ok {
		return "", fmt.Errorf("unknown chain %q", s)
	}
	return c, nil
}

// The wire nests the chain as {"name": "ethereum"}.
func (c *Chain) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var w struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := ParseChain(w.Name)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Chain) String() string { return string(c) }

// NftID identifies one token as "<chain>/<contract>/<token-id>".
type NftID struct {
	Chain    Chain
	Contract Address
	TokenID  string
}

// ParseNftID parses the composite "<chain>/<contract>/<token-id>" form.
func ParseNftID(s string) (NftID, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return NftID{}, fmt.Errorf("invalid nft id %q", s)
	}
	chain, err := ParseChain(parts[0])
	if err != nil {
		return NftID{}, fmt.Errorf("nft id %q: %w", s, err)
	}
	contract, err := ParseAddress(parts[1])
	if err != nil {
		return NftID{}, fmt.Errorf("nft id %q: %w", s, err)
	}
	return NftID{Chain: chain, Contract: contract, TokenID: parts[2]}, nil
}

func (id NftID) String() string {
	return string(id.Chain) + "/" + id.Contract.String() + "/" + id.TokenID
}

func (id *NftID) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseNftID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ListingType is the auction style of a listing. Absent means buyout.
type ListingType string

const (
	ListingEnglish ListingType = "english"
	ListingDutch   ListingType = "dutch"
)

func (l *ListingType) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch ListingType(s) {
	case ListingEnglish, ListingDutch:
		*l = ListingType(s)
		return nil
	}
	return fmt.Errorf("unknown listing type %q", s)
}

// Account is how the wire wraps wallet addresses for makers, takers and
// transfer parties: {"address": "0x..."}.
type Account struct {
	Address Address `json:"address"`
}

func isJSONNull(data []byte) bool {
	return string(data) == "null"
}
