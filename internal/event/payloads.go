package event

import "encoding/json"

// Collection identifies the collection an event belongs to.
type Collection struct {
	Slug string `json:"slug"`
}

// Metadata is the item's on-chain metadata, fetched by the vendor.
// Every field is optional; absent fields stay at their zero value.
type Metadata struct {
	AnimationURL    string  `json:"animation_url"`
	BackgroundColor string  `json:"background_color"`
	Description     string  `json:"description"`
	ImagePreviewURL string  `json:"image_preview_url"`
	ImageURL        string  `json:"image_url"`
	MetadataURL     string  `json:"metadata_url"`
	ExternalLink    string  `json:"external_link"`
	Name            string  `json:"name"`
	Traits          []Trait `json:"traits"`
}

// Trait is one metadata attribute.
type Trait struct {
	TraitType   string `json:"trait_type"`
	Value       string `json:"value"`
	DisplayType string `json:"display_type"`
	MaxValue    int64  `json:"max_value"`
	TraitCount  int64  `json:"trait_count"`
	Order       int64  `json:"order"`
}

// Item is the asset an event concerns. All fields are optional on the wire.
type Item struct {
	NftID     *NftID    `json:"nft_id"`
	Permalink string    `json:"permalink"`
	Chain     *Chain    `json:"chain"`
	Metadata  *Metadata `json:"metadata"`
}

// PaymentToken describes the token a price is denominated in.
type PaymentToken struct {
	Address  Address `json:"address"`
	Decimals int32   `json:"decimals"`
	EthPrice Price   `json:"eth_price"`
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	UsdPrice Price   `json:"usd_price"`
}

// Transaction is the on-chain transaction behind a sale or transfer.
type Transaction struct {
	Hash      Hash    `json:"hash"`
	Timestamp UTCTime `json:"timestamp"`
}

// CollectionCriteria scopes a collection-wide offer.
type CollectionCriteria struct {
	Slug string `json:"slug"`
}

// TraitCriteria scopes a trait offer.
type TraitCriteria struct {
	TraitName string `json:"trait_name"`
	TraitType string `json:"trait_type"`
}

// ProtocolData is the raw Seaport order attached to listings and offers.
type ProtocolData struct {
	Parameters *Parameters `json:"parameters"`
	Signature  string      `json:"signature"`
}

// Parameters are the Seaport order parameters. Field names are camelCase
// on the wire, unlike the rest of the schema.
type Parameters struct {
	ConduitKey                      string          `json:"conduitKey"`
	Consideration                   []Consideration `json:"consideration"`
	Counter                         json.RawMessage `json:"counter"`
	EndTime                         EpochTime       `json:"endTime"`
	Offer                           []OfferItem     `json:"offer"`
	Offerer                         Address         `json:"offerer"`
	OrderType                       int64           `json:"orderType"`
	Salt                            string          `json:"salt"`
	StartTime                       EpochTime       `json:"startTime"`
	TotalOriginalConsiderationItems int64           `json:"totalOriginalConsiderationItems"`
	Zone                            Address         `json:"zone"`
	ZoneHash                        string          `json:"zoneHash"`
}

// Consideration is one payment leg of a Seaport order.
type Consideration struct {
	ItemType             int64   `json:"itemType"`
	Token                Address `json:"token"`
	IdentifierOrCriteria string  `json:"identifierOrCriteria"`
	StartAmount          Price   `json:"startAmount"`
	EndAmount            Price   `json:"endAmount"`
	Recipient            Address `json:"recipient"`
}

// OfferItem is one offered asset of a Seaport order.
type OfferItem struct {
	EndAmount            Price   `json:"endAmount"`
	IdentifierOrCriteria string  `json:"identifierOrCriteria"`
	ItemType             int64   `json:"itemType"`
	StartAmount          Price   `json:"startAmount"`
	Token                Address `json:"token"`
}

// ItemListed is the payload for KindItemListed.
type ItemListed struct {
	Collection     Collection    `json:"collection"`
	Item           Item          `json:"item"`
	EventTimestamp UTCTime       `json:"event_timestamp"`
	BasePrice      Price         `json:"base_price"`
	ExpirationDate UTCTime       `json:"expiration_date"`
	IsPrivate      bool          `json:"is_private"`
	ListingDate    UTCTime       `json:"listing_date"`
	ListingType    *ListingType  `json:"listing_type"`
	Maker          Account       `json:"maker"`
	OrderHash      Hash          `json:"order_hash"`
	PaymentToken   PaymentToken  `json:"payment_token"`
	ProtocolData   *ProtocolData `json:"protocol_data"`
	Quantity       int64         `json:"quantity"`
}

func (p *ItemListed) validate() error {
	switch {
	case p.Collection.Slug == "":
		return missing("collection.slug")
	case p.EventTimestamp.IsZero():
		return missing("event_timestamp")
	case !p.BasePrice.Valid():
		return missing("base_price")
	case p.Maker.Address.IsZero():
		return missing("maker.address")
	case p.OrderHash.IsZero():
		return missing("order_hash")
	}
	return nil
}

// ItemSold is the payload for KindItemSold.
type ItemSold struct {
	Collection     Collection   `json:"collection"`
	Item           Item         `json:"item"`
	ClosingDate    UTCTime      `json:"closing_date"`
	EventTimestamp UTCTime      `json:"event_timestamp"`
	IsPrivate      bool         `json:"is_private"`
	ListingType    *ListingType `json:"listing_type"`
	Maker          Account      `json:"maker"`
	OrderHash      Hash         `json:"order_hash"`
	PaymentToken   PaymentToken `json:"payment_token"`
	Quantity       int64        `json:"quantity"`
	SalePrice      Price        `json:"sale_price"`
	Taker          Account      `json:"taker"`
	Transaction    Transaction  `json:"transaction"`
}

func (p *ItemSold) validate() error {
	switch {
	case p.Collection.Slug == "":
		return missing("collection.slug")
	case p.EventTimestamp.IsZero():
		return missing("event_timestamp")
	case !p.SalePrice.Valid():
		return missing("sale_price")
	case p.Maker.Address.IsZero():
		return missing("maker.address")
	case p.Taker.Address.IsZero():
		return missing("taker.address")
	case p.Transaction.Hash.IsZero():
		return missing("transaction.hash")
	}
	return nil
}

// ItemTransferred is the payload for KindItemTransferred.
type ItemTransferred struct {
	Collection     Collection   `json:"collection"`
	EventTimestamp UTCTime      `json:"event_timestamp"`
	FromAccount    Account      `json:"from_account"`
	Item           Item         `json:"item"`
	Quantity       int64        `json:"quantity"`
	ToAccount      Account      `json:"to_account"`
	Transaction    *Transaction `json:"transaction"`
}

func (p *ItemTransferred) validate() error {
	switch {
	case p.Collection.Slug == "":
		return missing("collection.slug")
	case p.EventTimestamp.IsZero():
		return missing("event_timestamp")
	case p.FromAccount.Address.IsZero():
		return missing("from_account.address")
	case p.ToAccount.Address.IsZero():
		return missing("to_account.address")
	}
	return nil
}

// ItemMetadataUpdated is the payload for KindItemMetadataUpdated.
type ItemMetadataUpdated struct {
	Collection Collection `json:"collection"`
	Item       Item       `json:"item"`
}

func (p *ItemMetadataUpdated) validate() error {
	if p.Collection.Slug == "" {
		return missing("collection.slug")
	}
	return nil
}

// ItemCancelled is the payload for KindItemCancelled.
type ItemCancelled struct {
	BasePrice      Price        `json:"base_price"`
	Collection     Collection   `json:"collection"`
	EventTimestamp UTCTime      `json:"event_timestamp"`
	IsPrivate      bool         `json:"is_private"`
	Item           Item         `json:"item"`
	ListingDate    *UTCTime     `json:"listing_date"`
	ListingType    *ListingType `json:"listing_type"`
	OrderHash      Hash         `json:"order_hash"`
	PaymentToken   PaymentToken `json:"payment_token"`
	Quantity       int64        `json:"quantity"`
	Transaction    *Transaction `json:"transaction"`
}

func (p *ItemCancelled) validate() error {
	switch {
	case p.Collection.Slug == "":
		return missing("collection.slug")
	case p.EventTimestamp.IsZero():
		return missing("event_timestamp")
	case !p.BasePrice.Valid():
		return missing("base_price")
	case p.OrderHash.IsZero():
		return missing("order_hash")
	}
	return nil
}

// ItemReceivedOffer is the payload for KindItemReceivedOffer.
type ItemReceivedOffer struct {
	Collection     Collection   `json:"collection"`
	Item           Item         `json:"item"`
	EventTimestamp UTCTime      `json:"event_timestamp"`
	BasePrice      Price        `json:"base_price"`
	CreatedDate    UTCTime      `json:"created_date"`
	ExpirationDate UTCTime      `json:"expiration_date"`
	Maker          Account      `json:"maker"`
	OrderHash      Hash         `json:"order_hash"`
	PaymentToken   PaymentToken `json:"payment_token"`
	Quantity       int64        `json:"quantity"`
	Taker          *Account     `json:"taker"`
}

func (p *ItemReceivedOffer) validate() error {
	switch {
	case p.Collection.Slug == "":
		return missing("collection.slug")
	case p.EventTimestamp.IsZero():
		return missing("event_timestamp")
	case !p.BasePrice.Valid():
		return missing("base_price")
	case p.Maker.Address.IsZero():
		return missing("maker.address")
	case p.OrderHash.IsZero():
		return missing("order_hash")
	}
	return nil
}

// ItemReceivedBid is the payload for KindItemReceivedBid. Bids carry the
// same fields as offers.
type ItemReceivedBid ItemReceivedOffer

func (p *ItemReceivedBid) validate() error {
	return (*ItemReceivedOffer)(p).validate()
}

// CollectionOffer is the payload for KindCollectionOffer.
type CollectionOffer struct {
	AssetContractCriteria Account            `json:"asset_contract_criteria"`
	BasePrice             Price              `json:"base_price"`
	Collection            Collection         `json:"collection"`
	CollectionCriteria    CollectionCriteria `json:"collection_criteria"`
	CreatedDate           UTCTime            `json:"created_date"`
	EventTimestamp        UTCTime            `json:"event_timestamp"`
	ExpirationDate        UTCTime            `json:"expiration_date"`
	Maker                 Account            `json:"maker"`
	OrderHash             Hash               `json:"order_hash"`
	PaymentToken          PaymentToken       `json:"payment_token"`
	ProtocolAddress       Address            `json:"protocol_address"`
	ProtocolData          *ProtocolData      `json:"protocol_data"`
	Quantity              int64              `json:"quantity"`
	Taker                 *Account           `json:"taker"`
}

func (p *CollectionOffer) validate() error {
	switch {
	case p.Collection.Slug == "":
		return missing("collection.slug")
	case p.EventTimestamp.IsZero():
		return missing("event_timestamp")
	case !p.BasePrice.Valid():
		return missing("base_price")
	case p.Maker.Address.IsZero():
		return missing("maker.address")
	case p.OrderHash.IsZero():
		return missing("order_hash")
	}
	return nil
}

// TraitOffer is the payload for KindTraitOffer: a collection offer scoped
// to one trait.
type TraitOffer struct {
	AssetContractCriteria Account            `json:"asset_contract_criteria"`
	BasePrice             Price              `json:"base_price"`
	Collection            Collection         `json:"collection"`
	CollectionCriteria    CollectionCriteria `json:"collection_criteria"`
	CreatedDate           UTCTime            `json:"created_date"`
	EventTimestamp        UTCTime            `json:"event_timestamp"`
	ExpirationDate        UTCTime            `json:"expiration_date"`
	Maker                 Account            `json:"maker"`
	OrderHash             Hash               `json:"order_hash"`
	PaymentToken          PaymentToken       `json:"payment_token"`
	ProtocolAddress       Address            `json:"protocol_address"`
	ProtocolData          *ProtocolData      `json:"protocol_data"`
	Quantity              int64              `json:"quantity"`
	Taker                 *Account           `json:"taker"`
	TraitCriteria         TraitCriteria      `json:"trait_criteria"`
}

func (p *TraitOffer) validate() error {
	switch {
	case p.Collection.Slug == "":
		return missing("collection.slug")
	case p.EventTimestamp.IsZero():
		return missing("event_timestamp")
	case !p.BasePrice.Valid():
		return missing("base_price")
	case p.Maker.Address.IsZero():
		return missing("maker.address")
	case p.OrderHash.IsZero():
		return missing("order_hash")
	case p.TraitCriteria.TraitType == "":
		return missing("trait_criteria.trait_type")
	}
	return nil
}

// OrderInvalidate is the payload for KindOrderInvalidate.
type OrderInvalidate struct {
	Chain           Chain      `json:"chain"`
	Collection      Collection `json:"collection"`
	EventTimestamp  UTCTime    `json:"event_timestamp"`
	Item            Item       `json:"item"`
	OrderHash       *Hash      `json:"order_hash"`
	ProtocolAddress Address    `json:"protocol_address"`
}

func (p *OrderInvalidate) validate() error {
	switch {
	case p.Collection.Slug == "":
		return missing("collection.slug")
	case p.EventTimestamp.IsZero():
		return missing("event_timestamp")
	}
	return nil
}

// OrderRevalidate is the payload for KindOrderRevalidate.
type OrderRevalidate struct {
	Chain           Chain      `json:"chain"`
	Collection      Collection `json:"collection"`
	EventTimestamp  UTCTime    `json:"event_timestamp"`
	Item            Item       `json:"item"`
	OrderHash       Hash       `json:"order_hash"`
	ProtocolAddress Address    `json:"protocol_address"`
}

func (p *OrderRevalidate) validate() error {
	switch {
	case p.Collection.Slug == "":
		return missing("collection.slug")
	case p.EventTimestamp.IsZero():
		return missing("event_timestamp")
	case p.OrderHash.IsZero():
		return missing("order_hash")
	}
	return nil
}
