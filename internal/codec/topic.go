package codec

import "strings"

// Topic identifies a subscription target on the stream.
//
// Wire grammar:
//   - "collection:<slug>" for a single collection
//   - "collection:*" for all collections
//   - "item:<chain>/<contract>/<token-id>" for a single asset
//
// Equality is exact string match; NewTopic trims surrounding whitespace
// but performs no other normalization.
type Topic string

// TopicAllCollections subscribes to events for every collection.
const TopicAllCollections Topic = "collection:*"

// NewTopic builds a Topic from a raw wire string.
func NewTopic(raw string) Topic {
	return Topic(strings.TrimSpace(raw))
}

// CollectionTopic builds the topic for a collection slug.
func CollectionTopic(slug string) Topic {
	slug = strings.TrimSpace(slug)
	if slug == "" || slug == "*" {
		return TopicAllCollections
	}
	return Topic("collection:" + slug)
}

// ItemTopic builds the topic for a single asset, identified the same way
// the vendor identifies NFTs ("<chain>/<contract>/<token-id>").
func ItemTopic(nftID string) Topic {
	return Topic("item:" + strings.TrimSpace(nftID))
}

// Slug returns the collection slug for collection topics, or "" for
// wildcard and item topics.
func (t Topic) Slug() string {
	s, ok := strings.CutPrefix(string(t), "collection:")
	if !ok || s == "*" {
		return ""
	}
	return s
}

func (t Topic) String() string { return string(t) }
