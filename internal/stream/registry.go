package stream

import (
	"github.com/google/uuid"

	"github.com/nftwatch/opensea-stream/internal/codec"
)

// registry tracks which topics are subscribed and the handler registered
// for each. It is owned exclusively by the Manager's run goroutine and is
// deliberately not safe for concurrent use; all mutation arrives through
// the command queue.
//
// A topic holds at most one handler: re-subscribing replaces the previous
// handler, which is never invoked again (last-writer-wins).
type registry struct {
	subs map[codec.Topic]*subscription
	byID map[SubscriptionID]codec.Topic
}

type subscription struct {
	id        SubscriptionID
	handler   Handler
	confirmed bool // server acked the phx_join; observability only
}

func newRegistry() *registry {
	return &registry{
		subs: make(map[codec.Topic]*subscription),
		byID: make(map[SubscriptionID]codec.Topic),
	}
}

// subscribe registers handler for topic and returns the subscription id.
// replaced reports whether a prior handler was dropped, in which case the
// topic is already joined on the wire.
func (r *registry) subscribe(topic codec.Topic, handler Handler) (id SubscriptionID, replaced bool) {
	id = uuid.New()
	if prev, ok := r.subs[topic]; ok {
		delete(r.byID, prev.id)
		replaced = true
	}
	r.subs[topic] = &subscription{id: id, handler: handler}
	r.byID[id] = topic
	return id, replaced
}

// unsubscribe removes the subscription and returns its topic. A stale id
// (already replaced or removed) reports ok=false.
func (r *registry) unsubscribe(id SubscriptionID) (codec.Topic, bool) {
	topic, ok := r.byID[id]
	if !ok {
		return "", false
	}
	delete(r.byID, id)
	delete(r.subs, topic)
	return topic, true
}

// lookup returns the handler for topic, if any.
func (r *registry) lookup(topic codec.Topic) (Handler, bool) {
	sub, ok := r.subs[topic]
	if !ok {
		return nil, false
	}
	return sub.handler, true
}

// confirm marks the topic's subscription as server-acknowledged.
func (r *registry) confirm(topic codec.Topic) bool {
	sub, ok := r.subs[topic]
	if !ok {
		return false
	}
	sub.confirmed = true
	return true
}

// topics returns the currently subscribed topics, for resubscription
// after reconnect. The result has no duplicates by construction.
func (r *registry) topics() []codec.Topic {
	out := make([]codec.Topic, 0, len(r.subs))
	for topic := range r.subs {
		out = append(out, topic)
	}
	return out
}

func (r *registry) size() int { return len(r.subs) }
