// Package realtime fans payload-free invalidation signals out to every viewer
// of a topic. A topic is an event's public slug; a signal only tells the
// viewer to re-fetch.
package realtime

import (
	"sync"

	"github.com/erazemk/verifmatos/internal/metrics"
)

// Hub is the in-process registry of subscriptions, keyed by topic.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscription receives one signal on C per invalidation of its topic.
// Signals coalesce: while one is pending, further ones are dropped, since a
// single re-fetch covers them all.
type Subscription struct {
	C <-chan struct{}

	c     chan struct{}
	hub   *Hub
	topic string
	once  sync.Once
}

// Subscribe registers interest in topic. The caller must Close the subscription.
func (h *Hub) Subscribe(topic string) *Subscription {
	c := make(chan struct{}, 1)
	s := &Subscription{C: c, c: c, hub: h, topic: topic}

	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[s] = struct{}{}
	h.mu.Unlock()

	metrics.SubscriberOpened()
	return s
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if subs, ok := h.topics[s.topic]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.topics, s.topic)
			}
		}
		h.mu.Unlock()
		metrics.SubscriberClosed()
	})
}

// Broadcast signals every current subscriber of topic and returns how many
// subscriptions it reached. It never blocks.
func (h *Hub) Broadcast(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.topics[topic]
	for s := range subs {
		select {
		case s.c <- struct{}{}:
		default:
		}
	}
	return len(subs)
}

// BroadcastAll signals every current subscriber of every topic and returns
// how many subscriptions it reached. It is used when signals may have been
// lost, so every viewer re-fetches once.
func (h *Hub) BroadcastAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, subs := range h.topics {
		for s := range subs {
			select {
			case s.c <- struct{}{}:
			default:
			}
		}
		n += len(subs)
	}
	return n
}

// Subscribers returns the number of open subscriptions for topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}
