package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix namespaces invalidation channels in Redis.
const DefaultChannelPrefix = "verifmatos:checklist:"

// Delays between attempts to restore a lost subscription.
const (
	minResubscribeDelay = 100 * time.Millisecond
	maxResubscribeDelay = 5 * time.Second
)

// RedisBroker makes the fan-out cluster-aware: publishes go to a Redis
// channel per topic, and every instance relays what it receives into its own
// hub. Delivery is at-most-once; Redis keeps nothing for late subscribers.
//
// While Redis is unreachable the broker degrades to this instance: publishes
// still reach the local hub, and once the subscription is restored every
// local viewer is signalled so it catches up on what it missed.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	prefix string

	pubsub    *redis.PubSub
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisBroker creates a broker relaying into hub. An empty prefix selects
// DefaultChannelPrefix.
func NewRedisBroker(client *redis.Client, hub *Hub, prefix string) *RedisBroker {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisBroker{
		client: client,
		hub:    hub,
		prefix: prefix,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start subscribes to all topic channels and relays messages into the hub
// until ctx ends or Close is called. It returns once Redis has answered the
// first subscription attempt, so publishes made after a successful Start are
// not missed.
//
// An error means Redis could not be reached. The relay keeps retrying in the
// background and the broker stays usable in degraded mode.
func (b *RedisBroker) Start(ctx context.Context) error {
	if b == nil || b.client == nil {
		return errors.New("redis client not initialized")
	}

	ps := b.client.PSubscribe(ctx, b.prefix+"*")
	b.pubsub = ps

	ready := make(chan error, 1)
	go b.relay(ctx, ps, ready)
	go func() {
		select {
		case <-ctx.Done():
			ps.Close()
		case <-b.quit:
		}
	}()

	select {
	case err := <-ready:
		if err != nil {
			return fmt.Errorf("subscribing to invalidation channels: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *RedisBroker) relay(ctx context.Context, ps *redis.PubSub, ready chan<- error) {
	defer close(b.done)

	report := func(err error) {
		if ready != nil {
			ready <- err
			ready = nil
		}
	}

	subscribed := false
	delay := minResubscribeDelay
	for {
		msg, err := ps.Receive(ctx)
		if err != nil {
			if b.stopped(ctx) {
				report(err)
				return
			}
			if subscribed {
				slog.Warn("redis subscription lost, fan-out limited to this instance", "error", err)
				subscribed = false
			}
			report(err)

			select {
			case <-ctx.Done():
				return
			case <-b.quit:
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, maxResubscribeDelay)
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			delay = minResubscribeDelay
			if !subscribed {
				subscribed = true
				// Signals published while the subscription was down are gone.
				if n := b.hub.BroadcastAll(); n > 0 {
					slog.Info("redis subscription restored, viewers told to re-fetch", "subscribers", n)
				}
			}
			report(nil)
		case *redis.Message:
			b.hub.Broadcast(strings.TrimPrefix(m.Channel, b.prefix))
		}
	}
}

func (b *RedisBroker) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-b.quit:
		return true
	default:
		return false
	}
}

// Publish implements Publisher. When Redis refuses the publish the local hub
// is still signalled; the error is returned so the caller can report it.
func (b *RedisBroker) Publish(ctx context.Context, topic string) error {
	if b == nil || b.client == nil {
		return errors.New("redis client not initialized")
	}
	if err := b.client.Publish(ctx, b.prefix+topic, "1").Err(); err != nil {
		b.hub.Broadcast(topic)
		return fmt.Errorf("publishing to redis: %w", err)
	}
	return nil
}

// Close stops relaying and waits for the relay goroutine to exit.
func (b *RedisBroker) Close() error {
	if b == nil || b.pubsub == nil {
		return nil
	}
	b.closeOnce.Do(func() { close(b.quit) })
	err := b.pubsub.Close()
	<-b.done
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
