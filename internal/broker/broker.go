// Package broker is the publish/subscribe facade over the shared external
// broker (C2 — Broker Gateway). It carries events across server processes
// on a channel namespace of "chat:<id>" and "user:<id>".
package broker

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chatcore/internal/metrics"
)

// Handler is invoked with the raw payload delivered to a channel.
type Handler func(channel string, payload []byte)

// LocalFallback is called by Publish when the broker is unreachable or
// unconfigured, so a single-node deployment continues to function.
type LocalFallback func(channel string, payload []byte)

// Broker wraps a redis client; it is safe for zero-value redis client (nil),
// in which case every publish degrades to the local fallback.
type Broker struct {
	client   *redis.Client
	log      *logrus.Entry
	fallback LocalFallback

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	cancel context.CancelFunc
}

// New constructs a Broker. client may be nil (no broker configured).
func New(client *redis.Client, log *logrus.Entry, fallback LocalFallback) *Broker {
	return &Broker{
		client:   client,
		log:      log.WithField("component", "broker"),
		fallback: fallback,
		subs:     make(map[string]*subscription),
	}
}

// Publish is fire-and-forget and best-effort. If the broker is unreachable,
// it falls back to local-only delivery via the configured fallback so a
// single-node deployment keeps working. Broker errors are logged, never
// propagated to HTTP callers.
func (b *Broker) Publish(ctx context.Context, channel string, payload []byte) {
	if b.client == nil {
		b.fallback(channel, payload)
		return
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		b.log.WithError(err).WithField("channel", channel).Warn("publish failed, falling back to local delivery")
		b.fallback(channel, payload)
	}
}

// Subscribe creates a durable in-process subscription; requesting a
// subscription for a channel already active is a no-op. The subscription is
// held for the process lifetime — losing the handle would silently
// unsubscribe, so Broker keeps it in subs itself.
func (b *Broker) Subscribe(channel string, handler Handler) {
	if b.client == nil {
		return
	}
	b.mu.Lock()
	if _, ok := b.subs[channel]; ok {
		b.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.subs[channel] = &subscription{cancel: cancel}
	metrics.BrokerSubscriptions.Set(float64(len(b.subs)))
	b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, channel)
	go b.pump(ctx, channel, pubsub, handler)
}

// pump re-subscribes automatically: go-redis's Subscribe transparently
// reconnects the underlying connection, so this loop just keeps reading
// until ctx is cancelled or the message channel closes. Nothing in this
// package calls the stored cancel, so a subscription lives for the process
// lifetime.
func (b *Broker) pump(ctx context.Context, channel string, pubsub *redis.PubSub, handler Handler) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			handler(channel, []byte(msg.Payload))
		}
	}
}

// SubscriptionCount is a diagnostic counter for the dynamic channel-
// subscription map, which is retained for process lifetime by design.
func (b *Broker) SubscriptionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
