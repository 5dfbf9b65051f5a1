package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus fans events out over a redis pub/sub channel. Delivery is at-most-once:
// instances that are not subscribed when an event is published never see it.
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger

	mu      sync.Mutex
	pubsubs []*redis.PubSub
	wg      sync.WaitGroup
}

// NewRedisBus creates a bus on channel.
func NewRedisBus(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisBus {
	return &RedisBus{client: client, channel: channel, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Name, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, handler Handler, names ...Name) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	// Wait for the subscription confirmation so no event published after return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	b.mu.Lock()
	b.pubsubs = append(b.pubsubs, pubsub)
	b.mu.Unlock()

	accept := nameFilter(names)
	ch := pubsub.Channel()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.logger.Warn("Discarding malformed event", zap.Error(err))
					continue
				}
				if !accept(evt.Name) {
					continue
				}
				deliver(ctx, b.logger, handler, evt)
			}
		}
	}()
	return nil
}

// Close closes every subscription. The redis client is owned by the caller.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	pubsubs := b.pubsubs
	b.pubsubs = nil
	b.mu.Unlock()

	for _, ps := range pubsubs {
		_ = ps.Close()
	}
	b.wg.Wait()
	return nil
}
