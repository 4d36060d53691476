package relay

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBroker fans traffic out through Redis pub/sub, one channel per
// document.
type RedisBroker struct {
	rdb    *redis.Client
	prefix string
	owned  bool
}

// NewRedisBroker connects to the Redis server at addr and checks it is
// reachable.
func NewRedisBroker(ctx context.Context, addr string) (*RedisBroker, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &RedisBroker{rdb: rdb, prefix: "gisdoc:doc:", owned: true}, nil
}

// NewRedisBrokerFromClient wraps an existing client. Close leaves the
// client open.
func NewRedisBrokerFromClient(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb, prefix: "gisdoc:doc:"}
}

func (b *RedisBroker) channel(docID string) string {
	return b.prefix + docID
}

// Publish sends payload to the document channel.
func (b *RedisBroker) Publish(ctx context.Context, docID string, payload []byte) error {
	if err := b.rdb.Publish(ctx, b.channel(docID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", docID, err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed, then forwards
// messages to fn from a dedicated goroutine until unsubscribed.
func (b *RedisBroker) Subscribe(ctx context.Context, docID string, fn func([]byte)) (func() error, error) {
	pubsub := b.rdb.Subscribe(ctx, b.channel(docID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", docID, err)
	}

	ch := pubsub.Channel()
	go func() {
		for msg := range ch {
			fn([]byte(msg.Payload))
		}
	}()
	return pubsub.Close, nil
}

// Close closes the client if the broker created it.
func (b *RedisBroker) Close() error {
	if !b.owned {
		return nil
	}
	return b.rdb.Close()
}
