package relay

import (
	"context"
	"errors"
	"sync"
)

// Broker fans relay traffic out between hubs. Payloads are opaque.
//
// Subscribe must deliver every message published to docID after it
// returns, including messages published by the same process. Handlers run
// on a broker goroutine and must not block.
type Broker interface {
	Publish(ctx context.Context, docID string, payload []byte) error
	Subscribe(ctx context.Context, docID string, fn func(payload []byte)) (unsubscribe func() error, err error)
	Close() error
}

// ErrBrokerClosed is returned by a closed MemoryBroker.
var ErrBrokerClosed = errors.New("broker closed")

// MemoryBroker is an in-process Broker. Several hubs sharing one
// MemoryBroker behave like relay processes sharing a Redis server.
type MemoryBroker struct {
	mu     sync.Mutex
	next   int
	subs   map[string]map[int]func([]byte)
	closed bool
}

// NewMemoryBroker returns an empty MemoryBroker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[int]func([]byte))}
}

// Publish delivers payload synchronously to every subscriber of docID.
func (b *MemoryBroker) Publish(ctx context.Context, docID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	fns := make([]func([]byte), 0, len(b.subs[docID]))
	for _, fn := range b.subs[docID] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
	return nil
}

// Subscribe registers fn for docID.
func (b *MemoryBroker) Subscribe(_ context.Context, docID string, fn func([]byte)) (func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	id := b.next
	b.next++
	if b.subs[docID] == nil {
		b.subs[docID] = make(map[int]func([]byte))
	}
	b.subs[docID][id] = fn

	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[docID], id)
		if len(b.subs[docID]) == 0 {
			delete(b.subs, docID)
		}
		return nil
	}, nil
}

// Subscribers returns the number of subscriptions for docID.
func (b *MemoryBroker) Subscribers(docID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[docID])
}

// Close drops every subscription.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
	return nil
}
