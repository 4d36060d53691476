package relay

import "sync"

// queue is a thread-safe unbounded FIFO.
//
// Producers (websocket readers, broker callbacks, document signals) never
// block. The consumer waits on Wait() so it can also watch a context.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{} // buffered, size 1
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		items:  make([]T, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds v to the back of the queue.
// Returns false if the queue is closed.
func (q *queue[T]) Enqueue(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, v)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front item without blocking.
func (q *queue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	// Clear the slot so the backing array does not pin the item.
	q.items[0] = zero
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return v, true
}

// Wait returns a channel that signals when items may be available. It is
// closed when the queue is closed.
func (q *queue[T]) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drained reports whether the queue is closed and empty. A wake-up from
// Wait with nothing queued is not enough; the signal buffer may hold a
// token for an item that was already dequeued.
func (q *queue[T]) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

// Close stops further enqueues and wakes the consumer.
func (q *queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
