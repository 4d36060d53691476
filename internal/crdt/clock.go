package crdt

import (
	"fmt"
	"sync/atomic"
)

// Timestamp identifies an op and orders ops across replicas.
//
// Ordering is by Counter, then by Replica id (byte order). Two distinct ops
// never share a Timestamp because a replica never reuses a counter value.
type Timestamp struct {
	Counter int64  `json:"c"`
	Replica string `json:"r"`
}

// IsZero reports whether t is the zero timestamp (used as "sequence head").
func (t Timestamp) IsZero() bool {
	return t.Counter == 0 && t.Replica == ""
}

// Compare returns -1, 0 or +1 as t sorts before, equal to, or after o.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.Counter < o.Counter:
		return -1
	case t.Counter > o.Counter:
		return 1
	case t.Replica < o.Replica:
		return -1
	case t.Replica > o.Replica:
		return 1
	}
	return 0
}

// After reports whether t sorts after o.
func (t Timestamp) After(o Timestamp) bool {
	return t.Compare(o) > 0
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d@%s", t.Counter, t.Replica)
}

// Clock is a Lamport clock owned by one replica.
//
// Next stamps local ops; Observe folds in remote stamps so the next local op
// sorts after everything this replica has seen. That is what makes a local
// insert land exactly where the user put it.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	replica string
	seq     atomic.Int64
}

// NewClock creates a clock for the given replica starting at 0.
func NewClock(replica string) *Clock {
	return &Clock{replica: replica}
}

// NewClockAt creates a clock starting at a specific counter.
// Used when a replica is rebuilt from a persisted log.
func NewClockAt(replica string, start int64) *Clock {
	c := &Clock{replica: replica}
	c.seq.Store(start)
	return c
}

// Next returns the next timestamp and advances the clock.
func (c *Clock) Next() Timestamp {
	return Timestamp{Counter: c.seq.Add(1), Replica: c.replica}
}

// Observe advances the clock to at least ts.Counter.
func (c *Clock) Observe(ts Timestamp) {
	for {
		cur := c.seq.Load()
		if ts.Counter <= cur || c.seq.CompareAndSwap(cur, ts.Counter) {
			return
		}
	}
}

// Current returns the current counter without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Replica returns the replica id this clock stamps.
func (c *Clock) Replica() string {
	return c.replica
}
