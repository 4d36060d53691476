package crdt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimestamp_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b Timestamp
		want int
	}{
		{"counter decides", Timestamp{1, "z"}, Timestamp{2, "a"}, -1},
		{"replica breaks tie", Timestamp{3, "a"}, Timestamp{3, "b"}, -1},
		{"equal", Timestamp{3, "a"}, Timestamp{3, "a"}, 0},
		{"after", Timestamp{4, "a"}, Timestamp{3, "b"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestTimestamp_IsZero(t *testing.T) {
	assert.True(t, Timestamp{}.IsZero())
	assert.False(t, Timestamp{Counter: 1}.IsZero())
	assert.Equal(t, "7@r1", Timestamp{7, "r1"}.String())
}

func TestClock_Next_Incrementing(t *testing.T) {
	c := NewClock("r1")

	assert.Equal(t, Timestamp{1, "r1"}, c.Next())
	assert.Equal(t, Timestamp{2, "r1"}, c.Next())
	assert.Equal(t, int64(2), c.Current())
	assert.Equal(t, "r1", c.Replica())
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt("r1", 41)
	assert.Equal(t, Timestamp{42, "r1"}, c.Next())
}

func TestClock_Observe(t *testing.T) {
	c := NewClock("r1")
	c.Next()

	c.Observe(Timestamp{10, "r2"})
	assert.Equal(t, int64(10), c.Current())

	// Older stamps never move the clock back.
	c.Observe(Timestamp{3, "r2"})
	assert.Equal(t, int64(10), c.Current())

	assert.Equal(t, Timestamp{11, "r1"}, c.Next())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock("r1")
	const goroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	stamps := make(chan Timestamp, goroutines*callsPerGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				stamps <- c.Next()
				c.Observe(Timestamp{int64(j), "r2"})
			}
		}()
	}
	wg.Wait()
	close(stamps)

	seen := make(map[Timestamp]bool)
	for ts := range stamps {
		assert.False(t, seen[ts], "timestamp %s generated twice", ts)
		seen[ts] = true
	}
	assert.Len(t, seen, goroutines*callsPerGoroutine)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "v7 ids are time ordered")
}
