package crdt

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(s string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf("%q", s))
}

// treeStrings decodes the visible tree of a replica whose values are strings.
func treeStrings(t *testing.T, r *Replica) []string {
	t.Helper()
	out := []string{}
	for _, v := range r.Tree().Values() {
		var s string
		require.NoError(t, json.Unmarshal(v, &s))
		out = append(out, s)
	}
	return out
}

type snapshot struct {
	Maps map[Collection]map[string]string
	Tree []string
}

func snap(t *testing.T, r *Replica) snapshot {
	t.Helper()
	s := snapshot{Maps: map[Collection]map[string]string{}, Tree: treeStrings(t, r)}
	for _, c := range []Collection{CollectionLayers, CollectionSources, CollectionOptions} {
		m := map[string]string{}
		for _, k := range r.Map(c).Keys() {
			v, _ := r.Map(c).Get(k)
			m[k] = string(v)
		}
		s.Maps[c] = m
	}
	return s
}

func TestMap_SetGetDelete(t *testing.T) {
	r := NewReplica("a")

	_, change := r.Set(CollectionLayers, "L1", raw("one"))
	assert.Equal(t, "L1", change.Key)
	assert.False(t, change.Existed)

	_, change = r.Set(CollectionLayers, "L1", raw("uno"))
	assert.True(t, change.Existed)

	v, ok := r.Map(CollectionLayers).Get("L1")
	require.True(t, ok)
	assert.JSONEq(t, `"uno"`, string(v))
	assert.Equal(t, 1, r.Map(CollectionLayers).Len())

	_, change, changed := r.Delete(CollectionLayers, "L1")
	assert.True(t, changed)
	assert.True(t, change.Deleted)
	assert.False(t, r.Map(CollectionLayers).Has("L1"))

	_, _, changed = r.Delete(CollectionLayers, "L1")
	assert.False(t, changed, "deleting a missing key changes nothing visible")
}

func TestMap_LastWriterWins(t *testing.T) {
	a, b := NewReplica("a"), NewReplica("b")

	opA, _ := a.Set(CollectionOptions, "zoom", json.RawMessage("3"))
	opB, _ := b.Set(CollectionOptions, "zoom", json.RawMessage("5"))

	_, err := a.Apply([]Op{opB})
	require.NoError(t, err)
	_, err = b.Apply([]Op{opA})
	require.NoError(t, err)

	// Same counter: replica "b" sorts after "a".
	for _, r := range []*Replica{a, b} {
		v, _ := r.Map(CollectionOptions).Get("zoom")
		assert.Equal(t, "5", string(v), "replica %s", r.ID())
	}
}

func TestMap_DeleteBeatsOlderSet(t *testing.T) {
	a, b := NewReplica("a"), NewReplica("b")
	set, _ := a.Set(CollectionSources, "S1", raw("src"))
	_, err := b.Apply([]Op{set})
	require.NoError(t, err)

	del, _, _ := b.Delete(CollectionSources, "S1")

	// A replica that sees the delete first ignores the late set.
	c := NewReplica("c")
	_, err = c.Apply([]Op{del, set})
	require.NoError(t, err)
	assert.False(t, c.Map(CollectionSources).Has("S1"))
	assert.Equal(t, 0, c.Pending())
}

func TestSequence_LocalInsertRemove(t *testing.T) {
	r := NewReplica("a")
	for i, s := range []string{"x", "z"} {
		_, _, err := r.Insert(i, raw(s))
		require.NoError(t, err)
	}
	_, change, err := r.Insert(1, raw("y"))
	require.NoError(t, err)
	assert.Equal(t, 1, change.Index)
	assert.Equal(t, []string{"x", "y", "z"}, treeStrings(t, r))

	_, change, err = r.Remove(0)
	require.NoError(t, err)
	assert.Equal(t, 0, change.Index)
	assert.Equal(t, 1, change.Removed)
	assert.Equal(t, []string{"y", "z"}, treeStrings(t, r))

	// Insert at the front goes ahead of the tombstone.
	_, _, err = r.Insert(0, raw("w"))
	require.NoError(t, err)
	assert.Equal(t, []string{"w", "y", "z"}, treeStrings(t, r))
}

func TestSequence_IndexOutOfRange(t *testing.T) {
	r := NewReplica("a")
	_, _, err := r.Insert(1, raw("x"))
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, _, err = r.Remove(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, _, err = r.Splice(0, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSequence_Splice(t *testing.T) {
	r := NewReplica("a")
	_, _, err := r.Splice(0, 0, raw("a"), raw("b"), raw("c"))
	require.NoError(t, err)

	ops, change, err := r.Splice(1, 1, raw("B"))
	require.NoError(t, err)
	assert.Len(t, ops, 2)
	assert.Equal(t, 1, change.Index)
	assert.Equal(t, 1, change.Removed)
	assert.Len(t, change.Inserted, 1)
	assert.Equal(t, []string{"a", "B", "c"}, treeStrings(t, r))
}

func TestSequence_ConcurrentInsertsKeepBoth(t *testing.T) {
	a, b := NewReplica("a"), NewReplica("b")
	base, _, err := a.Insert(0, raw("base"))
	require.NoError(t, err)
	_, err = b.Apply([]Op{base})
	require.NoError(t, err)

	opA, _, err := a.Insert(1, raw("from-a"))
	require.NoError(t, err)
	opB, _, err := b.Insert(1, raw("from-b"))
	require.NoError(t, err)

	_, err = a.Apply([]Op{opB})
	require.NoError(t, err)
	_, err = b.Apply([]Op{opA})
	require.NoError(t, err)

	assert.Equal(t, treeStrings(t, a), treeStrings(t, b))
	assert.Equal(t, []string{"base", "from-b", "from-a"}, treeStrings(t, a))
}

func TestSequence_ConcurrentRemoveIsIdempotent(t *testing.T) {
	a, b := NewReplica("a"), NewReplica("b")
	ins, _, err := a.Insert(0, raw("g"))
	require.NoError(t, err)
	_, err = b.Apply([]Op{ins})
	require.NoError(t, err)

	rmA, _, err := a.Remove(0)
	require.NoError(t, err)
	rmB, _, err := b.Remove(0)
	require.NoError(t, err)

	changes, err := a.Apply([]Op{rmB})
	require.NoError(t, err)
	assert.Empty(t, changes, "second remove of a tombstone is invisible")
	_, err = b.Apply([]Op{rmA})
	require.NoError(t, err)

	assert.Equal(t, 0, a.Tree().Len())
	assert.Equal(t, 0, b.Tree().Len())
}

func TestApply_Idempotent(t *testing.T) {
	a := NewReplica("a")
	op, _ := a.Set(CollectionLayers, "L1", raw("x"))
	ins, _, err := a.Insert(0, raw("L1"))
	require.NoError(t, err)

	b := NewReplica("b")
	changes, err := b.Apply([]Op{op, ins})
	require.NoError(t, err)
	assert.Len(t, changes, 2)

	changes, err = b.Apply([]Op{op, ins, op})
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, 2, b.Len())
}

func TestApply_BuffersMissingDependency(t *testing.T) {
	a := NewReplica("a")
	first, _, err := a.Insert(0, raw("one"))
	require.NoError(t, err)
	second, _, err := a.Insert(1, raw("two"))
	require.NoError(t, err)
	rm, _, err := a.Remove(0)
	require.NoError(t, err)

	b := NewReplica("b")
	changes, err := b.Apply([]Op{rm, second})
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, 2, b.Pending())

	changes, err = b.Apply([]Op{first})
	require.NoError(t, err)
	assert.Len(t, changes, 3)
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, []string{"two"}, treeStrings(t, b))
}

func TestApply_RejectsMalformedOp(t *testing.T) {
	r := NewReplica("a")
	_, err := r.Apply([]Op{{ID: Timestamp{1, "x"}, Collection: CollectionLayers, Kind: OpInsert, Key: "k"}})
	assert.ErrorIs(t, err, ErrInvalidOp)

	_, err = r.Apply([]Op{{Collection: CollectionLayers, Kind: OpSet, Key: "k", Value: raw("v")}})
	assert.ErrorIs(t, err, ErrInvalidOp)

	_, err = r.Apply([]Op{{ID: Timestamp{1, "x"}, Collection: "widgets", Kind: OpSet, Key: "k"}})
	assert.ErrorIs(t, err, ErrInvalidOp)
	assert.Equal(t, 0, r.Len(), "a rejected batch integrates nothing")
}

func TestLog_ReplaysWithoutBuffering(t *testing.T) {
	a, b := NewReplica("a"), NewReplica("b")
	for i := range 5 {
		op, _, err := a.Insert(0, raw(fmt.Sprintf("a%d", i)))
		require.NoError(t, err)
		_, err = b.Apply([]Op{op})
		require.NoError(t, err)
		_, _, err = b.Insert(b.Tree().Len(), raw(fmt.Sprintf("b%d", i)))
		require.NoError(t, err)
	}

	fresh := NewReplica("c")
	for _, op := range b.Log() {
		_, err := fresh.Apply([]Op{op})
		require.NoError(t, err)
		assert.Equal(t, 0, fresh.Pending(), "op %s should not need buffering", op.ID)
	}
	assert.Equal(t, snap(t, b), snap(t, fresh))
}

func TestOp_JSONShape(t *testing.T) {
	op := Op{ID: Timestamp{3, "a"}, Collection: CollectionOptions, Kind: OpSet, Key: "zoom", Value: json.RawMessage("4")}
	data, err := json.Marshal(op)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":{"c":3,"r":"a"},"collection":"options","kind":"set","key":"zoom","value":4}`, string(data))
}

// TestConvergence drives several replicas through random concurrent edits
// and delivers every op to every replica in a different random order.
func TestConvergence(t *testing.T) {
	for seed := uint64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*7919))
			replicas := []*Replica{NewReplica("a"), NewReplica("b"), NewReplica("c")}
			var all []Op

			for round := range 4 {
				var produced []Op
				for _, r := range replicas {
					for i := range 1 + rng.IntN(4) {
						produced = append(produced, randomEdit(t, rng, r, fmt.Sprintf("%s%d.%d", r.ID(), round, i)))
					}
				}
				all = append(all, produced...)
				for _, r := range replicas {
					shuffled := append([]Op(nil), produced...)
					rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
					for _, op := range shuffled {
						_, err := r.Apply([]Op{op})
						require.NoError(t, err)
					}
				}
			}

			late := NewReplica("late")
			rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
			_, err := late.Apply(all)
			require.NoError(t, err)

			want := snap(t, replicas[0])
			for _, r := range append(replicas[1:], late) {
				assert.Equal(t, 0, r.Pending())
				assert.Equal(t, want, snap(t, r), "replica %s diverged", r.ID())
			}
		})
	}
}

func randomEdit(t *testing.T, rng *rand.Rand, r *Replica, label string) Op {
	t.Helper()
	keys := []string{"k1", "k2", "k3"}
	switch rng.IntN(4) {
	case 0:
		op, _ := r.Set(CollectionLayers, keys[rng.IntN(len(keys))], raw(label))
		return op
	case 1:
		op, _, _ := r.Delete(CollectionLayers, keys[rng.IntN(len(keys))])
		return op
	case 2:
		if n := r.Tree().Len(); n > 0 {
			op, _, err := r.Remove(rng.IntN(n))
			require.NoError(t, err)
			return op
		}
		fallthrough
	default:
		op, _, err := r.Insert(rng.IntN(r.Tree().Len()+1), raw(label))
		require.NoError(t, err)
		return op
	}
}
