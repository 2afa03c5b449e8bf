package crdt_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcore/crdt"
)

type regOp = crdt.RegisterPut[string, string]
type reg = crdt.MultiValueRegister[string, string]

func newReg() *reg { return crdt.NewMultiValueRegister[string, string]() }

func newTestMap(opts ...crdt.MapOption[int, *reg, regOp, string]) *crdt.CausalMap[int, *reg, regOp, string] {
	return crdt.NewCausalMap[int, *reg, regOp, string](newReg, opts...)
}

func regValues(t *testing.T, r *reg) []string {
	t.Helper()
	return r.Read().Value
}

// Add-wins: replica 1 writes at key 1, clones to replica 2,
// then removes key 1 while replica 2 concurrently adds a new value under
// key 1. After bidirectional merge, the add wins: key 1 survives on both
// with replica 2's value visible.
func TestCausalMapAddWinsOverConcurrentRemove(t *testing.T) {
	m1 := newTestMap()

	add1 := m1.Read().DeriveAdd("A")
	m1.Apply(m1.Update(1, add1, func(cur *reg, tok crdt.AddToken[string]) regOp {
		return cur.Write("v1", tok)
	}))

	m2 := m1.Clone()

	rmTok := m1.Get(1).DeriveRemove()
	m1.Apply(m1.Remove(1, rmTok))
	assert.False(t, m1.Get(1).Value.Present)

	add2 := m2.Read().DeriveAdd("B")
	m2.Apply(m2.Update(1, add2, func(cur *reg, tok crdt.AddToken[string]) regOp {
		return cur.Write("v2", tok)
	}))

	merged1 := m1.Clone()
	merged1.Merge(m2)
	merged2 := m2.Clone()
	merged2.Merge(m1)

	for _, merged := range []*crdt.CausalMap[int, *reg, regOp, string]{merged1, merged2} {
		got := merged.Get(1)
		require.True(t, got.Value.Present)
		assert.Equal(t, []string{"v2"}, regValues(t, got.Value.Value))
	}
}

func TestCausalMapUpdateAndGet(t *testing.T) {
	m := newTestMap()
	add := m.Read().DeriveAdd("A")
	m.Apply(m.Update(42, add, func(cur *reg, tok crdt.AddToken[string]) regOp {
		return cur.Write("hello", tok)
	}))

	got := m.Get(42)
	require.True(t, got.Value.Present)
	assert.Equal(t, []string{"hello"}, regValues(t, got.Value.Value))

	absent := m.Get(99)
	assert.False(t, absent.Value.Present)
}

func TestCausalMapLenAndIsEmpty(t *testing.T) {
	m := newTestMap()
	assert.True(t, m.IsEmpty().Value)
	assert.Equal(t, 0, m.Len().Value)

	add := m.Read().DeriveAdd("A")
	m.Apply(m.Update(1, add, func(cur *reg, tok crdt.AddToken[string]) regOp { return cur.Write("x", tok) }))

	assert.False(t, m.IsEmpty().Value)
	assert.Equal(t, 1, m.Len().Value)
}

func TestCausalMapRemoveParksWhenNotYetDominated(t *testing.T) {
	m1 := newTestMap()
	add := m1.Read().DeriveAdd("A")
	updOp := m1.Update(1, add, func(cur *reg, tok crdt.AddToken[string]) regOp { return cur.Write("x", tok) })
	m1.Apply(updOp)

	rmTok := m1.Get(1).DeriveRemove()
	rmOp := m1.Remove(1, rmTok)

	// A fresh replica hasn't seen the Update the remove's clock depends on;
	// applying just the remove against an empty map parks it harmlessly
	// (no entry exists yet to touch).
	m2 := newTestMap()
	m2.Apply(rmOp)
	assert.True(t, m2.IsEmpty().Value)

	// Once the Update arrives, the parked remove is replayed and deletes it.
	m2.Apply(updOp)
	assert.True(t, m2.IsEmpty().Value)
}

func TestCausalMapValidateMergeDetectsDoubleSpent(t *testing.T) {
	clock := crdt.NewVectorClock[string]()
	clock.Apply(crdt.Version[string]{Actor: "A", Counter: 1})

	m1 := newTestMap()
	m1.Apply(crdt.MapUpdate[int, regOp, string]{
		Ver: crdt.Version[string]{Actor: "A", Counter: 1},
		Key: 1,
		Op:  regOp{Clock: clock, Value: "x"},
	})

	m2 := newTestMap()
	m2.Apply(crdt.MapUpdate[int, regOp, string]{
		Ver: crdt.Version[string]{Actor: "A", Counter: 1},
		Key: 2,
		Op:  regOp{Clock: clock, Value: "y"},
	})

	err := m1.ValidateMerge(m2)
	require.Error(t, err)
	var dsErr *crdt.DoubleSpentError[int, string]
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, "A", dsErr.Actor)
}

func TestCausalMapResetRemove(t *testing.T) {
	m := newTestMap()
	add := m.Read().DeriveAdd("A")
	upd := m.Update(1, add, func(cur *reg, tok crdt.AddToken[string]) regOp { return cur.Write("x", tok) })
	m.Apply(upd)

	m.ResetRemove(add.Clock)
	assert.True(t, m.IsEmpty().Value)
}

func TestCausalMapMergeIdempotent(t *testing.T) {
	m := newTestMap()
	add := m.Read().DeriveAdd("A")
	m.Apply(m.Update(1, add, func(cur *reg, tok crdt.AddToken[string]) regOp { return cur.Write("x", tok) }))

	clone := m.Clone()
	m.Merge(clone)

	assert.Equal(t, []string{"x"}, regValues(t, m.Get(1).Value.Value))
}

func TestCausalMapJSONRoundTrip(t *testing.T) {
	m := newTestMap()
	add := m.Read().DeriveAdd("A")
	m.Apply(m.Update(7, add, func(cur *reg, tok crdt.AddToken[string]) regOp { return cur.Write("x", tok) }))

	data, err := json.Marshal(m)
	require.NoError(t, err)

	out := newTestMap()
	require.NoError(t, json.Unmarshal(data, out))
	assert.Equal(t, []string{"x"}, regValues(t, out.Get(7).Value.Value))
}
