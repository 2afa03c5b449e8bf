package crdt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcore/crdt"
)

func TestCausalReadDeriveAdd(t *testing.T) {
	clock := crdt.NewVectorClock[string]()
	clock.Apply(crdt.Version[string]{Actor: "a", Counter: 2})
	read := crdt.CausalRead[string, string]{AddClock: clock, RmClock: clock.Clone(), Value: "x"}

	add := read.DeriveAdd("a")
	assert.Equal(t, uint64(3), add.Version.Counter)
	assert.Equal(t, uint64(3), add.Clock.Get("a"))
	// DeriveAdd must not mutate the read's own clock.
	assert.Equal(t, uint64(2), clock.Get("a"))
}

func TestCausalReadDeriveRemoveCarriesRmClock(t *testing.T) {
	addClock := crdt.NewVectorClock[string]()
	addClock.Apply(crdt.Version[string]{Actor: "a", Counter: 5})
	rmClock := crdt.NewVectorClock[string]()
	rmClock.Apply(crdt.Version[string]{Actor: "a", Counter: 2})

	read := crdt.CausalRead[string, string]{AddClock: addClock, RmClock: rmClock, Value: "x"}
	rm := read.DeriveRemove()
	assert.Equal(t, uint64(2), rm.Clock.Get("a"))
}

func TestCausalReadSplit(t *testing.T) {
	clock := crdt.NewVectorClock[string]()
	read := crdt.CausalRead[string, string]{AddClock: clock, RmClock: clock.Clone(), Value: "x"}

	value, split := read.Split()
	assert.Equal(t, "x", value)
	assert.True(t, split.AddClock.Equal(clock))
}

func TestOptionSomeNone(t *testing.T) {
	some := crdt.Some("x")
	require.True(t, some.Present)
	assert.Equal(t, "x", some.Value)

	none := crdt.None[string]()
	assert.False(t, none.Present)
}
