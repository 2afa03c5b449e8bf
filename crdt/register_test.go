package crdt_test

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcore/crdt"
)

// Two replicas derive Add tokens from the same empty read and write
// concurrently; after cross-apply both values survive.
func TestMultiValueRegisterConcurrentWrites(t *testing.T) {
	r1 := crdt.NewMultiValueRegister[string, string]()
	r2 := crdt.NewMultiValueRegister[string, string]()

	read := r1.Read()
	add1 := read.DeriveAdd("actor123")
	add2 := read.DeriveAdd("actor111")

	put1 := r1.Write("foo", add1)
	put2 := r2.Write("bar", add2)

	r1.Apply(put1)
	r2.Apply(put2)

	r1.Apply(put2)
	r2.Apply(put1)

	got1 := r1.Read().Value
	got2 := r2.Read().Value
	sort.Strings(got1)
	sort.Strings(got2)

	assert.Equal(t, []string{"bar", "foo"}, got1)
	assert.Equal(t, []string{"bar", "foo"}, got2)
}

func TestMultiValueRegisterDominatedWriteDiscarded(t *testing.T) {
	r := crdt.NewMultiValueRegister[string, string]()

	read := r.Read()
	add := read.DeriveAdd("a")
	r.Apply(r.Write("v1", add))

	read2 := r.Read()
	add2 := read2.DeriveAdd("a")
	r.Apply(r.Write("v2", add2))

	assert.Equal(t, []string{"v2"}, r.Read().Value)
}

func TestMultiValueRegisterEmptyClockDiscarded(t *testing.T) {
	r := crdt.NewMultiValueRegister[string, string]()
	r.Apply(crdt.RegisterPut[string, string]{Clock: crdt.NewVectorClock[string](), Value: "ignored"})
	assert.Empty(t, r.Read().Value)
}

func TestMultiValueRegisterMergeIdempotentAndCommutative(t *testing.T) {
	r1 := crdt.NewMultiValueRegister[string, string]()
	r2 := crdt.NewMultiValueRegister[string, string]()

	read := r1.Read()
	r1.Apply(r1.Write("foo", read.DeriveAdd("a")))
	r2.Apply(r2.Write("bar", read.DeriveAdd("b")))

	a1 := r1.Clone()
	b1 := r2.Clone()
	a1.Merge(b1)

	a2 := r2.Clone()
	b2 := r1.Clone()
	a2.Merge(b2)

	got1 := a1.Read().Value
	got2 := a2.Read().Value
	sort.Strings(got1)
	sort.Strings(got2)
	assert.Equal(t, got1, got2)

	clone := a1.Clone()
	a1.Merge(clone)
	gotAfter := a1.Read().Value
	sort.Strings(gotAfter)
	assert.Equal(t, got1, gotAfter)
}

func TestMultiValueRegisterResetRemove(t *testing.T) {
	r := crdt.NewMultiValueRegister[string, string]()
	read := r.Read()
	add := read.DeriveAdd("a")
	r.Apply(r.Write("foo", add))

	r.ResetRemove(add.Clock)
	assert.Empty(t, r.Read().Value)
}

func TestMultiValueRegisterJSONRoundTrip(t *testing.T) {
	r := crdt.NewMultiValueRegister[string, string]()
	read := r.Read()
	r.Apply(r.Write("foo", read.DeriveAdd("a")))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	out := crdt.NewMultiValueRegister[string, string]()
	require.NoError(t, json.Unmarshal(data, out))
	assert.Equal(t, r.Read().Value, out.Read().Value)
}
