package crdt_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polqt/crdtcore/crdt"
)

func ov(actor string, counter uint64) crdt.OrderedVersion[string] {
	return crdt.OrderedVersion[string]{Actor: actor, Counter: counter}
}

func TestIdentifierBetweenBothAbsent(t *testing.T) {
	id := crdt.Between[crdt.OrderedVersion[string]](nil, nil, ov("a", 1))
	assert.Equal(t, 1, id.Depth())
}

func TestIdentifierBetweenDensity(t *testing.T) {
	low := crdt.Between[crdt.OrderedVersion[string]](nil, nil, ov("a", 1))
	high := crdt.Between[crdt.OrderedVersion[string]](&low, nil, ov("a", 2))
	require.Equal(t, -1, low.Compare(high))

	mid := crdt.Between(&low, &high, ov("a", 3))
	assert.Equal(t, -1, low.Compare(mid))
	assert.Equal(t, -1, mid.Compare(high))
}

func TestIdentifierBetweenManyInsertionsStayOrdered(t *testing.T) {
	// Repeatedly insert between the latest insertion and high; density must
	// never exhaust, however many times it's exercised.
	low := crdt.Between[crdt.OrderedVersion[string]](nil, nil, ov("a", 1))
	high := crdt.Between[crdt.OrderedVersion[string]](&low, nil, ov("a", 2))

	cur := low
	for i := 0; i < 200; i++ {
		next := crdt.Between(&cur, &high, ov("a", uint64(i+10)))
		require.Equal(t, -1, cur.Compare(next), "iteration %d", i)
		require.Equal(t, -1, next.Compare(high), "iteration %d", i)
		cur = next
	}
}

func TestIdentifierBetweenEqualEndpointsReturnsThatEndpoint(t *testing.T) {
	single := crdt.Between[crdt.OrderedVersion[string]](nil, nil, ov("a", 1))
	result := crdt.Between(&single, &single, ov("a", 2))
	assert.Equal(t, 0, single.Compare(result))
}

func TestIdentifierBetweenSwapsOutOfOrderBounds(t *testing.T) {
	low := crdt.Between[crdt.OrderedVersion[string]](nil, nil, ov("a", 1))
	high := crdt.Between[crdt.OrderedVersion[string]](&low, nil, ov("a", 2))

	// pass them swapped: Between should still land strictly between.
	mid := crdt.Between(&high, &low, ov("a", 3))
	assert.Equal(t, -1, low.Compare(mid))
	assert.Equal(t, -1, mid.Compare(high))
}

func TestIdentifierTotalOrderIsConsistent(t *testing.T) {
	a := crdt.Between[crdt.OrderedVersion[string]](nil, nil, ov("a", 1))
	b := crdt.Between[crdt.OrderedVersion[string]](&a, nil, ov("a", 2))
	c := crdt.Between(&a, &b, ov("a", 3))

	// antisymmetry + transitivity spot-check across the three points
	ids := []crdt.Identifier[crdt.OrderedVersion[string]]{a, c, b}
	for i := range ids {
		for j := range ids {
			if i == j {
				assert.Equal(t, 0, ids[i].Compare(ids[j]))
				continue
			}
			assert.Equal(t, -ids[j].Compare(ids[i]), ids[i].Compare(ids[j]))
		}
	}
}

func TestIdentifierJSONRoundTrip(t *testing.T) {
	low := crdt.Between[crdt.OrderedVersion[string]](nil, nil, ov("a", 1))
	high := crdt.Between[crdt.OrderedVersion[string]](&low, nil, ov("a", 2))
	mid := crdt.Between(&low, &high, ov("a", 3))

	data, err := json.Marshal(mid)
	require.NoError(t, err)

	var out crdt.Identifier[crdt.OrderedVersion[string]]
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 0, mid.Compare(out))
}
