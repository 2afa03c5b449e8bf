package crdt

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Comparable is the tiebreaker constraint an Identifier's path elements
// must satisfy: a total order, so two identifiers with the same rational
// coordinate at some depth can still be told apart.
type Comparable[T any] interface {
	Compare(other T) int
}

// identifierNode is one level of an Identifier's path: a rational
// coordinate plus the tiebreaker (normally an OrderedVersion) that broke
// the tie when this level was allocated.
type identifierNode[T Comparable[T]] struct {
	rat *big.Rat
	tie T
}

// Identifier is a point in a dense total order: between any two
// identifiers, however close, another can always be allocated (Between
// never fails to find room). CausalList uses Identifier[OrderedVersion[A]]
// as its element position so concurrent inserts at "the same place" on two
// replicas still converge to one order, without ever renumbering existing
// elements.
//
// The empty path sorts as the identifier greater than any of its own
// extensions: a prefix is greater than anything built on top of it, which
// is what lets Between walk two paths and know when it has run out of
// shared structure.
type Identifier[T Comparable[T]] struct {
	path []identifierNode[T]
}

// Compare returns -1, 0, or 1 as id sorts before, equal to, or after
// other, walking both paths coordinate by coordinate.
func (id Identifier[T]) Compare(other Identifier[T]) int {
	i := 0
	for {
		selfDone := i >= len(id.path)
		otherDone := i >= len(other.path)
		switch {
		case selfDone && otherDone:
			return 0
		case selfDone:
			return 1
		case otherDone:
			return -1
		}
		a, b := id.path[i], other.path[i]
		if c := a.rat.Cmp(b.rat); c != 0 {
			return c
		}
		if c := a.tie.Compare(b.tie); c != 0 {
			return c
		}
		i++
	}
}

// Value returns the tiebreaker of the identifier's final path element —
// the event that allocated this exact slot.
func (id Identifier[T]) Value() T {
	return id.path[len(id.path)-1].tie
}

// Depth returns the length of the identifier's path.
func (id Identifier[T]) Depth() int {
	return len(id.path)
}

// rationalBetween returns a rational strictly between low and high, with
// either bound allowed to be absent (nil): absent-absent picks 0,
// low-absent picks low+1, absent-high picks high-1.
func rationalBetween(low, high *big.Rat) *big.Rat {
	switch {
	case low == nil && high == nil:
		return big.NewRat(0, 1)
	case low != nil && high == nil:
		return new(big.Rat).Add(low, big.NewRat(1, 1))
	case low == nil && high != nil:
		return new(big.Rat).Sub(high, big.NewRat(1, 1))
	default:
		sum := new(big.Rat).Add(low, high)
		return sum.Quo(sum, big.NewRat(2, 1))
	}
}

// Between allocates a fresh identifier strictly between low and high,
// breaking ties with cursor (normally the OrderedVersion of the operation
// doing the allocating). Either bound may be nil, meaning "no lower/upper
// neighbor yet" (inserting at the head or tail of a list). If low and high
// are equal, there is no slot between them and the caller's insertion
// point does not exist; Between returns high unchanged so the caller can
// detect this.
func Between[T Comparable[T]](low, high *Identifier[T], cursor T) Identifier[T] {
	if low != nil && high != nil {
		switch low.Compare(*high) {
		case 1:
			return Between(high, low, cursor)
		case 0:
			return *high
		}

		var path []identifierNode[T]
		lowPath, highPath := low.path, high.path
		li, hi := 0, 0
		for {
			var lowNode, highNode *identifierNode[T]
			if li < len(lowPath) {
				lowNode = &lowPath[li]
			}
			if hi < len(highPath) {
				highNode = &highPath[hi]
			}

			if lowNode != nil && highNode != nil && lowNode.rat.Cmp(highNode.rat) == 0 {
				switch {
				case lowNode.tie.Compare(cursor) < 0 && cursor.Compare(highNode.tie) < 0:
					path = append(path, identifierNode[T]{rat: new(big.Rat).Set(highNode.rat), tie: cursor})
					return Identifier[T]{path: path}
				case lowNode.tie.Compare(highNode.tie) == 0:
					path = append(path, identifierNode[T]{rat: new(big.Rat).Set(highNode.rat), tie: highNode.tie})
					li++
					hi++
				default:
					path = append(path, identifierNode[T]{rat: new(big.Rat).Set(highNode.rat), tie: highNode.tie})
					li = len(lowPath) // low exhausted from here on
					hi++
				}
				continue
			}

			var lr, hr *big.Rat
			if lowNode != nil {
				lr = lowNode.rat
			}
			if highNode != nil {
				hr = highNode.rat
			}
			path = append(path, identifierNode[T]{rat: rationalBetween(lr, hr), tie: cursor})
			return Identifier[T]{path: path}
		}
	}

	var lowRat, highRat *big.Rat
	if low != nil && len(low.path) > 0 {
		lowRat = low.path[0].rat
	}
	if high != nil && len(high.path) > 0 {
		highRat = high.path[0].rat
	}
	return Identifier[T]{path: []identifierNode[T]{{rat: rationalBetween(lowRat, highRat), tie: cursor}}}
}

type identifierWireNode[T any] struct {
	Rat string `json:"rat"`
	Tie T      `json:"tie"`
}

// MarshalJSON encodes the identifier as an array of {rat, tie} pairs, the
// rational serialized through big.Rat.RatString() so it round-trips
// exactly, with no float coercion.
func (id Identifier[T]) MarshalJSON() ([]byte, error) {
	wire := make([]identifierWireNode[T], len(id.path))
	for i, n := range id.path {
		wire[i] = identifierWireNode[T]{Rat: n.rat.RatString(), Tie: n.tie}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes an identifier previously written by MarshalJSON.
func (id *Identifier[T]) UnmarshalJSON(data []byte) error {
	var wire []identifierWireNode[T]
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	path := make([]identifierNode[T], len(wire))
	for i, w := range wire {
		r, ok := new(big.Rat).SetString(w.Rat)
		if !ok {
			return fmt.Errorf("crdt: invalid rational %q in identifier", w.Rat)
		}
		path[i] = identifierNode[T]{rat: r, tie: w.Tie}
	}
	id.path = path
	return nil
}
