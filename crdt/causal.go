package crdt

import "cmp"

// CausalRead pairs a value with the causal context its replica held at the
// moment of the read: AddClock is everything the replica has observed,
// RmClock is the (possibly smaller) context relevant to removing whatever
// was read. The read accessors of CausalMap and MultiValueRegister, and
// CausalList.Read, return one, so a caller can derive a causally-consistent
// Add or Remove token from a value it observed, without re-reading the
// replica. CausalList's Len, IsEmpty and Get return plain values with no
// causal context.
type CausalRead[V any, A cmp.Ordered] struct {
	AddClock *VectorClock[A]
	RmClock  *VectorClock[A]
	Value    V
}

// DeriveAdd produces the token needed to add a new causal event as actor,
// built from the clock this read observed.
func (r CausalRead[V, A]) DeriveAdd(actor A) AddToken[A] {
	clock := r.AddClock.Clone()
	v := clock.Increment(actor)
	clock.Apply(v)
	return AddToken[A]{Clock: clock, Version: v}
}

// DeriveRemove produces the token needed to remove whatever this read
// observed, carrying the read's remove-relevant causal context forward.
func (r CausalRead[V, A]) DeriveRemove() RemoveToken[A] {
	return RemoveToken[A]{Clock: r.RmClock.Clone()}
}

// Split separates the value from the causal context the read carried,
// returning the value and a value-less read — useful when a caller wants
// to derive a token without holding on to (and accidentally mutating
// through) the read value itself.
func (r CausalRead[V, A]) Split() (V, CausalRead[Empty, A]) {
	return r.Value, CausalRead[Empty, A]{AddClock: r.AddClock, RmClock: r.RmClock}
}

// Empty marks a CausalRead that carries no value of its own, only causal
// context.
type Empty = struct{}

// AddToken carries the clock and version a new causal event must be
// stamped with. It is produced by DeriveAdd and consumed by the
// CmRDT-producing methods (Update, Write, InsertIndex, ...).
type AddToken[A cmp.Ordered] struct {
	Clock   *VectorClock[A]
	Version Version[A]
}

// RemoveToken carries the causal context a remove must be stamped with. It
// is produced by DeriveRemove and consumed by Remove.
type RemoveToken[A cmp.Ordered] struct {
	Clock *VectorClock[A]
}

// Option holds a value that may or may not be present, used where a
// CausalRead's value is optional (CausalMap.Get).
type Option[V any] struct {
	Value   V
	Present bool
}

// Some wraps a present value.
func Some[V any](v V) Option[V] { return Option[V]{Value: v, Present: true} }

// None returns the absent value of type V.
func None[V any]() Option[V] { return Option[V]{} }
