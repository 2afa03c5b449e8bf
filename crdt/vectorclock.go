package crdt

import (
	"cmp"
	"encoding/json"
	"slices"
)

// Ordering is the result of comparing two VectorClocks, which only form a
// partial order: two clocks can be genuinely Concurrent, unlike the total
// order cmp.Ordered gives you for a single actor's counters.
type Ordering int

const (
	OrderingLess Ordering = iota - 1
	OrderingEqual
	OrderingGreater
)

// VectorClock tracks the highest counter seen from every actor. It is the
// causal-context primitive every other type in this package is built on:
// CausalRead, CausalMap, CausalList, and MultiValueRegister all carry or
// compare VectorClocks rather than timestamps.
type VectorClock[A cmp.Ordered] struct {
	versions map[A]uint64
}

// NewVectorClock returns an empty clock, equivalent to the zero clock of
// every actor.
func NewVectorClock[A cmp.Ordered]() *VectorClock[A] {
	return &VectorClock[A]{versions: make(map[A]uint64)}
}

// Get returns the highest counter this clock has observed for actor, or 0
// if the actor has never been seen.
func (vc *VectorClock[A]) Get(actor A) uint64 {
	if vc == nil || vc.versions == nil {
		return 0
	}
	return vc.versions[actor]
}

// IsEmpty reports whether the clock has observed any actor at all.
func (vc *VectorClock[A]) IsEmpty() bool {
	return vc == nil || len(vc.versions) == 0
}

// Actors returns the clock's known actors in sorted order, for
// deterministic iteration without a third-party ordered map.
func (vc *VectorClock[A]) Actors() []A {
	if vc == nil {
		return nil
	}
	actors := make([]A, 0, len(vc.versions))
	for a := range vc.versions {
		actors = append(actors, a)
	}
	slices.Sort(actors)
	return actors
}

// Iterate returns the clock's entries as Versions, sorted by actor.
func (vc *VectorClock[A]) Iterate() []Version[A] {
	actors := vc.Actors()
	out := make([]Version[A], len(actors))
	for i, a := range actors {
		out[i] = Version[A]{Actor: a, Counter: vc.versions[a]}
	}
	return out
}

// ValidateOperation checks that v does not skip ahead over a gap in
// v.Actor's counters: a version more than one past the recorded counter
// yields a *GapError. A version already seen (stale or duplicate) is
// accepted, since Apply ignores it.
func (vc *VectorClock[A]) ValidateOperation(v Version[A]) error {
	seen := vc.Get(v.Actor)
	if v.Counter <= seen {
		return nil // stale or duplicate: Apply will no-op, not an error
	}
	if v.Counter > seen+1 {
		return &GapError[A]{Actor: v.Actor, Low: seen + 1, High: v.Counter}
	}
	return nil
}

// Apply advances the clock's knowledge of v.Actor to v.Counter, if v is
// newer than what's already recorded. Idempotent: applying the same or an
// older version is a no-op.
func (vc *VectorClock[A]) Apply(v Version[A]) {
	if vc.versions == nil {
		vc.versions = make(map[A]uint64)
	}
	if v.Counter > vc.versions[v.Actor] {
		vc.versions[v.Actor] = v.Counter
	}
}

// Increment returns the next Version for actor without mutating the
// clock; the caller applies it once the downstream operation is accepted.
func (vc *VectorClock[A]) Increment(actor A) Version[A] {
	return Version[A]{Actor: actor, Counter: vc.Get(actor) + 1}
}

// Equal reports whether two clocks have identical entries (actors with a
// zero counter are indistinguishable from absent actors).
func (vc *VectorClock[A]) Equal(other *VectorClock[A]) bool {
	for _, a := range vc.Actors() {
		if vc.Get(a) != other.Get(a) {
			return false
		}
	}
	for _, a := range other.Actors() {
		if vc.Get(a) != other.Get(a) {
			return false
		}
	}
	return true
}

// PartialCompare compares vc to other. The second return value is false
// when the clocks are concurrent (neither dominates the other).
func (vc *VectorClock[A]) PartialCompare(other *VectorClock[A]) (Ordering, bool) {
	if vc.Equal(other) {
		return OrderingEqual, true
	}
	selfDominates := true
	for _, a := range other.Actors() {
		if vc.Get(a) < other.Get(a) {
			selfDominates = false
			break
		}
	}
	if selfDominates {
		return OrderingGreater, true
	}
	otherDominates := true
	for _, a := range vc.Actors() {
		if other.Get(a) < vc.Get(a) {
			otherDominates = false
			break
		}
	}
	if otherDominates {
		return OrderingLess, true
	}
	return OrderingEqual, false
}

// Concurrent reports whether neither clock causally dominates the other.
func (vc *VectorClock[A]) Concurrent(other *VectorClock[A]) bool {
	_, ok := vc.PartialCompare(other)
	return !ok
}

// Merge folds other into vc, taking the pointwise maximum counter for
// every actor. Idempotent, commutative, and associative: the classic
// CvRDT join for a vector clock.
func (vc *VectorClock[A]) Merge(other *VectorClock[A]) {
	for _, v := range other.Iterate() {
		vc.Apply(v)
	}
	vectorClockMerges.Inc()
}

// Intersection returns a new clock holding, for every actor, l's counter
// where it is exactly equal to r's counter (an actor present in both at
// different counters is dropped entirely, not lowered to the minimum).
// Used by CausalMap's merge to find the causal context two replicas' views
// of an entry actually agree on.
func Intersection[A cmp.Ordered](l, r *VectorClock[A]) *VectorClock[A] {
	out := NewVectorClock[A]()
	for _, a := range l.Actors() {
		lc := l.Get(a)
		if rc := r.Get(a); rc == lc && lc > 0 {
			out.versions[a] = lc
		}
	}
	return out
}

// CloneWithout returns a copy of vc holding only the actors whose counter
// in vc exceeds base's, each at vc's counter; actors base has caught up on
// are left out. The result equals a Clone of vc followed by
// ResetRemove(base), and vc itself is not modified.
func (vc *VectorClock[A]) CloneWithout(base *VectorClock[A]) *VectorClock[A] {
	out := NewVectorClock[A]()
	for _, a := range vc.Actors() {
		c := vc.Get(a)
		b := base.Get(a)
		if c > b {
			out.versions[a] = c
		}
	}
	return out
}

// ResetRemove bounds vc's knowledge by base: every actor base has fully
// caught up on (or surpassed) is dropped entirely, and every other actor
// keeps its counter unchanged — a slot is erased whole or left intact,
// never lowered. This is the non-monotonic operation that lets
// reset-remove map semantics "forget" causal history a remove has
// subsumed, while keeping events base hasn't seen.
func (vc *VectorClock[A]) ResetRemove(base *VectorClock[A]) {
	if vc.versions == nil {
		return
	}
	for a, c := range vc.versions {
		b := base.Get(a)
		switch {
		case b >= c:
			delete(vc.versions, a)
		default:
			vc.versions[a] = c
		}
	}
}

// GreatestLowerBound lowers vc in place to the pointwise minimum of vc and
// other, dropping actors that fall to zero.
func (vc *VectorClock[A]) GreatestLowerBound(other *VectorClock[A]) {
	glb := make(map[A]uint64)
	for _, a := range vc.Actors() {
		lc := vc.Get(a)
		if rc := other.Get(a); rc < lc {
			lc = rc
		}
		if lc > 0 {
			glb[a] = lc
		}
	}
	vc.versions = glb
}

// Clone returns an independent deep copy.
func (vc *VectorClock[A]) Clone() *VectorClock[A] {
	out := NewVectorClock[A]()
	for a, c := range vc.versions {
		out.versions[a] = c
	}
	return out
}

// MarshalJSON encodes the clock as a sparse object {"actor":counter,...}.
// encoding/json requires actors used as object keys to be strings, ints,
// or implement encoding.TextMarshaler.
func (vc *VectorClock[A]) MarshalJSON() ([]byte, error) {
	if vc.versions == nil {
		return json.Marshal(map[A]uint64{})
	}
	return json.Marshal(vc.versions)
}

// UnmarshalJSON decodes a sparse clock object.
func (vc *VectorClock[A]) UnmarshalJSON(data []byte) error {
	m := make(map[A]uint64)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	vc.versions = m
	return nil
}
