package crdt

import "fmt"

// GapError reports that a version was observed out of causal order: the
// clock has seen the actor's counters only up to Low-1, and the version at
// High leaves a hole at [Low, High) that must be replayed before it can be
// applied.
type GapError[A any] struct {
	Actor A
	Low   uint64
	High  uint64
}

func (e *GapError[A]) Error() string {
	return fmt.Sprintf("crdt: gap in causal order for actor %v: missing versions [%d, %d)", e.Actor, e.Low, e.High)
}

// DoubleSpentError reports that the same (actor, counter) pair was
// attributed to two different keys of a CausalMap across a merge, which
// the data model forbids: a single causal event can only ever originate
// one add.
type DoubleSpentError[K any, A any] struct {
	Actor   A
	Counter uint64
	KeyA    K
	KeyB    K
}

func (e *DoubleSpentError[K, A]) Error() string {
	return fmt.Sprintf("crdt: version %v/%d attributed to both key %v and key %v", e.Actor, e.Counter, e.KeyA, e.KeyB)
}
