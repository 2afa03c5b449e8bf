package crdt

import "cmp"

// CmRDT is the operation-based replication contract: an operation is
// validated against the replica's current causal context before it is
// generated downstream, and Apply folds an already-validated operation in.
// Apply must be idempotent and commutative with every other operation this
// replica will ever see, so delivery order and duplicate delivery never
// cause divergence.
type CmRDT[O any] interface {
	ValidateOperation(op O) error
	Apply(op O)
}

// CvRDT is the state-based replication contract: Merge folds another
// replica's full state into this one. Merge must be idempotent,
// commutative, and associative, so any delivery order/duplication of
// states across any subset of replicas converges to the same result.
type CvRDT[Self any] interface {
	ValidateMerge(other Self) error
	Merge(other Self)
}

// ResetRemover is the one non-monotonic operation this package allows:
// forgetting everything a remove's causal context has subsumed, without
// un-forgetting anything the caller hasn't yet observed.
type ResetRemover[A cmp.Ordered] interface {
	ResetRemove(base *VectorClock[A])
}

// Value is the capability set a CausalMap (or any other container)
// requires of its element type: an element must be a CmRDT over its own
// operation type, a CvRDT over itself, support reset-remove, and be
// cloneable. Go has no associated types, so composition (a map whose
// values are themselves maps) is expressed by instantiating Value with the
// container's own concrete type, a pattern sometimes called a
// self-referencing generic constraint.
type Value[V any, O any, A cmp.Ordered] interface {
	CmRDT[O]
	CvRDT[V]
	ResetRemover[A]
	Clone() V
}
