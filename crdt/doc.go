// Package crdt provides conflict-free replicated data types: vector
// clocks, a dense fractional identifier space, a causally-ordered
// sequence, an add-wins map with reset-remove semantics, and a
// multi-value register.
//
// Every type here is a plain owned value: no method blocks, retries,
// or takes a context.Context, and nothing is safe for concurrent use
// without a lock the caller supplies themselves. Convergence between
// replicas comes from the algebra (idempotent, commutative apply;
// idempotent, commutative, associative merge), not from coordination.
package crdt
