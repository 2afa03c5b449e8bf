package crdt

import (
	"cmp"
	"encoding/json"
)

// RegisterPut is the single operation a MultiValueRegister accepts: a
// value written under the causal context of the write that produced it.
type RegisterPut[V any, A cmp.Ordered] struct {
	Clock *VectorClock[A]
	Value V
}

type registerEntry[V any, A cmp.Ordered] struct {
	Clock *VectorClock[A]
	Value V
}

// MultiValueRegister holds every value written concurrently, as an
// antichain of (clock, value) pairs: a write that's causally after every
// stored value replaces them all, but two writes whose clocks are
// incomparable both survive until an explicit write resolves them.
type MultiValueRegister[V any, A cmp.Ordered] struct {
	entries []registerEntry[V, A]
}

// NewMultiValueRegister returns an empty register.
func NewMultiValueRegister[V any, A cmp.Ordered]() *MultiValueRegister[V, A] {
	return &MultiValueRegister[V, A]{}
}

// Read returns every currently-stored value together with the causal
// context implied by their union.
func (r *MultiValueRegister[V, A]) Read() CausalRead[[]V, A] {
	clock := NewVectorClock[A]()
	values := make([]V, 0, len(r.entries))
	for _, e := range r.entries {
		clock.Merge(e.Clock)
		values = append(values, e.Value)
	}
	return CausalRead[[]V, A]{AddClock: clock, RmClock: clock.Clone(), Value: values}
}

// Write derives the operation that replaces every value this add token's
// read observed with value.
func (r *MultiValueRegister[V, A]) Write(value V, add AddToken[A]) RegisterPut[V, A] {
	return RegisterPut[V, A]{Clock: add.Clock, Value: value}
}

// ValidateOperation is infallible: any put is acceptable, since a stale or
// dominated one is simply discarded at Apply time.
func (r *MultiValueRegister[V, A]) ValidateOperation(op RegisterPut[V, A]) error { return nil }

// Apply folds a put into the register: every stored value the put's clock
// already dominates is dropped, and the put itself is kept only if no
// surviving stored value in turn dominates it.
func (r *MultiValueRegister[V, A]) Apply(op RegisterPut[V, A]) {
	if op.Clock.IsEmpty() {
		return
	}
	kept := make([]registerEntry[V, A], 0, len(r.entries)+1)
	for _, e := range r.entries {
		if ord, ok := e.Clock.PartialCompare(op.Clock); !ok || ord == OrderingGreater {
			kept = append(kept, e)
		}
	}
	shouldAdd := true
	for _, e := range kept {
		if ord, ok := e.Clock.PartialCompare(op.Clock); ok && ord == OrderingGreater {
			shouldAdd = false
			break
		}
	}
	if shouldAdd {
		kept = append(kept, registerEntry[V, A]{Clock: op.Clock, Value: op.Value})
	} else {
		registerConflictingWrites.Inc()
	}
	r.entries = kept
}

// ValidateMerge is infallible: any two registers merge unconditionally.
func (r *MultiValueRegister[V, A]) ValidateMerge(other *MultiValueRegister[V, A]) error { return nil }

// Merge folds other's antichain into r, dropping any value strictly
// dominated by a value on the other side and keeping the rest, deduped by
// clock.
func (r *MultiValueRegister[V, A]) Merge(other *MultiValueRegister[V, A]) {
	kept := make([]registerEntry[V, A], 0, len(r.entries)+len(other.entries))
	for _, e := range r.entries {
		dominated := false
		for _, oe := range other.entries {
			if ord, ok := e.Clock.PartialCompare(oe.Clock); ok && ord == OrderingLess {
				dominated = true
				break
			}
		}
		if !dominated {
			kept = append(kept, e)
		}
	}
	for _, oe := range other.entries {
		dominated := false
		for _, e := range kept {
			if ord, ok := oe.Clock.PartialCompare(e.Clock); ok && ord == OrderingLess {
				dominated = true
				break
			}
		}
		if dominated {
			continue
		}
		exists := false
		for _, e := range kept {
			if e.Clock.Equal(oe.Clock) {
				exists = true
				break
			}
		}
		if !exists {
			kept = append(kept, oe)
		}
	}
	r.entries = kept
}

// ResetRemove bounds every stored value's clock by base, dropping any
// value base fully subsumes.
func (r *MultiValueRegister[V, A]) ResetRemove(base *VectorClock[A]) {
	kept := make([]registerEntry[V, A], 0, len(r.entries))
	for _, e := range r.entries {
		nc := e.Clock.Clone()
		nc.ResetRemove(base)
		if !nc.IsEmpty() {
			kept = append(kept, registerEntry[V, A]{Clock: nc, Value: e.Value})
		}
	}
	r.entries = kept
}

// Clone returns an independent deep copy. V is copied by value assignment,
// so register value types should be plain value-semantics types (strings,
// numbers, immutable structs) or provide their own deep-copy semantics.
func (r *MultiValueRegister[V, A]) Clone() *MultiValueRegister[V, A] {
	out := &MultiValueRegister[V, A]{entries: make([]registerEntry[V, A], len(r.entries))}
	for i, e := range r.entries {
		out.entries[i] = registerEntry[V, A]{Clock: e.Clock.Clone(), Value: e.Value}
	}
	return out
}

type registerEntryWire[V any, A cmp.Ordered] struct {
	Clock *VectorClock[A] `json:"clock"`
	Value V               `json:"value"`
}

// MarshalJSON encodes the register as an array of {clock, value} entries.
func (r *MultiValueRegister[V, A]) MarshalJSON() ([]byte, error) {
	wire := make([]registerEntryWire[V, A], len(r.entries))
	for i, e := range r.entries {
		wire[i] = registerEntryWire[V, A]{Clock: e.Clock, Value: e.Value}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a register previously written by MarshalJSON.
func (r *MultiValueRegister[V, A]) UnmarshalJSON(data []byte) error {
	var wire []registerEntryWire[V, A]
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	entries := make([]registerEntry[V, A], len(wire))
	for i, w := range wire {
		entries[i] = registerEntry[V, A]{Clock: w.Clock, Value: w.Value}
	}
	r.entries = entries
	return nil
}
