package crdt

import (
	"cmp"
	"encoding/json"
	"fmt"
	"sort"
)

// ListOperation is the sum type of operations a CausalList accepts:
// ListInsert or ListDelete. Go has no enum, so the two concrete types
// implement a private marker method to seal the set.
type ListOperation[T any, A cmp.Ordered] interface {
	isListOperation()
	version() Version[A]
}

// ListInsert places value at the dense position id.
type ListInsert[T any, A cmp.Ordered] struct {
	ID    Identifier[OrderedVersion[A]]
	Value T
}

func (ListInsert[T, A]) isListOperation() {}

func (op ListInsert[T, A]) version() Version[A] { return op.ID.Value().ToVersion() }

// ListDelete removes whatever currently occupies id, stamped with the
// deleting actor's own fresh version (not the version that created id).
type ListDelete[T any, A cmp.Ordered] struct {
	ID  Identifier[OrderedVersion[A]]
	Ver Version[A]
}

func (ListDelete[T, A]) isListOperation() {}

func (op ListDelete[T, A]) version() Version[A] { return op.Ver }

type listOperationWire[T any, A cmp.Ordered] struct {
	Kind  string                        `json:"kind"`
	ID    Identifier[OrderedVersion[A]] `json:"id"`
	Value T                             `json:"value"`
	Ver   Version[A]                    `json:"ver"`
}

// MarshalListOperation encodes an operation with a "kind" discriminator
// ("insert" or "delete") so the concrete variant survives a JSON round
// trip.
func MarshalListOperation[T any, A cmp.Ordered](op ListOperation[T, A]) ([]byte, error) {
	switch o := op.(type) {
	case ListInsert[T, A]:
		return json.Marshal(listOperationWire[T, A]{Kind: "insert", ID: o.ID, Value: o.Value})
	case ListDelete[T, A]:
		return json.Marshal(listOperationWire[T, A]{Kind: "delete", ID: o.ID, Ver: o.Ver})
	default:
		return nil, fmt.Errorf("crdt: unknown list operation %T", op)
	}
}

// UnmarshalListOperation decodes an operation previously written by
// MarshalListOperation.
func UnmarshalListOperation[T any, A cmp.Ordered](data []byte) (ListOperation[T, A], error) {
	var wire listOperationWire[T, A]
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	switch wire.Kind {
	case "insert":
		return ListInsert[T, A]{ID: wire.ID, Value: wire.Value}, nil
	case "delete":
		return ListDelete[T, A]{ID: wire.ID, Ver: wire.Ver}, nil
	default:
		return nil, fmt.Errorf("crdt: unknown list operation kind %q", wire.Kind)
	}
}

type listEntry[T any, A cmp.Ordered] struct {
	ID    Identifier[OrderedVersion[A]]
	Value T
}

// CausalList is a causally-ordered sequence keyed by dense fractional
// identifiers rather than integer offsets: concurrent inserts at the same
// logical position converge to a deterministic order on every replica,
// without renumbering anything already present.
type CausalList[T any, A cmp.Ordered] struct {
	entries []listEntry[T, A] // kept sorted by ID at all times
	clock   *VectorClock[A]
}

// NewCausalList returns an empty list.
func NewCausalList[T any, A cmp.Ordered]() *CausalList[T, A] {
	return &CausalList[T, A]{clock: NewVectorClock[A]()}
}

// Len returns the number of live elements.
func (l *CausalList[T, A]) Len() int { return len(l.entries) }

// IsEmpty reports whether the list has no live elements.
func (l *CausalList[T, A]) IsEmpty() bool { return len(l.entries) == 0 }

// Read returns the list's current values in order together with the
// causal context the read observed.
func (l *CausalList[T, A]) Read() CausalRead[[]T, A] {
	values := make([]T, len(l.entries))
	for i, e := range l.entries {
		values[i] = e.Value
	}
	return CausalRead[[]T, A]{AddClock: l.clock.Clone(), RmClock: l.clock.Clone(), Value: values}
}

// Get returns the value at the given position, if any.
func (l *CausalList[T, A]) Get(index int) (T, bool) {
	var zero T
	if index < 0 || index >= len(l.entries) {
		return zero, false
	}
	return l.entries[index].Value, true
}

func (l *CausalList[T, A]) search(id Identifier[OrderedVersion[A]]) (int, bool) {
	idx := sort.Search(len(l.entries), func(i int) bool { return l.entries[i].ID.Compare(id) >= 0 })
	found := idx < len(l.entries) && l.entries[idx].ID.Compare(id) == 0
	return idx, found
}

// InsertIndex derives the operation that places value at position index
// (clamped to the list's current length), allocating a fresh dense
// identifier between index-1's and index's neighbors.
func (l *CausalList[T, A]) InsertIndex(index int, value T, actor A) ListInsert[T, A] {
	if index > len(l.entries) {
		index = len(l.entries)
	}
	if index < 0 {
		index = 0
	}
	var prev, next *Identifier[OrderedVersion[A]]
	if index > 0 {
		p := l.entries[index-1].ID
		prev = &p
	}
	if index < len(l.entries) {
		n := l.entries[index].ID
		next = &n
	}
	ver := l.clock.Increment(actor)
	id := Between(prev, next, VersionToOrdered(ver))
	return ListInsert[T, A]{ID: id, Value: value}
}

// Append derives the operation that places value at the end of the list.
func (l *CausalList[T, A]) Append(value T, actor A) ListInsert[T, A] {
	return l.InsertIndex(len(l.entries), value, actor)
}

// DeleteIndex derives the operation that removes the element at position
// index, if one exists.
func (l *CausalList[T, A]) DeleteIndex(index int, actor A) (ListDelete[T, A], bool) {
	if index < 0 || index >= len(l.entries) {
		return ListDelete[T, A]{}, false
	}
	id := l.entries[index].ID
	ver := l.clock.Increment(actor)
	return ListDelete[T, A]{ID: id, Ver: ver}, true
}

// ValidateOperation checks op's version against the list's clock.
func (l *CausalList[T, A]) ValidateOperation(op ListOperation[T, A]) error {
	return l.clock.ValidateOperation(op.version())
}

// Apply folds an already-validated operation into the list. Idempotent:
// an operation whose version the clock has already recorded is a no-op.
func (l *CausalList[T, A]) Apply(op ListOperation[T, A]) {
	ver := op.version()
	if ver.Counter <= l.clock.Get(ver.Actor) {
		return
	}
	l.clock.Apply(ver)
	switch o := op.(type) {
	case ListInsert[T, A]:
		idx, found := l.search(o.ID)
		if found {
			return // first-write-wins: the slot is already occupied
		}
		entry := listEntry[T, A]{ID: o.ID, Value: o.Value}
		l.entries = append(l.entries, listEntry[T, A]{})
		copy(l.entries[idx+1:], l.entries[idx:])
		l.entries[idx] = entry
	case ListDelete[T, A]:
		if idx, found := l.search(o.ID); found {
			l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
		}
	}
}

// ValidateMerge is infallible: two lists merge unconditionally.
func (l *CausalList[T, A]) ValidateMerge(other *CausalList[T, A]) error { return nil }

// Merge folds other's entries into l: entries present in only one replica
// are kept unless the other replica's clock already dominates the id's
// creating version (meaning it was deleted there); shared ids are kept as
// is since first-write-wins already resolved any conflict at Apply time.
func (l *CausalList[T, A]) Merge(other *CausalList[T, A]) {
	merged := make([]listEntry[T, A], 0, len(l.entries)+len(other.entries))
	i, j := 0, 0
	for i < len(l.entries) && j < len(other.entries) {
		a, b := l.entries[i], other.entries[j]
		switch a.ID.Compare(b.ID) {
		case -1:
			if l.survives(a.ID, other.clock) {
				merged = append(merged, a)
			}
			i++
		case 1:
			if l.survives(b.ID, l.clock) {
				merged = append(merged, b)
			}
			j++
		default:
			merged = append(merged, a)
			i++
			j++
		}
	}
	for ; i < len(l.entries); i++ {
		if l.survives(l.entries[i].ID, other.clock) {
			merged = append(merged, l.entries[i])
		}
	}
	for ; j < len(other.entries); j++ {
		if l.survives(other.entries[j].ID, l.clock) {
			merged = append(merged, other.entries[j])
		}
	}
	l.entries = merged
	l.clock.Merge(other.clock)
}

// survives reports whether an entry the other side doesn't have should be
// kept: it should, unless the other clock has already seen (and therefore,
// since it's absent, deleted) the version that created it.
func (l *CausalList[T, A]) survives(id Identifier[OrderedVersion[A]], otherClock *VectorClock[A]) bool {
	v := id.Value().ToVersion()
	return v.Counter > otherClock.Get(v.Actor)
}

// ResetRemove bounds the list's clock by base; entries whose creating
// version falls at or below base are pruned along with it.
func (l *CausalList[T, A]) ResetRemove(base *VectorClock[A]) {
	kept := l.entries[:0]
	for _, e := range l.entries {
		v := e.ID.Value().ToVersion()
		if v.Counter > base.Get(v.Actor) {
			kept = append(kept, e)
		}
	}
	l.entries = kept
	l.clock.ResetRemove(base)
}

// Clone returns an independent deep copy.
func (l *CausalList[T, A]) Clone() *CausalList[T, A] {
	out := &CausalList[T, A]{clock: l.clock.Clone(), entries: make([]listEntry[T, A], len(l.entries))}
	copy(out.entries, l.entries)
	return out
}

type listEntryWire[T any, A cmp.Ordered] struct {
	ID    Identifier[OrderedVersion[A]] `json:"id"`
	Value T                             `json:"value"`
}

// MarshalJSON encodes the list as an ordered array of {id, value} objects,
// preserving order through a format whose object keys are unordered.
func (l *CausalList[T, A]) MarshalJSON() ([]byte, error) {
	wire := make([]listEntryWire[T, A], len(l.entries))
	for i, e := range l.entries {
		wire[i] = listEntryWire[T, A]{ID: e.ID, Value: e.Value}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a list previously written by MarshalJSON. The
// list's internal clock is not part of the wire format and is rebuilt from
// the identifiers' own versions.
func (l *CausalList[T, A]) UnmarshalJSON(data []byte) error {
	var wire []listEntryWire[T, A]
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	entries := make([]listEntry[T, A], len(wire))
	clock := NewVectorClock[A]()
	for i, w := range wire {
		entries[i] = listEntry[T, A]{ID: w.ID, Value: w.Value}
		clock.Apply(w.ID.Value().ToVersion())
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID.Compare(entries[j].ID) < 0 })
	l.entries = entries
	l.clock = clock
	return nil
}
