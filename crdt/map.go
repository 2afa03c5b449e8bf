package crdt

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// MapOperation is the sum type of operations a CausalMap accepts:
// MapRemove or MapUpdate[K, O, A]. Go has no enum, so both concrete types
// implement a private marker method to seal the set.
type MapOperation[K comparable, A cmp.Ordered] interface {
	isMapOperation()
}

// MapRemove deletes every key in Keys, stamped with the removing
// replica's causal context at the time of the read the keys came from.
type MapRemove[K comparable, A cmp.Ordered] struct {
	Clock *VectorClock[A]
	Keys  []K
}

func (MapRemove[K, A]) isMapOperation() {}

// MapUpdate applies a child operation Op to the value stored at Key,
// stamped with the fresh version Ver.
type MapUpdate[K comparable, O any, A cmp.Ordered] struct {
	Ver Version[A]
	Key K
	Op  O
}

func (MapUpdate[K, O, A]) isMapOperation() {}

type mapOperationWire[K comparable, O any, A cmp.Ordered] struct {
	Kind  string          `json:"kind"`
	Clock *VectorClock[A] `json:"clock,omitempty"`
	Keys  []K             `json:"keys,omitempty"`
	Ver   Version[A]      `json:"ver"`
	Key   K               `json:"key,omitempty"`
	Op    O               `json:"op,omitempty"`
}

// MarshalMapOperation encodes an operation with a "kind" discriminator
// ("remove" or "update") so the concrete variant survives a JSON round
// trip.
func MarshalMapOperation[K comparable, O any, A cmp.Ordered](op MapOperation[K, A]) ([]byte, error) {
	switch o := op.(type) {
	case MapRemove[K, A]:
		return json.Marshal(mapOperationWire[K, O, A]{Kind: "remove", Clock: o.Clock, Keys: o.Keys})
	case MapUpdate[K, O, A]:
		return json.Marshal(mapOperationWire[K, O, A]{Kind: "update", Ver: o.Ver, Key: o.Key, Op: o.Op})
	default:
		return nil, fmt.Errorf("crdt: unknown map operation %T", op)
	}
}

// UnmarshalMapOperation decodes an operation previously written by
// MarshalMapOperation.
func UnmarshalMapOperation[K comparable, O any, A cmp.Ordered](data []byte) (MapOperation[K, A], error) {
	var wire mapOperationWire[K, O, A]
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	switch wire.Kind {
	case "remove":
		return MapRemove[K, A]{Clock: wire.Clock, Keys: wire.Keys}, nil
	case "update":
		return MapUpdate[K, O, A]{Ver: wire.Ver, Key: wire.Key, Op: wire.Op}, nil
	default:
		return nil, fmt.Errorf("crdt: unknown map operation kind %q", wire.Kind)
	}
}

type mapEntry[V any, A cmp.Ordered] struct {
	Clock *VectorClock[A]
	Value V
}

type deferredRemove[K comparable, A cmp.Ordered] struct {
	Clock *VectorClock[A]
	Keys  map[K]struct{}
}

// CausalMap is an add-wins map with reset-remove semantics: a concurrent
// add and remove of the same key resolves in favor of the add, and a
// remove whose causal context hasn't fully arrived yet is parked rather
// than dropped, then replayed every time the map's clock advances.
type CausalMap[K cmp.Ordered, V Value[V, O, A], O any, A cmp.Ordered] struct {
	clock    *VectorClock[A]
	entries  map[K]*mapEntry[V, A]
	deferred []deferredRemove[K, A]
	newValue func() V
	logger   *zap.Logger
}

// MapOption configures a CausalMap at construction time.
type MapOption[K cmp.Ordered, V Value[V, O, A], O any, A cmp.Ordered] func(*CausalMap[K, V, O, A])

// WithLogger attaches a structured logger for the map's internal
// decisions (deferred-remove parking/draining, double-spent detection). A
// nil logger is ignored, leaving the default no-op logger in place.
func WithLogger[K cmp.Ordered, V Value[V, O, A], O any, A cmp.Ordered](logger *zap.Logger) MapOption[K, V, O, A] {
	return func(m *CausalMap[K, V, O, A]) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewCausalMap returns an empty map. newValue must return the zero element
// of V (the value a key has before any update has ever touched it) —
// Go has no Default trait, so the map asks for an explicit factory instead
// of assuming V's zero value is usable (V is frequently a pointer type).
func NewCausalMap[K cmp.Ordered, V Value[V, O, A], O any, A cmp.Ordered](newValue func() V, opts ...MapOption[K, V, O, A]) *CausalMap[K, V, O, A] {
	m := &CausalMap[K, V, O, A]{
		clock:    NewVectorClock[A](),
		entries:  make(map[K]*mapEntry[V, A]),
		newValue: newValue,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len returns the number of live keys together with the causal context
// the read observed.
func (m *CausalMap[K, V, O, A]) Len() CausalRead[int, A] {
	return CausalRead[int, A]{AddClock: m.clock.Clone(), RmClock: m.clock.Clone(), Value: len(m.entries)}
}

// IsEmpty reports whether the map has no live keys.
func (m *CausalMap[K, V, O, A]) IsEmpty() CausalRead[bool, A] {
	return CausalRead[bool, A]{AddClock: m.clock.Clone(), RmClock: m.clock.Clone(), Value: len(m.entries) == 0}
}

// Read returns the map's top-level causal context with no value attached.
func (m *CausalMap[K, V, O, A]) Read() CausalRead[Empty, A] {
	return CausalRead[Empty, A]{AddClock: m.clock.Clone(), RmClock: m.clock.Clone()}
}

// Get returns the value stored at key, if any, together with the causal
// context relevant to it: AddClock is the map's full context (for deriving
// further adds), RmClock is the entry's own context (for deriving a remove
// of exactly what was read, not everything the map has since learned).
func (m *CausalMap[K, V, O, A]) Get(key K) CausalRead[Option[V], A] {
	if e, ok := m.entries[key]; ok {
		return CausalRead[Option[V], A]{AddClock: m.clock.Clone(), RmClock: e.Clock.Clone(), Value: Some(e.Value)}
	}
	return CausalRead[Option[V], A]{AddClock: m.clock.Clone(), RmClock: NewVectorClock[A](), Value: None[V]()}
}

// Keys returns the map's keys in sorted order together with the causal
// context observed.
func (m *CausalMap[K, V, O, A]) Keys() CausalRead[[]K, A] {
	keys := make([]K, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return CausalRead[[]K, A]{AddClock: m.clock.Clone(), RmClock: m.clock.Clone(), Value: keys}
}

// Values returns a copy of the map's values, ordered by key, together with
// the causal context observed.
func (m *CausalMap[K, V, O, A]) Values() CausalRead[[]V, A] {
	keys := m.Keys()
	values := make([]V, len(keys.Value))
	for i, k := range keys.Value {
		values[i] = m.entries[k].Value
	}
	return CausalRead[[]V, A]{AddClock: keys.AddClock, RmClock: keys.RmClock, Value: values}
}

// Update derives the operation that applies f to the current value at key
// (or a freshly-constructed zero value, if key is absent), stamped with
// add's version.
func (m *CausalMap[K, V, O, A]) Update(key K, add AddToken[A], f func(current V, add AddToken[A]) O) MapUpdate[K, O, A] {
	data := m.newValue()
	if e, ok := m.entries[key]; ok {
		data = e.Value
	}
	return MapUpdate[K, O, A]{Ver: add.Version, Key: key, Op: f(data, add)}
}

// Remove derives the operation that deletes key, stamped with r's causal
// context.
func (m *CausalMap[K, V, O, A]) Remove(key K, r RemoveToken[A]) MapRemove[K, A] {
	return MapRemove[K, A]{Clock: r.Clock, Keys: []K{key}}
}

// ValidateOperation accepts every remove unchecked. An update is checked
// against the map's own clock, the target entry's clock, and the target
// value's own validation.
func (m *CausalMap[K, V, O, A]) ValidateOperation(op MapOperation[K, A]) error {
	switch o := op.(type) {
	case MapRemove[K, A]:
		return nil
	case MapUpdate[K, O, A]:
		if err := m.clock.ValidateOperation(o.Ver); err != nil {
			return err
		}
		entryClock := NewVectorClock[A]()
		data := m.newValue()
		if e, ok := m.entries[o.Key]; ok {
			entryClock = e.Clock
			data = e.Value
		}
		if err := entryClock.ValidateOperation(o.Ver); err != nil {
			return err
		}
		if err := data.ValidateOperation(o.Op); err != nil {
			return fmt.Errorf("crdt: map value validation failed for key %v: %w", o.Key, err)
		}
		return nil
	default:
		return fmt.Errorf("crdt: unknown map operation %T", op)
	}
}

// Apply folds an already-validated operation into the map.
func (m *CausalMap[K, V, O, A]) Apply(op MapOperation[K, A]) {
	switch o := op.(type) {
	case MapRemove[K, A]:
		keySet := make(map[K]struct{}, len(o.Keys))
		for _, k := range o.Keys {
			keySet[k] = struct{}{}
		}
		m.applyKeySetRemove(keySet, o.Clock)
	case MapUpdate[K, O, A]:
		if o.Ver.Counter <= m.clock.Get(o.Ver.Actor) {
			return
		}
		entry, ok := m.entries[o.Key]
		if !ok {
			entry = &mapEntry[V, A]{Clock: NewVectorClock[A](), Value: m.newValue()}
			m.entries[o.Key] = entry
		}
		entry.Clock.Apply(o.Ver)
		entry.Value.Apply(o.Op)
		m.clock.Apply(o.Ver)
		m.applyDeferred()
	}
}

// applyKeySetRemove clips every entry in keySet by clock, dropping entries
// that clock fully subsumes and parking the remove itself if the map's own
// clock hasn't caught up to clock yet (meaning some concurrent add this
// remove should eventually see hasn't arrived).
func (m *CausalMap[K, V, O, A]) applyKeySetRemove(keySet map[K]struct{}, clock *VectorClock[A]) {
	for k := range keySet {
		entry, ok := m.entries[k]
		if !ok {
			continue
		}
		entry.Clock.ResetRemove(clock)
		if entry.Clock.IsEmpty() {
			delete(m.entries, k)
		} else {
			entry.Value.ResetRemove(clock)
		}
	}
	if ord, ok := m.clock.PartialCompare(clock); !ok || ord == OrderingLess {
		m.deferred = append(m.deferred, deferredRemove[K, A]{Clock: clock, Keys: keySet})
		mapDeferredParked.Inc()
		m.logger.Debug("parked deferred remove", zap.Int("key_count", len(keySet)))
	}
}

// applyDeferred replays every parked remove once against the map's current
// clock; removes still not dominated re-park themselves.
func (m *CausalMap[K, V, O, A]) applyDeferred() {
	pending := m.deferred
	m.deferred = nil
	if len(pending) > 0 {
		m.logger.Debug("draining deferred removes", zap.Int("remove_count", len(pending)))
	}
	for _, d := range pending {
		mapDeferredDrained.Inc()
		m.applyKeySetRemove(d.Keys, d.Clock)
	}
}

// ValidateMerge checks that no single causal event is attributed to two
// different keys across the two maps (a double-spent version), and that
// any key present with concurrent clocks in both maps has mutually
// mergeable values.
func (m *CausalMap[K, V, O, A]) ValidateMerge(other *CausalMap[K, V, O, A]) error {
	for key, entry := range m.entries {
		for otherKey, otherEntry := range other.entries {
			if otherKey != key {
				for _, v := range entry.Clock.Iterate() {
					if otherEntry.Clock.Get(v.Actor) == v.Counter {
						m.logger.Warn("double-spent version detected",
							zap.Any("actor", v.Actor), zap.Uint64("counter", v.Counter))
						return &DoubleSpentError[K, A]{Actor: v.Actor, Counter: v.Counter, KeyA: key, KeyB: otherKey}
					}
				}
				continue
			}
			if entry.Clock.Concurrent(otherEntry.Clock) {
				if err := entry.Value.ValidateMerge(otherEntry.Value); err != nil {
					return fmt.Errorf("crdt: map value merge validation failed for key %v: %w", key, err)
				}
			}
		}
	}
	return nil
}

// Merge folds other's state into m, resolving each key with add-wins
// reset-remove semantics and replaying any deferred removes the clock
// advance now dominates.
func (m *CausalMap[K, V, O, A]) Merge(other *CausalMap[K, V, O, A]) {
	for key, entry := range m.entries {
		if _, ok := other.entries[key]; ok {
			continue // reconciled below
		}
		if ord, ok := other.clock.PartialCompare(entry.Clock); ok && (ord == OrderingGreater || ord == OrderingEqual) {
			delete(m.entries, key)
			continue
		}
		entry.Clock.ResetRemove(other.clock)
		removedInfo := other.clock.Clone()
		removedInfo.ResetRemove(entry.Clock)
		entry.Value.ResetRemove(removedInfo)
	}

	for key, otherEntry := range other.entries {
		ourEntry, ok := m.entries[key]
		if !ok {
			if ord, ok := m.clock.PartialCompare(otherEntry.Clock); ok && (ord == OrderingGreater || ord == OrderingEqual) {
				continue // we already dominate this entry's causal context
			}
			newEntryClock := otherEntry.Clock.Clone()
			newEntryClock.ResetRemove(m.clock)
			infoWeDeleted := m.clock.Clone()
			infoWeDeleted.ResetRemove(newEntryClock)
			newValue := otherEntry.Value.Clone()
			newValue.ResetRemove(infoWeDeleted)
			m.entries[key] = &mapEntry[V, A]{Clock: newEntryClock, Value: newValue}
			continue
		}

		common := Intersection(otherEntry.Clock, ourEntry.Clock)
		common.Merge(otherEntry.Clock.CloneWithout(m.clock))
		common.Merge(ourEntry.Clock.CloneWithout(other.clock))
		if common.IsEmpty() {
			delete(m.entries, key)
			continue
		}
		ourEntry.Value.Merge(otherEntry.Value)
		infoDeleted := otherEntry.Clock.Clone()
		infoDeleted.Merge(ourEntry.Clock)
		infoDeleted.ResetRemove(common)
		ourEntry.Value.ResetRemove(infoDeleted)
		ourEntry.Clock = common
	}

	for _, d := range other.deferred {
		m.applyKeySetRemove(d.Keys, d.Clock)
	}
	m.clock.Merge(other.clock)
	m.applyDeferred()
}

// ResetRemove bounds the map's clock, every entry's clock and value, and
// every deferred remove by base, dropping anything base fully subsumes.
func (m *CausalMap[K, V, O, A]) ResetRemove(base *VectorClock[A]) {
	for key, entry := range m.entries {
		entry.Clock.ResetRemove(base)
		entry.Value.ResetRemove(base)
		if entry.Clock.IsEmpty() {
			delete(m.entries, key)
		}
	}
	kept := m.deferred[:0]
	for _, d := range m.deferred {
		d.Clock.ResetRemove(base)
		if !d.Clock.IsEmpty() {
			kept = append(kept, d)
		}
	}
	m.deferred = kept
	m.clock.ResetRemove(base)
}

// Clone returns an independent deep copy.
func (m *CausalMap[K, V, O, A]) Clone() *CausalMap[K, V, O, A] {
	out := &CausalMap[K, V, O, A]{
		clock:    m.clock.Clone(),
		entries:  make(map[K]*mapEntry[V, A], len(m.entries)),
		newValue: m.newValue,
		logger:   m.logger,
	}
	for k, e := range m.entries {
		out.entries[k] = &mapEntry[V, A]{Clock: e.Clock.Clone(), Value: e.Value.Clone()}
	}
	out.deferred = make([]deferredRemove[K, A], len(m.deferred))
	for i, d := range m.deferred {
		keys := make(map[K]struct{}, len(d.Keys))
		for k := range d.Keys {
			keys[k] = struct{}{}
		}
		out.deferred[i] = deferredRemove[K, A]{Clock: d.Clock.Clone(), Keys: keys}
	}
	return out
}

type mapEntryWire[V any, A cmp.Ordered] struct {
	Clock *VectorClock[A] `json:"clock"`
	Value V               `json:"value"`
}

// MarshalJSON encodes the map as an object with the map's "clock" and an
// "entries" object of key -> {clock, value}. The
// deferred-remove buffer is not part of the wire format: it is transient
// replication state, not durable map content.
func (m *CausalMap[K, V, O, A]) MarshalJSON() ([]byte, error) {
	wire := struct {
		Clock   *VectorClock[A]          `json:"clock"`
		Entries map[K]mapEntryWire[V, A] `json:"entries"`
	}{Clock: m.clock, Entries: make(map[K]mapEntryWire[V, A], len(m.entries))}
	for k, e := range m.entries {
		wire.Entries[k] = mapEntryWire[V, A]{Clock: e.Clock, Value: e.Value}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a map previously written by MarshalJSON into an
// already-constructed CausalMap (callers must use NewCausalMap first so
// newValue and logger are set).
func (m *CausalMap[K, V, O, A]) UnmarshalJSON(data []byte) error {
	var wire struct {
		Clock   *VectorClock[A]          `json:"clock"`
		Entries map[K]mapEntryWire[V, A] `json:"entries"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.clock = wire.Clock
	m.entries = make(map[K]*mapEntry[V, A], len(wire.Entries))
	for k, e := range wire.Entries {
		m.entries[k] = &mapEntry[V, A]{Clock: e.Clock, Value: e.Value}
	}
	return nil
}
