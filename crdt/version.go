package crdt

import "cmp"

// Version identifies a single causal event: the Counter-th operation
// originated by Actor. Versions from the same actor form a total order;
// versions from different actors are incomparable on their own and only
// gain an order through an OrderedVersion or a VectorClock.
type Version[A cmp.Ordered] struct {
	Actor   A
	Counter uint64
}

// Inc returns the next version for the same actor.
func (v Version[A]) Inc() Version[A] {
	return Version[A]{Actor: v.Actor, Counter: v.Counter + 1}
}

// OrderedVersion is a Version promoted to a total order across actors, by
// comparing actor identity before counter. It exists so Version can serve
// as the tiebreaker type of an Identifier: the identifier space needs a
// total order over the events that created each slot, and a bare Version
// only has a partial one.
type OrderedVersion[A cmp.Ordered] struct {
	Actor   A
	Counter uint64
}

// Compare returns -1, 0, or 1 as o sorts before, equal to, or after other.
func (o OrderedVersion[A]) Compare(other OrderedVersion[A]) int {
	if o.Actor != other.Actor {
		if o.Actor < other.Actor {
			return -1
		}
		return 1
	}
	switch {
	case o.Counter < other.Counter:
		return -1
	case o.Counter > other.Counter:
		return 1
	default:
		return 0
	}
}

// ToVersion drops the total order, returning the plain Version.
func (o OrderedVersion[A]) ToVersion() Version[A] {
	return Version[A]{Actor: o.Actor, Counter: o.Counter}
}

// VersionToOrdered promotes a Version to an OrderedVersion.
func VersionToOrdered[A cmp.Ordered](v Version[A]) OrderedVersion[A] {
	return OrderedVersion[A]{Actor: v.Actor, Counter: v.Counter}
}
