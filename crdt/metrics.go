package crdt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level counters, registered once on the default registerer.
var (
	vectorClockMerges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crdtcore_vector_clock_merges_total",
		Help: "Total number of CausalMap/VectorClock merges performed.",
	})

	mapDeferredParked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crdtcore_map_deferred_parked_total",
		Help: "Total number of remove operations parked because the remove clock is not yet dominated.",
	})

	mapDeferredDrained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crdtcore_map_deferred_drained_total",
		Help: "Total number of deferred removes replayed after a clock advance (may re-park).",
	})

	registerConflictingWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crdtcore_register_conflicting_writes_total",
		Help: "Total number of MultiValueRegister writes discarded because a stored value already dominates them.",
	})
)
