package crdt

import "github.com/google/uuid"

// NewUUIDActor mints a random actor identity as a string. It's a
// convenience for callers and tests that don't have a natural actor id of
// their own (a node name, a connection id) and just need distinct
// replicas.
func NewUUIDActor() string {
	return uuid.NewString()
}
