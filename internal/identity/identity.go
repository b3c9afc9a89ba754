// Package identity assigns the plaintext identity property every node
// and relation carries alongside its encrypted content: a fresh random
// uid for a node, and a composite uid for a relation formed from its
// endpoints.
package identity

import "github.com/google/uuid"

// UIDKey is the reserved property name holding an entity's identity.
const UIDKey = "uid"

// NewNodeUID returns a fresh random identifier for a newly created
// node.
func NewNodeUID() string {
	return uuid.New().String()
}

// RelationUID returns the composite identifier for a relation: the
// textual concatenation of its source and target node uids. This also
// doubles as the tamper check the shortest-path engine runs on every
// hop: a genuine relation's uid always decomposes back into its two
// endpoint uids.
func RelationUID(fromUID, toUID string) string {
	return fromUID + toUID
}
