// Package integrity computes and verifies the blake3 content digest
// every node and relation carries as its hash property, guarding
// against a backend that returns or substitutes a different payload
// than the one the proxy wrote.
package integrity

import (
	"encoding/hex"
	"sort"

	"lukechampine.com/blake3"

	"github.com/clique-labs/graphproxy/internal/cypher"
	graphproxyerrors "github.com/clique-labs/graphproxy/internal/errors"
)

// HashKey is the reserved property name holding an entity's integrity
// digest.
const HashKey = "hash"

// Digest computes the content hash of an Inner's labels and properties:
// sorted labels, then sorted (key, value) properties excluding hash
// itself, hashed in that order with blake3. Sorting makes the digest
// independent of client-supplied ordering, so the same logical content
// always hashes the same way regardless of how it was submitted.
func Digest(labels []string, properties []cypher.Property) string {
	sortedLabels := append([]string(nil), labels...)
	sort.Strings(sortedLabels)

	sortedProps := make([]cypher.Property, 0, len(properties))
	for _, p := range properties {
		if p.Key == HashKey {
			continue
		}
		sortedProps = append(sortedProps, p)
	}
	sort.Slice(sortedProps, func(i, j int) bool {
		if sortedProps[i].Key != sortedProps[j].Key {
			return sortedProps[i].Key < sortedProps[j].Key
		}
		return sortedProps[i].Value < sortedProps[j].Value
	})

	h := blake3.New(32, nil)
	for _, l := range sortedLabels {
		h.Write([]byte(l))
	}
	for _, p := range sortedProps {
		h.Write([]byte(p.Key))
		h.Write([]byte(p.Value))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DigestOf recomputes the digest for an Inner's current labels and
// properties. Used both to stamp freshly created entities and to
// recompute a comparison digest for an update's new content.
func DigestOf(in cypher.Inner) string {
	return Digest(in.Labels, in.Properties)
}

// Verify recomputes an Inner's digest and compares it against its
// stored hash property, returning a tamper error on mismatch or on a
// missing hash. The proxy calls this on every row read back from the
// backend; the original engine's read path never actually performed
// this check, so an entity with an altered property would pass through
// unnoticed.
func Verify(in cypher.Inner) error {
	stored, ok := in.Get(HashKey)
	if !ok {
		return graphproxyerrors.TamperDetectedf("entity is missing its %s property", HashKey)
	}
	if recomputed := Digest(in.Labels, in.Properties); recomputed != stored {
		return graphproxyerrors.TamperDetectedf("hash mismatch: stored %s, recomputed %s", stored, recomputed)
	}
	return nil
}
