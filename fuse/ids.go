package fuse

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator returns a new insight identifier for the given kind.
type IDGenerator func(kind InsightKind) string

// UUIDGenerator prefixes a random UUID with the insight kind family.
func UUIDGenerator(kind InsightKind) string {
	return idPrefix(kind) + uuid.NewString()
}

// NewSequentialIDs returns a generator producing monotonically increasing
// identifiers. The counter is shared by every call of the returned function.
func NewSequentialIDs() IDGenerator {
	var counter atomic.Uint64
	return func(kind InsightKind) string {
		return fmt.Sprintf("%s%06d", idPrefix(kind), counter.Add(1))
	}
}

func idPrefix(kind InsightKind) string {
	if kind == KindCrossCategory {
		return "cross_insight_"
	}
	return "insight_"
}
