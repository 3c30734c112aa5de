package cadence

import (
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
)

// Assigner buckets leads into message variants. Assignment is a pure hash of
// (lead, step), so a retried or re-routed send always lands on the same
// variant while traffic spreads evenly for A/B measurement.
type Assigner struct {
	Variants int
}

// Assign returns the variant index in [0, Variants) for a lead and step.
func (a Assigner) Assign(leadID uuid.UUID, step int) int {
	if a.Variants <= 1 {
		return 0
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", leadID, step)
	return int(h.Sum64() % uint64(a.Variants))
}
