package stress

import (
	"time"

	"github.com/google/uuid"
)

// OperationCounts contains the number of times an operation was
// performed, split up by outcome. Only conditional operations
// (CompareAndSwap, CompareExchange and CompareExchangeWeak) can fail.
type OperationCounts struct {
	Succeeded uint64
	Failed    uint64
}

func (c *OperationCounts) add(other OperationCounts) {
	c.Succeeded += other.Succeeded
	c.Failed += other.Failed
}

// Report of a stress test run that completed without observing any
// inconsistencies.
type Report struct {
	RunID      uuid.UUID
	Workers    int
	Seed       uint64
	Duration   time.Duration
	Operations map[Operation]OperationCounts
}

// TotalOperations returns the number of operations performed by all
// workers combined.
func (r *Report) TotalOperations() uint64 {
	total := uint64(0)
	for _, counts := range r.Operations {
		total += counts.Succeeded + counts.Failed
	}
	return total
}
