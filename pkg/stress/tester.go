package stress

import (
	"context"
	"math/bits"
	"sort"
	"time"

	"github.com/buildbarn/bb-atomic128/pkg/atomic"
	"github.com/buildbarn/bb-atomic128/pkg/clock"
	"github.com/buildbarn/bb-atomic128/pkg/program"
	"github.com/buildbarn/bb-atomic128/pkg/util"
	"github.com/lazybeaver/xorshift"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tester hammers a single atomic.Uint128 from a number of goroutines,
// using a random mix of operations. Every value written to the
// variable has its upper half derived from its lower half. Any value
// read back that does not satisfy this relation must have been torn,
// meaning that the halves originate from different writes.
type Tester struct {
	clock               clock.Clock
	uuidGenerator       util.UUIDGenerator
	workers             int
	operationsPerWorker uint64
	duration            time.Duration
	seed                uint64
	operations          []Operation
	cumulativeWeights   []uint64
	counters            *operationCounters

	value atomic.Uint128
}

func newTester(clock clock.Clock, uuidGenerator util.UUIDGenerator, workers int, operationsPerWorker uint64, duration time.Duration, seed uint64, operations []Operation, cumulativeWeights []uint64) *Tester {
	return &Tester{
		clock:               clock,
		uuidGenerator:       uuidGenerator,
		workers:             workers,
		operationsPerWorker: operationsPerWorker,
		duration:            duration,
		seed:                seed,
		operations:          operations,
		cumulativeWeights:   cumulativeWeights,
		counters:            newOperationCounters(),
	}
}

// Run a stress test. Workers terminate once they have performed the
// configured number of operations, once the configured duration has
// elapsed, or once any of them observes an inconsistency. In the
// last case an error with code DATA_LOSS or INTERNAL is returned.
//
// Run must not be called concurrently.
func (t *Tester) Run(ctx context.Context) (*Report, error) {
	runID, err := t.uuidGenerator()
	if err != nil {
		return nil, util.StatusWrapWithCode(err, codes.Internal, "Failed to generate run ID")
	}

	initialValue := stamp(t.seed)
	t.value.Initialize(initialValue)

	workersCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if t.duration > 0 {
		timer, timerChannel := t.clock.NewTimer(t.duration)
		defer timer.Stop()
		go func() {
			select {
			case <-timerChannel:
				cancel()
			case <-workersCtx.Done():
			}
		}()
	}

	workers := make([]worker, t.workers)
	for i := range workers {
		workers[i] = worker{
			tester:       t,
			id:           i,
			random:       xorshift.NewXorShift64Star(workerSeed(t.seed, i)),
			lastObserved: initialValue,
		}
	}

	timeStart := t.clock.Now()
	err = program.RunLocal(workersCtx, func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
		for i := 1; i < len(workers); i++ {
			siblingsGroup.Go(workers[i].run)
		}
		return workers[0].run(ctx, siblingsGroup, dependenciesGroup)
	})
	duration := t.clock.Now().Sub(timeStart)
	stressRunDurationSeconds.Observe(duration.Seconds())
	if err != nil {
		return nil, util.StatusWrapf(err, "Run %s", runID)
	}
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	if final := t.value.Load(); !isStamped(final) {
		stressTornValuesTotal.Inc()
		return nil, status.Errorf(codes.DataLoss, "Run %s: Variable holds value %s after all workers completed, which was not written by any worker", runID, final)
	}

	report := &Report{
		RunID:      runID,
		Workers:    t.workers,
		Seed:       t.seed,
		Duration:   duration,
		Operations: map[Operation]OperationCounts{},
	}
	for _, operation := range t.operations {
		var counts OperationCounts
		for i := range workers {
			counts.add(workers[i].counts[operation])
		}
		report.Operations[operation] = counts
	}
	return report, nil
}

func (t *Tester) pickOperation(r uint64) Operation {
	// Perform binary search to find the corresponding operation.
	slot := r % t.cumulativeWeights[len(t.cumulativeWeights)-1]
	idx := sort.Search(len(t.cumulativeWeights), func(i int) bool {
		return slot < t.cumulativeWeights[i]
	})
	return t.operations[idx]
}

// stamp a value, so that it can later be recognized as one that was
// written by a worker.
func stamp(lo uint64) atomic.Value128 {
	return atomic.NewValue128(lo, bits.RotateLeft64(lo*0x9e3779b97f4a7c15, 31)^0xa0761d6478bd642f)
}

func isStamped(v atomic.Value128) bool {
	return v.Equal(stamp(v.Lo))
}

func workerSeed(seed uint64, id int) uint64 {
	s := seed + uint64(id+1)*0x9e3779b97f4a7c15
	if s == 0 {
		// Xorshift generators get stuck at zero.
		return 1
	}
	return s
}
