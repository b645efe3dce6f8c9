package stress

import (
	"context"

	"github.com/buildbarn/bb-atomic128/pkg/atomic"
	"github.com/buildbarn/bb-atomic128/pkg/program"
	"github.com/buildbarn/bb-atomic128/pkg/util"
	"github.com/lazybeaver/xorshift"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Number of operations a worker performs between checks for
// cancellation. Prometheus metrics are also updated at this interval.
const cancellationCheckInterval = 1024

type worker struct {
	tester *Tester
	id     int
	random xorshift.XorShift

	// Most recent value this worker observed or wrote. It is used
	// as the expected value of conditional operations, giving them
	// a reasonable chance of succeeding.
	lastObserved atomic.Value128

	counts  [operationCount]OperationCounts
	flushed [operationCount]OperationCounts
}

func (w *worker) run(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
	defer w.flushMetrics()

	t := w.tester
	for n := uint64(0); t.operationsPerWorker == 0 || n < t.operationsPerWorker; n++ {
		if n%cancellationCheckInterval == 0 {
			w.flushMetrics()
			select {
			case <-ctx.Done():
				return nil
			default:
			}
		}
		if err := w.performOperation(); err != nil {
			return util.StatusWrapf(err, "Worker %d, operation %d", w.id, n)
		}
	}
	return nil
}

func (w *worker) performOperation() error {
	t := w.tester
	operation := t.pickOperation(w.random.Next())
	succeeded := true
	switch operation {
	case OperationLoad:
		if err := w.observe(operation, t.value.Load()); err != nil {
			return err
		}
	case OperationStore:
		desired := w.nextValue()
		t.value.Store(desired)
		w.lastObserved = desired
	case OperationSwap:
		desired := w.nextValue()
		if err := w.observe(operation, t.value.Swap(desired)); err != nil {
			return err
		}
		w.lastObserved = desired
	case OperationCompareAndSwap:
		expected, desired := w.lastObserved, w.nextValue()
		actual := t.value.CompareAndSwap(expected, desired)
		if err := w.observe(operation, actual); err != nil {
			return err
		}
		if actual.Equal(expected) {
			w.lastObserved = desired
		} else {
			succeeded = false
		}
	case OperationCompareExchange, OperationCompareExchangeWeak:
		expected, desired := w.lastObserved, w.nextValue()
		var actual atomic.Value128
		var ok bool
		if operation == OperationCompareExchange {
			actual, ok = t.value.CompareExchange(expected, desired)
		} else {
			actual, ok = t.value.CompareExchangeWeak(expected, desired)
		}
		if err := w.observe(operation, actual); err != nil {
			return err
		}
		if ok != actual.Equal(expected) {
			return status.Errorf(codes.Internal, "%s returned value %s and success %t, while value %s was expected", operation, actual, ok, expected)
		}
		if ok {
			w.lastObserved = desired
		} else {
			succeeded = false
		}
	default:
		panic("Unknown operation")
	}

	if succeeded {
		w.counts[operation].Succeeded++
	} else {
		w.counts[operation].Failed++
	}
	return nil
}

// observe validates that a value read from the variable under test was
// written by a worker in its entirety.
func (w *worker) observe(operation Operation, v atomic.Value128) error {
	if !isStamped(v) {
		stressTornValuesTotal.Inc()
		return status.Errorf(codes.DataLoss, "%s observed value %s, which was not written by any worker", operation, v)
	}
	w.lastObserved = v
	return nil
}

func (w *worker) nextValue() atomic.Value128 {
	return stamp(w.random.Next())
}

func (w *worker) flushMetrics() {
	counters := w.tester.counters
	for operation := range w.counts {
		counts, flushed := &w.counts[operation], &w.flushed[operation]
		if delta := counts.Succeeded - flushed.Succeeded; delta > 0 {
			counters[operation][outcomeSucceeded].Add(float64(delta))
		}
		if delta := counts.Failed - flushed.Failed; delta > 0 {
			counters[operation][outcomeFailed].Add(float64(delta))
		}
		*flushed = *counts
	}
}
