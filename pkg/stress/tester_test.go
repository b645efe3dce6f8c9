package stress_test

import (
	"context"
	"testing"
	"time"

	"github.com/buildbarn/bb-atomic128/internal/mock"
	"github.com/buildbarn/bb-atomic128/pkg/stress"
	"github.com/buildbarn/bb-atomic128/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var testRunID = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

func testUUIDGenerator() (uuid.UUID, error) {
	return testRunID, nil
}

func TestNewTesterFromConfiguration(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := mock.NewMockClock(ctrl)

	for name, tc := range map[string]struct {
		configuration stress.Configuration
		err           error
	}{
		"NoWorkers": {
			configuration: stress.Configuration{OperationsPerWorker: 100},
			err:           status.Error(codes.InvalidArgument, "Number of workers must be positive, while 0 was provided"),
		},
		"InvalidDuration": {
			configuration: stress.Configuration{Workers: 1, Duration: "forever"},
			err:           status.Error(codes.InvalidArgument, "Invalid duration: time: invalid duration \"forever\""),
		},
		"NegativeDuration": {
			configuration: stress.Configuration{Workers: 1, Duration: "-5s"},
			err:           status.Error(codes.InvalidArgument, "Duration must be positive, while -5s was provided"),
		},
		"Unbounded": {
			configuration: stress.Configuration{Workers: 1},
			err:           status.Error(codes.InvalidArgument, "At least one of the number of operations per worker or the duration must be provided"),
		},
		"UnknownOperation": {
			configuration: stress.Configuration{
				Workers:             1,
				OperationsPerWorker: 100,
				OperationWeights:    map[string]uint32{"FetchAdd": 1},
			},
			err: status.Error(codes.InvalidArgument, "Unknown operation \"FetchAdd\""),
		},
		"NoWeights": {
			configuration: stress.Configuration{
				Workers:             1,
				OperationsPerWorker: 100,
				OperationWeights:    map[string]uint32{"Load": 0, "Store": 0},
			},
			err: status.Error(codes.InvalidArgument, "At least one operation must have a positive weight"),
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := stress.NewTesterFromConfiguration(&tc.configuration, clock, testUUIDGenerator)
			testutil.RequireEqualStatus(t, tc.err, err)
		})
	}
}

func TestTesterRun(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("OperationCount", func(t *testing.T) {
		clock := mock.NewMockClock(ctrl)
		tester, err := stress.NewTesterFromConfiguration(&stress.Configuration{
			Workers:             4,
			OperationsPerWorker: 10000,
			Seed:                42,
		}, clock, testUUIDGenerator)
		require.NoError(t, err)

		clock.EXPECT().Now().Return(time.Unix(1000, 0))
		clock.EXPECT().Now().Return(time.Unix(1003, 0))

		report, err := tester.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, testRunID, report.RunID)
		require.Equal(t, 4, report.Workers)
		require.Equal(t, uint64(42), report.Seed)
		require.Equal(t, 3*time.Second, report.Duration)
		require.Equal(t, uint64(40000), report.TotalOperations())
		require.Len(t, report.Operations, len(stress.AllOperations))

		// Unconditional operations always succeed.
		for _, operation := range []stress.Operation{stress.OperationLoad, stress.OperationStore, stress.OperationSwap} {
			require.Equal(t, uint64(0), report.Operations[operation].Failed, operation.String())
		}
	})

	t.Run("SingleWorkerCompareExchange", func(t *testing.T) {
		// Without any contention, a worker always knows the
		// current value, meaning that every attempt succeeds.
		clock := mock.NewMockClock(ctrl)
		tester, err := stress.NewTesterFromConfiguration(&stress.Configuration{
			Workers:             1,
			OperationsPerWorker: 5000,
			OperationWeights: map[string]uint32{
				"CompareAndSwap":      1,
				"CompareExchange":     1,
				"CompareExchangeWeak": 1,
			},
		}, clock, testUUIDGenerator)
		require.NoError(t, err)

		clock.EXPECT().Now().Return(time.Unix(1000, 0)).Times(2)

		report, err := tester.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, uint64(5000), report.TotalOperations())
		require.Len(t, report.Operations, 3)
		for operation, counts := range report.Operations {
			require.Equal(t, uint64(0), counts.Failed, operation.String())
		}
	})

	t.Run("DurationElapsed", func(t *testing.T) {
		clock := mock.NewMockClock(ctrl)
		tester, err := stress.NewTesterFromConfiguration(&stress.Configuration{
			Workers:  4,
			Duration: "1h",
		}, clock, testUUIDGenerator)
		require.NoError(t, err)

		timer := mock.NewMockTimer(ctrl)
		timerChannel := make(chan time.Time, 1)
		timerChannel <- time.Unix(4600, 0)
		clock.EXPECT().NewTimer(time.Hour).Return(timer, timerChannel)
		clock.EXPECT().Now().Return(time.Unix(1000, 0))
		clock.EXPECT().Now().Return(time.Unix(4600, 0))
		timer.EXPECT().Stop().Return(false)

		report, err := tester.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, time.Hour, report.Duration)
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		clock := mock.NewMockClock(ctrl)
		tester, err := stress.NewTesterFromConfiguration(&stress.Configuration{
			Workers:  2,
			Duration: "1h",
		}, clock, testUUIDGenerator)
		require.NoError(t, err)

		timer := mock.NewMockTimer(ctrl)
		clock.EXPECT().NewTimer(time.Hour).Return(timer, make(chan time.Time))
		clock.EXPECT().Now().Return(time.Unix(1000, 0)).Times(2)
		timer.EXPECT().Stop().Return(true)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = tester.Run(ctx)
		testutil.RequireEqualStatus(t, status.Error(codes.Canceled, "context canceled"), err)
	})

	t.Run("UUIDGenerationFailure", func(t *testing.T) {
		clock := mock.NewMockClock(ctrl)
		tester, err := stress.NewTesterFromConfiguration(&stress.Configuration{
			Workers:             1,
			OperationsPerWorker: 1,
		}, clock, func() (uuid.UUID, error) {
			return uuid.UUID{}, status.Error(codes.Unavailable, "Entropy pool exhausted")
		})
		require.NoError(t, err)

		_, err = tester.Run(context.Background())
		testutil.RequireEqualStatus(t, status.Error(codes.Internal, "Failed to generate run ID: Entropy pool exhausted"), err)
	})
}
