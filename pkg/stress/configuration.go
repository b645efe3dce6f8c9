package stress

import (
	"sort"
	"time"

	"github.com/buildbarn/bb-atomic128/pkg/clock"
	"github.com/buildbarn/bb-atomic128/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Configuration of a stress test. It is typically obtained by
// evaluating a Jsonnet file.
type Configuration struct {
	// Number of goroutines that concurrently access the variable
	// under test.
	Workers int `json:"workers"`

	// Number of operations each worker performs before it
	// terminates. Zero means that workers only terminate once
	// Duration has elapsed.
	OperationsPerWorker uint64 `json:"operationsPerWorker"`

	// Maximum amount of time to run, using Go's duration syntax
	// (e.g., "30s"). Empty means that workers only terminate once
	// they have performed OperationsPerWorker operations.
	Duration string `json:"duration"`

	// Seed for the random number generators of the workers, making
	// the sequence of operations each worker performs
	// reproducible.
	Seed uint64 `json:"seed"`

	// Relative frequency at which every operation is performed,
	// keyed by operation name (e.g., "CompareExchange"). Operations
	// that are not listed are not performed. When left empty, all
	// operations are performed equally often.
	OperationWeights map[string]uint32 `json:"operationWeights"`
}

// NewTesterFromConfiguration validates a configuration and creates a
// Tester for it. Every run of the Tester is identified by a UUID
// obtained from the provided generator.
func NewTesterFromConfiguration(configuration *Configuration, clock clock.Clock, uuidGenerator util.UUIDGenerator) (*Tester, error) {
	if configuration.Workers <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "Number of workers must be positive, while %d was provided", configuration.Workers)
	}

	var duration time.Duration
	if configuration.Duration != "" {
		d, err := time.ParseDuration(configuration.Duration)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "Invalid duration: %s", err)
		}
		if d <= 0 {
			return nil, status.Errorf(codes.InvalidArgument, "Duration must be positive, while %s was provided", d)
		}
		duration = d
	}
	if configuration.OperationsPerWorker == 0 && duration == 0 {
		return nil, status.Error(codes.InvalidArgument, "At least one of the number of operations per worker or the duration must be provided")
	}

	// Determine the cumulative weights of all operations that are
	// enabled, so that operations can be picked by binary
	// searching.
	weights := configuration.OperationWeights
	if len(weights) == 0 {
		weights = map[string]uint32{}
		for _, operation := range AllOperations {
			weights[operation.String()] = 1
		}
	}
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var operations []Operation
	var cumulativeWeights []uint64
	totalWeight := uint64(0)
	for _, name := range names {
		operation, ok := operationsByName[name]
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "Unknown operation %#v", name)
		}
		if weight := weights[name]; weight > 0 {
			totalWeight += uint64(weight)
			operations = append(operations, operation)
			cumulativeWeights = append(cumulativeWeights, totalWeight)
		}
	}
	if totalWeight == 0 {
		return nil, status.Error(codes.InvalidArgument, "At least one operation must have a positive weight")
	}

	return newTester(
		clock,
		uuidGenerator,
		configuration.Workers,
		configuration.OperationsPerWorker,
		duration,
		configuration.Seed,
		operations,
		cumulativeWeights), nil
}
