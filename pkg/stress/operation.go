package stress

// Operation of atomic.Uint128 that can be exercised by the Tester.
type Operation int

const (
	// OperationLoad corresponds to Uint128.Load().
	OperationLoad Operation = iota
	// OperationStore corresponds to Uint128.Store().
	OperationStore
	// OperationSwap corresponds to Uint128.Swap().
	OperationSwap
	// OperationCompareAndSwap corresponds to Uint128.CompareAndSwap().
	OperationCompareAndSwap
	// OperationCompareExchange corresponds to
	// Uint128.CompareExchange().
	OperationCompareExchange
	// OperationCompareExchangeWeak corresponds to
	// Uint128.CompareExchangeWeak().
	OperationCompareExchangeWeak

	operationCount
)

// AllOperations lists every Operation, in order.
var AllOperations = []Operation{
	OperationLoad,
	OperationStore,
	OperationSwap,
	OperationCompareAndSwap,
	OperationCompareExchange,
	OperationCompareExchangeWeak,
}

var operationNames = [operationCount]string{
	"Load",
	"Store",
	"Swap",
	"CompareAndSwap",
	"CompareExchange",
	"CompareExchangeWeak",
}

var operationsByName = func() map[string]Operation {
	m := make(map[string]Operation, len(AllOperations))
	for _, operation := range AllOperations {
		m[operation.String()] = operation
	}
	return m
}()

func (o Operation) String() string {
	if o < 0 || o >= operationCount {
		return "Unknown"
	}
	return operationNames[o]
}

// isConditional returns true if the operation makes a single
// compare-and-swap attempt that may fail.
func (o Operation) isConditional() bool {
	return o == OperationCompareAndSwap || o == OperationCompareExchange || o == OperationCompareExchangeWeak
}
