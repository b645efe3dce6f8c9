package atomic

// Initialize the atomic variable with a given value. The atomic
// variable will be zero initialized when not called. This function
// does not perform an atomic operation. It may only be called before
// the variable is shared with other goroutines.
func (i *Uint128) Initialize(val Value128) {
	p := i.get()
	p[0], p[1] = val.Lo, val.Hi
}

// Load a value atomically.
//
// There is no 128-bit atomic load instruction that is available on all
// supported CPUs. Instead, this performs a compare-and-swap that
// replaces zero by zero. If the variable holds zero, this is a no-op
// store. Otherwise the compare fails and yields the current value.
// Either way the returned value is the one stored at the time.
func (i *Uint128) Load() Value128 {
	var current Value128
	compareAndSwap128(i.get(), &current, Value128{})
	return current
}

// Store a value atomically.
//
// This is implemented as a compare-and-swap loop, where every failed
// attempt provides the expected value for the next one. The number of
// attempts is unbounded. Under sustained contention this may spin for
// a long time.
func (i *Uint128) Store(val Value128) {
	var current Value128
	for !compareAndSwap128(i.get(), &current, val) {
	}
}

// Swap stores a value atomically, returning the value that was stored
// immediately before it. Like Store(), it spins until it succeeds.
func (i *Uint128) Swap(val Value128) Value128 {
	var previous Value128
	for !compareAndSwap128(i.get(), &previous, val) {
	}
	return previous
}

// CompareAndSwap executes a single compare-and-swap attempt. Unlike
// atomic.CompareAndSwapUint64(), it returns the value that was stored
// at the time of the attempt, regardless of whether the swap took
// place. The swap took place if and only if the returned value is
// equal to old.
func (i *Uint128) CompareAndSwap(old, new Value128) Value128 {
	compareAndSwap128(i.get(), &old, new)
	return old
}

// CompareExchange executes a single compare-and-swap attempt. If the
// variable holds old, it is replaced by new, and (old, true) is
// returned. Otherwise the variable is left unchanged, and the value it
// holds is returned together with false.
func (i *Uint128) CompareExchange(old, new Value128) (Value128, bool) {
	swapped := compareAndSwap128(i.get(), &old, new)
	return old, swapped
}

// CompareExchangeWeak is identical to CompareExchange(). It is provided
// for algorithms that are written against a weak compare-and-exchange,
// which is permitted to fail spuriously. This implementation never
// does.
func (i *Uint128) CompareExchangeWeak(old, new Value128) (Value128, bool) {
	return i.CompareExchange(old, new)
}
