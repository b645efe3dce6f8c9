//go:build amd64 || arm64
// +build amd64 arm64

package atomic

// cmpxchg128 is implemented in assembly. It atomically compares the 16
// bytes at addr against (oldLo, oldHi) and, if they match, replaces
// them with (newLo, newHi). It returns the contents of addr as observed
// by the instruction, regardless of whether the swap took place.
//
// addr must be 16-byte aligned. This function is not marked
// go:noescape. The Uint128 whose storage is passed in must live on the
// heap, where it never moves, as moving it would cause Uint128.get() to
// select another half of its storage.
func cmpxchg128(addr *[2]uint64, oldLo, oldHi, newLo, newHi uint64) (actualLo, actualHi uint64, swapped bool)

// compareAndSwap128 is the primitive on top of which all operations of
// Uint128 are built. If the value at addr equals *expected, it is
// replaced by desired and true is returned. Otherwise the value at addr
// is left untouched, *expected is overwritten with the value that was
// observed and false is returned.
func compareAndSwap128(addr *[2]uint64, expected *Value128, desired Value128) bool {
	lo, hi, swapped := cmpxchg128(addr, expected.Lo, expected.Hi, desired.Lo, desired.Hi)
	expected.Lo, expected.Hi = lo, hi
	return swapped
}
