//go:build !amd64 && !arm64
// +build !amd64,!arm64

package atomic

// Uint128 is only provided on architectures that have a native
// double-word compare-and-swap instruction. It is never emulated using
// a lock.
var _ = uint128RequiresDoubleWordCompareAndSwapOnThisArchitecture
