package atomic

import (
	"unsafe"
)

// noCopy may be embedded into structs that must not be copied after
// first use. It is detected by the copylocks checker of "go vet".
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Uint128 holds a Value128 that can only be accessed through atomic
// operations. This type is guaranteed to be properly aligned. Instances
// of this type cannot be moved to a different location in memory.
//
// All methods may be called concurrently from any number of
// goroutines without external locking. Every method that reads or
// modifies the value does so through a single indivisible hardware
// instruction that acts as a full memory barrier, so all operations on
// the same Uint128 are sequentially consistent.
//
// The zero value holds Zero128.
type Uint128 struct {
	_ noCopy
	v [3]uint64
}

func (i *Uint128) get() *[2]uint64 {
	// The double-word compare-and-swap instructions fault (amd64)
	// or lose atomicity (arm64) when the operand is not 16-byte
	// aligned, while Go only guarantees 8-byte alignment for
	// uint64. Solve this by allocating 24 bytes and rounding up the
	// pointer value to be 16-byte aligned.
	if p := unsafe.Pointer(&i.v[0]); uintptr(p)%16 == 0 {
		return (*[2]uint64)(p)
	}
	return (*[2]uint64)(unsafe.Pointer(&i.v[1]))
}
