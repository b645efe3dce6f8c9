package atomic

import (
	"fmt"
)

// Value128 is a plain 128-bit value, split into a low and a high
// 64-bit half. It is the type of the values that are loaded from and
// stored into a Uint128. Values of this type are not atomic by
// themselves and can be copied freely.
//
// Two values are equal if and only if both halves are bit-for-bit
// identical. This means that the == operator can be used to compare
// them.
type Value128 struct {
	Lo uint64
	Hi uint64
}

// Zero128 is the zero value of Value128. It is also the value held by
// a Uint128 that has not been initialized. It is provided for
// convenience only. Methods of this package do not depend on it.
var Zero128 = Value128{}

// NewValue128 creates a Value128 from its two halves.
func NewValue128(lo, hi uint64) Value128 {
	return Value128{
		Lo: lo,
		Hi: hi,
	}
}

// Equal returns true if both halves of the values are identical.
func (v Value128) Equal(other Value128) bool {
	return v == other
}

// IsZero returns true if both halves of the value are zero.
func (v Value128) IsZero() bool {
	return v == Value128{}
}

func (v Value128) String() string {
	return fmt.Sprintf("0x%016x%016x", v.Hi, v.Lo)
}
