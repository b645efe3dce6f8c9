package atomic

import (
	"golang.org/x/sys/cpu"
)

func init() {
	// CMPXCHG16B is missing on some of the earliest x86-64 CPUs, and
	// the GOAMD64=v1 baseline does not guarantee its presence.
	// Executing it on such a CPU raises #UD, so refuse to start
	// instead.
	if !cpu.X86.HasCX16 {
		panic("atomic: Uint128 requires a CPU that supports CMPXCHG16B")
	}
}
