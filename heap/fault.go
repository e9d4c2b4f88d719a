package heap

import (
	"fmt"
	"unsafe"
)

// corrupt records a guard failure and applies the fault policy. It returns
// only under FaultReturn, or under FaultExit when the exit hook returns.
func (a *Allocator) corrupt(op string, region Region, at unsafe.Pointer, canary uint32, size int) error {
	err := &CorruptionError{
		Op:     op,
		Region: region,
		Addr:   uintptr(at),
		Canary: canary,
	}
	a.stats.Faults++
	a.lastErr = err

	switch a.fault {
	case FaultPanic:
		a.log.Error("heap: memory corruption", faultAttrs(err, size)...)
		panic(err)
	case FaultReturn:
		a.log.Warn("heap: memory corruption", faultAttrs(err, size)...)
		return err
	default:
		a.fatal.Error("heap: memory corruption, exiting", faultAttrs(err, size)...)
		a.exit(1)
		return err
	}
}

func faultAttrs(err *CorruptionError, size int) []any {
	return []any{
		"op", err.Op,
		"region", err.Region.String(),
		"addr", fmt.Sprintf("%#x", err.Addr),
		"canary", err.Canary,
		"size", size,
	}
}
