package heap

import (
	"errors"
	"fmt"

	"github.com/joshuapare/guardheap/internal/format"
)

var (
	// ErrInvalidSize indicates a zero or negative size, or a size computation that overflows.
	ErrInvalidSize = errors.New("heap: invalid size")

	// ErrOutOfMemory indicates that the source could not provide a block.
	ErrOutOfMemory = errors.New("heap: out of memory")

	// ErrInvalidPointer indicates a nil pointer where a live allocation is required.
	ErrInvalidPointer = errors.New("heap: invalid pointer")

	// ErrCorruptedMemory indicates a guard mismatch. Errors of type
	// *CorruptionError match it with errors.Is.
	ErrCorruptedMemory = errors.New("heap: corrupted memory")
)

// Region identifies which guard of a block failed verification.
type Region uint8

const (
	RegionHeader Region = iota + 1
	RegionFooter
)

func (r Region) String() string {
	switch r {
	case RegionHeader:
		return "header"
	case RegionFooter:
		return "footer"
	default:
		return fmt.Sprintf("Region(%d)", uint8(r))
	}
}

// CorruptionError describes a block whose guard metadata failed verification.
type CorruptionError struct {
	Op     string  // operation that found the damage: "free", "realloc", "size" or "check"
	Region Region  // guard that failed
	Addr   uintptr // address of the failing guard
	Canary uint32  // canary value found
}

func (e *CorruptionError) Error() string {
	msg := fmt.Sprintf("heap: %s: %s canary mismatch at %#x (found %#08x)", e.Op, e.Region, e.Addr, e.Canary)
	if e.Region == RegionHeader && e.Canary == format.Poison {
		msg += ": block already released"
	}
	return msg
}

func (e *CorruptionError) Unwrap() error { return ErrCorruptedMemory }
