package source

import (
	"fmt"
	"math"
	"unsafe"
)

const alignment = 16

// Go is a Source that allocates regions from the Go heap. Release is a no-op:
// a region stays readable for as long as anything points into it and the
// garbage collector reclaims it afterwards. This keeps released headers
// inspectable, which makes repeated releases detectable.
type Go struct{}

// NewGo returns a Go heap source.
func NewGo() *Go { return &Go{} }

// Acquire implements Source.
func (*Go) Acquire(n int) (unsafe.Pointer, error) {
	if n <= 0 || n > math.MaxInt-alignment {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	buf := make([]byte, n+alignment)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	shift := int((alignment - addr%alignment) % alignment)
	return unsafe.Pointer(&buf[shift]), nil
}

// Release implements Source.
func (*Go) Release(unsafe.Pointer, int) error { return nil }
