// Package buf contains overflow-checked size arithmetic used when computing
// block and buffer sizes.
package buf

import (
	"math"
	"math/bits"
)

// AddSize adds two non-negative sizes, returning ok = false when either
// operand is negative or the sum would overflow int.
func AddSize(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a > math.MaxInt-b {
		return 0, false
	}
	return a + b, true
}

// MulSize multiplies two non-negative sizes, returning ok = false when either
// operand is negative or the product would overflow int.
// This is the count * elemSize check behind zero-filled allocations.
func MulSize(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt {
		return 0, false
	}
	return int(lo), true
}

// Span returns the byte range [off, off+n) for element index i of size n,
// or ok = false if the end would overflow.
func Span(i, n int) (off, end int, ok bool) {
	off, ok = MulSize(i, n)
	if !ok {
		return 0, 0, false
	}
	end, ok = AddSize(off, n)
	if !ok {
		return 0, 0, false
	}
	return off, end, true
}
