package format

import (
	"math"

	"github.com/joshuapare/guardheap/internal/buf"
)

// Align16 returns n aligned up to the next 16-byte boundary.
//
// Example:
//
//	Align16(1)  = 16
//	Align16(16) = 16
//	Align16(17) = 32
func Align16(n int) int {
	return (n + AlignmentMask) &^ AlignmentMask
}

// MaxPayload is the largest payload whose block size still fits in an int.
const MaxPayload = math.MaxInt - Overhead - AlignmentMask

// BlockSize returns the total number of bytes a block with an n-byte payload
// occupies: header, aligned payload and footer. ok is false when n is not
// positive or the total would overflow int.
func BlockSize(n int) (size int, ok bool) {
	if n <= 0 || n > MaxPayload {
		return 0, false
	}
	return buf.AddSize(Overhead, Align16(n))
}

// FooterOffset returns the footer offset relative to the payload start.
func FooterOffset(n int) int {
	return Align16(n)
}
