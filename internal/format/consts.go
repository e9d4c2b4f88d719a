// Package format holds the block geometry shared by the allocator and its
// tests. A block is laid out as:
//
//	0x00            header  (canary uint32, reserved uint32, size uint64)
//	HeaderSize      payload (size bytes, rounded up to Alignment)
//	HeaderSize+A(n) footer  (canary uint32, reserved uint32)
//
// The user pointer is the payload start. Everything here is pure arithmetic so
// it can be tested without touching memory.
package format

const (
	// Alignment is the payload rounding boundary in bytes.
	Alignment = 16

	// AlignmentMask is the bitmask used for aligning to Alignment (Alignment - 1).
	AlignmentMask = Alignment - 1

	// HeaderSize is the size of the block header that precedes the payload.
	HeaderSize = 16

	// FooterSize is the size of the block footer that follows the aligned payload.
	FooterSize = 8

	// Overhead is the number of guard bytes every block carries.
	Overhead = HeaderSize + FooterSize
)

// Header field offsets relative to the block start.
const (
	HeaderCanaryOffset = 0x00
	HeaderSizeOffset   = 0x08
)

// Footer field offsets relative to the footer start.
const (
	FooterCanaryOffset = 0x00
)

const (
	// Sentinel is the canary stamped by the default guard policy.
	Sentinel uint32 = 0xFFFFFACA

	// Poison replaces the header canary once a block has been released, so a
	// second release of a still-readable block fails the guard check.
	Poison uint32 = 0xDEADFA11
)
