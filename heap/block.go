package heap

import (
	"unsafe"

	"github.com/joshuapare/guardheap/internal/format"
)

// Header precedes every payload. The size field holds the requested payload
// size and is written by the allocator before the guard runs.
type Header struct {
	Canary uint32
	_      uint32
	size   uint64
}

// Size returns the requested payload size recorded in the header.
func (h *Header) Size() int { return int(h.size) }

// Footer follows the aligned payload.
type Footer struct {
	Canary uint32
	_      uint32
}

// Layout must match the geometry in internal/format.
var (
	_ [unsafe.Sizeof(Header{}) - format.HeaderSize]struct{}
	_ [format.HeaderSize - unsafe.Sizeof(Header{})]struct{}
	_ [unsafe.Sizeof(Footer{}) - format.FooterSize]struct{}
	_ [format.FooterSize - unsafe.Sizeof(Footer{})]struct{}
)

func headerOf(p unsafe.Pointer) *Header {
	return (*Header)(unsafe.Add(p, -format.HeaderSize))
}

func footerOf(p unsafe.Pointer, size int) *Footer {
	return (*Footer)(unsafe.Add(p, format.FooterOffset(size)))
}

func payloadOf(h *Header) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(h), format.HeaderSize)
}

// sane reports whether the recorded size could have been produced by this
// allocator. A header that passes its canary check with a wild size would
// otherwise send the footer lookup outside the block.
func (h *Header) sane() bool {
	return h.size > 0 && h.size <= format.MaxPayload
}

func bytesAt(p unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(p), n)
}

func pointerOf(b []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b))
}
