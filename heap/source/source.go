// Package source provides the backing memory providers used by the heap
// allocator. A Source hands out raw, writable regions and takes them back; it
// knows nothing about guards or statistics.
//
// None of the sources in this package synchronize internally. An allocator
// running with locking enabled serializes access on their behalf.
package source

import (
	"errors"
	"unsafe"
)

// Source is a provider of raw memory regions.
//
// Acquire returns a region of at least n bytes aligned to 16 bytes. Release
// returns a region previously obtained from Acquire with the same n.
type Source interface {
	Acquire(n int) (unsafe.Pointer, error)
	Release(p unsafe.Pointer, n int) error
}

var (
	// ErrExhausted indicates that a Limited source has no budget left.
	ErrExhausted = errors.New("source: budget exhausted")

	// ErrUnknownRegion indicates a Release of a region the source never handed out.
	ErrUnknownRegion = errors.New("source: unknown region")

	// ErrInvalidSize indicates a non-positive request.
	ErrInvalidSize = errors.New("source: invalid size")
)
