package source

import (
	"fmt"
	"unsafe"

	"modernc.org/memory"
)

// Malloc is a Source backed by a modernc.org/memory allocator. Regions live
// outside the Go heap and must be released explicitly.
type Malloc struct {
	a memory.Allocator
}

// NewMalloc returns an empty Malloc source.
func NewMalloc() *Malloc {
	return &Malloc{}
}

// Acquire implements Source.
func (m *Malloc) Acquire(n int) (unsafe.Pointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	p, err := m.a.UnsafeMalloc(n)
	if err != nil {
		return nil, fmt.Errorf("source: malloc %d bytes: %w", n, err)
	}
	return p, nil
}

// Release implements Source.
func (m *Malloc) Release(p unsafe.Pointer, _ int) error {
	if p == nil {
		return ErrUnknownRegion
	}
	return m.a.UnsafeFree(p)
}

// Close returns every outstanding region to the operating system.
func (m *Malloc) Close() error {
	return m.a.Close()
}
