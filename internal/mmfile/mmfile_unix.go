//go:build unix

package mmfile

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// PageSize returns the system page size.
func PageSize() int { return unix.Getpagesize() }

// MapAnon creates a private, zero-filled read/write mapping of at least size
// bytes. The length of the returned slice is rounded up to the page size.
func MapAnon(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: invalid mapping size %d", size)
	}
	n := roundPages(size)
	if n < size {
		return nil, fmt.Errorf("mmfile: mapping size %d overflows", size)
	}
	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmfile: mmap %d bytes: %w", n, err)
	}
	return data, nil
}

// Unmap releases a mapping returned by MapAnon.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}
