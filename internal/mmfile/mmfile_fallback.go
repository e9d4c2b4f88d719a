//go:build !unix && !windows

// Package mmfile provides platform-specific helpers for anonymous page mappings.
package mmfile

import (
	"fmt"
	"os"
)

// PageSize returns the system page size.
func PageSize() int { return os.Getpagesize() }

// MapAnon returns a page-rounded Go slice when anonymous mappings are not available.
func MapAnon(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: invalid mapping size %d", size)
	}
	n := roundPages(size)
	if n < size {
		return nil, fmt.Errorf("mmfile: mapping size %d overflows", size)
	}
	return make([]byte, n), nil
}

// Unmap is a no-op; the garbage collector reclaims fallback mappings.
func Unmap(data []byte) error { return nil }
