//go:build windows

package mmfile

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// PageSize returns the system page size.
func PageSize() int { return os.Getpagesize() }

// MapAnon reserves and commits at least size bytes of zero-filled memory.
func MapAnon(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmfile: invalid mapping size %d", size)
	}
	n := roundPages(size)
	if n < size {
		return nil, fmt.Errorf("mmfile: mapping size %d overflows", size)
	}
	addr, err := windows.VirtualAlloc(0, uintptr(n), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("mmfile: VirtualAlloc %d bytes: %w", n, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n), nil
}

// Unmap releases memory returned by MapAnon.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return windows.VirtualFree(uintptr(unsafe.Pointer(&data[0])), 0, windows.MEM_RELEASE)
}
