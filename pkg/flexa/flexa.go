// Package flexa implements a growable array of fixed-size items whose storage
// lives in allocator memory.
//
// Items are opaque byte strings of a fixed length chosen at construction.
// The backing buffer is obtained with Calloc, doubled with Realloc when full
// and returned with Free, so every array maps to exactly one live block.
package flexa

import (
	"errors"
	"fmt"

	"github.com/joshuapare/guardheap/internal/buf"
)

var (
	// ErrOutOfRange indicates an index outside [0, Len()).
	ErrOutOfRange = errors.New("flexa: index out of range")

	// ErrItemSize indicates an item whose length differs from the array's item size.
	ErrItemSize = errors.New("flexa: wrong item size")

	// ErrInvalidArgs indicates a non-positive item size or capacity.
	ErrInvalidArgs = errors.New("flexa: item size and capacity must be positive")

	// ErrFreed indicates use of an array after Free.
	ErrFreed = errors.New("flexa: array freed")
)

// Allocator is the subset of *heap.Allocator an Array needs.
type Allocator interface {
	Calloc(count, elemSize int) ([]byte, error)
	Realloc(b []byte, size int) ([]byte, error)
	Free(b []byte) error
	Size(b []byte) (int, error)
}

// Array is a dynamic array of fixed-size items. It is not safe for
// concurrent use.
type Array struct {
	a        Allocator
	itemSize int
	n        int
	data     []byte
}

// New allocates an array for capacity items of itemSize bytes each.
func New(a Allocator, itemSize, capacity int) (*Array, error) {
	if itemSize <= 0 || capacity <= 0 {
		return nil, fmt.Errorf("%w: item size %d, capacity %d", ErrInvalidArgs, itemSize, capacity)
	}
	data, err := a.Calloc(capacity, itemSize)
	if err != nil {
		return nil, fmt.Errorf("flexa: allocate %d x %d: %w", capacity, itemSize, err)
	}
	return &Array{a: a, itemSize: itemSize, data: data}, nil
}

// Len returns the number of items.
func (arr *Array) Len() int { return arr.n }

// ItemSize returns the size of one item in bytes.
func (arr *Array) ItemSize() int { return arr.itemSize }

// Cap returns the number of items the current block can hold, as recorded by
// the allocator. It returns 0 after Free.
func (arr *Array) Cap() int {
	if arr.data == nil {
		return 0
	}
	size, err := arr.a.Size(arr.data)
	if err != nil {
		return 0
	}
	return size / arr.itemSize
}

// Add appends a copy of item, doubling the capacity when the array is full.
func (arr *Array) Add(item []byte) error {
	if arr.data == nil {
		return ErrFreed
	}
	if len(item) != arr.itemSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrItemSize, len(item), arr.itemSize)
	}
	if arr.n >= arr.Cap() {
		if err := arr.grow(); err != nil {
			return err
		}
	}
	off, end, ok := buf.Span(arr.n, arr.itemSize)
	if !ok {
		return fmt.Errorf("flexa: item %d overflows", arr.n)
	}
	copy(arr.data[off:end], item)
	arr.n++
	return nil
}

func (arr *Array) grow() error {
	newCap, ok := buf.MulSize(max(arr.Cap(), 1), 2)
	if !ok {
		return fmt.Errorf("flexa: capacity overflows")
	}
	size, ok := buf.MulSize(newCap, arr.itemSize)
	if !ok {
		return fmt.Errorf("flexa: %d x %d bytes overflows", newCap, arr.itemSize)
	}
	data, err := arr.a.Realloc(arr.data, size)
	if err != nil {
		return fmt.Errorf("flexa: grow to %d items: %w", newCap, err)
	}
	arr.data = data
	return nil
}

// Get returns the item at index i. The returned slice aliases the array's
// storage and is invalidated by Add, Remove and Free.
func (arr *Array) Get(i int) ([]byte, error) {
	if i < 0 || i >= arr.n {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, arr.n)
	}
	off, end, _ := buf.Span(i, arr.itemSize)
	return arr.data[off:end:end], nil
}

// Remove deletes the item at index i, shifting later items down.
func (arr *Array) Remove(i int) error {
	if i < 0 || i >= arr.n {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, arr.n)
	}
	off, end, _ := buf.Span(i, arr.itemSize)
	copy(arr.data[off:], arr.data[end:arr.n*arr.itemSize])
	arr.n--
	return nil
}

// Raw returns the bytes of all items, back to back.
func (arr *Array) Raw() []byte {
	if arr.data == nil {
		return nil
	}
	return arr.data[:arr.n*arr.itemSize]
}

// Free releases the storage. The array is unusable afterwards.
func (arr *Array) Free() error {
	if arr.data == nil {
		return nil
	}
	err := arr.a.Free(arr.data)
	arr.data = nil
	arr.n = 0
	return err
}
