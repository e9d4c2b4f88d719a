package source

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/guardheap/internal/mmfile"
)

// Pages is a Source that maps every region separately with anonymous pages.
// Regions start on a page boundary, so an unmapped region faults on access
// instead of silently reading stale bytes.
type Pages struct {
	live map[uintptr][]byte
}

// NewPages returns an empty Pages source.
func NewPages() *Pages {
	return &Pages{live: make(map[uintptr][]byte)}
}

// Acquire implements Source.
func (s *Pages) Acquire(n int) (unsafe.Pointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	data, err := mmfile.MapAnon(n)
	if err != nil {
		return nil, err
	}
	p := unsafe.Pointer(unsafe.SliceData(data))
	s.live[uintptr(p)] = data
	return p, nil
}

// Release implements Source.
func (s *Pages) Release(p unsafe.Pointer, _ int) error {
	data, ok := s.live[uintptr(p)]
	if !ok {
		return fmt.Errorf("%w: %#x", ErrUnknownRegion, uintptr(p))
	}
	delete(s.live, uintptr(p))
	return mmfile.Unmap(data)
}

// Mapped returns the number of live mappings.
func (s *Pages) Mapped() int { return len(s.live) }

// Close unmaps every live region.
func (s *Pages) Close() error {
	var first error
	for addr, data := range s.live {
		if err := mmfile.Unmap(data); err != nil && first == nil {
			first = err
		}
		delete(s.live, addr)
	}
	return first
}
