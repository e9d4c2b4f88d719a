package source

import (
	"fmt"
	"io"
	"unsafe"
)

// Limited wraps a Source with a byte budget. Requests that would push the
// outstanding total past the budget fail with ErrExhausted.
type Limited struct {
	src  Source
	max  int
	used int
}

// Limit returns src restricted to maxBytes outstanding bytes.
func Limit(src Source, maxBytes int) *Limited {
	return &Limited{src: src, max: maxBytes}
}

// Acquire implements Source.
func (l *Limited) Acquire(n int) (unsafe.Pointer, error) {
	if n > l.max-l.used {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrExhausted, n, l.used, l.max)
	}
	p, err := l.src.Acquire(n)
	if err != nil {
		return nil, err
	}
	l.used += n
	return p, nil
}

// Release implements Source.
func (l *Limited) Release(p unsafe.Pointer, n int) error {
	if err := l.src.Release(p, n); err != nil {
		return err
	}
	l.used -= n
	return nil
}

// InUse returns the number of outstanding bytes.
func (l *Limited) InUse() int { return l.used }

// Close closes the wrapped source when it supports it.
func (l *Limited) Close() error {
	if c, ok := l.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
