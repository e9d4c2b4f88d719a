package heap

import (
	"bytes"
	"log/slog"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/guardheap/heap/source"
)

// newTestAllocator builds an allocator that returns faults instead of
// exiting, unless opts says otherwise.
func newTestAllocator(t *testing.T, opts *Options) *Allocator {
	t.Helper()
	if opts == nil {
		opts = DefaultOptions()
		opts.Fault = FaultReturn
	}
	a, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func returnOpts(src source.Source) *Options {
	opts := DefaultOptions()
	opts.Fault = FaultReturn
	opts.Source = src
	return opts
}

// overrun writes k bytes of 0xAA directly after b.
func overrun(b []byte, k int) {
	ext := unsafe.Slice(unsafe.SliceData(b), len(b)+k)
	for i := len(b); i < len(ext); i++ {
		ext[i] = 0xAA
	}
}

func bufferLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

// dirtySource hands out regions filled with 0xFF.
type dirtySource struct {
	source.Go
}

func (d *dirtySource) Acquire(n int) (unsafe.Pointer, error) {
	p, err := d.Go.Acquire(n)
	if err != nil {
		return nil, err
	}
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0xFF
	}
	return p, nil
}

// flakySource fails the next Release when failNext is set.
type flakySource struct {
	source.Go
	failNext bool
	releases int
}

var errFlaky = source.ErrUnknownRegion

func (f *flakySource) Release(p unsafe.Pointer, n int) error {
	if f.failNext {
		f.failNext = false
		return errFlaky
	}
	f.releases++
	return f.Go.Release(p, n)
}
