package heap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	lru "github.com/hashicorp/golang-lru"

	"github.com/joshuapare/guardheap/heap/source"
	"github.com/joshuapare/guardheap/internal/buf"
	"github.com/joshuapare/guardheap/internal/format"
)

// Allocator hands out guarded blocks from a Source and keeps usage statistics.
type Allocator struct {
	src   source.Source
	guard Guard
	fault FaultPolicy
	log   *slog.Logger

	// fatal receives the record written before a FaultExit.
	fatal *slog.Logger
	exit  func(code int)

	mu      sync.Locker
	stats   Stats
	lastErr error

	// released holds payload addresses of recently released blocks.
	released *lru.Cache
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// New builds an Allocator. A nil opts is the same as DefaultOptions().
func New(opts *Options) (*Allocator, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Fault > FaultReturn {
		return nil, fmt.Errorf("heap: unknown fault policy %s", opts.Fault)
	}
	if opts.History < 0 {
		return nil, fmt.Errorf("heap: negative history size %d", opts.History)
	}

	a := &Allocator{
		src:   opts.Source,
		guard: opts.Guard,
		fault: opts.Fault,
		log:   opts.Logger,
		fatal: opts.Logger,
		exit:  os.Exit,
		mu:    nopLocker{},
	}
	if a.src == nil {
		a.src = source.NewMalloc()
	}
	if a.guard == nil {
		a.guard = DefaultGuard
	}
	if a.log == nil {
		a.log = discardLogger()
		a.fatal = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if opts.Locking {
		a.mu = &sync.Mutex{}
	}
	if opts.History > 0 {
		c, err := lru.New(opts.History)
		if err != nil {
			return nil, fmt.Errorf("heap: release history: %w", err)
		}
		a.released = c
	}
	return a, nil
}

// Malloc returns a block of size bytes. The content is unspecified.
func (a *Allocator) Malloc(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.malloc(size)
	if err != nil {
		return nil, err
	}
	return bytesAt(p, size), nil
}

// Calloc returns a zeroed block of count*elemSize bytes.
func (a *Allocator) Calloc(count, elemSize int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, n, err := a.calloc(count, elemSize)
	if err != nil {
		return nil, err
	}
	return bytesAt(p, n), nil
}

// Realloc moves the content of b into a new block of size bytes and releases
// b. The first min(len, size) bytes are preserved. A nil b behaves like Malloc
// and a zero size releases b and returns nil.
//
// If the new block cannot be obtained, b is left intact and the error is
// returned.
func (a *Allocator) Realloc(b []byte, size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.realloc(pointerOf(b), size)
	if err != nil || p == nil {
		return nil, err
	}
	return bytesAt(p, size), nil
}

// Free releases b. Freeing a nil slice is a no-op.
func (a *Allocator) Free(b []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.free(pointerOf(b))
}

// Size returns the requested size of the block b was allocated with. Only
// the header guard is verified.
func (a *Allocator) Size(b []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.size(pointerOf(b))
}

// Check verifies both guards of b without releasing it.
func (a *Allocator) Check(b []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.check(pointerOf(b))
}

// UnsafeMalloc is Malloc on raw pointers.
func (a *Allocator) UnsafeMalloc(size int) (unsafe.Pointer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.malloc(size)
}

// UnsafeCalloc is Calloc on raw pointers.
func (a *Allocator) UnsafeCalloc(count, elemSize int) (unsafe.Pointer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, _, err := a.calloc(count, elemSize)
	return p, err
}

// UnsafeRealloc is Realloc on raw pointers.
func (a *Allocator) UnsafeRealloc(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.realloc(p, size)
}

// UnsafeFree is Free on raw pointers.
func (a *Allocator) UnsafeFree(p unsafe.Pointer) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.free(p)
}

// UnsafeSize is Size on raw pointers.
func (a *Allocator) UnsafeSize(p unsafe.Pointer) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.size(p)
}

// LastError returns the error of the most recent failing operation, or nil if
// no operation has failed yet. Successful operations do not clear it.
func (a *Allocator) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lastErr
}

// Close closes the source if it implements io.Closer. Blocks still
// outstanding become invalid.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (a *Allocator) malloc(size int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, a.fail(fmt.Errorf("%w: %d", ErrInvalidSize, size))
	}
	return a.alloc(size)
}

func (a *Allocator) calloc(count, elemSize int) (unsafe.Pointer, int, error) {
	if count < 0 || elemSize < 0 {
		return nil, 0, a.fail(fmt.Errorf("%w: %d * %d", ErrInvalidSize, count, elemSize))
	}
	n, ok := buf.MulSize(count, elemSize)
	if !ok {
		return nil, 0, a.fail(fmt.Errorf("%w: %d * %d overflows", ErrInvalidSize, count, elemSize))
	}
	if n == 0 {
		return nil, 0, a.fail(fmt.Errorf("%w: %d * %d is zero", ErrInvalidSize, count, elemSize))
	}
	p, err := a.alloc(n)
	if err != nil {
		return nil, 0, err
	}
	clear(bytesAt(p, n))
	return p, n, nil
}

func (a *Allocator) realloc(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	if p == nil {
		return a.malloc(size)
	}
	if size < 0 {
		return nil, a.fail(fmt.Errorf("%w: %d", ErrInvalidSize, size))
	}
	if size == 0 {
		return nil, a.release(p, "realloc")
	}

	h, err := a.verify(p, "realloc", true)
	if err != nil {
		return nil, err
	}
	old := h.Size()

	np, err := a.alloc(size)
	if err != nil {
		return nil, err
	}
	copy(bytesAt(np, size), bytesAt(p, old))

	if err := a.release(p, "realloc"); err != nil {
		// The old block is still owned by the caller; drop the copy.
		_ = a.release(np, "realloc")
		return nil, err
	}
	return np, nil
}

func (a *Allocator) free(p unsafe.Pointer) error {
	if p == nil {
		return nil
	}
	return a.release(p, "free")
}

func (a *Allocator) size(p unsafe.Pointer) (int, error) {
	if p == nil {
		return 0, a.fail(fmt.Errorf("%w: size of nil", ErrInvalidPointer))
	}
	h, err := a.verify(p, "size", false)
	if err != nil {
		return 0, err
	}
	return h.Size(), nil
}

func (a *Allocator) check(p unsafe.Pointer) error {
	if p == nil {
		return a.fail(fmt.Errorf("%w: check of nil", ErrInvalidPointer))
	}
	_, err := a.verify(p, "check", true)
	return err
}

// alloc is the allocation primitive. size must be positive.
func (a *Allocator) alloc(size int) (unsafe.Pointer, error) {
	if size <= 0 {
		panic(fmt.Sprintf("heap: alloc of %d bytes", size))
	}
	n, ok := format.BlockSize(size)
	if !ok {
		return nil, a.fail(fmt.Errorf("%w: block for %d bytes overflows", ErrInvalidSize, size))
	}

	base, err := a.src.Acquire(n)
	if err != nil {
		return nil, a.fail(fmt.Errorf("%w: %w", ErrOutOfMemory, err))
	}
	if base == nil {
		return nil, a.fail(fmt.Errorf("%w: source returned nil for %d bytes", ErrOutOfMemory, n))
	}

	h := (*Header)(base)
	h.size = uint64(size)
	p := payloadOf(h)
	a.guard.Stamp(h, footerOf(p, size))
	if a.released != nil {
		a.released.Remove(uintptr(p))
	}

	a.stats.onAlloc(size)
	if a.log.Enabled(context.Background(), slog.LevelDebug) {
		a.log.Debug("heap: alloc", "size", size, "block", n, "addr", addr(p))
	}
	return p, nil
}

// release verifies both guards and hands the block back to the source.
func (a *Allocator) release(p unsafe.Pointer, op string) error {
	h, err := a.verify(p, op, true)
	if err != nil {
		return err
	}
	size := h.Size()
	n, _ := format.BlockSize(size)

	canary := h.Canary
	h.Canary = format.Poison
	if err := a.src.Release(unsafe.Pointer(h), n); err != nil {
		h.Canary = canary
		return a.fail(fmt.Errorf("heap: %s: release %s: %w", op, addr(p), err))
	}

	if a.released != nil {
		a.released.Add(uintptr(p), struct{}{})
	}
	a.stats.onFree(size)
	if a.log.Enabled(context.Background(), slog.LevelDebug) {
		a.log.Debug("heap: free", "op", op, "size", size, "block", n, "addr", addr(p))
	}
	return nil
}

// verify checks the header guard and, if footer is set, the footer guard.
// The footer is never touched when the header is bad, and a block found in
// the release history is not touched at all.
func (a *Allocator) verify(p unsafe.Pointer, op string, footer bool) (*Header, error) {
	h := headerOf(p)
	if a.released != nil && a.released.Contains(uintptr(p)) {
		return nil, a.corrupt(op, RegionHeader, unsafe.Pointer(h), format.Poison, 0)
	}
	if !h.sane() || !a.guard.CheckHeader(h) {
		return nil, a.corrupt(op, RegionHeader, unsafe.Pointer(h), h.Canary, h.Size())
	}
	if footer {
		f := footerOf(p, h.Size())
		if !a.guard.CheckFooter(h, f) {
			return nil, a.corrupt(op, RegionFooter, unsafe.Pointer(f), f.Canary, h.Size())
		}
	}
	return h, nil
}

func (a *Allocator) fail(err error) error {
	a.lastErr = err
	return err
}

func addr(p unsafe.Pointer) string {
	return fmt.Sprintf("%#x", uintptr(p))
}
