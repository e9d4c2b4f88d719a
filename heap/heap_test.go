package heap

import (
	"math"
	"math/rand"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/guardheap/heap/source"
	"github.com/joshuapare/guardheap/internal/format"
)

func TestNew_Defaults(t *testing.T) {
	a, err := New(nil)
	require.NoError(t, err)
	defer a.Close()

	require.IsType(t, &source.Malloc{}, a.src)
	require.Equal(t, DefaultGuard, a.guard)
	require.Equal(t, FaultExit, a.fault)
	require.NoError(t, a.LastError())
	require.Zero(t, a.Stats())
}

func TestNew_RejectsUnknownFaultPolicy(t *testing.T) {
	opts := DefaultOptions()
	opts.Fault = FaultPolicy(42)
	_, err := New(opts)
	require.Error(t, err)
}

func TestMalloc_BlockLayout(t *testing.T) {
	a := newTestAllocator(t, nil)

	b, err := a.Malloc(100)
	require.NoError(t, err)
	require.Len(t, b, 100)
	require.Equal(t, 100, cap(b))

	p := pointerOf(b)
	require.Zero(t, uintptr(p)%format.Alignment, "payload must be 16-byte aligned")

	h := headerOf(p)
	require.Equal(t, format.Sentinel, h.Canary)
	require.Equal(t, 100, h.Size(), "header records the requested size, not the aligned one")

	f := (*Footer)(unsafe.Add(p, 112))
	require.Equal(t, format.Sentinel, f.Canary)

	require.NoError(t, a.Free(b))
}

func TestMalloc_SizeRoundTrip(t *testing.T) {
	a := newTestAllocator(t, nil)

	check := func(s int) {
		b, err := a.Malloc(s)
		require.NoError(t, err, "Malloc(%d)", s)
		got, err := a.Size(b)
		require.NoError(t, err)
		require.Equal(t, s, got)
		require.NoError(t, a.Free(b))
	}

	for s := 1; s <= 4096; s++ {
		check(s)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		check(1 + rng.Intn(1<<20))
	}
	check(1 << 20)

	st := a.Stats()
	require.Equal(t, st.TotalAllocated, st.TotalFreed)
	require.Zero(t, st.CurrentUsage)
}

func TestMalloc_InvalidSize(t *testing.T) {
	a := newTestAllocator(t, nil)

	for _, n := range []int{0, -1, math.MinInt, format.MaxPayload + 1, math.MaxInt} {
		b, err := a.Malloc(n)
		require.ErrorIs(t, err, ErrInvalidSize, "Malloc(%d)", n)
		require.Nil(t, b)
		require.ErrorIs(t, a.LastError(), ErrInvalidSize)
	}
	require.Zero(t, a.Stats().TotalAllocated)
}

func TestMalloc_OutOfMemory(t *testing.T) {
	a := newTestAllocator(t, returnOpts(source.Limit(source.NewGo(), 256)))

	b, err := a.Malloc(100)
	require.NoError(t, err)
	before := a.Stats()

	_, err = a.Malloc(200)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.ErrorIs(t, err, source.ErrExhausted)
	require.ErrorIs(t, a.LastError(), ErrOutOfMemory)
	require.Equal(t, before, a.Stats(), "failed allocation must not touch stats")

	require.NoError(t, a.Free(b))
	_, err = a.Malloc(200)
	require.NoError(t, err)
}

func TestAlloc_PanicsOnZero(t *testing.T) {
	a := newTestAllocator(t, nil)
	require.Panics(t, func() { _, _ = a.alloc(0) })
}

func TestCalloc_ZeroFills(t *testing.T) {
	a := newTestAllocator(t, returnOpts(&dirtySource{}))

	b, err := a.Calloc(10, 8)
	require.NoError(t, err)
	require.Len(t, b, 80)
	for i, v := range b {
		require.Zero(t, v, "byte %d", i)
	}

	size, err := a.Size(b)
	require.NoError(t, err)
	require.Equal(t, 80, size)
	require.NoError(t, a.Free(b))
}

func TestCalloc_Rejects(t *testing.T) {
	a := newTestAllocator(t, nil)

	tests := []struct {
		name        string
		count, elem int
	}{
		{"overflow", math.MaxInt, 2},
		{"overflow both", 1 << 32, 1 << 32},
		{"negative count", -1, 8},
		{"negative elem", 8, -1},
		{"zero count", 0, 8},
		{"zero elem", 8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := a.Calloc(tt.count, tt.elem)
			require.ErrorIs(t, err, ErrInvalidSize)
			require.Nil(t, b)
		})
	}
	require.Zero(t, a.Stats().TotalAllocated)
}

func TestFree_UpdatesStats(t *testing.T) {
	a := newTestAllocator(t, nil)

	keep, err := a.Malloc(32)
	require.NoError(t, err)
	before := a.Stats()

	b, err := a.Malloc(100)
	require.NoError(t, err)
	require.NoError(t, a.Free(b))

	after := a.Stats()
	require.Equal(t, before.TotalFreed+100, after.TotalFreed)
	require.Equal(t, before.CurrentUsage, after.CurrentUsage)
	require.Equal(t, before.Frees+1, after.Frees)
	require.NoError(t, a.Free(keep))
}

func TestFree_Nil(t *testing.T) {
	a := newTestAllocator(t, nil)
	require.NoError(t, a.Free(nil))
	require.NoError(t, a.UnsafeFree(nil))
	require.NoError(t, a.LastError())
	require.Zero(t, a.Stats())
}

func TestStats_Peak(t *testing.T) {
	a := newTestAllocator(t, nil)

	first, err := a.Malloc(100)
	require.NoError(t, err)
	second, err := a.Malloc(50)
	require.NoError(t, err)
	require.NoError(t, a.Free(first))

	st := a.Stats()
	require.Equal(t, uint64(150), st.PeakUsage)
	require.Equal(t, uint64(50), st.CurrentUsage)
	require.Equal(t, st.TotalAllocated-st.TotalFreed, st.CurrentUsage)

	require.NoError(t, a.Free(second))
	require.Equal(t, uint64(150), a.Stats().PeakUsage)
}

func TestRealloc_NilIsMalloc(t *testing.T) {
	a := newTestAllocator(t, nil)

	b, err := a.Realloc(nil, 64)
	require.NoError(t, err)
	require.Len(t, b, 64)

	size, err := a.Size(b)
	require.NoError(t, err)
	require.Equal(t, 64, size)
	require.Equal(t, uint64(64), a.Stats().TotalAllocated)
}

func TestRealloc_ZeroFrees(t *testing.T) {
	a := newTestAllocator(t, nil)

	b, err := a.Malloc(48)
	require.NoError(t, err)

	got, err := a.Realloc(b, 0)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, uint64(48), a.Stats().TotalFreed)
	require.Zero(t, a.Stats().CurrentUsage)
}

func TestRealloc_PreservesPrefix(t *testing.T) {
	a := newTestAllocator(t, nil)

	b, err := a.Malloc(200)
	require.NoError(t, err)
	for i := range b {
		b[i] = byte(i)
	}

	shrunk, err := a.Realloc(b, 50)
	require.NoError(t, err)
	require.Len(t, shrunk, 50)
	for i := range shrunk {
		require.Equal(t, byte(i), shrunk[i])
	}

	grown, err := a.Realloc(shrunk, 300)
	require.NoError(t, err)
	require.Len(t, grown, 300)
	for i := 0; i < 50; i++ {
		require.Equal(t, byte(i), grown[i])
	}
	require.NoError(t, a.Check(grown))

	st := a.Stats()
	require.Equal(t, uint64(200+50+300), st.TotalAllocated)
	require.Equal(t, uint64(200+50), st.TotalFreed)
	require.Equal(t, uint64(300), st.CurrentUsage)
}

func TestRealloc_NegativeSize(t *testing.T) {
	a := newTestAllocator(t, nil)
	b, err := a.Malloc(16)
	require.NoError(t, err)

	_, err = a.Realloc(b, -1)
	require.ErrorIs(t, err, ErrInvalidSize)
	require.NoError(t, a.Check(b))
}

func TestRealloc_OutOfMemoryKeepsOld(t *testing.T) {
	a := newTestAllocator(t, returnOpts(source.Limit(source.NewGo(), 200)))

	b, err := a.Malloc(100)
	require.NoError(t, err)
	copy(b, "hello")

	_, err = a.Realloc(b, 150)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.NoError(t, a.Check(b))
	require.Equal(t, "hello", string(b[:5]))
	require.Equal(t, uint64(100), a.Stats().CurrentUsage)
}

func TestRealloc_ReleaseFailureDropsCopy(t *testing.T) {
	src := &flakySource{}
	a := newTestAllocator(t, returnOpts(src))

	b, err := a.Malloc(40)
	require.NoError(t, err)

	src.failNext = true
	got, err := a.Realloc(b, 80)
	require.ErrorIs(t, err, errFlaky)
	require.Nil(t, got)
	require.NoError(t, a.Check(b), "old block must stay valid")

	st := a.Stats()
	require.Equal(t, uint64(40+80), st.TotalAllocated)
	require.Equal(t, uint64(80), st.TotalFreed)
	require.Equal(t, uint64(40), st.CurrentUsage)
	require.Equal(t, 1, src.releases)
}

func TestSize_Nil(t *testing.T) {
	a := newTestAllocator(t, nil)

	n, err := a.Size(nil)
	require.ErrorIs(t, err, ErrInvalidPointer)
	require.Zero(t, n)
	require.ErrorIs(t, a.LastError(), ErrInvalidPointer)

	require.ErrorIs(t, a.Check(nil), ErrInvalidPointer)
}

func TestSize_IgnoresFooter(t *testing.T) {
	a := newTestAllocator(t, nil)

	b, err := a.Malloc(64)
	require.NoError(t, err)
	overrun(b, 8)

	n, err := a.Size(b)
	require.NoError(t, err)
	require.Equal(t, 64, n)
	require.ErrorIs(t, a.Check(b), ErrCorruptedMemory)
}

func TestLastError_Semantics(t *testing.T) {
	a := newTestAllocator(t, nil)
	require.NoError(t, a.LastError())

	_, err := a.Malloc(0)
	require.Error(t, err)
	first := a.LastError()
	require.ErrorIs(t, first, ErrInvalidSize)

	b, err := a.Malloc(8)
	require.NoError(t, err)
	require.Equal(t, first, a.LastError(), "success must not clear the last error")

	_, err = a.Size(nil)
	require.Error(t, err)
	require.ErrorIs(t, a.LastError(), ErrInvalidPointer)
	require.NotErrorIs(t, a.LastError(), ErrInvalidSize)

	require.NoError(t, a.Free(b))
}

func TestUnsafeAPI(t *testing.T) {
	a := newTestAllocator(t, nil)

	p, err := a.UnsafeMalloc(24)
	require.NoError(t, err)
	n, err := a.UnsafeSize(p)
	require.NoError(t, err)
	require.Equal(t, 24, n)

	*(*uint64)(p) = 0x0102030405060708
	p, err = a.UnsafeRealloc(p, 128)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), *(*uint64)(p))
	require.NoError(t, a.UnsafeFree(p))

	z, err := a.UnsafeCalloc(4, 4)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 16), unsafe.Slice((*byte)(z), 16))
	require.NoError(t, a.UnsafeFree(z))

	_, err = a.UnsafeCalloc(-1, 4)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestSources(t *testing.T) {
	for name, src := range map[string]source.Source{
		"malloc": source.NewMalloc(),
		"pages":  source.NewPages(),
		"go":     source.NewGo(),
	} {
		t.Run(name, func(t *testing.T) {
			a := newTestAllocator(t, returnOpts(src))

			var live [][]byte
			for i := 1; i <= 64; i++ {
				b, err := a.Malloc(i * 7)
				require.NoError(t, err)
				for j := range b {
					b[j] = byte(i)
				}
				live = append(live, b)
			}
			for i, b := range live {
				require.NoError(t, a.Check(b))
				assert.Equal(t, byte(i+1), b[len(b)-1])
				require.NoError(t, a.Free(b))
			}
			require.Zero(t, a.Stats().CurrentUsage)
		})
	}
}
