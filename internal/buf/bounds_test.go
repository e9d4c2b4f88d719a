package buf

import (
	"math"
	"testing"
)

func TestAddSize(t *testing.T) {
	if sum, ok := AddSize(10, 5); !ok || sum != 15 {
		t.Fatalf("AddSize(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddSize(math.MaxInt, 1); ok {
		t.Fatalf("expected overflow when adding to MaxInt")
	}
	if _, ok := AddSize(-1, 1); ok {
		t.Fatalf("expected failure for negative operand")
	}
	if sum, ok := AddSize(math.MaxInt-1, 1); !ok || sum != math.MaxInt {
		t.Fatalf("AddSize(MaxInt-1,1)=%d,%v want MaxInt,true", sum, ok)
	}
}

func TestMulSize(t *testing.T) {
	tests := []struct {
		a, b   int
		want   int
		wantOK bool
	}{
		{0, 0, 0, true},
		{0, math.MaxInt, 0, true},
		{3, 7, 21, true},
		{1 << 31, 1 << 31, 1 << 62, true},
		{math.MaxInt, 1, math.MaxInt, true},
		{math.MaxInt, 2, 0, false},
		{1 << 32, 1 << 32, 0, false},
		{-1, 2, 0, false},
		{2, -1, 0, false},
	}
	for _, tt := range tests {
		got, ok := MulSize(tt.a, tt.b)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("MulSize(%d,%d)=%d,%v want %d,%v", tt.a, tt.b, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSpan(t *testing.T) {
	off, end, ok := Span(3, 8)
	if !ok || off != 24 || end != 32 {
		t.Fatalf("Span(3,8)=%d,%d,%v want 24,32,true", off, end, ok)
	}
	if _, _, ok := Span(math.MaxInt/2, 4); ok {
		t.Fatalf("expected overflow for huge index")
	}
}
