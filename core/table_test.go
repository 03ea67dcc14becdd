// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package core

import (
	"errors"
	"testing"
)

func TestHandlePacking(t *testing.T) {
	h := Pack(0xABCDEF, 0x7F)
	index, gen := h.Unpack()
	if index != 0xABCDEF {
		t.Errorf("index = %#x, want 0xABCDEF", index)
	}
	if gen != 0x7F {
		t.Errorf("gen = %#x, want 0x7F", gen)
	}
	if Pack(0, 0) != 0 {
		t.Error("zero components must pack to the zero handle")
	}
}

func TestTableAddGetRemove(t *testing.T) {
	tb := NewTable[string, BufferMarker]()

	h := tb.Add("vertex-data")
	got, err := tb.Get(h)
	if err != nil || got != "vertex-data" {
		t.Fatalf("Get = (%q, %v), want (vertex-data, nil)", got, err)
	}

	if _, err := tb.Remove(h); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := tb.Get(h); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Get after Remove = %v, want ErrStaleHandle", err)
	}
}

// Destroying a buffer and creating a new one reuses the slot, but the old
// handle must stay dead.
func TestTableStaleHandleAfterReuse(t *testing.T) {
	tb := NewTable[int, BufferMarker]()

	h1 := tb.Add(1)
	if _, err := tb.Remove(h1); err != nil {
		t.Fatal(err)
	}
	h2 := tb.Add(2)

	if h1.Index() != h2.Index() {
		t.Fatalf("expected slot reuse: %v vs %v", h1, h2)
	}
	if h1 == h2 {
		t.Fatal("recycled handle must not equal its predecessor")
	}
	if _, err := tb.Get(h1); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("stale lookup = %v, want ErrStaleHandle", err)
	}
	if v, err := tb.Get(h2); err != nil || v != 2 {
		t.Errorf("fresh lookup = (%d, %v), want (2, nil)", v, err)
	}
}

func TestTableZeroHandle(t *testing.T) {
	tb := NewTable[int, BufferMarker]()
	var zero BufferHandle
	if _, err := tb.Get(zero); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Get(zero) = %v, want ErrInvalidHandle", err)
	}
}

func TestTableGenerationWrap(t *testing.T) {
	m := NewIdentityManager[BufferMarker]()
	h := m.Alloc()
	for i := 0; i < 300; i++ {
		m.Release(h)
		h = m.Alloc()
		if h.Generation() == 0 {
			t.Fatal("generation must never be zero")
		}
	}
}

func TestTableForEach(t *testing.T) {
	tb := NewTable[int, ImageMarker]()
	tb.Add(10)
	h := tb.Add(20)
	tb.Add(30)
	if _, err := tb.Remove(h); err != nil {
		t.Fatal(err)
	}

	sum := 0
	tb.ForEach(func(_ ImageHandle, v int) bool {
		sum += v
		return true
	})
	if sum != 40 {
		t.Errorf("sum over live items = %d, want 40", sum)
	}
	if tb.Len() != 2 {
		t.Errorf("Len = %d, want 2", tb.Len())
	}
}

func TestFreelist(t *testing.T) {
	var f Freelist[string]
	a := f.Add("a")
	b := f.Add("b")
	f.Remove(a)
	c := f.Add("c")
	if c != a {
		t.Errorf("freed slot not reused: got %d, want %d", c, a)
	}
	if v, ok := f.Get(b); !ok || v != "b" {
		t.Errorf("Get(b) = (%q, %v)", v, ok)
	}
	if _, ok := f.Get(999); ok {
		t.Error("out-of-range Get must fail")
	}
	if f.Len() != 2 {
		t.Errorf("Len = %d, want 2", f.Len())
	}
}

func TestDenseSetPaging(t *testing.T) {
	var s DenseSet[uint32]
	const n = DenseSetPageSize*2 + 17
	for i := uint32(0); i < n; i++ {
		s.Push(i)
	}
	if s.Len() != n {
		t.Fatalf("Len = %d, want %d", s.Len(), n)
	}
	if s.Cap()%DenseSetPageSize != 0 {
		t.Errorf("Cap = %d, want multiple of page size", s.Cap())
	}
	for i := uint32(0); i < n; i += 97 {
		if *s.At(i) != i {
			t.Errorf("At(%d) = %d", i, *s.At(i))
		}
	}
}

func TestDenseSetSwapRemove(t *testing.T) {
	var s DenseSet[int]
	for i := 0; i < 5; i++ {
		s.Push(i)
	}
	s.SwapRemove(1)
	if s.Len() != 4 {
		t.Fatalf("Len = %d, want 4", s.Len())
	}
	if *s.At(1) != 4 {
		t.Errorf("At(1) = %d, want 4 (moved from the back)", *s.At(1))
	}
	s.SwapRemove(3)
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
}
