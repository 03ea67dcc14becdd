// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package core

import (
	"errors"
	"sync"
)

// Errors returned by handle tables.
var (
	// ErrStaleHandle is returned when a handle's generation no longer
	// matches its slot: the object was destroyed, and possibly replaced.
	ErrStaleHandle = errors.New("stale handle: object was destroyed")

	// ErrInvalidHandle is returned for the zero handle.
	ErrInvalidHandle = errors.New("invalid handle")
)

type tableSlot[T any] struct {
	item  T
	gen   Generation
	valid bool
}

// Table is a generational sparse table: an identity manager fused with slot
// storage. It provides O(1) insert, lookup, and removal by typed handle, with
// generation validation on every access.
//
// Thread-safe for concurrent use.
type Table[T any, M Marker] struct {
	mu       sync.RWMutex
	identity *IdentityManager[M]
	slots    []tableSlot[T]
	count    int
}

// NewTable creates an empty table.
func NewTable[T any, M Marker]() *Table[T, M] {
	return &Table[T, M]{
		identity: NewIdentityManager[M](),
		slots:    make([]tableSlot[T], 0, 64),
	}
}

// Add stores item and returns its handle.
func (t *Table[T, M]) Add(item T) Handle[M] {
	h := t.identity.Alloc()
	index, gen := h.Unpack()

	t.mu.Lock()
	defer t.mu.Unlock()

	for Index(len(t.slots)) <= index {
		t.slots = append(t.slots, tableSlot[T]{})
	}
	t.slots[index] = tableSlot[T]{item: item, gen: gen, valid: true}
	t.count++
	return h
}

// Get returns the item for h. Returns ErrInvalidHandle for the zero handle
// and ErrStaleHandle when the slot was recycled or removed.
func (t *Table[T, M]) Get(h Handle[M]) (T, error) {
	var zero T
	if h.IsZero() {
		return zero, ErrInvalidHandle
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	index, gen := h.Unpack()
	if int(index) >= len(t.slots) {
		return zero, ErrStaleHandle
	}
	slot := &t.slots[index]
	if !slot.valid || slot.gen != gen {
		return zero, ErrStaleHandle
	}
	return slot.item, nil
}

// Update replaces the stored item for a live handle.
func (t *Table[T, M]) Update(h Handle[M], item T) error {
	if h.IsZero() {
		return ErrInvalidHandle
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	index, gen := h.Unpack()
	if int(index) >= len(t.slots) {
		return ErrStaleHandle
	}
	slot := &t.slots[index]
	if !slot.valid || slot.gen != gen {
		return ErrStaleHandle
	}
	slot.item = item
	return nil
}

// Remove deletes the item for h, returning it. The handle becomes stale and
// the slot is recycled with a bumped generation.
func (t *Table[T, M]) Remove(h Handle[M]) (T, error) {
	var zero T
	if h.IsZero() {
		return zero, ErrInvalidHandle
	}

	t.mu.Lock()

	index, gen := h.Unpack()
	if int(index) >= len(t.slots) {
		t.mu.Unlock()
		return zero, ErrStaleHandle
	}
	slot := &t.slots[index]
	if !slot.valid || slot.gen != gen {
		t.mu.Unlock()
		return zero, ErrStaleHandle
	}

	item := slot.item
	slot.item = zero
	slot.valid = false
	t.count--
	t.mu.Unlock()

	t.identity.Release(h)
	return item, nil
}

// Contains reports whether h refers to a live item.
func (t *Table[T, M]) Contains(h Handle[M]) bool {
	_, err := t.Get(h)
	return err == nil
}

// Len returns the number of live items.
func (t *Table[T, M]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// ForEach calls fn for every live item until fn returns false.
// Iteration order is by slot index.
func (t *Table[T, M]) ForEach(fn func(Handle[M], T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := range t.slots {
		slot := &t.slots[i]
		if slot.valid {
			if !fn(NewHandle[M](Index(i), slot.gen), slot.item) {
				break
			}
		}
	}
}
