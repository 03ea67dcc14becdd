// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import "reflect"

// Blackboard passes outputs between passes without manual plumbing: a pass
// stores its output struct under its Go type (and optionally its pass name
// hash); later-declared passes fetch it by type. Writing the same type twice
// overwrites, so "the latest HiZ output" is always one lookup away.
//
// Dependencies still flow through declared reads and writes; the blackboard
// only carries the Resource values themselves.
type Blackboard struct {
	byType map[reflect.Type]any
	byHash map[uint64]any
}

// NewBlackboard creates an empty blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{
		byType: make(map[reflect.Type]any),
		byHash: make(map[uint64]any),
	}
}

// Update stores value under its dynamic type.
func (b *Blackboard) Update(value any) {
	b.byType[reflect.TypeOf(value)] = value
}

// UpdateFor stores value under both its dynamic type and a pass name hash.
func (b *Blackboard) UpdateFor(nameHash uint64, value any) {
	b.Update(value)
	b.byHash[nameHash] = value
}

// GetFor fetches the value stored for a pass name hash.
func (b *Blackboard) GetFor(nameHash uint64) (any, bool) {
	v, ok := b.byHash[nameHash]
	return v, ok
}

// clear drops all entries but keeps the maps.
func (b *Blackboard) clear() {
	for k := range b.byType {
		delete(b.byType, k)
	}
	for k := range b.byHash {
		delete(b.byHash, k)
	}
}

// BlackboardGet fetches the value of type T, returning the zero value when
// no pass stored one yet.
func BlackboardGet[T any](b *Blackboard) (T, bool) {
	var zero T
	v, ok := b.byType[reflect.TypeOf(zero)]
	if !ok {
		return zero, false
	}
	return v.(T), true
}
