// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package scene

import (
	"github.com/gogpu/rendercore/hal"
)

// MaxBucketsPerSet bounds the buckets of one object set so an object's
// membership fits a single u64 mask.
const MaxBucketsPerSet = 64

// BucketDescriptor names one draw bucket and the filter that selects its
// objects.
type BucketDescriptor struct {
	Name string

	// Filter selects the objects of the bucket.
	Filter func(*RenderObject) bool
}

// PassDescriptor groups buckets under one scene pass (opaque, alpha-test,
// translucent, ...).
type PassDescriptor struct {
	Name    string
	Buckets []BucketDescriptor
}

// Bucket is one materialized draw bucket.
type Bucket struct {
	Name  string
	Index uint32

	// Objects are indices into the set's object list.
	Objects []uint32
}

// SetPass is one materialized scene pass of a set.
type SetPass struct {
	Name    string
	Buckets []Bucket
}

// RenderObjectSet is a named selection of scene render objects filtered
// through passes into buckets. Each object carries the bitmask of buckets
// it landed in.
type RenderObjectSet struct {
	Name string

	scene  *Scene
	passes []SetPass

	bucketCount uint32

	// masks[i] is the bucket mask of the set's i-th object.
	masks []uint64
}

// NewRenderObjectSet filters the scene's objects through the pass
// descriptors. Returns hal.ErrUnsupported when the buckets exceed
// MaxBucketsPerSet.
func NewRenderObjectSet(name string, s *Scene, passes []PassDescriptor) (*RenderObjectSet, error) {
	total := 0
	for _, p := range passes {
		total += len(p.Buckets)
	}
	if total > MaxBucketsPerSet {
		return nil, hal.ErrUnsupported
	}

	set := &RenderObjectSet{
		Name:  name,
		scene: s,
		masks: make([]uint64, len(s.Objects())),
	}

	bucketIndex := uint32(0)
	for _, pd := range passes {
		sp := SetPass{Name: pd.Name}
		for _, bd := range pd.Buckets {
			b := Bucket{Name: bd.Name, Index: bucketIndex}
			for oi := range s.Objects() {
				obj := &s.Objects()[oi]
				if bd.Filter == nil || bd.Filter(obj) {
					b.Objects = append(b.Objects, uint32(oi))
					set.masks[oi] |= 1 << bucketIndex
					obj.Buckets |= 1 << bucketIndex
				}
			}
			bucketIndex++
			sp.Buckets = append(sp.Buckets, b)
		}
		set.passes = append(set.passes, sp)
	}
	set.bucketCount = bucketIndex
	return set, nil
}

// Scene returns the owning scene.
func (s *RenderObjectSet) Scene() *Scene { return s.scene }

// Passes returns the materialized passes.
func (s *RenderObjectSet) Passes() []SetPass { return s.passes }

// BucketCount returns the number of buckets across all passes.
func (s *RenderObjectSet) BucketCount() uint32 { return s.bucketCount }

// ObjectCount returns the number of objects in the set's scene.
func (s *RenderObjectSet) ObjectCount() uint32 { return uint32(len(s.scene.Objects())) }

// MeshletCount returns the number of meshlets in the set's scene.
func (s *RenderObjectSet) MeshletCount() uint32 { return uint32(len(s.scene.Meshlets())) }

// BucketMask returns the bucket mask of object oi.
func (s *RenderObjectSet) BucketMask(oi uint32) uint64 { return s.masks[oi] }
