// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/device"
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

// FrameContext is everything a pass execution callback may touch: the
// command encoder, the frame counters, the primary view, and the shared
// upload and deletion machinery. Callbacks must not block; they only record
// commands.
type FrameContext struct {
	// Cmd is the frame's command encoder.
	Cmd hal.CommandEncoder

	// FrameIndex is the in-flight slot, in [0, BufferedFrames).
	FrameIndex uint32

	// FrameNumber counts frames monotonically since startup.
	FrameNumber uint64

	// Resolution is the target resolution of the primary view.
	Resolution [2]uint32

	// PrimaryView is the main camera's view of this frame.
	PrimaryView types.ViewInfo

	// Uploader stages host-to-device writes for this frame.
	Uploader *device.Uploader

	// DeletionQueue receives deferred destruction for this frame.
	DeletionQueue *device.DeletionQueue
}

// Resources resolves virtual resources to physical handles during pass
// execution. Handed to execute callbacks; invalid outside them.
type Resources struct {
	g *Graph
}

// IsAllocated reports whether r was materialized. A resource of a skipped
// or pruned pass has no physical object.
func (r *Resources) IsAllocated(res Resource) bool {
	if !res.IsValid() {
		return false
	}
	v := r.g.resource(res)
	return v.state >= stateMaterialized && v.firstUse >= 0
}

// Buffer returns the physical buffer of res.
func (r *Resources) Buffer(res Resource) (core.BufferHandle, error) {
	v := r.g.resource(res)
	if v.state < stateMaterialized {
		return core.BufferHandle{}, ErrReadOfUnwritten
	}
	return v.physicalBuffer, nil
}

// Image returns the physical image of res.
func (r *Resources) Image(res Resource) (core.ImageHandle, error) {
	v := r.g.resource(res)
	if v.state < stateMaterialized {
		return core.ImageHandle{}, ErrReadOfUnwritten
	}
	return v.physicalImage, nil
}

// Device returns the device context, for descriptor updates inside execute
// callbacks.
func (r *Resources) Device() *device.Context { return r.g.dev }

// Graph returns the owning graph, for blackboard access.
func (r *Resources) Graph() *Graph { return r.g }
