// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/types"
)

// ResourceKind distinguishes buffer and image resources.
type ResourceKind uint8

// Resource kinds.
const (
	ResourceBuffer ResourceKind = iota
	ResourceImage
)

// Resource identifies a virtual resource inside one graph build. The id is
// graph-local; the version tag is bumped by every Write declaration, making
// write-after-write ordering explicit in the declarations themselves.
//
// The zero Resource is invalid.
type Resource struct {
	id      uint32
	version uint16
	kind    ResourceKind
}

// IsValid reports whether the resource refers to a declared entry.
func (r Resource) IsValid() bool { return r.id != 0 }

// IsBuffer reports whether the resource is a buffer.
func (r Resource) IsBuffer() bool { return r.kind == ResourceBuffer }

// IsImage reports whether the resource is an image.
func (r Resource) IsImage() bool { return r.kind == ResourceImage }

// Version returns the version tag.
func (r Resource) Version() uint16 { return r.version }

// BufferDescription describes a graph-created buffer.
type BufferDescription struct {
	Size uint64

	// ExtraUsage adds usages beyond what declared accesses imply.
	ExtraUsage types.BufferUsage
}

// ImageDescription describes a graph-created image.
type ImageDescription struct {
	Width  uint32
	Height uint32
	Layers uint32
	Mips   uint32
	Format gputypes.TextureFormat
	Kind   types.ImageKind

	// ExtraUsage adds usages beyond what declared accesses imply.
	ExtraUsage types.ImageUsage

	// AdditionalViews requests per-mip or per-layer views.
	AdditionalViews []types.ImageSubresource
}

// resourceState tracks a virtual resource through the frame.
type resourceState uint8

const (
	stateVirtual resourceState = iota
	stateMaterialized
	stateLive
	stateRetired
)

// accessRecord is one declared (pass, resource) access.
type accessRecord struct {
	passIndex int
	version   uint16
	access    Access
	write     bool

	// renderTarget carries attachment ops for raster accesses.
	renderTarget *renderTargetInfo
}

type renderTargetInfo struct {
	load       gputypes.LoadOp
	store      gputypes.StoreOp
	clearColor [4]float32
	clearDepth float32
	depth      bool
	viewIndex  int // -1 means the primary view
}

// virtualResource is the graph-internal record of a declared resource.
type virtualResource struct {
	name string
	kind ResourceKind

	bufferDesc BufferDescription
	imageDesc  ImageDescription

	imported       bool
	importedBuffer core.BufferHandle
	importedImage  core.ImageHandle

	exported     bool
	exportBuffer *core.BufferHandle
	exportImage  *core.ImageHandle

	version   uint16
	lastWrite int // declaration index of the last writer, -1 if none

	accesses []accessRecord

	state resourceState

	// Compile results.
	firstUse int
	lastUse  int

	physicalBuffer core.BufferHandle
	physicalImage  core.ImageHandle
	physicalOwner  bool // false when aliased onto another resource's object
}

func (v *virtualResource) hasWriter() bool { return v.lastWrite >= 0 }
