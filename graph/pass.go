// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"hash/fnv"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/core"
)

// PassKind is the tagged variant of a pass.
type PassKind uint8

// Pass kinds. A pass declaring at least one render target is a raster pass;
// every other pass is compute. The Builder never assigns PassTransfer, so a
// pass whose accesses are copies only is also compute.
const (
	PassCompute PassKind = iota
	PassRaster
	PassTransfer
)

// Pass is one node of the graph.
type Pass struct {
	name     string
	nameHash uint64
	index    int // declaration order
	kind     PassKind

	data    any
	execute func(data any, frame *FrameContext, res *Resources)

	reads   []Resource
	writes  []Resource
	creates []Resource

	colorTargets []Resource
	depthTarget  Resource

	sideEffect bool
	skipped    bool
	skipErr    error

	uploads []passUpload
}

type passUpload struct {
	resource Resource
	data     []byte
	offset   uint64
}

// Name returns the pass name.
func (p *Pass) Name() string { return p.name }

// NameHash returns the FNV-1a hash of the pass name.
func (p *Pass) NameHash() uint64 { return p.nameHash }

// Kind returns the pass variant.
func (p *Pass) Kind() PassKind { return p.kind }

// Skipped reports whether compilation dropped the pass this frame, and why.
func (p *Pass) Skipped() (bool, error) { return p.skipped, p.skipErr }

func hashName(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

// Builder is the declaration surface handed to a pass's setup function.
// It records every access of the pass and creates or imports resources.
type Builder struct {
	g    *Graph
	pass *Pass
}

// Graph returns the graph being built, for blackboard lookups during setup.
func (b *Builder) Graph() *Graph { return b.g }

// CreateBuffer declares a new virtual buffer owned by this frame.
func (b *Builder) CreateBuffer(name string, desc BufferDescription) Resource {
	r := b.g.addResource(name, ResourceBuffer)
	v := b.g.resource(r)
	v.bufferDesc = desc
	b.pass.creates = append(b.pass.creates, r)
	return r
}

// CreateImage declares a new virtual image owned by this frame.
func (b *Builder) CreateImage(name string, desc ImageDescription) Resource {
	r := b.g.addResource(name, ResourceImage)
	v := b.g.resource(r)
	if desc.Mips == 0 {
		desc.Mips = 1
	}
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	v.imageDesc = desc
	b.pass.creates = append(b.pass.creates, r)
	return r
}

// ImportBuffer pins an existing device buffer into the graph. Imported
// resources are never aliased and count as written. Importing the same
// buffer twice returns the same resource.
func (b *Builder) ImportBuffer(name string, h core.BufferHandle) Resource {
	key := importKey{raw: h.Raw(), buffer: true}
	if r, ok := b.g.imports[key]; ok {
		return r
	}
	r := b.g.addResource(name, ResourceBuffer)
	v := b.g.resource(r)
	v.imported = true
	v.importedBuffer = h
	v.state = stateMaterialized
	b.g.imports[key] = r
	return r
}

// ImportImage pins an existing device image into the graph.
func (b *Builder) ImportImage(name string, h core.ImageHandle) Resource {
	key := importKey{raw: h.Raw(), buffer: false}
	if r, ok := b.g.imports[key]; ok {
		return r
	}
	r := b.g.addResource(name, ResourceImage)
	v := b.g.resource(r)
	v.imported = true
	v.importedImage = h
	v.state = stateMaterialized
	b.g.imports[key] = r
	return r
}

// Read declares that the pass reads r with the given access.
func (b *Builder) Read(r Resource, access Access) Resource {
	b.g.recordAccess(b.pass, r, access, false, nil)
	b.pass.reads = append(b.pass.reads, r)
	return r
}

// Write declares that the pass writes r, returning the new version.
// At most one pass may write a given version.
func (b *Builder) Write(r Resource, access Access) Resource {
	next := b.g.bumpVersion(r, b.pass)
	b.g.recordAccess(b.pass, next, access, true, nil)
	b.pass.writes = append(b.pass.writes, next)
	return next
}

// RenderTarget declares a color attachment write, making the pass a raster
// pass. clear applies when load is LoadOpClear.
func (b *Builder) RenderTarget(r Resource, load gputypes.LoadOp, store gputypes.StoreOp, clear [4]float32) Resource {
	next := b.g.bumpVersion(r, b.pass)
	rt := &renderTargetInfo{load: load, store: store, clearColor: clear, viewIndex: -1}
	b.g.recordAccess(b.pass, next, AccessRenderTarget, true, rt)
	b.pass.writes = append(b.pass.writes, next)
	b.pass.colorTargets = append(b.pass.colorTargets, next)
	b.pass.kind = PassRaster
	return next
}

// DepthStencilTarget declares the depth attachment, making the pass a
// raster pass.
func (b *Builder) DepthStencilTarget(r Resource, load gputypes.LoadOp, store gputypes.StoreOp, clearDepth float32) Resource {
	next := b.g.bumpVersion(r, b.pass)
	rt := &renderTargetInfo{load: load, store: store, clearDepth: clearDepth, depth: true, viewIndex: -1}
	b.g.recordAccess(b.pass, next, AccessDepthStencil, true, rt)
	b.pass.writes = append(b.pass.writes, next)
	b.pass.depthTarget = next
	b.pass.kind = PassRaster
	return next
}

// Upload enqueues a host-to-device write of data into r, executed right
// before the pass runs. The resource must also be declared with an Upload
// read so the copy is ordered against other accesses.
func (b *Builder) Upload(r Resource, data []byte, offset uint64) {
	cp := make([]byte, len(data))
	copy(cp, data)
	b.pass.uploads = append(b.pass.uploads, passUpload{resource: r, data: cp, offset: offset})
}

// ExportBuffer pins r's physical buffer and stores its handle in dst after
// execution, so the next frame can import it back.
func (b *Builder) ExportBuffer(r Resource, dst *core.BufferHandle) {
	v := b.g.resource(r)
	v.exported = true
	v.exportBuffer = dst
}

// ExportImage pins r's physical image and stores its handle in dst after
// execution.
func (b *Builder) ExportImage(r Resource, dst *core.ImageHandle) {
	v := b.g.resource(r)
	v.exported = true
	v.exportImage = dst
}

// HasSideEffect pins the pass into the schedule even when nothing reads its
// outputs.
func (b *Builder) HasSideEffect() {
	b.pass.sideEffect = true
}
