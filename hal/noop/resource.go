// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package noop

import (
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/internal/hostmem"
	"github.com/gogpu/rendercore/types"
)

// Buffer is a host-memory backed buffer.
type Buffer struct {
	Desc  types.BufferDescriptor
	block *hostmem.Block

	destroyed bool
	mapped    bool
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.Desc.Size }

// Destroy releases the backing storage. Idempotent.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	hostmem.Free(b.block)
}

// Data exposes the backing storage for test assertions.
func (b *Buffer) Data() []byte { return b.block.Bytes() }

// Image is a descriptor-only image with its views.
type Image struct {
	Desc        types.ImageDescriptor
	primaryView *ImageView
	views       []*ImageView

	destroyed bool
}

// Extent returns the base width and height.
func (i *Image) Extent() (uint32, uint32) { return i.Desc.Width, i.Desc.Height }

// Destroy marks the image dead. Idempotent.
func (i *Image) Destroy() { i.destroyed = true }

// Views returns the additional subresource views created for the image.
func (i *Image) Views() []*ImageView { return i.views }

// ImageView is a subresource view of a noop image.
type ImageView struct {
	Image *Image
	Sub   types.ImageSubresource
}

// Destroy is a no-op: views share their image's storage.
func (*ImageView) Destroy() {}

// Sampler is a descriptor-only sampler.
type Sampler struct {
	Desc types.SamplerDescriptor
}

// Destroy is a no-op.
func (*Sampler) Destroy() {}

// DescriptorSetLayout retains its descriptor for validation.
type DescriptorSetLayout struct {
	Desc types.DescriptorSetLayoutDescriptor
}

// Destroy is a no-op.
func (*DescriptorSetLayout) Destroy() {}

// DescriptorSet records descriptor writes for inspection.
type DescriptorSet struct {
	Layout *DescriptorSetLayout

	// Writes maps slot -> array index -> last write.
	Writes map[uint32]map[uint32]hal.DescriptorWrite
}

// Destroy is a no-op.
func (*DescriptorSet) Destroy() {}

// Write returns the last write at (slot, arrayIndex).
func (s *DescriptorSet) Write(slot, arrayIndex uint32) (hal.DescriptorWrite, bool) {
	w, ok := s.Writes[slot][arrayIndex]
	return w, ok
}

// DescriptorAllocator is a counting allocator with grow support.
type DescriptorAllocator struct {
	Desc      hal.DescriptorAllocatorDescriptor
	capacity  uint32
	allocated uint32
	grows     int
}

// Destroy is a no-op.
func (*DescriptorAllocator) Destroy() {}

// Grows returns how many times the allocator grew.
func (a *DescriptorAllocator) Grows() int { return a.grows }

// ShaderModule retains the baked code.
type ShaderModule struct {
	Desc hal.ShaderModuleDescriptor
}

// Destroy is a no-op.
func (*ShaderModule) Destroy() {}

// PipelineLayout retains its descriptor.
type PipelineLayout struct {
	Desc hal.PipelineLayoutDescriptor
}

// Destroy is a no-op.
func (*PipelineLayout) Destroy() {}

// Pipeline is a descriptor-only pipeline.
type Pipeline struct {
	Label   string
	Compute bool
}

// IsCompute reports whether the pipeline dispatches rather than draws.
func (p *Pipeline) IsCompute() bool { return p.Compute }

// Destroy is a no-op.
func (*Pipeline) Destroy() {}

// Semaphore is a descriptor-only binary semaphore.
type Semaphore struct{}

// Destroy is a no-op.
func (*Semaphore) Destroy() {}
