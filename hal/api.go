// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hal

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/types"
)

// Device is the complete operation surface the render core consumes from a
// GPU backend. Every call is synchronous on the CPU side; Destroy calls are
// idempotent.
type Device interface {
	// CreateBuffer creates a buffer. Mappable buffers are backed by
	// host-visible memory.
	CreateBuffer(desc *types.BufferDescriptor) (Buffer, error)

	// DestroyBuffer releases a buffer.
	DestroyBuffer(b Buffer)

	// ResizeBuffer allocates new storage of newSize, records a copy of the
	// old contents into cmd, and returns the new buffer. The old buffer is
	// still referenced by the recorded copy; the caller must defer its
	// destruction until the command list retires.
	ResizeBuffer(b Buffer, newSize uint64, cmd CommandEncoder) (Buffer, error)

	// MapBuffer returns the host mapping of a mappable buffer. The mapping
	// of a non-persistent buffer is invalidated by the next Submit.
	MapBuffer(b Buffer) ([]byte, error)

	// UnmapBuffer releases a mapping obtained from MapBuffer.
	UnmapBuffer(b Buffer)

	// CreateImage creates an image together with its primary view and any
	// additional subresource views requested in the descriptor.
	CreateImage(desc *types.ImageDescriptor) (Image, error)

	// DestroyImage releases an image and all its views.
	DestroyImage(img Image)

	// PrimaryView returns the whole-image view.
	PrimaryView(img Image) ImageView

	// CreateImageView creates a subresource view.
	CreateImageView(img Image, sub types.ImageSubresource) (ImageView, error)

	// DestroyImageView releases a view created by CreateImageView.
	DestroyImageView(v ImageView)

	// CreateSampler creates a sampler. Backends may return a previously
	// created sampler for a structurally equal descriptor.
	CreateSampler(desc *types.SamplerDescriptor) (Sampler, error)

	// DestroySampler releases a sampler.
	DestroySampler(s Sampler)

	// CreateDescriptorSetLayout creates a set layout.
	CreateDescriptorSetLayout(desc *types.DescriptorSetLayoutDescriptor) (DescriptorSetLayout, error)

	// DestroyDescriptorSetLayout releases a set layout.
	DestroyDescriptorSetLayout(l DescriptorSetLayout)

	// CreateDescriptorAllocator creates a pooled or arena allocator.
	CreateDescriptorAllocator(desc *DescriptorAllocatorDescriptor) (DescriptorAllocator, error)

	// DestroyDescriptorAllocator releases an allocator and every set
	// allocated from it.
	DestroyDescriptorAllocator(a DescriptorAllocator)

	// AllocateDescriptorSet allocates a set of the given layout.
	// Returns ErrResourceExhausted when the allocator is full.
	AllocateDescriptorSet(a DescriptorAllocator, layout DescriptorSetLayout) (DescriptorSet, error)

	// ResetDescriptorAllocator frees all sets of the allocator at once.
	ResetDescriptorAllocator(a DescriptorAllocator)

	// GrowDescriptorAllocator enlarges the allocator's capacity.
	// Returns ErrResourceExhausted when the backend cannot grow it further.
	GrowDescriptorAllocator(a DescriptorAllocator) error

	// UpdateDescriptors writes one descriptor of set. Safe to call while the
	// set is not referenced by a pending submission.
	UpdateDescriptors(set DescriptorSet, slot uint32, write DescriptorWrite, arrayIndex uint32) error

	// CreateShaderModule creates a shader module from baked code.
	CreateShaderModule(desc *ShaderModuleDescriptor) (ShaderModule, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(m ShaderModule)

	// CreatePipelineLayout creates a pipeline layout.
	CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error)

	// DestroyPipelineLayout releases a pipeline layout.
	DestroyPipelineLayout(l PipelineLayout)

	// CreateGraphicsPipeline compiles a graphics pipeline.
	CreateGraphicsPipeline(desc *GraphicsPipelineDescriptor) (Pipeline, error)

	// CreateComputePipeline compiles a compute pipeline.
	CreateComputePipeline(desc *ComputePipelineDescriptor) (Pipeline, error)

	// DestroyPipeline releases a pipeline.
	DestroyPipeline(p Pipeline)

	// CreateFence creates a fence, optionally already signaled.
	CreateFence(signaled bool) (Fence, error)

	// DestroyFence releases a fence.
	DestroyFence(f Fence)

	// CreateSemaphore creates a binary semaphore.
	CreateSemaphore() (Semaphore, error)

	// DestroySemaphore releases a semaphore.
	DestroySemaphore(s Semaphore)

	// CreateTimelineSemaphore creates a timeline semaphore at initialValue.
	CreateTimelineSemaphore(initialValue uint64) (TimelineSemaphore, error)

	// DestroyTimelineSemaphore releases a timeline semaphore.
	DestroyTimelineSemaphore(s TimelineSemaphore)

	// CreateSplitBarrier creates an unsignaled split-barrier event.
	CreateSplitBarrier() (SplitBarrier, error)

	// DestroySplitBarrier releases a split barrier.
	DestroySplitBarrier(sb SplitBarrier)

	// CreateCommandList creates a command encoder ready for Begin.
	CreateCommandList() (CommandEncoder, error)

	// DestroyCommandList releases an encoder.
	DestroyCommandList(cmd CommandEncoder)

	// Submit hands an ended command list to the queue. The fence, if any,
	// signals when the list retires.
	Submit(cmd CommandEncoder, signal Fence) error

	// WaitIdle blocks until all submitted work retires.
	WaitIdle() error
}

// DescriptorAllocatorDescriptor describes a descriptor allocator.
type DescriptorAllocatorDescriptor struct {
	Kind types.DescriptorAllocatorKind

	// Residence applies to arena allocators only.
	Residence types.DescriptorArenaResidence

	// MaxSets bounds one pool (pooled) or the whole arena (arena).
	// Zero picks the backend default.
	MaxSets uint32
}

// DescriptorWrite is the resource written into one descriptor slot.
// Exactly one group of fields applies, selected by the binding's type.
type DescriptorWrite struct {
	// Buffer fields apply to uniform and storage buffer bindings.
	Buffer       Buffer
	BufferOffset uint64
	BufferSize   uint64

	// Image fields apply to sampled and storage image bindings.
	ImageView   ImageView
	ImageLayout types.ImageLayout

	// Sampler applies to sampler and combined bindings.
	Sampler Sampler
}

// ShaderModuleDescriptor describes a shader module.
type ShaderModuleDescriptor struct {
	Label string

	// Code is the baked shader payload (WGSL text or backend IR).
	Code []byte

	// EntryPoint is the function the pipeline executes.
	EntryPoint string
}

// PipelineLayoutDescriptor describes a pipeline layout.
type PipelineLayoutDescriptor struct {
	Label            string
	SetLayouts       []DescriptorSetLayout
	PushConstantSize uint32
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label  string
	Layout PipelineLayout
	Module ShaderModule

	// Specialization holds named specialization-constant overrides.
	Specialization map[string]uint32
}

// GraphicsPipelineDescriptor describes a graphics pipeline.
type GraphicsPipelineDescriptor struct {
	Label  string
	Layout PipelineLayout

	Vertex   ShaderModule
	Fragment ShaderModule

	// ColorFormats are the attachment formats the pipeline renders to.
	ColorFormats []gputypes.TextureFormat
	DepthFormat  gputypes.TextureFormat

	DepthTest  bool
	DepthWrite bool

	Specialization map[string]uint32
}
