// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package noop

import (
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/internal/hostmem"
	"github.com/gogpu/rendercore/types"
)

const defaultDescriptorPoolSize = 1024

// Device implements hal.Device entirely in host memory.
type Device struct {
	// Submissions counts Submit calls, for test assertions.
	Submissions int
}

// New creates a noop device.
func New() *Device {
	return &Device{}
}

var _ hal.Device = (*Device)(nil)

// CreateBuffer creates a host-memory backed buffer.
func (d *Device) CreateBuffer(desc *types.BufferDescriptor) (hal.Buffer, error) {
	if desc.Size == 0 {
		return nil, &hal.BackendError{Op: "CreateBuffer", Cause: hal.ErrUnsupported}
	}
	return &Buffer{Desc: *desc, block: hostmem.Alloc(desc.Size)}, nil
}

// DestroyBuffer releases a buffer. Idempotent.
func (d *Device) DestroyBuffer(b hal.Buffer) {
	if nb, ok := b.(*Buffer); ok && nb != nil {
		nb.Destroy()
	}
}

// ResizeBuffer allocates new storage and records a copy of the old contents.
func (d *Device) ResizeBuffer(b hal.Buffer, newSize uint64, cmd hal.CommandEncoder) (hal.Buffer, error) {
	old := b.(*Buffer)
	desc := old.Desc
	desc.Size = newSize
	nb := &Buffer{Desc: desc, block: hostmem.Alloc(newSize)}
	cmd.CopyBuffer(old, nb, []hal.BufferCopy{{Size: min(old.Desc.Size, newSize)}})
	return nb, nil
}

// MapBuffer returns the backing storage of a mappable buffer.
func (d *Device) MapBuffer(b hal.Buffer) ([]byte, error) {
	nb := b.(*Buffer)
	if !nb.Desc.Usage.HostVisible() {
		return nil, hal.ErrNotMappable
	}
	nb.mapped = true
	return nb.Data(), nil
}

// UnmapBuffer releases a mapping.
func (d *Device) UnmapBuffer(b hal.Buffer) {
	b.(*Buffer).mapped = false
}

// CreateImage creates an image and its views.
func (d *Device) CreateImage(desc *types.ImageDescriptor) (hal.Image, error) {
	img := &Image{Desc: *desc}
	img.primaryView = &ImageView{
		Image: img,
		Sub: types.ImageSubresource{
			MipCount:   desc.Mips(),
			LayerCount: desc.Layers(),
		},
	}
	for _, sub := range desc.AdditionalViews {
		img.views = append(img.views, &ImageView{Image: img, Sub: sub})
	}
	return img, nil
}

// DestroyImage releases an image. Idempotent.
func (d *Device) DestroyImage(img hal.Image) {
	if ni, ok := img.(*Image); ok && ni != nil {
		ni.Destroy()
	}
}

// PrimaryView returns the whole-image view.
func (d *Device) PrimaryView(img hal.Image) hal.ImageView {
	return img.(*Image).primaryView
}

// CreateImageView creates a subresource view.
func (d *Device) CreateImageView(img hal.Image, sub types.ImageSubresource) (hal.ImageView, error) {
	ni := img.(*Image)
	v := &ImageView{Image: ni, Sub: sub}
	ni.views = append(ni.views, v)
	return v, nil
}

// DestroyImageView is a no-op.
func (d *Device) DestroyImageView(hal.ImageView) {}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc *types.SamplerDescriptor) (hal.Sampler, error) {
	return &Sampler{Desc: *desc}, nil
}

// DestroySampler is a no-op.
func (d *Device) DestroySampler(hal.Sampler) {}

// CreateDescriptorSetLayout creates a set layout.
func (d *Device) CreateDescriptorSetLayout(desc *types.DescriptorSetLayoutDescriptor) (hal.DescriptorSetLayout, error) {
	cp := *desc
	cp.Bindings = append([]types.DescriptorBinding(nil), desc.Bindings...)
	return &DescriptorSetLayout{Desc: cp}, nil
}

// DestroyDescriptorSetLayout is a no-op.
func (d *Device) DestroyDescriptorSetLayout(hal.DescriptorSetLayout) {}

// CreateDescriptorAllocator creates a counting allocator.
func (d *Device) CreateDescriptorAllocator(desc *hal.DescriptorAllocatorDescriptor) (hal.DescriptorAllocator, error) {
	capacity := desc.MaxSets
	if capacity == 0 {
		capacity = defaultDescriptorPoolSize
	}
	return &DescriptorAllocator{Desc: *desc, capacity: capacity}, nil
}

// DestroyDescriptorAllocator is a no-op.
func (d *Device) DestroyDescriptorAllocator(hal.DescriptorAllocator) {}

// AllocateDescriptorSet allocates one set, failing when the allocator is full.
func (d *Device) AllocateDescriptorSet(a hal.DescriptorAllocator, layout hal.DescriptorSetLayout) (hal.DescriptorSet, error) {
	na := a.(*DescriptorAllocator)
	if na.allocated >= na.capacity {
		return nil, hal.ErrResourceExhausted
	}
	na.allocated++
	return &DescriptorSet{
		Layout: layout.(*DescriptorSetLayout),
		Writes: make(map[uint32]map[uint32]hal.DescriptorWrite),
	}, nil
}

// ResetDescriptorAllocator frees all sets at once.
func (d *Device) ResetDescriptorAllocator(a hal.DescriptorAllocator) {
	a.(*DescriptorAllocator).allocated = 0
}

// GrowDescriptorAllocator doubles the allocator capacity.
func (d *Device) GrowDescriptorAllocator(a hal.DescriptorAllocator) error {
	na := a.(*DescriptorAllocator)
	na.capacity *= 2
	na.grows++
	return nil
}

// UpdateDescriptors records a descriptor write.
func (d *Device) UpdateDescriptors(set hal.DescriptorSet, slot uint32, write hal.DescriptorWrite, arrayIndex uint32) error {
	ns := set.(*DescriptorSet)
	m := ns.Writes[slot]
	if m == nil {
		m = make(map[uint32]hal.DescriptorWrite)
		ns.Writes[slot] = m
	}
	m[arrayIndex] = write
	return nil
}

// CreateShaderModule creates a shader module.
func (d *Device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	return &ShaderModule{Desc: *desc}, nil
}

// DestroyShaderModule is a no-op.
func (d *Device) DestroyShaderModule(hal.ShaderModule) {}

// CreatePipelineLayout creates a pipeline layout.
func (d *Device) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	return &PipelineLayout{Desc: *desc}, nil
}

// DestroyPipelineLayout is a no-op.
func (d *Device) DestroyPipelineLayout(hal.PipelineLayout) {}

// CreateGraphicsPipeline creates a graphics pipeline.
func (d *Device) CreateGraphicsPipeline(desc *hal.GraphicsPipelineDescriptor) (hal.Pipeline, error) {
	return &Pipeline{Label: desc.Label, Compute: false}, nil
}

// CreateComputePipeline creates a compute pipeline.
func (d *Device) CreateComputePipeline(desc *hal.ComputePipelineDescriptor) (hal.Pipeline, error) {
	return &Pipeline{Label: desc.Label, Compute: true}, nil
}

// DestroyPipeline is a no-op.
func (d *Device) DestroyPipeline(hal.Pipeline) {}

// CreateFence creates a fence.
func (d *Device) CreateFence(signaled bool) (hal.Fence, error) {
	return newFence(signaled), nil
}

// DestroyFence is a no-op.
func (d *Device) DestroyFence(hal.Fence) {}

// CreateSemaphore creates a binary semaphore.
func (d *Device) CreateSemaphore() (hal.Semaphore, error) {
	return &Semaphore{}, nil
}

// DestroySemaphore is a no-op.
func (d *Device) DestroySemaphore(hal.Semaphore) {}

// CreateTimelineSemaphore creates a timeline semaphore.
func (d *Device) CreateTimelineSemaphore(initialValue uint64) (hal.TimelineSemaphore, error) {
	return newTimeline(initialValue), nil
}

// DestroyTimelineSemaphore is a no-op.
func (d *Device) DestroyTimelineSemaphore(hal.TimelineSemaphore) {}

// CreateSplitBarrier creates an unsignaled split barrier.
func (d *Device) CreateSplitBarrier() (hal.SplitBarrier, error) {
	return &SplitBarrier{}, nil
}

// DestroySplitBarrier is a no-op.
func (d *Device) DestroySplitBarrier(hal.SplitBarrier) {}

// CreateCommandList creates an encoder.
func (d *Device) CreateCommandList() (hal.CommandEncoder, error) {
	return &Encoder{}, nil
}

// DestroyCommandList is a no-op.
func (d *Device) DestroyCommandList(hal.CommandEncoder) {}

// Submit executes the copy commands of the list and signals the fence.
func (d *Device) Submit(cmd hal.CommandEncoder, signal hal.Fence) error {
	enc := cmd.(*Encoder)
	enc.execute()
	d.Submissions++
	if signal != nil {
		signal.(*Fence).signal()
	}
	return nil
}

// WaitIdle is immediate: the noop queue executes at Submit.
func (d *Device) WaitIdle() error { return nil }
