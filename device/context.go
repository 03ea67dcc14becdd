// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package device

import (
	"errors"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

// ErrStaleHandle is returned when a handle refers to a destroyed object.
var ErrStaleHandle = core.ErrStaleHandle

// DefaultBufferedFrames is how many frames may be in flight at once.
const DefaultBufferedFrames = 2

// Buffer is the device-side record of a buffer.
type Buffer struct {
	HAL  hal.Buffer
	Desc types.BufferDescriptor

	// Mapped is the persistent mapping, when the descriptor asked for one.
	Mapped []byte
}

// Image is the device-side record of an image.
type Image struct {
	HAL  hal.Image
	Desc types.ImageDescriptor

	// Views are the additional subresource views, in descriptor order.
	Views []core.ImageViewHandle
}

// ImageView is the device-side record of an image view.
type ImageView struct {
	HAL   hal.ImageView
	Image core.ImageHandle
	Sub   types.ImageSubresource
}

// Sampler is the device-side record of a sampler.
type Sampler struct {
	HAL  hal.Sampler
	Desc types.SamplerDescriptor
}

// SetLayout is the device-side record of a descriptor set layout.
type SetLayout struct {
	HAL  hal.DescriptorSetLayout
	Desc types.DescriptorSetLayoutDescriptor
}

// Set is the device-side record of a descriptor set.
type Set struct {
	HAL    hal.DescriptorSet
	Layout core.DescriptorSetLayoutHandle
}

// Allocator is the device-side record of a descriptor allocator.
type Allocator struct {
	HAL  hal.DescriptorAllocator
	Desc hal.DescriptorAllocatorDescriptor
}

// Pipeline is the device-side record of a pipeline.
type Pipeline struct {
	HAL     hal.Pipeline
	Layout  core.PipelineLayoutHandle
	Compute bool
}

// Context owns every GPU object and the caches around them.
//
// The Context is single-threaded by contract: one thread drives its data
// structures while parallelism happens against the GPU. The underlying
// tables still tolerate concurrent readers.
type Context struct {
	hal hal.Device

	buffers         *core.Table[Buffer, core.BufferMarker]
	images          *core.Table[Image, core.ImageMarker]
	views           *core.Table[ImageView, core.ImageViewMarker]
	samplers        *core.Table[Sampler, core.SamplerMarker]
	setLayouts      *core.Table[SetLayout, core.DescriptorSetLayoutMarker]
	sets            *core.Table[Set, core.DescriptorSetMarker]
	allocators      *core.Table[Allocator, core.DescriptorAllocatorMarker]
	pipelineLayouts *core.Table[hal.PipelineLayout, core.PipelineLayoutMarker]
	pipelines       *core.Table[Pipeline, core.PipelineMarker]
	shaderModules   *core.Table[hal.ShaderModule, core.ShaderModuleMarker]
	fences          *core.Table[hal.Fence, core.FenceMarker]
	semaphores      *core.Table[hal.Semaphore, core.SemaphoreMarker]
	timelines       *core.Table[hal.TimelineSemaphore, core.TimelineSemaphoreMarker]
	splitBarriers   *core.Table[hal.SplitBarrier, core.SplitBarrierMarker]

	samplerCache map[types.SamplerDescriptor]core.SamplerHandle
	layoutCache  map[string]core.DescriptorSetLayoutHandle

	deletionQueue *DeletionQueue
	uploader      *Uploader

	bufferedFrames int
	frame          uint64
}

// Options configure a Context.
type Options struct {
	// BufferedFrames is the number of in-flight frames.
	// Zero means DefaultBufferedFrames.
	BufferedFrames int

	// StagingSize overrides the default staging buffer size.
	StagingSize uint64
}

// NewContext creates a context over the given backend.
func NewContext(backend hal.Device, opts Options) *Context {
	if opts.BufferedFrames <= 0 {
		opts.BufferedFrames = DefaultBufferedFrames
	}
	ctx := &Context{
		hal:             backend,
		buffers:         core.NewTable[Buffer, core.BufferMarker](),
		images:          core.NewTable[Image, core.ImageMarker](),
		views:           core.NewTable[ImageView, core.ImageViewMarker](),
		samplers:        core.NewTable[Sampler, core.SamplerMarker](),
		setLayouts:      core.NewTable[SetLayout, core.DescriptorSetLayoutMarker](),
		sets:            core.NewTable[Set, core.DescriptorSetMarker](),
		allocators:      core.NewTable[Allocator, core.DescriptorAllocatorMarker](),
		pipelineLayouts: core.NewTable[hal.PipelineLayout, core.PipelineLayoutMarker](),
		pipelines:       core.NewTable[Pipeline, core.PipelineMarker](),
		shaderModules:   core.NewTable[hal.ShaderModule, core.ShaderModuleMarker](),
		fences:          core.NewTable[hal.Fence, core.FenceMarker](),
		semaphores:      core.NewTable[hal.Semaphore, core.SemaphoreMarker](),
		timelines:       core.NewTable[hal.TimelineSemaphore, core.TimelineSemaphoreMarker](),
		splitBarriers:   core.NewTable[hal.SplitBarrier, core.SplitBarrierMarker](),
		samplerCache:    make(map[types.SamplerDescriptor]core.SamplerHandle),
		layoutCache:     make(map[string]core.DescriptorSetLayoutHandle),
		bufferedFrames:  opts.BufferedFrames,
	}
	ctx.deletionQueue = NewDeletionQueue(opts.BufferedFrames)
	ctx.uploader = NewUploader(ctx, opts.StagingSize)
	return ctx
}

// HAL returns the backend.
func (c *Context) HAL() hal.Device { return c.hal }

// DeletionQueue returns the context's deletion queue.
func (c *Context) DeletionQueue() *DeletionQueue { return c.deletionQueue }

// Uploader returns the context's staging uploader.
func (c *Context) Uploader() *Uploader { return c.uploader }

// BufferedFrames returns the in-flight frame count.
func (c *Context) BufferedFrames() int { return c.bufferedFrames }

// Frame returns the current frame number.
func (c *Context) Frame() uint64 { return c.frame }

// BeginFrame advances the frame counter and drains deletion-queue entries
// whose frame retired, in reverse insertion order.
func (c *Context) BeginFrame() {
	c.frame++
	c.deletionQueue.Flush(c.frame)
}

// Buffers

// CreateBuffer creates a buffer and returns its handle.
func (c *Context) CreateBuffer(desc types.BufferDescriptor) (core.BufferHandle, error) {
	b, err := c.hal.CreateBuffer(&desc)
	if err != nil {
		return core.BufferHandle{}, err
	}
	entry := Buffer{HAL: b, Desc: desc}
	if desc.PersistentlyMapped {
		entry.Mapped, err = c.hal.MapBuffer(b)
		if err != nil {
			c.hal.DestroyBuffer(b)
			return core.BufferHandle{}, err
		}
	}
	return c.buffers.Add(entry), nil
}

// DestroyBuffer destroys the buffer now. Stale handles are a no-op.
func (c *Context) DestroyBuffer(h core.BufferHandle) {
	if entry, err := c.buffers.Remove(h); err == nil {
		c.hal.DestroyBuffer(entry.HAL)
	}
}

// RetireBuffer enqueues the buffer on the deletion queue instead of
// destroying it immediately.
func (c *Context) RetireBuffer(h core.BufferHandle) {
	c.deletionQueue.Enqueue(func() { c.DestroyBuffer(h) })
}

// Buffer returns the record for h.
func (c *Context) Buffer(h core.BufferHandle) (Buffer, error) {
	return c.buffers.Get(h)
}

// ResizeBuffer grows the buffer to newSize in place: the handle stays valid,
// old storage is copied on cmd and enqueued for deferred destruction.
func (c *Context) ResizeBuffer(h core.BufferHandle, newSize uint64, cmd hal.CommandEncoder) error {
	entry, err := c.buffers.Get(h)
	if err != nil {
		return err
	}
	if newSize <= entry.Desc.Size {
		return nil
	}
	nb, err := c.hal.ResizeBuffer(entry.HAL, newSize, cmd)
	if err != nil {
		return err
	}
	old := entry.HAL
	entry.HAL = nb
	entry.Desc.Size = newSize
	if entry.Desc.PersistentlyMapped {
		entry.Mapped, err = c.hal.MapBuffer(nb)
		if err != nil {
			return err
		}
	}
	if err := c.buffers.Update(h, entry); err != nil {
		return err
	}
	c.deletionQueue.Enqueue(func() { c.hal.DestroyBuffer(old) })
	return nil
}

// MapBuffer maps a mappable buffer.
func (c *Context) MapBuffer(h core.BufferHandle) ([]byte, error) {
	entry, err := c.buffers.Get(h)
	if err != nil {
		return nil, err
	}
	if entry.Mapped != nil {
		return entry.Mapped, nil
	}
	return c.hal.MapBuffer(entry.HAL)
}

// UnmapBuffer unmaps a buffer mapped by MapBuffer. Persistent mappings stay.
func (c *Context) UnmapBuffer(h core.BufferHandle) {
	entry, err := c.buffers.Get(h)
	if err != nil || entry.Mapped != nil {
		return
	}
	c.hal.UnmapBuffer(entry.HAL)
}

// Images

// CreateImage creates an image, its primary view, and any additional views
// of the descriptor.
func (c *Context) CreateImage(desc types.ImageDescriptor) (core.ImageHandle, error) {
	img, err := c.hal.CreateImage(&desc)
	if err != nil {
		return core.ImageHandle{}, err
	}
	h := c.images.Add(Image{HAL: img, Desc: desc})

	entry, _ := c.images.Get(h)
	for _, sub := range desc.AdditionalViews {
		v, err := c.hal.CreateImageView(img, sub)
		if err != nil {
			c.DestroyImage(h)
			return core.ImageHandle{}, err
		}
		entry.Views = append(entry.Views, c.views.Add(ImageView{HAL: v, Image: h, Sub: sub}))
	}
	if err := c.images.Update(h, entry); err != nil {
		return core.ImageHandle{}, err
	}
	return h, nil
}

// DestroyImage destroys the image and its views. Stale handles are a no-op.
func (c *Context) DestroyImage(h core.ImageHandle) {
	entry, err := c.images.Remove(h)
	if err != nil {
		return
	}
	for _, vh := range entry.Views {
		if v, err := c.views.Remove(vh); err == nil {
			c.hal.DestroyImageView(v.HAL)
		}
	}
	c.hal.DestroyImage(entry.HAL)
}

// RetireImage enqueues the image on the deletion queue.
func (c *Context) RetireImage(h core.ImageHandle) {
	c.deletionQueue.Enqueue(func() { c.DestroyImage(h) })
}

// Image returns the record for h.
func (c *Context) Image(h core.ImageHandle) (Image, error) {
	return c.images.Get(h)
}

// ImageView returns the record for a view handle.
func (c *Context) ImageView(h core.ImageViewHandle) (ImageView, error) {
	return c.views.Get(h)
}

// PrimaryView returns the backend whole-image view of h.
func (c *Context) PrimaryView(h core.ImageHandle) (hal.ImageView, error) {
	entry, err := c.images.Get(h)
	if err != nil {
		return nil, err
	}
	return c.hal.PrimaryView(entry.HAL), nil
}

// Samplers

// CreateSampler returns a sampler for desc, reusing a previously created one
// for a structurally equal descriptor.
func (c *Context) CreateSampler(desc types.SamplerDescriptor) (core.SamplerHandle, error) {
	if h, ok := c.samplerCache[desc]; ok {
		return h, nil
	}
	s, err := c.hal.CreateSampler(&desc)
	if err != nil {
		return core.SamplerHandle{}, err
	}
	h := c.samplers.Add(Sampler{HAL: s, Desc: desc})
	c.samplerCache[desc] = h
	return h, nil
}

// Sampler returns the record for h.
func (c *Context) Sampler(h core.SamplerHandle) (Sampler, error) {
	return c.samplers.Get(h)
}

// Descriptors

// CreateSetLayout returns a layout for desc, reusing a previously created
// one for a structurally equal descriptor.
func (c *Context) CreateSetLayout(desc types.DescriptorSetLayoutDescriptor) (core.DescriptorSetLayoutHandle, error) {
	key := desc.Key()
	if h, ok := c.layoutCache[key]; ok {
		return h, nil
	}
	l, err := c.hal.CreateDescriptorSetLayout(&desc)
	if err != nil {
		return core.DescriptorSetLayoutHandle{}, err
	}
	h := c.setLayouts.Add(SetLayout{HAL: l, Desc: desc})
	c.layoutCache[key] = h
	return h, nil
}

// SetLayout returns the record for h.
func (c *Context) SetLayout(h core.DescriptorSetLayoutHandle) (SetLayout, error) {
	return c.setLayouts.Get(h)
}

// CreateAllocator creates a descriptor allocator.
func (c *Context) CreateAllocator(desc hal.DescriptorAllocatorDescriptor) (core.DescriptorAllocatorHandle, error) {
	a, err := c.hal.CreateDescriptorAllocator(&desc)
	if err != nil {
		return core.DescriptorAllocatorHandle{}, err
	}
	return c.allocators.Add(Allocator{HAL: a, Desc: desc}), nil
}

// ResetAllocator frees every set of the allocator at once. Arena allocators
// are reset this way at the start of each frame.
func (c *Context) ResetAllocator(h core.DescriptorAllocatorHandle) {
	if entry, err := c.allocators.Get(h); err == nil {
		c.hal.ResetDescriptorAllocator(entry.HAL)
	}
}

// AllocateSet allocates a descriptor set, growing the allocator once when
// it is exhausted. A second exhaustion is returned to the caller.
func (c *Context) AllocateSet(ah core.DescriptorAllocatorHandle, lh core.DescriptorSetLayoutHandle) (core.DescriptorSetHandle, error) {
	alloc, err := c.allocators.Get(ah)
	if err != nil {
		return core.DescriptorSetHandle{}, err
	}
	layout, err := c.setLayouts.Get(lh)
	if err != nil {
		return core.DescriptorSetHandle{}, err
	}

	s, err := c.hal.AllocateDescriptorSet(alloc.HAL, layout.HAL)
	if errors.Is(err, hal.ErrResourceExhausted) {
		if gerr := c.hal.GrowDescriptorAllocator(alloc.HAL); gerr != nil {
			return core.DescriptorSetHandle{}, gerr
		}
		hal.Logger().Warn("descriptor allocator grown", "kind", alloc.Desc.Kind)
		s, err = c.hal.AllocateDescriptorSet(alloc.HAL, layout.HAL)
	}
	if err != nil {
		return core.DescriptorSetHandle{}, err
	}
	return c.sets.Add(Set{HAL: s, Layout: lh}), nil
}

// Set returns the record for h.
func (c *Context) Set(h core.DescriptorSetHandle) (Set, error) {
	return c.sets.Get(h)
}

// BufferWrite builds a descriptor write covering the whole buffer.
func (c *Context) BufferWrite(h core.BufferHandle) (hal.DescriptorWrite, error) {
	entry, err := c.buffers.Get(h)
	if err != nil {
		return hal.DescriptorWrite{}, err
	}
	return hal.DescriptorWrite{Buffer: entry.HAL, BufferSize: entry.Desc.Size}, nil
}

// ImageWrite builds a descriptor write for the image's primary view.
func (c *Context) ImageWrite(h core.ImageHandle, layout types.ImageLayout) (hal.DescriptorWrite, error) {
	v, err := c.PrimaryView(h)
	if err != nil {
		return hal.DescriptorWrite{}, err
	}
	return hal.DescriptorWrite{ImageView: v, ImageLayout: layout}, nil
}

// ViewWrite builds a descriptor write for a subresource view.
func (c *Context) ViewWrite(h core.ImageViewHandle, layout types.ImageLayout) (hal.DescriptorWrite, error) {
	entry, err := c.views.Get(h)
	if err != nil {
		return hal.DescriptorWrite{}, err
	}
	return hal.DescriptorWrite{ImageView: entry.HAL, ImageLayout: layout}, nil
}

// SamplerWrite builds a descriptor write for a sampler.
func (c *Context) SamplerWrite(h core.SamplerHandle) (hal.DescriptorWrite, error) {
	entry, err := c.samplers.Get(h)
	if err != nil {
		return hal.DescriptorWrite{}, err
	}
	return hal.DescriptorWrite{Sampler: entry.HAL}, nil
}

// UpdateDescriptors writes one descriptor slot of set.
func (c *Context) UpdateDescriptors(sh core.DescriptorSetHandle, slot uint32, write hal.DescriptorWrite, arrayIndex uint32) error {
	entry, err := c.sets.Get(sh)
	if err != nil {
		return err
	}
	return c.hal.UpdateDescriptors(entry.HAL, slot, write, arrayIndex)
}

// Pipelines

// CreateShaderModule creates a shader module.
func (c *Context) CreateShaderModule(desc hal.ShaderModuleDescriptor) (core.ShaderModuleHandle, error) {
	m, err := c.hal.CreateShaderModule(&desc)
	if err != nil {
		return core.ShaderModuleHandle{}, err
	}
	return c.shaderModules.Add(m), nil
}

// ShaderModule returns the backend module for h.
func (c *Context) ShaderModule(h core.ShaderModuleHandle) (hal.ShaderModule, error) {
	return c.shaderModules.Get(h)
}

// CreatePipelineLayout creates a pipeline layout from set layout handles.
func (c *Context) CreatePipelineLayout(label string, setLayouts []core.DescriptorSetLayoutHandle, pushConstantSize uint32) (core.PipelineLayoutHandle, error) {
	halLayouts := make([]hal.DescriptorSetLayout, len(setLayouts))
	for i, lh := range setLayouts {
		entry, err := c.setLayouts.Get(lh)
		if err != nil {
			return core.PipelineLayoutHandle{}, err
		}
		halLayouts[i] = entry.HAL
	}
	l, err := c.hal.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		SetLayouts:       halLayouts,
		PushConstantSize: pushConstantSize,
	})
	if err != nil {
		return core.PipelineLayoutHandle{}, err
	}
	return c.pipelineLayouts.Add(l), nil
}

// PipelineLayout returns the backend layout for h.
func (c *Context) PipelineLayout(h core.PipelineLayoutHandle) (hal.PipelineLayout, error) {
	return c.pipelineLayouts.Get(h)
}

// CreateComputePipeline compiles a compute pipeline.
func (c *Context) CreateComputePipeline(label string, layout core.PipelineLayoutHandle, module core.ShaderModuleHandle, specialization map[string]uint32) (core.PipelineHandle, error) {
	l, err := c.pipelineLayouts.Get(layout)
	if err != nil {
		return core.PipelineHandle{}, err
	}
	m, err := c.shaderModules.Get(module)
	if err != nil {
		return core.PipelineHandle{}, err
	}
	p, err := c.hal.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: label, Layout: l, Module: m, Specialization: specialization,
	})
	if err != nil {
		return core.PipelineHandle{}, err
	}
	return c.pipelines.Add(Pipeline{HAL: p, Layout: layout, Compute: true}), nil
}

// CreateGraphicsPipeline compiles a graphics pipeline.
func (c *Context) CreateGraphicsPipeline(desc hal.GraphicsPipelineDescriptor, layout core.PipelineLayoutHandle) (core.PipelineHandle, error) {
	l, err := c.pipelineLayouts.Get(layout)
	if err != nil {
		return core.PipelineHandle{}, err
	}
	desc.Layout = l
	p, err := c.hal.CreateGraphicsPipeline(&desc)
	if err != nil {
		return core.PipelineHandle{}, err
	}
	return c.pipelines.Add(Pipeline{HAL: p, Layout: layout}), nil
}

// Pipeline returns the record for h.
func (c *Context) Pipeline(h core.PipelineHandle) (Pipeline, error) {
	return c.pipelines.Get(h)
}

// Synchronization

// CreateFence creates a fence.
func (c *Context) CreateFence(signaled bool) (core.FenceHandle, error) {
	f, err := c.hal.CreateFence(signaled)
	if err != nil {
		return core.FenceHandle{}, err
	}
	return c.fences.Add(f), nil
}

// Fence returns the backend fence for h.
func (c *Context) Fence(h core.FenceHandle) (hal.Fence, error) {
	return c.fences.Get(h)
}

// DestroyFence destroys the fence. Stale handles are a no-op.
func (c *Context) DestroyFence(h core.FenceHandle) {
	if f, err := c.fences.Remove(h); err == nil {
		c.hal.DestroyFence(f)
	}
}

// CreateSplitBarrier creates a split-barrier event.
func (c *Context) CreateSplitBarrier() (core.SplitBarrierHandle, error) {
	sb, err := c.hal.CreateSplitBarrier()
	if err != nil {
		return core.SplitBarrierHandle{}, err
	}
	return c.splitBarriers.Add(sb), nil
}

// SplitBarrier returns the backend event for h.
func (c *Context) SplitBarrier(h core.SplitBarrierHandle) (hal.SplitBarrier, error) {
	return c.splitBarriers.Get(h)
}

// CreateTimelineSemaphore creates a timeline semaphore.
func (c *Context) CreateTimelineSemaphore(initial uint64) (core.TimelineSemaphoreHandle, error) {
	ts, err := c.hal.CreateTimelineSemaphore(initial)
	if err != nil {
		return core.TimelineSemaphoreHandle{}, err
	}
	return c.timelines.Add(ts), nil
}

// TimelineSemaphore returns the backend semaphore for h.
func (c *Context) TimelineSemaphore(h core.TimelineSemaphoreHandle) (hal.TimelineSemaphore, error) {
	return c.timelines.Get(h)
}

// Shutdown destroys every live object. The deletion queue is drained first
// so dependent objects (views before images) go in order.
func (c *Context) Shutdown() {
	c.deletionQueue.FlushAll()

	c.buffers.ForEach(func(h core.BufferHandle, b Buffer) bool {
		c.hal.DestroyBuffer(b.HAL)
		return true
	})
	c.images.ForEach(func(h core.ImageHandle, img Image) bool {
		for _, vh := range img.Views {
			if v, err := c.views.Get(vh); err == nil {
				c.hal.DestroyImageView(v.HAL)
			}
		}
		c.hal.DestroyImage(img.HAL)
		return true
	})
	c.samplers.ForEach(func(h core.SamplerHandle, s Sampler) bool {
		c.hal.DestroySampler(s.HAL)
		return true
	})
	c.fences.ForEach(func(h core.FenceHandle, f hal.Fence) bool {
		c.hal.DestroyFence(f)
		return true
	})
}
