// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hal

import "time"

// Resource is the base interface of every backend object. Destroy releases
// the object; calling it twice, or alongside the owning Device's DestroyX,
// is a no-op.
type Resource interface {
	Destroy()
}

// Buffer is a backend buffer object.
type Buffer interface {
	Resource

	// Size returns the buffer size in bytes.
	Size() uint64
}

// Image is a backend image object.
type Image interface {
	Resource

	// Extent returns the base width and height in texels.
	Extent() (uint32, uint32)
}

// ImageView is a subresource view of an image.
type ImageView interface {
	Resource
}

// Sampler is a backend sampler object.
type Sampler interface {
	Resource
}

// DescriptorSetLayout is a backend descriptor set layout.
type DescriptorSetLayout interface {
	Resource
}

// DescriptorSet is a backend descriptor set.
type DescriptorSet interface {
	Resource
}

// DescriptorAllocator allocates descriptor sets, either out of pools or by
// bumping inside a descriptor arena buffer.
type DescriptorAllocator interface {
	Resource
}

// ShaderModule is compiled shader code owned by the backend.
type ShaderModule interface {
	Resource
}

// PipelineLayout is a backend pipeline layout.
type PipelineLayout interface {
	Resource
}

// Pipeline is a compiled compute or graphics pipeline.
type Pipeline interface {
	Resource

	// IsCompute reports whether the pipeline dispatches rather than draws.
	IsCompute() bool
}

// Fence synchronizes the CPU with GPU submissions.
type Fence interface {
	Resource

	// Wait blocks until the fence signals or the timeout expires.
	// Returns ErrTimeout on expiry. A zero timeout waits forever.
	Wait(timeout time.Duration) error

	// IsSignaled reports the fence state without blocking.
	IsSignaled() bool

	// Reset returns the fence to the unsignaled state.
	Reset()
}

// Semaphore is a binary GPU-GPU synchronization primitive.
type Semaphore interface {
	Resource
}

// TimelineSemaphore is a monotonically increasing 64-bit GPU-visible counter.
type TimelineSemaphore interface {
	Resource

	// Value returns the last signaled value.
	Value() uint64

	// Signal raises the counter to value from the CPU.
	Signal(value uint64)

	// Wait blocks until the counter reaches value or the timeout expires.
	Wait(value uint64, timeout time.Duration) error
}

// SplitBarrier is an event object whose signal and wait halves are recorded
// at different points of a command list, letting work between them overlap.
type SplitBarrier interface {
	Resource
}
