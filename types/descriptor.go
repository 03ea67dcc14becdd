// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// DescriptorType classifies one descriptor binding.
type DescriptorType uint8

// Descriptor types.
const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorStorageBuffer
	DescriptorSampledImage
	DescriptorStorageImage
	DescriptorSampler
	DescriptorCombinedImageSampler
)

// String returns the descriptor type name.
func (t DescriptorType) String() string {
	switch t {
	case DescriptorUniformBuffer:
		return "UniformBuffer"
	case DescriptorStorageBuffer:
		return "StorageBuffer"
	case DescriptorSampledImage:
		return "SampledImage"
	case DescriptorStorageImage:
		return "StorageImage"
	case DescriptorSampler:
		return "Sampler"
	case DescriptorCombinedImageSampler:
		return "CombinedImageSampler"
	default:
		return "Unknown"
	}
}

// DescriptorBindingFlags modify a binding's allocation behavior.
type DescriptorBindingFlags uint8

// Binding flags.
const (
	// DescriptorBindingBindless marks a runtime-sized descriptor array
	// indexed dynamically from shaders.
	DescriptorBindingBindless DescriptorBindingFlags = 1 << 0
	// DescriptorBindingImmutableSampler bakes the sampler into the layout.
	DescriptorBindingImmutableSampler DescriptorBindingFlags = 1 << 1
)

// DescriptorBinding describes one binding slot of a set layout.
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  gputypes.ShaderStages
	Flags   DescriptorBindingFlags
}

// DescriptorSetLayoutDescriptor describes a set layout as an ordered binding
// list. Layouts are cached by structural equality; Key returns the cache key.
type DescriptorSetLayoutDescriptor struct {
	Bindings []DescriptorBinding
}

// Key returns a string that is equal for structurally equal layouts.
func (d *DescriptorSetLayoutDescriptor) Key() string {
	var sb strings.Builder
	for _, b := range d.Bindings {
		fmt.Fprintf(&sb, "%d:%d:%d:%d:%d;", b.Binding, b.Type, b.Count, b.Stages, b.Flags)
	}
	return sb.String()
}

// DescriptorAllocatorKind selects the allocation strategy for descriptor sets.
type DescriptorAllocatorKind uint8

// Allocator kinds.
const (
	// DescriptorAllocatorPooled allocates out of a growing list of pools.
	// Sets live until the pools are reset.
	DescriptorAllocatorPooled DescriptorAllocatorKind = iota
	// DescriptorAllocatorArena bumps linearly inside one descriptor buffer
	// and is reset wholesale every frame.
	DescriptorAllocatorArena
)

// DescriptorArenaResidence selects where an arena allocator's backing
// descriptor buffer lives.
type DescriptorArenaResidence uint8

// Arena residences.
const (
	DescriptorArenaCPU DescriptorArenaResidence = iota
	DescriptorArenaGPU
)
