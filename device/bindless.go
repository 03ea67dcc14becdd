// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package device

import (
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

// DefaultTexture names the reserved prefix slots of the bindless ring.
type DefaultTexture uint32

// Default textures, in ring slot order.
const (
	DefaultTextureWhite DefaultTexture = iota
	DefaultTextureBlack
	DefaultTextureRed
	DefaultTextureGreen
	DefaultTextureBlue
	DefaultTextureCyan
	DefaultTextureYellow
	DefaultTextureMagenta
	DefaultTextureNormalMap

	defaultTextureCount
)

// DefaultTextureCount is the size of the default-texture prefix.
const DefaultTextureCount = uint32(defaultTextureCount)

// TextureRing is the fixed-capacity ring of bindless texture descriptors
// feeding the material shaders. Adding to a full ring overwrites the oldest
// slot; callers that captured the returned slot index must accept the swap.
// The ring does not deduplicate.
//
// The default textures occupy the first slots at creation. They are ordinary
// ring entries: a ring that wraps all the way around evicts them too.
//
// Descriptor writes happen on the render thread between frames.
type TextureRing struct {
	ctx      *Context
	set      core.DescriptorSetHandle
	slot     uint32
	capacity uint32

	head uint32
	tail uint32

	textures []core.ImageHandle
	defaults []uint32
}

// NewTextureRing creates a ring of the given capacity writing sampled-image
// descriptors into binding slot of set. The defaults, at most
// DefaultTextureCount images, fill the leading slots in DefaultTexture
// order.
func NewTextureRing(ctx *Context, set core.DescriptorSetHandle, slot, capacity uint32, defaults []core.ImageHandle) (*TextureRing, error) {
	if capacity == 0 || uint32(len(defaults)) > capacity {
		return nil, hal.ErrUnsupported
	}
	r := &TextureRing{
		ctx:      ctx,
		set:      set,
		slot:     slot,
		capacity: capacity,
		textures: make([]core.ImageHandle, capacity),
	}
	for _, img := range defaults {
		idx, err := r.Add(img)
		if err != nil {
			return nil, err
		}
		r.defaults = append(r.defaults, idx)
	}
	return r, nil
}

// Capacity returns the slot count.
func (r *TextureRing) Capacity() uint32 { return r.capacity }

// Size returns the distance from head to tail. A ring that has wrapped all
// the way around has tail == head and reports 0, although every slot holds
// a texture.
func (r *TextureRing) Size() uint32 {
	if r.tail >= r.head {
		return r.tail - r.head
	}
	return r.capacity - (r.head - r.tail)
}

// FreeSize returns Capacity minus Size.
func (r *TextureRing) FreeSize() uint32 { return r.capacity - r.Size() }

// WillOverflow reports whether FreeSize is zero. Size never exceeds
// Capacity-1, so this never reports true; an Add at tail == head still
// overwrites the oldest slot.
func (r *TextureRing) WillOverflow() bool { return r.FreeSize() == 0 }

// Add writes img's sampled descriptor at the tail and returns the slot.
// On a full ring the oldest slot is reused.
func (r *TextureRing) Add(img core.ImageHandle) (uint32, error) {
	if err := r.updateDescriptor(img, r.tail); err != nil {
		return 0, err
	}
	slot := r.tail
	r.textures[slot] = img

	if r.WillOverflow() {
		r.head = r.next(r.head)
	}
	r.tail = r.next(r.tail)
	return slot, nil
}

// Set overwrites an existing slot.
func (r *TextureRing) Set(slot uint32, img core.ImageHandle) error {
	if err := r.updateDescriptor(img, slot); err != nil {
		return err
	}
	r.textures[slot] = img
	return nil
}

// Get returns the image occupying slot.
func (r *TextureRing) Get(slot uint32) core.ImageHandle {
	return r.textures[slot]
}

// Default returns the ring slot a default texture was placed in.
func (r *TextureRing) Default(t DefaultTexture) uint32 {
	return r.defaults[t]
}

func (r *TextureRing) next(i uint32) uint32 {
	return (i + 1) % r.capacity
}

func (r *TextureRing) updateDescriptor(img core.ImageHandle, index uint32) error {
	write, err := r.ctx.ImageWrite(img, types.LayoutReadOnly)
	if err != nil {
		return err
	}
	return r.ctx.UpdateDescriptors(r.set, r.slot, write, index)
}
