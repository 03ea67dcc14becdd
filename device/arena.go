// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package device

import (
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

// arenaGrowFactor multiplies the arena size on growth; a request that needs
// more than that grows the arena to exactly the request's end.
const arenaGrowFactor = 2

// BufferArena is a growable device buffer handing out suballocated spans.
// Geometry streams (positions, indices, meshlets, commands) each live in one
// arena; growth keeps the handle stable and retires the old storage through
// the deletion queue.
type BufferArena struct {
	ctx    *Context
	buffer core.BufferHandle
	used   uint64

	// virtualSize caps growth; zero means unbounded.
	virtualSize uint64
}

// NewBufferArena creates an arena of initialSize bytes. virtualSize, when
// non-zero, is the hard cap growth may never exceed.
func NewBufferArena(ctx *Context, label string, initialSize, virtualSize uint64, usage types.BufferUsage) (*BufferArena, error) {
	h, err := ctx.CreateBuffer(types.BufferDescriptor{
		Label: label,
		Size:  initialSize,
		Usage: usage | types.BufferUsageSource | types.BufferUsageDestination,
	})
	if err != nil {
		return nil, err
	}
	return &BufferArena{ctx: ctx, buffer: h, virtualSize: virtualSize}, nil
}

// Buffer returns the arena's buffer handle. Stable across growth.
func (a *BufferArena) Buffer() core.BufferHandle { return a.buffer }

// Used returns the allocated byte count.
func (a *BufferArena) Used() uint64 { return a.used }

// Suballocate claims size bytes aligned to align, growing the arena when
// needed. Returns hal.ErrOutOfMemory when growth would exceed the virtual
// cap. Growth records the content copy into cmd.
func (a *BufferArena) Suballocate(size, align uint64, cmd hal.CommandEncoder) (types.BufferSubresource, error) {
	if align == 0 {
		align = 1
	}
	offset := (a.used + align - 1) &^ (align - 1)
	end := offset + size

	entry, err := a.ctx.Buffer(a.buffer)
	if err != nil {
		return types.BufferSubresource{}, err
	}
	if end > entry.Desc.Size {
		newSize := max(end, entry.Desc.Size*arenaGrowFactor)
		if a.virtualSize != 0 && newSize > a.virtualSize {
			newSize = a.virtualSize
		}
		if end > newSize {
			return types.BufferSubresource{}, hal.ErrOutOfMemory
		}
		if err := a.ctx.ResizeBuffer(a.buffer, newSize, cmd); err != nil {
			return types.BufferSubresource{}, err
		}
	}

	a.used = end
	return types.BufferSubresource{Offset: offset, Size: size}, nil
}

// Reset forgets all suballocations without freeing storage.
func (a *BufferArena) Reset() { a.used = 0 }

// Destroy retires the arena buffer through the deletion queue.
func (a *BufferArena) Destroy() {
	a.ctx.RetireBuffer(a.buffer)
}
