// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hal

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/types"
)

// CommandEncoder records GPU commands. Encoders are reset by Begin and become
// immutable after End; Submit hands the recorded list to the device queue.
type CommandEncoder interface {
	// Begin starts recording, discarding any previous contents.
	Begin() error

	// End finishes recording. No commands may be recorded afterwards until
	// the next Begin.
	End() error

	// Barrier inserts the execution and memory dependencies described by dep.
	Barrier(dep *DependencyInfo)

	// SignalSplitBarrier records the signal half of a split barrier with the
	// producer scope of dep.
	SignalSplitBarrier(sb SplitBarrier, dep *DependencyInfo)

	// WaitSplitBarrier records the wait half of a split barrier with the
	// consumer scope of dep.
	WaitSplitBarrier(sb SplitBarrier, dep *DependencyInfo)

	// ResetSplitBarrier returns the split barrier to the unsignaled state so
	// it can be reused later in the same command list.
	ResetSplitBarrier(sb SplitBarrier, dep *DependencyInfo)

	// BeginRendering starts a dynamic rendering scope over the attachments
	// of info. Draws are only legal inside such a scope.
	BeginRendering(info *RenderingInfo)

	// EndRendering closes the current rendering scope.
	EndRendering()

	// BindPipeline sets the active compute or graphics pipeline.
	BindPipeline(p Pipeline)

	// BindDescriptors binds set at setIndex of layout.
	BindDescriptors(layout PipelineLayout, setIndex uint32, set DescriptorSet)

	// BindIndexBuffer binds b as the index stream.
	BindIndexBuffer(b Buffer, offset uint64, format gputypes.IndexFormat)

	// BindVertexBuffers binds vertex streams starting at slot first.
	BindVertexBuffers(first uint32, buffers []Buffer, offsets []uint64)

	// PushConstants writes the push-constant range of layout.
	PushConstants(layout PipelineLayout, data []byte)

	// SetViewport sets the full-extent viewport.
	SetViewport(width, height float32)

	// SetScissor sets the scissor rectangle.
	SetScissor(x, y int32, width, height uint32)

	// Draw records a non-indexed draw.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// DrawIndexed records an indexed draw.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)

	// DrawIndirect records drawCount non-indexed draws with arguments read
	// from b at offset, stride bytes apart.
	DrawIndirect(b Buffer, offset uint64, drawCount, stride uint32)

	// DrawIndexedIndirect records drawCount indexed draws with arguments
	// read from b.
	DrawIndexedIndirect(b Buffer, offset uint64, drawCount, stride uint32)

	// DrawIndexedIndirectCount is DrawIndexedIndirect with the draw count
	// read from countBuffer at countOffset, clamped to maxDrawCount.
	DrawIndexedIndirectCount(b Buffer, offset uint64, countBuffer Buffer, countOffset uint64, maxDrawCount, stride uint32)

	// Dispatch records a compute dispatch of the given group counts.
	Dispatch(groupsX, groupsY, groupsZ uint32)

	// DispatchIndirect records a compute dispatch with group counts read
	// from b at offset.
	DispatchIndirect(b Buffer, offset uint64)

	// CopyBuffer copies the regions from src to dst.
	CopyBuffer(src, dst Buffer, regions []BufferCopy)

	// CopyImage copies the regions from src to dst.
	CopyImage(src, dst Image, regions []ImageCopy)

	// BlitImage scales the whole of src onto dst with the given filter.
	BlitImage(src, dst Image, filter gputypes.FilterMode)
}

// MemoryBarrier is an execution plus memory dependency between two scopes.
type MemoryBarrier struct {
	SrcStage  types.PipelineStage
	DstStage  types.PipelineStage
	SrcAccess types.Access
	DstAccess types.Access
}

// BufferBarrier scopes a memory barrier to a byte range of one buffer.
// A zero Size covers the whole buffer.
type BufferBarrier struct {
	MemoryBarrier

	Buffer Buffer
	Offset uint64
	Size   uint64
}

// ImageBarrier scopes a memory barrier to an image subresource and carries
// its layout transition.
type ImageBarrier struct {
	MemoryBarrier

	Image       Image
	OldLayout   types.ImageLayout
	NewLayout   types.ImageLayout
	Subresource types.ImageSubresource
}

// DependencyInfo groups the barriers issued at one synchronization point.
type DependencyInfo struct {
	// ByRegion permits framebuffer-local dependencies.
	ByRegion bool

	Memory  []MemoryBarrier
	Buffers []BufferBarrier
	Images  []ImageBarrier
}

// Empty reports whether the dependency carries no barriers.
func (d *DependencyInfo) Empty() bool {
	return len(d.Memory) == 0 && len(d.Buffers) == 0 && len(d.Images) == 0
}

// BufferCopy is one copied byte range.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// ImageCopy is one copied subresource region.
type ImageCopy struct {
	SrcSubresource types.ImageSubresource
	DstSubresource types.ImageSubresource
	SrcOrigin      gputypes.Origin3D
	DstOrigin      gputypes.Origin3D
	Extent         gputypes.Extent3D
}

// RenderingAttachment describes one attachment of a rendering scope.
type RenderingAttachment struct {
	View   ImageView
	Layout types.ImageLayout
	Load   gputypes.LoadOp
	Store  gputypes.StoreOp

	// ClearColor applies when Load is LoadOpClear on a color attachment.
	ClearColor gputypes.Color

	// ClearDepth applies when Load is LoadOpClear on the depth attachment.
	ClearDepth float32
}

// RenderingInfo describes a dynamic rendering scope.
type RenderingInfo struct {
	Width  uint32
	Height uint32

	Colors []RenderingAttachment
	Depth  *RenderingAttachment
}

// IndirectDrawCommand is the GPU-side argument layout of one indexed
// indirect draw.
type IndirectDrawCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// IndirectDispatchCommand is the GPU-side argument layout of one indirect
// dispatch.
type IndirectDispatchCommand struct {
	GroupsX uint32
	GroupsY uint32
	GroupsZ uint32
}
