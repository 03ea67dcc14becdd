// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package noop

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/hal"
)

// Command is one recorded encoder command. The concrete types below mirror
// the CommandEncoder methods one to one.
type Command interface{ command() }

// CmdBarrier records a Barrier call.
type CmdBarrier struct{ Dep hal.DependencyInfo }

// CmdSignalSplitBarrier records a SignalSplitBarrier call.
type CmdSignalSplitBarrier struct {
	Barrier *SplitBarrier
	Dep     hal.DependencyInfo
}

// CmdWaitSplitBarrier records a WaitSplitBarrier call.
type CmdWaitSplitBarrier struct {
	Barrier *SplitBarrier
	Dep     hal.DependencyInfo
}

// CmdResetSplitBarrier records a ResetSplitBarrier call.
type CmdResetSplitBarrier struct {
	Barrier *SplitBarrier
	Dep     hal.DependencyInfo
}

// CmdBeginRendering records a BeginRendering call.
type CmdBeginRendering struct{ Info hal.RenderingInfo }

// CmdEndRendering records an EndRendering call.
type CmdEndRendering struct{}

// CmdBindPipeline records a BindPipeline call.
type CmdBindPipeline struct{ Pipeline *Pipeline }

// CmdBindDescriptors records a BindDescriptors call.
type CmdBindDescriptors struct {
	Layout   *PipelineLayout
	SetIndex uint32
	Set      *DescriptorSet
}

// CmdBindIndexBuffer records a BindIndexBuffer call.
type CmdBindIndexBuffer struct {
	Buffer *Buffer
	Offset uint64
	Format gputypes.IndexFormat
}

// CmdBindVertexBuffers records a BindVertexBuffers call.
type CmdBindVertexBuffers struct {
	First   uint32
	Buffers []*Buffer
	Offsets []uint64
}

// CmdPushConstants records a PushConstants call.
type CmdPushConstants struct {
	Layout *PipelineLayout
	Data   []byte
}

// CmdSetViewport records a SetViewport call.
type CmdSetViewport struct{ Width, Height float32 }

// CmdSetScissor records a SetScissor call.
type CmdSetScissor struct {
	X, Y          int32
	Width, Height uint32
}

// CmdDraw records a Draw call.
type CmdDraw struct{ VertexCount, InstanceCount, FirstVertex, FirstInstance uint32 }

// CmdDrawIndexed records a DrawIndexed call.
type CmdDrawIndexed struct {
	IndexCount, InstanceCount, FirstIndex uint32
	VertexOffset                          int32
	FirstInstance                         uint32
}

// CmdDrawIndirect records a DrawIndirect call.
type CmdDrawIndirect struct {
	Buffer            *Buffer
	Offset            uint64
	DrawCount, Stride uint32
}

// CmdDrawIndexedIndirect records a DrawIndexedIndirect call.
type CmdDrawIndexedIndirect struct {
	Buffer            *Buffer
	Offset            uint64
	DrawCount, Stride uint32
}

// CmdDrawIndexedIndirectCount records a DrawIndexedIndirectCount call.
type CmdDrawIndexedIndirectCount struct {
	Buffer               *Buffer
	Offset               uint64
	CountBuffer          *Buffer
	CountOffset          uint64
	MaxDrawCount, Stride uint32
}

// CmdDispatch records a Dispatch call.
type CmdDispatch struct{ GroupsX, GroupsY, GroupsZ uint32 }

// CmdDispatchIndirect records a DispatchIndirect call.
type CmdDispatchIndirect struct {
	Buffer *Buffer
	Offset uint64
}

// CmdCopyBuffer records a CopyBuffer call. It executes at Submit.
type CmdCopyBuffer struct {
	Src, Dst *Buffer
	Regions  []hal.BufferCopy
}

// CmdCopyImage records a CopyImage call.
type CmdCopyImage struct {
	Src, Dst *Image
	Regions  []hal.ImageCopy
}

// CmdBlitImage records a BlitImage call.
type CmdBlitImage struct {
	Src, Dst *Image
	Filter   gputypes.FilterMode
}

func (CmdBarrier) command()                 {}
func (CmdSignalSplitBarrier) command()      {}
func (CmdWaitSplitBarrier) command()        {}
func (CmdResetSplitBarrier) command()       {}
func (CmdBeginRendering) command()          {}
func (CmdEndRendering) command()            {}
func (CmdBindPipeline) command()            {}
func (CmdBindDescriptors) command()         {}
func (CmdBindIndexBuffer) command()         {}
func (CmdBindVertexBuffers) command()       {}
func (CmdPushConstants) command()           {}
func (CmdSetViewport) command()             {}
func (CmdSetScissor) command()              {}
func (CmdDraw) command()                    {}
func (CmdDrawIndexed) command()             {}
func (CmdDrawIndirect) command()            {}
func (CmdDrawIndexedIndirect) command()     {}
func (CmdDrawIndexedIndirectCount) command() {}
func (CmdDispatch) command()                {}
func (CmdDispatchIndirect) command()        {}
func (CmdCopyBuffer) command()              {}
func (CmdCopyImage) command()               {}
func (CmdBlitImage) command()               {}

// Encoder records commands into a slice for later inspection.
type Encoder struct {
	commands  []Command
	recording bool
	ended     bool
}

// Commands returns the recorded command stream of the last recording.
func (e *Encoder) Commands() []Command { return e.commands }

// Begin starts recording, discarding previous contents.
func (e *Encoder) Begin() error {
	e.commands = e.commands[:0]
	e.recording = true
	e.ended = false
	return nil
}

// End finishes recording.
func (e *Encoder) End() error {
	e.recording = false
	e.ended = true
	return nil
}

func (e *Encoder) record(c Command) {
	e.commands = append(e.commands, c)
}

// Barrier implements hal.CommandEncoder.
func (e *Encoder) Barrier(dep *hal.DependencyInfo) {
	e.record(CmdBarrier{Dep: *dep})
}

// SignalSplitBarrier implements hal.CommandEncoder.
func (e *Encoder) SignalSplitBarrier(sb hal.SplitBarrier, dep *hal.DependencyInfo) {
	b := sb.(*SplitBarrier)
	b.setSignaled(true)
	e.record(CmdSignalSplitBarrier{Barrier: b, Dep: *dep})
}

// WaitSplitBarrier implements hal.CommandEncoder.
func (e *Encoder) WaitSplitBarrier(sb hal.SplitBarrier, dep *hal.DependencyInfo) {
	e.record(CmdWaitSplitBarrier{Barrier: sb.(*SplitBarrier), Dep: *dep})
}

// ResetSplitBarrier implements hal.CommandEncoder.
func (e *Encoder) ResetSplitBarrier(sb hal.SplitBarrier, dep *hal.DependencyInfo) {
	b := sb.(*SplitBarrier)
	b.setSignaled(false)
	e.record(CmdResetSplitBarrier{Barrier: b, Dep: *dep})
}

// BeginRendering implements hal.CommandEncoder.
func (e *Encoder) BeginRendering(info *hal.RenderingInfo) {
	e.record(CmdBeginRendering{Info: *info})
}

// EndRendering implements hal.CommandEncoder.
func (e *Encoder) EndRendering() {
	e.record(CmdEndRendering{})
}

// BindPipeline implements hal.CommandEncoder.
func (e *Encoder) BindPipeline(p hal.Pipeline) {
	e.record(CmdBindPipeline{Pipeline: p.(*Pipeline)})
}

// BindDescriptors implements hal.CommandEncoder.
func (e *Encoder) BindDescriptors(layout hal.PipelineLayout, setIndex uint32, set hal.DescriptorSet) {
	e.record(CmdBindDescriptors{
		Layout:   layout.(*PipelineLayout),
		SetIndex: setIndex,
		Set:      set.(*DescriptorSet),
	})
}

// BindIndexBuffer implements hal.CommandEncoder.
func (e *Encoder) BindIndexBuffer(b hal.Buffer, offset uint64, format gputypes.IndexFormat) {
	e.record(CmdBindIndexBuffer{Buffer: b.(*Buffer), Offset: offset, Format: format})
}

// BindVertexBuffers implements hal.CommandEncoder.
func (e *Encoder) BindVertexBuffers(first uint32, buffers []hal.Buffer, offsets []uint64) {
	bs := make([]*Buffer, len(buffers))
	for i, b := range buffers {
		bs[i] = b.(*Buffer)
	}
	e.record(CmdBindVertexBuffers{First: first, Buffers: bs, Offsets: offsets})
}

// PushConstants implements hal.CommandEncoder.
func (e *Encoder) PushConstants(layout hal.PipelineLayout, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	e.record(CmdPushConstants{Layout: layout.(*PipelineLayout), Data: cp})
}

// SetViewport implements hal.CommandEncoder.
func (e *Encoder) SetViewport(width, height float32) {
	e.record(CmdSetViewport{Width: width, Height: height})
}

// SetScissor implements hal.CommandEncoder.
func (e *Encoder) SetScissor(x, y int32, width, height uint32) {
	e.record(CmdSetScissor{X: x, Y: y, Width: width, Height: height})
}

// Draw implements hal.CommandEncoder.
func (e *Encoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	e.record(CmdDraw{vertexCount, instanceCount, firstVertex, firstInstance})
}

// DrawIndexed implements hal.CommandEncoder.
func (e *Encoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	e.record(CmdDrawIndexed{indexCount, instanceCount, firstIndex, vertexOffset, firstInstance})
}

// DrawIndirect implements hal.CommandEncoder.
func (e *Encoder) DrawIndirect(b hal.Buffer, offset uint64, drawCount, stride uint32) {
	e.record(CmdDrawIndirect{b.(*Buffer), offset, drawCount, stride})
}

// DrawIndexedIndirect implements hal.CommandEncoder.
func (e *Encoder) DrawIndexedIndirect(b hal.Buffer, offset uint64, drawCount, stride uint32) {
	e.record(CmdDrawIndexedIndirect{b.(*Buffer), offset, drawCount, stride})
}

// DrawIndexedIndirectCount implements hal.CommandEncoder.
func (e *Encoder) DrawIndexedIndirectCount(b hal.Buffer, offset uint64, countBuffer hal.Buffer, countOffset uint64, maxDrawCount, stride uint32) {
	e.record(CmdDrawIndexedIndirectCount{
		b.(*Buffer), offset, countBuffer.(*Buffer), countOffset, maxDrawCount, stride,
	})
}

// Dispatch implements hal.CommandEncoder.
func (e *Encoder) Dispatch(groupsX, groupsY, groupsZ uint32) {
	e.record(CmdDispatch{groupsX, groupsY, groupsZ})
}

// DispatchIndirect implements hal.CommandEncoder.
func (e *Encoder) DispatchIndirect(b hal.Buffer, offset uint64) {
	e.record(CmdDispatchIndirect{b.(*Buffer), offset})
}

// CopyBuffer implements hal.CommandEncoder.
func (e *Encoder) CopyBuffer(src, dst hal.Buffer, regions []hal.BufferCopy) {
	rs := make([]hal.BufferCopy, len(regions))
	copy(rs, regions)
	e.record(CmdCopyBuffer{Src: src.(*Buffer), Dst: dst.(*Buffer), Regions: rs})
}

// CopyImage implements hal.CommandEncoder.
func (e *Encoder) CopyImage(src, dst hal.Image, regions []hal.ImageCopy) {
	e.record(CmdCopyImage{Src: src.(*Image), Dst: dst.(*Image), Regions: regions})
}

// BlitImage implements hal.CommandEncoder.
func (e *Encoder) BlitImage(src, dst hal.Image, filter gputypes.FilterMode) {
	e.record(CmdBlitImage{Src: src.(*Image), Dst: dst.(*Image), Filter: filter})
}

// execute runs the side-effecting commands. Called by Device.Submit.
func (e *Encoder) execute() {
	for _, c := range e.commands {
		if cp, ok := c.(CmdCopyBuffer); ok {
			for _, r := range cp.Regions {
				copy(cp.Dst.Data()[r.DstOffset:r.DstOffset+r.Size],
					cp.Src.Data()[r.SrcOffset:r.SrcOffset+r.Size])
			}
		}
	}
}
