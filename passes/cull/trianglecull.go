// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package cull

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/graph"
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

// dispatchStride is the byte size of one hal.IndirectDispatchCommand.
const dispatchStride = 3 * 4

// PrepareDispatchPassData is the blackboard output of the dispatch
// preparation.
type PrepareDispatchPassData struct {
	CompactCount     graph.Resource
	DispatchIndirect graph.Resource
	MaxDispatches    uint32
}

type prepareDispatchExec struct {
	PrepareDispatchPassData

	ctx         *Context
	reocclusion bool
}

// AddPrepareDispatch declares the tiny compute pass converting the compact
// meshlet count into indirect dispatch arguments, one per triangle-cull
// batch of at most MaxCommandsPerBatch meshlets. It also reads the count
// back to the host, behind a fence, to drive the loop's iteration count.
func AddPrepareDispatch(g *graph.Graph, name string, ctx *Context, reocclusion bool) *graph.Pass {
	passName := name
	if reocclusion {
		passName = fmt.Sprintf("%s.reocclusion", name)
	}

	return graph.AddPass(g, passName,
		func(b *graph.Builder, d *prepareDispatchExec) {
			maxDispatches := (ctx.Set().MeshletCount() + MaxCommandsPerBatch - 1) / MaxCommandsPerBatch
			maxDispatches = max(maxDispatches, 1)

			if !reocclusion {
				ctx.triangle.DispatchIndirect = b.CreateBuffer(passName+".dispatch",
					graph.BufferDescription{Size: uint64(maxDispatches) * dispatchStride})
			}
			d.DispatchIndirect = b.Write(ctx.triangle.DispatchIndirect, graph.AccessCompute|graph.AccessStorage)
			ctx.triangle.DispatchIndirect = d.DispatchIndirect

			count := ctx.meshlet.CompactCount
			if reocclusion {
				count = ctx.meshlet.CompactCountReocclusion
			}
			count = b.Read(count, graph.AccessCompute|graph.AccessStorage)
			// The host reads the total back after the dispatch ran.
			d.CompactCount = b.Read(count, graph.AccessReadback|graph.AccessHost)

			d.MaxDispatches = maxDispatches
			d.ctx = ctx
			d.reocclusion = reocclusion

			b.Graph().Blackboard().UpdateFor(fnv64(passName), d.PrepareDispatchPassData)
		},
		func(d *prepareDispatchExec, f *graph.FrameContext, r *graph.Resources) {
			dev := d.ctx.dev

			if pipe, err := dev.Pipeline(d.ctx.pipelines.PrepareDispatch); err == nil {
				layout, lerr := dev.PipelineLayout(d.ctx.pipelines.Layout)
				if lerr == nil {
					f.Cmd.BindPipeline(pipe.HAL)
					push := append(u32le(MaxCommandsPerBatch), u32le(d.MaxDispatches)...)
					f.Cmd.PushConstants(layout, push)
					f.Cmd.Dispatch((d.MaxDispatches+cullGroupSize-1)/cullGroupSize, 1, 1)
				}
			}

			// Host readback: submit what was recorded so far behind a
			// fence, then reopen the command list. This is one of the two
			// sanctioned CPU-GPU suspension points.
			iterations, err := readbackCount(d.ctx, f, r, d.CompactCount)
			if err != nil {
				hal.Logger().Warn("cull readback failed", "pass", passName, "error", err)
				iterations = 0
			}
			d.ctx.SetIterationCount(iterations)
		})
}

// readbackCount submits the pending commands, waits on a fence, and maps
// the compact count buffer. Returns the number of cull-draw iterations.
func readbackCount(ctx *Context, f *graph.FrameContext, r *graph.Resources, count graph.Resource) (uint32, error) {
	dev := ctx.dev

	if err := f.Cmd.End(); err != nil {
		return 0, err
	}
	fh, err := dev.CreateFence(false)
	if err != nil {
		return 0, err
	}
	defer dev.DestroyFence(fh)

	fence, err := dev.Fence(fh)
	if err != nil {
		return 0, err
	}
	if err := dev.HAL().Submit(f.Cmd, fence); err != nil {
		return 0, err
	}
	if err := fence.Wait(0); err != nil {
		return 0, err
	}

	h, err := r.Buffer(count)
	if err != nil {
		return 0, err
	}
	data, err := dev.MapBuffer(h)
	if err != nil {
		return 0, err
	}
	visible := binary.LittleEndian.Uint32(data[:4])
	dev.UnmapBuffer(h)

	if err := f.Cmd.Begin(); err != nil {
		return 0, err
	}
	return (visible + MaxCommandsPerBatch - 1) / MaxCommandsPerBatch, nil
}

// DrawAttachments describe the cull-draw loop's render targets.
type DrawAttachments struct {
	Colors []graph.Resource
	Depth  graph.Resource

	// ClearColor applies on the first iteration when Clear is set.
	Clear      bool
	ClearColor [4]float32
	ClearDepth float32

	Resolution [2]uint32
}

// TriangleCullDrawPassData is the blackboard output of the cull-draw loop.
type TriangleCullDrawPassData struct {
	Triangle TriangleResources
	Targets  DrawAttachments
}

type triangleCullDrawExec struct {
	TriangleCullDrawPassData

	ctx         *Context
	reocclusion bool
}

// AddTriangleCullDraw declares the batched triangle cull-draw loop as one
// graph pass. Internally it iterates the host-side count read back by the
// dispatch preparation, rotating MaxBatches batch slots: cull compute,
// prepare-draw compute, then an indirect indexed draw, with split barriers
// letting batch i+1's cull overlap batch i's draw. With zero iterations it
// still clears the attachments when the load op asks for it.
func AddTriangleCullDraw(g *graph.Graph, name string, ctx *Context, attachments DrawAttachments, reocclusion bool) *graph.Pass {
	passName := name
	if reocclusion {
		passName = fmt.Sprintf("%s.reocclusion", name)
	}

	return graph.AddPass(g, passName,
		func(b *graph.Builder, d *triangleCullDrawExec) {
			res := &ctx.triangle
			scn := ctx.Set().Scene()

			if !reocclusion {
				res.ViewUBO = b.CreateBuffer(passName+".view",
					graph.BufferDescription{Size: uint64(len(ctx.viewInfoBytes()))})
				res.Positions = b.ImportBuffer(passName+".positions", scn.AttributesBuffer().Buffer())
				res.Indices = b.ImportBuffer(passName+".indices", scn.IndicesBuffer().Buffer())

				for i := 0; i < MaxBatches; i++ {
					res.Triangles[i] = b.CreateBuffer(fmt.Sprintf("%s.triangles.%d", passName, i),
						graph.BufferDescription{Size: MaxTrianglesPerBatch * 4})
					res.IndicesCulled[i] = b.CreateBuffer(fmt.Sprintf("%s.indices.%d", passName, i),
						graph.BufferDescription{Size: MaxIndicesPerBatch * 4})
					res.IndicesCulledCount[i] = b.CreateBuffer(fmt.Sprintf("%s.count.%d", passName, i),
						graph.BufferDescription{Size: 4})
					res.DrawIndirect[i] = b.CreateBuffer(fmt.Sprintf("%s.draw.%d", passName, i),
						graph.BufferDescription{Size: commandStride})
				}
			}

			res.ViewUBO = b.Read(res.ViewUBO, graph.AccessCompute|graph.AccessVertex|graph.AccessUniform|graph.AccessUpload)
			res.Positions = b.Read(res.Positions, graph.AccessCompute|graph.AccessVertex|graph.AccessStorage)
			res.Indices = b.Read(res.Indices, graph.AccessCompute|graph.AccessStorage)
			res.DispatchIndirect = b.Read(res.DispatchIndirect, graph.AccessIndirect)

			mesh := &ctx.mesh
			mesh.HiZ = b.Read(mesh.HiZ, graph.AccessCompute|graph.AccessSampled)
			mesh.Objects = b.Read(mesh.Objects, graph.AccessCompute|graph.AccessVertex|graph.AccessStorage)

			meshlet := &ctx.meshlet
			meshlet.Visibility = b.Read(meshlet.Visibility, graph.AccessCompute|graph.AccessStorage)
			meshlet.CompactCommands = b.Read(meshlet.CompactCommands, graph.AccessCompute|graph.AccessStorage)
			count := meshlet.CompactCount
			if reocclusion {
				count = meshlet.CompactCountReocclusion
			}
			b.Read(count, graph.AccessCompute|graph.AccessStorage)

			for i := 0; i < MaxBatches; i++ {
				res.Triangles[i] = b.Write(res.Triangles[i], graph.AccessCompute|graph.AccessPixel|graph.AccessStorage)
				res.IndicesCulled[i] = b.Write(res.IndicesCulled[i], graph.AccessCompute|graph.AccessIndex|graph.AccessStorage)
				res.IndicesCulledCount[i] = b.Write(res.IndicesCulledCount[i], graph.AccessCompute|graph.AccessStorage)
				res.DrawIndirect[i] = b.Write(res.DrawIndirect[i], graph.AccessCompute|graph.AccessIndirect|graph.AccessStorage)
			}

			// Attachments are declared as plain writes: the loop opens its
			// own rendering scopes per iteration, so the graph must not
			// wrap the pass in one.
			for i := range attachments.Colors {
				attachments.Colors[i] = b.Write(attachments.Colors[i], graph.AccessRenderTarget)
			}
			if attachments.Depth.IsValid() {
				attachments.Depth = b.Write(attachments.Depth, graph.AccessDepthStencil)
			}

			if !reocclusion {
				b.Upload(res.ViewUBO, ctx.viewInfoBytes(), 0)
			}

			// The rendered attachments leave the graph towards the
			// presentation path, which never reads them through it.
			b.HasSideEffect()

			d.Triangle = *res
			d.Targets = attachments
			d.ctx = ctx
			d.reocclusion = reocclusion

			b.Graph().Blackboard().UpdateFor(fnv64(passName), d.TriangleCullDrawPassData)
		},
		func(d *triangleCullDrawExec, f *graph.FrameContext, r *graph.Resources) {
			d.executeLoop(f, r)
		})
}

func (d *triangleCullDrawExec) executeLoop(f *graph.FrameContext, r *graph.Resources) {
	ctx := d.ctx
	dev := ctx.dev

	splitDep := hal.DependencyInfo{Memory: []hal.MemoryBarrier{{
		SrcStage:  types.StageComputeShader,
		DstStage:  types.StagePixelShader,
		SrcAccess: types.AccessWriteShader,
		DstAccess: types.AccessReadStorage,
	}}}
	splitBarriers := [MaxBatches]hal.SplitBarrier{}
	for i := range splitBarriers {
		sb, err := dev.SplitBarrier(ctx.splitBarriers[i])
		if err != nil {
			return
		}
		splitBarriers[i] = sb
	}

	dispatchBuf, err := r.Buffer(d.Triangle.DispatchIndirect)
	if err != nil {
		return
	}
	dispatchEntry, err := dev.Buffer(dispatchBuf)
	if err != nil {
		return
	}

	// With nothing to draw, honor the clear load op and leave.
	if ctx.IterationCount() == 0 {
		if d.Targets.Clear {
			f.Cmd.SetViewport(float32(d.Targets.Resolution[0]), float32(d.Targets.Resolution[1]))
			f.Cmd.SetScissor(0, 0, d.Targets.Resolution[0], d.Targets.Resolution[1])
			info, err := d.renderingInfo(r, true)
			if err != nil {
				return
			}
			f.Cmd.BeginRendering(info)
			f.Cmd.EndRendering()
		}
		return
	}

	layout, err := dev.PipelineLayout(ctx.pipelines.Layout)
	if err != nil {
		return
	}

	for i := uint32(0); i < ctx.IterationCount(); i++ {
		batch := i % MaxBatches

		// Batch slots are reused; wait until the previous draw on this
		// slot retired before culling into it again.
		if i >= MaxBatches {
			f.Cmd.WaitSplitBarrier(splitBarriers[batch], &splitDep)
			f.Cmd.ResetSplitBarrier(splitBarriers[batch], &splitDep)
		}

		// Cull: compact surviving triangles of this batch's commands.
		if pipe, err := dev.Pipeline(ctx.pipelines.TriangleCull); err == nil {
			f.Cmd.BindPipeline(pipe.HAL)
			push := append(u32le(i*MaxCommandsPerBatch), u32le(MaxCommandsPerBatch)...)
			f.Cmd.PushConstants(layout, push)
			f.Cmd.DispatchIndirect(dispatchEntry.HAL, uint64(i)*dispatchStride)
		}
		f.Cmd.Barrier(&hal.DependencyInfo{Memory: []hal.MemoryBarrier{{
			SrcStage:  types.StageComputeShader,
			DstStage:  types.StageComputeShader,
			SrcAccess: types.AccessWriteShader,
			DstAccess: types.AccessReadShader,
		}}})

		// Prepare draw: turn the culled index count into draw arguments.
		if pipe, err := dev.Pipeline(ctx.pipelines.PrepareDraw); err == nil {
			f.Cmd.BindPipeline(pipe.HAL)
			f.Cmd.Dispatch(1, 1, 1)
		}
		f.Cmd.Barrier(&hal.DependencyInfo{Memory: []hal.MemoryBarrier{{
			SrcStage:  types.StageComputeShader,
			DstStage:  types.StageDrawIndirect | types.StageVertexShader,
			SrcAccess: types.AccessWriteShader,
			DstAccess: types.AccessReadIndirect | types.AccessReadIndex,
		}}})

		// Draw: consume the batch's compacted triangles.
		canClear := d.Targets.Clear && i == 0
		info, err := d.renderingInfo(r, canClear)
		if err != nil {
			return
		}
		f.Cmd.SetViewport(float32(d.Targets.Resolution[0]), float32(d.Targets.Resolution[1]))
		f.Cmd.SetScissor(0, 0, d.Targets.Resolution[0], d.Targets.Resolution[1])
		f.Cmd.BeginRendering(info)
		if pipe, err := dev.Pipeline(ctx.pipelines.Draw); err == nil {
			f.Cmd.BindPipeline(pipe.HAL)
			if ib, err := r.Buffer(d.Triangle.IndicesCulled[batch]); err == nil {
				if entry, err := dev.Buffer(ib); err == nil {
					f.Cmd.BindIndexBuffer(entry.HAL, 0, gputypes.IndexFormatUint32)
				}
			}
			if db, err := r.Buffer(d.Triangle.DrawIndirect[batch]); err == nil {
				if entry, err := dev.Buffer(db); err == nil {
					f.Cmd.DrawIndexedIndirect(entry.HAL, 0, 1, commandStride)
				}
			}
		}
		f.Cmd.EndRendering()

		f.Cmd.SignalSplitBarrier(splitBarriers[batch], &splitDep)
	}
}

// renderingInfo builds the per-iteration rendering scope; iterations after
// the first load instead of clearing.
func (d *triangleCullDrawExec) renderingInfo(r *graph.Resources, canClear bool) (*hal.RenderingInfo, error) {
	dev := d.ctx.dev
	info := &hal.RenderingInfo{
		Width:  d.Targets.Resolution[0],
		Height: d.Targets.Resolution[1],
	}

	load := gputypes.LoadOpLoad
	if canClear {
		load = gputypes.LoadOpClear
	}

	for _, c := range d.Targets.Colors {
		img, err := r.Image(c)
		if err != nil {
			return nil, err
		}
		view, err := dev.PrimaryView(img)
		if err != nil {
			return nil, err
		}
		info.Colors = append(info.Colors, hal.RenderingAttachment{
			View:   view,
			Layout: types.LayoutAttachment,
			Load:   load,
			Store:  gputypes.StoreOpStore,
			ClearColor: gputypes.Color{
				R: float64(d.Targets.ClearColor[0]),
				G: float64(d.Targets.ClearColor[1]),
				B: float64(d.Targets.ClearColor[2]),
				A: float64(d.Targets.ClearColor[3]),
			},
		})
	}
	if d.Targets.Depth.IsValid() {
		img, err := r.Image(d.Targets.Depth)
		if err != nil {
			return nil, err
		}
		view, err := dev.PrimaryView(img)
		if err != nil {
			return nil, err
		}
		info.Depth = &hal.RenderingAttachment{
			View:       view,
			Layout:     types.LayoutDepthAttachment,
			Load:       load,
			Store:      gputypes.StoreOpStore,
			ClearDepth: d.Targets.ClearDepth,
		}
	}
	return info, nil
}
