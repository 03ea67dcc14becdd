// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package cull

import (
	"fmt"

	"github.com/gogpu/rendercore/graph"
)

// MeshletCullPassData is the blackboard output of the meshlet cull.
type MeshletCullPassData struct {
	Mesh         MeshResources
	Meshlet      MeshletResources
	MeshletCount uint32
	Reocclusion  bool
}

type meshletCullExec struct {
	MeshletCullPassData

	ctx *Context
}

// AddMeshletCull declares the meshlet cull: cone-backface, frustum, and
// occlusion tests over the meshlets of visible render objects, emitting a
// compacted command list and its count. The ordinary pass and the
// reocclusion pass keep separate count buffers so each can dispatch
// indirectly from its own total.
func AddMeshletCull(g *graph.Graph, name string, ctx *Context, reocclusion bool) *graph.Pass {
	passName := name
	if reocclusion {
		passName = fmt.Sprintf("%s.reocclusion", name)
	}

	return graph.AddPass(g, passName,
		func(b *graph.Builder, d *meshletCullExec) {
			res := &ctx.meshlet
			if !reocclusion {
				scn := ctx.Set().Scene()
				res.Meshlets = b.ImportBuffer(passName+".meshlets", scn.MeshletsBuffer().Buffer())
				res.Visibility = b.ImportBuffer(passName+".visibility", ctx.mv.MeshletVisibility(ctx.view))
				res.Commands = b.ImportBuffer(passName+".commands", scn.CommandsBuffer().Buffer())

				commandsSize := uint64(ctx.Set().MeshletCount()) * uint64(commandStride)
				res.CompactCommands = b.CreateBuffer(passName+".commands.compact",
					graph.BufferDescription{Size: max(commandsSize, commandStride)})
				// Separate counts for the two phases.
				res.CompactCount = b.CreateBuffer(passName+".count",
					graph.BufferDescription{Size: 4})
				res.CompactCountReocclusion = b.CreateBuffer(passName+".count.reocclusion",
					graph.BufferDescription{Size: 4})
			}

			mesh := &ctx.mesh
			mesh.HiZ = b.Read(mesh.HiZ, graph.AccessCompute|graph.AccessSampled)
			mesh.ViewUBO = b.Read(mesh.ViewUBO, graph.AccessCompute|graph.AccessUniform)
			mesh.Objects = b.Read(mesh.Objects, graph.AccessCompute|graph.AccessStorage)
			mesh.Visibility = b.Read(mesh.Visibility, graph.AccessCompute|graph.AccessStorage)

			res.Meshlets = b.Read(res.Meshlets, graph.AccessCompute|graph.AccessStorage)
			res.Visibility = b.Read(res.Visibility, graph.AccessCompute|graph.AccessStorage)
			res.Visibility = b.Write(res.Visibility, graph.AccessCompute|graph.AccessStorage)
			res.Commands = b.Read(res.Commands, graph.AccessCompute|graph.AccessStorage)
			res.CompactCommands = b.Read(res.CompactCommands, graph.AccessCompute|graph.AccessStorage|graph.AccessUpload)
			res.CompactCommands = b.Write(res.CompactCommands, graph.AccessCompute|graph.AccessStorage)

			// The count buffer is not cleared implicitly: it is uploaded to
			// zero at the start of each phase.
			count := &res.CompactCount
			if reocclusion {
				count = &res.CompactCountReocclusion
			}
			*count = b.Read(*count, graph.AccessCompute|graph.AccessStorage|graph.AccessUpload)
			*count = b.Write(*count, graph.AccessCompute|graph.AccessStorage)
			b.Upload(*count, u32le(0), 0)

			d.Mesh = *mesh
			d.Meshlet = *res
			d.MeshletCount = ctx.Set().MeshletCount()
			d.Reocclusion = reocclusion
			d.ctx = ctx

			b.Graph().Blackboard().UpdateFor(fnv64(passName), d.MeshletCullPassData)
		},
		func(d *meshletCullExec, f *graph.FrameContext, r *graph.Resources) {
			pipe, err := d.ctx.dev.Pipeline(d.ctx.pipelines.MeshletCull)
			if err != nil {
				return
			}
			layout, err := d.ctx.dev.PipelineLayout(d.ctx.pipelines.Layout)
			if err != nil {
				return
			}
			f.Cmd.BindPipeline(pipe.HAL)
			f.Cmd.PushConstants(layout, u32le(d.MeshletCount))
			f.Cmd.Dispatch((d.MeshletCount+cullGroupSize-1)/cullGroupSize, 1, 1)
		})
}

// commandStride is the byte size of one slot of the compacted command
// stream, matching hal.IndirectDrawCommand.
const commandStride = 5 * 4
