// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package cull

import (
	"fmt"

	"github.com/gogpu/rendercore/graph"
	hizpass "github.com/gogpu/rendercore/passes/hiz"
	"github.com/gogpu/rendercore/scene"
)

// MeshCullPassData is the blackboard output of the render-object cull.
type MeshCullPassData struct {
	Resources   MeshResources
	ObjectCount uint32
	Reocclusion bool
}

type meshCullExec struct {
	MeshCullPassData

	ctx       *Context
	occlusion bool
}

// AddMeshCull declares the render-object cull: a frustum test plus, for
// views with occlusion culling, a Hi-Z test of the projected bounding
// sphere against the previous frame's pyramid. The reocclusion flavor
// re-tests against the current frame's pyramid instead, flipping bits of
// objects that became visible late.
func AddMeshCull(g *graph.Graph, name string, ctx *Context, reocclusion bool) *graph.Pass {
	passName := name
	if reocclusion {
		passName = fmt.Sprintf("%s.reocclusion", name)
	}

	return graph.AddPass(g, passName,
		func(b *graph.Builder, d *meshCullExec) {
			res := &ctx.mesh
			if !reocclusion {
				// The ordinary pass tests against last frame's pyramid; the
				// image survives graph resets, so importing it here reads
				// last frame's content.
				res.HiZ = b.ImportImage("hiz.previous", ctx.hiz.Image(hizpass.ReductionMin))
				res.HiZSampler = ctx.hiz.Sampler(hizpass.ReductionMin)

				res.ViewUBO = b.CreateBuffer(passName+".view", graph.BufferDescription{Size: uint64(len(ctx.viewInfoBytes()))})
				res.Objects = b.ImportBuffer(passName+".objects", ctx.Set().Scene().ObjectsBuffer().Buffer())
				res.Visibility = b.ImportBuffer(passName+".visibility", ctx.mv.ObjectVisibility(ctx.view))
			} else {
				// The current frame's pyramid, built from this frame's
				// depth, comes off the blackboard.
				if out, ok := graph.BlackboardGet[hizpass.PassData](b.Graph().Blackboard()); ok {
					res.HiZ = out.HiZOut
				}
			}

			res.HiZ = b.Read(res.HiZ, graph.AccessCompute|graph.AccessSampled)
			res.ViewUBO = b.Read(res.ViewUBO, graph.AccessCompute|graph.AccessUniform|graph.AccessUpload)
			res.Objects = b.Read(res.Objects, graph.AccessCompute|graph.AccessStorage)
			res.Visibility = b.Read(res.Visibility, graph.AccessCompute|graph.AccessStorage)
			res.Visibility = b.Write(res.Visibility, graph.AccessCompute|graph.AccessStorage)

			if !reocclusion {
				b.Upload(res.ViewUBO, ctx.viewInfoBytes(), 0)
			}

			d.Resources = *res
			d.ObjectCount = ctx.Set().ObjectCount()
			d.Reocclusion = reocclusion
			d.ctx = ctx
			d.occlusion = ctx.View().Flags.Has(scene.VisibilityOcclusionCull)

			b.Graph().Blackboard().UpdateFor(fnv64(passName), d.MeshCullPassData)
		},
		func(d *meshCullExec, f *graph.FrameContext, r *graph.Resources) {
			pipe, err := d.ctx.dev.Pipeline(d.ctx.pipelines.MeshCull)
			if err != nil {
				return
			}
			layout, err := d.ctx.dev.PipelineLayout(d.ctx.pipelines.Layout)
			if err != nil {
				return
			}
			f.Cmd.BindPipeline(pipe.HAL)

			// Push constants: object count plus the occlusion toggle.
			flags := uint32(0)
			if d.occlusion && !d.Reocclusion {
				flags = 1
			} else if d.occlusion {
				flags = 2
			}
			f.Cmd.PushConstants(layout, append(u32le(d.ObjectCount), u32le(flags)...))
			f.Cmd.Dispatch((d.ObjectCount+cullGroupSize-1)/cullGroupSize, 1, 1)
		})
}

// fnv64 mirrors the graph's pass-name hashing so blackboard entries can be
// fetched by pass name.
func fnv64(name string) uint64 {
	const offset, prime = 14695981039346656037, 1099511628211
	h := uint64(offset)
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= prime
	}
	return h
}
