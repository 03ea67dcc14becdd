// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package cull implements the GPU visibility pipeline: render-object cull,
// meshlet cull, indirect-dispatch preparation with its host readback, and
// the batched, split-barriered triangle cull-draw loop, each in ordinary
// and reocclusion flavors.
//
// Passes borrow their Context immutably during setup and mutate it only at
// execute time; everything they exchange flows through the graph blackboard
// and declared read/write edges.
package cull

import (
	"bytes"
	"encoding/binary"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/device"
	"github.com/gogpu/rendercore/graph"
	"github.com/gogpu/rendercore/passes/hiz"
	"github.com/gogpu/rendercore/scene"
)

// Batch constants bounding the per-batch scratch allocations of the
// triangle cull-draw loop.
const (
	// MaxBatches is the number of rotating batch slots.
	MaxBatches = 2

	// MaxTrianglesPerBatch bounds one batch's triangle output.
	MaxTrianglesPerBatch = 128_000

	// MaxIndicesPerBatch is the index capacity of one batch.
	MaxIndicesPerBatch = MaxTrianglesPerBatch * 3

	// MaxCommandsPerBatch is how many meshlet commands one batch consumes.
	MaxCommandsPerBatch = MaxTrianglesPerBatch / scene.TrianglesPerMeshlet

	// cullGroupSize is the workgroup width of the cull shaders.
	cullGroupSize = 64
)

// Pipelines carries the compute and draw pipelines of one cull chain.
// The harness compiles them from baked shader assets.
type Pipelines struct {
	Layout core.PipelineLayoutHandle

	MeshCull        core.PipelineHandle
	MeshletCull     core.PipelineHandle
	PrepareDispatch core.PipelineHandle
	TriangleCull    core.PipelineHandle
	PrepareDraw     core.PipelineHandle
	Draw            core.PipelineHandle
}

// MeshResources are the graph resources of the render-object cull.
type MeshResources struct {
	HiZ        graph.Resource
	HiZSampler core.SamplerHandle
	ViewUBO    graph.Resource
	Objects    graph.Resource
	Visibility graph.Resource
}

// MeshletResources are the graph resources of the meshlet cull.
type MeshletResources struct {
	Meshlets   graph.Resource
	Visibility graph.Resource
	Commands   graph.Resource

	CompactCommands         graph.Resource
	CompactCount            graph.Resource
	CompactCountReocclusion graph.Resource
}

// TriangleResources are the graph resources of the triangle cull-draw loop.
type TriangleResources struct {
	ViewUBO          graph.Resource
	Positions        graph.Resource
	Indices          graph.Resource
	DispatchIndirect graph.Resource

	Triangles          [MaxBatches]graph.Resource
	IndicesCulled      [MaxBatches]graph.Resource
	IndicesCulledCount [MaxBatches]graph.Resource
	DrawIndirect       [MaxBatches]graph.Resource
}

// Context drives the cull chain of one view. It owns the per-view state the
// passes share: the view handle, the Hi-Z context, resources declared by
// earlier passes of the chain, and the host-side iteration counter read
// back by the dispatch-prepare pass.
type Context struct {
	dev *device.Context

	mv   *scene.MultiviewVisibility
	view scene.VisibilityHandle

	hiz *hiz.Context

	pipelines Pipelines

	mesh     MeshResources
	meshlet  MeshletResources
	triangle TriangleResources

	splitBarriers [MaxBatches]core.SplitBarrierHandle

	iterationCount uint32
}

// NewContext creates the cull context of one view.
func NewContext(dev *device.Context, mv *scene.MultiviewVisibility, view scene.VisibilityHandle, hizCtx *hiz.Context, pipelines Pipelines) (*Context, error) {
	ctx := &Context{
		dev:       dev,
		mv:        mv,
		view:      view,
		hiz:       hizCtx,
		pipelines: pipelines,
	}
	for i := range ctx.splitBarriers {
		sb, err := dev.CreateSplitBarrier()
		if err != nil {
			return nil, err
		}
		ctx.splitBarriers[i] = sb
	}
	return ctx, nil
}

// Set returns the culled object set.
func (c *Context) Set() *scene.RenderObjectSet { return c.mv.Set() }

// View returns the culled view.
func (c *Context) View() *scene.View { return c.mv.View(c.view) }

// HiZ returns the view's depth-pyramid context.
func (c *Context) HiZ() *hiz.Context { return c.hiz }

// Mesh returns the render-object cull resources.
func (c *Context) Mesh() *MeshResources { return &c.mesh }

// Meshlet returns the meshlet cull resources.
func (c *Context) Meshlet() *MeshletResources { return &c.meshlet }

// Triangle returns the triangle cull-draw resources.
func (c *Context) Triangle() *TriangleResources { return &c.triangle }

// IterationCount returns the host-side loop count the dispatch-prepare pass
// read back.
func (c *Context) IterationCount() uint32 { return c.iterationCount }

// SetIterationCount overrides the loop count (used by the readback).
func (c *Context) SetIterationCount(n uint32) { c.iterationCount = n }

// viewInfoBytes encodes the view description for upload.
func (c *Context) viewInfoBytes() []byte {
	info := c.View().Info(c.hiz.HiZResolution())
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, info)
	return buf.Bytes()
}

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
