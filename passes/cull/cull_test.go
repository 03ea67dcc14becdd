// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package cull

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/device"
	"github.com/gogpu/rendercore/graph"
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/hal/noop"
	hizpass "github.com/gogpu/rendercore/passes/hiz"
	"github.com/gogpu/rendercore/scene"
)

type fixture struct {
	backend *noop.Device
	dev     *device.Context
	scn     *scene.Scene
	set     *scene.RenderObjectSet
	mv      *scene.MultiviewVisibility
	view    scene.VisibilityHandle
	hiz     *hizpass.Context
	ctx     *Context
	g       *graph.Graph
}

func testPipelines(t *testing.T, dev *device.Context) Pipelines {
	t.Helper()
	layout, err := dev.CreatePipelineLayout("cull", nil, 32)
	if err != nil {
		t.Fatal(err)
	}
	compute := func(label string) core.PipelineHandle {
		mod, err := dev.CreateShaderModule(hal.ShaderModuleDescriptor{Label: label, EntryPoint: "main"})
		if err != nil {
			t.Fatal(err)
		}
		p, err := dev.CreateComputePipeline(label, layout, mod, nil)
		if err != nil {
			t.Fatal(err)
		}
		return p
	}
	draw, err := dev.CreateGraphicsPipeline(hal.GraphicsPipelineDescriptor{
		Label:        "cull.draw",
		ColorFormats: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
		DepthFormat:  gputypes.TextureFormatDepth32Float,
		DepthTest:    true,
		DepthWrite:   true,
	}, layout)
	if err != nil {
		t.Fatal(err)
	}
	return Pipelines{
		Layout:          layout,
		MeshCull:        compute("mesh-cull"),
		MeshletCull:     compute("meshlet-cull"),
		PrepareDispatch: compute("prepare-dispatch"),
		TriangleCull:    compute("triangle-cull"),
		PrepareDraw:     compute("prepare-draw"),
		Draw:            draw,
	}
}

func newFixture(t *testing.T, objects int) *fixture {
	t.Helper()
	backend := noop.New()
	dev := device.NewContext(backend, device.Options{})

	scn, err := scene.New(dev)
	if err != nil {
		t.Fatal(err)
	}
	cmd, _ := backend.CreateCommandList()
	_ = cmd.Begin()

	info := &scene.Info{}
	for i := 0; i < objects; i++ {
		info.Meshlets = append(info.Meshlets, scene.Meshlet{IndexCount: 3 * scene.TrianglesPerMeshlet})
		info.Objects = append(info.Objects, scene.RenderObject{
			Transform:    mgl32.Ident4(),
			Sphere:       scene.BoundingSphere{Center: mgl32.Vec3{float32(i), 0, -5}, Radius: 0.5},
			FirstMeshlet: uint32(i),
			MeshletCount: 1,
		})
	}
	if _, err := scn.Add(info, cmd); err != nil {
		t.Fatal(err)
	}
	if err := scn.Update(cmd); err != nil {
		t.Fatal(err)
	}

	set, err := scene.NewRenderObjectSet("main", scn, []scene.PassDescriptor{
		{Name: "opaque", Buckets: []scene.BucketDescriptor{{Name: "all"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	mv := scene.NewMultiviewVisibility(dev, set)
	cam := scene.NewPerspectiveCamera(mgl32.Vec3{0, 0, 0}, math.Pi/2, 1, 0.1, 100)
	view, err := mv.AddView(scene.View{
		Camera:     cam,
		Resolution: [2]uint32{256, 256},
		Flags:      scene.VisibilityPrimary | scene.VisibilityOcclusionCull,
	})
	if err != nil {
		t.Fatal(err)
	}

	hizCtx, err := hizpass.NewContext(dev, hizpass.ContextDescriptor{Resolution: [2]uint32{256, 256}})
	if err != nil {
		t.Fatal(err)
	}
	cullCtx, err := NewContext(dev, mv, view, hizCtx, testPipelines(t, dev))
	if err != nil {
		t.Fatal(err)
	}

	return &fixture{
		backend: backend, dev: dev, scn: scn, set: set, mv: mv,
		view: view, hiz: hizCtx, ctx: cullCtx, g: graph.New(dev),
	}
}

func (fx *fixture) attachments(b *graph.Builder) DrawAttachments {
	return DrawAttachments{
		Colors: []graph.Resource{b.CreateImage("color", graph.ImageDescription{
			Width: 256, Height: 256, Format: gputypes.TextureFormatRGBA8Unorm,
		})},
		Depth: b.CreateImage("depth", graph.ImageDescription{
			Width: 256, Height: 256, Format: gputypes.TextureFormatDepth32Float,
		}),
		Clear:      true,
		ClearDepth: 1,
		Resolution: [2]uint32{256, 256},
	}
}

func (fx *fixture) declareChain(t *testing.T, seedVisible uint32) {
	t.Helper()
	var att DrawAttachments
	graph.AddPass(fx.g, "targets", func(b *graph.Builder, d *struct{}) {
		att = fx.attachments(b)
	}, nil)

	AddMeshCull(fx.g, "cull.mesh", fx.ctx, false)
	AddMeshletCull(fx.g, "cull.meshlet", fx.ctx, false)

	if seedVisible > 0 {
		graph.AddPass(fx.g, "seed", func(b *graph.Builder, d *struct{}) {
			c := fx.ctx.Meshlet().CompactCount
			c = b.Read(c, graph.AccessCompute|graph.AccessStorage|graph.AccessUpload)
			c = b.Write(c, graph.AccessCompute|graph.AccessStorage)
			b.Upload(c, u32le(seedVisible), 0)
			fx.ctx.Meshlet().CompactCount = c
		}, nil)
	}

	AddPrepareDispatch(fx.g, "cull.dispatch", fx.ctx, false)
	AddTriangleCullDraw(fx.g, "cull.draw", fx.ctx, att, false)
}

func (fx *fixture) run(t *testing.T) *noop.Encoder {
	t.Helper()
	if err := fx.g.Compile(); err != nil {
		t.Fatal(err)
	}
	if errs := fx.g.CompileErrors(); len(errs) != 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	cmd, _ := fx.backend.CreateCommandList()
	_ = cmd.Begin()
	frame := &graph.FrameContext{
		Cmd:           cmd,
		Uploader:      fx.dev.Uploader(),
		DeletionQueue: fx.dev.DeletionQueue(),
	}
	if err := fx.g.Execute(frame); err != nil {
		t.Fatal(err)
	}
	return cmd.(*noop.Encoder)
}

// With nothing visible the loop still clears the attachments and draws
// nothing.
func TestCullDrawZeroIterationsClears(t *testing.T) {
	fx := newFixture(t, 8)
	fx.declareChain(t, 0)
	enc := fx.run(t)

	if fx.ctx.IterationCount() != 0 {
		t.Fatalf("iterations = %d, want 0", fx.ctx.IterationCount())
	}

	var begins, draws int
	var sawClear bool
	for _, c := range enc.Commands() {
		switch cc := c.(type) {
		case noop.CmdBeginRendering:
			begins++
			if len(cc.Info.Colors) == 1 && cc.Info.Colors[0].Load == gputypes.LoadOpClear {
				sawClear = true
			}
		case noop.CmdDrawIndexedIndirect:
			draws++
		}
	}
	if begins != 1 || !sawClear {
		t.Errorf("begins = %d, sawClear = %v; want one clearing scope", begins, sawClear)
	}
	if draws != 0 {
		t.Errorf("draws = %d, want 0", draws)
	}
}

// Three batches rotate two slots: the loop overlaps via split barriers,
// clears only the first iteration, and draws once per iteration.
func TestCullDrawBatchedLoop(t *testing.T) {
	fx := newFixture(t, 8)
	const visible = 2*MaxCommandsPerBatch + 1 // three iterations
	fx.declareChain(t, visible)
	enc := fx.run(t)

	if fx.ctx.IterationCount() != 3 {
		t.Fatalf("iterations = %d, want 3", fx.ctx.IterationCount())
	}

	var begins, draws, signals, waits, resets, indirectDispatches int
	clears := 0
	for _, c := range enc.Commands() {
		switch cc := c.(type) {
		case noop.CmdBeginRendering:
			begins++
			if cc.Info.Colors[0].Load == gputypes.LoadOpClear {
				clears++
			}
		case noop.CmdDrawIndexedIndirect:
			draws++
		case noop.CmdSignalSplitBarrier:
			signals++
		case noop.CmdWaitSplitBarrier:
			waits++
		case noop.CmdResetSplitBarrier:
			resets++
		case noop.CmdDispatchIndirect:
			indirectDispatches++
		}
	}
	if begins != 3 || draws != 3 {
		t.Errorf("begins/draws = %d/%d, want 3/3", begins, draws)
	}
	if clears != 1 {
		t.Errorf("clears = %d, want 1 (first iteration only)", clears)
	}
	if signals != 3 {
		t.Errorf("signals = %d, want one per iteration", signals)
	}
	// Only iteration 3 reuses a slot (batch 0), so one wait+reset.
	if waits != 1 || resets != 1 {
		t.Errorf("waits/resets = %d/%d, want 1/1", waits, resets)
	}
	if indirectDispatches != 3 {
		t.Errorf("indirect dispatches = %d, want 3", indirectDispatches)
	}
}

// The full two-phase chain (with reocclusion and the pyramid build in the
// middle) compiles without errors and updates the blackboard.
func TestMetaChainCompiles(t *testing.T) {
	fx := newFixture(t, 16)

	var att DrawAttachments
	graph.AddPass(fx.g, "targets", func(b *graph.Builder, d *struct{}) {
		att = fx.attachments(b)
	}, nil)

	meta := AddMeta(fx.g, "main", fx.ctx, att)
	if !meta.HiZ.HiZOut.IsValid() {
		t.Fatal("meta chain lost the pyramid output")
	}

	if err := fx.g.Compile(); err != nil {
		t.Fatal(err)
	}
	if errs := fx.g.CompileErrors(); len(errs) != 0 {
		t.Fatalf("compile errors: %v", errs)
	}

	// Both phases present: two mesh culls, two meshlet culls, two
	// dispatch preparations, two draw loops, plus the pyramid chain.
	names := map[string]bool{}
	for _, p := range fx.g.Schedule() {
		names[p.Name()] = true
	}
	for _, want := range []string{
		"main.mesh-cull", "main.mesh-cull.reocclusion",
		"main.meshlet-cull", "main.meshlet-cull.reocclusion",
		"main.prepare-dispatch", "main.prepare-dispatch.reocclusion",
		"main.cull-draw", "main.cull-draw.reocclusion",
	} {
		if !names[want] {
			t.Errorf("schedule missing %q", want)
		}
	}

	cmd, _ := fx.backend.CreateCommandList()
	_ = cmd.Begin()
	frame := &graph.FrameContext{
		Cmd:           cmd,
		Uploader:      fx.dev.Uploader(),
		DeletionQueue: fx.dev.DeletionQueue(),
	}
	if err := fx.g.Execute(frame); err != nil {
		t.Fatal(err)
	}
}
