// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hiz

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/device"
	"github.com/gogpu/rendercore/graph"
	"github.com/gogpu/rendercore/hal/noop"
	"github.com/gogpu/rendercore/types"
)

func depthResource(g *graph.Graph) graph.Resource {
	var depth graph.Resource
	graph.AddPass(g, "depth.prepass", func(b *graph.Builder, d *struct{ Out graph.Resource }) {
		img := b.CreateImage("depth", graph.ImageDescription{
			Width: 800, Height: 600, Format: gputypes.TextureFormatDepth32Float,
		})
		d.Out = b.DepthStencilTarget(img, gputypes.LoadOpClear, gputypes.StoreOpStore, 1)
		depth = d.Out
	}, nil)
	return depth
}

func TestPyramidShape(t *testing.T) {
	backend := noop.New()
	dev := device.NewContext(backend, device.Options{})

	ctx, err := NewContext(dev, ContextDescriptor{Resolution: [2]uint32{800, 600}})
	if err != nil {
		t.Fatal(err)
	}
	// 800x600 floors to 512x512: ten mips.
	if res := ctx.HiZResolution(); res != [2]uint32{512, 512} {
		t.Errorf("hiz resolution = %v, want 512x512", res)
	}
	if ctx.MipCount() != 10 {
		t.Errorf("mips = %d, want 10", ctx.MipCount())
	}

	img, err := dev.Image(ctx.Image(ReductionMin))
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Views) != 10 {
		t.Errorf("per-mip views = %d, want 10", len(img.Views))
	}

	smp, err := dev.Sampler(ctx.Sampler(ReductionMin))
	if err != nil {
		t.Fatal(err)
	}
	if smp.Desc.Reduction != types.ReductionMin {
		t.Errorf("sampler reduction = %v, want min", smp.Desc.Reduction)
	}
	if smp.Desc.LODMax != float32(types.MaxMipCount) {
		t.Errorf("sampler max LOD = %v, want %d", smp.Desc.LODMax, types.MaxMipCount)
	}
}

func TestOneByOneInput(t *testing.T) {
	backend := noop.New()
	dev := device.NewContext(backend, device.Options{})

	ctx, err := NewContext(dev, ContextDescriptor{Resolution: [2]uint32{1, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if ctx.MipCount() != 1 {
		t.Fatalf("mips = %d, want 1", ctx.MipCount())
	}

	g := graph.New(dev)
	depth := depthResource(g)
	AddToGraph("hiz", g, depth, ctx)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if errs := g.CompileErrors(); len(errs) != 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	// Depth prepass plus exactly one reduce pass.
	if len(g.Schedule()) != 2 {
		t.Fatalf("schedule size = %d, want 2", len(g.Schedule()))
	}
}

func TestDeepPyramidChainsDispatches(t *testing.T) {
	backend := noop.New()
	dev := device.NewContext(backend, device.Options{})

	ctx, err := NewContext(dev, ContextDescriptor{Resolution: [2]uint32{1024, 1024}, BuildMax: true})
	if err != nil {
		t.Fatal(err)
	}
	// 1024 -> 11 mips -> ceil(11/6) = 2 reduce passes per pyramid.
	g := graph.New(dev)
	depth := depthResource(g)
	out := AddToGraph("hiz", g, depth, ctx)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if errs := g.CompileErrors(); len(errs) != 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	if len(g.Schedule()) != 1+2+2 {
		t.Fatalf("schedule size = %d, want 5", len(g.Schedule()))
	}
	if !out.HiZOut.IsValid() || !out.HiZMaxOut.IsValid() {
		t.Error("pass data must carry both pyramids")
	}

	// The blackboard carries the result for later cull passes.
	if bb, ok := graph.BlackboardGet[PassData](g.Blackboard()); !ok || bb.HiZOut != out.HiZOut {
		t.Error("blackboard output missing")
	}

	cmd, _ := backend.CreateCommandList()
	_ = cmd.Begin()
	frame := &graph.FrameContext{Cmd: cmd, Uploader: dev.Uploader(), DeletionQueue: dev.DeletionQueue()}
	if err := g.Execute(frame); err != nil {
		t.Fatal(err)
	}
}
