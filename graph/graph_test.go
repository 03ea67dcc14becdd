// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/device"
	"github.com/gogpu/rendercore/hal/noop"
	"github.com/gogpu/rendercore/types"
)

func newTestGraph(t *testing.T) (*Graph, *device.Context, *noop.Device) {
	t.Helper()
	backend := noop.New()
	dev := device.NewContext(backend, device.Options{})
	return New(dev), dev, backend
}

func newFrame(t *testing.T, dev *device.Context, backend *noop.Device) *FrameContext {
	t.Helper()
	cmd, err := backend.CreateCommandList()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Begin(); err != nil {
		t.Fatal(err)
	}
	return &FrameContext{
		Cmd:           cmd,
		Uploader:      dev.Uploader(),
		DeletionQueue: dev.DeletionQueue(),
	}
}

type producerData struct {
	Out Resource
}

type consumerData struct {
	In Resource
}

// Scenario: one compute pass writes a storage image, a second pass samples
// it from the pixel stage. Exactly one barrier separates them, with the
// General -> ReadOnly transition.
func TestComputeToPixelBarrier(t *testing.T) {
	g, dev, backend := newTestGraph(t)

	prod := AddPass(g, "noise", func(b *Builder, d *producerData) {
		img := b.CreateImage("noise.out", ImageDescription{
			Width: 512, Height: 512, Format: gputypes.TextureFormatR32Float,
		})
		d.Out = b.Write(img, AccessCompute|AccessStorage)
		b.Graph().Blackboard().Update(*d)
	}, func(d *producerData, f *FrameContext, r *Resources) {
		f.Cmd.Dispatch(512/8, 512/8, 1)
	})

	cons := AddPass(g, "shade", func(b *Builder, d *consumerData) {
		out, _ := BlackboardGet[producerData](b.Graph().Blackboard())
		d.In = b.Read(out.Out, AccessPixel|AccessSampled)
		b.HasSideEffect()
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if len(g.CompileErrors()) != 0 {
		t.Fatalf("compile errors: %v", g.CompileErrors())
	}

	sched := g.Schedule()
	if len(sched) != 2 || sched[0] != prod || sched[1] != cons {
		t.Fatalf("schedule = %v", schedNames(g))
	}

	// Exactly one barrier between the two passes.
	ibs := g.imageBarriers[1]
	if len(ibs) != 1 || len(g.beforePass[1]) != 0 {
		t.Fatalf("barriers before consumer: %d image, %d memory; want 1, 0",
			len(ibs), len(g.beforePass[1]))
	}
	ib := ibs[0]
	if !ib.SrcStage.Contains(types.StageComputeShader) {
		t.Errorf("src stage = %v, want compute", ib.SrcStage)
	}
	if !ib.DstStage.Contains(types.StagePixelShader) {
		t.Errorf("dst stage = %v, want pixel", ib.DstStage)
	}
	if ib.OldLayout != types.LayoutGeneral || ib.NewLayout != types.LayoutReadOnly {
		t.Errorf("layouts = %v -> %v, want General -> ReadOnly", ib.OldLayout, ib.NewLayout)
	}

	frame := newFrame(t, dev, backend)
	if err := g.Execute(frame); err != nil {
		t.Fatal(err)
	}
}

func schedNames(g *Graph) []string {
	names := make([]string, len(g.Schedule()))
	for i, p := range g.Schedule() {
		names[i] = p.Name()
	}
	return names
}

// Scenario: A used by passes 0-1, B (same description) by passes 2-3.
// Their lifetimes are disjoint, so they share one physical image.
func TestAliasingDisjointLifetimes(t *testing.T) {
	g, _, _ := newTestGraph(t)

	desc := ImageDescription{Width: 256, Height: 256, Format: gputypes.TextureFormatR32Float}

	var pa, pb producerData
	AddPass(g, "writeA", func(b *Builder, d *producerData) {
		d.Out = b.Write(b.CreateImage("A", desc), AccessCompute|AccessStorage)
		pa = *d
	}, nil)
	AddPass(g, "readA", func(b *Builder, d *consumerData) {
		d.In = b.Read(pa.Out, AccessCompute|AccessSampled)
		b.HasSideEffect()
	}, nil)
	AddPass(g, "writeB", func(b *Builder, d *producerData) {
		d.Out = b.Write(b.CreateImage("B", desc), AccessCompute|AccessStorage)
		pb = *d
	}, nil)
	AddPass(g, "readB", func(b *Builder, d *consumerData) {
		d.In = b.Read(pb.Out, AccessCompute|AccessSampled)
		b.HasSideEffect()
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}

	a := g.resource(pa.Out)
	bRes := g.resource(pb.Out)
	if a.physicalImage != bRes.physicalImage {
		t.Error("A and B should alias one physical image")
	}

	// Invariant: aliased resources have disjoint lifetimes.
	if a.lastUse >= bRes.firstUse {
		t.Errorf("lifetimes overlap: A [%d,%d], B [%d,%d]",
			a.firstUse, a.lastUse, bRes.firstUse, bRes.lastUse)
	}
}

// Overlapping lifetimes must not alias.
func TestNoAliasingWhenOverlapping(t *testing.T) {
	g, _, _ := newTestGraph(t)

	desc := ImageDescription{Width: 128, Height: 128, Format: gputypes.TextureFormatR32Float}

	var pa, pb producerData
	AddPass(g, "writeBoth", func(b *Builder, d *producerData) {
		pa.Out = b.Write(b.CreateImage("A", desc), AccessCompute|AccessStorage)
		pb.Out = b.Write(b.CreateImage("B", desc), AccessCompute|AccessStorage)
	}, nil)
	AddPass(g, "readBoth", func(b *Builder, d *consumerData) {
		b.Read(pa.Out, AccessCompute|AccessSampled)
		b.Read(pb.Out, AccessCompute|AccessSampled)
		b.HasSideEffect()
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if g.resource(pa.Out).physicalImage == g.resource(pb.Out).physicalImage {
		t.Error("overlapping resources must not share storage")
	}
}

// Reads of a never-written resource skip the pass but keep the frame alive.
func TestReadOfUnwrittenSkipsPass(t *testing.T) {
	g, dev, backend := newTestGraph(t)

	var orphan Resource
	bad := AddPass(g, "bad", func(b *Builder, d *consumerData) {
		orphan = b.CreateBuffer("orphan", BufferDescription{Size: 64})
		d.In = b.Read(orphan, AccessCompute|AccessStorage)
		b.HasSideEffect()
	}, nil)

	good := AddPass(g, "good", func(b *Builder, d *producerData) {
		buf := b.CreateBuffer("ok", BufferDescription{Size: 64})
		d.Out = b.Write(buf, AccessCompute|AccessStorage)
		b.HasSideEffect()
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}

	if skipped, err := bad.Skipped(); !skipped || !errors.Is(err, ErrReadOfUnwritten) {
		t.Errorf("bad pass: skipped=%v err=%v", skipped, err)
	}
	if skipped, _ := good.Skipped(); skipped {
		t.Error("good pass must survive")
	}
	if len(g.Schedule()) != 1 || g.Schedule()[0] != good {
		t.Errorf("schedule = %v, want [good]", schedNames(g))
	}

	frame := newFrame(t, dev, backend)
	if err := g.Execute(frame); err != nil {
		t.Fatal(err)
	}
}

// Passes whose outputs nobody observes are pruned.
func TestPruneUnobservedPasses(t *testing.T) {
	g, _, _ := newTestGraph(t)

	AddPass(g, "dead", func(b *Builder, d *producerData) {
		d.Out = b.Write(b.CreateBuffer("dead.out", BufferDescription{Size: 16}), AccessCompute|AccessStorage)
	}, nil)
	live := AddPass(g, "live", func(b *Builder, d *producerData) {
		d.Out = b.Write(b.CreateBuffer("live.out", BufferDescription{Size: 16}), AccessCompute|AccessStorage)
		b.HasSideEffect()
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if len(g.Schedule()) != 1 || g.Schedule()[0] != live {
		t.Errorf("schedule = %v, want [live]", schedNames(g))
	}
}

// A forced cyclic dependency skips the cycle's passes and reports ErrCycle.
func TestCycleDetection(t *testing.T) {
	g, _, _ := newTestGraph(t)

	a := AddPass(g, "a", func(b *Builder, d *producerData) {
		d.Out = b.Write(b.CreateBuffer("r", BufferDescription{Size: 16}), AccessCompute|AccessStorage)
		b.HasSideEffect()
	}, nil)
	bp := AddPass(g, "b", func(b *Builder, d *producerData) {
		b.HasSideEffect()
	}, nil)

	// The declaration API cannot express a cycle (writes return fresh
	// versions), so wire one up directly: b reads a's output version while a
	// reads a version b writes.
	r := Resource{id: 1, version: 2, kind: ResourceBuffer}
	g.recordAccess(bp, r, AccessCompute|AccessStorage, false, nil)
	bp.reads = append(bp.reads, r)
	r3 := g.bumpVersion(r, bp)
	g.recordAccess(bp, r3, AccessCompute|AccessStorage, true, nil)
	bp.writes = append(bp.writes, r3)
	// a also reads version 3, closing the loop b -> a -> b.
	g.recordAccess(a, r3, AccessCompute|AccessStorage, false, nil)
	a.reads = append(a.reads, r3)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}

	foundCycle := false
	for _, err := range g.CompileErrors() {
		if errors.Is(err, ErrCycle) {
			foundCycle = true
		}
	}
	if !foundCycle {
		t.Errorf("expected a cycle error, got %v", g.CompileErrors())
	}
}

// Compiling the same declarations twice yields isomorphic schedules.
func TestRecompileIsomorphic(t *testing.T) {
	build := func(g *Graph) {
		var p producerData
		AddPass(g, "gen", func(b *Builder, d *producerData) {
			d.Out = b.Write(b.CreateImage("img", ImageDescription{
				Width: 64, Height: 64, Format: gputypes.TextureFormatR32Float,
			}), AccessCompute|AccessStorage)
			p = *d
		}, nil)
		AddPass(g, "use", func(b *Builder, d *consumerData) {
			d.In = b.Read(p.Out, AccessPixel|AccessSampled)
			b.HasSideEffect()
		}, nil)
	}

	g1, _, _ := newTestGraph(t)
	build(g1)
	if err := g1.Compile(); err != nil {
		t.Fatal(err)
	}

	g2, _, _ := newTestGraph(t)
	build(g2)
	if err := g2.Compile(); err != nil {
		t.Fatal(err)
	}

	n1, n2 := schedNames(g1), schedNames(g2)
	if len(n1) != len(n2) {
		t.Fatalf("schedule lengths differ: %v vs %v", n1, n2)
	}
	for i := range n1 {
		if n1[i] != n2[i] {
			t.Errorf("schedule[%d]: %q vs %q", i, n1[i], n2[i])
		}
	}
	for si := range g1.schedule {
		if len(g1.beforePass[si]) != len(g2.beforePass[si]) ||
			len(g1.imageBarriers[si]) != len(g2.imageBarriers[si]) {
			t.Errorf("barrier placement differs at pass %d", si)
		}
	}
}

// Quantified invariant: every write -> read pair in schedule order has a
// barrier whose scopes cover both sides.
func TestBarrierCoversWriteReadPairs(t *testing.T) {
	g, _, _ := newTestGraph(t)

	var p1, p2 producerData
	AddPass(g, "s1", func(b *Builder, d *producerData) {
		d.Out = b.Write(b.CreateBuffer("b1", BufferDescription{Size: 256}), AccessCompute|AccessStorage)
		p1 = *d
	}, nil)
	AddPass(g, "s2", func(b *Builder, d *producerData) {
		b.Read(p1.Out, AccessCompute|AccessStorage)
		d.Out = b.Write(b.CreateBuffer("b2", BufferDescription{Size: 256}), AccessCompute|AccessStorage)
		p2 = *d
	}, nil)
	AddPass(g, "s3", func(b *Builder, d *consumerData) {
		d.In = b.Read(p2.Out, AccessVertex|AccessStorage)
		b.HasSideEffect()
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if len(g.Schedule()) != 3 {
		t.Fatalf("schedule = %v", schedNames(g))
	}

	// s1 writes b1, s2 reads it: a barrier at position 1 with compute on
	// both sides.
	found := false
	for _, mb := range g.beforePass[1] {
		if mb.SrcStage.Contains(types.StageComputeShader) && mb.DstStage.Contains(types.StageComputeShader) {
			found = true
		}
	}
	if !found {
		t.Error("missing barrier between s1 and s2")
	}

	// s2 writes b2, s3 reads from the vertex stage.
	found = false
	for _, mb := range g.beforePass[2] {
		if mb.SrcStage.Contains(types.StageComputeShader) && mb.DstStage.Contains(types.StageVertexShader) {
			found = true
		}
	}
	if !found {
		t.Error("missing barrier between s2 and s3")
	}
}

// Adjacent reads at the same stage and access coalesce: only the first
// reader pays a barrier.
func TestReadCoalescing(t *testing.T) {
	g, _, _ := newTestGraph(t)

	var p producerData
	AddPass(g, "w", func(b *Builder, d *producerData) {
		d.Out = b.Write(b.CreateBuffer("b", BufferDescription{Size: 64}), AccessCompute|AccessStorage)
		p = *d
	}, nil)
	AddPass(g, "r1", func(b *Builder, d *consumerData) {
		d.In = b.Read(p.Out, AccessCompute|AccessStorage)
		b.HasSideEffect()
	}, nil)
	AddPass(g, "r2", func(b *Builder, d *consumerData) {
		d.In = b.Read(p.Out, AccessCompute|AccessStorage)
		b.HasSideEffect()
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if len(g.beforePass[1]) != 1 {
		t.Errorf("r1 barriers = %d, want 1", len(g.beforePass[1]))
	}
	if len(g.beforePass[2]) != 0 {
		t.Errorf("r2 barriers = %d, want 0 (coalesced)", len(g.beforePass[2]))
	}
}

// A compute producer feeding a pixel-stage consumer two passes later gets a
// split barrier: signal at producer exit, wait before the consumer.
func TestSplitBarrierPlacement(t *testing.T) {
	g, dev, backend := newTestGraph(t)

	var p producerData
	AddPass(g, "cull", func(b *Builder, d *producerData) {
		d.Out = b.Write(b.CreateBuffer("triangles", BufferDescription{Size: 1 << 16}), AccessCompute|AccessStorage)
		p = *d
	}, nil)
	AddPass(g, "unrelated", func(b *Builder, d *producerData) {
		d.Out = b.Write(b.CreateBuffer("other", BufferDescription{Size: 64}), AccessCompute|AccessStorage)
		b.HasSideEffect()
	}, nil)
	AddPass(g, "draw", func(b *Builder, d *consumerData) {
		d.In = b.Read(p.Out, AccessPixel|AccessStorage)
		target := b.CreateImage("color", ImageDescription{
			Width: 64, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm,
		})
		b.RenderTarget(target, gputypes.LoadOpClear, gputypes.StoreOpStore, [4]float32{})
		b.HasSideEffect()
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if len(g.Schedule()) != 3 {
		t.Fatalf("schedule = %v", schedNames(g))
	}

	if len(g.splitSignals[0]) != 1 {
		t.Fatalf("producer signals = %d, want 1", len(g.splitSignals[0]))
	}
	if len(g.splitWaits[2]) != 1 {
		t.Fatalf("consumer waits = %d, want 1", len(g.splitWaits[2]))
	}
	dep := g.splitWaits[2][0].dep
	if len(dep.Memory) != 1 ||
		!dep.Memory[0].SrcStage.Contains(types.StageComputeShader) ||
		!dep.Memory[0].DstStage.Contains(types.StagePixelShader) {
		t.Errorf("split dep = %+v", dep.Memory)
	}

	// The triangles buffer must not also get a regular barrier at the
	// consumer.
	if len(g.beforePass[2]) != 0 {
		t.Errorf("regular barriers at consumer = %d, want 0", len(g.beforePass[2]))
	}

	// Execution orders the ops signal -> wait -> reset in the stream.
	frame := newFrame(t, dev, backend)
	if err := g.Execute(frame); err != nil {
		t.Fatal(err)
	}
	var sawSignal, sawWait, sawReset bool
	for _, c := range frame.Cmd.(*noop.Encoder).Commands() {
		switch c.(type) {
		case noop.CmdSignalSplitBarrier:
			sawSignal = true
		case noop.CmdWaitSplitBarrier:
			if !sawSignal {
				t.Error("wait recorded before signal")
			}
			sawWait = true
		case noop.CmdResetSplitBarrier:
			if !sawWait {
				t.Error("reset recorded before wait")
			}
			sawReset = true
		}
	}
	if !sawSignal || !sawWait || !sawReset {
		t.Errorf("split protocol incomplete: signal=%v wait=%v reset=%v", sawSignal, sawWait, sawReset)
	}
}

// Graph uploads land in the destination before the pass runs.
func TestGraphUpload(t *testing.T) {
	g, dev, backend := newTestGraph(t)

	var p producerData
	AddPass(g, "consume", func(b *Builder, d *producerData) {
		buf := b.CreateBuffer("ubo", BufferDescription{Size: 16})
		b.Read(buf, AccessCompute|AccessUniform|AccessUpload)
		d.Out = b.Write(buf, AccessCompute|AccessStorage)
		b.Upload(buf, []byte{1, 2, 3, 4}, 0)
		b.HasSideEffect()
		p = *d
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	frame := newFrame(t, dev, backend)
	if err := g.Execute(frame); err != nil {
		t.Fatal(err)
	}
	if err := frame.Cmd.End(); err != nil {
		t.Fatal(err)
	}
	if err := backend.Submit(frame.Cmd, nil); err != nil {
		t.Fatal(err)
	}

	res := &Resources{g: g}
	h, err := res.Buffer(p.Out)
	if err != nil {
		t.Fatal(err)
	}
	entry, err := dev.Buffer(h)
	if err != nil {
		t.Fatal(err)
	}
	data := entry.HAL.(*noop.Buffer).Data()
	for i, want := range []byte{1, 2, 3, 4} {
		if data[i] != want {
			t.Fatalf("data[%d] = %d, want %d", i, data[i], want)
		}
	}
}

// Raster passes open and close a rendering scope even when the execute
// callback records nothing.
func TestRasterPassRenderingScope(t *testing.T) {
	g, dev, backend := newTestGraph(t)

	AddPass(g, "clear", func(b *Builder, d *producerData) {
		img := b.CreateImage("target", ImageDescription{
			Width: 32, Height: 32, Format: gputypes.TextureFormatRGBA8Unorm,
		})
		d.Out = b.RenderTarget(img, gputypes.LoadOpClear, gputypes.StoreOpStore, [4]float32{0, 0, 0, 1})
		b.HasSideEffect()
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	frame := newFrame(t, dev, backend)
	if err := g.Execute(frame); err != nil {
		t.Fatal(err)
	}

	var begins, ends int
	for _, c := range frame.Cmd.(*noop.Encoder).Commands() {
		switch cc := c.(type) {
		case noop.CmdBeginRendering:
			begins++
			if cc.Info.Width != 32 || len(cc.Info.Colors) != 1 {
				t.Errorf("rendering info = %+v", cc.Info)
			}
			if cc.Info.Colors[0].Load != gputypes.LoadOpClear {
				t.Error("load op lost")
			}
		case noop.CmdEndRendering:
			ends++
		}
	}
	if begins != 1 || ends != 1 {
		t.Errorf("begin/end = %d/%d, want 1/1", begins, ends)
	}
}

// Exported images survive Reset and can be imported the next frame.
func TestExportImportRoundTrip(t *testing.T) {
	g, dev, backend := newTestGraph(t)

	var exported core.ImageHandle
	AddPass(g, "hiz", func(b *Builder, d *producerData) {
		img := b.CreateImage("hiz", ImageDescription{
			Width: 256, Height: 256, Format: gputypes.TextureFormatR32Float,
		})
		d.Out = b.Write(img, AccessCompute|AccessStorage)
		b.ExportImage(d.Out, &exported)
	}, nil)

	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	frame := newFrame(t, dev, backend)
	if err := g.Execute(frame); err != nil {
		t.Fatal(err)
	}
	if exported.IsZero() {
		t.Fatal("export did not publish a handle")
	}

	// Next frame: the exported image imports back and outlives Reset.
	g.Reset()
	dev.BeginFrame()
	for range dev.BufferedFrames() + 1 {
		dev.BeginFrame()
	}
	if _, err := dev.Image(exported); err != nil {
		t.Fatalf("exported image died with the graph: %v", err)
	}

	AddPass(g, "cull", func(b *Builder, d *consumerData) {
		prev := b.ImportImage("hiz.previous", exported)
		d.In = b.Read(prev, AccessCompute|AccessSampled)
		b.HasSideEffect()
	}, nil)
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if len(g.Schedule()) != 1 {
		t.Errorf("schedule = %v", schedNames(g))
	}
}

// Resource state machine: Virtual -> Materialized -> Live -> Retired.
func TestResourceStateMachine(t *testing.T) {
	g, dev, backend := newTestGraph(t)

	var p producerData
	AddPass(g, "w", func(b *Builder, d *producerData) {
		d.Out = b.Write(b.CreateBuffer("b", BufferDescription{Size: 32}), AccessCompute|AccessStorage)
		b.HasSideEffect()
		p = *d
	}, nil)

	v := g.resource(p.Out)
	if v.state != stateVirtual {
		t.Errorf("state after declare = %v, want Virtual", v.state)
	}
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	if v.state != stateMaterialized {
		t.Errorf("state after compile = %v, want Materialized", v.state)
	}
	frame := newFrame(t, dev, backend)
	if err := g.Execute(frame); err != nil {
		t.Fatal(err)
	}
	if v.state != stateRetired {
		t.Errorf("state after execute = %v, want Retired", v.state)
	}
}
