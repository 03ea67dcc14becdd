// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package rendercore

import (
	"testing"

	"github.com/gogpu/rendercore/graph"
	"github.com/gogpu/rendercore/hal/noop"
)

func runFrame(t *testing.T, r *Renderer, declare func(*graph.Graph)) {
	t.Helper()
	frame, err := r.BeginFrame()
	if err != nil {
		t.Fatal(err)
	}
	if declare != nil {
		declare(r.Graph())
	}
	if err := r.EndFrame(frame); err != nil {
		t.Fatal(err)
	}
}

func TestFrameLoop(t *testing.T) {
	backend := noop.New()
	r, err := NewRenderer(backend, Options{Resolution: [2]uint32{640, 480}})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Shutdown()

	for i := 0; i < 5; i++ {
		runFrame(t, r, func(g *graph.Graph) {
			graph.AddPass(g, "work", func(b *graph.Builder, d *struct{ Out graph.Resource }) {
				buf := b.CreateBuffer("scratch", graph.BufferDescription{Size: 128})
				d.Out = b.Write(buf, graph.AccessCompute|graph.AccessStorage)
				b.HasSideEffect()
			}, func(d *struct{ Out graph.Resource }, f *graph.FrameContext, res *graph.Resources) {
				f.Cmd.Dispatch(1, 1, 1)
			})
		})
	}
	if r.FrameNumber() != 5 {
		t.Errorf("frame number = %d, want 5", r.FrameNumber())
	}
	if backend.Submissions != 5 {
		t.Errorf("submissions = %d, want 5", backend.Submissions)
	}
}

// Invariant: a deletion enqueued at frame F runs after fence(F) signaled
// and before fence(F+BufferedFrames) is requested again.
func TestDeletionDeferredByBufferedFrames(t *testing.T) {
	backend := noop.New()
	r, err := NewRenderer(backend, Options{Resolution: [2]uint32{64, 64}})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Shutdown()

	deleted := -1

	frame, err := r.BeginFrame() // frame 1
	if err != nil {
		t.Fatal(err)
	}
	frameAt := func() int { return int(r.FrameNumber()) }
	r.Device().DeletionQueue().Enqueue(func() { deleted = frameAt() })
	if err := r.EndFrame(frame); err != nil {
		t.Fatal(err)
	}
	if deleted != -1 {
		t.Fatal("deletion ran in its own frame")
	}

	runFrame(t, r, nil) // frame 2
	if deleted != -1 {
		t.Fatal("deletion ran before its fence cycle completed")
	}

	runFrame(t, r, nil) // frame 3: 1 + buffered(2) reached
	if deleted != 3 {
		t.Fatalf("deletion ran at frame %d, want 3", deleted)
	}
}

func TestRenderThreadLoop(t *testing.T) {
	backend := noop.New()
	r, err := NewRenderer(backend, Options{Resolution: [2]uint32{64, 64}, RenderThread: true})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Shutdown()

	for i := 0; i < 3; i++ {
		runFrame(t, r, nil)
	}
	if backend.Submissions != 3 {
		t.Errorf("submissions = %d, want 3", backend.Submissions)
	}
}

func TestBeginFrameTwiceFails(t *testing.T) {
	backend := noop.New()
	r, err := NewRenderer(backend, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Shutdown()

	frame, err := r.BeginFrame()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.BeginFrame(); err == nil {
		t.Error("nested BeginFrame must fail")
	}
	if err := r.EndFrame(frame); err != nil {
		t.Fatal(err)
	}
}
