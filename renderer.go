// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package rendercore

import (
	"fmt"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/device"
	"github.com/gogpu/rendercore/graph"
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/internal/thread"
	"github.com/gogpu/rendercore/scene"
)

// Options configure a Renderer.
type Options struct {
	// BufferedFrames is how many frames may be in flight. Zero means the
	// device default of two.
	BufferedFrames int

	// Resolution of the primary view.
	Resolution [2]uint32

	// RenderThread funnels all GPU work through one locked OS thread.
	RenderThread bool
}

// frameSlot is the per-in-flight-frame state.
type frameSlot struct {
	fence    core.FenceHandle
	uploader *device.Uploader
	cmd      hal.CommandEncoder
}

// Renderer drives one frame at a time: wait for the reused slot's fence,
// flush retired deletions, let the caller declare passes, then compile,
// execute, and submit. The CPU builds frame N while the GPU drains frame
// N-1; the slot fence is the only blocking point of the steady state.
type Renderer struct {
	dev   *device.Context
	g     *graph.Graph
	slots []frameSlot

	primaryCamera *scene.Camera
	resolution    [2]uint32

	frameNumber uint64
	inFrame     bool

	renderThread *thread.Thread
}

// NewRenderer creates a renderer over a backend.
func NewRenderer(backend hal.Device, opts Options) (*Renderer, error) {
	dev := device.NewContext(backend, device.Options{BufferedFrames: opts.BufferedFrames})

	r := &Renderer{
		dev:        dev,
		g:          graph.New(dev),
		resolution: opts.Resolution,
	}
	if opts.RenderThread {
		r.renderThread = thread.New()
	}

	for i := 0; i < dev.BufferedFrames(); i++ {
		// Slot fences start signaled so the first frames do not wait.
		fence, err := dev.CreateFence(true)
		if err != nil {
			return nil, err
		}
		cmd, err := backend.CreateCommandList()
		if err != nil {
			return nil, err
		}
		r.slots = append(r.slots, frameSlot{
			fence:    fence,
			uploader: device.NewUploader(dev, 0),
			cmd:      cmd,
		})
	}
	return r, nil
}

// Device returns the device context.
func (r *Renderer) Device() *device.Context { return r.dev }

// Graph returns the render graph. Valid for declarations between BeginFrame
// and EndFrame.
func (r *Renderer) Graph() *graph.Graph { return r.g }

// FrameNumber returns the number of frames begun since startup.
func (r *Renderer) FrameNumber() uint64 { return r.frameNumber }

// SetPrimaryCamera sets the camera published in the frame context.
func (r *Renderer) SetPrimaryCamera(c *scene.Camera) { r.primaryCamera = c }

// BeginFrame opens the next frame: waits for the reused slot's fence,
// flushes retired deletion-queue entries, resets the graph, and hands back
// the frame context passes execute against.
func (r *Renderer) BeginFrame() (*graph.FrameContext, error) {
	if r.inFrame {
		return nil, fmt.Errorf("rendercore: BeginFrame without EndFrame")
	}

	var frame *graph.FrameContext
	err := r.onRenderThread(func() error {
		slot := &r.slots[r.frameNumber%uint64(len(r.slots))]

		fence, err := r.dev.Fence(slot.fence)
		if err != nil {
			return err
		}
		// Suspension point one: the slot being reused must have retired.
		if err := fence.Wait(0); err != nil {
			return err
		}
		fence.Reset()
		slot.uploader.Reset()

		r.frameNumber++
		r.dev.BeginFrame()
		r.g.Reset()

		if err := slot.cmd.Begin(); err != nil {
			return err
		}

		frame = &graph.FrameContext{
			Cmd:           slot.cmd,
			FrameIndex:    uint32((r.frameNumber - 1) % uint64(len(r.slots))),
			FrameNumber:   r.frameNumber,
			Resolution:    r.resolution,
			Uploader:      slot.uploader,
			DeletionQueue: r.dev.DeletionQueue(),
		}
		if r.primaryCamera != nil {
			frame.PrimaryView = r.primaryCamera.ViewInfo(r.resolution, r.resolution, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.inFrame = true
	return frame, nil
}

// EndFrame compiles and executes the declared graph, submits the command
// list with the slot's fence, and closes the frame.
func (r *Renderer) EndFrame(frame *graph.FrameContext) error {
	if !r.inFrame {
		return fmt.Errorf("rendercore: EndFrame without BeginFrame")
	}
	r.inFrame = false

	return r.onRenderThread(func() error {
		slot := &r.slots[(r.frameNumber-1)%uint64(len(r.slots))]

		if err := r.g.Compile(); err != nil {
			return err
		}
		// Frame-wide uploads recorded before any pass ran (scene updates)
		// go first, behind a copy-to-consumer barrier.
		if err := r.dev.Uploader().Submit(frame.Cmd); err != nil {
			return err
		}
		if err := frame.Uploader.Submit(frame.Cmd); err != nil {
			return err
		}
		if err := r.g.Execute(frame); err != nil {
			return err
		}

		if err := frame.Cmd.End(); err != nil {
			return err
		}
		fence, err := r.dev.Fence(slot.fence)
		if err != nil {
			return err
		}
		return r.dev.HAL().Submit(frame.Cmd, fence)
	})
}

// Shutdown waits for the device to go idle, drains all deferred
// destruction, and releases the renderer's objects.
func (r *Renderer) Shutdown() {
	_ = r.onRenderThread(func() error {
		if err := r.dev.HAL().WaitIdle(); err != nil {
			return err
		}
		for i := range r.slots {
			r.dev.DestroyFence(r.slots[i].fence)
		}
		r.dev.Shutdown()
		return nil
	})
	if r.renderThread != nil {
		r.renderThread.Stop()
	}
}

func (r *Renderer) onRenderThread(f func() error) error {
	if r.renderThread != nil {
		return r.renderThread.CallErr(f)
	}
	return f()
}

// Resolution returns the primary view resolution.
func (r *Renderer) Resolution() [2]uint32 { return r.resolution }
