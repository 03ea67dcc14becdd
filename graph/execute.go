// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

// Execute replays the compiled schedule against the frame's command
// encoder: per pass it issues the synthesized barriers and split-barrier
// waits, begins rendering for raster passes, drains the pass's enqueued
// uploads, runs the execute callback, ends rendering, and signals split
// barriers at pass exit.
func (g *Graph) Execute(frame *FrameContext) error {
	if !g.compiled {
		return fmt.Errorf("graph: Execute before Compile")
	}
	res := &Resources{g: g}

	for si, p := range g.schedule {
		for _, w := range g.splitWaits[si] {
			frame.Cmd.WaitSplitBarrier(w.barrier, &w.dep)
			frame.Cmd.ResetSplitBarrier(w.barrier, &w.dep)
		}
		if len(g.beforePass[si]) > 0 || len(g.imageBarriers[si]) > 0 {
			frame.Cmd.Barrier(&hal.DependencyInfo{
				Memory: g.beforePass[si],
				Images: g.imageBarriers[si],
			})
		}

		g.markLive(p)

		raster := p.kind == PassRaster
		if raster {
			info, err := g.renderingInfo(p)
			if err != nil {
				return err
			}
			frame.Cmd.BeginRendering(info)
		}

		if err := g.drainUploads(p, frame); err != nil {
			return err
		}

		if p.execute != nil {
			p.execute(p.data, frame, res)
		}

		if raster {
			frame.Cmd.EndRendering()
		}

		for _, s := range g.splitSignals[si] {
			frame.Cmd.SignalSplitBarrier(s.barrier, &s.dep)
		}

		g.retireAfter(si)
	}

	g.publishExports()
	return nil
}

// drainUploads stages and submits this pass's enqueued uploads. A resource
// that ended up unallocated (its pass chain was pruned) is skipped.
func (g *Graph) drainUploads(p *Pass, frame *FrameContext) error {
	if len(p.uploads) == 0 {
		return nil
	}
	res := &Resources{g: g}
	for _, up := range p.uploads {
		if !res.IsAllocated(up.resource) {
			continue
		}
		h, err := res.Buffer(up.resource)
		if err != nil {
			return err
		}
		if err := frame.Uploader.UpdateBuffer(h, up.data, up.offset); err != nil {
			return err
		}
	}
	return frame.Uploader.Submit(frame.Cmd)
}

// renderingInfo assembles the attachment list of a raster pass.
func (g *Graph) renderingInfo(p *Pass) (*hal.RenderingInfo, error) {
	info := &hal.RenderingInfo{}

	attach := func(r Resource) (hal.RenderingAttachment, error) {
		v := g.resource(r)
		var rt *renderTargetInfo
		for _, a := range v.accesses {
			if a.passIndex == p.index && a.renderTarget != nil {
				rt = a.renderTarget
				break
			}
		}
		if rt == nil {
			return hal.RenderingAttachment{}, ErrMissingRenderTarget
		}

		view, err := g.dev.PrimaryView(v.physicalImage)
		if err != nil {
			return hal.RenderingAttachment{}, err
		}
		att := hal.RenderingAttachment{
			View:  view,
			Load:  rt.load,
			Store: rt.store,
		}
		if rt.depth {
			att.Layout = types.LayoutDepthAttachment
			att.ClearDepth = rt.clearDepth
		} else {
			att.Layout = types.LayoutAttachment
			att.ClearColor = gputypes.Color{
				R: float64(rt.clearColor[0]),
				G: float64(rt.clearColor[1]),
				B: float64(rt.clearColor[2]),
				A: float64(rt.clearColor[3]),
			}
		}

		if info.Width == 0 {
			desc := v.imageDesc
			if v.imported {
				if img, err := g.dev.Image(v.physicalImage); err == nil {
					desc.Width = img.Desc.Width
					desc.Height = img.Desc.Height
				}
			}
			info.Width, info.Height = desc.Width, desc.Height
		}
		return att, nil
	}

	for _, r := range p.colorTargets {
		att, err := attach(r)
		if err != nil {
			return nil, err
		}
		info.Colors = append(info.Colors, att)
	}
	if p.depthTarget.IsValid() {
		att, err := attach(p.depthTarget)
		if err != nil {
			return nil, err
		}
		info.Depth = &att
	}
	return info, nil
}

// markLive moves the pass's resources into the Live state.
func (g *Graph) markLive(p *Pass) {
	for _, rs := range [][]Resource{p.creates, p.reads, p.writes} {
		for _, r := range rs {
			v := g.resource(r)
			if v.state == stateMaterialized {
				v.state = stateLive
			}
		}
	}
}

// retireAfter retires every resource whose last use just executed.
// Exported resources are skipped here and stay Live until publishExports
// retires them.
func (g *Graph) retireAfter(schedIndex int) {
	for ri := range g.resources {
		v := &g.resources[ri]
		if v.state == stateLive && v.lastUse == schedIndex && !v.exported {
			v.state = stateRetired
		}
	}
}

// publishExports hands the physical handles of exported resources to their
// receivers, then retires them.
func (g *Graph) publishExports() {
	for ri := range g.resources {
		v := &g.resources[ri]
		if !v.exported {
			continue
		}
		if v.exportBuffer != nil {
			*v.exportBuffer = v.physicalBuffer
		}
		if v.exportImage != nil {
			*v.exportImage = v.physicalImage
		}
		v.state = stateRetired
	}
}
