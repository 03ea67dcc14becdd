// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package hiz builds the hierarchical depth pyramid consumed by the
// occlusion-culling passes. Each level of the pyramid holds the min (and
// optionally max) depth of a 2^k x 2^k footprint of the source depth
// buffer; readers sample it with a min-reduction sampler.
package hiz

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/device"
	"github.com/gogpu/rendercore/graph"
	"github.com/gogpu/rendercore/types"
)

// ReductionMode selects which pyramid a pass reads or builds.
type ReductionMode uint8

// Reduction modes.
const (
	ReductionMin ReductionMode = iota
	ReductionMax

	reductionCount
)

// maxDispatchMips is how many pyramid levels one dispatch reduces, sharing
// fetched depth through workgroup memory.
const maxDispatchMips = 6

// mipLevelShift packs (firstMip << shift | count) into the push constant.
const mipLevelShift = 5

// Context owns the pyramid images and samplers of one view. The images have
// manual lifetime: they survive graph resets so the next frame's cull
// passes can read the previous frame's pyramid.
type Context struct {
	dev *device.Context

	images   [reductionCount]core.ImageHandle
	samplers [reductionCount]core.SamplerHandle
	enabled  [reductionCount]bool

	drawResolution [2]uint32
	hizResolution  [2]uint32
	mipCount       uint32

	pipeline core.PipelineHandle
	layout   core.PipelineLayoutHandle
}

// ContextDescriptor configures a Context.
type ContextDescriptor struct {
	// Resolution is the draw resolution; the pyramid base extent is the
	// largest power of two at or below it.
	Resolution [2]uint32

	// BuildMax adds the max pyramid next to the min one.
	BuildMax bool

	// Pipeline reduces the pyramid; Layout is its pipeline layout.
	Pipeline core.PipelineHandle
	Layout   core.PipelineLayoutHandle
}

// NewContext creates the pyramid images for the given resolution.
// A 1x1 source still yields a one-mip pyramid.
func NewContext(dev *device.Context, desc ContextDescriptor) (*Context, error) {
	w := max(types.FloorPow2(desc.Resolution[0]), 1)
	h := max(types.FloorPow2(desc.Resolution[1]), 1)
	mips := types.CalcMipCount(w, h)

	ctx := &Context{
		dev:            dev,
		drawResolution: desc.Resolution,
		hizResolution:  [2]uint32{w, h},
		mipCount:       mips,
		pipeline:       desc.Pipeline,
		layout:         desc.Layout,
	}

	views := make([]types.ImageSubresource, mips)
	for i := range views {
		views[i] = types.ImageSubresource{MipBase: uint32(i), MipCount: 1, LayerCount: 1}
	}

	modes := []ReductionMode{ReductionMin}
	if desc.BuildMax {
		modes = append(modes, ReductionMax)
	}
	for _, mode := range modes {
		img, err := dev.CreateImage(types.ImageDescriptor{
			Label:           fmt.Sprintf("hiz.%s", mode),
			Width:           w,
			Height:          h,
			MipCount:        mips,
			Format:          gputypes.TextureFormatR32Float,
			Usage:           types.ImageUsageSampled | types.ImageUsageStorage,
			AdditionalViews: views,
		})
		if err != nil {
			return nil, err
		}
		ctx.images[mode] = img

		reduction := types.ReductionMin
		if mode == ReductionMax {
			reduction = types.ReductionMax
		}
		smp, err := dev.CreateSampler(types.SamplerDescriptor{
			MinFilter: gputypes.FilterModeLinear,
			MagFilter: gputypes.FilterModeLinear,
			LODMax:    float32(types.MaxMipCount),
			Reduction: reduction,
		})
		if err != nil {
			return nil, err
		}
		ctx.samplers[mode] = smp
		ctx.enabled[mode] = true
	}
	return ctx, nil
}

// String returns the mode name.
func (m ReductionMode) String() string {
	if m == ReductionMax {
		return "max"
	}
	return "min"
}

// Image returns the pyramid image of mode. The same image serves as the
// "previous frame" pyramid until the current frame's pass overwrites it.
func (c *Context) Image(mode ReductionMode) core.ImageHandle { return c.images[mode] }

// Sampler returns the reduction sampler of mode.
func (c *Context) Sampler(mode ReductionMode) core.SamplerHandle { return c.samplers[mode] }

// HiZResolution returns the pyramid base extent.
func (c *Context) HiZResolution() [2]uint32 { return c.hizResolution }

// DrawResolution returns the resolution handed to NewContext.
func (c *Context) DrawResolution() [2]uint32 { return c.drawResolution }

// MipCount returns the pyramid depth.
func (c *Context) MipCount() uint32 { return c.mipCount }

// Destroy retires the pyramid images through the deletion queue.
func (c *Context) Destroy() {
	for mode := ReductionMode(0); mode < reductionCount; mode++ {
		if c.enabled[mode] {
			c.dev.RetireImage(c.images[mode])
		}
	}
}

// PassData is the blackboard output of the pyramid build.
type PassData struct {
	// DepthIn is the source depth resource.
	DepthIn graph.Resource

	// HiZOut is the finished pyramid (min mode).
	HiZOut graph.Resource

	// HiZMaxOut is the max pyramid; zero when the context has no max mode.
	HiZMaxOut graph.Resource
}

type reducePassData struct {
	depthIn  graph.Resource
	hizOut   graph.Resource
	firstMip uint32
	mipCount uint32
	width    uint32
	height   uint32
	ctx      *Context
}

// AddToGraph declares the pyramid build over depth. One compute pass
// reduces up to six mips; deeper pyramids chain further passes reading the
// previous pass's output. The final resource lands on the blackboard as
// PassData and the pyramid image stays alive for the next frame's cull.
func AddToGraph(name string, g *graph.Graph, depth graph.Resource, ctx *Context) PassData {
	out := PassData{DepthIn: depth}
	out.HiZOut = addPyramid(fmt.Sprintf("%s.min", name), g, depth, ctx, ReductionMin)
	if ctx.enabled[ReductionMax] {
		out.HiZMaxOut = addPyramid(fmt.Sprintf("%s.max", name), g, depth, ctx, ReductionMax)
	}
	g.Blackboard().Update(out)
	return out
}

func addPyramid(name string, g *graph.Graph, depth graph.Resource, ctx *Context, mode ReductionMode) graph.Resource {
	var hiz graph.Resource

	remaining := ctx.mipCount
	firstMip := uint32(0)
	width, height := ctx.hizResolution[0], ctx.hizResolution[1]

	for remaining > 0 {
		count := min(remaining, uint32(maxDispatchMips))

		graph.AddPass(g, fmt.Sprintf("%s.%d", name, firstMip),
			func(b *graph.Builder, d *reducePassData) {
				if firstMip == 0 {
					hiz = b.ImportImage(name, ctx.images[mode])
					d.depthIn = b.Read(depth, graph.AccessCompute|graph.AccessSampled)
				} else {
					d.depthIn = b.Read(hiz, graph.AccessCompute|graph.AccessSampled)
				}
				hiz = b.Write(hiz, graph.AccessCompute|graph.AccessStorage)
				d.hizOut = hiz
				d.firstMip = firstMip
				d.mipCount = count
				d.width = width
				d.height = height
				d.ctx = ctx
			},
			func(d *reducePassData, f *graph.FrameContext, r *graph.Resources) {
				pipe, err := d.ctx.dev.Pipeline(d.ctx.pipeline)
				if err != nil {
					return
				}
				layout, err := d.ctx.dev.PipelineLayout(d.ctx.layout)
				if err != nil {
					return
				}
				f.Cmd.BindPipeline(pipe.HAL)

				push := d.firstMip<<mipLevelShift | d.mipCount
				f.Cmd.PushConstants(layout, u32bytes(push))

				samples := d.width * d.height
				shift, mask := uint32(10), uint32(1023)
				if d.mipCount > 5 {
					shift, mask = 12, 4095
				}
				f.Cmd.Dispatch((samples+mask)>>shift, 1, 1)
			})

		firstMip += count
		remaining -= count
		width = max(width>>count, 1)
		height = max(height>>count, 1)
	}
	return hiz
}

func u32bytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
