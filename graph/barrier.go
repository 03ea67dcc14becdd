// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

// splitBarrierMinGap is the minimum schedule distance between producer and
// consumer for a split barrier to pay off: with at least one unrelated pass
// in between, the wait overlaps real work.
const splitBarrierMinGap = 2

// passAccess is the merged access of one pass to one resource.
type passAccess struct {
	schedIndex int
	stages     types.PipelineStage
	access     types.Access
	layout     types.ImageLayout
	write      bool
	hasUpload  bool
}

// synthesizeBarriers walks every resource's access timeline in schedule
// order and emits the pipeline barriers, layout transitions, and split
// barriers of the frame.
func (g *Graph) synthesizeBarriers() {
	n := len(g.schedule)
	g.beforePass = make([][]hal.MemoryBarrier, n)
	g.imageBarriers = make([][]hal.ImageBarrier, n)
	g.splitSignals = make([][]splitBarrierOp, n)
	g.splitWaits = make([][]splitBarrierOp, n)

	schedIndexOf := make(map[int]int, n)
	for si, p := range g.schedule {
		schedIndexOf[p.index] = si
	}

	for ri := range g.resources {
		v := &g.resources[ri]
		if v.firstUse < 0 {
			continue
		}
		timeline := mergeAccesses(v, g.passes, schedIndexOf)
		g.emitResourceBarriers(v, timeline)
	}
}

// mergeAccesses folds a resource's per-declaration records into one merged
// access per scheduled pass, ordered by schedule position.
func mergeAccesses(v *virtualResource, passes []*Pass, schedIndexOf map[int]int) []passAccess {
	merged := make(map[int]*passAccess)
	for _, a := range v.accesses {
		p := passes[a.passIndex]
		if p.skipped {
			continue
		}
		si, ok := schedIndexOf[a.passIndex]
		if !ok {
			continue
		}
		m := merged[si]
		if m == nil {
			m = &passAccess{schedIndex: si, layout: a.access.layout(a.write)}
			merged[si] = m
		}
		m.stages |= a.access.stages()
		m.access |= a.access.mask(a.write)
		if a.write {
			m.write = true
			m.layout = a.access.layout(true)
		}
		if a.access.Has(AccessUpload) {
			m.hasUpload = true
		}
	}

	out := make([]passAccess, 0, len(merged))
	for _, m := range merged {
		out = append(out, *m)
	}
	// Insertion sort by schedule index; timelines are short.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].schedIndex < out[j-1].schedIndex; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// emitResourceBarriers runs the hazard rules over one resource's timeline.
//
// A barrier is emitted before an access iff the image layout mismatches, the
// access writes after any prior access, or it reads a prior write whose
// results are not yet visible to its stage. Back-to-back reads at the same
// (stage, access, layout) coalesce into the first barrier.
func (g *Graph) emitResourceBarriers(v *virtualResource, timeline []passAccess) {
	type state struct {
		valid         bool
		stages        types.PipelineStage
		access        types.Access
		layout        types.ImageLayout
		schedIndex    int
		producerKind  PassKind
		visibleStages types.PipelineStage
		visibleAccess types.Access
	}
	cur := state{layout: types.LayoutUndefined}
	if v.imported {
		// Imported images are assumed to be in the layout their exporter
		// left them; General covers every prior graph access.
		cur.layout = types.LayoutGeneral
	}

	for _, a := range timeline {
		needed := false
		layoutChange := v.kind == ResourceImage && a.layout != cur.layout

		switch {
		case layoutChange:
			needed = true
		case a.write:
			needed = cur.valid
		default:
			sawWrite := cur.valid && cur.access.HasWrites()
			visible := cur.visibleStages.Contains(a.stages) && cur.visibleAccess.Contains(a.access)
			needed = sawWrite && !visible
		}

		if needed {
			src := hal.MemoryBarrier{
				SrcStage:  cur.stages | cur.visibleStages,
				DstStage:  a.stages,
				SrcAccess: cur.access | cur.visibleAccess,
				DstAccess: a.access,
			}
			if !cur.valid {
				src.SrcStage = types.StageTop
				src.SrcAccess = types.AccessNone
			}

			if g.placeSplitBarrier(v, cur.valid, cur.schedIndex, cur.producerKind, a, src, layoutChange) {
				// Handled as signal/wait pair.
			} else if layoutChange {
				img, err := g.dev.Image(v.physicalImage)
				if err == nil {
					g.imageBarriers[a.schedIndex] = append(g.imageBarriers[a.schedIndex], hal.ImageBarrier{
						MemoryBarrier: src,
						Image:         img.HAL,
						OldLayout:     cur.layout,
						NewLayout:     a.layout,
						Subresource: types.ImageSubresource{
							MipCount:   max(v.imageDesc.Mips, 1),
							LayerCount: max(v.imageDesc.Layers, 1),
						},
					})
				}
			} else {
				g.beforePass[a.schedIndex] = append(g.beforePass[a.schedIndex], src)
			}
		}

		// Uploads copy into the resource right before the pass; order the
		// copy against the previous access and the pass itself.
		if a.hasUpload && cur.valid {
			g.beforePass[a.schedIndex] = append(g.beforePass[a.schedIndex], hal.MemoryBarrier{
				SrcStage:  cur.stages,
				DstStage:  types.StageCopy,
				SrcAccess: cur.access,
				DstAccess: types.AccessWriteCopy,
			})
		}

		if a.write {
			cur = state{
				valid:        true,
				stages:       a.stages,
				access:       a.access,
				layout:       a.layout,
				schedIndex:   a.schedIndex,
				producerKind: g.schedule[a.schedIndex].kind,
			}
		} else {
			cur.visibleStages |= a.stages
			cur.visibleAccess |= a.access
			cur.layout = a.layout
			cur.valid = true
		}
	}
}

// placeSplitBarrier converts a compute-to-later-stage dependency into a
// split barrier when the producer and consumer are far enough apart that
// the wait overlaps other passes. The signal lands at producer exit, the
// wait and reset immediately before the consumer.
func (g *Graph) placeSplitBarrier(v *virtualResource, producerValid bool, producerIndex int, producerKind PassKind, consumer passAccess, barrier hal.MemoryBarrier, layoutChange bool) bool {
	if !producerValid || layoutChange {
		return false
	}
	if producerKind != PassCompute {
		return false
	}
	if consumer.schedIndex-producerIndex < splitBarrierMinGap {
		return false
	}
	// Same-stage dependencies gain nothing from splitting.
	if consumer.stages&types.StageComputeShader != 0 {
		return false
	}

	sb, err := g.acquireSplitBarrier()
	if err != nil {
		return false
	}
	dep := hal.DependencyInfo{Memory: []hal.MemoryBarrier{barrier}}
	g.splitSignals[producerIndex] = append(g.splitSignals[producerIndex], splitBarrierOp{barrier: sb, dep: dep})
	g.splitWaits[consumer.schedIndex] = append(g.splitWaits[consumer.schedIndex], splitBarrierOp{barrier: sb, dep: dep})
	return true
}
