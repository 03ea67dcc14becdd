// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"github.com/gogpu/rendercore/hal"
)

// Compile turns the declared passes into an executable schedule:
// reachability pruning, topological sort with declaration-order tie-break,
// lifetime analysis, physical allocation with aliasing, and barrier
// synthesis with split-barrier placement.
//
// Per-pass failures (cycles, reads of never-written resources) skip the
// pass, record a warning, and keep the rest of the frame alive.
func (g *Graph) Compile() error {
	g.compileErrors = g.compileErrors[:0]

	g.validateReads()
	needed := g.prune()
	g.toposort(needed)
	g.computeLifetimes()
	if err := g.materialize(); err != nil {
		return err
	}
	g.synthesizeBarriers()

	g.compiled = true
	for _, err := range g.compileErrors {
		hal.Logger().Warn("render graph compile", "error", err)
	}
	return nil
}

func (g *Graph) skipPass(p *Pass, err error) {
	if p.skipped {
		return
	}
	p.skipped = true
	p.skipErr = err
	g.compileErrors = append(g.compileErrors, &PassError{Pass: p.name, Err: err})
}

// validateReads skips passes that read versions nobody writes. Skipping a
// pass invalidates its own writes, so the check iterates to a fixpoint.
func (g *Graph) validateReads() {
	for changed := true; changed; {
		changed = false
		for ri := range g.resources {
			v := &g.resources[ri]
			writers := make(map[uint16]*Pass)
			for _, a := range v.accesses {
				if a.write && !g.passes[a.passIndex].skipped {
					writers[a.version] = g.passes[a.passIndex]
				}
			}
			for _, a := range v.accesses {
				p := g.passes[a.passIndex]
				if a.write || p.skipped {
					continue
				}
				if _, ok := writers[a.version]; ok {
					continue
				}
				if v.imported && a.version == 1 {
					continue
				}
				// Uploads initialize the first version like an import does.
				if a.version == 1 && a.access.Has(AccessUpload) {
					continue
				}
				g.skipPass(p, ErrReadOfUnwritten)
				changed = true
			}
		}
	}

	// A raster pass needs at least one attachment to have a framebuffer
	// format to render into.
	for _, p := range g.passes {
		if p.kind == PassRaster && len(p.colorTargets) == 0 && !p.depthTarget.IsValid() {
			g.skipPass(p, ErrMissingRenderTarget)
		}
	}
}

// edges returns dependency edges between non-skipped passes:
// writer(v) -> readers(v), readers(v) -> writer(v+1), writer(v) -> writer(v+1).
func (g *Graph) edges() map[int][]int {
	out := make(map[int][]int)
	addEdge := func(from, to int) {
		if from == to {
			return
		}
		out[from] = append(out[from], to)
	}

	for ri := range g.resources {
		v := &g.resources[ri]
		writers := make(map[uint16]int)
		readers := make(map[uint16][]int)
		for _, a := range v.accesses {
			if g.passes[a.passIndex].skipped {
				continue
			}
			if a.write {
				writers[a.version] = a.passIndex
			} else {
				readers[a.version] = append(readers[a.version], a.passIndex)
			}
		}
		for ver, w := range writers {
			for _, r := range readers[ver] {
				addEdge(w, r)
			}
			if next, ok := writers[ver+1]; ok {
				addEdge(w, next)
				for _, r := range readers[ver] {
					addEdge(r, next)
				}
			}
		}
	}
	return out
}

// prune walks backwards from externally observable passes and returns the
// set of pass indices that must run.
func (g *Graph) prune() map[int]bool {
	needed := make(map[int]bool)
	var stack []int

	rootFor := func(p *Pass) bool {
		if p.sideEffect {
			return true
		}
		for _, w := range p.writes {
			v := g.resource(w)
			if v.imported || v.exported {
				return true
			}
		}
		return false
	}
	for _, p := range g.passes {
		if !p.skipped && rootFor(p) {
			needed[p.index] = true
			stack = append(stack, p.index)
		}
	}

	// Reverse edges: a needed pass needs the writers of everything it reads
	// and the prior writers of everything it writes.
	writerOf := func(r Resource, version uint16) (int, bool) {
		v := g.resource(r)
		for _, a := range v.accesses {
			if a.write && a.version == version && !g.passes[a.passIndex].skipped {
				return a.passIndex, true
			}
		}
		return 0, false
	}

	for len(stack) > 0 {
		pi := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		p := g.passes[pi]

		depend := func(idx int) {
			if !needed[idx] {
				needed[idx] = true
				stack = append(stack, idx)
			}
		}
		for _, r := range p.reads {
			if w, ok := writerOf(r, r.version); ok {
				depend(w)
			}
		}
		for _, w := range p.writes {
			if prev, ok := writerOf(w, w.version-1); ok {
				depend(prev)
			}
			// Readers of the previous version must run before this write
			// clobbers it, so they are needed too.
			v := g.resource(w)
			for _, a := range v.accesses {
				if !a.write && a.version == w.version-1 && !g.passes[a.passIndex].skipped {
					depend(a.passIndex)
				}
			}
		}
	}
	return needed
}

// toposort orders the needed passes with Kahn's algorithm, breaking ties by
// declaration index. Passes left with cyclic dependencies are skipped.
func (g *Graph) toposort(needed map[int]bool) {
	edges := g.edges()
	indegree := make(map[int]int)
	for pi := range needed {
		indegree[pi] = 0
	}
	for from, tos := range edges {
		if !needed[from] {
			continue
		}
		for _, to := range tos {
			if needed[to] {
				indegree[to]++
			}
		}
	}

	g.schedule = g.schedule[:0]
	scheduled := make(map[int]bool)
	for len(scheduled) < len(needed) {
		// Pick the ready pass with the smallest declaration index.
		pick := -1
		for _, p := range g.passes {
			if needed[p.index] && !scheduled[p.index] && indegree[p.index] == 0 {
				pick = p.index
				break
			}
		}
		if pick < 0 {
			// Everything left is part of a cycle.
			for _, p := range g.passes {
				if needed[p.index] && !scheduled[p.index] {
					g.skipPass(p, ErrCycle)
				}
			}
			break
		}
		scheduled[pick] = true
		g.schedule = append(g.schedule, g.passes[pick])
		for _, to := range edges[pick] {
			if needed[to] && !scheduled[to] {
				indegree[to]--
			}
		}
	}
}

// computeLifetimes records the inclusive [firstUse, lastUse] schedule span
// of every resource touched by a scheduled pass.
func (g *Graph) computeLifetimes() {
	for ri := range g.resources {
		v := &g.resources[ri]
		v.firstUse = -1
		v.lastUse = -1
	}
	for si, p := range g.schedule {
		touch := func(r Resource) {
			v := g.resource(r)
			if v.firstUse < 0 {
				v.firstUse = si
			}
			v.lastUse = si
		}
		for _, r := range p.creates {
			touch(r)
		}
		for _, r := range p.reads {
			touch(r)
		}
		for _, r := range p.writes {
			touch(r)
		}
	}
}
