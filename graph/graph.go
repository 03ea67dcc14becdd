// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/device"
	"github.com/gogpu/rendercore/hal"
)

// Graph is the per-frame render graph. Reset, declare, Compile, Execute.
//
// The graph borrows physical objects from the device context for the frame;
// created objects retire through the deletion queue on the next Reset.
type Graph struct {
	dev *device.Context

	passes    []*Pass
	resources []virtualResource // index = Resource.id - 1
	imports   map[importKey]Resource

	blackboard *Blackboard

	// Compile results.
	compiled      bool
	schedule      []*Pass
	beforePass    [][]hal.MemoryBarrier
	imageBarriers [][]hal.ImageBarrier
	splitSignals  [][]splitBarrierOp
	splitWaits    [][]splitBarrierOp
	compileErrors []error

	// Physical objects created by the last compile, retired on Reset.
	ownedBuffers []core.BufferHandle
	ownedImages  []core.ImageHandle

	// Split-barrier events are pooled and reused across frames.
	splitPool []hal.SplitBarrier
	splitUsed int
}

type importKey struct {
	raw    core.RawHandle
	buffer bool
}

type splitBarrierOp struct {
	barrier hal.SplitBarrier
	dep     hal.DependencyInfo
}

// New creates a graph over the device context.
func New(dev *device.Context) *Graph {
	g := &Graph{
		dev:        dev,
		imports:    make(map[importKey]Resource),
		blackboard: NewBlackboard(),
	}
	return g
}

// Device returns the device context the graph allocates from.
func (g *Graph) Device() *device.Context { return g.dev }

// Blackboard returns the pass blackboard.
func (g *Graph) Blackboard() *Blackboard { return g.blackboard }

// Reset clears all passes and virtual resources and retires the physical
// objects the previous compile created. Blackboard allocations are kept.
func (g *Graph) Reset() {
	for _, h := range g.ownedBuffers {
		g.dev.RetireBuffer(h)
	}
	for _, h := range g.ownedImages {
		g.dev.RetireImage(h)
	}
	g.ownedBuffers = g.ownedBuffers[:0]
	g.ownedImages = g.ownedImages[:0]

	g.passes = g.passes[:0]
	g.resources = g.resources[:0]
	clear(g.imports)
	g.blackboard.clear()

	g.compiled = false
	g.splitUsed = 0
	g.schedule = nil
	g.beforePass = nil
	g.imageBarriers = nil
	g.splitSignals = nil
	g.splitWaits = nil
	g.compileErrors = nil
}

// Passes returns all declared passes in declaration order.
func (g *Graph) Passes() []*Pass { return g.passes }

// Schedule returns the scheduled passes of the last Compile.
func (g *Graph) Schedule() []*Pass { return g.schedule }

// CompileErrors returns the non-fatal errors of the last Compile.
func (g *Graph) CompileErrors() []error { return g.compileErrors }

// AddPass declares a pass with typed pass data D. The setup function runs
// immediately and records all accesses; execute runs at Execute time with
// the same data.
func AddPass[D any](g *Graph, name string, setup func(*Builder, *D), execute func(*D, *FrameContext, *Resources)) *Pass {
	data := new(D)
	p := &Pass{
		name:     name,
		nameHash: hashName(name),
		index:    len(g.passes),
		data:     data,
	}
	if execute != nil {
		p.execute = func(d any, frame *FrameContext, res *Resources) {
			execute(d.(*D), frame, res)
		}
	}
	g.passes = append(g.passes, p)

	if setup != nil {
		setup(&Builder{g: g, pass: p}, data)
	}
	return p
}

// acquireSplitBarrier hands out a pooled split-barrier event, creating one
// on first use.
func (g *Graph) acquireSplitBarrier() (hal.SplitBarrier, error) {
	if g.splitUsed < len(g.splitPool) {
		sb := g.splitPool[g.splitUsed]
		g.splitUsed++
		return sb, nil
	}
	sb, err := g.dev.HAL().CreateSplitBarrier()
	if err != nil {
		return nil, err
	}
	g.splitPool = append(g.splitPool, sb)
	g.splitUsed++
	return sb, nil
}

// addResource appends a fresh virtual resource and returns version 1.
func (g *Graph) addResource(name string, kind ResourceKind) Resource {
	g.resources = append(g.resources, virtualResource{
		name:      name,
		kind:      kind,
		version:   1,
		lastWrite: -1,
		state:     stateVirtual,
	})
	return Resource{id: uint32(len(g.resources)), version: 1, kind: kind}
}

func (g *Graph) resource(r Resource) *virtualResource {
	return &g.resources[r.id-1]
}

// bumpVersion advances r to its next version for a write by pass.
func (g *Graph) bumpVersion(r Resource, pass *Pass) Resource {
	v := g.resource(r)
	v.version++
	v.lastWrite = pass.index
	return Resource{id: r.id, version: v.version, kind: r.kind}
}

// recordAccess appends an access record for (pass, r).
func (g *Graph) recordAccess(pass *Pass, r Resource, access Access, write bool, rt *renderTargetInfo) {
	v := g.resource(r)
	v.accesses = append(v.accesses, accessRecord{
		passIndex:    pass.index,
		version:      r.version,
		access:       access,
		write:        write,
		renderTarget: rt,
	})
}
