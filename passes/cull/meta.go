// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package cull

import (
	"fmt"

	"github.com/gogpu/rendercore/graph"
	hizpass "github.com/gogpu/rendercore/passes/hiz"
)

// MetaPassData is the blackboard output of the whole cull chain.
type MetaPassData struct {
	Draw            TriangleCullDrawPassData
	ReocclusionDraw TriangleCullDrawPassData
	HiZ             hizpass.PassData
}

// AddMeta declares the complete two-phase visibility chain of one view:
//
//	mesh cull -> meshlet cull -> prepare dispatch -> triangle cull-draw
//	-> depth pyramid -> reocclusion of all four stages
//
// The first phase culls against the previous frame's pyramid; the
// reocclusion phase re-tests against the pyramid just built from this
// frame's depth, updating the persistent visibility bits for objects that
// became visible late in the frame.
func AddMeta(g *graph.Graph, name string, ctx *Context, attachments DrawAttachments) MetaPassData {
	var out MetaPassData

	AddMeshCull(g, fmt.Sprintf("%s.mesh-cull", name), ctx, false)
	AddMeshletCull(g, fmt.Sprintf("%s.meshlet-cull", name), ctx, false)
	AddPrepareDispatch(g, fmt.Sprintf("%s.prepare-dispatch", name), ctx, false)
	AddTriangleCullDraw(g, fmt.Sprintf("%s.cull-draw", name), ctx, attachments, false)
	out.Draw, _ = graph.BlackboardGet[TriangleCullDrawPassData](g.Blackboard())

	// The pyramid of this frame's depth feeds the reocclusion tests and,
	// being persistent, next frame's first phase. The depth version written
	// by the draw loop comes from its pass data.
	out.HiZ = hizpass.AddToGraph(fmt.Sprintf("%s.hiz", name), g, out.Draw.Targets.Depth, ctx.hiz)

	reoccluded := out.Draw.Targets
	reoccluded.Clear = false
	AddMeshCull(g, fmt.Sprintf("%s.mesh-cull", name), ctx, true)
	AddMeshletCull(g, fmt.Sprintf("%s.meshlet-cull", name), ctx, true)
	AddPrepareDispatch(g, fmt.Sprintf("%s.prepare-dispatch", name), ctx, true)
	AddTriangleCullDraw(g, fmt.Sprintf("%s.cull-draw", name), ctx, reoccluded, true)
	out.ReocclusionDraw, _ = graph.BlackboardGet[TriangleCullDrawPassData](g.Blackboard())

	g.Blackboard().Update(out)
	return out
}
