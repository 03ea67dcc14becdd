// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package graph implements the per-frame render graph: passes declare the
// virtual resources they create, read, and write; Compile turns the
// resulting DAG into a linear schedule with pipeline barriers, image layout
// transitions, split barriers, and transparently aliased physical memory;
// Execute replays the schedule against a command encoder.
//
// A frame looks like:
//
//	g.Reset()
//	p := graph.AddPass(g, "cull", setup, execute)
//	...
//	g.Compile()
//	g.Execute(frameCtx)
//
// Compile-time failures (cycles, reads of never-written resources) skip the
// offending passes with a warning and keep the rest of the frame alive.
package graph
