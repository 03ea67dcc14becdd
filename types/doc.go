// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package types defines the plain data vocabulary shared by every layer of
// rendercore: resource descriptors, usage bitsets, synchronization scopes,
// and image layouts.
//
// The package has no behavior beyond small helpers on the types themselves.
// Enumerations that WebGPU already standardizes (texture formats, filter and
// address modes, compare functions, load/store ops) are taken from
// github.com/gogpu/gputypes rather than redeclared here; this package only
// adds what an explicit-barrier API needs on top: pipeline stages, access
// masks, image layouts, and the descriptor-set vocabulary.
package types
