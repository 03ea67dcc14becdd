// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package rendercore is the frame harness over the render graph and the
// GPU visibility pipeline. It owns the in-flight frame slots with their
// fences and staging uploaders, advances the deletion queue, and drives
// declare -> compile -> execute -> submit once per frame.
//
// The heavy lifting lives in the subpackages: graph (the render graph),
// passes/hiz and passes/cull (the visibility pipeline), scene (geometry
// and per-view visibility), device (object ownership over a hal backend).
package rendercore
