// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package device is the ownership layer between the render core and a hal
// backend. Every GPU object lives in a generational handle table owned by
// the Context; callers hold u32-sized typed handles and never backend
// pointers. Operations on stale handles fail with ErrStaleHandle (lookups)
// or become no-ops (destroys), so use-after-free cannot reach the backend.
//
// The Context also owns the cross-cutting machinery of the frame loop:
// the structural sampler and descriptor-set-layout caches, the per-frame
// deletion queue, and the staging uploader. Buffer arenas and the bindless
// texture ring are separate types built over a Context.
package device
