// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package scene owns the renderable world: immutable scene templates,
// instantiated geometry living in large GPU arenas, the flat node
// hierarchy, render-object sets filtered into draw buckets, and the
// per-view persistent visibility buffers the culling pipeline updates.
package scene
