// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package hal declares the abstract device surface the render core runs on:
// resource creation and destruction, descriptor updates, synchronization
// primitives, and command recording with explicit pipeline barriers.
//
// The package contains only interfaces and plain descriptor structs. A
// concrete GPU API (Vulkan, D3D12, Metal) lives behind these interfaces and
// is not part of this module; the hal/noop backend provides an in-memory
// implementation that records commands and simulates buffer storage, which
// is what the test suite runs against.
//
// All operations are synchronous and atomic on the CPU side. Destroy calls
// are idempotent: destroying an object twice, or an object the backend no
// longer knows, is a no-op.
package hal
