// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package core provides the handle tables every GPU object of rendercore
// lives in: typed generational handles, the identity manager that allocates
// them, the sparse Table combining both, a plain index Freelist, and a paged
// DenseSet.
//
// A handle is a 32-bit value packing a 24-bit slot index with an 8-bit
// generation. Destroying an object bumps its slot's generation, so handles
// held past destruction fail every subsequent lookup with ErrStaleHandle
// instead of aliasing the slot's next occupant.
package core
