// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package types

import "github.com/gogpu/gputypes"

// ReductionMode selects how a sampler combines fetched texels.
// Min/Max reductions are what the depth-pyramid readers use.
type ReductionMode uint8

// Reduction modes.
const (
	ReductionWeightedAverage ReductionMode = iota
	ReductionMin
	ReductionMax
)

// BorderColor selects the border texel for clamp-to-border addressing.
type BorderColor uint8

// Border colors.
const (
	BorderTransparentBlack BorderColor = iota
	BorderOpaqueBlack
	BorderOpaqueWhite
)

// SamplerDescriptor describes a sampler. The zero value is a valid
// nearest/repeat sampler.
//
// The descriptor is comparable; the device caches samplers by structural
// equality of this struct.
type SamplerDescriptor struct {
	MinFilter gputypes.FilterMode
	MagFilter gputypes.FilterMode
	MipFilter gputypes.FilterMode

	AddressMode gputypes.AddressMode

	Reduction ReductionMode

	LODMin float32
	LODMax float32

	// MaxAnisotropy of zero or one disables anisotropic filtering.
	MaxAnisotropy uint8

	// Compare of CompareFunctionUndefined disables depth comparison.
	Compare gputypes.CompareFunction

	Border BorderColor
}
