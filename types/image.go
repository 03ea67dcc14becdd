// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package types

import (
	"math/bits"

	"github.com/gogpu/gputypes"
)

// ImageKind selects the dimensionality of an image.
type ImageKind uint8

// Image kinds.
const (
	ImageKind2D ImageKind = iota
	ImageKind3D
	ImageKindCubemap
	ImageKind2DArray
)

// String returns the kind name.
func (k ImageKind) String() string {
	switch k {
	case ImageKind2D:
		return "2D"
	case ImageKind3D:
		return "3D"
	case ImageKindCubemap:
		return "Cubemap"
	case ImageKind2DArray:
		return "2DArray"
	default:
		return "Unknown"
	}
}

// ImageUsage describes how an image can be used.
// Usages combine with bitwise OR.
type ImageUsage uint32

// Image usage flags.
const (
	// ImageUsageSampled allows sampling the image from shaders.
	ImageUsageSampled ImageUsage = 1 << 0
	// ImageUsageStorage allows unordered shader reads and writes.
	ImageUsageStorage ImageUsage = 1 << 1
	// ImageUsageColorAttachment allows use as a color render target.
	ImageUsageColorAttachment ImageUsage = 1 << 2
	// ImageUsageDepthStencilAttachment allows use as a depth/stencil target.
	ImageUsageDepthStencilAttachment ImageUsage = 1 << 3
	// ImageUsageSource allows the image to be the source of copies and blits.
	ImageUsageSource ImageUsage = 1 << 4
	// ImageUsageDestination allows the image to be the destination of copies
	// and blits.
	ImageUsageDestination ImageUsage = 1 << 5
)

// Contains reports whether all flags in other are set in u.
func (u ImageUsage) Contains(other ImageUsage) bool {
	return u&other == other
}

// MaxMipCount caps the mip chain length of any image. A 16-level chain covers
// base extents up to 32768, which is beyond every format/extent limit the
// renderer uses.
const MaxMipCount = 16

// ImageSubresource addresses a contiguous range of mips and layers.
type ImageSubresource struct {
	MipBase    uint32
	MipCount   uint32
	LayerBase  uint32
	LayerCount uint32
}

// ImageDescriptor describes an image to be created.
type ImageDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Width and Height are the base extent in texels.
	Width  uint32
	Height uint32

	// LayersOrDepth is the array layer count for 2DArray/Cubemap images and
	// the depth for 3D images. Zero means one.
	LayersOrDepth uint32

	// MipCount is the number of mip levels. Zero means one.
	MipCount uint32

	// Format is the texel format.
	Format gputypes.TextureFormat

	// Kind selects the dimensionality.
	Kind ImageKind

	// Usage is the set of allowed usages.
	Usage ImageUsage

	// AdditionalViews requests subresource views beyond the primary
	// whole-image view. The device hands back one ImageViewHandle per entry,
	// in order.
	AdditionalViews []ImageSubresource
}

// Layers returns the effective layer/depth count.
func (d *ImageDescriptor) Layers() uint32 {
	if d.LayersOrDepth == 0 {
		return 1
	}
	return d.LayersOrDepth
}

// Mips returns the effective mip count.
func (d *ImageDescriptor) Mips() uint32 {
	if d.MipCount == 0 {
		return 1
	}
	return d.MipCount
}

// CalcMipCount returns the full mip chain length for the given extent,
// capped at MaxMipCount. The 1x1 extent yields one level.
func CalcMipCount(width, height uint32) uint32 {
	m := max(width, height)
	if m == 0 {
		return 1
	}
	count := uint32(bits.Len32(m)) // floor(log2(m)) + 1
	if count > MaxMipCount {
		count = MaxMipCount
	}
	return count
}

// FloorPow2 returns the largest power of two less than or equal to v.
// FloorPow2(0) is 0.
func FloorPow2(v uint32) uint32 {
	if v == 0 {
		return 0
	}
	return 1 << (bits.Len32(v) - 1)
}

// MipExtent returns the extent of mip level in a chain starting at (w, h).
// Levels never shrink below 1x1.
func MipExtent(w, h, level uint32) (uint32, uint32) {
	w >>= level
	h >>= level
	return max(w, 1), max(h, 1)
}
