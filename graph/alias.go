// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"math/bits"
	"sort"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/types"
)

// bufferUsageFor derives the concrete usage flags of a created buffer from
// its declared accesses.
func bufferUsageFor(v *virtualResource) types.BufferUsage {
	usage := v.bufferDesc.ExtraUsage
	for _, a := range v.accesses {
		if a.access.Has(AccessUniform) {
			usage |= types.BufferUsageUniform
		}
		if a.access.Has(AccessStorage) {
			usage |= types.BufferUsageStorage
		}
		if a.access.Has(AccessIndirect) {
			usage |= types.BufferUsageIndirect
		}
		if a.access.Has(AccessIndex) {
			usage |= types.BufferUsageIndex
		}
		if a.access.Has(AccessAttribute) {
			usage |= types.BufferUsageVertex
		}
		if a.access.Has(AccessUpload) {
			usage |= types.BufferUsageDestination
		}
		if a.access.Has(AccessReadback) {
			usage |= types.BufferUsageSource | types.BufferUsageMappableRandomAccess
		}
	}
	return usage
}

// imageUsageFor derives the concrete usage flags of a created image.
func imageUsageFor(v *virtualResource) types.ImageUsage {
	usage := v.imageDesc.ExtraUsage
	for _, a := range v.accesses {
		if a.access.Has(AccessSampled) {
			usage |= types.ImageUsageSampled
		}
		if a.access.Has(AccessStorage) {
			usage |= types.ImageUsageStorage
		}
		if a.access.Has(AccessRenderTarget) {
			usage |= types.ImageUsageColorAttachment
		}
		if a.access.Has(AccessDepthStencil) {
			usage |= types.ImageUsageDepthStencilAttachment
		}
		if a.access.Has(AccessUpload) {
			usage |= types.ImageUsageDestination
		}
		if a.access.Has(AccessReadback) {
			usage |= types.ImageUsageSource
		}
	}
	return usage
}

// sizeClass buckets buffer sizes to powers of two so near-sized buffers can
// share physical storage.
func sizeClass(size uint64) uint64 {
	if size == 0 {
		return 1
	}
	return 1 << (64 - bits.LeadingZeros64(size-1))
}

type bufferClass struct {
	usage types.BufferUsage
	class uint64
}

type imageClass struct {
	width  uint32
	height uint32
	layers uint32
	mips   uint32
	format gputypes.TextureFormat
	kind   types.ImageKind
	usage  types.ImageUsage
}

type physicalSlot[H comparable] struct {
	handle    H
	freeAfter int
}

// materialize allocates physical objects for every created resource in the
// schedule, aliasing storage across resources with disjoint lifetimes and
// compatible descriptions. Imported and exported resources are pinned;
// cubemaps are pinned too (aliasing them is unsupported, non-fatal).
func (g *Graph) materialize() error {
	type candidate struct {
		v  *virtualResource
		ri int
	}
	var candidates []candidate
	for ri := range g.resources {
		v := &g.resources[ri]
		if v.firstUse < 0 {
			continue // unused
		}
		if v.imported {
			if v.kind == ResourceBuffer {
				v.physicalBuffer = v.importedBuffer
			} else {
				v.physicalImage = v.importedImage
			}
			v.state = stateMaterialized
			continue
		}
		candidates = append(candidates, candidate{v: v, ri: ri})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].v.firstUse < candidates[j].v.firstUse
	})

	bufferSlots := make(map[bufferClass][]*physicalSlot[core.BufferHandle])
	imageSlots := make(map[imageClass][]*physicalSlot[core.ImageHandle])

	for _, c := range candidates {
		v := c.v
		aliasable := !v.exported
		if v.kind == ResourceImage && v.imageDesc.Kind == types.ImageKindCubemap {
			aliasable = false
		}
		// Per-mip views make aliasing bookkeeping ambiguous; pin those too.
		if v.kind == ResourceImage && len(v.imageDesc.AdditionalViews) > 0 {
			aliasable = false
		}

		switch v.kind {
		case ResourceBuffer:
			key := bufferClass{usage: bufferUsageFor(v), class: sizeClass(v.bufferDesc.Size)}
			if aliasable {
				if slot := findSlot(bufferSlots[key], v.firstUse); slot != nil {
					v.physicalBuffer = slot.handle
					slot.freeAfter = v.lastUse
					v.state = stateMaterialized
					continue
				}
			}
			h, err := g.dev.CreateBuffer(types.BufferDescriptor{
				Label: v.name,
				Size:  key.class,
				Usage: key.usage | types.BufferUsageDestination,
			})
			if err != nil {
				return err
			}
			if !v.exported {
				g.ownedBuffers = append(g.ownedBuffers, h)
			}
			v.physicalBuffer = h
			if aliasable {
				bufferSlots[key] = append(bufferSlots[key], &physicalSlot[core.BufferHandle]{handle: h, freeAfter: v.lastUse})
			}

		case ResourceImage:
			desc := v.imageDesc
			usage := imageUsageFor(v)
			key := imageClass{
				width: desc.Width, height: desc.Height,
				layers: max(desc.Layers, 1), mips: max(desc.Mips, 1),
				format: desc.Format, kind: desc.Kind, usage: usage,
			}
			if aliasable {
				if slot := findSlot(imageSlots[key], v.firstUse); slot != nil {
					v.physicalImage = slot.handle
					slot.freeAfter = v.lastUse
					v.state = stateMaterialized
					continue
				}
			}
			h, err := g.dev.CreateImage(types.ImageDescriptor{
				Label:         v.name,
				Width:         desc.Width,
				Height:        desc.Height,
				LayersOrDepth: key.layers,
				MipCount:      key.mips,
				Format:        desc.Format,
				Kind:          desc.Kind,
				Usage:         usage,
				AdditionalViews: append([]types.ImageSubresource(nil),
					desc.AdditionalViews...),
			})
			if err != nil {
				return err
			}
			if !v.exported {
				g.ownedImages = append(g.ownedImages, h)
			}
			v.physicalImage = h
			if aliasable {
				imageSlots[key] = append(imageSlots[key], &physicalSlot[core.ImageHandle]{handle: h, freeAfter: v.lastUse})
			}
		}
		v.state = stateMaterialized
		v.physicalOwner = true
	}
	return nil
}

// findSlot picks the earliest-freed physical slot whose lifetime ended
// before firstUse.
func findSlot[H comparable](slots []*physicalSlot[H], firstUse int) *physicalSlot[H] {
	var best *physicalSlot[H]
	for _, s := range slots {
		if s.freeAfter < firstUse && (best == nil || s.freeAfter < best.freeAfter) {
			best = s
		}
	}
	return best
}
