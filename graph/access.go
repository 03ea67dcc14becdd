// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package graph

import "github.com/gogpu/rendercore/types"

// Access is the declaration-level access bitset. It combines two axes:
// the shader stage touching the resource and the way it is used. One call
// may set several flags of either axis; they are OR-combined at barrier
// synthesis time.
type Access uint32

// Stage axis.
const (
	AccessVertex Access = 1 << iota
	AccessPixel
	AccessCompute
	AccessCopy
	AccessIndirect
	AccessHost

	// Usage axis.
	AccessUniform
	AccessStorage
	AccessSampled
	AccessIndex
	AccessAttribute
	AccessRenderTarget
	AccessDepthStencil
	AccessUpload
	AccessReadback
)

// Has reports whether all flags of other are set.
func (a Access) Has(other Access) bool { return a&other == other }

// stages maps the stage axis to pipeline stages.
func (a Access) stages() types.PipelineStage {
	var s types.PipelineStage
	if a.Has(AccessVertex) {
		s |= types.StageVertexShader
	}
	if a.Has(AccessPixel) {
		s |= types.StagePixelShader
	}
	if a.Has(AccessCompute) {
		s |= types.StageComputeShader
	}
	if a.Has(AccessCopy) || a.Has(AccessUpload) || a.Has(AccessReadback) {
		s |= types.StageCopy
	}
	if a.Has(AccessIndirect) {
		s |= types.StageDrawIndirect
	}
	if a.Has(AccessHost) {
		s |= types.StageHost
	}
	if a.Has(AccessRenderTarget) {
		s |= types.StageColorOutput
	}
	if a.Has(AccessDepthStencil) {
		s |= types.StageDepthStencil
	}
	if a.Has(AccessIndex) || a.Has(AccessAttribute) {
		s |= types.StageVertexShader
	}
	if s == 0 {
		s = types.StageAll
	}
	return s
}

// mask maps the usage axis to a concrete access mask. write selects the
// write form of read/write usages.
func (a Access) mask(write bool) types.Access {
	var m types.Access
	if a.Has(AccessUniform) {
		m |= types.AccessReadUniform
	}
	if a.Has(AccessStorage) {
		if write {
			m |= types.AccessWriteStorage
		} else {
			m |= types.AccessReadStorage
		}
	}
	if a.Has(AccessSampled) {
		m |= types.AccessReadSampled
	}
	if a.Has(AccessIndex) {
		m |= types.AccessReadIndex
	}
	if a.Has(AccessAttribute) {
		m |= types.AccessReadAttribute
	}
	if a.Has(AccessIndirect) {
		m |= types.AccessReadIndirect
	}
	if a.Has(AccessRenderTarget) {
		if write {
			m |= types.AccessWriteColor
		} else {
			m |= types.AccessReadColor
		}
	}
	if a.Has(AccessDepthStencil) {
		if write {
			m |= types.AccessWriteDepthStencil
		} else {
			m |= types.AccessReadDepthStencil
		}
	}
	if a.Has(AccessUpload) {
		m |= types.AccessWriteCopy
	}
	if a.Has(AccessReadback) {
		m |= types.AccessReadCopy
	}
	if m == 0 {
		if write {
			m = types.AccessWriteShader
		} else {
			m = types.AccessReadShader
		}
	}
	return m
}

// layout maps the usage axis to the image layout the access requires.
func (a Access) layout(write bool) types.ImageLayout {
	switch {
	case a.Has(AccessStorage):
		return types.LayoutGeneral
	case a.Has(AccessDepthStencil):
		if write {
			return types.LayoutDepthAttachment
		}
		return types.LayoutDepthReadOnly
	case a.Has(AccessRenderTarget):
		return types.LayoutAttachment
	case a.Has(AccessSampled):
		return types.LayoutReadOnly
	case a.Has(AccessUpload):
		return types.LayoutDestination
	case a.Has(AccessReadback):
		return types.LayoutSource
	case a.Has(AccessCopy):
		if write {
			return types.LayoutDestination
		}
		return types.LayoutSource
	default:
		return types.LayoutGeneral
	}
}
