// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package types

// PipelineStage is a bitset of pipeline execution scopes used by barriers.
type PipelineStage uint32

// Pipeline stages.
const (
	StageNone          PipelineStage = 0
	StageTop           PipelineStage = 1 << 0
	StageDrawIndirect  PipelineStage = 1 << 1
	StageVertexShader  PipelineStage = 1 << 2
	StagePixelShader   PipelineStage = 1 << 3
	StageDepthStencil  PipelineStage = 1 << 4
	StageColorOutput   PipelineStage = 1 << 5
	StageComputeShader PipelineStage = 1 << 6
	StageCopy          PipelineStage = 1 << 7
	StageHost          PipelineStage = 1 << 8
	StageBottom        PipelineStage = 1 << 9
	StageAll           PipelineStage = 1<<10 - 1
)

// Contains reports whether all stages in other are set in s.
func (s PipelineStage) Contains(other PipelineStage) bool {
	return s&other == other
}

// Access is a bitset of memory access scopes used by barriers.
type Access uint32

// Access masks.
const (
	AccessNone              Access = 0
	AccessReadShader        Access = 1 << 0
	AccessWriteShader       Access = 1 << 1
	AccessReadUniform       Access = 1 << 2
	AccessReadStorage       Access = 1 << 3
	AccessWriteStorage      Access = 1 << 4
	AccessReadSampled       Access = 1 << 5
	AccessReadIndex         Access = 1 << 6
	AccessReadAttribute     Access = 1 << 7
	AccessReadIndirect      Access = 1 << 8
	AccessReadColor         Access = 1 << 9
	AccessWriteColor        Access = 1 << 10
	AccessReadDepthStencil  Access = 1 << 11
	AccessWriteDepthStencil Access = 1 << 12
	AccessReadCopy          Access = 1 << 13
	AccessWriteCopy         Access = 1 << 14
	AccessReadHost          Access = 1 << 15
	AccessWriteHost         Access = 1 << 16
)

const writeAccessMask = AccessWriteShader | AccessWriteStorage | AccessWriteColor |
	AccessWriteDepthStencil | AccessWriteCopy | AccessWriteHost

// HasWrites reports whether the mask contains any write access.
func (a Access) HasWrites() bool {
	return a&writeAccessMask != 0
}

// Reads returns the read-only portion of the mask.
func (a Access) Reads() Access {
	return a &^ writeAccessMask
}

// Overlaps reports whether the two masks share any access.
func (a Access) Overlaps(other Access) bool {
	return a&other != 0
}

// ImageLayout is the memory layout an image subresource is kept in.
// Every access to an image demands a specific layout; transitions between
// layouts are issued as image barriers.
type ImageLayout uint8

// Image layouts.
const (
	LayoutUndefined ImageLayout = iota
	LayoutGeneral
	LayoutReadOnly
	LayoutAttachment
	LayoutDepthAttachment
	LayoutDepthReadOnly
	LayoutSource
	LayoutDestination
	LayoutPresent
)

// String returns the layout name.
func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutGeneral:
		return "General"
	case LayoutReadOnly:
		return "ReadOnly"
	case LayoutAttachment:
		return "Attachment"
	case LayoutDepthAttachment:
		return "DepthAttachment"
	case LayoutDepthReadOnly:
		return "DepthReadOnly"
	case LayoutSource:
		return "Source"
	case LayoutDestination:
		return "Destination"
	case LayoutPresent:
		return "Present"
	default:
		return "Unknown"
	}
}
