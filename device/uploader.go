// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package device

import (
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

// StagingDefaultSize is the size of one staging buffer. Uploads larger than
// this get a dedicated staging buffer of their own size.
const StagingDefaultSize = 1 << 20

// Uploader batches host-to-device writes through a ring of persistently
// mapped staging buffers. Data is appended to staging at record time; Submit
// issues the buffer copies and a copy-to-consumer barrier, then forgets the
// batch. Staging buffers are kept alive and reused frame over frame.
type Uploader struct {
	ctx         *Context
	defaultSize uint64

	staging []stagingBuffer
	current int

	uploads []uploadInfo
}

type stagingBuffer struct {
	handle core.BufferHandle
	mapped []byte
	used   uint64
}

type uploadInfo struct {
	stagingIndex int
	dst          core.BufferHandle
	srcOffset    uint64
	dstOffset    uint64
	size         uint64
}

// NewUploader creates an uploader over ctx. A zero stagingSize picks
// StagingDefaultSize.
func NewUploader(ctx *Context, stagingSize uint64) *Uploader {
	if stagingSize == 0 {
		stagingSize = StagingDefaultSize
	}
	return &Uploader{ctx: ctx, defaultSize: stagingSize, current: -1}
}

// PendingUploads returns the number of recorded, unsubmitted uploads.
func (u *Uploader) PendingUploads() int { return len(u.uploads) }

// UpdateBuffer records a write of data into dst at dstOffset.
//
// Persistently mapped destinations short-circuit to a direct copy; everything
// else goes through staging and lands on the GPU at the next Submit.
func (u *Uploader) UpdateBuffer(dst core.BufferHandle, data []byte, dstOffset uint64) error {
	entry, err := u.ctx.Buffer(dst)
	if err != nil {
		return err
	}
	if entry.Mapped != nil {
		copy(entry.Mapped[dstOffset:], data)
		return nil
	}

	size := uint64(len(data))
	idx, srcOffset, err := u.reserve(size)
	if err != nil {
		return err
	}
	copy(u.staging[idx].mapped[srcOffset:], data)
	u.uploads = append(u.uploads, uploadInfo{
		stagingIndex: idx,
		dst:          dst,
		srcOffset:    srcOffset,
		dstOffset:    dstOffset,
		size:         size,
	})
	return nil
}

// ReserveMapped reserves size bytes of staging space addressed to dst at
// dstOffset and returns the span to fill in place. The span stays valid
// until Submit.
func (u *Uploader) ReserveMapped(dst core.BufferHandle, size, dstOffset uint64) ([]byte, error) {
	idx, srcOffset, err := u.reserve(size)
	if err != nil {
		return nil, err
	}
	u.uploads = append(u.uploads, uploadInfo{
		stagingIndex: idx,
		dst:          dst,
		srcOffset:    srcOffset,
		dstOffset:    dstOffset,
		size:         size,
	})
	return u.staging[idx].mapped[srcOffset : srcOffset+size], nil
}

// reserve finds or creates a staging buffer with size bytes free and claims
// the space.
func (u *Uploader) reserve(size uint64) (int, uint64, error) {
	if u.current >= 0 {
		sb := &u.staging[u.current]
		if sb.used+size <= uint64(len(sb.mapped)) {
			offset := sb.used
			sb.used += size
			return u.current, offset, nil
		}
	}

	// Look for a drained buffer from a previous frame before allocating.
	for i := range u.staging {
		sb := &u.staging[i]
		if sb.used == 0 && size <= uint64(len(sb.mapped)) {
			u.current = i
			sb.used = size
			return i, 0, nil
		}
	}

	alloc := max(size, u.defaultSize)
	h, err := u.ctx.CreateBuffer(types.BufferDescriptor{
		Label:              "staging",
		Size:               alloc,
		Usage:              types.BufferUsageSource | types.BufferUsageMappable,
		PersistentlyMapped: true,
	})
	if err != nil {
		return 0, 0, err
	}
	entry, err := u.ctx.Buffer(h)
	if err != nil {
		return 0, 0, err
	}
	u.staging = append(u.staging, stagingBuffer{handle: h, mapped: entry.Mapped, used: size})
	u.current = len(u.staging) - 1
	return u.current, 0, nil
}

// Submit issues every recorded copy into cmd, merging adjacent copies whose
// staging and destination ranges are both contiguous, then emits one barrier
// making the transfers visible to every later stage. The batch is cleared;
// staging space stays claimed until Reset.
func (u *Uploader) Submit(cmd hal.CommandEncoder) error {
	if len(u.uploads) == 0 {
		return nil
	}

	pending := make([]hal.BufferCopy, 0, len(u.uploads))
	flushRun := func(stagingIndex int, dst core.BufferHandle) error {
		if len(pending) == 0 {
			return nil
		}
		src, err := u.ctx.Buffer(u.staging[stagingIndex].handle)
		if err != nil {
			return err
		}
		dstEntry, err := u.ctx.Buffer(dst)
		if err != nil {
			return err
		}
		cmd.CopyBuffer(src.HAL, dstEntry.HAL, pending)
		pending = pending[:0]
		return nil
	}

	runStaging, runDst := u.uploads[0].stagingIndex, u.uploads[0].dst
	for _, up := range u.uploads {
		if up.stagingIndex != runStaging || up.dst != runDst {
			if err := flushRun(runStaging, runDst); err != nil {
				return err
			}
			runStaging, runDst = up.stagingIndex, up.dst
		}
		if n := len(pending); n > 0 {
			last := &pending[n-1]
			if last.SrcOffset+last.Size == up.srcOffset && last.DstOffset+last.Size == up.dstOffset {
				last.Size += up.size
				continue
			}
		}
		pending = append(pending, hal.BufferCopy{
			SrcOffset: up.srcOffset,
			DstOffset: up.dstOffset,
			Size:      up.size,
		})
	}
	if err := flushRun(runStaging, runDst); err != nil {
		return err
	}

	cmd.Barrier(&hal.DependencyInfo{Memory: []hal.MemoryBarrier{{
		SrcStage:  types.StageCopy,
		DstStage:  types.StageAll,
		SrcAccess: types.AccessWriteCopy,
		DstAccess: types.AccessReadShader | types.AccessReadUniform | types.AccessReadStorage | types.AccessReadIndirect | types.AccessReadIndex | types.AccessReadAttribute,
	}}})

	hal.Logger().Debug("uploads submitted", "count", len(u.uploads))
	u.uploads = u.uploads[:0]
	return nil
}

// Reset makes all staging space reusable. Call once per in-flight slot,
// after the slot's fence proved the GPU is done reading the staging ring.
func (u *Uploader) Reset() {
	for i := range u.staging {
		u.staging[i].used = 0
	}
	if len(u.staging) > 0 {
		u.current = 0
	}
}
