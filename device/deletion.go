// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package device

// DeletionQueue defers destruction until the frames that might still use an
// object have retired on the GPU.
//
// Entries enqueued during frame F run when Flush is called with a frame
// number of at least F + buffered, in reverse insertion order within each
// frame so dependents (an image view) die before their owners (the image).
type DeletionQueue struct {
	buffered uint64
	frame    uint64
	entries  []deletionEntry
}

type deletionEntry struct {
	frame uint64
	fn    func()
}

// NewDeletionQueue creates a queue for the given in-flight frame count.
func NewDeletionQueue(bufferedFrames int) *DeletionQueue {
	return &DeletionQueue{buffered: uint64(bufferedFrames)}
}

// Enqueue records fn for deferred execution, tagged with the current frame.
func (q *DeletionQueue) Enqueue(fn func()) {
	q.entries = append(q.entries, deletionEntry{frame: q.frame, fn: fn})
}

// Len returns the number of pending entries.
func (q *DeletionQueue) Len() int { return len(q.entries) }

// Flush runs every entry whose frame has retired, given that currentFrame is
// about to begin. An entry of frame F runs when currentFrame >= F + buffered.
func (q *DeletionQueue) Flush(currentFrame uint64) {
	q.frame = currentFrame

	cutoff := 0
	for cutoff < len(q.entries) && q.entries[cutoff].frame+q.buffered <= currentFrame {
		cutoff++
	}
	if cutoff == 0 {
		return
	}

	// Reverse order within the drained prefix.
	for i := cutoff - 1; i >= 0; i-- {
		q.entries[i].fn()
	}
	n := copy(q.entries, q.entries[cutoff:])
	for i := n; i < len(q.entries); i++ {
		q.entries[i] = deletionEntry{}
	}
	q.entries = q.entries[:n]
}

// FlushAll runs every pending entry, newest first. Used at shutdown after
// the device went idle.
func (q *DeletionQueue) FlushAll() {
	for i := len(q.entries) - 1; i >= 0; i-- {
		q.entries[i].fn()
	}
	q.entries = q.entries[:0]
}
