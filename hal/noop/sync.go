// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package noop

import (
	"sync"
	"time"

	"github.com/gogpu/rendercore/hal"
)

// Fence is a CPU-visible fence. The noop queue signals it as soon as the
// submitted command list finishes executing on the calling goroutine.
type Fence struct {
	mu       sync.Mutex
	signaled bool
	ch       chan struct{}
}

func newFence(signaled bool) *Fence {
	f := &Fence{signaled: signaled, ch: make(chan struct{})}
	if signaled {
		close(f.ch)
	}
	return f
}

// Wait blocks until the fence signals or the timeout expires.
func (f *Fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()

	if timeout <= 0 {
		<-ch
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return hal.ErrTimeout
	}
}

// IsSignaled reports the fence state.
func (f *Fence) IsSignaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

// Destroy is a no-op; fences are plain host objects.
func (*Fence) Destroy() {}

// Reset returns the fence to the unsignaled state.
func (f *Fence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.signaled = false
		f.ch = make(chan struct{})
	}
}

func (f *Fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled {
		f.signaled = true
		close(f.ch)
	}
}

// TimelineSemaphore is a monotonic counter with CPU wait support.
type TimelineSemaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value uint64
}

func newTimeline(initial uint64) *TimelineSemaphore {
	t := &TimelineSemaphore{value: initial}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Destroy is a no-op.
func (*TimelineSemaphore) Destroy() {}

// Value returns the last signaled value.
func (t *TimelineSemaphore) Value() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Signal raises the counter to value. Lower values are ignored.
func (t *TimelineSemaphore) Signal(value uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if value > t.value {
		t.value = value
		t.cond.Broadcast()
	}
}

// Wait blocks until the counter reaches value or the timeout expires.
func (t *TimelineSemaphore) Wait(value uint64, timeout time.Duration) error {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)

		// Wake waiters at the deadline; Cond has no timed wait.
		timer := time.AfterFunc(timeout, t.cond.Broadcast)
		defer timer.Stop()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.value < value {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return hal.ErrTimeout
		}
		t.cond.Wait()
	}
	return nil
}

// SplitBarrier tracks its signaled state so tests can verify the
// signal/wait/reset protocol.
type SplitBarrier struct {
	mu       sync.Mutex
	signaled bool
}

// Destroy is a no-op.
func (*SplitBarrier) Destroy() {}

// IsSignaled reports the event state.
func (sb *SplitBarrier) IsSignaled() bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.signaled
}

func (sb *SplitBarrier) setSignaled(v bool) {
	sb.mu.Lock()
	sb.signaled = v
	sb.mu.Unlock()
}
