// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package thread pins GPU work to one OS thread. Backends with thread-affine
// contexts need every device call on the same thread; the renderer funnels
// its frame loop through a Thread when asked to.
package thread

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Thread serializes function calls onto one locked OS thread.
type Thread struct {
	funcs   chan func()
	done    chan struct{}
	running atomic.Bool
	stop    sync.Once
}

// New starts the thread. It is locked to an OS thread until Stop.
func New() *Thread {
	t := &Thread{
		funcs: make(chan func(), 16),
		done:  make(chan struct{}),
	}
	t.running.Store(true)

	ready := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		close(ready)

		for {
			select {
			case f := <-t.funcs:
				f()
			case <-t.done:
				for {
					select {
					case f := <-t.funcs:
						f()
					default:
						return
					}
				}
			}
		}
	}()
	<-ready
	return t
}

// Call runs f on the thread and waits for it to finish.
func (t *Thread) Call(f func()) {
	if !t.running.Load() {
		return
	}
	done := make(chan struct{})
	t.funcs <- func() {
		f()
		close(done)
	}
	<-done
}

// CallErr runs f on the thread and returns its error.
func (t *Thread) CallErr(f func() error) error {
	var err error
	t.Call(func() { err = f() })
	return err
}

// Stop shuts the thread down after pending calls drain. Idempotent.
func (t *Thread) Stop() {
	t.stop.Do(func() {
		t.running.Store(false)
		close(t.done)
	})
}
