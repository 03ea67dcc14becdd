// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package noop

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

func TestBufferLifecycle(t *testing.T) {
	d := New()
	b, err := d.CreateBuffer(&types.BufferDescriptor{
		Size:  256,
		Usage: types.BufferUsageStorage | types.BufferUsageMappable,
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.Size() != 256 {
		t.Errorf("Size = %d, want 256", b.Size())
	}

	data, err := d.MapBuffer(b)
	if err != nil {
		t.Fatal(err)
	}
	data[0] = 42
	d.UnmapBuffer(b)

	d.DestroyBuffer(b)
	d.DestroyBuffer(b) // idempotent
}

func TestMapNonMappable(t *testing.T) {
	d := New()
	b, err := d.CreateBuffer(&types.BufferDescriptor{Size: 64, Usage: types.BufferUsageStorage})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.MapBuffer(b); !errors.Is(err, hal.ErrNotMappable) {
		t.Errorf("MapBuffer = %v, want ErrNotMappable", err)
	}
}

func TestSubmitExecutesCopies(t *testing.T) {
	d := New()
	src, _ := d.CreateBuffer(&types.BufferDescriptor{
		Size: 16, Usage: types.BufferUsageSource | types.BufferUsageMappable,
	})
	dst, _ := d.CreateBuffer(&types.BufferDescriptor{
		Size: 16, Usage: types.BufferUsageDestination | types.BufferUsageMappable,
	})

	data, _ := d.MapBuffer(src)
	copy(data, []byte("hello, renderer"))

	cmd, _ := d.CreateCommandList()
	if err := cmd.Begin(); err != nil {
		t.Fatal(err)
	}
	cmd.CopyBuffer(src, dst, []hal.BufferCopy{{Size: 16}})
	if err := cmd.End(); err != nil {
		t.Fatal(err)
	}

	fence, _ := d.CreateFence(false)
	if err := d.Submit(cmd, fence); err != nil {
		t.Fatal(err)
	}
	if !fence.IsSignaled() {
		t.Error("fence must signal at submit")
	}

	out, _ := d.MapBuffer(dst)
	if string(out[:5]) != "hello" {
		t.Errorf("copy did not execute: %q", out[:5])
	}
}

func TestFenceTimeout(t *testing.T) {
	d := New()
	f, _ := d.CreateFence(false)
	if err := f.Wait(5 * time.Millisecond); !errors.Is(err, hal.ErrTimeout) {
		t.Errorf("Wait = %v, want ErrTimeout", err)
	}
}

func TestFenceReset(t *testing.T) {
	d := New()
	f, _ := d.CreateFence(true)
	if !f.IsSignaled() {
		t.Fatal("expected signaled")
	}
	f.Reset()
	if f.IsSignaled() {
		t.Fatal("expected unsignaled after Reset")
	}
}

func TestTimelineSemaphore(t *testing.T) {
	d := New()
	ts, _ := d.CreateTimelineSemaphore(3)
	if ts.Value() != 3 {
		t.Fatalf("Value = %d, want 3", ts.Value())
	}
	ts.Signal(2) // lower values ignored
	if ts.Value() != 3 {
		t.Fatalf("Value = %d after lower signal, want 3", ts.Value())
	}
	ts.Signal(7)
	if err := ts.Wait(7, time.Second); err != nil {
		t.Fatal(err)
	}
	if err := ts.Wait(100, 5*time.Millisecond); !errors.Is(err, hal.ErrTimeout) {
		t.Errorf("Wait(100) = %v, want ErrTimeout", err)
	}
}

func TestDescriptorAllocatorExhaustion(t *testing.T) {
	d := New()
	a, _ := d.CreateDescriptorAllocator(&hal.DescriptorAllocatorDescriptor{
		Kind: types.DescriptorAllocatorPooled, MaxSets: 1,
	})
	layout, _ := d.CreateDescriptorSetLayout(&types.DescriptorSetLayoutDescriptor{})

	if _, err := d.AllocateDescriptorSet(a, layout); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AllocateDescriptorSet(a, layout); !errors.Is(err, hal.ErrResourceExhausted) {
		t.Fatalf("second allocation = %v, want ErrResourceExhausted", err)
	}
	if err := d.GrowDescriptorAllocator(a); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AllocateDescriptorSet(a, layout); err != nil {
		t.Errorf("allocation after grow = %v", err)
	}
}

func TestSplitBarrierProtocol(t *testing.T) {
	d := New()
	sb, _ := d.CreateSplitBarrier()
	cmd, _ := d.CreateCommandList()
	_ = cmd.Begin()

	dep := &hal.DependencyInfo{Memory: []hal.MemoryBarrier{{
		SrcStage: types.StageComputeShader, DstStage: types.StagePixelShader,
		SrcAccess: types.AccessWriteShader, DstAccess: types.AccessReadStorage,
	}}}
	cmd.SignalSplitBarrier(sb, dep)
	if !sb.(*SplitBarrier).IsSignaled() {
		t.Error("expected signaled")
	}
	cmd.WaitSplitBarrier(sb, dep)
	cmd.ResetSplitBarrier(sb, dep)
	if sb.(*SplitBarrier).IsSignaled() {
		t.Error("expected unsignaled after reset")
	}

	cmds := cmd.(*Encoder).Commands()
	if len(cmds) != 3 {
		t.Fatalf("recorded %d commands, want 3", len(cmds))
	}
	if _, ok := cmds[0].(CmdSignalSplitBarrier); !ok {
		t.Errorf("cmds[0] = %T", cmds[0])
	}
}

func TestResizeBufferCopiesContents(t *testing.T) {
	d := New()
	b, _ := d.CreateBuffer(&types.BufferDescriptor{
		Size: 8, Usage: types.BufferUsageStorage | types.BufferUsageMappable,
	})
	data, _ := d.MapBuffer(b)
	copy(data, []byte("old-data"))

	cmd, _ := d.CreateCommandList()
	_ = cmd.Begin()
	nb, err := d.ResizeBuffer(b, 32, cmd)
	if err != nil {
		t.Fatal(err)
	}
	_ = cmd.End()
	_ = d.Submit(cmd, nil)

	if nb.Size() != 32 {
		t.Errorf("Size = %d, want 32", nb.Size())
	}
	out, _ := d.MapBuffer(nb)
	if string(out[:8]) != "old-data" {
		t.Errorf("contents not copied: %q", out[:8])
	}
}
