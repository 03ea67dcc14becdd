// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package types

import "testing"

func TestCalcMipCount(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
		want uint32
	}{
		{"1x1", 1, 1, 1},
		{"2x2", 2, 2, 2},
		{"512x512", 512, 512, 10},
		{"1024x512", 1024, 512, 11},
		{"non-pow2", 1000, 600, 10},
		{"huge capped", 1 << 20, 1 << 20, MaxMipCount},
		{"zero", 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalcMipCount(tt.w, tt.h); got != tt.want {
				t.Errorf("CalcMipCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestFloorPow2(t *testing.T) {
	tests := []struct {
		in, want uint32
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 2},
		{1023, 512},
		{1024, 1024},
		{1025, 1024},
	}
	for _, tt := range tests {
		if got := FloorPow2(tt.in); got != tt.want {
			t.Errorf("FloorPow2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMipExtent(t *testing.T) {
	w, h := MipExtent(512, 256, 9)
	if w != 1 || h != 1 {
		t.Errorf("MipExtent(512, 256, 9) = %dx%d, want 1x1", w, h)
	}
	w, h = MipExtent(512, 256, 2)
	if w != 128 || h != 64 {
		t.Errorf("MipExtent(512, 256, 2) = %dx%d, want 128x64", w, h)
	}
}

func TestAccessMasks(t *testing.T) {
	a := AccessReadSampled | AccessWriteStorage
	if !a.HasWrites() {
		t.Error("expected HasWrites")
	}
	if a.Reads() != AccessReadSampled {
		t.Errorf("Reads() = %v, want AccessReadSampled", a.Reads())
	}
	if (AccessReadSampled | AccessReadUniform).HasWrites() {
		t.Error("read-only mask reported writes")
	}
}

func TestLayoutString(t *testing.T) {
	if LayoutGeneral.String() != "General" {
		t.Errorf("unexpected: %s", LayoutGeneral)
	}
	if LayoutReadOnly.String() != "ReadOnly" {
		t.Errorf("unexpected: %s", LayoutReadOnly)
	}
}
