// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package thread

import (
	"errors"
	"testing"
)

func TestCallOrder(t *testing.T) {
	th := New()
	defer th.Stop()

	var got []int
	for i := 0; i < 10; i++ {
		th.Call(func() { got = append(got, i) })
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("calls out of order: %v", got)
		}
	}
}

func TestCallErr(t *testing.T) {
	th := New()
	defer th.Stop()

	want := errors.New("device lost")
	if err := th.CallErr(func() error { return want }); !errors.Is(err, want) {
		t.Errorf("err = %v", err)
	}
}

func TestStopIdempotent(t *testing.T) {
	th := New()
	th.Stop()
	th.Stop()
	th.Call(func() { t.Error("call after stop must not run") })
}
