// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package noop implements hal.Device without a GPU.
//
// Buffers are backed by real host memory and copy commands execute at Submit
// time, so data actually moves; every other command is recorded verbatim on
// the encoder. Tests inspect the recorded command stream to assert on
// barrier placement, rendering scopes, and draw/dispatch emission.
package noop
