// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build !unix

package hostmem

func mmapAlloc(uint64) (*Block, bool) { return nil, false }

func mmapFree(*Block) {}
