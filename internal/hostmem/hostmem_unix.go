// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build unix

package hostmem

import "golang.org/x/sys/unix"

func mmapAlloc(size uint64) (*Block, bool) {
	data, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false
	}
	return &Block{data: data, mapped: true}, true
}

func mmapFree(b *Block) {
	_ = unix.Munmap(b.data)
}
