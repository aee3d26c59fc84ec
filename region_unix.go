// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package xtc

import (
	"syscall"
	"unsafe"
)

// AcquireRegion asks the OS for a fresh anonymous mapping of at least size
// bytes, suitable for passing to NewFixedHeap/NewVariableHeap as a
// caller-owned region. The region is not zeroed by the allocators
// themselves, but anonymous mappings come zero-filled from the kernel.
func AcquireRegion(size int) ([]byte, error) {
	flags := syscall.MAP_SHARED | syscall.MAP_ANON
	prot := syscall.PROT_READ | syscall.PROT_WRITE
	b, err := syscall.Mmap(-1, 0, size, prot, flags)
	if err != nil {
		return nil, err
	}

	if uintptr(unsafe.Pointer(&b[0]))&uintptr(osPageMask) != 0 {
		panic("xtc: internal error: mapping not page-aligned")
	}

	return b, nil
}

// ReleaseRegion returns a region obtained from AcquireRegion to the OS.
func ReleaseRegion(b []byte) error {
	if len(b) == 0 {
		return nil
	}

	addr := unsafe.Pointer(&b[0])
	_, _, errno := syscall.Syscall(syscall.SYS_MUNMAP, uintptr(addr), uintptr(cap(b)), 0)
	if errno != 0 {
		return errno
	}

	return nil
}
