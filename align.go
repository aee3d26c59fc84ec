// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xtc

import (
	"os"
	"unsafe"
)

// wordSize is the machine word size in bytes; every payload size this
// package hands out is rounded up to a multiple of it, matching the C
// original's XTC_ALIGNED_SIZE macro (alignment on int boundary).
const wordSize = int(unsafe.Sizeof(uintptr(0)))

var (
	osPageSize = os.Getpagesize()
	osPageMask = osPageSize - 1
)

// roundupWord rounds n up to the next multiple of wordSize. wordSize is a
// power of two, matching the teacher's roundup(n, m int) helper.
func roundupWord(n int) int {
	return (n + wordSize - 1) &^ (wordSize - 1)
}
