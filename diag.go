// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xtc

import (
	"fmt"
	"os"
)

// reportLeak is the only diagnostic output any of the three allocators
// ever produce on their own, and only from End, never from the hot
// Alloc/Free path. It is unconditional: a leak is reported whether or
// not the handle was built with call-site capture (the xtcdebug build
// tag); that tag only controls whether Dump can additionally name where
// each leaked block came from.
func reportLeak(kind string, count int) {
	fmt.Fprintf(os.Stderr, "xtc: %s.End: %d block(s) still allocated\n", kind, count)
}
