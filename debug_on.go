// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build xtcdebug

package xtc

import (
	"fmt"
	"runtime"
)

// callSite records the source location of an Alloc call when this
// package is built with the xtcdebug tag, mirroring the original's
// #ifdef __DEBUG xlh_alloc_dbg/xss_alloc_dbg variants that take an
// explicit fn/line pair. Go gets the same information for free via
// runtime.Caller, so no call-site threading through the public API is
// needed.
type callSite struct {
	file string
	line int
}

func captureCallSite(skip int) callSite {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return callSite{file: "?"}
	}
	return callSite{file: file, line: line}
}

func (c callSite) String() string {
	if c.file == "" {
		return "?"
	}
	return fmt.Sprintf("%s:%d", c.file, c.line)
}

const debugBuild = true
