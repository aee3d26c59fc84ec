// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xtc

// Protector is the pair of functions a caller supplies to make a heap
// safe for concurrent use: Lock is called on entry to every mutating
// operation (Alloc, Free) and every snapshot query (Count, the stats
// queries), Unlock on every exit path. Neither is reentrant by itself;
// reentrancy, if wanted, must come from whatever Lock/Unlock wrap (e.g.
// a sync.Mutex vs. a recursive lock).
//
// A nil *Protector, or one whose zero value is passed, installs no-op
// functions for both fields: this keeps a branch out of the hot path
// rather than testing for nilness on every call.
type Protector struct {
	Lock   func()
	Unlock func()
}

func noopProtect() {}

// resolveProtector validates and normalizes a caller-supplied protector.
// Exactly one of Lock/Unlock set is a configuration error; both nil (or
// p itself nil) yields a no-op pair.
func resolveProtector(p *Protector) (Protector, error) {
	if p == nil {
		return Protector{Lock: noopProtect, Unlock: noopProtect}, nil
	}

	if (p.Lock == nil) != (p.Unlock == nil) {
		return Protector{}, ErrBadProtector
	}

	if p.Lock == nil {
		return Protector{Lock: noopProtect, Unlock: noopProtect}, nil
	}

	return *p, nil
}
