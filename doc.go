// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xtc implements a small family of special-purpose memory
// allocators over a caller-supplied contiguous byte region, plus a
// tracking allocator that forwards to the Go runtime allocator.
//
//   - FixedHeap: slot allocator for equal-sized elements, O(1) alloc/free.
//   - VariableHeap: best-fit free-list allocator with splitting and
//     neighbor coalescing, for mixed-size allocation out of one region.
//   - TrackingHeap: forwards to make()/the Go allocator but tags every
//     block so foreign pointers are rejected and leaks can be reported.
//
// All three implement the Allocator interface and share the same
// locking discipline: every mutating call acquires the handle's
// Protector on entry and releases it on every exit path, and every call
// validates the handle's identity tag before touching state, returning
// the neutral failure value (nil slice or zero count) otherwise.
//
// None of the three allocators are safe for concurrent use without a
// Protector; none are lock-free; alignment is to the machine word only.
package xtc
