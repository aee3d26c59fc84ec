// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xtc

import "errors"

// Allocator is the capability set shared by FixedHeap, VariableHeap and
// TrackingHeap. A caller holding only this interface cannot tell which
// concrete backend it is talking to.
type Allocator interface {
	// Alloc returns a size-addressable payload slice, or nil if the
	// request cannot be satisfied (zero size, wrong size for a fixed
	// heap, or no fitting free block).
	Alloc(size int) []byte

	// Free returns a payload previously obtained from Alloc. It is a
	// silent no-op for a nil slice, a foreign pointer, a cross-heap
	// pointer, a double free, or a pointer into an already-free block.
	Free(b []byte)

	// Count reports the number of currently live allocations. It
	// returns 0 for an invalid (cleared) handle.
	Count() int

	// End reports any blocks still allocated to stderr (always; an
	// xtcdebug build adds per-block call sites), clears the handle, and
	// returns the region the handle was initialized with, or nil for a
	// TrackingHeap, which has none. If stats is non-nil it is filled
	// with the final leak counters.
	End(stats *Stats) []byte
}

// Stats carries either leak counters (End) or free/allocated block
// statistics (VariableHeap.FreeStats / AllocatedStats).
type Stats struct {
	Count        int // number of blocks
	TotalSize    int // sum of payload sizes across Count blocks
	MaxBlockSize int // largest single payload size across Count blocks
}

var (
	_ Allocator = (*FixedHeap)(nil)
	_ Allocator = (*VariableHeap)(nil)
	_ Allocator = (*TrackingHeap)(nil)
)

// Sentinel errors returned only by the constructors (NewFixedHeap,
// NewVariableHeap, NewTrackingHeap) for configuration failures. Every
// other public entry point flattens failure to the neutral value (nil
// slice, zero count) per the allocator's error-propagation policy: user
// errors never panic.
var (
	// ErrNilRegion is returned by NewFixedHeap and NewVariableHeap when
	// the caller-supplied region is nil or empty.
	ErrNilRegion = errors.New("xtc: nil or empty region")

	// ErrRegionTooSmall is returned by NewFixedHeap and NewVariableHeap
	// when the region cannot hold even a single node.
	ErrRegionTooSmall = errors.New("xtc: region too small for one node")

	// ErrBadProtector is returned by any constructor when exactly one of
	// Lock/Unlock is set; the protection pair must be both-set or both-nil.
	ErrBadProtector = errors.New("xtc: protector must set both Lock and Unlock, or neither")

	// ErrBadSlotSize is returned by NewFixedHeap for a non-positive slot
	// size.
	ErrBadSlotSize = errors.New("xtc: slot size must be positive")
)

// corrupted reports an internal invariant violation: book-keeping that
// disagrees with itself, such as a counter that disagrees with what an
// address-order walk finds, or a free list head that has a predecessor.
// This is the only case any of the three allocators
// aborts the process on; it is never reached by user error, only by a
// bug in this package or memory corruption from outside the API surface.
func corrupted(why string) {
	panic("xtc: internal invariant violated: " + why)
}
