// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xtc

import "unsafe"

// fsaNode is the per-slot header threaded into the free list. next is
// only meaningful while the slot is free; allocated distinguishes live
// slots from free ones so a foreign-looking pointer that happens to land
// on a slot boundary is still rejected on Free.
type fsaNode struct {
	next      *fsaNode
	allocated bool
}

var fsaHeaderSize = int(unsafe.Sizeof(fsaNode{}))

// FixedHeap is a slot allocator: every region carved up into equal-sized
// slots of exactly one configured size, O(1) alloc and free via a
// singly-linked free-list stack. Restores xsh/xstrhp's structure heap.
type FixedHeap struct {
	tag     uintptr
	protect Protector

	region []byte

	requestedSize int // size as configured at NewFixedHeap, what Alloc compares against
	slotSize      int // requestedSize rounded up to the machine word
	nodeSize      int // slotSize + header

	freeHead  *fsaNode
	allocated int
	free      int
}

// NewFixedHeap carves region into slots of slotSize bytes each (rounded
// internally to word alignment) and threads them into a free list in
// address order. It fails if the region cannot hold at least one slot.
func NewFixedHeap(region []byte, slotSize int, protect *Protector) (*FixedHeap, error) {
	if len(region) == 0 {
		return nil, ErrNilRegion
	}
	if slotSize <= 0 {
		return nil, ErrBadSlotSize
	}

	pp, err := resolveProtector(protect)
	if err != nil {
		return nil, err
	}

	aligned := roundupWord(slotSize)
	node := aligned + fsaHeaderSize
	if node > len(region) {
		return nil, ErrRegionTooSmall
	}

	h := &FixedHeap{
		protect:       pp,
		region:        region,
		requestedSize: slotSize,
		slotSize:      aligned,
		nodeSize:      node,
	}
	h.tag = uintptr(unsafe.Pointer(h))

	count := len(region) / node
	// Thread in reverse index order so freeHead ends up at the lowest
	// address: address-order free list, head first.
	for i := count - 1; i >= 0; i-- {
		n := h.nodeAt(i * node)
		n.allocated = false
		n.next = h.freeHead
		h.freeHead = n
	}
	h.free = count

	return h, nil
}

func (h *FixedHeap) valid() bool {
	return h != nil && h.tag == uintptr(unsafe.Pointer(h))
}

func (h *FixedHeap) nodeAt(offset int) *fsaNode {
	return (*fsaNode)(unsafe.Pointer(&h.region[offset]))
}

func (h *FixedHeap) payload(n *fsaNode) []byte {
	base := uintptr(unsafe.Pointer(n)) + uintptr(fsaHeaderSize)
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), h.requestedSize)
}

// Alloc returns a slotSize-addressable payload, or nil if size does not
// match the heap's configured slot size or no slot remains free. O(1).
func (h *FixedHeap) Alloc(size int) []byte {
	if !h.valid() {
		return nil
	}

	h.protect.Lock()
	defer h.protect.Unlock()

	if size != h.requestedSize {
		return nil
	}

	n := h.freeHead
	if n == nil {
		return nil
	}

	h.freeHead = n.next
	n.next = nil
	n.allocated = true
	h.allocated++
	h.free--

	return h.payload(n)
}

// Free returns a slot to the free list. It silently ignores a nil slice,
// a pointer outside the region, a misaligned/interior pointer (caught by
// the modular-offset check) and a double free (caught by the allocated
// flag). O(1).
func (h *FixedHeap) Free(b []byte) {
	if !h.valid() || len(b) == 0 {
		return
	}

	h.protect.Lock()
	defer h.protect.Unlock()

	ptr := uintptr(unsafe.Pointer(&b[0]))
	base := uintptr(unsafe.Pointer(&h.region[0]))
	end := base + uintptr(len(h.region))
	if ptr < base || ptr >= end {
		return
	}

	headerAddr := ptr - uintptr(fsaHeaderSize)
	if (headerAddr-base)%uintptr(h.nodeSize) != 0 {
		return
	}

	n := (*fsaNode)(unsafe.Pointer(headerAddr))
	if !n.allocated {
		return
	}

	n.allocated = false
	n.next = h.freeHead
	h.freeHead = n
	h.allocated--
	h.free++
}

// Count returns the number of currently allocated slots.
func (h *FixedHeap) Count() int {
	if !h.valid() {
		return 0
	}

	h.protect.Lock()
	defer h.protect.Unlock()
	return h.allocated
}

// FreeCount returns the number of currently free slots by walking the
// free list. It is O(n) and meant for diagnostics only, never the hot
// path (mirrors the original xsh_free_count, which documents the same
// tradeoff).
func (h *FixedHeap) FreeCount() int {
	if !h.valid() {
		return 0
	}

	h.protect.Lock()
	defer h.protect.Unlock()

	n, count := h.freeHead, 0
	for n != nil {
		count++
		n = n.next
	}
	return count
}

// End validates there are no leaks, clears the handle, and returns the
// region base the heap was created with.
func (h *FixedHeap) End(stats *Stats) []byte {
	if !h.valid() {
		return nil
	}

	h.protect.Lock()
	region := h.region
	allocated := h.allocated
	h.protect.Unlock()

	if allocated > 0 {
		reportLeak("FixedHeap", allocated)
	}

	if stats != nil {
		maxBlock := 0
		if allocated > 0 {
			maxBlock = h.requestedSize
		}
		*stats = Stats{Count: allocated, TotalSize: allocated * h.requestedSize, MaxBlockSize: maxBlock}
	}

	*h = FixedHeap{}
	return region
}
