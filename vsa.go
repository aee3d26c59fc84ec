// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xtc

import (
	"fmt"
	"os"
	"unsafe"
)

// vsaNode is the header preceding every block (free or allocated) in a
// VariableHeap's region. Every node sits on two doubly-linked lists at
// once: blockPrev/blockNext (address order, all blocks) and
// freePrev/freeNext (size order, free blocks only).
type vsaNode struct {
	ownerTag             uintptr
	size                 int
	blockPrev, blockNext *vsaNode
	freePrev, freeNext   *vsaNode
	site                 callSite
}

var vsaHeaderSize = int(unsafe.Sizeof(vsaNode{}))

// VariableHeap is a best-fit free-list allocator over a caller-supplied
// region: splitting on alloc, three-way coalescing on free. This is the
// hard core of the package, restoring the original's xtv_alloc/xtv_free
// algorithms.
type VariableHeap struct {
	tag     uintptr
	protect Protector

	region []byte

	blockHead          *vsaNode // address-ordered list of every block
	freeHead, freeTail *vsaNode // size-ordered list of free blocks, non-increasing

	allocatedCount int
}

// NewVariableHeap installs one maximal free block spanning region and
// returns the ready-to-use heap.
func NewVariableHeap(region []byte, protect *Protector) (*VariableHeap, error) {
	if len(region) == 0 {
		return nil, ErrNilRegion
	}
	if vsaHeaderSize >= len(region) {
		return nil, ErrRegionTooSmall
	}

	pp, err := resolveProtector(protect)
	if err != nil {
		return nil, err
	}

	h := &VariableHeap{protect: pp, region: region}
	h.tag = uintptr(unsafe.Pointer(h))

	n := h.nodeAt(0)
	*n = vsaNode{}
	n.ownerTag = h.tag
	n.size = len(region) - vsaHeaderSize
	h.blockHead = n
	h.freeHead = n
	h.freeTail = n

	return h, nil
}

func (h *VariableHeap) valid() bool {
	return h != nil && h.tag == uintptr(unsafe.Pointer(h))
}

func (h *VariableHeap) nodeAt(offset int) *vsaNode {
	return (*vsaNode)(unsafe.Pointer(&h.region[offset]))
}

func (h *VariableHeap) offsetOf(n *vsaNode) int {
	return int(uintptr(unsafe.Pointer(n)) - uintptr(unsafe.Pointer(&h.region[0])))
}

func (h *VariableHeap) payload(n *vsaNode) []byte {
	start := h.offsetOf(n) + vsaHeaderSize
	end := start + n.size
	return h.region[start:end:end]
}

// isFree reports whether n currently sits on the free list: n is the
// free list head, or n has a free-list predecessor. This avoids a
// dedicated flag field. A free list head that has a predecessor breaks
// the invariant this test relies on and is reported through corrupted.
func (h *VariableHeap) isFree(n *vsaNode) bool {
	if n == nil {
		return false
	}
	if n == h.freeHead {
		if n.freePrev != nil {
			corrupted("free list head has a predecessor")
		}
		return true
	}
	return n.freePrev != nil
}

// --- free-list surgery -----------------------------------------------

func (h *VariableHeap) removeFree(n *vsaNode) {
	if n.freePrev != nil {
		n.freePrev.freeNext = n.freeNext
	} else {
		h.freeHead = n.freeNext
	}
	if n.freeNext != nil {
		n.freeNext.freePrev = n.freePrev
	} else {
		h.freeTail = n.freePrev
	}
	n.freePrev, n.freeNext = nil, nil
}

func (h *VariableHeap) prependFreeHead(n *vsaNode) {
	n.freeNext = h.freeHead
	n.freePrev = nil
	if h.freeHead != nil {
		h.freeHead.freePrev = n
	} else {
		h.freeTail = n
	}
	h.freeHead = n
}

func (h *VariableHeap) appendFreeTail(n *vsaNode) {
	n.freePrev = h.freeTail
	n.freeNext = nil
	if h.freeTail != nil {
		h.freeTail.freeNext = n
	} else {
		h.freeHead = n
	}
	h.freeTail = n
}

func (h *VariableHeap) insertFreeBefore(n, before *vsaNode) {
	n.freeNext = before
	n.freePrev = before.freePrev
	if before.freePrev != nil {
		before.freePrev.freeNext = n
	} else {
		h.freeHead = n
	}
	before.freePrev = n
}

func (h *VariableHeap) insertFreeAfter(n, after *vsaNode) {
	n.freePrev = after
	n.freeNext = after.freeNext
	if after.freeNext != nil {
		after.freeNext.freePrev = n
	} else {
		h.freeTail = n
	}
	after.freeNext = n
}

// forwardInsert walks free.next from start, skipping every element
// whose size is still >= n.size (ties included), and inserts n before
// the first strictly smaller one (or at the tail if none). Skipping
// ties rather than stopping at the first one keeps same-size nodes
// queued in the order they reach this helper. Used only by Alloc's
// split path.
func (h *VariableHeap) forwardInsert(n, start *vsaNode) {
	cur := start
	for cur != nil && cur.size >= n.size {
		cur = cur.freeNext
	}
	if cur == nil {
		h.appendFreeTail(n)
		return
	}
	h.insertFreeBefore(n, cur)
}

// reverseInsert walks free.prev from start, skipping every element
// whose size is still <= n.size (ties included), and inserts n after
// the first strictly larger one (or at the head if none). Skipping
// ties means a block freed later than an equal-sized block always
// lands closer to free_head than it: best-fit search walks from
// free_tail, so among equal-size candidates the earliest-freed one is
// found first. reverseInsert is idempotent: if n is already free at
// the position it would choose, it returns without touching the list.
// Used by Free's merge path.
func (h *VariableHeap) reverseInsert(n, start *vsaNode) {
	cur := start
	for cur != nil && cur.size <= n.size {
		cur = cur.freePrev
	}

	if cur == nil {
		if h.isFree(n) {
			if n == h.freeHead {
				return
			}
			h.removeFree(n)
		}
		h.prependFreeHead(n)
		return
	}

	if h.isFree(n) {
		if n.freePrev == cur {
			return
		}
		h.removeFree(n)
	}
	h.insertFreeAfter(n, cur)
}

// absorbNext merges a node's immediate address-order successor into it,
// destroying the successor's header and extending the node's size. Both
// "merge forward" (candidate absorbs N) and "merge backward" (P absorbs
// candidate) reduce to this same primitive, applied to different nodes.
func (h *VariableHeap) absorbNext(dst *vsaNode) {
	next := dst.blockNext
	dst.size += next.size + vsaHeaderSize
	dst.blockNext = next.blockNext
	if next.blockNext != nil {
		next.blockNext.blockPrev = dst
	}
}

// --- public API --------------------------------------------------------

// Alloc finds the smallest free block that fits size (best-fit), splits
// off the remainder when it is large enough to hold its own header, and
// returns the payload. It returns nil for a zero/negative size or when
// no free block is large enough.
func (h *VariableHeap) Alloc(size int) []byte {
	if !h.valid() || size <= 0 {
		return nil
	}
	need := roundupWord(size)

	h.protect.Lock()
	defer h.protect.Unlock()

	var picked *vsaNode
	for n := h.freeTail; n != nil; n = n.freePrev {
		if n.size >= need {
			picked = n
			break
		}
	}
	if picked == nil {
		return nil
	}

	formerFreeNext := picked.freeNext
	h.removeFree(picked)

	remainder := picked.size - need
	if remainder > vsaHeaderSize {
		offset := h.offsetOf(picked) + vsaHeaderSize + need
		rem := h.nodeAt(offset)
		*rem = vsaNode{}
		rem.ownerTag = h.tag
		rem.size = remainder - vsaHeaderSize

		rem.blockNext = picked.blockNext
		rem.blockPrev = picked
		if picked.blockNext != nil {
			picked.blockNext.blockPrev = rem
		}
		picked.blockNext = rem
		picked.size = need

		h.forwardInsert(rem, formerFreeNext)
	}

	picked.site = captureCallSite(1)
	h.allocatedCount++
	return h.payload(picked)[:size]
}

// Free locates the header preceding b, validates ownership, computes a
// merge plan from the free/allocated state of b's address-order
// neighbors, applies it, and reinserts the surviving block into the
// free list at the computed restart point.
func (h *VariableHeap) Free(b []byte) {
	if !h.valid() || len(b) == 0 {
		return
	}

	h.protect.Lock()
	defer h.protect.Unlock()

	ptr := uintptr(unsafe.Pointer(&b[0]))
	base := uintptr(unsafe.Pointer(&h.region[0]))
	end := base + uintptr(len(h.region))
	if ptr <= base || ptr >= end {
		return
	}

	candidateAddr := ptr - uintptr(vsaHeaderSize)
	if candidateAddr < base {
		return
	}
	candidate := (*vsaNode)(unsafe.Pointer(candidateAddr))
	if candidate.ownerTag != h.tag {
		return
	}
	if h.isFree(candidate) {
		return
	}

	P, N := candidate.blockPrev, candidate.blockNext
	Pf, Nf := h.isFree(P), h.isFree(N)

	var final, restart *vsaNode
	needsInsert := false

	switch {
	case !Pf && !Nf:
		final = candidate
		restart = h.freeTail
		needsInsert = true

	case !Pf && Nf:
		formerNPrev := N.freePrev
		h.removeFree(N)
		h.absorbNext(candidate)
		final = candidate
		restart = formerNPrev
		needsInsert = true

	case Pf && !Nf:
		finalSize := candidate.size + vsaHeaderSize + P.size
		decide := P.freePrev == nil || finalSize > P.freePrev.size
		if decide {
			formerPPrev := P.freePrev
			h.removeFree(P)
			h.absorbNext(P)
			final = P
			restart = formerPPrev
			needsInsert = true
		} else {
			h.absorbNext(P)
			final = P
		}

	default: // Pf && Nf
		if P.size >= N.size {
			h.removeFree(N)
			finalSize := candidate.size + 2*vsaHeaderSize + P.size + N.size
			decide := P.freePrev == nil || finalSize > P.freePrev.size
			if decide {
				formerPPrev := P.freePrev
				h.removeFree(P)
				h.absorbNext(candidate)
				h.absorbNext(P)
				final = P
				restart = formerPPrev
				needsInsert = true
			} else {
				h.absorbNext(candidate)
				h.absorbNext(P)
				final = P
			}
		} else {
			formerNPrev := N.freePrev
			h.removeFree(N)
			h.removeFree(P)
			h.absorbNext(candidate)
			h.absorbNext(P)
			final = P
			restart = formerNPrev
			needsInsert = true
		}
	}

	if needsInsert {
		if restart == final {
			restart = final.freePrev
		}
		h.reverseInsert(final, restart)
	}

	h.allocatedCount--
}

// Count returns the number of currently live allocations.
func (h *VariableHeap) Count() int {
	if !h.valid() {
		return 0
	}
	h.protect.Lock()
	defer h.protect.Unlock()
	return h.allocatedCount
}

// MaxFreeBlock returns the size of the largest free block, 0 if none.
func (h *VariableHeap) MaxFreeBlock() int {
	if !h.valid() {
		return 0
	}
	h.protect.Lock()
	defer h.protect.Unlock()
	if h.freeHead == nil {
		return 0
	}
	return h.freeHead.size
}

// FreeStats walks the free list and fills stats with its count, total
// size and largest member.
func (h *VariableHeap) FreeStats(stats *Stats) {
	if !h.valid() || stats == nil {
		return
	}
	h.protect.Lock()
	defer h.protect.Unlock()

	var s Stats
	for n := h.freeHead; n != nil; n = n.freeNext {
		s.Count++
		s.TotalSize += n.size
		if n.size > s.MaxBlockSize {
			s.MaxBlockSize = n.size
		}
	}
	*stats = s
}

// AllocatedStats walks the address-ordered block list, skipping free
// blocks, and fills stats with the count/total/max of what remains. It
// asserts that the walked count agrees with the incrementally
// maintained allocatedCount, since the two disagreeing would mean this
// package's own bookkeeping is corrupted.
func (h *VariableHeap) AllocatedStats(stats *Stats) {
	if !h.valid() || stats == nil {
		return
	}
	h.protect.Lock()
	defer h.protect.Unlock()

	var s Stats
	for n := h.blockHead; n != nil; n = n.blockNext {
		if h.isFree(n) {
			continue
		}
		s.Count++
		s.TotalSize += n.size
		if n.size > s.MaxBlockSize {
			s.MaxBlockSize = n.size
		}
	}
	if s.Count != h.allocatedCount {
		corrupted("allocated block walk count disagrees with allocatedCount")
	}
	*stats = s
}

// Dump prints one line per currently allocated block, with its call
// site when this package is built with the xtcdebug tag. It is a no-op
// (after validating the handle) when built without it.
func (h *VariableHeap) Dump() {
	if !h.valid() {
		return
	}
	h.protect.Lock()
	head := h.blockHead
	isFree := h.isFree
	h.protect.Unlock()
	dumpVSA(head, isFree)
}

// End reports any surviving allocations, clears the handle and returns
// the region base. It checks no invariant: the stats it fills come from
// an address-order walk that is not compared against allocatedCount.
func (h *VariableHeap) End(stats *Stats) []byte {
	if !h.valid() {
		return nil
	}

	h.protect.Lock()
	region := h.region
	blockHead := h.blockHead
	allocated := h.allocatedCount
	isFree := h.isFree
	h.protect.Unlock()

	var s Stats
	for n := blockHead; n != nil; n = n.blockNext {
		if isFree(n) {
			continue
		}
		s.Count++
		s.TotalSize += n.size
		if n.size > s.MaxBlockSize {
			s.MaxBlockSize = n.size
		}
	}

	if allocated > 0 {
		reportLeak("VariableHeap", allocated)
		dumpVSA(blockHead, isFree)
	}

	if stats != nil {
		*stats = s
	}

	*h = VariableHeap{}
	return region
}

// dumpVSA prints one line per block for which isFree reports false; it
// is a no-op unless this package was built with the xtcdebug tag.
func dumpVSA(head *vsaNode, isFree func(*vsaNode) bool) {
	if !debugBuild {
		return
	}
	for n := head; n != nil; n = n.blockNext {
		if isFree(n) {
			continue
		}
		fmt.Fprintf(os.Stderr, "xtc: block size=%d from %s\n", n.size, n.site)
	}
}
