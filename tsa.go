// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xtc

import (
	"fmt"
	"os"
	"unsafe"
)

// tsaNode is the live-block record TrackingHeap keeps next to every
// payload it hands out. ownerTag stamps the node with the owning heap's
// identity; Free checks it after the index lookup and zeros it when it
// drops the node from the index.
//
// Unlike FixedHeap/VariableHeap, this node is an ordinary Go-allocated
// struct, not a header overlaid onto the payload bytes: payload is a
// separate make()'d slice referenced by a real pointer field, so the Go
// garbage collector scans prev/next/payload like any other struct field
// and keeps the whole live chain reachable on its own, independent of
// whether the caller still holds its copy of the payload slice.
type tsaNode struct {
	ownerTag   uintptr
	payload    []byte
	prev, next *tsaNode
	site       callSite
}

// TrackingHeap forwards every allocation to the Go runtime allocator
// (make, standing in for the platform malloc/free pair this package
// treats as an external collaborator) but tags each block so foreign
// pointers, cross-heap frees and leaks are all detectable.
type TrackingHeap struct {
	tag     uintptr
	protect Protector

	allocatedCount int
	totalBytes     int
	head           *tsaNode             // live-block list, newest first
	index          map[uintptr]*tsaNode // payload base address -> node
}

// NewTrackingHeap creates an empty tracking heap.
func NewTrackingHeap(protect *Protector) (*TrackingHeap, error) {
	pp, err := resolveProtector(protect)
	if err != nil {
		return nil, err
	}

	h := &TrackingHeap{protect: pp, index: make(map[uintptr]*tsaNode)}
	h.tag = uintptr(unsafe.Pointer(h))
	return h, nil
}

func (h *TrackingHeap) valid() bool {
	return h != nil && h.tag == uintptr(unsafe.Pointer(h))
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

// Alloc asks the Go allocator for a fresh payload slice, stamps a node
// with this heap's identity, links it into the live list and indexes it
// by payload address, and returns the payload.
func (h *TrackingHeap) Alloc(size int) []byte {
	if !h.valid() || size <= 0 {
		return nil
	}

	payload := make([]byte, size)
	n := &tsaNode{ownerTag: h.tag, payload: payload, site: captureCallSite(1)}

	h.protect.Lock()
	n.next = h.head
	if h.head != nil {
		h.head.prev = n
	}
	h.head = n
	h.index[addrOf(payload)] = n
	h.allocatedCount++
	h.totalBytes += size
	h.protect.Unlock()

	return payload
}

// Free unlinks the block and stops tracking it. It silently ignores a
// nil slice and rejects, without touching any state, a pointer this heap
// never indexed or whose node tag does not match: the index lookup alone
// catches foreign pointers, cross-heap frees, and (because Free deletes
// the index entry) double frees. The underlying Go memory
// is not explicitly released; it becomes eligible for garbage collection
// once the caller drops its own reference, which is the Go-idiomatic
// equivalent of returning it to the platform allocator.
func (h *TrackingHeap) Free(b []byte) {
	if !h.valid() || len(b) == 0 {
		return
	}

	addr := addrOf(b)

	h.protect.Lock()
	defer h.protect.Unlock()

	n, ok := h.index[addr]
	if !ok || n.ownerTag != h.tag {
		return
	}

	if n.prev != nil {
		n.prev.next = n.next
	} else {
		h.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}

	delete(h.index, addr)
	h.allocatedCount--
	h.totalBytes -= len(n.payload)
	n.ownerTag = 0
	n.prev, n.next = nil, nil
}

// Count returns the number of currently live allocations.
func (h *TrackingHeap) Count() int {
	if !h.valid() {
		return 0
	}

	h.protect.Lock()
	defer h.protect.Unlock()
	return h.allocatedCount
}

// TotalBytes returns the running sum of payload bytes currently handed
// out, restoring the original's xss_total_size accessor.
func (h *TrackingHeap) TotalBytes() int {
	if !h.valid() {
		return 0
	}

	h.protect.Lock()
	defer h.protect.Unlock()
	return h.totalBytes
}

// End reports any surviving blocks (dumping their call sites when built
// with the xtcdebug tag), clears the handle, and returns nil: unlike
// FixedHeap/VariableHeap, TrackingHeap owns no single caller-supplied
// region to hand back. Leaked blocks are not released to the underlying
// allocator, they are left for Go's garbage collector, the deliberate
// policy carried over from the original's xss_end.
func (h *TrackingHeap) End(stats *Stats) []byte {
	if !h.valid() {
		return nil
	}

	h.protect.Lock()
	count, total, head := h.allocatedCount, h.totalBytes, h.head
	h.protect.Unlock()

	if count > 0 {
		reportLeak("TrackingHeap", count)
		dumpTSA(head)
	}

	if stats != nil {
		max := 0
		for n := head; n != nil; n = n.next {
			if len(n.payload) > max {
				max = len(n.payload)
			}
		}
		*stats = Stats{Count: count, TotalSize: total, MaxBlockSize: max}
	}

	*h = TrackingHeap{}
	return nil
}

// Dump prints one line per currently live block, with its call site,
// when this package is built with the xtcdebug tag. It is a no-op
// (after validating the handle) when built without it.
func (h *TrackingHeap) Dump() {
	if !h.valid() {
		return
	}
	h.protect.Lock()
	head := h.head
	h.protect.Unlock()
	dumpTSA(head)
}

// dumpTSA prints one line per surviving block when built with the
// xtcdebug tag; it is a silent no-op otherwise (debugBuild is a
// compile-time constant, so the non-debug branch compiles to nothing).
func dumpTSA(head *tsaNode) {
	if !debugBuild {
		return
	}
	for n := head; n != nil; n = n.next {
		fmt.Fprintf(os.Stderr, "xtc: leaked block size=%d from %s\n", len(n.payload), n.site)
	}
}
