// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xtc

import (
	"math"
	"testing"

	"github.com/cznic/mathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedHeapAllocFree(t *testing.T) {
	region := make([]byte, 256)
	h, err := NewFixedHeap(region, 16, nil)
	require.NoError(t, err)

	p := h.Alloc(16)
	require.NotNil(t, p)
	assert.Equal(t, 16, len(p))
	assert.Equal(t, 1, h.Count())

	h.Free(p)
	assert.Equal(t, 0, h.Count())
}

func TestFixedHeapWrongSizeRejected(t *testing.T) {
	region := make([]byte, 256)
	h, err := NewFixedHeap(region, 16, nil)
	require.NoError(t, err)

	assert.Nil(t, h.Alloc(8))
	assert.Nil(t, h.Alloc(32))
	assert.Equal(t, 0, h.Count())
}

func TestFixedHeapExhaustion(t *testing.T) {
	region := make([]byte, 256)
	h, err := NewFixedHeap(region, 16, nil)
	require.NoError(t, err)

	for h.Alloc(16) != nil {
	}
	slots := h.Count()
	require.Greater(t, slots, 0)
	assert.Nil(t, h.Alloc(16), "heap should be exhausted")
	assert.Equal(t, 0, h.FreeCount())
	assert.Equal(t, slots, h.Count())
}

func TestFixedHeapCountersConstant(t *testing.T) {
	region := make([]byte, 512)
	h, err := NewFixedHeap(region, 24, nil)
	require.NoError(t, err)

	total := h.Count() + h.FreeCount()

	var ptrs [][]byte
	for {
		p := h.Alloc(24)
		if p == nil {
			break
		}
		ptrs = append(ptrs, p)
		assert.Equal(t, total, h.Count()+h.FreeCount())
	}
	for _, p := range ptrs {
		h.Free(p)
		assert.Equal(t, total, h.Count()+h.FreeCount())
	}
}

func TestFixedHeapDoubleFreeIsNoop(t *testing.T) {
	region := make([]byte, 256)
	h, err := NewFixedHeap(region, 16, nil)
	require.NoError(t, err)

	p := h.Alloc(16)
	require.NotNil(t, p)
	h.Free(p)
	assert.Equal(t, 0, h.Count())

	h.Free(p) // second free of the same slot must be a silent no-op
	assert.Equal(t, 0, h.Count())
}

// TestFixedHeapForeignPointer reproduces the FSA foreign-pointer scenario:
// two FSAs of identical slot size, a pointer from A handed to B's Free is
// ignored, and A still reclaims it normally afterward.
func TestFixedHeapForeignPointer(t *testing.T) {
	regionA := make([]byte, 256)
	regionB := make([]byte, 256)
	hA, err := NewFixedHeap(regionA, 16, nil)
	require.NoError(t, err)
	hB, err := NewFixedHeap(regionB, 16, nil)
	require.NoError(t, err)

	p := hA.Alloc(16)
	require.NotNil(t, p)
	countA, countB := hA.Count(), hB.Count()

	hB.Free(p)
	assert.Equal(t, countA, hA.Count())
	assert.Equal(t, countB, hB.Count())

	hA.Free(p)
	assert.Equal(t, countA-1, hA.Count())
}

func TestFixedHeapEndReportsLeak(t *testing.T) {
	region := make([]byte, 256)
	h, err := NewFixedHeap(region, 16, nil)
	require.NoError(t, err)

	require.NotNil(t, h.Alloc(16))
	require.NotNil(t, h.Alloc(16))

	var stats Stats
	got := h.End(&stats)
	assert.Equal(t, len(region), len(got))
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 0, h.Count(), "handle must be cleared after End")
}

// TestFixedHeapSoak mirrors the teacher's fuzz-style alloc/verify/shuffle/free
// loop: every allocation is one slot, and a deterministic seekable PRNG
// drives payload content and free order so the whole run can be replayed
// and checked byte for byte.
func TestFixedHeapSoak(t *testing.T) {
	const slotSize = 32
	region := make([]byte, slotSize*64+fsaHeaderSize*64)
	h, err := NewFixedHeap(region, slotSize, nil)
	require.NoError(t, err)

	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	require.NoError(t, err)
	rng.Seed(42)
	pos := rng.Pos()

	var slots [][]byte
	for {
		p := h.Alloc(slotSize)
		if p == nil {
			break
		}
		for i := range p {
			p[i] = byte(rng.Next())
		}
		slots = append(slots, p)
	}
	require.NotEmpty(t, slots)

	rng.Seek(pos)
	for _, p := range slots {
		for i, g := range p {
			e := byte(rng.Next())
			require.Equal(t, e, g, "corrupted slot content at index %d", i)
		}
	}

	for i := range slots {
		j := rng.Next() % len(slots)
		slots[i], slots[j] = slots[j], slots[i]
	}
	for _, p := range slots {
		h.Free(p)
	}
	assert.Equal(t, 0, h.Count())
}
