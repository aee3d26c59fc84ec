// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackingHeapAllocFree(t *testing.T) {
	h, err := NewTrackingHeap(nil)
	require.NoError(t, err)

	p := h.Alloc(24)
	require.NotNil(t, p)
	assert.Equal(t, 24, len(p))
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 24, h.TotalBytes())

	h.Free(p)
	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 0, h.TotalBytes())
}

func TestTrackingHeapLiveCountMatchesOutstandingAllocs(t *testing.T) {
	h, err := NewTrackingHeap(nil)
	require.NoError(t, err)

	a := h.Alloc(8)
	b := h.Alloc(8)
	c := h.Alloc(8)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)
	assert.Equal(t, 3, h.Count())

	h.Free(b)
	assert.Equal(t, 2, h.Count())

	h.Free(a)
	h.Free(c)
	assert.Equal(t, 0, h.Count())
}

func TestTrackingHeapDoubleFreeIsNoop(t *testing.T) {
	h, err := NewTrackingHeap(nil)
	require.NoError(t, err)

	p := h.Alloc(8)
	require.NotNil(t, p)
	h.Free(p)
	assert.Equal(t, 0, h.Count())

	h.Free(p) // the first Free deleted the index entry and zeroed the node's ownerTag
	assert.Equal(t, 0, h.Count())
}

// TestTrackingHeapRejectsForeignTag confirms a pointer from a different
// TrackingHeap instance is rejected because the other heap never indexed
// its address, the same lookup TrackingHeap uses to reject cross-heap
// frees and double frees.
func TestTrackingHeapRejectsForeignTag(t *testing.T) {
	hA, err := NewTrackingHeap(nil)
	require.NoError(t, err)
	hB, err := NewTrackingHeap(nil)
	require.NoError(t, err)

	p := hA.Alloc(16)
	require.NotNil(t, p)

	hB.Free(p)
	assert.Equal(t, 1, hA.Count())
	assert.Equal(t, 0, hB.Count())

	hA.Free(p)
	assert.Equal(t, 0, hA.Count())
}

// TestTrackingHeapEndReportsLeak reproduces the TSA leak-report scenario:
// three allocations, one freed, end's stats out-parameter must show two
// surviving blocks and the handle must be cleared.
func TestTrackingHeapEndReportsLeak(t *testing.T) {
	h, err := NewTrackingHeap(nil)
	require.NoError(t, err)

	a := h.Alloc(10)
	b := h.Alloc(20)
	c := h.Alloc(30)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)

	h.Free(b)

	var stats Stats
	region := h.End(&stats)
	assert.Nil(t, region, "TrackingHeap owns no single region to hand back")
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 40, stats.TotalSize)
	assert.Equal(t, 30, stats.MaxBlockSize)
	assert.Equal(t, 0, h.Count(), "handle must be cleared after End")
}

func TestTrackingHeapRejectsNilAndZeroSize(t *testing.T) {
	h, err := NewTrackingHeap(nil)
	require.NoError(t, err)

	assert.Nil(t, h.Alloc(0))
	assert.Nil(t, h.Alloc(-1))
	h.Free(nil)
	assert.Equal(t, 0, h.Count())
}
