// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAcquireRegionBacksAVariableHeap confirms an OS-backed region obtained
// from AcquireRegion (mmap on Unix, MapViewOfFile on Windows) is just as
// usable as a plain make([]byte, n) slice for NewVariableHeap, and that
// ReleaseRegion accepts the region End hands back.
func TestAcquireRegionBacksAVariableHeap(t *testing.T) {
	region, err := AcquireRegion(osPageSize)
	require.NoError(t, err)
	require.Len(t, region, osPageSize)

	h, err := NewVariableHeap(region, nil)
	require.NoError(t, err)

	p := h.Alloc(64)
	require.NotNil(t, p)
	for i := range p {
		p[i] = byte(i)
	}
	for i, g := range p {
		require.Equal(t, byte(i), g)
	}
	h.Free(p)
	assert.Equal(t, 0, h.Count())

	back := h.End(nil)
	assert.NoError(t, ReleaseRegion(back))
}

func TestAcquireRegionRejectsNothingOnEmptyRelease(t *testing.T) {
	assert.NoError(t, ReleaseRegion(nil))
}
