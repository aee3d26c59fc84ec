// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command xtcdemo is a minimal embedding example for the xtc package: it
// is not part of the library's public contract, only a worked example of
// wiring an OS-backed region to a VariableHeap, a fixed-slot pool to a
// FixedHeap, and the GC-backed TrackingHeap, all three driven through the
// shared Allocator interface.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/theksoft/xtc"
)

func runWith(name string, a xtc.Allocator, sizes []int) {
	var live [][]byte
	for _, n := range sizes {
		b := a.Alloc(n)
		if b == nil {
			fmt.Printf("%s: alloc(%d) failed\n", name, n)
			continue
		}
		live = append(live, b)
	}
	fmt.Printf("%s: %d live after allocating\n", name, a.Count())

	for _, b := range live {
		a.Free(b)
	}

	var stats xtc.Stats
	a.End(&stats)
	fmt.Printf("%s: end, leaked=%d\n", name, stats.Count)
}

func main() {
	slotSize := flag.Int("slot", 32, "FixedHeap slot size in bytes")
	regionSize := flag.Int("region", 1<<16, "VariableHeap region size in bytes")
	flag.Parse()

	sizes := []int{8, 16, 24, 40, 64, 128}

	region, err := xtc.AcquireRegion(*regionSize)
	if err != nil {
		log.Fatal(err)
	}
	vsa, err := xtc.NewVariableHeap(region, nil)
	if err != nil {
		log.Fatal(err)
	}
	runWith("vsa", vsa, sizes)
	if err := xtc.ReleaseRegion(region); err != nil {
		log.Fatal(err)
	}

	fsaRegion := make([]byte, 64*(*slotSize+64))
	fsa, err := xtc.NewFixedHeap(fsaRegion, *slotSize, nil)
	if err != nil {
		log.Fatal(err)
	}
	fixedSizes := make([]int, 0, len(sizes))
	for range sizes {
		fixedSizes = append(fixedSizes, *slotSize)
	}
	runWith("fsa", fsa, fixedSizes)

	tsa, err := xtc.NewTrackingHeap(nil)
	if err != nil {
		log.Fatal(err)
	}
	runWith("tsa", tsa, sizes)

	os.Exit(0)
}
