// Fixed-capacity packet buffer pool
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mempool

import (
	"testing"
	"unsafe"

	"github.com/flowplane/ixgo/internal/mmio"
	"github.com/flowplane/ixgo/memory"
	"github.com/flowplane/ixgo/pbuf"
)

const testEntrySize = 2048

// testPool builds a pool over plain heap memory with a synthetic physical
// base, which exercises everything except actual DMA.
func testPool(t *testing.T, count int) *Pool {
	t.Helper()

	backing := make([]byte, count*testEntrySize)
	region := memory.DMARegion{
		Virtual:   mmio.Address(uintptr(unsafe.Pointer(&backing[0]))),
		Size:      count * testEntrySize,
		ChunkSize: count * testEntrySize,
		ChunkPhys: []uint64{0x40000000},
	}

	p := New(count)
	if err := p.Allocate(testEntrySize, region); err != nil {
		t.Fatal(err)
	}

	return p
}

func TestAcquireRelease(t *testing.T) {
	p := testPool(t, 8)

	if p.Free() != 8 {
		t.Fatalf("fresh pool free depth = %d", p.Free())
	}

	buf, ok := p.Acquire()
	if !ok {
		t.Fatal("Acquire on a full pool failed")
	}

	if buf.MempoolHandle() != p.ID() {
		t.Errorf("mempool_handle = %d, pool id = %d", buf.MempoolHandle(), p.ID())
	}

	if owner, ok := FindOwner(buf.MempoolHandle()); !ok || owner != p {
		t.Error("FindOwner does not resolve to the allocating pool")
	}

	p.Release(buf)

	if p.Free() != 8 {
		t.Errorf("free depth after acquire+release = %d", p.Free())
	}
}

func TestSlotZeroFirst(t *testing.T) {
	p := testPool(t, 4)

	buf, ok := p.Acquire()
	if !ok {
		t.Fatal("Acquire failed")
	}

	// Slot addresses ascend from the region base; slot 0 pops first.
	if buf.PhysicalAddress() != 0x40000000 {
		t.Errorf("first acquired buffer is not slot 0: phys %#x", buf.PhysicalAddress())
	}
}

func TestAcquireBatchDrain(t *testing.T) {
	const count = 2048
	p := testPool(t, count)

	bufs := make([]pbuf.Buffer, count)

	if got := p.AcquireBatch(bufs, 0, count); got != count {
		t.Fatalf("AcquireBatch = %d, want %d", got, count)
	}

	if _, ok := p.Acquire(); ok {
		t.Error("Acquire succeeded on an empty pool")
	}

	p.ReleaseBatch(bufs, 0, count)

	if p.Free() != count {
		t.Errorf("free depth after ReleaseBatch = %d", p.Free())
	}
}

func TestAcquireBatchClamps(t *testing.T) {
	p := testPool(t, 4)

	out := make([]pbuf.Buffer, 8)

	// Clamped by free stack depth.
	if got := p.AcquireBatch(out, 0, 8); got != 4 {
		t.Errorf("AcquireBatch over depth = %d, want 4", got)
	}

	p.ReleaseBatch(out, 0, 4)

	// Clamped by output space.
	if got := p.AcquireBatch(out, 6, 8); got != 2 {
		t.Errorf("AcquireBatch over room = %d, want 2", got)
	}
}

func TestSlotAlignment(t *testing.T) {
	p := testPool(t, 16)

	base := p.region.Virtual
	bufs := make([]pbuf.Buffer, 16)
	n := p.AcquireBatch(bufs, 0, 16)

	for i := 0; i < n; i++ {
		off := uintptr(bufs[i].Address() - base)
		if off%testEntrySize != 0 {
			t.Errorf("slot at offset %#x not on an entry boundary", off)
		}
	}
}

func TestForeignReleasePanics(t *testing.T) {
	p1 := testPool(t, 2)
	p2 := testPool(t, 2)

	buf, ok := p1.Acquire()
	if !ok {
		t.Fatal("Acquire failed")
	}

	defer func() {
		if recover() == nil {
			t.Error("Release of a foreign buffer did not panic")
		}
	}()

	p2.Release(buf)
}

func TestEntrySizeTooSmall(t *testing.T) {
	backing := make([]byte, 4096)
	region := memory.DMARegion{
		Virtual: mmio.Address(uintptr(unsafe.Pointer(&backing[0]))),
		Size:    4096,
	}

	p := New(1)
	if err := p.Allocate(pbuf.HeaderSize, region); err == nil {
		t.Error("Allocate accepted an entry size below header+payload minimum")
	}
}

func TestRegionTooSmall(t *testing.T) {
	backing := make([]byte, testEntrySize)
	region := memory.DMARegion{
		Virtual:   mmio.Address(uintptr(unsafe.Pointer(&backing[0]))),
		Size:      testEntrySize,
		ChunkSize: testEntrySize,
		ChunkPhys: []uint64{0},
	}

	p := New(2)
	if err := p.Allocate(testEntrySize, region); err == nil {
		t.Error("Allocate accepted a region smaller than the pool")
	}
}

func TestIDsMonotonic(t *testing.T) {
	a := testPool(t, 1)
	b := testPool(t, 1)

	if b.ID() <= a.ID() {
		t.Errorf("pool ids not increasing: %d then %d", a.ID(), b.ID())
	}
}
