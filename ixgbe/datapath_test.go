// Batched RX/TX datapath
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ixgbe

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/flowplane/ixgo/internal/mmio"
	"github.com/flowplane/ixgo/memory"
	"github.com/flowplane/ixgo/mempool"
	"github.com/flowplane/ixgo/pbuf"
)

// testHarness is a driver wired to heap-backed fake BAR, ring and pool
// memory, enough to drive the datapath without hardware.
type testHarness struct {
	d      *Driver
	bar    []byte
	rxRing []byte
	txRing []byte
	pool   *mempool.Pool
}

func addrOf(b []byte) mmio.Address {
	return mmio.Address(uintptr(unsafe.Pointer(&b[0])))
}

func newTestHarness(t *testing.T, rxCap, txCap, bufCount int) *testHarness {
	t.Helper()

	h := &testHarness{
		bar: make([]byte, 1<<16),
	}

	backing := make([]byte, bufCount*EntrySize)
	region := memory.DMARegion{
		Virtual:   addrOf(backing),
		Size:      bufCount * EntrySize,
		ChunkSize: bufCount * EntrySize,
		ChunkPhys: []uint64{0x80000000},
	}

	h.pool = mempool.New(bufCount)
	if err := h.pool.Allocate(EntrySize, region); err != nil {
		t.Fatal(err)
	}

	h.d = &Driver{bar: addrOf(h.bar)}

	if rxCap > 0 {
		h.rxRing = make([]byte, rxCap*descriptorSize)
		q := newRXQueue(addrOf(h.rxRing), rxCap, h.pool)

		for i := 0; i < rxCap; i++ {
			buf, ok := h.pool.Acquire()
			if !ok {
				t.Fatal("pool too small to arm the RX ring")
			}
			q.install(i, buf)
		}

		h.d.rx = []*rxQueue{q}
	}

	if txCap > 0 {
		h.txRing = make([]byte, txCap*descriptorSize)
		h.d.tx = []*txQueue{newTXQueue(addrOf(h.txRing), txCap)}
	}

	return h
}

// completeRX simulates the NIC finishing slot i with a frame of the given
// length.
func (h *testHarness) completeRX(i int, length uint16) {
	wb := uint64(descStatusDD|descStatusEOP) | uint64(length)<<32
	binary.LittleEndian.PutUint64(h.rxRing[i*descriptorSize+8:], wb)
}

// completeTX simulates the NIC finishing TX slot i.
func (h *testHarness) completeTX(i int) {
	binary.LittleEndian.PutUint64(h.txRing[i*descriptorSize+8:], uint64(descStatusDD)<<txStatusShift)
}

func (h *testHarness) reg32(off uint32) uint32 {
	return binary.LittleEndian.Uint32(h.bar[off:])
}

func TestRxBatchEmptyRing(t *testing.T) {
	h := newTestHarness(t, 8, 0, 16)

	out := make([]pbuf.Buffer, 8)
	if got := h.d.RxBatch(0, out, 0, 8); got != 0 {
		t.Errorf("RxBatch on an idle ring = %d", got)
	}
}

func TestRxBatch(t *testing.T) {
	h := newTestHarness(t, 8, 0, 16)
	q := h.d.rx[0]

	h.completeRX(0, 60)
	h.completeRX(1, 1518)

	freeBefore := h.pool.Free()

	out := make([]pbuf.Buffer, 8)
	got := h.d.RxBatch(0, out, 0, 8)

	if got != 2 {
		t.Fatalf("RxBatch = %d, want 2", got)
	}

	if out[0].PacketSize() != 60 || out[1].PacketSize() != 1518 {
		t.Errorf("packet sizes %d, %d", out[0].PacketSize(), out[1].PacketSize())
	}

	if q.index != 2 {
		t.Errorf("rx_index = %d, want 2", q.index)
	}

	// Tail chases the head: rx_index-1 mod capacity.
	if tail := h.reg32(regRDT(0)); tail != 1 {
		t.Errorf("RDT = %d, want 1", tail)
	}

	// Harvested slots were re-armed with fresh buffers.
	for i := 0; i < 2; i++ {
		d := q.descriptor(i)
		if d.statusWord() != 0 {
			t.Errorf("slot %d write-back word not cleared", i)
		}
		if got := binary.LittleEndian.Uint64(h.rxRing[i*descriptorSize:]); got != q.installed[i].PhysicalAddress() {
			t.Errorf("slot %d descriptor does not point at the installed buffer", i)
		}
	}

	if h.pool.Free() != freeBefore-2 {
		t.Errorf("pool depth changed by %d, want 2", freeBefore-h.pool.Free())
	}
}

func TestRxBatchClampedByCaller(t *testing.T) {
	h := newTestHarness(t, 8, 0, 16)

	for i := 0; i < 4; i++ {
		h.completeRX(i, 60)
	}

	out := make([]pbuf.Buffer, 8)
	if got := h.d.RxBatch(0, out, 0, 2); got != 2 {
		t.Errorf("RxBatch clamped = %d, want 2", got)
	}
}

func TestTxBatch(t *testing.T) {
	h := newTestHarness(t, 0, 64, 64)
	q := h.d.tx[0]

	bufs := make([]pbuf.Buffer, 40)
	if got := h.pool.AcquireBatch(bufs, 0, 40); got != 40 {
		t.Fatal("pool drained during setup")
	}
	for _, b := range bufs {
		b.SetPacketSize(60)
	}

	sent := h.d.TxBatch(0, bufs, 0, 40)
	if sent != 40 {
		t.Fatalf("TxBatch = %d, want 40", sent)
	}

	if q.txIndex != 40 {
		t.Errorf("tx_index = %d", q.txIndex)
	}

	if tail := h.reg32(regTDT(0)); tail != 40 {
		t.Errorf("TDT = %d, want 40", tail)
	}

	if got := binary.LittleEndian.Uint64(h.txRing[0:]); got != bufs[0].PhysicalAddress() {
		t.Errorf("descriptor 0 address = %#x", got)
	}
}

func TestTxReclaim(t *testing.T) {
	h := newTestHarness(t, 0, 64, 64)
	q := h.d.tx[0]

	bufs := make([]pbuf.Buffer, 40)
	h.pool.AcquireBatch(bufs, 0, 40)
	for _, b := range bufs {
		b.SetPacketSize(60)
	}

	h.d.TxBatch(0, bufs, 0, 40)
	freeBefore := h.pool.Free()

	// Completing only the look-ahead descriptor marks the whole
	// 32-slot window reclaimable; the remaining 8 stay pending.
	h.completeTX(reclaimBatch - 1)

	h.d.TxBatch(0, nil, 0, 0)

	if q.cleanIndex != reclaimBatch {
		t.Errorf("clean_index = %d, want %d", q.cleanIndex, reclaimBatch)
	}

	if got := h.pool.Free() - freeBefore; got != reclaimBatch {
		t.Errorf("reclaimed %d buffers, want %d", got, reclaimBatch)
	}
}

func TestTxReclaimNeedsFullWindow(t *testing.T) {
	h := newTestHarness(t, 0, 64, 64)
	q := h.d.tx[0]

	bufs := make([]pbuf.Buffer, 8)
	h.pool.AcquireBatch(bufs, 0, 8)
	h.d.TxBatch(0, bufs, 0, 8)

	// Fewer than a window's worth pending: nothing to reclaim even
	// with stale DD bits beyond tx_index.
	h.completeTX(reclaimBatch - 1)
	h.d.TxBatch(0, nil, 0, 0)

	if q.cleanIndex != 0 {
		t.Errorf("clean_index = %d, want 0", q.cleanIndex)
	}
}

func TestTxBatchRingFull(t *testing.T) {
	h := newTestHarness(t, 0, 8, 16)

	bufs := make([]pbuf.Buffer, 16)
	h.pool.AcquireBatch(bufs, 0, 16)
	for _, b := range bufs {
		b.SetPacketSize(60)
	}

	// A ring of capacity 8 holds at most 7 in-flight descriptors.
	sent := h.d.TxBatch(0, bufs, 0, 16)
	if sent != 7 {
		t.Errorf("TxBatch on a filling ring = %d, want 7", sent)
	}

	if got := h.d.TxBatch(0, bufs, sent, 1); got != 0 {
		t.Errorf("TxBatch on a full ring = %d, want 0", got)
	}
}

func TestReadHWCounters(t *testing.T) {
	h := newTestHarness(t, 0, 0, 1)

	binary.LittleEndian.PutUint32(h.bar[regGPRC:], 100)
	binary.LittleEndian.PutUint32(h.bar[regGPTC:], 200)
	binary.LittleEndian.PutUint32(h.bar[regGORCL:], 6400)
	binary.LittleEndian.PutUint32(h.bar[regGORCH:], 1)
	binary.LittleEndian.PutUint32(h.bar[regGOTCL:], 12800)

	rxp, txp, rxb, txb := h.d.ReadHWCounters()

	if rxp != 100 || txp != 200 {
		t.Errorf("packet counters %d, %d", rxp, txp)
	}
	if rxb != 6400+(1<<32) {
		t.Errorf("rx bytes = %d", rxb)
	}
	if txb != 12800 {
		t.Errorf("tx bytes = %d", txb)
	}
}

func TestSetPromiscuous(t *testing.T) {
	h := newTestHarness(t, 0, 0, 1)

	h.d.SetPromiscuous(true)
	val := h.reg32(regFCTRL)
	if val&(1<<fctrlUPE) == 0 || val&(1<<fctrlMPE) == 0 {
		t.Errorf("promiscuous bits not set: FCTRL %#x", val)
	}

	h.d.SetPromiscuous(false)
	val = h.reg32(regFCTRL)
	if val&(1<<fctrlUPE) != 0 || val&(1<<fctrlMPE) != 0 {
		t.Errorf("promiscuous bits not cleared: FCTRL %#x", val)
	}
}

func TestLinkSpeedDecode(t *testing.T) {
	h := newTestHarness(t, 0, 0, 1)

	binary.LittleEndian.PutUint32(h.bar[regLINKS:], 3<<linksSpeedShift)

	if got := h.d.LinkSpeed().String(); got != "10 Gb/s" {
		t.Errorf("LinkSpeed = %s", got)
	}
}
