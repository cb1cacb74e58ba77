// Split virtqueue state
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtionet

import (
	"github.com/flowplane/ixgo/internal/mmio"
	"github.com/flowplane/ixgo/memory"
	"github.com/flowplane/ixgo/pbuf"
)

// virtqueue is a legacy split virtqueue: a descriptor table, an avail
// (driver) ring and a used (device) ring, laid out contiguously in one
// DMA region with the used ring aligned to queueAlign.
type virtqueue struct {
	size int
	mem  memory.DMABuffer

	desc  mmio.Address // 16 bytes per descriptor
	avail mmio.Address // flags, idx, ring[size]
	used  mmio.Address // flags, idx, ring[size] of (id, len)

	availIdx uint16
	lastUsed uint16

	// installed tracks the buffer currently referenced by each
	// descriptor; the device only sees physical addresses.
	installed []pbuf.Buffer

	// freeDesc is a stack of unused descriptor indices (TX only; RX
	// keeps every descriptor permanently armed).
	freeDesc []uint16
}

// vqBytes returns the total DMA size a queue of the given size needs.
func vqBytes(size int) int {
	driver := 16*size + 6 + 2*size
	driver = (driver + queueAlign - 1) &^ (queueAlign - 1)
	device := 6 + 8*size
	return driver + device
}

func newVirtqueue(size int, mem memory.DMABuffer) *virtqueue {
	driver := 16*size + 6 + 2*size
	driver = (driver + queueAlign - 1) &^ (queueAlign - 1)

	q := &virtqueue{
		size:      size,
		mem:       mem,
		desc:      mem.Virtual,
		avail:     mem.Virtual + mmio.Address(16*size),
		used:      mem.Virtual + mmio.Address(driver),
		installed: make([]pbuf.Buffer, size),
	}

	for i := 0; i < vqBytes(size); i++ {
		mmio.StoreByte(mem.Virtual+mmio.Address(i), 0)
	}

	return q
}

// pfn returns the queue's page frame number for the address register.
func (q *virtqueue) pfn() uint32 {
	return uint32(q.mem.Physical / queueAlign)
}

// writeDesc programs descriptor i.
func (q *virtqueue) writeDesc(i int, addr uint64, length uint32, flags uint16) {
	d := q.desc + mmio.Address(i*16)
	mmio.StoreUint64(d, addr)
	mmio.StoreUint32(d+8, length)
	mmio.StoreUint16(d+12, flags)
	mmio.StoreUint16(d+14, 0)
}

// publish appends descriptor id to the avail ring. The index store is
// deferred to publishIdx so a batch becomes visible with one store.
func (q *virtqueue) publish(id uint16) {
	slot := int(q.availIdx) % q.size
	mmio.StoreUint16(q.avail+4+mmio.Address(2*slot), id)
	q.availIdx++
}

// publishIdx makes all previously published descriptors visible to the
// device. The caller notifies the device afterwards; the notify write is
// a syscall and therefore orders all prior stores.
func (q *virtqueue) publishIdx() {
	mmio.StoreUint16(q.avail+2, q.availIdx)
}

// usedIdx reads the device's used ring index.
func (q *virtqueue) usedIdx() uint16 {
	return mmio.Uint16(q.used + 2)
}

// popUsed consumes the next used ring element, returning the descriptor
// id and the written length. ok is false when the ring is empty.
func (q *virtqueue) popUsed() (id uint16, length uint32, ok bool) {
	if q.lastUsed == q.usedIdx() {
		return 0, 0, false
	}

	slot := int(q.lastUsed) % q.size
	e := q.used + 4 + mmio.Address(8*slot)

	id = uint16(mmio.Uint32(e))
	length = mmio.Uint32(e + 4)

	q.lastUsed++

	return id, length, true
}

// headerAddr returns the physical address where the virtio-net header for
// buf lives: the last netHeaderSize bytes of the buffer header padding,
// immediately before the payload, so header and frame form one
// contiguous descriptor.
func headerAddr(buf pbuf.Buffer) uint64 {
	return buf.PhysicalAddress() + pbuf.HeaderSize - netHeaderSize
}

// clearNetHeader zeroes buf's virtio-net header region.
func clearNetHeader(buf pbuf.Buffer) {
	base := buf.Address() + pbuf.HeaderSize - netHeaderSize
	for i := 0; i < netHeaderSize; i++ {
		mmio.StoreByte(base+mmio.Address(i), 0)
	}
}
