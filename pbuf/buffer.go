// Packet buffer header layout
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pbuf defines the fixed, bit-exact packet buffer layout shared by
// the memory pool and the ixgbe datapath: a 64-byte header followed by the
// packet payload, both inside a single pool slot (typically 2048 bytes).
// Buffers are referred to elsewhere in the driver as a strongly-typed
// handle wrapping a virtual address, rather than as a bare integer.
package pbuf

import (
	"github.com/flowplane/ixgo/internal/mmio"
)

// HeaderSize is the fixed size, in bytes, of a packet buffer's header.
const HeaderSize = 64

// MinPayloadCapacity is the smallest payload region a pool entry may
// provide after the header: room for a maximum-size untagged Ethernet
// frame.
const MinPayloadCapacity = 1518

const (
	offPhysicalAddress = 0
	offMempoolHandle   = 8
	offReserved        = 16
	offPacketSize      = 20
	// offsets 24..63 are padding to HeaderSize.
)

// Buffer is a handle to a single packet buffer living inside a memory
// pool's region. The zero value is invalid; use New or a pool's Acquire
// methods to obtain one.
type Buffer struct {
	addr      mmio.Address
	entrySize int
}

// New wraps addr (the buffer's byte-0 virtual address) as a Buffer whose
// total slot size (header + payload) is entrySize.
func New(addr mmio.Address, entrySize int) Buffer {
	return Buffer{addr: addr, entrySize: entrySize}
}

// Valid reports whether the buffer wraps a non-nil address.
func (b Buffer) Valid() bool {
	return b.addr.Valid()
}

// Address returns the buffer's virtual address (header byte 0).
func (b Buffer) Address() mmio.Address {
	return b.addr
}

// PhysicalAddress returns the DMA address of the buffer's byte 0, written
// once at pool initialization time.
func (b Buffer) PhysicalAddress() uint64 {
	return mmio.Uint64(b.addr + offPhysicalAddress)
}

// MempoolHandle returns the id of the pool that owns this buffer, written
// once at pool initialization time.
func (b Buffer) MempoolHandle() uint64 {
	return mmio.Uint64(b.addr + offMempoolHandle)
}

// PacketSize returns the current payload length in bytes.
func (b Buffer) PacketSize() uint32 {
	return mmio.Uint32(b.addr + offPacketSize)
}

// SetPacketSize sets the payload length in bytes. Called by RX after a
// frame lands, and by the caller before handing a buffer to TX.
func (b Buffer) SetPacketSize(n uint32) {
	mmio.StoreUint32(b.addr+offPacketSize, n)
}

// initHeader writes physical_address, mempool_handle and zeroes the
// reserved and packet_size fields. Called exactly once per slot, by the
// memory pool at construction time.
func (b Buffer) initHeader(physAddr uint64, mempoolHandle uint64) {
	mmio.StoreUint64(b.addr+offPhysicalAddress, physAddr)
	mmio.StoreUint64(b.addr+offMempoolHandle, mempoolHandle)
	mmio.StoreUint32(b.addr+offReserved, 0)
	mmio.StoreUint32(b.addr+offPacketSize, 0)
}

// InitHeader is the exported form of initHeader, used by mempool during
// pool construction. It is not meant to be called from datapath code.
func InitHeader(b Buffer, physAddr uint64, mempoolHandle uint64) {
	b.initHeader(physAddr, mempoolHandle)
}

// PayloadCapacity returns the number of bytes available for packet data.
func (b Buffer) PayloadCapacity() int {
	return b.entrySize - HeaderSize
}

// Payload returns a byte slice view of the buffer's payload region, sized
// to the buffer's current PacketSize. Use PayloadCapacity for the full
// backing region when writing a new frame before calling SetPacketSize.
func (b Buffer) Payload() []byte {
	return mmio.Slice(b.addr+HeaderSize, int(b.PacketSize()))
}

// PayloadBuffer returns the full backing payload region, regardless of the
// current packet_size header field, for callers about to fill it and then
// call SetPacketSize.
func (b Buffer) PayloadBuffer() []byte {
	return mmio.Slice(b.addr+HeaderSize, b.PayloadCapacity())
}
