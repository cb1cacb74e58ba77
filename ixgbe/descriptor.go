// RX/TX descriptor encode and decode
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ixgbe

import "github.com/flowplane/ixgo/internal/mmio"

// descriptorSize is the fixed 16-byte size of both RX and TX descriptors.
const descriptorSize = 16

// rxDescriptor is a view over one 16-byte slot of an RX ring.
type rxDescriptor struct {
	addr mmio.Address
}

// setBufferAddress programs the read-format descriptor: low 8 bytes are the
// packet buffer's physical address, high 8 bytes (the header buffer
// address) are cleared. Both stores are volatile: the NIC may be polling
// this slot.
func (d rxDescriptor) setBufferAddress(phys uint64) {
	mmio.StoreVolatileUint64(d.addr, phys)
	mmio.StoreVolatileUint64(d.addr+8, 0)
}

// statusWord returns the write-back status+length word (upper 8 bytes).
func (d rxDescriptor) statusWord() uint64 {
	return mmio.VolatileUint64(d.addr + 8)
}

func (d rxDescriptor) done() bool {
	return d.statusWord()&descStatusDD != 0
}

func (d rxDescriptor) endOfPacket() bool {
	return d.statusWord()&descStatusEOP != 0
}

// length returns the 16-bit received frame length, bits [47:32] of the
// write-back word.
func (d rxDescriptor) length() uint16 {
	return uint16(d.statusWord() >> 32)
}

// txDescriptor is a view over one 16-byte slot of a TX ring.
type txDescriptor struct {
	addr mmio.Address
}

// write programs an advanced TX data descriptor: buffer address, DTALEN in
// the low word, the command bits (EOP|IFCS|RS|DEXT|ADVD_DTYP_DATA), and
// PAYLEN in the upper word.
func (d txDescriptor) write(phys uint64, length uint32) {
	mmio.StoreVolatileUint64(d.addr, phys)

	cmd := uint64(txCmdEOP | txCmdIFCS | txCmdRS | txCmdDEXT | txCmdADVDTYPDATA)
	word1 := uint64(length&0xffff) | cmd | (uint64(length)&0x3ffff)<<txPaylenShift

	mmio.StoreVolatileUint64(d.addr+8, word1)
}

func (d txDescriptor) done() bool {
	// DD is bit 0 of the write-back STA field, bit 32 of the upper word.
	status := mmio.VolatileUint64(d.addr+8) >> txStatusShift
	return status&descStatusDD != 0
}
