// Batched RX/TX datapath
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ixgbe

import (
	"log"

	"github.com/flowplane/ixgo/pbuf"
)

// RxBatch polls queue for up to n ready frames, writing them into
// out[offset:], and returns the number actually received. It never blocks:
// it processes what the hardware has already made ready and returns.
func (d *Driver) RxBatch(queue int, out []pbuf.Buffer, offset, n int) int {
	q := d.rx[queue]
	received := 0

	for received < n {
		slot := q.index
		desc := q.descriptor(slot)

		if !desc.done() {
			break
		}

		if !desc.endOfPacket() {
			// Multi-descriptor packets are not supported.
			log.Fatalf("ixgbe: queue %d: multi-descriptor packet at slot %d", queue, slot)
		}

		buf := q.installed[slot]
		buf.SetPacketSize(uint32(desc.length()))
		out[offset+received] = buf

		fresh, ok := q.pool.Acquire()
		if !ok {
			log.Fatalf("ixgbe: queue %d: mempool exhausted during rx", queue)
		}
		q.install(slot, fresh)

		q.index = (q.index + 1) % q.capacity
		received++
	}

	if received > 0 {
		tail := (q.index - 1 + q.capacity) % q.capacity
		d.writeReg(regRDT(queue), uint32(tail))
	}

	return received
}

// RxBusyWait spins calling RxBatch until exactly n packets have been
// received.
func (d *Driver) RxBusyWait(queue int, out []pbuf.Buffer, offset, n int) {
	got := 0
	for got < n {
		got += d.RxBatch(queue, out, offset+got, n-got)
	}
}

// TxBatch first reclaims completed TX buffers, then writes descriptors for
// up to n buffers from in[offset:], returning the number actually
// transmitted. It never blocks.
func (d *Driver) TxBatch(queue int, in []pbuf.Buffer, offset, n int) int {
	q := d.tx[queue]
	q.reclaim()

	sent := 0

	for sent < n {
		if q.full() {
			break
		}

		buf := in[offset+sent]
		slot := q.txIndex

		q.installed[slot] = buf
		q.descriptor(slot).write(buf.PhysicalAddress(), buf.PacketSize())

		q.txIndex = (q.txIndex + 1) % q.capacity
		sent++
	}

	if sent > 0 {
		d.writeReg(regTDT(queue), uint32(q.txIndex))
	}

	return sent
}

// TxBusyWait spins calling TxBatch until exactly n packets have been
// accepted.
func (d *Driver) TxBusyWait(queue int, in []pbuf.Buffer, offset, n int) {
	sent := 0
	for sent < n {
		sent += d.TxBatch(queue, in, offset+sent, n-sent)
	}
}
