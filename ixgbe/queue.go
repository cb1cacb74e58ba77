// RX/TX descriptor ring state
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ixgbe

import (
	"github.com/flowplane/ixgo/internal/mmio"
	"github.com/flowplane/ixgo/mempool"
	"github.com/flowplane/ixgo/pbuf"
)

// reclaimBatch is the TX reclamation look-ahead window. Checking only the
// last descriptor of the window is sound only because RS is set on every
// descriptor; changing that policy requires changing this granularity too.
const reclaimBatch = 32

// rxQueue owns one RX descriptor ring, the parallel array of buffers
// currently installed in each slot, and the mempool it draws from.
type rxQueue struct {
	ring      mmio.Address
	capacity  int
	index     int // rx_index: next slot to poll
	installed []pbuf.Buffer
	pool      *mempool.Pool
}

func newRXQueue(ring mmio.Address, capacity int, pool *mempool.Pool) *rxQueue {
	return &rxQueue{
		ring:      ring,
		capacity:  capacity,
		installed: make([]pbuf.Buffer, capacity),
		pool:      pool,
	}
}

func (q *rxQueue) descriptor(i int) rxDescriptor {
	return rxDescriptor{addr: q.ring + mmio.Address(i*descriptorSize)}
}

// install arms slot i with buf, writing its physical address into the
// descriptor and remembering the virtual counterpart in the tracking
// array (the NIC only sees physical addresses).
func (q *rxQueue) install(i int, buf pbuf.Buffer) {
	q.descriptor(i).setBufferAddress(buf.PhysicalAddress())
	q.installed[i] = buf
}

// txQueue owns one TX descriptor ring, the parallel array of buffers
// currently owned by each slot, tx_index and clean_index.
type txQueue struct {
	ring       mmio.Address
	capacity   int
	txIndex    int
	cleanIndex int
	installed  []pbuf.Buffer
}

func newTXQueue(ring mmio.Address, capacity int) *txQueue {
	return &txQueue{
		ring:      ring,
		capacity:  capacity,
		installed: make([]pbuf.Buffer, capacity),
	}
}

func (q *txQueue) descriptor(i int) txDescriptor {
	return txDescriptor{addr: q.ring + mmio.Address(i*descriptorSize)}
}

// full reports whether the ring cannot accept another descriptor:
// tx_index+1 == clean_index (mod capacity).
func (q *txQueue) full() bool {
	return (q.txIndex+1)%q.capacity == q.cleanIndex
}

// pending returns the number of slots between clean_index and tx_index.
func (q *txQueue) pending() int {
	d := q.txIndex - q.cleanIndex
	if d < 0 {
		d += q.capacity
	}
	return d
}

// reclaim returns completed TX buffers to their originating mempools in
// batches of reclaimBatch. It looks ahead reclaimBatch-1 descriptors and,
// if the last one in the window is done, treats the whole window as
// completed.
func (q *txQueue) reclaim() {
	for {
		if q.pending() < reclaimBatch {
			return
		}

		lookahead := (q.cleanIndex + reclaimBatch - 1) % q.capacity
		if !q.descriptor(lookahead).done() {
			return
		}

		for i := 0; i < reclaimBatch; i++ {
			slot := (q.cleanIndex + i) % q.capacity
			buf := q.installed[slot]

			if pool, ok := mempool.FindOwner(buf.MempoolHandle()); ok {
				pool.Release(buf)
			}

			q.installed[slot] = pbuf.Buffer{}
		}

		q.cleanIndex = (q.cleanIndex + reclaimBatch) % q.capacity
	}
}
