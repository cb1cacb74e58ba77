// Fixed-capacity packet buffer pool
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mempool implements the fixed-capacity stack of free packet
// buffers the RX/TX datapath draws from and returns to, without allocation
// in the fast path. A Pool is not safe for concurrent use: the expected
// usage is one pool per RX queue, owned by a single thread.
package mempool

import (
	"github.com/flowplane/ixgo/internal/mmio"
	"github.com/flowplane/ixgo/ixerr"
	"github.com/flowplane/ixgo/memory"
	"github.com/flowplane/ixgo/pbuf"
)

// Pool is a contiguous memory region carved into entrySize slots, with a
// stack of free slot addresses and a process-unique id.
type Pool struct {
	id        uint64
	entrySize int
	capacity  int
	region    memory.DMARegion
	freeStack []mmio.Address
}

// New reserves a pool identity for count entries. Call Allocate to bind it
// to a DMA region before use.
func New(count int) *Pool {
	p := &Pool{capacity: count}
	p.id = allocateID(p)
	return p
}

// ID returns the pool's process-unique identifier.
func (p *Pool) ID() uint64 {
	return p.id
}

// EntrySize returns the per-slot size in bytes, valid after Allocate.
func (p *Pool) EntrySize() int {
	return p.entrySize
}

// Capacity returns the pool's fixed entry count.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Allocate binds the pool to region, a pre-allocated DMA region of at
// least p.Capacity()*entrySize bytes, writes each slot's header and pushes
// every slot address onto the free stack in reverse order, so that slot 0
// is the first one popped by Acquire.
func (p *Pool) Allocate(entrySize int, region memory.DMARegion) error {
	if entrySize < pbuf.HeaderSize+pbuf.MinPayloadCapacity {
		return ixerr.NewInvalidArgument("mempool: entry size below header+minimum payload")
	}
	if region.Size < p.capacity*entrySize {
		return ixerr.NewInvalidArgument("mempool: region smaller than capacity*entry_size")
	}
	if region.ChunkSize%entrySize != 0 {
		return ixerr.NewInvalidArgument("mempool: entry size does not divide the region chunk size")
	}

	p.entrySize = entrySize
	p.region = region
	p.freeStack = make([]mmio.Address, 0, p.capacity)

	slots := make([]mmio.Address, p.capacity)

	for i := 0; i < p.capacity; i++ {
		slotVirt := region.Virtual + mmio.Address(i*entrySize)
		slotPhys := region.Physical(i * entrySize)

		buf := pbuf.New(slotVirt, entrySize)
		pbuf.InitHeader(buf, slotPhys, p.id)

		slots[i] = slotVirt
	}

	for i := p.capacity - 1; i >= 0; i-- {
		p.freeStack = append(p.freeStack, slots[i])
	}

	return nil
}

// Acquire pops the top of the free stack. It returns the zero Buffer and
// false if the pool is empty.
func (p *Pool) Acquire() (pbuf.Buffer, bool) {
	n := len(p.freeStack)
	if n == 0 {
		return pbuf.Buffer{}, false
	}

	addr := p.freeStack[n-1]
	p.freeStack = p.freeStack[:n-1]

	return pbuf.New(addr, p.entrySize), true
}

// AcquireBatch pops up to n buffers into out[offset:], clamped by the free
// stack depth and by len(out)-offset, and returns the number actually
// acquired.
func (p *Pool) AcquireBatch(out []pbuf.Buffer, offset int, n int) int {
	avail := len(p.freeStack)
	room := len(out) - offset

	if n > avail {
		n = avail
	}
	if n > room {
		n = room
	}
	if n <= 0 {
		return 0
	}

	start := len(p.freeStack) - n
	for i := 0; i < n; i++ {
		out[offset+i] = pbuf.New(p.freeStack[start+i], p.entrySize)
	}
	p.freeStack = p.freeStack[:start]

	return n
}

// Release pushes buf back onto the free stack. It panics if buf does not
// belong to this pool, an invariant violation that indicates programmer
// error rather than a recoverable runtime condition.
func (p *Pool) Release(buf pbuf.Buffer) {
	if buf.MempoolHandle() != p.id {
		panic("mempool: release of buffer owned by a different pool")
	}

	p.freeStack = append(p.freeStack, buf.Address())
}

// ReleaseBatch releases the n buffers in[offset:offset+n].
func (p *Pool) ReleaseBatch(in []pbuf.Buffer, offset int, n int) {
	for i := 0; i < n; i++ {
		p.Release(in[offset+i])
	}
}

// Free returns the current free-stack depth.
func (p *Pool) Free() int {
	return len(p.freeStack)
}
