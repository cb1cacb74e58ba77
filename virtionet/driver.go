// Legacy virtio-net backend
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package virtionet implements the Device contract against a legacy
// (transitional) virtio network card, as found in qemu and cloud guests.
// The device's BAR0 lives in I/O port space and is driven through sysfs
// resource reads and writes; the virtqueues live in the same DMA-capable
// memory the ixgbe rings use.
package virtionet

import (
	"fmt"
	"log"

	"github.com/flowplane/ixgo/config"
	"github.com/flowplane/ixgo/ixerr"
	"github.com/flowplane/ixgo/memory"
	"github.com/flowplane/ixgo/mempool"
	"github.com/flowplane/ixgo/netdev"
	"github.com/flowplane/ixgo/pbuf"
	"github.com/flowplane/ixgo/pcidev"
	"github.com/flowplane/ixgo/stats"
)

// DriverName is the kernel driver this package binds/unbinds against.
const DriverName = "virtio-pci"

// EntrySize is the mempool entry size used for the receive queue.
const EntrySize = 2048

// Driver owns a bound legacy virtio-net device: its PCI device, I/O port
// window, RX/TX virtqueues and the RX mempool.
type Driver struct {
	pci *pcidev.Device
	io  *pcidev.IOResource
	mem *memory.Manager

	rx   *virtqueue
	tx   *virtqueue
	pool *mempool.Pool

	counters stats.Stats
}

// Supported reports whether the given vendor/device id pair identifies a
// transitional virtio network card.
func Supported(vendor, device uint16) bool {
	// Only the first id of the transitional range is a network card.
	return vendor == VendorVirtio && device == deviceMin
}

// New binds addr and brings the device up with one RX and one TX queue.
func New(addr string, cfg config.Config) (*Driver, error) {
	dev, err := pcidev.Open(addr, DriverName)
	if err != nil {
		return nil, err
	}

	vendor, err := dev.VendorID()
	if err != nil {
		dev.Close()
		return nil, err
	}
	device, err := dev.DeviceID()
	if err != nil {
		dev.Close()
		return nil, err
	}

	if !Supported(vendor, device) {
		dev.Close()
		return nil, ixerr.NewUnsupported(fmt.Sprintf("%04x:%04x is not a virtio network card", vendor, device))
	}

	if err := dev.Unbind(); err != nil {
		log.Printf("virtionet: unbind %s: %v (continuing, may already be unbound)", addr, err)
	}
	if err := dev.EnableDMA(); err != nil {
		dev.Close()
		return nil, err
	}

	io, err := dev.OpenIOResource(0)
	if err != nil {
		dev.Close()
		return nil, err
	}

	d := &Driver{
		pci: dev,
		io:  io,
		mem: memory.New(cfg.HugePageMount),
	}

	if err := d.init(cfg); err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

func (d *Driver) init(cfg config.Config) error {
	// Reset, then acknowledge the device and announce a driver.
	d.io.Write8(regDeviceStatus, 0)
	d.io.Write8(regDeviceStatus, statusAcknowledge)
	d.io.Write8(regDeviceStatus, statusAcknowledge|statusDriver)

	// No feature bits are negotiated: the legacy header format and the
	// default receive behavior are all this datapath needs.
	d.io.Read32(regDeviceFeatures)
	d.io.Write32(regDriverFeatures, 0)

	pool := mempool.New(cfg.BufferCount)
	region, err := d.mem.DMAAllocateRegion(cfg.BufferCount * EntrySize)
	if err != nil {
		return err
	}
	if err := pool.Allocate(EntrySize, region); err != nil {
		return err
	}
	d.pool = pool

	rx, err := d.setupQueue(queueRX)
	if err != nil {
		return err
	}
	d.rx = rx

	tx, err := d.setupQueue(queueTX)
	if err != nil {
		return err
	}
	d.tx = tx

	tx.freeDesc = make([]uint16, tx.size)
	for i := range tx.freeDesc {
		tx.freeDesc[i] = uint16(i)
	}

	if err := d.armRX(); err != nil {
		return err
	}

	d.io.Write8(regDeviceStatus, statusAcknowledge|statusDriver|statusDriverOK)

	log.Printf("virtionet: %s up, rx/tx queue size %d/%d", d.pci.Address, d.rx.size, d.tx.size)

	return nil
}

func (d *Driver) setupQueue(index int) (*virtqueue, error) {
	d.io.Write16(regQueueSelect, uint16(index))

	size := int(d.io.Read16(regQueueSize))
	if size == 0 {
		return nil, ixerr.NewHardwareFault(fmt.Sprintf("virtqueue %d has size 0", index))
	}

	dma, err := d.mem.DMAAllocate(vqBytes(size))
	if err != nil {
		return nil, err
	}
	if dma.Physical%queueAlign != 0 {
		return nil, ixerr.NewHardwareFault("virtqueue region is not page aligned")
	}

	q := newVirtqueue(size, dma)

	d.io.Write16(regQueueSelect, uint16(index))
	d.io.Write32(regQueueAddress, q.pfn())

	return q, nil
}

// armRX installs a buffer in every RX descriptor and publishes the whole
// ring, so the device can start filling buffers immediately.
func (d *Driver) armRX() error {
	q := d.rx

	for i := 0; i < q.size; i++ {
		buf, ok := d.pool.Acquire()
		if !ok {
			return ixerr.NewQueueExhausted(queueRX)
		}
		d.installRX(i, buf)
		q.publish(uint16(i))
	}

	q.publishIdx()
	d.io.Write16(regQueueNotify, queueRX)

	return nil
}

// installRX arms descriptor i with buf: one device-writable descriptor
// covering the virtio-net header plus the full payload region.
func (d *Driver) installRX(i int, buf pbuf.Buffer) {
	q := d.rx
	length := uint32(netHeaderSize + buf.PayloadCapacity())
	q.writeDesc(i, headerAddr(buf), length, descFlagWrite)
	q.installed[i] = buf
}

// Close resets the device, disables DMA and re-binds the kernel driver,
// best-effort.
func (d *Driver) Close() error {
	if d.io != nil {
		d.io.Write8(regDeviceStatus, 0)
		_ = d.io.Close()
		d.io = nil
	}

	if d.pci == nil {
		return nil
	}

	_ = d.pci.DisableDMA()
	err := d.pci.Close()
	_ = d.pci.Bind()
	d.pci = nil

	return err
}

// RxBatch drains up to n frames the device has completed into
// out[offset:], re-arming each descriptor with a fresh buffer, and
// returns the number received. It never blocks.
func (d *Driver) RxBatch(queue int, out []pbuf.Buffer, offset, n int) int {
	q := d.rx
	received := 0

	for received < n {
		id, length, ok := q.popUsed()
		if !ok {
			break
		}

		if length < netHeaderSize {
			log.Fatalf("virtionet: used element shorter than the net header (%d)", length)
		}

		buf := q.installed[id]
		buf.SetPacketSize(length - netHeaderSize)
		out[offset+received] = buf

		fresh, ok := d.pool.Acquire()
		if !ok {
			log.Fatalf("virtionet: mempool exhausted during rx")
		}
		d.installRX(int(id), fresh)
		q.publish(id)

		received++
	}

	if received > 0 {
		q.publishIdx()
		d.io.Write16(regQueueNotify, queueRX)

		d.counters.RxPackets += uint64(received)
		for i := 0; i < received; i++ {
			d.counters.RxBytes += uint64(out[offset+i].PacketSize())
		}
	}

	return received
}

// TxBatch reclaims completed transmissions, then queues up to n buffers
// from in[offset:], returning the number accepted. It never blocks.
func (d *Driver) TxBatch(queue int, in []pbuf.Buffer, offset, n int) int {
	q := d.tx

	for {
		id, _, ok := q.popUsed()
		if !ok {
			break
		}

		buf := q.installed[id]
		if pool, ok := mempool.FindOwner(buf.MempoolHandle()); ok {
			pool.Release(buf)
		}

		q.installed[id] = pbuf.Buffer{}
		q.freeDesc = append(q.freeDesc, id)
	}

	sent := 0

	for sent < n {
		if len(q.freeDesc) == 0 {
			break
		}

		id := q.freeDesc[len(q.freeDesc)-1]
		q.freeDesc = q.freeDesc[:len(q.freeDesc)-1]

		buf := in[offset+sent]
		clearNetHeader(buf)

		q.writeDesc(int(id), headerAddr(buf), netHeaderSize+buf.PacketSize(), 0)
		q.installed[id] = buf
		q.publish(id)

		sent++
	}

	if sent > 0 {
		q.publishIdx()
		d.io.Write16(regQueueNotify, queueTX)

		d.counters.TxPackets += uint64(sent)
		for i := 0; i < sent; i++ {
			d.counters.TxBytes += uint64(in[offset+i].PacketSize())
		}
	}

	return sent
}

// ReadStats accumulates this device's counters into s. Virtio exposes no
// hardware statistics registers, so the driver counts in software; the
// counters clear on read, matching the 82599's self-clearing behavior.
func (d *Driver) ReadStats(s *stats.Stats) {
	s.Add(d.counters)
	d.counters.Reset()
}

// SetPromiscuous is accepted but has no effect: toggling receive filters
// on virtio requires the control virtqueue, which this driver does not
// negotiate. qemu's default configuration delivers all frames addressed
// to the guest anyway.
func (d *Driver) SetPromiscuous(enable bool) {
	log.Printf("virtionet: ignoring promiscuous=%v (no control virtqueue)", enable)
}

// LinkSpeed reports an unknown rate: the legacy interface has no speed
// register without feature negotiation.
func (d *Driver) LinkSpeed() netdev.LinkSpeed {
	return netdev.LinkUnknown
}

// NumRXQueues returns the number of configured RX queues.
func (d *Driver) NumRXQueues() int { return 1 }

// NumTXQueues returns the number of configured TX queues.
func (d *Driver) NumTXQueues() int { return 1 }
