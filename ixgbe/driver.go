// 82599 driver initialization and datapath
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ixgbe implements the driver for Intel 82599-family 10 GbE
// controllers: the register programming sequence that brings the NIC up,
// the RX/TX descriptor ring state machines, and batched send/receive.
package ixgbe

import (
	"fmt"
	"log"
	"time"

	"github.com/flowplane/ixgo/config"
	"github.com/flowplane/ixgo/internal/mmio"
	"github.com/flowplane/ixgo/ixerr"
	"github.com/flowplane/ixgo/memory"
	"github.com/flowplane/ixgo/mempool"
	"github.com/flowplane/ixgo/netdev"
	"github.com/flowplane/ixgo/pbuf"
	"github.com/flowplane/ixgo/pcidev"
	"github.com/flowplane/ixgo/stats"
)

// DriverName is the kernel driver name this package binds/unbinds against.
const DriverName = "ixgbe"

// EntrySize is the fixed mempool entry size the driver uses for every RX
// queue.
const EntrySize = 2048

const pollInterval = 10 * time.Millisecond

// Driver owns a bound 82599 NIC: its PCI device, BAR0 mapping, RX/TX
// queues and their mempools.
type Driver struct {
	pci *pcidev.Device
	mem *memory.Manager
	bar mmio.Address

	rx []*rxQueue
	tx []*txQueue

	pools []*mempool.Pool
}

// New binds addr, rejecting devices that are not Intel network
// controllers, and brings up nRX RX queues and nTX TX queues.
func New(addr string, nRX, nTX int, cfg config.Config) (*Driver, error) {
	dev, err := pcidev.Open(addr, DriverName)
	if err != nil {
		return nil, err
	}

	vendor, err := dev.VendorID()
	if err != nil {
		dev.Close()
		return nil, err
	}
	class, err := dev.ClassCode()
	if err != nil {
		dev.Close()
		return nil, err
	}

	if vendor != pcidev.VendorIntel {
		dev.Close()
		return nil, ixerr.NewUnsupported(fmt.Sprintf("vendor %#x is not Intel", vendor))
	}
	if class != pcidev.ClassNetworkController {
		dev.Close()
		return nil, ixerr.NewUnsupported(fmt.Sprintf("class %#x is not a network controller", class))
	}

	if err := dev.Unbind(); err != nil {
		log.Printf("ixgbe: unbind %s: %v (continuing, may already be unbound)", addr, err)
	}
	if err := dev.EnableDMA(); err != nil {
		dev.Close()
		return nil, err
	}

	bar, err := dev.MapResource()
	if err != nil {
		dev.Close()
		return nil, err
	}

	d := &Driver{
		pci: dev,
		mem: memory.New(cfg.HugePageMount),
		bar: mmio.Address(addressOfSlice(bar)),
	}

	if err := d.reset(); err != nil {
		d.Close()
		return nil, err
	}

	if err := d.waitForEEPROM(); err != nil {
		d.Close()
		return nil, err
	}

	d.initFlowControl()

	if err := d.initRX(nRX, cfg); err != nil {
		d.Close()
		return nil, err
	}

	if err := d.initTX(nTX, cfg); err != nil {
		d.Close()
		return nil, err
	}

	if err := d.startRXQueues(cfg); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.startTXQueues(); err != nil {
		d.Close()
		return nil, err
	}

	d.bringUpLink()

	return d, nil
}

// Close tears the driver down: disables DMA, unmaps BAR0 and re-binds the
// kernel driver, best-effort.
func (d *Driver) Close() error {
	if d.pci == nil {
		return nil
	}

	_ = d.pci.DisableDMA()
	err := d.pci.Close()
	_ = d.pci.Bind()

	return err
}

func (d *Driver) reg(off uint32) mmio.Address {
	return d.bar + mmio.Address(off)
}

func (d *Driver) readReg(off uint32) uint32 {
	return mmio.VolatileUint32(d.reg(off))
}

func (d *Driver) writeReg(off uint32, val uint32) {
	mmio.StoreVolatileUint32(d.reg(off), val)
}

func (d *Driver) disableInterrupts() {
	d.writeReg(regEIMC, 0xFFFFFFFF)
}

// reset issues a global reset, waits 10ms, and re-disables interrupts.
func (d *Driver) reset() error {
	log.Printf("ixgbe: disabling interrupts")
	d.disableInterrupts()

	log.Printf("ixgbe: resetting %s", d.pci.Address)
	d.writeReg(regCTRL, 1<<ctrlRST)

	time.Sleep(10 * time.Millisecond)

	d.disableInterrupts()

	return nil
}

// waitForEEPROM busy-waits for EEC.AUTO_RD and RDRXCTL.DMAIDONE, sleeping
// pollInterval between reads. No timeout, by design: the NIC either comes
// up or the process is killed.
func (d *Driver) waitForEEPROM() error {
	log.Printf("ixgbe: waiting for EEPROM auto-read")
	for d.readReg(regEEC)&(1<<eecAutoRD) == 0 {
		time.Sleep(pollInterval)
	}

	log.Printf("ixgbe: waiting for DMA init done")
	for d.readReg(regRDRXCTL)&(1<<rdrxctlDMAIDONE) == 0 {
		time.Sleep(pollInterval)
	}

	return nil
}

// initFlowControl zeroes every flow control register: this driver runs
// with link flow control disabled.
func (d *Driver) initFlowControl() {
	for i := 0; i < 4; i++ {
		d.writeReg(regFCTTV(i), 0)
	}
	for i := 0; i < 8; i++ {
		d.writeReg(regFCRTL(i), 0)
		d.writeReg(regFCRTH(i), 0)
	}
	d.writeReg(regFCRTV, 0)
	d.writeReg(regFCCFG, 0)
}

func (d *Driver) initRX(n int, cfg config.Config) error {
	d.writeReg(regRXCTRL, 0)

	hlreg0 := d.readReg(regHLREG0)
	hlreg0 = mmio.Set(hlreg0, hlreg0TXCRCEN)
	hlreg0 = mmio.Set(hlreg0, hlreg0RXCRCSTRP)
	d.writeReg(regHLREG0, hlreg0)

	// Accept broadcast; untagged unicast passes the default filters.
	d.writeReg(regFCTRL, mmio.Set(d.readReg(regFCTRL), fctrlBAM))

	for i := 0; i < n; i++ {
		pool := mempool.New(cfg.BufferCount)

		region, err := d.mem.DMAAllocateRegion(cfg.BufferCount * EntrySize)
		if err != nil {
			return err
		}

		if err := pool.Allocate(EntrySize, region); err != nil {
			return err
		}

		d.pools = append(d.pools, pool)

		ringBytes := cfg.RingSize * descriptorSize
		ring, err := d.mem.DMAAllocate(ringBytes)
		if err != nil {
			return err
		}

		d.rx = append(d.rx, newRXQueue(ring.Virtual, cfg.RingSize, pool))

		d.writeReg(regRDBAL(i), uint32(ring.Physical))
		d.writeReg(regRDBAH(i), uint32(ring.Physical>>32))
		d.writeReg(regRDLEN(i), uint32(ringBytes))
		d.writeReg(regRDH(i), 0)
		d.writeReg(regRDT(i), 0)

		// Advanced descriptors, one buffer per packet, drop on
		// mempool pressure instead of stalling the whole port.
		srrctl := d.readReg(regSRRCTL(i))
		srrctl = mmio.SetN(srrctl, srrctlDescTypeShift, srrctlDescTypeMask, srrctlDescTypeAdvOneBuf)
		srrctl = mmio.Set(srrctl, srrctlDropEN)
		d.writeReg(regSRRCTL(i), srrctl)
	}

	d.writeReg(regRXCTRL, 1<<rxctrlRXEN)

	return nil
}

func (d *Driver) initTX(n int, cfg config.Config) error {
	hlreg0 := d.readReg(regHLREG0)
	hlreg0 = mmio.Set(hlreg0, hlreg0TXPADEN)
	d.writeReg(regHLREG0, hlreg0)

	for i := 0; i < n; i++ {
		ringBytes := cfg.RingSize * descriptorSize
		ring, err := d.mem.DMAAllocate(ringBytes)
		if err != nil {
			return err
		}

		d.tx = append(d.tx, newTXQueue(ring.Virtual, cfg.RingSize))

		d.writeReg(regTDBAL(i), uint32(ring.Physical))
		d.writeReg(regTDBAH(i), uint32(ring.Physical>>32))
		d.writeReg(regTDLEN(i), uint32(ringBytes))
		d.writeReg(regTDH(i), 0)
		d.writeReg(regTDT(i), 0)

		txdctl := d.readReg(regTXDCTL(i))
		txdctl = mmio.SetN(txdctl, 0, 0x7F, txdctlPThresh)
		txdctl = mmio.SetN(txdctl, 8, 0x7F, txdctlHThresh)
		txdctl = mmio.SetN(txdctl, 16, 0x7F, txdctlWThresh)
		d.writeReg(regTXDCTL(i), txdctl)
	}

	d.writeReg(regDMATXCTL, 1<<dmatxctlTE)

	return nil
}

// startRXQueues fills each RX ring with buffers from its mempool, sets the
// tail to capacity-1, enables the queue and busy-waits for RXDCTL.ENABLE
// to be reflected back.
func (d *Driver) startRXQueues(cfg config.Config) error {
	for i, q := range d.rx {
		bufs := make([]pbuf.Buffer, q.capacity)
		n := q.pool.AcquireBatch(bufs, 0, q.capacity)
		if n != q.capacity {
			return ixerr.NewQueueExhausted(i)
		}

		for slot := 0; slot < q.capacity; slot++ {
			q.install(slot, bufs[slot])
		}

		d.writeReg(regRDT(i), uint32(q.capacity-1))

		ctl := d.readReg(regRXDCTL(i))
		d.writeReg(regRXDCTL(i), mmio.Set(ctl, dctlENABLE))

		for d.readReg(regRXDCTL(i))&(1<<dctlENABLE) == 0 {
			time.Sleep(pollInterval)
		}
	}

	return nil
}

func (d *Driver) startTXQueues() error {
	for i := range d.tx {
		ctl := d.readReg(regTXDCTL(i))
		d.writeReg(regTXDCTL(i), mmio.Set(ctl, dctlENABLE))

		for d.readReg(regTXDCTL(i))&(1<<dctlENABLE) == 0 {
			time.Sleep(pollInterval)
		}
	}

	return nil
}

// bringUpLink sets AUTOC.LMS for 10G and restarts auto-negotiation.
func (d *Driver) bringUpLink() {
	autoc := d.readReg(regAUTOC)
	autoc = mmio.SetN(autoc, autocLMSShift, autocLMSMask, autocLMS10G)
	autoc = mmio.Set(autoc, autocRestartAN)
	d.writeReg(regAUTOC, autoc)
}

// LinkSpeed decodes LINKS.LINK_SPEED.
func (d *Driver) LinkSpeed() netdev.LinkSpeed {
	links := d.readReg(regLINKS)
	code := mmio.Get(links, linksSpeedShift, linksSpeedMask)
	return decodeLinkSpeed(code)
}

// SetPromiscuous enables or disables promiscuous mode by toggling the
// unicast/multicast promiscuous bits of the receive filter control
// register. The default filters already accept untagged unicast traffic;
// promiscuous mode additionally accepts non-matching unicast and all
// multicast frames.
func (d *Driver) SetPromiscuous(enable bool) {
	val := d.readReg(regFCTRL)
	if enable {
		val = mmio.Set(val, fctrlUPE)
		val = mmio.Set(val, fctrlMPE)
	} else {
		val = mmio.Clear(val, fctrlUPE)
		val = mmio.Clear(val, fctrlMPE)
	}
	d.writeReg(regFCTRL, val)
}

// ReadHWCounters reads the self-clearing hardware packet/octet counters
// (GPRC/GPTC/GORCL|H/GOTCL|H) and returns their values since the last read.
func (d *Driver) ReadHWCounters() (rxPackets, txPackets, rxBytes, txBytes uint64) {
	rxPackets = uint64(d.readReg(regGPRC))
	txPackets = uint64(d.readReg(regGPTC))
	rxBytes = uint64(d.readReg(regGORCL)) | uint64(d.readReg(regGORCH))<<32
	txBytes = uint64(d.readReg(regGOTCL)) | uint64(d.readReg(regGOTCH))<<32
	return
}

// ReadStats reads and accumulates this device's hardware counters into s,
// satisfying netdev.Device.
func (d *Driver) ReadStats(s *stats.Stats) {
	s.Read(d)
}

// NumRXQueues returns the number of configured RX queues.
func (d *Driver) NumRXQueues() int { return len(d.rx) }

// NumTXQueues returns the number of configured TX queues.
func (d *Driver) NumTXQueues() int { return len(d.tx) }
