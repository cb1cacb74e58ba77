// PCI sysfs device binding and BAR0 mapping
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pcidev implements the sysfs side of PCI device ownership: reading
// and writing config space, mapping BAR0, and binding/unbinding the kernel
// driver.
package pcidev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/flowplane/ixgo/ixerr"
)

const sysfsDevices = "/sys/bus/pci/devices"
const sysfsDrivers = "/sys/bus/pci/drivers"

// Config space offsets. Reads assemble bytes big-endian.
const (
	offVendorID = 0x00
	offDeviceID = 0x02
	offClass    = 0x09
	offCommand  = 0x04
)

// ClassNetworkController is the top byte of the PCI class code identifying
// a network controller.
const ClassNetworkController = 0x02

// VendorIntel is Intel's PCI vendor id.
const VendorIntel = 0x8086

// commandBusMaster is bit 2 of the PCI command register.
const commandBusMaster = 1 << 2

// Device owns an open PCI device's sysfs handles and BAR0 mapping.
type Device struct {
	Address string // DDDD:BB:DD.F
	Driver  string // kernel driver name to bind/unbind

	config *os.File
	bar0   []byte
}

// Open opens the device's config file, ready for Vendor/DeviceID/Class/BAR
// reads. The caller must call Close when done.
func Open(addr string, driver string) (*Device, error) {
	path := sysfsDevices + "/" + addr + "/config"

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, ixerr.NewIoError(path, err)
	}

	return &Device{Address: addr, Driver: driver, config: f}, nil
}

// Close releases all open file handles and unmaps BAR0, if mapped.
func (d *Device) Close() error {
	var err error

	if d.bar0 != nil {
		err = unix.Munmap(d.bar0)
		d.bar0 = nil
	}

	if d.config != nil {
		if cerr := d.config.Close(); cerr != nil && err == nil {
			err = cerr
		}
		d.config = nil
	}

	return err
}

func (d *Device) readBE(off int64, n int) (uint32, error) {
	buf := make([]byte, n)
	if _, err := d.config.ReadAt(buf, off); err != nil {
		return 0, ixerr.NewIoError("config", err)
	}

	var v uint32
	for i := 0; i < n; i++ {
		v = v<<8 | uint32(buf[i])
	}

	return v, nil
}

// VendorID reads the 16-bit vendor id at config space offset 0.
func (d *Device) VendorID() (uint16, error) {
	v, err := d.readBE(offVendorID, 2)
	return uint16(v), err
}

// DeviceID reads the 16-bit device id at config space offset 2.
func (d *Device) DeviceID() (uint16, error) {
	v, err := d.readBE(offDeviceID, 2)
	return uint16(v), err
}

// ClassCode reads the top byte of the 3-byte class code at offset 9, the
// only byte used for classification.
func (d *Device) ClassCode() (uint8, error) {
	v, err := d.readBE(offClass, 1)
	return uint8(v), err
}

func (d *Device) command() (uint16, error) {
	v, err := d.readBE(offCommand, 2)
	return uint16(v), err
}

func (d *Device) writeCommand(val uint16) error {
	buf := []byte{byte(val >> 8), byte(val)}
	if _, err := d.config.WriteAt(buf, offCommand); err != nil {
		return ixerr.NewIoError("config", err)
	}
	return nil
}

// EnableDMA sets bit 2 (bus master enable) of the command register via a
// read-modify-write.
func (d *Device) EnableDMA() error {
	cmd, err := d.command()
	if err != nil {
		return err
	}
	return d.writeCommand(cmd | commandBusMaster)
}

// DisableDMA clears bit 2 of the command register via a read-modify-write.
func (d *Device) DisableDMA() error {
	cmd, err := d.command()
	if err != nil {
		return err
	}
	return d.writeCommand(cmd &^ commandBusMaster)
}

// MapResource mmaps resource0 (BAR0) read-write in its entirety and returns
// a byte slice view of it. A device that returns EINVAL on the mapping
// attempt is legacy/non-mappable and unsupported by this driver.
func (d *Device) MapResource() ([]byte, error) {
	path := sysfsDevices + "/" + d.Address + "/resource0"

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, ixerr.NewIoError(path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, ixerr.NewIoError(path, err)
	}

	size := info.Size()
	if size == 0 {
		// resource0 pseudo-files report size 0; fall back to a
		// conservative default BAR window and let the mmap itself
		// fail if it is wrong.
		size = 1 << 20
	}

	b, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		if err == unix.EINVAL {
			return nil, ixerr.NewUnsupported("legacy PCI device: BAR0 is not mappable")
		}
		return nil, ixerr.NewIoError(path, err)
	}

	d.bar0 = b
	return b, nil
}

// BAR0 returns the previously mapped BAR0 view, or nil if MapResource has
// not been called.
func (d *Device) BAR0() []byte {
	return d.bar0
}

// Bind writes the device address to the driver's bind sysfs file.
func (d *Device) Bind() error {
	return writeDriverFile(d.Driver, "bind", d.Address)
}

// Unbind writes the device address to the driver's unbind sysfs file. This
// is typically done once, before userspace takes over, and never reversed
// while the driver is running.
func (d *Device) Unbind() error {
	return writeDriverFile(d.Driver, "unbind", d.Address)
}

func writeDriverFile(driver, op, addr string) error {
	path := fmt.Sprintf("%s/%s/%s", sysfsDrivers, driver, op)

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return ixerr.NewIoError(path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(addr); err != nil {
		return ixerr.NewIoError(path, err)
	}

	return nil
}
