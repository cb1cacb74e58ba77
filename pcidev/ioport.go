// PCI I/O port resource access
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pcidev

import (
	"os"

	"github.com/flowplane/ixgo/ixerr"
)

// IOResource is an open sysfs resource file for a BAR in I/O port space.
// Such BARs cannot be mmap'ed; the kernel instead forwards fixed-width
// reads and writes at file offsets to the corresponding port accesses.
// Legacy virtio devices expose their configuration this way.
type IOResource struct {
	path string
	f    *os.File
}

// OpenIOResource opens the device's resourceN file for port-style access.
func (d *Device) OpenIOResource(n int) (*IOResource, error) {
	path := sysfsDevices + "/" + d.Address + "/resource" + string(rune('0'+n))

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, ixerr.NewIoError(path, err)
	}

	return &IOResource{path: path, f: f}, nil
}

// Close releases the resource file handle.
func (r *IOResource) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// Read8 reads one byte at off.
func (r *IOResource) Read8(off int64) uint8 {
	var b [1]byte
	r.f.ReadAt(b[:], off)
	return b[0]
}

// Write8 writes one byte at off.
func (r *IOResource) Write8(off int64, val uint8) {
	b := [1]byte{val}
	r.f.WriteAt(b[:], off)
}

// Read16 reads a 16-bit little-endian value at off.
func (r *IOResource) Read16(off int64) uint16 {
	var b [2]byte
	r.f.ReadAt(b[:], off)
	return uint16(b[0]) | uint16(b[1])<<8
}

// Write16 writes a 16-bit little-endian value at off.
func (r *IOResource) Write16(off int64, val uint16) {
	b := [2]byte{byte(val), byte(val >> 8)}
	r.f.WriteAt(b[:], off)
}

// Read32 reads a 32-bit little-endian value at off.
func (r *IOResource) Read32(off int64) uint32 {
	var b [4]byte
	r.f.ReadAt(b[:], off)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Write32 writes a 32-bit little-endian value at off.
func (r *IOResource) Write32(off int64, val uint32) {
	b := [4]byte{byte(val), byte(val >> 8), byte(val >> 16), byte(val >> 24)}
	r.f.WriteAt(b[:], off)
}
