// User-space raw memory access primitives
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mmio provides typed raw loads and stores at arbitrary process
// virtual addresses, including volatile variants that forbid compiler
// reordering. It underlies the memory manager's page touching, the packet
// buffer and descriptor layouts, and the ixgbe driver's MMIO register
// programming.
package mmio

import (
	"sync/atomic"
	"unsafe"
)

// Address is a process virtual address. The zero value is the invalid
// sentinel: callers must never dereference it.
type Address uintptr

// Valid reports whether addr is non-zero.
func (addr Address) Valid() bool {
	return addr != 0
}

func (addr Address) mustBeValid() {
	if addr == 0 {
		panic("mmio: dereference of nil address")
	}
}

// Byte loads a single byte at addr.
func Byte(addr Address) uint8 {
	addr.mustBeValid()
	return *(*uint8)(unsafe.Pointer(uintptr(addr)))
}

// StoreByte stores a single byte at addr.
func StoreByte(addr Address, val uint8) {
	addr.mustBeValid()
	*(*uint8)(unsafe.Pointer(uintptr(addr))) = val
}

// Uint16 loads a 16-bit little-endian value at addr.
func Uint16(addr Address) uint16 {
	addr.mustBeValid()
	return *(*uint16)(unsafe.Pointer(uintptr(addr)))
}

// StoreUint16 stores a 16-bit little-endian value at addr.
func StoreUint16(addr Address, val uint16) {
	addr.mustBeValid()
	*(*uint16)(unsafe.Pointer(uintptr(addr))) = val
}

// Uint32 loads a 32-bit little-endian value at addr.
func Uint32(addr Address) uint32 {
	addr.mustBeValid()
	return *(*uint32)(unsafe.Pointer(uintptr(addr)))
}

// StoreUint32 stores a 32-bit little-endian value at addr.
func StoreUint32(addr Address, val uint32) {
	addr.mustBeValid()
	*(*uint32)(unsafe.Pointer(uintptr(addr))) = val
}

// Uint64 loads a 64-bit little-endian value at addr.
func Uint64(addr Address) uint64 {
	addr.mustBeValid()
	return *(*uint64)(unsafe.Pointer(uintptr(addr)))
}

// StoreUint64 stores a 64-bit little-endian value at addr.
func StoreUint64(addr Address, val uint64) {
	addr.mustBeValid()
	*(*uint64)(unsafe.Pointer(uintptr(addr))) = val
}

// VolatileUint32 loads a 32-bit value at addr through an atomic operation,
// forbidding the compiler from reordering or eliding the access. Used for
// MMIO registers and descriptor words the NIC observes concurrently.
func VolatileUint32(addr Address) uint32 {
	addr.mustBeValid()
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
}

// StoreVolatileUint32 stores a 32-bit value at addr through an atomic
// operation, forbidding the compiler from reordering or eliding the access.
func StoreVolatileUint32(addr Address, val uint32) {
	addr.mustBeValid()
	atomic.StoreUint32((*uint32)(unsafe.Pointer(uintptr(addr))), val)
}

// VolatileUint64 loads a 64-bit value at addr through an atomic operation.
func VolatileUint64(addr Address) uint64 {
	addr.mustBeValid()
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(uintptr(addr))))
}

// StoreVolatileUint64 stores a 64-bit value at addr through an atomic
// operation.
func StoreVolatileUint64(addr Address, val uint64) {
	addr.mustBeValid()
	atomic.StoreUint64((*uint64)(unsafe.Pointer(uintptr(addr))), val)
}

// Slice reinterprets length bytes starting at addr as a byte slice, for
// callers that need direct access to a payload region. addr must remain
// valid (i.e. the underlying allocation must outlive the slice).
func Slice(addr Address, length int) []byte {
	if length == 0 {
		return nil
	}
	addr.mustBeValid()
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), length)
}

// Get returns the bitfield at the given bit position and mask, mirroring the
// bitwise helpers used throughout register programming.
func Get(val uint32, pos int, mask uint32) uint32 {
	return (val >> pos) & mask
}

// Set returns val with an individual bit set at pos.
func Set(val uint32, pos int) uint32 {
	return val | (1 << uint(pos))
}

// Clear returns val with an individual bit cleared at pos.
func Clear(val uint32, pos int) uint32 {
	return val &^ (1 << uint(pos))
}

// SetN returns val with a field of the given mask and position set to field.
func SetN(val uint32, pos int, mask uint32, field uint32) uint32 {
	return (val &^ (mask << uint(pos))) | (field << uint(pos))
}
