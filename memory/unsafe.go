// Virtual address <-> byte slice conversions
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package memory

import (
	"unsafe"

	"github.com/flowplane/ixgo/internal/mmio"
)

// addressOf returns the virtual address of a byte slice's backing array.
func addressOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// sliceAt reinterprets a virtual address as a byte slice of the given
// length, for use with mmap/munmap/mlock which operate on []byte.
func sliceAt(addr mmio.Address, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), length)
}
