// BAR0 slice to virtual address conversion
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ixgbe

import "unsafe"

// addressOfSlice returns the virtual address of a byte slice's backing
// array, used to turn pcidev's mmap'ed BAR0 view into a base address for
// mmio register access.
func addressOfSlice(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
