// DMA-capable memory allocation and address translation
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package memory implements the driver's only memory manager: huge-page
// backed, physically-contiguous, page-aligned allocation and virtual-to-
// physical address translation. Raw typed access to arbitrary addresses is
// provided by internal/mmio.
//
// There is exactly one memory manager, built on golang.org/x/sys/unix and
// unsafe.Pointer arithmetic.
package memory

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/flowplane/ixgo/internal/mmio"
	"github.com/flowplane/ixgo/ixerr"
)

const pagemapPath = "/proc/self/pagemap"
const pagemapEntrySize = 8
const presentBit = uint64(1) << 63
const pfnMask = (uint64(1) << 55) - 1

// DefaultHugePageMount is used when the caller does not override it via
// Manager.HugePageMount or the IXGO_HUGEPAGE_MOUNT environment variable.
const DefaultHugePageMount = "/mnt/huge"

// DMABuffer is an immutable pair of virtual and physical addresses returned
// by Manager.DMAAllocate.
type DMABuffer struct {
	Virtual  mmio.Address
	Physical uint64
}

// Manager allocates and tracks DMA-capable memory. The zero value is ready
// to use with DefaultHugePageMount.
type Manager struct {
	// HugePageMount overrides the hugetlbfs mount point checked by
	// HugePageSize. Defaults to DefaultHugePageMount.
	HugePageMount string
}

// New returns a Manager configured with mount, or DefaultHugePageMount if
// mount is empty.
func New(mount string) *Manager {
	if mount == "" {
		mount = DefaultHugePageMount
	}
	return &Manager{HugePageMount: mount}
}

// PageSize returns the host's regular page size in bytes.
func (m *Manager) PageSize() int {
	return unix.Getpagesize()
}

// Allocate maps bytes of anonymous memory, optionally huge-page backed and
// locked into physical RAM. When contiguous is true and huge is true, the
// request must fit within a single huge page; a larger request fails with
// OutOfMemory (modeled here as ixerr.InvalidArgument, since it is a caller
// sizing error rather than host exhaustion).
func (m *Manager) Allocate(size int, huge bool, contiguous bool) (mmio.Address, error) {
	if size <= 0 {
		return 0, ixerr.NewInvalidArgument("allocate: size must be positive")
	}

	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
	length := size

	if huge {
		hugeSize, err := m.HugePageSize()
		if err != nil {
			return 0, err
		}

		length = roundUp(size, int(hugeSize))

		if contiguous && int64(length) > hugeSize {
			return 0, ixerr.NewInvalidArgument("allocate: contiguous request exceeds one huge page")
		}

		flags |= unix.MAP_HUGETLB
	}

	b, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return 0, ixerr.NewIoError("mmap", err)
	}

	if err := unix.Mlock(b); err != nil {
		_ = unix.Munmap(b)
		return 0, ixerr.NewIoError("mlock", err)
	}

	return mmio.Address(addressOf(b)), nil
}

// Free unmaps size bytes (rounded up to the huge page size when huge is
// true) previously returned by Allocate.
func (m *Manager) Free(addr mmio.Address, size int, huge bool) error {
	if !addr.Valid() {
		return ixerr.NewInvalidArgument("free: nil address")
	}

	length := size
	if huge {
		hugeSize, err := m.HugePageSize()
		if err != nil {
			return err
		}
		length = roundUp(size, int(hugeSize))
	}

	b := sliceAt(addr, length)
	if err := unix.Munlock(b); err != nil {
		return ixerr.NewIoError("munlock", err)
	}
	if err := unix.Munmap(b); err != nil {
		return ixerr.NewIoError("munmap", err)
	}

	return nil
}

// VirtToPhys translates a process virtual address into its physical
// address by reading /proc/self/pagemap. It returns 0 if the page is not
// present; callers must treat 0 as a fatal failure.
func (m *Manager) VirtToPhys(virt mmio.Address) (uint64, error) {
	if !virt.Valid() {
		return 0, ixerr.NewInvalidArgument("virt_to_phys: nil address")
	}

	f, err := os.Open(pagemapPath)
	if err != nil {
		return 0, ixerr.NewIoError(pagemapPath, err)
	}
	defer f.Close()

	pageSize := int64(m.PageSize())
	offset := (int64(virt) / pageSize) * pagemapEntrySize

	entry := make([]byte, pagemapEntrySize)
	if _, err := f.ReadAt(entry, offset); err != nil {
		return 0, ixerr.NewIoError(pagemapPath, err)
	}

	raw := leUint64(entry)
	if raw&presentBit == 0 {
		return 0, nil
	}

	pfn := raw & pfnMask
	phys := pfn*uint64(pageSize) + uint64(int64(virt)%pageSize)

	return phys, nil
}

// DMAAllocate allocates a physically-contiguous, huge-page backed buffer of
// at least size bytes, touches its first byte to force page population, and
// resolves its physical address.
func (m *Manager) DMAAllocate(size int) (DMABuffer, error) {
	virt, err := m.Allocate(size, true, true)
	if err != nil {
		return DMABuffer{}, err
	}

	mmio.StoreByte(virt, 0)

	phys, err := m.VirtToPhys(virt)
	if err != nil {
		return DMABuffer{}, err
	}
	if phys == 0 {
		return DMABuffer{}, ixerr.NewHardwareFault("virt_to_phys returned 0 for a freshly allocated page")
	}

	return DMABuffer{Virtual: virt, Physical: phys}, nil
}

// DMARegion is a huge-page backed DMA region that may span multiple huge
// pages. Physical contiguity is guaranteed only within each ChunkSize
// chunk; ChunkPhys holds the physical base of each chunk in order.
type DMARegion struct {
	Virtual   mmio.Address
	Size      int
	ChunkSize int
	ChunkPhys []uint64
}

// Physical returns the DMA address of the byte at off. The caller must
// ensure the object at off does not straddle a chunk boundary.
func (r DMARegion) Physical(off int) uint64 {
	return r.ChunkPhys[off/r.ChunkSize] + uint64(off%r.ChunkSize)
}

// DMAAllocateRegion allocates a huge-page backed region of at least size
// bytes that may span multiple huge pages, touching and translating each
// page. Ring memory needs DMAAllocate's strict contiguity; buffer pools,
// whose slots never straddle a huge page, can use this and grow beyond a
// single huge page.
func (m *Manager) DMAAllocateRegion(size int) (DMARegion, error) {
	hugeSize, err := m.HugePageSize()
	if err != nil {
		return DMARegion{}, err
	}

	rounded := roundUp(size, int(hugeSize))

	virt, err := m.Allocate(rounded, true, false)
	if err != nil {
		return DMARegion{}, err
	}

	chunks := rounded / int(hugeSize)
	phys := make([]uint64, chunks)

	for i := 0; i < chunks; i++ {
		chunk := virt + mmio.Address(i*int(hugeSize))
		mmio.StoreByte(chunk, 0)

		p, err := m.VirtToPhys(chunk)
		if err != nil {
			return DMARegion{}, err
		}
		if p == 0 {
			return DMARegion{}, ixerr.NewHardwareFault("virt_to_phys returned 0 for a freshly allocated page")
		}

		phys[i] = p
	}

	return DMARegion{
		Virtual:   virt,
		Size:      rounded,
		ChunkSize: int(hugeSize),
		ChunkPhys: phys,
	}, nil
}

func roundUp(n int, multiple int) int {
	if multiple <= 0 {
		return n
	}
	if n%multiple == 0 {
		return n
	}
	return n + (multiple - n%multiple)
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
