// DMA-capable memory allocation and address translation
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package memory

import (
	"strings"
	"testing"
)

const testMeminfo = `MemTotal:       32617312 kB
MemFree:        20741232 kB
HugePages_Total:     512
HugePages_Free:      512
Hugepagesize:       2048 kB
`

const testMtab = `/dev/nvme0n1p2 / ext4 rw,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec 0 0
hugetlbfs /mnt/huge hugetlbfs rw,relatime,pagesize=2M 0 0
`

func TestParseHugePageSize(t *testing.T) {
	size, ok := parseHugePageSize(strings.NewReader(testMeminfo))
	if !ok {
		t.Fatal("Hugepagesize entry not found")
	}
	if size != 2048*1024 {
		t.Errorf("size = %d, want %d", size, 2048*1024)
	}
}

func TestParseHugePageSizeUnits(t *testing.T) {
	for _, tt := range []struct {
		line string
		size int64
		ok   bool
	}{
		{"Hugepagesize:       2 MB", 2 * 1024 * 1024, true},
		{"Hugepagesize:       1 GB", 1024 * 1024 * 1024, true},
		{"Hugepagesize:       2048 TB", 0, false},
		{"Hugepagesize:       many kB", 0, false},
	} {
		size, ok := parseHugePageSize(strings.NewReader(tt.line))
		if ok != tt.ok || size != tt.size {
			t.Errorf("%q: size %d ok %v, want %d %v", tt.line, size, ok, tt.size, tt.ok)
		}
	}
}

func TestParseHugePageSizeAbsent(t *testing.T) {
	if _, ok := parseHugePageSize(strings.NewReader("MemTotal: 1 kB\n")); ok {
		t.Error("reported a size with no Hugepagesize entry")
	}
}

func TestParseMounts(t *testing.T) {
	if !parseMounts(strings.NewReader(testMtab), "/mnt/huge") {
		t.Error("hugetlbfs mount at /mnt/huge not detected")
	}

	if parseMounts(strings.NewReader(testMtab), "/dev/hugepages") {
		t.Error("detected a hugetlbfs mount at the wrong mount point")
	}
}

func TestPageSizePowerOfTwo(t *testing.T) {
	m := New("")

	size := m.PageSize()
	if size < 4 || size&(size-1) != 0 {
		t.Errorf("page size %d is not a power of two >= 4", size)
	}
}

func TestAllocateRejectsZeroSize(t *testing.T) {
	m := New("")

	if _, err := m.Allocate(0, false, false); err == nil {
		t.Error("Allocate(0) succeeded")
	}
}

func TestStandardAllocate(t *testing.T) {
	m := New("")

	addr, err := m.Allocate(4096, false, false)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Free(addr, 4096, false)

	if !addr.Valid() {
		t.Fatal("Allocate returned the nil address")
	}

	// The mapping must be readable and writable.
	b := sliceAt(addr, 4096)
	b[0] = 0x42
	b[4095] = 0x24

	if b[0] != 0x42 || b[4095] != 0x24 {
		t.Error("mapping did not hold written values")
	}
}

func TestVirtToPhysOffsetPreserved(t *testing.T) {
	m := New("")

	addr, err := m.Allocate(4096, false, false)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Free(addr, 4096, false)

	// Touch the page so it is present in the page table.
	sliceAt(addr, 1)[0] = 1

	probe := addr + 123

	phys, err := m.VirtToPhys(probe)
	if err != nil {
		t.Fatal(err)
	}

	if phys == 0 {
		t.Skip("pagemap PFNs hidden (needs CAP_SYS_ADMIN)")
	}

	pageSize := uint64(m.PageSize())
	if phys%pageSize != uint64(probe)%pageSize {
		t.Errorf("in-page offset not preserved: virt %#x phys %#x", probe, phys)
	}
}

func TestVirtToPhysRejectsNil(t *testing.T) {
	m := New("")

	if _, err := m.VirtToPhys(0); err == nil {
		t.Error("VirtToPhys(0) succeeded")
	}
}

func TestRoundUp(t *testing.T) {
	for _, tt := range []struct {
		n, multiple, want int
	}{
		{1, 4096, 4096},
		{4096, 4096, 4096},
		{4097, 4096, 8192},
		{10, 0, 10},
	} {
		if got := roundUp(tt.n, tt.multiple); got != tt.want {
			t.Errorf("roundUp(%d, %d) = %d, want %d", tt.n, tt.multiple, got, tt.want)
		}
	}
}

func TestDMARegionPhysical(t *testing.T) {
	r := DMARegion{
		Size:      4096,
		ChunkSize: 2048,
		ChunkPhys: []uint64{0x100000, 0x800000},
	}

	if got := r.Physical(0); got != 0x100000 {
		t.Errorf("Physical(0) = %#x", got)
	}
	if got := r.Physical(100); got != 0x100064 {
		t.Errorf("Physical(100) = %#x", got)
	}

	// The second chunk need not follow the first physically.
	if got := r.Physical(2048); got != 0x800000 {
		t.Errorf("Physical(2048) = %#x", got)
	}
	if got := r.Physical(2049); got != 0x800001 {
		t.Errorf("Physical(2049) = %#x", got)
	}
}

func TestLEUint64(t *testing.T) {
	b := []byte{0xef, 0xcd, 0xab, 0x89, 0x67, 0x45, 0x23, 0x01}

	if got := leUint64(b); got != 0x0123456789abcdef {
		t.Errorf("leUint64 = %#x", got)
	}
}
