// Huge page discovery
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package memory

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/flowplane/ixgo/ixerr"
)

const meminfoPath = "/proc/meminfo"
const mtabPath = "/etc/mtab"

// parseHugePageSize scans meminfo-formatted content for a "Hugepagesize:"
// entry and returns it in bytes. It returns 0, false if the entry is
// absent or its unit is not one of {kB, MB, GB}.
func parseHugePageSize(r io.Reader) (size int64, ok bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Hugepagesize:") {
			continue
		}

		fields := strings.Fields(strings.TrimPrefix(line, "Hugepagesize:"))
		if len(fields) != 2 {
			return 0, false
		}

		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return 0, false
		}

		switch fields[1] {
		case "kB":
			return n * 1024, true
		case "MB":
			return n * 1024 * 1024, true
		case "GB":
			return n * 1024 * 1024 * 1024, true
		default:
			return 0, false
		}
	}

	return 0, false
}

// parseMounts reports whether mtab-formatted content lists a hugetlbfs
// mount at mountPoint.
func parseMounts(r io.Reader, mountPoint string) bool {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}

		// device mountpoint fstype ...
		if fields[2] == "hugetlbfs" && fields[1] == mountPoint {
			return true
		}
	}

	return false
}

func hugePageSize() (int64, bool) {
	f, err := os.Open(meminfoPath)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	return parseHugePageSize(f)
}

func hugeTLBMounted(mountPoint string) bool {
	f, err := os.Open(mtabPath)
	if err != nil {
		return false
	}
	defer f.Close()

	return parseMounts(f, mountPoint)
}

// HugePageSize returns the huge page size discovered on this host, and an
// error (Unsupported) if huge pages are not available.
func (m *Manager) HugePageSize() (int64, error) {
	size, ok := hugePageSize()
	if !ok {
		return 0, ixerr.NewUnsupported("no Hugepagesize entry in /proc/meminfo")
	}

	mount := m.HugePageMount
	if mount == "" {
		mount = DefaultHugePageMount
	}

	if !hugeTLBMounted(mount) {
		return 0, ixerr.NewUnsupported("no hugetlbfs mount at " + mount)
	}

	return size, nil
}
