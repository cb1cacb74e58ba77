// Driver and CLI configuration
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package config

import (
	"testing"

	"github.com/flowplane/ixgo/memory"
)

func TestDefault(t *testing.T) {
	c := Default()

	if c.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d", c.BatchSize)
	}
	if c.BufferCount != DefaultBufferCount {
		t.Errorf("BufferCount = %d", c.BufferCount)
	}
	if c.RingSize != DefaultRingSize {
		t.Errorf("RingSize = %d", c.RingSize)
	}
	if c.HugePageMount != memory.DefaultHugePageMount {
		t.Errorf("HugePageMount = %q", c.HugePageMount)
	}
	if c.RxQueues != 1 || c.TxQueues != 1 {
		t.Errorf("queue counts %d/%d", c.RxQueues, c.TxQueues)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("IXGO_BATCH_SIZE", "64")
	t.Setenv("IXGO_BUFFER_COUNT", "4096")
	t.Setenv("IXGO_HUGEPAGE_MOUNT", "/dev/hugepages")

	c := Load()

	if c.BatchSize != 64 {
		t.Errorf("BatchSize = %d", c.BatchSize)
	}
	if c.BufferCount != 4096 {
		t.Errorf("BufferCount = %d", c.BufferCount)
	}
	if c.HugePageMount != "/dev/hugepages" {
		t.Errorf("HugePageMount = %q", c.HugePageMount)
	}
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("IXGO_BATCH_SIZE", "zero")
	t.Setenv("IXGO_BUFFER_COUNT", "-1")

	c := Load()

	if c.BatchSize != DefaultBatchSize || c.BufferCount != DefaultBufferCount {
		t.Errorf("garbage overrides applied: %+v", c)
	}
}
