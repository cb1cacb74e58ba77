// Driver and CLI configuration
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package config centralizes the tunables shared by the CLI and the
// driver: batch size, buffer pool size, ring size and the huge-page
// mount point.
package config

import (
	"os"
	"strconv"

	"github.com/flowplane/ixgo/memory"
)

const (
	DefaultBatchSize   = 32
	DefaultBufferCount = 2048
	DefaultEntrySize   = 2048
	DefaultRingSize    = 512
)

// Config holds the tunables a running driver instance needs.
type Config struct {
	BatchSize     int
	BufferCount   int
	HugePageMount string
	RxQueues      int
	TxQueues      int
	RingSize      int
}

// Default returns a Config populated with the package defaults.
func Default() Config {
	return Config{
		BatchSize:     DefaultBatchSize,
		BufferCount:   DefaultBufferCount,
		HugePageMount: memory.DefaultHugePageMount,
		RxQueues:      1,
		TxQueues:      1,
		RingSize:      DefaultRingSize,
	}
}

// Load returns Default() with IXGO_* environment variables applied on top,
// for callers that want environment overrides without touching flag
// parsing (the CLI applies flags on top of this in turn).
func Load() Config {
	c := Default()

	if v := os.Getenv("IXGO_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BatchSize = n
		}
	}

	if v := os.Getenv("IXGO_BUFFER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BufferCount = n
		}
	}

	if v := os.Getenv("IXGO_HUGEPAGE_MOUNT"); v != "" {
		c.HugePageMount = v
	}

	return c
}
