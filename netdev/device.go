// Public device contract
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package netdev defines the Device contract the CLI, the generator and
// the forwarder build on, independent of which backend (ixgbe or
// virtio-net) implements it.
package netdev

import (
	"github.com/flowplane/ixgo/pbuf"
	"github.com/flowplane/ixgo/stats"
)

// Device is the minimal surface the CLI front-end and example applications
// need from any backend driver.
type Device interface {
	RxBatch(queue int, out []pbuf.Buffer, offset, n int) int
	TxBatch(queue int, in []pbuf.Buffer, offset, n int) int
	ReadStats(s *stats.Stats)
	SetPromiscuous(enable bool)
	LinkSpeed() LinkSpeed
	NumRXQueues() int
	NumTXQueues() int
	Close() error
}
