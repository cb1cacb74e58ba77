// Throughput counters and reporting
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package stats implements the four saturating counters (rx/tx packets and
// bytes) the driver reports, and the Mpps/Mbit-s report format used by the
// example applications.
package stats

import (
	"fmt"
	"math"
	"time"
)

// overheadBytes is the preamble + inter-frame gap overhead added to every
// transmitted/received frame when converting byte counts to link-rate
// Mbit/s.
const overheadBytes = 20

// HWCounterSource is implemented by a device driver whose hardware
// counters can be read and accumulated. The 82599's GPRC/GPTC/GORCL|H/
// GOTCL|H counters self-clear on read.
type HWCounterSource interface {
	ReadHWCounters() (rxPackets, txPackets, rxBytes, txBytes uint64)
}

// Stats holds the four add-only, saturating counters.
type Stats struct {
	RxPackets uint64
	TxPackets uint64
	RxBytes   uint64
	TxBytes   uint64
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return math.MaxUint64
	}
	return sum
}

// Add accumulates delta into s, saturating at math.MaxUint64.
func (s *Stats) Add(delta Stats) {
	s.RxPackets = saturatingAdd(s.RxPackets, delta.RxPackets)
	s.TxPackets = saturatingAdd(s.TxPackets, delta.TxPackets)
	s.RxBytes = saturatingAdd(s.RxBytes, delta.RxBytes)
	s.TxBytes = saturatingAdd(s.TxBytes, delta.TxBytes)
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	*s = Stats{}
}

// Read reads and accumulates the hardware counters from src.
func (s *Stats) Read(src HWCounterSource) {
	rxPackets, txPackets, rxBytes, txBytes := src.ReadHWCounters()
	s.Add(Stats{
		RxPackets: rxPackets,
		TxPackets: txPackets,
		RxBytes:   rxBytes,
		TxBytes:   txBytes,
	})
}

// PrintDiff reports the Mpps and Mbit/s throughput between old and now over
// nsElapsed nanoseconds, adding overheadBytes of preamble/IFG overhead per
// packet to the byte total.
func PrintDiff(old, now Stats, nsElapsed int64) string {
	seconds := float64(nsElapsed) / 1e9
	if seconds <= 0 {
		seconds = 1e-9
	}

	rxPkts := now.RxPackets - old.RxPackets
	txPkts := now.TxPackets - old.TxPackets
	rxBytes := (now.RxBytes - old.RxBytes) + rxPkts*overheadBytes
	txBytes := (now.TxBytes - old.TxBytes) + txPkts*overheadBytes

	rxMpps := float64(rxPkts) / seconds / 1e6
	txMpps := float64(txPkts) / seconds / 1e6
	rxMbit := float64(rxBytes) * 8 / seconds / 1e6
	txMbit := float64(txBytes) * 8 / seconds / 1e6

	return fmt.Sprintf(
		"RX: %.2f Mpps %.2f Mbit/s, TX: %.2f Mpps %.2f Mbit/s",
		rxMpps, rxMbit, txMpps, txMbit,
	)
}

// Since is a convenience wrapper computing nsElapsed from a start time.
func Since(start time.Time) int64 {
	return time.Since(start).Nanoseconds()
}
