// Packet forwarder application
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/flowplane/ixgo/config"
	"github.com/flowplane/ixgo/mempool"
	"github.com/flowplane/ixgo/netdev"
	"github.com/flowplane/ixgo/pbuf"
	"github.com/flowplane/ixgo/stats"
)

// forward echoes received frames back out the same device, printing
// throughput once per second. With verbose set, each forwarded frame is
// decoded and printed, at a substantial throughput cost.
func forward(dev netdev.Device, cfg config.Config, agg *stats.Stats, verbose bool) int {
	dev.SetPromiscuous(true)

	batch := make([]pbuf.Buffer, cfg.BatchSize)

	var old stats.Stats
	last := time.Now()

	for {
		n := dev.RxBatch(0, batch, 0, cfg.BatchSize)

		if verbose {
			for i := 0; i < n; i++ {
				pkt := gopacket.NewPacket(batch[i].Payload(), layers.LayerTypeEthernet, gopacket.NoCopy)
				log.Printf("%v", pkt)
			}
		}

		sent := dev.TxBatch(0, batch, 0, n)

		// Drop what the TX ring would not take, returning each
		// buffer to its owning pool.
		for i := sent; i < n; i++ {
			if pool, ok := mempool.FindOwner(batch[i].MempoolHandle()); ok {
				pool.Release(batch[i])
			}
		}

		if time.Since(last) >= time.Second {
			dev.ReadStats(agg)
			elapsed := time.Since(last).Nanoseconds()
			log.Printf("%s", stats.PrintDiff(old, *agg, elapsed))
			old = *agg
			last = time.Now()
		}
	}
}
