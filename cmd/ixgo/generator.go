// Packet generator application
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/time/rate"

	"github.com/flowplane/ixgo/config"
	"github.com/flowplane/ixgo/memory"
	"github.com/flowplane/ixgo/mempool"
	"github.com/flowplane/ixgo/netdev"
	"github.com/flowplane/ixgo/pbuf"
	"github.com/flowplane/ixgo/stats"
)

// templateFrame builds the UDP test frame every generated packet carries.
func templateFrame() ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	udp := &layers.UDP{
		SrcPort: 42,
		DstPort: 42,
	}
	udp.SetNetworkLayerForChecksum(ip)

	payload := make([]byte, 18)
	for i := range payload {
		payload[i] = byte(i)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload))
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// generate transmits copies of the template frame as fast as the device
// (or the given rate limit) allows, printing throughput once per second.
func generate(dev netdev.Device, cfg config.Config, agg *stats.Stats, pps int) int {
	frame, err := templateFrame()
	if err != nil {
		log.Printf("building template frame: %v", err)
		return exitRuntime
	}

	mem := memory.New(cfg.HugePageMount)

	pool := mempool.New(cfg.BufferCount)
	region, err := mem.DMAAllocateRegion(cfg.BufferCount * config.DefaultEntrySize)
	if err != nil {
		log.Printf("%v", err)
		return exitRuntime
	}
	if err := pool.Allocate(config.DefaultEntrySize, region); err != nil {
		log.Printf("%v", err)
		return exitRuntime
	}

	var limiter *rate.Limiter
	if pps > 0 {
		limiter = rate.NewLimiter(rate.Limit(pps), cfg.BatchSize)
	}

	dev.SetPromiscuous(true)

	batch := make([]pbuf.Buffer, cfg.BatchSize)
	ctx := context.Background()

	var old stats.Stats
	last := time.Now()

	for {
		n := pool.AcquireBatch(batch, 0, cfg.BatchSize)

		for i := 0; i < n; i++ {
			buf := batch[i]
			copy(buf.PayloadBuffer(), frame)
			buf.SetPacketSize(uint32(len(frame)))
		}

		if limiter != nil && n > 0 {
			if err := limiter.WaitN(ctx, n); err != nil {
				log.Printf("rate limiter: %v", err)
				return exitRuntime
			}
		}

		sent := dev.TxBatch(0, batch, 0, n)

		// The TX ring was full for the remainder; hand those
		// buffers straight back rather than leaking them.
		pool.ReleaseBatch(batch, sent, n-sent)

		if time.Since(last) >= time.Second {
			dev.ReadStats(agg)
			elapsed := time.Since(last).Nanoseconds()
			log.Printf("%s", stats.PrintDiff(old, *agg, elapsed))
			old = *agg
			last = time.Now()
		}
	}
}
