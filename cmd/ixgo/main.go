// User-space packet I/O driver CLI
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// The ixgo command binds a PCI network interface and runs one of two
// applications over it: a packet generator or a forwarder.
//
// Usage:
//
//	ixgo (generator | forwarder) <pci-addr> [flags]
//
// where <pci-addr> has the form DDDD:BB:DD.F. The backend driver (ixgbe
// or virtio-net) is selected by the device's PCI vendor and device id.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/flowplane/ixgo/config"
	"github.com/flowplane/ixgo/ixerr"
	"github.com/flowplane/ixgo/ixgbe"
	"github.com/flowplane/ixgo/netdev"
	"github.com/flowplane/ixgo/pcidev"
	"github.com/flowplane/ixgo/stats"
	"github.com/flowplane/ixgo/virtionet"
)

// Exit codes.
const (
	exitOK          = 0
	exitBadArgs     = 1
	exitNotFound    = 2
	exitUnsupported = 3
	exitRuntime     = 4
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s (generator | forwarder) <pci-addr> [flags]\n", os.Args[0])
}

func main() {
	log.SetFlags(0)
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 2 {
		usage()
		return exitBadArgs
	}

	app := args[0]
	addr := args[1]

	if app != "generator" && app != "forwarder" {
		usage()
		return exitBadArgs
	}

	if !validPCIAddr(addr) {
		fmt.Fprintf(os.Stderr, "%s: invalid PCI address %q, want DDDD:BB:DD.F\n", os.Args[0], addr)
		return exitBadArgs
	}

	cfg := config.Load()

	fs := flag.NewFlagSet(app, flag.ContinueOnError)
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "packets per rx/tx batch")
	fs.IntVar(&cfg.BufferCount, "buffer-count", cfg.BufferCount, "packet buffers per mempool")
	fs.StringVar(&cfg.HugePageMount, "hugepage-mount", cfg.HugePageMount, "hugetlbfs mount point")
	statsAddr := fs.String("stats-addr", "", "serve live stats over HTTP on this address")
	ratePPS := fs.Int("rate", 0, "generator transmit rate in packets/s (0 = unlimited)")
	verbose := fs.Bool("verbose", false, "forwarder: decode and print forwarded frames")

	if err := fs.Parse(args[2:]); err != nil {
		return exitBadArgs
	}

	dev, code := openDevice(addr, cfg)
	if code != exitOK {
		return code
	}

	installSignalHandler(dev)

	var agg stats.Stats

	if *statsAddr != "" {
		srv := stats.NewServer(func() stats.Stats { return agg })
		go func() {
			if err := srv.Serve(*statsAddr); err != nil {
				log.Printf("stats server: %v", err)
			}
		}()
	}

	log.Printf("%s: link %s", addr, dev.LinkSpeed())

	switch app {
	case "generator":
		return generate(dev, cfg, &agg, *ratePPS)
	default:
		return forward(dev, cfg, &agg, *verbose)
	}
}

// validPCIAddr reports whether s has the form DDDD:BB:DD.F.
func validPCIAddr(s string) bool {
	if len(s) != 12 || s[4] != ':' || s[7] != ':' || s[10] != '.' {
		return false
	}

	for i, c := range s {
		switch i {
		case 4, 7, 10:
			continue
		}
		hex := c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
		if !hex {
			return false
		}
	}

	return true
}

// openDevice probes the device's PCI ids and opens the matching backend.
func openDevice(addr string, cfg config.Config) (netdev.Device, int) {
	probe, err := pcidev.Open(addr, "")
	if err != nil {
		var ioErr *ixerr.IoError
		if errors.As(err, &ioErr) && os.IsNotExist(ioErr.Err) {
			fmt.Fprintf(os.Stderr, "%s: device %s not found\n", os.Args[0], addr)
			return nil, exitNotFound
		}
		log.Printf("%v", err)
		return nil, exitRuntime
	}

	vendor, verr := probe.VendorID()
	device, derr := probe.DeviceID()
	probe.Close()

	if verr != nil || derr != nil {
		log.Printf("%s: cannot read PCI ids", addr)
		return nil, exitRuntime
	}

	var dev netdev.Device

	switch {
	case vendor == pcidev.VendorIntel:
		dev, err = ixgbe.New(addr, cfg.RxQueues, cfg.TxQueues, cfg)
	case virtionet.Supported(vendor, device):
		dev, err = virtionet.New(addr, cfg)
	default:
		fmt.Fprintf(os.Stderr, "%s: no driver for device %04x:%04x\n", os.Args[0], vendor, device)
		return nil, exitUnsupported
	}

	if err != nil {
		var unsup *ixerr.Unsupported
		if errors.As(err, &unsup) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			return nil, exitUnsupported
		}
		log.Printf("%v", err)
		return nil, exitRuntime
	}

	return dev, exitOK
}
