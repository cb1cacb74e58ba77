// NIC restoration on exit
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowplane/ixgo/netdev"
)

// installSignalHandler registers a handler, once at startup, that
// restores the NIC on interrupt: closing the device disables DMA and
// re-binds the kernel driver.
func installSignalHandler(dev netdev.Device) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		s := <-c
		log.Printf("caught %v, restoring device", s)
		_ = dev.Close()
		os.Exit(exitOK)
	}()
}
