// Driver error kinds
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ixerr defines the error kinds shared by the memory, pci and ixgbe
// packages. Initialization errors are meant to propagate to the CLI;
// fast-path errors are either fatal (the caller should log.Fatal) or
// encoded in a short return count, never as a panic.
package ixerr

import "fmt"

// IoError wraps a filesystem or mmap failure against a specific path.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("ixgo: i/o error on %s: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// InvalidArgument signals a null, zero or otherwise forbidden argument.
type InvalidArgument struct {
	What string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("ixgo: invalid argument: %s", e.What)
}

// Unsupported signals a missing host capability (huge pages, legacy PCI
// device, wrong vendor).
type Unsupported struct {
	What string
}

func (e *Unsupported) Error() string {
	return fmt.Sprintf("ixgo: unsupported: %s", e.What)
}

// HardwareFault signals a failed hardware handshake (e.g. EEPROM read).
// Callers treat this as fatal.
type HardwareFault struct {
	What string
}

func (e *HardwareFault) Error() string {
	return fmt.Sprintf("ixgo: hardware fault: %s", e.What)
}

// QueueExhausted signals that a queue's mempool ran dry during RX. Callers
// treat this as fatal: it indicates the queue was undersized.
type QueueExhausted struct {
	Queue int
}

func (e *QueueExhausted) Error() string {
	return fmt.Sprintf("ixgo: queue %d exhausted its mempool", e.Queue)
}

func NewIoError(path string, err error) error {
	return &IoError{Path: path, Err: err}
}

func NewInvalidArgument(what string) error {
	return &InvalidArgument{What: what}
}

func NewUnsupported(what string) error {
	return &Unsupported{What: what}
}

func NewHardwareFault(what string) error {
	return &HardwareFault{What: what}
}

func NewQueueExhausted(queue int) error {
	return &QueueExhausted{Queue: queue}
}
