// Legacy virtio register and ring layout
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtionet

// VendorVirtio is the virtio PCI vendor id.
const VendorVirtio = 0x1af4

// Transitional virtio device id range; 0x1000 is the network card.
const (
	deviceMin = 0x1000
	deviceMax = 0x103f
)

// Legacy configuration offsets, within the BAR0 I/O port window.
const (
	regDeviceFeatures = 0x00
	regDriverFeatures = 0x04
	regQueueAddress   = 0x08
	regQueueSize      = 0x0c
	regQueueSelect    = 0x0e
	regQueueNotify    = 0x10
	regDeviceStatus   = 0x12
	regISRStatus      = 0x13
	regDeviceConfig   = 0x14
)

// Device status bits.
const (
	statusAcknowledge = 1 << 0
	statusDriver      = 1 << 1
	statusDriverOK    = 1 << 2
	statusFailed      = 1 << 7
)

// Virtqueue descriptor flags.
const (
	descFlagNext  = 1 << 0
	descFlagWrite = 1 << 1
)

// Virtqueue indices: receive first, transmit second.
const (
	queueRX = 0
	queueTX = 1
)

// netHeaderSize is the legacy virtio-net header prepended to every frame
// when no header-extending features are negotiated.
const netHeaderSize = 10

// queueAlign is the alignment the legacy interface requires between the
// driver area and the device (used) area, and the unit of the queue
// address register (a page frame number).
const queueAlign = 4096
