// 82599 register map
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package ixgbe

import "github.com/flowplane/ixgo/netdev"

// BAR0 register offsets, per Intel 82599 datasheet §8.2 (partial, the
// subset this driver programs). Per-queue registers are indexed with a
// 64-byte stride, matching the datasheet's RDBAL(i)/RDBAH(i)/... layout.
const (
	regCTRL     = 0x00000
	regSTATUS   = 0x00008
	regEIMC     = 0x00888
	regRXCTRL   = 0x03000
	regHLREG0   = 0x04240
	regLINKS    = 0x042A4
	regAUTOC    = 0x042A0
	regDMATXCTL = 0x04A80
	regEEC      = 0x10010
	regRDRXCTL  = 0x02F00

	regGPRC  = 0x04074
	regGPTC  = 0x04080
	regGORCL = 0x04088
	regGORCH = 0x0408C
	regGOTCL = 0x04090
	regGOTCH = 0x04094
)

// Flow control registers, zeroed at init (flow control disabled).
const (
	regFCRTV = 0x032A0
	regFCCFG = 0x03D00
)

func regFCTTV(i int) uint32 { return 0x03200 + 4*uint32(i) }
func regFCRTL(i int) uint32 { return 0x03220 + 4*uint32(i) }
func regFCRTH(i int) uint32 { return 0x03260 + 4*uint32(i) }

// FCTRL (receive filter control) and its bits.
const (
	regFCTRL = 0x05080

	fctrlMPE = 8  // multicast promiscuous
	fctrlUPE = 9  // unicast promiscuous
	fctrlBAM = 10 // broadcast accept
)

const queueStride = 0x40

func regRDBAL(i int) uint32  { return 0x01000 + queueStride*uint32(i) }
func regRDBAH(i int) uint32  { return 0x01004 + queueStride*uint32(i) }
func regRDLEN(i int) uint32  { return 0x01008 + queueStride*uint32(i) }
func regRDH(i int) uint32    { return 0x01010 + queueStride*uint32(i) }
func regRDT(i int) uint32    { return 0x01018 + queueStride*uint32(i) }
func regRXDCTL(i int) uint32 { return 0x01028 + queueStride*uint32(i) }
func regSRRCTL(i int) uint32 { return 0x01014 + queueStride*uint32(i) }

func regTDBAL(i int) uint32  { return 0x06000 + queueStride*uint32(i) }
func regTDBAH(i int) uint32  { return 0x06004 + queueStride*uint32(i) }
func regTDLEN(i int) uint32  { return 0x06008 + queueStride*uint32(i) }
func regTDH(i int) uint32    { return 0x06010 + queueStride*uint32(i) }
func regTDT(i int) uint32    { return 0x06018 + queueStride*uint32(i) }
func regTXDCTL(i int) uint32 { return 0x06028 + queueStride*uint32(i) }

// CTRL bits.
const ctrlRST = 26

// EEC bits.
const eecAutoRD = 9

// RDRXCTL bits.
const rdrxctlDMAIDONE = 3

// RXCTRL bits.
const rxctrlRXEN = 0

// HLREG0 bits.
const (
	hlreg0TXCRCEN   = 0
	hlreg0RXCRCSTRP = 1
	hlreg0TXPADEN   = 10
)

// DMATXCTL bits.
const dmatxctlTE = 0

// RXDCTL/TXDCTL bits.
const dctlENABLE = 25

// SRRCTL fields: descriptor type and drop-enable.
const (
	srrctlDescTypeShift     = 25
	srrctlDescTypeMask      = 0x7
	srrctlDescTypeAdvOneBuf = 0x1
	srrctlDropEN            = 28
)

// TXDCTL prefetch, host and write-back thresholds.
const (
	txdctlPThresh = 36
	txdctlHThresh = 8
	txdctlWThresh = 4
)

// AUTOC bits.
const (
	autocLMSShift  = 13
	autocLMSMask   = 0x7
	autocLMS10G    = 0x3
	autocRestartAN = 12
)

// LINKS bits.
const (
	linksSpeedShift = 28
	linksSpeedMask  = 0x3
)

func decodeLinkSpeed(code uint32) netdev.LinkSpeed {
	switch code {
	case 1:
		return netdev.Link100Mb
	case 2:
		return netdev.Link1Gb
	case 3:
		return netdev.Link10Gb
	case 0:
		return netdev.Link10Mb
	default:
		return netdev.LinkUnknown
	}
}

// Descriptor status bits (RX write-back format, TX advanced descriptor
// command word), per Intel 82599 datasheet §7.1.5 and §7.2.3.
const (
	descStatusDD  = 1 << 0
	descStatusEOP = 1 << 1

	txCmdEOP         = 1 << 24
	txCmdIFCS        = 1 << 25
	txCmdRS          = 1 << 27
	txCmdDEXT        = 1 << 29
	txCmdADVDTYPDATA = 3 << 20

	// PAYLEN occupies the top 18 bits of the upper descriptor word; the
	// write-back STA field starts at bit 32.
	txPaylenShift = 46
	txStatusShift = 32
)
