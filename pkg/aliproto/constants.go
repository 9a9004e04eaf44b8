// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

// Package aliproto implements the wire protocol of the ALi (0402:3922) USB
// LCD accessory.
//
// The device reuses the USB Mass-Storage Bulk-Only Transport envelope for a
// vendor command set: every command travels as a 31-byte Command Block
// Wrapper (CBW), optionally followed by a data phase, and is acknowledged by
// a 13-byte Command Status Wrapper (CSW). This package provides the CBW/CSW
// codec, builders for the supported SCSI and 0xF5 vendor commands, and the
// RGB565 image payload encoder. It is pure and stateless; transport,
// retries, and tag correlation live in pkg/alidev.
package aliproto

// BOT envelope signatures ("USBC" / "USBS" as little-endian u32).
const (
	CBWSignature uint32 = 0x43425355
	CSWSignature uint32 = 0x53425355
)

// Fixed envelope sizes on the wire.
const (
	CBWSize = 31
	CSWSize = 13

	// MaxCommandLength is the CBW command block capacity.
	MaxCommandLength = 16
)

// Direction of the data phase relative to the host.
type Direction int

const (
	DirNone Direction = iota // no data phase
	DirIn                    // device to host
	DirOut                   // host to device
)

// String returns the direction name used in logs.
func (d Direction) String() string {
	switch d {
	case DirNone:
		return "none"
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	default:
		return "invalid"
	}
}

// CBW flags byte values.
const (
	FlagDataIn  = 0x80
	FlagDataOut = 0x00
)

// CSW status codes.
const (
	StatusGood       = 0x00
	StatusFailed     = 0x01
	StatusPhaseError = 0x02
)

// SCSI opcodes understood by the device.
const (
	OpTestUnitReady = 0x00
	OpRequestSense  = 0x03
	OpInquiry       = 0x12
	OpVendor        = 0xF5
)

// Vendor (0xF5) sub-opcodes.
const (
	SubReset        = 0x00
	SubInitDisplay  = 0x01
	SubAnimation    = 0x10
	SubSetMode      = 0x20
	SubGetStatus    = 0x30
	SubClearScreen  = 0xA0
	SubDisplayImage = 0xB0
)

// Fixed response lengths.
const (
	InquiryDataLength = 36
	SenseDataLength   = 18
	StatusDataLength  = 8
)

// Display Image payload header.
const (
	ImageHeaderSize = 10
	FormatRGB565    = 0x01
)

// CDB lengths used by the two command families.
const (
	scsiCDBLength   = 6
	vendorCDBLength = 12
)
