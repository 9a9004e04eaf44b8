// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package aliproto

import "fmt"

// Command builder functions produce Command values ready for a session to
// wrap in a CBW. SCSI-style commands use 6-byte CDBs; the 0xF5 vendor family
// uses 12-byte CDBs padded with zeros after the sub-opcode.

// Command describes one device command: its CDB, the expected data phase,
// and the outbound payload when the phase is host-to-device.
type Command struct {
	CDB        []byte
	DataLength uint32
	Direction  Direction
	Data       []byte
}

// Name returns a short label for logs ("0xF5/0x20", "0x12").
func (c Command) Name() string {
	if len(c.CDB) >= 2 && c.CDB[0] == OpVendor {
		return fmt.Sprintf("0x%02X/0x%02X", c.CDB[0], c.CDB[1])
	}
	if len(c.CDB) >= 1 {
		return fmt.Sprintf("0x%02X", c.CDB[0])
	}
	return "empty"
}

// TestUnitReady builds the zero-payload probe command.
func TestUnitReady() Command {
	return Command{
		CDB:       make([]byte, scsiCDBLength),
		Direction: DirNone,
	}
}

// Inquiry builds a standard INQUIRY requesting the 36-byte response.
func Inquiry() Command {
	cdb := make([]byte, scsiCDBLength)
	cdb[0] = OpInquiry
	cdb[4] = InquiryDataLength
	return Command{
		CDB:        cdb,
		DataLength: InquiryDataLength,
		Direction:  DirIn,
	}
}

// RequestSense builds a REQUEST SENSE for the 18-byte fixed-format response.
func RequestSense() Command {
	cdb := make([]byte, scsiCDBLength)
	cdb[0] = OpRequestSense
	cdb[4] = SenseDataLength
	return Command{
		CDB:        cdb,
		DataLength: SenseDataLength,
		Direction:  DirIn,
	}
}

// vendor builds a 0xF5 command CDB. Only GetStatus returns data; the other
// sub-commands either carry no data or write their payload to the device.
func vendor(sub byte, dataLength uint32, data []byte) Command {
	cdb := make([]byte, vendorCDBLength)
	cdb[0] = OpVendor
	cdb[1] = sub
	dir := DirNone
	if dataLength > 0 {
		if sub == SubGetStatus {
			dir = DirIn
		} else {
			dir = DirOut
		}
	}
	return Command{
		CDB:        cdb,
		DataLength: dataLength,
		Direction:  dir,
		Data:       data,
	}
}

// ResetDisplay builds the vendor reset command (sub 0x00).
func ResetDisplay() Command {
	return vendor(SubReset, 0, nil)
}

// InitDisplay builds the display initialization command (sub 0x01).
func InitDisplay() Command {
	return vendor(SubInitDisplay, 0, nil)
}

// AnimationControl builds the animation start/stop command (sub 0x10,
// 1-byte payload: 1 = start, 0 = stop).
func AnimationControl(start bool) Command {
	payload := []byte{0x00}
	if start {
		payload[0] = 0x01
	}
	return vendor(SubAnimation, 1, payload)
}

// SetMode builds the set-mode command (sub 0x20, 4-byte payload with the
// mode value in the first byte).
func SetMode(mode uint8) Command {
	return vendor(SubSetMode, 4, []byte{mode, 0x00, 0x00, 0x00})
}

// GetStatus builds the status query (sub 0x30, 8-byte response).
func GetStatus() Command {
	return vendor(SubGetStatus, StatusDataLength, nil)
}

// ClearScreen builds the clear-screen command (sub 0xA0).
func ClearScreen() Command {
	return vendor(SubClearScreen, 0, nil)
}

// DisplayImage builds the image upload command (sub 0xB0). The payload is
// the 10-byte image header followed by the RGB565 pixel buffer; see
// ImagePayload.
func DisplayImage(payload []byte) Command {
	return vendor(SubDisplayImage, uint32(len(payload)), payload)
}

// SenseInfo is the interesting subset of a fixed-format REQUEST SENSE
// response.
type SenseInfo struct {
	Key  uint8 // sense key, byte 2 low nibble
	ASC  uint8 // additional sense code, byte 12
	ASCQ uint8 // qualifier, byte 13
}

func (s SenseInfo) String() string {
	return fmt.Sprintf("sense key=0x%X asc=0x%02X ascq=0x%02X", s.Key, s.ASC, s.ASCQ)
}

// ParseSense extracts the sense key, ASC and ASCQ from a REQUEST SENSE
// response. At least 14 bytes are required.
func ParseSense(data []byte) (SenseInfo, error) {
	if len(data) < 14 {
		return SenseInfo{}, fmt.Errorf("sense data too short: %d bytes", len(data))
	}
	return SenseInfo{
		Key:  data[2] & 0x0F,
		ASC:  data[12],
		ASCQ: data[13],
	}, nil
}
