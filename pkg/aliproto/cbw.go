// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package aliproto

import (
	"encoding/binary"
	"fmt"
)

// CBW is a Command Block Wrapper value. Once built it is immutable; Encode
// never mutates the receiver.
type CBW struct {
	Tag        uint32
	DataLength uint32
	Direction  Direction
	LUN        uint8
	Command    []byte
}

// Encode serializes the CBW to its fixed 31-byte wire form (little-endian
// fields, command block zero-padded to 16 bytes).
//
// Constraints: the command block must be 1..16 bytes, and DataLength must be
// zero when there is no data phase.
func (c CBW) Encode() ([]byte, error) {
	if len(c.Command) == 0 {
		return nil, &EncodeError{Reason: "empty command block"}
	}
	if len(c.Command) > MaxCommandLength {
		return nil, &EncodeError{Reason: fmt.Sprintf("command block too long: %d bytes (max %d)",
			len(c.Command), MaxCommandLength)}
	}
	if c.Direction == DirNone && c.DataLength != 0 {
		return nil, &EncodeError{Reason: fmt.Sprintf("data length %d with no data phase", c.DataLength)}
	}

	flags := byte(FlagDataOut)
	if c.Direction == DirIn {
		flags = FlagDataIn
	}

	buf := make([]byte, CBWSize)
	binary.LittleEndian.PutUint32(buf[0:4], CBWSignature)
	binary.LittleEndian.PutUint32(buf[4:8], c.Tag)
	binary.LittleEndian.PutUint32(buf[8:12], c.DataLength)
	buf[12] = flags
	buf[13] = c.LUN
	buf[14] = byte(len(c.Command))
	copy(buf[15:], c.Command)
	return buf, nil
}

// DecodeCBW parses a 31-byte wire frame back into a CBW. The command block
// is returned at its declared length with the zero padding stripped.
func DecodeCBW(data []byte) (CBW, error) {
	if len(data) != CBWSize {
		return CBW{}, &MalformedFrameError{
			Reason: fmt.Sprintf("CBW length %d, want %d", len(data), CBWSize),
			Length: len(data),
		}
	}
	if sig := binary.LittleEndian.Uint32(data[0:4]); sig != CBWSignature {
		return CBW{}, &MalformedFrameError{
			Reason:    "bad CBW signature",
			Length:    len(data),
			Signature: sig,
		}
	}

	cmdLen := int(data[14])
	if cmdLen == 0 || cmdLen > MaxCommandLength {
		return CBW{}, &MalformedFrameError{
			Reason: fmt.Sprintf("invalid command block length %d", cmdLen),
			Length: len(data),
		}
	}

	dir := DirNone
	length := binary.LittleEndian.Uint32(data[8:12])
	if length > 0 {
		if data[12]&FlagDataIn != 0 {
			dir = DirIn
		} else {
			dir = DirOut
		}
	}

	cmd := make([]byte, cmdLen)
	copy(cmd, data[15:15+cmdLen])

	return CBW{
		Tag:        binary.LittleEndian.Uint32(data[4:8]),
		DataLength: length,
		Direction:  dir,
		LUN:        data[13],
		Command:    cmd,
	}, nil
}
