// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package aliproto

import (
	"encoding/binary"
	"fmt"
)

// CSW is a decoded Command Status Wrapper.
type CSW struct {
	Tag     uint32
	Residue uint32
	Status  uint8
}

// Ok reports whether the device accepted the command.
func (s CSW) Ok() bool {
	return s.Status == StatusGood
}

// StatusText returns the human-readable status name.
func (s CSW) StatusText() string {
	switch s.Status {
	case StatusGood:
		return "good"
	case StatusFailed:
		return "failed"
	case StatusPhaseError:
		return "phase error"
	default:
		return fmt.Sprintf("reserved(0x%02X)", s.Status)
	}
}

// DecodeCSW parses a 13-byte status frame. It fails with MalformedFrameError
// on a wrong length or signature only; an unexpected tag or a non-zero
// status are caller-level concerns and decode cleanly.
func DecodeCSW(data []byte) (CSW, error) {
	if len(data) != CSWSize {
		return CSW{}, &MalformedFrameError{
			Reason: fmt.Sprintf("CSW length %d, want %d", len(data), CSWSize),
			Length: len(data),
		}
	}
	if sig := binary.LittleEndian.Uint32(data[0:4]); sig != CSWSignature {
		return CSW{}, &MalformedFrameError{
			Reason:    "bad CSW signature",
			Length:    len(data),
			Signature: sig,
		}
	}
	return CSW{
		Tag:     binary.LittleEndian.Uint32(data[4:8]),
		Residue: binary.LittleEndian.Uint32(data[8:12]),
		Status:  data[12],
	}, nil
}

// EncodeCSW serializes a CSW to its 13-byte wire form. The device side of
// the bridge and the test doubles use it; the host never sends a CSW.
func EncodeCSW(s CSW) []byte {
	buf := make([]byte, CSWSize)
	binary.LittleEndian.PutUint32(buf[0:4], CSWSignature)
	binary.LittleEndian.PutUint32(buf[4:8], s.Tag)
	binary.LittleEndian.PutUint32(buf[8:12], s.Residue)
	buf[12] = s.Status
	return buf
}
