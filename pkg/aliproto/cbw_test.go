package aliproto

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestCBWEncode_WireLayout(t *testing.T) {
	cbw := CBW{
		Tag:        0x01020304,
		DataLength: 36,
		Direction:  DirIn,
		LUN:        0,
		Command:    []byte{OpInquiry, 0x00, 0x00, 0x00, InquiryDataLength, 0x00},
	}

	frame, err := cbw.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if len(frame) != CBWSize {
		t.Fatalf("frame length = %d, want %d", len(frame), CBWSize)
	}
	if !bytes.Equal(frame[0:4], []byte("USBC")) {
		t.Errorf("signature = % X, want USBC", frame[0:4])
	}
	if got := binary.LittleEndian.Uint32(frame[4:8]); got != 0x01020304 {
		t.Errorf("tag = 0x%08X, want 0x01020304", got)
	}
	if got := binary.LittleEndian.Uint32(frame[8:12]); got != 36 {
		t.Errorf("data length = %d, want 36", got)
	}
	if frame[12] != FlagDataIn {
		t.Errorf("flags = 0x%02X, want 0x%02X", frame[12], FlagDataIn)
	}
	if frame[13] != 0 {
		t.Errorf("LUN = %d, want 0", frame[13])
	}
	if frame[14] != 6 {
		t.Errorf("command length = %d, want 6", frame[14])
	}
	// Unused command bytes must be zero padding.
	for i := 15 + 6; i < CBWSize; i++ {
		if frame[i] != 0 {
			t.Errorf("byte %d = 0x%02X, want zero padding", i, frame[i])
		}
	}
}

func TestCBWEncode_Constraints(t *testing.T) {
	tests := []struct {
		name string
		cbw  CBW
	}{
		{
			name: "empty command block",
			cbw:  CBW{Tag: 1, Direction: DirNone},
		},
		{
			name: "command block too long",
			cbw:  CBW{Tag: 1, Direction: DirNone, Command: make([]byte, 17)},
		},
		{
			name: "data length with no data phase",
			cbw:  CBW{Tag: 1, DataLength: 8, Direction: DirNone, Command: make([]byte, 6)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cbw.Encode(); err == nil {
				t.Errorf("Encode accepted invalid CBW")
			}
		})
	}
}

func TestCBW_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cbw  CBW
	}{
		{
			name: "test unit ready",
			cbw:  CBW{Tag: 1, Direction: DirNone, Command: make([]byte, 6)},
		},
		{
			name: "inquiry",
			cbw: CBW{Tag: 42, DataLength: 36, Direction: DirIn,
				Command: []byte{OpInquiry, 0, 0, 0, 36, 0}},
		},
		{
			name: "vendor set mode",
			cbw: CBW{Tag: 0xFFFFFFFE, DataLength: 4, Direction: DirOut,
				Command: []byte{OpVendor, SubSetMode, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		},
		{
			name: "max length command block",
			cbw: CBW{Tag: 7, DataLength: 512, Direction: DirIn,
				Command: []byte{0xF5, 0x30, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := tt.cbw.Encode()
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := DecodeCBW(frame)
			if err != nil {
				t.Fatalf("DecodeCBW failed: %v", err)
			}
			if got.Tag != tt.cbw.Tag {
				t.Errorf("tag = %d, want %d", got.Tag, tt.cbw.Tag)
			}
			if got.DataLength != tt.cbw.DataLength {
				t.Errorf("data length = %d, want %d", got.DataLength, tt.cbw.DataLength)
			}
			if got.Direction != tt.cbw.Direction {
				t.Errorf("direction = %v, want %v", got.Direction, tt.cbw.Direction)
			}
			if !bytes.Equal(got.Command, tt.cbw.Command) {
				t.Errorf("command block = % X, want % X", got.Command, tt.cbw.Command)
			}
		})
	}
}

func TestDecodeCBW_Malformed(t *testing.T) {
	good, err := CBW{Tag: 1, Direction: DirNone, Command: make([]byte, 6)}.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	short := good[:30]
	if _, err := DecodeCBW(short); err == nil {
		t.Errorf("DecodeCBW accepted %d-byte frame", len(short))
	}

	badSig := append([]byte(nil), good...)
	badSig[0] = 'X'
	if _, err := DecodeCBW(badSig); err == nil {
		t.Errorf("DecodeCBW accepted bad signature")
	}
}
