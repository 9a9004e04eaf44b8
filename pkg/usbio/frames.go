// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package usbio

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Bridge frames are CBOR maps with integer keys, one binary WebSocket
// message per transport operation. The fault kind crosses the wire so the
// client's retry logic classifies remote failures exactly like local ones.

type bridgeOp uint8

const (
	opBulkWrite bridgeOp = iota + 1
	opBulkRead
	opClearHalt
	opClaimInterface
	opReleaseInterface
	opDetachKernelDriver
	opAttachKernelDriver
	opReset
)

func (o bridgeOp) String() string {
	switch o {
	case opBulkWrite:
		return "write"
	case opBulkRead:
		return "read"
	case opClearHalt:
		return "clear halt"
	case opClaimInterface:
		return "claim"
	case opReleaseInterface:
		return "release"
	case opDetachKernelDriver:
		return "detach"
	case opAttachKernelDriver:
		return "attach"
	case opReset:
		return "reset"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

type bridgeRequest struct {
	Op        bridgeOp `cbor:"1,keyasint"`
	Endpoint  byte     `cbor:"2,keyasint,omitempty"`
	Interface int      `cbor:"3,keyasint,omitempty"`
	Length    int      `cbor:"4,keyasint,omitempty"`
	TimeoutMs int64    `cbor:"5,keyasint,omitempty"`
	Data      []byte   `cbor:"6,keyasint,omitempty"`
}

type bridgeResponse struct {
	N     int       `cbor:"1,keyasint,omitempty"`
	Data  []byte    `cbor:"2,keyasint,omitempty"`
	Fault FaultKind `cbor:"3,keyasint,omitempty"`
	Err   string    `cbor:"4,keyasint,omitempty"`
}

func encodeRequest(r bridgeRequest) ([]byte, error) {
	return cbor.Marshal(r)
}

func decodeRequest(data []byte) (bridgeRequest, error) {
	var r bridgeRequest
	if err := cbor.Unmarshal(data, &r); err != nil {
		return bridgeRequest{}, fmt.Errorf("decode bridge request: %w", err)
	}
	if r.Op < opBulkWrite || r.Op > opReset {
		return bridgeRequest{}, fmt.Errorf("unknown bridge op %d", r.Op)
	}
	return r, nil
}

func encodeResponse(r bridgeResponse) ([]byte, error) {
	return cbor.Marshal(r)
}

func decodeResponse(data []byte) (bridgeResponse, error) {
	var r bridgeResponse
	if err := cbor.Unmarshal(data, &r); err != nil {
		return bridgeResponse{}, fmt.Errorf("decode bridge response: %w", err)
	}
	return r, nil
}
