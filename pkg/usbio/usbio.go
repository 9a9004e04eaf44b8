// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

// Package usbio provides the host-side bulk transport facility for the ALi
// LCD device: a Transport interface over the raw USB operations, a local
// gousb-backed implementation, and a WebSocket bridge that exposes a claimed
// device to remote hosts. Fault classification lives here so retry logic in
// pkg/alidev can treat local and remote transports identically.
package usbio

import (
	"errors"
	"fmt"
	"time"
)

// Fixed identity of the ALi LCD accessory.
const (
	DefaultVendorID  = 0x0402
	DefaultProductID = 0x3922

	EndpointOut = 0x02
	EndpointIn  = 0x81

	DefaultTimeout = 5 * time.Second
)

// Transport is one claimed USB device. Implementations are not safe for
// concurrent use; the owning session serializes access.
type Transport interface {
	// BulkWrite sends data to the given OUT endpoint.
	BulkWrite(endpoint byte, data []byte, timeout time.Duration) (int, error)
	// BulkRead reads exactly up to length bytes from the given IN endpoint.
	BulkRead(endpoint byte, length int, timeout time.Duration) ([]byte, error)
	// ClearHalt clears a stall condition on one endpoint.
	ClearHalt(endpoint byte) error
	// ClaimInterface (re-)claims the numbered interface.
	ClaimInterface(number int) error
	// ReleaseInterface releases the numbered interface.
	ReleaseInterface(number int) error
	// DetachKernelDriver detaches a bound kernel driver so the interface can
	// be claimed.
	DetachKernelDriver(number int) error
	// AttachKernelDriver hands the interface back to the kernel driver.
	AttachKernelDriver(number int) error
	// Reset performs a full USB device reset.
	Reset() error
	// Close releases the device and all associated resources.
	Close() error
}

// FaultKind classifies a transport failure for recovery purposes.
type FaultKind int

const (
	FaultNone    FaultKind = iota
	FaultTimeout           // transfer timed out; plain retry
	FaultStall             // endpoint halted; clear halt then retry
	FaultBusy              // resource busy; detach/reclaim then retry
	FaultGone              // device disconnected; terminal
	FaultOther             // unclassified; plain retry
)

// String returns the fault name used in logs.
func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "none"
	case FaultTimeout:
		return "timeout"
	case FaultStall:
		return "stall"
	case FaultBusy:
		return "busy"
	case FaultGone:
		return "gone"
	default:
		return "other"
	}
}

// TransportError wraps a raw transport failure with its classification and
// the operation that produced it.
type TransportError struct {
	Op       string
	Endpoint byte
	Kind     FaultKind
	Err      error
}

func (e *TransportError) Error() string {
	if e.Endpoint != 0 {
		return fmt.Sprintf("usb %s (ep 0x%02X): %s: %v", e.Op, e.Endpoint, e.Kind, e.Err)
	}
	return fmt.Sprintf("usb %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Classify extracts the fault kind from an error chain. Errors that carry no
// TransportError classify as FaultOther; nil classifies as FaultNone.
func Classify(err error) FaultKind {
	if err == nil {
		return FaultNone
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return FaultOther
}
