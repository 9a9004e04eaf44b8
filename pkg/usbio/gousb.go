// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package usbio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// USBDevice is the local, libusb-backed Transport. Open claims configuration
// 1 / interface 0 and resolves the two bulk endpoints.
type USBDevice struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	out  *gousb.OutEndpoint
	in   *gousb.InEndpoint
}

// Open finds the device by vendor/product identifier, detaches any bound
// kernel driver, sets the configuration and claims interface 0.
func Open(vid, pid uint16) (*USBDevice, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, &TransportError{Op: "open", Kind: classifyUSB(err), Err: err}
	}
	if dev == nil {
		ctx.Close()
		return nil, &TransportError{Op: "open", Kind: FaultGone,
			Err: fmt.Errorf("device %04x:%04x not found", vid, pid)}
	}

	// The usb-storage driver grabs the device at plug-in.
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, &TransportError{Op: "detach", Kind: classifyUSB(err), Err: err}
	}

	d := &USBDevice{ctx: ctx, dev: dev}
	if err := d.claim(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return d, nil
}

// claim sets configuration 1, claims interface 0 and resolves both bulk
// endpoints.
func (d *USBDevice) claim() error {
	cfg, err := d.dev.Config(1)
	if err != nil {
		return &TransportError{Op: "set configuration", Kind: classifyUSB(err), Err: err}
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		return &TransportError{Op: "claim interface", Kind: classifyUSB(err), Err: err}
	}
	out, err := intf.OutEndpoint(EndpointOut & 0x0F)
	if err != nil {
		intf.Close()
		cfg.Close()
		return &TransportError{Op: "open endpoint", Endpoint: EndpointOut, Kind: classifyUSB(err), Err: err}
	}
	in, err := intf.InEndpoint(EndpointIn & 0x0F)
	if err != nil {
		intf.Close()
		cfg.Close()
		return &TransportError{Op: "open endpoint", Endpoint: EndpointIn, Kind: classifyUSB(err), Err: err}
	}

	d.cfg = cfg
	d.intf = intf
	d.out = out
	d.in = in
	return nil
}

// release drops the interface and configuration claims, keeping the device
// handle open.
func (d *USBDevice) release() {
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
		d.out = nil
		d.in = nil
	}
	if d.cfg != nil {
		d.cfg.Close()
		d.cfg = nil
	}
}

// BulkWrite implements Transport.
func (d *USBDevice) BulkWrite(endpoint byte, data []byte, timeout time.Duration) (int, error) {
	if d.out == nil || endpoint != EndpointOut {
		return 0, &TransportError{Op: "write", Endpoint: endpoint, Kind: FaultOther,
			Err: fmt.Errorf("endpoint 0x%02X not claimed", endpoint)}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := d.out.WriteContext(ctx, data)
	if err != nil {
		return n, &TransportError{Op: "write", Endpoint: endpoint, Kind: classifyUSB(err), Err: err}
	}
	return n, nil
}

// BulkRead implements Transport.
func (d *USBDevice) BulkRead(endpoint byte, length int, timeout time.Duration) ([]byte, error) {
	if d.in == nil || endpoint != EndpointIn {
		return nil, &TransportError{Op: "read", Endpoint: endpoint, Kind: FaultOther,
			Err: fmt.Errorf("endpoint 0x%02X not claimed", endpoint)}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	buf := make([]byte, length)
	n, err := d.in.ReadContext(ctx, buf)
	if err != nil {
		return nil, &TransportError{Op: "read", Endpoint: endpoint, Kind: classifyUSB(err), Err: err}
	}
	return buf[:n], nil
}

// ClearHalt implements Transport via the standard CLEAR_FEATURE(ENDPOINT_HALT)
// control request.
func (d *USBDevice) ClearHalt(endpoint byte) error {
	const (
		reqClearFeature  = 0x01
		featEndpointHalt = 0x00
	)
	// gousb exports no ControlStandard constant; the standard request type
	// bits are 0x00, so ControlOut|ControlEndpoint is the same value.
	rType := uint8(gousb.ControlOut | gousb.ControlEndpoint)
	if _, err := d.dev.Control(rType, reqClearFeature, featEndpointHalt, uint16(endpoint), nil); err != nil {
		return &TransportError{Op: "clear halt", Endpoint: endpoint, Kind: classifyUSB(err), Err: err}
	}
	return nil
}

// ClaimInterface implements Transport. The device exposes a single
// interface, so any re-claim goes through the full claim path.
func (d *USBDevice) ClaimInterface(number int) error {
	if d.intf != nil {
		return nil
	}
	return d.claim()
}

// ReleaseInterface implements Transport.
func (d *USBDevice) ReleaseInterface(number int) error {
	d.release()
	return nil
}

// DetachKernelDriver implements Transport. libusb handles per-interface
// detach through the auto-detach flag.
func (d *USBDevice) DetachKernelDriver(number int) error {
	if err := d.dev.SetAutoDetach(true); err != nil {
		return &TransportError{Op: "detach", Kind: classifyUSB(err), Err: err}
	}
	return nil
}

// AttachKernelDriver implements Transport.
func (d *USBDevice) AttachKernelDriver(number int) error {
	if err := d.dev.SetAutoDetach(false); err != nil {
		return &TransportError{Op: "attach", Kind: classifyUSB(err), Err: err}
	}
	return nil
}

// Reset implements Transport. The claims do not survive a reset, so the
// interface is re-claimed afterwards.
func (d *USBDevice) Reset() error {
	d.release()
	if err := d.dev.Reset(); err != nil {
		return &TransportError{Op: "reset", Kind: classifyUSB(err), Err: err}
	}
	return d.claim()
}

// Close implements Transport.
func (d *USBDevice) Close() error {
	d.release()
	var errs []error
	if d.dev != nil {
		if err := d.dev.Close(); err != nil {
			errs = append(errs, err)
		}
		d.dev = nil
	}
	if d.ctx != nil {
		if err := d.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		d.ctx = nil
	}
	return errors.Join(errs...)
}

// classifyUSB maps libusb error codes onto fault kinds.
func classifyUSB(err error) FaultKind {
	switch {
	case errors.Is(err, gousb.ErrorPipe):
		return FaultStall
	case errors.Is(err, gousb.ErrorBusy):
		return FaultBusy
	case errors.Is(err, gousb.ErrorNoDevice), errors.Is(err, gousb.ErrorNotFound):
		return FaultGone
	case errors.Is(err, gousb.ErrorTimeout),
		errors.Is(err, gousb.TransferCancelled),
		errors.Is(err, context.DeadlineExceeded):
		return FaultTimeout
	default:
		return FaultOther
	}
}
