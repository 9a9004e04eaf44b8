// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package alidev

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/windin101/alilcd/pkg/aliproto"
)

// Convenience wrappers over Session.Send for every supported device
// operation. They keep the aliproto builders out of callers' hands and
// normalize the Outcome handling.

// TestUnitReady probes the device with a zero-payload command.
func (s *Session) TestUnitReady() (Outcome, error) {
	return s.Send(aliproto.TestUnitReady())
}

// Inquiry fetches the 36-byte SCSI identification block.
func (s *Session) Inquiry() ([]byte, error) {
	out, err := s.Send(aliproto.Inquiry())
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("inquiry rejected: status %d", out.Status)
	}
	return out.Payload, nil
}

// RequestSense fetches and parses the device's sense data, typically after
// a failed command.
func (s *Session) RequestSense() (aliproto.SenseInfo, error) {
	out, err := s.Send(aliproto.RequestSense())
	if err != nil {
		return aliproto.SenseInfo{}, err
	}
	if !out.Success {
		return aliproto.SenseInfo{}, fmt.Errorf("request sense rejected: status %d", out.Status)
	}
	return aliproto.ParseSense(out.Payload)
}

// ResetDisplay issues the vendor reset. The device restarts its boot
// animation afterwards, so the lifecycle is pushed back to Animation and the
// tag monitor resynchronized.
func (s *Session) ResetDisplay() (Outcome, error) {
	out, err := s.Send(aliproto.ResetDisplay())
	if err == nil {
		s.lifecycle.SetState(StateAnimation)
		s.tags.Reset()
	}
	return out, err
}

// InitializeDisplay issues the vendor init command.
func (s *Session) InitializeDisplay() (Outcome, error) {
	return s.Send(aliproto.InitDisplay())
}

// ControlAnimation starts or stops the built-in boot animation.
func (s *Session) ControlAnimation(start bool) (Outcome, error) {
	return s.Send(aliproto.AnimationControl(start))
}

// SetMode selects a display mode.
func (s *Session) SetMode(mode uint8) (Outcome, error) {
	return s.Send(aliproto.SetMode(mode))
}

// GetStatus fetches the 8-byte vendor status block.
func (s *Session) GetStatus() ([]byte, error) {
	out, err := s.Send(aliproto.GetStatus())
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("get status rejected: status %d", out.Status)
	}
	return out.Payload, nil
}

// ClearScreen blanks the panel.
func (s *Session) ClearScreen() (Outcome, error) {
	return s.Send(aliproto.ClearScreen())
}

// DisplayImage uploads an image to the panel at the given coordinates,
// converting it to the device's RGB565 format.
func (s *Session) DisplayImage(img image.Image, x, y int) (Outcome, error) {
	payload, err := aliproto.ImagePayload(img, x, y)
	if err != nil {
		return Outcome{}, err
	}
	return s.Send(aliproto.DisplayImage(payload))
}

// WaitForConnected pumps Test Unit Ready probes until the lifecycle reaches
// Connected or the context ends. This is how callers ride out the device's
// boot animation: the probes feed the command counter the Animation state
// needs to graduate.
func (s *Session) WaitForConnected(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.State() == StateConnected {
			return nil
		}
		if _, err := s.TestUnitReady(); err != nil {
			var tagErr *TagCorrelationError
			if errors.As(err, &tagErr) {
				// Strict correlation failed once; keep probing, the monitor
				// resynchronizes on the device's next answer.
				continue
			}
			return err
		}
	}
}
