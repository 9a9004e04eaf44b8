// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package alidev

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session closed")

// DeviceGoneError means the device disconnected or was never found. It is
// terminal: the session latches it and subsequent calls fail fast without
// touching the dead transport.
type DeviceGoneError struct {
	Err error
}

func (e *DeviceGoneError) Error() string {
	return fmt.Sprintf("device gone: %v", e.Err)
}

func (e *DeviceGoneError) Unwrap() error { return e.Err }

// TagCorrelationError reports a CSW tag the current lifecycle state's policy
// rejects. Only reachable in the Connected state, where strict correlation
// is a correctness requirement.
type TagCorrelationError struct {
	Expected uint32
	Actual   uint32
}

func (e *TagCorrelationError) Error() string {
	return fmt.Sprintf("tag mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// RetryExhaustedError is the terminal transport fault raised after the
// bounded retry budget is spent.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d retries: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }
