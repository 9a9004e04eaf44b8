// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package alidev

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/windin101/alilcd/pkg/usbio"
)

// RetryPolicy bounds the resilient transport session: MaxRetries attempts
// beyond the first, with exponential backoff starting at BaseDelay.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy returns the retry bounds observed to ride out the
// device's boot-phase flakiness.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
	}
}

// retrier wraps raw bulk transfers with bounded retry and fault-specific
// recovery: halt-clear for stalls, interface reclaim (and as a last resort
// a device reset) for busy resources. Device-gone faults are terminal and
// propagate immediately.
type retrier struct {
	transport usbio.Transport
	policy    RetryPolicy
	iface     int
	log       zerolog.Logger
	stats     *Statistics
	sleep     func(time.Duration)
}

func newRetrier(t usbio.Transport, policy RetryPolicy, iface int, log zerolog.Logger, stats *Statistics) *retrier {
	return &retrier{
		transport: t,
		policy:    policy,
		iface:     iface,
		log:       log,
		stats:     stats,
		sleep:     time.Sleep,
	}
}

// Write sends data to an OUT endpoint through the retry loop.
func (r *retrier) Write(endpoint byte, data []byte, timeout time.Duration) (int, error) {
	var n int
	err := r.do(endpoint, func() error {
		var err error
		n, err = r.transport.BulkWrite(endpoint, data, timeout)
		return err
	})
	return n, err
}

// Read fetches length bytes from an IN endpoint through the retry loop.
func (r *retrier) Read(endpoint byte, length int, timeout time.Duration) ([]byte, error) {
	var data []byte
	err := r.do(endpoint, func() error {
		var err error
		data, err = r.transport.BulkRead(endpoint, length, timeout)
		return err
	})
	return data, err
}

// do runs op with bounded retry, classifying each failure and applying the
// matching recovery before the next attempt. Recovery steps are best-effort:
// when one fails, the original fault is still retried rather than swallowed.
func (r *retrier) do(endpoint byte, op func() error) error {
	delay := r.policy.BaseDelay

	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		kind := usbio.Classify(err)
		if kind == usbio.FaultGone {
			r.stats.recordTransportFail()
			return &DeviceGoneError{Err: err}
		}

		if attempt >= r.policy.MaxRetries {
			r.stats.recordTransportFail()
			return &RetryExhaustedError{Attempts: r.policy.MaxRetries, Err: err}
		}

		r.log.Warn().
			Err(err).
			Stringer("fault", kind).
			Int("attempt", attempt+1).
			Int("max", r.policy.MaxRetries).
			Msg("transport error, recovering")
		r.stats.recordRetry()

		switch kind {
		case usbio.FaultStall:
			r.clearHalt(endpoint)
		case usbio.FaultBusy:
			r.recoverBusy()
		}

		r.sleep(delay)
		delay *= 2
	}
}

// clearHalt clears the implicated endpoint's stall condition.
func (r *retrier) clearHalt(endpoint byte) {
	if err := r.transport.ClearHalt(endpoint); err != nil {
		r.log.Warn().Err(err).Uint8("endpoint", endpoint).Msg("clear halt failed")
		return
	}
	r.stats.recordHaltCleared()
}

// recoverBusy walks the busy-resource escalation: detach any kernel driver,
// release and reclaim the interface, and reset the device if the reclaim
// does not take.
func (r *retrier) recoverBusy() {
	r.stats.recordBusyRecovery()

	if err := r.transport.DetachKernelDriver(r.iface); err != nil {
		r.log.Debug().Err(err).Msg("kernel driver detach failed")
	}
	if err := r.transport.ReleaseInterface(r.iface); err != nil {
		r.log.Debug().Err(err).Msg("interface release failed")
	}
	if err := r.transport.ClaimInterface(r.iface); err != nil {
		r.log.Warn().Err(err).Msg("interface reclaim failed, resetting device")
		if err := r.transport.Reset(); err != nil {
			r.log.Warn().Err(err).Msg("device reset failed")
		}
	}
}
