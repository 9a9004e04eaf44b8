// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package alidev

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/windin101/alilcd/pkg/usbio"
)

func newTestRetrier(f *fakeTransport, policy RetryPolicy) *retrier {
	r := newRetrier(f, policy, 0, zerolog.Nop(), NewStatistics())
	r.sleep = func(time.Duration) {}
	return r
}

func TestRetrierSucceedsFirstTry(t *testing.T) {
	f := &fakeTransport{}
	r := newTestRetrier(f, DefaultRetryPolicy())

	n, err := r.Write(usbio.EndpointOut, []byte{1, 2, 3}, time.Second)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 3 {
		t.Fatalf("wrote %d bytes, want 3", n)
	}
	if len(f.writes) != 1 {
		t.Fatalf("attempts = %d, want 1", len(f.writes))
	}
}

func TestRetrierStallClearsHaltOnce(t *testing.T) {
	f := &fakeTransport{
		writeErrs: []error{faultErr(usbio.FaultStall), nil},
	}
	r := newTestRetrier(f, DefaultRetryPolicy())

	if _, err := r.Write(usbio.EndpointOut, []byte{1}, time.Second); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(f.clearHalts) != 1 {
		t.Fatalf("halt clears = %d, want exactly 1", len(f.clearHalts))
	}
	if f.clearHalts[0] != usbio.EndpointOut {
		t.Fatalf("halt cleared on 0x%02X, want implicated endpoint 0x%02X",
			f.clearHalts[0], usbio.EndpointOut)
	}
	if f.resets != 0 || f.claims != 0 {
		t.Fatal("stall recovery must not touch interface or reset the device")
	}
}

func TestRetrierBusyReclaimsInterface(t *testing.T) {
	f := &fakeTransport{
		writeErrs: []error{faultErr(usbio.FaultBusy), nil},
	}
	r := newTestRetrier(f, DefaultRetryPolicy())

	if _, err := r.Write(usbio.EndpointOut, []byte{1}, time.Second); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if f.detaches != 1 || f.releases != 1 || f.claims != 1 {
		t.Fatalf("busy recovery = detach %d, release %d, claim %d; want 1 each",
			f.detaches, f.releases, f.claims)
	}
	if f.resets != 0 {
		t.Fatal("reset is a last resort, not part of a successful reclaim")
	}
}

func TestRetrierBusyResetsWhenReclaimFails(t *testing.T) {
	f := &fakeTransport{
		writeErrs: []error{faultErr(usbio.FaultBusy), nil},
		claimErrs: []error{errScripted},
	}
	r := newTestRetrier(f, DefaultRetryPolicy())

	if _, err := r.Write(usbio.EndpointOut, []byte{1}, time.Second); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if f.resets != 1 {
		t.Fatalf("resets = %d, want 1 after failed reclaim", f.resets)
	}
}

func TestRetrierGoneIsTerminal(t *testing.T) {
	f := &fakeTransport{
		writeErrs: []error{faultErr(usbio.FaultGone), nil},
	}
	r := newTestRetrier(f, DefaultRetryPolicy())

	_, err := r.Write(usbio.EndpointOut, []byte{1}, time.Second)
	var gone *DeviceGoneError
	if !errors.As(err, &gone) {
		t.Fatalf("err = %v, want DeviceGoneError", err)
	}
	if len(f.writes) != 1 {
		t.Fatalf("attempts = %d, gone must not be retried", len(f.writes))
	}
}

func TestRetrierExhaustsBudget(t *testing.T) {
	f := &fakeTransport{
		writeErrs: []error{
			faultErr(usbio.FaultTimeout),
			faultErr(usbio.FaultTimeout),
			faultErr(usbio.FaultTimeout),
			faultErr(usbio.FaultTimeout),
		},
	}
	r := newTestRetrier(f, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond})

	_, err := r.Write(usbio.EndpointOut, []byte{1}, time.Second)
	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want RetryExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", exhausted.Attempts)
	}
	// Initial attempt plus three retries.
	if len(f.writes) != 4 {
		t.Fatalf("attempts = %d, want 4", len(f.writes))
	}
}

func TestRetrierBackoffDoubles(t *testing.T) {
	f := &fakeTransport{
		writeErrs: []error{
			faultErr(usbio.FaultTimeout),
			faultErr(usbio.FaultTimeout),
			faultErr(usbio.FaultTimeout),
			nil,
		},
	}
	r := newRetrier(f, RetryPolicy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond},
		0, zerolog.Nop(), NewStatistics())

	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }

	if _, err := r.Write(usbio.EndpointOut, []byte{1}, time.Second); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestRetrierReadRecovery(t *testing.T) {
	f := &fakeTransport{
		reads: []readResult{
			{err: faultErr(usbio.FaultStall)},
			{data: []byte{0xAA, 0xBB}},
		},
	}
	r := newTestRetrier(f, DefaultRetryPolicy())

	data, err := r.Read(usbio.EndpointIn, 2, time.Second)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(data) != 2 || data[0] != 0xAA {
		t.Fatalf("data = %v, want [AA BB]", data)
	}
	if len(f.clearHalts) != 1 || f.clearHalts[0] != usbio.EndpointIn {
		t.Fatalf("halt clears = %v, want one on IN endpoint", f.clearHalts)
	}
}

func TestRetrierStatsCounters(t *testing.T) {
	f := &fakeTransport{
		writeErrs: []error{faultErr(usbio.FaultStall), faultErr(usbio.FaultBusy), nil},
	}
	stats := NewStatistics()
	r := newRetrier(f, DefaultRetryPolicy(), 0, zerolog.Nop(), stats)
	r.sleep = func(time.Duration) {}

	if _, err := r.Write(usbio.EndpointOut, []byte{1}, time.Second); err != nil {
		t.Fatalf("Write: %v", err)
	}

	snap := stats.Snapshot()
	if snap.Retries != 2 {
		t.Errorf("Retries = %d, want 2", snap.Retries)
	}
	if snap.HaltsCleared != 1 {
		t.Errorf("HaltsCleared = %d, want 1", snap.HaltsCleared)
	}
	if snap.BusyRecoveries != 1 {
		t.Errorf("BusyRecoveries = %d, want 1", snap.BusyRecoveries)
	}
}
