// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

// Package alidev implements the host-side communication engine for the ALi
// LCD accessory: tag correlation, the boot lifecycle state machine, the
// resilient retry layer and the serialized command session that ties them to
// a usbio.Transport.
package alidev

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/windin101/alilcd/pkg/aliproto"
	"github.com/windin101/alilcd/pkg/usbio"
)

// Outcome is the per-command result a Send returns alongside its error.
// During the boot animation the device answers unreliably, so failures are
// reported here with a nil error instead of aborting the caller.
type Outcome struct {
	// Success is true when the full CBW/data/CSW exchange completed and the
	// device reported good status.
	Success bool
	// TagMismatch is true when the echoed tag did not equal the issued tag,
	// whether or not the state's policy tolerated it.
	TagMismatch bool
	// Payload holds the data-phase bytes for device-to-host commands.
	Payload []byte
	// Status is the raw CSW status byte.
	Status uint8
	// Residue is the CSW data residue.
	Residue uint32
}

// Session owns one claimed transport and serializes all commands through it.
// It drives the lifecycle state machine, issues and validates correlation
// tags, paces commands to the device's state-dependent tolerance and keeps
// the link alive with a watchdog probe when idle.
type Session struct {
	mu        sync.Mutex
	transport usbio.Transport
	retrier   *retrier
	tags      *TagMonitor
	lifecycle *Lifecycle
	stats     *Statistics
	cfg       Config
	log       zerolog.Logger

	gone   bool
	closed bool

	watchdogStop chan struct{}
	watchdogDone chan struct{}
}

// NewSession wraps an already-open transport. The session takes ownership:
// Close closes the transport too.
func NewSession(t usbio.Transport, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	stats := NewStatistics()
	s := &Session{
		transport: t,
		retrier:   newRetrier(t, cfg.Retry, cfg.Interface, cfg.Logger, stats),
		tags:      NewTagMonitor(),
		lifecycle: NewLifecycle(cfg.Timings, cfg.Logger),
		stats:     stats,
		cfg:       cfg,
		log:       cfg.Logger,
	}

	if cfg.Watchdog {
		s.watchdogStop = make(chan struct{})
		s.watchdogDone = make(chan struct{})
		go s.watchdog()
	}
	return s
}

// Open claims the local device by VID/PID and starts a session on it.
func Open(vid, pid uint16, opts ...Option) (*Session, error) {
	dev, err := usbio.Open(vid, pid)
	if err != nil {
		return nil, err
	}
	return NewSession(dev, opts...), nil
}

// Send executes one command exchange: CBW out, optional data phase, CSW in.
// It blocks until the exchange completes or fails terminally, and applies the
// state-dependent pacing delay before returning.
//
// Error contract: during the Animation state transport failures and bad
// status are expected and reported as Outcome{Success: false} with a nil
// error. Outside Animation they surface as errors. A device-gone fault is
// always an error and latches the session.
func (s *Session) Send(cmd aliproto.Command) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(cmd, true)
}

// SendUnchecked is Send without the strict tag-correlation failure: a tag the
// state's policy rejects is reported in the Outcome instead of as an error.
// Diagnostic flows use it to keep talking to a confused device.
func (s *Session) SendUnchecked(cmd aliproto.Command) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(cmd, false)
}

func (s *Session) sendLocked(cmd aliproto.Command, checkTag bool) (Outcome, error) {
	if s.closed {
		return Outcome{}, ErrSessionClosed
	}
	if s.gone {
		return Outcome{}, &DeviceGoneError{Err: ErrSessionClosed}
	}

	state := s.lifecycle.Advance()
	booting := state == StateAnimation || state == StateUnknown

	tag := s.tags.Next()
	cbw := aliproto.CBW{
		Tag:        tag,
		DataLength: cmd.DataLength,
		Direction:  cmd.Direction,
		Command:    cmd.CDB,
	}
	frame, err := cbw.Encode()
	if err != nil {
		return Outcome{}, err
	}

	s.log.Debug().
		Str("cmd", cmd.Name()).
		Uint32("tag", tag).
		Stringer("state", state).
		Msg("sending command")

	// CBW phase.
	if _, err := s.retrier.Write(usbio.EndpointOut, frame, s.cfg.Timeout); err != nil {
		return s.transportFailure(cmd, booting, err)
	}

	// Data phase.
	var payload []byte
	switch cmd.Direction {
	case aliproto.DirOut:
		if err := s.writeData(cmd.Data); err != nil {
			return s.transportFailure(cmd, booting, err)
		}
	case aliproto.DirIn:
		payload, err = s.retrier.Read(usbio.EndpointIn, int(cmd.DataLength), s.cfg.Timeout)
		if err != nil {
			return s.transportFailure(cmd, booting, err)
		}
	}

	// Status phase.
	raw, err := s.retrier.Read(usbio.EndpointIn, aliproto.CSWSize, s.cfg.Timeout)
	if err != nil {
		return s.transportFailure(cmd, booting, err)
	}
	csw, err := aliproto.DecodeCSW(raw)
	if err != nil {
		if booting {
			s.log.Debug().Err(err).Str("cmd", cmd.Name()).Msg("malformed status during boot")
			s.finishCommand(Outcome{})
			return Outcome{}, nil
		}
		return Outcome{}, err
	}

	// Tag correlation. A counter reset resynchronizes and validates against
	// the resynchronized expectation.
	if s.tags.DetectReset(csw.Tag) {
		s.log.Info().Uint32("tag", csw.Tag).Msg("device tag counter reset detected")
	}
	mismatch := csw.Tag != tag
	if !s.tags.Validate(tag, csw.Tag, state) && checkTag {
		out := Outcome{TagMismatch: true, Status: csw.Status, Residue: csw.Residue}
		s.finishCommand(out)
		return out, &TagCorrelationError{Expected: tag, Actual: csw.Tag}
	}

	if !csw.Ok() {
		s.log.Warn().
			Str("cmd", cmd.Name()).
			Str("status", csw.StatusText()).
			Uint32("residue", csw.Residue).
			Msg("command failed")
	}

	out := Outcome{
		Success:     csw.Ok(),
		TagMismatch: mismatch,
		Payload:     payload,
		Status:      csw.Status,
		Residue:     csw.Residue,
	}
	s.finishCommand(out)
	return out, nil
}

// writeData sends the host-to-device data phase in bounded chunks with a
// short pause between them. The device's internal buffer overruns on large
// single transfers.
func (s *Session) writeData(data []byte) error {
	for offset := 0; offset < len(data); offset += s.cfg.ChunkSize {
		end := offset + s.cfg.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := s.retrier.Write(usbio.EndpointOut, data[offset:end], s.cfg.Timeout); err != nil {
			return err
		}
		if end < len(data) && s.cfg.ChunkPacing > 0 {
			time.Sleep(s.cfg.ChunkPacing)
		}
	}
	return nil
}

// transportFailure resolves a failed exchange. Device-gone latches the
// session and pushes the lifecycle to Disconnected; any other fault is
// swallowed during boot and surfaced otherwise.
func (s *Session) transportFailure(cmd aliproto.Command, booting bool, err error) (Outcome, error) {
	var gone *DeviceGoneError
	if errors.As(err, &gone) {
		s.gone = true
		s.lifecycle.SetState(StateDisconnected)
		s.log.Error().Err(err).Str("cmd", cmd.Name()).Msg("device gone")
		return Outcome{}, gone
	}

	if booting {
		s.log.Debug().Err(err).Str("cmd", cmd.Name()).Msg("command dropped during boot")
		s.stats.recordDroppedInBoot()
		s.lifecycle.RecordCommand()
		s.pace()
		return Outcome{}, nil
	}
	return Outcome{}, err
}

// finishCommand records the completed exchange and paces the next one.
func (s *Session) finishCommand(out Outcome) {
	s.stats.recordCommand(out.Success, out.TagMismatch)
	s.lifecycle.RecordCommand()
	s.pace()
}

func (s *Session) pace() {
	if d := s.lifecycle.CommandDelay(); d > 0 {
		time.Sleep(d)
	}
}

// watchdog keeps a Connected link from idling into Disconnected by probing
// with Test Unit Ready once the idle span crosses the keep-alive threshold.
func (s *Session) watchdog() {
	defer close(s.watchdogDone)

	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.watchdogStop:
			return
		case <-ticker.C:
		}

		if !s.mu.TryLock() {
			// A command is in flight; the idle clock is being fed anyway.
			continue
		}
		probe := !s.closed && !s.gone &&
			s.lifecycle.State() == StateConnected &&
			s.lifecycle.IdleFor() > s.cfg.KeepAliveAfter
		if probe {
			s.log.Debug().Msg("watchdog keep-alive probe")
			if _, err := s.sendLocked(aliproto.TestUnitReady(), true); err != nil {
				s.log.Warn().Err(err).Msg("keep-alive probe failed")
			}
		}
		s.mu.Unlock()
	}
}

// State returns the current lifecycle state after evaluating pending
// transitions.
func (s *Session) State() State {
	return s.lifecycle.Advance()
}

// Stats returns the session's statistics tracker.
func (s *Session) Stats() *Statistics {
	return s.stats
}

// Tags returns the session's tag monitor for diagnostics.
func (s *Session) Tags() *TagMonitor {
	return s.tags
}

// Lifecycle returns the session's lifecycle tracker for diagnostics.
func (s *Session) Lifecycle() *Lifecycle {
	return s.lifecycle
}

// Close stops the watchdog and releases the transport. Safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.watchdogStop != nil {
		close(s.watchdogStop)
		<-s.watchdogDone
	}
	return s.transport.Close()
}
