// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package alidev

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/windin101/alilcd/pkg/usbio"
)

// Config holds the session configuration. Zero values are replaced by
// defaultConfig; use the With* options to override individual knobs.
type Config struct {
	// Timings are the lifecycle thresholds and per-state command delays.
	Timings Timings

	// Retry bounds the resilient transport session.
	Retry RetryPolicy

	// Timeout applies to every individual bulk transfer.
	Timeout time.Duration

	// ChunkSize bounds each data-phase write; large payloads are split to
	// avoid overrunning the device's internal buffer.
	ChunkSize int

	// ChunkPacing is the pause between consecutive chunks.
	ChunkPacing time.Duration

	// KeepAliveAfter is the idle span after which the watchdog probes a
	// Connected device to prevent a spurious Disconnected transition.
	KeepAliveAfter time.Duration

	// WatchdogInterval is the watchdog tick period.
	WatchdogInterval time.Duration

	// Watchdog enables the background keep-alive timer.
	Watchdog bool

	// Interface is the USB interface number used for busy recovery.
	Interface int

	// Logger receives session, lifecycle and retry events.
	Logger zerolog.Logger
}

func defaultConfig() Config {
	return Config{
		Timings:          DefaultTimings(),
		Retry:            DefaultRetryPolicy(),
		Timeout:          usbio.DefaultTimeout,
		ChunkSize:        2048,
		ChunkPacing:      5 * time.Millisecond,
		KeepAliveAfter:   4 * time.Second,
		WatchdogInterval: time.Second,
		Watchdog:         true,
		Interface:        0,
		Logger:           zerolog.Nop(),
	}
}

// Option is a functional option for Open.
type Option func(*Config)

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithTimings overrides the lifecycle timing thresholds.
func WithTimings(t Timings) Option {
	return func(c *Config) {
		c.Timings = t
	}
}

// WithRetryPolicy overrides the transport retry bounds.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Config) {
		if p.MaxRetries >= 0 && p.BaseDelay >= 0 {
			c.Retry = p
		}
	}
}

// WithTimeout sets the per-transfer timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithChunkSize sets the maximum data-phase write size.
func WithChunkSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ChunkSize = n
		}
	}
}

// WithChunkPacing sets the pause between data-phase chunks.
func WithChunkPacing(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.ChunkPacing = d
		}
	}
}

// WithKeepAliveAfter sets the idle span before the watchdog probes.
func WithKeepAliveAfter(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.KeepAliveAfter = d
		}
	}
}

// WithWatchdogInterval sets the watchdog tick period.
func WithWatchdogInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.WatchdogInterval = d
		}
	}
}

// WithWatchdog enables or disables the background keep-alive timer.
func WithWatchdog(enabled bool) Option {
	return func(c *Config) {
		c.Watchdog = enabled
	}
}

// WithInterface sets the USB interface number used for busy recovery.
func WithInterface(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.Interface = n
		}
	}
}
