// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 windin101

package cmd

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/windin101/alilcd/pkg/alidev"
)

// tuning is the TOML tuning file layout. Every field is optional; anything
// left out keeps its built-in default. Durations use Go syntax ("56s",
// "200ms").
//
//	[lifecycle]
//	animation_window = "56s"
//	animation_command_gate = 100
//	connecting_settle = "3s"
//	idle_timeout = "5s"
//	cooldown = "12s"
//	delay_animation = "200ms"
//	delay_connecting = "100ms"
//	delay_connected = "50ms"
//
//	[retry]
//	max_retries = 3
//	base_delay = "200ms"
//
//	[transfer]
//	timeout = "5s"
//	chunk_size = 2048
//	chunk_pacing = "5ms"
type tuning struct {
	Lifecycle struct {
		AnimationWindow      duration `toml:"animation_window"`
		AnimationCommandGate int      `toml:"animation_command_gate"`
		ConnectingSettle     duration `toml:"connecting_settle"`
		IdleTimeout          duration `toml:"idle_timeout"`
		Cooldown             duration `toml:"cooldown"`
		DelayAnimation       duration `toml:"delay_animation"`
		DelayConnecting      duration `toml:"delay_connecting"`
		DelayConnected       duration `toml:"delay_connected"`
	} `toml:"lifecycle"`
	Retry struct {
		MaxRetries int      `toml:"max_retries"`
		BaseDelay  duration `toml:"base_delay"`
	} `toml:"retry"`
	Transfer struct {
		Timeout     duration `toml:"timeout"`
		ChunkSize   int      `toml:"chunk_size"`
		ChunkPacing duration `toml:"chunk_pacing"`
	} `toml:"transfer"`
}

// duration adds TOML string parsing to time.Duration.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// loadTuning reads the tuning file and converts it into session options. An
// empty path returns no options.
func loadTuning(path string) ([]alidev.Option, error) {
	if path == "" {
		return nil, nil
	}

	var t tuning
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("tuning file %s: %w", path, err)
	}

	timings := alidev.DefaultTimings()
	if t.Lifecycle.AnimationWindow > 0 {
		timings.AnimationWindow = time.Duration(t.Lifecycle.AnimationWindow)
	}
	if t.Lifecycle.AnimationCommandGate > 0 {
		timings.AnimationCommandGate = t.Lifecycle.AnimationCommandGate
	}
	if t.Lifecycle.ConnectingSettle > 0 {
		timings.ConnectingSettle = time.Duration(t.Lifecycle.ConnectingSettle)
	}
	if t.Lifecycle.IdleTimeout > 0 {
		timings.IdleTimeout = time.Duration(t.Lifecycle.IdleTimeout)
	}
	if t.Lifecycle.Cooldown > 0 {
		timings.Cooldown = time.Duration(t.Lifecycle.Cooldown)
	}
	if t.Lifecycle.DelayAnimation > 0 {
		timings.DelayAnimation = time.Duration(t.Lifecycle.DelayAnimation)
	}
	if t.Lifecycle.DelayConnecting > 0 {
		timings.DelayConnecting = time.Duration(t.Lifecycle.DelayConnecting)
	}
	if t.Lifecycle.DelayConnected > 0 {
		timings.DelayConnected = time.Duration(t.Lifecycle.DelayConnected)
	}
	opts := []alidev.Option{alidev.WithTimings(timings)}

	if t.Retry.MaxRetries > 0 || t.Retry.BaseDelay > 0 {
		policy := alidev.DefaultRetryPolicy()
		if t.Retry.MaxRetries > 0 {
			policy.MaxRetries = t.Retry.MaxRetries
		}
		if t.Retry.BaseDelay > 0 {
			policy.BaseDelay = time.Duration(t.Retry.BaseDelay)
		}
		opts = append(opts, alidev.WithRetryPolicy(policy))
	}

	if t.Transfer.Timeout > 0 {
		opts = append(opts, alidev.WithTimeout(time.Duration(t.Transfer.Timeout)))
	}
	if t.Transfer.ChunkSize > 0 {
		opts = append(opts, alidev.WithChunkSize(t.Transfer.ChunkSize))
	}
	if t.Transfer.ChunkPacing > 0 {
		opts = append(opts, alidev.WithChunkPacing(time.Duration(t.Transfer.ChunkPacing)))
	}
	return opts, nil
}
