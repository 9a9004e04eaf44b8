// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package alidev

import (
	"fmt"
	"sync"
	"time"
)

// Statistics tracks session counters: command outcomes, transport retries
// and the recovery actions taken on its behalf.
type Statistics struct {
	mu        sync.Mutex
	startTime time.Time

	commandsSent      uint64
	commandsSucceeded uint64
	commandsFailed    uint64 // non-zero CSW status
	droppedInBoot     uint64 // transport failures downgraded during Animation
	tagMismatches     uint64

	retries        uint64
	haltsCleared   uint64
	busyRecoveries uint64
	transportFails uint64 // terminal transport errors surfaced to callers
}

// Snapshot is a consistent copy of all counters.
type Snapshot struct {
	Uptime            time.Duration
	CommandsSent      uint64
	CommandsSucceeded uint64
	CommandsFailed    uint64
	DroppedInBoot     uint64
	TagMismatches     uint64
	Retries           uint64
	HaltsCleared      uint64
	BusyRecoveries    uint64
	TransportFails    uint64
}

// NewStatistics returns a zeroed tracker.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

func (s *Statistics) recordCommand(success, mismatch bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commandsSent++
	if success {
		s.commandsSucceeded++
	} else {
		s.commandsFailed++
	}
	if mismatch {
		s.tagMismatches++
	}
}

func (s *Statistics) recordDroppedInBoot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commandsSent++
	s.droppedInBoot++
}

func (s *Statistics) recordRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
}

func (s *Statistics) recordHaltCleared() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haltsCleared++
}

func (s *Statistics) recordBusyRecovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busyRecoveries++
}

func (s *Statistics) recordTransportFail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transportFails++
}

// Snapshot returns a copy of the current counters.
func (s *Statistics) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Uptime:            time.Since(s.startTime),
		CommandsSent:      s.commandsSent,
		CommandsSucceeded: s.commandsSucceeded,
		CommandsFailed:    s.commandsFailed,
		DroppedInBoot:     s.droppedInBoot,
		TagMismatches:     s.tagMismatches,
		Retries:           s.retries,
		HaltsCleared:      s.haltsCleared,
		BusyRecoveries:    s.busyRecoveries,
		TransportFails:    s.transportFails,
	}
}

// Reset zeroes all counters and restarts the uptime clock. Fields are
// cleared individually so the mutex is never overwritten.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startTime = time.Now()
	s.commandsSent = 0
	s.commandsSucceeded = 0
	s.commandsFailed = 0
	s.droppedInBoot = 0
	s.tagMismatches = 0
	s.retries = 0
	s.haltsCleared = 0
	s.busyRecoveries = 0
	s.transportFails = 0
}

// String returns a formatted counter summary.
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var successPercent float64
	if snap.CommandsSent > 0 {
		successPercent = float64(snap.CommandsSucceeded) * 100.0 / float64(snap.CommandsSent)
	}

	result := fmt.Sprintf("=== Session statistics (%.0f seconds) ===\n", snap.Uptime.Seconds())
	result += fmt.Sprintf("Commands sent:    %8d\n", snap.CommandsSent)
	result += fmt.Sprintf("Succeeded:        %8d (%.1f%%)\n", snap.CommandsSucceeded, successPercent)
	if snap.CommandsFailed > 0 {
		result += fmt.Sprintf("Failed (status):  %8d\n", snap.CommandsFailed)
	}
	if snap.DroppedInBoot > 0 {
		result += fmt.Sprintf("Dropped in boot:  %8d\n", snap.DroppedInBoot)
	}
	if snap.TagMismatches > 0 {
		result += fmt.Sprintf("Tag mismatches:   %8d\n", snap.TagMismatches)
	}
	if snap.Retries > 0 {
		result += fmt.Sprintf("Retries:          %8d\n", snap.Retries)
		if snap.HaltsCleared > 0 {
			result += fmt.Sprintf("  Halts cleared:    %5d\n", snap.HaltsCleared)
		}
		if snap.BusyRecoveries > 0 {
			result += fmt.Sprintf("  Busy recoveries:  %5d\n", snap.BusyRecoveries)
		}
	}
	if snap.TransportFails > 0 {
		result += fmt.Sprintf("Transport errors: %8d\n", snap.TransportFails)
	}
	result += "=========================================\n"
	return result
}
