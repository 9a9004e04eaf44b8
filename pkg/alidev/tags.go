// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package alidev

import (
	"sync"
	"time"
)

// tagHistoryLimit bounds the diagnostic record of recent validations.
const tagHistoryLimit = 50

// tagResetFloor / tagResetCeiling define the reset signature: the monitor
// has issued more than tagResetCeiling tags but the device answered with a
// tag below tagResetFloor, so its internal counter must have restarted.
const (
	tagResetFloor   = 5
	tagResetCeiling = 100
)

// TagRecord is one validation, kept for diagnostics.
type TagRecord struct {
	Expected uint32
	Actual   uint32
	State    State
	Match    bool
	Time     time.Time
}

// TagMonitor issues correlation tags and validates the tags the device
// echoes, with a strictness policy driven by the lifecycle state. The device
// emits garbage tags while booting and occasionally resets its internal
// counter, so exact correlation is only enforced once the link is stable.
type TagMonitor struct {
	mu         sync.Mutex
	current    uint32
	history    []TagRecord
	mismatches uint64
	total      uint64
}

// NewTagMonitor returns a monitor whose first issued tag is 1.
func NewTagMonitor() *TagMonitor {
	return &TagMonitor{current: 1}
}

// Next returns the current tag and advances the counter. Tags wrap back to
// 1 on overflow; tag 0 is never issued.
func (m *TagMonitor) Next() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	tag := m.current
	m.current++
	if m.current == 0 {
		m.current = 1
	}
	return tag
}

// Validate applies the state-dependent correlation policy and records the
// outcome. An exact match is always valid. On mismatch: Animation accepts
// anything, Connecting tolerates a drift below 10, Connected rejects, and
// Disconnected/Unknown accept since no guarantee was solicited.
func (m *TagMonitor) Validate(expected, actual uint32, state State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	match := expected == actual
	m.total++
	if !match {
		m.mismatches++
	}
	m.record(TagRecord{
		Expected: expected,
		Actual:   actual,
		State:    state,
		Match:    match,
		Time:     time.Now(),
	})

	if match {
		return true
	}

	switch state {
	case StateAnimation:
		return true
	case StateConnecting:
		diff := int64(expected) - int64(actual)
		if diff < 0 {
			diff = -diff
		}
		return diff < 10
	case StateConnected:
		return false
	default: // Unknown, Disconnected
		return true
	}
}

// DetectReset checks the received tag for the device-side counter reset
// signature. On detection the monitor resynchronizes to actual+1 and
// reports true, so mismatches stop accumulating after a device reboot.
func (m *TagMonitor) DetectReset(actual uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if actual < tagResetFloor && m.current > tagResetCeiling {
		m.current = actual + 1
		return true
	}
	return false
}

// MismatchRate returns the ratio of mismatched validations, 0 when nothing
// has been validated yet.
func (m *TagMonitor) MismatchRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.total == 0 {
		return 0
	}
	return float64(m.mismatches) / float64(m.total)
}

// Counts returns the running mismatch and total validation counters.
func (m *TagMonitor) Counts() (mismatches, total uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mismatches, m.total
}

// History returns a copy of the most recent validations, oldest first.
func (m *TagMonitor) History() []TagRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]TagRecord, len(m.history))
	copy(out, m.history)
	return out
}

// Reset clears all monitor state, restarting the tag sequence at 1.
func (m *TagMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = 1
	m.history = nil
	m.mismatches = 0
	m.total = 0
}

func (m *TagMonitor) record(r TagRecord) {
	if len(m.history) == tagHistoryLimit {
		copy(m.history, m.history[1:])
		m.history = m.history[:tagHistoryLimit-1]
	}
	m.history = append(m.history, r)
}
