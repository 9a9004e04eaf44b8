// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package alidev

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the engine's belief about which boot/operational phase the
// device is currently in.
type State int

const (
	StateUnknown State = iota
	StateAnimation
	StateConnecting
	StateConnected
	StateDisconnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateAnimation:
		return "Animation"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Invalid"
	}
}

// Timings are the empirically derived thresholds driving lifecycle
// transitions and command pacing. None of them come from protocol
// documentation; they were measured against real hardware and vary between
// device batches, so treat them as tuning knobs.
type Timings struct {
	// AnimationWindow is the minimum time in Animation before the device
	// can be considered past its boot animation.
	AnimationWindow time.Duration
	// AnimationCommandGate is the minimum number of commands that must have
	// been sent this cycle before leaving Animation. A stalled link must
	// not graduate on elapsed time alone.
	AnimationCommandGate int
	// ConnectingSettle is the settling window before Connecting promotes to
	// Connected.
	ConnectingSettle time.Duration
	// IdleTimeout demotes Connected to Disconnected when nothing has been
	// sent for this long.
	IdleTimeout time.Duration
	// Cooldown holds Disconnected before the cycle restarts at Animation.
	// Observed between 10s and 15s across device variants.
	Cooldown time.Duration

	// Per-state minimum spacing between consecutive commands.
	DelayAnimation  time.Duration
	DelayConnecting time.Duration
	DelayConnected  time.Duration
}

// DefaultTimings returns the thresholds observed on the reference device.
func DefaultTimings() Timings {
	return Timings{
		AnimationWindow:      56 * time.Second,
		AnimationCommandGate: 100,
		ConnectingSettle:     3 * time.Second,
		IdleTimeout:          5 * time.Second,
		Cooldown:             12 * time.Second,
		DelayAnimation:       200 * time.Millisecond,
		DelayConnecting:      100 * time.Millisecond,
		DelayConnected:       50 * time.Millisecond,
	}
}

// Transition is one recorded state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// transitionLogLimit bounds the diagnostic transition record.
const transitionLogLimit = 32

// Lifecycle tracks the device's boot phase and exposes the phase-dependent
// policy: command pacing and (via TagMonitor) tag-validation strictness.
// Transitions are driven only by elapsed time and command counts, never by
// payload content, and follow the repeating forward cycle
// Unknown→Animation→Connecting→Connected→Disconnected→Animation.
type Lifecycle struct {
	mu      sync.Mutex
	now     func() time.Time
	log     zerolog.Logger
	timings Timings

	state       State
	enteredAt   time.Time
	lastCommand time.Time
	commands    int // per-cycle counter, reset on re-entering Animation
	transitions []Transition
}

// NewLifecycle returns a state machine in the Unknown state.
func NewLifecycle(t Timings, log zerolog.Logger) *Lifecycle {
	now := time.Now()
	return &Lifecycle{
		now:         time.Now,
		log:         log,
		timings:     t,
		state:       StateUnknown,
		enteredAt:   now,
		lastCommand: now,
	}
}

// Advance evaluates at most one transition against the current clock and
// returns the resulting state. Callers invoke it before each command and
// from the watchdog tick.
func (l *Lifecycle) Advance() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	switch l.state {
	case StateUnknown:
		// First observation: the device always boots into its animation.
		l.transition(StateAnimation, now)

	case StateAnimation:
		if now.Sub(l.enteredAt) > l.timings.AnimationWindow &&
			l.commands > l.timings.AnimationCommandGate {
			l.transition(StateConnecting, now)
		}

	case StateConnecting:
		if now.Sub(l.enteredAt) > l.timings.ConnectingSettle {
			l.transition(StateConnected, now)
		}

	case StateConnected:
		if now.Sub(l.lastCommand) > l.timings.IdleTimeout {
			l.transition(StateDisconnected, now)
		}

	case StateDisconnected:
		if now.Sub(l.enteredAt) > l.timings.Cooldown {
			l.commands = 0
			l.transition(StateAnimation, now)
		}
	}
	return l.state
}

// State returns the current state without evaluating transitions.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SetState forces a state, bypassing the transition rules. Recovery flows
// use it to push the machine back to Animation after an unrecoverable
// transport fault; entering Animation resets the per-cycle counters.
func (l *Lifecycle) SetState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s == l.state {
		return
	}
	if s == StateAnimation {
		l.commands = 0
	}
	l.transition(s, l.now())
}

// RecordCommand notes that a command was sent, advancing the per-cycle
// counter and the idle clock.
func (l *Lifecycle) RecordCommand() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastCommand = l.now()
	l.commands++
}

// CommandDelay returns the minimum spacing to the next command for the
// current state. The device's internal command queue overruns easily during
// boot, so the animation phase is paced hardest.
func (l *Lifecycle) CommandDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateAnimation:
		return l.timings.DelayAnimation
	case StateConnecting:
		return l.timings.DelayConnecting
	default:
		return l.timings.DelayConnected
	}
}

// CommandCount returns the number of commands recorded this cycle.
func (l *Lifecycle) CommandCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commands
}

// IdleFor returns the time since the last recorded command.
func (l *Lifecycle) IdleFor() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now().Sub(l.lastCommand)
}

// TimeInState returns the time since the current state was entered.
func (l *Lifecycle) TimeInState() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now().Sub(l.enteredAt)
}

// Transitions returns a copy of the recent transition log, oldest first.
func (l *Lifecycle) Transitions() []Transition {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Transition, len(l.transitions))
	copy(out, l.transitions)
	return out
}

// transition must be called with the lock held.
func (l *Lifecycle) transition(to State, now time.Time) {
	from := l.state
	l.state = to
	l.enteredAt = now

	if len(l.transitions) == transitionLogLimit {
		copy(l.transitions, l.transitions[1:])
		l.transitions = l.transitions[:transitionLogLimit-1]
	}
	l.transitions = append(l.transitions, Transition{From: from, To: to, At: now})

	l.log.Info().
		Stringer("from", from).
		Stringer("to", to).
		Int("commands", l.commands).
		Msg("lifecycle transition")
}
