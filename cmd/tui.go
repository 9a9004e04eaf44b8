// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/windin101/alilcd/pkg/alidev"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(18)

	stateStyles = map[alidev.State]lipgloss.Style{
		alidev.StateUnknown:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		alidev.StateAnimation:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		alidev.StateConnecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		alidev.StateConnected:    lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
		alidev.StateDisconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type monitorTickMsg time.Time

// monitorModel renders the live session dashboard. All device traffic runs
// in the probe goroutine; the model only samples the session's trackers.
type monitorModel struct {
	sess     *alidev.Session
	connInfo string
	spin     spinner.Model

	state       alidev.State
	snap        alidev.Snapshot
	mismatch    float64
	transitions []alidev.Transition

	quitting bool
}

func newMonitorModel(sess *alidev.Session, connInfo string) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	return monitorModel{
		sess:     sess,
		connInfo: connInfo,
		spin:     sp,
		state:    sess.State(),
	}
}

func monitorTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, monitorTick())
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case monitorTickMsg:
		m.state = m.sess.State()
		m.snap = m.sess.Stats().Snapshot()
		m.mismatch = m.sess.Tags().MismatchRate()
		m.transitions = m.sess.Lifecycle().Transitions()
		return m, monitorTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("ALi LCD Monitor"))
	b.WriteString(dimStyle.Render("  " + m.connInfo))
	b.WriteString("\n\n")

	stateLine := stateStyles[m.state].Render(m.state.String())
	if m.state != alidev.StateConnected {
		stateLine = m.spin.View() + " " + stateLine
	}
	b.WriteString(labelStyle.Render("Lifecycle") + stateLine + "\n")
	b.WriteString(labelStyle.Render("Time in state") +
		m.sess.Lifecycle().TimeInState().Round(time.Second).String() + "\n")
	b.WriteString(labelStyle.Render("Uptime") +
		m.snap.Uptime.Round(time.Second).String() + "\n\n")

	b.WriteString(labelStyle.Render("Commands") +
		fmt.Sprintf("%d sent, %d ok, %d failed\n",
			m.snap.CommandsSent, m.snap.CommandsSucceeded, m.snap.CommandsFailed))
	b.WriteString(labelStyle.Render("Dropped in boot") +
		fmt.Sprintf("%d\n", m.snap.DroppedInBoot))

	mismatchLine := fmt.Sprintf("%d (rate %.3f)", m.snap.TagMismatches, m.mismatch)
	if m.mismatch > 0.5 && m.state == alidev.StateConnected {
		mismatchLine = warnStyle.Render(mismatchLine)
	}
	b.WriteString(labelStyle.Render("Tag mismatches") + mismatchLine + "\n")

	b.WriteString(labelStyle.Render("Recovery") +
		fmt.Sprintf("%d retries, %d halts cleared, %d busy\n\n",
			m.snap.Retries, m.snap.HaltsCleared, m.snap.BusyRecoveries))

	if len(m.transitions) > 0 {
		b.WriteString(dimStyle.Render("Recent transitions") + "\n")
		start := 0
		if len(m.transitions) > 5 {
			start = len(m.transitions) - 5
		}
		for _, tr := range m.transitions[start:] {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %s  %s -> %s\n",
				tr.At.Format("15:04:05"), tr.From, tr.To)))
		}
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("q to quit"))
	return b.String()
}
