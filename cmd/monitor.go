// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 windin101

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/windin101/alilcd/pkg/alidev"
)

var (
	monitorTUI      bool
	monitorInterval time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the device lifecycle and link statistics",
	Long: `Continuously probe the device and report lifecycle state, tag
correlation quality and transport recovery counters.

The probe traffic doubles as the command stream the device needs to
graduate out of its boot animation, so monitoring a freshly plugged device
shows the full Animation -> Connecting -> Connected sequence.

With --tui an interactive dashboard is shown instead of periodic text
output.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Interactive dashboard")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 5*time.Second, "Text report interval")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	sess, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background probe loop. Its traffic drives the lifecycle; errors other
	// than device-gone are survivable and already counted in the statistics.
	probeDone := make(chan struct{})
	probeCtx, cancelProbe := context.WithCancel(ctx)
	defer cancelProbe()
	go func() {
		defer close(probeDone)
		for probeCtx.Err() == nil {
			if _, err := sess.TestUnitReady(); err != nil {
				var gone *alidev.DeviceGoneError
				if errors.As(err, &gone) {
					logger.Error().Err(err).Msg("device gone, probing stopped")
					return
				}
				logger.Debug().Err(err).Msg("probe failed")
			}
		}
	}()

	if monitorTUI {
		p := tea.NewProgram(newMonitorModel(sess, connInfo), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %v", err)
		}
	} else {
		fmt.Printf("Monitoring %s (interval %s, Ctrl-C to stop)\n", connInfo, monitorInterval)
		ticker := time.NewTicker(monitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				fmt.Print(sess.Stats().String())
				return nil
			case <-ticker.C:
				fmt.Printf("state=%s idle=%s mismatch_rate=%.3f\n",
					sess.State(), sess.Lifecycle().IdleFor().Round(time.Millisecond),
					sess.Tags().MismatchRate())
				fmt.Print(sess.Stats().String())
			case <-probeDone:
				fmt.Print(sess.Stats().String())
				return fmt.Errorf("device disconnected")
			}
		}
	}

	cancelProbe()
	<-probeDone
	fmt.Print(sess.Stats().String())
	return nil
}
