// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 windin101

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/windin101/alilcd/pkg/alidev"
)

var controlNoWait bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the display",
	Long: `Initialize the display for host-driven output.

Waits for the device to leave its boot animation first, then issues the
vendor init command. Use --no-wait to send immediately; during the boot
phase the device may silently drop the command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControlOp("init", func(sess *alidev.Session) (alidev.Outcome, error) {
			return sess.InitializeDisplay()
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Blank the display",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControlOp("clear", func(sess *alidev.Session) (alidev.Outcome, error) {
			return sess.ClearScreen()
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the display controller",
	Long: `Reset the display controller.

The device restarts its boot animation afterwards; allow about a minute
before it accepts commands reliably again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControlOp("reset", func(sess *alidev.Session) (alidev.Outcome, error) {
			return sess.ResetDisplay()
		})
	},
}

var modeCmd = &cobra.Command{
	Use:   "mode <value>",
	Short: "Set the display mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid mode %q: %w", args[0], err)
		}
		return runControlOp("mode", func(sess *alidev.Session) (alidev.Outcome, error) {
			return sess.SetMode(uint8(mode))
		})
	},
}

var animationCmd = &cobra.Command{
	Use:   "animation <start|stop>",
	Short: "Start or stop the built-in animation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var start bool
		switch args[0] {
		case "start":
			start = true
		case "stop":
			start = false
		default:
			return fmt.Errorf("argument must be start or stop, got %q", args[0])
		}
		return runControlOp("animation", func(sess *alidev.Session) (alidev.Outcome, error) {
			return sess.ControlAnimation(start)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{initCmd, clearCmd, resetCmd, modeCmd, animationCmd} {
		c.Flags().BoolVar(&controlNoWait, "no-wait", false, "Send immediately, even during boot animation")
		rootCmd.AddCommand(c)
	}
}

// runControlOp opens a session, optionally waits out the boot animation, and
// executes one device operation.
func runControlOp(name string, op func(*alidev.Session) (alidev.Outcome, error)) error {
	sess, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	logger.Info().Str("conn", connInfo).Str("op", name).Msg("session open")

	if !controlNoWait {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := sess.WaitForConnected(ctx); err != nil {
			return fmt.Errorf("device never stabilized: %w", err)
		}
	}

	out, err := op(sess)
	if err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%s rejected by device: status %d", name, out.Status)
	}
	fmt.Printf("%s: ok\n", name)
	return nil
}
