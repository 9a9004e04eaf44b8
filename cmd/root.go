// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 windin101

package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Device selection flags
	vendorID  uint16
	productID uint16

	// Bridge connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Tuning and output flags
	configPath string
	verbose    bool

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "alilcd",
	Short: "ALi LCD device control",
	Long: `alilcd - A CLI tool for driving ALi USB-attached LCD accessories.

The device speaks a vendor command set tunnelled through USB mass-storage
bulk transport. It boots into a ~56 second animation during which commands
are unreliable; the engine rides this out automatically, so expect the
first connection to take about a minute.

Connection modes:
  Local USB: default (claims the device by VID/PID)
  Bridge:    --url ws://host/path [--username user]

For bridge authentication, the password is read from the ALILCD_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.`,
	Version: "0.3.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.TimeOnly,
		}).Level(level).With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().Uint16Var(&vendorID, "vid", 0x0402, "USB vendor ID")
	rootCmd.PersistentFlags().Uint16Var(&productID, "pid", 0x3922, "USB product ID")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "Bridge WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Tuning file (TOML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
