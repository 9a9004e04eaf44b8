// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 windin101

package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/windin101/alilcd/pkg/usbio"
)

var (
	bridgeListen   string
	bridgeUsername string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve the local device to remote hosts",
	Long: `Claim the local device and expose it over WebSocket so other hosts
can drive it with --url.

Only one client is served at a time; the bulk transport is stateful and
concurrent clients would corrupt command correlation.

With --auth-username, clients must present HTTP Basic credentials. The
password is read from the ALILCD_PASSWORD environment variable, or prompted
interactively if not set.`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVarP(&bridgeListen, "listen", "l", ":8457", "Listen address")
	bridgeCmd.Flags().StringVar(&bridgeUsername, "auth-username", "", "Require HTTP Basic auth with this username")
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	password := ""
	if bridgeUsername != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return err
		}
	}

	dev, err := usbio.Open(vendorID, productID)
	if err != nil {
		return fmt.Errorf("claim device: %w", err)
	}
	defer dev.Close()

	bridge := usbio.NewBridge(dev, bridgeUsername, password, logger)

	logger.Info().
		Str("listen", bridgeListen).
		Bool("auth", bridgeUsername != "").
		Msg("bridge serving")
	return http.ListenAndServe(bridgeListen, bridge)
}
