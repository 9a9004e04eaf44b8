// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 windin101

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusWait bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query device identity and status",
	Long: `Probe the device and print its SCSI identity and vendor status block.

By default the command queries immediately, which during the boot animation
may report unreliable data. With --wait it first rides out the boot phase
until the link is stable (up to ~1 minute on a freshly plugged device).`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWait, "wait", "w", false, "Wait for a stable link first")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	sess, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("Connected via %s\n", connInfo)

	if statusWait {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		fmt.Println("Waiting for device to leave boot animation...")
		if err := sess.WaitForConnected(ctx); err != nil {
			return fmt.Errorf("device never stabilized: %w", err)
		}
	}

	fmt.Printf("Lifecycle state: %s\n", sess.State())

	if inquiry, err := sess.Inquiry(); err != nil {
		fmt.Printf("Inquiry:         unavailable (%v)\n", err)
	} else if len(inquiry) >= 36 {
		fmt.Printf("Vendor:          %s\n", trimPadding(inquiry[8:16]))
		fmt.Printf("Product:         %s\n", trimPadding(inquiry[16:32]))
		fmt.Printf("Revision:        %s\n", trimPadding(inquiry[32:36]))
	}

	if status, err := sess.GetStatus(); err != nil {
		fmt.Printf("Device status:   unavailable (%v)\n", err)
	} else {
		fmt.Printf("Device status:   % X\n", status)
	}

	mismatches, total := sess.Tags().Counts()
	fmt.Printf("Tag validations: %d (%d mismatched)\n", total, mismatches)
	return nil
}

// trimPadding strips the space padding SCSI identity fields carry.
func trimPadding(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}
