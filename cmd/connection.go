// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 windin101

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/windin101/alilcd/pkg/alidev"
	"github.com/windin101/alilcd/pkg/usbio"
)

// openSession opens either a local USB session or a bridge session based on
// flags, layering any tuning file on top of the defaults.
func openSession() (*alidev.Session, string, error) {
	opts, err := loadTuning(configPath)
	if err != nil {
		return nil, "", err
	}
	opts = append(opts, alidev.WithLogger(logger))

	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		dev, err := usbio.Dial(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return alidev.NewSession(dev, opts...), fmt.Sprintf("Bridge: %s", wsURL), nil
	}

	sess, err := alidev.Open(vendorID, productID, opts...)
	if err != nil {
		return nil, "", err
	}
	return sess, fmt.Sprintf("USB: %04x:%04x", vendorID, productID), nil
}

// GetPassword retrieves the bridge password from the environment or prompts
// the user without echoing.
func GetPassword() (string, error) {
	if pw := os.Getenv("ALILCD_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}
