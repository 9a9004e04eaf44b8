// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101
//
// alilcd - ALi USB LCD control
//
// A CLI tool for driving ALi LCD accessories that tunnel a vendor command
// set through USB mass-storage bulk transport.

package main

import (
	"os"

	"github.com/windin101/alilcd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
