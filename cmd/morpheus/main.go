// Morpheus command line tool
//
// Renders templates with data from INI, JSON, YAML and env files or URLs.
// The log level comes from MORPHEUS_LOG_LEVEL.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/agilira/morpheus"
	"github.com/agilira/morpheus/cmd/cli"
)

func main() {
	logger, err := morpheus.SetupLogger(os.Getenv(morpheus.EnvLogLevel), os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	manager := cli.NewManager().WithLogger(logger)

	if err := manager.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
