// Morpheus CI entrypoint
//
// Single-shot form for CI runners: every action input arrives either as a
// flag or as an INPUT_<FLAG> variable. Exit status is 0 on success, 2 for
// configuration errors and 1 for everything else.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/agilira/morpheus"
	"github.com/rs/zerolog"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:], morpheus.EnvironSnapshot(os.Environ()), os.Stdout, os.Stderr))
}

// run executes one action and returns the exit status.
func run(args []string, env map[string]string, stdout, stderr io.Writer) int {
	flags, err := morpheus.NewActionFlags("entrypoint", version, env)
	if err != nil {
		return fail(stderr, err)
	}

	action, err := flags.Parse(args)
	if err != nil {
		return fail(stderr, err)
	}

	logger, err := morpheus.SetupLogger(action.LogLevel, stderr)
	if err != nil {
		return fail(stderr, err)
	}

	config, err := morpheus.LoadConfigFromEnv(env)
	if err != nil {
		return fail(stderr, err)
	}

	audit, err := morpheus.NewAuditLogger(config.Audit)
	if err != nil {
		return fail(stderr, err)
	}
	defer func() {
		if err := audit.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close audit trail")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outputs, err := action.Run(ctx, morpheus.ActionRun{
		Env:    env,
		Remote: config.RemoteOptionsCopy(),
		Logger: morpheus.ComponentLogger(logger, "entrypoint"),
		Audit:  audit,
	})
	if err != nil {
		return fail(stderr, err)
	}

	logRendered(stdout, logger, outputs)
	return 0
}

func logRendered(stdout io.Writer, logger zerolog.Logger, outputs []string) {
	for _, output := range outputs {
		logger.Info().Str("output", output).Msg("Template rendered")
	}
	fmt.Fprintf(stdout, "Rendered %d template(s)\n", len(outputs))
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	if morpheus.IsConfigError(err) {
		return 2
	}
	return 1
}
