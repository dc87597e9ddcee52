// Command handlers for the Morpheus CLI
//
// Handlers print results to the manager output and return go-errors values
// carrying MORPHEUS_* codes.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/morpheus"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// handleRender loads every data input and renders the templates below the
// base path (first argument, default from settings).
func (m *Manager) handleRender(ctx *orpheus.Context) error {
	config, err := m.loadSettings(ctx.GetFlagString("config"))
	if err != nil {
		return err
	}

	action, err := m.actionFromFlags(ctx, config)
	if err != nil {
		return err
	}
	if ctx.GetFlagBool("keep") {
		action.KeepTemplate = true
	}

	audit, closeAudit, err := m.auditFor(config)
	if err != nil {
		return err
	}
	defer closeAudit()

	outputs, err := action.Run(context.Background(), m.actionRun(config, audit))
	if err != nil {
		return err
	}

	for _, output := range outputs {
		fmt.Fprintf(m.out, "Rendered %s\n", output)
	}
	fmt.Fprintf(m.out, "%d template(s) rendered in %s\n", len(outputs), action.BasePath)
	return nil
}

// handleWatch renders once and then re-renders whenever a template or a
// local data input changes. Templates are always kept. Runs until
// interrupted.
func (m *Manager) handleWatch(ctx *orpheus.Context) error {
	config, err := m.loadSettings(ctx.GetFlagString("config"))
	if err != nil {
		return err
	}

	action, err := m.actionFromFlags(ctx, config)
	if err != nil {
		return err
	}
	action.KeepTemplate = true

	interval := config.WatchInterval
	if raw := ctx.GetFlagString("interval"); raw != "" {
		interval, err = time.ParseDuration(raw)
		if err != nil || interval <= 0 {
			return errors.New(morpheus.ErrCodeInvalidConfig, fmt.Sprintf("invalid interval: %q", raw))
		}
	}

	audit, closeAudit, err := m.auditFor(config)
	if err != nil {
		return err
	}
	defer closeAudit()

	fmt.Fprintf(m.out, "Watching %s (interval: %v)\n", action.BasePath, interval)
	fmt.Fprintln(m.out, "Press Ctrl+C to stop...")

	watchCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return m.watchLoop(watchCtx, action, m.actionRun(config, audit), interval, ctx.GetFlagBool("verbose"))
}

// watchLoop renders once and then lets a Watcher poll the templates and
// local inputs. The data URL is fetched again on every re-render but not
// polled.
func (m *Manager) watchLoop(ctx context.Context, action *morpheus.ActionConfig, run morpheus.ActionRun, interval time.Duration, verbose bool) error {
	scanner, err := morpheus.NewRenderer(morpheus.RenderOptions{
		BasePath:   action.BasePath,
		Extensions: action.Extensions,
		Undefined:  action.Undefined,
	})
	if err != nil {
		return err
	}

	m.renderCycle(ctx, action, run)

	watcher, err := morpheus.NewWatcher(morpheus.WatcherConfig{
		PollInterval: interval,
		Discover:     func() []string { return watchedPaths(action, scanner) },
		ErrorHandler: func(err error, path string) {
			fmt.Fprintf(m.out, "[%s] cannot stat %s: %v\n", clock(), path, err)
		},
		Logger: run.Logger,
		Audit:  run.Audit,
	}, func(events []morpheus.ChangeEvent) {
		changed := make([]string, len(events))
		for i, event := range events {
			changed[i] = event.Path
		}
		fmt.Fprintf(m.out, "[%s] changed: %s\n", clock(), strings.Join(changed, ", "))
		m.renderCycle(ctx, action, run)
	})
	if err != nil {
		return err
	}

	if err := watcher.Start(); err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(m.out, "[%s] watching %d file(s)\n", clock(), watcher.WatchedFiles())
	}

	<-ctx.Done()
	if err := watcher.Stop(); err != nil {
		return err
	}
	fmt.Fprintln(m.out, "Watch stopped")
	return nil
}

// renderCycle runs one load and render pass. Failures are reported and the
// watch continues.
func (m *Manager) renderCycle(ctx context.Context, action *morpheus.ActionConfig, run morpheus.ActionRun) {
	outputs, err := action.Run(ctx, run)
	if err != nil {
		fmt.Fprintf(m.out, "Render failed: %v\n", err)
		return
	}
	for _, output := range outputs {
		fmt.Fprintf(m.out, "Rendered %s\n", output)
	}
}

// handleParse parses a file or URL and prints it in the output format.
func (m *Manager) handleParse(ctx *orpheus.Context) error {
	target := argAt(ctx, 0)
	if target == "" {
		return usageError("parse <file|url>")
	}

	output, err := morpheus.ParseFormat(ctx.GetFlagString("output"))
	if err != nil {
		return err
	}
	if output == morpheus.FormatNone {
		output = morpheus.FormatJSON
	}

	_, data, err := m.parseTarget(target, ctx.GetFlagString("format"))
	if err != nil {
		return err
	}

	encoded, err := morpheus.Encode(data, output)
	if err != nil {
		return err
	}
	_, err = m.out.Write(encoded)
	return err
}

// handleDetect reports which parser accepted a file.
func (m *Manager) handleDetect(ctx *orpheus.Context) error {
	filePath := argAt(ctx, 0)
	if filePath == "" {
		return usageError("detect <file>")
	}

	format, data, err := m.parseTarget(filePath, "")
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "%s: %s (%d top-level keys)\n", filePath, format, len(data))
	return nil
}

// handleConvert rewrites a data file in another format.
func (m *Manager) handleConvert(ctx *orpheus.Context) error {
	inputPath := argAt(ctx, 0)
	outputPath := argAt(ctx, 1)
	if inputPath == "" || outputPath == "" {
		return usageError("convert <input> <output>")
	}

	from, to, err := morpheus.ConvertFile(inputPath, outputPath,
		ctx.GetFlagString("from"), ctx.GetFlagString("to"))
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Converted %s (%s) -> %s (%s)\n", inputPath, from, outputPath, to)
	return nil
}

// handleValidate checks that a data file parses, or with --settings that a
// settings file holds a valid configuration.
func (m *Manager) handleValidate(ctx *orpheus.Context) error {
	filePath := argAt(ctx, 0)
	if filePath == "" {
		return usageError("validate <file>")
	}

	if ctx.GetFlagBool("settings") {
		result, err := morpheus.ValidateConfigFile(filePath)
		if err != nil {
			fmt.Fprintf(m.out, "Invalid settings file %s: %v\n", filePath, err)
			return err
		}
		fmt.Fprintf(m.out, "%s: %s\n", filePath, result)
		for _, warning := range result.Warnings {
			fmt.Fprintf(m.out, "  warning: %s\n", warning)
		}
		for _, msg := range result.Errors {
			fmt.Fprintf(m.out, "  error: %s\n", msg)
		}
		if !result.Valid {
			return errors.New(morpheus.ErrCodeInvalidConfig,
				fmt.Sprintf("settings file %s is invalid", filePath))
		}
		return nil
	}

	format, _, err := m.parseTarget(filePath, ctx.GetFlagString("format"))
	if err != nil {
		fmt.Fprintf(m.out, "Invalid data file %s: %v\n", filePath, err)
		return err
	}

	fmt.Fprintf(m.out, "Valid %s data: %s\n", format, filePath)
	return nil
}

// handleAuditStats summarizes an existing audit trail.
func (m *Manager) handleAuditStats(ctx *orpheus.Context) error {
	output := ctx.GetFlagString("output")
	if _, err := os.Stat(output); err != nil {
		return errors.Wrap(err, morpheus.ErrCodeFileNotFound,
			fmt.Sprintf("audit trail %s not found", output))
	}

	logger, err := morpheus.NewAuditLogger(morpheus.AuditConfig{
		Enabled:    true,
		OutputFile: output,
		MinLevel:   morpheus.AuditInfo,
		BufferSize: 1,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := logger.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to close audit trail")
		}
	}()

	stats, err := logger.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Audit trail: %s (%s, %d bytes)\n", stats.Output, stats.Backend, stats.SizeBytes)
	fmt.Fprintf(m.out, "Total events: %d\n", stats.TotalEvents)
	if stats.OldestEvent != nil && stats.NewestEvent != nil {
		fmt.Fprintf(m.out, "Range: %s .. %s\n",
			stats.OldestEvent.Format(time.RFC3339), stats.NewestEvent.Format(time.RFC3339))
	}
	for _, name := range stats.EventNames() {
		fmt.Fprintf(m.out, "  %-20s %d\n", name, stats.EventsByName[name])
	}
	for _, level := range []morpheus.AuditLevel{morpheus.AuditInfo, morpheus.AuditWarn, morpheus.AuditCritical} {
		if count := stats.EventsByLevel[level.String()]; count > 0 {
			fmt.Fprintf(m.out, "  level %-14s %d\n", level, count)
		}
	}
	return nil
}

// handleInfo displays version and format information.
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	fmt.Fprintf(m.out, "Morpheus template renderer\n")
	fmt.Fprintf(m.out, "Version: %s\n", Version)
	fmt.Fprintf(m.out, "Formats: %s\n", strings.Join(morpheus.SupportedFormats(), ", "))
	fmt.Fprintf(m.out, "Detection order: ini, json, env, yaml\n")
	fmt.Fprintf(m.out, "Template extension: %s\n", morpheus.DefaultTemplateExtension)

	if ctx.GetFlagBool("verbose") {
		config, err := morpheus.LoadConfigFromEnv(m.env)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "\nEffective settings:\n")
		fmt.Fprintf(m.out, "  base path: %s\n", config.Render.BasePath)
		fmt.Fprintf(m.out, "  extensions: %s\n", strings.Join(config.Render.Extensions, ", "))
		fmt.Fprintf(m.out, "  undefined: %s\n", config.Render.Undefined)
		fmt.Fprintf(m.out, "  remote timeout: %v, retries: %d\n", config.Remote.Timeout, config.Remote.RetryAttempts)
		fmt.Fprintf(m.out, "  audit: %v (%s)\n", config.Audit.Enabled || m.auditLogger.Enabled(), config.Audit.OutputFile)
		fmt.Fprintf(m.out, "  log level: %s\n", config.LogLevel)
	}

	return nil
}

// handleCompletion generates shell completion scripts.
func (m *Manager) handleCompletion(ctx *orpheus.Context) error {
	shell := argAt(ctx, 0)
	commands := strings.Join(commandNames, " ")

	switch shell {
	case "bash":
		fmt.Fprintf(m.out, "# Bash completion for morpheus\n")
		fmt.Fprintf(m.out, "# Add to ~/.bashrc: source <(morpheus completion bash)\n")
		fmt.Fprintf(m.out, "_morpheus_completion() {\n")
		fmt.Fprintf(m.out, "  COMPREPLY=($(compgen -W '%s' -- \"${COMP_WORDS[COMP_CWORD]}\"))\n", commands)
		fmt.Fprintf(m.out, "}\n")
		fmt.Fprintf(m.out, "complete -F _morpheus_completion morpheus\n")
	case "zsh":
		fmt.Fprintf(m.out, "#compdef morpheus\n")
		fmt.Fprintf(m.out, "# Add to ~/.zshrc: source <(morpheus completion zsh)\n")
		fmt.Fprintf(m.out, "_morpheus() {\n")
		fmt.Fprintf(m.out, "  _arguments '1: :(%s)'\n", commands)
		fmt.Fprintf(m.out, "}\n")
	case "fish":
		fmt.Fprintf(m.out, "# Fish completion for morpheus\n")
		fmt.Fprintf(m.out, "complete -c morpheus -f -a '%s'\n", commands)
	default:
		return errors.New(morpheus.ErrCodeInvalidConfig, fmt.Sprintf("unsupported shell: %q", shell))
	}

	return nil
}
