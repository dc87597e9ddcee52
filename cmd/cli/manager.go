// Package cli provides the command-line interface for Morpheus.
//
// The CLI is built on the Orpheus framework with git-style subcommands:
//
//   - render: load data inputs and render every template below a base path
//   - parse, detect, convert, validate: work with data files directly
//   - watch: re-render when templates or data files change
//   - audit, info, completion: diagnostics
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"io"
	"os"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/morpheus"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/rs/zerolog"
)

// Version of the command line tools.
const Version = "1.0.0"

// Manager routes Morpheus commands through an Orpheus application.
type Manager struct {
	app         *orpheus.App
	auditLogger *morpheus.AuditLogger // optional
	logger      zerolog.Logger
	out         io.Writer
	env         map[string]string
}

// NewManager creates the CLI with every command registered.
func NewManager() *Manager {
	app := orpheus.New("morpheus").
		SetDescription("Render templates with data from INI, JSON, YAML and env files or URLs").
		SetVersion(Version)

	manager := &Manager{
		app:    app,
		logger: zerolog.Nop(),
		out:    os.Stdout,
		env:    morpheus.EnvironSnapshot(os.Environ()),
	}

	manager.setupRenderCommands()
	manager.setupDataCommands()
	manager.setupUtilityCommands()

	return manager
}

// WithAudit records data loads and rendered templates in the audit trail.
func (m *Manager) WithAudit(auditLogger *morpheus.AuditLogger) *Manager {
	m.auditLogger = auditLogger
	return m
}

// WithLogger sets the logger handed to data sources and renderers.
func (m *Manager) WithLogger(logger zerolog.Logger) *Manager {
	m.logger = logger
	return m
}

// WithOutput redirects command output (stdout by default).
func (m *Manager) WithOutput(w io.Writer) *Manager {
	m.out = w
	return m
}

// WithEnvironment replaces the environment snapshot seen by templates and
// MORPHEUS_* settings.
func (m *Manager) WithEnvironment(env map[string]string) *Manager {
	m.env = env
	return m
}

// Run executes the CLI with args (without the program name).
// Flag values from a previous Run are reset first.
func (m *Manager) Run(args []string) error {
	for _, cmd := range m.app.GetCommands() {
		resetFlags(cmd)
	}
	return m.app.Run(args)
}

// resetFlags restores the defaults of cmd's flags and of its subcommands.
func resetFlags(cmd *orpheus.Command) {
	cmd.Flags().VisitAll(func(flag *flashflags.Flag) { flag.Reset() })
	for _, sub := range cmd.GetSubcommands() {
		resetFlags(sub)
	}
}

// addDataFlags registers the data input flags shared by render and watch.
func addDataFlags(cmd *orpheus.Command) {
	cmd.AddFlag("data", "d", "", "Data file merged at the top level")
	cmd.AddFlag("data-format", "", "", "Data file format (ini|json|yaml|yml|env)")
	cmd.AddFlag("url", "u", "", "URL of a data document merged at the top level")
	cmd.AddFlag("url-format", "", "", "Data URL format (ini|json|yaml|yml|env)")
	cmd.AddFlag("var-file", "", "", "File with KEY=VALUE variables")
	cmd.AddFlag("context", "c", "", "Comma separated JSON context files, one section per file")
	cmd.AddFlag("undefined", "", "", "Missing key behaviour (Undefined|ChainableUndefined|DebugUndefined|StrictUndefined)")
	cmd.AddFlag("ext", "e", "", "Comma separated template extensions (default .j2)")
	cmd.AddFlag("config", "", "", "Settings file (ini|json|yaml|env)")
}

// setupRenderCommands configures render and watch.
func (m *Manager) setupRenderCommands() {
	// render [basepath]
	renderCmd := orpheus.NewCommand("render", "Render every template below a base path").
		SetHandler(m.handleRender)
	addDataFlags(renderCmd)
	renderCmd.AddBoolFlag("keep", "k", false, "Keep template files after rendering")
	m.app.AddCommand(renderCmd)

	// watch [basepath] [--interval=2s]
	watchCmd := orpheus.NewCommand("watch", "Re-render templates when they or their data change").
		SetHandler(m.handleWatch)
	addDataFlags(watchCmd)
	watchCmd.AddFlag("interval", "i", "", "Polling interval (default from settings, 2s)")
	watchCmd.AddBoolFlag("verbose", "v", false, "Report every polling cycle")
	m.app.AddCommand(watchCmd)
}

// setupDataCommands configures the commands that work on data files.
func (m *Manager) setupDataCommands() {
	// parse <file|url> [--format=] [--output=json]
	parseCmd := orpheus.NewCommand("parse", "Parse a data file or URL and print it").
		SetHandler(m.handleParse)
	parseCmd.AddFlag("format", "f", "", "Input format (ini|json|yaml|yml|env), detected when empty")
	parseCmd.AddFlag("output", "o", "json", "Output format (ini|json|yaml|env)")
	m.app.AddCommand(parseCmd)

	// detect <file>
	detectCmd := orpheus.NewCommand("detect", "Report the detected format of a data file").
		SetHandler(m.handleDetect)
	m.app.AddCommand(detectCmd)

	// convert <input> <output> [--from=] [--to=]
	convertCmd := orpheus.NewCommand("convert", "Convert a data file to another format").
		SetHandler(m.handleConvert)
	convertCmd.AddFlag("from", "", "", "Input format, detected when empty")
	convertCmd.AddFlag("to", "", "", "Output format, taken from the output extension when empty")
	m.app.AddCommand(convertCmd)

	// validate <file> [--format=] [--settings]
	validateCmd := orpheus.NewCommand("validate", "Validate a data file or a settings file").
		SetHandler(m.handleValidate)
	validateCmd.AddFlag("format", "f", "", "Input format, detected when empty")
	validateCmd.AddBoolFlag("settings", "s", false, "Validate the file as Morpheus settings")
	m.app.AddCommand(validateCmd)
}

// setupUtilityCommands configures diagnostics.
func (m *Manager) setupUtilityCommands() {
	auditCmd := orpheus.NewCommand("audit", "Audit trail inspection")
	statsCmd := auditCmd.Subcommand("stats", "Summarize an audit trail", m.handleAuditStats)
	statsCmd.AddFlag("output", "o", morpheus.DefaultAuditOutput(), "Audit trail file (.db or .jsonl)")
	m.app.AddCommand(auditCmd)

	infoCmd := orpheus.NewCommand("info", "Version and supported formats")
	infoCmd.SetHandler(m.handleInfo)
	infoCmd.AddBoolFlag("verbose", "v", false, "Show effective settings")
	m.app.AddCommand(infoCmd)

	completionCmd := orpheus.NewCommand("completion", "Generate shell completion scripts")
	completionCmd.SetHandler(m.handleCompletion)
	m.app.AddCommand(completionCmd)
}
