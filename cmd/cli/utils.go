// Utility functions for the Morpheus CLI
//
// Settings loading, flag translation, audit setup and the file snapshots
// used by the watch command.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"github.com/agilira/morpheus"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// commandNames lists the top-level commands for shell completion.
var commandNames = []string{"render", "watch", "parse", "detect", "convert", "validate", "audit", "info", "completion"}

func usageError(usage string) error {
	return errors.New(morpheus.ErrCodeInvalidConfig, "usage: morpheus "+usage)
}

// loadSettings reads the optional settings file and applies MORPHEUS_*
// variables on top.
func (m *Manager) loadSettings(path string) (*morpheus.Config, error) {
	config, err := morpheus.LoadConfigMultiSource(path, m.env)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// actionFromFlags translates the shared data flags into an ActionConfig.
// Flags win over settings.
func (m *Manager) actionFromFlags(ctx *orpheus.Context, config *morpheus.Config) (*morpheus.ActionConfig, error) {
	action := &morpheus.ActionConfig{
		KeepTemplate:  config.Render.KeepTemplate,
		VarFile:       ctx.GetFlagString("var-file"),
		Contexts:      splitFlagList(ctx.GetFlagString("context")),
		DataFile:      ctx.GetFlagString("data"),
		DataFormat:    ctx.GetFlagString("data-format"),
		DataURL:       ctx.GetFlagString("url"),
		DataURLFormat: ctx.GetFlagString("url-format"),
		Undefined:     config.Render.Undefined,
		BasePath:      config.Render.BasePath,
		LogLevel:      config.LogLevel,
		Extensions:    config.Render.Extensions,
	}

	if basePath := argAt(ctx, 0); basePath != "" {
		action.BasePath = basePath
	}
	if undefined := ctx.GetFlagString("undefined"); undefined != "" {
		action.Undefined = undefined
	}
	if ext := splitFlagList(ctx.GetFlagString("ext")); len(ext) > 0 {
		action.Extensions = ext
	}

	if err := action.Validate(); err != nil {
		return nil, err
	}
	return action, nil
}

// actionRun bundles the collaborators of a render pass.
func (m *Manager) actionRun(config *morpheus.Config, audit *morpheus.AuditLogger) morpheus.ActionRun {
	return morpheus.ActionRun{
		Env:    m.env,
		Remote: config.RemoteOptionsCopy(),
		Logger: m.logger,
		Audit:  audit,
	}
}

// auditFor returns the audit logger for a command: the one set with
// WithAudit, or one opened from the settings when auditing is enabled
// there. The returned func releases a logger opened here.
func (m *Manager) auditFor(config *morpheus.Config) (*morpheus.AuditLogger, func(), error) {
	if m.auditLogger != nil || !config.Audit.Enabled {
		return m.auditLogger, func() {}, nil
	}

	logger, err := morpheus.NewAuditLogger(config.Audit)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() {
		if err := logger.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to close audit trail")
		}
	}, nil
}

// parseTarget parses a local file or, for http(s) targets, a URL.
func (m *Manager) parseTarget(target, format string) (morpheus.Format, map[string]interface{}, error) {
	var (
		src morpheus.Source
		err error
	)

	if isURL(target) {
		config, cfgErr := morpheus.LoadConfigFromEnv(m.env)
		if cfgErr != nil {
			return morpheus.FormatNone, nil, cfgErr
		}
		options := config.RemoteOptionsCopy()
		options.Logger = m.logger
		src, err = morpheus.NewURLSource(target, format, options)
	} else {
		src, err = morpheus.NewFileSource(target, format)
	}
	if err != nil {
		return morpheus.FormatNone, nil, err
	}

	return morpheus.ParseSource(context.Background(), src)
}

// positionalArgs returns the arguments left once flags and their values are
// consumed, so flags may come before or after them. ctx.Args keeps the raw
// tokens.
func positionalArgs(ctx *orpheus.Context) []string {
	if ctx.Flags != nil {
		return ctx.Flags.Args()
	}
	return ctx.Args
}

// argAt returns the positional argument at index, or "" when absent.
func argAt(ctx *orpheus.Context, index int) string {
	args := positionalArgs(ctx)
	if index < 0 || index >= len(args) {
		return ""
	}
	return args[index]
}

func isURL(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// splitFlagList splits a comma separated flag value.
func splitFlagList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// watchedPaths lists the templates and local data inputs of an action.
func watchedPaths(action *morpheus.ActionConfig, scanner *morpheus.Renderer) []string {
	paths := make([]string, 0, len(action.Contexts)+2)
	if action.VarFile != "" {
		paths = append(paths, action.VarFile)
	}
	paths = append(paths, action.Contexts...)
	if action.DataFile != "" {
		paths = append(paths, action.DataFile)
	}
	if templates, err := scanner.FindTemplates(); err == nil {
		paths = append(paths, templates...)
	}
	return paths
}

// clock formats the cached wall time for watch messages.
func clock() string {
	return timecache.CachedTime().Format("15:04:05")
}
