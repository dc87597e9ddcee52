// integration.go: CI action integration for Morpheus
//
// ActionConfig is the flat, single-shot form of the tool used by CI
// runners: parse the action flags, load every data input in a fixed order
// and render all templates under the working directory. Each flag can also
// come from the environment variable INPUT_<FLAG> (upper case), which is
// how CI runners hand action inputs to the process. Explicit flags win.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"context"
	"fmt"
	"os"
	"strings"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
	"github.com/rs/zerolog"
)

// ActionEnvPrefix prefixes the environment variables bound to action flags.
const ActionEnvPrefix = "INPUT_"

// Action flag names
const (
	FlagKeepTemplate  = "keep_template"
	FlagVarFile       = "var_file"
	FlagContext       = "context"
	FlagDataFile      = "data_file"
	FlagDataFormat    = "data_format"
	FlagDataURL       = "data_url"
	FlagDataURLFormat = "data_url_format"
	FlagUndefined     = "undefined_behaviour"
	FlagBasePath      = "basepath"
	FlagLogLevel      = "log_level"
)

// ActionConfig holds the inputs of one action run.
type ActionConfig struct {
	KeepTemplate  bool
	VarFile       string
	Contexts      []string
	DataFile      string
	DataFormat    string
	DataURL       string
	DataURLFormat string
	Undefined     string
	BasePath      string
	LogLevel      string

	// Extensions overrides the template extensions; not bound to a flag
	Extensions []string
}

// ActionFlags parses action arguments with flash-flags.
type ActionFlags struct {
	flags *flashflags.FlagSet
	env   map[string]string
}

// NewActionFlags registers the action flags. Values found in env under
// ActionEnvPrefix become the flag defaults.
func NewActionFlags(name, version string, env map[string]string) (*ActionFlags, error) {
	af := &ActionFlags{
		flags: flashflags.New(name),
		env:   env,
	}
	af.flags.SetDescription("Render every template below the base path with data from files, URLs and CI contexts")
	af.flags.SetVersion(version)

	keep, err := af.boolDefault(FlagKeepTemplate, false)
	if err != nil {
		return nil, err
	}

	af.flags.Bool(FlagKeepTemplate, keep, "Keep template files after rendering")
	af.flags.String(FlagVarFile, af.stringDefault(FlagVarFile, ""), "File with KEY=VALUE variables")
	af.flags.StringSlice(FlagContext, af.listDefault(FlagContext), "JSON context files, each added as a section named after the file")
	af.flags.String(FlagDataFile, af.stringDefault(FlagDataFile, ""), "Data file merged at the top level")
	af.flags.String(FlagDataFormat, af.stringDefault(FlagDataFormat, ""), "Format of the data file (ini, json, yaml, yml, env)")
	af.flags.String(FlagDataURL, af.stringDefault(FlagDataURL, ""), "URL of a data document merged at the top level")
	af.flags.String(FlagDataURLFormat, af.stringDefault(FlagDataURLFormat, ""), "Format of the data URL document")
	af.flags.String(FlagUndefined, af.stringDefault(FlagUndefined, string(Undefined)), "Missing key behaviour: Undefined, ChainableUndefined, DebugUndefined or StrictUndefined")
	af.flags.String(FlagBasePath, af.stringDefault(FlagBasePath, "."), "Directory searched for templates")
	af.flags.String(FlagLogLevel, af.stringDefault(FlagLogLevel, DefaultLogLevel), "Log level")

	return af, nil
}

// EnvKey returns the environment variable bound to a flag.
func (af *ActionFlags) EnvKey(flagName string) string {
	return ActionEnvPrefix + strings.ToUpper(flagName)
}

func (af *ActionFlags) stringDefault(flagName, fallback string) string {
	if value, ok := af.env[af.EnvKey(flagName)]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func (af *ActionFlags) boolDefault(flagName string, fallback bool) (bool, error) {
	value := af.stringDefault(flagName, "")
	if value == "" {
		return fallback, nil
	}
	parsed, err := parseBool(value)
	if err != nil {
		return false, envError(af.EnvKey(flagName), err)
	}
	return parsed, nil
}

// listDefault splits a multi-line or comma separated input.
func (af *ActionFlags) listDefault(flagName string) []string {
	value := af.stringDefault(flagName, "")
	if value == "" {
		return []string{}
	}
	return splitList(strings.ReplaceAll(value, "\n", ","))
}

// Parse parses args (without the program name) into an ActionConfig.
func (af *ActionFlags) Parse(args []string) (*ActionConfig, error) {
	if err := af.flags.Parse(args); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse action flags")
	}

	config := &ActionConfig{
		KeepTemplate:  af.flags.GetBool(FlagKeepTemplate),
		VarFile:       af.flags.GetString(FlagVarFile),
		DataFile:      af.flags.GetString(FlagDataFile),
		DataFormat:    af.flags.GetString(FlagDataFormat),
		DataURL:       af.flags.GetString(FlagDataURL),
		DataURLFormat: af.flags.GetString(FlagDataURLFormat),
		Undefined:     af.flags.GetString(FlagUndefined),
		BasePath:      af.flags.GetString(FlagBasePath),
		LogLevel:      af.flags.GetString(FlagLogLevel),
	}
	for _, item := range af.flags.GetStringSlice(FlagContext) {
		config.Contexts = append(config.Contexts, splitList(item)...)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// PrintHelp prints the flag usage.
func (af *ActionFlags) PrintHelp() {
	af.flags.PrintHelp()
}

// Validate checks format tokens and the undefined behaviour before any I/O.
func (c *ActionConfig) Validate() error {
	if _, err := ParseFormat(c.DataFormat); err != nil {
		return err
	}
	if _, err := ParseFormat(c.DataURLFormat); err != nil {
		return err
	}
	if _, err := ParseUndefinedBehaviour(c.Undefined); err != nil {
		return err
	}
	if c.DataURL != "" {
		if err := validateRemoteURL(c.DataURL); err != nil {
			return err
		}
	}
	return nil
}

// ActionRun carries the collaborators of one action run.
type ActionRun struct {
	Env    map[string]string
	Remote *RemoteOptions
	Logger zerolog.Logger
	Audit  *AuditLogger
}

// LoadData loads the inputs in a fixed order: variables file, context
// files, data file, data URL. Later inputs overwrite earlier top-level keys.
func (c *ActionConfig) LoadData(ctx context.Context, run ActionRun) (*DataContext, error) {
	data := NewDataContext(run.Env,
		WithContextLogger(run.Logger),
		WithContextAudit(run.Audit),
		WithRemoteOptions(run.Remote))

	if c.VarFile != "" {
		// #nosec G304 -- the variables file is an explicit action input
		content, err := os.ReadFile(c.VarFile)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeIOError,
				fmt.Sprintf("failed to read variables file %s", c.VarFile)).
				WithContext("path", c.VarFile)
		}
		if err := data.AddVariables(string(content)); err != nil {
			return nil, err
		}
	}

	for _, contextFile := range c.Contexts {
		if err := data.AddContextFile(contextFile); err != nil {
			return nil, err
		}
	}

	if c.DataFile != "" {
		if err := data.AddDataFile(ctx, c.DataFile, c.DataFormat); err != nil {
			return nil, err
		}
	}

	if c.DataURL != "" {
		if err := data.AddDataURL(ctx, c.DataURL, c.DataURLFormat); err != nil {
			return nil, err
		}
	}

	return data, nil
}

// NewRenderer builds the renderer for this run.
func (c *ActionConfig) NewRenderer(data *DataContext, run ActionRun) (*Renderer, error) {
	return NewRenderer(RenderOptions{
		BasePath:     c.BasePath,
		Extensions:   c.Extensions,
		KeepTemplate: c.KeepTemplate,
		Undefined:    c.Undefined,
	},
		WithEnvironment(data.Env()),
		WithRendererLogger(run.Logger),
		WithRendererAudit(run.Audit))
}

// Run loads every input and renders all templates. Returns the rendered
// output paths.
func (c *ActionConfig) Run(ctx context.Context, run ActionRun) ([]string, error) {
	data, err := c.LoadData(ctx, run)
	if err != nil {
		return nil, err
	}

	renderer, err := c.NewRenderer(data, run)
	if err != nil {
		return nil, err
	}

	return renderer.RenderAll(data.Data())
}
