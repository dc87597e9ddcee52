// config.go: Configuration for Morpheus tools
//
// Settings come from four layers, highest precedence first:
//  1. explicit flags (applied by the caller)
//  2. MORPHEUS_* environment variables (ApplyEnv)
//  3. a settings file in any supported format (LoadConfigFile)
//  4. defaults (DefaultConfig)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"time"
)

// Config collects the settings shared by the command line tools.
type Config struct {
	// Render configures template discovery and rendering
	Render RenderOptions

	// Remote configures URL data sources
	Remote RemoteOptions

	// Audit configures the audit trail
	Audit AuditConfig

	// LogLevel is a zerolog level name
	LogLevel string

	// WatchInterval is the polling period of the watch command
	WatchInterval time.Duration
}

// DefaultConfig returns a configuration with every field set to its default.
func DefaultConfig() *Config {
	config := &Config{
		Remote: *DefaultRemoteOptions(),
		Audit:  DefaultAuditConfig(),
	}
	return config.WithDefaults()
}

// WithDefaults returns a copy of the configuration with unset fields filled in.
func (c *Config) WithDefaults() *Config {
	config := *c

	config.Render = config.Render.WithDefaults()
	config.Remote = *config.Remote.withDefaults()

	if config.Audit == (AuditConfig{}) {
		config.Audit = DefaultAuditConfig()
	}
	if config.Audit.OutputFile == "" {
		config.Audit.OutputFile = DefaultAuditOutput()
	}
	if config.Audit.BufferSize <= 0 {
		config.Audit.BufferSize = DefaultAuditConfig().BufferSize
	}

	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevel
	}

	if config.WatchInterval <= 0 {
		config.WatchInterval = 2 * time.Second
	}

	return &config
}

// RemoteOptionsCopy returns the remote options with a private header map,
// ready to hand to a URL source.
func (c *Config) RemoteOptionsCopy() *RemoteOptions {
	options := c.Remote
	options.Headers = make(map[string]string, len(c.Remote.Headers))
	for key, value := range c.Remote.Headers {
		options.Headers[key] = value
	}
	return &options
}
