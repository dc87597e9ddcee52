// env_config.go: Environment variable support for Morpheus configuration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "MORPHEUS_"

// Environment variable names
const (
	EnvBasePath      = EnvPrefix + "BASEPATH"
	EnvExtensions    = EnvPrefix + "EXTENSIONS"
	EnvKeepTemplate  = EnvPrefix + "KEEP_TEMPLATE"
	EnvUndefined     = EnvPrefix + "UNDEFINED"
	EnvRemoteTimeout = EnvPrefix + "REMOTE_TIMEOUT"
	EnvRemoteRetries = EnvPrefix + "REMOTE_RETRIES"
	EnvRemoteHeaders = EnvPrefix + "REMOTE_HEADERS"
	EnvAuditEnabled  = EnvPrefix + "AUDIT_ENABLED"
	EnvAuditOutput   = EnvPrefix + "AUDIT_OUTPUT"
	EnvAuditLevel    = EnvPrefix + "AUDIT_MIN_LEVEL"
	EnvLogLevel      = EnvPrefix + "LOG_LEVEL"
	EnvWatchInterval = EnvPrefix + "WATCH_INTERVAL"
)

// EnvConfig holds the raw MORPHEUS_* values found in an environment snapshot.
// Empty fields were not set.
type EnvConfig struct {
	BasePath      string `env:"MORPHEUS_BASEPATH"`
	Extensions    string `env:"MORPHEUS_EXTENSIONS"` // comma separated
	KeepTemplate  string `env:"MORPHEUS_KEEP_TEMPLATE"`
	Undefined     string `env:"MORPHEUS_UNDEFINED"`
	RemoteTimeout string `env:"MORPHEUS_REMOTE_TIMEOUT"`
	RemoteRetries string `env:"MORPHEUS_REMOTE_RETRIES"`
	RemoteHeaders string `env:"MORPHEUS_REMOTE_HEADERS"` // JSON object
	AuditEnabled  string `env:"MORPHEUS_AUDIT_ENABLED"`
	AuditOutput   string `env:"MORPHEUS_AUDIT_OUTPUT"`
	AuditLevel    string `env:"MORPHEUS_AUDIT_MIN_LEVEL"`
	LogLevel      string `env:"MORPHEUS_LOG_LEVEL"`
	WatchInterval string `env:"MORPHEUS_WATCH_INTERVAL"`
}

// readEnvConfig collects the MORPHEUS_* values from env.
func readEnvConfig(env map[string]string) EnvConfig {
	get := func(key string) string {
		return strings.TrimSpace(env[key])
	}
	return EnvConfig{
		BasePath:      get(EnvBasePath),
		Extensions:    get(EnvExtensions),
		KeepTemplate:  get(EnvKeepTemplate),
		Undefined:     get(EnvUndefined),
		RemoteTimeout: get(EnvRemoteTimeout),
		RemoteRetries: get(EnvRemoteRetries),
		RemoteHeaders: get(EnvRemoteHeaders),
		AuditEnabled:  get(EnvAuditEnabled),
		AuditOutput:   get(EnvAuditOutput),
		AuditLevel:    get(EnvAuditLevel),
		LogLevel:      get(EnvLogLevel),
		WatchInterval: get(EnvWatchInterval),
	}
}

// LoadConfigFromEnv builds a configuration from defaults overridden by the
// MORPHEUS_* variables of env.
func LoadConfigFromEnv(env map[string]string) (*Config, error) {
	config := DefaultConfig()
	if err := config.ApplyEnv(env); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigMultiSource loads a settings file (if path is not empty) and
// applies the environment on top of it.
func LoadConfigMultiSource(path string, env map[string]string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := config.ApplyEnv(env); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides the fields whose MORPHEUS_* variable is set in env.
func (c *Config) ApplyEnv(env map[string]string) error {
	envConfig := readEnvConfig(env)

	if err := applyRenderEnv(envConfig, c); err != nil {
		return err
	}
	if err := applyRemoteEnv(envConfig, c); err != nil {
		return err
	}
	if err := applyAuditEnv(envConfig, c); err != nil {
		return err
	}

	if envConfig.LogLevel != "" {
		c.LogLevel = envConfig.LogLevel
	}
	if envConfig.WatchInterval != "" {
		interval, err := time.ParseDuration(envConfig.WatchInterval)
		if err != nil {
			return envError(EnvWatchInterval, err)
		}
		c.WatchInterval = interval
	}

	return nil
}

func applyRenderEnv(envConfig EnvConfig, c *Config) error {
	if envConfig.BasePath != "" {
		c.Render.BasePath = envConfig.BasePath
	}
	if envConfig.Extensions != "" {
		c.Render.Extensions = splitList(envConfig.Extensions)
	}
	if envConfig.KeepTemplate != "" {
		keep, err := parseBool(envConfig.KeepTemplate)
		if err != nil {
			return envError(EnvKeepTemplate, err)
		}
		c.Render.KeepTemplate = keep
	}
	if envConfig.Undefined != "" {
		c.Render.Undefined = envConfig.Undefined
	}
	return nil
}

func applyRemoteEnv(envConfig EnvConfig, c *Config) error {
	if envConfig.RemoteTimeout != "" {
		timeout, err := time.ParseDuration(envConfig.RemoteTimeout)
		if err != nil {
			return envError(EnvRemoteTimeout, err)
		}
		c.Remote.Timeout = timeout
	}
	if envConfig.RemoteRetries != "" {
		retries, err := strconv.Atoi(envConfig.RemoteRetries)
		if err != nil {
			return envError(EnvRemoteRetries, err)
		}
		c.Remote.RetryAttempts = retries
	}
	if envConfig.RemoteHeaders != "" {
		headers := make(map[string]string)
		if err := json.Unmarshal([]byte(envConfig.RemoteHeaders), &headers); err != nil {
			return envError(EnvRemoteHeaders, err)
		}
		c.Remote.Headers = headers
	}
	return nil
}

func applyAuditEnv(envConfig EnvConfig, c *Config) error {
	if envConfig.AuditEnabled != "" {
		enabled, err := parseBool(envConfig.AuditEnabled)
		if err != nil {
			return envError(EnvAuditEnabled, err)
		}
		c.Audit.Enabled = enabled
	}
	if envConfig.AuditOutput != "" {
		c.Audit.OutputFile = envConfig.AuditOutput
	}
	if envConfig.AuditLevel != "" {
		level, err := ParseAuditLevel(envConfig.AuditLevel)
		if err != nil {
			return envError(EnvAuditLevel, err)
		}
		c.Audit.MinLevel = level
	}
	return nil
}

func envError(key string, err error) error {
	return errors.Wrap(err, ErrCodeInvalidConfig,
		fmt.Sprintf("invalid value for %s", key)).
		WithContext("variable", key)
}

// parseBool accepts true/false, 1/0, yes/no, on/off and enabled/disabled.
func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "enabled":
		return true, nil
	case "false", "0", "no", "off", "disabled":
		return false, nil
	default:
		return false, errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("invalid boolean %q", value))
	}
}

// splitList splits a comma separated list, dropping empty items.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
