// config_validation.go: Configuration validation for Morpheus
//
// Validation never touches the network and only checks that the audit
// output directory is usable. Problems that make the configuration
// unusable are errors; questionable but working values are warnings.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// ValidationResult contains the result of configuration validation.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// first is the first failure, returned by Validate
	first error
}

// String returns a human-readable representation of validation results
func (vr ValidationResult) String() string {
	if vr.Valid {
		if len(vr.Warnings) == 0 {
			return "Configuration is valid"
		}
		return fmt.Sprintf("Configuration is valid with %d warning(s)", len(vr.Warnings))
	}
	return fmt.Sprintf("Configuration is invalid: %d error(s), %d warning(s)",
		len(vr.Errors), len(vr.Warnings))
}

func (vr *ValidationResult) addError(err error) {
	if vr.first == nil {
		vr.first = err
	}
	vr.Errors = append(vr.Errors, err.Error())
}

func (vr *ValidationResult) addWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// Validate returns the first configuration error, or nil.
func (c *Config) Validate() error {
	result := c.ValidateDetailed()
	if result.Valid {
		return nil
	}
	return result.first
}

// ValidateDetailed checks every setting and reports all errors and warnings.
func (c *Config) ValidateDetailed() ValidationResult {
	result := ValidationResult{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	c.validateRender(&result)
	c.validateRemote(&result)
	c.validateAudit(&result)

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		result.addError(err)
	}
	if c.WatchInterval < 0 {
		result.addError(errors.New(ErrCodeInvalidConfig, "watch interval cannot be negative"))
	} else if c.WatchInterval > 0 && c.WatchInterval < 100*time.Millisecond {
		result.addWarning("watch interval %s is very short and may load the filesystem", c.WatchInterval)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validateRender(result *ValidationResult) {
	if _, err := ParseUndefinedBehaviour(c.Render.Undefined); err != nil {
		result.addError(err)
	}

	for _, ext := range c.Render.Extensions {
		if ext == "" {
			result.addError(errors.New(ErrCodeInvalidConfig, "template extension cannot be empty"))
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			result.addWarning("template extension %q has no leading dot and matches any name ending in it", ext)
		}
	}

	if c.Render.BasePath != "" {
		if info, err := os.Stat(c.Render.BasePath); err == nil && !info.IsDir() {
			result.addError(errors.New(ErrCodeInvalidConfig,
				fmt.Sprintf("render base path %q is not a directory", c.Render.BasePath)))
		}
	}
}

func (c *Config) validateRemote(result *ValidationResult) {
	if c.Remote.Timeout < 0 {
		result.addError(errors.New(ErrCodeInvalidConfig, "remote timeout cannot be negative"))
	}
	if c.Remote.RetryAttempts < 0 {
		result.addError(errors.New(ErrCodeInvalidConfig, "remote retry attempts cannot be negative"))
	} else if c.Remote.RetryAttempts > 10 {
		result.addWarning("%d remote retries may delay failures for a long time", c.Remote.RetryAttempts)
	}
	if c.Remote.RetryDelayMax > 0 && c.Remote.RetryDelayMax < c.Remote.RetryDelay {
		result.addWarning("remote retry delay max %s is below the retry delay %s", c.Remote.RetryDelayMax, c.Remote.RetryDelay)
	}
}

func (c *Config) validateAudit(result *ValidationResult) {
	if !c.Audit.Enabled {
		return
	}

	if err := c.Audit.Validate(); err != nil {
		result.addError(err)
		return
	}

	dir := filepath.Dir(filepath.Clean(c.Audit.OutputFile))
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		result.addError(errors.New(ErrCodeInvalidAuditConfig,
			fmt.Sprintf("audit output directory %q is not a directory", dir)))
	}

	if c.Audit.FlushInterval == 0 {
		result.addWarning("audit flush interval is 0, events are written only when the buffer fills or on close")
	}
}

// ValidateConfigFile loads a settings file and validates the result.
func ValidateConfigFile(path string) (ValidationResult, error) {
	config, err := LoadConfigFile(path)
	if err != nil {
		return ValidationResult{}, err
	}
	return config.ValidateDetailed(), nil
}
