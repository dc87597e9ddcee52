// config_binder.go: Binding parsed settings onto typed variables
//
// A ConfigBinder collects binding intents (BindString, BindInt, ...) and
// applies them in one pass. Keys use dot notation: "render.basepath" is
// looked up first as a flat key (env and INI DEFAULT style files) and then
// as a path through nested maps (JSON, YAML and INI sections).
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

// binding assigns one setting. set is only called when the key exists.
type binding struct {
	key string
	set func(value interface{}) error
}

// ConfigBinder binds settings onto variables. Targets keep their current
// value (or the given default) when the key is absent.
type ConfigBinder struct {
	bindings []binding
	config   map[string]interface{}
}

// NewConfigBinder creates a binder over parsed settings.
func NewConfigBinder(config map[string]interface{}) *ConfigBinder {
	return &ConfigBinder{
		bindings: make([]binding, 0, 16),
		config:   config,
	}
}

func (cb *ConfigBinder) add(key string, set func(value interface{}) error) *ConfigBinder {
	cb.bindings = append(cb.bindings, binding{key: key, set: set})
	return cb
}

// BindString binds a string setting with optional default
func (cb *ConfigBinder) BindString(target *string, key string, defaultValue ...string) *ConfigBinder {
	if len(defaultValue) > 0 {
		*target = defaultValue[0]
	}
	return cb.add(key, func(value interface{}) error {
		*target = toString(value)
		return nil
	})
}

// BindInt binds an integer setting with optional default
func (cb *ConfigBinder) BindInt(target *int, key string, defaultValue ...int) *ConfigBinder {
	if len(defaultValue) > 0 {
		*target = defaultValue[0]
	}
	return cb.add(key, func(value interface{}) error {
		parsed, err := toInt64(value)
		if err != nil {
			return err
		}
		*target = int(parsed)
		return nil
	})
}

// BindBool binds a boolean setting with optional default
func (cb *ConfigBinder) BindBool(target *bool, key string, defaultValue ...bool) *ConfigBinder {
	if len(defaultValue) > 0 {
		*target = defaultValue[0]
	}
	return cb.add(key, func(value interface{}) error {
		parsed, err := toBool(value)
		if err != nil {
			return err
		}
		*target = parsed
		return nil
	})
}

// BindDuration binds a duration setting with optional default. Strings use
// time.ParseDuration; bare numbers are seconds.
func (cb *ConfigBinder) BindDuration(target *time.Duration, key string, defaultValue ...time.Duration) *ConfigBinder {
	if len(defaultValue) > 0 {
		*target = defaultValue[0]
	}
	return cb.add(key, func(value interface{}) error {
		parsed, err := toDuration(value)
		if err != nil {
			return err
		}
		*target = parsed
		return nil
	})
}

// BindStringSlice binds a list setting. A string value is split on commas.
func (cb *ConfigBinder) BindStringSlice(target *[]string, key string, defaultValue ...[]string) *ConfigBinder {
	if len(defaultValue) > 0 {
		*target = append([]string(nil), defaultValue[0]...)
	}
	return cb.add(key, func(value interface{}) error {
		switch v := value.(type) {
		case []interface{}:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, toString(item))
			}
			*target = items
		case string:
			*target = splitList(v)
		default:
			return errors.New(ErrCodeInvalidConfig, fmt.Sprintf("cannot convert %T to a list", value))
		}
		return nil
	})
}

// BindStringMap binds a mapping setting. A string value is decoded as a
// JSON object.
func (cb *ConfigBinder) BindStringMap(target *map[string]string, key string) *ConfigBinder {
	return cb.add(key, func(value interface{}) error {
		result := make(map[string]string)
		switch v := value.(type) {
		case map[string]interface{}:
			for k, item := range v {
				result[k] = toString(item)
			}
		case string:
			if err := json.Unmarshal([]byte(v), &result); err != nil {
				return errors.Wrap(err, ErrCodeInvalidConfig, "invalid JSON object")
			}
		default:
			return errors.New(ErrCodeInvalidConfig, fmt.Sprintf("cannot convert %T to a mapping", value))
		}
		*target = result
		return nil
	})
}

// Apply runs every binding in declaration order and stops at the first
// conversion failure.
func (cb *ConfigBinder) Apply() error {
	for _, b := range cb.bindings {
		value, exists := cb.getValue(b.key)
		if !exists {
			continue
		}
		if err := b.set(value); err != nil {
			return errors.Wrap(err, ErrCodeInvalidConfig, "failed to bind key '"+b.key+"'").
				WithContext("key", b.key)
		}
	}
	return nil
}

// getValue looks key up as a flat key, then as a dotted path.
func (cb *ConfigBinder) getValue(key string) (interface{}, bool) {
	if val, exists := cb.config[key]; exists {
		return val, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}

	parts := strings.Split(key, ".")
	current := cb.config
	for i, part := range parts {
		val, exists := current[part]
		if !exists {
			return nil, false
		}
		if i == len(parts)-1 {
			return val, true
		}
		nested, ok := val.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = nested
	}
	return nil, false
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil // #nosec G115 -- settings values are small
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, errors.New(ErrCodeInvalidConfig, fmt.Sprintf("cannot convert %T to int", value))
	}
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return parseBool(v)
	case int:
		return v != 0, nil
	case json.Number:
		return v.String() != "0", nil
	default:
		return false, errors.New(ErrCodeInvalidConfig, fmt.Sprintf("cannot convert %T to bool", value))
	}
}

func toDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if seconds, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return time.Duration(seconds * float64(time.Second)), nil
		}
		return time.ParseDuration(trimmed)
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case json.Number:
		seconds, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return time.Duration(seconds * float64(time.Second)), nil
	default:
		return 0, errors.New(ErrCodeInvalidConfig, fmt.Sprintf("cannot convert %T to a duration", value))
	}
}

// LoadConfigFile reads a settings file in any supported format and binds
// it over the defaults. Recognized keys:
//
//	render.basepath, render.extensions, render.keep_template, render.undefined
//	remote.timeout, remote.retries, remote.retry_delay, remote.retry_delay_max, remote.headers
//	audit.enabled, audit.output, audit.min_level, audit.buffer_size, audit.flush_interval
//	log.level, watch.interval
func LoadConfigFile(path string) (*Config, error) {
	settings, err := ParseFile(path, "")
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	var auditLevel string

	err = NewConfigBinder(settings).
		BindString(&config.Render.BasePath, "render.basepath").
		BindStringSlice(&config.Render.Extensions, "render.extensions").
		BindBool(&config.Render.KeepTemplate, "render.keep_template").
		BindString(&config.Render.Undefined, "render.undefined").
		BindDuration(&config.Remote.Timeout, "remote.timeout").
		BindInt(&config.Remote.RetryAttempts, "remote.retries").
		BindDuration(&config.Remote.RetryDelay, "remote.retry_delay").
		BindDuration(&config.Remote.RetryDelayMax, "remote.retry_delay_max").
		BindStringMap(&config.Remote.Headers, "remote.headers").
		BindBool(&config.Audit.Enabled, "audit.enabled").
		BindString(&config.Audit.OutputFile, "audit.output").
		BindString(&auditLevel, "audit.min_level", config.Audit.MinLevel.String()).
		BindInt(&config.Audit.BufferSize, "audit.buffer_size").
		BindDuration(&config.Audit.FlushInterval, "audit.flush_interval").
		BindString(&config.LogLevel, "log.level").
		BindDuration(&config.WatchInterval, "watch.interval").
		Apply()
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig,
			fmt.Sprintf("invalid settings file %s", path))
	}

	level, err := ParseAuditLevel(auditLevel)
	if err != nil {
		return nil, err
	}
	config.Audit.MinLevel = level

	return config.WithDefaults(), nil
}
