// data_context.go: Template data accumulation for Morpheus
//
// A DataContext collects the values exposed to templates. Sources are
// merged in the order the caller adds them and later keys overwrite
// earlier ones at the top level. The process environment is never read
// here: callers pass an explicit snapshot, exposed to templates as "env".
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/rs/zerolog"
)

// EnvKey is the top-level key holding the environment snapshot.
const EnvKey = "env"

// DataContext accumulates template data. It is not safe for concurrent
// mutation.
type DataContext struct {
	data   map[string]interface{}
	env    map[string]string
	remote *RemoteOptions
	logger zerolog.Logger
	audit  *AuditLogger
}

// ContextOption configures a DataContext.
type ContextOption func(*DataContext)

// WithContextLogger sets the logger used to trace merges.
func WithContextLogger(logger zerolog.Logger) ContextOption {
	return func(c *DataContext) {
		c.logger = logger
	}
}

// WithContextAudit records every merge in the audit trail.
func WithContextAudit(audit *AuditLogger) ContextOption {
	return func(c *DataContext) {
		c.audit = audit
	}
}

// WithRemoteOptions sets the options used by AddDataURL.
func WithRemoteOptions(opts *RemoteOptions) ContextOption {
	return func(c *DataContext) {
		c.remote = opts
	}
}

// NewDataContext creates a context seeded with the given environment
// snapshot. A nil snapshot is treated as empty.
func NewDataContext(env map[string]string, opts ...ContextOption) *DataContext {
	snapshot := make(map[string]string, len(env))
	for key, value := range env {
		snapshot[key] = value
	}

	c := &DataContext{
		data:   make(map[string]interface{}),
		env:    snapshot,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	exposed := make(map[string]interface{}, len(snapshot))
	for key, value := range snapshot {
		exposed[key] = value
	}
	c.data[EnvKey] = exposed

	return c
}

// Env returns the environment snapshot the context was created with.
func (c *DataContext) Env() map[string]string {
	env := make(map[string]string, len(c.env))
	for key, value := range c.env {
		env[key] = value
	}
	return env
}

// Data returns a deep copy of the accumulated data.
func (c *DataContext) Data() map[string]interface{} {
	return deepCopy(c.data)
}

// AddVariables merges KEY=VALUE declarations (one per line, backslash
// escapes decoded) at the top level.
func (c *DataContext) AddVariables(text string) error {
	values, err := parseEnv([]byte(text))
	if err != nil {
		return err
	}
	c.merge("variables", FormatEnv, values)
	return nil
}

// AddJSONSection stores content under name. content is either a JSON
// object encoded as a string (or []byte) or an already decoded map.
// Dashes in top-level keys are replaced by underscores so the keys are
// usable as template identifiers.
func (c *DataContext) AddJSONSection(name string, content interface{}) error {
	if name == "" {
		return errors.New(ErrCodeInvalidConfig, "section name cannot be empty")
	}

	var section map[string]interface{}
	switch v := content.(type) {
	case string:
		parsed, err := parseJSON([]byte(v))
		if err != nil {
			return err
		}
		section = parsed
	case []byte:
		parsed, err := parseJSON(v)
		if err != nil {
			return err
		}
		section = parsed
	case map[string]interface{}:
		section = deepCopy(v)
	default:
		return errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported section content type %T", content))
	}

	c.data[name] = underscoreKeys(section)
	c.logger.Debug().Str("section", name).Int("keys", len(section)).Msg("json section added")
	c.audit.LogDataLoaded("json_section", name, FormatJSON, len(section))

	return nil
}

// AddContextFile adds a JSON context file as a section named after the
// file stem. Empty files and files containing only "null" are skipped.
func (c *DataContext) AddContextFile(path string) error {
	// #nosec G304 -- context files are explicit caller inputs
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(err, ErrCodeFileNotFound,
				fmt.Sprintf("context file does not exist: %s", path))
		}
		return errors.Wrap(err, ErrCodeIOError,
			fmt.Sprintf("failed to read context file: %s", path))
	}

	if isEmptyContext(content) {
		c.logger.Debug().Str("path", path).Msg("empty context file skipped")
		return nil
	}

	return c.AddJSONSection(fileStem(path), content)
}

// AddDataFile parses a data file and merges it at the top level.
// format may be empty to use the extension or detection.
func (c *DataContext) AddDataFile(ctx context.Context, path, format string) error {
	src, err := NewFileSource(path, format)
	if err != nil {
		return err
	}
	return c.AddSource(ctx, src)
}

// AddDataURL fetches and parses a remote document and merges it at the
// top level. format may be empty to use the Content-Type or detection.
func (c *DataContext) AddDataURL(ctx context.Context, rawURL, format string) error {
	src, err := NewURLSource(rawURL, format, c.remote)
	if err != nil {
		return err
	}
	return c.AddSource(ctx, src)
}

// AddSource parses any Source and merges the result at the top level.
func (c *DataContext) AddSource(ctx context.Context, src Source) error {
	format, values, err := ParseSource(ctx, src)
	if err != nil {
		return err
	}
	c.merge(src.Origin(), format, values)
	return nil
}

// merge overlays values onto the top level.
func (c *DataContext) merge(origin string, format Format, values map[string]interface{}) {
	for key, value := range values {
		c.data[key] = value
	}
	c.logger.Debug().Str("origin", origin).Str("format", format.String()).Int("keys", len(values)).
		Msg("data merged")
	c.audit.LogDataLoaded("data_merged", origin, format, len(values))
}

// underscoreKeys rewrites top-level keys containing "-" with "_".
// A rewritten key replaces an existing key of the same spelling.
func underscoreKeys(section map[string]interface{}) map[string]interface{} {
	var dashed []string
	for key := range section {
		if strings.Contains(key, "-") {
			dashed = append(dashed, key)
		}
	}
	sort.Strings(dashed)

	for _, key := range dashed {
		value := section[key]
		delete(section, key)
		section[strings.ReplaceAll(key, "-", "_")] = value
	}
	return section
}

// isEmptyContext matches the payloads CI systems write for absent contexts.
func isEmptyContext(content []byte) bool {
	text := string(content)
	return text == "" || text == "null\n" || text == "null"
}

// fileStem returns the base name of path without its last extension.
func fileStem(path string) string {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		return name
	}
	return stem
}

// deepCopy copies nested maps and slices so callers cannot mutate the
// accumulated data.
func deepCopy(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for key, value := range src {
		dst[key] = deepCopyValue(value)
	}
	return dst
}

func deepCopyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return deepCopy(v)
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, item := range v {
			out[key] = item
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
