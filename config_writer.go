// config_writer.go: Serializing parsed data back to the supported formats
//
// Encode is the inverse of Parse for every format: for any content t,
// Parse(Encode(Parse(t))) equals Parse(t). Values that the target grammar
// cannot carry are rejected with ErrCodeUnsupportedValue instead of being
// written in a form that would read back differently.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/agilira/go-errors"
	"github.com/natefinch/atomic"
	"go.yaml.in/yaml/v3"
	"gopkg.in/ini.v1"
)

// Encode serializes data in the given format.
func Encode(data map[string]interface{}, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return encodeJSON(data)
	case FormatYAML:
		return encodeYAML(data)
	case FormatINI:
		return encodeINI(data)
	case FormatEnv:
		return encodeEnv(data)
	default:
		return nil, errors.New(ErrCodeInvalidFormat,
			fmt.Sprintf("cannot encode without a format (got %s)", format))
	}
}

// WriteFile encodes data and replaces path atomically.
func WriteFile(path string, data map[string]interface{}, format Format) error {
	encoded, err := Encode(data, format)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(encoded)); err != nil {
		return errors.Wrap(err, ErrCodeIOError,
			fmt.Sprintf("failed to write %s", path)).
			WithContext("path", path)
	}
	return nil
}

// ConvertFile parses input and writes it to output in another format.
// from may be empty to use the extension or detection; to may be empty to
// use the output extension. Returns the source and target formats.
func ConvertFile(input, output, from, to string) (Format, Format, error) {
	target, err := ParseFormat(to)
	if err != nil {
		return FormatNone, FormatNone, err
	}
	if target == FormatNone {
		target = FormatFromExtension(output)
	}
	if target == FormatNone {
		return FormatNone, FormatNone, errors.New(ErrCodeInvalidFormat,
			fmt.Sprintf("cannot infer the output format of %s", output))
	}

	src, err := NewFileSource(input, from)
	if err != nil {
		return FormatNone, FormatNone, err
	}
	source, data, err := ParseSource(context.Background(), src)
	if err != nil {
		return FormatNone, FormatNone, err
	}

	if err := WriteFile(output, data, target); err != nil {
		return source, target, err
	}
	return source, target, nil
}

func unsupported(format Format, msg string) error {
	return errors.New(ErrCodeUnsupportedValue, fmt.Sprintf("cannot encode as %s: %s", format, msg))
}

func encodeJSON(data map[string]interface{}) ([]byte, error) {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeUnsupportedValue, "cannot encode as json")
	}
	return append(encoded, '\n'), nil
}

func encodeYAML(data map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(yamlValue(data)); err != nil {
		return nil, errors.Wrap(err, ErrCodeUnsupportedValue, "cannot encode as yaml")
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.Wrap(err, ErrCodeUnsupportedValue, "cannot encode as yaml")
	}
	return buf.Bytes(), nil
}

// yamlValue turns json.Number into native numbers so YAML does not quote
// them as strings.
func yamlValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = yamlValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = yamlValue(item)
		}
		return out
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	default:
		return v
	}
}

// scalarText renders a scalar for the line-oriented formats.
func scalarText(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case map[string]interface{}, []interface{}:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

func sortedKeys(data map[string]interface{}) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// encodeINI writes every top-level key as a section of scalar options.
func encodeINI(data map[string]interface{}) ([]byte, error) {
	file := ini.Empty(ini.LoadOptions{IgnoreInlineComment: true})

	for _, name := range sortedKeys(data) {
		options, ok := data[name].(map[string]interface{})
		if !ok {
			return nil, unsupported(FormatINI, fmt.Sprintf("top-level key %q is not a section", name))
		}
		if err := checkINISectionName(name); err != nil {
			return nil, err
		}

		section, err := file.NewSection(name)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeUnsupportedValue, fmt.Sprintf("cannot encode section %q", name))
		}

		for _, key := range sortedKeys(options) {
			value, ok := scalarText(options[key])
			if !ok {
				return nil, unsupported(FormatINI,
					fmt.Sprintf("option %q of section %q is nested", key, name))
			}
			if err := checkINIOption(name, key, value); err != nil {
				return nil, err
			}
			if _, err := section.NewKey(key, strings.ReplaceAll(value, "%", "%%")); err != nil {
				return nil, errors.Wrap(err, ErrCodeUnsupportedValue,
					fmt.Sprintf("cannot encode option %q of section %q", key, name))
			}
		}
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, ErrCodeUnsupportedValue, "cannot encode as ini")
	}
	return buf.Bytes(), nil
}

func checkINISectionName(name string) error {
	switch {
	case name == "" || strings.TrimSpace(name) != name:
		return unsupported(FormatINI, fmt.Sprintf("section name %q is empty or padded", name))
	case name == iniDefaultSection:
		return unsupported(FormatINI, "the DEFAULT section is reserved")
	case strings.ContainsAny(name, "[]\n\r"):
		return unsupported(FormatINI, fmt.Sprintf("section name %q contains brackets or line breaks", name))
	}
	return nil
}

func checkINIOption(section, key, value string) error {
	switch {
	case strings.TrimSpace(key) != key:
		return unsupported(FormatINI, fmt.Sprintf("option %q of section %q is padded", key, section))
	case strings.ContainsAny(key, "\"`=:"):
		return unsupported(FormatINI, fmt.Sprintf("option %q of section %q contains a delimiter or quote", key, section))
	case strings.HasPrefix(key, "#") || strings.HasPrefix(key, ";") || strings.HasPrefix(key, "["):
		return unsupported(FormatINI, fmt.Sprintf("option %q of section %q would read as a comment or header", key, section))
	}
	if err := validateINIKey(key, 0); err != nil {
		return unsupported(FormatINI, fmt.Sprintf("option %q of section %q is not a valid key", key, section))
	}

	switch {
	case strings.ContainsAny(value, "\n\r`"):
		return unsupported(FormatINI, fmt.Sprintf("value of %s.%s contains a line break or backtick", section, key))
	case strings.TrimSpace(value) != value:
		return unsupported(FormatINI, fmt.Sprintf("value of %s.%s has surrounding whitespace", section, key))
	}
	return nil
}

// encodeEnv writes KEY=VALUE lines in key order with backslash escapes.
func encodeEnv(data map[string]interface{}) ([]byte, error) {
	var b strings.Builder

	for _, key := range sortedKeys(data) {
		value, ok := scalarText(data[key])
		if !ok {
			return nil, unsupported(FormatEnv, fmt.Sprintf("value of %q is nested", key))
		}
		switch {
		case key == "":
			return nil, unsupported(FormatEnv, "empty key")
		case strings.Contains(key, "="):
			return nil, unsupported(FormatEnv, fmt.Sprintf("key %q contains '='", key))
		case strings.TrimSpace(key) != key:
			return nil, unsupported(FormatEnv, fmt.Sprintf("key %q is padded", key))
		}

		b.WriteString(escapeEnv(key, false))
		b.WriteByte('=')
		b.WriteString(escapeEnv(value, true))
		b.WriteByte('\n')
	}

	return []byte(b.String()), nil
}

// escapeEnv is the inverse of decodeEscapes. With protectTrailing set,
// trailing whitespace is escaped so line trimming keeps it.
func escapeEnv(s string, protectTrailing bool) string {
	trailing := len(s)
	if protectTrailing {
		trailing = len(strings.TrimRightFunc(s, unicode.IsSpace))
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case i >= trailing || r < 0x20 || r == 0x7f:
			if r <= 0xff {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				fmt.Fprintf(&b, `\u%04x`, r)
			}
		case !unicode.IsPrint(r):
			if r > 0xffff {
				fmt.Fprintf(&b, `\U%08x`, r)
			} else {
				fmt.Fprintf(&b, `\u%04x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
