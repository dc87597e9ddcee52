// parsers.go: Format parsers for Morpheus
//
// Every parser turns raw bytes into a string-keyed mapping. Parsers are pure
// and stateless: no I/O, no logging, no shared buffers. Content that does
// not match a parser's grammar fails with ErrCodeSyntax, the only error
// class format detection is allowed to swallow.
//
// Supported Formats:
// - INI (configparser-compatible sections, DEFAULT inheritance, interpolation)
// - JSON (object at top level, numbers kept as json.Number)
// - YAML (mapping at top level, safe generic decoding)
// - Env (KEY=VALUE lines with backslash escapes)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"fmt"

	"github.com/agilira/go-errors"
)

// parseFunc is the common signature of the format parsers.
type parseFunc func(data []byte) (map[string]interface{}, error)

// parserFor returns the parser bound to format, or nil for FormatNone.
func parserFor(format Format) parseFunc {
	switch format {
	case FormatINI:
		return parseINI
	case FormatJSON:
		return parseJSON
	case FormatEnv:
		return parseEnv
	case FormatYAML:
		return parseYAML
	default:
		return nil
	}
}

// Parse parses data with the parser of the given format. No detection takes
// place: the parser's error is returned as is.
//
// Parameters:
//   - data: Raw content bytes
//   - format: Declared format, must not be FormatNone
//
// Returns:
//   - map[string]interface{}: Parsed data
//   - error: ErrCodeInvalidFormat or the parser error
func Parse(data []byte, format Format) (map[string]interface{}, error) {
	parser := parserFor(format)
	if parser == nil {
		return nil, errors.New(ErrCodeInvalidFormat,
			fmt.Sprintf("cannot parse without a format (got %s)", format))
	}
	return parser(data)
}

// syntaxError builds the mismatch error shared by all parsers.
func syntaxError(format Format, msg string) error {
	return errors.New(ErrCodeSyntax, fmt.Sprintf("invalid %s: %s", format, msg))
}

// wrapSyntaxError wraps a decoder error into the mismatch class.
func wrapSyntaxError(err error, format Format) error {
	return errors.Wrap(err, ErrCodeSyntax, fmt.Sprintf("invalid %s: %v", format, err))
}

// normalizeValue converts decoder output into string-keyed maps recursively.
// Keys that are not strings are rendered with fmt.Sprint.
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = normalizeValue(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = normalizeValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
