// formats.go: Format tokens and format hints for Morpheus
//
// A format is either declared by the caller, hinted by the origin of the
// content (file extension, HTTP Content-Type) or detected from the bytes.
// Declared and hinted formats are authoritative.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/agilira/go-errors"
)

// Format identifies one of the supported structured data formats.
type Format int

const (
	// FormatNone means no format was declared or hinted.
	FormatNone Format = iota
	FormatINI
	FormatJSON
	FormatEnv
	FormatYAML
)

// formatTokens maps the recognized tokens to formats. Tokens are
// case-sensitive; "yml" is an alias of "yaml".
var formatTokens = map[string]Format{
	"ini":  FormatINI,
	"json": FormatJSON,
	"yml":  FormatYAML,
	"yaml": FormatYAML,
	"env":  FormatEnv,
}

// contentTypeFormats is the fixed Content-Type table used by URL sources.
var contentTypeFormats = map[string]Format{
	"application/json":   FormatJSON,
	"text/json":          FormatJSON,
	"application/yaml":   FormatYAML,
	"application/x-yaml": FormatYAML,
	"text/yaml":          FormatYAML,
	"text/x-yaml":        FormatYAML,
}

// String returns the canonical token of the format.
func (f Format) String() string {
	switch f {
	case FormatINI:
		return "ini"
	case FormatJSON:
		return "json"
	case FormatEnv:
		return "env"
	case FormatYAML:
		return "yaml"
	default:
		return "none"
	}
}

// SupportedFormats returns the recognized format tokens in a stable order.
func SupportedFormats() []string {
	return []string{"ini", "json", "yml", "yaml", "env"}
}

// ParseFormat validates a format token. The empty token yields FormatNone;
// any other unrecognized token is a configuration error.
func ParseFormat(token string) (Format, error) {
	if token == "" {
		return FormatNone, nil
	}
	if format, ok := formatTokens[token]; ok {
		return format, nil
	}
	return FormatNone, errors.New(ErrCodeInvalidFormat,
		fmt.Sprintf("invalid format %q (supported: %s)", token, strings.Join(SupportedFormats(), ", ")))
}

// FormatFromExtension derives a format hint from the file extension of path.
// The extension is lower-cased and looked up in the token table.
func FormatFromExtension(path string) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return FormatNone
	}
	return formatTokens[ext]
}

// FormatFromContentType derives a format hint from an HTTP Content-Type
// header. Parameters such as charset are ignored.
func FormatFromContentType(header string) Format {
	if header == "" {
		return FormatNone
	}

	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(header, ";", 2)[0])
	}

	return contentTypeFormats[strings.ToLower(mediaType)]
}

// resolveHint returns the declared format when set, otherwise the hint.
func resolveHint(declared, hint Format) Format {
	if declared != FormatNone {
		return declared
	}
	return hint
}
