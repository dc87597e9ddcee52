// morpheus: format-detecting data loader and template renderer
//
// Philosophy:
// - One entry point for INI, JSON, YAML and KEY=VALUE data, detected or declared
// - Explicit inputs (environment snapshot, sources, options), no hidden process state
// - Coded errors with three caller-facing kinds: config, parse and I/O
//
// Example Usage:
//   data := morpheus.NewDataContext(morpheus.EnvironSnapshot(os.Environ()))
//   if err := data.AddDataFile(context.Background(), "values.yml", ""); err != nil {
//       log.Fatal(err)
//   }
//
//   renderer, err := morpheus.NewRenderer(morpheus.RenderOptions{BasePath: "."},
//       morpheus.WithEnvironment(data.Env()))
//   if err != nil {
//       log.Fatal(err)
//   }
//   rendered, err := renderer.RenderAll(data.Data())
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	goerrors "errors"
	"strings"

	"github.com/agilira/go-errors"
)

// Error codes for Morpheus operations
const (
	// Configuration errors, raised before any I/O
	ErrCodeInvalidConfig      = "MORPHEUS_INVALID_CONFIG"
	ErrCodeInvalidFormat      = "MORPHEUS_INVALID_FORMAT"
	ErrCodeInvalidUndefined   = "MORPHEUS_INVALID_UNDEFINED"
	ErrCodeInvalidURL         = "MORPHEUS_INVALID_URL"
	ErrCodeInvalidAuditConfig = "MORPHEUS_INVALID_AUDIT_CONFIG"

	// Parse errors
	ErrCodeSyntax             = "MORPHEUS_SYNTAX_ERROR"
	ErrCodeUnrecognizedFormat = "MORPHEUS_UNRECOGNIZED_FORMAT"

	// I/O errors
	ErrCodeIOError           = "MORPHEUS_IO_ERROR"
	ErrCodeFileNotFound      = "MORPHEUS_FILE_NOT_FOUND"
	ErrCodePayloadTooLarge   = "MORPHEUS_PAYLOAD_TOO_LARGE"
	ErrCodeRemoteUnavailable = "MORPHEUS_REMOTE_UNAVAILABLE"
	ErrCodeRemoteStatus      = "MORPHEUS_REMOTE_STATUS"
	ErrCodeRemoteTimeout     = "MORPHEUS_REMOTE_TIMEOUT"

	// Rendering, serialization and audit
	ErrCodeTemplateError    = "MORPHEUS_TEMPLATE_ERROR"
	ErrCodeUnsupportedValue = "MORPHEUS_UNSUPPORTED_VALUE"
	ErrCodeAuditError       = "MORPHEUS_AUDIT_ERROR"

	// Watcher state
	ErrCodeWatcherBusy    = "MORPHEUS_WATCHER_BUSY"
	ErrCodeWatcherStopped = "MORPHEUS_WATCHER_STOPPED"
)

// ErrorKind groups error codes into the categories callers act on.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfig
	KindParse
	KindIO
	KindTemplate
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindParse:
		return "parse"
	case KindIO:
		return "io"
	case KindTemplate:
		return "template"
	default:
		return "unknown"
	}
}

// ErrorCode extracts the outermost Morpheus error code carried by err.
// Returns "" for nil or uncoded errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	if coder, ok := err.(errors.ErrorCoder); ok {
		return string(coder.ErrorCode())
	}

	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return string(coder.ErrorCode())
	}

	return ""
}

// KindOf classifies err by its error code.
func KindOf(err error) ErrorKind {
	switch ErrorCode(err) {
	case ErrCodeInvalidConfig, ErrCodeInvalidFormat, ErrCodeInvalidUndefined,
		ErrCodeInvalidURL, ErrCodeInvalidAuditConfig:
		return KindConfig
	case ErrCodeSyntax, ErrCodeUnrecognizedFormat:
		return KindParse
	case ErrCodeIOError, ErrCodeFileNotFound, ErrCodePayloadTooLarge,
		ErrCodeRemoteUnavailable, ErrCodeRemoteStatus, ErrCodeRemoteTimeout:
		return KindIO
	case ErrCodeTemplateError:
		return KindTemplate
	default:
		return KindUnknown
	}
}

// IsConfigError reports whether err was raised while validating inputs.
func IsConfigError(err error) bool { return KindOf(err) == KindConfig }

// IsParseError reports whether err means the content could not be parsed.
func IsParseError(err error) bool { return KindOf(err) == KindParse }

// IsIOError reports whether err means the content could not be obtained.
func IsIOError(err error) bool { return KindOf(err) == KindIO }

// isSyntaxError reports whether err is the closed parser mismatch class that
// format detection is allowed to swallow.
func isSyntaxError(err error) bool {
	return ErrorCode(err) == ErrCodeSyntax
}

// EnvironSnapshot converts os.Environ-style "KEY=VALUE" pairs into a map.
// Entries without "=" are ignored.
func EnvironSnapshot(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}
	return env
}
