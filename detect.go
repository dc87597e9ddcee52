// detect.go: Format detection for Morpheus
//
// Detection tries every parser in a fixed order and keeps the first success.
// A candidate failing with a syntax error is skipped silently; any other
// failure stops detection immediately. The order is part of the contract:
// INI first, then JSON, then Env, then YAML.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"fmt"
	"strings"

	"github.com/agilira/go-errors"
)

// detectionCandidate pairs a format with the parser tried for it.
type detectionCandidate struct {
	format Format
	parse  parseFunc
}

// detectionOrder is the fixed candidate list used by DetectAndParse.
var detectionOrder = []detectionCandidate{
	{FormatINI, parseINI},
	{FormatJSON, parseJSON},
	{FormatEnv, parseEnv},
	{FormatYAML, parseYAML},
}

// DetectAndParse parses data without a declared format.
//
// Returns:
//   - Format: The format of the first parser that accepted the content
//   - map[string]interface{}: Parsed data
//   - error: ErrCodeUnrecognizedFormat when every parser rejected the
//     content, or the first non-syntax error raised by a parser
func DetectAndParse(data []byte) (Format, map[string]interface{}, error) {
	return detectWith(data, detectionOrder)
}

// detectWith runs detection over an explicit candidate list.
func detectWith(data []byte, candidates []detectionCandidate) (Format, map[string]interface{}, error) {
	attempted := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		attempted = append(attempted, candidate.format.String())

		result, err := candidate.parse(data)
		if err == nil {
			return candidate.format, result, nil
		}
		if !isSyntaxError(err) {
			return FormatNone, nil, err
		}
	}

	return FormatNone, nil, errors.New(ErrCodeUnrecognizedFormat,
		fmt.Sprintf("content format is not recognized (tried %s)", strings.Join(attempted, ", ")))
}

// parseWithHint parses data with the hinted parser, or detects when there
// is no hint. Returns the format that produced the result.
func parseWithHint(data []byte, hint Format) (Format, map[string]interface{}, error) {
	if hint == FormatNone {
		return DetectAndParse(data)
	}

	result, err := Parse(data, hint)
	if err != nil {
		return hint, nil, err
	}
	return hint, result, nil
}
