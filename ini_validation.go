// ini_validation.go: Validation functions for INI parser
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: AGILira System Libraries
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"fmt"
	"strings"
	"unicode"
)

// parseINISectionHeader validates a [section] header and returns its name:
// everything between the opening bracket and the last closing bracket.
// Text after the closing bracket, such as a trailing comment, is ignored.
func parseINISectionHeader(line string, lineNum int) (string, error) {
	if err := validateINISection(line, lineNum); err != nil {
		return "", err
	}

	trimmed := strings.TrimSpace(line)
	name := trimmed[1:strings.LastIndexByte(trimmed, ']')]
	if name == "" {
		return "", syntaxError(FormatINI,
			fmt.Sprintf("invalid section at line %d: empty section name", lineNum))
	}

	return name, nil
}

// validateINISection validates INI section header format [section].
func validateINISection(line string, lineNum int) error {
	trimmed := strings.TrimSpace(line)

	if !strings.HasPrefix(trimmed, "[") || strings.LastIndexByte(trimmed, ']') < 1 {
		return syntaxError(FormatINI,
			fmt.Sprintf("invalid section at line %d: malformed brackets", lineNum))
	}

	return nil
}

// validateINIKey validates that an INI option name is usable.
// Keys must be non-empty and free of control characters.
func validateINIKey(key string, lineNum int) error {
	if key == "" {
		return syntaxError(FormatINI,
			fmt.Sprintf("invalid key at line %d: key cannot be empty", lineNum))
	}

	for _, char := range key {
		if char == '\x00' {
			return syntaxError(FormatINI,
				fmt.Sprintf("invalid key at line %d: null byte not allowed in keys", lineNum))
		}
		if char < 32 && char != '\t' {
			return syntaxError(FormatINI,
				fmt.Sprintf("invalid key at line %d: control character not allowed in keys", lineNum))
		}
		if !unicode.IsPrint(char) && char != '\t' {
			return syntaxError(FormatINI,
				fmt.Sprintf("invalid key at line %d: non-printable character not allowed in keys", lineNum))
		}
	}

	return nil
}
