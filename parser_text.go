// parser_text.go: Line-oriented data parsers for Morpheus
//
// This file contains parsers for text-based data formats:
// - INI files (configparser-compatible sections and interpolation)
// - Env files (KEY=VALUE declarations with backslash escapes)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"fmt"
	"strconv"
	"strings"
)

// iniDefaultSection holds values inherited by every other section.
const iniDefaultSection = "DEFAULT"

// maxInterpolationDepth bounds %(name)s expansion chains.
const maxInterpolationDepth = 10

type iniSection struct {
	name   string
	values map[string]string
}

// iniState tracks the option currently open for continuation lines.
type iniState struct {
	section   *iniSection
	key       string
	keyIndent int
	open      bool
	blanks    int
}

// parseINI parses INI content with strict section semantics.
// Option names keep their case. Values from [DEFAULT] are inherited by every
// section and the DEFAULT section itself is not emitted. Values support
// %(name)s interpolation and %% escapes.
func parseINI(data []byte) (map[string]interface{}, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	defaults := &iniSection{name: iniDefaultSection, values: make(map[string]string)}
	sections := make(map[string]*iniSection)
	var order []string
	var state iniState

	for i, raw := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(raw)

		if trimmed == "" {
			if state.open {
				state.blanks++
			}
			continue
		}

		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))

		if isINIComment(trimmed) {
			continue
		}

		if state.open && indent > state.keyIndent {
			current := state.section.values[state.key]
			state.section.values[state.key] = current + strings.Repeat("\n", state.blanks+1) + trimmed
			state.blanks = 0
			continue
		}

		if strings.HasPrefix(trimmed, "[") {
			name, err := parseINISectionHeader(trimmed, lineNum)
			if err != nil {
				return nil, err
			}

			state.open = false
			state.blanks = 0
			if name == iniDefaultSection {
				state.section = defaults
				continue
			}
			if _, exists := sections[name]; exists {
				return nil, syntaxError(FormatINI,
					fmt.Sprintf("section %q already exists (line %d)", name, lineNum))
			}
			section := &iniSection{name: name, values: make(map[string]string)}
			sections[name] = section
			order = append(order, name)
			state.section = section
			continue
		}

		if state.section == nil {
			return nil, syntaxError(FormatINI,
				fmt.Sprintf("option found before any section header (line %d)", lineNum))
		}

		key, value, err := splitINIOption(trimmed, lineNum)
		if err != nil {
			return nil, err
		}
		if _, exists := state.section.values[key]; exists {
			return nil, syntaxError(FormatINI,
				fmt.Sprintf("option %q in section %q already exists (line %d)", key, state.section.name, lineNum))
		}

		state.section.values[key] = value
		state.key = key
		state.keyIndent = indent
		state.open = true
		state.blanks = 0
	}

	return resolveINISections(order, sections, defaults)
}

// isINIComment reports whether a trimmed line is a full-line comment.
func isINIComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";")
}

// splitINIOption splits "key = value" or "key: value" on the first delimiter.
func splitINIOption(line string, lineNum int) (string, string, error) {
	idx := strings.IndexAny(line, "=:")
	if idx < 0 {
		return "", "", syntaxError(FormatINI,
			fmt.Sprintf("line %d is neither a section, an option nor a comment", lineNum))
	}

	key := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])

	if err := validateINIKey(key, lineNum); err != nil {
		return "", "", err
	}

	return key, value, nil
}

// resolveINISections merges DEFAULT values into every section and expands
// interpolation references.
func resolveINISections(order []string, sections map[string]*iniSection, defaults *iniSection) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(order))

	for _, name := range order {
		section := sections[name]
		lookup := make(map[string]string, len(defaults.values)+len(section.values))
		for key, value := range defaults.values {
			lookup[key] = value
		}
		for key, value := range section.values {
			lookup[key] = value
		}

		resolved := make(map[string]interface{}, len(lookup))
		for key, value := range lookup {
			expanded, err := interpolateINIValue(name, key, value, lookup, 1)
			if err != nil {
				return nil, err
			}
			resolved[key] = expanded
		}
		result[name] = resolved
	}

	return result, nil
}

// interpolateINIValue expands %(name)s references and %% escapes.
func interpolateINIValue(section, option, value string, lookup map[string]string, depth int) (string, error) {
	if depth > maxInterpolationDepth {
		return "", syntaxError(FormatINI,
			fmt.Sprintf("interpolation depth exceeded for option %q in section %q", option, section))
	}

	if !strings.Contains(value, "%") {
		return value, nil
	}

	var b strings.Builder
	b.Grow(len(value))

	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}

		if i+1 >= len(value) {
			return "", syntaxError(FormatINI,
				fmt.Sprintf("'%%' must be followed by '%%' or '(' in option %q of section %q", option, section))
		}

		switch value[i+1] {
		case '%':
			b.WriteByte('%')
			i++
		case '(':
			end := strings.Index(value[i:], ")s")
			if end < 0 {
				return "", syntaxError(FormatINI,
					fmt.Sprintf("bad interpolation syntax in option %q of section %q", option, section))
			}
			ref := value[i+2 : i+end]
			target, ok := lookup[ref]
			if !ok {
				return "", syntaxError(FormatINI,
					fmt.Sprintf("bad interpolation reference %q in option %q of section %q", ref, option, section))
			}
			expanded, err := interpolateINIValue(section, ref, target, lookup, depth+1)
			if err != nil {
				return "", err
			}
			b.WriteString(expanded)
			i += end + 1
		default:
			return "", syntaxError(FormatINI,
				fmt.Sprintf("'%%' must be followed by '%%' or '(' in option %q of section %q", option, section))
		}
	}

	return b.String(), nil
}

// parseEnv parses KEY=VALUE declarations, one per line.
// Each trimmed line is escape-decoded first, then split on the first "=".
// Empty lines are skipped; later duplicates win.
func parseEnv(data []byte) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	for i, raw := range strings.Split(string(data), "\n") {
		line, err := decodeEscapes(strings.TrimSpace(raw))
		if err != nil {
			return nil, syntaxError(FormatEnv, fmt.Sprintf("line %d: %v", i+1, err))
		}
		if line == "" {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, syntaxError(FormatEnv,
				fmt.Sprintf("line %d: declaration without '='", i+1))
		}

		result[line[:idx]] = line[idx+1:]
	}

	return result, nil
}

// decodeEscapes decodes C-style backslash escapes (\n, \t, \\, \xhh,
// \uXXXX, \UXXXXXXXX, one to three octal digits, ...). Unknown escapes are
// kept literally; truncated numeric escapes are an error.
func decodeEscapes(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))

	for len(s) > 0 {
		if s[0] != '\\' {
			idx := strings.IndexByte(s, '\\')
			if idx < 0 {
				idx = len(s)
			}
			b.WriteString(s[:idx])
			s = s[idx:]
			continue
		}

		if len(s) == 1 {
			// A trailing lone backslash is kept.
			b.WriteByte('\\')
			break
		}

		switch c := s[1]; {
		case c == '\'' || c == '"':
			b.WriteByte(c)
			s = s[2:]
		case c >= '0' && c <= '7':
			n := 1
			for n < 3 && 1+n < len(s) && s[1+n] >= '0' && s[1+n] <= '7' {
				n++
			}
			code, _ := strconv.ParseUint(s[1:1+n], 8, 32)
			b.WriteRune(rune(code))
			s = s[1+n:]
		case strings.IndexByte("abfnrtvxuU\\", c) >= 0:
			value, _, tail, err := strconv.UnquoteChar(s, 0)
			if err != nil {
				return "", fmt.Errorf("malformed escape sequence near %q", truncate(s, 10))
			}
			b.WriteRune(value)
			s = tail
		default:
			b.WriteString(s[:2])
			s = s[2:]
		}
	}

	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
