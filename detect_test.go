// detect_test.go: Format detection order and error propagation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"strings"
	"testing"

	"github.com/agilira/go-errors"
)

func TestDetectAndParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantKey string
	}{
		{"ini", "[server]\nport = 80\n", FormatINI, "server"},
		{"json", `{"name": "demo"}`, FormatJSON, "name"},
		{"env", "NAME=demo\n", FormatEnv, "NAME"},
		{"yaml", "name: demo\nitems:\n  - a\n", FormatYAML, "name"},
		{"json_before_yaml", `{"flow": true}`, FormatJSON, "flow"},
		{"env_before_yaml", "key=value\n", FormatEnv, "key"},
		{"yaml_duplicate_keys", "key: 1\nkey: 2\n", FormatYAML, "key"},
		{"ini_header_trailing_comment", "[a] ; note\nk = v\n", FormatINI, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, result, err := DetectAndParse([]byte(tt.input))
			if err != nil {
				t.Fatalf("DetectAndParse failed: %v", err)
			}
			if format != tt.want {
				t.Errorf("format = %s, want %s", format, tt.want)
			}
			if _, ok := result[tt.wantKey]; !ok {
				t.Errorf("key %q missing from %v", tt.wantKey, result)
			}
		})
	}
}

func TestDetectAndParseEmptyIsINI(t *testing.T) {
	format, result, err := DetectAndParse(nil)
	if err != nil {
		t.Fatalf("DetectAndParse failed: %v", err)
	}
	if format != FormatINI || len(result) != 0 {
		t.Errorf("got %s %v, want ini with no keys", format, result)
	}
}

func TestDetectAndParseUnrecognized(t *testing.T) {
	inputs := map[string]string{
		"nested_colons": "asd : fgh : ghj",
		"sequence":      "- a\n- b\n",
		"scalar_line":   "just some words\n",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, _, err := DetectAndParse([]byte(input))
			if ErrorCode(err) != ErrCodeUnrecognizedFormat {
				t.Fatalf("expected %s, got %v", ErrCodeUnrecognizedFormat, err)
			}
			if !strings.Contains(err.Error(), "ini, json, env, yaml") {
				t.Errorf("error should list the attempted formats in order: %v", err)
			}
		})
	}
}

func TestDetectWithStopsOnForeignError(t *testing.T) {
	called := false
	candidates := []detectionCandidate{
		{FormatINI, parseINI},
		{FormatJSON, func([]byte) (map[string]interface{}, error) {
			return nil, errors.New(ErrCodeIOError, "decoder exploded")
		}},
		{FormatEnv, func([]byte) (map[string]interface{}, error) {
			called = true
			return map[string]interface{}{}, nil
		}},
	}

	_, _, err := detectWith([]byte("A=1"), candidates)
	if ErrorCode(err) != ErrCodeIOError {
		t.Fatalf("expected the foreign error to propagate, got %v", err)
	}
	if called {
		t.Error("detection continued after a non-syntax error")
	}
}

func TestParseWithHintIsAuthoritative(t *testing.T) {
	// Valid env content, declared as JSON: no fallback to detection.
	_, _, err := parseWithHint([]byte("A=1\n"), FormatJSON)
	if ErrorCode(err) != ErrCodeSyntax {
		t.Fatalf("expected %s, got %v", ErrCodeSyntax, err)
	}

	format, result, err := parseWithHint([]byte("A=1\n"), FormatNone)
	if err != nil {
		t.Fatalf("parseWithHint without hint failed: %v", err)
	}
	if format != FormatEnv || result["A"] != "1" {
		t.Errorf("got %s %v", format, result)
	}
}
