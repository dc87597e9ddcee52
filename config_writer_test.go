// config_writer_test.go: Encoding parsed data back to every format
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		content string
	}{
		{"json", FormatJSON, `{"name": "demo", "count": 3, "ratio": 1.5, "tags": ["a", 2], "nested": {"none": null, "ok": true}}`},
		{"yaml", FormatYAML, "name: demo\ncount: 3\ntags:\n  - a\n  - 2\nnested:\n  enabled: true\n  ratio: 0.25\n"},
		{"ini", FormatINI, "[DEFAULT]\nregion = eu\n[server]\nhost = localhost\nload = 50%%\nempty =\n[client]\nretries = 3\n"},
		{"env", FormatEnv, "A=1\nMULTI=line\\nbreak\nTAB=a\\tb\nTRAIL=space\\x20\nBS=back\\\\slash\nQUOTE=\"q\"\nUNI=\\u00a0x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := Parse([]byte(tt.content), tt.format)
			if err != nil {
				t.Fatalf("initial Parse failed: %v", err)
			}

			encoded, err := Encode(first, tt.format)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			second, err := Parse(encoded, tt.format)
			if err != nil {
				t.Fatalf("Parse of encoded output failed: %v\n%s", err, encoded)
			}
			if !reflect.DeepEqual(first, second) {
				t.Errorf("round trip mismatch:\nfirst:  %#v\nsecond: %#v\nencoded:\n%s", first, second, encoded)
			}
		})
	}
}

func TestEncodeEnvIsSorted(t *testing.T) {
	encoded, err := Encode(map[string]interface{}{"B": "2", "A": "1"}, FormatEnv)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(encoded) != "A=1\nB=2\n" {
		t.Errorf("Encode = %q", encoded)
	}
}

func TestEncodeRejectsUnrepresentableValues(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   map[string]interface{}
	}{
		{"ini_scalar_top_level", FormatINI, map[string]interface{}{"key": "value"}},
		{"ini_nested_option", FormatINI, map[string]interface{}{"s": map[string]interface{}{"k": []interface{}{1}}}},
		{"ini_default_section", FormatINI, map[string]interface{}{"DEFAULT": map[string]interface{}{"k": "v"}}},
		{"ini_multiline_value", FormatINI, map[string]interface{}{"s": map[string]interface{}{"k": "a\nb"}}},
		{"ini_padded_value", FormatINI, map[string]interface{}{"s": map[string]interface{}{"k": " v"}}},
		{"ini_delimiter_in_key", FormatINI, map[string]interface{}{"s": map[string]interface{}{"a=b": "v"}}},
		{"ini_comment_key", FormatINI, map[string]interface{}{"s": map[string]interface{}{"#k": "v"}}},
		{"ini_bracket_section", FormatINI, map[string]interface{}{"a]b": map[string]interface{}{}}},
		{"env_nested", FormatEnv, map[string]interface{}{"A": map[string]interface{}{}}},
		{"env_equals_in_key", FormatEnv, map[string]interface{}{"A=B": "v"}},
		{"env_empty_key", FormatEnv, map[string]interface{}{"": "v"}},
		{"env_padded_key", FormatEnv, map[string]interface{}{" A": "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.data, tt.format); ErrorCode(err) != ErrCodeUnsupportedValue {
				t.Errorf("expected %s, got %v", ErrCodeUnsupportedValue, err)
			}
		})
	}
}

func TestEncodeWithoutFormat(t *testing.T) {
	if _, err := Encode(map[string]interface{}{}, FormatNone); ErrorCode(err) != ErrCodeInvalidFormat {
		t.Errorf("expected %s, got %v", ErrCodeInvalidFormat, err)
	}
}

func TestEncodeYAMLKeepsNumbers(t *testing.T) {
	data, err := Parse([]byte(`{"port": 8080, "ratio": 0.5}`), FormatJSON)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	encoded, err := Encode(data, FormatYAML)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(encoded), "port: 8080") || strings.Contains(string(encoded), `"8080"`) {
		t.Errorf("numbers should stay numeric:\n%s", encoded)
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "values.json")
	if err := os.WriteFile(input, []byte(`{"server": {"host": "localhost", "port": 80}}`), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	tests := []struct {
		output string
		to     string
		want   Format
	}{
		{"values.yaml", "", FormatYAML},
		{"values.ini", "", FormatINI},
		{"values.out", "json", FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			output := filepath.Join(dir, tt.output)
			source, target, err := ConvertFile(input, output, "", tt.to)
			if err != nil {
				t.Fatalf("ConvertFile failed: %v", err)
			}
			if source != FormatJSON || target != tt.want {
				t.Errorf("formats = %s -> %s", source, target)
			}

			converted, err := ParseFile(output, tt.want.String())
			if err != nil {
				t.Fatalf("ParseFile of output failed: %v", err)
			}
			server, ok := converted["server"].(map[string]interface{})
			if !ok || server["host"] != "localhost" {
				t.Errorf("converted data = %v", converted)
			}
		})
	}
}

func TestConvertFileErrors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "values.env")
	if err := os.WriteFile(input, []byte("A=1\n"), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, _, err := ConvertFile(input, filepath.Join(dir, "out.txt"), "", ""); ErrorCode(err) != ErrCodeInvalidFormat {
		t.Errorf("expected %s for an unknown output extension, got %v", ErrCodeInvalidFormat, err)
	}
	if _, _, err := ConvertFile(input, filepath.Join(dir, "out.ini"), "", ""); ErrorCode(err) != ErrCodeUnsupportedValue {
		t.Errorf("expected %s for flat data as ini, got %v", ErrCodeUnsupportedValue, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.ini")); !os.IsNotExist(err) {
		t.Error("a failed conversion must not create the output")
	}
}
