// formats_test.go: Format tokens and hints
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import "testing"

func TestParseFormat(t *testing.T) {
	tests := []struct {
		token   string
		want    Format
		wantErr bool
	}{
		{"", FormatNone, false},
		{"ini", FormatINI, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"env", FormatEnv, false},
		{"YAML", FormatNone, true},
		{"toml", FormatNone, true},
		{" json", FormatNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.token, got, tt.want)
			}
			if err != nil && ErrorCode(err) != ErrCodeInvalidFormat {
				t.Errorf("expected %s, got %s", ErrCodeInvalidFormat, ErrorCode(err))
			}
		})
	}
}

func TestFormatFromExtension(t *testing.T) {
	tests := map[string]Format{
		"settings.ini":       FormatINI,
		"data.JSON":          FormatJSON,
		"values.yml":         FormatYAML,
		"dir.d/values.yaml":  FormatYAML,
		".env":               FormatEnv,
		"variables.env":      FormatEnv,
		"README":             FormatNone,
		"config.toml":        FormatNone,
		"archive.tar.gz":     FormatNone,
		"/abs/path/app.conf": FormatNone,
	}

	for path, want := range tests {
		if got := FormatFromExtension(path); got != want {
			t.Errorf("FormatFromExtension(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestFormatFromContentType(t *testing.T) {
	tests := map[string]Format{
		"application/json":                FormatJSON,
		"application/json; charset=utf-8": FormatJSON,
		"text/json":                       FormatJSON,
		"Application/X-YAML":              FormatYAML,
		"text/yaml; charset=utf-8":        FormatYAML,
		"text/plain":                      FormatNone,
		"":                                FormatNone,
		"text/x-ini":                      FormatNone,
	}

	for header, want := range tests {
		if got := FormatFromContentType(header); got != want {
			t.Errorf("FormatFromContentType(%q) = %v, want %v", header, got, want)
		}
	}
}

func TestFormatString(t *testing.T) {
	tests := map[Format]string{
		FormatNone: "none",
		FormatINI:  "ini",
		FormatJSON: "json",
		FormatEnv:  "env",
		FormatYAML: "yaml",
	}
	for format, want := range tests {
		if got := format.String(); got != want {
			t.Errorf("Format(%d).String() = %q, want %q", int(format), got, want)
		}
	}
}
