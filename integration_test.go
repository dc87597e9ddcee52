// integration_test.go: Action flags and the single-shot render run
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestActionFlagsDefaults(t *testing.T) {
	af, err := NewActionFlags("action", "test", nil)
	if err != nil {
		t.Fatalf("NewActionFlags failed: %v", err)
	}

	config, err := af.Parse([]string{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if config.KeepTemplate || config.BasePath != "." || config.Undefined != "Undefined" || config.LogLevel != DefaultLogLevel {
		t.Errorf("unexpected defaults: %+v", config)
	}
	if len(config.Contexts) != 0 {
		t.Errorf("contexts = %v", config.Contexts)
	}
}

func TestActionFlagsFromArgs(t *testing.T) {
	af, err := NewActionFlags("action", "test", nil)
	if err != nil {
		t.Fatalf("NewActionFlags failed: %v", err)
	}

	config, err := af.Parse([]string{
		"--keep_template",
		"--var_file", "vars.env",
		"--context", "github.json,steps.json",
		"--data_file", "values.yaml",
		"--data_format", "yaml",
		"--undefined_behaviour", "StrictUndefined",
		"--basepath", "templates",
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if !config.KeepTemplate || config.VarFile != "vars.env" || config.DataFile != "values.yaml" || config.DataFormat != "yaml" {
		t.Errorf("unexpected config: %+v", config)
	}
	if config.Undefined != "StrictUndefined" || config.BasePath != "templates" {
		t.Errorf("unexpected config: %+v", config)
	}
	if !reflect.DeepEqual(config.Contexts, []string{"github.json", "steps.json"}) {
		t.Errorf("contexts = %v", config.Contexts)
	}
}

func TestActionFlagsFromEnvironment(t *testing.T) {
	env := map[string]string{
		"INPUT_KEEP_TEMPLATE":       "true",
		"INPUT_CONTEXT":             "github.json\nrunner.json",
		"INPUT_DATA_URL":            "https://example.com/values.json",
		"INPUT_UNDEFINED_BEHAVIOUR": "DebugUndefined",
		"INPUT_BASEPATH":            "  ",
	}

	af, err := NewActionFlags("action", "test", env)
	if err != nil {
		t.Fatalf("NewActionFlags failed: %v", err)
	}
	if got := af.EnvKey(FlagDataURLFormat); got != "INPUT_DATA_URL_FORMAT" {
		t.Errorf("EnvKey = %s", got)
	}

	config, err := af.Parse([]string{"--undefined_behaviour", "StrictUndefined"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if !config.KeepTemplate || config.DataURL != "https://example.com/values.json" {
		t.Errorf("environment inputs ignored: %+v", config)
	}
	if config.Undefined != "StrictUndefined" {
		t.Errorf("explicit flags must win, got %q", config.Undefined)
	}
	if config.BasePath != "." {
		t.Errorf("blank inputs fall back to the default, got %q", config.BasePath)
	}
	if !reflect.DeepEqual(config.Contexts, []string{"github.json", "runner.json"}) {
		t.Errorf("contexts = %v", config.Contexts)
	}
}

func TestActionFlagsRejectInvalidInputs(t *testing.T) {
	if _, err := NewActionFlags("action", "test", map[string]string{"INPUT_KEEP_TEMPLATE": "sure"}); ErrorCode(err) != ErrCodeInvalidConfig {
		t.Errorf("expected %s for a bad boolean input, got %v", ErrCodeInvalidConfig, err)
	}

	tests := map[string]struct {
		args []string
		code string
	}{
		"data_format":  {[]string{"--data_format", "xml"}, ErrCodeInvalidFormat},
		"url_format":   {[]string{"--data_url_format", "csv"}, ErrCodeInvalidFormat},
		"undefined":    {[]string{"--undefined_behaviour", "Loose"}, ErrCodeInvalidUndefined},
		"url_scheme":   {[]string{"--data_url", "ftp://example.com/x"}, ErrCodeInvalidURL},
		"unknown_flag": {[]string{"--no_such_flag", "x"}, ErrCodeInvalidConfig},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			af, err := NewActionFlags("action", "test", nil)
			if err != nil {
				t.Fatalf("NewActionFlags failed: %v", err)
			}
			if _, err := af.Parse(tt.args); ErrorCode(err) != tt.code {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestActionConfigRun(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		return path
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"source": "url", "region": "eu-west-1"}`))
	}))
	defer server.Close()

	vars := write("inputs/vars.env", "source=vars\nowner=platform\n")
	github := write("inputs/github.json", `{"event-name": "push"}`)
	data := write("inputs/values.ini", "[db]\nhost = db.internal\n")
	write("site/app.conf.j2", "{{.source}} {{.owner}} {{.github.event_name}} {{.db.host}} {{.region}} {{.env.CI}}")

	action := &ActionConfig{
		VarFile:  vars,
		Contexts: []string{github},
		DataFile: data,
		DataURL:  server.URL,
		BasePath: filepath.Join(dir, "site"),
	}
	if err := action.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	outputs, err := action.Run(context.Background(), ActionRun{
		Env:    map[string]string{"CI": "true"},
		Remote: fastRemote(),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("outputs = %v", outputs)
	}

	content, err := os.ReadFile(filepath.Join(dir, "site", "app.conf"))
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if want := "url platform push db.internal eu-west-1 true"; string(content) != want {
		t.Errorf("output = %q, want %q", content, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "site", "app.conf.j2")); !os.IsNotExist(err) {
		t.Error("template should be removed")
	}
}

func TestActionConfigRunStopsOnLoadFailure(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "a.txt.j2")
	if err := os.WriteFile(template, []byte("x"), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	action := &ActionConfig{
		VarFile:  filepath.Join(dir, "missing.env"),
		BasePath: dir,
	}
	if _, err := action.Run(context.Background(), ActionRun{}); ErrorCode(err) != ErrCodeIOError {
		t.Fatalf("expected %s, got %v", ErrCodeIOError, err)
	}
	if _, err := os.Stat(template); err != nil {
		t.Error("no template may be touched when loading fails")
	}
}
