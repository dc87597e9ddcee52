// render_test.go: Template rendering, output paths and template discovery
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestRenderer(t *testing.T, opts RenderOptions, rendererOpts ...RendererOption) *Renderer {
	t.Helper()
	r, err := NewRenderer(opts, rendererOpts...)
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	return r
}

func TestParseUndefinedBehaviour(t *testing.T) {
	tests := []struct {
		input   string
		want    UndefinedBehaviour
		wantErr bool
	}{
		{"", Undefined, false},
		{"Undefined", Undefined, false},
		{"ChainableUndefined", ChainableUndefined, false},
		{"DebugUndefined", DebugUndefined, false},
		{"StrictUndefined", StrictUndefined, false},
		{"strictundefined", "", true},
		{"Lenient", "", true},
	}

	for _, tt := range tests {
		got, err := ParseUndefinedBehaviour(tt.input)
		if tt.wantErr {
			if ErrorCode(err) != ErrCodeInvalidUndefined {
				t.Errorf("ParseUndefinedBehaviour(%q): expected %s, got %v", tt.input, ErrCodeInvalidUndefined, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseUndefinedBehaviour(%q) = %q, %v", tt.input, got, err)
		}
	}
}

func TestRenderStringUndefinedBehaviours(t *testing.T) {
	data := map[string]interface{}{"name": "demo"}
	tmpl := "{{.name}}:{{.missing}}"

	tests := []struct {
		undefined string
		want      string
		wantErr   bool
	}{
		{"Undefined", "demo:", false},
		{"ChainableUndefined", "demo:", false},
		{"DebugUndefined", "demo:<no value>", false},
		{"StrictUndefined", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.undefined, func(t *testing.T) {
			r := newTestRenderer(t, RenderOptions{Undefined: tt.undefined})
			got, err := r.RenderString("inline", tmpl, data)
			if tt.wantErr {
				if ErrorCode(err) != ErrCodeTemplateError {
					t.Fatalf("expected %s, got %v", ErrCodeTemplateError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("RenderString failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderStringUndefinedKeepsData(t *testing.T) {
	data := map[string]interface{}{
		"msg":   "<no value>",
		"items": []interface{}{"a", "b"},
		"nested": map[string]interface{}{
			"present": "yes",
		},
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"data_value", "[{{ .msg }}]", "[<no value>]"},
		{"template_literal", "<no value>|{{ .missing }}", "<no value>|"},
		{"nested_missing", "{{ .nested.present }}/{{ .nested.absent }}", "yes/"},
		{"inside_range", "{{ range .items }}{{ . }}{{ $.missing }};{{ end }}", "a;b;"},
		{"inside_if_else", "{{ if .missing }}x{{ else }}[{{ .missing }}]{{ end }}", "[]"},
		{"inside_with", "{{ with .nested }}{{ .present }}{{ .absent }}{{ end }}", "yes"},
		{"assignment", "{{ $v := .missing }}[{{ $v }}]", "[]"},
		{"defined_template", `{{ define "part" }}<{{ .missing }}>{{ end }}{{ template "part" . }}`, "<>"},
		{"function_result", "{{ b64encode .msg }}", "PG5vIHZhbHVlPg=="},
	}

	for _, undefined := range []string{"Undefined", "ChainableUndefined"} {
		r := newTestRenderer(t, RenderOptions{Undefined: undefined})
		for _, tt := range tests {
			t.Run(undefined+"/"+tt.name, func(t *testing.T) {
				got, err := r.RenderString("inline", tt.tmpl, data)
				if err != nil {
					t.Fatalf("RenderString failed: %v", err)
				}
				if got != tt.want {
					t.Errorf("RenderString(%q) = %q, want %q", tt.tmpl, got, tt.want)
				}
			})
		}
	}
}

func TestRenderStringFunctions(t *testing.T) {
	r := newTestRenderer(t, RenderOptions{}, WithEnvironment(map[string]string{"TOKEN": "s3cret"}))
	data := map[string]interface{}{
		"env":  map[string]interface{}{"HOME": "/home/ci"},
		"user": "admin",
	}

	got, err := r.RenderString("inline", `{{environ "TOKEN"}} {{.env.HOME}} {{b64encode .user}}`, data)
	if err != nil {
		t.Fatalf("RenderString failed: %v", err)
	}
	if want := "s3cret /home/ci YWRtaW4="; got != want {
		t.Errorf("RenderString = %q, want %q", got, want)
	}
}

func TestRenderStringSyntaxError(t *testing.T) {
	r := newTestRenderer(t, RenderOptions{})
	if _, err := r.RenderString("broken", "{{.name", nil); ErrorCode(err) != ErrCodeTemplateError {
		t.Errorf("expected %s, got %v", ErrCodeTemplateError, err)
	}
}

func TestNewRendererValidation(t *testing.T) {
	if _, err := NewRenderer(RenderOptions{Undefined: "Nope"}); ErrorCode(err) != ErrCodeInvalidUndefined {
		t.Errorf("expected %s, got %v", ErrCodeInvalidUndefined, err)
	}
	if _, err := NewRenderer(RenderOptions{Extensions: []string{".j2", ""}}); ErrorCode(err) != ErrCodeInvalidConfig {
		t.Errorf("expected %s, got %v", ErrCodeInvalidConfig, err)
	}

	r := newTestRenderer(t, RenderOptions{})
	opts := r.Options()
	if opts.BasePath != "." || !reflect.DeepEqual(opts.Extensions, []string{".j2"}) || opts.Undefined != "Undefined" {
		t.Errorf("unexpected defaults: %+v", opts)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"config.yaml.j2", "config.yaml", false},
		{"dir/app.conf.tmpl", "dir/app.conf", false},
		{"Dockerfile.j2", "Dockerfile", false},
		{"noext", "", true},
		{".j2", "", true},
	}

	for _, tt := range tests {
		got, err := OutputPath(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("OutputPath(%q) should fail", tt.input)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("OutputPath(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "run.sh.j2")
	if err := os.WriteFile(templatePath, []byte("echo {{.name}}\n"), 0750); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	r := newTestRenderer(t, RenderOptions{BasePath: dir})
	output, err := r.RenderFile(templatePath, map[string]interface{}{"name": "demo"})
	if err != nil {
		t.Fatalf("RenderFile failed: %v", err)
	}

	if output != filepath.Join(dir, "run.sh") {
		t.Errorf("output = %s", output)
	}
	content, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(content) != "echo demo\n" {
		t.Errorf("content = %q", content)
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0750 {
		t.Errorf("mode = %v, want 0750", info.Mode().Perm())
	}

	if _, err := os.Stat(templatePath); !os.IsNotExist(err) {
		t.Error("template should be removed after rendering")
	}
}

func TestRenderFileKeepTemplate(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "a.txt.j2")
	if err := os.WriteFile(templatePath, []byte("x"), 0600); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	r := newTestRenderer(t, RenderOptions{BasePath: dir, KeepTemplate: true})
	if _, err := r.RenderFile(templatePath, nil); err != nil {
		t.Fatalf("RenderFile failed: %v", err)
	}
	if _, err := os.Stat(templatePath); err != nil {
		t.Errorf("template should be kept: %v", err)
	}
}

func TestRenderFileFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "strict.txt.j2")
	if err := os.WriteFile(templatePath, []byte("{{.missing}}"), 0600); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	r := newTestRenderer(t, RenderOptions{BasePath: dir, Undefined: "StrictUndefined"})
	if _, err := r.RenderFile(templatePath, map[string]interface{}{}); ErrorCode(err) != ErrCodeTemplateError {
		t.Fatalf("expected %s, got %v", ErrCodeTemplateError, err)
	}

	if _, err := os.Stat(filepath.Join(dir, "strict.txt")); !os.IsNotExist(err) {
		t.Error("no output should be written on failure")
	}
	if _, err := os.Stat(templatePath); err != nil {
		t.Error("the template must survive a failed render")
	}
}

func TestRenderFileMissingTemplate(t *testing.T) {
	r := newTestRenderer(t, RenderOptions{})
	if _, err := r.RenderFile(filepath.Join(t.TempDir(), "gone.j2"), nil); ErrorCode(err) != ErrCodeFileNotFound {
		t.Errorf("expected %s, got %v", ErrCodeFileNotFound, err)
	}
}

func TestFindTemplates(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"b.conf.j2",
		"a.yaml.j2",
		"nested/c.txt.j2",
		"nested/plain.txt",
		"other.tmpl",
		".j2",
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	r := newTestRenderer(t, RenderOptions{BasePath: dir})
	got, err := r.FindTemplates()
	if err != nil {
		t.Fatalf("FindTemplates failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.yaml.j2"),
		filepath.Join(dir, "b.conf.j2"),
		filepath.Join(dir, "nested", "c.txt.j2"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindTemplates = %v, want %v", got, want)
	}

	multi := newTestRenderer(t, RenderOptions{BasePath: dir, Extensions: []string{".tmpl", ".j2"}})
	got, err = multi.FindTemplates()
	if err != nil {
		t.Fatalf("FindTemplates failed: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("expected 4 templates with two extensions, got %v", got)
	}
}

func TestFindTemplatesMissingBasePath(t *testing.T) {
	r := newTestRenderer(t, RenderOptions{BasePath: filepath.Join(t.TempDir(), "absent")})
	if _, err := r.FindTemplates(); ErrorCode(err) != ErrCodeIOError {
		t.Errorf("expected %s, got %v", ErrCodeIOError, err)
	}
}

func TestRenderAll(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"one.txt.j2":     "1={{.v}}",
		"sub/two.txt.j2": "2={{.v}}",
	} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	r := newTestRenderer(t, RenderOptions{BasePath: dir})
	outputs, err := r.RenderAll(map[string]interface{}{"v": "x"})
	if err != nil {
		t.Fatalf("RenderAll failed: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %v", outputs)
	}

	for _, check := range []struct{ path, want string }{
		{filepath.Join(dir, "one.txt"), "1=x"},
		{filepath.Join(dir, "sub", "two.txt"), "2=x"},
	} {
		content, err := os.ReadFile(check.path)
		if err != nil {
			t.Fatalf("failed to read %s: %v", check.path, err)
		}
		if string(content) != check.want {
			t.Errorf("%s = %q, want %q", check.path, content, check.want)
		}
	}

	// A second pass finds nothing: templates are gone and outputs are not templates.
	outputs, err = r.RenderAll(map[string]interface{}{"v": "y"})
	if err != nil || len(outputs) != 0 {
		t.Errorf("second pass = %v, %v", outputs, err)
	}
}
