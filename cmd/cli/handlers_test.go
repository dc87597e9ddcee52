package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agilira/morpheus"
	"github.com/rs/zerolog"
)

// syncBuffer guards a buffer shared with the watch goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForContent(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if content, err := os.ReadFile(path); err == nil && string(content) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	content, _ := os.ReadFile(path)
	t.Fatalf("timed out waiting for %s to contain %q, last content %q", path, want, content)
}

func TestWatchLoopRerendersOnDataChange(t *testing.T) {
	tempDir := t.TempDir()
	siteDir := filepath.Join(tempDir, "site")
	if err := os.MkdirAll(siteDir, 0755); err != nil {
		t.Fatal(err)
	}
	templatePath := filepath.Join(siteDir, "version.txt.j2")
	if err := os.WriteFile(templatePath, []byte("v={{ .version }}"), 0644); err != nil {
		t.Fatal(err)
	}
	dataPath := filepath.Join(tempDir, "data.env")
	if err := os.WriteFile(dataPath, []byte("version=1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out := &syncBuffer{}
	manager := NewManager().WithOutput(out).WithEnvironment(map[string]string{})

	action := &morpheus.ActionConfig{
		BasePath:     siteDir,
		DataFile:     dataPath,
		KeepTemplate: true,
	}
	run := morpheus.ActionRun{Env: map[string]string{}, Logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- manager.watchLoop(ctx, action, run, 20*time.Millisecond, false)
	}()

	outputPath := filepath.Join(siteDir, "version.txt")
	waitForContent(t, outputPath, "v=1")
	// let the loop take its first snapshot
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(dataPath, []byte("version=2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// Move the modification time forward so coarse filesystem clocks see it.
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(dataPath, future, future); err != nil {
		t.Fatal(err)
	}
	waitForContent(t, outputPath, "v=2")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watchLoop returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watchLoop did not stop after cancellation")
	}

	if _, err := os.Stat(templatePath); err != nil {
		t.Errorf("template should be kept while watching: %v", err)
	}
	if !strings.Contains(out.String(), "changed: "+dataPath) {
		t.Errorf("expected a change report, got:\n%s", out.String())
	}
}

func TestWatchRejectsInvalidInterval(t *testing.T) {
	fixture := NewCLITestFixture(t)
	fixture.CreateFile("site/a.j2", "x")

	if _, err := fixture.RunCLI("watch", filepath.Join(fixture.tempDir, "site"), "--interval", "soon"); err == nil {
		t.Error("expected an error for an invalid interval")
	}
}

func TestWatchedPaths(t *testing.T) {
	tempDir := t.TempDir()
	templatePath := filepath.Join(tempDir, "a.conf.j2")
	if err := os.WriteFile(templatePath, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	scanner, err := morpheus.NewRenderer(morpheus.RenderOptions{BasePath: tempDir})
	if err != nil {
		t.Fatal(err)
	}
	action := &morpheus.ActionConfig{
		VarFile:  "vars.env",
		Contexts: []string{"github.json"},
		DataFile: "data.yaml",
	}

	got := watchedPaths(action, scanner)
	want := []string{"vars.env", "github.json", "data.yaml", templatePath}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("watchedPaths = %v, want %v", got, want)
	}
}

func TestSplitFlagList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"a.json", []string{"a.json"}},
		{" a.json , ,b.json ", []string{"a.json", "b.json"}},
	}

	for _, tt := range tests {
		if got := splitFlagList(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitFlagList(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/data.json": true,
		"HTTP://example.com":            true,
		"data.json":                     false,
		"ftp://example.com/data":        false,
	}
	for input, want := range tests {
		if got := isURL(input); got != want {
			t.Errorf("isURL(%q) = %v, want %v", input, got, want)
		}
	}
}
