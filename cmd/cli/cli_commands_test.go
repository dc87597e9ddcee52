// cli_commands_test.go: Diagnostics commands
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/agilira/morpheus"
)

func TestInfoCommand(t *testing.T) {
	fixture := NewCLITestFixture(t)

	output, err := fixture.RunCLI("info")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	for _, want := range []string{"Version: " + Version, "ini", "yaml", ".j2"} {
		if !strings.Contains(output, want) {
			t.Errorf("info output should contain %q:\n%s", want, output)
		}
	}

	output, err = fixture.RunCLI("info", "--verbose")
	if err != nil {
		t.Fatalf("info --verbose failed: %v", err)
	}
	if !strings.Contains(output, "Effective settings") || !strings.Contains(output, "undefined: Undefined") {
		t.Errorf("verbose info output missing settings:\n%s", output)
	}
}

func TestInfoCommandHonorsEnvironment(t *testing.T) {
	fixture := NewCLITestFixture(t)
	fixture.manager.WithEnvironment(map[string]string{morpheus.EnvUndefined: "StrictUndefined"})

	output, err := fixture.RunCLI("info", "--verbose")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if !strings.Contains(output, "undefined: StrictUndefined") {
		t.Errorf("expected the environment setting to show:\n%s", output)
	}
}

func TestCompletionCommand(t *testing.T) {
	fixture := NewCLITestFixture(t)

	for _, shell := range []string{"bash", "zsh", "fish"} {
		t.Run(shell, func(t *testing.T) {
			output, err := fixture.RunCLI("completion", shell)
			if err != nil {
				t.Fatalf("completion %s failed: %v", shell, err)
			}
			if !strings.Contains(output, "morpheus") || !strings.Contains(output, "render") {
				t.Errorf("unexpected completion script:\n%s", output)
			}
		})
	}

	if _, err := fixture.RunCLI("completion", "powershell"); err == nil {
		t.Error("expected an error for an unsupported shell")
	}
	if _, err := fixture.RunCLI("completion"); err == nil {
		t.Error("expected an error without a shell")
	}
}

func TestAuditStatsCommand(t *testing.T) {
	fixture := NewCLITestFixture(t)

	for _, name := range []string{"trail.jsonl", "trail.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(fixture.tempDir, name)

			logger, err := morpheus.NewAuditLogger(morpheus.AuditConfig{
				Enabled:    true,
				OutputFile: path,
				MinLevel:   morpheus.AuditInfo,
				BufferSize: 10,
			})
			if err != nil {
				t.Fatalf("NewAuditLogger failed: %v", err)
			}
			logger.LogTemplateRendered("a.txt.j2", "a.txt")
			logger.LogTemplateRendered("b.txt.j2", "b.txt")
			logger.LogTemplateRemoved("a.txt.j2")
			if err := logger.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			output, err := fixture.RunCLI("audit", "stats", "--output", path)
			if err != nil {
				t.Fatalf("audit stats failed: %v", err)
			}
			for _, want := range []string{"Total events: 3", "template_rendered", "template_removed"} {
				if !strings.Contains(output, want) {
					t.Errorf("audit stats output should contain %q:\n%s", want, output)
				}
			}
		})
	}

	t.Run("missing_trail", func(t *testing.T) {
		if _, err := fixture.RunCLI("audit", "stats", "--output", filepath.Join(fixture.tempDir, "none.db")); err == nil {
			t.Error("expected an error for a missing audit trail")
		}
	})
}
