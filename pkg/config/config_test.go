package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies the built-in defaults stand on their own
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Defaults.Executable != "claude" {
		t.Errorf("Expected default executable 'claude', got %q", cfg.Defaults.Executable)
	}
	if cfg.Defaults.TimeoutSeconds != 300 {
		t.Errorf("Expected default timeout 300s, got %d", cfg.Defaults.TimeoutSeconds)
	}
	if !cfg.Alerts.Console {
		t.Error("Expected console alerts enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got: %v", err)
	}
}

// TestLoadConfig_MissingFile verifies defaults apply when no file exists
func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Missing config file should not fail, got: %v", err)
	}
	if cfg.Defaults.Executable != "claude" {
		t.Errorf("Expected defaults, got %q", cfg.Defaults.Executable)
	}
}

// TestLoadConfig_FileOverridesDefaults verifies YAML layering
func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
workspace: /tmp/claw-test
defaults:
  executable: gemini
  model: gemini-2.0-flash
  timeout_seconds: 60
jobs:
  - name: daily-report
    templates: [base.md, report.md]
    schedule: "0 9 * * *"
    timeout_seconds: 120
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Defaults.Executable != "gemini" {
		t.Errorf("Expected executable override, got %q", cfg.Defaults.Executable)
	}
	if cfg.Alerts.Console != true {
		t.Error("Expected unset alert settings to keep defaults")
	}

	job, ok := cfg.Job("daily-report")
	if !ok {
		t.Fatal("Expected to find job daily-report")
	}
	if cfg.Timeout(job) != 120*time.Second {
		t.Errorf("Expected job timeout 120s, got %v", cfg.Timeout(job))
	}
	if cfg.Timeout(nil) != 60*time.Second {
		t.Errorf("Expected global timeout 60s, got %v", cfg.Timeout(nil))
	}
}

// TestLoadConfig_EnvOverridesFile verifies environment variables win over
// the file
func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("defaults:\n  model: from-file\n"), 0644)

	t.Setenv("CLAWCRON_MODEL", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Defaults.Model != "from-env" {
		t.Errorf("Expected env override, got %q", cfg.Defaults.Model)
	}
}

// TestValidate_RejectsBadCron verifies cron expressions are checked up front
func TestValidate_RejectsBadCron(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jobs = []JobConfig{{Name: "j", Templates: []string{"t.md"}, Schedule: "not a cron"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error for bad cron expression")
	}
	if !strings.Contains(err.Error(), "cron") {
		t.Errorf("Expected cron mention, got: %v", err)
	}
}

// TestValidate_RejectsDuplicateNames verifies job names are unique
func TestValidate_RejectsDuplicateNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jobs = []JobConfig{
		{Name: "same", Templates: []string{"t.md"}},
		{Name: "same", Templates: []string{"t.md"}},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for duplicate names")
	}
}

// TestValidate_RejectsScheduleConflict verifies schedule and every_seconds
// do not combine
func TestValidate_RejectsScheduleConflict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jobs = []JobConfig{{
		Name:         "j",
		Templates:    []string{"t.md"},
		Schedule:     "* * * * *",
		EverySeconds: 30,
	}}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for conflicting schedule settings")
	}
}

// TestValidate_RequiresTemplates verifies a job needs at least one template
func TestValidate_RequiresTemplates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jobs = []JobConfig{{Name: "j"}}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for missing templates")
	}
}
