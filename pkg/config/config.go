// Package config loads and validates the clawcron configuration: global
// defaults for the AI tool invocation, the job list, and alert settings.
// Precedence is built-in defaults < config file < CLAWCRON_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// Workspace holds templates, memory, runs and logs.
	Workspace string       `yaml:"workspace" env:"CLAWCRON_WORKSPACE"`
	LogLevel  string       `yaml:"log_level" env:"CLAWCRON_LOG_LEVEL"`
	Defaults  Defaults     `yaml:"defaults"`
	Alerts    AlertsConfig `yaml:"alerts"`
	Jobs      []JobConfig  `yaml:"jobs"`
}

// Defaults apply to every job unless the job overrides them.
type Defaults struct {
	Executable     string            `yaml:"executable" env:"CLAWCRON_EXECUTABLE"`
	Model          string            `yaml:"model" env:"CLAWCRON_MODEL"`
	TimeoutSeconds int               `yaml:"timeout_seconds" env:"CLAWCRON_TIMEOUT_SECONDS"`
	WorkingDir     string            `yaml:"working_dir"`
	Env            map[string]string `yaml:"env"`
}

// AlertsConfig selects notification sinks.
type AlertsConfig struct {
	Console         bool   `yaml:"console"`
	SlackWebhookURL string `yaml:"slack_webhook_url" env:"CLAWCRON_SLACK_WEBHOOK_URL"`
}

// JobConfig describes one named job.
type JobConfig struct {
	Name string `yaml:"name"`
	// Templates are file names under <workspace>/templates, concatenated in
	// order into the prompt.
	Templates    []string `yaml:"templates"`
	Instructions string   `yaml:"instructions"`
	// Schedule is a cron expression (5-field). Mutually exclusive with
	// EverySeconds; a job with neither only runs on demand.
	Schedule     string `yaml:"schedule"`
	EverySeconds int    `yaml:"every_seconds"`
	// Per-job overrides; zero values fall through to Defaults.
	Executable     string            `yaml:"executable"`
	Model          string            `yaml:"model"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	WorkingDir     string            `yaml:"working_dir"`
	Env            map[string]string `yaml:"env"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Workspace: filepath.Join(home, ".clawcron"),
		LogLevel:  "info",
		Defaults: Defaults{
			Executable:     "claude",
			TimeoutSeconds: 300,
		},
		Alerts: AlertsConfig{Console: true},
	}
}

// LoadConfig reads the YAML file at path over the built-in defaults, applies
// environment overrides, and validates. A missing file is not an error; the
// defaults plus environment stand alone.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the scheduler or executor cannot honor.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace must not be empty")
	}
	if c.Defaults.Executable == "" {
		return fmt.Errorf("defaults.executable must not be empty")
	}
	if c.Defaults.TimeoutSeconds <= 0 {
		return fmt.Errorf("defaults.timeout_seconds must be positive, got %d", c.Defaults.TimeoutSeconds)
	}

	g := gronx.New()
	seen := map[string]bool{}
	for i, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("jobs[%d]: name must not be empty", i)
		}
		if seen[job.Name] {
			return fmt.Errorf("jobs[%d]: duplicate job name %q", i, job.Name)
		}
		seen[job.Name] = true
		if len(job.Templates) == 0 {
			return fmt.Errorf("job %s: at least one template is required", job.Name)
		}
		if job.Schedule != "" && job.EverySeconds > 0 {
			return fmt.Errorf("job %s: schedule and every_seconds are mutually exclusive", job.Name)
		}
		if job.Schedule != "" && !g.IsValid(job.Schedule) {
			return fmt.Errorf("job %s: invalid cron expression %q", job.Name, job.Schedule)
		}
		if job.EverySeconds < 0 {
			return fmt.Errorf("job %s: every_seconds must not be negative", job.Name)
		}
		if job.TimeoutSeconds < 0 {
			return fmt.Errorf("job %s: timeout_seconds must not be negative", job.Name)
		}
	}
	return nil
}

// Job looks a job up by name.
func (c *Config) Job(name string) (*JobConfig, bool) {
	for i := range c.Jobs {
		if c.Jobs[i].Name == name {
			return &c.Jobs[i], true
		}
	}
	return nil, false
}

// Timeout resolves a job's effective timeout: job over global over built-in.
func (c *Config) Timeout(job *JobConfig) time.Duration {
	if job != nil && job.TimeoutSeconds > 0 {
		return time.Duration(job.TimeoutSeconds) * time.Second
	}
	if c.Defaults.TimeoutSeconds > 0 {
		return time.Duration(c.Defaults.TimeoutSeconds) * time.Second
	}
	return 5 * time.Minute
}

// TemplatesDir is where job prompt templates live.
func (c *Config) TemplatesDir() string { return filepath.Join(c.Workspace, "templates") }

// MemoryDir holds per-job memory files.
func (c *Config) MemoryDir() string { return filepath.Join(c.Workspace, "memory") }

// RunsDir holds per-run records.
func (c *Config) RunsDir() string { return filepath.Join(c.Workspace, "runs") }

// LogsDir holds the mirrored log file.
func (c *Config) LogsDir() string { return filepath.Join(c.Workspace, "logs") }
