// clawcron - cron for your AI CLI
//
// Triggers an external AI command-line tool with assembled prompts, on a
// schedule or on demand, and carries small key-value memory between runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clawcron/clawcron/pkg/alerts"
	"github.com/clawcron/clawcron/pkg/config"
	"github.com/clawcron/clawcron/pkg/cron"
	"github.com/clawcron/clawcron/pkg/jobs"
	"github.com/clawcron/clawcron/pkg/logger"
	"github.com/clawcron/clawcron/pkg/memory"
	"github.com/clawcron/clawcron/pkg/procrun"
	"github.com/clawcron/clawcron/pkg/promptfile"
	"github.com/clawcron/clawcron/pkg/runlog"
)

var (
	version   = "dev"
	buildTime string
)

const cliName = "clawcron"

func main() {
	// A .env next to the binary or in the cwd is a convenience for API
	// keys the AI tool needs; absence is fine.
	godotenv.Load()

	args := os.Args[1:]
	if hasFlag(args, "--debug") {
		logger.SetLevel(logger.DEBUG)
	}

	if len(args) == 0 {
		printHelp()
		return
	}

	switch args[0] {
	case "init":
		initCmd()
	case "run":
		if len(args) < 2 {
			fmt.Printf("Usage: %s run <job-name>\n", cliName)
			os.Exit(1)
		}
		runCmd(args[1])
	case "start":
		startCmd()
	case "list":
		listCmd()
	case "memory":
		memoryCmd(args[1:])
	case "archive":
		archiveCmd(args[1:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

func configPath() string {
	if p := flagValue(os.Args[1:], "--config"); p != "" {
		return p
	}
	if p := os.Getenv("CLAWCRON_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".clawcron", "config.yaml")
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.LogLevel == "debug" {
		logger.SetLevel(logger.DEBUG)
	}
	return cfg
}

// buildExecutor wires the executor with its collaborators from config.
func buildExecutor(cfg *config.Config) *jobs.Executor {
	var sinks alerts.MultiSink
	if cfg.Alerts.Console {
		sinks = append(sinks, alerts.NewConsoleSink())
	}
	if cfg.Alerts.SlackWebhookURL != "" {
		sinks = append(sinks, alerts.NewSlackSink(cfg.Alerts.SlackWebhookURL))
	}

	executor := jobs.NewExecutor(
		cfg,
		procrun.NewRunner(),
		promptfile.NewStore(cfg.TemplatesDir()),
		memory.NewStore(cfg.MemoryDir()),
		sinks,
	)
	executor.SetRecorder(runlog.NewRecorder(cfg.RunsDir()))
	return executor
}

func initCmd() {
	cfg := config.DefaultConfig()

	if err := os.MkdirAll(cfg.Workspace, 0755); err != nil {
		fmt.Printf("Error creating workspace: %v\n", err)
		os.Exit(1)
	}

	store := promptfile.NewStore(cfg.TemplatesDir())
	written, err := store.Scaffold()
	if err != nil {
		fmt.Printf("Error scaffolding templates: %v\n", err)
		os.Exit(1)
	}
	for _, name := range written {
		fmt.Printf("  created templates/%s\n", name)
	}

	cfgPath := configPath()
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		fmt.Printf("Error creating config dir: %v\n", err)
		os.Exit(1)
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := os.WriteFile(cfgPath, []byte(exampleConfig), 0644); err != nil {
			fmt.Printf("Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  created %s\n", cfgPath)
	}

	fmt.Printf("\nWorkspace ready at %s\n", cfg.Workspace)
	fmt.Printf("Edit %s to define jobs, then: %s run <job-name>\n", cfgPath, cliName)
}

func runCmd(name string) {
	cfg := loadConfig()
	if err := logger.EnableFileSink(cfg.LogsDir()); err != nil {
		logger.WarnCF("main", "File logging unavailable", map[string]any{"error": err.Error()})
	}
	defer logger.CloseFileSink()

	job, ok := cfg.Job(name)
	if !ok {
		fmt.Printf("Unknown job: %s (see `%s list`)\n", name, cliName)
		os.Exit(1)
	}

	executor := buildExecutor(cfg)
	out := executor.ExecuteJob(context.Background(), job)
	if !out.Success {
		os.Exit(1)
	}
}

func startCmd() {
	cfg := loadConfig()
	if err := logger.EnableFileSink(cfg.LogsDir()); err != nil {
		logger.WarnCF("main", "File logging unavailable", map[string]any{"error": err.Error()})
	}
	defer logger.CloseFileSink()

	executor := buildExecutor(cfg)
	service := cron.NewService(cfg, executor)
	if service.Scheduled() == 0 {
		fmt.Println("No scheduled jobs in config; nothing to do.")
		fmt.Printf("Add a `schedule` or `every_seconds` to a job, or use `%s run <job>`.\n", cliName)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.InfoCF("main", "clawcron started", map[string]any{
		"version": version,
		"jobs":    service.Scheduled(),
	})
	if err := service.Start(ctx); err != nil {
		logger.ErrorCF("main", "Scheduler exited with error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func listCmd() {
	cfg := loadConfig()
	if len(cfg.Jobs) == 0 {
		fmt.Println("No jobs configured.")
		return
	}

	service := cron.NewService(cfg, nil)
	fmt.Println("\nJobs:")
	fmt.Println("-----")
	for _, job := range cfg.Jobs {
		schedule := "on demand"
		if job.Schedule != "" {
			schedule = job.Schedule
		} else if job.EverySeconds > 0 {
			schedule = fmt.Sprintf("every %ds", job.EverySeconds)
		}

		fmt.Printf("  %s\n", job.Name)
		fmt.Printf("    Schedule: %s\n", schedule)
		if next, ok := service.NextRun(job.Name); ok {
			fmt.Printf("    Next run: %s\n", next.Format("2006-01-02 15:04:05"))
		}
	}
}

func memoryCmd(args []string) {
	if len(args) < 2 {
		fmt.Printf("Usage: %s memory <show|clear> <job-name>\n", cliName)
		os.Exit(1)
	}
	cfg := loadConfig()
	store := memory.NewStore(cfg.MemoryDir())
	name := args[1]

	switch args[0] {
	case "show":
		m, err := store.Load(name)
		if err != nil {
			fmt.Printf("Error loading memory: %v\n", err)
			os.Exit(1)
		}
		if len(m) == 0 {
			fmt.Printf("No memory for job %s.\n", name)
			return
		}
		data, _ := json.MarshalIndent(m, "", "  ")
		fmt.Println(string(data))
	case "clear":
		if err := store.Clear(name); err != nil {
			fmt.Printf("Error clearing memory: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Memory cleared for job %s.\n", name)
	default:
		fmt.Printf("Unknown memory command: %s\n", args[0])
		os.Exit(1)
	}
}

func archiveCmd(args []string) {
	cfg := loadConfig()

	olderThanDays := 7
	if v := flagValue(args, "--older-than"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fmt.Printf("Invalid --older-than value: %s\n", v)
			os.Exit(1)
		}
		olderThanDays = n
	}

	recorder := runlog.NewRecorder(cfg.RunsDir())
	n, err := recorder.Archive(time.Duration(olderThanDays) * 24 * time.Hour)
	if err != nil {
		fmt.Printf("Error archiving runs: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Archived %d run record(s) older than %d day(s).\n", n, olderThanDays)
}

func printVersion() {
	fmt.Printf("%s v%s\n", cliName, version)
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	fmt.Printf("  Go: %s\n", runtime.Version())
}

func printHelp() {
	fmt.Printf(`%s - cron for your AI CLI

Usage:
  %s init                     Create the workspace, config and templates
  %s run <job-name>           Execute one job now
  %s start                    Run the scheduler in the foreground
  %s list                     List configured jobs and next run times
  %s memory show <job-name>   Print a job's persisted memory
  %s memory clear <job-name>  Delete a job's persisted memory
  %s archive [--older-than N] Compress run records older than N days (default 7)
  %s version                  Print version info

Flags:
  --debug                     Verbose logging
  --config <path>             Config file location

Config: %s (override with --config or CLAWCRON_CONFIG)
`, cliName, cliName, cliName, cliName, cliName, cliName, cliName, cliName, cliName, configPath())
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

const exampleConfig = `# clawcron configuration
# Precedence: built-in defaults < this file < CLAWCRON_* environment variables.

defaults:
  executable: claude        # AI CLI to invoke (resolved via PATH)
  # model: claude-sonnet-4-5
  timeout_seconds: 300

alerts:
  console: true
  # slack_webhook_url: https://hooks.slack.com/services/...

jobs:
  - name: example
    templates: [base.md, example-job.md]
    # schedule: "0 9 * * *"   # every day at 09:00
    # every_seconds: 3600     # or: every hour
`
