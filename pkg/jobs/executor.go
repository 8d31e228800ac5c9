// Package jobs drives one end-to-end job execution: assemble the prompt,
// invoke the AI tool through the process runner, recover a structured result
// from its output, persist the memory delta, and report the outcome. Every
// failure is converted into a failed Outcome at this boundary; nothing
// escapes to the scheduler.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/clawcron/clawcron/pkg/alerts"
	"github.com/clawcron/clawcron/pkg/config"
	"github.com/clawcron/clawcron/pkg/logger"
	"github.com/clawcron/clawcron/pkg/memory"
	"github.com/clawcron/clawcron/pkg/procrun"
	"github.com/clawcron/clawcron/pkg/recovery"
	"github.com/clawcron/clawcron/pkg/runlog"
)

const previewLength = 200

// FailureKind tags why a run failed.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureLaunch      FailureKind = "launch_failed"
	FailureTimeout     FailureKind = "timed_out"
	FailureNonZeroExit FailureKind = "non_zero_exit"
	FailureEmptyOutput FailureKind = "empty_output"
	FailureInternal    FailureKind = "internal"
)

// Bookkeeping keys the executor always writes fresh. Tool-supplied memory
// updates colliding with these are dropped.
var reservedMemoryKeys = mapset.NewSet(
	"lastExecutionTime",
	"lastExecutionSuccess",
	"lastOutputLength",
	"lastResponseType",
	"lastError",
	memory.MetadataKey,
)

// Outcome is the settled result of one job execution.
type Outcome struct {
	RunID     string
	Job       string
	Success   bool
	Failure   FailureKind
	Error     string
	JobResult string
	// Preview is the first ~200 characters of JobResult for log lines; the
	// full text stays in JobResult for the notification sink.
	Preview      string
	RecoveryMode recovery.Mode
	ExitCode     *int
	StartedAt    time.Time
	Duration     time.Duration
}

// ProcessRunner abstracts procrun.Runner for tests.
type ProcessRunner interface {
	Run(ctx context.Context, req procrun.Request) (*procrun.Result, error)
}

// MemoryStore abstracts memory.Store.
type MemoryStore interface {
	Load(job string) (map[string]any, error)
	Save(job string, updates map[string]any) (map[string]any, error)
}

// TemplateLoader abstracts promptfile.Store.
type TemplateLoader interface {
	Load(names []string) (string, error)
}

// RunRecorder abstracts runlog.Recorder.
type RunRecorder interface {
	Write(rec runlog.Record) error
}

// Executor runs jobs. All collaborators are injected at construction; the
// executor holds no mutable state across runs, so concurrent distinct-job
// executions are safe.
type Executor struct {
	cfg       *config.Config
	runner    ProcessRunner
	templates TemplateLoader
	memory    MemoryStore
	alerts    alerts.Sink
	recorder  RunRecorder
	now       func() time.Time
}

// NewExecutor wires an executor. Sink and recorder may be nil.
func NewExecutor(cfg *config.Config, runner ProcessRunner, templates TemplateLoader, mem MemoryStore, sink alerts.Sink) *Executor {
	return &Executor{
		cfg:       cfg,
		runner:    runner,
		templates: templates,
		memory:    mem,
		alerts:    sink,
		now:       time.Now,
	}
}

// SetRecorder attaches a run recorder.
func (e *Executor) SetRecorder(rec RunRecorder) {
	e.recorder = rec
}

// ExecuteJob runs one job to completion and never panics or returns an
// error; everything is folded into the Outcome.
func (e *Executor) ExecuteJob(ctx context.Context, job *config.JobConfig) Outcome {
	out := Outcome{
		RunID:     uuid.NewString(),
		Job:       job.Name,
		StartedAt: e.now(),
	}

	logger.JobCF("jobs", "Job starting", map[string]any{
		"job": job.Name,
		"run": out.RunID,
	})

	prior, err := e.memory.Load(job.Name)
	if err != nil {
		logger.WarnCF("jobs", "Memory load failed, running with empty memory", map[string]any{
			"job":   job.Name,
			"error": err.Error(),
		})
		prior = map[string]any{}
	}

	templateContent, err := e.templates.Load(job.Templates)
	if err != nil {
		return e.fail(ctx, out, FailureInternal, fmt.Errorf("loading templates: %w", err), nil)
	}

	prompt := buildPrompt(templateContent, prior, job.Instructions)
	result, err := e.runner.Run(ctx, e.buildRequest(job, prompt))

	switch {
	case errors.Is(err, procrun.ErrLaunch):
		return e.fail(ctx, out, FailureLaunch, err, result)
	case errors.Is(err, procrun.ErrTimeout):
		return e.fail(ctx, out, FailureTimeout, err, result)
	case err != nil:
		return e.fail(ctx, out, FailureInternal, err, result)
	}

	out.ExitCode = result.ExitCode
	if result.ExitCode == nil || *result.ExitCode != 0 {
		return e.fail(ctx, out, FailureNonZeroExit,
			fmt.Errorf("tool exited with code %s: %s", formatExitCode(result.ExitCode), firstNonEmpty(result.Stderr, "(no stderr)")),
			result)
	}
	if result.Stdout == "" {
		// Exit 0 with nothing on stdout is never a success; there is
		// nothing to parse or deliver.
		return e.fail(ctx, out, FailureEmptyOutput,
			fmt.Errorf("tool produced no output: %s", firstNonEmpty(result.Stderr, "(no stderr)")),
			result)
	}

	resp := recovery.Recover(result.Stdout)
	out.Success = true
	out.JobResult = resp.JobResult
	out.Preview = preview(resp.JobResult)
	out.RecoveryMode = resp.Mode
	out.Duration = e.now().Sub(out.StartedAt)

	delta := e.buildDelta(resp, len(result.Stdout))
	if _, err := e.memory.Save(job.Name, delta); err != nil {
		// A persistence failure after a successful run is a warning, not a
		// failed job.
		logger.WarnCF("jobs", "Memory persistence failed", map[string]any{
			"job":   job.Name,
			"error": err.Error(),
		})
	}

	logger.JobCF("jobs", "Job succeeded", map[string]any{
		"job":      job.Name,
		"run":      out.RunID,
		"mode":     string(resp.Mode),
		"duration": out.Duration.Round(time.Millisecond).String(),
		"preview":  out.Preview,
	})
	e.record(out, result, "")
	e.notify(ctx, alerts.Alert{
		Message:     fmt.Sprintf("Job %s succeeded", job.Name),
		Description: out.Preview,
		Severity:    alerts.SeverityInfo,
	})
	return out
}

func (e *Executor) buildRequest(job *config.JobConfig, prompt string) procrun.Request {
	d := e.cfg.Defaults

	executable := firstNonEmpty(job.Executable, d.Executable)
	model := firstNonEmpty(job.Model, d.Model)
	workingDir := firstNonEmpty(job.WorkingDir, d.WorkingDir)

	env := map[string]string{}
	for k, v := range d.Env {
		env[k] = v
	}
	for k, v := range job.Env {
		env[k] = v
	}
	env["CLAWCRON_JOB"] = job.Name

	var args []string
	if model != "" {
		args = append(args, "--model", model)
		env["CLAWCRON_MODEL"] = model
	}

	return procrun.Request{
		Prompt:     prompt,
		Executable: executable,
		Args:       args,
		Env:        env,
		Timeout:    e.cfg.Timeout(job),
		WorkingDir: workingDir,
	}
}

// buildDelta merges recovered memory updates with always-fresh bookkeeping.
func (e *Executor) buildDelta(resp recovery.Response, outputLength int) map[string]any {
	delta := map[string]any{}
	for k, v := range resp.MemoryUpdates {
		if reservedMemoryKeys.Contains(k) {
			continue
		}
		delta[k] = v
	}
	delta["lastExecutionTime"] = e.now().Format(time.RFC3339)
	delta["lastExecutionSuccess"] = true
	delta["lastOutputLength"] = outputLength
	delta["lastResponseType"] = string(resp.Mode)
	return delta
}

// fail settles a run as failed: log, best-effort failure delta, run record,
// error alert.
func (e *Executor) fail(ctx context.Context, out Outcome, kind FailureKind, cause error, result *procrun.Result) Outcome {
	out.Success = false
	out.Failure = kind
	out.Error = cause.Error()
	out.Duration = e.now().Sub(out.StartedAt)
	if result != nil {
		out.ExitCode = result.ExitCode
	}

	logger.ErrorCF("jobs", "Job failed", map[string]any{
		"job":   out.Job,
		"run":   out.RunID,
		"kind":  string(kind),
		"error": cause.Error(),
	})

	// Subsequent runs should see this failure in their injected memory.
	delta := map[string]any{
		"lastExecutionTime":    e.now().Format(time.RFC3339),
		"lastExecutionSuccess": false,
		"lastError":            cause.Error(),
	}
	if _, err := e.memory.Save(out.Job, delta); err != nil {
		logger.WarnCF("jobs", "Failure delta persistence failed", map[string]any{
			"job":   out.Job,
			"error": err.Error(),
		})
	}

	e.record(out, result, cause.Error())
	e.notify(ctx, alerts.Alert{
		Message:     fmt.Sprintf("Job %s failed", out.Job),
		Description: cause.Error(),
		Severity:    alerts.SeverityError,
	})
	return out
}

func (e *Executor) record(out Outcome, result *procrun.Result, errMsg string) {
	if e.recorder == nil {
		return
	}
	rec := runlog.Record{
		RunID:        out.RunID,
		Job:          out.Job,
		StartedAt:    out.StartedAt,
		FinishedAt:   out.StartedAt.Add(out.Duration),
		Success:      out.Success,
		Outcome:      string(out.Failure),
		RecoveryMode: string(out.RecoveryMode),
		ExitCode:     out.ExitCode,
		Error:        errMsg,
	}
	if out.Success {
		rec.Outcome = "completed"
	}
	if result != nil {
		rec.Stdout = result.Stdout
		rec.Stderr = result.Stderr
	}
	if err := e.recorder.Write(rec); err != nil {
		logger.WarnCF("jobs", "Run record write failed", map[string]any{
			"job":   out.Job,
			"error": err.Error(),
		})
	}
}

func (e *Executor) notify(ctx context.Context, a alerts.Alert) {
	if e.alerts == nil {
		return
	}
	if err := e.alerts.Send(ctx, a); err != nil {
		logger.WarnCF("jobs", "Alert delivery failed", map[string]any{
			"error": err.Error(),
		})
	}
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLength {
		return s
	}
	return string(runes[:previewLength]) + "..."
}

func formatExitCode(code *int) string {
	if code == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *code)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
