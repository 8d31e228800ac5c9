// Package procrun executes one external AI CLI invocation per request: it
// spawns the tool, streams the prompt over stdin, accumulates stdout/stderr,
// enforces a timeout, and guarantees the process tree is signalled on every
// exit path. Each invocation owns its own process handle, timer and buffers,
// so concurrent invocations need no locking.
package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Outcome is the terminal state of one invocation. Exactly one outcome is
// produced per request.
type Outcome string

const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeTimedOut     Outcome = "timed_out"
	OutcomeLaunchFailed Outcome = "launch_failed"
)

var (
	// ErrLaunch marks failures to start the tool at all.
	ErrLaunch = errors.New("tool launch failed")
	// ErrTimeout marks invocations terminated for exceeding their deadline.
	ErrTimeout = errors.New("tool execution timed out")
)

const (
	// DefaultTimeout applies when a request carries no timeout of its own.
	DefaultTimeout = 5 * time.Minute
	// killGracePeriod is how long a process gets between the graceful
	// termination signal and the forceful kill.
	killGracePeriod = 5 * time.Second
)

// Request describes one tool invocation. The prompt travels over stdin, not
// argv, so arbitrary length and shell metacharacters are safe.
type Request struct {
	Prompt     string
	Executable string
	Args       []string
	// Env is merged over the inherited environment; on key collision the
	// override wins.
	Env        map[string]string
	Timeout    time.Duration
	WorkingDir string
}

// Result is the settled output of one invocation.
type Result struct {
	Stdout string
	Stderr string
	// ExitCode is nil when the process was killed before it could exit.
	ExitCode *int
	Outcome  Outcome
}

// Runner executes requests. The zero value is not usable; call NewRunner.
type Runner struct {
	grace      time.Duration
	terminator treeTerminator
}

// NewRunner returns a Runner with the platform's process-tree termination
// strategy selected at build time.
func NewRunner() *Runner {
	return &Runner{
		grace:      killGracePeriod,
		terminator: newTreeTerminator(),
	}
}

// Run executes the request to settlement. Completed invocations return a nil
// error even on non-zero exit codes; the caller decides what a failing exit
// means. TimedOut and LaunchFailed return ErrTimeout / ErrLaunch wrapped
// errors alongside a partial Result.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmd := exec.Command(req.Executable, req.Args...)
	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}
	cmd.Env = mergeEnv(os.Environ(), req.Env)
	r.terminator.prepare(cmd)

	stdout := &lockedBuffer{}
	stderr := &lockedBuffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &Result{Outcome: OutcomeLaunchFailed}, fmt.Errorf("open stdin pipe: %w: %v", ErrLaunch, err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return &Result{Outcome: OutcomeLaunchFailed}, launchError(req.Executable, err)
	}

	// Closing stdin after the write signals end-of-input to the tool. A
	// write failure means the tool exited early; the wait below reports it.
	go func() {
		io.WriteString(stdin, req.Prompt)
		stdin.Close()
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		// Natural exit. Sweep the group once more for stray descendants
		// the tool may have spawned and abandoned.
		r.terminator.terminate(cmd)
		return &Result{
			Stdout:   strings.TrimSpace(stdout.String()),
			Stderr:   strings.TrimSpace(stderr.String()),
			ExitCode: exitCodeOf(cmd, waitErr),
			Outcome:  OutcomeCompleted,
		}, nil

	case <-timer.C:
		// Settle immediately after the graceful signal; escalation to a
		// forceful kill happens off the settlement path.
		r.terminator.terminate(cmd)
		go r.escalate(cmd, done)
		return &Result{
			Stdout:  strings.TrimSpace(stdout.String()),
			Stderr:  strings.TrimSpace(stderr.String()),
			Outcome: OutcomeTimedOut,
		}, fmt.Errorf("%s did not finish within %s: %w", req.Executable, timeout, ErrTimeout)

	case <-ctx.Done():
		r.terminator.terminate(cmd)
		go r.escalate(cmd, done)
		return &Result{
			Stdout:  strings.TrimSpace(stdout.String()),
			Stderr:  strings.TrimSpace(stderr.String()),
			Outcome: OutcomeTimedOut,
		}, fmt.Errorf("%s canceled: %w (%v)", req.Executable, ErrTimeout, ctx.Err())
	}
}

// escalate waits out the grace period after a graceful termination signal
// and force-kills the tree if the process is still alive, then reaps it.
func (r *Runner) escalate(cmd *exec.Cmd, done <-chan error) {
	select {
	case <-done:
	case <-time.After(r.grace):
		r.terminator.kill(cmd)
		<-done
	}
}

// exitCodeOf extracts the exit code from a settled wait. A nil pointer means
// the process died to a signal before producing an exit code.
func exitCodeOf(cmd *exec.Cmd, waitErr error) *int {
	if waitErr == nil {
		code := cmd.ProcessState.ExitCode()
		return &code
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			return nil
		}
		return &code
	}
	return nil
}

// launchError wraps a spawn failure, attaching a remediation hint when the
// failure looks like a missing executable.
func launchError(executable string, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %q not found in PATH: %v (install the CLI tool or add its directory to PATH)",
			ErrLaunch, executable, err)
	}
	return fmt.Errorf("%w: starting %q: %v", ErrLaunch, executable, err)
}

// mergeEnv layers overrides on top of the inherited environment. Matching is
// case-sensitive, matching typical UNIX semantics.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		keep := true
		for k := range overrides {
			if strings.HasPrefix(kv, k+"=") {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, kv)
		}
	}
	for k, v := range overrides {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// lockedBuffer guards output accumulation: on the timeout path the buffers
// are read while the pipe-copy goroutines may still be writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
