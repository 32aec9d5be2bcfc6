// Package runner executes a compiled binary against sample cases, one
// process at a time, under a wall-clock limit.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/corey/cpbench/internal/adapters/logging"
	"github.com/corey/cpbench/internal/domain/testcase"
)

// DefaultTimeout is the per-case wall-clock limit.
const DefaultTimeout = 2000 * time.Millisecond

// waitDelay bounds how long Wait keeps draining pipes after the process is
// gone, in case a stray descendant still holds them.
const waitDelay = 500 * time.Millisecond

// Runner runs cases sequentially.
type Runner struct {
	timeout time.Duration
	log     *logging.Logger
}

// New creates a Runner. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration, log *logging.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{timeout: timeout, log: log}
}

// Timeout returns the per-case limit.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// RunAll runs every case in order. Cases left when ctx is cancelled are
// reported as faults rather than skipped, so len(result) == len(cases).
func (r *Runner) RunAll(ctx context.Context, bin, workDir string, cases []testcase.Case) []testcase.Result {
	results := make([]testcase.Result, 0, len(cases))
	for _, c := range cases {
		results = append(results, r.RunOne(ctx, bin, workDir, c))
	}
	return results
}

// RunOne starts a fresh process for c, feeds it c.Input and compares its
// stdout to c.Expected. The exit code is recorded but never fails a case.
func (r *Runner) RunOne(ctx context.Context, bin, workDir string, c testcase.Case) testcase.Result {
	result := testcase.Result{
		ID:       c.ID,
		Name:     c.Name,
		Expected: c.Expected,
		ExitCode: -1,
	}
	if err := ctx.Err(); err != nil {
		return faulted(result, err)
	}

	cmd := exec.Command(bin)
	cmd.Dir = workDir
	cmd.Stdin = strings.NewReader(c.Input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		r.log.Warn("launch failed", "case", c.ID, "bin", bin, "error", err)
		return faulted(result, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		result.DurationMs = time.Since(start).Milliseconds()
		return r.finished(result, c, err, stdout.String(), stderr.String())

	case <-timer.C:
		killProcessGroup(cmd)
		<-done
		result.DurationMs = time.Since(start).Milliseconds()
		r.log.Debug("case timed out", "case", c.ID, "limit", r.timeout)
		msg := testcase.TimeoutMessage
		result.Error = &msg
		return result

	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		result.DurationMs = time.Since(start).Milliseconds()
		return faulted(result, ctx.Err())
	}
}

func (r *Runner) finished(result testcase.Result, c testcase.Case, waitErr error, stdout, stderr string) testcase.Result {
	result.ExitCode = 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		case errors.Is(waitErr, exec.ErrWaitDelay):
		default:
			r.log.Warn("wait failed", "case", c.ID, "error", waitErr)
			return faulted(result, waitErr)
		}
	}

	result.Output = testcase.NormalizeNewlines(stdout)
	result.Passed = testcase.Matches(stdout, c.Expected)
	if stderr != "" {
		result.Error = &stderr
	}
	r.log.Debug("case finished", "case", c.ID, "passed", result.Passed, "exit", result.ExitCode, "ms", result.DurationMs)
	return result
}

func faulted(result testcase.Result, err error) testcase.Result {
	msg := err.Error()
	result.Passed = false
	result.Output = ""
	result.Error = &msg
	return result
}
