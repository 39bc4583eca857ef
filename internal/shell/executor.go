// Package shell runs commands through the system shell inside a fixed
// working directory.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"shellpilot/internal/logging"
)

// maxCapturedBytes caps each captured stream so a runaway command cannot
// blow up the transcript.
const maxCapturedBytes = 50_000

// timeoutExitCode mirrors the conventional exit code of timeout(1).
const timeoutExitCode = 124

// Result is the outcome of one command execution. Ran is false when the
// process never ran to completion on its own: blocked before start, timed
// out, or failed to launch.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Ran      bool   `json:"ran"`
	Reason   string `json:"reason,omitempty"`
}

// Executor runs commands in a fixed working directory with the environment
// inherited from the agent process.
type Executor struct {
	workDir string
}

// NewExecutor creates an executor rooted at workDir.
func NewExecutor(workDir string) *Executor {
	return &Executor{workDir: workDir}
}

// WorkDir returns the directory commands run in.
func (e *Executor) WorkDir() string {
	return e.workDir
}

// Run executes command through the system shell (bash -c, or cmd /C on
// Windows) with the given timeout. A timeout surfaces as exit code 124
// with Ran false.
func (e *Executor) Run(ctx context.Context, command string, timeout time.Duration) Result {
	if strings.TrimSpace(command) == "" {
		logging.ExecWarn("refusing empty command")
		return Result{Stderr: "empty command", ExitCode: 1, Reason: "empty"}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(cctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(cctx, "bash", "-c", command)
	}
	cmd.Dir = e.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.ExecDebug("running in %s (timeout %s): %.100s", e.workDir, timeout, command)
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Round(time.Millisecond)

	if cctx.Err() == context.DeadlineExceeded {
		logging.ExecWarn("timeout after %s: %.50s", elapsed, command)
		return Result{
			Stderr:   fmt.Sprintf("timeout > %s", timeout),
			ExitCode: timeoutExitCode,
			Reason:   "timeout",
		}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logging.Exec("exit code %d after %s: %.50s", exitErr.ExitCode(), elapsed, command)
			return Result{
				Stdout:   truncate(stdout.String()),
				Stderr:   truncate(stderr.String()),
				ExitCode: exitErr.ExitCode(),
				Ran:      true,
			}
		}
		logging.ExecWarn("launch failure: %v", err)
		return Result{
			Stderr:   fmt.Sprintf("exec error: %v", err),
			ExitCode: 1,
			Reason:   "exception",
		}
	}

	logging.Exec("exit code 0 after %s: %.50s", elapsed, command)
	return Result{
		Stdout: truncate(stdout.String()),
		Stderr: truncate(stderr.String()),
		Ran:    true,
	}
}

func truncate(s string) string {
	if len(s) <= maxCapturedBytes {
		return s
	}
	return s[:maxCapturedBytes] + "\n...[truncated]"
}
