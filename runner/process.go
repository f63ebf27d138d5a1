package runner

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/csd-dev-tools/runcommands/command"
	"github.com/csd-dev-tools/runcommands/common"
	"github.com/csd-dev-tools/runcommands/logger"
)

// ProcessRunner spawns a child with both output streams piped, blocks
// until it terminates, and captures the full output and exit status.
type ProcessRunner struct{}

// NewProcessRunner creates a new ProcessRunner.
func NewProcessRunner() *ProcessRunner {
	return &ProcessRunner{}
}

var _ Runner = (*ProcessRunner)(nil)

// Run executes cmd and blocks until completion.
func (r *ProcessRunner) Run(ctx context.Context, cmd command.Command) (Result, error) {
	if cmd.IsZero() {
		logger.Log.ForRunner("process").Warn("Cannot run a command that is empty")
		return Result{ExitCode: common.ExitCodeNeverRan}, command.ErrEmptyCommand
	}

	log := logger.Log.ForRun("process", newRunID(), cmd.String())

	proc := cmd.Build(ctx)
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	if err := proc.Start(); err != nil {
		wrapped := errors.Wrapf(err, "failed to spawn command %q", cmd.String())
		log.Warnf("Spawn failed: %+v", wrapped)
		return Result{ExitCode: common.ExitCodeNeverRan}, wrapped
	}
	log.WithField(common.LogFieldPid, proc.Process.Pid).Debug("Child spawned")

	err := proc.Wait()
	exitCode, known := exitCodeOf(err)
	if err != nil && !known {
		wrapped := errors.Wrapf(err, "command %q failed to complete", cmd.String())
		log.Warnf("Wait failed: %+v", wrapped)
		return Result{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			ExitCode: 1,
		}, wrapped
	}

	log.Debugf("Done with command, retcode: %d", exitCode)
	log.Debugf("stdout: %s", stdout.String())
	log.Debugf("stderr: %s", stderr.String())

	return Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}

// exitCodeOf extracts the child's exit status from a Wait error. The
// second return is false when err does not describe a child exit at all
// (spawn plumbing failures and the like).
func exitCodeOf(err error) (int, bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus(), true
		}
		return 1, true
	}
	return 0, false
}

func newRunID() string {
	return uuid.NewString()[:8]
}
