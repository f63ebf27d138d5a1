package runner

import (
	"bytes"
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/csd-dev-tools/runcommands/command"
	"github.com/csd-dev-tools/runcommands/common"
	"github.com/csd-dev-tools/runcommands/logger"
)

// WatchdogRunner wraps blocking execution with a timer that forcibly
// kills the child if it outlives a bound.
type WatchdogRunner struct {
	clock clockwork.Clock
}

// NewWatchdogRunner creates a WatchdogRunner on the real clock.
func NewWatchdogRunner() *WatchdogRunner {
	return &WatchdogRunner{clock: clockwork.NewRealClock()}
}

// NewWatchdogRunnerWithClock creates a WatchdogRunner on the given
// clock, used by tests.
func NewWatchdogRunnerWithClock(clock clockwork.Clock) *WatchdogRunner {
	return &WatchdogRunner{clock: clock}
}

// RunWithTimeout executes cmd, killing the child if it is still running
// after bound. Result.TimedOut reports whether the kill fired; a timeout
// is an expected outcome, never an error.
func (w *WatchdogRunner) RunWithTimeout(ctx context.Context, cmd command.Command, bound time.Duration) (Result, error) {
	if cmd.IsZero() {
		logger.Log.ForRunner("watchdog").Warn("Cannot run a command that is empty")
		return Result{ExitCode: common.ExitCodeNeverRan}, command.ErrEmptyCommand
	}

	log := logger.Log.ForRun("watchdog", newRunID(), cmd.String())

	proc := cmd.Build(ctx)
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	if err := proc.Start(); err != nil {
		wrapped := errors.Wrapf(err, "failed to spawn command %q", cmd.String())
		log.Warnf("Spawn failed: %+v", wrapped)
		return Result{ExitCode: common.ExitCodeNeverRan}, wrapped
	}
	log.WithField(common.LogFieldPid, proc.Process.Pid).Debugf("Child spawned, watchdog armed for %s", bound)

	// The timer and normal completion race; both may observe a
	// live-looking handle, so the kill must be a no-op on a child that
	// already exited.
	var timedOut atomic.Bool
	child := proc.Process
	timer := w.clock.AfterFunc(bound, func() {
		timedOut.Store(true)
		log.Warn("Watchdog bound expired, killing child")
		if err := child.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Debugf("Kill after timeout: %v", err)
		}
	})

	err := proc.Wait()
	timer.Stop()

	result := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		TimedOut: timedOut.Load(),
	}

	exitCode, known := exitCodeOf(err)
	if err != nil && !known {
		wrapped := errors.Wrapf(err, "command %q failed to complete", cmd.String())
		log.Warnf("Wait failed: %+v", wrapped)
		result.ExitCode = 1
		return result, wrapped
	}
	result.ExitCode = exitCode

	log.Debugf("Done with command, retcode: %d, timedOut: %t", exitCode, result.TimedOut)
	return result, nil
}
