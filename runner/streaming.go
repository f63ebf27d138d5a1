package runner

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/csd-dev-tools/runcommands/command"
	"github.com/csd-dev-tools/runcommands/common"
	"github.com/csd-dev-tools/runcommands/config"
	"github.com/csd-dev-tools/runcommands/logger"
)

// StreamingRunner pumps a child's output line-by-line as it arrives,
// optionally stopping early when a line matches a MatchSpec.
type StreamingRunner struct {
	syncer       Syncer
	maxLineBytes int
}

// NewStreamingRunner creates a StreamingRunner flushing through syncer.
// A nil syncer means sync(2).
func NewStreamingRunner(syncer Syncer) *StreamingRunner {
	if syncer == nil {
		syncer = NewKernelSyncer()
	}
	return &StreamingRunner{
		syncer:       syncer,
		maxLineBytes: config.DefaultMaxLineBytes,
	}
}

// NewStreamingRunnerWithConfig creates a StreamingRunner with tuned line
// limits.
func NewStreamingRunnerWithConfig(syncer Syncer, cfg config.StreamingSpec) *StreamingRunner {
	r := NewStreamingRunner(syncer)
	if cfg.MaxLineBytes > 0 {
		r.maxLineBytes = cfg.MaxLineBytes
	}
	return r
}

// RunStreaming executes cmd, reading standard output line-by-line as
// data arrives and logging each non-empty line at debug level, then
// pumps standard error the same way. When match hits a produced line,
// both stream handles are closed and pumping stops; the child itself is
// not killed. respawn only suppresses the "exiting" log line for
// sessions treated as ongoing. After the streams are exhausted the child
// is reaped and the filesystem-sync collaborator invoked exactly once.
func (r *StreamingRunner) RunStreaming(ctx context.Context, cmd command.Command, match *MatchSpec, respawn bool) (Result, error) {
	if cmd.IsZero() {
		logger.Log.ForRunner("streaming").Warn("Cannot run a command that is empty")
		return Result{ExitCode: common.ExitCodeNeverRan}, command.ErrEmptyCommand
	}

	log := logger.Log.ForRun("streaming", newRunID(), cmd.String())

	proc := cmd.Build(ctx)
	stdoutPipe, err := proc.StdoutPipe()
	if err != nil {
		return Result{ExitCode: common.ExitCodeNeverRan}, errors.Wrap(err, "failed to open stdout pipe")
	}
	stderrPipe, err := proc.StderrPipe()
	if err != nil {
		return Result{ExitCode: common.ExitCodeNeverRan}, errors.Wrap(err, "failed to open stderr pipe")
	}

	if err := proc.Start(); err != nil {
		wrapped := errors.Wrapf(err, "failed to spawn command %q", cmd.String())
		log.Warnf("Spawn failed: %+v", wrapped)
		return Result{ExitCode: common.ExitCodeNeverRan}, wrapped
	}
	log.WithField(common.LogFieldPid, proc.Process.Pid).Debug("Child spawned")

	var stdout, stderr bytes.Buffer
	matched := r.pump(log, stdoutPipe, stderrPipe, &stdout, match, respawn)
	if !matched {
		// Standard error gets the same pump once stdout has ended.
		r.pump(log, stderrPipe, stdoutPipe, &stderr, match, respawn)
	}

	err = proc.Wait()
	exitCode, known := exitCodeOf(err)
	if err != nil && !known {
		wrapped := errors.Wrapf(err, "command %q failed to complete", cmd.String())
		log.Warnf("Wait failed: %+v", wrapped)
		r.syncer.Sync()
		return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), ExitCode: 1}, wrapped
	}

	// Flush filesystem buffers so anything the child wrote is durable
	// before the caller sees the result.
	r.syncer.Sync()

	log.Debugf("Done with command, retcode: %d", exitCode)
	return Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}

// pump reads stream line-by-line into sink until it ends or match hits.
// On a hit both handles are closed so no further output is pumped; the
// return reports whether that happened.
func (r *StreamingRunner) pump(log *logrus.Entry, stream, other io.ReadCloser, sink *bytes.Buffer, match *MatchSpec, respawn bool) bool {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), r.maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		sink.WriteString(line)
		sink.WriteByte('\n')

		if line != "" {
			log.Debug(line)
		}

		if expr, ok := match.Match(line); ok {
			_ = stream.Close()
			_ = other.Close()
			if !respawn {
				log.Infof("Match %q found... exiting stream pump", expr)
			}
			return true
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Debugf("Stream pump ended: %v", err)
	}
	return false
}
