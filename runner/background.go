package runner

import (
	"context"
	"sync"

	"github.com/csd-dev-tools/runcommands/command"
	"github.com/csd-dev-tools/runcommands/logger"
)

type completion struct {
	result Result
	err    error
}

// BackgroundRunner executes one blocking run on its own goroutine. The
// worker writes a single completion value into a one-slot channel and
// Wait receives it, so joining also carries the worker's error. The
// output accessors are only well-defined after Wait has returned;
// reading them earlier is a caller precondition violation and is not
// guarded.
type BackgroundRunner struct {
	runner *ProcessRunner
	cmd    command.Command

	done chan completion
	join sync.Once

	result Result
	err    error
}

// NewBackgroundRunner creates a BackgroundRunner for one command.
func NewBackgroundRunner(cmd command.Command) *BackgroundRunner {
	return &BackgroundRunner{
		runner: NewProcessRunner(),
		cmd:    cmd,
		done:   make(chan completion, 1),
	}
}

// Start begins execution asynchronously. It must be called exactly once.
func (b *BackgroundRunner) Start(ctx context.Context) {
	go func() {
		result, err := b.runner.Run(ctx, b.cmd)
		if err != nil {
			logger.Log.ForRunner("background").Warnf("Background run of %q failed: %v", b.cmd.String(), err)
		}
		b.done <- completion{result: result, err: err}
	}()
}

// Wait blocks until the background run completes and returns its
// outcome. Subsequent calls return the same values.
func (b *BackgroundRunner) Wait() (Result, error) {
	b.join.Do(func() {
		c := <-b.done
		b.result = c.result
		b.err = c.err
	})
	return b.result, b.err
}

// Stdout returns the captured standard output. Only valid after Wait.
func (b *BackgroundRunner) Stdout() []byte {
	return b.result.Stdout
}

// Stderr returns the captured standard error. Only valid after Wait.
func (b *BackgroundRunner) Stderr() []byte {
	return b.result.Stderr
}

// ExitCode returns the child's exit status. Only valid after Wait.
func (b *BackgroundRunner) ExitCode() int {
	return b.result.ExitCode
}
