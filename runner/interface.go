package runner

import (
	"context"

	"github.com/csd-dev-tools/runcommands/command"
)

// Result is the normalized outcome of one run. It is produced exactly
// once per run and immutable after return.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
}

// Runner is the contract shared by the blocking runners: one command in,
// one result out.
type Runner interface {
	// Run executes a command and blocks until it terminates.
	// A non-zero exit status is data in the Result, not an error.
	Run(ctx context.Context, cmd command.Command) (Result, error)
}
