// Package command defines the immutable per-call request value consumed
// by every runner. A Command is constructed, validated once, and never
// mutated; a runner takes it by value, so separate logical requests are
// safe to run concurrently without instance-level locking.
package command

import (
	"context"
	"os"
	"os/exec"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/pkg/errors"

	"github.com/csd-dev-tools/runcommands/common"
	"github.com/csd-dev-tools/runcommands/util"
)

var (
	// ErrEmptyCommand is returned when a command is constructed from an
	// empty argument vector or a blank shell line.
	ErrEmptyCommand = errors.New("cannot work with an empty command")

	// ErrInvalidCommandType is returned when the command input has the
	// wrong shape, such as an argument vector with blank elements.
	ErrInvalidCommandType = errors.New("command must be a shell string or a vector of non-empty strings")
)

// Command carries one command in either argument-vector or shell-string
// form, plus environment overrides and explicitly inherited descriptors.
// Exactly one of the two forms is populated.
type Command struct {
	argv      []string
	shellLine string
	shell     bool

	env   map[string]string
	files []*os.File
}

// Option configures optional Command attributes at construction.
type Option func(*Command)

// WithEnv sets environment overrides for the child. The overrides
// replace the child's environment wholesale; they are not merged with
// the parent's.
func WithEnv(env map[string]string) Option {
	return func(c *Command) {
		if len(env) == 0 {
			return
		}
		copied := make(map[string]string, len(env))
		for k, v := range env {
			copied[k] = v
		}
		c.env = copied
	}
}

// WithInheritedFiles names the open descriptors the child inherits
// beyond the three standard streams. os/exec closes everything else, so
// inheritance is an explicit allow-list rather than a blanket flag.
func WithInheritedFiles(files ...*os.File) Option {
	return func(c *Command) {
		c.files = append([]*os.File(nil), files...)
	}
}

// New builds a Command from an argument vector.
func New(argv []string, opts ...Option) (Command, error) {
	if len(argv) == 0 {
		return Command{}, errors.Wrap(ErrEmptyCommand, "empty argument vector")
	}
	for i, arg := range argv {
		if util.IsBlank(arg) {
			return Command{}, errors.Wrapf(ErrInvalidCommandType, "argument vector has a blank element at index %d", i)
		}
	}
	c := Command{argv: append([]string(nil), argv...)}
	for _, opt := range opts {
		opt(&c)
	}
	return c, nil
}

// NewShell builds a Command from a single shell-interpreted string.
func NewShell(line string, opts ...Option) (Command, error) {
	if util.IsBlank(line) {
		return Command{}, errors.Wrap(ErrEmptyCommand, "empty shell string")
	}
	c := Command{shellLine: line, shell: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c, nil
}

// IsZero reports the degenerate "no command supplied" state.
func (c Command) IsZero() bool {
	return !c.shell && len(c.argv) == 0
}

// Shell reports whether the command is shell-interpreted.
func (c Command) Shell() bool {
	return c.shell
}

// Env returns the environment overrides, or nil when the child inherits
// the parent environment.
func (c Command) Env() map[string]string {
	return c.env
}

// InheritedFiles returns the descriptors the child inherits beyond the
// standard streams.
func (c Command) InheritedFiles() []*os.File {
	return c.files
}

// String returns the shell-quoted printable form for diagnostics. It
// never mutates the canonical form.
func (c Command) String() string {
	if c.shell {
		return c.shellLine
	}
	return shellquote.Join(c.argv...)
}

// Line returns the command as a single shell line, the form the
// elevation flows hand to `su -c`.
func (c Command) Line() string {
	if c.shell {
		return c.shellLine
	}
	return strings.Join(c.argv, " ")
}

// Build constructs the exec.Cmd for this command. Shell commands run
// through the fixed system shell; vector commands run directly. The
// context cancels the child when it expires.
func (c Command) Build(ctx context.Context) *exec.Cmd {
	var cmd *exec.Cmd
	if c.shell {
		cmd = exec.CommandContext(ctx, common.DefaultShellPath, "-c", c.shellLine)
	} else {
		cmd = exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	}
	c.apply(cmd)
	return cmd
}

func (c Command) apply(cmd *exec.Cmd) {
	if c.env != nil {
		cmd.Env = util.FormatEnv(c.env)
	}
	if len(c.files) > 0 {
		cmd.ExtraFiles = append([]*os.File(nil), c.files...)
	}
}
