// Package elevate runs commands under switch-user and privilege
// elevation by driving the password handshake over a pseudo-terminal.
// Elevation tools refuse to read a secret from a plain pipe, so the
// child is attached to a pty pair and the terminal's echo attribute is
// polled as the "ready for secret" signal.
//
// No function in this package ever passes the password to the logger;
// secrets are excluded from logging by construction, not by filtering.
package elevate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/csd-dev-tools/runcommands/command"
	"github.com/csd-dev-tools/runcommands/common"
	"github.com/csd-dev-tools/runcommands/config"
	"github.com/csd-dev-tools/runcommands/logger"
	"github.com/csd-dev-tools/runcommands/runner"
	"github.com/csd-dev-tools/runcommands/util"
)

var (
	// ErrElevationParameter is returned when an elevated run is
	// rejected before anything is spawned: blank user, blank password
	// or no command.
	ErrElevationParameter = errors.New("cannot pass in empty parameters")

	// ErrNotPrivileged is returned when a privileged drop is requested
	// by a process that is not running as root.
	ErrNotPrivileged = errors.New("this can only run in privileged mode")

	// ErrPromptTimeout is returned when the terminal's echo attribute
	// never went off within the bound: the password prompt did not
	// appear, or the elevation failed silently. The two cannot be told
	// apart from the echo signal, so this is a hard failure.
	ErrPromptTimeout = errors.New("password prompt never appeared")
)

// Handshake phases, logged at debug so a stuck elevation can be placed.
const (
	phaseSpawned      = "spawned"
	phaseAwaitPrompt  = "await-prompt"
	phasePasswordSent = "password-sent"
	phaseDraining     = "draining"
	phaseExited       = "exited"
)

// Runner drives the pseudo-terminal password handshake for one-step and
// two-step elevation flows. Each invocation owns at most one child and
// one pty pair, both released before it returns.
type Runner struct {
	cfg config.ElevationSpec
}

// NewRunner creates a Runner with default tunables.
func NewRunner() *Runner {
	return NewRunnerWithConfig(config.Default().Elevation)
}

// NewRunnerWithConfig creates a Runner with the given tunables; unset
// fields fall back to defaults.
func NewRunnerWithConfig(cfg config.ElevationSpec) *Runner {
	full := config.RunnerConfig{Elevation: cfg}
	full.SetDefaults()
	return &Runner{cfg: full.Elevation}
}

// RunAs switches to user and runs cmd, driving a single password
// prompt: su - <user> -c <command>.
func (r *Runner) RunAs(ctx context.Context, cmd command.Command, user, password string) (runner.Result, error) {
	if err := r.checkParams(cmd, user, password, true); err != nil {
		return runner.Result{ExitCode: common.ExitCodeBadParameter}, err
	}
	argv := []string{r.cfg.SuPath, "-", strings.TrimSpace(user), "-c", cmd.Line()}
	return r.handshake(ctx, argv, password, 1)
}

// RunAsWithSudo switches to user and elevates again, driving two
// password prompts in sequence: su -m <user> -c "sudo -E -S -s '<command>'".
// The -m preserves the environment across the switch; -S keeps sudo
// reading from the terminal rather than a tty it might re-open.
func (r *Runner) RunAsWithSudo(ctx context.Context, cmd command.Command, user, password string) (runner.Result, error) {
	if err := r.checkParams(cmd, user, password, true); err != nil {
		return runner.Result{ExitCode: common.ExitCodeBadParameter}, err
	}
	inner := fmt.Sprintf("%s -E -S -s '%s'", r.cfg.SudoPath, cmd.Line())
	argv := []string{r.cfg.SuPath, "-m", strings.TrimSpace(user), "-c", inner}
	return r.handshake(ctx, argv, password, 2)
}

// RunWithSudo elevates the current user and runs cmd, driving a single
// password prompt: sudo -S -s <command>.
func (r *Runner) RunWithSudo(ctx context.Context, cmd command.Command, password string) (runner.Result, error) {
	if err := r.checkParams(cmd, "", password, false); err != nil {
		return runner.Result{ExitCode: common.ExitCodeBadParameter}, err
	}
	argv := []string{r.cfg.SudoPath, "-S", "-s", cmd.Line()}
	return r.handshake(ctx, argv, password, 1)
}

// LiftDown runs cmd from privileged mode in a user's context with that
// user's uid, optionally from targetDir. No password is required, so no
// pty handshake either; the caller must already be root.
func (r *Runner) LiftDown(ctx context.Context, cmd command.Command, user, targetDir string) (runner.Result, error) {
	log := logger.Log.ForRunner("liftdown")
	if os.Geteuid() != 0 {
		log.Warn("This can only run if running in privileged mode")
		return runner.Result{ExitCode: common.ExitCodeNotPrivileged}, ErrNotPrivileged
	}
	if util.IsBlank(user) || cmd.IsZero() {
		log.Warn("Cannot pass in empty parameters")
		log.Warnf("user = %q", user)
		log.Warnf("command = %q", cmd.String())
		return runner.Result{ExitCode: common.ExitCodeBadParameter}, ErrElevationParameter
	}

	argv := []string{r.cfg.SuPath, "-", strings.TrimSpace(user), "-c", cmd.Line()}
	result, err := runCaptured(ctx, argv, targetDir)
	if err != nil {
		return result, err
	}

	for _, line := range strings.Split(strings.TrimRight(string(result.Stdout), "\n"), "\n") {
		log.Debugf("out: %s", line)
	}
	for _, line := range strings.Split(strings.TrimRight(string(result.Stderr), "\n"), "\n") {
		log.Debugf("err: %s", line)
	}
	log.Debugf("retcode: %d", result.ExitCode)
	return result, nil
}

// checkParams validates the elevation preconditions without touching
// the OS. Violations return the 255 sentinel through the callers.
func (r *Runner) checkParams(cmd command.Command, user, password string, needUser bool) error {
	if (needUser && util.IsBlank(user)) || util.IsBlank(password) || cmd.IsZero() {
		log := logger.Log.ForRunner("elevation")
		log.Warn("Cannot pass in empty parameters")
		if needUser {
			log.Warnf("user = %q", user)
		}
		log.Warn("check password...")
		log.Warnf("command = %q", cmd.String())
		return ErrElevationParameter
	}
	return nil
}

// handshake spawns argv on a fresh pty pair, answers the expected number
// of password prompts, drains output until the child exits and reaps it.
// Resources are released on every path out.
func (r *Runner) handshake(ctx context.Context, argv []string, secret string, prompts int) (runner.Result, error) {
	log := logger.Log.ForRun("elevation", newRunID(), strings.Join(argv, " "))

	sess, err := startSession(argv)
	if err != nil {
		log.Warnf("Spawn failed: %+v", err)
		return runner.Result{ExitCode: common.ExitCodeNeverRan}, err
	}
	defer sess.close(log)
	log.WithField(common.LogFieldPid, sess.pid()).Debugf("phase: %s", phaseSpawned)

	promptTimeout := r.cfg.PromptTimeout.Std()
	echoInterval := r.cfg.EchoPollInterval.Std()
	drainInterval := r.cfg.DrainPollInterval.Std()

	for i := 0; i < prompts; i++ {
		if err := ctx.Err(); err != nil {
			return runner.Result{ExitCode: -1}, errors.Wrap(err, "elevation cancelled")
		}
		log.Debugf("phase: %s (%d/%d)", phaseAwaitPrompt, i+1, prompts)
		if err := sess.waitNoEcho(promptTimeout, echoInterval); err != nil {
			log.Warnf("Password prompt %d/%d: %v", i+1, prompts, err)
			return runner.Result{ExitCode: -1}, err
		}

		// Swallow the buffered prompt bytes, then send the secret.
		// Echo is off, so nothing of the secret comes back.
		sess.discardPending(drainInterval, r.cfg.DrainReadSize)
		if err := sess.writeSecret(secret); err != nil {
			log.Warnf("Password prompt %d/%d: %v", i+1, prompts, err)
			return runner.Result{ExitCode: -1}, err
		}
		log.Debugf("phase: %s (%d/%d)", phasePasswordSent, i+1, prompts)
	}

	log.Debugf("phase: %s", phaseDraining)
	output, err := sess.drain(drainInterval, r.cfg.DrainReadSize)
	if err != nil {
		log.Warnf("Drain failed: %+v", err)
		return runner.Result{Stdout: output, ExitCode: -1}, err
	}

	exitCode, err := sess.reap()
	if err != nil {
		log.Warnf("Reap failed: %+v", err)
		return runner.Result{Stdout: output, ExitCode: exitCode}, err
	}

	log.Debugf("phase: %s, retcode: %d", phaseExited, exitCode)
	return runner.Result{Stdout: output, ExitCode: exitCode}, nil
}

// runCaptured is the plain blocking capture used by LiftDown, which has
// no prompt to answer. targetDir, when set, becomes the child's working
// directory.
func runCaptured(ctx context.Context, argv []string, targetDir string) (runner.Result, error) {
	cmd, err := command.New(argv)
	if err != nil {
		return runner.Result{ExitCode: common.ExitCodeNeverRan}, err
	}

	proc := cmd.Build(ctx)
	proc.Dir = targetDir
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	if err := proc.Start(); err != nil {
		wrapped := errors.Wrapf(err, "failed to spawn command %q", cmd.String())
		logger.Log.ForRunner("liftdown").Warnf("Spawn failed: %+v", wrapped)
		return runner.Result{ExitCode: common.ExitCodeNeverRan}, wrapped
	}

	waitErr := proc.Wait()
	exitCode, statusErr := exitStatus(waitErr)
	result := runner.Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}
	return result, statusErr
}

func newRunID() string {
	return uuid.NewString()[:8]
}
