package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/csd-dev-tools/runcommands/command"
	"github.com/csd-dev-tools/runcommands/runner"
)

// buildCommand turns CLI args and flags into a request value.
func buildCommand(args []string, shell bool, env []string) (command.Command, error) {
	var opts []command.Option
	if len(env) > 0 {
		overrides := make(map[string]string, len(env))
		for _, pair := range env {
			key, value, found := strings.Cut(pair, "=")
			if !found || key == "" {
				return command.Command{}, errors.Errorf("invalid --env value %q, want KEY=VALUE", pair)
			}
			overrides[key] = value
		}
		opts = append(opts, command.WithEnv(overrides))
	}

	if shell {
		return command.NewShell(strings.Join(args, " "), opts...)
	}
	return command.New(args, opts...)
}

func printResult(result runner.Result) {
	if len(result.Stdout) > 0 {
		fmt.Fprint(os.Stdout, string(result.Stdout))
	}
	if len(result.Stderr) > 0 {
		fmt.Fprint(os.Stderr, string(result.Stderr))
	}
}

func newRunCmd() *cobra.Command {
	var (
		shell      bool
		env        []string
		timeout    time.Duration
		background bool
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- COMMAND [ARG...]",
		Short: "Run a command and capture its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			request, err := buildCommand(args, shell, env)
			if err != nil {
				return err
			}
			ctx := context.Background()

			var result runner.Result
			switch {
			case timeout > 0:
				result, err = runner.NewWatchdogRunner().RunWithTimeout(ctx, request, timeout)
			case background:
				bg := runner.NewBackgroundRunner(request)
				bg.Start(ctx)
				result, err = bg.Wait()
			default:
				result, err = runner.NewProcessRunner().Run(ctx, request)
			}
			if err != nil {
				return err
			}

			printResult(result)
			if result.TimedOut {
				return errors.Errorf("command timed out after %s", timeout)
			}
			if result.ExitCode != 0 {
				return errors.Errorf("command exited with status %d", result.ExitCode)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&shell, "shell", false, "interpret the command through the system shell")
	cmd.Flags().StringArrayVar(&env, "env", nil, "environment override KEY=VALUE (replaces the child environment; repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "kill the command if it outlives this bound")
	cmd.Flags().BoolVar(&background, "background", false, "run on a background worker and join")
	return cmd
}
