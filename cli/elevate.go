package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/csd-dev-tools/runcommands/elevate"
	"github.com/csd-dev-tools/runcommands/runner"
)

// readPassword prompts on the controlling terminal with echo disabled.
// The secret goes straight to the elevation runner and nowhere else.
func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "failed to read password from terminal")
	}
	return string(secret), nil
}

func newElevateCmd() *cobra.Command {
	var (
		shell    bool
		env      []string
		user     string
		withSudo bool
		sudoOnly bool
	)

	cmd := &cobra.Command{
		Use:   "elevate [flags] -- COMMAND [ARG...]",
		Short: "Run a command as another user or with elevated privilege via a pty handshake",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			if user == "" && !sudoOnly {
				return errors.New("either --as USER or --sudo-only is required")
			}

			request, err := buildCommand(args, shell, env)
			if err != nil {
				return err
			}
			password, err := readPassword()
			if err != nil {
				return err
			}

			elevation := elevate.NewRunnerWithConfig(cfg.Elevation)
			ctx := context.Background()

			var result runner.Result
			switch {
			case sudoOnly:
				result, err = elevation.RunWithSudo(ctx, request, password)
			case withSudo:
				result, err = elevation.RunAsWithSudo(ctx, request, user, password)
			default:
				result, err = elevation.RunAs(ctx, request, user, password)
			}
			if err != nil {
				return err
			}

			printResult(result)
			if result.ExitCode != 0 {
				return errors.Errorf("command exited with status %d", result.ExitCode)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&shell, "shell", false, "interpret the command through the system shell")
	cmd.Flags().StringArrayVar(&env, "env", nil, "environment override KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&user, "as", "", "switch to this user before running the command")
	cmd.Flags().BoolVar(&withSudo, "sudo", false, "elevate again with sudo after switching user (two prompts)")
	cmd.Flags().BoolVar(&sudoOnly, "sudo-only", false, "elevate the current user with sudo, no user switch")
	return cmd
}
