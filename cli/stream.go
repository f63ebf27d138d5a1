package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/csd-dev-tools/runcommands/runner"
)

func newStreamCmd() *cobra.Command {
	var (
		shell    bool
		env      []string
		patterns []string
		respawn  bool
	)

	cmd := &cobra.Command{
		Use:   "stream [flags] -- COMMAND [ARG...]",
		Short: "Run a command, streaming output line-by-line with optional early exit on a match",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			request, err := buildCommand(args, shell, env)
			if err != nil {
				return err
			}

			var match *runner.MatchSpec
			if len(patterns) > 0 {
				match, err = runner.NewMatchList(patterns...)
				if err != nil {
					return err
				}
			}

			streaming := runner.NewStreamingRunnerWithConfig(nil, cfg.Streaming)
			result, err := streaming.RunStreaming(context.Background(), request, match, respawn)
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
	cmd.Flags().StringArrayVar(&patterns, "match", nil, "stop pumping when a line matches this pattern (repeatable, first hit wins)")
	cmd.Flags().BoolVar(&respawn, "respawn", false, "treat the session as ongoing after a match (suppresses the exiting log line)")
	return cmd
}
