// Package cli wires the runners to a command-line surface. It is glue
// only: requests are built here, execution lives in the runner and
// elevate packages.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/csd-dev-tools/runcommands/config"
	"github.com/csd-dev-tools/runcommands/logger"
	"github.com/csd-dev-tools/runcommands/util"
)

var (
	cfg *config.RunnerConfig

	flagConfigFile string
	flagLogDir     string
	flagLogLevel   string
	flagVerbose    bool
)

// NewRootCmd builds the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "runcommands",
		Short:         "Run external commands with capture, timeouts, streaming and privilege elevation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}

	root.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "log output directory (default: console)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose (debug) logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStreamCmd())
	root.AddCommand(newElevateCmd())
	return root
}

// setup loads configuration and reconfigures the global logger. Flags
// override the config file field by field.
func setup() error {
	if flagConfigFile != "" {
		loaded, err := config.NewLoader(flagConfigFile).Load()
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	cfg.Logging.Dir = util.FirstNonEmpty(flagLogDir, cfg.Logging.Dir)
	cfg.Logging.Level = util.FirstNonEmpty(flagLogLevel, cfg.Logging.Level)
	if flagVerbose {
		cfg.Logging.Verbose = true
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.Log.Warnf("Invalid log level %q, defaulting to info", cfg.Logging.Level)
		level = logrus.InfoLevel
	}
	return logger.InitGlobalLogger(cfg.Logging.Dir, cfg.Logging.Verbose, level)
}
