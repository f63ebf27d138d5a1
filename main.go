package main

import (
	"os"

	"github.com/csd-dev-tools/runcommands/cli"
	"github.com/csd-dev-tools/runcommands/logger"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		logger.Log.Error(err.Error())
		os.Exit(1)
	}
}
