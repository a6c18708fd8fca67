package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/karhuops/bridgerc/cmd/bridgerc/opts"
)

var (
	// Flags
	configFile string
	debug      bool
)

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", ".bridgerc.yaml", "config file path")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug logging and debug destination folders")
}

// newRootOpts points subcommands at the shared flag values
func newRootOpts() *opts.RootOpts {
	return &opts.RootOpts{
		ConfigFile: &configFile,
		Debug:      &debug,
	}
}

// setupLogging configures zerolog based on flags. Runs from the root
// command's PersistentPreRun, after flag parsing.
func setupLogging() {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
}
