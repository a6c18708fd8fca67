package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/cmd/bridgerc/opts"
	"github.com/karhuops/bridgerc/pkg/pipeline"
	"github.com/karhuops/bridgerc/pkg/schedule"
)

// NewScheduleCmd creates the schedule command
func NewScheduleCmd(o *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run jobs on their cron schedules until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := o.LoadConfig(ctx)
			if err != nil {
				return errors.Errorf("loading config: %w", err)
			}

			logger := zerolog.Ctx(ctx)
			runner := pipeline.NewRunner(cfg, logger, false)
			s, err := schedule.New(cfg, runner, *logger)
			if err != nil {
				return errors.Errorf("building scheduler: %w", err)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.Run(ctx)
		},
	}
}
