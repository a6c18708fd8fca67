package commands

import (
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/cmd/bridgerc/opts"
	"github.com/karhuops/bridgerc/pkg/pipeline"
)

// NewRunCmd creates the run command
func NewRunCmd(o *opts.RootOpts) *cobra.Command {
	var (
		all   bool
		async bool
	)

	cmd := &cobra.Command{
		Use:   "run [job]",
		Short: "Run one configured job now, or all of them",
		Long: `Run executes configured jobs once, immediately. Each run will:
1. Connect to the remote store and download the matching exports
2. Convert them to the job's output format
3. Move the consumed inputs to the remote history directory
4. Reconcile the destination and upload the results`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := o.LoadConfig(ctx)
			if err != nil {
				return errors.Errorf("loading config: %w", err)
			}

			logger := zerolog.Ctx(ctx)
			runner := pipeline.NewRunner(cfg, logger, async)

			label := "all jobs"
			start := time.Now()
			if all {
				err = runner.RunAll(ctx)
			} else {
				if len(args) == 0 {
					return errors.Errorf("a job name or --all is required")
				}
				label = args[0]
				err = runner.RunJob(ctx, args[0])
			}

			elapsed := time.Since(start).Round(time.Millisecond)
			if err != nil {
				color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "✗ %s failed after %s\n", label, elapsed)
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✔ %s completed in %s\n", label, elapsed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "run every configured job")
	cmd.Flags().BoolVar(&async, "async", false, "run jobs concurrently (with --all)")

	return cmd
}
