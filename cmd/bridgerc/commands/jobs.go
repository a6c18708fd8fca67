package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/cmd/bridgerc/opts"
)

// NewJobsCmd creates the jobs command
func NewJobsCmd(o *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the configured jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.LoadConfig(cmd.Context())
			if err != nil {
				return errors.Errorf("loading config: %w", err)
			}

			data := pterm.TableData{
				{"NAME", "SCHEDULE", "SOURCE", "TRANSFORM", "DESTINATION", "ARCHIVE"},
			}
			for _, job := range cfg.Jobs {
				schedule := job.Schedule
				if schedule == "" {
					schedule = "manual"
				}
				data = append(data, []string{
					job.Name,
					schedule,
					job.SourceDir + "/" + job.Pattern,
					job.Transform,
					job.Destination.Kind + ":" + job.Destination.Folder,
					job.Archive.Policy,
				})
			}

			return pterm.DefaultTable.
				WithHasHeader().
				WithWriter(cmd.OutOrStdout()).
				WithData(data).
				Render()
		},
	}
}
