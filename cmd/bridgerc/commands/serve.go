package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/cmd/bridgerc/opts"
	"github.com/karhuops/bridgerc/pkg/blob"
	"github.com/karhuops/bridgerc/pkg/server"
)

// NewServeCmd creates the serve command
func NewServeCmd(o *opts.RootOpts) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the CSV blob listing endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := o.LoadConfig(ctx)
			if err != nil {
				return errors.Errorf("loading config: %w", err)
			}

			logger := zerolog.Ctx(ctx)

			var lister blob.Lister
			if cfg.Blob.ConnectionString != "" {
				azure, err := blob.NewAzureLister(cfg.Blob)
				if err != nil {
					return errors.Errorf("building blob lister: %w", err)
				}
				lister = azure
			} else {
				logger.Warn().Msg("blob storage is not configured, /api/csv-files will report an error")
			}

			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := server.New(cfg.Blob, lister, cfg.App.Debug)
			logger.Info().Str("addr", addr).Msg("serving csv listing endpoint")
			return srv.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}
