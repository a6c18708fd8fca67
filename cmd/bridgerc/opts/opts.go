package opts

import (
	"context"

	"github.com/karhuops/bridgerc/pkg/config"
)

// 🔧 RootOpts hands the root flag values to subcommands
type RootOpts struct {
	// ConfigFile points at the root --config flag.
	ConfigFile *string
	// Debug points at the root --debug flag.
	Debug *bool
}

// LoadConfig parses and validates the configured file. Commands call this
// inside RunE so the flag values are the parsed ones. The --debug flag
// wins over the file's app.debug setting.
func (o *RootOpts) LoadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, *o.ConfigFile)
	if err != nil {
		return nil, err
	}
	if *o.Debug {
		cfg.App.Debug = true
	}
	return cfg, nil
}
