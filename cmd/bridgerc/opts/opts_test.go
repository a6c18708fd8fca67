package opts_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karhuops/bridgerc/cmd/bridgerc/opts"
)

func TestLoadConfigDebugFlagWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bridgerc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  timezone: Europe/Helsinki\n"), 0o644))

	debug := true
	o := &opts.RootOpts{ConfigFile: &path, Debug: &debug}

	cfg, err := o.LoadConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.App.Debug, "the --debug flag should override the file")
}

func TestLoadConfigKeepsFileDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bridgerc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  debug: true\n"), 0o644))

	debug := false
	o := &opts.RootOpts{ConfigFile: &path, Debug: &debug}

	cfg, err := o.LoadConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.App.Debug, "an unset flag should not clear the file's setting")
}
