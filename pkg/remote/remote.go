// Package remote abstracts the file store the pipeline pulls exports from.
// Implementations register a Dialer per URL scheme; the pipeline connects
// through the registry so jobs stay agnostic of the transport.
package remote

import (
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/config"
	"github.com/karhuops/bridgerc/pkg/fault"
	"github.com/karhuops/bridgerc/pkg/runlog"
)

// 🔌 Session is one authenticated connection to the remote store.
//
// Paths are resolved against a session working directory, so a job can Cwd
// into its source folder once and address files by bare name afterwards.
// Relative paths may step outside with "..", which the reshape flow uses to
// reach sibling folders. Sessions are not safe for concurrent use; every
// pipeline run dials its own.
type Session interface {
	// 📂 Cwd changes the session working directory. The target must exist
	// and be a directory.
	Cwd(dir string) error

	// 🔍 List returns the names of regular files in the working directory.
	List() ([]string, error)

	// 📥 Get downloads one file into localPath.
	Get(name, localPath string) error

	// 📤 Put uploads the local file under the given remote name.
	Put(localPath, name string) error

	// 🚚 Rename moves a file. Both paths resolve against the working
	// directory; the target must not already exist.
	Rename(oldPath, newPath string) error

	// 🗑️ Remove deletes one file.
	Remove(name string) error

	// 📁 EnsureDir creates a directory, parents included. Existing
	// directories are fine.
	EnsureDir(dir string) error

	// 📜 MoveToHistory moves a consumed input into the history folder
	// under the working directory. A non-empty stamp is prepended to the
	// name so repeated exports never collide.
	MoveToHistory(name, stamp string) error

	// Close tears the connection down. Safe to call twice.
	Close() error
}

// 🏭 Dialer opens sessions for one transport scheme
type Dialer interface {
	// Name returns the scheme this dialer serves (e.g. "sftp").
	Name() string

	// Dial authenticates against the configured host and returns a live
	// session. Connection chatter goes to the run's log buffer.
	Dial(cfg config.RemoteConfig, buf *runlog.Buffer) (Session, error)
}

// 🗺️ dialers maps schemes to registered dialers
var dialers = map[string]Dialer{}

// 📝 RegisterDialer registers a dialer under its scheme. Implementations
// call this from init.
func RegisterDialer(name string, dialer Dialer) {
	dialers[name] = dialer
}

// 🎯 Connect dials the store named by the configuration's scheme.
func Connect(cfg config.RemoteConfig, buf *runlog.Buffer) (Session, error) {
	dialer, ok := dialers[cfg.Scheme]
	if !ok {
		options := []string{}
		for k := range dialers {
			options = append(options, k)
		}
		sort.Strings(options)
		return nil, errors.Errorf("%w: scheme %q is not registered, options: %s",
			fault.ErrConfiguration, cfg.Scheme, strings.Join(options, ", "))
	}
	return dialer.Dial(cfg, buf)
}
