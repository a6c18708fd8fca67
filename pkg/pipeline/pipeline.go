// Copyright 2025 karhuops Oy
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pipeline runs one configured job end to end: connect, download,
// transform, archive the consumed inputs, reconcile the destination and
// upload. Job differences are configuration, not code; every job runs the
// same state machine.
package pipeline

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/config"
	"github.com/karhuops/bridgerc/pkg/fault"
	"github.com/karhuops/bridgerc/pkg/naming"
	"github.com/karhuops/bridgerc/pkg/remote"
	"github.com/karhuops/bridgerc/pkg/runlog"
	"github.com/karhuops/bridgerc/pkg/sharepoint"
	"github.com/karhuops/bridgerc/pkg/transform"
)

// 🗄️ Library is the destination surface a sharepoint job needs
type Library interface {
	// ListFiles returns the direct children of a folder.
	ListFiles(ctx context.Context, folder string) ([]sharepoint.Item, error)
	// CreateFolderIfNotExists creates the folder only on a typed not-found.
	CreateFolderIfNotExists(ctx context.Context, folder string) error
	// MoveFileToArchive moves one named file into the archive folder.
	MoveFileToArchive(ctx context.Context, sourceFolder, name, archiveFolder string) error
	// UploadFile puts one local file into the folder.
	UploadFile(ctx context.Context, folder, name, localPath string) error
	// ItemFields fetches the custom columns of one item.
	ItemFields(ctx context.Context, itemID string) (map[string]any, error)
}

// DialFunc opens the remote session. Tests inject fakes here.
type DialFunc func(config.RemoteConfig, *runlog.Buffer) (remote.Session, error)

// LibraryFunc builds the destination library client.
type LibraryFunc func(context.Context, config.SharePointConfig, *runlog.Buffer) (Library, error)

// 🔧 Options wires one run
type Options struct {
	// Config is the full application configuration.
	Config *config.Config
	// Job is the job to run.
	Job *config.JobConfig
	// Buffer is the run's log buffer. The pipeline flushes it exactly
	// once, error trace included.
	Buffer *runlog.Buffer
	// Dial opens the remote session. Defaults to the dialer registry.
	Dial DialFunc
	// NewLibrary builds the document library client. Defaults to the
	// Graph client.
	NewLibrary LibraryFunc
	// Now supplies the run's wall clock. Defaults to time.Now.
	Now func() time.Time
}

// 🏭 New builds a pipeline for one job
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, errors.Errorf("config is required")
	}
	if opts.Job == nil {
		return nil, errors.Errorf("job is required")
	}
	if opts.Buffer == nil {
		return nil, errors.Errorf("run log buffer is required")
	}

	if opts.Dial == nil {
		opts.Dial = remote.Connect
	}
	if opts.NewLibrary == nil {
		opts.NewLibrary = func(ctx context.Context, cfg config.SharePointConfig, buf *runlog.Buffer) (Library, error) {
			return sharepoint.New(ctx, cfg, buf)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Pipeline{
		cfg:        opts.Config,
		job:        opts.Job,
		buf:        opts.Buffer,
		dial:       opts.Dial,
		newLibrary: opts.NewLibrary,
		now:        opts.Now,
		state:      StateIdle,
	}, nil
}

// 🎮 Pipeline is one run of one job
type Pipeline struct {
	cfg        *config.Config
	job        *config.JobConfig
	buf        *runlog.Buffer
	dial       DialFunc
	newLibrary LibraryFunc
	now        func() time.Time

	state State
}

// State reports where the run stopped.
func (p *Pipeline) State() State {
	return p.state
}

// artifact is one produced file waiting for upload.
type artifact struct {
	local string
	name  string
}

// Run executes the job. The log buffer is flushed exactly once on every
// path; an error at any state still closes the session and cleans the
// staging directory.
func (p *Pipeline) Run(ctx context.Context) (runErr error) {
	logger := zerolog.Ctx(ctx).With().
		Str("job", p.job.Name).
		Str("run_id", p.buf.RunID()).
		Logger()
	ctx = logger.WithContext(ctx)

	defer func() {
		p.buf.Flush(runErr)
	}()

	if p.cfg.App.Debug {
		p.buf.Logf("----- IN DEBUG MODE -----")
	} else {
		p.buf.Logf("----- IN PRODUCTION MODE -----")
	}

	outStamp, err := naming.Timestamp(p.cfg.App.Timezone, p.now())
	if err != nil {
		return p.fail(err)
	}
	histStamp, err := naming.Timestamp(p.cfg.Remote.Timezone, p.now())
	if err != nil {
		return p.fail(err)
	}

	session, err := p.dial(p.cfg.Remote, p.buf)
	if err != nil {
		return p.fail(err)
	}
	defer func() {
		// Guard for error paths; the happy path closes explicitly.
		if err := session.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing remote session")
		}
	}()
	p.setState(ctx, StateConnected)

	if err := session.Cwd(p.job.SourceDir); err != nil {
		return p.fail(err)
	}
	matched, err := p.discover(session)
	if err != nil {
		return p.fail(err)
	}
	if len(matched) == 0 {
		p.buf.Logf("No input files found in %s", p.job.SourceDir)
		p.setState(ctx, StateDone)
		return nil
	}

	staging, err := os.MkdirTemp("", "bridgerc-"+p.job.Name+"-")
	if err != nil {
		return p.fail(errors.Errorf("creating staging directory: %w", err))
	}
	defer p.cleanStaging(staging)

	for _, name := range matched {
		if err := session.Get(name, filepath.Join(staging, name)); err != nil {
			return p.fail(err)
		}
	}
	p.setState(ctx, StateDownloaded)

	outputs, err := p.convert(staging, matched, outStamp)
	if err != nil {
		return p.fail(err)
	}
	p.setState(ctx, StateConverted)

	stamp := ""
	if p.job.Archive.StampSource() {
		stamp = histStamp
	}
	for _, name := range matched {
		if err := session.MoveToHistory(name, stamp); err != nil {
			return p.fail(err)
		}
	}
	p.setState(ctx, StateArchivedSource)

	switch p.job.Destination.Kind {
	case config.DestinationRemote:
		if err := p.deliverRemote(ctx, session, outputs); err != nil {
			return p.fail(err)
		}
	default:
		if err := p.deliverSharePoint(ctx, outputs); err != nil {
			return p.fail(err)
		}
	}

	if err := session.Close(); err != nil {
		logger.Warn().Err(err).Msg("closing remote session")
	}
	p.setState(ctx, StateDisconnected)

	p.setState(ctx, StateDone)
	return nil
}

// discover lists the source directory and keeps names matching the job's
// pattern, sorted so runs are deterministic.
func (p *Pipeline) discover(session remote.Session) ([]string, error) {
	names, err := session.List()
	if err != nil {
		return nil, err
	}

	matched := []string{}
	for _, name := range names {
		ok, err := doublestar.Match(p.job.Pattern, name)
		if err != nil {
			return nil, errors.Errorf("%w: pattern %q: %v", fault.ErrConfiguration, p.job.Pattern, err)
		}
		if ok {
			matched = append(matched, name)
		}
	}
	sort.Strings(matched)
	return matched, nil
}

// convert dispatches on the job's transform mode and returns the staged
// artifacts.
func (p *Pipeline) convert(staging string, matched []string, outStamp string) ([]artifact, error) {
	read := transform.ReadOptions{HeaderMode: headerMode(p.job.HeaderMode)}

	nameStamp := ""
	if p.job.StampOutput {
		nameStamp = outStamp
	}

	switch p.job.Transform {
	case config.TransformCombine:
		locals := make([]string, len(matched))
		for i, name := range matched {
			locals[i] = filepath.Join(staging, name)
		}
		out, err := transform.CombineMany(locals, staging, transform.CombineOptions{
			Read:  read,
			Stamp: outStamp,
		})
		if err != nil {
			return nil, err
		}
		p.buf.Logf("Converted %d files to %s", len(matched), filepath.Base(out))
		return []artifact{{local: out, name: filepath.Base(out)}}, nil

	case config.TransformReshape:
		outputs := make([]artifact, 0, len(matched))
		for _, name := range matched {
			out, err := p.reshape(staging, name, outStamp)
			if err != nil {
				return nil, err
			}
			p.buf.Logf("Converted %s to %s", name, out.name)
			outputs = append(outputs, out)
		}
		return outputs, nil

	default:
		outputs := make([]artifact, 0, len(matched))
		for _, name := range matched {
			out, err := transform.ConvertSingle(filepath.Join(staging, name), staging, transform.SingleOptions{
				Read:  read,
				Stamp: nameStamp,
			})
			if err != nil {
				return nil, err
			}
			p.buf.Logf("Converted %s to %s", name, filepath.Base(out))
			outputs = append(outputs, artifact{local: out, name: filepath.Base(out)})
		}
		return outputs, nil
	}
}

// reshape runs the split/merge transform on one input and writes the
// processed CSV.
func (p *Pipeline) reshape(staging, name, outStamp string) (artifact, error) {
	read := transform.ReadOptions{HeaderMode: headerMode(p.job.HeaderMode)}

	ds, err := transform.ReadCSVFile(filepath.Join(staging, name), read)
	if err != nil {
		return artifact{}, err
	}

	merged, err := transform.SplitAndMerge(ds, reshapeOptions(p.job.Reshape))
	if err != nil {
		return artifact{}, err
	}

	outName := p.job.Destination.OutputName
	if outName == "" {
		outName = naming.Stem(name) + ".csv"
	}
	if p.job.StampOutput {
		outName = naming.Stamped(outStamp, outName)
	}

	local := filepath.Join(staging, outName)
	if err := transform.WriteCSVFile(local, merged, transform.WriteOptions{}); err != nil {
		return artifact{}, err
	}
	return artifact{local: local, name: outName}, nil
}

// deliverRemote puts artifacts into a directory on the same remote store,
// resolved against the job's source directory.
func (p *Pipeline) deliverRemote(ctx context.Context, session remote.Session, outputs []artifact) error {
	folder := p.job.Destination.FolderFor(p.cfg.App.Debug)

	if err := session.EnsureDir(folder); err != nil {
		return err
	}
	p.setState(ctx, StateReconciledDest)

	for _, out := range outputs {
		if err := session.Put(out.local, path.Join(folder, out.name)); err != nil {
			return err
		}
	}
	p.setState(ctx, StateUploaded)
	return nil
}

// deliverSharePoint reconciles the destination folder, then uploads.
// Reconciliation happens first so a stale output never sits next to the
// fresh one.
func (p *Pipeline) deliverSharePoint(ctx context.Context, outputs []artifact) error {
	folder := p.job.Destination.FolderFor(p.cfg.App.Debug)

	lib, err := p.newLibrary(ctx, p.cfg.SharePoint, p.buf)
	if err != nil {
		return err
	}

	if err := lib.CreateFolderIfNotExists(ctx, folder); err != nil {
		return err
	}
	if err := p.reconcile(ctx, lib, folder); err != nil {
		return err
	}
	p.setState(ctx, StateReconciledDest)

	for _, out := range outputs {
		if err := lib.UploadFile(ctx, folder, out.name, out.local); err != nil {
			return err
		}
	}
	p.setState(ctx, StateUploaded)
	return nil
}

// reconcile moves the folder's existing files into its archive folder,
// honoring the job's archive policy.
func (p *Pipeline) reconcile(ctx context.Context, lib Library, folder string) error {
	if p.job.Archive.Policy == config.ArchiveNever {
		return nil
	}

	archiveFolder := folder + "/" + p.job.Destination.ArchiveFolder
	if err := lib.CreateFolderIfNotExists(ctx, archiveFolder); err != nil {
		return err
	}

	items, err := lib.ListFiles(ctx, folder)
	if err != nil {
		return err
	}

	for _, item := range items {
		if item.IsFolder() {
			continue
		}

		if p.job.Archive.Policy == config.ArchiveWhenDone {
			fields, err := lib.ItemFields(ctx, item.ID)
			if err != nil {
				return err
			}
			if !sharepoint.Done(fields, p.job.Archive.DoneField) {
				continue
			}
		}

		if err := lib.MoveFileToArchive(ctx, folder, item.Name, archiveFolder); err != nil {
			return err
		}
	}
	return nil
}

// cleanStaging removes staged files one by one so a stuck file is named
// in the run log without failing the run.
func (p *Pipeline) cleanStaging(staging string) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		p.buf.Logf("Failed to clean staging directory %s", staging)
		return
	}

	for _, entry := range entries {
		if err := os.Remove(filepath.Join(staging, entry.Name())); err != nil {
			p.buf.Logf("Failed to delete %s", entry.Name())
		}
	}
	_ = os.Remove(staging)
}

func (p *Pipeline) fail(err error) error {
	p.state = StateError
	return err
}

func (p *Pipeline) setState(ctx context.Context, state State) {
	p.state = state
	zerolog.Ctx(ctx).Debug().Str("state", state.String()).Msg("pipeline state")
}

func headerMode(mode string) transform.HeaderMode {
	if mode == config.HeaderSecondRow {
		return transform.HeaderSecondRow
	}
	return transform.HeaderFirstRow
}

func reshapeOptions(cfg *config.ReshapeConfig) transform.ReshapeOptions {
	if cfg == nil {
		return transform.ReshapeOptions{}
	}
	return transform.ReshapeOptions{
		KeyColumn:        cfg.KeyColumn,
		TextColumn:       cfg.TextColumn,
		PositionColumn:   cfg.PositionColumn,
		IDMatch:          cfg.IDMatch,
		TextMatch:        cfg.TextMatch,
		NameColumn:       cfg.NameColumn,
		DefinitionColumn: cfg.DefinitionColumn,
	}
}
