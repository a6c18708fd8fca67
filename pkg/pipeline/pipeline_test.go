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

package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/config"
	"github.com/karhuops/bridgerc/pkg/fault"
	"github.com/karhuops/bridgerc/pkg/naming"
	"github.com/karhuops/bridgerc/pkg/pipeline"
	"github.com/karhuops/bridgerc/pkg/remote"
	"github.com/karhuops/bridgerc/pkg/runlog"
	"github.com/karhuops/bridgerc/pkg/sharepoint"
)

// fixedNow is 22:00:43 in Helsinki on 2025-02-09, so stamps render as
// "2025-02-09_2200".
var fixedNow = time.Date(2025, 2, 9, 20, 0, 43, 0, time.UTC)

// fakeSession is an in-memory remote store. It logs the same trace lines
// the SFTP session logs, so buffer assertions cover the real contract.
type fakeSession struct {
	files   map[string][]byte
	dirs    map[string]bool
	wd      string
	buf     *runlog.Buffer
	listErr error
	closed  int
}

func newFakeSession(dirs ...string) *fakeSession {
	s := &fakeSession{
		files: map[string][]byte{},
		dirs:  map[string]bool{},
		wd:    ".",
	}
	for _, dir := range dirs {
		s.dirs[dir] = true
	}
	return s
}

func (s *fakeSession) dial(cfg config.RemoteConfig, buf *runlog.Buffer) (remote.Session, error) {
	s.buf = buf
	buf.Logf("Connection to %s OK", cfg.Host)
	return s, nil
}

func (s *fakeSession) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.wd, p)
}

func (s *fakeSession) Cwd(dir string) error {
	target := s.resolve(dir)
	if !s.dirs[target] {
		return errors.Errorf("%w: changing directory to %s: no such directory", fault.ErrTransfer, target)
	}
	s.wd = target
	return nil
}

func (s *fakeSession) List() ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}

	names := []string{}
	for key := range s.files {
		if path.Dir(key) == s.wd {
			names = append(names, path.Base(key))
		}
	}
	return names, nil
}

func (s *fakeSession) Get(name, localPath string) error {
	data, ok := s.files[s.resolve(name)]
	if !ok {
		return errors.Errorf("%w: opening %s: no such file", fault.ErrTransfer, s.resolve(name))
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return errors.Errorf("%w: creating %s: %v", fault.ErrTransfer, localPath, err)
	}
	s.buf.Logf("Downloaded %s", name)
	return nil
}

func (s *fakeSession) Put(localPath, name string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Errorf("%w: opening %s: %v", fault.ErrUpload, localPath, err)
	}
	s.files[s.resolve(name)] = data
	s.buf.Logf("Uploaded %s", name)
	return nil
}

func (s *fakeSession) Rename(oldPath, newPath string) error {
	src := s.resolve(oldPath)
	data, ok := s.files[src]
	if !ok {
		return errors.Errorf("%w: renaming %s: no such file", fault.ErrTransfer, src)
	}
	delete(s.files, src)
	s.files[s.resolve(newPath)] = data
	s.buf.Logf("Moved/Renamed %s to %s", oldPath, newPath)
	return nil
}

func (s *fakeSession) Remove(name string) error {
	delete(s.files, s.resolve(name))
	s.buf.Logf("Removed %s", name)
	return nil
}

func (s *fakeSession) EnsureDir(dir string) error {
	s.dirs[s.resolve(dir)] = true
	return nil
}

func (s *fakeSession) MoveToHistory(name, stamp string) error {
	if err := s.EnsureDir("history"); err != nil {
		return err
	}
	newName := name
	if stamp != "" {
		newName = naming.Stamped(stamp, name)
	}
	return s.Rename(name, path.Join("history", newName))
}

func (s *fakeSession) Close() error {
	if s.closed > 0 {
		s.closed++
		return nil
	}
	s.closed++
	s.buf.Logf("Connection closed")
	return nil
}

// fakeLibrary records destination calls in order.
type fakeLibrary struct {
	items   map[string][]sharepoint.Item
	fields  map[string]map[string]any
	uploads map[string][]byte
	calls   []string
	buf     *runlog.Buffer
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		items:   map[string][]sharepoint.Item{},
		fields:  map[string]map[string]any{},
		uploads: map[string][]byte{},
	}
}

func (l *fakeLibrary) factory(ctx context.Context, cfg config.SharePointConfig, buf *runlog.Buffer) (pipeline.Library, error) {
	l.buf = buf
	return l, nil
}

func (l *fakeLibrary) ListFiles(ctx context.Context, folder string) ([]sharepoint.Item, error) {
	l.calls = append(l.calls, "list "+folder)
	return l.items[folder], nil
}

func (l *fakeLibrary) CreateFolderIfNotExists(ctx context.Context, folder string) error {
	l.calls = append(l.calls, "create "+folder)
	return nil
}

func (l *fakeLibrary) MoveFileToArchive(ctx context.Context, sourceFolder, name, archiveFolder string) error {
	l.calls = append(l.calls, fmt.Sprintf("move %s/%s to %s", sourceFolder, name, archiveFolder))
	l.buf.Logf("Moved/Renamed %s to %s", name, archiveFolder)
	return nil
}

func (l *fakeLibrary) UploadFile(ctx context.Context, folder, name, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Errorf("%w: opening %s: %v", fault.ErrUpload, localPath, err)
	}
	l.calls = append(l.calls, fmt.Sprintf("upload %s/%s", folder, name))
	l.uploads[folder+"/"+name] = data
	l.buf.Logf("Uploaded %s to %s", name, folder)
	return nil
}

func (l *fakeLibrary) ItemFields(ctx context.Context, itemID string) (map[string]any, error) {
	l.calls = append(l.calls, "fields "+itemID)
	return l.fields[itemID], nil
}

func singleJobConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Remote: config.RemoteConfig{
			Scheme:   "fake",
			Host:     "files.example.com",
			Username: "vingo",
			Password: "secret",
		},
		SharePoint: config.SharePointConfig{
			TenantID:     "tenant",
			ClientID:     "app",
			ClientSecret: "secret",
			SiteURL:      "https://sharepoint.example.com/sites/vingo",
			DriveName:    "Tilaukset",
		},
		Jobs: []config.JobConfig{
			{
				Name:      "vantaa-liitteet",
				SourceDir: "exports",
				Pattern:   "*.csv",
				Transform: config.TransformSingle,
				Destination: config.DestinationConfig{
					Kind:   config.DestinationSharePoint,
					Folder: "Liitteet",
				},
				Archive: config.ArchiveConfig{Policy: config.ArchiveAlways},
			},
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// sink at info level drops the per-line debug echo, so everything it
// captures is a consolidated flush record.
func newSink() (*bytes.Buffer, zerolog.Logger) {
	out := &bytes.Buffer{}
	return out, zerolog.New(out).Level(zerolog.InfoLevel)
}

func decodeRecords(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()

	records := []map[string]any{}
	dec := json.NewDecoder(out)
	for dec.More() {
		rec := map[string]any{}
		require.NoError(t, dec.Decode(&rec))
		records = append(records, rec)
	}
	return records
}

func lineIndex(lines []string, substr string) int {
	for i, line := range lines {
		if strings.Contains(line, substr) {
			return i
		}
	}
	return -1
}

func countContains(lines []string, substr string) int {
	n := 0
	for _, line := range lines {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func TestRunSingleJobEndToEnd(t *testing.T) {
	cfg := singleJobConfig(t)

	session := newFakeSession("exports")
	session.files["exports/tilaus20250209220043.csv"] = []byte("Tilaus;Summa\n42;19,90\n7;0,50\n")

	lib := newFakeLibrary()
	out, sink := newSink()
	buf := runlog.New("vantaa-liitteet", sink)

	p, err := pipeline.New(pipeline.Options{
		Config:     cfg,
		Job:        &cfg.Jobs[0],
		Buffer:     buf,
		Dial:       session.dial,
		NewLibrary: lib.factory,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, pipeline.StateDone, p.State())

	// The workbook reached the destination folder, stamp stripped from
	// the name.
	workbook, ok := lib.uploads["Liitteet/tilaus.xlsx"]
	require.True(t, ok, "expected an upload under Liitteet/tilaus.xlsx, got %v", lib.calls)

	// Both data rows survive the conversion, with the checkbox and status
	// columns appended after the originals.
	wb, err := excelize.OpenReader(bytes.NewReader(workbook))
	require.NoError(t, err, "uploaded bytes should be a readable workbook")
	defer wb.Close()
	rows, err := wb.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two data rows")
	assert.Equal(t, []string{"Tilaus", "Summa", "Käsitelty", "Tila"}, rows[0])
	assert.Equal(t, "42", rows[1][0])
	assert.Equal(t, "0.5", rows[2][1])

	// The consumed input moved to history with the run stamp.
	_, stillThere := session.files["exports/tilaus20250209220043.csv"]
	assert.False(t, stillThere, "consumed input must leave the source directory")
	_, moved := session.files["exports/history/2025-02-09_2200_tilaus20250209220043.csv"]
	assert.True(t, moved, "consumed input must land in history with the stamp prefix")

	// One line per step, in pipeline order.
	lines := buf.Lines()
	idxDownloaded := lineIndex(lines, "Downloaded tilaus20250209220043.csv")
	idxConverted := lineIndex(lines, "Converted tilaus20250209220043.csv to tilaus.xlsx")
	idxMoved := lineIndex(lines, "Moved/Renamed")
	idxUploaded := lineIndex(lines, "Uploaded tilaus.xlsx")
	require.GreaterOrEqual(t, idxDownloaded, 0, "lines: %v", lines)
	require.GreaterOrEqual(t, idxConverted, 0, "lines: %v", lines)
	require.GreaterOrEqual(t, idxMoved, 0, "lines: %v", lines)
	require.GreaterOrEqual(t, idxUploaded, 0, "lines: %v", lines)
	assert.Less(t, idxDownloaded, idxConverted)
	assert.Less(t, idxConverted, idxMoved)
	assert.Less(t, idxMoved, idxUploaded)
	assert.Equal(t, 1, countContains(lines, "Downloaded"))
	assert.Equal(t, 1, countContains(lines, "Converted"))
	assert.Equal(t, 1, countContains(lines, "Moved/Renamed"))

	// Exactly one consolidated record, at info.
	records := decodeRecords(t, out)
	require.Len(t, records, 1)
	assert.Equal(t, "info", records[0]["level"])
	assert.True(t, buf.Flushed())
	assert.GreaterOrEqual(t, session.closed, 1)
}

func TestRunWithoutInputsIsCleanNoOp(t *testing.T) {
	cfg := singleJobConfig(t)

	session := newFakeSession("exports")
	lib := newFakeLibrary()
	out, sink := newSink()
	buf := runlog.New("vantaa-liitteet", sink)

	p, err := pipeline.New(pipeline.Options{
		Config:     cfg,
		Job:        &cfg.Jobs[0],
		Buffer:     buf,
		Dial:       session.dial,
		NewLibrary: lib.factory,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, pipeline.StateDone, p.State())
	assert.Empty(t, lib.calls, "an empty source directory must not touch the destination")
	assert.Contains(t, strings.Join(buf.Lines(), "\n"), "No input files found in exports")

	records := decodeRecords(t, out)
	require.Len(t, records, 1)
	assert.Equal(t, "info", records[0]["level"])
	assert.GreaterOrEqual(t, session.closed, 1, "the session must close on a no-op run")
}

func TestRunFlushesOnceWithTraceOnError(t *testing.T) {
	cfg := singleJobConfig(t)

	session := newFakeSession("exports")
	session.listErr = errors.Errorf("%w: listing exports: connection reset", fault.ErrTransfer)

	out, sink := newSink()
	buf := runlog.New("vantaa-liitteet", sink)

	p, err := pipeline.New(pipeline.Options{
		Config: cfg,
		Job:    &cfg.Jobs[0],
		Buffer: buf,
		Dial:   session.dial,
		NewLibrary: newFakeLibrary().factory,
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	runErr := p.Run(context.Background())
	require.Error(t, runErr)
	assert.True(t, errors.Is(runErr, fault.ErrTransfer))
	assert.Equal(t, pipeline.StateError, p.State())

	assert.GreaterOrEqual(t, session.closed, 1, "teardown must run on the error path")
	assert.True(t, buf.Flushed())

	records := decodeRecords(t, out)
	require.Len(t, records, 1)
	assert.Equal(t, "error", records[0]["level"])
	msg, _ := records[0]["message"].(string)
	assert.Contains(t, msg, "--- ERROR TRACE ---")
	assert.Contains(t, msg, "connection reset")
}

func TestRunArchivesExistingOutputsBeforeUpload(t *testing.T) {
	cfg := singleJobConfig(t)

	session := newFakeSession("exports")
	session.files["exports/tilaus20250209220043.csv"] = []byte("Tilaus;Summa\n42;19,90\n")

	lib := newFakeLibrary()
	lib.items["Liitteet"] = []sharepoint.Item{
		{ID: "old1", Name: "tilaus.xlsx"},
		{ID: "dir1", Name: "Arkisto", Folder: &sharepoint.FolderFacet{}},
	}

	_, sink := newSink()
	buf := runlog.New("vantaa-liitteet", sink)

	p, err := pipeline.New(pipeline.Options{
		Config:     cfg,
		Job:        &cfg.Jobs[0],
		Buffer:     buf,
		Dial:       session.dial,
		NewLibrary: lib.factory,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	moveIdx := -1
	uploadIdx := -1
	for i, call := range lib.calls {
		if strings.HasPrefix(call, "move Liitteet/tilaus.xlsx") {
			moveIdx = i
		}
		if strings.HasPrefix(call, "upload ") {
			uploadIdx = i
		}
	}
	require.GreaterOrEqual(t, moveIdx, 0, "calls: %v", lib.calls)
	require.GreaterOrEqual(t, uploadIdx, 0, "calls: %v", lib.calls)
	assert.Less(t, moveIdx, uploadIdx, "stale outputs move to the archive before the fresh upload")

	for _, call := range lib.calls {
		assert.NotContains(t, call, "move Liitteet/Arkisto", "folders are never archive candidates")
	}
}

func TestRunWhenDoneArchivesOnlyDoneItems(t *testing.T) {
	cfg := singleJobConfig(t)
	cfg.Jobs[0].Archive.Policy = config.ArchiveWhenDone

	session := newFakeSession("exports")
	session.files["exports/tilaus20250209220043.csv"] = []byte("Tilaus;Summa\n42;19,90\n")

	lib := newFakeLibrary()
	lib.items["Liitteet"] = []sharepoint.Item{
		{ID: "done1", Name: "viikko6.xlsx"},
		{ID: "pending1", Name: "viikko7.xlsx"},
	}
	lib.fields["done1"] = map[string]any{"Valmis": true}
	lib.fields["pending1"] = map[string]any{"Valmis": false}

	_, sink := newSink()
	buf := runlog.New("vantaa-liitteet", sink)

	p, err := pipeline.New(pipeline.Options{
		Config:     cfg,
		Job:        &cfg.Jobs[0],
		Buffer:     buf,
		Dial:       session.dial,
		NewLibrary: lib.factory,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	joined := strings.Join(lib.calls, "\n")
	assert.Contains(t, joined, "move Liitteet/viikko6.xlsx")
	assert.NotContains(t, joined, "move Liitteet/viikko7.xlsx", "a pending item stays in place")
}

func TestRunReshapeJobDeliversToRemote(t *testing.T) {
	cfg := &config.Config{
		Remote: config.RemoteConfig{
			Scheme:   "fake",
			Host:     "files.example.com",
			Username: "vingo",
			Password: "secret",
		},
		Jobs: []config.JobConfig{
			{
				Name:        "kaatopaikat",
				SourceDir:   "exports/kaatop",
				Pattern:     "TAPKaatop*.csv",
				Transform:   config.TransformReshape,
				StampOutput: true,
				Destination: config.DestinationConfig{
					Kind:       config.DestinationRemote,
					Folder:     "../PROCESSED",
					OutputName: "TAPKaatop_PROCESSED.csv",
				},
				Archive: config.ArchiveConfig{SourceTimestamp: boolPtr(false)},
			},
		},
	}
	require.NoError(t, cfg.Validate())

	session := newFakeSession("exports/kaatop")
	session.files["exports/kaatop/TAPKaatop20250209220043.csv"] = []byte(
		"COMKey;COMPos;COMText\nCOMKey;COMPos;COMText\nxID;1;A\nxTEXT;1;desc\nxID;2;B\n")

	_, sink := newSink()
	buf := runlog.New("kaatopaikat", sink)

	p, err := pipeline.New(pipeline.Options{
		Config: cfg,
		Job:    &cfg.Jobs[0],
		Buffer: buf,
		Dial:   session.dial,
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, pipeline.StateDone, p.State())

	processed, ok := session.files["exports/PROCESSED/2025-02-09_2200_TAPKaatop_PROCESSED.csv"]
	require.True(t, ok, "files: %v", keysOf(session.files))
	content := string(processed)
	assert.Contains(t, content, "TAPKaatop;TAPKaatopDefinition")
	assert.Contains(t, content, "A;desc")
	assert.NotContains(t, content, ";2;", "unmatched positions are dropped")

	// History move without a stamp prefix for this job.
	_, moved := session.files["exports/kaatop/history/TAPKaatop20250209220043.csv"]
	assert.True(t, moved, "files: %v", keysOf(session.files))
}

func TestNewValidatesOptions(t *testing.T) {
	cfg := singleJobConfig(t)
	_, sink := newSink()
	buf := runlog.New("x", sink)

	tests := []struct {
		name        string
		opts        pipeline.Options
		errContains string
	}{
		{
			name:        "missing_config",
			opts:        pipeline.Options{Job: &cfg.Jobs[0], Buffer: buf},
			errContains: "config is required",
		},
		{
			name:        "missing_job",
			opts:        pipeline.Options{Config: cfg, Buffer: buf},
			errContains: "job is required",
		},
		{
			name:        "missing_buffer",
			opts:        pipeline.Options{Config: cfg, Job: &cfg.Jobs[0]},
			errContains: "buffer is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.New(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestRunnerRunAllCollectsErrors(t *testing.T) {
	cfg := singleJobConfig(t)
	second := cfg.Jobs[0]
	second.Name = "kontrolli-pks"
	cfg.Jobs = append(cfg.Jobs, second)

	logger := zerolog.Nop()
	runner := pipeline.NewRunner(cfg, &logger, false)
	runner.Dial = func(config.RemoteConfig, *runlog.Buffer) (remote.Session, error) {
		return nil, errors.Errorf("%w: dialing files.example.com: refused", fault.ErrConnection)
	}

	err := runner.RunAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vantaa-liitteet")
	assert.Contains(t, err.Error(), "kontrolli-pks", "a failed job must not stop the rest")
}

func TestRunnerRunJobUnknownName(t *testing.T) {
	cfg := singleJobConfig(t)
	logger := zerolog.Nop()
	runner := pipeline.NewRunner(cfg, &logger, false)

	err := runner.RunJob(context.Background(), "olematon")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrConfiguration))
}

func TestRunnerRunAllSequentialSuccess(t *testing.T) {
	cfg := singleJobConfig(t)

	session := newFakeSession("exports")
	logger := zerolog.Nop()
	runner := pipeline.NewRunner(cfg, &logger, false)
	runner.Dial = session.dial
	runner.NewLibrary = newFakeLibrary().factory

	require.NoError(t, runner.RunAll(context.Background()))
}

func boolPtr(v bool) *bool {
	return &v
}

func keysOf(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
