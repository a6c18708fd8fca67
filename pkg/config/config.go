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

package config

import (
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/fault"
	"github.com/karhuops/bridgerc/pkg/naming"
)

// Transform modes a job may declare.
const (
	TransformSingle  = "single"  // one CSV in, one workbook out
	TransformCombine = "combine" // many CSVs in, one workbook with a sheet per input
	TransformReshape = "reshape" // split/merge record reshape, CSV out
)

// Header modes for CSV parsing.
const (
	HeaderFirstRow  = "first_row"
	HeaderSecondRow = "second_row"
)

// Archive policies for destination reconciliation.
const (
	ArchiveAlways   = "always"    // every existing output moves to the archive folder
	ArchiveWhenDone = "when_done" // only outputs whose done field is set move
	ArchiveNever    = "never"     // destination is left alone
)

// Destination kinds.
const (
	DestinationSharePoint = "sharepoint"
	DestinationRemote     = "remote"
)

// 📦 Config is the root configuration shared by every command
type Config struct {
	App        AppConfig        `yaml:"app" json:"app" toml:"app"`
	Remote     RemoteConfig     `yaml:"remote" json:"remote" toml:"remote"`
	SharePoint SharePointConfig `yaml:"sharepoint" json:"sharepoint" toml:"sharepoint"`
	Blob       BlobConfig       `yaml:"blob" json:"blob" toml:"blob"`
	Server     ServerConfig     `yaml:"server" json:"server" toml:"server"`
	Jobs       []JobConfig      `yaml:"jobs" json:"jobs" toml:"jobs"`
}

// AppConfig carries run-wide settings.
type AppConfig struct {
	// Debug switches jobs to their debug destination folders and turns on
	// verbose logging.
	Debug bool `yaml:"debug" json:"debug" toml:"debug"`
	// Timezone names the wall clock for timestamp tokens and schedules.
	Timezone string `yaml:"timezone" json:"timezone" toml:"timezone"`
}

// RemoteConfig locates the remote file store.
type RemoteConfig struct {
	Scheme   string `yaml:"scheme" json:"scheme" toml:"scheme"`
	Host     string `yaml:"host" json:"host" toml:"host"`
	Port     int    `yaml:"port" json:"port" toml:"port"`
	Username string `yaml:"username" json:"username" toml:"username"`
	Password string `yaml:"password" json:"password" toml:"password"`
	// Timezone for history stamps. Defaults to the app timezone.
	Timezone string `yaml:"timezone" json:"timezone" toml:"timezone"`
}

// SharePointConfig locates the document library and its app registration.
type SharePointConfig struct {
	TenantID     string `yaml:"tenant_id" json:"tenant_id" toml:"tenant_id"`
	ClientID     string `yaml:"client_id" json:"client_id" toml:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret" toml:"client_secret"`
	// SiteURL is the full site address, e.g.
	// https://contoso.sharepoint.com/sites/vingo.
	SiteURL string `yaml:"site_url" json:"site_url" toml:"site_url"`
	// DriveName is the document library's display name.
	DriveName string `yaml:"drive_name" json:"drive_name" toml:"drive_name"`
	// BaseURL and TokenURL override the Graph and token endpoints. Tests
	// point them at local fakes; production leaves them empty.
	BaseURL  string `yaml:"base_url" json:"base_url" toml:"base_url"`
	TokenURL string `yaml:"token_url" json:"token_url" toml:"token_url"`
}

// BlobConfig locates the blob container behind the listing endpoint.
type BlobConfig struct {
	ConnectionString string `yaml:"connection_string" json:"connection_string" toml:"connection_string"`
	Container        string `yaml:"container" json:"container" toml:"container"`
	DefaultDirectory string `yaml:"default_directory" json:"default_directory" toml:"default_directory"`
}

// ServerConfig configures the HTTP listing endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" toml:"addr"`
}

// 🗂️ JobConfig describes one scheduled pipeline run
type JobConfig struct {
	Name string `yaml:"name" json:"name" toml:"name"`
	// Schedule is a six-field cron expression (with seconds). Empty means
	// the job only runs on demand.
	Schedule    string            `yaml:"schedule" json:"schedule" toml:"schedule"`
	SourceDir   string            `yaml:"source_dir" json:"source_dir" toml:"source_dir"`
	Pattern     string            `yaml:"pattern" json:"pattern" toml:"pattern"`
	Transform   string            `yaml:"transform" json:"transform" toml:"transform"`
	HeaderMode  string            `yaml:"header_mode" json:"header_mode" toml:"header_mode"`
	StampOutput bool              `yaml:"stamp_output" json:"stamp_output" toml:"stamp_output"`
	Destination DestinationConfig `yaml:"destination" json:"destination" toml:"destination"`
	Archive     ArchiveConfig     `yaml:"archive" json:"archive" toml:"archive"`
	Reshape     *ReshapeConfig    `yaml:"reshape" json:"reshape" toml:"reshape"`
}

// DestinationConfig says where a job's outputs go.
type DestinationConfig struct {
	Kind        string `yaml:"kind" json:"kind" toml:"kind"`
	Folder      string `yaml:"folder" json:"folder" toml:"folder"`
	DebugFolder string `yaml:"debug_folder" json:"debug_folder" toml:"debug_folder"`
	// ArchiveFolder, relative to the target folder, receives stale
	// outputs during reconciliation.
	ArchiveFolder string `yaml:"archive_folder" json:"archive_folder" toml:"archive_folder"`
	// OutputName fixes the output filename for reshape jobs. The
	// timestamp token is prepended.
	OutputName string `yaml:"output_name" json:"output_name" toml:"output_name"`
}

// FolderFor picks the production or debug target folder.
func (d DestinationConfig) FolderFor(debug bool) string {
	if debug && d.DebugFolder != "" {
		return d.DebugFolder
	}
	return d.Folder
}

// ArchiveConfig controls bookkeeping on both sides of a run.
type ArchiveConfig struct {
	Policy    string `yaml:"policy" json:"policy" toml:"policy"`
	DoneField string `yaml:"done_field" json:"done_field" toml:"done_field"`
	// SourceTimestamp prepends the run timestamp when moving consumed
	// inputs to history. Defaults to true.
	SourceTimestamp *bool `yaml:"source_timestamp" json:"source_timestamp" toml:"source_timestamp"`
}

// StampSource reports whether history moves get a timestamp prefix.
func (a ArchiveConfig) StampSource() bool {
	return a.SourceTimestamp == nil || *a.SourceTimestamp
}

// ReshapeConfig overrides the reshape column names. Empty fields keep the
// transform package defaults.
type ReshapeConfig struct {
	KeyColumn        string `yaml:"key_column" json:"key_column" toml:"key_column"`
	TextColumn       string `yaml:"text_column" json:"text_column" toml:"text_column"`
	PositionColumn   string `yaml:"position_column" json:"position_column" toml:"position_column"`
	IDMatch          string `yaml:"id_match" json:"id_match" toml:"id_match"`
	TextMatch        string `yaml:"text_match" json:"text_match" toml:"text_match"`
	NameColumn       string `yaml:"name_column" json:"name_column" toml:"name_column"`
	DefinitionColumn string `yaml:"definition_column" json:"definition_column" toml:"definition_column"`
}

// Job returns the named job.
func (c *Config) Job(name string) (*JobConfig, error) {
	for i := range c.Jobs {
		if c.Jobs[i].Name == name {
			return &c.Jobs[i], nil
		}
	}
	return nil, errors.Errorf("%w: job %q is not configured", fault.ErrConfiguration, name)
}

// Validate applies defaults and rejects configurations the pipeline could
// not run with. It is called by Load; manual Config values should call it
// before use.
func (c *Config) Validate() error {
	if c.App.Timezone == "" {
		c.App.Timezone = naming.DefaultZone
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Remote.Scheme == "" {
		c.Remote.Scheme = "sftp"
	}
	if c.Remote.Port == 0 {
		c.Remote.Port = 22
	}
	if c.Remote.Timezone == "" {
		c.Remote.Timezone = c.App.Timezone
	}

	if len(c.Jobs) > 0 {
		if c.Remote.Host == "" {
			return errors.Errorf("%w: remote.host is required", fault.ErrConfiguration)
		}
		if c.Remote.Username == "" {
			return errors.Errorf("%w: remote.username is required", fault.ErrConfiguration)
		}
		if c.Remote.Password == "" {
			return errors.Errorf("%w: remote.password is required", fault.ErrConfiguration)
		}
	}

	seen := map[string]bool{}
	needsLibrary := false
	for i := range c.Jobs {
		job := &c.Jobs[i]
		if err := job.validate(); err != nil {
			return err
		}
		if seen[job.Name] {
			return errors.Errorf("%w: duplicate job name %q", fault.ErrConfiguration, job.Name)
		}
		seen[job.Name] = true
		if job.Destination.Kind == DestinationSharePoint {
			needsLibrary = true
		}
	}

	if needsLibrary {
		if err := c.SharePoint.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (j *JobConfig) validate() error {
	if j.Name == "" {
		return errors.Errorf("%w: job name is required", fault.ErrConfiguration)
	}
	if j.SourceDir == "" {
		return errors.Errorf("%w: job %q: source_dir is required", fault.ErrConfiguration, j.Name)
	}
	if j.Pattern == "" {
		j.Pattern = "*.csv"
	}

	if j.Transform == "" {
		j.Transform = TransformSingle
	}
	switch j.Transform {
	case TransformSingle, TransformCombine, TransformReshape:
	default:
		return errors.Errorf("%w: job %q: unknown transform %q", fault.ErrConfiguration, j.Name, j.Transform)
	}

	if j.HeaderMode == "" {
		if j.Transform == TransformCombine {
			j.HeaderMode = HeaderSecondRow
		} else {
			j.HeaderMode = HeaderFirstRow
		}
	}
	switch j.HeaderMode {
	case HeaderFirstRow, HeaderSecondRow:
	default:
		return errors.Errorf("%w: job %q: unknown header_mode %q", fault.ErrConfiguration, j.Name, j.HeaderMode)
	}

	if j.Destination.Kind == "" {
		j.Destination.Kind = DestinationSharePoint
	}
	switch j.Destination.Kind {
	case DestinationSharePoint, DestinationRemote:
	default:
		return errors.Errorf("%w: job %q: unknown destination kind %q", fault.ErrConfiguration, j.Name, j.Destination.Kind)
	}
	if j.Destination.Folder == "" {
		return errors.Errorf("%w: job %q: destination.folder is required", fault.ErrConfiguration, j.Name)
	}
	if j.Destination.ArchiveFolder == "" {
		j.Destination.ArchiveFolder = "Arkisto"
	}

	if j.Archive.Policy == "" {
		if j.Destination.Kind == DestinationRemote {
			j.Archive.Policy = ArchiveNever
		} else {
			j.Archive.Policy = ArchiveAlways
		}
	}
	switch j.Archive.Policy {
	case ArchiveAlways, ArchiveWhenDone, ArchiveNever:
	default:
		return errors.Errorf("%w: job %q: unknown archive policy %q", fault.ErrConfiguration, j.Name, j.Archive.Policy)
	}
	if j.Archive.Policy == ArchiveWhenDone && j.Destination.Kind == DestinationRemote {
		return errors.Errorf("%w: job %q: when_done archiving needs a sharepoint destination", fault.ErrConfiguration, j.Name)
	}
	if j.Archive.DoneField == "" {
		j.Archive.DoneField = "Valmis"
	}

	return nil
}

func (s *SharePointConfig) validate() error {
	if s.TenantID == "" {
		return errors.Errorf("%w: sharepoint.tenant_id is required", fault.ErrConfiguration)
	}
	if s.ClientID == "" {
		return errors.Errorf("%w: sharepoint.client_id is required", fault.ErrConfiguration)
	}
	if s.ClientSecret == "" {
		return errors.Errorf("%w: sharepoint.client_secret is required", fault.ErrConfiguration)
	}
	if s.SiteURL == "" {
		return errors.Errorf("%w: sharepoint.site_url is required", fault.ErrConfiguration)
	}
	if s.DriveName == "" {
		return errors.Errorf("%w: sharepoint.drive_name is required", fault.ErrConfiguration)
	}
	return nil
}
