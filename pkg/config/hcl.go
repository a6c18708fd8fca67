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
	"context"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// HCL decodes into a dedicated schema; the struct tags the model carries
// for YAML/TOML/JSON do not drive gohcl.
type hclJob struct {
	Name        string  `hcl:"name,label"`
	Schedule    *string `hcl:"schedule,optional"`
	SourceDir   string  `hcl:"source_dir"`
	Pattern     *string `hcl:"pattern,optional"`
	Transform   *string `hcl:"transform,optional"`
	HeaderMode  *string `hcl:"header_mode,optional"`
	StampOutput *bool   `hcl:"stamp_output,optional"`

	Destination struct {
		Kind          *string `hcl:"kind,optional"`
		Folder        string  `hcl:"folder"`
		DebugFolder   *string `hcl:"debug_folder,optional"`
		ArchiveFolder *string `hcl:"archive_folder,optional"`
		OutputName    *string `hcl:"output_name,optional"`
	} `hcl:"destination,block"`

	Archive *struct {
		Policy          *string `hcl:"policy,optional"`
		DoneField       *string `hcl:"done_field,optional"`
		SourceTimestamp *bool   `hcl:"source_timestamp,optional"`
	} `hcl:"archive,block"`

	Reshape *struct {
		KeyColumn        *string `hcl:"key_column,optional"`
		TextColumn       *string `hcl:"text_column,optional"`
		PositionColumn   *string `hcl:"position_column,optional"`
		IDMatch          *string `hcl:"id_match,optional"`
		TextMatch        *string `hcl:"text_match,optional"`
		NameColumn       *string `hcl:"name_column,optional"`
		DefinitionColumn *string `hcl:"definition_column,optional"`
	} `hcl:"reshape,block"`
}

type hclConfig struct {
	App *struct {
		Debug    *bool   `hcl:"debug,optional"`
		Timezone *string `hcl:"timezone,optional"`
	} `hcl:"app,block"`

	Remote *struct {
		Scheme   *string `hcl:"scheme,optional"`
		Host     string  `hcl:"host"`
		Port     *int    `hcl:"port,optional"`
		Username string  `hcl:"username"`
		Password string  `hcl:"password"`
		Timezone *string `hcl:"timezone,optional"`
	} `hcl:"remote,block"`

	SharePoint *struct {
		TenantID     string  `hcl:"tenant_id"`
		ClientID     string  `hcl:"client_id"`
		ClientSecret string  `hcl:"client_secret"`
		SiteURL      string  `hcl:"site_url"`
		DriveName    string  `hcl:"drive_name"`
		BaseURL      *string `hcl:"base_url,optional"`
		TokenURL     *string `hcl:"token_url,optional"`
	} `hcl:"sharepoint,block"`

	Blob *struct {
		ConnectionString string  `hcl:"connection_string"`
		Container        string  `hcl:"container"`
		DefaultDirectory *string `hcl:"default_directory,optional"`
	} `hcl:"blob,block"`

	Server *struct {
		Addr *string `hcl:"addr,optional"`
	} `hcl:"server,block"`

	Jobs []hclJob `hcl:"job,block"`
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg := &Config{}

	if hclCfg.App != nil {
		cfg.App.Debug = boolOr(hclCfg.App.Debug, false)
		cfg.App.Timezone = strOr(hclCfg.App.Timezone, "")
	}
	if hclCfg.Remote != nil {
		cfg.Remote = RemoteConfig{
			Scheme:   strOr(hclCfg.Remote.Scheme, ""),
			Host:     hclCfg.Remote.Host,
			Port:     intOr(hclCfg.Remote.Port, 0),
			Username: hclCfg.Remote.Username,
			Password: hclCfg.Remote.Password,
			Timezone: strOr(hclCfg.Remote.Timezone, ""),
		}
	}
	if hclCfg.SharePoint != nil {
		cfg.SharePoint = SharePointConfig{
			TenantID:     hclCfg.SharePoint.TenantID,
			ClientID:     hclCfg.SharePoint.ClientID,
			ClientSecret: hclCfg.SharePoint.ClientSecret,
			SiteURL:      hclCfg.SharePoint.SiteURL,
			DriveName:    hclCfg.SharePoint.DriveName,
			BaseURL:      strOr(hclCfg.SharePoint.BaseURL, ""),
			TokenURL:     strOr(hclCfg.SharePoint.TokenURL, ""),
		}
	}
	if hclCfg.Blob != nil {
		cfg.Blob = BlobConfig{
			ConnectionString: hclCfg.Blob.ConnectionString,
			Container:        hclCfg.Blob.Container,
			DefaultDirectory: strOr(hclCfg.Blob.DefaultDirectory, ""),
		}
	}
	if hclCfg.Server != nil {
		cfg.Server.Addr = strOr(hclCfg.Server.Addr, "")
	}

	for _, hj := range hclCfg.Jobs {
		job := JobConfig{
			Name:        hj.Name,
			Schedule:    strOr(hj.Schedule, ""),
			SourceDir:   hj.SourceDir,
			Pattern:     strOr(hj.Pattern, ""),
			Transform:   strOr(hj.Transform, ""),
			HeaderMode:  strOr(hj.HeaderMode, ""),
			StampOutput: boolOr(hj.StampOutput, false),
			Destination: DestinationConfig{
				Kind:          strOr(hj.Destination.Kind, ""),
				Folder:        hj.Destination.Folder,
				DebugFolder:   strOr(hj.Destination.DebugFolder, ""),
				ArchiveFolder: strOr(hj.Destination.ArchiveFolder, ""),
				OutputName:    strOr(hj.Destination.OutputName, ""),
			},
		}
		if hj.Archive != nil {
			job.Archive = ArchiveConfig{
				Policy:          strOr(hj.Archive.Policy, ""),
				DoneField:       strOr(hj.Archive.DoneField, ""),
				SourceTimestamp: hj.Archive.SourceTimestamp,
			}
		}
		if hj.Reshape != nil {
			job.Reshape = &ReshapeConfig{
				KeyColumn:        strOr(hj.Reshape.KeyColumn, ""),
				TextColumn:       strOr(hj.Reshape.TextColumn, ""),
				PositionColumn:   strOr(hj.Reshape.PositionColumn, ""),
				IDMatch:          strOr(hj.Reshape.IDMatch, ""),
				TextMatch:        strOr(hj.Reshape.TextMatch, ""),
				NameColumn:       strOr(hj.Reshape.NameColumn, ""),
				DefinitionColumn: strOr(hj.Reshape.DefinitionColumn, ""),
			}
		}
		cfg.Jobs = append(cfg.Jobs, job)
	}

	return cfg, nil
}

func strOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
