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
	"os"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/fault"
)

// 🔌 Parser is the interface for config file parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

// 🗺️ parsers is the list of registered parsers
var parsers []Parser

// Register registers a parser. Parsers register themselves from init().
func Register(p Parser) {
	parsers = append(parsers, p)
}

// GetParser returns a parser that can handle the given file, or nil.
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// Credential references like ${SFTP_PASSWORD} are resolved from the
// environment before parsing so secrets stay out of the file.
var envRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv substitutes ${VAR} references with environment values. Unset
// variables expand to the empty string and fail validation downstream.
func ExpandEnv(data []byte) []byte {
	return envRe.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// 🏭 Load reads, expands, parses and validates the config at path
func Load(ctx context.Context, path string) (*Config, error) {
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("loading config")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("%w: reading config file: %v", fault.ErrConfiguration, err)
	}

	parser := GetParser(path)
	if parser == nil {
		return nil, errors.Errorf("%w: no parser for config file %q", fault.ErrConfiguration, filepath.Base(path))
	}

	cfg, err := parser.Parse(ctx, ExpandEnv(data))
	if err != nil {
		return nil, errors.Errorf("%w: parsing %s: %v", fault.ErrConfiguration, filepath.Base(path), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating %s: %w", filepath.Base(path), err)
	}

	zerolog.Ctx(ctx).Debug().
		Int("jobs", len(cfg.Jobs)).
		Bool("debug", cfg.App.Debug).
		Msg("config loaded")
	return cfg, nil
}
