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

package transform

import (
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/fault"
)

// ReshapeOptions parameterize SplitAndMerge. Empty fields keep the
// receiving-site export defaults.
type ReshapeOptions struct {
	KeyColumn        string // discriminator column, default "COMKey"
	TextColumn       string // value column, default "COMText"
	PositionColumn   string // join key, default "COMPos"
	IDMatch          string // substring marking name rows, default "ID"
	TextMatch        string // substring marking definition rows, default "TEXT"
	NameColumn       string // output name column, default "TAPKaatop"
	DefinitionColumn string // output definition column, default "TAPKaatopDefinition"
}

func (o *ReshapeOptions) defaults() {
	if o.KeyColumn == "" {
		o.KeyColumn = "COMKey"
	}
	if o.TextColumn == "" {
		o.TextColumn = "COMText"
	}
	if o.PositionColumn == "" {
		o.PositionColumn = "COMPos"
	}
	if o.IDMatch == "" {
		o.IDMatch = "ID"
	}
	if o.TextMatch == "" {
		o.TextMatch = "TEXT"
	}
	if o.NameColumn == "" {
		o.NameColumn = "TAPKaatop"
	}
	if o.DefinitionColumn == "" {
		o.DefinitionColumn = "TAPKaatopDefinition"
	}
}

// SplitAndMerge reshapes a key/value export into name/definition records.
//
// The first data row is dropped (the export repeats its header there).
// Rows whose key contains IDMatch carry names, rows whose key contains
// TextMatch carry definitions; both sides join on the position column and
// positions present on only one side are dropped. When a position repeats
// on the definition side the first occurrence wins. The position column
// does not survive into the result.
func SplitAndMerge(ds *Dataset, opts ReshapeOptions) (*Dataset, error) {
	opts.defaults()

	for _, col := range []string{opts.KeyColumn, opts.TextColumn, opts.PositionColumn} {
		if !ds.HasColumn(col) {
			return nil, errors.Errorf("%w: reshape input is missing column %q", fault.ErrTransform, col)
		}
	}

	rows := ds.Rows
	if len(rows) > 0 {
		rows = rows[1:]
	}

	definitions := map[string]any{}
	for _, row := range rows {
		if !strings.Contains(fmt.Sprint(row[opts.KeyColumn]), opts.TextMatch) {
			continue
		}
		pos := fmt.Sprint(row[opts.PositionColumn])
		if _, ok := definitions[pos]; !ok {
			definitions[pos] = row[opts.TextColumn]
		}
	}

	out := &Dataset{Columns: []string{opts.NameColumn, opts.DefinitionColumn}}
	for _, row := range rows {
		if !strings.Contains(fmt.Sprint(row[opts.KeyColumn]), opts.IDMatch) {
			continue
		}
		pos := fmt.Sprint(row[opts.PositionColumn])
		definition, ok := definitions[pos]
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, map[string]any{
			opts.NameColumn:       row[opts.TextColumn],
			opts.DefinitionColumn: definition,
		})
	}

	return out, nil
}
