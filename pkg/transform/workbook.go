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
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/fault"
	"github.com/karhuops/bridgerc/pkg/naming"
)

// The default worksheet every new workbook starts with.
const defaultSheet = "Sheet1"

// Excel "Good" style: green fill, dark green text.
const (
	doneFillColor = "C6EFCE"
	doneFontColor = "006100"
)

// AnnotateOptions name the review columns appended to every sheet. Empty
// fields keep the Finnish defaults the reviewers work with.
type AnnotateOptions struct {
	CheckboxHeader string // default "Käsitelty"
	StatusHeader   string // default "Tila"
	DoneValue      string // default "Valmis"
	PendingValue   string // default "Kesken"
}

func (o *AnnotateOptions) defaults() {
	if o.CheckboxHeader == "" {
		o.CheckboxHeader = "Käsitelty"
	}
	if o.StatusHeader == "" {
		o.StatusHeader = "Tila"
	}
	if o.DoneValue == "" {
		o.DoneValue = "Valmis"
	}
	if o.PendingValue == "" {
		o.PendingValue = "Kesken"
	}
}

// SingleOptions control a one-CSV conversion.
type SingleOptions struct {
	Read     ReadOptions
	Annotate AnnotateOptions
	// Stamp, when set, prefixes the output filename.
	Stamp string
}

// CombineOptions control a many-CSVs-into-one-workbook conversion.
type CombineOptions struct {
	Read     ReadOptions
	Annotate AnnotateOptions
	// Stamp names the workbook together with the first input's prefix.
	Stamp string
}

// ConvertSingle converts one CSV export into a single-sheet workbook in
// outDir and returns the workbook path.
func ConvertSingle(path, outDir string, opts SingleOptions) (string, error) {
	ds, err := ReadCSVFile(path, opts.Read)
	if err != nil {
		return "", errors.Errorf("converting %s: %w", filepath.Base(path), err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, defaultSheet, ds); err != nil {
		return "", errors.Errorf("converting %s: %w", filepath.Base(path), err)
	}
	if err := annotateSheet(f, defaultSheet, ds, opts.Annotate); err != nil {
		return "", errors.Errorf("converting %s: %w", filepath.Base(path), err)
	}

	out := filepath.Join(outDir, naming.SingleWorkbookName(filepath.Base(path), opts.Stamp))
	if err := f.SaveAs(out); err != nil {
		return "", errors.Errorf("%w: saving %s: %v", fault.ErrTransform, out, err)
	}
	return out, nil
}

// CombineMany converts several CSV exports into one workbook with a sheet
// per input. The workbook is named after the first input's prefix and the
// stamp; sheet titles come from each input's remainder. Any input failing
// to convert aborts the whole combine.
func CombineMany(paths []string, outDir string, opts CombineOptions) (string, error) {
	if len(paths) == 0 {
		return "", errors.Errorf("%w: no input files to combine", fault.ErrTransform)
	}

	prefix := naming.Parse(filepath.Base(paths[0])).Prefix
	out := filepath.Join(outDir, naming.CombinedWorkbookName(prefix, opts.Stamp))

	f := excelize.NewFile()
	defer f.Close()

	used := map[string]bool{}
	for i, path := range paths {
		base := filepath.Base(path)

		ds, err := ReadCSVFile(path, opts.Read)
		if err != nil {
			return "", errors.Errorf("combining %s: %w", base, err)
		}

		sheet := uniqueSheetName(naming.Parse(base).SheetName(), used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return "", errors.Errorf("%w: renaming sheet for %s: %v", fault.ErrTransform, base, err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return "", errors.Errorf("%w: adding sheet for %s: %v", fault.ErrTransform, base, err)
			}
		}

		if err := writeSheet(f, sheet, ds); err != nil {
			return "", errors.Errorf("combining %s: %w", base, err)
		}
		if err := annotateSheet(f, sheet, ds, opts.Annotate); err != nil {
			return "", errors.Errorf("combining %s: %w", base, err)
		}
	}

	if err := f.SaveAs(out); err != nil {
		return "", errors.Errorf("%w: saving %s: %v", fault.ErrTransform, out, err)
	}
	return out, nil
}

// Worksheet titles cap at 31 characters and reject a few path characters.
func sanitizeSheetName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	if len(clean) > 31 {
		clean = clean[:31]
	}
	return clean
}

func uniqueSheetName(name string, used map[string]bool) string {
	base := sanitizeSheetName(name)
	candidate := base
	for n := 2; used[candidate]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		if len(base)+len(suffix) > 31 {
			candidate = base[:31-len(suffix)] + suffix
		} else {
			candidate = base + suffix
		}
	}
	used[candidate] = true
	return candidate
}

// writeSheet writes the dataset onto sheet, header in row 1.
func writeSheet(f *excelize.File, sheet string, ds *Dataset) error {
	for j, col := range ds.Columns {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return errors.Errorf("%w: header cell for column %d: %v", fault.ErrTransform, j+1, err)
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return errors.Errorf("%w: writing header %q: %v", fault.ErrTransform, col, err)
		}
	}

	for i, row := range ds.Rows {
		for j, col := range ds.Columns {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return errors.Errorf("%w: cell (%d,%d): %v", fault.ErrTransform, j+1, i+2, err)
			}
			if err := f.SetCellValue(sheet, cell, row[col]); err != nil {
				return errors.Errorf("%w: writing cell %s: %v", fault.ErrTransform, cell, err)
			}
		}
	}

	return nil
}

// annotateSheet appends the review columns: a cell-linked checkbox right
// after the data and a status column computed by formula from it, with
// finished rows highlighted. The status column sits at columnCount+2, the
// checkbox at columnCount+1.
func annotateSheet(f *excelize.File, sheet string, ds *Dataset, opts AnnotateOptions) error {
	opts.defaults()

	cbCol := len(ds.Columns) + 1
	stCol := len(ds.Columns) + 2

	cbHeader, err := excelize.CoordinatesToCellName(cbCol, 1)
	if err != nil {
		return errors.Errorf("%w: checkbox header cell: %v", fault.ErrTransform, err)
	}
	if err := f.SetCellValue(sheet, cbHeader, opts.CheckboxHeader); err != nil {
		return errors.Errorf("%w: writing checkbox header: %v", fault.ErrTransform, err)
	}
	stHeader, err := excelize.CoordinatesToCellName(stCol, 1)
	if err != nil {
		return errors.Errorf("%w: status header cell: %v", fault.ErrTransform, err)
	}
	if err := f.SetCellValue(sheet, stHeader, opts.StatusHeader); err != nil {
		return errors.Errorf("%w: writing status header: %v", fault.ErrTransform, err)
	}

	for i := range ds.Rows {
		row := i + 2

		cbCell, err := excelize.CoordinatesToCellName(cbCol, row)
		if err != nil {
			return errors.Errorf("%w: checkbox cell row %d: %v", fault.ErrTransform, row, err)
		}
		if err := f.SetCellBool(sheet, cbCell, false); err != nil {
			return errors.Errorf("%w: writing checkbox value %s: %v", fault.ErrTransform, cbCell, err)
		}
		if err := f.AddFormControl(sheet, excelize.FormControl{
			Cell:     cbCell,
			Type:     excelize.FormControlCheckBox,
			CellLink: cbCell,
		}); err != nil {
			return errors.Errorf("%w: adding checkbox %s: %v", fault.ErrTransform, cbCell, err)
		}

		stCell, err := excelize.CoordinatesToCellName(stCol, row)
		if err != nil {
			return errors.Errorf("%w: status cell row %d: %v", fault.ErrTransform, row, err)
		}
		formula := fmt.Sprintf("IF(%s=TRUE,%q,%q)", cbCell, opts.DoneValue, opts.PendingValue)
		if err := f.SetCellFormula(sheet, stCell, formula); err != nil {
			return errors.Errorf("%w: writing status formula %s: %v", fault.ErrTransform, stCell, err)
		}
	}

	if len(ds.Rows) > 0 {
		styleID, err := f.NewConditionalStyle(&excelize.Style{
			Font: &excelize.Font{Color: doneFontColor},
			Fill: excelize.Fill{Type: "pattern", Color: []string{doneFillColor}, Pattern: 1},
		})
		if err != nil {
			return errors.Errorf("%w: creating done style: %v", fault.ErrTransform, err)
		}

		first, err := excelize.CoordinatesToCellName(stCol, 2)
		if err != nil {
			return errors.Errorf("%w: status range start: %v", fault.ErrTransform, err)
		}
		last, err := excelize.CoordinatesToCellName(stCol, len(ds.Rows)+1)
		if err != nil {
			return errors.Errorf("%w: status range end: %v", fault.ErrTransform, err)
		}
		if err := f.SetConditionalFormat(sheet, first+":"+last, []excelize.ConditionalFormatOptions{
			{
				Type:     "cell",
				Criteria: "equal to",
				Format:   styleID,
				Value:    fmt.Sprintf("%q", opts.DoneValue),
			},
		}); err != nil {
			return errors.Errorf("%w: setting done highlight: %v", fault.ErrTransform, err)
		}
	}

	cbName, err := excelize.ColumnNumberToName(cbCol)
	if err != nil {
		return errors.Errorf("%w: checkbox column name: %v", fault.ErrTransform, err)
	}
	stName, err := excelize.ColumnNumberToName(stCol)
	if err != nil {
		return errors.Errorf("%w: status column name: %v", fault.ErrTransform, err)
	}
	if err := f.SetColWidth(sheet, cbName, stName, 12); err != nil {
		return errors.Errorf("%w: setting review column widths: %v", fault.ErrTransform, err)
	}

	return nil
}
