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
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/karhuops/bridgerc/pkg/fault"
)

// 📊 HeaderMode selects which raw row carries the column names
type HeaderMode int

const (
	// HeaderFirstRow uses the first row as the header.
	HeaderFirstRow HeaderMode = iota
	// HeaderSecondRow uses the second row as the header and drops the
	// first row entirely. The combined exports carry a title row above
	// the real header.
	HeaderSecondRow
)

// String returns a string representation of HeaderMode
func (m HeaderMode) String() string {
	switch m {
	case HeaderSecondRow:
		return "second_row"
	default:
		return "first_row"
	}
}

// ReadOptions control CSV parsing. The zero value matches the exports:
// semicolon delimited, ISO-8859-1, header in the first row.
type ReadOptions struct {
	Comma      rune
	HeaderMode HeaderMode
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodingReader decodes the export charset. A UTF-8 byte order mark wins
// over the ISO-8859-1 default, so hand-made test fixtures keep working.
func decodingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(3); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(3)
		return br
	}
	return transform.NewReader(br, charmap.ISO8859_1.NewDecoder())
}

// ReadCSV parses one export into a Dataset. Short rows are padded and long
// rows truncated to the header width.
func ReadCSV(r io.Reader, opts ReadOptions) (*Dataset, error) {
	comma := opts.Comma
	if comma == 0 {
		comma = ';'
	}

	cr := csv.NewReader(decodingReader(r))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Errorf("%w: parsing csv: %v", fault.ErrTransform, err)
	}

	headerAt := 0
	if opts.HeaderMode == HeaderSecondRow {
		headerAt = 1
	}
	if len(records) <= headerAt {
		return nil, errors.Errorf("%w: csv has no header row", fault.ErrTransform)
	}

	header := records[headerAt]
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	ds := &Dataset{Columns: columns}
	for _, rec := range records[headerAt+1:] {
		// Pad short rows, truncate long ones.
		if len(rec) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, rec)
			rec = padded
		} else if len(rec) > len(columns) {
			rec = rec[:len(columns)]
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = decodeScalar(rec[i])
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

// ReadCSVFile parses the export at path.
func ReadCSVFile(path string, opts ReadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("%w: opening %s: %v", fault.ErrTransform, path, err)
	}
	defer f.Close()
	return ReadCSV(f, opts)
}

// WriteOptions control CSV output. The zero value writes the processed
// form: semicolon delimited, ISO-8859-1, dot decimals.
type WriteOptions struct {
	Comma rune
}

// WriteCSV writes the dataset in standard form.
func WriteCSV(w io.Writer, ds *Dataset, opts WriteOptions) error {
	comma := opts.Comma
	if comma == 0 {
		comma = ';'
	}

	enc := transform.NewWriter(w, charmap.ISO8859_1.NewEncoder())
	cw := csv.NewWriter(enc)
	cw.Comma = comma

	if err := cw.Write(ds.Columns); err != nil {
		return errors.Errorf("%w: writing csv header: %v", fault.ErrTransform, err)
	}

	rec := make([]string, len(ds.Columns))
	for i, row := range ds.Rows {
		for j, col := range ds.Columns {
			rec[j] = encodeScalar(row[col])
		}
		if err := cw.Write(rec); err != nil {
			return errors.Errorf("%w: writing csv row %d: %v", fault.ErrTransform, i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Errorf("%w: flushing csv: %v", fault.ErrTransform, err)
	}
	if err := enc.Close(); err != nil {
		return errors.Errorf("%w: closing csv encoder: %v", fault.ErrTransform, err)
	}
	return nil
}

// WriteCSVFile writes the dataset to path.
func WriteCSVFile(path string, ds *Dataset, opts WriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Errorf("%w: creating %s: %v", fault.ErrTransform, path, err)
	}
	if err := WriteCSV(f, ds, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Errorf("%w: closing %s: %v", fault.ErrTransform, path, err)
	}
	return nil
}
