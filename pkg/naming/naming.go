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

// Package naming implements the filename conventions shared by the
// pipeline: export stamp stripping, prefix/remainder splitting and the
// timestamp tokens used for history and output names.
package naming

import (
	"regexp"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/fault"
)

// TimestampLayout is the token prepended to archived inputs and generated
// outputs, e.g. "2025-02-09_2200".
const TimestampLayout = "2006-01-02_1504"

// DefaultZone is the wall clock used for timestamp tokens.
const DefaultZone = "Europe/Helsinki"

// Exports carry a trailing creation stamp like 20250209220043.
var exportStampRe = regexp.MustCompile(`\d{14}$`)

// 📄 Parts is a remote filename split under the two-token convention
type Parts struct {
	Prefix    string // first two underscore tokens, e.g. "KONTROLLI_PKS"
	Remainder string // everything after them, e.g. "kuljtilaus_0eur_ed7pv"
}

// Stem strips the extension and any trailing 14 digit export stamp from a
// filename. "KONTROLLI_PKS_kuljtilaus20250209220043.csv" becomes
// "KONTROLLI_PKS_kuljtilaus".
func Stem(name string) string {
	stem := name
	if i := strings.LastIndex(stem, "."); i >= 0 {
		stem = stem[:i]
	}
	return exportStampRe.ReplaceAllString(stem, "")
}

// Parse splits a filename into its convention parts. Names with two or
// fewer tokens keep everything in the prefix.
func Parse(name string) Parts {
	stem := Stem(name)
	tokens := strings.Split(stem, "_")
	if len(tokens) <= 2 {
		return Parts{Prefix: stem}
	}
	return Parts{
		Prefix:    strings.Join(tokens[:2], "_"),
		Remainder: strings.Join(tokens[2:], "_"),
	}
}

// SheetName returns the worksheet title for this file in a combined
// workbook. Files without a remainder share the default title.
func (p Parts) SheetName() string {
	if p.Remainder == "" {
		return "Sheet"
	}
	return p.Remainder
}

// Timestamp formats now as a TimestampLayout token in the given zone. An
// empty zone falls back to DefaultZone.
func Timestamp(zone string, now time.Time) (string, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", errors.Errorf("%w: loading timezone %q: %v", fault.ErrConfiguration, zone, err)
	}
	return now.In(loc).Format(TimestampLayout), nil
}

// Stamped prepends a timestamp token to a filename.
func Stamped(stamp, name string) string {
	return stamp + "_" + name
}

// SingleWorkbookName names the workbook produced from one CSV. The stamp
// is optional.
func SingleWorkbookName(input, stamp string) string {
	base := Stem(input) + ".xlsx"
	if stamp == "" {
		return base
	}
	return Stamped(stamp, base)
}

// CombinedWorkbookName names the workbook that merges several CSVs, keyed
// by the shared prefix of its first input.
func CombinedWorkbookName(prefix, stamp string) string {
	return prefix + "_" + stamp + ".xlsx"
}
