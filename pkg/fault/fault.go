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

// Package fault defines the error kinds shared by every pipeline stage.
//
// Failures are classified by wrapping one of the base errors with
// errors.Errorf("%w: <detail>", ...) and matched with errors.Is. Matching
// on message text is never correct; the message is for humans.
package fault

import (
	"gitlab.com/tozd/go/errors"
)

// 🎯 Base errors for the pipeline's failure taxonomy
var (
	// ErrConnection marks failures to establish or keep a connection to
	// the remote store or the document library.
	ErrConnection = errors.Base("connection error")

	// ErrConfiguration marks missing or malformed settings. These fail a
	// run before any remote side effect happens.
	ErrConfiguration = errors.Base("configuration error")

	// ErrNotFound marks a missing remote path, drive, folder or item.
	// Callers probe with errors.Is(err, ErrNotFound) to decide whether
	// create-if-missing logic may run.
	ErrNotFound = errors.Base("not found")

	// ErrTransfer marks failed downloads, renames and archive moves.
	ErrTransfer = errors.Base("transfer error")

	// ErrUpload marks failed writes to a destination store.
	ErrUpload = errors.Base("upload error")

	// ErrTransform marks CSV or workbook processing failures.
	ErrTransform = errors.Base("transform error")
)

// Code returns a short machine-readable token for err, used in log fields
// and run summaries. Unclassified errors report as "internal".
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransfer):
		return "transfer"
	case errors.Is(err, ErrUpload):
		return "upload"
	case errors.Is(err, ErrTransform):
		return "transform"
	default:
		return "internal"
	}
}
