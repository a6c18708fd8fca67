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

// Package runlog collects one pipeline run's trace into a single
// consolidated log record.
//
// Collaborators receive the buffer by reference and append lines as they
// work; the orchestrator flushes it exactly once when the run ends, so the
// whole story lands in one record no matter where the run failed.
package runlog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/karhuops/bridgerc/pkg/fault"
)

// 📝 Buffer accumulates trace lines for a single run of one job
type Buffer struct {
	mu      sync.Mutex
	job     string
	runID   uuid.UUID
	lines   []string
	flushed bool
	sink    zerolog.Logger
}

// 🏭 New creates a buffer for one run of job. Lines are echoed to sink at
// debug level as they arrive; the consolidated record goes to sink on
// Flush.
func New(job string, sink zerolog.Logger) *Buffer {
	return &Buffer{
		job:   job,
		runID: uuid.New(),
		sink:  sink,
	}
}

// RunID identifies this run in the consolidated record.
func (b *Buffer) RunID() string {
	return b.runID.String()
}

// Logf appends one formatted line to the buffer.
func (b *Buffer) Logf(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	line := fmt.Sprintf(format, args...)
	b.lines = append(b.lines, line)
	b.sink.Debug().
		Str("job", b.job).
		Str("run_id", b.runID.String()).
		Msg(line)
}

// Lines returns a copy of everything logged so far.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Flushed reports whether the consolidated record was already written.
func (b *Buffer) Flushed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushed
}

// Flush writes the consolidated record for the run. The first call wins;
// later calls are no-ops, so a deferred flush and an explicit one cannot
// double-report. When runErr is non-nil the record is emitted at error
// level with the full error chain and stack trace appended.
func (b *Buffer) Flush(runErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.flushed {
		return
	}
	b.flushed = true

	body := strings.Join(b.lines, "\n")
	if runErr != nil {
		body = fmt.Sprintf("%s\n--- ERROR TRACE ---\n%+v", body, runErr)
		b.sink.Error().
			Str("job", b.job).
			Str("run_id", b.runID.String()).
			Str("error_code", fault.Code(runErr)).
			Int("lines", len(b.lines)).
			Msg(body)
		return
	}

	b.sink.Info().
		Str("job", b.job).
		Str("run_id", b.runID.String()).
		Int("lines", len(b.lines)).
		Msg(body)
}
