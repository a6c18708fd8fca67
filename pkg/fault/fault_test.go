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

package fault_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/fault"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil_error",
			err:  nil,
			want: "ok",
		},
		{
			name: "connection",
			err:  errors.Errorf("%w: dialing host:22: refused", fault.ErrConnection),
			want: "connection",
		},
		{
			name: "configuration",
			err:  errors.Errorf("%w: remote.host is required", fault.ErrConfiguration),
			want: "configuration",
		},
		{
			name: "not_found",
			err:  errors.Errorf("%w: drive %q", fault.ErrNotFound, "Vingo Kyselyt"),
			want: "not_found",
		},
		{
			name: "transfer",
			err:  errors.Errorf("%w: moving data.csv to history", fault.ErrTransfer),
			want: "transfer",
		},
		{
			name: "upload",
			err:  errors.Errorf("%w: status 503", fault.ErrUpload),
			want: "upload",
		},
		{
			name: "transform",
			err:  errors.Errorf("%w: empty csv", fault.ErrTransform),
			want: "transform",
		},
		{
			name: "unclassified",
			err:  errors.New("something else"),
			want: "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fault.Code(tt.err), "code should match")
		})
	}
}

func TestWrappingKeepsKind(t *testing.T) {
	err := errors.Errorf("%w: file %q not found in %q", fault.ErrNotFound, "out.xlsx", "Testi")
	wrapped := errors.Errorf("reconciling destination: %w", err)

	require.Error(t, wrapped)
	assert.True(t, errors.Is(wrapped, fault.ErrNotFound), "kind should survive a second wrap")
	assert.False(t, errors.Is(wrapped, fault.ErrUpload), "kinds should not bleed into each other")
	assert.Contains(t, wrapped.Error(), "out.xlsx", "detail should survive wrapping")
}
