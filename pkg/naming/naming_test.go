package naming_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karhuops/bridgerc/pkg/naming"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		filename      string
		wantPrefix    string
		wantRemainder string
		wantSheet     string
	}{
		{
			name:          "control_export_with_stamp",
			filename:      "KONTROLLI_PKS_kuljtilaus_0eur_ed7pv20250209220043.csv",
			wantPrefix:    "KONTROLLI_PKS",
			wantRemainder: "kuljtilaus_0eur_ed7pv",
			wantSheet:     "kuljtilaus_0eur_ed7pv",
		},
		{
			name:          "no_stamp",
			filename:      "KONTROLLI_PKS_laskutus.csv",
			wantPrefix:    "KONTROLLI_PKS",
			wantRemainder: "laskutus",
			wantSheet:     "laskutus",
		},
		{
			name:          "two_tokens_only",
			filename:      "vantaa_liite.csv",
			wantPrefix:    "vantaa_liite",
			wantRemainder: "",
			wantSheet:     "Sheet",
		},
		{
			name:          "single_token",
			filename:      "data.csv",
			wantPrefix:    "data",
			wantRemainder: "",
			wantSheet:     "Sheet",
		},
		{
			name:          "stamp_shorter_than_fourteen_digits_kept",
			filename:      "AB_CD_raw2025.csv",
			wantPrefix:    "AB_CD",
			wantRemainder: "raw2025",
			wantSheet:     "raw2025",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := naming.Parse(tt.filename)
			assert.Equal(t, tt.wantPrefix, parts.Prefix, "prefix should match")
			assert.Equal(t, tt.wantRemainder, parts.Remainder, "remainder should match")
			assert.Equal(t, tt.wantSheet, parts.SheetName(), "sheet name should match")
		})
	}
}

func TestStem(t *testing.T) {
	assert.Equal(t, "KONTROLLI_PKS_kuljtilaus_0eur_ed7pv",
		naming.Stem("KONTROLLI_PKS_kuljtilaus_0eur_ed7pv20250209220043.csv"))
	assert.Equal(t, "data", naming.Stem("data.csv"))
	assert.Equal(t, "data", naming.Stem("data"))
}

func TestTimestamp(t *testing.T) {
	// 19:30 UTC is 21:30 in Helsinki during winter (UTC+2).
	now := time.Date(2025, 2, 9, 19, 30, 0, 0, time.UTC)

	stamp, err := naming.Timestamp("", now)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-09_2130", stamp, "default zone should be Helsinki")

	stamp, err = naming.Timestamp("UTC", now)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-09_1930", stamp)

	_, err = naming.Timestamp("Mars/Olympus", now)
	require.Error(t, err, "unknown zones should be rejected")
}

func TestOutputNames(t *testing.T) {
	assert.Equal(t, "2025-02-09_2130_data.csv", naming.Stamped("2025-02-09_2130", "data.csv"))
	assert.Equal(t, "data.xlsx", naming.SingleWorkbookName("data20250209220043.csv", ""))
	assert.Equal(t, "2025-02-09_2130_data.xlsx", naming.SingleWorkbookName("data.csv", "2025-02-09_2130"))
	assert.Equal(t, "KONTROLLI_PKS_2025-02-09_2130.xlsx", naming.CombinedWorkbookName("KONTROLLI_PKS", "2025-02-09_2130"))
}
