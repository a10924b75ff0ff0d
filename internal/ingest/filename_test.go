package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFilenameTimestamp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		filename string
		want     time.Time
		ok       bool
	}{
		{
			name:     "prefix and timestamp",
			filename: "roadside_20250101_123045.wav",
			want:     time.Date(2025, 1, 1, 12, 30, 45, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "multiple underscore prefix",
			filename: "site_a_north_20240615_070000.wav",
			want:     time.Date(2024, 6, 15, 7, 0, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "bare timestamp",
			filename: "20240615_070000.wav",
			want:     time.Date(2024, 6, 15, 7, 0, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "no underscores",
			filename: "recording.wav",
			ok:       false,
		},
		{
			name:     "impossible month",
			filename: "site_20251301_000000.wav",
			ok:       false,
		},
		{
			name:     "timestamp tokens too short",
			filename: "site_2025_0101.wav",
			ok:       false,
		},
		{
			name:     "empty",
			filename: "",
			ok:       false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseFilenameTimestamp(tc.filename)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want.UnixNano(), got)
			}
		})
	}
}

func TestValidateStagedName(t *testing.T) {
	t.Parallel()

	valid := []string{"a.wav", "site_20250101_000000.wav", "UPPER-case.01.wav"}
	for _, name := range valid {
		assert.NoError(t, ValidateStagedName(name), "name %q should be accepted", name)
	}

	invalid := []string{"", "no spaces.wav", "sub/dir.wav", `back\slash.wav`, "../up.wav", "semi;colon.wav"}
	for _, name := range invalid {
		assert.Error(t, ValidateStagedName(name), "name %q should be rejected", name)
	}
}
