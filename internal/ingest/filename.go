package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tphakala/passby-go/internal/errors"
)

// safeFilenamePattern matches filenames with only alphanumeric chars, dots, hyphens, underscores
var safeFilenamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

// filenameTimeLayout is the trailing timestamp convention on staged
// recordings: <anything>_YYYYMMDD_HHMMSS.wav, interpreted as UTC.
const filenameTimeLayout = "20060102_150405"

// ValidateStagedName rejects staged filenames that could escape the upload
// directory or contain shell-hostile characters.
func ValidateStagedName(filename string) error {
	if filename == "" || !safeFilenamePattern.MatchString(filename) {
		return errors.Newf("invalid staged filename %q", filename).
			Component("ingest").
			Category(errors.CategoryValidation).
			Build()
	}
	// The pattern allows dots, so catch traversal explicitly.
	if strings.Contains(filename, "..") {
		return errors.Newf("invalid staged filename %q", filename).
			Component("ingest").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// ParseFilenameTimestamp extracts the recording start instant from the
// trailing _YYYYMMDD_HHMMSS convention on a staged filename. The second
// return is false when the filename does not follow the convention.
func ParseFilenameTimestamp(filename string) (int64, bool) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		return 0, false
	}

	raw := parts[len(parts)-2] + "_" + parts[len(parts)-1]
	t, err := time.ParseInLocation(filenameTimeLayout, raw, time.UTC)
	if err != nil {
		return 0, false
	}
	return t.UnixNano(), true
}
