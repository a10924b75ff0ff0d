// local.go: archive target writing to a directory on the local filesystem.
package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/errors"
)

// LocalTarget stores archives in a local directory.
type LocalTarget struct {
	path string
}

// NewLocalTarget creates a local filesystem target.
func NewLocalTarget(cfg *conf.ArchiveTargetSettings) (*LocalTarget, error) {
	if cfg.Path == "" {
		return nil, errors.Newf("local: path is required").
			Component("archive").
			Category(errors.CategoryValidation).
			Context("operation", "archive-target-init").
			Build()
	}
	clean := filepath.Clean(cfg.Path)
	if strings.Contains(clean, "..") {
		return nil, errors.Newf("local: path must not contain directory traversal sequences").
			Component("archive").
			Category(errors.CategoryValidation).
			Context("operation", "archive-target-init").
			Build()
	}
	return &LocalTarget{path: clean}, nil
}

// Name returns the name of this target.
func (t *LocalTarget) Name() string {
	return "local"
}

// Store writes the archive into the target directory. The write is atomic:
// data goes to a temporary file which then replaces the destination.
func (t *LocalTarget) Store(ctx context.Context, name string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(t.path, 0o700); err != nil {
		return errors.New(err).
			Component("archive").
			Category(errors.CategoryFileIO).
			FileContext(t.path, 0).
			Context("operation", "archive-local-store").
			Build()
	}

	targetPath := filepath.Join(t.path, name)
	if err := atomicWriteFile(targetPath, "archive-*.tmp", 0o600, func(f *os.File) error {
		_, err := io.Copy(f, reader)
		return err
	}); err != nil {
		return errors.New(err).
			Component("archive").
			Category(errors.CategoryFileIO).
			FileContext(targetPath, 0).
			Context("operation", "archive-local-store").
			Build()
	}

	return nil
}

// atomicWriteFile writes data to a temporary file and then renames it to the
// target path.
func atomicWriteFile(targetPath, tempPattern string, perm os.FileMode, write func(*os.File) error) error {
	dir := filepath.Dir(targetPath)
	tempFile, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	tempPath := tempFile.Name()

	// Ensure the temporary file is removed in case of failure
	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if err := tempFile.Chmod(perm); err != nil {
		return err
	}

	if err := write(tempFile); err != nil {
		return err
	}

	// Ensure all data is written to disk
	if err := tempFile.Sync(); err != nil {
		return err
	}

	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return err
	}

	success = true
	return nil
}
