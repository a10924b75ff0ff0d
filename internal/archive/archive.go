// Package archive exports the annotation record for offline keeping: every
// event plus the JSON snapshots, bundled into one tar.gz and pushed to the
// configured targets. Audio samples are not archived; they can always be
// re-ingested from the staged WAV files.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/errors"
	"github.com/tphakala/passby-go/internal/events"
	"github.com/tphakala/passby-go/internal/logging"
	"github.com/tphakala/passby-go/internal/observability"
)

// archiveTimeLayout names archives by their creation instant in UTC.
const archiveTimeLayout = "20060102_150405"

var (
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "archive.log")
	levelVar.Set(slog.LevelInfo)

	// The log file stays open for the life of the process.
	logger, _, err = logging.NewFileLogger(logFilePath, "archive", levelVar)
	if err != nil {
		log.Printf("Failed to initialize archive file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
		logger = slog.New(fbHandler).With("service", "archive")
	}
}

// Target is a destination that can hold a finished archive.
type Target interface {
	// Name returns the name of this target.
	Name() string
	// Store writes the archive under the given file name.
	Store(ctx context.Context, name string, reader io.Reader) error
}

// Result reports what one archive run accomplished.
type Result struct {
	Archive   string           // archive file name
	SizeBytes int64            // compressed size
	Events    int              // events exported
	Snapshots int              // snapshot files bundled
	Stored    []string         // targets that accepted the archive
	Failures  map[string]error // target name -> push error
}

// Manager builds the archive bundle and pushes it to every target.
type Manager struct {
	settings *conf.Settings
	ds       datastore.Interface
	metrics  *observability.Metrics
	targets  []Target
}

// New creates a manager with targets built from the archive settings.
// metrics may be nil.
func New(settings *conf.Settings, ds datastore.Interface, metrics *observability.Metrics) (*Manager, error) {
	targets := make([]Target, 0, len(settings.Archive.Targets))
	for i := range settings.Archive.Targets {
		target, err := newTarget(&settings.Archive.Targets[i])
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return &Manager{settings: settings, ds: ds, metrics: metrics, targets: targets}, nil
}

func newTarget(cfg *conf.ArchiveTargetSettings) (Target, error) {
	switch cfg.Type {
	case "local":
		return NewLocalTarget(cfg)
	case "ftp":
		return NewFTPTarget(cfg)
	case "sftp":
		return NewSFTPTarget(cfg)
	default:
		return nil, errors.Newf("unknown archive target type %q", cfg.Type).
			Component("archive").
			Category(errors.CategoryValidation).
			Context("operation", "archive-target-init").
			Build()
	}
}

// Run builds one archive and pushes it to every configured target. All
// targets are attempted even when one fails; the returned error is the first
// push failure and Result carries the full per-target picture.
func (m *Manager) Run(ctx context.Context) (*Result, error) {
	if len(m.targets) == 0 {
		return nil, errors.Newf("no archive targets configured").
			Component("archive").
			Category(errors.CategoryConfiguration).
			Context("operation", "archive-run").
			Build()
	}

	start := time.Now()
	result := &Result{
		Archive:  "passby-events-" + start.UTC().Format(archiveTimeLayout) + ".tar.gz",
		Failures: make(map[string]error),
	}

	tempFile, err := os.CreateTemp("", "passby-archive-*.tar.gz")
	if err != nil {
		m.recordRun("error", start, 0)
		return nil, errors.New(err).
			Component("archive").
			Category(errors.CategoryFileIO).
			Context("operation", "archive-stage").
			Build()
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if err := m.writeBundle(ctx, tempFile, result); err != nil {
		tempFile.Close()
		m.recordRun("error", start, 0)
		return nil, err
	}

	info, err := tempFile.Stat()
	if err == nil {
		result.SizeBytes = info.Size()
	}
	if err := tempFile.Close(); err != nil {
		m.recordRun("error", start, result.SizeBytes)
		return nil, errors.New(err).
			Component("archive").
			Category(errors.CategoryFileIO).
			Context("operation", "archive-stage").
			Build()
	}

	logger.Info("Archive bundle staged",
		"archive", result.Archive,
		"size_bytes", result.SizeBytes,
		"events", result.Events,
		"snapshots", result.Snapshots)

	// Push to every target concurrently; each push reads its own handle so
	// a slow target cannot corrupt another's stream position.
	var g errgroup.Group
	var mu sync.Mutex
	for _, target := range m.targets {
		target := target
		g.Go(func() error {
			reader, err := os.Open(tempPath)
			if err != nil {
				err = errors.New(err).
					Component("archive").
					Category(errors.CategoryFileIO).
					Context("operation", "archive-push").
					Context("target", target.Name()).
					Build()
			} else {
				defer reader.Close()
				err = target.Store(ctx, result.Archive, reader)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures[target.Name()] = err
				if m.metrics != nil {
					m.metrics.Archive.RecordTargetFailure(target.Name())
				}
				logger.Error("Archive push failed", "target", target.Name(), "error", err)
				return err
			}
			result.Stored = append(result.Stored, target.Name())
			logger.Info("Archive stored", "target", target.Name(), "archive", result.Archive)
			return nil
		})
	}
	pushErr := g.Wait()

	switch {
	case len(result.Failures) == 0:
		m.recordRun("success", start, result.SizeBytes)
	case len(result.Stored) > 0:
		m.recordRun("partial", start, result.SizeBytes)
	default:
		m.recordRun("error", start, result.SizeBytes)
	}

	return result, pushErr
}

// writeBundle streams the events export and the snapshot files into w as
// tar.gz content.
func (m *Manager) writeBundle(ctx context.Context, w io.Writer, result *Result) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	now := time.Now().UTC()

	stored, err := m.ds.ListEvents(ctx, "")
	if err != nil {
		return err
	}
	views := make([]events.View, 0, len(stored))
	for i := range stored {
		views = append(views, events.ToView(stored[i]))
	}
	payload, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("archive").
			Category(errors.CategoryArchive).
			Context("operation", "archive-export-events").
			Build()
	}
	if err := writeTarEntry(tw, "events.json", payload, now); err != nil {
		return err
	}
	result.Events = len(views)

	snapshotDir := m.settings.EventSnapshotDir()
	entries, err := os.ReadDir(snapshotDir)
	if err != nil && !os.IsNotExist(err) {
		return errors.New(err).
			Component("archive").
			Category(errors.CategoryFileIO).
			FileContext(snapshotDir, 0).
			Context("operation", "archive-read-snapshots").
			Build()
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(snapshotDir, entry.Name()))
		if err != nil {
			return errors.New(err).
				Component("archive").
				Category(errors.CategoryFileIO).
				FileContext(filepath.Join(snapshotDir, entry.Name()), 0).
				Context("operation", "archive-read-snapshots").
				Build()
		}
		if err := writeTarEntry(tw, path.Join("snapshots", entry.Name()), data, now); err != nil {
			return err
		}
		result.Snapshots++
	}

	if err := tw.Close(); err != nil {
		return errors.New(err).
			Component("archive").
			Category(errors.CategoryArchive).
			Context("operation", "archive-finalize").
			Build()
	}
	if err := gz.Close(); err != nil {
		return errors.New(err).
			Component("archive").
			Category(errors.CategoryArchive).
			Context("operation", "archive-finalize").
			Build()
	}
	return nil
}

func writeTarEntry(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0o600,
		Size:    int64(len(data)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return errors.New(err).
			Component("archive").
			Category(errors.CategoryArchive).
			Context("entry", name).
			Build()
	}
	if _, err := tw.Write(data); err != nil {
		return errors.New(err).
			Component("archive").
			Category(errors.CategoryArchive).
			Context("entry", name).
			Build()
	}
	return nil
}

func (m *Manager) recordRun(status string, start time.Time, sizeBytes int64) {
	if m.metrics == nil {
		return
	}
	m.metrics.Archive.RecordRun(status, time.Since(start).Seconds(), sizeBytes)
}
