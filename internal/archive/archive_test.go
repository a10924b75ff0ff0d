package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/errors"
	"github.com/tphakala/passby-go/internal/events"
)

func createTestSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Data.Path = t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	return settings
}

func createTestStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()

	ds := datastore.New(settings)
	require.NoError(t, ds.Open(), "Failed to open database")
	t.Cleanup(func() {
		assert.NoError(t, ds.Close(), "Failed to close datastore")
	})
	return ds
}

func saveTestEvent(t *testing.T, ds datastore.Interface, id string, startNs int64) {
	t.Helper()

	err := ds.SaveEvent(context.Background(), &datastore.Event{
		ID:          id,
		StartNs:     startNs,
		EndNs:       startNs + int64(10*time.Second),
		VehicleType: "tram",
		Direction:   events.DirectionEastWest,
		Status:      datastore.EventStatusManual,
	})
	require.NoError(t, err)
}

func writeSnapshot(t *testing.T, settings *conf.Settings, name, content string) {
	t.Helper()

	dir := settings.EventSnapshotDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// readArchive opens a stored tar.gz and returns its entries by name.
func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	entries := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[header.Name] = data
	}
	return entries
}

func TestRun_BundlesEventsAndSnapshots(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createTestStore(t, settings)

	base := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC).UnixNano()
	saveTestEvent(t, ds, "event-older", base)
	saveTestEvent(t, ds, "event-newer", base+int64(time.Hour))
	writeSnapshot(t, settings, "20250301_083000_event-older.json", `{"id":"event-older"}`)
	writeSnapshot(t, settings, "20250301_093000_event-newer.json", `{"id":"event-newer"}`)

	destDir := t.TempDir()
	settings.Archive.Targets = []conf.ArchiveTargetSettings{{Type: "local", Path: destDir}}

	manager, err := New(settings, ds, nil)
	require.NoError(t, err)

	result, err := manager.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Events)
	assert.Equal(t, 2, result.Snapshots)
	assert.Equal(t, []string{"local"}, result.Stored)
	assert.Empty(t, result.Failures)
	assert.Positive(t, result.SizeBytes)

	entries := readArchive(t, filepath.Join(destDir, result.Archive))
	require.Contains(t, entries, "events.json")
	assert.Contains(t, entries, "snapshots/20250301_083000_event-older.json")
	assert.Contains(t, entries, "snapshots/20250301_093000_event-newer.json")

	var views []events.View
	require.NoError(t, json.Unmarshal(entries["events.json"], &views))
	require.Len(t, views, 2)
	assert.Equal(t, "event-newer", views[0].ID, "export should be ordered newest first")
	assert.Equal(t, "event-older", views[1].ID)
	assert.Equal(t, "2025-03-01T08:30:00.000Z", views[1].StartTimestamp)
}

func TestRun_EmptyStoreProducesEmptyExport(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createTestStore(t, settings)

	destDir := t.TempDir()
	settings.Archive.Targets = []conf.ArchiveTargetSettings{{Type: "local", Path: destDir}}

	manager, err := New(settings, ds, nil)
	require.NoError(t, err)

	result, err := manager.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Events)
	assert.Zero(t, result.Snapshots)

	entries := readArchive(t, filepath.Join(destDir, result.Archive))
	assert.JSONEq(t, `[]`, string(entries["events.json"]))
}

func TestRun_NoTargetsConfigured(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createTestStore(t, settings)

	manager, err := New(settings, ds, nil)
	require.NoError(t, err)

	_, err = manager.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

// failingTarget always refuses the archive.
type failingTarget struct{}

func (f *failingTarget) Name() string { return "failing" }

func (f *failingTarget) Store(ctx context.Context, name string, reader io.Reader) error {
	return assert.AnError
}

func TestRun_PartialFailureStoresRemainingTargets(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createTestStore(t, settings)
	saveTestEvent(t, ds, "only-event", time.Now().UTC().UnixNano())

	destDir := t.TempDir()
	local, err := NewLocalTarget(&conf.ArchiveTargetSettings{Type: "local", Path: destDir})
	require.NoError(t, err)

	manager := &Manager{
		settings: settings,
		ds:       ds,
		targets:  []Target{local, &failingTarget{}},
	}

	result, err := manager.Run(context.Background())
	require.Error(t, err, "a failing target must surface an error")
	require.NotNil(t, result)
	assert.Equal(t, []string{"local"}, result.Stored)
	require.Contains(t, result.Failures, "failing")

	// The healthy target still received the full archive.
	entries := readArchive(t, filepath.Join(destDir, result.Archive))
	assert.Contains(t, entries, "events.json")
}

func TestRun_AllTargetsFailing(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createTestStore(t, settings)

	manager := &Manager{
		settings: settings,
		ds:       ds,
		targets:  []Target{&failingTarget{}},
	}

	result, err := manager.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Stored)
	assert.Len(t, result.Failures, 1)
}

func TestNewTargetValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  conf.ArchiveTargetSettings
	}{
		{"unknown type", conf.ArchiveTargetSettings{Type: "carrier-pigeon"}},
		{"local without path", conf.ArchiveTargetSettings{Type: "local"}},
		{"local with traversal", conf.ArchiveTargetSettings{Type: "local", Path: "../../etc"}},
		{"ftp without host", conf.ArchiveTargetSettings{Type: "ftp"}},
		{"sftp without host", conf.ArchiveTargetSettings{Type: "sftp"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := newTarget(&tc.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "got %v", err)
		})
	}
}

func TestTargetDefaults(t *testing.T) {
	t.Parallel()

	ftpTarget, err := NewFTPTarget(&conf.ArchiveTargetSettings{Type: "ftp", Host: "ftp.example.org"})
	require.NoError(t, err)
	assert.Equal(t, defaultFTPPort, ftpTarget.port)
	assert.Equal(t, defaultRemotePath, ftpTarget.basePath)

	sftpTarget, err := NewSFTPTarget(&conf.ArchiveTargetSettings{Type: "sftp", Host: "sftp.example.org", Path: "exports/"})
	require.NoError(t, err)
	assert.Equal(t, defaultSFTPPort, sftpTarget.port)
	assert.Equal(t, "exports", sftpTarget.basePath, "trailing slash should be trimmed")
}

func TestLocalTargetCreatesNestedDirectory(t *testing.T) {
	t.Parallel()

	nested := filepath.Join(t.TempDir(), "a", "b", "c")
	target, err := NewLocalTarget(&conf.ArchiveTargetSettings{Type: "local", Path: nested})
	require.NoError(t, err)

	payload := []byte("archive bytes")
	require.NoError(t, target.Store(context.Background(), "bundle.tar.gz", bytes.NewReader(payload)))

	stored, err := os.ReadFile(filepath.Join(nested, "bundle.tar.gz"))
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}
