// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/errors"
)

// FileFormat carries the audio format parameters a file must agree on with
// its target collection.
type FileFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// MinMaxBucket is one aggregated waveform bucket produced by AggregateMinMax.
type MinMaxBucket struct {
	Bucket int64
	MinAmp int64
	MaxAmp int64
}

// Interface abstracts the underlying database implementation and defines the
// operations the engine needs.
type Interface interface {
	Open() error
	Close() error

	// Collections
	ListCollections(ctx context.Context) ([]Collection, error)
	GetCollection(ctx context.Context, name string) (Collection, error)
	CollectionsContaining(ctx context.Context, tsNs int64) ([]Collection, error)

	// Samples
	CommitFile(ctx context.Context, name string, format FileFormat, startNs, endNs int64, samples []Sample, batchSize int) (Collection, error)
	AggregateMinMax(ctx context.Context, collectionID uint, startNs, endNs, bucketWidthNs int64) ([]MinMaxBucket, error)
	StreamSamples(ctx context.Context, collectionID uint, startNs, endNs int64, fn func(amplitude int) error) (int64, error)

	// Events
	SaveEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, statusFilter string) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
	UpdateEventStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		// Settings validation rejects this configuration before we get here
		return nil
	}
}

// performAutoMigration creates or updates the database schema.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Collection{}, &Sample{}, &Event{}); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %v", dbType, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
