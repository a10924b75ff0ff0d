// model.go this code defines the data model for the application
package datastore

import "time"

// Collection represents a named, append-only set of time-ordered audio
// samples together with its registered covering time range. Timestamps are
// nanoseconds since the Unix epoch, UTC.
type Collection struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"uniqueIndex;not null;type:varchar(255)"`
	SampleRate int    `gorm:"not null"`
	Channels   int    `gorm:"not null"`
	BitDepth   int    `gorm:"not null"`
	StartNs    int64  `gorm:"index:idx_collections_range;not null"`
	EndNs      int64  `gorm:"index:idx_collections_range;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Sample is a single amplitude value for one channel at one instant. The
// composite primary key (collection_id, ts_ns, channel) both prevents
// duplicate timestamps and serves range scans during aggregation and
// extraction.
type Sample struct {
	CollectionID uint  `gorm:"primaryKey;autoIncrement:false"`
	TsNs         int64 `gorm:"primaryKey;autoIncrement:false"`
	Channel      int   `gorm:"primaryKey;autoIncrement:false"`
	Amplitude    int32 `gorm:"not null"`
}

// Event statuses. Manual events come from live capture, refined events from
// file-based annotation. Manual may transition to reviewed exactly once;
// refined and reviewed are terminal.
const (
	EventStatusManual   = "manual"
	EventStatusReviewed = "reviewed"
	EventStatusRefined  = "refined"
)

// Event represents a vehicle pass-by annotation.
type Event struct {
	ID                string `gorm:"primaryKey;type:varchar(36)"`
	StartNs           int64  `gorm:"index:idx_events_start;not null"`
	EndNs             int64  `gorm:"not null"`
	VehicleType       string `gorm:"type:varchar(100);not null"`
	VehicleIdentifier string `gorm:"type:varchar(100)"`
	Direction         string `gorm:"type:varchar(20);not null"`
	AnnotatorNotes    string `gorm:"type:text"`
	Status            string `gorm:"type:varchar(20);index:idx_events_status;not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
