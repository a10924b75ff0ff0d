// Package ingest turns staged WAV uploads into timestamped samples in the
// store. Each file commits atomically; a batch is allowed to succeed
// partially, with everything before the failing file staying committed.
package ingest

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/errors"
	"github.com/tphakala/passby-go/internal/logging"
	"github.com/tphakala/passby-go/internal/observability"
	"github.com/tphakala/passby-go/internal/wavio"
)

// defaultBatchSize is used when the configured insert batch size is unset.
const defaultBatchSize = 4000

var (
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "ingest.log")
	levelVar.Set(slog.LevelInfo)

	// The log file stays open for the life of the process.
	logger, _, err = logging.NewFileLogger(logFilePath, "ingest", levelVar)
	if err != nil {
		log.Printf("Failed to initialize ingest file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
		logger = slog.New(fbHandler).With("service", "ingest")
	}
}

// StagedFile names one staged upload and the start instant of its first
// frame. The start instant comes from outside the engine (filename
// convention at the API layer); ingestion treats it as opaque input.
type StagedFile struct {
	Name    string
	StartNs int64
}

// Result reports what a batch ingestion accomplished. On partial failure
// Ingested holds the files committed before the failure and FailedFile
// names the file whose frames were rolled back.
type Result struct {
	Collection string
	Ingested   []string
	FailedFile string
}

// Service decodes staged files and commits their frames.
type Service struct {
	settings *conf.Settings
	ds       datastore.Interface
	metrics  *observability.Metrics
	locks    sync.Map // collection name -> *sync.Mutex
}

// New creates an ingestion service. metrics may be nil.
func New(settings *conf.Settings, ds datastore.Interface, metrics *observability.Metrics) *Service {
	return &Service{
		settings: settings,
		ds:       ds,
		metrics:  metrics,
	}
}

// lockCollection serializes ingestion per collection so the registry range
// update and the sample writes stay consistent. Different collections
// proceed concurrently.
func (s *Service) lockCollection(name string) func() {
	mu, _ := s.locks.LoadOrStore(name, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Ingest commits the staged files into the named collection in caller
// order. Each file is all-or-nothing; on failure the returned Result names
// the failing file and lists what was committed before it, and the error
// carries the failure kind (MalformedAudio, IncompatibleFormat, ...).
func (s *Service) Ingest(ctx context.Context, collectionName string, files []StagedFile) (Result, error) {
	result := Result{Collection: collectionName, Ingested: []string{}}

	if collectionName == "" {
		return result, errors.ValidationError("collection name must not be empty")
	}

	unlock := s.lockCollection(collectionName)
	defer unlock()

	for _, file := range files {
		if err := s.ingestFile(ctx, collectionName, file); err != nil {
			result.FailedFile = file.Name
			s.recordFailure(err)
			logger.Error("file ingestion failed",
				"collection", collectionName,
				"file", file.Name,
				"error", err)
			return result, err
		}
		result.Ingested = append(result.Ingested, file.Name)
	}

	return result, nil
}

// ingestFile decodes one staged file and writes its frames and the matching
// registry update in a single transaction.
func (s *Service) ingestFile(ctx context.Context, collectionName string, file StagedFile) error {
	start := time.Now()

	if err := ValidateStagedName(file.Name); err != nil {
		return err
	}

	path := filepath.Join(s.settings.UploadDir(), file.Name)
	info, err := os.Stat(path)
	if err != nil {
		return errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}

	decoded, err := wavio.DecodeFile(path)
	if err != nil {
		return err
	}

	samples := frameSamples(decoded, file.StartNs)
	endNs := file.StartNs + decoded.DurationNs()
	format := datastore.FileFormat{
		SampleRate: decoded.SampleRate,
		Channels:   decoded.NumChannels,
		BitDepth:   decoded.BitDepth,
	}

	_, err = s.ds.CommitFile(ctx, collectionName, format, file.StartNs, endNs, samples, s.batchSize())
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.Ingest.RecordFileIngested("success")
		s.metrics.Ingest.RecordSamplesCommitted(int64(len(samples)))
		s.metrics.Ingest.RecordIngestDuration(collectionName, time.Since(start).Seconds())
		s.metrics.Ingest.RecordFileSize(info.Size())
	}

	logger.Info("file ingested",
		"collection", collectionName,
		"file", file.Name,
		"frames", decoded.TotalFrames,
		"sample_rate", decoded.SampleRate,
		"channels", decoded.NumChannels,
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// frameSamples expands decoded interleaved audio into store rows. Frame i
// lands at startNs + i*1e9/rate; all channels of a frame share its
// timestamp.
func frameSamples(decoded *wavio.File, startNs int64) []datastore.Sample {
	channels := decoded.NumChannels
	rate := int64(decoded.SampleRate)

	samples := make([]datastore.Sample, 0, len(decoded.Samples))
	for i := 0; i < decoded.TotalFrames; i++ {
		tsNs := startNs + int64(i)*1_000_000_000/rate
		for ch := 0; ch < channels; ch++ {
			samples = append(samples, datastore.Sample{
				TsNs:      tsNs,
				Channel:   ch,
				Amplitude: int32(decoded.Samples[i*channels+ch]),
			})
		}
	}
	return samples
}

func (s *Service) batchSize() int {
	if s.settings.Ingest.BatchSize > 0 {
		return s.settings.Ingest.BatchSize
	}
	return defaultBatchSize
}

func (s *Service) recordFailure(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Ingest.RecordFileIngested("error")
	switch {
	case errors.IsMalformedAudio(err):
		s.metrics.Ingest.RecordIngestError("malformed_audio")
	case errors.IsIncompatibleFormat(err):
		s.metrics.Ingest.RecordIngestError("incompatible_format")
	case errors.IsCategory(err, errors.CategoryFileIO):
		s.metrics.Ingest.RecordIngestError("file_io")
	case errors.IsCategory(err, errors.CategoryValidation):
		s.metrics.Ingest.RecordIngestError("validation")
	default:
		s.metrics.Ingest.RecordIngestError("database")
	}
}
