// Package audiostore implements the query side of the sample store:
// collection listing, waveform min/max aggregation, raw WAV slice
// extraction and timestamp-to-collection resolution.
package audiostore

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/errors"
	"github.com/tphakala/passby-go/internal/observability"
	"github.com/tphakala/passby-go/internal/wavio"
)

// extractChunkSize is the number of samples buffered between encoder writes
// during raw extraction.
const extractChunkSize = 32 * 1024

// resolveCacheTTL bounds how long a timestamp resolution is memoized. The
// review UI tends to ask for the same event's suggestion repeatedly.
const resolveCacheTTL = 30 * time.Second

// Bucket is one waveform point: min and max amplitude over an equal-width
// sub-interval starting at StartNs. Empty sub-intervals carry min=max=0.
type Bucket struct {
	StartNs int64
	Min     int64
	Max     int64
}

// Service answers read queries against ingested audio.
type Service struct {
	ds           datastore.Interface
	metrics      *observability.Metrics
	resolveCache *cache.Cache
}

// New creates a query service over the given datastore. metrics may be nil.
func New(ds datastore.Interface, metrics *observability.Metrics) *Service {
	return &Service{
		ds:           ds,
		metrics:      metrics,
		resolveCache: cache.New(resolveCacheTTL, time.Minute),
	}
}

// List returns all registered collections ordered by name.
func (s *Service) List(ctx context.Context) ([]datastore.Collection, error) {
	return s.ds.ListCollections(ctx)
}

// Info returns the metadata of a single collection.
func (s *Service) Info(ctx context.Context, name string) (datastore.Collection, error) {
	return s.ds.GetCollection(ctx, name)
}

// Aggregate computes exactly points min/max buckets over [startNs, endNs).
// Bucket i starts at startNs + i*W with W = max(1, (endNs-startNs)/points);
// buckets without samples are zero-filled so the caller always gets a
// fixed-length series. A window with no overlap at all against the
// collection's registered range yields an empty slice.
func (s *Service) Aggregate(ctx context.Context, name string, startNs, endNs int64, points int) ([]Bucket, error) {
	start := time.Now()

	buckets, err := s.aggregate(ctx, name, startNs, endNs, points)
	s.recordQuery("aggregate", start, err)
	if err == nil && s.metrics != nil {
		s.metrics.Query.RecordWaveformBuckets(len(buckets))
	}
	return buckets, err
}

func (s *Service) aggregate(ctx context.Context, name string, startNs, endNs int64, points int) ([]Bucket, error) {
	if points <= 0 {
		return nil, errors.Newf("point count must be positive, got %d", points).
			Component("audiostore").
			Category(errors.CategoryInvalidRange).
			Build()
	}
	if endNs <= startNs {
		return nil, errors.Newf("window end must be after start").
			Component("audiostore").
			Category(errors.CategoryInvalidRange).
			Context("start_ns", startNs).
			Context("end_ns", endNs).
			Build()
	}

	collection, err := s.ds.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}

	// A window with no overlap against the registered range reads as
	// "no data", not an error.
	if startNs > collection.EndNs || endNs <= collection.StartNs {
		return []Bucket{}, nil
	}

	width := (endNs - startNs) / int64(points)
	if width < 1 {
		width = 1
	}

	rows, err := s.ds.AggregateMinMax(ctx, collection.ID, startNs, endNs, width)
	if err != nil {
		return nil, err
	}

	out := make([]Bucket, points)
	for i := range out {
		out[i].StartNs = startNs + int64(i)*width
	}

	filled := make([]bool, points)
	for _, row := range rows {
		idx := int(row.Bucket)
		if idx < 0 {
			continue
		}
		// The remainder tail of a window not divisible by points folds
		// into the final bucket.
		if idx >= points {
			idx = points - 1
		}
		if !filled[idx] {
			out[idx].Min, out[idx].Max = row.MinAmp, row.MaxAmp
			filled[idx] = true
			continue
		}
		if row.MinAmp < out[idx].Min {
			out[idx].Min = row.MinAmp
		}
		if row.MaxAmp > out[idx].Max {
			out[idx].Max = row.MaxAmp
		}
	}

	return out, nil
}

// Extract reconstructs the samples with ts in [startNs, endNs) as a valid
// self-contained WAV container using the collection's registered format.
// Amplitudes pass through bit-identical; no resampling happens here. A
// window containing no samples is an EmptyResult error, never a zero-length
// container.
func (s *Service) Extract(ctx context.Context, name string, startNs, endNs int64) ([]byte, error) {
	start := time.Now()

	payload, streamed, err := s.extract(ctx, name, startNs, endNs)
	s.recordQuery("stream", start, err)
	if err == nil && s.metrics != nil {
		s.metrics.Query.RecordExtraction(streamed, int64(len(payload)))
	}
	return payload, err
}

func (s *Service) extract(ctx context.Context, name string, startNs, endNs int64) ([]byte, int64, error) {
	if endNs <= startNs {
		return nil, 0, errors.Newf("slice end must be after start").
			Component("audiostore").
			Category(errors.CategoryInvalidRange).
			Context("start_ns", startNs).
			Context("end_ns", endNs).
			Build()
	}

	collection, err := s.ds.GetCollection(ctx, name)
	if err != nil {
		return nil, 0, err
	}

	encoder := wavio.NewEncoder(collection.SampleRate, collection.BitDepth, collection.Channels)
	chunk := make([]int, 0, extractChunkSize)

	streamed, err := s.ds.StreamSamples(ctx, collection.ID, startNs, endNs, func(amplitude int) error {
		chunk = append(chunk, amplitude)
		if len(chunk) == cap(chunk) {
			if err := encoder.WriteSamples(chunk); err != nil {
				return err
			}
			chunk = chunk[:0]
		}
		return nil
	})
	if err != nil {
		return nil, streamed, err
	}

	if streamed == 0 {
		return nil, 0, errors.Newf("no samples in [%d, %d) of collection %q", startNs, endNs, name).
			Component("audiostore").
			Category(errors.CategoryEmptyResult).
			Context("collection", name).
			Build()
	}

	if err := encoder.WriteSamples(chunk); err != nil {
		return nil, streamed, err
	}

	payload, err := encoder.Bytes()
	if err != nil {
		return nil, streamed, err
	}
	return payload, streamed, nil
}

// Resolve maps a timestamp to the name of a collection whose registered
// [start, end] range contains it, both ends inclusive. When several ranges
// overlap the timestamp the most recently registered collection wins, so
// repeated calls stay deterministic. The second return reports whether any
// collection matched.
func (s *Service) Resolve(ctx context.Context, tsNs int64) (string, bool, error) {
	key := strconv.FormatInt(tsNs, 10)
	if cached, ok := s.resolveCache.Get(key); ok {
		name := cached.(string)
		if s.metrics != nil {
			s.metrics.Query.RecordResolveLookup("cached")
		}
		return name, name != "", nil
	}

	start := time.Now()
	matches, err := s.ds.CollectionsContaining(ctx, tsNs)
	s.recordQuery("resolve", start, err)
	if err != nil {
		return "", false, err
	}

	if len(matches) == 0 {
		s.resolveCache.SetDefault(key, "")
		if s.metrics != nil {
			s.metrics.Query.RecordResolveLookup("miss")
		}
		return "", false, nil
	}

	name := matches[0].Name
	s.resolveCache.SetDefault(key, name)
	if s.metrics != nil {
		s.metrics.Query.RecordResolveLookup("hit")
	}
	return name, true, nil
}

func (s *Service) recordQuery(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		s.metrics.Query.RecordQueryError(operation, errorType(err))
	}
	s.metrics.Query.RecordQuery(operation, status, time.Since(start))
}

// errorType maps an error to a low-cardinality metric label.
func errorType(err error) string {
	switch {
	case errors.IsNotFound(err):
		return "not_found"
	case errors.IsInvalidRange(err):
		return "invalid_range"
	case errors.IsEmptyResult(err):
		return "empty_result"
	default:
		return "database"
	}
}
