package datastore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/passby-go/internal/errors"
)

// CommitFile writes one file's samples and the matching registry update in a
// single transaction. If the collection does not exist it is created with
// the file's format and [startNs, endNs] range; otherwise the format must
// match and the range is extended to the union. Sample writes upsert on
// (collection_id, ts_ns, channel), so re-ingesting a file leaves no
// duplicate timestamps: the last write wins.
func (ds *DataStore) CommitFile(ctx context.Context, name string, format FileFormat, startNs, endNs int64, samples []Sample, batchSize int) (Collection, error) {
	var collection Collection

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", name).First(&collection).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			collection = Collection{
				Name:       name,
				SampleRate: format.SampleRate,
				Channels:   format.Channels,
				BitDepth:   format.BitDepth,
				StartNs:    startNs,
				EndNs:      endNs,
			}
			if err := tx.Create(&collection).Error; err != nil {
				return errors.New(err).
					Component("datastore").
					Category(errors.CategoryDatabase).
					Context("operation", "create-collection").
					Context("collection", name).
					Build()
			}

		case err != nil:
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "lookup-collection").
				Context("collection", name).
				Build()

		default:
			if collection.SampleRate != format.SampleRate ||
				collection.Channels != format.Channels ||
				collection.BitDepth != format.BitDepth {
				return errors.Newf(
					"file format %d Hz/%d ch/%d bit does not match collection %q with %d Hz/%d ch/%d bit",
					format.SampleRate, format.Channels, format.BitDepth,
					name, collection.SampleRate, collection.Channels, collection.BitDepth).
					Component("datastore").
					Category(errors.CategoryIncompatibleFormat).
					Context("collection", name).
					Build()
			}

			if startNs < collection.StartNs {
				collection.StartNs = startNs
			}
			if endNs > collection.EndNs {
				collection.EndNs = endNs
			}
			updates := map[string]any{
				"start_ns": collection.StartNs,
				"end_ns":   collection.EndNs,
			}
			if err := tx.Model(&collection).Updates(updates).Error; err != nil {
				return errors.New(err).
					Component("datastore").
					Category(errors.CategoryDatabase).
					Context("operation", "extend-collection-range").
					Context("collection", name).
					Build()
			}
		}

		for i := range samples {
			samples[i].CollectionID = collection.ID
		}

		err = tx.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(samples, batchSize).Error
		if err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "insert-samples").
				Context("collection", name).
				Context("sample_count", len(samples)).
				Build()
		}
		return nil
	})
	if err != nil {
		return Collection{}, err
	}
	return collection, nil
}

// AggregateMinMax computes per-bucket min/max amplitudes over
// [startNs, endNs) in a single SQL pass. Bucket index is
// (ts_ns - startNs) / bucketWidthNs; only non-empty buckets are returned,
// callers zero-fill the rest. The result size is bounded by the number of
// non-empty buckets regardless of how many samples the window covers.
func (ds *DataStore) AggregateMinMax(ctx context.Context, collectionID uint, startNs, endNs, bucketWidthNs int64) ([]MinMaxBucket, error) {
	if bucketWidthNs <= 0 {
		return nil, errors.Newf("bucket width must be positive, got %d", bucketWidthNs).
			Component("datastore").
			Category(errors.CategoryInvalidRange).
			Build()
	}

	// Integer division differs between dialects: MySQL's / yields a
	// decimal, so it needs DIV to match SQLite's truncating /.
	bucketExpr := "(ts_ns - ?) / ?"
	if ds.DB.Dialector.Name() == "mysql" {
		bucketExpr = "(ts_ns - ?) DIV ?"
	}

	var buckets []MinMaxBucket
	err := ds.DB.WithContext(ctx).
		Model(&Sample{}).
		Select(bucketExpr+" AS bucket, MIN(amplitude) AS min_amp, MAX(amplitude) AS max_amp", startNs, bucketWidthNs).
		Where("collection_id = ? AND ts_ns >= ? AND ts_ns < ?", collectionID, startNs, endNs).
		Group("bucket").
		Order("bucket ASC").
		Scan(&buckets).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "aggregate-min-max").
			Context("collection_id", collectionID).
			Build()
	}
	return buckets, nil
}

// StreamSamples feeds every amplitude with ts in [startNs, endNs) to fn,
// ordered by timestamp then channel, without materializing the result set.
// It returns the number of samples streamed.
func (ds *DataStore) StreamSamples(ctx context.Context, collectionID uint, startNs, endNs int64, fn func(amplitude int) error) (int64, error) {
	rows, err := ds.DB.WithContext(ctx).
		Model(&Sample{}).
		Select("amplitude").
		Where("collection_id = ? AND ts_ns >= ? AND ts_ns < ?", collectionID, startNs, endNs).
		Order("ts_ns ASC, channel ASC").
		Rows()
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "stream-samples").
			Context("collection_id", collectionID).
			Build()
	}
	defer rows.Close()

	var streamed int64
	for rows.Next() {
		var amplitude int64
		if err := rows.Scan(&amplitude); err != nil {
			return streamed, errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "scan-sample").
				Build()
		}
		if err := fn(int(amplitude)); err != nil {
			return streamed, err
		}
		streamed++
	}
	if err := rows.Err(); err != nil {
		return streamed, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "stream-samples").
			Build()
	}
	return streamed, nil
}
