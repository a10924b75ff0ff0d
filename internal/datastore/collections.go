package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/tphakala/passby-go/internal/errors"
)

// ListCollections returns all collections ordered by name.
func (ds *DataStore) ListCollections(ctx context.Context) ([]Collection, error) {
	var collections []Collection
	if err := ds.DB.WithContext(ctx).Order("name ASC").Find(&collections).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list-collections").
			Build()
	}
	return collections, nil
}

// GetCollection retrieves a collection by its unique name.
func (ds *DataStore) GetCollection(ctx context.Context, name string) (Collection, error) {
	var collection Collection
	err := ds.DB.WithContext(ctx).Where("name = ?", name).First(&collection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Collection{}, errors.NotFoundError("collection", name)
		}
		return Collection{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get-collection").
			Context("collection", name).
			Build()
	}
	return collection, nil
}

// CollectionsContaining returns the collections whose registered [start, end]
// range contains tsNs, most recently registered first. The ordering is the
// resolver's tie-break for overlapping ranges.
func (ds *DataStore) CollectionsContaining(ctx context.Context, tsNs int64) ([]Collection, error) {
	var collections []Collection
	err := ds.DB.WithContext(ctx).
		Where("start_ns <= ? AND end_ns >= ?", tsNs, tsNs).
		Order("id DESC").
		Find(&collections).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "collections-containing").
			Context("ts_ns", tsNs).
			Build()
	}
	return collections, nil
}
