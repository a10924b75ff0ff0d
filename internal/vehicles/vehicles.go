// Package vehicles serves the vehicle catalog the annotation UI offers in
// its type picker. The catalog lives in a small JSON file next to the
// config and is cached between reads.
package vehicles

import (
	"os"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/errors"
)

// defaultCacheTTL applies when the configured TTL is unset.
const defaultCacheTTL = 5 * time.Minute

const cacheKey = "vehicle-catalog"

// Vehicle is one catalog entry.
type Vehicle struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Category    string `json:"category"`
}

// Catalog loads and caches the vehicle list.
type Catalog struct {
	settings *conf.Settings
	cache    *cache.Cache
}

// New creates a catalog reading from the path in settings.
func New(settings *conf.Settings) *Catalog {
	ttl := time.Duration(settings.Vehicles.CacheTTLMin) * time.Minute
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Catalog{
		settings: settings,
		cache:    cache.New(ttl, 10*time.Minute),
	}
}

// List returns the catalog, from cache when fresh. A missing or unreadable
// catalog file is a configuration error.
func (c *Catalog) List() ([]Vehicle, error) {
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]Vehicle), nil
	}

	path := c.settings.Vehicles.ConfigPath
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("vehicles").
			Category(errors.CategoryConfiguration).
			FileContext(path, 0).
			Build()
	}

	vehicles, err := parseCatalog(data)
	if err != nil {
		return nil, errors.New(err).
			Component("vehicles").
			Category(errors.CategoryConfiguration).
			FileContext(path, int64(len(data))).
			Build()
	}

	c.cache.SetDefault(cacheKey, vehicles)
	return vehicles, nil
}

// Invalidate drops the cached catalog so the next List re-reads the file.
func (c *Catalog) Invalidate() {
	c.cache.Delete(cacheKey)
}

// parseCatalog reads the top-level JSON array. Entries are tolerated with
// missing fields; anything that is not an object is skipped.
func parseCatalog(data []byte) ([]Vehicle, error) {
	root, err := jason.NewValueFromBytes(data)
	if err != nil {
		return nil, err
	}

	items, err := root.Array()
	if err != nil {
		return nil, err
	}

	vehicles := make([]Vehicle, 0, len(items))
	for _, item := range items {
		obj, err := item.Object()
		if err != nil {
			continue
		}
		var v Vehicle
		v.ID, _ = obj.GetString("id")
		v.DisplayName, _ = obj.GetString("displayName")
		v.Category, _ = obj.GetString("category")
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}
