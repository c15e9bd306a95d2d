// Package cache holds the cross-run lookup cache of external registry
// responses, plus the pluggable stores it is persisted through.
package cache

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BlobKey is the store key the serialized cache lives under.
const BlobKey = "lookup_cache"

// Cache maps organisation identifiers and postcodes to the raw responses
// of the external reference services. Geocodes is a flat
// "<field>-<code>" → name table fetched once and kept indefinitely.
type Cache struct {
	Charity  map[string]map[string]any `json:"charity"`
	Company  map[string]map[string]any `json:"company"`
	Postcode map[string]map[string]any `json:"postcode"`
	Geocodes map[string]string         `json:"geocodes"`
}

// NewCache returns an empty cache with all namespaces allocated.
func NewCache() *Cache {
	return &Cache{
		Charity:  make(map[string]map[string]any),
		Company:  make(map[string]map[string]any),
		Postcode: make(map[string]map[string]any),
		Geocodes: make(map[string]string),
	}
}

// Load reads the cache blob from the store, returning a fresh empty cache
// when none has been saved yet.
func Load(ctx context.Context, store Store) (*Cache, error) {
	blob, err := store.Get(ctx, BlobKey)
	if eris.Is(err, ErrNotFound) {
		return NewCache(), nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: load blob")
	}

	c := NewCache()
	if err := json.Unmarshal(blob, c); err != nil {
		return nil, eris.Wrap(err, "cache: decode blob")
	}
	// JSON null namespaces from older blobs come back nil.
	if c.Charity == nil {
		c.Charity = make(map[string]map[string]any)
	}
	if c.Company == nil {
		c.Company = make(map[string]map[string]any)
	}
	if c.Postcode == nil {
		c.Postcode = make(map[string]map[string]any)
	}
	if c.Geocodes == nil {
		c.Geocodes = make(map[string]string)
	}
	return c, nil
}

// Save serializes the cache and writes it back to the store.
//
// This is a read-modify-write with no locking: concurrent runs sharing a
// store may lose each other's updates (last writer wins). Entries are
// additive and re-fetchable, so a lost update only costs a redundant
// lookup on a later run.
func Save(ctx context.Context, store Store, c *Cache) error {
	blob, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "cache: encode blob")
	}
	if err := store.Set(ctx, BlobKey, blob); err != nil {
		return eris.Wrap(err, "cache: save blob")
	}
	zap.L().Debug("cache: saved",
		zap.Int("charity", len(c.Charity)),
		zap.Int("company", len(c.Company)),
		zap.Int("postcode", len(c.Postcode)),
		zap.Int("geocodes", len(c.Geocodes)),
	)
	return nil
}
