package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/internal/config"
)

// newCacheStore opens the configured lookup-cache backend.
func newCacheStore(ctx context.Context, cfg config.StoreConfig) (cache.Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return cache.NewSQLite(cfg.Path)
	case "postgres":
		return cache.NewPostgres(ctx, cfg.DatabaseURL)
	case "memory":
		return cache.NewMemory(), nil
	default:
		return nil, eris.Errorf("unknown store driver %q (valid: sqlite, postgres, memory)", cfg.Driver)
	}
}
