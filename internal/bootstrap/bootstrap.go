// Package bootstrap builds the store, search engine and workflow client from
// configuration for the binaries under cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"papersearch/internal/config"
	"papersearch/internal/search"
	"papersearch/internal/storage"
	"papersearch/internal/storage/sqlite"

	tclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// OpenStore connects to the configured corpus store and applies its schema.
func OpenStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	if cfg.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.StoreTimeout)
		defer cancel()
	}
	switch cfg.StoreDriver {
	case DriverPostgres, "":
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return storage.NewPostgres(db), nil
	case DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func NewEngine(store storage.Reader, cfg config.Config, logger *slog.Logger) (*search.Engine, error) {
	return search.New(store,
		search.WithLogger(logger),
		search.WithOverfetchFactor(cfg.OverfetchFactor),
		search.WithEfSearch(cfg.EfSearch),
		search.WithWindowSize(cfg.SnippetWindow),
	)
}

func DialTemporal(cfg config.Config, logger *slog.Logger) (tclient.Client, error) {
	return tclient.Dial(tclient.Options{
		HostPort: cfg.TemporalAddress,
		Logger:   tlog.NewStructuredLogger(logger),
	})
}
