package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"papersearch/internal/config"
	"papersearch/internal/search"

	"github.com/stretchr/testify/require"
)

func TestOpenStoreSQLite(t *testing.T) {
	cfg := config.Config{
		StoreDriver:     DriverSQLite,
		SQLitePath:      filepath.Join(t.TempDir(), "nested", "papers.db"),
		StoreTimeout:    5 * time.Second,
		OverfetchFactor: 10,
		EfSearch:        1000,
		SnippetWindow:   400,
	}
	store, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()

	engine, err := NewEngine(store, cfg, nil)
	require.NoError(t, err)
	results, err := engine.SearchByKeyword(context.Background(), "anything", search.KeywordOptions{})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.Config{StoreDriver: "badger", StoreTimeout: time.Second})
	require.ErrorContains(t, err, "unknown store driver")
}

func TestNewEngineRejectsBadTuning(t *testing.T) {
	_, err := NewEngine(nil, config.Config{}, nil)
	require.Error(t, err)
}
