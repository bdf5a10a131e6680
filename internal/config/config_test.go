package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAPERSEARCH_OVERFETCH_FACTOR", "")
	t.Setenv("PAPERSEARCH_EF_SEARCH", "")
	t.Setenv("PAPERSEARCH_EMBED_DIM", "")

	cfg := Load()
	require.Equal(t, 10, cfg.OverfetchFactor)
	require.Equal(t, 1000, cfg.EfSearch)
	require.Equal(t, 400, cfg.SnippetWindow)
	require.Equal(t, 3072, cfg.EmbedDim)
	require.Equal(t, "postgres", cfg.StoreDriver)
	require.Equal(t, 5*time.Second, cfg.StoreTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAPERSEARCH_OVERFETCH_FACTOR", "25")
	t.Setenv("PAPERSEARCH_EF_SEARCH", "not-a-number")
	t.Setenv("PAPERSEARCH_STORE", "SQLite")
	t.Setenv("PAPERSEARCH_EMBED_RATE", "2.5")
	t.Setenv("PAPERSEARCH_STORE_TIMEOUT", "750ms")

	cfg := Load()
	require.Equal(t, 25, cfg.OverfetchFactor)
	require.Equal(t, 1000, cfg.EfSearch, "invalid ints fall back to the default")
	require.Equal(t, "sqlite", cfg.StoreDriver)
	require.InDelta(t, 2.5, cfg.EmbedRatePerSec, 1e-9)
	require.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
}

func TestValidateEmbedDim(t *testing.T) {
	t.Setenv("PAPERSEARCH_EMBED_DIM", "")
	require.NoError(t, Load().Validate())

	t.Setenv("PAPERSEARCH_EMBED_DIM", "1536")
	err := Load().Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "PAPERSEARCH_EMBED_DIM=1536")

	require.Error(t, Config{}.Validate())
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, Config{LogLevel: in}.SlogLevel(), in)
	}
}
