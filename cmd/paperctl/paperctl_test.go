package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"papersearch/internal/activities"
	"papersearch/internal/models"
	"papersearch/internal/storage"
	"papersearch/internal/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateFlag(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    *time.Time
		wantErr bool
	}{
		{name: "empty means no bound", in: ""},
		{name: "iso date", in: "2024-03-01", want: ptr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{name: "wrong layout", in: "03/01/2024", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDateFlag(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDateReport(t *testing.T) {
	got := formatDateReport(activities.DateRepairReport{
		Total: 5, InvalidFormat: 1, Mismatched: 2, MoreThanThreeMonthsOff: 1, Updated: 2, Deleted: 1,
	})
	assert.Contains(t, got, "FINAL COUNTS")
	assert.Contains(t, got, "Invalid format: 1\n")
	assert.Contains(t, got, "Incorrect date: 2\n")
	assert.Contains(t, got, "More than 3 months off: 1\n")
	assert.Contains(t, got, "Dates updated in database: 2\n")
	assert.Contains(t, got, "Papers deleted: 1\n")

	dry := formatDateReport(activities.DateRepairReport{Total: 1, Mismatched: 1, DryRun: true})
	assert.Contains(t, dry, "Dry run")
	assert.NotContains(t, dry, "Dates updated")
}

func TestCommandsAgainstSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.db")
	t.Setenv("PAPERSEARCH_STORE", "sqlite")
	t.Setenv("PAPERSEARCH_SQLITE_PATH", path)
	t.Setenv("PAPERSEARCH_EMBED_PROVIDERS", "mock")

	ctx := context.Background()
	store, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	_, err = store.CreatePapersWithPages(ctx, []storage.NewPaper{
		{
			UniversalID:     "2301.00001",
			Title:           "Graph Networks",
			Abstract:        "We study graph neural networks.",
			PublicationDate: time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC),
			Votes:           3,
			Pages:           []string{"graph neural networks on citation data", "appendix"},
		},
		{
			UniversalID:     "not-an-id",
			Title:           "Stray",
			Abstract:        "Unrelated.",
			PublicationDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			Pages:           []string{"nothing here"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	t.Cleanup(func() { jsonOutput = false })

	t.Run("keyword", func(t *testing.T) {
		out := execute(t, "keyword", "--json", "graph")
		var results []models.KeywordResult
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		require.Len(t, results, 1)
		assert.Equal(t, "2301.00001", results[0].UniversalID)
		require.NotEmpty(t, results[0].Occurrences)
		assert.Equal(t, 1, results[0].Occurrences[0].PageNumber)
	})

	t.Run("page", func(t *testing.T) {
		jsonOutput = false
		out := execute(t, "page", "2301.00001", "2")
		assert.Contains(t, out, "**Page Number**: 2")
		assert.Contains(t, out, "appendix")
	})

	t.Run("missing abstract", func(t *testing.T) {
		rootCmd.SetArgs([]string{"abstract", "9999.99999"})
		err := rootCmd.ExecuteContext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("check-dates dry run", func(t *testing.T) {
		out := execute(t, "check-dates", "--dry-run", "--json")
		var report activities.DateRepairReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, 2, report.Total)
		assert.Equal(t, 1, report.InvalidFormat)
		assert.Equal(t, 1, report.Mismatched)
		assert.Equal(t, 1, report.MoreThanThreeMonthsOff)
		assert.True(t, report.DryRun)
	})
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return strings.TrimSpace(buf.String())
}

func ptr[T any](v T) *T { return &v }
