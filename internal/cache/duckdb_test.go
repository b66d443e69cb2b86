package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gareport/internal/report"
)

func newTestClient(t *testing.T) *CacheClient {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "test.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleResult() *report.Result {
	return &report.Result{
		Columns: []report.Column{
			report.DimensionColumn("date"),
			report.MetricColumn("sessions", "INTEGER"),
			report.MetricColumn("rate", "FLOAT"),
			report.MetricColumn("revenue", "CURRENCY"),
		},
		Rows: [][]any{
			{"20240301", int64(12), 0.5, "1.20"},
			{"20240302", int64(7), 0.25, "0.00"},
		},
		Totals:    []report.TotalRow{{Label: "TOTAL", Values: []any{int64(19), 0.75, "1.20"}}},
		TotalRows: 2,
		DateRange: report.DateRange{Start: "2024-03-01", End: "2024-03-02"},
	}
}

func TestMetadataCache(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	var out map[string]string
	hit, err := c.GetCachedMetadata(ctx, "123", "metadata", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.CacheMetadata(ctx, "123", "metadata", map[string]string{"a": "b"}, 24))
	require.NoError(t, c.CacheMetadata(ctx, "123", "custom_dimensions", map[string]string{"c": "d"}, 24))

	hit, err = c.GetCachedMetadata(ctx, "123", "metadata", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, map[string]string{"a": "b"}, out)

	stats, err := c.GetCacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalHits)
	assert.Equal(t, 1, stats.TotalMisses)
	assert.Equal(t, 2, stats.EntriesCount)
	assert.InDelta(t, 50.0, stats.HitRate, 0.001)
}

func TestMetadataCacheExpires(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.CacheMetadata(ctx, "123", "metadata", []string{"x"}, 1))

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	var out []string
	hit, err := c.GetCachedMetadata(ctx, "123", "metadata", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestQueryCache(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	type page struct {
		RowCount int `json:"rowCount"`
	}
	require.NoError(t, c.CacheQuery(ctx, "123", "hash-1", map[string]int{"offset": 0}, page{RowCount: 3}, 3, 0))

	var out page
	hit, err := c.GetCachedQuery(ctx, "hash-1", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, out.RowCount)

	hit, err = c.GetCachedQuery(ctx, "hash-2", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCleanupExpiredEntries(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.CacheMetadata(ctx, "1", "metadata", "a", 1))
	require.NoError(t, c.CacheQuery(ctx, "1", "q1", "p", "r", 1, 1))
	require.NoError(t, c.CacheQuery(ctx, "1", "q2", "p", "r", 1, 0))

	c.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	n, err := c.CleanupExpiredEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := c.GetCacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EntriesCount)
	assert.NotNil(t, stats.LastCleanup)
}

func TestSavedResults(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	saved, err := c.SaveResult(ctx, "march", "ga4", "123", sampleResult())
	require.NoError(t, err)
	assert.Len(t, saved.ID, 36)
	assert.Equal(t, 2, saved.RowCount)
	assert.Equal(t, "2024-03-01", saved.StartDate)

	list, err := c.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "march", list[0].Name)

	for _, ref := range []string{saved.ID, saved.ID[:8], "march"} {
		meta, res, err := c.LoadResult(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, saved.ID, meta.ID)
		assert.Equal(t, sampleResult().Rows, res.Rows)
		assert.Equal(t, sampleResult().Totals, res.Totals)
	}

	stats, err := c.GetCacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SavedResults)

	require.NoError(t, c.DeleteResult(ctx, "march"))
	_, _, err = c.LoadResult(ctx, "march")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.DeleteResult(ctx, "march"), ErrNotFound)
}

func TestSaveResultDefaultName(t *testing.T) {
	c := newTestClient(t)
	saved, err := c.SaveResult(context.Background(), "", "ga3", "456", sampleResult())
	require.NoError(t, err)
	assert.Equal(t, saved.ID[:8], saved.Name)
}
