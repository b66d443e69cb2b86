package export

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gareport/internal/report"
)

func sampleResult() *report.Result {
	return &report.Result{
		Columns: []report.Column{
			report.DimensionColumn("date"),
			report.MetricColumn("sessions", "INTEGER"),
			report.MetricColumn("avg time", "FLOAT"),
			report.MetricColumn("revenue", "CURRENCY"),
		},
		Rows: [][]any{
			{"20240301", int64(10), 1.5, "2.00"},
			{"20240302", "n/a", int64(2), "0.50"},
			{"20240303", int64(7), 0.25, "1.25"},
		},
	}
}

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeReplace, m)
	m, err = ParseMode("append")
	require.NoError(t, err)
	assert.Equal(t, ModeAppend, m)
	_, err = ParseMode("merge")
	assert.Error(t, err)
}

func TestNewTableSinkRejectsBadNames(t *testing.T) {
	_, err := NewTableSink("x.db", "report; DROP TABLE x", ModeReplace)
	assert.Error(t, err)
	_, err = NewTableSink("x.db", "daily_sessions", "upsert")
	assert.Error(t, err)
}

func TestCreateTableSQL(t *testing.T) {
	stmt := createTableSQL("daily", sampleResult().Columns, ModeReplace)
	assert.Equal(t, `CREATE OR REPLACE TABLE "daily" ("date" VARCHAR, "sessions" BIGINT, "avg time" DOUBLE, "revenue" VARCHAR)`, stmt)
	assert.Contains(t, createTableSQL("daily", sampleResult().Columns, ModeAppend), "CREATE TABLE IF NOT EXISTS")
}

func TestTableSinkWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	sink, err := NewTableSink(path, "daily", ModeReplace)
	require.NoError(t, err)
	sink.SetBatchSize(2)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, sampleResult()))
	assert.Equal(t, 3, sink.Last.Rows)
	assert.Equal(t, 2, sink.Last.Batches)

	appender, err := NewTableSink(path, "daily", ModeAppend)
	require.NoError(t, err)
	require.NoError(t, appender.Write(ctx, sampleResult()))

	db := openDB(t, path)
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM daily`).Scan(&count))
	assert.Equal(t, 6, count)

	var nulls int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM daily WHERE sessions IS NULL`).Scan(&nulls))
	assert.Equal(t, 2, nulls)

	var total float64
	require.NoError(t, db.QueryRow(`SELECT SUM("avg time") FROM daily WHERE date = '20240302'`).Scan(&total))
	assert.Equal(t, 4.0, total)
}

func TestTableSinkReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		sink, err := NewTableSink(path, "daily", ModeReplace)
		require.NoError(t, err)
		require.NoError(t, sink.Write(ctx, sampleResult()))
	}

	var count int
	require.NoError(t, openDB(t, path).QueryRow(`SELECT COUNT(*) FROM daily`).Scan(&count))
	assert.Equal(t, 3, count)
}

func TestScopeOf(t *testing.T) {
	tests := map[string]string{
		"customEvent:plan":            "EVENT",
		"customUser:tier":             "USER",
		"customItem:color":            "ITEM",
		"sessionCustomChannelGroup:1": "SESSION",
		"pagePath":                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ScopeOf(in), in)
	}
}

func TestInventoryWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	w := NewInventoryWriter(path)
	w.SetBatchSize(1)

	inv := []PropertyInventory{
		{
			PropertyID: "1", PropertyName: "Site", AccountName: "Acme",
			ServiceLevel: "GOOGLE_ANALYTICS_STANDARD",
			CreatedDate:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			CustomDimensions: []CustomDefinitionInfo{
				{APIName: "customEvent:plan", UIName: "Plan"},
				{APIName: "customUser:tier", UIName: "Tier", Scope: "USER"},
			},
			CustomMetrics: []CustomDefinitionInfo{{APIName: "customEvent:score", UIName: "Score", Scope: "EVENT", Unit: "STANDARD"}},
		},
		{PropertyID: "2", PropertyName: "App", AccountName: "Acme", ServiceLevel: "GOOGLE_ANALYTICS_360"},
	}
	ctx := context.Background()
	require.NoError(t, w.Write(ctx, inv))
	// a second run replaces the definitions of the same property
	require.NoError(t, w.Write(ctx, inv))

	db := openDB(t, path)
	var defs int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM custom_definitions`).Scan(&defs))
	assert.Equal(t, 3, defs)

	var ga360, props int
	require.NoError(t, db.QueryRow(`SELECT total_properties, ga360_properties FROM account_rollup WHERE account_name = 'Acme'`).Scan(&props, &ga360))
	assert.Equal(t, 2, props)
	assert.Equal(t, 1, ga360)

	var scope string
	require.NoError(t, db.QueryRow(`SELECT scope FROM custom_definitions WHERE api_name = 'customEvent:plan'`).Scan(&scope))
	assert.Equal(t, "EVENT", scope)
}
