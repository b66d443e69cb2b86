package cache

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	"gareport/internal/config"
	"gareport/internal/logger"
	"gareport/internal/report"
)

// ErrNotFound is returned when a saved result does not exist
var ErrNotFound = errors.New("saved result not found")

// CacheClient handles DuckDB-based caching operations
type CacheClient struct {
	db         *sql.DB
	presetName string
	cachePath  string
	now        func() time.Time
}

// GetCacheDir returns the directory holding one DuckDB file per preset
func GetCacheDir() (string, error) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cache"), nil
}

// NewCacheClient opens the cache database of a preset
func NewCacheClient(presetName string) (*CacheClient, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if presetName == "" {
		presetName = "default"
	}
	return Open(filepath.Join(cacheDir, presetName+".db"), presetName)
}

// Open opens a cache database at path; an empty path is in-memory
func Open(path, presetName string) (*CacheClient, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	// a single connection keeps in-memory databases shared
	db.SetMaxOpenConns(1)

	client := &CacheClient{
		db:         db,
		presetName: presetName,
		cachePath:  path,
		now:        time.Now,
	}
	if err := client.initializeTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache tables: %w", err)
	}
	return client, nil
}

// Path returns the database file path
func (c *CacheClient) Path() string {
	return c.cachePath
}

// Close closes the database connection
func (c *CacheClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// initializeTables creates the necessary cache tables
func (c *CacheClient) initializeTables() error {
	queries := []string{
		// Metadata cache table
		`CREATE TABLE IF NOT EXISTS metadata_cache (
			source VARCHAR NOT NULL,      -- property or view ID
			cache_type VARCHAR NOT NULL,  -- 'metadata', 'custom_dimensions', ...
			data TEXT NOT NULL,           -- JSON-encoded metadata
			created_at TIMESTAMP DEFAULT NOW(),
			expires_at TIMESTAMP NOT NULL,
			last_accessed TIMESTAMP DEFAULT NOW(),
			PRIMARY KEY (source, cache_type)
		)`,

		// Report page cache table
		`CREATE TABLE IF NOT EXISTS query_cache (
			query_hash VARCHAR PRIMARY KEY,
			source VARCHAR NOT NULL,
			query_params TEXT NOT NULL,     -- JSON-encoded request
			result_data TEXT NOT NULL,      -- JSON-encoded response
			row_count INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT NOW(),
			expires_at TIMESTAMP,           -- NULL = never expires
			last_accessed TIMESTAMP DEFAULT NOW()
		)`,

		// Saved report results
		`CREATE TABLE IF NOT EXISTS saved_results (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL,
			provider VARCHAR NOT NULL,
			source VARCHAR NOT NULL,
			start_date VARCHAR NOT NULL,
			end_date VARCHAR NOT NULL,
			row_count INTEGER NOT NULL,
			partial BOOLEAN NOT NULL,
			result_data TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		// Cache statistics table
		`CREATE TABLE IF NOT EXISTS cache_stats (
			preset_name VARCHAR PRIMARY KEY,
			total_hits INTEGER DEFAULT 0,
			total_misses INTEGER DEFAULT 0,
			last_cleanup TIMESTAMP,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		if _, err := c.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	_, err := c.db.Exec(`INSERT OR IGNORE INTO cache_stats (preset_name) VALUES (?)`, c.presetName)
	return err
}

// CacheMetadata stores metadata with TTL
func (c *CacheClient) CacheMetadata(ctx context.Context, source, cacheType string, data interface{}, ttlHours int) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	expiresAt := c.now().UTC().Add(time.Duration(ttlHours) * time.Hour)
	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO metadata_cache (source, cache_type, data, expires_at)
		VALUES (?, ?, ?, ?)
	`, source, cacheType, string(jsonData), expiresAt)
	return err
}

// GetCachedMetadata retrieves cached metadata if valid
func (c *CacheClient) GetCachedMetadata(ctx context.Context, source, cacheType string, result interface{}) (bool, error) {
	var data string
	var expiresAt time.Time

	err := c.db.QueryRowContext(ctx, `
		SELECT data, expires_at FROM metadata_cache
		WHERE source = ? AND cache_type = ?
	`, source, cacheType).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.incrementMisses(ctx)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query cache: %w", err)
	}

	// Check if cache entry has expired
	if c.now().After(expiresAt) {
		c.incrementMisses(ctx)
		c.exec(ctx, `DELETE FROM metadata_cache WHERE source = ? AND cache_type = ?`, source, cacheType)
		return false, nil
	}

	// Update last accessed time
	c.exec(ctx, `UPDATE metadata_cache SET last_accessed = NOW() WHERE source = ? AND cache_type = ?`, source, cacheType)
	if err := json.Unmarshal([]byte(data), result); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	c.incrementHits(ctx)
	return true, nil
}

// CacheQuery stores a report response; ttlHours <= 0 never expires
func (c *CacheClient) CacheQuery(ctx context.Context, source, queryHash string, queryParams, resultData interface{}, rowCount int, ttlHours int) error {
	jsonParams, err := json.Marshal(queryParams)
	if err != nil {
		return fmt.Errorf("failed to marshal query params: %w", err)
	}
	jsonData, err := json.Marshal(resultData)
	if err != nil {
		return fmt.Errorf("failed to marshal result data: %w", err)
	}

	var expiresAt sql.NullTime
	if ttlHours > 0 {
		expiresAt = sql.NullTime{Time: c.now().UTC().Add(time.Duration(ttlHours) * time.Hour), Valid: true}
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO query_cache (query_hash, source, query_params, result_data, row_count, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, queryHash, source, string(jsonParams), string(jsonData), rowCount, expiresAt)
	return err
}

// GetCachedQuery retrieves a cached report response if valid
func (c *CacheClient) GetCachedQuery(ctx context.Context, queryHash string, result interface{}) (bool, error) {
	var data string
	var expiresAt sql.NullTime

	err := c.db.QueryRowContext(ctx, `
		SELECT result_data, expires_at FROM query_cache WHERE query_hash = ?
	`, queryHash).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.incrementMisses(ctx)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query cache: %w", err)
	}

	// Check if cache entry has expired
	if expiresAt.Valid && c.now().After(expiresAt.Time) {
		c.incrementMisses(ctx)
		c.exec(ctx, `DELETE FROM query_cache WHERE query_hash = ?`, queryHash)
		return false, nil
	}

	// Update last accessed time
	c.exec(ctx, `UPDATE query_cache SET last_accessed = NOW() WHERE query_hash = ?`, queryHash)
	if err := json.Unmarshal([]byte(data), result); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	c.incrementHits(ctx)
	return true, nil
}

// SaveResult stores a report result under a generated ID
func (c *CacheClient) SaveResult(ctx context.Context, name, provider, source string, res *report.Result) (*config.SavedResult, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	saved := &config.SavedResult{
		ID:        uuid.NewString(),
		Name:      name,
		Provider:  provider,
		Source:    source,
		StartDate: res.DateRange.Start,
		EndDate:   res.DateRange.End,
		RowCount:  res.Len(),
		Partial:   res.Partial,
		CreatedAt: c.now().UTC(),
	}
	// Unnamed results are listed under their short ID
	if saved.Name == "" {
		saved.Name = saved.ID[:8]
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO saved_results (id, name, provider, source, start_date, end_date, row_count, partial, result_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, saved.ID, saved.Name, saved.Provider, saved.Source, saved.StartDate, saved.EndDate,
		saved.RowCount, saved.Partial, string(data), saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save result: %w", err)
	}
	return saved, nil
}

// ListResults returns saved results, newest first
func (c *CacheClient) ListResults(ctx context.Context) ([]config.SavedResult, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, provider, source, start_date, end_date, row_count, partial, created_at
		FROM saved_results
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []config.SavedResult
	for rows.Next() {
		var r config.SavedResult
		if err := rows.Scan(&r.ID, &r.Name, &r.Provider, &r.Source, &r.StartDate, &r.EndDate, &r.RowCount, &r.Partial, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// LoadResult finds a saved result by ID, ID prefix or name
func (c *CacheClient) LoadResult(ctx context.Context, ref string) (*config.SavedResult, *report.Result, error) {
	var meta config.SavedResult
	var data string
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, provider, source, start_date, end_date, row_count, partial, created_at, result_data
		FROM saved_results
		WHERE id = ? OR name = ? OR id LIKE ?
		ORDER BY created_at DESC
		LIMIT 1
	`, ref, ref, ref+"%").Scan(&meta.ID, &meta.Name, &meta.Provider, &meta.Source, &meta.StartDate,
		&meta.EndDate, &meta.RowCount, &meta.Partial, &meta.CreatedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load result: %w", err)
	}

	// Restore typed cells
	res, err := decodeResult([]byte(data))
	if err != nil {
		return nil, nil, err
	}
	return &meta, res, nil
}

// DeleteResult removes a saved result by ID or name
func (c *CacheClient) DeleteResult(ctx context.Context, ref string) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM saved_results WHERE id = ? OR name = ?`, ref, ref)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return nil
}

// GetCacheStats returns cache performance statistics
func (c *CacheClient) GetCacheStats(ctx context.Context) (*config.CacheStats, error) {
	var stats config.CacheStats
	var lastCleanup sql.NullTime
	err := c.db.QueryRowContext(ctx, `
		SELECT total_hits, total_misses, last_cleanup, created_at, updated_at
		FROM cache_stats WHERE preset_name = ?
	`, c.presetName).Scan(&stats.TotalHits, &stats.TotalMisses, &lastCleanup, &stats.CreatedAt, &stats.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastCleanup.Valid {
		stats.LastCleanup = &lastCleanup.Time
	}

	// Calculate hit rate
	total := stats.TotalHits + stats.TotalMisses
	if total > 0 {
		stats.HitRate = float64(stats.TotalHits) / float64(total) * 100
	}

	// Count cache entries and saved results
	err = c.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM metadata_cache) + (SELECT COUNT(*) FROM query_cache),
		       (SELECT COUNT(*) FROM saved_results)
	`).Scan(&stats.EntriesCount, &stats.SavedResults)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// CleanupExpiredEntries removes expired cache entries; saved results are kept
func (c *CacheClient) CleanupExpiredEntries(ctx context.Context) (int, error) {
	// Clean up expired metadata cache
	now := c.now().UTC()
	result1, err := c.db.ExecContext(ctx, `DELETE FROM metadata_cache WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	deleted1, _ := result1.RowsAffected()

	// Clean up expired report pages
	result2, err := c.db.ExecContext(ctx, `DELETE FROM query_cache WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	if err != nil {
		return int(deleted1), err
	}
	deleted2, _ := result2.RowsAffected()

	// Update cleanup timestamp
	_, err = c.db.ExecContext(ctx, `
		UPDATE cache_stats SET last_cleanup = NOW(), updated_at = NOW() WHERE preset_name = ?
	`, c.presetName)
	return int(deleted1 + deleted2), err
}

// Helper methods for cache statistics
func (c *CacheClient) incrementHits(ctx context.Context) {
	c.exec(ctx, `UPDATE cache_stats SET total_hits = total_hits + 1, updated_at = NOW() WHERE preset_name = ?`, c.presetName)
}

func (c *CacheClient) incrementMisses(ctx context.Context) {
	c.exec(ctx, `UPDATE cache_stats SET total_misses = total_misses + 1, updated_at = NOW() WHERE preset_name = ?`, c.presetName)
}

// exec runs bookkeeping statements whose failure must not fail the caller
func (c *CacheClient) exec(ctx context.Context, query string, args ...interface{}) {
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		logger.Debug().Err(err).Msg("Cache bookkeeping failed")
	}
}

type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

// decodeResult restores int64 and float64 cells from their column kinds
func decodeResult(data []byte) (*report.Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var res report.Result
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal saved result: %w", err)
	}

	restore := func(cols []report.Column, values []any) {
		for i, v := range values {
			n, ok := v.(number)
			if !ok || i >= len(cols) {
				continue
			}
			switch cols[i].Kind {
			case report.KindInteger:
				if x, err := n.Int64(); err == nil {
					values[i] = x
				}
			case report.KindFloat:
				if x, err := n.Float64(); err == nil {
					values[i] = x
				}
			}
		}
	}
	for _, row := range res.Rows {
		restore(res.Columns, row)
	}
	for _, t := range res.Totals {
		restore(metricColumns(res.Columns), t.Values)
	}
	return &res, nil
}

func metricColumns(cols []report.Column) []report.Column {
	for i, c := range cols {
		if c.Kind != report.KindCategory {
			return cols[i:]
		}
	}
	return nil
}
