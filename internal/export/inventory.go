package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"gareport/internal/logger"
)

// InventoryWriter stores GA4 property inventories in DuckDB tables
type InventoryWriter struct {
	dbPath    string
	batchSize int
}

// NewInventoryWriter creates a writer for the database at dbPath
func NewInventoryWriter(dbPath string) *InventoryWriter {
	return &InventoryWriter{
		dbPath:    dbPath,
		batchSize: 20, // properties per transaction
	}
}

// SetBatchSize updates the batch size for processing
func (w *InventoryWriter) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// Write replaces the stored rows of every given property and refreshes the
// summary views
func (w *InventoryWriter) Write(ctx context.Context, inventories []PropertyInventory) error {
	db, err := sql.Open("duckdb", w.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	if err := initializeInventory(ctx, db); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	for i := 0; i < len(inventories); i += w.batchSize {
		end := i + w.batchSize
		if end > len(inventories) {
			end = len(inventories)
		}
		if err := w.processBatch(ctx, db, inventories[i:end]); err != nil {
			return fmt.Errorf("failed to process batch %d-%d: %w", i+1, end, err)
		}
		logger.Debug().Int("from", i+1).Int("to", end).Int("total", len(inventories)).Msg("Stored properties")
	}

	if err := createInventoryViews(ctx, db); err != nil {
		return fmt.Errorf("failed to create analysis views: %w", err)
	}
	return nil
}

func initializeInventory(ctx context.Context, db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS properties (
			property_id VARCHAR PRIMARY KEY,
			property_name VARCHAR NOT NULL,
			account_id VARCHAR,
			account_name VARCHAR,
			currency VARCHAR,
			timezone VARCHAR,
			service_level VARCHAR,
			created_date TIMESTAMP,
			custom_dimensions_count INTEGER,
			custom_metrics_count INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS custom_definitions (
			property_id VARCHAR NOT NULL,
			kind VARCHAR NOT NULL,  -- 'dimension' or 'metric'
			api_name VARCHAR NOT NULL,
			ui_name VARCHAR,
			description TEXT,
			scope VARCHAR,
			unit VARCHAR
		)`,
	}
	for _, schema := range schemas {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (w *InventoryWriter) processBatch(ctx context.Context, db *sql.DB, batch []PropertyInventory) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	propStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO properties (
			property_id, property_name, account_id, account_name, currency, timezone,
			service_level, created_date, custom_dimensions_count, custom_metrics_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer propStmt.Close()

	defStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO custom_definitions (property_id, kind, api_name, ui_name, description, scope, unit)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer defStmt.Close()

	for _, inv := range batch {
		if _, err := tx.ExecContext(ctx, `DELETE FROM custom_definitions WHERE property_id = ?`, inv.PropertyID); err != nil {
			return err
		}

		var created any
		if !inv.CreatedDate.IsZero() {
			created = inv.CreatedDate
		}
		_, err = propStmt.ExecContext(ctx,
			inv.PropertyID,
			inv.PropertyName,
			inv.AccountID,
			inv.AccountName,
			inv.Currency,
			inv.Timezone,
			inv.ServiceLevel,
			created,
			len(inv.CustomDimensions),
			len(inv.CustomMetrics),
		)
		if err != nil {
			return err
		}

		for _, defs := range []struct {
			kind string
			list []CustomDefinitionInfo
		}{
			{"dimension", inv.CustomDimensions},
			{"metric", inv.CustomMetrics},
		} {
			for _, d := range defs.list {
				scope := d.Scope
				if scope == "" {
					scope = ScopeOf(d.APIName)
				}
				if _, err := defStmt.ExecContext(ctx, inv.PropertyID, defs.kind, d.APIName, d.UIName, d.Description, scope, d.Unit); err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit()
}

// ScopeOf derives a custom definition scope from its API name prefix
func ScopeOf(apiName string) string {
	switch {
	case strings.HasPrefix(apiName, "customEvent:"):
		return "EVENT"
	case strings.HasPrefix(apiName, "customUser:"):
		return "USER"
	case strings.HasPrefix(apiName, "customItem:"):
		return "ITEM"
	case strings.Contains(apiName, "ChannelGroup"):
		return "SESSION"
	default:
		return ""
	}
}

func createInventoryViews(ctx context.Context, db *sql.DB) error {
	views := []string{
		// Definition summary by scope
		`CREATE OR REPLACE VIEW definition_summary AS
		SELECT
			kind,
			scope,
			COUNT(*) as definition_count,
			COUNT(DISTINCT property_id) as properties_using
		FROM custom_definitions
		GROUP BY kind, scope
		ORDER BY definition_count DESC`,

		// Account rollup analysis
		`CREATE OR REPLACE VIEW account_rollup AS
		SELECT
			account_name,
			COUNT(*) as total_properties,
			SUM(custom_dimensions_count) as total_custom_dimensions,
			SUM(custom_metrics_count) as total_custom_metrics,
			COUNT(CASE WHEN service_level = 'GOOGLE_ANALYTICS_360' THEN 1 END) as ga360_properties
		FROM properties
		GROUP BY account_name
		ORDER BY total_custom_dimensions DESC`,
	}
	for _, view := range views {
		if _, err := db.ExecContext(ctx, view); err != nil {
			return fmt.Errorf("failed to create view: %w", err)
		}
	}
	return nil
}
