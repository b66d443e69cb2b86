package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"gareport/internal/logger"
	"gareport/internal/report"
)

// TableSink writes report results into a DuckDB table
type TableSink struct {
	dbPath    string
	table     string
	mode      Mode
	batchSize int

	// Last describes the most recent write
	Last ExportResult
}

// NewTableSink creates a sink for table in the database at dbPath
func NewTableSink(dbPath, table string, mode Mode) (*TableSink, error) {
	if !validIdentifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q: use letters, digits and underscores", table)
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = ModeReplace
	}
	return &TableSink{dbPath: dbPath, table: table, mode: mode, batchSize: DefaultBatchSize}, nil
}

// SetBatchSize updates the number of rows per transaction
func (s *TableSink) SetBatchSize(size int) {
	if size > 0 {
		s.batchSize = size
	}
}

// Write creates the table from the result columns and inserts every row
func (s *TableSink) Write(ctx context.Context, result *report.Result) error {
	if len(result.Columns) == 0 {
		return fmt.Errorf("result has no columns")
	}

	db, err := sql.Open("duckdb", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, createTableSQL(s.table, result.Columns, s.mode)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}

	batches := 0
	for i := 0; i < len(result.Rows); i += s.batchSize {
		end := i + s.batchSize
		if end > len(result.Rows) {
			end = len(result.Rows)
		}
		if err := s.insertBatch(ctx, db, result.Columns, result.Rows[i:end]); err != nil {
			return fmt.Errorf("failed to insert rows %d-%d: %w", i+1, end, err)
		}
		batches++
	}

	s.Last = ExportResult{Table: s.table, Rows: result.Len(), Batches: batches, Timestamp: time.Now()}
	logger.Info().Str("table", s.table).Int("rows", result.Len()).Str("mode", string(s.mode)).Msg("Exported report to DuckDB")
	return nil
}

func (s *TableSink) insertBatch(ctx context.Context, db *sql.DB, columns []report.Column, rows [][]any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(s.table), placeholders))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			args[i] = columnValue(c.Kind, v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ColumnType maps a result column kind onto a DuckDB type
func ColumnType(kind report.Kind) string {
	switch kind {
	case report.KindInteger:
		return "BIGINT"
	case report.KindFloat:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

func createTableSQL(table string, columns []report.Column, mode Mode) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c.Name) + " " + ColumnType(c.Kind)
	}
	verb := "CREATE OR REPLACE TABLE"
	if mode == ModeAppend {
		verb = "CREATE TABLE IF NOT EXISTS"
	}
	return fmt.Sprintf("%s %s (%s)", verb, quoteIdent(table), strings.Join(defs, ", "))
}

// columnValue returns NULL for numeric cells that were kept as text
func columnValue(kind report.Kind, v any) any {
	switch kind {
	case report.KindInteger:
		if n, ok := v.(int64); ok {
			return n
		}
		return nil
	case report.KindFloat:
		switch x := v.(type) {
		case float64:
			return x
		case int64:
			return float64(x)
		}
		return nil
	default:
		if v == nil {
			return nil
		}
		return report.FormatValue(v)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
