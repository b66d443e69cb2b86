package bq

import (
	"context"
	"fmt"

	"gareport/internal/logger"
	"gareport/internal/report"
)

// Sink streams report results into a BigQuery table, creating it from the
// result columns when missing
type Sink struct {
	Client    *Client
	Dataset   string
	Table     string
	BatchSize int
	// Types overrides the BigQuery type of result columns, see ParseTypes
	Types map[string]string

	// Inserted counts rows streamed by the last Write
	Inserted int
}

// NewSink creates a sink for dataset.table
func NewSink(client *Client, dataset, table string) (*Sink, error) {
	if dataset == "" || table == "" {
		return nil, fmt.Errorf("dataset and table are required")
	}
	return &Sink{Client: client, Dataset: dataset, Table: table, BatchSize: DefaultBatchSize}, nil
}

// Write implements results.Sink
func (s *Sink) Write(ctx context.Context, result *report.Result) error {
	exists, err := s.Client.TableExists(ctx, s.Dataset, s.Table)
	if err != nil {
		return err
	}
	schema := SchemaWithTypes(result, s.Types)
	if !exists {
		if err := s.Client.CreateTable(ctx, s.Dataset, s.Table, schema); err != nil {
			return err
		}
	}

	size := s.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	rows := rowValues(result, schema)
	s.Inserted = 0
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		if err := s.Client.InsertRows(ctx, s.Dataset, s.Table, rows[start:end]); err != nil {
			return err
		}
		s.Inserted = end
	}
	logger.Info().
		Str("table", s.Client.Project+"."+s.Dataset+"."+s.Table).
		Int("rows", s.Inserted).
		Msg("Rows streamed to BigQuery")
	return nil
}
