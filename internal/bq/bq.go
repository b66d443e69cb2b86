// Package bq lists BigQuery datasets and streams report results into tables
// through the BigQuery API v2
package bq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"gareport/internal/logger"
	"gareport/internal/report"
)

// DefaultBatchSize is the number of rows per insertAll request
const DefaultBatchSize = 500

// Client wraps the BigQuery service for one project
type Client struct {
	srv     *bigquery.Service
	Project string
}

// New creates a client for project on an authorized HTTP client
func New(ctx context.Context, httpClient *http.Client, project string, opts ...option.ClientOption) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("a Google Cloud project is required")
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := bigquery.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery service: %w", err)
	}
	return &Client{srv: srv, Project: project}, nil
}

// Datasets lists the dataset IDs of the project
func (c *Client) Datasets(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.srv.Datasets.List(c.Project).Pages(ctx, func(page *bigquery.DatasetList) error {
		for _, d := range page.Datasets {
			if d.DatasetReference != nil {
				ids = append(ids, d.DatasetReference.DatasetId)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets of %s: %w", c.Project, err)
	}
	if len(ids) == 0 {
		logger.Warn().Str("project", c.Project).Msg("Project has no datasets")
	}
	return ids, nil
}

// Tables lists the table IDs of a dataset
func (c *Client) Tables(ctx context.Context, dataset string) ([]string, error) {
	var ids []string
	err := c.srv.Tables.List(c.Project, dataset).Pages(ctx, func(page *bigquery.TableList) error {
		for _, t := range page.Tables {
			if t.TableReference != nil {
				ids = append(ids, t.TableReference.TableId)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s.%s: %w", c.Project, dataset, err)
	}
	return ids, nil
}

// TableExists reports whether dataset.table exists
func (c *Client) TableExists(ctx context.Context, dataset, table string) (bool, error) {
	_, err := c.srv.Tables.Get(c.Project, dataset, table).Context(ctx).Do()
	if err == nil {
		return true, nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to get table %s.%s: %w", dataset, table, err)
}

// CreateTable creates dataset.table with schema
func (c *Client) CreateTable(ctx context.Context, dataset, table string, schema *bigquery.TableSchema) error {
	_, err := c.srv.Tables.Insert(c.Project, dataset, &bigquery.Table{
		TableReference: &bigquery.TableReference{ProjectId: c.Project, DatasetId: dataset, TableId: table},
		Schema:         schema,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to create table %s.%s: %w", dataset, table, err)
	}
	logger.Info().Str("dataset", dataset).Str("table", table).Int("fields", len(schema.Fields)).Msg("Table created")
	return nil
}

// InsertRows streams rows into dataset.table. Each row gets a random insert ID
// for best-effort deduplication
func (c *Client) InsertRows(ctx context.Context, dataset, table string, rows []map[string]bigquery.JsonValue) error {
	req := &bigquery.TableDataInsertAllRequest{}
	for _, row := range rows {
		req.Rows = append(req.Rows, &bigquery.TableDataInsertAllRequestRows{
			InsertId: uuid.NewString(),
			Json:     row,
		})
	}
	resp, err := c.srv.Tabledata.InsertAll(c.Project, dataset, table, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to insert into %s.%s: %w", dataset, table, err)
	}
	if len(resp.InsertErrors) > 0 {
		first := resp.InsertErrors[0]
		msg := "unknown error"
		if len(first.Errors) > 0 {
			msg = first.Errors[0].Message
		}
		return fmt.Errorf("%d rows rejected by %s.%s, first at row %d: %s", len(resp.InsertErrors), dataset, table, first.Index, msg)
	}
	return nil
}

var invalidField = regexp.MustCompile(`[^A-Za-z0-9_]`)

// FieldName turns a column name such as customEvent:plan into a valid
// BigQuery field name
func FieldName(name string) string {
	f := invalidField.ReplaceAllString(name, "_")
	if f == "" || (f[0] >= '0' && f[0] <= '9') {
		f = "_" + f
	}
	return f
}

// FieldType maps a column kind to a BigQuery standard SQL type
func FieldType(k report.Kind) string {
	switch k {
	case report.KindInteger:
		return "INT64"
	case report.KindFloat:
		return "FLOAT64"
	default:
		return "STRING"
	}
}

// ConvertGA4Type maps the short GA4 type names used in custom definitions to
// BigQuery types
func ConvertGA4Type(t string) (string, bool) {
	switch strings.ToLower(t) {
	case "string":
		return "STRING", true
	case "int", "integer":
		return "INT64", true
	case "float", "double":
		return "FLOAT", true
	default:
		return "", false
	}
}

// Schema builds a nullable table schema from result columns
func Schema(result *report.Result) *bigquery.TableSchema {
	schema := &bigquery.TableSchema{}
	for _, c := range result.Columns {
		schema.Fields = append(schema.Fields, &bigquery.TableFieldSchema{
			Name:        FieldName(c.Name),
			Type:        FieldType(c.Kind),
			Mode:        "NULLABLE",
			Description: c.Type,
		})
	}
	return schema
}

// RowValues converts result rows to insertAll JSON rows. Cells that do not
// match a numeric column's kind are left out, which BigQuery stores as NULL
func RowValues(result *report.Result) []map[string]bigquery.JsonValue {
	return rowValues(result, Schema(result))
}

func rowValues(result *report.Result, schema *bigquery.TableSchema) []map[string]bigquery.JsonValue {
	rows := make([]map[string]bigquery.JsonValue, 0, len(result.Rows))
	for _, row := range result.Rows {
		out := make(map[string]bigquery.JsonValue, len(row))
		for j, v := range row {
			if j >= len(schema.Fields) || v == nil {
				continue
			}
			field := schema.Fields[j]
			switch field.Type {
			case "INT64", "FLOAT64", "FLOAT":
				switch n := v.(type) {
				case int64, float64:
					out[field.Name] = n
				case string:
					if _, err := strconv.ParseFloat(n, 64); err == nil {
						out[field.Name] = n
					}
				}
			default:
				out[field.Name] = report.FormatValue(v)
			}
		}
		rows = append(rows, out)
	}
	return rows
}

// ParseTypes reads column=type overrides such as customEvent:plan_id=int,
// checking each type with ConvertGA4Type
func ParseTypes(specs []string) (map[string]string, error) {
	types := make(map[string]string, len(specs))
	for _, spec := range specs {
		name, t, ok := strings.Cut(spec, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected column=type, got %q", spec)
		}
		bqType, ok := ConvertGA4Type(strings.TrimSpace(t))
		if !ok {
			return nil, fmt.Errorf("unsupported type %q for %s (use string, int, integer, float or double)", t, name)
		}
		types[name] = bqType
	}
	return types, nil
}

// SchemaWithTypes is Schema with the column types in types replacing the
// ones derived from column kinds
func SchemaWithTypes(result *report.Result, types map[string]string) *bigquery.TableSchema {
	schema := Schema(result)
	for i, c := range result.Columns {
		if t, ok := types[c.Name]; ok {
			schema.Fields[i].Type = t
		}
	}
	return schema
}
