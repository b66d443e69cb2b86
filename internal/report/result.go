package report

import (
	"fmt"
	"strconv"
)

// TotalRow is an aggregate row over the metric columns (TOTAL, MAXIMUM, MINIMUM)
type TotalRow struct {
	Label  string `json:"label"`
	Values []any  `json:"values"`
}

// Result is the assembled output of a report call
type Result struct {
	Columns   []Column   `json:"columns"`
	Rows      [][]any    `json:"rows"`
	Totals    []TotalRow `json:"totals,omitempty"`
	TotalRows int64      `json:"total_rows"`
	DateRange DateRange  `json:"date_range"`
	Warnings  []string   `json:"warnings,omitempty"`
	// Partial is set when rows are known to be missing
	Partial bool `json:"partial,omitempty"`
}

// ColumnNames returns column labels in order
func (r *Result) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnKinds returns column kinds in order
func (r *Result) ColumnKinds() []Kind {
	kinds := make([]Kind, len(r.Columns))
	for i, c := range r.Columns {
		kinds[i] = c.Kind
	}
	return kinds
}

// Len returns the number of rows
func (r *Result) Len() int {
	return len(r.Rows)
}

// Column returns the index of the named column, or -1
func (r *Result) Column(name string) int {
	for i, c := range r.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Records returns rows keyed by column name
func (r *Result) Records() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for j, c := range r.Columns {
			if j < len(row) {
				rec[c.Name] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}

// StringRows renders every value as text, for CSV and sheet sinks
func (r *Result) StringRows() [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = FormatValue(v)
		}
		out[i] = rec
	}
	return out
}

// FormatValue renders a coerced value as text
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
