package report

import (
	"strconv"
	"strings"
)

// Kind is the value class of a result column
type Kind string

const (
	KindCategory Kind = "CATEGORY"
	KindInteger  Kind = "INTEGER"
	KindFloat    Kind = "FLOAT"
	KindRaw      Kind = "RAW"
)

// KindOf maps a provider metric type ("INTEGER", "TYPE_SECONDS", "CURRENCY"...)
// onto a Kind. Both APIs' spellings are accepted
func KindOf(metricType string) Kind {
	switch strings.TrimPrefix(strings.ToUpper(metricType), "TYPE_") {
	case "INTEGER", "HOURS", "MINUTES", "SECONDS", "MILLISECONDS":
		return KindInteger
	case "FLOAT":
		return KindFloat
	default:
		return KindRaw
	}
}

// CoerceMetric converts a metric value according to its provider type
// Integer-like values that do not parse are returned unchanged
func CoerceMetric(value, metricType string) any {
	switch KindOf(metricType) {
	case KindInteger:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		return value
	case KindFloat:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		return value
	default:
		return value
	}
}

// Column describes one result column
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	// Type is the provider's declared type, empty for dimensions
	Type string `json:"type,omitempty"`
}

// DimensionColumn returns a categorical column
func DimensionColumn(name string) Column {
	return Column{Name: name, Kind: KindCategory}
}

// MetricColumn returns a column typed from the provider metric type
func MetricColumn(name, metricType string) Column {
	return Column{Name: name, Kind: KindOf(metricType), Type: metricType}
}

// CoerceRow builds a typed row from raw provider strings. values must be
// ordered like columns
func CoerceRow(columns []Column, values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		if i >= len(columns) || columns[i].Kind == KindCategory {
			row[i] = v
			continue
		}
		row[i] = CoerceMetric(v, columns[i].Type)
	}
	return row
}
