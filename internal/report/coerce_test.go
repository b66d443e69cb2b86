package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceMetric(t *testing.T) {
	tests := []struct {
		name  string
		value string
		typ   string
		want  any
	}{
		{"integer", "42", "INTEGER", int64(42)},
		{"ga4 integer", "42", "TYPE_INTEGER", int64(42)},
		{"seconds", "3600", "TYPE_SECONDS", int64(3600)},
		{"milliseconds", "15", "TYPE_MILLISECONDS", int64(15)},
		{"hours", "2", "HOURS", int64(2)},
		{"minutes", "5", "TYPE_MINUTES", int64(5)},
		{"float", "3.14", "FLOAT", 3.14},
		{"ga4 float", "0.25", "TYPE_FLOAT", 0.25},
		{"currency stays raw", "3.14", "CURRENCY", "3.14"},
		{"ga4 currency stays raw", "3.14", "TYPE_CURRENCY", "3.14"},
		{"percent stays raw", "12.5", "PERCENT", "12.5"},
		{"time stays raw", "00:01:02", "TIME", "00:01:02"},
		{"standard stays raw", "7", "TYPE_STANDARD", "7"},
		{"feet stays raw", "7", "TYPE_FEET", "7"},
		{"unparsable integer falls back", "1.5", "INTEGER", "1.5"},
		{"unparsable float falls back", "n/a", "FLOAT", "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceMetric(tt.value, tt.typ))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInteger, KindOf("TYPE_HOURS"))
	assert.Equal(t, KindFloat, KindOf("FLOAT"))
	assert.Equal(t, KindRaw, KindOf("CURRENCY"))
	assert.Equal(t, KindRaw, KindOf(""))
}

func TestCoerceRow(t *testing.T) {
	cols := []Column{
		DimensionColumn("date"),
		DimensionColumn("sessionCount"),
		MetricColumn("eventCount", "TYPE_INTEGER"),
		MetricColumn("revenue", "TYPE_CURRENCY"),
	}
	row := CoerceRow(cols, []string{"20240101", "12", "7", "9.99"})
	assert.Equal(t, []any{"20240101", "12", int64(7), "9.99"}, row)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "42", FormatValue(int64(42)))
	assert.Equal(t, "0.5", FormatValue(0.5))
	assert.Equal(t, "x", FormatValue("x"))
	assert.Equal(t, "", FormatValue(nil))
}
