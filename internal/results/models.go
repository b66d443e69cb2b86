package results

import (
	"context"
	"fmt"
	"strings"

	"gareport/internal/report"
)

// Sink receives a finished report result
type Sink interface {
	Write(ctx context.Context, result *report.Result) error
}

// ExportFormat represents supported file formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatTSV  ExportFormat = "tsv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat accepts a format name or a file extension
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case FormatCSV, FormatTSV, FormatJSON:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format %q: must be csv, tsv or json", s)
	}
}

// Extension returns the file extension including the dot
func (f ExportFormat) Extension() string {
	return "." + string(f)
}

// TableDisplayOptions represents options for formatting console output
type TableDisplayOptions struct {
	MaxRows      int  `json:"max_rows"`      // 0 shows every row
	MaxColWidth  int  `json:"max_col_width"` // longer values are cut with "..."
	ShowTotals   bool `json:"show_totals"`
	ShowWarnings bool `json:"show_warnings"`
}

// DefaultDisplayOptions returns sensible defaults for table display
func DefaultDisplayOptions() TableDisplayOptions {
	return TableDisplayOptions{
		MaxRows:      50,
		MaxColWidth:  40,
		ShowTotals:   true,
		ShowWarnings: true,
	}
}
