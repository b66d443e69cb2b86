package results

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"gareport/internal/report"
)

// RenderTable formats a result for console display
func RenderTable(w io.Writer, result *report.Result, opts TableDisplayOptions) error {
	if result.Len() == 0 {
		fmt.Fprintln(w, "No data returned")
		return nil
	}

	rows := result.Rows
	if opts.MaxRows > 0 && len(rows) > opts.MaxRows {
		rows = rows[:opts.MaxRows]
	}

	table := tablewriter.NewWriter(w)
	table.Header(result.ColumnNames())
	for _, row := range rows {
		cells := make([]string, len(result.Columns))
		for i := range cells {
			if i < len(row) {
				cells[i] = truncate(formatCell(row[i]), opts.MaxColWidth)
			}
		}
		if err := table.Append(cells); err != nil {
			return fmt.Errorf("failed to render row: %w", err)
		}
	}

	if opts.ShowTotals {
		nd := len(result.Columns) - metricCount(result.Columns)
		for _, t := range result.Totals {
			cells := make([]string, len(result.Columns))
			if nd > 0 {
				cells[0] = t.Label
			}
			for i, v := range t.Values {
				if nd+i < len(cells) {
					cells[nd+i] = formatCell(v)
				}
			}
			if err := table.Append(cells); err != nil {
				return fmt.Errorf("failed to render totals: %w", err)
			}
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if len(rows) < result.Len() {
		fmt.Fprintf(w, "\nShowing %d of %d rows\n", len(rows), result.Len())
	}
	if opts.ShowWarnings {
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "Warning: %s\n", warning)
		}
	}
	return nil
}

// formatCell groups integer digits and keeps two decimals for floats
func formatCell(v any) string {
	switch x := v.(type) {
	case int64:
		return groupDigits(strconv.FormatInt(x, 10))
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	default:
		return report.FormatValue(v)
	}
}

func groupDigits(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width > 3 {
		return string(r[:width-3]) + "..."
	}
	return string(r[:width])
}

func metricCount(cols []report.Column) int {
	n := 0
	for _, c := range cols {
		if c.Kind != report.KindCategory {
			n++
		}
	}
	return n
}
