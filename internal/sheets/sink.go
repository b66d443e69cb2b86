package sheets

import (
	"context"

	"gareport/internal/report"
)

// Sink writes report results to a sheet
type Sink struct {
	Sheet *Sheet
	// Append adds rows below the existing data instead of replacing it
	Append bool
	// Format freezes the header row and fits every column after an overwrite
	Format bool
}

// NewSink creates an overwriting, formatting sink for sheet
func NewSink(sheet *Sheet) *Sink {
	return &Sink{Sheet: sheet, Format: true}
}

// Write implements results.Sink
func (k *Sink) Write(ctx context.Context, result *report.Result) error {
	if k.Append {
		return k.Sheet.Append(ctx, result.Rows)
	}
	if err := k.Sheet.Overwrite(ctx, result.ColumnNames(), result.Rows); err != nil {
		return err
	}
	if !k.Format {
		return nil
	}
	if err := k.Sheet.Freeze(ctx, 1, 0); err != nil {
		return err
	}
	cols := make([]int, len(result.Columns))
	for i := range cols {
		cols[i] = i + 1
	}
	return k.Sheet.AutoResize(ctx, cols...)
}
