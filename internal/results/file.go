package results

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"gareport/internal/logger"
	"gareport/internal/report"
)

// FileSink writes a result to a CSV, TSV or JSON file
type FileSink struct {
	Path   string
	Format ExportFormat
	// DateSuffix appends "_<start>-<end>" to the file name
	DateSuffix bool
	Prettify   bool

	// Written is the path of the last file written
	Written string
	now     func() time.Time
}

// NewFileSink infers the format from the extension when format is empty
func NewFileSink(path string, format string) (*FileSink, error) {
	if format == "" {
		format = filepath.Ext(path)
	}
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return &FileSink{Path: path, Format: f, DateSuffix: true, now: time.Now}, nil
}

// Write creates the output directory and the file
func (s *FileSink) Write(ctx context.Context, result *report.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}

	path := s.Path
	if s.DateSuffix {
		path = OutputPath(path, s.Format, result.DateRange, now())
	} else if filepath.Ext(path) == "" {
		path += s.Format.Extension()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", s.Format, err)
	}
	defer file.Close()

	switch s.Format {
	case FormatJSON:
		err = WriteJSON(file, result, s.Prettify)
	case FormatTSV:
		err = WriteDelimited(file, result, '\t')
	default:
		err = WriteDelimited(file, result, ',')
	}
	if err != nil {
		return err
	}

	s.Written = path
	logger.Info().Str("path", path).Int("rows", result.Len()).Msg("Saved report")
	return nil
}

// OutputPath suffixes the file name with the resolved date range and adds
// the format extension when the name has none
func OutputPath(path string, format ExportFormat, r report.DateRange, now time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if ext == "" {
		ext = format.Extension()
	}
	if resolved, err := r.Resolve(now); err == nil {
		r = resolved
	}
	suffix := strings.ReplaceAll(r.Start, "-", "") + "-" + strings.ReplaceAll(r.End, "-", "")
	return base + "_" + suffix + ext
}

// WriteDelimited writes a header row followed by every result row
func WriteDelimited(w io.Writer, result *report.Result, comma rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = comma

	if err := writer.Write(result.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, record := range result.StringRows() {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteJSON writes rows as an array of objects keyed by column name
func WriteJSON(w io.Writer, result *report.Result, prettify bool) error {
	encoder := json.NewEncoder(w)
	if prettify {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(result.Records()); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}
