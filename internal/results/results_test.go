package results

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gareport/internal/config"
	"gareport/internal/report"
)

func sampleResult() *report.Result {
	return &report.Result{
		Columns: []report.Column{
			report.DimensionColumn("date"),
			report.MetricColumn("sessions", "INTEGER"),
			report.MetricColumn("bounceRate", "PERCENT"),
		},
		Rows: [][]any{
			{"20240301", int64(1234), "12.5"},
			{"20240302", int64(7), "3.0"},
		},
		Totals:    []report.TotalRow{{Label: "TOTAL", Values: []any{int64(1241), "15.5"}}},
		DateRange: report.DateRange{Start: "2024-03-01", End: "2024-03-02"},
		Warnings:  []string{"data is sampled"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ExportFormat
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{".TSV", FormatTSV, false},
		{"json", FormatJSON, false},
		{"", FormatCSV, false},
		{"xlsx", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestOutputPath(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	r := report.DateRange{Start: "2024-03-01", End: "2024-03-02"}

	assert.Equal(t, "out/report_20240301-20240302.csv", OutputPath("out/report", FormatCSV, r, now))
	assert.Equal(t, "report_20240301-20240302.txt", OutputPath("report.txt", FormatCSV, r, now))
	assert.Equal(t, "r_20240303-20240309.json",
		OutputPath("r", FormatJSON, report.DateRange{Start: "7daysAgo", End: "yesterday"}, now))
}

func TestFileSinkCSV(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(filepath.Join(dir, "sub", "report.csv"), "")
	require.NoError(t, err)

	require.NoError(t, sink.Write(context.Background(), sampleResult()))
	assert.Equal(t, filepath.Join(dir, "sub", "report_20240301-20240302.csv"), sink.Written)

	data, err := os.ReadFile(sink.Written)
	require.NoError(t, err)
	assert.Equal(t, "date,sessions,bounceRate\n20240301,1234,12.5\n20240302,7,3.0\n", string(data))
}

func TestFileSinkTSVWithoutSuffix(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(filepath.Join(dir, "report"), "tsv")
	require.NoError(t, err)
	sink.DateSuffix = false

	require.NoError(t, sink.Write(context.Background(), sampleResult()))
	data, err := os.ReadFile(filepath.Join(dir, "report.tsv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "date\tsessions\tbounceRate\n"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult(), false))
	assert.JSONEq(t, `[
		{"date":"20240301","sessions":1234,"bounceRate":"12.5"},
		{"date":"20240302","sessions":7,"bounceRate":"3.0"}
	]`, buf.String())
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultDisplayOptions()
	opts.MaxRows = 1
	require.NoError(t, RenderTable(&buf, sampleResult(), opts))

	out := buf.String()
	assert.Contains(t, out, "1,234")
	assert.NotContains(t, out, "20240302")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "Showing 1 of 2 rows")
	assert.Contains(t, out, "Warning: data is sampled")
}

func TestRenderTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, &report.Result{}, DefaultDisplayOptions()))
	assert.Equal(t, "No data returned\n", buf.String())
}

func TestGroupDigitsAndTruncate(t *testing.T) {
	assert.Equal(t, "1,234,567", groupDigits("1234567"))
	assert.Equal(t, "-12,345", groupDigits("-12345"))
	assert.Equal(t, "999", groupDigits("999"))
	assert.Equal(t, "abc...", truncate("abcdefghij", 6))
	assert.Equal(t, "abc", truncate("abc", 0))
}

type memoryStore struct {
	saved map[string]*report.Result
	meta  []config.SavedResult
}

func (s *memoryStore) SaveResult(_ context.Context, name, provider, source string, res *report.Result) (*config.SavedResult, error) {
	if s.saved == nil {
		s.saved = map[string]*report.Result{}
	}
	m := config.SavedResult{ID: name + "-id", Name: name, Provider: provider, Source: source, RowCount: res.Len()}
	s.saved[name] = res
	s.meta = append(s.meta, m)
	return &m, nil
}

func (s *memoryStore) ListResults(context.Context) ([]config.SavedResult, error) {
	return s.meta, nil
}

func (s *memoryStore) LoadResult(_ context.Context, ref string) (*config.SavedResult, *report.Result, error) {
	for _, m := range s.meta {
		if m.Name == ref {
			return &m, s.saved[ref], nil
		}
	}
	return nil, nil, errors.New("not found")
}

func (s *memoryStore) DeleteResult(_ context.Context, ref string) error {
	delete(s.saved, ref)
	return nil
}

type recordingSink struct{ got *report.Result }

func (s *recordingSink) Write(_ context.Context, r *report.Result) error {
	s.got = r
	return nil
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&memoryStore{})

	_, err := m.Save(ctx, "a", "ga4", "123", sampleResult())
	require.NoError(t, err)
	_, err = m.Save(ctx, "b", "ga3", "456", sampleResult())
	require.NoError(t, err)
	_, err = m.Save(ctx, "c", "ga4", "123", sampleResult())
	require.NoError(t, err)

	list, err := m.ListResults(ctx, "123", 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	list, err = m.ListResults(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	sink := &recordingSink{}
	require.NoError(t, m.Export(ctx, "b", sink))
	assert.Equal(t, 2, sink.got.Len())

	var buf bytes.Buffer
	require.NoError(t, m.Show(ctx, &buf, "a", DefaultDisplayOptions()))
	assert.Contains(t, strings.ToLower(buf.String()), "sessions")

	_, _, err = m.GetResult(ctx, "missing")
	assert.Error(t, err)
}
