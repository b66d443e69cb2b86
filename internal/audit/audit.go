// Package audit summarises how a dimension or metric has been collected
// over the life of a property
package audit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"gareport/internal/logger"
	"gareport/internal/report"
)

const (
	DefaultDimension = "eventName"
	DefaultMetric    = "eventCount"

	// FallbackSince starts audits of sources whose creation date is unknown
	FallbackSince = "2020-01-01"
)

// Since returns the first day to audit for a source created at created
func Since(created time.Time) string {
	if created.IsZero() {
		return FallbackSince
	}
	return created.Format("2006-01-02")
}

// Runner runs report parameters. *session.Session implements it
type Runner interface {
	Run(ctx context.Context, params report.Params) (*report.Result, error)
}

// Row is the collection summary of one dimension value
type Row struct {
	Value     string  `json:"value"`
	Total     float64 `json:"total"`
	FirstDate string  `json:"first_date"`
	LastDate  string  `json:"last_date"`
}

// Audit is the per-value summary of a dimension, sorted by total descending
type Audit struct {
	Dimension string           `json:"dimension"`
	Metric    string           `json:"metric"`
	DateRange report.DateRange `json:"date_range"`
	Rows      []Row            `json:"rows"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// Run reports [dimension, date] x [metric] from since until yesterday and
// summarises it per dimension value
func Run(ctx context.Context, runner Runner, dimension, metric, since string) (*Audit, error) {
	if dimension == "" {
		dimension = DefaultDimension
	}
	if metric == "" {
		metric = DefaultMetric
	}

	res, err := runner.Run(ctx, report.Params{
		Dimensions: []string{dimension, "date"},
		Metrics:    []string{metric},
		StartDate:  since,
		EndDate:    "yesterday",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to audit %s: %w", dimension, err)
	}
	return summarise(dimension, metric, res), nil
}

// All audits every dimension except the ignored ones, in order
func All(ctx context.Context, runner Runner, dimensions []string, metric, since string, ignore []string) ([]*Audit, error) {
	skip := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		skip[name] = true
	}

	var audits []*Audit
	for _, dim := range dimensions {
		if skip[dim] {
			continue
		}
		logger.Info().Str("dimension", dim).Msg("Auditing dimension")
		a, err := Run(ctx, runner, dim, metric, since)
		if err != nil {
			return audits, err
		}
		audits = append(audits, a)
	}
	logger.Info().Int("audited", len(audits)).Msg("Audit done")
	return audits, nil
}

// Metrics audits every metric against the event name dimension
func Metrics(ctx context.Context, runner Runner, metrics []string, since string, ignore []string) ([]*Audit, error) {
	skip := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		skip[name] = true
	}

	var audits []*Audit
	for _, m := range metrics {
		if skip[m] {
			continue
		}
		logger.Info().Str("metric", m).Msg("Auditing metric")
		a, err := Run(ctx, runner, DefaultDimension, m, since)
		if err != nil {
			return audits, err
		}
		audits = append(audits, a)
	}
	return audits, nil
}

// PageViewsByDay counts page_view events per day
func PageViewsByDay(ctx context.Context, runner Runner) (*report.Result, error) {
	return runner.Run(ctx, report.Params{
		Dimensions:      []string{"date", "eventName"},
		Metrics:         []string{"eventCount"},
		DimensionFilter: "eventName==page_view",
		Sort:            "date",
	})
}

// EventsByDay counts every event per day, busiest first within a day
func EventsByDay(ctx context.Context, runner Runner) (*report.Result, error) {
	return runner.Run(ctx, report.Params{
		Dimensions: []string{"date", "eventName"},
		Metrics:    []string{"eventCount"},
		Sort:       "date,-eventCount",
	})
}

// Columns 0, 1 and 2 are the dimension, the date and the metric
func summarise(dimension, metric string, res *report.Result) *Audit {
	a := &Audit{Dimension: dimension, Metric: metric, DateRange: res.DateRange, Warnings: res.Warnings}
	index := make(map[string]int)
	for _, row := range res.Rows {
		if len(row) < 3 {
			continue
		}
		value := report.FormatValue(row[0])
		date := report.FormatValue(row[1])
		n, ok := toFloat(row[2])
		if !ok {
			continue
		}

		i, seen := index[value]
		if !seen {
			index[value] = len(a.Rows)
			a.Rows = append(a.Rows, Row{Value: value, Total: n, FirstDate: date, LastDate: date})
			continue
		}
		r := &a.Rows[i]
		r.Total += n
		if date < r.FirstDate {
			r.FirstDate = date
		}
		if date > r.LastDate {
			r.LastDate = date
		}
	}

	sort.SliceStable(a.Rows, func(i, j int) bool {
		if a.Rows[i].Total != a.Rows[j].Total {
			return a.Rows[i].Total > a.Rows[j].Total
		}
		return a.Rows[i].Value < a.Rows[j].Value
	})
	return a
}

// Result converts the audit into a report result for rendering and sinks
func (a *Audit) Result() *report.Result {
	res := &report.Result{
		Columns: []report.Column{
			report.DimensionColumn(a.Dimension),
			report.MetricColumn(a.Metric, "FLOAT"),
			report.DimensionColumn("date_first"),
			report.DimensionColumn("date_last"),
		},
		TotalRows: int64(len(a.Rows)),
		DateRange: a.DateRange,
		Warnings:  a.Warnings,
	}
	for _, r := range a.Rows {
		res.Rows = append(res.Rows, []any{r.Value, r.Total, r.FirstDate, r.LastDate})
	}
	return res
}

// Combine stacks several audits into one result with the audited field in
// the first column
func Combine(audits []*Audit) *report.Result {
	res := &report.Result{
		Columns: []report.Column{
			report.DimensionColumn("field"),
			report.DimensionColumn("value"),
			report.MetricColumn("total", "FLOAT"),
			report.DimensionColumn("date_first"),
			report.DimensionColumn("date_last"),
		},
	}
	for _, a := range audits {
		field := a.Dimension
		if a.Dimension == DefaultDimension && a.Metric != DefaultMetric {
			field = a.Metric
		}
		if res.DateRange.Start == "" {
			res.DateRange = a.DateRange
		}
		res.Warnings = append(res.Warnings, a.Warnings...)
		for _, r := range a.Rows {
			res.Rows = append(res.Rows, []any{field, r.Value, r.Total, r.FirstDate, r.LastDate})
		}
	}
	res.TotalRows = int64(len(res.Rows))
	return res
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
