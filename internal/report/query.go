package report

import (
	"strings"
	"time"

	"gareport/internal/apierr"
)

const (
	DefaultStartDate = "7daysAgo"
	DefaultEndDate   = "yesterday"
	DefaultRowLimit  = 10000
)

// Query is a provider-neutral report request. It is built once per report
// call and not modified while the report runs
type Query struct {
	Dimensions      []string
	Metrics         []string
	DimensionFilter FilterClause
	MetricFilter    FilterClause
	OrderBy         []OrderBy
	DateRange       DateRange
	RowLimit        int
	ShowTotal       bool
	// Segments are GA3 segment IDs ("gaid::-1"); ignored by GA4
	Segments []string
}

// WithDateRange returns a copy of q over another range
func (q Query) WithDateRange(r DateRange) Query {
	cp := q
	cp.DateRange = r
	return cp
}

// Params is the caller-level form of a query: the filter and sort
// mini-language strings exactly as typed
type Params struct {
	Dimensions      []string
	Metrics         []string
	DimensionFilter string
	MetricFilter    string
	Sort            string
	StartDate       string
	EndDate         string
	Limit           int
	ShowTotal       bool
	Segments        []string
}

// Defaults are the session values a query falls back to. The caller owns
// them and changes them between runs
type Defaults struct {
	StartDate string
	EndDate   string
	RowLimit  int
}

// NewDefaults returns the stock session defaults: the last seven full days
func NewDefaults() Defaults {
	return Defaults{
		StartDate: DefaultStartDate,
		EndDate:   DefaultEndDate,
		RowLimit:  DefaultRowLimit,
	}
}

// SetDates replaces the default date range
func (d *Defaults) SetDates(start, end string) {
	d.StartDate = start
	d.EndDate = end
}

// Build turns p into a Query, filling gaps from d. Dimension filter errors
// and invalid dates fail here, before any network call. Skipped metric
// conditions are returned as warnings
func (d Defaults) Build(p Params, now time.Time) (Query, []string, error) {
	q := Query{
		Dimensions: trimAll(p.Dimensions),
		Metrics:    trimAll(p.Metrics),
		OrderBy:    ParseOrderBy(p.Sort),
		DateRange:  DateRange{Start: p.StartDate, End: p.EndDate},
		RowLimit:   p.Limit,
		ShowTotal:  p.ShowTotal,
		Segments:   p.Segments,
	}
	if q.DateRange.Start == "" {
		q.DateRange.Start = d.StartDate
	}
	if q.DateRange.End == "" {
		q.DateRange.End = d.EndDate
	}
	if q.RowLimit <= 0 {
		q.RowLimit = d.RowLimit
	}
	if q.RowLimit <= 0 {
		q.RowLimit = DefaultRowLimit
	}

	if len(q.Dimensions) == 0 && len(q.Metrics) == 0 {
		return Query{}, nil, apierr.BadRequest("", "at least one dimension or metric is required")
	}
	if err := q.DateRange.Validate(now); err != nil {
		return Query{}, nil, err
	}

	if p.DimensionFilter != "" {
		clause, err := ParseDimensionFilter(p.DimensionFilter)
		if err != nil {
			return Query{}, nil, err
		}
		q.DimensionFilter = clause
	}

	var warnings []string
	if p.MetricFilter != "" {
		q.MetricFilter, warnings = ParseMetricFilter(p.MetricFilter)
	}
	return q, warnings, nil
}

func trimAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
