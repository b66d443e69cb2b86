package query

import (
	"strings"

	"gareport/internal/report"
)

// QueryTemplate is a saved report definition
type QueryTemplate struct {
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Category        string   `json:"category,omitempty" yaml:"category,omitempty"`
	API             string   `json:"api,omitempty" yaml:"api,omitempty"` // ga4, ga3 or empty for both
	Dimensions      []string `json:"dimensions" yaml:"dimensions"`
	Metrics         []string `json:"metrics" yaml:"metrics"`
	DimensionFilter string   `json:"dimension_filter,omitempty" yaml:"dimension_filter,omitempty"` // "pagePath=~^/blog/;country==Japan"
	MetricFilter    string   `json:"metric_filter,omitempty" yaml:"metric_filter,omitempty"`       // "sessions>10"
	Sort            string   `json:"sort,omitempty" yaml:"sort,omitempty"`                         // "date,-sessions"
	StartDate       string   `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate         string   `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Limit           int      `json:"limit,omitempty" yaml:"limit,omitempty"`
	ShowTotal       bool     `json:"show_total,omitempty" yaml:"show_total,omitempty"`
	Segments        []string `json:"segments,omitempty" yaml:"segments,omitempty"` // GA3 only

	// Path is the file the template was loaded from
	Path string `json:"-" yaml:"-"`
}

// Overrides replace template values from the command line; zero values are
// ignored
type Overrides struct {
	Dimensions      []string
	Metrics         []string
	DimensionFilter string
	MetricFilter    string
	Sort            string
	StartDate       string
	EndDate         string
	Limit           int
	ShowTotal       bool
}

// Params converts the template into caller-level report parameters
func (t *QueryTemplate) Params() report.Params {
	return report.Params{
		Dimensions:      append([]string(nil), t.Dimensions...),
		Metrics:         append([]string(nil), t.Metrics...),
		DimensionFilter: t.DimensionFilter,
		MetricFilter:    t.MetricFilter,
		Sort:            t.Sort,
		StartDate:       t.StartDate,
		EndDate:         t.EndDate,
		Limit:           t.Limit,
		ShowTotal:       t.ShowTotal,
		Segments:        append([]string(nil), t.Segments...),
	}
}

// Apply returns a copy of t with the overrides set
func (t QueryTemplate) Apply(o Overrides) QueryTemplate {
	if len(o.Dimensions) > 0 {
		t.Dimensions = o.Dimensions
	}
	if len(o.Metrics) > 0 {
		t.Metrics = o.Metrics
	}
	if o.DimensionFilter != "" {
		t.DimensionFilter = o.DimensionFilter
	}
	if o.MetricFilter != "" {
		t.MetricFilter = o.MetricFilter
	}
	if o.Sort != "" {
		t.Sort = o.Sort
	}
	if o.StartDate != "" {
		t.StartDate = o.StartDate
	}
	if o.EndDate != "" {
		t.EndDate = o.EndDate
	}
	if o.Limit > 0 {
		t.Limit = o.Limit
	}
	if o.ShowTotal {
		t.ShowTotal = true
	}
	return t
}

// SupportsAPI reports whether the template can run against api
func (t *QueryTemplate) SupportsAPI(api string) bool {
	return t.API == "" || strings.EqualFold(t.API, api)
}

// DateRangePreset represents common date range configurations
type DateRangePreset struct {
	Name      string `json:"name" yaml:"name"`
	StartDate string `json:"start_date" yaml:"start_date"`
	EndDate   string `json:"end_date" yaml:"end_date"`
}

// Common date range presets
var CommonDateRanges = []DateRangePreset{
	{"Last 7 days", "7daysAgo", "yesterday"},
	{"Last 14 days", "14daysAgo", "yesterday"},
	{"Last 28 days", "28daysAgo", "yesterday"},
	{"Last 30 days", "30daysAgo", "yesterday"},
	{"Last 90 days", "90daysAgo", "yesterday"},
	{"Today", "today", "today"},
	{"Yesterday", "yesterday", "yesterday"},
}

// FindDateRange looks a preset up by name, case-insensitively
func FindDateRange(name string) (DateRangePreset, bool) {
	for _, p := range CommonDateRanges {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return DateRangePreset{}, false
}
