// Package ga3 runs report queries against the Universal Analytics
// Reporting API v4
package ga3

import (
	"context"
	"fmt"
	"strings"

	"gareport/internal/api"
	"gareport/internal/logger"
	"gareport/internal/report"
)

const (
	// ProviderName identifies GA3 in saved results and presets
	ProviderName = "ga3"

	// Prefix is the namespace every GA3 field name carries
	Prefix = "ga:"

	MaxDimensions = 7
	MaxMetrics    = 10

	// firstPageToken starts a batchGet pagination
	firstPageToken = "0"

	segmentDimension  = "ga:segment"
	clientIDDimension = "ga:clientId"
)

// Reporter runs one batchGet page. *api.ReportingClient implements it
type Reporter interface {
	BatchGet(ctx context.Context, request *api.ReportRequest) (*api.Report, error)
}

// Provider implements report.Provider for one Universal Analytics view
type Provider struct {
	client Reporter
	viewID string

	// PartialThreshold triggers the clientId hint when the first page
	// reports exactly this many rows
	PartialThreshold int64
}

// New returns a provider for viewID
func New(client Reporter, viewID string) *Provider {
	return &Provider{client: client, viewID: viewID, PartialThreshold: report.DefaultPartialThreshold}
}

func (p *Provider) Name() string { return ProviderName }

// Request is a batchGet report request
type Request struct {
	Body     api.ReportRequest
	warnings []string
}

func (r *Request) Warnings() []string { return r.warnings }

// FieldName adds the ga: prefix unless it is already there
func FieldName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, Prefix) {
		return name
	}
	return Prefix + name
}

// BuildRequest translates q into a batchGet report request
func (p *Provider) BuildRequest(q report.Query) (report.Request, error) {
	req := &Request{}
	dims, mets := q.Dimensions, q.Metrics

	maxDims := MaxDimensions
	needSegment := len(q.Segments) > 0 && !containsField(dims, segmentDimension)
	if needSegment {
		maxDims--
	}
	if len(dims) > maxDims {
		req.warnings = append(req.warnings, fmt.Sprintf("up to %d dimensions are allowed; dropped %s", MaxDimensions, strings.Join(dims[maxDims:], ", ")))
		dims = dims[:maxDims]
	}
	if len(mets) > MaxMetrics {
		req.warnings = append(req.warnings, fmt.Sprintf("up to %d metrics are allowed; dropped %s", MaxMetrics, strings.Join(mets[MaxMetrics:], ", ")))
		mets = mets[:MaxMetrics]
	}

	body := &req.Body
	body.ViewID = p.viewID
	body.DateRanges = []api.DateRange{{StartDate: q.DateRange.Start, EndDate: q.DateRange.End}}
	body.SamplingLevel = "LARGE"
	body.IncludeEmptyRows = false
	body.HideTotals = !q.ShowTotal
	body.HideValueRanges = true
	body.PageSize = q.RowLimit

	for _, d := range dims {
		body.Dimensions = append(body.Dimensions, api.ReportDimension{Name: FieldName(d)})
	}
	if needSegment {
		body.Dimensions = append(body.Dimensions, api.ReportDimension{Name: segmentDimension})
	}
	for _, m := range mets {
		body.Metrics = append(body.Metrics, api.ReportMetric{Expression: FieldName(m), Alias: strings.TrimSpace(m)})
	}
	for _, s := range q.Segments {
		body.Segments = append(body.Segments, api.ReportSegment{SegmentID: s})
	}

	if len(q.DimensionFilter) > 0 {
		clause := api.DimensionFilterClause{Operator: "AND"}
		for _, c := range q.DimensionFilter {
			clause.Filters = append(clause.Filters, api.DimensionFilter{
				DimensionName: FieldName(c.Field),
				Not:           c.Negated,
				Operator:      string(c.DimensionMatch()),
				Expressions:   []string{c.Value},
				CaseSensitive: false,
			})
		}
		body.DimensionFilterClauses = []api.DimensionFilterClause{clause}
	}

	if len(q.MetricFilter) > 0 {
		clause := api.MetricFilterClause{Operator: "AND"}
		for _, c := range q.MetricFilter {
			cmp, ok := c.MetricComparison()
			if !ok {
				req.warnings = append(req.warnings, fmt.Sprintf("skipped metric filter condition with unsupported operator %q", c.String()))
				continue
			}
			clause.Filters = append(clause.Filters, api.MetricFilter{
				MetricName:      FieldName(c.Field),
				Not:             c.Negated,
				Operator:        string(cmp),
				ComparisonValue: c.Value,
			})
		}
		if len(clause.Filters) > 0 {
			body.MetricFilterClauses = []api.MetricFilterClause{clause}
		}
	}

	for _, o := range q.OrderBy {
		order := "ASCENDING"
		if o.Descending {
			order = "DESCENDING"
		}
		body.OrderBys = append(body.OrderBys, api.ReportOrderBy{FieldName: FieldName(o.Field), SortOrder: order})
	}

	for _, w := range req.warnings {
		logger.Warn().Str("provider", ProviderName).Msg(w)
	}
	return req, nil
}

// FetchPage runs one batchGet page
func (p *Provider) FetchPage(ctx context.Context, r report.Request, token string) (*report.Page, error) {
	req, ok := r.(*Request)
	if !ok {
		return nil, fmt.Errorf("ga3: unexpected request type %T", r)
	}
	if token == report.FirstPage {
		token = firstPageToken
	}

	body := req.Body
	body.PageToken = token
	rep, err := p.client.BatchGet(ctx, &body)
	if err != nil {
		return nil, err
	}

	page := toPage(rep)
	if token == firstPageToken && p.PartialThreshold > 0 && page.TotalRows == p.PartialThreshold && hasDimension(body.Dimensions, clientIDDimension) {
		logger.Info().Msg("clientId is not officially supported by Google; reports using it may be cut at 10,000 or 10,001 rows")
	}
	return page, nil
}

func toPage(rep *api.Report) *report.Page {
	header := rep.ColumnHeader
	columns := make([]report.Column, 0, len(header.Dimensions)+len(header.MetricHeader.MetricHeaderEntries))
	for _, d := range header.Dimensions {
		columns = append(columns, report.DimensionColumn(strings.TrimPrefix(d, Prefix)))
	}
	for _, m := range header.MetricHeader.MetricHeaderEntries {
		columns = append(columns, report.MetricColumn(m.Name, m.Type))
	}

	page := &report.Page{
		Columns:       columns,
		TotalRows:     rep.Data.RowCount,
		NextPageToken: rep.NextPageToken,
	}
	for _, row := range rep.Data.Rows {
		values := append([]string(nil), row.Dimensions...)
		for _, drv := range row.Metrics {
			values = append(values, drv.Values...)
		}
		page.Rows = append(page.Rows, report.CoerceRow(columns, values))
	}

	metricColumns := columns[len(header.Dimensions):]
	for _, agg := range []struct {
		label  string
		values []api.DateRangeValues
	}{
		{"TOTAL", rep.Data.Totals},
		{"MAXIMUM", rep.Data.Maximums},
		{"MINIMUM", rep.Data.Minimums},
	} {
		for _, v := range agg.values {
			page.Totals = append(page.Totals, report.TotalRow{Label: agg.label, Values: report.CoerceRow(metricColumns, v.Values)})
		}
	}

	if len(rep.Data.SamplesReadCounts) > 0 {
		page.Warnings = append(page.Warnings, fmt.Sprintf("data is sampled: samplesReadCounts = %v", []int64(rep.Data.SamplesReadCounts)))
	}
	if len(rep.Data.SamplingSpaceSizes) > 0 {
		page.Warnings = append(page.Warnings, fmt.Sprintf("data is sampled: samplingSpaceSizes = %v", []int64(rep.Data.SamplingSpaceSizes)))
	}
	for _, w := range page.Warnings {
		logger.Warn().Str("provider", ProviderName).Msg(w)
	}
	return page
}

func containsField(names []string, field string) bool {
	for _, n := range names {
		if FieldName(n) == field {
			return true
		}
	}
	return false
}

func hasDimension(dims []api.ReportDimension, name string) bool {
	for _, d := range dims {
		if d.Name == name {
			return true
		}
	}
	return false
}
