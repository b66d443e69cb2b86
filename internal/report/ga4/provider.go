// Package ga4 runs report queries against the GA4 Data API
package ga4

import (
	"context"
	"fmt"
	"strconv"

	"gareport/internal/api"
	"gareport/internal/apierr"
	"gareport/internal/report"
)

// ProviderName identifies GA4 in saved results and presets
const ProviderName = "ga4"

var matchTypes = map[report.DimensionMatch]string{
	report.MatchExact:   "EXACT",
	report.MatchRegexp:  "PARTIAL_REGEXP",
	report.MatchPartial: "CONTAINS",
}

// Reporter runs one runReport page. *api.DataClient implements it
type Reporter interface {
	RunReport(ctx context.Context, request *api.RunReportRequest) (*api.RunReportResponse, error)
}

// Provider implements report.Provider for one GA4 property
type Provider struct {
	client     Reporter
	propertyID string
	catalog    *Catalog
}

// New returns a provider for propertyID. With a nil catalog field names are
// sent as given
func New(client Reporter, propertyID string, catalog *Catalog) *Provider {
	return &Provider{client: client, propertyID: propertyID, catalog: catalog}
}

func (p *Provider) Name() string { return ProviderName }

// Request is a runReport body plus the caller-facing column labels
type Request struct {
	Body     api.RunReportRequest
	Labels   []string
	warnings []string
}

func (r *Request) Warnings() []string { return r.warnings }

// BuildRequest translates q into a runReport body. Unknown field names are
// rejected before any network call
func (p *Provider) BuildRequest(q report.Query) (report.Request, error) {
	req := &Request{}
	body := &req.Body
	body.Property = p.propertyID
	body.DateRanges = []api.DateRange{{StartDate: q.DateRange.Start, EndDate: q.DateRange.End}}
	if q.RowLimit > api.MaxReportLimit {
		return nil, apierr.BadRequest(strconv.Itoa(q.RowLimit), fmt.Sprintf("row limit cannot exceed %d", api.MaxReportLimit))
	}
	body.Limit = int64(q.RowLimit)

	dims := make(map[string]bool, len(q.Dimensions))
	for _, name := range q.Dimensions {
		apiName, err := p.dimension(name)
		if err != nil {
			return nil, err
		}
		dims[apiName] = true
		body.Dimensions = append(body.Dimensions, api.Dimension{Name: apiName})
		req.Labels = append(req.Labels, name)
	}
	mets := make(map[string]bool, len(q.Metrics))
	for _, name := range q.Metrics {
		apiName, err := p.metric(name)
		if err != nil {
			return nil, err
		}
		mets[apiName] = true
		body.Metrics = append(body.Metrics, api.Metric{Name: apiName})
		req.Labels = append(req.Labels, name)
	}

	if len(q.DimensionFilter) > 0 {
		expr, err := p.dimensionFilter(q.DimensionFilter)
		if err != nil {
			return nil, err
		}
		body.DimensionFilter = expr
	}
	if len(q.MetricFilter) > 0 {
		expr, warnings, err := p.metricFilter(q.MetricFilter)
		if err != nil {
			return nil, err
		}
		body.MetricFilter = expr
		req.warnings = append(req.warnings, warnings...)
	}

	for _, o := range q.OrderBy {
		ob := api.OrderBy{Desc: o.Descending}
		if name, err := p.dimension(o.Field); err == nil && dims[name] {
			ob.Dimension = &api.DimensionOrderBy{DimensionName: name}
		} else if name, err := p.metric(o.Field); err == nil && mets[name] {
			ob.Metric = &api.MetricOrderBy{MetricName: name}
		} else {
			return nil, apierr.BadRequest(o.Field, "sort field is not one of the requested dimensions or metrics")
		}
		body.OrderBys = append(body.OrderBys, ob)
	}

	if q.ShowTotal {
		body.MetricAggregations = []string{"TOTAL", "MAXIMUM", "MINIMUM"}
	}
	if len(q.Segments) > 0 {
		req.warnings = append(req.warnings, "segments are not supported by GA4 and were ignored")
	}
	return req, nil
}

// FetchPage runs one page. Page tokens are row offsets
func (p *Provider) FetchPage(ctx context.Context, r report.Request, token string) (*report.Page, error) {
	req, ok := r.(*Request)
	if !ok {
		return nil, fmt.Errorf("ga4: unexpected request type %T", r)
	}

	var offset int64
	if token != report.FirstPage {
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil || n < 0 {
			return nil, apierr.BadRequest(token, "invalid page token")
		}
		offset = n
	}

	body := req.Body
	body.Offset = offset
	resp, err := p.client.RunReport(ctx, &body)
	if err != nil {
		return nil, err
	}
	return toPage(resp, req.Labels, offset), nil
}

func toPage(resp *api.RunReportResponse, labels []string, offset int64) *report.Page {
	columns := make([]report.Column, 0, len(resp.DimensionHeaders)+len(resp.MetricHeaders))
	nd := len(resp.DimensionHeaders)
	label := func(i int, fallback string) string {
		if len(labels) == nd+len(resp.MetricHeaders) {
			return labels[i]
		}
		return fallback
	}
	for i, h := range resp.DimensionHeaders {
		columns = append(columns, report.DimensionColumn(label(i, h.Name)))
	}
	for i, h := range resp.MetricHeaders {
		columns = append(columns, report.MetricColumn(label(nd+i, h.Name), h.Type))
	}

	page := &report.Page{
		Columns:   columns,
		TotalRows: int64(resp.RowCount),
	}
	for _, row := range resp.Rows {
		values := make([]string, 0, len(row.DimensionValues)+len(row.MetricValues))
		for _, v := range row.DimensionValues {
			values = append(values, v.Value)
		}
		for _, v := range row.MetricValues {
			values = append(values, v.Value)
		}
		page.Rows = append(page.Rows, report.CoerceRow(columns, values))
	}

	metricColumns := columns[nd:]
	for _, agg := range []struct {
		label string
		rows  []api.Row
	}{
		{"TOTAL", resp.Totals},
		{"MAXIMUM", resp.Maximums},
		{"MINIMUM", resp.Minimums},
	} {
		for _, row := range agg.rows {
			values := make([]string, len(row.MetricValues))
			for i, v := range row.MetricValues {
				values[i] = v.Value
			}
			page.Totals = append(page.Totals, report.TotalRow{Label: agg.label, Values: report.CoerceRow(metricColumns, values)})
		}
	}

	if next := offset + int64(len(resp.Rows)); next < page.TotalRows {
		page.NextPageToken = strconv.FormatInt(next, 10)
	}
	if resp.Metadata.DataLossFromOtherRow {
		page.Warnings = append(page.Warnings, "some rows were aggregated into (other) because of high cardinality")
	}
	return page
}

func (p *Provider) dimension(name string) (string, error) {
	if p.catalog == nil {
		return name, nil
	}
	apiName, ok := p.catalog.ResolveDimension(name)
	if !ok {
		return "", apierr.BadRequest(name, "unknown dimension")
	}
	return apiName, nil
}

func (p *Provider) metric(name string) (string, error) {
	if p.catalog == nil {
		return name, nil
	}
	apiName, ok := p.catalog.ResolveMetric(name)
	if !ok {
		return "", apierr.BadRequest(name, "unknown metric")
	}
	return apiName, nil
}

func (p *Provider) dimensionFilter(clause report.FilterClause) (*api.FilterExpression, error) {
	exprs := make([]api.FilterExpression, 0, len(clause))
	for _, c := range clause {
		field, err := p.dimension(c.Field)
		if err != nil {
			return nil, err
		}
		expr := api.FilterExpression{Filter: &api.Filter{
			FieldName: field,
			StringFilter: &api.StringFilter{
				MatchType: matchTypes[c.DimensionMatch()],
				Value:     c.Value,
			},
		}}
		exprs = append(exprs, negate(expr, c.Negated))
	}
	return &api.FilterExpression{AndGroup: &api.FilterExpressionList{Expressions: exprs}}, nil
}

func (p *Provider) metricFilter(clause report.FilterClause) (*api.FilterExpression, []string, error) {
	var warnings []string
	exprs := make([]api.FilterExpression, 0, len(clause))
	for _, c := range clause {
		cmp, ok := c.MetricComparison()
		if !ok {
			warnings = append(warnings, fmt.Sprintf("metric filter %q skipped: operator %s does not apply to metrics", c.String(), c.Operator.Token()))
			continue
		}
		value, ok := numericValue(c.Value)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("metric filter %q skipped: %q is not a number", c.String(), c.Value))
			continue
		}
		field, err := p.metric(c.Field)
		if err != nil {
			return nil, nil, err
		}
		expr := api.FilterExpression{Filter: &api.Filter{
			FieldName:     field,
			NumericFilter: &api.NumericFilter{Operation: string(cmp), Value: value},
		}}
		exprs = append(exprs, negate(expr, c.Negated))
	}
	if len(exprs) == 0 {
		return nil, warnings, nil
	}
	return &api.FilterExpression{AndGroup: &api.FilterExpressionList{Expressions: exprs}}, warnings, nil
}

func negate(expr api.FilterExpression, negated bool) api.FilterExpression {
	if !negated {
		return expr
	}
	return api.FilterExpression{NotExpression: &expr}
}

func numericValue(s string) (api.NumericValue, bool) {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return api.NumericValue{Int64Value: s}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return api.NumericValue{}, false
	}
	return api.NumericValue{DoubleValue: &f}, true
}
