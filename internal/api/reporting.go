package api

import (
	"context"
	"fmt"

	"google.golang.org/api/googleapi"
)

const ReportingBaseURL = "https://analyticsreporting.googleapis.com/v4"

// ReportingClient handles Universal Analytics Reporting API v4 calls
type ReportingClient struct {
	transport *Transport
	baseURL   string
}

// NewReportingClient creates a new Reporting API v4 client
func NewReportingClient(transport *Transport) *ReportingClient {
	return &ReportingClient{transport: transport, baseURL: ReportingBaseURL}
}

// ReportRequest is one entry of reports:batchGet
type ReportRequest struct {
	ViewID                 string                  `json:"viewId"`
	DateRanges             []DateRange             `json:"dateRanges"`
	Dimensions             []ReportDimension       `json:"dimensions,omitempty"`
	Metrics                []ReportMetric          `json:"metrics,omitempty"`
	DimensionFilterClauses []DimensionFilterClause `json:"dimensionFilterClauses,omitempty"`
	MetricFilterClauses    []MetricFilterClause    `json:"metricFilterClauses,omitempty"`
	OrderBys               []ReportOrderBy         `json:"orderBys,omitempty"`
	Segments               []ReportSegment         `json:"segments,omitempty"`
	SamplingLevel          string                  `json:"samplingLevel,omitempty"`
	PageToken              string                  `json:"pageToken,omitempty"`
	PageSize               int                     `json:"pageSize,omitempty"`
	IncludeEmptyRows       bool                    `json:"includeEmptyRows"`
	HideTotals             bool                    `json:"hideTotals"`
	HideValueRanges        bool                    `json:"hideValueRanges"`
}

type ReportDimension struct {
	Name string `json:"name"`
}

type ReportMetric struct {
	Expression string `json:"expression"`
	Alias      string `json:"alias,omitempty"`
}

type DimensionFilterClause struct {
	Operator string            `json:"operator,omitempty"` // OR, AND
	Filters  []DimensionFilter `json:"filters"`
}

type DimensionFilter struct {
	DimensionName string   `json:"dimensionName"`
	Not           bool     `json:"not,omitempty"`
	Operator      string   `json:"operator"` // EXACT, REGEXP, PARTIAL, ...
	Expressions   []string `json:"expressions"`
	CaseSensitive bool     `json:"caseSensitive,omitempty"`
}

type MetricFilterClause struct {
	Operator string         `json:"operator,omitempty"`
	Filters  []MetricFilter `json:"filters"`
}

type MetricFilter struct {
	MetricName      string `json:"metricName"`
	Not             bool   `json:"not,omitempty"`
	Operator        string `json:"operator"` // EQUAL, LESS_THAN, GREATER_THAN
	ComparisonValue string `json:"comparisonValue"`
}

type ReportOrderBy struct {
	FieldName string `json:"fieldName"`
	SortOrder string `json:"sortOrder,omitempty"` // ASCENDING, DESCENDING
}

type ReportSegment struct {
	SegmentID string `json:"segmentId"`
}

type batchGetRequest struct {
	ReportRequests    []*ReportRequest `json:"reportRequests"`
	UseResourceQuotas bool             `json:"useResourceQuotas"`
}

// BatchGetResponse is the reports:batchGet response body
type BatchGetResponse struct {
	Reports []Report `json:"reports"`
}

type Report struct {
	ColumnHeader  ColumnHeader `json:"columnHeader"`
	Data          ReportData   `json:"data"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

type ColumnHeader struct {
	Dimensions   []string           `json:"dimensions"`
	MetricHeader ReportMetricHeader `json:"metricHeader"`
}

type ReportMetricHeader struct {
	MetricHeaderEntries []MetricHeaderEntry `json:"metricHeaderEntries"`
}

type MetricHeaderEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // INTEGER, FLOAT, CURRENCY, PERCENT, TIME
}

type ReportData struct {
	Rows               []ReportRow       `json:"rows"`
	Totals             []DateRangeValues `json:"totals"`
	Maximums           []DateRangeValues `json:"maximums"`
	Minimums           []DateRangeValues `json:"minimums"`
	RowCount           int64             `json:"rowCount"`
	SamplesReadCounts  googleapi.Int64s  `json:"samplesReadCounts,omitempty"`
	SamplingSpaceSizes googleapi.Int64s  `json:"samplingSpaceSizes,omitempty"`
	IsDataGolden       bool              `json:"isDataGolden"`
}

type ReportRow struct {
	Dimensions []string          `json:"dimensions"`
	Metrics    []DateRangeValues `json:"metrics"`
}

type DateRangeValues struct {
	Values []string `json:"values"`
}

// BatchGet runs a single report request and returns its report
func (c *ReportingClient) BatchGet(ctx context.Context, request *ReportRequest) (*Report, error) {
	if request.ViewID == "" {
		return nil, fmt.Errorf("view ID is required")
	}
	if len(request.DateRanges) == 0 {
		return nil, fmt.Errorf("at least one date range is required")
	}

	body := batchGetRequest{ReportRequests: []*ReportRequest{request}}
	var resp BatchGetResponse
	if err := c.transport.post(ctx, ReportingAPI, c.baseURL+"/reports:batchGet", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Reports) == 0 {
		return nil, fmt.Errorf("reports:batchGet returned no report")
	}
	return &resp.Reports[0], nil
}
