package api

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"gareport/internal/apierr"
)

const (
	DataBaseURL = "https://analyticsdata.googleapis.com/v1beta"

	// GA4 caps a single runReport page at 250k rows
	MaxReportLimit = 250000
)

// DataClient handles GA4 Data API operations
type DataClient struct {
	transport   *Transport
	baseURL     string
	cacheClient CacheInterface // nil disables caching
	ttl         CacheTTL
}

// CacheInterface defines the caching contract
type CacheInterface interface {
	GetCachedMetadata(ctx context.Context, source, cacheType string, result interface{}) (bool, error)
	CacheMetadata(ctx context.Context, source, cacheType string, data interface{}, ttlHours int) error
	GetCachedQuery(ctx context.Context, queryHash string, result interface{}) (bool, error)
	CacheQuery(ctx context.Context, source, queryHash string, queryParams, resultData interface{}, rowCount int, ttlHours int) error
}

// CacheTTL sets cache lifetimes in hours; zero disables that cache
type CacheTTL struct {
	MetadataHours int
	ReportHours   int
}

// NewDataClient creates a new GA4 Data API client
func NewDataClient(transport *Transport, cacheClient CacheInterface, ttl CacheTTL) *DataClient {
	return &DataClient{
		transport:   transport,
		baseURL:     DataBaseURL,
		cacheClient: cacheClient,
		ttl:         ttl,
	}
}

// GA4 Data API response structures
type MetadataResponse struct {
	Name       string              `json:"name"`
	Dimensions []DimensionMetadata `json:"dimensions"`
	Metrics    []MetricMetadata    `json:"metrics"`
}

type DimensionMetadata struct {
	APIName            string   `json:"apiName"`
	UIName             string   `json:"uiName"`
	Description        string   `json:"description"`
	DeprecatedAPINames []string `json:"deprecatedApiNames,omitempty"`
	CustomDefinition   bool     `json:"customDefinition"`
	Category           string   `json:"category"`
}

type MetricMetadata struct {
	APIName            string   `json:"apiName"`
	UIName             string   `json:"uiName"`
	Description        string   `json:"description"`
	Type               string   `json:"type"`
	Expression         string   `json:"expression,omitempty"`
	CustomDefinition   bool     `json:"customDefinition"`
	Category           string   `json:"category"`
	DeprecatedAPINames []string `json:"deprecatedApiNames,omitempty"`
}

// RunReport API structures
type RunReportRequest struct {
	Property           string            `json:"-"` // Property ID (not in JSON body)
	Dimensions         []Dimension       `json:"dimensions,omitempty"`
	Metrics            []Metric          `json:"metrics,omitempty"`
	DateRanges         []DateRange       `json:"dateRanges"`
	DimensionFilter    *FilterExpression `json:"dimensionFilter,omitempty"`
	MetricFilter       *FilterExpression `json:"metricFilter,omitempty"`
	Offset             int64             `json:"offset,omitempty"`
	Limit              int64             `json:"limit,omitempty"`
	MetricAggregations []string          `json:"metricAggregations,omitempty"`
	OrderBys           []OrderBy         `json:"orderBys,omitempty"`
	KeepEmptyRows      bool              `json:"keepEmptyRows,omitempty"`
}

type RunReportResponse struct {
	DimensionHeaders []DimensionHeader `json:"dimensionHeaders"`
	MetricHeaders    []MetricHeader    `json:"metricHeaders"`
	Rows             []Row             `json:"rows"`
	Totals           []Row             `json:"totals"`
	Maximums         []Row             `json:"maximums"`
	Minimums         []Row             `json:"minimums"`
	RowCount         int               `json:"rowCount"`
	Metadata         ResponseMetadata  `json:"metadata"`
}

type Dimension struct {
	Name string `json:"name"`
}

type Metric struct {
	Name string `json:"name"`
}

type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type FilterExpression struct {
	AndGroup      *FilterExpressionList `json:"andGroup,omitempty"`
	OrGroup       *FilterExpressionList `json:"orGroup,omitempty"`
	NotExpression *FilterExpression     `json:"notExpression,omitempty"`
	Filter        *Filter               `json:"filter,omitempty"`
}

type FilterExpressionList struct {
	Expressions []FilterExpression `json:"expressions"`
}

type Filter struct {
	FieldName     string         `json:"fieldName"`
	StringFilter  *StringFilter  `json:"stringFilter,omitempty"`
	NumericFilter *NumericFilter `json:"numericFilter,omitempty"`
}

type StringFilter struct {
	MatchType     string `json:"matchType"` // EXACT, CONTAINS, PARTIAL_REGEXP, ...
	Value         string `json:"value"`
	CaseSensitive bool   `json:"caseSensitive"`
}

type NumericFilter struct {
	Operation string       `json:"operation"` // EQUAL, LESS_THAN, GREATER_THAN
	Value     NumericValue `json:"value"`
}

type NumericValue struct {
	Int64Value  string   `json:"int64Value,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
}

type OrderBy struct {
	Desc      bool              `json:"desc,omitempty"`
	Dimension *DimensionOrderBy `json:"dimension,omitempty"`
	Metric    *MetricOrderBy    `json:"metric,omitempty"`
}

type DimensionOrderBy struct {
	DimensionName string `json:"dimensionName"`
}

type MetricOrderBy struct {
	MetricName string `json:"metricName"`
}

type DimensionHeader struct {
	Name string `json:"name"`
}

type MetricHeader struct {
	Name string `json:"name"`
	Type string `json:"type"` // TYPE_INTEGER, TYPE_FLOAT, TYPE_SECONDS, TYPE_CURRENCY, etc.
}

type Row struct {
	DimensionValues []Value `json:"dimensionValues"`
	MetricValues    []Value `json:"metricValues"`
}

type Value struct {
	Value string `json:"value"`
}

type ResponseMetadata struct {
	CurrencyCode         string `json:"currencyCode"`
	TimeZone             string `json:"timeZone"`
	EmptyReason          string `json:"emptyReason,omitempty"`
	DataLossFromOtherRow bool   `json:"dataLossFromOtherRow,omitempty"`
}

// GetMetadata retrieves all dimensions and metrics available for a GA4 property
func (c *DataClient) GetMetadata(ctx context.Context, propertyID string) (*MetadataResponse, error) {
	if c.cacheClient != nil && c.ttl.MetadataHours > 0 {
		var cached MetadataResponse
		if found, err := c.cacheClient.GetCachedMetadata(ctx, propertyID, "metadata", &cached); err == nil && found {
			return &cached, nil
		}
	}

	url := fmt.Sprintf("%s/properties/%s/metadata", c.baseURL, propertyID)
	var metadata MetadataResponse
	if err := c.transport.get(ctx, DataAPI, url, &metadata); err != nil {
		return nil, fmt.Errorf("failed to get metadata for property %s: %w", propertyID, err)
	}

	if c.cacheClient != nil && c.ttl.MetadataHours > 0 {
		_ = c.cacheClient.CacheMetadata(ctx, propertyID, "metadata", metadata, c.ttl.MetadataHours)
	}
	return &metadata, nil
}

// RunReport executes one page of a GA4 report query
func (c *DataClient) RunReport(ctx context.Context, request *RunReportRequest) (*RunReportResponse, error) {
	if request.Property == "" {
		return nil, fmt.Errorf("property ID is required")
	}
	if len(request.DateRanges) == 0 {
		return nil, fmt.Errorf("at least one date range is required")
	}
	if request.Limit == 0 {
		request.Limit = 10000
	}
	if request.Limit > MaxReportLimit {
		return nil, apierr.BadRequest(strconv.FormatInt(request.Limit, 10), fmt.Sprintf("limit cannot exceed %d rows", MaxReportLimit))
	}

	var queryHash string
	if c.cacheClient != nil && c.ttl.ReportHours > 0 {
		queryHash = generateQueryHash(request)
		var cached RunReportResponse
		if found, err := c.cacheClient.GetCachedQuery(ctx, queryHash, &cached); err == nil && found {
			return &cached, nil
		}
	}

	url := fmt.Sprintf("%s/properties/%s:runReport", c.baseURL, request.Property)
	var reportResponse RunReportResponse
	if err := c.transport.post(ctx, DataAPI, url, request, &reportResponse); err != nil {
		return nil, err
	}

	if queryHash != "" {
		_ = c.cacheClient.CacheQuery(ctx, request.Property, queryHash, request, reportResponse, reportResponse.RowCount, c.ttl.ReportHours)
	}
	return &reportResponse, nil
}

// generateQueryHash creates a unique hash for a query request
func generateQueryHash(request *RunReportRequest) string {
	jsonData, _ := json.Marshal(struct {
		Property string `json:"property"`
		*RunReportRequest
	}{request.Property, request})
	return fmt.Sprintf("%x", sha256.Sum256(jsonData))
}
