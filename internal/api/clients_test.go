package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gareport/internal/apierr"
)

type memoryCache struct {
	metadata map[string][]byte
	queries  map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{metadata: map[string][]byte{}, queries: map[string][]byte{}}
}

func (m *memoryCache) GetCachedMetadata(_ context.Context, source, cacheType string, result interface{}) (bool, error) {
	data, ok := m.metadata[source+"/"+cacheType]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, result)
}

func (m *memoryCache) CacheMetadata(_ context.Context, source, cacheType string, data interface{}, _ int) error {
	b, err := json.Marshal(data)
	m.metadata[source+"/"+cacheType] = b
	return err
}

func (m *memoryCache) GetCachedQuery(_ context.Context, queryHash string, result interface{}) (bool, error) {
	data, ok := m.queries[queryHash]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, result)
}

func (m *memoryCache) CacheQuery(_ context.Context, _, queryHash string, _, resultData interface{}, _ int, _ int) error {
	b, err := json.Marshal(resultData)
	m.queries[queryHash] = b
	return err
}

func TestDataClientRunReport(t *testing.T) {
	calls := 0
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/properties/123:runReport", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "property")
		assert.EqualValues(t, 2, body["limit"])

		io.WriteString(w, `{
			"dimensionHeaders":[{"name":"date"}],
			"metricHeaders":[{"name":"eventCount","type":"TYPE_INTEGER"}],
			"rows":[{"dimensionValues":[{"value":"20240301"}],"metricValues":[{"value":"12"}]}],
			"rowCount":1
		}`)
	})

	client := NewDataClient(tr, newMemoryCache(), CacheTTL{ReportHours: 1})
	client.baseURL = srv.URL

	req := &RunReportRequest{
		Property:   "123",
		Dimensions: []Dimension{{Name: "date"}},
		Metrics:    []Metric{{Name: "eventCount"}},
		DateRanges: []DateRange{{StartDate: "2024-03-01", EndDate: "2024-03-01"}},
		Limit:      2,
	}
	resp, err := client.RunReport(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.RowCount)
	assert.Equal(t, "TYPE_INTEGER", resp.MetricHeaders[0].Type)
	assert.Equal(t, "12", resp.Rows[0].MetricValues[0].Value)

	// second call is served from the cache
	_, err = client.RunReport(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDataClientValidatesRequest(t *testing.T) {
	client := NewDataClient(nil, nil, CacheTTL{})

	_, err := client.RunReport(context.Background(), &RunReportRequest{DateRanges: []DateRange{{}}})
	assert.Error(t, err)

	_, err = client.RunReport(context.Background(), &RunReportRequest{Property: "1"})
	assert.Error(t, err)

	_, err = client.RunReport(context.Background(), &RunReportRequest{
		Property:   "1",
		DateRanges: []DateRange{{StartDate: "yesterday", EndDate: "yesterday"}},
		Limit:      MaxReportLimit + 1,
	})
	assert.ErrorIs(t, err, apierr.ErrBadRequest)
	assert.Contains(t, err.Error(), "250001")
}

func TestQueryHashDependsOnProperty(t *testing.T) {
	a := &RunReportRequest{Property: "1", DateRanges: []DateRange{{StartDate: "today", EndDate: "today"}}}
	b := &RunReportRequest{Property: "2", DateRanges: []DateRange{{StartDate: "today", EndDate: "today"}}}
	assert.NotEqual(t, generateQueryHash(a), generateQueryHash(b))
	assert.Equal(t, generateQueryHash(a), generateQueryHash(a))
}

func TestDataClientGetMetadata(t *testing.T) {
	calls := 0
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/properties/123/metadata", r.URL.Path)
		io.WriteString(w, `{
			"name":"properties/123/metadata",
			"dimensions":[{"apiName":"eventName","uiName":"Event name","category":"Event"}],
			"metrics":[{"apiName":"eventCount","uiName":"Event count","type":"TYPE_INTEGER"}]
		}`)
	})

	client := NewDataClient(tr, newMemoryCache(), CacheTTL{MetadataHours: 24})
	client.baseURL = srv.URL

	for i := 0; i < 2; i++ {
		md, err := client.GetMetadata(context.Background(), "123")
		require.NoError(t, err)
		assert.Equal(t, "Event name", md.Dimensions[0].UIName)
		assert.Equal(t, "TYPE_INTEGER", md.Metrics[0].Type)
	}
	assert.Equal(t, 1, calls)
}

func TestDataClientDisabledAPI(t *testing.T) {
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":{"code":403,"message":"Google Analytics Data API has not been used in project 42 before or it is disabled.","status":"PERMISSION_DENIED"}}`)
	})
	client := NewDataClient(tr, nil, CacheTTL{})
	client.baseURL = srv.URL

	_, err := client.GetMetadata(context.Background(), "123")
	assert.ErrorIs(t, err, apierr.ErrAPIDisabled)
	assert.Contains(t, err.Error(), DataAPI)
}

func TestAdminClientListAccountSummaries(t *testing.T) {
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accountSummaries", r.URL.Path)
		if r.URL.Query().Get("pageToken") == "" {
			io.WriteString(w, `{
				"accountSummaries":[{"account":"accounts/1","displayName":"First",
					"propertySummaries":[{"property":"properties/11","displayName":"Web","propertyType":"PROPERTY_TYPE_ORDINARY"}]}],
				"nextPageToken":"p2"
			}`)
			return
		}
		io.WriteString(w, `{"accountSummaries":[{"account":"accounts/2","displayName":"Second"}]}`)
	})
	client := NewAdminClient(tr)
	client.baseURL = srv.URL

	accounts, err := client.ListAccountSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "1", accounts[0].ID)
	assert.Equal(t, "11", accounts[0].Properties[0].ID)
	assert.Equal(t, "1", accounts[0].Properties[0].AccountID)
	assert.Equal(t, "Second", accounts[1].DisplayName)
}

func TestAdminClientListPropertiesSkipsDeleted(t *testing.T) {
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "parent:accounts/1", r.URL.Query().Get("filter"))
		io.WriteString(w, `{"properties":[
			{"name":"properties/11","displayName":"Live","parent":"accounts/1","timeZone":"Asia/Tokyo","createTime":"2023-01-02T03:04:05Z"},
			{"name":"properties/12","displayName":"Gone","parent":"accounts/1","deleteTime":"2024-01-01T00:00:00Z"}
		]}`)
	})
	client := NewAdminClient(tr)
	client.baseURL = srv.URL

	props, err := client.ListProperties(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "11", props[0].ID)
	assert.Equal(t, "Asia/Tokyo", props[0].TimeZone)
	assert.Equal(t, 2023, props[0].CreateTime.Year())
}

func TestAdminClientCreateCustomDimension(t *testing.T) {
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/properties/11/customDimensions", r.URL.Path)
		var dim CustomDimension
		require.NoError(t, json.NewDecoder(r.Body).Decode(&dim))
		assert.Equal(t, "EVENT", dim.Scope)
		dim.Name = "properties/11/customDimensions/99"
		json.NewEncoder(w).Encode(dim)
	})
	client := NewAdminClient(tr)
	client.baseURL = srv.URL

	created, err := client.CreateCustomDimension(context.Background(), "11", CustomDimension{ParameterName: "plan", DisplayName: "Plan"})
	require.NoError(t, err)
	assert.Equal(t, "properties/11/customDimensions/99", created.Name)

	_, err = client.CreateCustomDimension(context.Background(), "11", CustomDimension{DisplayName: "Plan"})
	assert.Error(t, err)
}

func TestReportingClientBatchGet(t *testing.T) {
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reports:batchGet", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"useResourceQuotas":false`)
		assert.Contains(t, string(body), `"viewId":"456"`)
		io.WriteString(w, `{"reports":[{
			"columnHeader":{"dimensions":["ga:date"],"metricHeader":{"metricHeaderEntries":[{"name":"sessions","type":"INTEGER"}]}},
			"data":{"rows":[{"dimensions":["20200101"],"metrics":[{"values":["5"]}]}],"rowCount":1,
				"samplesReadCounts":["100"],"samplingSpaceSizes":["1000"]},
			"nextPageToken":"1"
		}]}`)
	})
	client := NewReportingClient(tr)
	client.baseURL = srv.URL

	report, err := client.BatchGet(context.Background(), &ReportRequest{
		ViewID:     "456",
		DateRanges: []DateRange{{StartDate: "2020-01-01", EndDate: "2020-01-01"}},
		Metrics:    []ReportMetric{{Expression: "ga:sessions", Alias: "sessions"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", report.NextPageToken)
	assert.Equal(t, int64(1), report.Data.RowCount)
	assert.Equal(t, []int64{100}, []int64(report.Data.SamplesReadCounts))
	assert.Equal(t, "sessions", report.ColumnHeader.MetricHeader.MetricHeaderEntries[0].Name)
}

func TestManagementClientPagesByStartIndex(t *testing.T) {
	var starts []string
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/accounts/1/webproperties/UA-1-1/profiles"))
		start := r.URL.Query().Get("start-index")
		starts = append(starts, start)
		if start == "1" {
			io.WriteString(w, `{"items":[{"id":"10","name":"All Web Site Data","timezone":"Asia/Tokyo"}],"totalResults":2}`)
			return
		}
		io.WriteString(w, `{"items":[{"id":"20","name":"Filtered"}],"totalResults":2}`)
	})
	client := NewManagementClient(tr)
	client.baseURL = srv.URL

	views, err := client.ListViews(context.Background(), "1", "UA-1-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, []string{"1", "2"}, starts)
	assert.Equal(t, "Asia/Tokyo", views[0].TimeZone)
	assert.Equal(t, "20", views[1].ID)
}

func TestManagementClientAccountSummaries(t *testing.T) {
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"items":[{"id":"1","name":"Acme","webProperties":[
			{"id":"UA-1-1","name":"Site","profiles":[{"id":"10","name":"All Web Site Data","type":"WEB"}]}
		]}],"totalResults":1}`)
	})
	client := NewManagementClient(tr)
	client.baseURL = srv.URL

	accounts, err := client.ListAccountSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	wp := accounts[0].WebProperties[0]
	assert.Equal(t, "UA-1-1", wp.ID)
	assert.Equal(t, "10", wp.Views[0].ID)
	assert.Equal(t, "UA-1-1", wp.Views[0].WebPropertyID)
}
