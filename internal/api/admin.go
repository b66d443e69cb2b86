package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gareport/internal/config"
)

const AdminBaseURL = "https://analyticsadmin.googleapis.com/v1beta"

// AdminClient handles GA4 Admin API operations
type AdminClient struct {
	transport *Transport
	baseURL   string
}

// NewAdminClient creates a new GA4 Admin API client
func NewAdminClient(transport *Transport) *AdminClient {
	return &AdminClient{transport: transport, baseURL: AdminBaseURL}
}

// GA4 Admin API response structures
type accountSummariesResponse struct {
	AccountSummaries []struct {
		Name              string `json:"name"`    // "accountSummaries/71671299"
		Account           string `json:"account"` // "accounts/71671299"
		DisplayName       string `json:"displayName"`
		PropertySummaries []struct {
			Property     string `json:"property"` // "properties/328687832"
			DisplayName  string `json:"displayName"`
			PropertyType string `json:"propertyType"`
			Parent       string `json:"parent"`
		} `json:"propertySummaries"`
	} `json:"accountSummaries"`
	NextPageToken string `json:"nextPageToken"`
}

type propertyResponse struct {
	Name             string `json:"name"` // "properties/328687832"
	DisplayName      string `json:"displayName"`
	PropertyType     string `json:"propertyType"`
	CreateTime       string `json:"createTime"`
	Parent           string `json:"parent"` // "accounts/71671299"
	CurrencyCode     string `json:"currencyCode"`
	TimeZone         string `json:"timeZone"`
	IndustryCategory string `json:"industryCategory"`
	ServiceLevel     string `json:"serviceLevel"`
	DeleteTime       string `json:"deleteTime,omitempty"`
}

type propertiesResponse struct {
	Properties    []propertyResponse `json:"properties"`
	NextPageToken string             `json:"nextPageToken"`
}

// CustomDimension is a GA4 custom dimension definition
type CustomDimension struct {
	Name          string `json:"name,omitempty"`
	ParameterName string `json:"parameterName"`
	DisplayName   string `json:"displayName"`
	Description   string `json:"description,omitempty"`
	Scope         string `json:"scope"` // EVENT, USER, ITEM
}

// CustomMetric is a GA4 custom metric definition
type CustomMetric struct {
	Name            string `json:"name,omitempty"`
	ParameterName   string `json:"parameterName"`
	DisplayName     string `json:"displayName"`
	Description     string `json:"description,omitempty"`
	MeasurementUnit string `json:"measurementUnit"`
	Scope           string `json:"scope"`
}

type customDimensionsResponse struct {
	CustomDimensions []CustomDimension `json:"customDimensions"`
	NextPageToken    string            `json:"nextPageToken"`
}

type customMetricsResponse struct {
	CustomMetrics []CustomMetric `json:"customMetrics"`
	NextPageToken string         `json:"nextPageToken"`
}

type dataRetentionResponse struct {
	EventDataRetention         string `json:"eventDataRetention"`
	ResetUserDataOnNewActivity bool   `json:"resetUserDataOnNewActivity"`
}

// ListAccountSummaries returns every account with its property summaries
func (c *AdminClient) ListAccountSummaries(ctx context.Context) ([]config.Account, error) {
	var accounts []config.Account
	pageToken := ""
	for {
		u := fmt.Sprintf("%s/accountSummaries?pageSize=200", c.baseURL)
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}

		var resp accountSummariesResponse
		if err := c.transport.get(ctx, AdminAPI, u, &resp); err != nil {
			return nil, fmt.Errorf("failed to list account summaries: %w", err)
		}

		for _, s := range resp.AccountSummaries {
			accountID := extractIDFromResource(s.Account, "accounts/")
			account := config.Account{
				ID:          accountID,
				Name:        s.Account,
				DisplayName: s.DisplayName,
			}
			for _, p := range s.PropertySummaries {
				account.Properties = append(account.Properties, config.Property{
					ID:           extractIDFromResource(p.Property, "properties/"),
					Name:         p.Property,
					DisplayName:  p.DisplayName,
					AccountID:    accountID,
					PropertyType: p.PropertyType,
				})
			}
			accounts = append(accounts, account)
		}

		if resp.NextPageToken == "" {
			return accounts, nil
		}
		pageToken = resp.NextPageToken
	}
}

// ListProperties retrieves all live properties of an account
func (c *AdminClient) ListProperties(ctx context.Context, accountID string) ([]config.Property, error) {
	var properties []config.Property
	pageToken := ""
	for {
		q := url.Values{}
		// GA4 Admin API requires a filter parameter for listing properties
		q.Set("filter", "parent:accounts/"+accountID)
		q.Set("showDeleted", "false")
		q.Set("pageSize", "200")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var resp propertiesResponse
		if err := c.transport.get(ctx, AdminAPI, c.baseURL+"/properties?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("failed to list properties of account %s: %w", accountID, err)
		}

		for _, p := range resp.Properties {
			if p.DeleteTime != "" {
				continue
			}
			properties = append(properties, toProperty(p))
		}

		if resp.NextPageToken == "" {
			return properties, nil
		}
		pageToken = resp.NextPageToken
	}
}

// GetProperty retrieves detailed information for a specific property
func (c *AdminClient) GetProperty(ctx context.Context, propertyID string) (*config.Property, error) {
	var resp propertyResponse
	if err := c.transport.get(ctx, AdminAPI, fmt.Sprintf("%s/properties/%s", c.baseURL, propertyID), &resp); err != nil {
		return nil, fmt.Errorf("failed to get property %s: %w", propertyID, err)
	}
	if resp.DeleteTime != "" {
		return nil, fmt.Errorf("property %s has been deleted", propertyID)
	}
	property := toProperty(resp)
	return &property, nil
}

// ListCustomDimensions lists the custom dimensions of a property
func (c *AdminClient) ListCustomDimensions(ctx context.Context, propertyID string) ([]CustomDimension, error) {
	var out []CustomDimension
	pageToken := ""
	for {
		u := fmt.Sprintf("%s/properties/%s/customDimensions?pageSize=200", c.baseURL, propertyID)
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}
		var resp customDimensionsResponse
		if err := c.transport.get(ctx, AdminAPI, u, &resp); err != nil {
			return nil, fmt.Errorf("failed to list custom dimensions: %w", err)
		}
		out = append(out, resp.CustomDimensions...)
		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

// ListCustomMetrics lists the custom metrics of a property
func (c *AdminClient) ListCustomMetrics(ctx context.Context, propertyID string) ([]CustomMetric, error) {
	var out []CustomMetric
	pageToken := ""
	for {
		u := fmt.Sprintf("%s/properties/%s/customMetrics?pageSize=200", c.baseURL, propertyID)
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}
		var resp customMetricsResponse
		if err := c.transport.get(ctx, AdminAPI, u, &resp); err != nil {
			return nil, fmt.Errorf("failed to list custom metrics: %w", err)
		}
		out = append(out, resp.CustomMetrics...)
		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

// GetDataRetention returns the data retention settings of a property
func (c *AdminClient) GetDataRetention(ctx context.Context, propertyID string) (*config.DataRetention, error) {
	var resp dataRetentionResponse
	u := fmt.Sprintf("%s/properties/%s/dataRetentionSettings", c.baseURL, propertyID)
	if err := c.transport.get(ctx, AdminAPI, u, &resp); err != nil {
		return nil, fmt.Errorf("failed to get data retention settings: %w", err)
	}
	return &config.DataRetention{
		EventDataRetention:         resp.EventDataRetention,
		ResetUserDataOnNewActivity: resp.ResetUserDataOnNewActivity,
	}, nil
}

// CreateCustomDimension registers a new custom dimension on a property
func (c *AdminClient) CreateCustomDimension(ctx context.Context, propertyID string, dim CustomDimension) (*CustomDimension, error) {
	dim.Name = ""
	dim.Scope = strings.ToUpper(dim.Scope)
	if dim.Scope == "" {
		dim.Scope = "EVENT"
	}
	if dim.ParameterName == "" || dim.DisplayName == "" {
		return nil, fmt.Errorf("parameter name and display name are required")
	}

	var created CustomDimension
	u := fmt.Sprintf("%s/properties/%s/customDimensions", c.baseURL, propertyID)
	if err := c.transport.post(ctx, AdminAPI, u, dim, &created); err != nil {
		return nil, fmt.Errorf("failed to create custom dimension: %w", err)
	}
	return &created, nil
}

func toProperty(p propertyResponse) config.Property {
	createTime, err := time.Parse(time.RFC3339, p.CreateTime)
	if err != nil {
		createTime = time.Time{}
	}
	return config.Property{
		ID:               extractIDFromResource(p.Name, "properties/"),
		Name:             p.Name,
		DisplayName:      p.DisplayName,
		AccountID:        extractIDFromResource(p.Parent, "accounts/"),
		PropertyType:     p.PropertyType,
		IndustryCategory: p.IndustryCategory,
		TimeZone:         p.TimeZone,
		CurrencyCode:     p.CurrencyCode,
		ServiceLevel:     p.ServiceLevel,
		CreateTime:       createTime,
	}
}

// Helper function to extract ID from GA4 resource names
func extractIDFromResource(resourceName, prefix string) string {
	return strings.TrimPrefix(resourceName, prefix)
}
