package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"gareport/internal/config"
)

const ManagementBaseURL = "https://www.googleapis.com/analytics/v3/management"

// managementPageSize is the max-results used for every list call
const managementPageSize = 1000

// ManagementClient handles Universal Analytics Management API v3 operations
type ManagementClient struct {
	transport *Transport
	baseURL   string
}

// NewManagementClient creates a new Management API v3 client
func NewManagementClient(transport *Transport) *ManagementClient {
	return &ManagementClient{transport: transport, baseURL: ManagementBaseURL}
}

// Management API v3 collections share this envelope
type collection[T any] struct {
	Items        []T `json:"items"`
	TotalResults int `json:"totalResults"`
	StartIndex   int `json:"startIndex"`
	ItemsPerPage int `json:"itemsPerPage"`
}

type accountSummaryItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WebProperties []struct {
		ID                    string `json:"id"`
		Name                  string `json:"name"`
		InternalWebPropertyID string `json:"internalWebPropertyId"`
		Level                 string `json:"level"`
		WebsiteURL            string `json:"websiteUrl"`
		Profiles              []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"profiles"`
	} `json:"webProperties"`
}

type webPropertyItem struct {
	ID                    string `json:"id"`
	AccountID             string `json:"accountId"`
	Name                  string `json:"name"`
	WebsiteURL            string `json:"websiteUrl"`
	InternalWebPropertyID string `json:"internalWebPropertyId"`
	Level                 string `json:"level"`
	DefaultProfileID      string `json:"defaultProfileId"`
	IndustryVertical      string `json:"industryVertical"`
	Created               string `json:"created"`
}

type profileItem struct {
	ID                string `json:"id"`
	AccountID         string `json:"accountId"`
	WebPropertyID     string `json:"webPropertyId"`
	Name              string `json:"name"`
	Currency          string `json:"currency"`
	Timezone          string `json:"timezone"`
	WebsiteURL        string `json:"websiteUrl"`
	Type              string `json:"type"`
	ECommerceTracking bool   `json:"eCommerceTracking"`
	Created           string `json:"created"`
}

type goalItem struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Value  float64 `json:"value"`
	Active bool    `json:"active"`
}

type segmentItem struct {
	ID         string `json:"id"`
	SegmentID  string `json:"segmentId"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Definition string `json:"definition"`
}

// CustomDefinition is a Universal Analytics custom dimension or metric
type CustomDefinition struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Index  int    `json:"index"`
	Scope  string `json:"scope"`
	Type   string `json:"type,omitempty"` // metrics only: INTEGER, CURRENCY, TIME
	Active bool   `json:"active"`
}

// listAll walks a v3 collection with start-index paging
func listAll[T any](ctx context.Context, c *ManagementClient, path string) ([]T, error) {
	var items []T
	start := 1
	for {
		q := url.Values{}
		q.Set("start-index", strconv.Itoa(start))
		q.Set("max-results", strconv.Itoa(managementPageSize))

		var page collection[T]
		if err := c.transport.get(ctx, ManagementAPI, c.baseURL+path+"?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		items = append(items, page.Items...)

		if len(page.Items) == 0 || len(items) >= page.TotalResults {
			return items, nil
		}
		start += len(page.Items)
	}
}

// ListAccountSummaries returns accounts with their web properties and views
func (c *ManagementClient) ListAccountSummaries(ctx context.Context) ([]config.Account, error) {
	items, err := listAll[accountSummaryItem](ctx, c, "/accountSummaries")
	if err != nil {
		return nil, fmt.Errorf("failed to list account summaries: %w", err)
	}

	accounts := make([]config.Account, 0, len(items))
	for _, item := range items {
		account := config.Account{ID: item.ID, Name: item.Name, DisplayName: item.Name}
		for _, wp := range item.WebProperties {
			webProperty := config.WebProperty{
				ID:         wp.ID,
				AccountID:  item.ID,
				Name:       wp.Name,
				WebsiteURL: wp.WebsiteURL,
				InternalID: wp.InternalWebPropertyID,
				Level:      wp.Level,
			}
			for _, p := range wp.Profiles {
				webProperty.Views = append(webProperty.Views, config.View{
					ID:            p.ID,
					AccountID:     item.ID,
					WebPropertyID: wp.ID,
					Name:          p.Name,
					Type:          p.Type,
				})
			}
			account.WebProperties = append(account.WebProperties, webProperty)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// ListWebProperties lists the web properties of an account
func (c *ManagementClient) ListWebProperties(ctx context.Context, accountID string) ([]config.WebProperty, error) {
	items, err := listAll[webPropertyItem](ctx, c, fmt.Sprintf("/accounts/%s/webproperties", accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to list web properties of account %s: %w", accountID, err)
	}
	out := make([]config.WebProperty, len(items))
	for i, wp := range items {
		out[i] = config.WebProperty{
			ID:               wp.ID,
			AccountID:        wp.AccountID,
			Name:             wp.Name,
			WebsiteURL:       wp.WebsiteURL,
			InternalID:       wp.InternalWebPropertyID,
			Level:            wp.Level,
			DefaultProfileID: wp.DefaultProfileID,
			IndustryVertical: wp.IndustryVertical,
			Created:          wp.Created,
		}
	}
	return out, nil
}

// ListViews lists the views (profiles) of a web property
func (c *ManagementClient) ListViews(ctx context.Context, accountID, webPropertyID string) ([]config.View, error) {
	path := fmt.Sprintf("/accounts/%s/webproperties/%s/profiles", accountID, webPropertyID)
	items, err := listAll[profileItem](ctx, c, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list views of %s: %w", webPropertyID, err)
	}
	out := make([]config.View, len(items))
	for i, p := range items {
		out[i] = config.View{
			ID:                p.ID,
			AccountID:         p.AccountID,
			WebPropertyID:     p.WebPropertyID,
			Name:              p.Name,
			Currency:          p.Currency,
			TimeZone:          p.Timezone,
			WebsiteURL:        p.WebsiteURL,
			Type:              p.Type,
			ECommerceTracking: p.ECommerceTracking,
			Created:           p.Created,
		}
	}
	return out, nil
}

// ListGoals lists the goals configured on a view
func (c *ManagementClient) ListGoals(ctx context.Context, accountID, webPropertyID, viewID string) ([]config.Goal, error) {
	path := fmt.Sprintf("/accounts/%s/webproperties/%s/profiles/%s/goals", accountID, webPropertyID, viewID)
	items, err := listAll[goalItem](ctx, c, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals of view %s: %w", viewID, err)
	}
	out := make([]config.Goal, len(items))
	for i, g := range items {
		out[i] = config.Goal{ID: g.ID, Name: g.Name, Type: g.Type, Value: g.Value, Active: g.Active}
	}
	return out, nil
}

// ListCustomDimensions lists the custom dimensions of a web property
func (c *ManagementClient) ListCustomDimensions(ctx context.Context, accountID, webPropertyID string) ([]CustomDefinition, error) {
	path := fmt.Sprintf("/accounts/%s/webproperties/%s/customDimensions", accountID, webPropertyID)
	items, err := listAll[CustomDefinition](ctx, c, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom dimensions of %s: %w", webPropertyID, err)
	}
	return items, nil
}

// ListCustomMetrics lists the custom metrics of a web property
func (c *ManagementClient) ListCustomMetrics(ctx context.Context, accountID, webPropertyID string) ([]CustomDefinition, error) {
	path := fmt.Sprintf("/accounts/%s/webproperties/%s/customMetrics", accountID, webPropertyID)
	items, err := listAll[CustomDefinition](ctx, c, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom metrics of %s: %w", webPropertyID, err)
	}
	return items, nil
}

// ListSegments lists the built-in and custom segments visible to the user
func (c *ManagementClient) ListSegments(ctx context.Context) ([]config.Segment, error) {
	items, err := listAll[segmentItem](ctx, c, "/segments")
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	out := make([]config.Segment, len(items))
	for i, s := range items {
		out[i] = config.Segment{ID: s.ID, SegmentID: s.SegmentID, Name: s.Name, Type: s.Type, Definition: s.Definition}
	}
	return out, nil
}
