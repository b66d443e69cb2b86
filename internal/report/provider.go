package report

import "context"

// FirstPage is the token passed to FetchPage for the first page. Providers
// translate it into their own starting cursor
const FirstPage = ""

// Request is a provider-native request built from a Query
type Request interface {
	// Warnings lists adjustments made while building, such as truncated fields
	Warnings() []string
}

// Page is one response page
type Page struct {
	Columns       []Column
	Rows          [][]any
	Totals        []TotalRow
	TotalRows     int64
	NextPageToken string
	// Warnings are provider notices for this page, such as sampling
	Warnings []string
}

// Provider translates queries for one analytics API and fetches pages
type Provider interface {
	Name() string
	// BuildRequest must be pure: the same query always yields the same request
	BuildRequest(q Query) (Request, error)
	FetchPage(ctx context.Context, req Request, token string) (*Page, error)
}
