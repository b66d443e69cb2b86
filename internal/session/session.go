// Package session ties a preset to a report provider: it picks GA3 or GA4,
// keeps the session date defaults and caches GA4 property catalogs
package session

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"gareport/internal/api"
	"gareport/internal/config"
	"gareport/internal/logger"
	"gareport/internal/preset"
	"gareport/internal/report"
	"gareport/internal/report/ga3"
	"gareport/internal/report/ga4"
)

// DataAPI is the GA4 Data API surface a session needs
type DataAPI interface {
	GetMetadata(ctx context.Context, propertyID string) (*api.MetadataResponse, error)
	RunReport(ctx context.Context, request *api.RunReportRequest) (*api.RunReportResponse, error)
}

// DefinitionsAPI lists GA4 custom definitions
type DefinitionsAPI interface {
	ListCustomDimensions(ctx context.Context, propertyID string) ([]api.CustomDimension, error)
	ListCustomMetrics(ctx context.Context, propertyID string) ([]api.CustomMetric, error)
}

// Clients are the API clients behind a session; unused ones may be nil
type Clients struct {
	Data        DataAPI
	Definitions DefinitionsAPI
	Reporting   ga3.Reporter
}

// Session runs reports for the property or view selected in a preset
type Session struct {
	preset   *preset.Preset
	cfg      *config.AppConfig
	clients  Clients
	catalogs *lru.Cache[string, *ga4.Catalog]
	defaults report.Defaults

	// Now is the session clock
	Now func() time.Time
}

// New creates a session for p
func New(p *preset.Preset, cfg *config.AppConfig, clients Clients) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	size := cfg.Cache.CatalogEntries
	if size <= 0 {
		size = 16
	}
	catalogs, err := lru.New[string, *ga4.Catalog](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}
	return &Session{
		preset:   p,
		cfg:      cfg,
		clients:  clients,
		catalogs: catalogs,
		defaults: p.Defaults(cfg.Report.RowLimit),
		Now:      time.Now,
	}, nil
}

// API returns "ga4" or "ga3"
func (s *Session) API() string { return s.preset.API }

// Source returns the selected property or view ID
func (s *Session) Source() string { return s.preset.Source() }

// Preset returns the session preset
func (s *Session) Preset() *preset.Preset { return s.preset }

// Defaults returns the current session defaults
func (s *Session) Defaults() report.Defaults { return s.defaults }

// SetDates changes the default report range after checking both ends
func (s *Session) SetDates(start, end string) error {
	if err := (report.DateRange{Start: start, End: end}).Validate(s.Now()); err != nil {
		return err
	}
	s.defaults.SetDates(start, end)
	return nil
}

// SelectProperty switches a GA4 session to another property
func (s *Session) SelectProperty(propertyID string) error {
	if s.preset.API != preset.APIGA4 {
		return fmt.Errorf("preset %s uses %s; select a view instead", s.preset.Name, s.preset.API)
	}
	s.preset.PropertyID = propertyID
	return nil
}

// SelectView switches a GA3 session to another view
func (s *Session) SelectView(viewID string) error {
	if s.preset.API != preset.APIGA3 {
		return fmt.Errorf("preset %s uses %s; select a property instead", s.preset.Name, s.preset.API)
	}
	s.preset.ViewID = viewID
	return nil
}

// Catalog returns the dimensions and metrics of a GA4 property. Catalogs are
// kept in memory, least recently used first out
func (s *Session) Catalog(ctx context.Context, propertyID string) (*ga4.Catalog, error) {
	if c, ok := s.catalogs.Get(propertyID); ok {
		return c, nil
	}
	if s.clients.Data == nil {
		return nil, fmt.Errorf("no GA4 Data API client configured")
	}

	md, err := s.clients.Data.GetMetadata(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	var dims []api.CustomDimension
	var mets []api.CustomMetric
	if s.clients.Definitions != nil {
		// custom definitions only enrich descriptions; a failure is not fatal
		if dims, err = s.clients.Definitions.ListCustomDimensions(ctx, propertyID); err != nil {
			logger.Warn().Err(err).Str("property_id", propertyID).Msg("Could not load custom dimensions")
		}
		if mets, err = s.clients.Definitions.ListCustomMetrics(ctx, propertyID); err != nil {
			logger.Warn().Err(err).Str("property_id", propertyID).Msg("Could not load custom metrics")
		}
	}

	c := ga4.NewCatalog(propertyID, md, dims, mets)
	s.catalogs.Add(propertyID, c)
	return c, nil
}

// Provider returns the report provider for the selected source
func (s *Session) Provider(ctx context.Context) (report.Provider, error) {
	source := s.Source()
	if source == "" {
		return nil, fmt.Errorf("preset %s has no %s selected", s.preset.Name, sourceKind(s.preset.API))
	}

	switch s.preset.API {
	case preset.APIGA3:
		if s.clients.Reporting == nil {
			return nil, fmt.Errorf("no GA3 Reporting API client configured")
		}
		p := ga3.New(s.clients.Reporting, source)
		p.PartialThreshold = s.cfg.Report.PartialThreshold
		return p, nil
	default:
		catalog, err := s.Catalog(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to load property metadata: %w", err)
		}
		return ga4.New(s.clients.Data, source, catalog), nil
	}
}

// Run builds a query from params and the session defaults and fetches every
// row
func (s *Session) Run(ctx context.Context, params report.Params) (*report.Result, error) {
	q, warnings, err := s.defaults.Build(params, s.Now())
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}

	p, err := s.Provider(ctx)
	if err != nil {
		return nil, err
	}

	f := report.NewFetcher(p)
	f.PartialThreshold = s.cfg.Report.PartialThreshold
	f.Now = s.Now
	res, err := f.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(warnings, res.Warnings...)
	return res, nil
}

func sourceKind(apiName string) string {
	if apiName == preset.APIGA3 {
		return "view"
	}
	return "property"
}
