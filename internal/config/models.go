package config

import "time"

// AppConfig holds global application configuration
type AppConfig struct {
	CredentialsFile string          `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"` // OAuth client secret or service account JSON
	ActivePreset    string          `json:"active_preset,omitempty" yaml:"active_preset,omitempty"`
	Log             LogConfig       `json:"log" yaml:"log"`
	RateLimit       RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Cache           CacheConfig     `json:"cache" yaml:"cache"`
	Report          ReportConfig    `json:"report" yaml:"report"`
	CreatedAt       time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" yaml:"updated_at"`
}

// LogConfig controls the zerolog output
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // console or json
}

// RateLimitConfig throttles calls to Google APIs
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`
	MaxRetries        int     `json:"max_retries" yaml:"max_retries"` // retries on "rate limit exceeded"
}

// CacheConfig controls the DuckDB metadata and report cache
type CacheConfig struct {
	Disabled         bool `json:"disabled" yaml:"disabled"`
	MetadataTTLHours int  `json:"metadata_ttl_hours" yaml:"metadata_ttl_hours"`
	ReportTTLHours   int  `json:"report_ttl_hours" yaml:"report_ttl_hours"`
	CatalogEntries   int  `json:"catalog_entries" yaml:"catalog_entries"` // in-memory property catalogs
}

// ReportConfig holds report fetching defaults
type ReportConfig struct {
	RowLimit         int   `json:"row_limit" yaml:"row_limit"`
	PartialThreshold int64 `json:"partial_threshold" yaml:"partial_threshold"`
}

// Account is a GA4 account or a Universal Analytics account
type Account struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	DisplayName   string        `json:"display_name" yaml:"display_name"`
	RegionCode    string        `json:"region_code,omitempty" yaml:"region_code,omitempty"`
	CreateTime    time.Time     `json:"create_time,omitempty" yaml:"create_time,omitempty"`
	Properties    []Property    `json:"properties,omitempty" yaml:"properties,omitempty"`
	WebProperties []WebProperty `json:"web_properties,omitempty" yaml:"web_properties,omitempty"`
}

// Property represents a GA4 property
type Property struct {
	ID               string    `json:"id" yaml:"id"`     // e.g., "263883430"
	Name             string    `json:"name" yaml:"name"` // e.g., "properties/263883430"
	DisplayName      string    `json:"display_name" yaml:"display_name"`
	AccountID        string    `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	PropertyType     string    `json:"property_type,omitempty" yaml:"property_type,omitempty"`
	IndustryCategory string    `json:"industry_category,omitempty" yaml:"industry_category,omitempty"`
	TimeZone         string    `json:"time_zone,omitempty" yaml:"time_zone,omitempty"`         // e.g., "Asia/Tokyo"
	CurrencyCode     string    `json:"currency_code,omitempty" yaml:"currency_code,omitempty"` // e.g., "JPY"
	ServiceLevel     string    `json:"service_level,omitempty" yaml:"service_level,omitempty"`
	CreateTime       time.Time `json:"create_time,omitempty" yaml:"create_time,omitempty"`
}

// WebProperty is a Universal Analytics property (UA-XXXX-Y)
type WebProperty struct {
	ID               string `json:"id" yaml:"id"`
	AccountID        string `json:"account_id" yaml:"account_id"`
	Name             string `json:"name" yaml:"name"`
	WebsiteURL       string `json:"website_url,omitempty" yaml:"website_url,omitempty"`
	InternalID       string `json:"internal_id,omitempty" yaml:"internal_id,omitempty"`
	Level            string `json:"level,omitempty" yaml:"level,omitempty"`
	DefaultProfileID string `json:"default_profile_id,omitempty" yaml:"default_profile_id,omitempty"`
	IndustryVertical string `json:"industry_vertical,omitempty" yaml:"industry_vertical,omitempty"`
	Created          string `json:"created,omitempty" yaml:"created,omitempty"`
	Views            []View `json:"views,omitempty" yaml:"views,omitempty"`
}

// View is a Universal Analytics reporting view (profile)
type View struct {
	ID                string `json:"id" yaml:"id"`
	AccountID         string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	WebPropertyID     string `json:"web_property_id,omitempty" yaml:"web_property_id,omitempty"`
	Name              string `json:"name" yaml:"name"`
	Currency          string `json:"currency,omitempty" yaml:"currency,omitempty"`
	TimeZone          string `json:"time_zone,omitempty" yaml:"time_zone,omitempty"`
	WebsiteURL        string `json:"website_url,omitempty" yaml:"website_url,omitempty"`
	Type              string `json:"type,omitempty" yaml:"type,omitempty"`
	ECommerceTracking bool   `json:"ecommerce_tracking,omitempty" yaml:"ecommerce_tracking,omitempty"`
	Created           string `json:"created,omitempty" yaml:"created,omitempty"`
}

// Goal is a Universal Analytics view goal
type Goal struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Value  float64 `json:"value"`
	Active bool    `json:"active"`
}

// Segment is a Universal Analytics segment usable in GA3 reports
type Segment struct {
	ID         string `json:"id"`
	SegmentID  string `json:"segment_id"` // "gaid::-1"
	Name       string `json:"name"`
	Type       string `json:"type"` // BUILT_IN or CUSTOM
	Definition string `json:"definition,omitempty"`
}

// DataRetention holds GA4 data retention settings
type DataRetention struct {
	EventDataRetention         string `json:"event_data_retention"`
	ResetUserDataOnNewActivity bool   `json:"reset_user_data_on_new_activity"`
}

// CacheStats holds cache performance metrics
type CacheStats struct {
	TotalHits    int        `json:"total_hits"`
	TotalMisses  int        `json:"total_misses"`
	HitRate      float64    `json:"hit_rate"`
	EntriesCount int        `json:"entries_count"`
	SavedResults int        `json:"saved_results"`
	LastCleanup  *time.Time `json:"last_cleanup"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SavedResult describes a report result stored in the local cache
type SavedResult struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	Source    string    `json:"source"` // property or view ID
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	RowCount  int       `json:"row_count"`
	Partial   bool      `json:"partial"`
	CreatedAt time.Time `json:"created_at"`
}
