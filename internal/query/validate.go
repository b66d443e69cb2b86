package query

import (
	"fmt"
	"strings"
	"time"

	"gareport/internal/report"
	"gareport/internal/report/ga4"
)

// Validate checks the template before any network call
func (t *QueryTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if len(t.Dimensions) == 0 && len(t.Metrics) == 0 {
		return fmt.Errorf("template %s: at least one dimension or metric is required", t.Name)
	}
	switch strings.ToLower(t.API) {
	case "", "ga3", "ga4":
	default:
		return fmt.Errorf("template %s: invalid api %q: must be ga3 or ga4", t.Name, t.API)
	}

	now := time.Now()
	for _, d := range []string{t.StartDate, t.EndDate} {
		if d == "" {
			continue
		}
		if _, err := report.ResolveDate(d, now); err != nil {
			return fmt.Errorf("template %s: %w", t.Name, err)
		}
	}
	if t.DimensionFilter != "" {
		if _, err := report.ParseDimensionFilter(t.DimensionFilter); err != nil {
			return fmt.Errorf("template %s: %w", t.Name, err)
		}
	}
	if t.Limit < 0 {
		return fmt.Errorf("template %s: limit must not be negative", t.Name)
	}
	return nil
}

// ValidateFields checks dimensions and metrics exist on a GA4 property
func (t *QueryTemplate) ValidateFields(catalog *ga4.Catalog) error {
	var unknown []string
	for _, name := range t.Dimensions {
		if _, ok := catalog.ResolveDimension(name); !ok {
			unknown = append(unknown, "dimension "+name)
		}
	}
	for _, name := range t.Metrics {
		if _, ok := catalog.ResolveMetric(name); !ok {
			unknown = append(unknown, "metric "+name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("not found in property %s: %s", catalog.PropertyID, strings.Join(unknown, ", "))
	}
	return nil
}

// FilterFields returns fields matching the custom flag and category
func FilterFields(fields []ga4.Field, customOnly bool, category string) []ga4.Field {
	filtered := make([]ga4.Field, 0, len(fields))
	for _, f := range fields {
		if customOnly && !f.Custom {
			continue
		}
		if category != "" && !strings.EqualFold(f.Category, category) {
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered
}
