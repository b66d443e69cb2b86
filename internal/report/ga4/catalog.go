package ga4

import (
	"sort"
	"strings"

	"gareport/internal/api"
)

// Field is one dimension or metric available on a property
type Field struct {
	APIName       string `json:"api_name"`
	UIName        string `json:"display_name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Custom        bool   `json:"customized"`
	Type          string `json:"type,omitempty"`
	Expression    string `json:"expression,omitempty"`
	ParameterName string `json:"parameter_name,omitempty"`
	Scope         string `json:"scope,omitempty"`
	Unit          string `json:"unit,omitempty"`

	deprecated []string
}

// Catalog resolves caller-facing field names for one property
type Catalog struct {
	PropertyID string
	Dimensions []Field
	Metrics    []Field
}

// NewCatalog merges property metadata with the admin-side custom definitions,
// which carry the descriptions, parameter names and scopes
func NewCatalog(propertyID string, md *api.MetadataResponse, dims []api.CustomDimension, mets []api.CustomMetric) *Catalog {
	c := &Catalog{PropertyID: propertyID}
	if md == nil {
		return c
	}

	for _, d := range md.Dimensions {
		f := Field{
			APIName:     d.APIName,
			UIName:      d.UIName,
			Description: d.Description,
			Category:    d.Category,
			Custom:      d.CustomDefinition,
			deprecated:  d.DeprecatedAPINames,
		}
		if f.Custom {
			for _, cd := range dims {
				if f.UIName == cd.DisplayName || f.UIName == cd.ParameterName {
					f.Description = cd.Description
					f.ParameterName = cd.ParameterName
					f.Scope = cd.Scope
				}
			}
		}
		c.Dimensions = append(c.Dimensions, f)
	}

	for _, m := range md.Metrics {
		f := Field{
			APIName:     m.APIName,
			UIName:      m.UIName,
			Description: m.Description,
			Category:    m.Category,
			Custom:      m.CustomDefinition,
			Type:        m.Type,
			Expression:  m.Expression,
			deprecated:  m.DeprecatedAPINames,
		}
		if f.Custom {
			for _, cm := range mets {
				if f.UIName == cm.DisplayName {
					f.Description = cm.Description
					f.ParameterName = cm.ParameterName
					f.Scope = cm.Scope
					f.Unit = cm.MeasurementUnit
				}
			}
		}
		c.Metrics = append(c.Metrics, f)
	}
	return c
}

// ResolveDimension returns the API name for a dimension API or display name
func (c *Catalog) ResolveDimension(name string) (string, bool) {
	return resolve(c.Dimensions, name)
}

// ResolveMetric returns the API name for a metric API or display name
func (c *Catalog) ResolveMetric(name string) (string, bool) {
	return resolve(c.Metrics, name)
}

// Metric returns the metric definition for an API name
func (c *Catalog) Metric(apiName string) (Field, bool) {
	for _, f := range c.Metrics {
		if f.APIName == apiName {
			return f, true
		}
	}
	return Field{}, false
}

// SortedDimensions lists dimensions by category then display name
func (c *Catalog) SortedDimensions() []Field {
	return sorted(c.Dimensions)
}

// SortedMetrics lists metrics by category then display name
func (c *Catalog) SortedMetrics() []Field {
	return sorted(c.Metrics)
}

// CustomDimensions lists the custom dimensions only
func (c *Catalog) CustomDimensions() []Field {
	return custom(c.Dimensions)
}

// CustomMetrics lists the custom metrics only
func (c *Catalog) CustomMetrics() []Field {
	return custom(c.Metrics)
}

func resolve(fields []Field, name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, f := range fields {
		if f.APIName == name || f.UIName == name {
			return f.APIName, true
		}
	}
	for _, f := range fields {
		for _, old := range f.deprecated {
			if old == name {
				return f.APIName, true
			}
		}
	}
	return "", false
}

func sorted(fields []Field) []Field {
	out := append([]Field(nil), fields...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].UIName < out[j].UIName
	})
	return out
}

func custom(fields []Field) []Field {
	var out []Field
	for _, f := range fields {
		if f.Custom {
			out = append(out, f)
		}
	}
	return out
}
