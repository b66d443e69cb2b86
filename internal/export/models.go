package export

import (
	"fmt"
	"regexp"
	"time"
)

// Mode selects what happens to an existing table
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeAppend  Mode = "append"
)

// DefaultBatchSize is the number of rows inserted per transaction
const DefaultBatchSize = 1000

var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseMode accepts "replace", "append" or empty (replace)
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be replace or append", s)
	}
}

// PropertyInventory is one GA4 property with its custom definitions, as
// collected by `properties export`
type PropertyInventory struct {
	PropertyID       string
	PropertyName     string
	AccountID        string
	AccountName      string
	Currency         string
	Timezone         string
	ServiceLevel     string
	CreatedDate      time.Time
	CustomDimensions []CustomDefinitionInfo
	CustomMetrics    []CustomDefinitionInfo
}

// CustomDefinitionInfo represents a single custom dimension or metric
type CustomDefinitionInfo struct {
	APIName     string
	UIName      string
	Description string
	Scope       string
	Unit        string
}

// ExportResult contains summary information about an export operation
type ExportResult struct {
	Table     string    `json:"table"`
	Rows      int       `json:"rows"`
	Batches   int       `json:"batches"`
	Timestamp time.Time `json:"timestamp"`
}
