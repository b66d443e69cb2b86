package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		input string
		want  []OrderBy
	}{
		{"", nil},
		{"date", []OrderBy{{Field: "date"}}},
		{"-sessions", []OrderBy{{Field: "sessions", Descending: true}}},
		{"sessions-", []OrderBy{{Field: "sessions", Descending: true}}},
		{"date, -pageviews", []OrderBy{{Field: "date"}, {Field: "pageviews", Descending: true}}},
		// More than one hyphen is not a direction marker
		{"ga:dimension-1-x", []OrderBy{{Field: "ga:dimension-1-x"}}},
		{"-", []OrderBy{{Field: "-"}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrderBy(tt.input))
		})
	}
}

func TestFormatOrderBy(t *testing.T) {
	orders := []OrderBy{{Field: "date"}, {Field: "sessions", Descending: true}}
	assert.Equal(t, "date,-sessions", FormatOrderBy(orders))
	assert.Equal(t, orders, ParseOrderBy(FormatOrderBy(orders)))
}
