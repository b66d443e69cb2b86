package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"configuration", Configuration("missing file", nil), ErrConfiguration},
		{"disabled", &APIDisabledError{API: "Google Analytics Data API"}, ErrAPIDisabled},
		{"bad request", BadRequest("pagePath", "no operator"), ErrBadRequest},
		{"partial", &PartialDataError{TotalRows: 10001}, ErrPartialData},
		{"transient", &TransientError{Hint: "log in again"}, ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("failed to run report: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.False(t, errors.Is(wrapped, errors.New("other")))
		})
	}
}

func TestBadRequestCarriesFragment(t *testing.T) {
	err := BadRequest("country=>JP", "invalid condition")
	assert.Contains(t, err.Error(), `"country=>JP"`)

	var bre *BadRequestError
	assert.True(t, errors.As(err, &bre))
	assert.Equal(t, "country=>JP", bre.Fragment)
}

func TestAPIDisabledNamesAPI(t *testing.T) {
	err := &APIDisabledError{API: "Google Analytics Reporting API"}
	assert.Contains(t, err.Error(), "Google Analytics Reporting API")
}

func TestHint(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &TransientError{Hint: "run auth reset", Err: errors.New("invalid_grant")})
	assert.Equal(t, "run auth reset", Hint(err))
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.Empty(t, Hint(errors.New("plain")))
}
