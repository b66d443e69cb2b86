package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"gareport/internal/apierr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{
			name:     "invalid grant",
			err:      &oauth2.RetrieveError{ErrorCode: "invalid_grant"},
			sentinel: apierr.ErrTransient,
		},
		{
			name:     "invalid client",
			err:      &oauth2.RetrieveError{ErrorCode: "invalid_client"},
			sentinel: apierr.ErrConfiguration,
		},
		{
			name: "access not configured",
			err: &googleapi.Error{
				Code:   http.StatusForbidden,
				Errors: []googleapi.ErrorItem{{Reason: "accessNotConfigured"}},
			},
			sentinel: apierr.ErrAPIDisabled,
		},
		{
			name: "api never used",
			err: &googleapi.Error{
				Code:    http.StatusForbidden,
				Message: "Google Analytics Data API has not been used in project 123 before or it is disabled.",
			},
			sentinel: apierr.ErrAPIDisabled,
		},
		{
			name: "rate limit",
			err: &googleapi.Error{
				Code:   http.StatusForbidden,
				Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}},
			},
			sentinel: apierr.ErrTransient,
		},
		{
			name:     "too many requests",
			err:      &googleapi.Error{Code: http.StatusTooManyRequests},
			sentinel: apierr.ErrTransient,
		},
		{
			name:     "bad request",
			err:      &googleapi.Error{Code: http.StatusBadRequest, Message: "Field 'pagepath' is not a valid dimension."},
			sentinel: apierr.ErrBadRequest,
		},
		{
			name:     "unauthorized",
			err:      &googleapi.Error{Code: http.StatusUnauthorized},
			sentinel: apierr.ErrConfiguration,
		},
		{
			name:     "permission denied",
			err:      &googleapi.Error{Code: http.StatusForbidden, Message: "User does not have sufficient permissions"},
			sentinel: apierr.ErrConfiguration,
		},
		{
			name:     "unavailable",
			err:      &googleapi.Error{Code: http.StatusServiceUnavailable},
			sentinel: apierr.ErrTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(DataAPI, fmt.Errorf("call failed: %w", tt.err))
			assert.ErrorIs(t, got, tt.sentinel)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyPassThrough(t *testing.T) {
	assert.Nil(t, Classify(DataAPI, nil))

	plain := errors.New("connection reset")
	assert.Same(t, plain, Classify(DataAPI, plain))

	notFound := &googleapi.Error{Code: http.StatusNotFound}
	assert.Same(t, error(notFound), Classify(DataAPI, notFound))
}

func TestClassifyNamesDisabledAPI(t *testing.T) {
	err := Classify(ReportingAPI, &googleapi.Error{
		Code:   http.StatusForbidden,
		Errors: []googleapi.ErrorItem{{Reason: "accessNotConfigured"}},
	})

	var disabled *apierr.APIDisabledError
	assert.True(t, errors.As(err, &disabled))
	assert.Equal(t, ReportingAPI, disabled.API)
}

func TestClassifyBadRequestFragment(t *testing.T) {
	tests := []struct {
		message  string
		fragment string
	}{
		{"Field 'pagepath' is not a valid dimension.", "pagepath"},
		{`Did you mean "eventName"?`, "eventName"},
		{"Invalid request", ""},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			err := Classify(DataAPI, &googleapi.Error{Code: http.StatusBadRequest, Message: tt.message})
			var bre *apierr.BadRequestError
			assert.True(t, errors.As(err, &bre))
			assert.Equal(t, tt.fragment, bre.Fragment)
			assert.Equal(t, tt.message, bre.Message)
		})
	}
}

func TestInvalidGrantCarriesReauthHint(t *testing.T) {
	err := Classify(DataAPI, &oauth2.RetrieveError{
		Response: &http.Response{Status: "400 Bad Request"},
		Body:     []byte(`{"error":"invalid_grant"}`),
	})
	assert.Equal(t, ReauthHint, apierr.Hint(err))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&googleapi.Error{Code: http.StatusForbidden, Message: "Rate Limit Exceeded"}))
	assert.True(t, IsRateLimited(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.False(t, IsRateLimited(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, IsRateLimited(&googleapi.Error{Code: http.StatusBadRequest, Message: "rate limit exceeded"}))
	assert.False(t, IsRateLimited(errors.New("rate limit exceeded")))
}
