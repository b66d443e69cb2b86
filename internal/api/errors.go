package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"gareport/internal/apierr"
)

// API names used in error messages
const (
	DataAPI       = "Google Analytics Data API"
	AdminAPI      = "Google Analytics Admin API"
	ReportingAPI  = "Google Analytics Reporting API"
	ManagementAPI = "Google Analytics API"
	SheetsAPI     = "Google Sheets API"
	BigQueryAPI   = "BigQuery API"
)

var quotedFragment = regexp.MustCompile(`'([^']+)'|"([^"]+)"`)

// Classify converts a Google API or OAuth error into the apierr taxonomy
// Errors it does not recognise are returned unchanged
func Classify(api string, err error) error {
	if err == nil {
		return nil
	}

	if IsInvalidGrant(err) {
		return &apierr.TransientError{Hint: ReauthHint, Err: err}
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_client" {
		return apierr.Configuration("OAuth client was rejected", err)
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	switch {
	case isServiceDisabled(gerr):
		return &apierr.APIDisabledError{API: api, Err: err}
	case IsRateLimited(err):
		return &apierr.TransientError{Hint: "quota exhausted; wait a moment and retry", Err: err}
	case gerr.Code == http.StatusBadRequest:
		return &apierr.BadRequestError{Fragment: fragmentOf(gerr.Message), Message: gerr.Message, Err: err}
	case gerr.Code == http.StatusUnauthorized:
		return apierr.Configuration("credentials were rejected", err)
	case gerr.Code == http.StatusForbidden:
		return apierr.Configuration("permission denied; check the account has access and the credentials carry the right scopes", err)
	case gerr.Code == http.StatusServiceUnavailable:
		return &apierr.TransientError{Hint: "the service is unavailable; try again later", Err: err}
	default:
		return err
	}
}

// IsRateLimited reports whether err is a rate limit response worth retrying
func IsRateLimited(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return strings.Contains(strings.ToLower(gerr.Message), "rate limit exceeded")
}

func isServiceDisabled(gerr *googleapi.Error) bool {
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		if item.Reason == "accessNotConfigured" {
			return true
		}
	}
	msg := strings.ToLower(gerr.Message)
	if strings.Contains(msg, "has not been used in project") || strings.Contains(msg, "is disabled") {
		return true
	}
	return strings.Contains(fmt.Sprint(gerr.Details), "SERVICE_DISABLED")
}

func fragmentOf(message string) string {
	m := quotedFragment.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}
