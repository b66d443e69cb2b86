// Package apierr defines the error categories surfaced by report fetching
// Each typed error matches its sentinel with errors.Is
package apierr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration covers missing or invalid credentials and insufficient scopes
	ErrConfiguration = errors.New("configuration error")

	// ErrAPIDisabled means the API is not enabled for the Cloud project
	ErrAPIDisabled = errors.New("api disabled")

	// ErrBadRequest covers malformed filters, sort strings and unknown field names
	ErrBadRequest = errors.New("bad request")

	// ErrPartialData means the provider stopped returning rows before the reported total
	ErrPartialData = errors.New("partial data returned")

	// ErrTransient covers provider unavailability and expired grants
	ErrTransient = errors.New("transient provider error")
)

// ConfigurationError is fatal and never retried
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Configuration builds a ConfigurationError
func Configuration(reason string, err error) error {
	return &ConfigurationError{Reason: reason, Err: err}
}

// APIDisabledError names the API the user has to enable
type APIDisabledError struct {
	API string
	Err error
}

func (e *APIDisabledError) Error() string {
	return fmt.Sprintf("%s is not enabled for this Google Cloud project; enable it in the API console and retry", e.API)
}

func (e *APIDisabledError) Unwrap() error { return e.Err }

func (e *APIDisabledError) Is(target error) bool { return target == ErrAPIDisabled }

// BadRequestError carries the offending fragment of the query or request
type BadRequestError struct {
	Fragment string
	Message  string
	Err      error
}

func (e *BadRequestError) Error() string {
	if e.Fragment == "" {
		return "bad request: " + e.Message
	}
	return fmt.Sprintf("bad request: %s: %q", e.Message, e.Fragment)
}

func (e *BadRequestError) Unwrap() error { return e.Err }

func (e *BadRequestError) Is(target error) bool { return target == ErrBadRequest }

// BadRequest builds a BadRequestError
func BadRequest(fragment, message string) error {
	return &BadRequestError{Fragment: fragment, Message: message}
}

// PartialDataError is raised when an empty page still carries a continuation token
type PartialDataError struct {
	TotalRows int64
	Fetched   int
	Token     string
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("partial data returned: got %d of %d rows, empty page at token %q", e.Fetched, e.TotalRows, e.Token)
}

func (e *PartialDataError) Is(target error) bool { return target == ErrPartialData }

// TransientError is surfaced with a hint and left to the caller to retry
type TransientError struct {
	Hint string
	Err  error
}

func (e *TransientError) Error() string {
	msg := "provider temporarily unavailable"
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Hint returns the remediation hint attached to err, if any
func Hint(err error) string {
	var te *TransientError
	if errors.As(err, &te) {
		return te.Hint
	}
	return ""
}
