package esign

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// NoTokenError is returned when an authenticated call is made without a
// usable access token.
type NoTokenError struct {
	// Op names what needed the token, e.g. "GET /users/1/".
	Op string
}

// Error implements the error interface.
func (e *NoTokenError) Error() string {
	if e.Op == "" {
		return "esign: no access token"
	}
	return "esign: no access token for " + e.Op
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	// Code is the machine-readable code, if the backend sent one
	// (e.g. "token_not_valid").
	Code string
	// Detail is the human-readable message.
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("esign: HTTP %d %s: %s", e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("esign: HTTP %d: %s", e.StatusCode, e.Detail)
}

// RefreshError wraps a failed attempt to refresh the access token.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return "esign: refresh failed: " + e.Err.Error() }
func (e *RefreshError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is a 401 from the backend.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// parseErrorResponse turns an error body into an *APIError. It understands
// {"detail": ..., "code": ...} bodies and per-field validation bodies such as
// {"email": ["already registered"]}.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Detail string `json:"detail"`
		Code   string `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Detail != "" {
		apiErr.Code = envelope.Code
		apiErr.Detail = envelope.Detail
		return apiErr
	}

	var fields map[string][]string
	if err := json.Unmarshal(body, &fields); err == nil && len(fields) > 0 {
		apiErr.Code = "invalid"
		apiErr.Detail = flattenFieldErrors(fields)
		return apiErr
	}

	apiErr.Detail = http.StatusText(resp.StatusCode)
	return apiErr
}

func flattenFieldErrors(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(fields[k], " "))
	}
	return strings.Join(parts, "; ")
}
