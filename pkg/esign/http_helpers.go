package esign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// requestFunc performs a request against the backend. The SDKClient and the
// Session each provide one, so endpoints can be shared between the
// unauthenticated and authenticated surfaces.
type requestFunc func(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error)

// doRequest performs an HTTP request with the SDKClient's HTTP client.
// This is for unauthenticated requests (no Authorization header).
func (c *SDKClient) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

// doAuthRequest performs an authenticated HTTP request using the session's
// access token, refreshing it first when it has expired. A 401 answer is
// reported to the session's AuthObserver before being returned.
func (s *Session) doAuthRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	token, err := s.RequireToken(ctx)
	if err != nil {
		var noTok *NoTokenError
		if errors.As(err, &noTok) {
			return nil, &NoTokenError{Op: method + " " + path}
		}
		return nil, err
	}

	withAuth := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		withAuth[k] = v
	}
	withAuth["Authorization"] = "Bearer " + token

	resp, err := s.client.doRequest(ctx, method, path, body, withAuth)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		apiErr := parseErrorResponse(resp, bodyBytes)
		s.observer.AuthFailed(ctx, apiErr)
		return nil, apiErr
	}

	return resp, nil
}

// jsonBody encodes v for a request body.
func jsonBody(v any) (io.Reader, map[string]string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return bytes.NewReader(b), map[string]string{"Content-Type": "application/json"}, nil
}

// decodeJSON decodes a JSON response into the target interface.
// Returns an *APIError if the response status is not expectedStatus.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	// Read body once for both error parsing and success decoding
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		if err := parseErrorResponse(resp, bodyBytes); err != nil {
			return err
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
	}

	if target == nil || len(bodyBytes) == 0 {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// checkStatus discards the body and returns a typed error unless the response
// status is one of ok.
func checkStatus(resp *http.Response, ok ...int) error {
	defer resp.Body.Close()

	for _, code := range ok {
		if resp.StatusCode == code {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	if err := parseErrorResponse(resp, bodyBytes); err != nil {
		return err
	}
	return &APIError{StatusCode: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
}
