package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/countersign/pkg/idx"
)

// RequestIDHeader carries the correlation id between client and backend.
const RequestIDHeader = "X-Request-ID"

// Transport is an http.RoundTripper that stamps every outbound request with a
// request id and logs its outcome. It never logs headers, so bearer tokens
// stay out of the logs.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	logger := t.Logger
	if logger == nil {
		logger = FromContext(req.Context())
	}

	reqID := req.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = idx.New().String()
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, reqID)
	}

	logger = logger.With(
		"req_id", reqID,
		"method", req.Method,
		"path", req.URL.Path,
	)

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_client_error", "error", err, "duration_ms", duration)
		return nil, err
	}

	logger.Log(req.Context(), levelForStatus(resp.StatusCode), "http_client_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
