// Package fakeapitest starts a fake backend for tests.
package fakeapitest

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/countersign/internal/fakeapi"
	"github.com/aussiebroadwan/countersign/pkg/httpx"
	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

// Secret signs access tokens on test servers.
var Secret = []byte("fakeapitest-secret-0123456789abcdef")

// New starts a backend behind an httptest server that is closed when the
// test ends. Rate limits are lifted so tests can hammer the token endpoints.
func New(tb testing.TB, opts fakeapi.Options) (*fakeapi.Backend, *httptest.Server) {
	tb.Helper()

	if opts.Secret == nil {
		opts.Secret = Secret
	}

	backend, err := fakeapi.NewBackend(opts)
	if err != nil {
		tb.Fatalf("fakeapitest: %v", err)
	}

	router := fakeapi.NewRouter(backend, "test", slogx.Discard())
	router.TokenLimit = httpx.RateLimitConfig{RequestsPerWindow: 1 << 20, Window: time.Second, Burst: 1 << 20}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	tb.Cleanup(srv.Close)
	return backend, srv
}
