package esign

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

// DefaultTimeout bounds every request made by a client built with NewSDKClient.
const DefaultTimeout = 10 * time.Second

// SDKClient is a client for the signing backend.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new backend client. Requests are logged through
// slogx.Transport using the logger carried by each request's context.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: slogx.NewTransport(nil, nil),
		},
	}
}

// NewSession creates an authenticated session whose tokens live in store.
// observer may be nil. The in-memory pair starts empty; call UpdateToken to
// load whatever store already holds.
func (c *SDKClient) NewSession(store TokenStore, observer AuthObserver, opts ...SessionOption) *Session {
	if observer == nil {
		observer = NopObserver{}
	}

	s := &Session{
		client:   c,
		store:    store,
		observer: observer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
