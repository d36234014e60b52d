package fakeapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/countersign/pkg/httpx"
	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

// Router serves the backend's REST contracts.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	backend      *Backend
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	// TokenLimit throttles the credential endpoints per client IP.
	TokenLimit httpx.RateLimitConfig
}

func NewRouter(backend *Backend, buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		backend:      backend,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		TokenLimit:   httpx.TokenLimit,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerContracts()
	r.registerSigners()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Backend: r.backend}
	limit := httpx.RateLimitByIP(r.TokenLimit)

	r.Mux.Handle("POST /auth/token/{$}", httpx.Chain(http.HandlerFunc(h.HandleObtain), limit))
	r.Mux.Handle("POST /auth/token/refresh/{$}", httpx.Chain(http.HandlerFunc(h.HandleRefresh), limit))
	r.Mux.Handle("POST /auth/register/{$}", httpx.Chain(http.HandlerFunc(h.HandleRegister), limit))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Backend: r.backend}
	authn := httpx.AuthnMiddleware(r.backend.Verifier())

	r.Mux.Handle("GET /users/{id}/{$}", httpx.Chain(http.HandlerFunc(h.HandleGet), authn))
}

func (r *Router) registerContracts() {
	h := &InputsHandler{Backend: r.backend}
	authn := httpx.AuthnMiddleware(r.backend.Verifier())

	r.Mux.Handle("GET /contracts/{id}/inputs/{$}", httpx.Chain(http.HandlerFunc(h.HandleContractList), authn))
	r.Mux.Handle("POST /contracts/{id}/inputs/{$}", httpx.Chain(http.HandlerFunc(h.HandleContractSave), authn))
}

// Signer routes are scoped by the token in the path and carry no credential.
func (r *Router) registerSigners() {
	h := &InputsHandler{Backend: r.backend}

	r.Mux.HandleFunc("GET /signers/{token}/{$}", h.HandleSigner)
	r.Mux.HandleFunc("GET /signers/{token}/inputs/{$}", h.HandleSignerList)
	r.Mux.HandleFunc("POST /signers/{token}/inputs/{$}", h.HandleSignerSave)
	r.Mux.HandleFunc("POST /signers/{token}/submit/{$}", h.HandleSubmit)
}

func (r *Router) registerSystem() {
	r.Mux.HandleFunc("GET /livez", LivezHandler(r.startTime, r.buildVersion))
}
