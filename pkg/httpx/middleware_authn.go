package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/countersign/pkg/jwtx"
	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

// Verifier validates a bearer token and returns its claims.
type Verifier interface {
	Verify(token string) (jwtx.Claims, error)
}

// AuthnMiddleware requires a valid "Authorization: Bearer" access token.
// Failures answer 401 with the backend's detail envelope so clients can
// tell an expired credential apart from other errors.
func AuthnMiddleware(v Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "Authentication credentials were not provided.")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				log.Warn("jwt verify failed", "err", err)
				writeBearerError(w, "Given token not valid for any token type")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

// RFC 6750-compliant challenge plus a JSON body.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteDetail(w, http.StatusUnauthorized, "token_not_valid", desc)
}
