package esign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/countersign/pkg/jwtx"
	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

// ErrNoTokens is returned by a TokenStore that holds no pair.
var ErrNoTokens = errors.New("esign: no stored tokens")

// TokenStore is durable storage for exactly one TokenPair.
type TokenStore interface {
	// Load returns the stored pair, or ErrNoTokens.
	Load(ctx context.Context) (TokenPair, error)
	Save(ctx context.Context, pair TokenPair) error
	Clear(ctx context.Context) error
}

// AuthObserver is told about token lifecycle events so a session state
// machine can follow them. Callbacks run synchronously on the caller's
// goroutine and must not call back into the Session's refresh path.
type AuthObserver interface {
	RefreshStarted(ctx context.Context)
	Refreshed(ctx context.Context)
	// AuthFailed is called when a refresh fails or the backend rejects the
	// access token. err is a *RefreshError for refresh failures.
	AuthFailed(ctx context.Context, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) RefreshStarted(context.Context)   {}
func (NopObserver) Refreshed(context.Context)        {}
func (NopObserver) AuthFailed(context.Context, error) {}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithRefreshLeeway treats access tokens as expired leeway before their exp.
func WithRefreshLeeway(leeway time.Duration) SessionOption {
	return func(s *Session) { s.leeway = leeway }
}

// Session represents an authenticated session with automatic token refresh.
// All Session methods automatically handle token expiration and refresh when needed.
//
// A Session is safe for concurrent use. Callers that find the same expired
// access token are serialised so only one of them refreshes it.
type Session struct {
	client   *SDKClient
	store    TokenStore
	observer AuthObserver
	now      func() time.Time
	leeway   time.Duration

	mu   sync.RWMutex
	pair *TokenPair

	refreshMu sync.Mutex
}

// GetToken returns the current access token, or "" when no pair is held.
// An expired access token is refreshed once before returning; the result
// may still be "" if the refresh failed and storage was purged.
func (s *Session) GetToken(ctx context.Context) (string, error) {
	access := s.accessToken()
	if access == "" {
		return "", nil
	}

	expired, err := s.expired(access)
	if err != nil {
		return "", err
	}
	if !expired {
		return access, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Double-check after acquiring the lock (another goroutine may have refreshed)
	if current := s.accessToken(); current != access {
		if current == "" {
			return "", nil
		}
		if exp, err := s.expired(current); err == nil && !exp {
			return current, nil
		}
	}

	s.refresh(ctx)

	if err := s.UpdateToken(ctx); err != nil {
		return "", err
	}
	return s.accessToken(), nil
}

// RequireToken is GetToken for callers that cannot proceed without a token.
// It returns a *NoTokenError exactly when GetToken would return "".
func (s *Session) RequireToken(ctx context.Context) (string, error) {
	token, err := s.GetToken(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", &NoTokenError{}
	}
	return token, nil
}

// RefreshTokenRequest exchanges the stored refresh token for a new access
// token. Failures are reported to the AuthObserver, never returned, and
// storage is left for the observer to purge.
func (s *Session) RefreshTokenRequest(ctx context.Context) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.refresh(ctx)
}

// refresh must be called with refreshMu held.
func (s *Session) refresh(ctx context.Context) {
	log := slogx.FromContext(ctx)
	s.observer.RefreshStarted(ctx)

	pair, err := s.store.Load(ctx)
	if err == nil && pair.Refresh == "" {
		err = ErrNoTokens
	}
	if err != nil {
		log.Info("no refresh token available", "err", err)
		s.observer.AuthFailed(ctx, &RefreshError{Err: err})
		return
	}

	resp, err := s.client.RefreshAccess(ctx, pair.Refresh)
	if err != nil {
		log.Warn("token refresh failed", "err", err)
		s.observer.AuthFailed(ctx, &RefreshError{Err: err})
		return
	}

	pair.Access = resp.Access
	if resp.Refresh != "" {
		pair.Refresh = resp.Refresh
	}
	if err := s.store.Save(ctx, pair); err != nil {
		log.Error("failed to persist refreshed token", "err", err)
		s.observer.AuthFailed(ctx, &RefreshError{Err: err})
		return
	}

	if err := s.UpdateToken(ctx); err != nil {
		log.Error("failed to reload tokens", "err", err)
	}
	s.observer.Refreshed(ctx)
}

// UpdateToken re-reads the pair from durable storage into memory.
// An empty store clears the in-memory pair.
func (s *Session) UpdateToken(ctx context.Context) error {
	pair, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoTokens):
		s.setPair(nil)
		return nil
	case err != nil:
		return fmt.Errorf("failed to load tokens: %w", err)
	}

	s.setPair(&pair)
	return nil
}

// SetTokens persists pair and makes it current.
func (s *Session) SetTokens(ctx context.Context, pair TokenPair) error {
	if err := s.store.Save(ctx, pair); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	s.setPair(&pair)
	return nil
}

// ClearTokens removes the pair from storage and memory.
func (s *Session) ClearTokens(ctx context.Context) error {
	s.setPair(nil)
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// HasTokens reports whether a pair is held in memory.
func (s *Session) HasTokens() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair != nil
}

// Claims decodes the current access token without verifying it.
func (s *Session) Claims() (jwtx.Claims, error) {
	access := s.accessToken()
	if access == "" {
		return jwtx.Claims{}, &NoTokenError{}
	}
	return jwtx.Decode(access)
}

func (s *Session) accessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pair == nil {
		return ""
	}
	return s.pair.Access
}

func (s *Session) setPair(pair *TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
}

func (s *Session) expired(access string) (bool, error) {
	claims, err := jwtx.Decode(access)
	if err != nil {
		return false, fmt.Errorf("failed to decode access token: %w", err)
	}
	return claims.ExpiresWithin(s.now(), s.leeway), nil
}
