// Package fakeapi is an in-memory rendition of the signing backend's REST
// contracts, for tests and local development. It is not a production server.
package fakeapi

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/countersign/pkg/cryptox"
	"github.com/aussiebroadwan/countersign/pkg/esign"
	"github.com/aussiebroadwan/countersign/pkg/jwtx"
)

var (
	ErrNotFound       = errors.New("fakeapi: not found")
	ErrAlreadyExists  = errors.New("fakeapi: already exists")
	ErrBadCredentials = errors.New("fakeapi: bad credentials")
	ErrUnknownInput   = errors.New("fakeapi: unknown input")
	ErrSubmitted      = errors.New("fakeapi: already submitted")
	ErrIncomplete     = errors.New("fakeapi: required inputs incomplete")
	ErrUnavailable    = errors.New("fakeapi: temporarily unavailable")
)

// Options configures a Backend.
type Options struct {
	// Secret signs access tokens. Must be at least 16 bytes.
	Secret []byte
	// AccessTTL defaults to jwtx.DefaultAccessTokenTTL.
	AccessTTL time.Duration
	// RefreshTTL defaults to jwtx.DefaultRefreshTokenTTL.
	RefreshTTL time.Duration
	// RotateRefresh issues a new refresh token on every refresh.
	RotateRefresh bool
	// Now defaults to time.Now.
	Now func() time.Time
}

type userRecord struct {
	esign.User
	passwordHash string
}

type refreshRecord struct {
	userID    int64
	expiresAt time.Time
}

type contractRecord struct {
	ownerID int64
	inputs  []esign.Input
}

type signerRecord struct {
	session    esign.SignerSession
	contractID int64
	submitted  bool
}

// Backend holds all state. It is safe for concurrent use.
type Backend struct {
	signer        *jwtx.HS256
	accessTTL     time.Duration
	refreshTTL    time.Duration
	rotateRefresh bool
	now           func() time.Time

	mu        sync.Mutex
	nextID    int64
	users     map[int64]*userRecord
	byEmail   map[string]int64
	refresh   map[string]refreshRecord // keyed by token fingerprint
	contracts map[int64]*contractRecord
	signers   map[string]*signerRecord // keyed by signer token
	failSaves int
	saves     int
	refreshes int
}

// NewBackend returns an empty backend.
func NewBackend(opts Options) (*Backend, error) {
	signer, err := jwtx.NewHS256(opts.Secret)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		signer:        signer,
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
		rotateRefresh: opts.RotateRefresh,
		now:           opts.Now,
		users:         make(map[int64]*userRecord),
		byEmail:       make(map[string]int64),
		refresh:       make(map[string]refreshRecord),
		contracts:     make(map[int64]*contractRecord),
		signers:       make(map[string]*signerRecord),
	}
	if b.accessTTL == 0 {
		b.accessTTL = jwtx.DefaultAccessTokenTTL
	}
	if b.refreshTTL == 0 {
		b.refreshTTL = jwtx.DefaultRefreshTokenTTL
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

// Verifier returns the access-token verifier for the authn middleware.
func (b *Backend) Verifier() *jwtx.HS256 { return b.signer }

func (b *Backend) id() int64 {
	b.nextID++
	return b.nextID
}

// ============================================================================
// Accounts and tokens
// ============================================================================

// Register creates an account.
func (b *Backend) Register(req esign.RegisterRequest) (esign.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := cryptox.HashPassword(req.Password)
	if err != nil {
		return esign.User{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byEmail[email]; ok {
		return esign.User{}, ErrAlreadyExists
	}

	u := &userRecord{
		User: esign.User{
			ID:             b.id(),
			Email:          email,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			OrganizationID: 1,
		},
		passwordHash: hash,
	}
	b.users[u.ID] = u
	b.byEmail[email] = u.ID
	return u.User, nil
}

// Login checks credentials and issues a pair.
func (b *Backend) Login(email, password string) (esign.TokenPair, error) {
	b.mu.Lock()
	u, ok := b.users[b.byEmail[strings.ToLower(strings.TrimSpace(email))]]
	b.mu.Unlock()

	if !ok {
		return esign.TokenPair{}, ErrBadCredentials
	}
	if err := cryptox.VerifyPassword(password, u.passwordHash); err != nil {
		return esign.TokenPair{}, ErrBadCredentials
	}

	return b.IssueTokens(u.ID)
}

// IssueTokens mints a pair for userID without checking credentials.
func (b *Backend) IssueTokens(userID int64) (esign.TokenPair, error) {
	b.mu.Lock()
	u, ok := b.users[userID]
	b.mu.Unlock()
	if !ok {
		return esign.TokenPair{}, ErrNotFound
	}

	access, err := b.signer.Sign(jwtx.NewAccessClaims(u.ID, u.OrganizationID, b.accessTTL, b.now()))
	if err != nil {
		return esign.TokenPair{}, err
	}

	refresh, err := b.newRefresh(u.ID)
	if err != nil {
		return esign.TokenPair{}, err
	}
	return esign.TokenPair{Access: access, Refresh: refresh}, nil
}

func (b *Backend) newRefresh(userID int64) (string, error) {
	tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh[cryptox.FingerprintToken(tok)] = refreshRecord{
		userID:    userID,
		expiresAt: b.now().Add(b.refreshTTL),
	}
	return tok, nil
}

// Refresh exchanges a refresh token for a new access token.
func (b *Backend) Refresh(token string) (esign.RefreshResponse, error) {
	key := cryptox.FingerprintToken(token)

	b.mu.Lock()
	b.refreshes++
	rec, ok := b.refresh[key]
	if ok && !b.now().Before(rec.expiresAt) {
		delete(b.refresh, key)
		ok = false
	}
	if ok && b.rotateRefresh {
		delete(b.refresh, key)
	}
	var u *userRecord
	if ok {
		u = b.users[rec.userID]
	}
	b.mu.Unlock()

	if u == nil {
		return esign.RefreshResponse{}, ErrBadCredentials
	}

	access, err := b.signer.Sign(jwtx.NewAccessClaims(u.ID, u.OrganizationID, b.accessTTL, b.now()))
	if err != nil {
		return esign.RefreshResponse{}, err
	}

	out := esign.RefreshResponse{Access: access}
	if b.rotateRefresh {
		if out.Refresh, err = b.newRefresh(u.ID); err != nil {
			return esign.RefreshResponse{}, err
		}
	}
	return out, nil
}

// RevokeRefreshTokens invalidates every refresh token.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.refresh)
}

// DeleteExpiredRefreshTokens drops refresh tokens past their expiry and
// returns how many were removed.
func (b *Backend) DeleteExpiredRefreshTokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	n := 0
	for k, rec := range b.refresh {
		if !now.Before(rec.expiresAt) {
			delete(b.refresh, k)
			n++
		}
	}
	return n
}

// RefreshCount reports how many refresh requests were served.
func (b *Backend) RefreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

// User returns an account by id.
func (b *Backend) User(id int64) (esign.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[id]
	if !ok {
		return esign.User{}, ErrNotFound
	}
	return u.User, nil
}

// ============================================================================
// Contracts, inputs and signers
// ============================================================================

// AddContract stores a contract owned by ownerID. Input ids are assigned by
// the backend; the assigned inputs are returned.
func (b *Backend) AddContract(ownerID int64, inputs []esign.Input) (int64, []esign.Input) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := &contractRecord{ownerID: ownerID, inputs: make([]esign.Input, len(inputs))}
	for i, in := range inputs {
		in.ID = b.id()
		c.inputs[i] = in
	}

	id := b.id()
	b.contracts[id] = c
	return id, append([]esign.Input(nil), c.inputs...)
}

// AddSigner issues a signer token for contractID.
func (b *Backend) AddSigner(contractID int64, role string) (string, error) {
	tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.contracts[contractID]
	if !ok {
		return "", ErrNotFound
	}

	signerID := b.id()
	b.signers[tok] = &signerRecord{
		contractID: contractID,
		session: esign.SignerSession{
			SignerID:       signerID,
			AgreementID:    contractID,
			SignerRole:     role,
			FieldsCount:    len(c.inputs),
			OrganizationID: b.users[c.ownerID].organizationID(),
		},
	}
	return tok, nil
}

func (u *userRecord) organizationID() int64 {
	if u == nil {
		return 0
	}
	return u.OrganizationID
}

// Signer resolves a signer token.
func (b *Backend) Signer(token string) (esign.SignerSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.signers[token]
	if !ok {
		return esign.SignerSession{}, ErrNotFound
	}
	return s.session, nil
}

// ContractInputs returns the inputs of a contract owned by userID.
func (b *Backend) ContractInputs(userID, contractID int64) ([]esign.Input, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.contracts[contractID]
	if !ok || c.ownerID != userID {
		return nil, ErrNotFound
	}
	return append([]esign.Input(nil), c.inputs...), nil
}

// SignerInputs returns the inputs behind a signer token.
func (b *Backend) SignerInputs(token string) ([]esign.Input, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.signers[token]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]esign.Input(nil), b.contracts[s.contractID].inputs...), nil
}

// SaveContractInputs applies updates to a contract owned by userID.
func (b *Backend) SaveContractInputs(userID, contractID int64, updates []esign.InputUpdate) (esign.IDMapping, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.contracts[contractID]
	if !ok || c.ownerID != userID {
		return nil, ErrNotFound
	}
	return b.applyLocked(c, updates)
}

// SaveSignerInputs applies updates through a signer token.
func (b *Backend) SaveSignerInputs(token string, updates []esign.InputUpdate) (esign.IDMapping, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.signers[token]
	if !ok {
		return nil, ErrNotFound
	}
	if s.submitted {
		return nil, ErrSubmitted
	}
	return b.applyLocked(b.contracts[s.contractID], updates)
}

// applyLocked validates every update before applying any, so a bad batch
// leaves the contract untouched.
func (b *Backend) applyLocked(c *contractRecord, updates []esign.InputUpdate) (esign.IDMapping, error) {
	b.saves++
	if b.failSaves > 0 {
		b.failSaves--
		return nil, ErrUnavailable
	}

	index := make(map[int64]int, len(c.inputs))
	for i, in := range c.inputs {
		index[in.ID] = i
	}
	for _, u := range updates {
		if _, ok := index[u.ID]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownInput, u.ID)
		}
	}

	mapping := make(esign.IDMapping, len(updates))
	for _, u := range updates {
		in := &c.inputs[index[u.ID]]
		in.Value = u.Value
		in.Completed = u.Completed
		mapping[u.ID] = in.ID
	}
	return mapping, nil
}

// Submit finalises a signer. Every required input must be completed.
func (b *Backend) Submit(token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.signers[token]
	if !ok {
		return ErrNotFound
	}
	if s.submitted {
		return ErrSubmitted
	}
	for _, in := range b.contracts[s.contractID].inputs {
		if in.Required && !in.Completed {
			return fmt.Errorf("%w: input %d", ErrIncomplete, in.ID)
		}
	}
	s.submitted = true
	return nil
}

// Submitted reports whether the signer behind token has submitted.
func (b *Backend) Submitted(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.signers[token]
	return ok && s.submitted
}

// FailNextSaves makes the next n input saves answer 503.
func (b *Backend) FailNextSaves(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failSaves = n
}

// SaveCount reports how many input saves were attempted.
func (b *Backend) SaveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}
