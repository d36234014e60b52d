// Package sqlite is a durable esign.TokenStore backed by a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/countersign/internal/tokenstore"
	"github.com/aussiebroadwan/countersign/pkg/cryptox"
	"github.com/aussiebroadwan/countersign/pkg/esign"
	_ "modernc.org/sqlite"
)

// ErrSealed is returned when the stored pair is encrypted and the store has
// no key to open it.
var ErrSealed = errors.New("tokenstore: stored tokens are encrypted")

// Store keeps the token pair in the client_storage table under tokenstore.Key.
// When built with a Sealer, values are encrypted at rest.
type Store struct {
	db     *sql.DB
	sealer *cryptox.Sealer
	dsn    string
}

// NewStore opens the database at dsn. sealer may be nil.
func NewStore(dsn string, sealer *cryptox.Sealer) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One writer; keeps ":memory:" databases on a single connection too.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, sealer: sealer, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Load(ctx context.Context) (esign.TokenPair, error) {
	var (
		value     string
		encrypted bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, encrypted FROM client_storage WHERE key = ?`, tokenstore.Key,
	).Scan(&value, &encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return esign.TokenPair{}, esign.ErrNoTokens
	}
	if err != nil {
		return esign.TokenPair{}, fmt.Errorf("failed to read tokens: %w", err)
	}

	raw := []byte(value)
	if encrypted {
		if s.sealer == nil {
			return esign.TokenPair{}, ErrSealed
		}
		sealed, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return esign.TokenPair{}, fmt.Errorf("failed to decode tokens: %w", err)
		}
		if raw, err = s.sealer.Open(sealed); err != nil {
			return esign.TokenPair{}, fmt.Errorf("failed to decrypt tokens: %w", err)
		}
	}

	var pair esign.TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return esign.TokenPair{}, fmt.Errorf("failed to decode tokens: %w", err)
	}
	return pair, nil
}

func (s *Store) Save(ctx context.Context, pair esign.TokenPair) error {
	raw, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}

	value := string(raw)
	encrypted := s.sealer != nil
	if encrypted {
		sealed, err := s.sealer.Seal(raw)
		if err != nil {
			return fmt.Errorf("failed to encrypt tokens: %w", err)
		}
		value = base64.StdEncoding.EncodeToString(sealed)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO client_storage (key, value, encrypted, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encrypted = excluded.encrypted,
			updated_at = excluded.updated_at`,
		tokenstore.Key, value, encrypted,
	)
	if err != nil {
		return fmt.Errorf("failed to write tokens: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_storage WHERE key = ?`, tokenstore.Key); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}
