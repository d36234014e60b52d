package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/countersign/internal/authstate"
	"github.com/aussiebroadwan/countersign/internal/signing"
	"github.com/aussiebroadwan/countersign/internal/tokenstore/sqlite"
	"github.com/aussiebroadwan/countersign/pkg/cryptox"
	"github.com/aussiebroadwan/countersign/pkg/esign"
	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	// tokenKeyInfo binds the derived storage key to token encryption.
	tokenKeyInfo = "countersign token storage v1"
)

// Client wires the signer client: logger, token storage, SDK, session state.
type Client struct {
	cfg    Config
	Logger *slog.Logger

	SDK    *esign.SDKClient
	Tokens *sqlite.Store
	Auth   *authstate.Controller
}

// NewClient builds a Client. The caller must Close it.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		cfg: cfg,
		Logger: slogx.New(slogx.Config{
			Service: "countersign",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := c.initStorage(); err != nil {
		return nil, err
	}

	c.SDK = esign.NewSDKClient(cfg.APIURL)
	c.SDK.HTTPClient.Timeout = cfg.HTTPTimeout
	c.SDK.HTTPClient.Transport = slogx.NewTransport(nil, c.Logger)

	c.Auth = authstate.NewController(
		c.SDK,
		c.Tokens,
		authstate.NewStore(authstate.Initial()),
		esign.WithRefreshLeeway(cfg.RefreshLeeway),
	)

	return c, nil
}

func (c *Client) initStorage() error {
	sealer, err := cryptox.LoadSealer(c.cfg.MasterKeyPath, c.cfg.MasterKey, tokenKeyInfo)
	if err != nil {
		return fmt.Errorf("failed to load master key: %w", err)
	}

	if dir := filepath.Dir(c.cfg.StorageFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", c.cfg.StorageFile)
	store, err := sqlite.NewStore(dsn, sealer)
	if err != nil {
		return fmt.Errorf("failed to open token storage: %w", err)
	}

	if err := store.Ping(context.Background()); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to reach token storage: %w", err)
	}

	if err := store.ApplyMigrations(); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to apply storage migrations: %w", err)
	}

	c.Tokens = store
	c.Logger.Debug("token storage ready", "file", c.cfg.StorageFile, "encrypted", sealer != nil)
	return nil
}

// Context returns ctx carrying the client's logger.
func (c *Client) Context(ctx context.Context) context.Context {
	return slogx.WithContext(ctx, c.Logger)
}

// SignerFields returns a synchronizer over the fields behind a signer token.
func (c *Client) SignerFields(signerToken string, notifier signing.Notifier) *signing.Synchronizer {
	return signing.New(c.SDK.SignerInputs(signerToken), signing.Options{
		Interval: c.cfg.SyncInterval,
		Notifier: notifier,
	})
}

// ContractFields returns a synchronizer over a contract's fields, using the
// logged-in session.
func (c *Client) ContractFields(contractID int64, notifier signing.Notifier) *signing.Synchronizer {
	return signing.New(c.Auth.Session().ContractInputs(contractID), signing.Options{
		Interval: c.cfg.SyncInterval,
		Notifier: notifier,
	})
}

// Close releases token storage.
func (c *Client) Close() error {
	return c.Tokens.Close()
}
