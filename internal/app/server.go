package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/countersign/internal/fakeapi"
	"github.com/aussiebroadwan/countersign/pkg/cryptox"
	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

// Server runs the fake backend with all its dependencies.
type Server struct {
	cfg    ServerConfig
	logger *slog.Logger

	backend     *fakeapi.Backend
	housekeeper *fakeapi.Housekeeper

	server *http.Server
	router *fakeapi.Router
}

// NewServer creates a Server. Without FAKEAPI_SECRET a random secret is
// generated, so tokens do not survive a restart.
func NewServer(cfg ServerConfig) (*Server, error) {
	s := &Server{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "countersign-fakeapi",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, fmt.Errorf("failed to generate secret: %w", err)
		}
		secret = []byte(generated)
		s.logger.Warn("FAKEAPI_SECRET not set; using an ephemeral secret")
	}

	backend, err := fakeapi.NewBackend(fakeapi.Options{
		Secret:        secret,
		AccessTTL:     cfg.AccessTTL,
		RotateRefresh: cfg.RotateRefresh,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}
	s.backend = backend

	if cfg.SeedEmail != "" {
		demo, err := fakeapi.Seed(backend, cfg.SeedEmail, cfg.SeedPassword)
		if err != nil {
			return nil, err
		}
		s.logger.Info("seeded demo data",
			"email", demo.User.Email,
			"contract_id", demo.ContractID,
			"signer_token", demo.SignerToken,
		)
	}

	s.housekeeper = fakeapi.NewHousekeeper(backend, s.logger, cfg.HousekeepingInterval)

	s.router = fakeapi.NewRouter(backend, BuildVersion, s.logger)
	s.router.ApplyRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return s, nil
}

// Run starts the server and blocks until shutdown is requested.
func (s *Server) Run() error {
	s.housekeeper.Start()

	s.logger.Info("fake backend starting", "port", s.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		s.housekeeper.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		s.logger.Info("shutdown signal received", "signal", sig)

		if err := s.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down fake backend...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("graceful server shutdown failed", "error", err)
		if err := s.server.Close(); err != nil {
			s.logger.Error("error closing server", "error", err)
		}
	}

	s.housekeeper.Stop()

	s.logger.Info("fake backend stopped")
	return nil
}
