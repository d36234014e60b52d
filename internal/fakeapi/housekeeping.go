package fakeapi

import (
	"log/slog"
	"time"
)

// Housekeeper periodically drops expired refresh tokens so a long-running
// fake backend does not grow without bound.
type Housekeeper struct {
	Backend  *Backend
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeeper creates a housekeeper. If interval is 0 or negative,
// defaults to 1 hour.
func NewHousekeeper(backend *Backend, logger *slog.Logger, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &Housekeeper{
		Backend:  backend,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (h *Housekeeper) Start() {
	go h.run()
	h.Logger.Info("housekeeping started", "interval", h.Interval)
}

// Stop blocks until the worker has finished any in-progress cleanup.
func (h *Housekeeper) Stop() {
	close(h.stopCh)
	<-h.doneCh
	h.Logger.Info("housekeeping stopped")
}

func (h *Housekeeper) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.cleanup()
		case <-h.stopCh:
			return
		}
	}
}

func (h *Housekeeper) cleanup() {
	n := h.Backend.DeleteExpiredRefreshTokens()
	h.Logger.Debug("housekeeping cleanup completed", "expired_refresh_tokens", n)
}
