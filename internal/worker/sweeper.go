// Package worker holds the background jobs run alongside the gateway.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/metrics"
)

// Repository is the slice of the store the sweeper needs.
type Repository interface {
	CleanExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// Config tunes the retention sweep.
type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

// Sweeper periodically removes expired notifications plus read/failed
// rows past the retention window.
type Sweeper struct {
	repo   Repository
	config Config
	logger *zap.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(repo Repository, cfg Config, logger *zap.Logger) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Retention == 0 {
		cfg.Retention = 24 * time.Hour
	}

	return &Sweeper{
		repo:   repo,
		config: cfg,
		logger: logger,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one retention pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	removed, err := s.repo.CleanExpired(ctx, s.config.Retention)
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Error(err))
		return
	}

	metrics.RecordSweep(removed)

	if removed > 0 {
		s.logger.Info("retention sweep completed", zap.Int64("removed", removed))
	}
}
