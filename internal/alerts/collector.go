// Package alerts implements the periodic metrics collector: sample
// system and application counters, store the raw samples, and raise an
// alert row whenever a watched metric crosses its static threshold.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/db"
	"github.com/Kevynz/Vantracing-sub000/internal/metrics"
)

// Store is the slice of the repository the collector needs.
type Store interface {
	InsertSamples(ctx context.Context, samples []db.MetricSample) error
	InsertAlert(ctx context.Context, alert *db.Alert) error
}

// Source is one watched counter. A zero threshold means the metric is
// sampled but never alerted on.
type Source struct {
	Name      string
	Collect   func(ctx context.Context) (float64, error)
	Threshold float64
}

// Config tunes the collector.
type Config struct {
	Interval time.Duration
}

// Collector runs the sampling loop.
type Collector struct {
	store   Store
	sources []Source
	config  Config
	logger  *zap.Logger
}

// New creates a collector over the given sources.
func New(store Store, sources []Source, cfg Config, logger *zap.Logger) *Collector {
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}

	return &Collector{
		store:   store,
		sources: sources,
		config:  cfg,
		logger:  logger,
	}
}

// Start runs the collector until the context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("alert collector stopping")
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

// Collect runs one evaluation: sample every source, persist the raw
// samples, log a rolled-up snapshot, and raise an alert per breached
// threshold. Severity scales with the overshoot; there is no hysteresis,
// so a sustained breach raises one alert per evaluation.
func (c *Collector) Collect(ctx context.Context) {
	samples := make([]db.MetricSample, 0, len(c.sources))
	snapshot := make([]zap.Field, 0, len(c.sources))

	for _, src := range c.sources {
		value, err := src.Collect(ctx)
		if err != nil {
			c.logger.Warn("failed to sample metric",
				zap.Error(err),
				zap.String("metric", src.Name),
			)
			continue
		}

		samples = append(samples, db.MetricSample{Name: src.Name, Value: value})
		snapshot = append(snapshot, zap.Float64(src.Name, value))

		if src.Threshold > 0 && value >= src.Threshold {
			c.raise(ctx, src, value)
		}
	}

	if err := c.store.InsertSamples(ctx, samples); err != nil {
		c.logger.Warn("failed to store metric samples", zap.Error(err))
	}

	c.logger.Debug("metrics snapshot", snapshot...)
}

func (c *Collector) raise(ctx context.Context, src Source, value float64) {
	severity := db.SeverityWarning
	if value >= src.Threshold*1.5 {
		severity = db.SeverityCritical
	}

	alert := &db.Alert{
		ID:        uuid.New(),
		Metric:    src.Name,
		Value:     value,
		Threshold: src.Threshold,
		Severity:  severity,
		Message:   fmt.Sprintf("%s is %.1f, threshold %.1f", src.Name, value, src.Threshold),
	}

	if err := c.store.InsertAlert(ctx, alert); err != nil {
		c.logger.Error("failed to raise alert",
			zap.Error(err),
			zap.String("metric", src.Name),
		)
		return
	}

	metrics.RecordAlert(src.Name, severity)
}
