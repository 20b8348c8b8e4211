package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/apperrors"
)

// InsertSamples stores one batch of raw metric samples.
func (r *Repository) InsertSamples(ctx context.Context, samples []MetricSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(`INSERT INTO metric_samples (name, value) VALUES ($1, $2)`, s.Name, s.Value)
	}

	results := r.db.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range samples {
		if _, err := results.Exec(); err != nil {
			r.logger.Error("failed to insert metric samples", zap.Error(err))
			return apperrors.Storage("insert samples", err)
		}
	}

	return nil
}

// InsertAlert records one threshold breach.
func (r *Repository) InsertAlert(ctx context.Context, alert *Alert) error {
	query := `
		INSERT INTO alerts (id, metric, value, threshold, severity, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		alert.ID,
		alert.Metric,
		alert.Value,
		alert.Threshold,
		alert.Severity,
		alert.Message,
	).Scan(&alert.CreatedAt)

	if err != nil {
		r.logger.Error("failed to insert alert",
			zap.Error(err),
			zap.String("metric", alert.Metric),
		)
		return apperrors.Storage("insert alert", err)
	}

	r.logger.Warn("alert raised",
		zap.String("metric", alert.Metric),
		zap.Float64("value", alert.Value),
		zap.Float64("threshold", alert.Threshold),
		zap.String("severity", alert.Severity),
	)

	return nil
}
