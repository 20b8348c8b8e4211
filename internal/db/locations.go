package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/apperrors"
)

// UpsertLocation replaces the driver's last known position in place.
// At most one row exists per driver.
func (r *Repository) UpsertLocation(ctx context.Context, loc *DriverLocation) error {
	if loc.DriverID <= 0 {
		return apperrors.Validation("driver_id", "must be positive")
	}
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return apperrors.Validation("lat", "out of range")
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return apperrors.Validation("lng", "out of range")
	}

	query := `
		INSERT INTO driver_locations (driver_id, latitude, longitude, accuracy, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (driver_id) DO UPDATE
		SET latitude = EXCLUDED.latitude,
		    longitude = EXCLUDED.longitude,
		    accuracy = EXCLUDED.accuracy,
		    updated_at = NOW()
		RETURNING updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		loc.DriverID,
		loc.Latitude,
		loc.Longitude,
		loc.Accuracy,
	).Scan(&loc.UpdatedAt)

	if err != nil {
		r.logger.Error("failed to upsert driver location",
			zap.Error(err),
			zap.Int64("driver_id", loc.DriverID),
		)
		return apperrors.Storage("upsert location", err)
	}

	r.logger.Debug("driver location updated",
		zap.Int64("driver_id", loc.DriverID),
		zap.Float64("lat", loc.Latitude),
		zap.Float64("lng", loc.Longitude),
	)

	return nil
}

// GetLocation returns the driver's last known position, or a not-found
// error if the driver has never reported one.
func (r *Repository) GetLocation(ctx context.Context, driverID int64) (*DriverLocation, error) {
	if driverID <= 0 {
		return nil, apperrors.Validation("driver_id", "must be positive")
	}

	query := `
		SELECT driver_id, latitude, longitude, accuracy, updated_at
		FROM driver_locations
		WHERE driver_id = $1
	`

	var loc DriverLocation
	err := r.db.Pool().QueryRow(ctx, query, driverID).Scan(
		&loc.DriverID,
		&loc.Latitude,
		&loc.Longitude,
		&loc.Accuracy,
		&loc.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("driver location")
	}

	if err != nil {
		r.logger.Error("failed to get driver location",
			zap.Error(err),
			zap.Int64("driver_id", driverID),
		)
		return nil, apperrors.Storage("query location", err)
	}

	return &loc, nil
}
