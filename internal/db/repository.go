package db

import (
	"go.uber.org/zap"
)

// Repository handles database operations for locations, notifications
// and alerts.
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository over the shared pool.
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}
