package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/apperrors"
)

// CreateNotification inserts a new notification row in pending state.
func (r *Repository) CreateNotification(ctx context.Context, notif *Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, type, title, message, payload,
			priority, status, channels, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		notif.ID,
		notif.UserID,
		notif.Type,
		notif.Title,
		notif.Message,
		notif.Payload,
		notif.Priority,
		notif.Status,
		notif.Channels,
		notif.ExpiresAt,
	).Scan(&notif.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create notification",
			zap.Error(err),
			zap.String("notification_id", notif.ID.String()),
		)
		return apperrors.Storage("insert notification", err)
	}

	r.logger.Info("notification created",
		zap.String("notification_id", notif.ID.String()),
		zap.Int64("user_id", notif.UserID),
		zap.String("type", notif.Type),
	)

	return nil
}

// GetNotification retrieves a notification by ID.
func (r *Repository) GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error) {
	query := `
		SELECT
			id, user_id, type, title, message, payload,
			priority, status, channels, channels_sent, retry_count,
			created_at, sent_at, read_at, expires_at
		FROM notifications
		WHERE id = $1
	`

	var notif Notification
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&notif.ID,
		&notif.UserID,
		&notif.Type,
		&notif.Title,
		&notif.Message,
		&notif.Payload,
		&notif.Priority,
		&notif.Status,
		&notif.Channels,
		&notif.ChannelsSent,
		&notif.RetryCount,
		&notif.CreatedAt,
		&notif.SentAt,
		&notif.ReadAt,
		&notif.ExpiresAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("notification")
	}

	if err != nil {
		r.logger.Error("failed to get notification",
			zap.Error(err),
			zap.String("notification_id", id.String()),
		)
		return nil, apperrors.Storage("query notification", err)
	}

	return &notif, nil
}

// MarkDispatched records the outcome of the dispatcher's channel fan-out:
// which channels succeeded and the resulting status. Partial channel
// success still counts as sent; channels_sent keeps the per-channel record.
func (r *Repository) MarkDispatched(ctx context.Context, id uuid.UUID, status string, channelsSent []string) error {
	query := `
		UPDATE notifications
		SET status = $1, channels_sent = $2, sent_at = CASE WHEN $1 = 'sent' THEN NOW() ELSE sent_at END
		WHERE id = $3
	`

	result, err := r.db.Pool().Exec(ctx, query, status, channelsSent, id)
	if err != nil {
		r.logger.Error("failed to mark notification dispatched",
			zap.Error(err),
			zap.String("notification_id", id.String()),
		)
		return apperrors.Storage("update notification status", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NotFound("notification")
	}

	return nil
}

// ListByUser returns a user's notifications newest first, excluding
// expired rows. unreadOnly limits the result to rows without read_at.
func (r *Repository) ListByUser(ctx context.Context, userID int64, limit, offset int, unreadOnly bool) ([]*Notification, error) {
	query := `
		SELECT
			id, user_id, type, title, message, payload,
			priority, status, channels, channels_sent, retry_count,
			created_at, sent_at, read_at, expires_at
		FROM notifications
		WHERE user_id = $1
		  AND (expires_at IS NULL OR expires_at > NOW())
		  AND ($4 = false OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, apperrors.Storage("query notifications", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var notif Notification
		err := rows.Scan(
			&notif.ID,
			&notif.UserID,
			&notif.Type,
			&notif.Title,
			&notif.Message,
			&notif.Payload,
			&notif.Priority,
			&notif.Status,
			&notif.Channels,
			&notif.ChannelsSent,
			&notif.RetryCount,
			&notif.CreatedAt,
			&notif.SentAt,
			&notif.ReadAt,
			&notif.ExpiresAt,
		)
		if err != nil {
			return nil, apperrors.Storage("scan notification", err)
		}
		notifications = append(notifications, &notif)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("iterate rows", err)
	}

	return notifications, nil
}

// UnreadCount returns the number of unread, unexpired notifications.
func (r *Repository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1
		  AND read_at IS NULL
		  AND (expires_at IS NULL OR expires_at > NOW())
	`

	var count int64
	if err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, apperrors.Storage("count unread", err)
	}

	return count, nil
}

// MarkRead sets read_at on the given notifications, scoped to the user.
// Rows already read are untouched, which makes repeated calls idempotent:
// the second call reports zero rows updated.
func (r *Repository) MarkRead(ctx context.Context, ids []uuid.UUID, userID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE notifications
		SET read_at = NOW(), status = $3
		WHERE id = ANY($1) AND user_id = $2 AND read_at IS NULL
	`

	result, err := r.db.Pool().Exec(ctx, query, ids, userID, StatusRead)
	if err != nil {
		r.logger.Error("failed to mark notifications read",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Int("ids", len(ids)),
		)
		return 0, apperrors.Storage("mark read", err)
	}

	return result.RowsAffected(), nil
}

// MarkAllRead sets read_at on every unread notification for the user.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	query := `
		UPDATE notifications
		SET read_at = NOW(), status = $2
		WHERE user_id = $1 AND read_at IS NULL
	`

	result, err := r.db.Pool().Exec(ctx, query, userID, StatusRead)
	if err != nil {
		return 0, apperrors.Storage("mark all read", err)
	}

	return result.RowsAffected(), nil
}

// PendingCount returns the number of rows still in pending state,
// sampled by the alert collector as the dispatch backlog.
func (r *Repository) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE status = 'pending'`,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Storage("count pending", err)
	}
	return count, nil
}

// Stats aggregates notification counts by status and by requested channel.
func (r *Repository) Stats(ctx context.Context) (*NotificationStats, error) {
	stats := &NotificationStats{
		ByStatus:  make(map[string]int64),
		ByChannel: make(map[string]int64),
	}

	rows, err := r.db.Pool().Query(ctx,
		`SELECT status, COUNT(*) FROM notifications GROUP BY status`,
	)
	if err != nil {
		return nil, apperrors.Storage("query status stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.Storage("scan status stats", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("iterate status stats", err)
	}

	chRows, err := r.db.Pool().Query(ctx,
		`SELECT ch, COUNT(*) FROM notifications, UNNEST(channels) AS ch GROUP BY ch`,
	)
	if err != nil {
		return nil, apperrors.Storage("query channel stats", err)
	}
	defer chRows.Close()

	for chRows.Next() {
		var channel string
		var count int64
		if err := chRows.Scan(&channel, &count); err != nil {
			return nil, apperrors.Storage("scan channel stats", err)
		}
		stats.ByChannel[channel] = count
	}
	if err := chRows.Err(); err != nil {
		return nil, apperrors.Storage("iterate channel stats", err)
	}

	return stats, nil
}

// CleanExpired deletes rows past their expires_at, plus read/failed rows
// older than the retention window. Returns the number of rows removed.
func (r *Repository) CleanExpired(ctx context.Context, retention time.Duration) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE (expires_at IS NOT NULL AND expires_at <= NOW())
		   OR (status IN ('read', 'failed') AND created_at < NOW() - $1::interval)
	`

	result, err := r.db.Pool().Exec(ctx, query, retention)
	if err != nil {
		r.logger.Error("failed to clean expired notifications", zap.Error(err))
		return 0, apperrors.Storage("clean expired", err)
	}

	removed := result.RowsAffected()
	if removed > 0 {
		r.logger.Info("expired notifications removed", zap.Int64("count", removed))
	}

	return removed, nil
}
