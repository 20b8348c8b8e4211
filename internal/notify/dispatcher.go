package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/apperrors"
	"github.com/Kevynz/Vantracing-sub000/internal/db"
	"github.com/Kevynz/Vantracing-sub000/internal/metrics"
)

// Repository is the slice of the store the dispatcher needs.
type Repository interface {
	CreateNotification(ctx context.Context, notif *db.Notification) error
	MarkDispatched(ctx context.Context, id uuid.UUID, status string, channelsSent []string) error
}

// Relay hands failed notifications to an external retry worker. The
// dispatcher itself never retries.
type Relay interface {
	HandOff(ctx context.Context, notif *db.Notification) error
}

// Options tune one send request.
type Options struct {
	Priority  string     // defaults to medium
	Channels  []string   // defaults to [live]
	ExpiresAt *time.Time // nil means never expires
}

// Input is the content of one send request, fanned out to every recipient.
type Input struct {
	Type    string
	Title   string
	Message string
	Payload json.RawMessage
	Options Options
}

// Dispatcher records notifications and attempts every requested channel.
type Dispatcher struct {
	repo     Repository
	channels map[string]Channel
	relay    Relay // nil when no external retry worker is wired
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over the given channels. Later
// channels with the same name win, which lets a caller override a real
// channel with a development stand-in.
func NewDispatcher(repo Repository, logger *zap.Logger, relay Relay, channels ...Channel) *Dispatcher {
	byName := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}

	return &Dispatcher{
		repo:     repo,
		channels: byName,
		relay:    relay,
		logger:   logger,
	}
}

var validPriorities = map[string]bool{
	db.PriorityLow:      true,
	db.PriorityMedium:   true,
	db.PriorityHigh:     true,
	db.PriorityCritical: true,
}

// Send creates one pending notification row per recipient, then attempts
// every requested channel for each. A channel failure is logged and the
// loop continues; a row ends up sent when at least one channel succeeded
// and failed when none did. Returns the ids of the rows created.
func (d *Dispatcher) Send(ctx context.Context, userIDs []int64, in Input) ([]uuid.UUID, error) {
	if len(userIDs) == 0 {
		return nil, apperrors.Validation("user_ids", "must not be empty")
	}
	for _, id := range userIDs {
		if id <= 0 {
			return nil, apperrors.Validation("user_ids", "must be positive")
		}
	}
	if in.Type == "" {
		return nil, apperrors.Validation("type", "is required")
	}
	if in.Title == "" {
		return nil, apperrors.Validation("title", "is required")
	}

	priority := in.Options.Priority
	if priority == "" {
		priority = db.PriorityMedium
	}
	if !validPriorities[priority] {
		return nil, apperrors.Validation("priority", "must be low, medium, high or critical")
	}

	channels := in.Options.Channels
	if len(channels) == 0 {
		channels = []string{db.ChannelLive}
	}
	for _, name := range channels {
		if _, ok := d.channels[name]; !ok {
			return nil, apperrors.Validation("channels", "unknown channel "+name)
		}
	}

	created := make([]uuid.UUID, 0, len(userIDs))

	for _, userID := range userIDs {
		notif := &db.Notification{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      in.Type,
			Title:     in.Title,
			Message:   in.Message,
			Payload:   in.Payload,
			Priority:  priority,
			Status:    db.StatusPending,
			Channels:  channels,
			ExpiresAt: in.Options.ExpiresAt,
		}

		if err := d.repo.CreateNotification(ctx, notif); err != nil {
			// One recipient failing to persist must not abort the rest.
			d.logger.Error("failed to persist notification, skipping recipient",
				zap.Error(err),
				zap.Int64("user_id", userID),
			)
			continue
		}

		created = append(created, notif.ID)
		metrics.RecordNotificationCreated(notif.Type, notif.Priority)

		d.dispatch(ctx, notif)
	}

	if len(created) == 0 {
		return nil, apperrors.Storage("send", errors.New("no notification rows created"))
	}

	return created, nil
}

// dispatch attempts every requested channel for one row and records the
// outcome on it.
func (d *Dispatcher) dispatch(ctx context.Context, notif *db.Notification) {
	var channelsSent []string

	for _, name := range notif.Channels {
		ch := d.channels[name]

		if err := ch.Deliver(ctx, notif); err != nil {
			metrics.RecordChannelDelivery(name, false)
			wrapped := apperrors.ChannelDelivery(name, err)
			d.logger.Warn("channel delivery failed",
				zap.Error(wrapped),
				zap.String("notification_id", notif.ID.String()),
				zap.String("channel", name),
			)
			continue
		}

		metrics.RecordChannelDelivery(name, true)
		channelsSent = append(channelsSent, name)
	}

	status := db.StatusSent
	if len(channelsSent) == 0 {
		status = db.StatusFailed
	}

	if err := d.repo.MarkDispatched(ctx, notif.ID, status, channelsSent); err != nil {
		d.logger.Error("failed to record dispatch outcome",
			zap.Error(err),
			zap.String("notification_id", notif.ID.String()),
		)
	}
	notif.Status = status
	notif.ChannelsSent = channelsSent

	if status == db.StatusFailed && d.relay != nil {
		if err := d.relay.HandOff(ctx, notif); err != nil {
			d.logger.Warn("failed to hand off notification to retry relay",
				zap.Error(err),
				zap.String("notification_id", notif.ID.String()),
			)
		}
	}
}
