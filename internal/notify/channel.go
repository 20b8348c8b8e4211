// Package notify records notifications and fans them out to delivery
// channels. A channel failure is logged and swallowed so the remaining
// channels and recipients still get their attempt; this component never
// retries.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/bucket"
	"github.com/Kevynz/Vantracing-sub000/internal/db"
)

// Channel is one delivery mechanism for a notification.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, notif *db.Notification) error
}

// Waker is notified after a live bucket append so an open stream
// connection can drain immediately instead of waiting for its poll tick.
type Waker interface {
	Wake(userID int64)
}

// liveEnvelope is the JSON shape pushed onto the live bucket and emitted
// to stream clients.
type liveEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Priority  string          `json:"priority"`
	CreatedAt time.Time       `json:"created_at"`
}

// LiveChannel appends notifications to the recipient's cache bucket and
// wakes any open stream connection. The bucket is the hand-off point:
// bounded, TTL'd, drained by the live delivery endpoint.
type LiveChannel struct {
	store  bucket.Store
	waker  Waker // nil when no in-process hub exists
	logger *zap.Logger
}

// NewLiveChannel creates the live delivery channel.
func NewLiveChannel(store bucket.Store, waker Waker, logger *zap.Logger) *LiveChannel {
	return &LiveChannel{
		store:  store,
		waker:  waker,
		logger: logger,
	}
}

func (c *LiveChannel) Name() string {
	return db.ChannelLive
}

func (c *LiveChannel) Deliver(ctx context.Context, notif *db.Notification) error {
	env := liveEnvelope{
		ID:        notif.ID.String(),
		Type:      notif.Type,
		Title:     notif.Title,
		Message:   notif.Message,
		Payload:   notif.Payload,
		Priority:  notif.Priority,
		CreatedAt: notif.CreatedAt,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	entry := bucket.Entry{
		ID:    notif.ID.String(),
		Event: eventType(notif),
		Data:  data,
	}

	if err := c.store.Append(ctx, notif.UserID, entry); err != nil {
		return err
	}

	if c.waker != nil {
		c.waker.Wake(notif.UserID)
	}

	c.logger.Debug("notification queued for live delivery",
		zap.String("notification_id", notif.ID.String()),
		zap.Int64("user_id", notif.UserID),
	)

	return nil
}

// eventType distinguishes operator broadcasts from ordinary notifications
// on the wire.
func eventType(notif *db.Notification) string {
	if notif.Type == "system" {
		return "system_notification"
	}
	return "notification"
}

// LogChannel is a development stand-in that accepts every delivery and
// just logs it.
type LogChannel struct {
	name   string
	logger *zap.Logger
}

// NewLogChannel creates a logging channel masquerading under the given
// channel name.
func NewLogChannel(name string, logger *zap.Logger) *LogChannel {
	return &LogChannel{name: name, logger: logger}
}

func (c *LogChannel) Name() string {
	return c.name
}

func (c *LogChannel) Deliver(ctx context.Context, notif *db.Notification) error {
	c.logger.Info("logging notification (development mode)",
		zap.String("channel", c.name),
		zap.String("id", notif.ID.String()),
		zap.Int64("user_id", notif.UserID),
		zap.String("title", notif.Title),
	)
	return nil
}
