// Package sqs hands failed notifications to the external retry worker.
// This service never retries a delivery itself; the relay is a one-way
// drop into the worker's queue.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/db"
)

// Config holds SQS relay configuration.
type Config struct {
	Region   string
	QueueURL string
}

// Message is the payload handed to the retry worker.
type Message struct {
	NotificationID string          `json:"notification_id"`
	UserID         int64           `json:"user_id"`
	Type           string          `json:"type"`
	Title          string          `json:"title"`
	Body           string          `json:"message"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Priority       string          `json:"priority"`
	Channels       []string        `json:"channels"`
	FailedAt       int64           `json:"failed_at"`
}

// Relay sends failed notifications to the retry worker's queue.
type Relay struct {
	client   *sqs.Client
	queueURL string
	logger   *zap.Logger
}

// NewRelay creates a new SQS relay.
func NewRelay(ctx context.Context, cfg Config, logger *zap.Logger) (*Relay, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("sqs relay initialized",
		zap.String("queue_url", cfg.QueueURL),
	)

	return &Relay{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: cfg.QueueURL,
		logger:   logger,
	}, nil
}

// HandOff enqueues a failed notification for the external retry worker.
func (r *Relay) HandOff(ctx context.Context, notif *db.Notification) error {
	msg := Message{
		NotificationID: notif.ID.String(),
		UserID:         notif.UserID,
		Type:           notif.Type,
		Title:          notif.Title,
		Body:           notif.Message,
		Payload:        notif.Payload,
		Priority:       notif.Priority,
		Channels:       notif.Channels,
		FailedAt:       time.Now().Unix(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(r.queueURL),
		MessageBody: aws.String(string(body)),
	}

	result, err := r.client.SendMessage(ctx, input)
	if err != nil {
		r.logger.Error("failed to relay notification",
			zap.Error(err),
			zap.String("notification_id", notif.ID.String()),
		)
		return fmt.Errorf("sqs send failed: %w", err)
	}

	r.logger.Info("failed notification relayed for retry",
		zap.String("notification_id", notif.ID.String()),
		zap.String("sqs_message_id", *result.MessageId),
	)

	return nil
}
