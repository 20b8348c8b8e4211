package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/db"
)

// PushChannel delivers device push notifications via AWS SNS. The device
// endpoint ARN rides in the notification payload ("device_arn"), registered
// by the mobile app at login.
type PushChannel struct {
	client *sns.Client
	logger *zap.Logger
}

// PushConfig holds SNS settings.
type PushConfig struct {
	Region string
}

type pushAddressing struct {
	DeviceARN string `json:"device_arn"`
}

// pushMessage is the body published to the device endpoint.
type pushMessage struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
}

// NewPushChannel creates the SNS-backed push channel.
func NewPushChannel(ctx context.Context, cfg PushConfig, logger *zap.Logger) (*PushChannel, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for SNS: %w", err)
	}

	return &PushChannel{
		client: sns.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

func (c *PushChannel) Name() string {
	return db.ChannelPush
}

func (c *PushChannel) Deliver(ctx context.Context, notif *db.Notification) error {
	var addr pushAddressing
	if len(notif.Payload) > 0 {
		if err := json.Unmarshal(notif.Payload, &addr); err != nil {
			return fmt.Errorf("invalid push payload: %w", err)
		}
	}
	if addr.DeviceARN == "" {
		return fmt.Errorf("push payload missing 'device_arn' field")
	}

	body, err := json.Marshal(pushMessage{
		Title:    notif.Title,
		Message:  notif.Message,
		Type:     notif.Type,
		Priority: notif.Priority,
	})
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	input := &sns.PublishInput{
		TargetArn: aws.String(addr.DeviceARN),
		Message:   aws.String(string(body)),
	}

	result, err := c.client.Publish(ctx, input)
	if err != nil {
		return fmt.Errorf("sns publish failed: %w", err)
	}

	c.logger.Info("push sent via SNS",
		zap.String("id", notif.ID.String()),
		zap.String("message_id", *result.MessageId),
	)

	return nil
}
