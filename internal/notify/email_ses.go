package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/db"
)

// EmailChannel delivers notifications as email via AWS SES. The recipient
// address rides in the notification payload ("email_to"); the rendered
// subject and body come from the notification title and message.
type EmailChannel struct {
	client *ses.Client
	from   string
	logger *zap.Logger
}

// EmailConfig holds SES settings.
type EmailConfig struct {
	Region    string
	FromEmail string
}

// emailAddressing is the slice of the payload the email channel reads.
type emailAddressing struct {
	To string `json:"email_to"`
}

// NewEmailChannel creates the SES-backed email channel.
func NewEmailChannel(ctx context.Context, cfg EmailConfig, logger *zap.Logger) (*EmailChannel, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}

	return &EmailChannel{
		client: ses.NewFromConfig(awsCfg),
		from:   cfg.FromEmail,
		logger: logger,
	}, nil
}

func (c *EmailChannel) Name() string {
	return db.ChannelEmail
}

func (c *EmailChannel) Deliver(ctx context.Context, notif *db.Notification) error {
	var addr emailAddressing
	if len(notif.Payload) > 0 {
		if err := json.Unmarshal(notif.Payload, &addr); err != nil {
			return fmt.Errorf("invalid email payload: %w", err)
		}
	}
	if addr.To == "" {
		return fmt.Errorf("email payload missing 'email_to' field")
	}
	if notif.Title == "" {
		return fmt.Errorf("notification missing title for email subject")
	}

	input := &ses.SendEmailInput{
		Source: aws.String(c.from),
		Destination: &types.Destination{
			ToAddresses: []string{addr.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(notif.Title),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(notif.Message),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := c.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}

	c.logger.Info("email sent via SES",
		zap.String("id", notif.ID.String()),
		zap.String("to", addr.To),
		zap.String("message_id", *result.MessageId),
	)

	return nil
}
