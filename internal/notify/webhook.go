package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/db"
)

// WebhookChannel POSTs notifications to an operator-configured endpoint,
// used by schools integrating the van tracker with their own systems.
type WebhookChannel struct {
	client *http.Client
	url    string
	logger *zap.Logger
}

// WebhookConfig holds webhook channel settings.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// NewWebhookChannel creates the webhook channel.
func NewWebhookChannel(cfg WebhookConfig, logger *zap.Logger) *WebhookChannel {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &WebhookChannel{
		client: &http.Client{Timeout: timeout},
		url:    cfg.URL,
		logger: logger,
	}
}

func (c *WebhookChannel) Name() string {
	return db.ChannelWebhook
}

func (c *WebhookChannel) Deliver(ctx context.Context, notif *db.Notification) error {
	if c.url == "" {
		return fmt.Errorf("webhook channel has no endpoint configured")
	}

	body, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Vantrack/1.0")
	req.Header.Set("X-Vantrack-Notification-ID", notif.ID.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d, body: %s", resp.StatusCode, string(preview))
	}

	c.logger.Info("webhook delivered",
		zap.String("id", notif.ID.String()),
		zap.Int("status_code", resp.StatusCode),
	)

	return nil
}
