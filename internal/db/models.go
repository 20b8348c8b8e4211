package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DriverLocation is the single last-known position per driver.
// Each write fully replaces the previous one; no history is kept.
type DriverLocation struct {
	DriverID  int64     `json:"driver_id"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification is one delivery record for one recipient.
type Notification struct {
	ID           uuid.UUID       `json:"id"`
	UserID       int64           `json:"user_id"`
	Type         string          `json:"type"`
	Title        string          `json:"title"`
	Message      string          `json:"message"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Priority     string          `json:"priority"`
	Status       string          `json:"status"`
	Channels     []string        `json:"channels"`
	ChannelsSent []string        `json:"channels_sent,omitempty"`
	RetryCount   int             `json:"retry_count"`
	CreatedAt    time.Time       `json:"created_at"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	ReadAt       *time.Time      `json:"read_at,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
}

// Status constants. Transitions run forward only:
// pending -> sent/failed -> read.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Priority constants
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Channel constants
const (
	ChannelLive    = "live"
	ChannelEmail   = "email"
	ChannelPush    = "push"
	ChannelWebhook = "webhook"
)

// NotificationStats aggregates row counts for the admin stats endpoint.
type NotificationStats struct {
	Total     int64            `json:"total"`
	ByStatus  map[string]int64 `json:"by_status"`
	ByChannel map[string]int64 `json:"by_channel"`
}

// Alert severity constants
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is one threshold breach recorded by the collector.
type Alert struct {
	ID        uuid.UUID `json:"id"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// MetricSample is one raw sampled counter value.
type MetricSample struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	SampledAt time.Time `json:"sampled_at"`
}
