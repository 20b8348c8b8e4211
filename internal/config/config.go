package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (live-delivery buckets + rate limiting)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Live delivery
	BucketCap       int           // max entries held per user bucket
	BucketTTL       time.Duration // bucket expiry, refreshed on append
	StreamPoll      time.Duration // safety-net drain interval
	StreamHeartbeat time.Duration // heartbeat event interval

	// Retention sweep
	SweepInterval time.Duration
	Retention     time.Duration // read/failed rows older than this are removed

	// AWS channel senders
	AWSRegion    string
	SESFromEmail string
	SNSRegion    string

	// SQS relay for the external retry worker
	SQSRegion   string
	SQSRelayURL string

	// Webhook channel
	WebhookURL     string
	WebhookTimeout int // seconds

	// Alert collector
	AlertInterval         time.Duration
	AlertBacklogThreshold int     // pending notifications
	AlertDBConnThreshold  int     // acquired pool connections
	AlertGoroutineLimit   int     // runtime goroutines
	AlertConnThreshold    float64 // open live stream connections
}

// Load reads configuration from environment variables with local defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "vantrack",
		DBPassword: "",
		DBName:     "vantrack",
		DBSSLMode:  "disable",

		RedisHost: "localhost",
		RedisPort: 6379,

		BucketCap:       50,
		BucketTTL:       5 * time.Minute,
		StreamPoll:      2 * time.Second,
		StreamHeartbeat: 30 * time.Second,

		SweepInterval: 15 * time.Minute,
		Retention:     24 * time.Hour,

		AWSRegion:    "us-east-1",
		SESFromEmail: "noreply@vantrack.local",

		WebhookTimeout: 30,

		AlertInterval:         time.Minute,
		AlertBacklogThreshold: 500,
		AlertDBConnThreshold:  20,
		AlertGoroutineLimit:   2000,
		AlertConnThreshold:    200,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	if cap := os.Getenv("BUCKET_CAP"); cap != "" {
		c, err := strconv.Atoi(cap)
		if err != nil {
			return nil, fmt.Errorf("invalid BUCKET_CAP: %w", err)
		}
		cfg.BucketCap = c
	}

	if ttl := os.Getenv("BUCKET_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid BUCKET_TTL: %w", err)
		}
		cfg.BucketTTL = d
	}

	if poll := os.Getenv("STREAM_POLL_INTERVAL"); poll != "" {
		d, err := time.ParseDuration(poll)
		if err != nil {
			return nil, fmt.Errorf("invalid STREAM_POLL_INTERVAL: %w", err)
		}
		cfg.StreamPoll = d
	}

	if hb := os.Getenv("STREAM_HEARTBEAT_INTERVAL"); hb != "" {
		d, err := time.ParseDuration(hb)
		if err != nil {
			return nil, fmt.Errorf("invalid STREAM_HEARTBEAT_INTERVAL: %w", err)
		}
		cfg.StreamHeartbeat = d
	}

	if sweep := os.Getenv("SWEEP_INTERVAL"); sweep != "" {
		d, err := time.ParseDuration(sweep)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
		}
		cfg.SweepInterval = d
	}

	if retention := os.Getenv("NOTIFICATION_RETENTION"); retention != "" {
		d, err := time.ParseDuration(retention)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFICATION_RETENTION: %w", err)
		}
		cfg.Retention = d
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if from := os.Getenv("SES_FROM_EMAIL"); from != "" {
		cfg.SESFromEmail = from
	}

	if region := os.Getenv("SNS_REGION"); region != "" {
		cfg.SNSRegion = region
	} else {
		cfg.SNSRegion = cfg.AWSRegion
	}

	if region := os.Getenv("SQS_REGION"); region != "" {
		cfg.SQSRegion = region
	} else {
		cfg.SQSRegion = cfg.AWSRegion
	}

	if url := os.Getenv("SQS_RELAY_URL"); url != "" {
		cfg.SQSRelayURL = url
	}

	if url := os.Getenv("WEBHOOK_URL"); url != "" {
		cfg.WebhookURL = url
	}

	if timeout := os.Getenv("WEBHOOK_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
		}
		cfg.WebhookTimeout = t
	}

	if interval := os.Getenv("ALERT_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid ALERT_INTERVAL: %w", err)
		}
		cfg.AlertInterval = d
	}

	if v := os.Getenv("ALERT_BACKLOG_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ALERT_BACKLOG_THRESHOLD: %w", err)
		}
		cfg.AlertBacklogThreshold = n
	}

	if v := os.Getenv("ALERT_DB_CONN_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ALERT_DB_CONN_THRESHOLD: %w", err)
		}
		cfg.AlertDBConnThreshold = n
	}

	if v := os.Getenv("ALERT_GOROUTINE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ALERT_GOROUTINE_LIMIT: %w", err)
		}
		cfg.AlertGoroutineLimit = n
	}

	if v := os.Getenv("ALERT_STREAM_CONN_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ALERT_STREAM_CONN_THRESHOLD: %w", err)
		}
		cfg.AlertConnThreshold = f
	}

	return cfg, nil
}
