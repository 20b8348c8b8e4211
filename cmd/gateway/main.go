package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/alerts"
	"github.com/Kevynz/Vantracing-sub000/internal/api"
	"github.com/Kevynz/Vantracing-sub000/internal/bucket"
	"github.com/Kevynz/Vantracing-sub000/internal/circuitbreaker"
	"github.com/Kevynz/Vantracing-sub000/internal/config"
	"github.com/Kevynz/Vantracing-sub000/internal/db"
	"github.com/Kevynz/Vantracing-sub000/internal/metrics"
	"github.com/Kevynz/Vantracing-sub000/internal/notify"
	"github.com/Kevynz/Vantracing-sub000/internal/observ"
	"github.com/Kevynz/Vantracing-sub000/internal/redis"
	"github.com/Kevynz/Vantracing-sub000/internal/session"
	"github.com/Kevynz/Vantracing-sub000/internal/sqs"
	"github.com/Kevynz/Vantracing-sub000/internal/stream"
	"github.com/Kevynz/Vantracing-sub000/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting vantrack gateway",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	ctx := context.Background()

	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	repo := db.NewRepository(database, logger)

	// Redis backs the live delivery buckets and rate limiting. Without it
	// the gateway still runs: buckets fall back to process memory (fine for
	// a single replica) and rate limiting is disabled.
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory buckets and no rate limiting",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
		redisClient = nil
	}

	var bucketStore bucket.Store
	var rateLimiter *redis.RateLimiter
	if redisClient != nil {
		defer redisClient.Close()
		bucketStore = redis.NewBucketStore(redisClient, logger, cfg.BucketCap, cfg.BucketTTL)
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  120,
			Window: 1 * time.Minute,
		})
	} else {
		bucketStore = bucket.NewMemoryStore(cfg.BucketCap, cfg.BucketTTL)
	}

	hub := stream.NewHub()

	channels := buildChannels(ctx, cfg, bucketStore, hub, logger)

	// Failed notifications go to the external retry worker's queue; this
	// service never retries a delivery itself.
	var relay notify.Relay
	if cfg.SQSRelayURL != "" {
		r, err := sqs.NewRelay(ctx, sqs.Config{
			Region:   cfg.SQSRegion,
			QueueURL: cfg.SQSRelayURL,
		}, logger)
		if err != nil {
			logger.Warn("sqs relay unavailable, failed notifications will not be retried",
				zap.Error(err),
			)
		} else {
			relay = r
		}
	}

	dispatcher := notify.NewDispatcher(repo, logger, relay, channels...)

	streamHandler := stream.NewHandler(bucketStore, hub, stream.Config{
		PollInterval:      cfg.StreamPoll,
		HeartbeatInterval: cfg.StreamHeartbeat,
	}, logger)

	handler := api.NewHandler(logger, repo, dispatcher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweeper := worker.NewSweeper(repo, worker.Config{
		Interval:  cfg.SweepInterval,
		Retention: cfg.Retention,
	}, logger)
	go sweeper.Start(workerCtx)

	collector := alerts.New(repo, alertSources(cfg, database, redisClient, repo, hub), alerts.Config{
		Interval: cfg.AlertInterval,
	}, logger)
	go collector.Start(workerCtx)

	logger.Info("background workers started")

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.IdentityMiddleware(logger))
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.UserKeyFunc))

		// The stream response is held open for the life of the client
		// session, so it stays outside the request timeout.
		r.Get("/stream", streamHandler.Serve)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Group(func(r chi.Router) {
				r.Use(api.RequireRole(session.RoleDriver))
				r.Post("/drivers/location", handler.PostLocation)
			})

			r.Get("/drivers/{driverID}/location", handler.GetLocation)

			r.Get("/notifications", handler.ListNotifications)
			r.Get("/notifications/unread_count", handler.UnreadCount)
			r.Post("/notifications/read", handler.MarkRead)
			r.Post("/notifications/read_all", handler.MarkAllRead)

			r.Group(func(r chi.Router) {
				r.Use(api.RequireRole(session.RoleAdmin))
				r.Post("/notifications/send", handler.SendNotification)
				r.Get("/notifications/stats", handler.Stats)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No write timeout: stream responses stay open for minutes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Stopping the workers first lets open stream connections close on
		// their own context before the server shutdown deadline hits.
		workerCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}

// buildChannels assembles the delivery channels. The live channel is
// always present; email, push and webhook get a circuit breaker each, and
// any AWS channel that fails to initialize is replaced by a logging
// stand-in so local runs work without credentials.
func buildChannels(ctx context.Context, cfg *config.Config, store bucket.Store, hub *stream.Hub, logger *zap.Logger) []notify.Channel {
	channels := []notify.Channel{
		notify.NewLiveChannel(store, hub, logger),
	}

	protect := func(name string, ch circuitbreaker.Channel) notify.Channel {
		breaker := circuitbreaker.New(circuitbreaker.DefaultConfig(name), logger)
		return circuitbreaker.NewProtectedChannel(ch, breaker, logger)
	}

	email, err := notify.NewEmailChannel(ctx, notify.EmailConfig{
		Region:    cfg.AWSRegion,
		FromEmail: cfg.SESFromEmail,
	}, logger)
	if err != nil {
		logger.Warn("ses unavailable, email channel will only log", zap.Error(err))
		channels = append(channels, notify.NewLogChannel(db.ChannelEmail, logger))
	} else {
		channels = append(channels, protect("email", email))
	}

	push, err := notify.NewPushChannel(ctx, notify.PushConfig{
		Region: cfg.SNSRegion,
	}, logger)
	if err != nil {
		logger.Warn("sns unavailable, push channel will only log", zap.Error(err))
		channels = append(channels, notify.NewLogChannel(db.ChannelPush, logger))
	} else {
		channels = append(channels, protect("push", push))
	}

	webhook := notify.NewWebhookChannel(notify.WebhookConfig{
		URL:     cfg.WebhookURL,
		Timeout: time.Duration(cfg.WebhookTimeout) * time.Second,
	}, logger)
	channels = append(channels, protect("webhook", webhook))

	logger.Info("delivery channels initialized",
		zap.Int("count", len(channels)),
		zap.Bool("webhook_configured", cfg.WebhookURL != ""),
	)

	return channels
}

// alertSources wires the watched counters for the alert collector.
func alertSources(cfg *config.Config, database *db.DB, redisClient *redis.Client, repo *db.Repository, hub *stream.Hub) []alerts.Source {
	sources := []alerts.Source{
		{
			Name: "notification_backlog",
			Collect: func(ctx context.Context) (float64, error) {
				n, err := repo.PendingCount(ctx)
				return float64(n), err
			},
			Threshold: float64(cfg.AlertBacklogThreshold),
		},
		{
			Name: "db_connections_acquired",
			Collect: func(ctx context.Context) (float64, error) {
				return float64(database.Pool().Stat().AcquiredConns()), nil
			},
			Threshold: float64(cfg.AlertDBConnThreshold),
		},
		{
			Name: "goroutines",
			Collect: func(ctx context.Context) (float64, error) {
				return float64(runtime.NumGoroutine()), nil
			},
			Threshold: float64(cfg.AlertGoroutineLimit),
		},
		{
			Name: "stream_connections",
			Collect: func(ctx context.Context) (float64, error) {
				return float64(hub.ActiveConnections()), nil
			},
			Threshold: cfg.AlertConnThreshold,
		},
	}

	if redisClient != nil {
		sources = append(sources, alerts.Source{
			Name: "redis_connections",
			Collect: func(ctx context.Context) (float64, error) {
				return float64(redisClient.PoolStats().TotalConns), nil
			},
		})
	}

	return sources
}
