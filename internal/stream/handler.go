package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/bucket"
	"github.com/Kevynz/Vantracing-sub000/internal/metrics"
	"github.com/Kevynz/Vantracing-sub000/internal/session"
)

// Config tunes the stream loop.
type Config struct {
	// PollInterval is the safety-net drain cadence. Hub wakes cover
	// appends from this process; the poll covers appends written to the
	// shared bucket by other gateway replicas.
	PollInterval time.Duration

	// HeartbeatInterval is how often a heartbeat event is emitted so
	// clients and proxies know the connection is alive.
	HeartbeatInterval time.Duration
}

// Handler serves the live delivery endpoint.
type Handler struct {
	store  bucket.Store
	hub    *Hub
	config Config
	logger *zap.Logger
}

// NewHandler creates the stream handler.
func NewHandler(store bucket.Store, hub *Hub, cfg Config, logger *zap.Logger) *Handler {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}

	return &Handler{
		store:  store,
		hub:    hub,
		config: cfg,
		logger: logger,
	}
}

// Serve handles GET /v1/stream. The response is held open for the life
// of the client session; events are newline-delimited SSE frames.
//
// Delivery is at-most-once per drain: an entry handed to a connection
// that dies mid-write is gone from the live channel, but its database
// row remains the durable record.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing session", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support flushing")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	wake, unregister := h.hub.Register(id.UserID)
	defer unregister()

	metrics.StreamConnected()
	defer metrics.StreamDisconnected()

	h.logger.Info("stream connection opened",
		zap.Int64("user_id", id.UserID),
		zap.String("role", id.Role),
	)

	connectedAt := time.Now()
	if err := writeEvent(w, flusher, "connected", map[string]interface{}{
		"user_id":   id.UserID,
		"timestamp": connectedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		h.logger.Warn("stream closed before connected event", zap.Error(err))
		return
	}

	ctx := r.Context()

	// Anything queued while the user was offline goes out first.
	if closed := h.drain(ctx, w, flusher, id.UserID); closed {
		return
	}

	poll := time.NewTicker(h.config.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(h.config.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("stream connection closed",
				zap.Int64("user_id", id.UserID),
				zap.Duration("duration", time.Since(connectedAt)),
			)
			return

		case <-wake:
			if closed := h.drain(ctx, w, flusher, id.UserID); closed {
				return
			}

		case <-poll.C:
			if closed := h.drain(ctx, w, flusher, id.UserID); closed {
				return
			}

		case <-heartbeat.C:
			err := writeEvent(w, flusher, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				h.logger.Info("stream connection closed on heartbeat",
					zap.Int64("user_id", id.UserID),
				)
				return
			}
		}
	}
}

// drain empties the user's bucket onto the wire. A bucket read failure is
// logged and swallowed; the loop simply tries again next cycle. Returns
// true once the connection is unwritable.
func (h *Handler) drain(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, userID int64) bool {
	entries, err := h.store.Drain(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		h.logger.Warn("bucket drain failed, will retry next cycle",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		return false
	}

	metrics.RecordBucketDrain(len(entries))

	for _, entry := range entries {
		if err := writeRawEvent(w, flusher, entry.Event, entry.Data); err != nil {
			// The remaining entries of this drain are lost from the
			// live channel; their rows stay queryable as sent.
			h.logger.Info("stream connection closed mid-drain",
				zap.Int64("user_id", userID),
				zap.String("notification_id", entry.ID),
			)
			return true
		}
	}

	return false
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return writeRawEvent(w, flusher, event, payload)
}

func writeRawEvent(w http.ResponseWriter, flusher http.Flusher, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	metrics.RecordStreamEvent(event)
	return nil
}
