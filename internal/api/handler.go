package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/apperrors"
	"github.com/Kevynz/Vantracing-sub000/internal/db"
	"github.com/Kevynz/Vantracing-sub000/internal/metrics"
	"github.com/Kevynz/Vantracing-sub000/internal/notify"
	"github.com/Kevynz/Vantracing-sub000/internal/session"
)

// Repository defines the store operations the handlers need.
type Repository interface {
	UpsertLocation(ctx context.Context, loc *db.DriverLocation) error
	GetLocation(ctx context.Context, driverID int64) (*db.DriverLocation, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int, unreadOnly bool) ([]*db.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, ids []uuid.UUID, userID int64) (int64, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Stats(ctx context.Context) (*db.NotificationStats, error)
}

// Sender is the dispatcher surface used by the privileged send endpoint.
type Sender interface {
	Send(ctx context.Context, userIDs []int64, in notify.Input) ([]uuid.UUID, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	logger     *zap.Logger
	repo       Repository
	dispatcher Sender
}

// NewHandler creates a new API handler.
func NewHandler(logger *zap.Logger, repo Repository, dispatcher Sender) *Handler {
	return &Handler{
		logger:     logger,
		repo:       repo,
		dispatcher: dispatcher,
	}
}

// response is the envelope every endpoint answers with.
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PostLocation handles POST /v1/drivers/location. The driver id comes
// from the session; the coordinates arrive form-encoded from the driver
// app.
func (h *Handler) PostLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing session")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}

	latStr := r.PostFormValue("lat")
	lngStr := r.PostFormValue("lng")
	if latStr == "" || lngStr == "" {
		h.writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "lat must be a number")
		return
	}

	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "lng must be a number")
		return
	}

	loc := &db.DriverLocation{
		DriverID:  id.UserID,
		Latitude:  lat,
		Longitude: lng,
	}

	if accStr := r.PostFormValue("accuracy"); accStr != "" {
		acc, err := strconv.ParseFloat(accStr, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "accuracy must be a number")
			return
		}
		loc.Accuracy = &acc
	}

	if err := h.repo.UpsertLocation(r.Context(), loc); err != nil {
		h.logger.Error("failed to update driver location",
			zap.Error(err),
			zap.Int64("driver_id", id.UserID),
		)
		h.writeError(w, apperrors.HTTPStatus(err), "failed to update location")
		return
	}

	metrics.RecordLocationUpdate()

	h.writeJSON(w, http.StatusOK, response{Success: true})
}

// GetLocation handles GET /v1/drivers/{driverID}/location.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	driverID, err := strconv.ParseInt(chi.URLParam(r, "driverID"), 10, 64)
	if err != nil || driverID <= 0 {
		h.writeError(w, http.StatusBadRequest, "driver id must be a positive integer")
		return
	}

	loc, err := h.repo.GetLocation(r.Context(), driverID)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatus(err), "no location reported for driver")
		return
	}

	h.writeJSON(w, http.StatusOK, response{Success: true, Data: loc})
}

// ListNotifications handles GET /v1/notifications?limit=20&offset=0&unread_only=true.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing session")
		return
	}

	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	notifications, err := h.repo.ListByUser(r.Context(), id.UserID, limit, offset, unreadOnly)
	if err != nil {
		h.logger.Error("failed to list notifications",
			zap.Error(err),
			zap.Int64("user_id", id.UserID),
		)
		h.writeError(w, apperrors.HTTPStatus(err), "failed to list notifications")
		return
	}

	h.writeJSON(w, http.StatusOK, response{
		Success: true,
		Data: map[string]interface{}{
			"notifications": notifications,
			"limit":         limit,
			"offset":        offset,
			"count":         len(notifications),
		},
	})
}

// UnreadCount handles GET /v1/notifications/unread_count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing session")
		return
	}

	count, err := h.repo.UnreadCount(r.Context(), id.UserID)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatus(err), "failed to count unread notifications")
		return
	}

	h.writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]int64{"unread": count},
	})
}

// MarkRead handles POST /v1/notifications/read with a batch of ids.
// Re-marking an already-read notification is a no-op, so repeated calls
// report zero updated.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing session")
		return
	}

	var req struct {
		IDs []string `json:"ids"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	if len(req.IDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "ids must be valid UUIDs")
			return
		}
		ids = append(ids, parsed)
	}

	updated, err := h.repo.MarkRead(r.Context(), ids, id.UserID)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatus(err), "failed to mark notifications read")
		return
	}

	h.writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]int64{"updated": updated},
	})
}

// MarkAllRead handles POST /v1/notifications/read_all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing session")
		return
	}

	updated, err := h.repo.MarkAllRead(r.Context(), id.UserID)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatus(err), "failed to mark notifications read")
		return
	}

	h.writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    map[string]int64{"updated": updated},
	})
}

// sendRequest is the privileged send endpoint's body.
type sendRequest struct {
	UserIDs  []int64         `json:"user_ids"`
	Type     string          `json:"type"`
	Title    string          `json:"title"`
	Message  string          `json:"message"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Priority string          `json:"priority,omitempty"`
	Channels []string        `json:"channels,omitempty"`
	TTL      string          `json:"ttl,omitempty"` // Go duration, e.g. "24h"
}

// SendNotification handles POST /v1/notifications/send (admin only).
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	if len(req.Payload) > 0 && !json.Valid(req.Payload) {
		h.writeError(w, http.StatusBadRequest, "payload must be valid JSON")
		return
	}

	opts := notify.Options{
		Priority: req.Priority,
		Channels: req.Channels,
	}

	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "ttl must be a positive duration")
			return
		}
		expires := time.Now().Add(d)
		opts.ExpiresAt = &expires
	}

	ids, err := h.dispatcher.Send(r.Context(), req.UserIDs, notify.Input{
		Type:    req.Type,
		Title:   req.Title,
		Message: req.Message,
		Payload: req.Payload,
		Options: opts,
	})
	if err != nil {
		h.logger.Error("failed to send notification", zap.Error(err))
		h.writeError(w, apperrors.HTTPStatus(err), err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, response{
		Success: true,
		Data:    map[string]interface{}{"notification_ids": ids},
	})
}

// Stats handles GET /v1/notifications/stats (admin only).
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.writeError(w, apperrors.HTTPStatus(err), "failed to aggregate stats")
		return
	}

	h.writeJSON(w, http.StatusOK, response{Success: true, Data: stats})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, response{Success: false, Error: msg})
}
