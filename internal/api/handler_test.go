package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/apperrors"
	"github.com/Kevynz/Vantracing-sub000/internal/db"
	"github.com/Kevynz/Vantracing-sub000/internal/notify"
	"github.com/Kevynz/Vantracing-sub000/internal/session"
)

var errDatabase = errors.New("database error")

// MockRepository is a fake store for handler tests.
type MockRepository struct {
	locations     map[int64]*db.DriverLocation
	notifications map[string]*db.Notification
	unread        int64
	markedRead    map[string]bool

	shouldFail bool
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		locations:     make(map[int64]*db.DriverLocation),
		notifications: make(map[string]*db.Notification),
		markedRead:    make(map[string]bool),
	}
}

func (m *MockRepository) UpsertLocation(ctx context.Context, loc *db.DriverLocation) error {
	if m.shouldFail {
		return apperrors.Storage("upsert_location", errDatabase)
	}
	loc.UpdatedAt = time.Now()
	m.locations[loc.DriverID] = loc
	return nil
}

func (m *MockRepository) GetLocation(ctx context.Context, driverID int64) (*db.DriverLocation, error) {
	if m.shouldFail {
		return nil, apperrors.Storage("get_location", errDatabase)
	}
	loc, ok := m.locations[driverID]
	if !ok {
		return nil, apperrors.NotFound("driver location")
	}
	return loc, nil
}

func (m *MockRepository) ListByUser(ctx context.Context, userID int64, limit, offset int, unreadOnly bool) ([]*db.Notification, error) {
	if m.shouldFail {
		return nil, apperrors.Storage("list", errDatabase)
	}
	var result []*db.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (m *MockRepository) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	if m.shouldFail {
		return 0, apperrors.Storage("unread_count", errDatabase)
	}
	return m.unread, nil
}

func (m *MockRepository) MarkRead(ctx context.Context, ids []uuid.UUID, userID int64) (int64, error) {
	if m.shouldFail {
		return 0, apperrors.Storage("mark_read", errDatabase)
	}
	var updated int64
	for _, id := range ids {
		n, ok := m.notifications[id.String()]
		if !ok || n.UserID != userID || m.markedRead[id.String()] {
			continue
		}
		m.markedRead[id.String()] = true
		updated++
	}
	return updated, nil
}

func (m *MockRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	if m.shouldFail {
		return 0, apperrors.Storage("mark_all_read", errDatabase)
	}
	var updated int64
	for _, n := range m.notifications {
		if n.UserID == userID && !m.markedRead[n.ID.String()] {
			m.markedRead[n.ID.String()] = true
			updated++
		}
	}
	return updated, nil
}

func (m *MockRepository) Stats(ctx context.Context) (*db.NotificationStats, error) {
	if m.shouldFail {
		return nil, apperrors.Storage("stats", errDatabase)
	}
	return &db.NotificationStats{}, nil
}

// mockSender records send calls.
type mockSender struct {
	userIDs []int64
	input   notify.Input
	err     error
}

func (m *mockSender) Send(ctx context.Context, userIDs []int64, in notify.Input) ([]uuid.UUID, error) {
	m.userIDs = userIDs
	m.input = in
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]uuid.UUID, len(userIDs))
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids, nil
}

func newTestRouter(repo Repository, sender Sender) *chi.Mux {
	h := NewHandler(zap.NewNop(), repo, sender)

	r := chi.NewRouter()
	r.Post("/v1/drivers/location", h.PostLocation)
	r.Get("/v1/drivers/{driverID}/location", h.GetLocation)
	r.Get("/v1/notifications", h.ListNotifications)
	r.Get("/v1/notifications/unread_count", h.UnreadCount)
	r.Post("/v1/notifications/read", h.MarkRead)
	r.Post("/v1/notifications/read_all", h.MarkAllRead)
	r.Post("/v1/notifications/send", h.SendNotification)
	r.Get("/v1/notifications/stats", h.Stats)
	return r
}

func withSession(req *http.Request, userID int64, role string) *http.Request {
	ctx := session.WithIdentity(req.Context(), session.Identity{UserID: userID, Role: role})
	return req.WithContext(ctx)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestPostLocation(t *testing.T) {
	tests := []struct {
		name           string
		form           url.Values
		withIdentity   bool
		expectedStatus int
	}{
		{
			name:           "valid update",
			form:           url.Values{"lat": {"12.9716"}, "lng": {"77.5946"}, "accuracy": {"8.5"}},
			withIdentity:   true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid without accuracy",
			form:           url.Values{"lat": {"12.9716"}, "lng": {"77.5946"}},
			withIdentity:   true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing coordinates",
			form:           url.Values{"lat": {"12.9716"}},
			withIdentity:   true,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "non-numeric latitude",
			form:           url.Values{"lat": {"north"}, "lng": {"77.5946"}},
			withIdentity:   true,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "no session",
			form:           url.Values{"lat": {"12.9716"}, "lng": {"77.5946"}},
			withIdentity:   false,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockRepository()
			router := newTestRouter(repo, &mockSender{})

			req := httptest.NewRequest(http.MethodPost, "/v1/drivers/location",
				strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.withIdentity {
				req = withSession(req, 42, session.RoleDriver)
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}

			if tt.expectedStatus == http.StatusOK {
				if repo.locations[42] == nil {
					t.Fatal("location was not stored")
				}
			}
		})
	}
}

func TestLocationPushThenRead(t *testing.T) {
	repo := NewMockRepository()
	router := newTestRouter(repo, &mockSender{})

	form := url.Values{"lat": {"12.9716"}, "lng": {"77.5946"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/drivers/location",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = withSession(req, 42, session.RoleDriver)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("push failed with status %d", rec.Code)
	}

	// A guardian reads the latest position back.
	req = httptest.NewRequest(http.MethodGet, "/v1/drivers/42/location", nil)
	req = withSession(req, 9, session.RoleGuardian)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("read failed with status %d", rec.Code)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Fatal("expected success response")
	}
}

func TestGetLocation(t *testing.T) {
	repo := NewMockRepository()
	repo.locations[42] = &db.DriverLocation{DriverID: 42, Latitude: 12.9, Longitude: 77.5}
	router := newTestRouter(repo, &mockSender{})

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"known driver", "/v1/drivers/42/location", http.StatusOK},
		{"unknown driver", "/v1/drivers/99/location", http.StatusNotFound},
		{"non-numeric id", "/v1/drivers/abc/location", http.StatusBadRequest},
		{"negative id", "/v1/drivers/-1/location", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withSession(httptest.NewRequest(http.MethodGet, tt.path, nil), 9, session.RoleGuardian)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func TestMarkRead_Idempotent(t *testing.T) {
	repo := NewMockRepository()
	id := uuid.New()
	repo.notifications[id.String()] = &db.Notification{ID: id, UserID: 9}
	router := newTestRouter(repo, &mockSender{})

	body, _ := json.Marshal(map[string][]string{"ids": {id.String()}})

	// First call marks the row.
	req := withSession(httptest.NewRequest(http.MethodPost, "/v1/notifications/read",
		bytes.NewReader(body)), 9, session.RoleGuardian)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	if data["updated"].(float64) != 1 {
		t.Fatalf("expected 1 updated, got %v", data["updated"])
	}

	// Second call is a no-op.
	req = withSession(httptest.NewRequest(http.MethodPost, "/v1/notifications/read",
		bytes.NewReader(body)), 9, session.RoleGuardian)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("repeat mark read should still be 200, got %d", rec.Code)
	}
	resp = decodeResponse(t, rec)
	data = resp.Data.(map[string]interface{})
	if data["updated"].(float64) != 0 {
		t.Errorf("expected 0 updated on repeat, got %v", data["updated"])
	}
}

func TestMarkRead_Validation(t *testing.T) {
	router := newTestRouter(NewMockRepository(), &mockSender{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{"},
		{"empty ids", `{"ids":[]}`},
		{"invalid uuid", `{"ids":["not-a-uuid"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withSession(httptest.NewRequest(http.MethodPost, "/v1/notifications/read",
				strings.NewReader(tt.body)), 9, session.RoleGuardian)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestUnreadCount(t *testing.T) {
	repo := NewMockRepository()
	repo.unread = 4
	router := newTestRouter(repo, &mockSender{})

	req := withSession(httptest.NewRequest(http.MethodGet, "/v1/notifications/unread_count", nil),
		9, session.RoleGuardian)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	if data["unread"].(float64) != 4 {
		t.Errorf("expected unread 4, got %v", data["unread"])
	}
}

func TestSendNotification(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		senderErr      error
		expectedStatus int
	}{
		{
			name:           "valid send",
			body:           `{"user_ids":[1,2],"type":"pickup_alert","title":"Van arriving","channels":["live"]}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "valid with ttl",
			body:           `{"user_ids":[1],"type":"pickup_alert","title":"Van arriving","ttl":"24h"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "malformed body",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid ttl",
			body:           `{"user_ids":[1],"type":"pickup_alert","title":"t","ttl":"soon"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid payload json",
			body:           `{"user_ids":[1],"type":"pickup_alert","title":"t","payload":{`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "dispatcher validation error",
			body:           `{"user_ids":[],"type":"pickup_alert","title":"t"}`,
			senderErr:      apperrors.Validation("user_ids", "must not be empty"),
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{err: tt.senderErr}
			router := newTestRouter(NewMockRepository(), sender)

			req := withSession(httptest.NewRequest(http.MethodPost, "/v1/notifications/send",
				strings.NewReader(tt.body)), 1, session.RoleAdmin)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}

			if tt.expectedStatus == http.StatusCreated {
				resp := decodeResponse(t, rec)
				data := resp.Data.(map[string]interface{})
				if _, ok := data["notification_ids"]; !ok {
					t.Error("expected notification_ids in response")
				}
			}
		})
	}
}

func TestSendNotification_ParsesTTL(t *testing.T) {
	sender := &mockSender{}
	router := newTestRouter(NewMockRepository(), sender)

	body := `{"user_ids":[1],"type":"pickup_alert","title":"t","ttl":"1h"}`
	req := withSession(httptest.NewRequest(http.MethodPost, "/v1/notifications/send",
		strings.NewReader(body)), 1, session.RoleAdmin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if sender.input.Options.ExpiresAt == nil {
		t.Fatal("expected expiry to be set from ttl")
	}
	until := time.Until(*sender.input.Options.ExpiresAt)
	if until < 59*time.Minute || until > 61*time.Minute {
		t.Errorf("expiry should be about an hour out, got %s", until)
	}
}

func TestStats_StorageError(t *testing.T) {
	repo := NewMockRepository()
	repo.shouldFail = true
	router := newTestRouter(repo, &mockSender{})

	req := withSession(httptest.NewRequest(http.MethodGet, "/v1/notifications/stats", nil),
		1, session.RoleAdmin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Error("expected success false")
	}
}
