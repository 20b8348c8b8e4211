package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/session"
)

func TestIdentityMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		role           string
		expectedStatus int
	}{
		{"valid identity", "42", "guardian", http.StatusOK},
		{"missing user id", "", "guardian", http.StatusUnauthorized},
		{"missing role", "42", "", http.StatusUnauthorized},
		{"non-numeric user id", "abc", "guardian", http.StatusUnauthorized},
		{"non-positive user id", "0", "guardian", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIdentity session.Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotIdentity, _ = session.FromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			handler := IdentityMiddleware(zap.NewNop())(next)

			req := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
			if tt.userID != "" {
				req.Header.Set("X-User-ID", tt.userID)
			}
			if tt.role != "" {
				req.Header.Set("X-User-Role", tt.role)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}

			if tt.expectedStatus == http.StatusOK {
				if gotIdentity.UserID != 42 || gotIdentity.Role != "guardian" {
					t.Errorf("identity not propagated: %+v", gotIdentity)
				}
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireRole(session.RoleAdmin)(next)

	tests := []struct {
		name           string
		identity       *session.Identity
		expectedStatus int
	}{
		{"admin passes", &session.Identity{UserID: 1, Role: session.RoleAdmin}, http.StatusOK},
		{"guardian rejected", &session.Identity{UserID: 2, Role: session.RoleGuardian}, http.StatusForbidden},
		{"no identity rejected", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/notifications/stats", nil)
			if tt.identity != nil {
				req = req.WithContext(session.WithIdentity(req.Context(), *tt.identity))
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimitMiddleware(nil, zap.NewNop(), UserKeyFunc)(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("nil limiter should pass requests through")
	}
}

func TestUserKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(session.WithIdentity(req.Context(), session.Identity{UserID: 42, Role: "guardian"}))

	if key := UserKeyFunc(req); key != "user:42" {
		t.Errorf("expected user:42, got %s", key)
	}

	// Without a session the key falls back to the client IP.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	if key := UserKeyFunc(req); key != "ip:203.0.113.9" {
		t.Errorf("expected ip:203.0.113.9, got %s", key)
	}
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:1234"

	if key := IPKeyFunc(req); key != "ip:198.51.100.7:1234" {
		t.Errorf("expected remote addr key, got %s", key)
	}

	req.Header.Set("X-Real-IP", "203.0.113.9")
	if key := IPKeyFunc(req); key != "ip:203.0.113.9" {
		t.Errorf("expected X-Real-IP key, got %s", key)
	}

	req.Header.Set("X-Forwarded-For", "192.0.2.1")
	if key := IPKeyFunc(req); key != "ip:192.0.2.1" {
		t.Errorf("expected X-Forwarded-For key, got %s", key)
	}
}
