package auth

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) == "" && strings.HasPrefix(r.URL.Path, "/api/") {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerReadsAlerts(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, RoleViewer)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_StreamTokenFromQuery(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, RoleViewer)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/alerts/stream?access_token="+token, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerForbiddenExport(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, RoleViewer)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/node-1/readings/export.pdf", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"}))
	for _, path := range []string{"/healthz", "/metrics", "/ingest/readings"} {
		resp := httptest.NewRecorder()
		mw.Wrap(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected %s exempt, got %d", path, resp.Code)
		}
	}
}

func TestParseJWTRejectsWrongSecretAndRole(t *testing.T) {
	token := mustToken(t, []byte("secret-a"), RoleAdmin)
	if _, err := ParseJWT(token, []byte("secret-b")); err == nil {
		t.Fatalf("expected signature error")
	}
	if _, err := IssueJWT([]byte("secret-a"), Role("root"), "user-1", time.Hour); err == nil {
		t.Fatalf("expected invalid role error")
	}
}

func TestIngestAuthMiddleware(t *testing.T) {
	secret := []byte("ingest-secret")
	now := time.Unix(1700000000, 0)
	mw := NewIngestAuthMiddleware(secret, time.Minute)
	mw.now = func() time.Time { return now }
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	body := `{"deviceId":"node-1"}`
	ts := strconv.FormatInt(now.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body))
	req.Header.Set("X-Ingest-Timestamp", ts)
	req.Header.Set("X-Ingest-Signature", SignIngest(secret, ts, []byte(body)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body))
	req.Header.Set("X-Ingest-Timestamp", ts)
	req.Header.Set("X-Ingest-Signature", "deadbeef")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	stale := strconv.FormatInt(now.Add(-time.Hour).Unix(), 10)
	req = httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body))
	req.Header.Set("X-Ingest-Timestamp", stale)
	req.Header.Set("X-Ingest-Signature", SignIngest(secret, stale, []byte(body)))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale signature, got %d", resp.Code)
	}
}

func mustToken(t *testing.T, secret []byte, role Role) string {
	t.Helper()
	token, err := IssueJWT(secret, role, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
