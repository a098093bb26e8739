package mw

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/restockai/voiceline/pkg/gateway/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calls", nil))
	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("generated id = %q", seen)
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("header = %q, context = %q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/calls", nil)
	req.Header.Set("X-Request-ID", "req_caller_supplied")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "req_caller_supplied" {
		t.Fatalf("caller id not propagated: %q", seen)
	}
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	h := Recover(discardLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	cfg := config.Config{AuthMode: config.AuthModeDisabled}
	rec := httptest.NewRecorder()
	Auth(cfg, okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calls", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	cfg := config.Config{
		AuthMode: config.AuthModeRequired,
		APIKeys:  map[string]struct{}{"good-key": {}},
	}
	h := Auth(cfg, okHandler())

	// Missing token.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calls", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", rec.Code)
	}
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || env.Error == nil {
		t.Fatalf("error envelope = %s", rec.Body.String())
	}
	if env.Error.Param != "Authorization" {
		t.Fatalf("param = %q", env.Error.Param)
	}

	// Wrong token.
	req := httptest.NewRequest(http.MethodGet, "/api/calls", nil)
	req.Header.Set("Authorization", "Bearer bad-key")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", rec.Code)
	}

	// Valid token.
	req = httptest.NewRequest(http.MethodGet, "/api/calls", nil)
	req.Header.Set("Authorization", "Bearer good-key")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("good token status = %d", rec.Code)
	}
}

func TestAuthExemptsCarrierRoutes(t *testing.T) {
	cfg := config.Config{
		AuthMode: config.AuthModeRequired,
		APIKeys:  map[string]struct{}{"good-key": {}},
	}
	h := Auth(cfg, okHandler())

	for _, path := range []string{
		"/webhooks/voice/answer?call_id=c1",
		"/audio/tts_1.mp3",
		"/healthz",
		"/readyz",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want exempt", path, rec.Code)
		}
	}
}

func TestAuthOptionalAllowsAnonymousButRejectsBadKey(t *testing.T) {
	cfg := config.Config{
		AuthMode: config.AuthModeOptional,
		APIKeys:  map[string]struct{}{"good-key": {}},
	}
	h := Auth(cfg, okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calls", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/calls", nil)
	req.Header.Set("Authorization", "Bearer bad-key")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad key status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.Config{
		CORSAllowedOrigins: map[string]struct{}{"https://ops.example.com": {}},
	}
	h := CORS(cfg, okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/calls", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Fatalf("allow-methods = %q", got)
	}

	// Unknown origin is denied.
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unknown origin status = %d", rec.Code)
	}
}

func TestCORSSimpleRequestExposesHeaders(t *testing.T) {
	cfg := config.Config{
		CORSAllowedOrigins: map[string]struct{}{"https://ops.example.com": {}},
	}
	h := CORS(cfg, okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/calls", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Fatalf("expose-headers = %q", got)
	}

	// Disabled CORS adds nothing.
	h = CORS(config.Config{}, okHandler())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin = %q with cors disabled", got)
	}
}
