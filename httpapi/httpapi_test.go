package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/config"
	"github.com/launchsentinel/core/envguard"
	"github.com/launchsentinel/core/eventbus"
	"github.com/launchsentinel/core/runledger"
	"github.com/launchsentinel/core/sessionkey"
)

func testDeps(t *testing.T, adminKey string) Deps {
	t.Helper()
	logger := zerolog.Nop()
	cfg := &config.Config{
		AdminAPIKey:        adminKey,
		MaxBodyBytes:       1 * 1024 * 1024,
		CORSAllowedOrigins: []string{"*"},
		InitialMode:        config.ModeAutonomous,
	}
	guard := envguard.New(cfg, logger)
	var sealKey [32]byte
	sessions := sessionkey.NewManager(guard, sealKey, logger)
	return Deps{
		Config:    cfg,
		Guard:     guard,
		Sessions:  sessions,
		RunLedger: runledger.NewLedger(logger),
		Bus:       eventbus.New(logger),
		Logger:    logger,
	}
}

func TestHealthzAndReady(t *testing.T) {
	srv := NewServer(testDeps(t, ""))

	for _, path := range []string{"/healthz", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRunsListEmpty(t *testing.T) {
	srv := NewServer(testDeps(t, ""))

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no runs, got %d", len(out))
	}
}

func TestRunsGetNotFound(t *testing.T) {
	srv := NewServer(testDeps(t, ""))

	req := httptest.NewRequest(http.MethodGet, "/runs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminRoutesAbsentWithoutKey(t *testing.T) {
	srv := NewServer(testDeps(t, ""))

	req := httptest.NewRequest(http.MethodPost, "/admin/kill-switch/engage", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected admin routes to be unmounted without a configured key, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	srv := NewServer(testDeps(t, "topsecret"))

	req := httptest.NewRequest(http.MethodPost, "/admin/kill-switch/engage", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatalf("expected request without credentials to be rejected, got %d", rec.Code)
	}
}

func TestAdminKillSwitchEngageAndDisengage(t *testing.T) {
	deps := testDeps(t, "topsecret")
	srv := NewServer(deps)

	engage := httptest.NewRequest(http.MethodPost, "/admin/kill-switch/engage", bytes.NewBufferString(`{"reason":"test stop"}`))
	engage.Header.Set("Authorization", "topsecret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, engage)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	disengage := httptest.NewRequest(http.MethodPost, "/admin/kill-switch/disengage", nil)
	disengage.Header.Set("Authorization", "topsecret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, disengage)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSetModeRejectsUnknownMode(t *testing.T) {
	srv := NewServer(testDeps(t, "topsecret"))

	req := httptest.NewRequest(http.MethodPost, "/admin/mode", bytes.NewBufferString(`{"mode":"not_a_real_mode"}`))
	req.Header.Set("Authorization", "topsecret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminSetModeAccepted(t *testing.T) {
	srv := NewServer(testDeps(t, "topsecret"))

	req := httptest.NewRequest(http.MethodPost, "/admin/mode", bytes.NewBufferString(`{"mode":"READONLY"}`))
	req.Header.Set("Authorization", "topsecret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSessionLifecycle(t *testing.T) {
	srv := NewServer(testDeps(t, "topsecret"))

	createBody, _ := json.Marshal(map[string]interface{}{
		"totalBudgetWei": 1_000_000,
		"velocityCapWei": 100_000,
		"expirySeconds":  3600,
		"allowedTargets": []string{"0xabc"},
	})
	create := httptest.NewRequest(http.MethodPost, "/admin/sessions", bytes.NewReader(createBody))
	create.Header.Set("Authorization", "topsecret")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a session id")
	}

	rotate := httptest.NewRequest(http.MethodPost, "/admin/sessions/"+created.ID+"/rotate", nil)
	rotate.Header.Set("Authorization", "topsecret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, rotate)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 rotating session, got %d: %s", rec.Code, rec.Body.String())
	}
	var rotated struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decode rotate response: %v", err)
	}

	revoke := httptest.NewRequest(http.MethodPost, "/admin/sessions/"+rotated.ID+"/revoke", bytes.NewBufferString(`{"reason":"done testing"}`))
	revoke.Header.Set("Authorization", "topsecret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, revoke)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 revoking session, got %d: %s", rec.Code, rec.Body.String())
	}

	revokeUnknown := httptest.NewRequest(http.MethodPost, "/admin/sessions/does-not-exist/revoke", bytes.NewBufferString(`{"reason":"no such session"}`))
	revokeUnknown.Header.Set("Authorization", "topsecret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, revokeUnknown)
	if rec.Code == http.StatusOK {
		t.Fatalf("expected revoking an unknown session to fail, got 200")
	}
}

func TestMaxBodySizeRejectsOversizedRequest(t *testing.T) {
	deps := testDeps(t, "topsecret")
	deps.Config.MaxBodyBytes = 16
	srv := NewServer(deps)

	oversized := bytes.Repeat([]byte("a"), 1024)
	req := httptest.NewRequest(http.MethodPost, "/admin/mode", bytes.NewReader(oversized))
	req.Header.Set("Authorization", "topsecret")
	req.ContentLength = int64(len(oversized))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
