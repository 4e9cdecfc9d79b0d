package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mtarnawa/hanashi/internal/database"
	"github.com/mtarnawa/hanashi/internal/model"
	"github.com/mtarnawa/hanashi/internal/store"
)

func setupTestServer(t *testing.T) (*Server, http.Handler, *store.AccountStore, *store.ContentStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, Config{
		TokenSecret: "test-secret",
		RateLimit:   100,
		RateWindow:  time.Minute,
	}, logger)
	return srv, srv.Router(), store.NewAccountStore(db), store.NewContentStore(db)
}

func doJSON(t *testing.T, router http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	_, router, _, _ := setupTestServer(t)

	rec := doJSON(t, router, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAPIRequiresIdentity(t *testing.T) {
	_, router, _, _ := setupTestServer(t)

	rec := doJSON(t, router, "GET", "/api/entitlement", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	_, router, accounts, contents := setupTestServer(t)

	// First request auto-creates the account; give it credits to play with.
	rec := doJSON(t, router, "GET", "/api/entitlement", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("entitlement status = %d, want 200", rec.Code)
	}
	a, err := accounts.GetByExternalID("alice")
	if err != nil || a == nil {
		t.Fatalf("account not created: %v", err)
	}
	if _, err := accounts.GrantTrialPackage(a.ID, 10, 1); err != nil {
		t.Fatalf("grant credits: %v", err)
	}

	trial, err := contents.ListTrial()
	if err != nil || len(trial) == 0 {
		t.Fatalf("no trial content: %v", err)
	}

	// Start a session.
	rec = doJSON(t, router, "POST", "/api/sessions", "alice", map[string]any{"content_id": trial[0].ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body %s", rec.Code, rec.Body.String())
	}
	sess := decode[model.Session](t, rec)
	if sess.Status != model.SessionPending {
		t.Errorf("session status = %q, want pending", sess.Status)
	}

	// Mint the access token.
	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/sessions/%d/token", sess.ID), "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d, body %s", rec.Code, rec.Body.String())
	}
	tokenResp := decode[map[string]string](t, rec)
	if tokenResp["access_token"] == "" {
		t.Error("empty access token")
	}

	// Complete it.
	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/sessions/%d/complete", sess.ID), "alice",
		map[string]any{"duration_seconds": 80})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decode[map[string]any](t, rec)
	if result["power_gained"].(float64) <= 0 {
		t.Errorf("power gained = %v, want > 0", result["power_gained"])
	}

	// Progression reflects it.
	rec = doJSON(t, router, "GET", "/api/progression", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("progression status = %d", rec.Code)
	}
	prog := decode[map[string]any](t, rec)
	if prog["current_streak"].(float64) != 1 {
		t.Errorf("streak = %v, want 1", prog["current_streak"])
	}
	if prog["total_sessions"].(float64) != 1 {
		t.Errorf("total sessions = %v, want 1", prog["total_sessions"])
	}
}

func TestSessionNotVisibleAcrossAccounts(t *testing.T) {
	_, router, accounts, contents := setupTestServer(t)

	doJSON(t, router, "GET", "/api/entitlement", "alice", nil)
	a, _ := accounts.GetByExternalID("alice")
	accounts.GrantTrialPackage(a.ID, 10, 1)

	trial, _ := contents.ListTrial()
	rec := doJSON(t, router, "POST", "/api/sessions", "alice", map[string]any{"content_id": trial[0].ID})
	sess := decode[model.Session](t, rec)

	// Another user cannot touch it.
	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/sessions/%d/token", sess.ID), "mallory", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign token status = %d, want 404", rec.Code)
	}
}

func TestCreateSessionWithoutCredit(t *testing.T) {
	_, router, _, contents := setupTestServer(t)

	trial, _ := contents.ListTrial()
	rec := doJSON(t, router, "POST", "/api/sessions", "broke", map[string]any{"content_id": trial[0].ID})
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", rec.Code)
	}
}

func TestTrialCannotStartPaidContent(t *testing.T) {
	_, router, accounts, contents := setupTestServer(t)

	doJSON(t, router, "GET", "/api/entitlement", "alice", nil)
	a, _ := accounts.GetByExternalID("alice")
	accounts.GrantTrialPackage(a.ID, 10, 1)

	all, _ := contents.List()
	var paidID int64
	for _, c := range all {
		if c.Tier == "paid" {
			paidID = c.ID
			break
		}
	}

	rec := doJSON(t, router, "POST", "/api/sessions", "alice", map[string]any{"content_id": paidID})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestContentListFilteredByPlan(t *testing.T) {
	_, router, accounts, _ := setupTestServer(t)

	rec := doJSON(t, router, "GET", "/api/content", "trialuser", nil)
	trialView := decode[map[string][]model.ContentItem](t, rec)

	a, _ := accounts.GetByExternalID("trialuser")
	accounts.ActivatePaidPlan(a.ID, "sub_1", 3000)

	rec = doJSON(t, router, "GET", "/api/content", "trialuser", nil)
	paidView := decode[map[string][]model.ContentItem](t, rec)

	if len(trialView["items"]) == 0 || len(paidView["items"]) <= len(trialView["items"]) {
		t.Errorf("trial sees %d items, paid sees %d; want paid > trial > 0",
			len(trialView["items"]), len(paidView["items"]))
	}
}

func TestLeaderboardEndpoints(t *testing.T) {
	_, router, accounts, _ := setupTestServer(t)

	doJSON(t, router, "GET", "/api/entitlement", "u1", nil)
	doJSON(t, router, "GET", "/api/entitlement", "u2", nil)
	a, _ := accounts.GetByExternalID("u1")
	accounts.ApplyProgression(a.ID, 500, 1, 1, 1.0, "2025-06-01", 5)

	rec := doJSON(t, router, "GET", "/api/leaderboard", "u2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard status = %d", rec.Code)
	}

	rec = doJSON(t, router, "GET", "/api/leaderboard/me", "u2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard/me status = %d", rec.Code)
	}
	me := decode[map[string]any](t, rec)
	if me["rank"].(float64) != 2 {
		t.Errorf("rank = %v, want 2", me["rank"])
	}
}

func TestRateLimitHeadersPresent(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := New(db, Config{
		TokenSecret: "test-secret",
		RateLimit:   2,
		RateWindow:  time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := srv.Router()

	doJSON(t, router, "GET", "/api/entitlement", "alice", nil)
	doJSON(t, router, "GET", "/api/entitlement", "alice", nil)

	rec := doJSON(t, router, "GET", "/api/entitlement", "alice", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("missing reset header")
	}
}
