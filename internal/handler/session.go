package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mtarnawa/hanashi/internal/credit"
	"github.com/mtarnawa/hanashi/internal/middleware"
	"github.com/mtarnawa/hanashi/internal/model"
	"github.com/mtarnawa/hanashi/internal/store"
	"github.com/mtarnawa/hanashi/internal/websocket"
)

type SessionHandler struct {
	ledger   *credit.Ledger
	sessions *store.SessionStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewSessionHandler(ledger *credit.Ledger, sessions *store.SessionStore, hub *websocket.Hub, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{ledger: ledger, sessions: sessions, hub: hub, logger: logger}
}

// owned loads the path session and checks it belongs to the caller. A
// session owned by someone else reads as not found.
func (h *SessionHandler) owned(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	a, ok := middleware.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return nil, false
	}

	s, err := h.sessions.GetByID(id)
	if err != nil {
		h.logger.Error("get session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if s == nil || s.AccountID != a.ID {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

// Create starts a new practice session against a content item.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		ContentID int64 `json:"content_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.ledger.IssueSession(a.ID, req.ContentID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Token mints (or re-returns) the session's access token.
func (h *SessionHandler) Token(w http.ResponseWriter, r *http.Request) {
	s, ok := h.owned(w, r)
	if !ok {
		return
	}

	token, expiresAt, err := h.ledger.IssueAccessToken(s.ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"expires_at":   expiresAt.UTC().Format(time.RFC3339),
	})
}

// Complete finalizes the session with its measured duration and returns the
// progression outcome.
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req struct {
		DurationSeconds int `json:"duration_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.ledger.FinalizeSession(s.ID, req.DurationSeconds)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	// A zero PowerGained means the call was absorbed as a no-op (retry or
	// lost race); only a real completion pushes live updates.
	if result.PowerGained > 0 {
		h.hub.SendTo(s.AccountID, websocket.Message{Type: websocket.TypeSessionCompleted, Payload: result})
		for _, badgeID := range result.BadgesUnlocked {
			h.hub.SendTo(s.AccountID, websocket.Message{
				Type:    websocket.TypeBadgeEarned,
				Payload: map[string]string{"badge_id": badgeID},
			})
		}
		if result.TierChanged {
			h.hub.SendTo(s.AccountID, websocket.Message{
				Type:    websocket.TypeTierChanged,
				Payload: map[string]string{"rank": result.Rank, "belt": result.Belt},
			})
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// Abandon ends the session without progression.
func (h *SessionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	s, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.ledger.AbandonSession(s.ID); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}

// Get returns the session's current state.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s)
}
