package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mtarnawa/hanashi/internal/middleware"
	"github.com/mtarnawa/hanashi/internal/push"
	"github.com/mtarnawa/hanashi/internal/store"
)

type PushHandler struct {
	service *push.Service
	store   *store.PushStore
	logger  *slog.Logger
}

func NewPushHandler(service *push.Service, pushStore *store.PushStore, logger *slog.Logger) *PushHandler {
	return &PushHandler{service: service, store: pushStore, logger: logger}
}

// VAPIDKey returns the public key clients need to subscribe.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// Subscribe registers a browser push subscription for streak reminders.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "incomplete subscription")
		return
	}

	if err := h.store.Upsert(a.ID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth); err != nil {
		h.logger.Error("upsert push subscription", "account_id", a.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

// Unsubscribe removes a push subscription by endpoint.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.AccountFrom(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.DeleteByEndpoint(req.Endpoint); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}
