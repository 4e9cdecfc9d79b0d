package handler

import (
	"log/slog"
	"net/http"

	"github.com/mtarnawa/hanashi/internal/entitlement"
	"github.com/mtarnawa/hanashi/internal/middleware"
	"github.com/mtarnawa/hanashi/internal/store"
)

type ContentHandler struct {
	contents *store.ContentStore
	logger   *slog.Logger
}

func NewContentHandler(contents *store.ContentStore, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{contents: contents, logger: logger}
}

// List returns the catalog the caller's plan can start sessions against.
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ent := entitlement.Resolve(a)
	list := h.contents.List
	if ent.ContentTier == "trial" {
		list = h.contents.ListTrial
	}

	items, err := list()
	if err != nil {
		h.logger.Error("list contents", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
