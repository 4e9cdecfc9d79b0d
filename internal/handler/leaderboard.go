package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mtarnawa/hanashi/internal/leaderboard"
	"github.com/mtarnawa/hanashi/internal/middleware"
)

const (
	defaultTopN   = 20
	maxTopN       = 100
	contextSpread = 2
)

type LeaderboardHandler struct {
	board  *leaderboard.Board
	logger *slog.Logger
}

func NewLeaderboardHandler(board *leaderboard.Board, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, logger: logger}
}

// Top returns the strongest accounts. ?limit= caps the page size.
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	n := defaultTopN
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		n = parsed
	}
	if n > maxTopN {
		n = maxTopN
	}

	entries, err := h.board.TopN(n)
	if err != nil {
		h.logger.Error("leaderboard top", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Me returns the caller's rank and the standings immediately around them.
func (h *LeaderboardHandler) Me(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rank, err := h.board.Rank(a.ID)
	if err != nil {
		h.logger.Error("leaderboard rank", "account_id", a.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	entries, err := h.board.Context(a.ID, contextSpread)
	if err != nil {
		h.logger.Error("leaderboard context", "account_id", a.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rank":    rank,
		"power":   a.Power,
		"entries": entries,
	})
}
