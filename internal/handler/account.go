package handler

import (
	"log/slog"
	"net/http"

	"github.com/mtarnawa/hanashi/internal/entitlement"
	"github.com/mtarnawa/hanashi/internal/middleware"
	"github.com/mtarnawa/hanashi/internal/progression"
	"github.com/mtarnawa/hanashi/internal/store"
)

type AccountHandler struct {
	badges *store.BadgeStore
	logger *slog.Logger
}

func NewAccountHandler(badges *store.BadgeStore, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{badges: badges, logger: logger}
}

// Entitlement returns what the caller may do right now.
func (h *AccountHandler) Entitlement(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plan":             a.Plan,
		"entitlement":      entitlement.Resolve(a),
		"trial_credits":    a.TrialCredits,
		"tokens_remaining": a.TokensRemaining,
	})
}

// Progression returns the caller's power, tier, streak, and earned badges.
func (h *AccountHandler) Progression(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.AccountFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	earned, err := h.badges.ListByAccount(a.ID)
	if err != nil {
		h.logger.Error("list badges", "account_id", a.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	tier, tierIndex := progression.TierFor(a.Power)
	writeJSON(w, http.StatusOK, map[string]any{
		"power":          a.Power,
		"tier":           tier,
		"tier_index":     tierIndex,
		"current_streak": a.CurrentStreak,
		"longest_streak": a.LongestStreak,
		"multiplier":     progression.MultiplierFor(a.CurrentStreak),
		"total_sessions": a.TotalSessions,
		"total_minutes":  a.TotalMinutes,
		"badges":         earned,
	})
}

// Tiers returns the full static ladder so clients can render progress bars.
func (h *AccountHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, progression.Tiers())
}

// Badges returns the badge catalog.
func (h *AccountHandler) Badges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, progression.Catalog)
}
