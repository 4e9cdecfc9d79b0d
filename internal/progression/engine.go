// Package progression converts completed practice sessions into durable
// progress: streaks, power, tier/belt rank, and badge unlocks.
package progression

import (
	"log/slog"
	"time"

	"github.com/mtarnawa/hanashi/internal/model"
	"github.com/mtarnawa/hanashi/internal/store"
)

// Engine applies progression for billable session completions. It runs
// synchronously inside session finalization; badge failures are isolated
// per badge and logged, never propagated, so a badge bug can never block a
// finalize or deny credit already consumed.
type Engine struct {
	accounts *store.AccountStore
	sessions *store.SessionStore
	badges   *store.BadgeStore
	catalog  []Badge
	now      func() time.Time
	logger   *slog.Logger
}

// Result describes what one completed session earned.
type Result struct {
	PowerGained    int64    `json:"power_gained"`
	Power          int64    `json:"power"`
	Streak         int      `json:"streak"`
	Multiplier     float64  `json:"multiplier"`
	Rank           string   `json:"rank"`
	Belt           string   `json:"belt"`
	TierChanged    bool     `json:"tier_changed"`
	BadgesUnlocked []string `json:"badges_unlocked"`
}

func NewEngine(accounts *store.AccountStore, sessions *store.SessionStore, badges *store.BadgeStore, logger *slog.Logger) *Engine {
	return &Engine{
		accounts: accounts,
		sessions: sessions,
		badges:   badges,
		catalog:  Catalog,
		now:      time.Now,
		logger:   logger,
	}
}

// SetNow overrides the clock, for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// RecordCompletion updates streak, power, tier, and badges for one completed
// session. The caller must have confirmed the session is billable (completed,
// not abandoned) before invoking this.
func (e *Engine) RecordCompletion(a *model.Account, durationSeconds int) (*Result, error) {
	today := DateUTC(e.now())

	streak := NextStreak(a.LastActivityDate, today, a.CurrentStreak)
	longest := a.LongestStreak
	if streak > longest {
		longest = streak
	}
	multiplier := MultiplierFor(streak)
	gained := PowerGained(BasePower(durationSeconds), multiplier)

	_, oldIdx := TierFor(a.Power)
	newPower := a.Power + gained
	tier, newIdx := TierFor(newPower)

	minutes := durationSeconds / 60
	if err := e.accounts.ApplyProgression(a.ID, gained, streak, longest, multiplier, today, minutes); err != nil {
		return nil, err
	}

	result := &Result{
		PowerGained: gained,
		Power:       newPower,
		Streak:      streak,
		Multiplier:  multiplier,
		Rank:        tier.Rank,
		Belt:        tier.Belt,
		TierChanged: newIdx != oldIdx,
	}
	result.BadgesUnlocked = e.evaluateBadges(a.ID)
	return result, nil
}

// evaluateBadges re-runs every unearned badge predicate against freshly
// recomputed stats and awards first-time unlocks. Errors are logged and
// skipped; they must not undo a completed session.
func (e *Engine) evaluateBadges(accountID int64) []string {
	stats, err := e.computeStats(accountID)
	if err != nil {
		e.logger.Error("compute badge stats", "account_id", accountID, "error", err)
		return nil
	}

	earned, err := e.badges.EarnedIDs(accountID)
	if err != nil {
		e.logger.Error("list earned badges", "account_id", accountID, "error", err)
		return nil
	}

	var unlocked []string
	for _, b := range e.catalog {
		if earned[b.ID] {
			continue
		}
		met, progress, total := b.Evaluate(stats)
		if !met {
			continue
		}
		if err := e.badges.Award(accountID, b.ID, &progress, &total); err != nil {
			e.logger.Error("award badge", "account_id", accountID, "badge_id", b.ID, "error", err)
			continue
		}
		unlocked = append(unlocked, b.ID)
	}
	return unlocked
}

func (e *Engine) computeStats(accountID int64) (Stats, error) {
	a, err := e.accounts.GetByID(accountID)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalSessions: a.TotalSessions,
		TotalMinutes:  a.TotalMinutes,
		CurrentStreak: a.CurrentStreak,
		LongestStreak: a.LongestStreak,
		Power:         a.Power,
	}

	outcomes, err := e.sessions.CategoryOutcomes(accountID)
	if err != nil {
		return Stats{}, err
	}
	for _, o := range outcomes {
		if o.Finished < minCategorySamples {
			continue
		}
		rate := float64(o.Completed) / float64(o.Finished)
		if rate > stats.BestCategoryRate {
			stats.BestCategoryRate = rate
		}
	}

	first, err := e.sessions.FirstCompletedAt(accountID)
	if err != nil {
		return Stats{}, err
	}
	if first != nil && a.TotalSessions > 0 {
		weeks := e.now().UTC().Sub(first.UTC()).Hours() / (24 * 7)
		if weeks < 1 {
			weeks = 1
		}
		stats.SessionsPerWeek = float64(a.TotalSessions) / weeks
	}

	return stats, nil
}
