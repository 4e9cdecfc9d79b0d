// Package entitlement computes what an account is currently allowed to do
// from its raw plan state. Resolution is a pure function of the account
// fields, with no I/O or hidden state, so callers can re-evaluate it at any
// decision point, in particular again at session-issue time.
package entitlement

import "github.com/mtarnawa/hanashi/internal/model"

// Plan rules. Trial accounts consume one credit per session; paid accounts
// consume metered tokens pro-rated by the second.
const (
	TrialMaxSessionSeconds = 90
	PaidMaxSessionSeconds  = 300

	MaxTrialPurchases   = 2
	TrialPackageCredits = 10

	PaidCycleTokens       = 3000
	TokensPerMinute       = 10
	OverageCentsPerMinute = 25
)

// Entitlement is the computed set of capabilities for an account.
type Entitlement struct {
	CanStart                bool   `json:"can_start"`
	MaxSessionSeconds       int    `json:"max_session_seconds"`
	Overage                 bool   `json:"overage"`
	ContentTier             string `json:"content_tier"` // "trial" or "all"
	CanPurchaseTrialPackage bool   `json:"can_purchase_trial_package"`
}

// Resolve derives the account's current entitlement. Deterministic over the
// plan, subscription status, trial credit, and token balance fields.
func Resolve(a *model.Account) Entitlement {
	e := Entitlement{
		CanPurchaseTrialPackage: a.Plan == model.PlanTrial && a.TrialPurchaseCount < MaxTrialPurchases,
	}

	switch a.Plan {
	case model.PlanPaid:
		e.MaxSessionSeconds = PaidMaxSessionSeconds
		e.ContentTier = "all"
		if a.TokensRemaining > 0 {
			e.CanStart = true
		} else {
			// Out of included tokens: an active subscription may still
			// start sessions, billed as overage.
			e.CanStart = a.SubscriptionStatus != nil && *a.SubscriptionStatus == model.SubscriptionActive
			e.Overage = true
		}
	default:
		e.MaxSessionSeconds = TrialMaxSessionSeconds
		e.ContentTier = "trial"
		e.CanStart = a.TrialCredits > 0
	}

	return e
}

// TokensForDuration converts a session duration to metered tokens, pro-rated
// to the second and rounded up.
func TokensForDuration(durationSeconds int) int {
	if durationSeconds <= 0 {
		return 0
	}
	return (durationSeconds*TokensPerMinute + 59) / 60
}

// OverageCents converts an uncovered token shortfall to a flat charge per
// started overage minute.
func OverageCents(shortfallTokens int) int {
	if shortfallTokens <= 0 {
		return 0
	}
	minutes := (shortfallTokens + TokensPerMinute - 1) / TokensPerMinute
	return minutes * OverageCentsPerMinute
}
