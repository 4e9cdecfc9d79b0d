package model

import "time"

// Plan identifies how an account pays for practice time.
type Plan string

const (
	PlanTrial Plan = "trial"
	PlanPaid  Plan = "paid"
)

// Subscription statuses as stored on the account. Empty means the account
// has never had a subscription.
const (
	SubscriptionActive    = "active"
	SubscriptionPastDue   = "past_due"
	SubscriptionCancelled = "cancelled"
)

// Account is the durable per-user record. Trial credits and metered tokens
// are mutually exclusive in meaning: only the field matching the plan is
// ever decremented.
type Account struct {
	ID                   int64     `json:"id"`
	ExternalID           string    `json:"external_id"`
	Plan                 Plan      `json:"plan"`
	SubscriptionStatus   *string   `json:"subscription_status"`
	StripeCustomerID     *string   `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string   `json:"stripe_subscription_id,omitempty"`
	TrialPurchaseCount   int       `json:"trial_purchase_count"`
	TrialCredits         int       `json:"trial_credits"`
	TokensRemaining      int       `json:"tokens_remaining"`
	Power                int64     `json:"power"`
	CurrentStreak        int       `json:"current_streak"`
	LongestStreak        int       `json:"longest_streak"`
	LastActivityDate     *string   `json:"last_activity_date"` // YYYY-MM-DD, UTC
	Multiplier           float64   `json:"multiplier"`
	TotalSessions        int       `json:"total_sessions"`
	TotalMinutes         int       `json:"total_minutes"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// BilledEvent records one externally-delivered billing notification. The
// primary key on EventID is the sole idempotency mechanism: the row must be
// inserted before any account mutation runs.
type BilledEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ContentItem is a practice scenario from the catalog.
type ContentItem struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Tier     string `json:"tier"` // "trial" or "paid"
}

// EarnedBadge joins an account to a badge it has unlocked. Never revoked.
type EarnedBadge struct {
	AccountID int64     `json:"account_id"`
	BadgeID   string    `json:"badge_id"`
	EarnedAt  time.Time `json:"earned_at"`
	Progress  *int      `json:"progress,omitempty"`
	Total     *int      `json:"total,omitempty"`
}

// PushSubscription is a web-push endpoint registered by a client for
// streak reminders.
type PushSubscription struct {
	ID               int64     `json:"id"`
	AccountID        int64     `json:"account_id"`
	Endpoint         string    `json:"endpoint"`
	P256dhKey        string    `json:"p256dh_key"`
	AuthKey          string    `json:"auth_key"`
	LastRemindedDate *string   `json:"last_reminded_date,omitempty"` // YYYY-MM-DD, UTC
	CreatedAt        time.Time `json:"created_at"`
}
