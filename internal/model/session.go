package model

import "time"

// SessionStatus is the lifecycle state of a practice session:
// pending -> active -> completed | abandoned. Terminal states are final;
// no credit or progression effect may apply to a terminal session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether no further transitions are allowed from s.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

// CanTransitionTo reports whether the transition s -> next is legal.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionPending:
		return next == SessionActive || next == SessionAbandoned
	case SessionActive:
		return next == SessionCompleted || next == SessionAbandoned
	default:
		return false
	}
}

// Session is one practice attempt. The access token is set once when the
// session activates and carries a fixed expiry; it is checked at use time.
type Session struct {
	ID              int64         `json:"id"`
	AccountID       int64         `json:"account_id"`
	ContentID       int64         `json:"content_id"`
	Status          SessionStatus `json:"status"`
	AccessToken     *string       `json:"access_token,omitempty"`
	TokenExpiresAt  *time.Time    `json:"token_expires_at,omitempty"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	DurationSeconds *int          `json:"duration_seconds,omitempty"`
	Overage         bool          `json:"overage"`
	BilledCents     int           `json:"billed_cents"`
	CreatedAt       time.Time     `json:"created_at"`
}

// TokenValid reports whether the session holds an access token that has not
// expired as of now.
func (s *Session) TokenValid(now time.Time) bool {
	return s.AccessToken != nil && s.TokenExpiresAt != nil && now.Before(*s.TokenExpiresAt)
}
