package credit

import "errors"

var (
	// ErrInsufficientCredit means entitlement was false at issue time. A
	// hard stop for the caller, never retried.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrInvalidSessionState means the operation is not permitted from the
	// session's current state. A client error, never retried.
	ErrInvalidSessionState = errors.New("invalid session state")

	ErrAccountNotFound   = errors.New("account not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrContentNotFound   = errors.New("content not found")
	ErrContentNotAllowed = errors.New("content not in entitled set")
)
