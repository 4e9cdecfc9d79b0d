// Package credit meters consumption of practice rights: it issues sessions
// against trial credits or metered tokens, hands out access tokens, and
// finalizes or abandons sessions. Consumption happens at issue time, not at
// completion, and is never refunded on abandonment.
package credit

import (
	"log/slog"
	"time"

	"github.com/mtarnawa/hanashi/internal/entitlement"
	"github.com/mtarnawa/hanashi/internal/model"
	"github.com/mtarnawa/hanashi/internal/progression"
	"github.com/mtarnawa/hanashi/internal/store"
)

// Ledger owns every credit state transition. All operations are safe under
// concurrent invocation for the same account or session: balance changes are
// single conditional updates and lifecycle changes are single-winner
// transitions, so racing callers cannot double-spend or double-finalize.
type Ledger struct {
	accounts *store.AccountStore
	sessions *store.SessionStore
	contents *store.ContentStore
	progress *progression.Engine
	tokens   *TokenIssuer
	now      func() time.Time
	logger   *slog.Logger
}

func NewLedger(
	accounts *store.AccountStore,
	sessions *store.SessionStore,
	contents *store.ContentStore,
	progress *progression.Engine,
	tokens *TokenIssuer,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		accounts: accounts,
		sessions: sessions,
		contents: contents,
		progress: progress,
		tokens:   tokens,
		now:      time.Now,
		logger:   logger,
	}
}

// SetNow overrides the clock, for tests.
func (l *Ledger) SetNow(now func() time.Time) {
	l.now = now
}

// IssueSession re-evaluates entitlement at issue time, consumes one trial
// credit for trial accounts, and creates the session in pending. The
// conditional decrement is what closes the race where two concurrent
// requests both observed credit available.
func (l *Ledger) IssueSession(accountID, contentID int64) (*model.Session, error) {
	a, err := l.accounts.GetByID(accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}

	ent := entitlement.Resolve(a)
	if !ent.CanStart {
		return nil, ErrInsufficientCredit
	}

	content, err := l.contents.GetByID(contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, ErrContentNotFound
	}
	if ent.ContentTier == "trial" && content.Tier != "trial" {
		return nil, ErrContentNotAllowed
	}

	if a.Plan == model.PlanTrial {
		ok, err := l.accounts.ConsumeTrialCredit(accountID)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Another request spent the last credit after our read.
			return nil, ErrInsufficientCredit
		}
	}

	return l.sessions.Create(accountID, contentID)
}

// IssueAccessToken mints the session's access token and moves it to active.
// Idempotent while a valid token exists: repeat calls return the same token.
// Any call on a session that is neither pending nor active-with-valid-token
// fails with ErrInvalidSessionState.
func (l *Ledger) IssueAccessToken(sessionID int64) (string, time.Time, error) {
	s, err := l.sessions.GetByID(sessionID)
	if err != nil {
		return "", time.Time{}, err
	}
	if s == nil {
		return "", time.Time{}, ErrSessionNotFound
	}

	now := l.now().UTC()

	switch s.Status {
	case model.SessionPending:
		token, expiresAt, err := l.tokens.Issue(s.ID, s.AccountID, now)
		if err != nil {
			return "", time.Time{}, err
		}
		won, err := l.sessions.Activate(s.ID, token, expiresAt, now)
		if err != nil {
			return "", time.Time{}, err
		}
		if won {
			return token, expiresAt, nil
		}
		// A concurrent call activated first; fall through to return its token.
		s, err = l.sessions.GetByID(sessionID)
		if err != nil {
			return "", time.Time{}, err
		}
		fallthrough
	case model.SessionActive:
		if s.Status == model.SessionActive && s.TokenValid(now) {
			return *s.AccessToken, *s.TokenExpiresAt, nil
		}
		return "", time.Time{}, ErrInvalidSessionState
	default:
		return "", time.Time{}, ErrInvalidSessionState
	}
}

// FinalizeSession records the measured duration, deducts metered tokens for
// paid accounts (marking overage with its flat charge when the balance runs
// out), and applies progression. Idempotent: finalizing an already-terminal
// session is a no-op returning an empty result, so client retries and
// finalize/abandon races never error.
func (l *Ledger) FinalizeSession(sessionID int64, durationSeconds int) (*progression.Result, error) {
	s, err := l.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}

	if s.Status.Terminal() {
		return &progression.Result{}, nil
	}
	if s.Status == model.SessionPending {
		// Never activated: nothing was delivered, nothing to finalize.
		return nil, ErrInvalidSessionState
	}

	a, err := l.accounts.GetByID(s.AccountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAccountNotFound
	}

	if durationSeconds < 0 {
		durationSeconds = 0
	}
	if cap := entitlement.Resolve(a).MaxSessionSeconds; durationSeconds > cap {
		durationSeconds = cap
	}

	won, err := l.sessions.Complete(s.ID, durationSeconds, l.now().UTC())
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the race against a competing terminal transition.
		return &progression.Result{}, nil
	}

	if a.Plan == model.PlanPaid {
		deduct := entitlement.TokensForDuration(durationSeconds)
		shortfall, err := l.accounts.DeductTokens(a.ID, deduct)
		if err != nil {
			return nil, err
		}
		if shortfall > 0 {
			cents := entitlement.OverageCents(shortfall)
			if err := l.sessions.RecordOverage(s.ID, cents); err != nil {
				return nil, err
			}
		}
	}

	result, err := l.progress.RecordCompletion(a, durationSeconds)
	if err != nil {
		// Progression must never un-complete a session or deny credit
		// already consumed; surface to the operator and move on.
		l.logger.Error("record progression", "session_id", s.ID, "account_id", a.ID, "error", err)
		return &progression.Result{}, nil
	}
	return result, nil
}

// AbandonSession moves a pending or active session to abandoned. Credit
// consumed at issue time stays consumed. Idempotent on sessions already in a
// terminal state.
func (l *Ledger) AbandonSession(sessionID int64) error {
	s, err := l.sessions.GetByID(sessionID)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrSessionNotFound
	}
	if s.Status.Terminal() {
		return nil
	}

	_, err = l.sessions.Abandon(s.ID, l.now().UTC())
	return err
}

// AbandonStale sweeps sessions that never reported back (crashed clients,
// closed tabs) into abandoned once they outlive maxAge.
func (l *Ledger) AbandonStale(maxAge time.Duration) (int64, error) {
	now := l.now().UTC()
	return l.sessions.AbandonStale(now.Add(-maxAge), now)
}
