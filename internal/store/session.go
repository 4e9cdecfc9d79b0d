package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mtarnawa/hanashi/internal/model"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var token sql.NullString
	var tokenExpires, startedAt, endedAt sql.NullTime
	var duration sql.NullInt64
	var overage int

	err := scanner.Scan(
		&s.ID, &s.AccountID, &s.ContentID, &s.Status,
		&token, &tokenExpires, &startedAt, &endedAt,
		&duration, &overage, &s.BilledCents, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if token.Valid {
		s.AccessToken = &token.String
	}
	if tokenExpires.Valid {
		s.TokenExpiresAt = &tokenExpires.Time
	}
	if startedAt.Valid {
		s.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationSeconds = &d
	}
	s.Overage = overage != 0
	return &s, nil
}

const sessionCols = `id, account_id, content_id, status, access_token, token_expires_at,
	started_at, ended_at, duration_seconds, overage, billed_cents, created_at`

func (s *SessionStore) Create(accountID, contentID int64) (*model.Session, error) {
	result, err := s.db.Exec(
		`INSERT INTO practice_sessions (account_id, content_id) VALUES (?, ?)`,
		accountID, contentID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SessionStore) GetByID(id int64) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM practice_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Activate stores the access token and moves pending -> active as one
// conditional update. Returns false if the session was not pending, in which
// case nothing changed.
func (s *SessionStore) Activate(id int64, token string, expiresAt, startedAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE practice_sessions SET status = 'active', access_token = ?, token_expires_at = ?, started_at = ?
		 WHERE id = ? AND status = 'pending'`,
		token, expiresAt, startedAt, id,
	)
	if err != nil {
		return false, fmt.Errorf("activate session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

// Complete moves active -> completed and records the measured duration.
// Returns false if the session was not active; the caller lost the race to
// a competing terminal transition and must treat its call as a no-op.
func (s *SessionStore) Complete(id int64, durationSeconds int, endedAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE practice_sessions SET status = 'completed', duration_seconds = ?, ended_at = ?
		 WHERE id = ? AND status = 'active'`,
		durationSeconds, endedAt, id,
	)
	if err != nil {
		return false, fmt.Errorf("complete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

// RecordOverage marks a completed session as having run past the included
// token allotment and stores the flat charge.
func (s *SessionStore) RecordOverage(id int64, billedCents int) error {
	_, err := s.db.Exec(
		`UPDATE practice_sessions SET overage = 1, billed_cents = ? WHERE id = ?`,
		billedCents, id,
	)
	if err != nil {
		return fmt.Errorf("record overage: %w", err)
	}
	return nil
}

// Abandon moves pending/active -> abandoned. Returns false if the session
// was already terminal.
func (s *SessionStore) Abandon(id int64, endedAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE practice_sessions SET status = 'abandoned', ended_at = ?
		 WHERE id = ? AND status IN ('pending', 'active')`,
		endedAt, id,
	)
	if err != nil {
		return false, fmt.Errorf("abandon session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

// AbandonStale abandons non-terminal sessions created before the cutoff.
// Crashed clients never report back; the cleanup ticker calls this so stale
// sessions cannot linger as pending/active forever.
func (s *SessionStore) AbandonStale(cutoff, endedAt time.Time) (int64, error) {
	// created_at is CURRENT_TIMESTAMP text; compare in the same format.
	result, err := s.db.Exec(
		`UPDATE practice_sessions SET status = 'abandoned', ended_at = ?
		 WHERE status IN ('pending', 'active') AND created_at < ?`,
		endedAt, cutoff.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return 0, fmt.Errorf("abandon stale sessions: %w", err)
	}
	return result.RowsAffected()
}

// CategoryOutcome aggregates finished sessions for one content category.
type CategoryOutcome struct {
	Category  string
	Completed int
	Finished  int // completed + abandoned
}

// CategoryOutcomes returns per-category completion counts for an account,
// used by badge predicates. Computed fresh on every call, never cached.
func (s *SessionStore) CategoryOutcomes(accountID int64) ([]CategoryOutcome, error) {
	rows, err := s.db.Query(
		`SELECT c.category,
		        SUM(CASE WHEN ps.status = 'completed' THEN 1 ELSE 0 END),
		        COUNT(*)
		 FROM practice_sessions ps
		 JOIN contents c ON c.id = ps.content_id
		 WHERE ps.account_id = ? AND ps.status IN ('completed', 'abandoned')
		 GROUP BY c.category`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("category outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []CategoryOutcome
	for rows.Next() {
		var o CategoryOutcome
		if err := rows.Scan(&o.Category, &o.Completed, &o.Finished); err != nil {
			return nil, fmt.Errorf("scan category outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// FirstCompletedAt returns the time of the account's first completed
// session, or nil if none exist. Used for pacing stats.
func (s *SessionStore) FirstCompletedAt(accountID int64) (*time.Time, error) {
	var t sql.NullTime
	err := s.db.QueryRow(
		`SELECT MIN(ended_at) FROM practice_sessions WHERE account_id = ? AND status = 'completed'`,
		accountID,
	).Scan(&t)
	if err != nil {
		return nil, fmt.Errorf("first completed at: %w", err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}
