package store

import (
	"database/sql"
	"fmt"

	"github.com/mtarnawa/hanashi/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

func scanPushSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var p model.PushSubscription
	var lastReminded sql.NullString

	err := scanner.Scan(&p.ID, &p.AccountID, &p.Endpoint, &p.P256dhKey, &p.AuthKey, &lastReminded, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	if lastReminded.Valid {
		p.LastRemindedDate = &lastReminded.String
	}
	return &p, nil
}

const pushCols = `id, account_id, endpoint, p256dh_key, auth_key, last_reminded_date, created_at`

// Upsert registers or refreshes a push subscription by endpoint.
func (s *PushStore) Upsert(accountID int64, endpoint, p256dh, auth string) error {
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (account_id, endpoint, p256dh_key, auth_key) VALUES (?, ?, ?, ?)
		 ON CONFLICT (endpoint) DO UPDATE SET account_id = excluded.account_id,
		 p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key`,
		accountID, endpoint, p256dh, auth,
	)
	if err != nil {
		return fmt.Errorf("upsert push subscription: %w", err)
	}
	return nil
}

// ListStreakReminderTargets returns subscriptions for accounts whose streak
// will lapse today: last activity was yesterday and no reminder sent today.
func (s *PushStore) ListStreakReminderTargets(yesterday, today string) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT ps.id, ps.account_id, ps.endpoint, ps.p256dh_key, ps.auth_key, ps.last_reminded_date, ps.created_at
		 FROM push_subscriptions ps
		 JOIN accounts a ON a.id = ps.account_id
		 WHERE a.current_streak > 0 AND a.last_activity_date = ?
		   AND (ps.last_reminded_date IS NULL OR ps.last_reminded_date < ?)`,
		yesterday, today,
	)
	if err != nil {
		return nil, fmt.Errorf("list streak reminder targets: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		p, err := scanPushSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *p)
	}
	return subs, rows.Err()
}

// MarkReminded records that a reminder went out today, so the scheduler
// sends at most one per subscription per day.
func (s *PushStore) MarkReminded(id int64, today string) error {
	_, err := s.db.Exec(
		`UPDATE push_subscriptions SET last_reminded_date = ? WHERE id = ?`,
		today, id,
	)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}

// DeleteByEndpoint removes a subscription the push service reported gone.
func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}
