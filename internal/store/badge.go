package store

import (
	"database/sql"
	"fmt"

	"github.com/mtarnawa/hanashi/internal/model"
)

type BadgeStore struct {
	db *sql.DB
}

func NewBadgeStore(db *sql.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

// EarnedIDs returns the set of badge ids the account has already unlocked.
func (s *BadgeStore) EarnedIDs(accountID int64) (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT badge_id FROM earned_badges WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list earned badge ids: %w", err)
	}
	defer rows.Close()

	earned := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan badge id: %w", err)
		}
		earned[id] = true
	}
	return earned, rows.Err()
}

// Award unlocks a badge for the account. A badge already earned is left
// untouched; badges are never revoked or re-awarded.
func (s *BadgeStore) Award(accountID int64, badgeID string, progress, total *int) error {
	var p, t sql.NullInt64
	if progress != nil {
		p = sql.NullInt64{Int64: int64(*progress), Valid: true}
	}
	if total != nil {
		t = sql.NullInt64{Int64: int64(*total), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO earned_badges (account_id, badge_id, progress, total) VALUES (?, ?, ?, ?)`,
		accountID, badgeID, p, t,
	)
	if err != nil {
		return fmt.Errorf("award badge: %w", err)
	}
	return nil
}

func scanEarnedBadge(scanner interface{ Scan(...any) error }) (*model.EarnedBadge, error) {
	var b model.EarnedBadge
	var progress, total sql.NullInt64

	err := scanner.Scan(&b.AccountID, &b.BadgeID, &b.EarnedAt, &progress, &total)
	if err != nil {
		return nil, err
	}

	if progress.Valid {
		p := int(progress.Int64)
		b.Progress = &p
	}
	if total.Valid {
		t := int(total.Int64)
		b.Total = &t
	}
	return &b, nil
}

// ListByAccount returns the account's earned badges, most recent first.
func (s *BadgeStore) ListByAccount(accountID int64) ([]model.EarnedBadge, error) {
	rows, err := s.db.Query(
		`SELECT account_id, badge_id, earned_at, progress, total
		 FROM earned_badges WHERE account_id = ? ORDER BY earned_at DESC, badge_id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list earned badges: %w", err)
	}
	defer rows.Close()

	var badges []model.EarnedBadge
	for rows.Next() {
		b, err := scanEarnedBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan earned badge: %w", err)
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}
