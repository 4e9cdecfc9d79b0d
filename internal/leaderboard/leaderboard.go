// Package leaderboard ranks accounts by lifetime power.
package leaderboard

import (
	"database/sql"
	"fmt"
)

// Entry is one leaderboard row. Rank is competition-style: accounts with
// equal power share a rank, and the next distinct power resumes at
// 1 + number of strictly stronger accounts.
type Entry struct {
	Rank       int    `json:"rank"`
	AccountID  int64  `json:"account_id"`
	ExternalID string `json:"external_id"`
	Power      int64  `json:"power"`
}

type Board struct {
	db *sql.DB
}

func NewBoard(db *sql.DB) *Board {
	return &Board{db: db}
}

// Rank returns the competition rank for one account.
func (b *Board) Rank(accountID int64) (int, error) {
	var rank int
	err := b.db.QueryRow(
		`SELECT 1 + COUNT(*) FROM accounts
		 WHERE power > (SELECT power FROM accounts WHERE id = ?)`,
		accountID,
	).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("rank account: %w", err)
	}
	return rank, nil
}

const entryQuery = `
	SELECT 1 + (SELECT COUNT(*) FROM accounts s WHERE s.power > a.power),
	       a.id, a.external_id, a.power
	FROM accounts a`

// TopN returns the strongest n accounts. Ties share a rank; within a tie the
// older account lists first.
func (b *Board) TopN(n int) ([]Entry, error) {
	rows, err := b.db.Query(entryQuery+` ORDER BY a.power DESC, a.id ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("top accounts: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Context returns the account's own row plus up to spread neighbors on each
// side of it in the standings.
func (b *Board) Context(accountID int64, spread int) ([]Entry, error) {
	// Position in the total DESC, id ASC order, not the competition rank;
	// ties make those differ.
	var position int
	err := b.db.QueryRow(
		`SELECT COUNT(*) FROM accounts s, accounts a
		 WHERE a.id = ?
		   AND (s.power > a.power OR (s.power = a.power AND s.id <= a.id))`,
		accountID,
	).Scan(&position)
	if err != nil {
		return nil, fmt.Errorf("account position: %w", err)
	}

	// Clip the window at the top rather than sliding it down: the leader
	// sees itself plus spread below, not a full 2*spread+1 slice.
	offset := position - 1 - spread
	if offset < 0 {
		offset = 0
	}
	limit := position + spread - offset

	rows, err := b.db.Query(
		entryQuery+` ORDER BY a.power DESC, a.id ASC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard context: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Rank, &e.AccountID, &e.ExternalID, &e.Power); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
