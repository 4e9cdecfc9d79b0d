package store

import (
	"database/sql"
	"fmt"

	"github.com/mtarnawa/hanashi/internal/model"
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var subStatus, stripeCustomer, stripeSub, lastActivity sql.NullString

	err := scanner.Scan(
		&a.ID, &a.ExternalID, &a.Plan, &subStatus, &stripeCustomer, &stripeSub,
		&a.TrialPurchaseCount, &a.TrialCredits, &a.TokensRemaining,
		&a.Power, &a.CurrentStreak, &a.LongestStreak, &lastActivity,
		&a.Multiplier, &a.TotalSessions, &a.TotalMinutes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if subStatus.Valid {
		a.SubscriptionStatus = &subStatus.String
	}
	if stripeCustomer.Valid {
		a.StripeCustomerID = &stripeCustomer.String
	}
	if stripeSub.Valid {
		a.StripeSubscriptionID = &stripeSub.String
	}
	if lastActivity.Valid {
		a.LastActivityDate = &lastActivity.String
	}
	return &a, nil
}

const accountCols = `id, external_id, plan, subscription_status, stripe_customer_id, stripe_subscription_id,
	trial_purchase_count, trial_credits, tokens_remaining,
	power, current_streak, longest_streak, last_activity_date,
	multiplier, total_sessions, total_minutes, created_at, updated_at`

func (s *AccountStore) Create(externalID string) (*model.Account, error) {
	result, err := s.db.Exec(`INSERT INTO accounts (external_id) VALUES (?)`, externalID)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AccountStore) GetByID(id int64) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByExternalID(externalID string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE external_id = ?`, externalID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by external id: %w", err)
	}
	return a, nil
}

// GetOrCreateByExternalID maps an authenticated identity reference to an
// account, creating one on first sight. Safe under concurrent first requests:
// the unique constraint makes the loser of the insert race re-read.
func (s *AccountStore) GetOrCreateByExternalID(externalID string) (*model.Account, error) {
	a, err := s.GetByExternalID(externalID)
	if err != nil || a != nil {
		return a, err
	}
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO accounts (external_id) VALUES (?)`, externalID); err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return s.GetByExternalID(externalID)
}

// GetByStripeSubscriptionID maps a provider subscription reference back to an
// account. Returns nil when the reference is unknown.
func (s *AccountStore) GetByStripeSubscriptionID(subID string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE stripe_subscription_id = ?`, subID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by subscription id: %w", err)
	}
	return a, nil
}

func (s *AccountStore) UpdateStripeCustomerID(id int64, customerID string) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		customerID, id,
	)
	if err != nil {
		return fmt.Errorf("update stripe customer id: %w", err)
	}
	return nil
}

// ConsumeTrialCredit decrements one trial credit if and only if the balance
// is positive, as a single conditional update. Returns false when no credit
// remained; the caller must treat that as insufficient credit, closing the
// read-then-write race between concurrent issues.
func (s *AccountStore) ConsumeTrialCredit(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE accounts SET trial_credits = trial_credits - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND trial_credits > 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("consume trial credit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

// DeductTokens removes up to amount metered tokens from the account and
// returns the shortfall that could not be covered (0 when the balance was
// sufficient). The read and both writes share one transaction so concurrent
// finalizes and cycle renewals cannot interleave.
func (s *AccountStore) DeductTokens(id int64, amount int) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE accounts SET tokens_remaining = tokens_remaining - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND tokens_remaining >= ?`,
		amount, id, amount,
	)
	if err != nil {
		return 0, fmt.Errorf("deduct tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	shortfall := 0
	if rows == 0 {
		var balance int
		if err := tx.QueryRow(`SELECT tokens_remaining FROM accounts WHERE id = ?`, id).Scan(&balance); err != nil {
			return 0, fmt.Errorf("read token balance: %w", err)
		}
		shortfall = amount - balance
		if _, err := tx.Exec(
			`UPDATE accounts SET tokens_remaining = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
		); err != nil {
			return 0, fmt.Errorf("zero token balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return shortfall, nil
}

// GrantTrialPackage applies a trial package purchase: one more purchase
// counted, a fixed credit grant added.
// Returns false when the account already spent its purchase allowance, in
// which case nothing changed.
func (s *AccountStore) GrantTrialPackage(id int64, credits, maxPurchases int) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE accounts SET trial_purchase_count = trial_purchase_count + 1,
		 trial_credits = trial_credits + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND trial_purchase_count < ?`,
		credits, id, maxPurchases,
	)
	if err != nil {
		return false, fmt.Errorf("grant trial package: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

// ActivatePaidPlan switches the account to the paid plan with a full token
// allotment and an active subscription.
func (s *AccountStore) ActivatePaidPlan(id int64, stripeSubscriptionID string, tokens int) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET plan = 'paid', subscription_status = 'active',
		 stripe_subscription_id = ?, tokens_remaining = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		stripeSubscriptionID, tokens, id,
	)
	if err != nil {
		return fmt.Errorf("activate paid plan: %w", err)
	}
	return nil
}

// RenewCycle resets the token allotment at the start of a new billing cycle,
// keyed by the provider subscription reference. Returns false when the
// reference maps to no account.
func (s *AccountStore) RenewCycle(stripeSubscriptionID string, tokens int) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE accounts SET tokens_remaining = ?, subscription_status = 'active', updated_at = CURRENT_TIMESTAMP
		 WHERE stripe_subscription_id = ?`,
		tokens, stripeSubscriptionID,
	)
	if err != nil {
		return false, fmt.Errorf("renew cycle: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// SetSubscriptionStatus updates the internal subscription status keyed by
// the provider subscription reference.
func (s *AccountStore) SetSubscriptionStatus(stripeSubscriptionID, status string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE accounts SET subscription_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE stripe_subscription_id = ?`,
		status, stripeSubscriptionID,
	)
	if err != nil {
		return false, fmt.Errorf("set subscription status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// CancelSubscription marks the subscription cancelled and downgrades the
// account to the trial plan.
func (s *AccountStore) CancelSubscription(stripeSubscriptionID string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE accounts SET subscription_status = 'cancelled', plan = 'trial',
		 tokens_remaining = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE stripe_subscription_id = ?`,
		stripeSubscriptionID,
	)
	if err != nil {
		return false, fmt.Errorf("cancel subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// ApplyProgression records the outcome of one completed session: power
// gained, new streak values, the active multiplier, the UTC activity date,
// and the session's minutes. One statement so a crash cannot apply half.
func (s *AccountStore) ApplyProgression(id int64, powerGained int64, streak, longest int, multiplier float64, activityDate string, minutes int) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET power = power + ?, current_streak = ?, longest_streak = ?,
		 multiplier = ?, last_activity_date = ?,
		 total_sessions = total_sessions + 1, total_minutes = total_minutes + ?,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		powerGained, streak, longest, multiplier, activityDate, minutes, id,
	)
	if err != nil {
		return fmt.Errorf("apply progression: %w", err)
	}
	return nil
}
