package store

import (
	"testing"

	"github.com/mtarnawa/hanashi/internal/database"
	"github.com/mtarnawa/hanashi/internal/model"
)

func setupAccountTestDB(t *testing.T) *AccountStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAccountStore(db)
}

func TestAccountCreate(t *testing.T) {
	s := setupAccountTestDB(t)

	a, err := s.Create("user-abc")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if a.ExternalID != "user-abc" {
		t.Errorf("external id = %q, want %q", a.ExternalID, "user-abc")
	}
	if a.Plan != model.PlanTrial {
		t.Errorf("plan = %q, want trial", a.Plan)
	}
	if a.TrialCredits != 0 || a.TokensRemaining != 0 {
		t.Errorf("new account has credits %d tokens %d, want 0/0", a.TrialCredits, a.TokensRemaining)
	}
	if a.SubscriptionStatus != nil {
		t.Errorf("subscription status = %v, want nil", *a.SubscriptionStatus)
	}
}

func TestAccountGetOrCreateByExternalID(t *testing.T) {
	s := setupAccountTestDB(t)

	a, err := s.GetOrCreateByExternalID("user-abc")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	b, err := s.GetOrCreateByExternalID("user-abc")
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("second call created a new account: %d vs %d", a.ID, b.ID)
	}
}

func TestConsumeTrialCredit(t *testing.T) {
	s := setupAccountTestDB(t)

	a, _ := s.Create("user-abc")
	if ok, err := s.GrantTrialPackage(a.ID, 2, 2); err != nil || !ok {
		t.Fatalf("grant trial package: ok=%v err=%v", ok, err)
	}

	for i := 0; i < 2; i++ {
		ok, err := s.ConsumeTrialCredit(a.ID)
		if err != nil {
			t.Fatalf("consume credit %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("consume credit %d: got false, want true", i)
		}
	}

	// Balance is zero now; the conditional update must refuse.
	ok, err := s.ConsumeTrialCredit(a.ID)
	if err != nil {
		t.Fatalf("consume at zero: %v", err)
	}
	if ok {
		t.Error("consumed a credit at zero balance")
	}

	got, _ := s.GetByID(a.ID)
	if got.TrialCredits != 0 {
		t.Errorf("trial credits = %d, want 0", got.TrialCredits)
	}
}

func TestGrantTrialPackage(t *testing.T) {
	s := setupAccountTestDB(t)

	a, _ := s.Create("user-abc")
	if ok, err := s.GrantTrialPackage(a.ID, 10, 2); err != nil || !ok {
		t.Fatalf("grant: ok=%v err=%v", ok, err)
	}
	if ok, err := s.GrantTrialPackage(a.ID, 10, 2); err != nil || !ok {
		t.Fatalf("grant again: ok=%v err=%v", ok, err)
	}

	// The allowance is spent; a third grant must refuse.
	ok, err := s.GrantTrialPackage(a.ID, 10, 2)
	if err != nil {
		t.Fatalf("grant past allowance: %v", err)
	}
	if ok {
		t.Error("granted a package past the purchase allowance")
	}

	got, _ := s.GetByID(a.ID)
	if got.TrialPurchaseCount != 2 {
		t.Errorf("purchase count = %d, want 2", got.TrialPurchaseCount)
	}
	if got.TrialCredits != 20 {
		t.Errorf("trial credits = %d, want 20", got.TrialCredits)
	}
}

func TestDeductTokensSufficient(t *testing.T) {
	s := setupAccountTestDB(t)

	a, _ := s.Create("user-abc")
	if err := s.ActivatePaidPlan(a.ID, "sub_123", 100); err != nil {
		t.Fatalf("activate paid: %v", err)
	}

	shortfall, err := s.DeductTokens(a.ID, 40)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if shortfall != 0 {
		t.Errorf("shortfall = %d, want 0", shortfall)
	}

	got, _ := s.GetByID(a.ID)
	if got.TokensRemaining != 60 {
		t.Errorf("tokens = %d, want 60", got.TokensRemaining)
	}
}

func TestDeductTokensOverage(t *testing.T) {
	s := setupAccountTestDB(t)

	a, _ := s.Create("user-abc")
	if err := s.ActivatePaidPlan(a.ID, "sub_123", 30); err != nil {
		t.Fatalf("activate paid: %v", err)
	}

	shortfall, err := s.DeductTokens(a.ID, 50)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if shortfall != 20 {
		t.Errorf("shortfall = %d, want 20", shortfall)
	}

	// Balance clamps at zero, never negative.
	got, _ := s.GetByID(a.ID)
	if got.TokensRemaining != 0 {
		t.Errorf("tokens = %d, want 0", got.TokensRemaining)
	}
}

func TestActivatePaidPlan(t *testing.T) {
	s := setupAccountTestDB(t)

	a, _ := s.Create("user-abc")
	if err := s.ActivatePaidPlan(a.ID, "sub_123", 3000); err != nil {
		t.Fatalf("activate: %v", err)
	}

	got, _ := s.GetByID(a.ID)
	if got.Plan != model.PlanPaid {
		t.Errorf("plan = %q, want paid", got.Plan)
	}
	if got.SubscriptionStatus == nil || *got.SubscriptionStatus != model.SubscriptionActive {
		t.Errorf("subscription status = %v, want active", got.SubscriptionStatus)
	}
	if got.TokensRemaining != 3000 {
		t.Errorf("tokens = %d, want 3000", got.TokensRemaining)
	}

	bySub, err := s.GetByStripeSubscriptionID("sub_123")
	if err != nil {
		t.Fatalf("get by subscription id: %v", err)
	}
	if bySub == nil || bySub.ID != a.ID {
		t.Error("lookup by subscription reference failed")
	}
}

func TestRenewCycle(t *testing.T) {
	s := setupAccountTestDB(t)

	a, _ := s.Create("user-abc")
	s.ActivatePaidPlan(a.ID, "sub_123", 3000)
	s.DeductTokens(a.ID, 3000)

	ok, err := s.RenewCycle("sub_123", 3000)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if !ok {
		t.Fatal("renew matched no account")
	}

	got, _ := s.GetByID(a.ID)
	if got.TokensRemaining != 3000 {
		t.Errorf("tokens after renew = %d, want 3000", got.TokensRemaining)
	}
}

func TestRenewCycleUnknownReference(t *testing.T) {
	s := setupAccountTestDB(t)

	ok, err := s.RenewCycle("sub_nope", 3000)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if ok {
		t.Error("renew matched an account for an unknown reference")
	}
}

func TestCancelSubscription(t *testing.T) {
	s := setupAccountTestDB(t)

	a, _ := s.Create("user-abc")
	s.ActivatePaidPlan(a.ID, "sub_123", 3000)

	ok, err := s.CancelSubscription("sub_123")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !ok {
		t.Fatal("cancel matched no account")
	}

	got, _ := s.GetByID(a.ID)
	if got.Plan != model.PlanTrial {
		t.Errorf("plan after cancel = %q, want trial", got.Plan)
	}
	if got.SubscriptionStatus == nil || *got.SubscriptionStatus != model.SubscriptionCancelled {
		t.Errorf("status after cancel = %v, want cancelled", got.SubscriptionStatus)
	}
	if got.TokensRemaining != 0 {
		t.Errorf("tokens after cancel = %d, want 0", got.TokensRemaining)
	}
}

func TestApplyProgression(t *testing.T) {
	s := setupAccountTestDB(t)

	a, _ := s.Create("user-abc")
	if err := s.ApplyProgression(a.ID, 17, 3, 5, 1.0, "2025-01-11", 4); err != nil {
		t.Fatalf("apply progression: %v", err)
	}

	got, _ := s.GetByID(a.ID)
	if got.Power != 17 {
		t.Errorf("power = %d, want 17", got.Power)
	}
	if got.CurrentStreak != 3 || got.LongestStreak != 5 {
		t.Errorf("streak = %d/%d, want 3/5", got.CurrentStreak, got.LongestStreak)
	}
	if got.LastActivityDate == nil || *got.LastActivityDate != "2025-01-11" {
		t.Errorf("last activity = %v, want 2025-01-11", got.LastActivityDate)
	}
	if got.TotalSessions != 1 || got.TotalMinutes != 4 {
		t.Errorf("totals = %d sessions / %d minutes, want 1/4", got.TotalSessions, got.TotalMinutes)
	}
}
