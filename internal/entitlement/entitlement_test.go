package entitlement

import (
	"testing"

	"github.com/mtarnawa/hanashi/internal/model"
)

func strPtr(s string) *string { return &s }

func TestResolveTrial(t *testing.T) {
	tests := []struct {
		name            string
		credits         int
		purchases       int
		wantCanStart    bool
		wantCanPurchase bool
	}{
		{"fresh account", 0, 0, false, true},
		{"credits available", 5, 1, true, true},
		{"credits exhausted one purchase left", 0, 1, false, true},
		{"purchase limit reached", 0, 2, false, false},
		{"credits left at purchase limit", 3, 2, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &model.Account{
				Plan:               model.PlanTrial,
				TrialCredits:       tt.credits,
				TrialPurchaseCount: tt.purchases,
			}
			e := Resolve(a)
			if e.CanStart != tt.wantCanStart {
				t.Errorf("CanStart = %v, want %v", e.CanStart, tt.wantCanStart)
			}
			if e.CanPurchaseTrialPackage != tt.wantCanPurchase {
				t.Errorf("CanPurchaseTrialPackage = %v, want %v", e.CanPurchaseTrialPackage, tt.wantCanPurchase)
			}
			if e.MaxSessionSeconds != TrialMaxSessionSeconds {
				t.Errorf("MaxSessionSeconds = %d, want %d", e.MaxSessionSeconds, TrialMaxSessionSeconds)
			}
			if e.ContentTier != "trial" {
				t.Errorf("ContentTier = %q, want trial", e.ContentTier)
			}
			if e.Overage {
				t.Error("trial plan can never be in overage")
			}
		})
	}
}

func TestResolvePaid(t *testing.T) {
	tests := []struct {
		name         string
		tokens       int
		status       *string
		wantCanStart bool
		wantOverage  bool
	}{
		{"tokens available", 100, strPtr(model.SubscriptionActive), true, false},
		{"tokens exhausted active subscription", 0, strPtr(model.SubscriptionActive), true, true},
		{"tokens exhausted past due", 0, strPtr(model.SubscriptionPastDue), false, true},
		{"tokens exhausted cancelled", 0, strPtr(model.SubscriptionCancelled), false, true},
		{"tokens exhausted no status", 0, nil, false, true},
		{"tokens available past due", 50, strPtr(model.SubscriptionPastDue), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &model.Account{
				Plan:               model.PlanPaid,
				TokensRemaining:    tt.tokens,
				SubscriptionStatus: tt.status,
			}
			e := Resolve(a)
			if e.CanStart != tt.wantCanStart {
				t.Errorf("CanStart = %v, want %v", e.CanStart, tt.wantCanStart)
			}
			if e.Overage != tt.wantOverage {
				t.Errorf("Overage = %v, want %v", e.Overage, tt.wantOverage)
			}
			if e.MaxSessionSeconds != PaidMaxSessionSeconds {
				t.Errorf("MaxSessionSeconds = %d, want %d", e.MaxSessionSeconds, PaidMaxSessionSeconds)
			}
			if e.ContentTier != "all" {
				t.Errorf("ContentTier = %q, want all", e.ContentTier)
			}
			if e.CanPurchaseTrialPackage {
				t.Error("paid plan cannot purchase trial packages")
			}
		})
	}
}

func TestTokensForDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    int
	}{
		{0, 0},
		{-5, 0},
		{60, 10},
		{90, 15},
		{61, 11}, // partial minutes round up per second
		{300, 50},
		{1, 1},
	}
	for _, tt := range tests {
		if got := TokensForDuration(tt.seconds); got != tt.want {
			t.Errorf("TokensForDuration(%d) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestOverageCents(t *testing.T) {
	tests := []struct {
		shortfall int
		want      int
	}{
		{0, 0},
		{1, 25},
		{10, 25},
		{11, 50},
		{20, 50},
	}
	for _, tt := range tests {
		if got := OverageCents(tt.shortfall); got != tt.want {
			t.Errorf("OverageCents(%d) = %d, want %d", tt.shortfall, got, tt.want)
		}
	}
}
