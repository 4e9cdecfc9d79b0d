package progression

import "testing"

func TestCatalogIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, b := range Catalog {
		if seen[b.ID] {
			t.Errorf("duplicate badge id %q", b.ID)
		}
		seen[b.ID] = true
		if len(b.Conditions) == 0 {
			t.Errorf("badge %q has no conditions", b.ID)
		}
	}
}

func TestBadgeEvaluate(t *testing.T) {
	badge := Badge{
		ID:         "test",
		Conditions: []Condition{{StatTotalSessions, 10}},
	}

	met, progress, total := badge.Evaluate(Stats{TotalSessions: 3})
	if met {
		t.Error("badge met at 3/10 sessions")
	}
	if progress != 3 || total != 10 {
		t.Errorf("progress = %d/%d, want 3/10", progress, total)
	}

	met, progress, total = badge.Evaluate(Stats{TotalSessions: 25})
	if !met {
		t.Error("badge not met at 25 sessions")
	}
	if progress != 10 || total != 10 {
		t.Errorf("progress = %d/%d, want clamped 10/10", progress, total)
	}
}

func TestBadgeEvaluateConjunction(t *testing.T) {
	badge := Badge{
		ID:         "test",
		Conditions: []Condition{{StatBestCategoryRate, 0.8}, {StatTotalSessions, 10}},
	}

	// High rate alone is not enough.
	if met, _, _ := badge.Evaluate(Stats{BestCategoryRate: 0.9, TotalSessions: 5}); met {
		t.Error("badge met with only one condition satisfied")
	}
	if met, _, _ := badge.Evaluate(Stats{BestCategoryRate: 0.9, TotalSessions: 10}); !met {
		t.Error("badge not met with all conditions satisfied")
	}
}

func TestCatalogExhaustive(t *testing.T) {
	// A maxed-out account unlocks every badge in the catalog; a fresh one
	// unlocks none. Guards against predicates referencing unmapped stats.
	max := Stats{
		TotalSessions:    100000,
		TotalMinutes:     100000,
		CurrentStreak:    1000,
		LongestStreak:    1000,
		Power:            1 << 40,
		BestCategoryRate: 1.0,
		SessionsPerWeek:  100,
	}
	for _, b := range Catalog {
		if met, _, _ := b.Evaluate(max); !met {
			t.Errorf("badge %q not unlockable at max stats", b.ID)
		}
		if met, _, _ := b.Evaluate(Stats{}); met {
			t.Errorf("badge %q unlocked with zero stats", b.ID)
		}
	}
}
