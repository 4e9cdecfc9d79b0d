package progression

import "testing"

func TestNextStreak(t *testing.T) {
	jan10 := "2025-01-10"

	tests := []struct {
		name    string
		last    *string
		today   string
		current int
		want    int
	}{
		{"first ever activity", nil, "2025-01-11", 0, 1},
		{"next day extends", &jan10, "2025-01-11", 4, 5},
		{"same day unchanged", &jan10, "2025-01-10", 4, 4},
		{"two day gap resets", &jan10, "2025-01-12", 4, 1},
		{"long gap resets", &jan10, "2025-01-13", 9, 1},
		{"same day with zero current normalizes", &jan10, "2025-01-10", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextStreak(tt.last, tt.today, tt.current); got != tt.want {
				t.Errorf("NextStreak(%v, %s, %d) = %d, want %d", tt.last, tt.today, tt.current, got, tt.want)
			}
		})
	}
}

func TestMultiplierFor(t *testing.T) {
	tests := []struct {
		streak int
		want   float64
	}{
		{0, 1.0},
		{1, 1.0},
		{13, 1.0},
		{14, 1.15},
		{29, 1.15},
		{30, 1.17},
		{179, 1.17},
		{180, 1.5},
		{364, 1.5},
		{365, 2.5},
		{1000, 2.5},
	}
	for _, tt := range tests {
		if got := MultiplierFor(tt.streak); got != tt.want {
			t.Errorf("MultiplierFor(%d) = %v, want %v", tt.streak, got, tt.want)
		}
	}
}

func TestBasePower(t *testing.T) {
	tests := []struct {
		seconds int
		want    int
	}{
		{0, 5},
		{59, 5},
		{60, 7},
		{90, 7},
		{120, 9},
		{300, 15},
		{-10, 5},
	}
	for _, tt := range tests {
		if got := BasePower(tt.seconds); got != tt.want {
			t.Errorf("BasePower(%d) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestPowerGained(t *testing.T) {
	tests := []struct {
		base int
		mult float64
		want int64
	}{
		{10, 1.0, 10},
		{7, 1.15, 8},   // 8.05 rounds to 8
		{15, 1.17, 18}, // 17.55 rounds to 18
		{5, 2.5, 13},   // 12.5 rounds half away from zero
	}
	for _, tt := range tests {
		if got := PowerGained(tt.base, tt.mult); got != tt.want {
			t.Errorf("PowerGained(%d, %v) = %d, want %d", tt.base, tt.mult, got, tt.want)
		}
	}
}
