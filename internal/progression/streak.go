package progression

import (
	"math"
	"time"
)

const dateLayout = "2006-01-02"

// DateUTC formats a time as a UTC calendar date. Streak comparisons are
// date-only, UTC.
func DateUTC(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// NextStreak computes the streak after activity on today given the last
// activity date. Same day leaves the streak unchanged, exactly one day later
// extends it, and any larger gap (including first-ever activity) resets
// to 1.
func NextStreak(lastActivity *string, today string, current int) int {
	if lastActivity == nil {
		return 1
	}
	last, err := time.Parse(dateLayout, *lastActivity)
	if err != nil {
		return 1
	}
	now, err := time.Parse(dateLayout, today)
	if err != nil {
		return 1
	}

	switch int(now.Sub(last).Hours() / 24) {
	case 0:
		if current < 1 {
			return 1
		}
		return current
	case 1:
		return current + 1
	default:
		return 1
	}
}

// MultiplierFor returns the power multiplier active for a streak length.
func MultiplierFor(streak int) float64 {
	switch {
	case streak >= 365:
		return 2.5
	case streak >= 180:
		return 1.5
	case streak >= 30:
		return 1.17
	case streak >= 14:
		return 1.15
	default:
		return 1.0
	}
}

// BasePower is the raw power for a session before the streak multiplier:
// 5 for showing up plus 2 per full minute.
func BasePower(durationSeconds int) int {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return 5 + 2*(durationSeconds/60)
}

// PowerGained applies the active multiplier to base power, rounded to the
// nearest integer.
func PowerGained(base int, multiplier float64) int64 {
	return int64(math.Round(float64(base) * multiplier))
}
