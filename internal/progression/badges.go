package progression

// Stat names a derived account statistic a badge condition can reference.
type Stat string

const (
	StatTotalSessions    Stat = "total_sessions"
	StatTotalMinutes     Stat = "total_minutes"
	StatCurrentStreak    Stat = "current_streak"
	StatLongestStreak    Stat = "longest_streak"
	StatPower            Stat = "power"
	StatBestCategoryRate Stat = "best_category_rate"
	StatSessionsPerWeek  Stat = "sessions_per_week"
)

// Stats is the freshly recomputed input to badge evaluation. BestCategoryRate
// only counts categories with at least minCategorySamples finished sessions,
// so a single lucky session cannot unlock rate badges.
type Stats struct {
	TotalSessions    int
	TotalMinutes     int
	CurrentStreak    int
	LongestStreak    int
	Power            int64
	BestCategoryRate float64
	SessionsPerWeek  float64
}

const minCategorySamples = 10

// Condition is one declarative threshold: the named stat must be >= Min.
type Condition struct {
	Stat Stat
	Min  float64
}

// Badge is a static catalog entry. The unlock predicate is the conjunction
// of its conditions, evaluated by a generic interpreter rather than
// arbitrary code, so the catalog is exhaustively testable.
type Badge struct {
	ID          string
	Name        string
	Description string
	Conditions  []Condition
}

// Catalog is the full badge set, in display order.
var Catalog = []Badge{
	{"first_session", "First Words", "Complete your first practice session",
		[]Condition{{StatTotalSessions, 1}}},
	{"ten_sessions", "Finding Your Voice", "Complete 10 practice sessions",
		[]Condition{{StatTotalSessions, 10}}},
	{"fifty_sessions", "Conversationalist", "Complete 50 practice sessions",
		[]Condition{{StatTotalSessions, 50}}},
	{"hundred_sessions", "Centurion", "Complete 100 practice sessions",
		[]Condition{{StatTotalSessions, 100}}},
	{"hour_spoken", "Hour of Power", "Practice for a total of 60 minutes",
		[]Condition{{StatTotalMinutes, 60}}},
	{"ten_hours_spoken", "Deep Immersion", "Practice for a total of 600 minutes",
		[]Condition{{StatTotalMinutes, 600}}},
	{"week_streak", "Seven Days Strong", "Practice 7 days in a row",
		[]Condition{{StatCurrentStreak, 7}}},
	{"fortnight_streak", "Fortnight Fighter", "Practice 14 days in a row",
		[]Condition{{StatCurrentStreak, 14}}},
	{"month_streak", "Monthly Devotion", "Practice 30 days in a row",
		[]Condition{{StatCurrentStreak, 30}}},
	{"year_streak", "Year of the Tongue", "Practice 365 days in a row",
		[]Condition{{StatCurrentStreak, 365}}},
	{"power_1k", "Rising Force", "Reach 1,000 power",
		[]Condition{{StatPower, 1000}}},
	{"power_10k", "Unstoppable", "Reach 10,000 power",
		[]Condition{{StatPower, 10000}}},
	{"sharpshooter", "Sharpshooter", "Finish 80% of sessions in your best category",
		[]Condition{{StatBestCategoryRate, 0.8}, {StatTotalSessions, minCategorySamples}}},
	{"pacesetter", "Pacesetter", "Average 5 sessions per week",
		[]Condition{{StatSessionsPerWeek, 5}, {StatTotalSessions, 10}}},
}

func statValue(s Stats, st Stat) float64 {
	switch st {
	case StatTotalSessions:
		return float64(s.TotalSessions)
	case StatTotalMinutes:
		return float64(s.TotalMinutes)
	case StatCurrentStreak:
		return float64(s.CurrentStreak)
	case StatLongestStreak:
		return float64(s.LongestStreak)
	case StatPower:
		return float64(s.Power)
	case StatBestCategoryRate:
		return s.BestCategoryRate
	case StatSessionsPerWeek:
		return s.SessionsPerWeek
	default:
		return 0
	}
}

// Evaluate interprets the badge's conditions against the stats. It returns
// whether all conditions are met, plus progress/total toward the first
// condition for partially-complete display.
func (b Badge) Evaluate(s Stats) (met bool, progress, total int) {
	met = true
	for _, c := range b.Conditions {
		if statValue(s, c.Stat) < c.Min {
			met = false
		}
	}

	if len(b.Conditions) > 0 {
		first := b.Conditions[0]
		total = int(first.Min)
		progress = int(statValue(s, first.Stat))
		if progress > total {
			progress = total
		}
	}
	return met, progress, total
}
