package progression

import "math"

// Tier is one entry of the static progression ladder: a contiguous power
// range with a rank name, a belt within the rank, and a display color.
type Tier struct {
	MinPower int64  `json:"min_power"`
	MaxPower int64  `json:"max_power"` // inclusive
	Rank     string `json:"rank"`
	Belt     string `json:"belt"`
	Color    string `json:"color"`
}

var ranks = []string{"Novice", "Student", "Apprentice", "Adept", "Expert", "Master", "Grandmaster"}

var belts = []struct {
	name  string
	color string
}{
	{"White", "#F5F5F0"},
	{"Yellow", "#F2C744"},
	{"Orange", "#E8863A"},
	{"Green", "#4F9D55"},
	{"Blue", "#3A6FB8"},
	{"Brown", "#7A5230"},
	{"Black", "#1C1C1C"},
}

// tiers is the 49-entry ladder. Entry i covers a band of width 100*(i+1),
// so band i starts at 100*i*(i+1)/2; the last band is open-ended. The table
// covers [0, +inf) with no gaps or overlaps.
var tiers = buildTiers()

func buildTiers() []Tier {
	table := make([]Tier, 0, len(ranks)*len(belts))
	var min int64
	i := 0
	for _, rank := range ranks {
		for _, belt := range belts {
			width := int64(100 * (i + 1))
			t := Tier{
				MinPower: min,
				MaxPower: min + width - 1,
				Rank:     rank,
				Belt:     belt.name,
				Color:    belt.color,
			}
			if i == len(ranks)*len(belts)-1 {
				t.MaxPower = math.MaxInt64
			}
			table = append(table, t)
			min += width
			i++
		}
	}
	return table
}

// Tiers returns the full ladder in ascending order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// TierFor returns the ladder entry containing the given cumulative power
// and its index. Negative power maps to the first entry; power beyond the
// table clamps to the last.
func TierFor(power int64) (Tier, int) {
	if power < 0 {
		return tiers[0], 0
	}
	for i, t := range tiers {
		if power >= t.MinPower && power <= t.MaxPower {
			return t, i
		}
	}
	last := len(tiers) - 1
	return tiers[last], last
}
