package marketdata

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const DateLayout = "2006-01-02"

// NearestExpiry returns the first expiry on or after now's date. When every expiry has passed
// the latest one is returned, and "" when there are none.
func NearestExpiry(expiries []string, now time.Time) string {
	sorted := append([]string(nil), expiries...)
	sort.Strings(sorted)

	today := now.Format(DateLayout)
	for _, expiry := range sorted {
		if expiry >= today {
			return expiry
		}
	}
	if len(sorted) > 0 {
		return sorted[len(sorted)-1]
	}
	return ""
}

// YearFraction is the calendar-day distance from now's date to expiry over 365, floored at zero.
func YearFraction(expiry string, now time.Time) (float64, error) {
	exp, err := time.ParseInLocation(DateLayout, expiry, now.Location())
	if err != nil {
		return 0, fmt.Errorf("expiry %q: %w", expiry, err)
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	days := math.Round(exp.Sub(today).Hours() / 24)
	if days < 0 {
		return 0, nil
	}
	return days / 365, nil
}

// SortByStrike returns a copy of quotes in ascending strike order.
func SortByStrike(quotes []Quote) []Quote {
	sorted := append([]Quote(nil), quotes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Strike < sorted[j].Strike
	})
	return sorted
}

func atmIndex(sorted []Quote, spot float64) int {
	idx := 0
	minDiff := math.Abs(sorted[0].Strike - spot)
	for i, q := range sorted {
		diff := math.Abs(q.Strike - spot)
		if diff < minDiff {
			minDiff = diff
			idx = i
		}
	}
	return idx
}

// ATMStrike is the listed strike closest to spot. It returns 0 for an empty side.
func ATMStrike(quotes []Quote, spot float64) float64 {
	if len(quotes) == 0 {
		return 0
	}
	sorted := SortByStrike(quotes)
	return sorted[atmIndex(sorted, spot)].Strike
}

// FilterAroundATM keeps the at-the-money quote plus n strikes on either side, sorted by strike.
func FilterAroundATM(quotes []Quote, spot float64, n int) []Quote {
	if len(quotes) == 0 {
		return quotes
	}
	sorted := SortByStrike(quotes)
	idx := atmIndex(sorted, spot)

	start := idx - n
	end := idx + n + 1
	if start < 0 {
		start = 0
	}
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end]
}

// WithinPercent keeps quotes whose strike lies within pct (0.10 = 10%) of strike, sorted by strike.
func WithinPercent(quotes []Quote, strike, pct float64) []Quote {
	var out []Quote
	for _, q := range SortByStrike(quotes) {
		if math.Abs(q.Strike-strike) <= pct*strike {
			out = append(out, q)
		}
	}
	return out
}

// FindStrike returns the quote listed at strike.
func FindStrike(quotes []Quote, strike float64) (Quote, bool) {
	for _, q := range quotes {
		if q.Strike == strike {
			return q, true
		}
	}
	return Quote{}, false
}
