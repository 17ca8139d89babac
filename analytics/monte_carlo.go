package analytics

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NewSource returns a deterministic random source for reproducible simulations.
func NewSource(seed uint64) rand.Source {
	return rand.NewSource(seed)
}

// TerminalPrices draws n terminal prices of the underlying under geometric Brownian motion:
//
//	S_T = S * exp[(r - q - σ²/2)T + σ√T Z],  Z ~ N(0, 1)
//
// A nil src draws from the global source and is not reproducible.
func TerminalPrices(c Contract, vol float64, n int, src rand.Source) ([]float64, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := validateVolatility(vol); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []float64{}, nil
	}

	drift := (c.RiskFreeRate - c.DividendYield - 0.5*vol*vol) * c.TimeToExpiry
	z := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	diffusion := vol * math.Sqrt(c.TimeToExpiry)

	out := make([]float64, n)
	for i := range out {
		out[i] = c.Spot * math.Exp(drift+diffusion*z.Rand())
	}
	return out, nil
}

// Bin is one histogram bucket covering [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count float64 `json:"count"`
}

// Histogram buckets samples into equal-width bins spanning their range.
func Histogram(samples []float64, bins int) []Bin {
	if len(samples) == 0 || bins <= 0 {
		return nil
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: float64(len(sorted))}}
	}
	// nudge the last divider so the maximum falls inside the final bin
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, math.Nextafter(hi, math.Inf(1)))

	counts := stat.Histogram(nil, dividers, sorted, nil)
	out := make([]Bin, bins)
	for i := range out {
		out[i] = Bin{Lower: dividers[i], Upper: dividers[i+1], Count: counts[i]}
	}
	return out
}

// ProbabilityAbove is the share of samples strictly above level.
func ProbabilityAbove(samples []float64, level float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	above := 0
	for _, s := range samples {
		if s > level {
			above++
		}
	}
	return float64(above) / float64(len(samples))
}
