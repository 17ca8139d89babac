package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// below this σ√T the closed form is replaced by its σ→0 limit
const minVolSqrtTime = 1e-12

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// degenerate reports whether the contract/volatility pair sits on the removable singularity
// of the formula (at expiry or with zero volatility).
func degenerate(c Contract, vol float64) bool {
	return c.TimeToExpiry == 0 || vol == 0 || vol*math.Sqrt(c.TimeToExpiry) < minVolSqrtTime
}

// d1d2 returns
//
//	d1 = [ln(S/K) + (r - q + σ²/2)T] / (σ√T)
//	d2 = d1 - σ√T
func d1d2(c Contract, vol float64) (float64, float64) {
	volSqrtT := vol * math.Sqrt(c.TimeToExpiry)
	d1 := (math.Log(c.Spot/c.Strike) + (c.RiskFreeRate-c.DividendYield+0.5*vol*vol)*c.TimeToExpiry) / volSqrtT
	return d1, d1 - volSqrtT
}

// Price returns the Black-Scholes-Merton value of a European option with continuous dividend
// yield. At expiry or with zero volatility it returns the discounted intrinsic value of the
// forward, which is exactly max(S-K, 0) (resp. max(K-S, 0)) when T is zero.
func Price(c Contract, vol float64) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if err := validateVolatility(vol); err != nil {
		return 0, err
	}
	return price(c, vol), nil
}

// MustPrice is Price for inputs already known to be valid. It panics otherwise.
func MustPrice(c Contract, vol float64) float64 {
	p, err := Price(c, vol)
	if err != nil {
		panic(err)
	}
	return p
}

func price(c Contract, vol float64) float64 {
	if degenerate(c, vol) {
		return discountedIntrinsic(c)
	}

	d1, d2 := d1d2(c, vol)
	spot := c.Spot * c.dividendDiscount()
	strike := c.Strike * c.rateDiscount()

	var p float64
	if c.Type == Call {
		// S*exp(-qT)*N(d1) - K*exp(-rT)*N(d2)
		p = spot*normCDF(d1) - strike*normCDF(d2)
	} else {
		// K*exp(-rT)*N(-d2) - S*exp(-qT)*N(-d1)
		p = strike*normCDF(-d2) - spot*normCDF(-d1)
	}
	// rounding can leave deep out-of-the-money values a hair below zero
	return math.Max(0, p)
}

// discountedIntrinsic is max(S*exp(-qT) - K*exp(-rT), 0) for calls and the mirror for puts.
func discountedIntrinsic(c Contract) float64 {
	spot := c.Spot * c.dividendDiscount()
	strike := c.Strike * c.rateDiscount()
	if c.Type == Call {
		return math.Max(0, spot-strike)
	}
	return math.Max(0, strike-spot)
}

// Intrinsic is the payoff if the option were exercised at the current spot.
func Intrinsic(c Contract) float64 {
	if c.Type == Call {
		return math.Max(0, c.Spot-c.Strike)
	}
	return math.Max(0, c.Strike-c.Spot)
}

// Bounds returns the no-arbitrage price range of the contract. The lower bound is the
// zero-volatility value and the upper bound is only approached as volatility goes to infinity.
// At expiry both bounds collapse onto the intrinsic value.
func Bounds(c Contract) (lower, upper float64) {
	lower = discountedIntrinsic(c)
	if c.TimeToExpiry == 0 {
		return lower, lower
	}
	if c.Type == Call {
		return lower, c.Spot * c.dividendDiscount()
	}
	return lower, c.Strike * c.rateDiscount()
}
