package analytics

import "math"

// Greeks are raw partial derivatives of the option value: Vega per unit of volatility,
// Theta per year and Rho per unit of rate. Use Reported for display units.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
	// Degenerate is set at expiry or zero volatility, where Gamma, Vega and Theta are
	// reported as zero instead of their singular limits.
	Degenerate bool `json:"degenerate,omitempty"`
}

// Reported converts to the usual quoting convention: Vega per vol point, Theta per calendar
// day and Rho per rate point.
func (g Greeks) Reported() Greeks {
	return Greeks{
		Delta:      g.Delta,
		Gamma:      g.Gamma,
		Vega:       g.Vega / 100,
		Theta:      g.Theta / 365,
		Rho:        g.Rho / 100,
		Degenerate: g.Degenerate,
	}
}

// ComputeGreeks returns Delta, Gamma, Vega, Theta and Rho of the contract at the given volatility.
func ComputeGreeks(c Contract, vol float64) (Greeks, error) {
	if err := c.Validate(); err != nil {
		return Greeks{}, err
	}
	if err := validateVolatility(vol); err != nil {
		return Greeks{}, err
	}
	return greeks(c, vol), nil
}

func greeks(c Contract, vol float64) Greeks {
	if degenerate(c, vol) {
		return degenerateGreeks(c)
	}

	d1, d2 := d1d2(c, vol)
	sqrtT := math.Sqrt(c.TimeToExpiry)
	divDisc := c.dividendDiscount()
	rateDisc := c.rateDiscount()
	pdf := normPDF(d1)

	g := Greeks{
		// exp(-qT) * N'(d1) / (S * σ * sqrt(T))
		Gamma: divDisc * pdf / (c.Spot * vol * sqrtT),
		// S * exp(-qT) * N'(d1) * sqrt(T)
		Vega: c.Spot * divDisc * pdf * sqrtT,
	}

	decay := -c.Spot * divDisc * pdf * vol / (2 * sqrtT)
	if c.Type == Call {
		g.Delta = divDisc * normCDF(d1)
		g.Theta = decay - c.RiskFreeRate*c.Strike*rateDisc*normCDF(d2) + c.DividendYield*c.Spot*divDisc*normCDF(d1)
		g.Rho = c.Strike * c.TimeToExpiry * rateDisc * normCDF(d2)
	} else {
		g.Delta = divDisc * (normCDF(d1) - 1)
		g.Theta = decay + c.RiskFreeRate*c.Strike*rateDisc*normCDF(-d2) - c.DividendYield*c.Spot*divDisc*normCDF(-d1)
		g.Rho = -c.Strike * c.TimeToExpiry * rateDisc * normCDF(-d2)
	}
	return g
}

// degenerateGreeks differentiates the discounted intrinsic value. Gamma, Vega and Theta are
// zero; Delta is a step at the forward and Rho follows the discounted strike leg.
func degenerateGreeks(c Contract) Greeks {
	g := Greeks{Degenerate: true}
	divDisc := c.dividendDiscount()
	strikeLeg := c.Strike * c.TimeToExpiry * c.rateDiscount()
	fwd := c.forward()

	switch {
	case fwd > c.Strike:
		if c.Type == Call {
			g.Delta = divDisc
			g.Rho = strikeLeg
		}
	case fwd < c.Strike:
		if c.Type == Put {
			g.Delta = -divDisc
			g.Rho = -strikeLeg
		}
	default:
		g.Delta = 0.5 * divDisc
		if c.Type == Put {
			g.Delta = -g.Delta
		}
	}
	return g
}
