package analytics

import "math"

// Moneyness describes where the spot sits relative to the strike.
type Moneyness string

const (
	InTheMoney    Moneyness = "in-the-money"
	AtTheMoney    Moneyness = "at-the-money"
	OutOfTheMoney Moneyness = "out-of-the-money"
)

// atmTolerance is the relative spot/strike distance still treated as at-the-money
const atmTolerance = 1e-9

func MoneynessOf(c Contract) Moneyness {
	if math.Abs(c.Spot-c.Strike) <= atmTolerance*c.Strike {
		return AtTheMoney
	}
	if (c.Type == Call && c.Spot > c.Strike) || (c.Type == Put && c.Spot < c.Strike) {
		return InTheMoney
	}
	return OutOfTheMoney
}

// Direction is the market view of a long position: bullish for calls, bearish for puts.
func Direction(t OptionType) string {
	if t == Put {
		return "bearish"
	}
	return "bullish"
}

// Breakeven is the underlying price at expiry where a long position recovers its premium.
func Breakeven(t OptionType, strike, premium float64) float64 {
	if t == Put {
		return strike - premium
	}
	return strike + premium
}

// Effect is the first-order change in option value for a move in spot and in volatility.
type Effect struct {
	SpotMove   float64 `json:"spot_move"`
	VolMove    float64 `json:"vol_move"`
	SpotEffect float64 `json:"spot_effect"`
	VolEffect  float64 `json:"vol_effect"`
}

// Effects approximates value changes from raw greeks: Delta*spotMove and Vega*volMove, where
// volMove is in volatility units (0.05 is five vol points).
func Effects(g Greeks, spotMove, volMove float64) Effect {
	return Effect{
		SpotMove:   spotMove,
		VolMove:    volMove,
		SpotEffect: g.Delta * spotMove,
		VolEffect:  g.Vega * volMove,
	}
}
