package engine

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/souvik131/options-analyser/analytics"
)

// Request selects what to analyse. An empty Expiry picks the nearest listed expiry and a zero
// Strike picks the at-the-money strike.
type Request struct {
	Ticker string               `json:"ticker"`
	Expiry string               `json:"expiry,omitempty"`
	Strike float64              `json:"strike,omitempty"`
	Type   analytics.OptionType `json:"type"`
}

// ChainRow is one strike of the chain snapshot. Error is set when no volatility could be
// implied from the quote.
type ChainRow struct {
	Strike     float64 `json:"strike"`
	Mid        float64 `json:"mid"`
	ImpliedVol float64 `json:"implied_vol,omitempty"`
	ModelPrice float64 `json:"model_price,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// NearbyRow carries the greeks of a strike close to the selected one, priced at its own
// implied volatility.
type NearbyRow struct {
	Strike     float64          `json:"strike"`
	ImpliedVol float64          `json:"implied_vol,omitempty"`
	Greeks     analytics.Greeks `json:"greeks"`
	Error      string           `json:"error,omitempty"`
}

type CurvePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Report struct {
	Ticker        string               `json:"ticker"`
	Company       string               `json:"company"`
	Expiry        string               `json:"expiry"`
	Type          analytics.OptionType `json:"type"`
	Spot          float64              `json:"spot"`
	HistoricalVol float64              `json:"historical_vol"`
	TimeToExpiry  float64              `json:"time_to_expiry"`
	RiskFreeRate  float64              `json:"risk_free_rate"`
	DividendYield float64              `json:"dividend_yield"`

	Chain []ChainRow `json:"chain"`

	Strike     float64             `json:"strike"`
	Premium    float64             `json:"premium"`
	ImpliedVol float64             `json:"implied_vol"`
	Iterations int                 `json:"iterations"`
	Greeks     analytics.Greeks    `json:"greeks"`
	Moneyness  analytics.Moneyness `json:"moneyness"`
	Direction  string              `json:"direction"`
	Breakeven  float64             `json:"breakeven"`
	// BreakevenProbability is the simulated chance of finishing beyond the breakeven.
	BreakevenProbability float64          `json:"breakeven_probability"`
	Effects              analytics.Effect `json:"effects"`

	PriceCurve   []CurvePoint    `json:"price_curve"`
	DeltaCurve   []CurvePoint    `json:"delta_curve"`
	ThetaCurve   []CurvePoint    `json:"theta_curve"`
	SmileCurve   []CurvePoint    `json:"smile_curve"`
	Nearby       []NearbyRow     `json:"nearby"`
	Distribution []analytics.Bin `json:"distribution"`

	GeneratedAt time.Time `json:"generated_at"`
}

const moneyPlaces = 4

// roundMoney rounds a monetary value half away from zero. Non-finite values pass through.
func roundMoney(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(moneyPlaces).InexactFloat64()
}

func roundCurve(points []CurvePoint) {
	for i := range points {
		points[i].X = roundMoney(points[i].X)
		points[i].Y = roundMoney(points[i].Y)
	}
}

// roundMonetary rounds every price-denominated field of the report in place.
func (r *Report) roundMonetary() {
	r.Spot = roundMoney(r.Spot)
	r.Premium = roundMoney(r.Premium)
	r.Breakeven = roundMoney(r.Breakeven)
	r.Effects.SpotEffect = roundMoney(r.Effects.SpotEffect)
	r.Effects.VolEffect = roundMoney(r.Effects.VolEffect)
	for i := range r.Chain {
		r.Chain[i].Mid = roundMoney(r.Chain[i].Mid)
		r.Chain[i].ModelPrice = roundMoney(r.Chain[i].ModelPrice)
	}
	roundCurve(r.PriceCurve)
	for i := range r.DeltaCurve {
		r.DeltaCurve[i].X = roundMoney(r.DeltaCurve[i].X)
	}
	for i := range r.Distribution {
		r.Distribution[i].Lower = roundMoney(r.Distribution[i].Lower)
		r.Distribution[i].Upper = roundMoney(r.Distribution[i].Upper)
	}
}

func rowsByStrike(rows []ChainRow) map[float64]ChainRow {
	out := make(map[float64]ChainRow, len(rows))
	for _, row := range rows {
		out[row.Strike] = row
	}
	return out
}
