// Package marketdata fetches the spot, price history and option chains an analysis runs on.
package marketdata

import (
	"context"
	"errors"
	"math"

	"github.com/souvik131/options-analyser/analytics"
)

var (
	ErrNotFound    = errors.New("marketdata: not found")
	ErrUnavailable = errors.New("marketdata: source unavailable")
)

// Provider is the market-data source behind an analysis.
type Provider interface {
	Spot(ctx context.Context, ticker string) (float64, error)
	// History returns daily candles covering the last days calendar days, oldest first.
	History(ctx context.Context, ticker string, days int) ([]Candle, error)
	// Expiries lists the listed expiration dates as YYYY-MM-DD, ascending.
	Expiries(ctx context.Context, ticker string) ([]string, error)
	Chain(ctx context.Context, ticker, expiry string) (*Chain, error)
}

// Profiler is implemented by providers that know the company behind a ticker.
type Profiler interface {
	Profile(ctx context.Context, ticker string) (*Profile, error)
}

type Profile struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type Candle struct {
	Timestamp int64   `json:"timestamp" csv:"timestamp"`
	Open      float64 `json:"open" csv:"open"`
	High      float64 `json:"high" csv:"high"`
	Low       float64 `json:"low" csv:"low"`
	Close     float64 `json:"close" csv:"close"`
	Volume    uint64  `json:"volume" csv:"volume"`
}

// Closes extracts the close series, skipping non-positive closes.
func Closes(candles []Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c.Close > 0 {
			out = append(out, c.Close)
		}
	}
	return out
}

type Quote struct {
	Strike       float64 `json:"strike"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	Volume       uint64  `json:"volume"`
	OpenInterest uint64  `json:"open_interest"`
}

// Mid is the bid/ask midpoint. With either side missing it falls back to the last trade, and
// returns NaN when there is no usable price at all.
func (q Quote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	if q.Last > 0 {
		return q.Last
	}
	return math.NaN()
}

type Chain struct {
	Ticker string  `json:"ticker"`
	Expiry string  `json:"expiry"`
	Calls  []Quote `json:"calls"`
	Puts   []Quote `json:"puts"`
}

// Side returns the calls or puts of the chain.
func (c *Chain) Side(t analytics.OptionType) []Quote {
	if t == analytics.Put {
		return c.Puts
	}
	return c.Calls
}
