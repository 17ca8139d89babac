// Package engine runs a full analysis of one option: it pulls market data, implies volatility
// across the chain, prices the selected strike and builds the scenario curves around it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-analyser/analytics"
	"github.com/souvik131/options-analyser/marketdata"
)

type Options struct {
	RiskFreeRate  float64 `json:"risk_free_rate"`
	DividendYield float64 `json:"dividend_yield"`
	HistoryDays   int     `json:"history_days"`
	GridPoints    int     `json:"grid_points"`
	// MinTime is where the theta curve starts, in years.
	MinTime           float64 `json:"min_time"`
	MonteCarloSamples int     `json:"monte_carlo_samples"`
	MonteCarloSeed    uint64  `json:"monte_carlo_seed"`
	HistogramBins     int     `json:"histogram_bins"`
	NearbyPercent     float64 `json:"nearby_percent"`
	SpotMove          float64 `json:"spot_move"`
	VolMove           float64 `json:"vol_move"`
}

func DefaultOptions() Options {
	return Options{
		RiskFreeRate:      0.05,
		HistoryDays:       183,
		GridPoints:        100,
		MinTime:           0.01,
		MonteCarloSamples: 1000,
		MonteCarloSeed:    42,
		HistogramBins:     40,
		NearbyPercent:     0.10,
		SpotMove:          5,
		VolMove:           0.05,
	}
}

type Engine struct {
	Provider  marketdata.Provider
	Options   Options
	Publisher Publisher

	now func() time.Time
}

func New(p marketdata.Provider, opts Options) *Engine {
	return &Engine{Provider: p, Options: opts, Publisher: NopPublisher{}, now: time.Now}
}

// WithClock fixes the engine's notion of today, used to pick expiries and measure time to expiry.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

// Analyse builds the report for req. Market-data failures and a selected strike whose
// volatility cannot be implied fail the whole analysis; any other strike that cannot be
// solved is reported on its own row.
func (e *Engine) Analyse(ctx context.Context, req Request) (*Report, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", analytics.ErrInvalidInput)
	}
	if req.Type != analytics.Call && req.Type != analytics.Put {
		return nil, fmt.Errorf("%w: option type %v", analytics.ErrInvalidInput, req.Type)
	}
	opts := e.Options
	fields := log.Fields{"ticker": ticker, "type": req.Type}
	start := time.Now()

	spot, err := e.Provider.Spot(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("spot %s: %w", ticker, err)
	}
	histVol := e.historicalVolatility(ctx, ticker, opts.HistoryDays)

	expiry := req.Expiry
	if expiry == "" {
		expiries, err := e.Provider.Expiries(ctx, ticker)
		if err != nil {
			return nil, fmt.Errorf("expiries %s: %w", ticker, err)
		}
		expiry = marketdata.NearestExpiry(expiries, e.clock())
		if expiry == "" {
			return nil, fmt.Errorf("%w: no listed expiries for %s", marketdata.ErrNotFound, ticker)
		}
	}
	T, err := marketdata.YearFraction(expiry, e.clock())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analytics.ErrInvalidInput, err)
	}
	fields["expiry"] = expiry

	chain, err := e.Provider.Chain(ctx, ticker, expiry)
	if err != nil {
		return nil, fmt.Errorf("chain %s %s: %w", ticker, expiry, err)
	}
	side := marketdata.SortByStrike(chain.Side(req.Type))
	if len(side) == 0 {
		return nil, fmt.Errorf("%w: no %v quotes for %s %s", marketdata.ErrNotFound, req.Type, ticker, expiry)
	}

	base, err := analytics.NewContract(req.Type, spot, side[0].Strike, T, opts.RiskFreeRate, opts.DividendYield)
	if err != nil {
		return nil, err
	}
	solver := analytics.SolverOptions{Seed: histVol}

	rows := make([]ChainRow, len(side))
	for i, q := range side {
		rows[i] = solveRow(base.WithStrike(q.Strike), q, solver)
		if rows[i].Error != "" {
			log.WithFields(fields).WithField("strike", q.Strike).Debug(rows[i].Error)
		}
	}

	strike := req.Strike
	if strike == 0 {
		strike = marketdata.ATMStrike(side, spot)
	}
	quote, ok := marketdata.FindStrike(side, strike)
	if !ok {
		return nil, fmt.Errorf("%w: strike %v is not listed for %s %s", analytics.ErrInvalidInput, strike, ticker, expiry)
	}
	c := base.WithStrike(strike)
	premium := quote.Mid()
	if math.IsNaN(premium) {
		return nil, fmt.Errorf("%w: strike %v has no bid, ask or last price", marketdata.ErrNotFound, strike)
	}
	iv, err := analytics.ImpliedVolatilityWithOptions(c, premium, solver)
	if err != nil {
		log.WithFields(fields).WithField("strike", strike).WithError(err).Warn("implied volatility failed")
		return nil, fmt.Errorf("implied volatility of %v %v: %w", strike, req.Type, err)
	}
	raw, err := analytics.ComputeGreeks(c, iv.Volatility)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Ticker:        ticker,
		Company:       e.company(ctx, ticker),
		Expiry:        expiry,
		Type:          req.Type,
		Spot:          spot,
		HistoricalVol: histVol,
		TimeToExpiry:  T,
		RiskFreeRate:  opts.RiskFreeRate,
		DividendYield: opts.DividendYield,
		Chain:         rows,
		Strike:        strike,
		Premium:       premium,
		ImpliedVol:    iv.Volatility,
		Iterations:    iv.Iterations,
		Greeks:        raw.Reported(),
		Moneyness:     analytics.MoneynessOf(c),
		Direction:     analytics.Direction(req.Type),
		Breakeven:     analytics.Breakeven(req.Type, strike, premium),
		Effects:       analytics.Effects(raw, opts.SpotMove, opts.VolMove),
		GeneratedAt:   e.clock().UTC(),
	}

	report.PriceCurve, report.DeltaCurve = spotCurves(c, iv.Volatility, opts.GridPoints)
	report.ThetaCurve = thetaCurve(c, iv.Volatility, opts.MinTime, opts.GridPoints)
	report.SmileCurve = smileCurve(rows)
	report.Nearby = nearby(c, side, rows, strike, opts.NearbyPercent)

	samples, err := analytics.TerminalPrices(c, iv.Volatility, opts.MonteCarloSamples, analytics.NewSource(opts.MonteCarloSeed))
	if err != nil {
		return nil, err
	}
	report.Distribution = analytics.Histogram(samples, opts.HistogramBins)
	report.BreakevenProbability = analytics.ProbabilityAbove(samples, report.Breakeven)
	if req.Type == analytics.Put {
		report.BreakevenProbability = 1 - report.BreakevenProbability
	}

	report.roundMonetary()

	log.WithFields(fields).WithFields(log.Fields{
		"strike":  strike,
		"iv":      iv.Volatility,
		"strikes": len(rows),
		"elapsed": time.Since(start),
	}).Info("analysis complete")

	if e.Publisher != nil {
		if err := e.Publisher.Publish(ctx, report); err != nil {
			log.WithFields(fields).WithError(err).Warn("publishing report failed")
		}
	}
	return report, nil
}

func (e *Engine) historicalVolatility(ctx context.Context, ticker string, days int) float64 {
	candles, err := e.Provider.History(ctx, ticker, days)
	if err != nil {
		log.WithField("ticker", ticker).WithError(err).Warn("history unavailable")
		return 0
	}
	vol, err := marketdata.HistoricalVolatility(marketdata.Closes(candles))
	if err != nil {
		log.WithField("ticker", ticker).WithError(err).Warn("historical volatility unavailable")
		return 0
	}
	return vol
}

func (e *Engine) company(ctx context.Context, ticker string) string {
	profiler, ok := e.Provider.(marketdata.Profiler)
	if !ok {
		return ticker
	}
	profile, err := profiler.Profile(ctx, ticker)
	if err != nil {
		log.WithField("ticker", ticker).WithError(err).Debug("profile unavailable")
		return ticker
	}
	return profile.Name
}

func solveRow(c analytics.Contract, q marketdata.Quote, solver analytics.SolverOptions) ChainRow {
	row := ChainRow{Strike: q.Strike}
	mid := q.Mid()
	if math.IsNaN(mid) {
		row.Error = "no bid, ask or last price"
		return row
	}
	row.Mid = mid

	iv, err := analytics.ImpliedVolatilityWithOptions(c, mid, solver)
	if err != nil {
		row.Error = errorText(err)
		return row
	}
	row.ImpliedVol = iv.Volatility
	row.ModelPrice = analytics.MustPrice(c, iv.Volatility)
	return row
}

func errorText(err error) string {
	switch {
	case errors.Is(err, analytics.ErrNoArbitrageViolation):
		return "price violates no-arbitrage bounds"
	case errors.Is(err, analytics.ErrNoConvergence):
		return "implied volatility did not converge"
	}
	return err.Error()
}

func spotCurves(c analytics.Contract, vol float64, n int) (price, delta []CurvePoint) {
	points := analytics.Sweep(c, vol, analytics.Spot, analytics.SpotGrid(c.Spot, 0.5, 1.5, n))
	for _, p := range points {
		if p.Err != nil {
			continue
		}
		price = append(price, CurvePoint{X: p.X, Y: p.Price})
		delta = append(delta, CurvePoint{X: p.X, Y: p.Greeks.Delta})
	}
	return price, delta
}

// thetaCurve plots daily theta against time remaining, from minTime out to the contract's expiry.
func thetaCurve(c analytics.Contract, vol, minTime float64, n int) []CurvePoint {
	points := analytics.Sweep(c, vol, analytics.Time, analytics.TimeGrid(minTime, c.TimeToExpiry, n))
	out := make([]CurvePoint, 0, len(points))
	for _, p := range points {
		if p.Err != nil {
			continue
		}
		out = append(out, CurvePoint{X: p.X, Y: p.Greeks.Reported().Theta})
	}
	return out
}

func smileCurve(rows []ChainRow) []CurvePoint {
	var out []CurvePoint
	for _, row := range rows {
		if row.Error == "" {
			out = append(out, CurvePoint{X: row.Strike, Y: row.ImpliedVol})
		}
	}
	return out
}

func nearby(c analytics.Contract, side []marketdata.Quote, rows []ChainRow, strike, pct float64) []NearbyRow {
	solved := rowsByStrike(rows)
	var out []NearbyRow
	for _, q := range marketdata.WithinPercent(side, strike, pct) {
		row := solved[q.Strike]
		if row.Error != "" {
			out = append(out, NearbyRow{Strike: q.Strike, Error: row.Error})
			continue
		}
		g, err := analytics.ComputeGreeks(c.WithStrike(q.Strike), row.ImpliedVol)
		if err != nil {
			out = append(out, NearbyRow{Strike: q.Strike, Error: err.Error()})
			continue
		}
		out = append(out, NearbyRow{Strike: q.Strike, ImpliedVol: row.ImpliedVol, Greeks: g.Reported()})
	}
	return out
}
