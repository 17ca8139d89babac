package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/stat"

	"github.com/souvik131/options-analyser/analytics"
	"github.com/souvik131/options-analyser/engine"
	"github.com/souvik131/options-analyser/marketdata"
)

type contractQuery struct {
	Type     string   `form:"type"`
	Spot     float64  `form:"spot"`
	Strike   float64  `form:"strike"`
	Time     *float64 `form:"t"`
	Expiry   string   `form:"expiry"`
	Rate     *float64 `form:"rate"`
	Dividend *float64 `form:"dividend"`
}

type PriceResult struct {
	Price      float64 `json:"price"`
	Intrinsic  float64 `json:"intrinsic"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

type GreeksResult struct {
	// Raw carries vega per unit volatility and theta per year.
	Raw analytics.Greeks `json:"raw"`
	// Reported carries vega per volatility point and theta per calendar day.
	Reported analytics.Greeks `json:"reported"`
}

type SweepPoint struct {
	X      float64           `json:"x"`
	Price  float64           `json:"price,omitempty"`
	Greeks *analytics.Greeks `json:"greeks,omitempty"`
	Error  string            `json:"error,omitempty"`
}

type MonteCarloResult struct {
	Samples               int             `json:"samples"`
	Mean                  float64         `json:"mean"`
	StdDev                float64         `json:"std_dev"`
	ProbabilityInTheMoney float64         `json:"probability_in_the_money"`
	Bins                  []analytics.Bin `json:"bins"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", analytics.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// contract reads a contract from the query string. Time to expiry comes from t (years) or
// from an expiry date; rate and dividend fall back to the configured defaults.
func (s *Server) contract(c *gin.Context) (analytics.Contract, error) {
	var q contractQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return analytics.Contract{}, invalid("%v", err)
	}
	typ, err := analytics.ParseOptionType(q.Type)
	if err != nil {
		return analytics.Contract{}, err
	}

	var t float64
	switch {
	case q.Time != nil:
		t = *q.Time
	case q.Expiry != "":
		t, err = marketdata.YearFraction(q.Expiry, s.now())
		if err != nil {
			return analytics.Contract{}, invalid("%v", err)
		}
	default:
		return analytics.Contract{}, invalid("one of t or expiry is required")
	}

	rate := s.Engine.Options.RiskFreeRate
	if q.Rate != nil {
		rate = *q.Rate
	}
	dividend := s.Engine.Options.DividendYield
	if q.Dividend != nil {
		dividend = *q.Dividend
	}
	return analytics.NewContract(typ, q.Spot, q.Strike, t, rate, dividend)
}

func queryFloat(c *gin.Context, key string, def float64) (float64, error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, invalid("%s: %q is not a number", key, v)
	}
	return f, nil
}

func requireFloat(c *gin.Context, key string) (float64, error) {
	if _, ok := c.GetQuery(key); !ok {
		return 0, invalid("%s is required", key)
	}
	return queryFloat(c, key, 0)
}

func queryInt(c *gin.Context, key string, def, max int) (int, error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > max {
		return 0, invalid("%s must be an integer in [1, %d]", key, max)
	}
	return n, nil
}

func (s *Server) contractAndVol(c *gin.Context) (analytics.Contract, float64, bool) {
	ct, err := s.contract(c)
	if err != nil {
		abortWithError(c, err)
		return ct, 0, false
	}
	vol, err := requireFloat(c, "vol")
	if err != nil {
		abortWithError(c, err)
		return ct, 0, false
	}
	return ct, vol, true
}

func (s *Server) price(c *gin.Context) {
	ct, vol, ok := s.contractAndVol(c)
	if !ok {
		return
	}
	p, err := analytics.Price(ct, vol)
	if err != nil {
		abortWithError(c, err)
		return
	}
	lower, upper := analytics.Bounds(ct)
	meta := contractMeta(ct)
	meta.Volatility = vol
	c.JSON(http.StatusOK, Response[PriceResult]{
		Data: PriceResult{Price: p, Intrinsic: analytics.Intrinsic(ct), LowerBound: lower, UpperBound: upper},
		Meta: meta,
	})
}

func (s *Server) greeks(c *gin.Context) {
	ct, vol, ok := s.contractAndVol(c)
	if !ok {
		return
	}
	g, err := analytics.ComputeGreeks(ct, vol)
	if err != nil {
		abortWithError(c, err)
		return
	}
	meta := contractMeta(ct)
	meta.Volatility = vol
	c.JSON(http.StatusOK, Response[GreeksResult]{Data: GreeksResult{Raw: g, Reported: g.Reported()}, Meta: meta})
}

func (s *Server) impliedVol(c *gin.Context) {
	ct, err := s.contract(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	premium, err := requireFloat(c, "price")
	if err != nil {
		abortWithError(c, err)
		return
	}
	seed, err := queryFloat(c, "seed", 0)
	if err != nil {
		abortWithError(c, err)
		return
	}
	res, err := analytics.ImpliedVolatilityWithOptions(ct, premium, analytics.SolverOptions{Seed: seed})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response[analytics.ImpliedVolResult]{Data: res, Meta: contractMeta(ct)})
}

// sweepGrid builds the grid for dim from the optional from/to bounds, defaulting to
// 50%-150% of spot, 1%-100% volatility or MinTime up to the contract's time to expiry.
func (s *Server) sweepGrid(c *gin.Context, ct analytics.Contract, dim analytics.Dimension) ([]float64, error) {
	n, err := queryInt(c, "points", s.Engine.Options.GridPoints, MaxGridPoints)
	if err != nil {
		return nil, err
	}
	var from, to float64
	switch dim {
	case analytics.Spot:
		from, to = 0.5*ct.Spot, 1.5*ct.Spot
	case analytics.Volatility:
		from, to = 0.01, 1
	case analytics.Time:
		from, to = s.Engine.Options.MinTime, ct.TimeToExpiry
	}
	if from, err = queryFloat(c, "from", from); err != nil {
		return nil, err
	}
	if to, err = queryFloat(c, "to", to); err != nil {
		return nil, err
	}
	return analytics.Linspace(from, to, n), nil
}

func (s *Server) sweep(c *gin.Context) {
	ct, vol, ok := s.contractAndVol(c)
	if !ok {
		return
	}
	dim, err := analytics.ParseDimension(c.DefaultQuery("dimension", "spot"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	grid, err := s.sweepGrid(c, ct, dim)
	if err != nil {
		abortWithError(c, err)
		return
	}

	points := analytics.Sweep(ct, vol, dim, grid)
	out := make([]SweepPoint, len(points))
	for i, p := range points {
		out[i] = SweepPoint{X: p.X}
		if p.Err != nil {
			out[i].Error = p.Err.Error()
			continue
		}
		g := p.Greeks.Reported()
		out[i].Price = p.Price
		out[i].Greeks = &g
	}

	meta := contractMeta(ct)
	meta.Volatility = vol
	meta.Dimension = dim.String()
	meta.Points = len(out)
	c.JSON(http.StatusOK, Response[[]SweepPoint]{Data: out, Meta: meta})
}

func (s *Server) monteCarlo(c *gin.Context) {
	ct, vol, ok := s.contractAndVol(c)
	if !ok {
		return
	}
	opts := s.Engine.Options
	n, err := queryInt(c, "samples", opts.MonteCarloSamples, MaxMonteCarloSamples)
	if err != nil {
		abortWithError(c, err)
		return
	}
	bins, err := queryInt(c, "bins", opts.HistogramBins, 1000)
	if err != nil {
		abortWithError(c, err)
		return
	}
	seed := opts.MonteCarloSeed
	if v := c.Query("seed"); v != "" {
		if seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			abortWithError(c, invalid("seed: %q is not an unsigned integer", v))
			return
		}
	}

	samples, err := analytics.TerminalPrices(ct, vol, n, analytics.NewSource(seed))
	if err != nil {
		abortWithError(c, err)
		return
	}
	mean, std := stat.PopMeanStdDev(samples, nil)
	itm := analytics.ProbabilityAbove(samples, ct.Strike)
	if ct.Type == analytics.Put {
		itm = 1 - itm
	}

	meta := contractMeta(ct)
	meta.Volatility = vol
	c.JSON(http.StatusOK, Response[MonteCarloResult]{
		Data: MonteCarloResult{
			Samples:               n,
			Mean:                  mean,
			StdDev:                std,
			ProbabilityInTheMoney: itm,
			Bins:                  analytics.Histogram(samples, bins),
		},
		Meta: meta,
	})
}

// analysis runs the full engine. Clients sending Accept: application/x-protobuf get the
// report as a protobuf Struct.
func (s *Server) analysis(c *gin.Context) {
	req := engine.Request{Ticker: strings.TrimSpace(c.Query("ticker")), Expiry: c.Query("expiry")}
	var err error
	if req.Type, err = analytics.ParseOptionType(c.DefaultQuery("type", "call")); err != nil {
		abortWithError(c, err)
		return
	}
	if req.Strike, err = queryFloat(c, "strike", 0); err != nil {
		abortWithError(c, err)
		return
	}

	report, err := s.Engine.Analyse(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if strings.Contains(c.GetHeader("Accept"), engine.ProtobufContentType) {
		b, err := engine.MarshalReport(report)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Data(http.StatusOK, engine.ProtobufContentType, b)
		return
	}

	c.JSON(http.StatusOK, Response[*engine.Report]{
		Data: report,
		Meta: Meta{
			Ticker:     report.Ticker,
			Expiry:     report.Expiry,
			Strike:     report.Strike,
			OptionType: report.Type.String(),
			Volatility: report.ImpliedVol,
		},
	})
}

type invalidateRequest struct {
	Ticker string `json:"ticker"`
	Expiry string `json:"expiry"`
}

// invalidate drops cached market data: one chain when ticker and expiry are given, every
// entry of a ticker when only the ticker is, and the whole cache otherwise.
func (s *Server) invalidate(c *gin.Context) {
	if s.Cache == nil {
		c.JSON(http.StatusOK, gin.H{"dropped": 0})
		return
	}
	var req invalidateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, invalid("%v", err))
			return
		}
	}

	var dropped int
	switch {
	case req.Ticker != "" && req.Expiry != "":
		before := s.Cache.Len()
		s.Cache.Invalidate(req.Ticker, req.Expiry)
		dropped = before - s.Cache.Len()
	case req.Ticker != "":
		dropped = s.Cache.InvalidateTicker(req.Ticker)
	default:
		dropped = s.Cache.Len()
		s.Cache.Purge()
	}
	c.JSON(http.StatusOK, gin.H{"dropped": dropped})
}
