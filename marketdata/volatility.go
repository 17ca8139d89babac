package marketdata

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

const TradingDaysPerYear = 252

var ErrInsufficientHistory = errors.New("marketdata: not enough price history")

// LogReturns returns ln(p[i]/p[i-1]) for consecutive prices.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out = append(out, math.Log(prices[i]/prices[i-1]))
	}
	return out
}

// HistoricalVolatility annualises the population standard deviation of daily log returns.
func HistoricalVolatility(closes []float64) (float64, error) {
	for _, c := range closes {
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return 0, fmt.Errorf("%w: close %v", ErrInsufficientHistory, c)
		}
	}
	returns := LogReturns(closes)
	if len(returns) == 0 {
		return 0, fmt.Errorf("%w: %d closes", ErrInsufficientHistory, len(closes))
	}
	sd, err := stats.StandardDeviationPopulation(returns)
	if err != nil {
		return 0, err
	}
	return sd * math.Sqrt(TradingDaysPerYear), nil
}
