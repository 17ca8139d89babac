package analytics_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souvik131/options-analyser/analytics"
)

func TestSweep(t *testing.T) {
	base := contract(t, analytics.Call, 100, 100, 0.5, 0.05, 0)

	t.Run("SpotKeepsGridOrder", func(t *testing.T) {
		grid := []float64{130, 70, 100}
		points := analytics.Sweep(base, 0.25, analytics.Spot, grid)
		require.Len(t, points, len(grid))
		for i, p := range points {
			require.NoError(t, p.Err)
			assert.Equal(t, grid[i], p.X)
			assert.Equal(t, analytics.MustPrice(base.WithSpot(grid[i]), 0.25), p.Price)
		}
		assert.Greater(t, points[0].Greeks.Delta, points[2].Greeks.Delta)
		assert.Greater(t, points[2].Greeks.Delta, points[1].Greeks.Delta)
	})

	t.Run("FailingPointDoesNotAbort", func(t *testing.T) {
		points := analytics.Sweep(base, 0.25, analytics.Spot, []float64{90, -1, 110})
		require.Len(t, points, 3)
		assert.NoError(t, points[0].Err)
		assert.ErrorIs(t, points[1].Err, analytics.ErrInvalidInput)
		assert.Zero(t, points[1].Price)
		assert.NoError(t, points[2].Err)
		assert.Greater(t, points[2].Price, points[0].Price)
	})

	t.Run("Volatility", func(t *testing.T) {
		points := analytics.Sweep(base, 0.25, analytics.Volatility, analytics.Linspace(0, 1, 11))
		require.Len(t, points, 11)
		assert.True(t, points[0].Greeks.Degenerate)
		for i := 1; i < len(points); i++ {
			require.NoError(t, points[i].Err)
			assert.Greater(t, points[i].Price, points[i-1].Price)
		}
	})

	t.Run("TimeDecay", func(t *testing.T) {
		grid := analytics.TimeGrid(0.01, base.TimeToExpiry, 50)
		points := analytics.Sweep(base, 0.25, analytics.Time, grid)
		require.Len(t, points, 50)
		assert.Equal(t, 0.01, points[0].X)
		assert.Equal(t, base.TimeToExpiry, points[49].X)
		for i := 1; i < len(points); i++ {
			assert.Greater(t, points[i].Price, points[i-1].Price)
			assert.Less(t, points[i].Greeks.Theta, 0.0)
		}
		// at-the-money theta grows in magnitude as expiry approaches
		assert.Less(t, points[0].Greeks.Theta, points[49].Greeks.Theta)
	})

	t.Run("UnknownDimension", func(t *testing.T) {
		points := analytics.Sweep(base, 0.25, analytics.Dimension(9), []float64{1})
		require.Len(t, points, 1)
		assert.ErrorIs(t, points[0].Err, analytics.ErrInvalidInput)
	})
}

func TestGrids(t *testing.T) {
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, analytics.Linspace(0, 1, 5))
	assert.Equal(t, []float64{3}, analytics.Linspace(3, 9, 1))
	assert.Nil(t, analytics.Linspace(0, 1, 0))

	grid := analytics.SpotGrid(200, 0.5, 1.5, 101)
	assert.Equal(t, 100.0, grid[0])
	assert.Equal(t, 300.0, grid[100])
	assert.InDelta(t, 200.0, grid[50], 1e-9)

	assert.Equal(t, []float64{0.005, 0.005}, analytics.TimeGrid(0.01, 0.005, 2))

	dim, err := analytics.ParseDimension("Vol")
	require.NoError(t, err)
	assert.Equal(t, analytics.Volatility, dim)
	_, err = analytics.ParseDimension("rate")
	assert.ErrorIs(t, err, analytics.ErrInvalidInput)
}

func TestTerminalPrices(t *testing.T) {
	c := contract(t, analytics.Call, 100, 100, 1, 0.05, 0)

	t.Run("SeededIsReproducible", func(t *testing.T) {
		a, err := analytics.TerminalPrices(c, 0.2, 500, analytics.NewSource(42))
		require.NoError(t, err)
		b, err := analytics.TerminalPrices(c, 0.2, 500, analytics.NewSource(42))
		require.NoError(t, err)
		assert.Equal(t, a, b)

		other, err := analytics.TerminalPrices(c, 0.2, 500, analytics.NewSource(7))
		require.NoError(t, err)
		assert.NotEqual(t, a, other)
	})

	t.Run("RiskNeutralMean", func(t *testing.T) {
		samples, err := analytics.TerminalPrices(c, 0.2, 20000, analytics.NewSource(1))
		require.NoError(t, err)
		sum := 0.0
		for _, s := range samples {
			require.Greater(t, s, 0.0)
			sum += s
		}
		assert.InDelta(t, 100*math.Exp(0.05), sum/float64(len(samples)), 1.0)
	})

	t.Run("ZeroVolatilityIsForward", func(t *testing.T) {
		samples, err := analytics.TerminalPrices(c, 0, 3, analytics.NewSource(1))
		require.NoError(t, err)
		for _, s := range samples {
			assert.InDelta(t, 100*math.Exp(0.05), s, 1e-9)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		_, err := analytics.TerminalPrices(c, -0.2, 10, nil)
		assert.ErrorIs(t, err, analytics.ErrInvalidInput)
	})
}

func TestHistogram(t *testing.T) {
	samples, err := analytics.TerminalPrices(contract(t, analytics.Put, 100, 100, 0.5, 0.01, 0), 0.3, 1000, analytics.NewSource(42))
	require.NoError(t, err)

	bins := analytics.Histogram(samples, 40)
	require.Len(t, bins, 40)
	total := 0.0
	for i, b := range bins {
		assert.Less(t, b.Lower, b.Upper)
		if i > 0 {
			assert.Equal(t, bins[i-1].Upper, b.Lower)
		}
		total += b.Count
	}
	assert.Equal(t, 1000.0, total)

	assert.Equal(t, []analytics.Bin{{Lower: 5, Upper: 5, Count: 3}}, analytics.Histogram([]float64{5, 5, 5}, 10))
	assert.Nil(t, analytics.Histogram(nil, 10))
}

func TestProbabilityAbove(t *testing.T) {
	assert.Equal(t, 0.5, analytics.ProbabilityAbove([]float64{1, 2, 3, 4}, 2))
	assert.Zero(t, analytics.ProbabilityAbove(nil, 2))
}

func TestInterpretation(t *testing.T) {
	call := contract(t, analytics.Call, 110, 100, 0.5, 0.05, 0)
	put := contract(t, analytics.Put, 110, 100, 0.5, 0.05, 0)

	assert.Equal(t, analytics.InTheMoney, analytics.MoneynessOf(call))
	assert.Equal(t, analytics.OutOfTheMoney, analytics.MoneynessOf(put))
	assert.Equal(t, analytics.AtTheMoney, analytics.MoneynessOf(call.WithSpot(100)))

	assert.Equal(t, "bullish", analytics.Direction(analytics.Call))
	assert.Equal(t, "bearish", analytics.Direction(analytics.Put))

	assert.Equal(t, 107.5, analytics.Breakeven(analytics.Call, 100, 7.5))
	assert.Equal(t, 92.5, analytics.Breakeven(analytics.Put, 100, 7.5))

	effect := analytics.Effects(analytics.Greeks{Delta: 0.6, Vega: 30}, 5, 0.05)
	assert.InDelta(t, 3.0, effect.SpotEffect, 1e-12)
	assert.InDelta(t, 1.5, effect.VolEffect, 1e-12)
}
