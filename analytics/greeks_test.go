package analytics_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souvik131/options-analyser/analytics"
)

func TestComputeGreeks(t *testing.T) {
	t.Run("CallOption_ATM", func(t *testing.T) {
		g, err := analytics.ComputeGreeks(contract(t, analytics.Call, 100, 100, 1, 0.05, 0), 0.2)
		require.NoError(t, err)

		// d1 = 0.35, d2 = 0.15
		assert.InDelta(t, 0.63683, g.Delta, 1e-4)
		assert.InDelta(t, 0.018762, g.Gamma, 1e-5)
		assert.InDelta(t, 37.524, g.Vega, 1e-2)
		assert.InDelta(t, -6.4140, g.Theta, 1e-3)
		assert.InDelta(t, 53.2325, g.Rho, 1e-3)
		assert.False(t, g.Degenerate)
	})

	t.Run("PutOption_ATM", func(t *testing.T) {
		g, err := analytics.ComputeGreeks(contract(t, analytics.Put, 100, 100, 1, 0.05, 0), 0.2)
		require.NoError(t, err)

		assert.InDelta(t, -0.36317, g.Delta, 1e-4)
		assert.InDelta(t, 0.018762, g.Gamma, 1e-5)
		assert.InDelta(t, 37.524, g.Vega, 1e-2)
		assert.InDelta(t, -1.6579, g.Theta, 1e-3)
		assert.InDelta(t, -41.890, g.Rho, 1e-3)
	})

	t.Run("Reported", func(t *testing.T) {
		g, err := analytics.ComputeGreeks(contract(t, analytics.Call, 100, 100, 1, 0.05, 0), 0.2)
		require.NoError(t, err)
		r := g.Reported()

		assert.Equal(t, g.Delta, r.Delta)
		assert.Equal(t, g.Gamma, r.Gamma)
		assert.InDelta(t, g.Vega/100, r.Vega, 1e-15)
		assert.InDelta(t, g.Theta/365, r.Theta, 1e-15)
		assert.InDelta(t, g.Rho/100, r.Rho, 1e-15)
	})

	t.Run("MatchesFiniteDifferences", func(t *testing.T) {
		c := contract(t, analytics.Put, 95, 100, 0.75, 0.03, 0.02)
		vol := 0.3
		g, err := analytics.ComputeGreeks(c, vol)
		require.NoError(t, err)

		h := 1e-4
		p := func(c analytics.Contract, vol float64) float64 { return analytics.MustPrice(c, vol) }

		delta := (p(c.WithSpot(c.Spot+h), vol) - p(c.WithSpot(c.Spot-h), vol)) / (2 * h)
		gamma := (p(c.WithSpot(c.Spot+h), vol) - 2*p(c, vol) + p(c.WithSpot(c.Spot-h), vol)) / (h * h)
		vega := (p(c, vol+h) - p(c, vol-h)) / (2 * h)
		// theta is the derivative with respect to calendar time, i.e. -dV/dT
		theta := -(p(c.WithTime(c.TimeToExpiry+h), vol) - p(c.WithTime(c.TimeToExpiry-h), vol)) / (2 * h)
		up, down := c, c
		up.RiskFreeRate += h
		down.RiskFreeRate -= h
		rho := (p(up, vol) - p(down, vol)) / (2 * h)

		assert.InDelta(t, delta, g.Delta, 1e-6)
		assert.InDelta(t, gamma, g.Gamma, 1e-3)
		assert.InDelta(t, vega, g.Vega, 1e-5)
		assert.InDelta(t, theta, g.Theta, 1e-5)
		assert.InDelta(t, rho, g.Rho, 1e-5)
	})

	t.Run("Sanity", func(t *testing.T) {
		for _, s := range analytics.Linspace(20, 300, 57) {
			for _, tt := range []float64{0, 0.01, 0.5, 2} {
				for _, vol := range []float64{0, 0.1, 0.5, 2} {
					call, err := analytics.ComputeGreeks(contract(t, analytics.Call, s, 100, tt, 0.04, 0.01), vol)
					require.NoError(t, err)
					put, err := analytics.ComputeGreeks(contract(t, analytics.Put, s, 100, tt, 0.04, 0.01), vol)
					require.NoError(t, err)

					assert.GreaterOrEqual(t, call.Delta, 0.0)
					assert.LessOrEqual(t, call.Delta, 1.0)
					assert.GreaterOrEqual(t, put.Delta, -1.0)
					assert.LessOrEqual(t, put.Delta, 0.0)
					assert.GreaterOrEqual(t, call.Gamma, 0.0)
					assert.GreaterOrEqual(t, put.Gamma, 0.0)
					for _, v := range []float64{call.Delta, call.Gamma, call.Vega, call.Theta, call.Rho, put.Delta, put.Gamma, put.Vega, put.Theta, put.Rho} {
						assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
					}
				}
			}
		}
	})
}

func TestComputeGreeksDegenerate(t *testing.T) {
	t.Run("AtExpiry", func(t *testing.T) {
		g, err := analytics.ComputeGreeks(contract(t, analytics.Call, 110, 100, 0, 0.05, 0), 0.2)
		require.NoError(t, err)
		assert.Equal(t, analytics.Greeks{Delta: 1, Degenerate: true}, g)

		g, err = analytics.ComputeGreeks(contract(t, analytics.Put, 110, 100, 0, 0.05, 0), 0.2)
		require.NoError(t, err)
		assert.Equal(t, analytics.Greeks{Degenerate: true}, g)

		g, err = analytics.ComputeGreeks(contract(t, analytics.Put, 90, 100, 0, 0.05, 0), 0.2)
		require.NoError(t, err)
		assert.Equal(t, analytics.Greeks{Delta: -1, Degenerate: true}, g)

		g, err = analytics.ComputeGreeks(contract(t, analytics.Call, 100, 100, 0, 0.05, 0), 0.2)
		require.NoError(t, err)
		assert.Equal(t, 0.5, g.Delta)
	})

	t.Run("ZeroVolatility", func(t *testing.T) {
		// forward 100*exp(0.05) is above the strike
		g, err := analytics.ComputeGreeks(contract(t, analytics.Call, 100, 100, 1, 0.05, 0), 0)
		require.NoError(t, err)
		assert.True(t, g.Degenerate)
		assert.Equal(t, 1.0, g.Delta)
		assert.Zero(t, g.Gamma)
		assert.Zero(t, g.Vega)
		assert.Zero(t, g.Theta)
		assert.InDelta(t, 100*math.Exp(-0.05), g.Rho, 1e-12)

		g, err = analytics.ComputeGreeks(contract(t, analytics.Put, 100, 100, 1, 0.05, 0), 0)
		require.NoError(t, err)
		assert.Equal(t, analytics.Greeks{Degenerate: true}, g)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		_, err := analytics.ComputeGreeks(contract(t, analytics.Call, 100, 100, 1, 0.05, 0), -1)
		assert.ErrorIs(t, err, analytics.ErrInvalidInput)
	})
}
