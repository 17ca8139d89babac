package marketdata_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souvik131/options-analyser/analytics"
	"github.com/souvik131/options-analyser/marketdata"
)

func TestQuoteMid(t *testing.T) {
	assert.Equal(t, 2.5, marketdata.Quote{Bid: 2, Ask: 3, Last: 9}.Mid())
	assert.Equal(t, 9.0, marketdata.Quote{Bid: 0, Ask: 3, Last: 9}.Mid())
	assert.Equal(t, 9.0, marketdata.Quote{Bid: 2, Last: 9}.Mid())
	assert.True(t, math.IsNaN(marketdata.Quote{Strike: 100}.Mid()))
}

func TestChainSide(t *testing.T) {
	chain := &marketdata.Chain{
		Calls: []marketdata.Quote{{Strike: 100}},
		Puts:  []marketdata.Quote{{Strike: 90}, {Strike: 95}},
	}
	assert.Len(t, chain.Side(analytics.Call), 1)
	assert.Len(t, chain.Side(analytics.Put), 2)
}

func TestCloses(t *testing.T) {
	closes := marketdata.Closes([]marketdata.Candle{{Close: 10}, {Close: 0}, {Close: 11}})
	assert.Equal(t, []float64{10, 11}, closes)
}

func TestNearestExpiry(t *testing.T) {
	now := time.Date(2024, 6, 20, 15, 30, 0, 0, time.UTC)
	expiries := []string{"2024-07-19", "2024-06-14", "2024-06-20", "2024-06-28"}

	assert.Equal(t, "2024-06-20", marketdata.NearestExpiry(expiries, now))
	assert.Equal(t, "2024-07-19", marketdata.NearestExpiry(expiries, now.AddDate(0, 0, 10)))
	assert.Equal(t, "2024-07-19", marketdata.NearestExpiry(expiries, now.AddDate(1, 0, 0)))
	assert.Equal(t, "", marketdata.NearestExpiry(nil, now))
	// the input order is left alone
	assert.Equal(t, "2024-07-19", expiries[0])
}

func TestYearFraction(t *testing.T) {
	now := time.Date(2024, 6, 20, 23, 59, 0, 0, time.UTC)

	T, err := marketdata.YearFraction("2024-07-20", now)
	require.NoError(t, err)
	assert.InDelta(t, 30.0/365, T, 1e-12)

	T, err = marketdata.YearFraction("2024-06-20", now)
	require.NoError(t, err)
	assert.Zero(t, T)

	T, err = marketdata.YearFraction("2024-06-01", now)
	require.NoError(t, err)
	assert.Zero(t, T)

	_, err = marketdata.YearFraction("20/07/2024", now)
	assert.Error(t, err)
}

func TestStrikeSelection(t *testing.T) {
	quotes := []marketdata.Quote{{Strike: 110}, {Strike: 90}, {Strike: 100}, {Strike: 95}, {Strike: 105}, {Strike: 80}, {Strike: 120}}

	t.Run("ATMStrike", func(t *testing.T) {
		assert.Equal(t, 100.0, marketdata.ATMStrike(quotes, 101.9))
		assert.Equal(t, 105.0, marketdata.ATMStrike(quotes, 103))
		assert.Equal(t, 120.0, marketdata.ATMStrike(quotes, 500))
		assert.Zero(t, marketdata.ATMStrike(nil, 100))
	})

	t.Run("FilterAroundATM", func(t *testing.T) {
		got := marketdata.FilterAroundATM(quotes, 101, 1)
		require.Len(t, got, 3)
		assert.Equal(t, []float64{95, 100, 105}, strikes(got))

		got = marketdata.FilterAroundATM(quotes, 79, 2)
		assert.Equal(t, []float64{80, 90, 95}, strikes(got))
	})

	t.Run("WithinPercent", func(t *testing.T) {
		got := marketdata.WithinPercent(quotes, 100, 0.10)
		assert.Equal(t, []float64{90, 95, 100, 105, 110}, strikes(got))
		assert.Empty(t, marketdata.WithinPercent(quotes, 1000, 0.01))
	})

	t.Run("FindStrike", func(t *testing.T) {
		q, ok := marketdata.FindStrike(quotes, 105)
		assert.True(t, ok)
		assert.Equal(t, 105.0, q.Strike)
		_, ok = marketdata.FindStrike(quotes, 101)
		assert.False(t, ok)
	})
}

func strikes(quotes []marketdata.Quote) []float64 {
	out := make([]float64, len(quotes))
	for i, q := range quotes {
		out[i] = q.Strike
	}
	return out
}

func TestHistoricalVolatility(t *testing.T) {
	t.Run("AlternatingMoves", func(t *testing.T) {
		closes := []float64{100, 101, 100, 101, 100}
		vol, err := marketdata.HistoricalVolatility(closes)
		require.NoError(t, err)
		// returns are ±ln(1.01) with zero mean
		assert.InDelta(t, math.Log(1.01)*math.Sqrt(252), vol, 1e-12)
	})

	t.Run("SteadyGrowthHasNoVolatility", func(t *testing.T) {
		closes := []float64{100, 101, 102.01, 103.0301}
		vol, err := marketdata.HistoricalVolatility(closes)
		require.NoError(t, err)
		assert.InDelta(t, 0, vol, 1e-12)
	})

	t.Run("NotEnoughHistory", func(t *testing.T) {
		_, err := marketdata.HistoricalVolatility([]float64{100})
		assert.ErrorIs(t, err, marketdata.ErrInsufficientHistory)

		_, err = marketdata.HistoricalVolatility([]float64{100, 0, 101})
		assert.ErrorIs(t, err, marketdata.ErrInsufficientHistory)
	})
}
