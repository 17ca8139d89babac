package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souvik131/options-analyser/analytics"
	"github.com/souvik131/options-analyser/engine"
	"github.com/souvik131/options-analyser/marketdata"
)

var today = time.Date(2024, 6, 20, 15, 0, 0, 0, time.UTC)

type stubProvider struct {
	chain *marketdata.Chain
}

func (p *stubProvider) Spot(context.Context, string) (float64, error) { return 100, nil }

func (p *stubProvider) History(context.Context, string, int) ([]marketdata.Candle, error) {
	var out []marketdata.Candle
	for i := 0; i < 30; i++ {
		out = append(out, marketdata.Candle{Timestamp: int64(i), Close: 100 + float64(i%2)})
	}
	return out, nil
}

func (p *stubProvider) Expiries(context.Context, string) ([]string, error) {
	return []string{p.chain.Expiry}, nil
}

func (p *stubProvider) Chain(_ context.Context, ticker, expiry string) (*marketdata.Chain, error) {
	if ticker != p.chain.Ticker || expiry != p.chain.Expiry {
		return nil, marketdata.ErrNotFound
	}
	return p.chain, nil
}

func newTools(t *testing.T) *tools {
	chain := &marketdata.Chain{Ticker: "SPY", Expiry: "2024-07-20"}
	for k := 90.0; k <= 110; k += 5 {
		c, err := analytics.NewContract(analytics.Put, 100, k, 30.0/365, 0.05, 0)
		require.NoError(t, err)
		p := analytics.MustPrice(c, 0.3)
		chain.Puts = append(chain.Puts, marketdata.Quote{Strike: k, Last: p})
	}
	e := engine.New(&stubProvider{chain: chain}, engine.DefaultOptions()).WithClock(func() time.Time { return today })
	return &tools{engine: e, now: func() time.Time { return today }}
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func atmCall() map[string]any {
	return map[string]any{
		"option_type":    "call",
		"spot":           100.0,
		"strike":         100.0,
		"time_to_expiry": 1.0,
		"risk_free_rate": 0.05,
		"volatility":     0.2,
	}
}

func TestPriceTool(t *testing.T) {
	tl := newTools(t)

	text, isErr := call(t, tl.price, atmCall())
	require.False(t, isErr, text)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.InDelta(t, 10.4506, out["price"], 1e-3)
	assert.Equal(t, "at-the-money", out["moneyness"])

	args := atmCall()
	delete(args, "volatility")
	_, isErr = call(t, tl.price, args)
	assert.True(t, isErr)

	args = atmCall()
	delete(args, "time_to_expiry")
	text, isErr = call(t, tl.price, args)
	assert.True(t, isErr)
	assert.Contains(t, text, "time_to_expiry")

	args["expiry"] = "2024-07-20"
	_, isErr = call(t, tl.price, args)
	assert.False(t, isErr)
}

func TestGreeksTool(t *testing.T) {
	text, isErr := call(t, newTools(t).greeks, atmCall())
	require.False(t, isErr, text)

	var g analytics.Greeks
	require.NoError(t, json.Unmarshal([]byte(text), &g))
	assert.InDelta(t, 0.6368, g.Delta, 1e-4)
	assert.InDelta(t, 0.3752, g.Vega, 1e-3)
}

func TestImpliedVolTool(t *testing.T) {
	tl := newTools(t)
	args := atmCall()
	delete(args, "volatility")
	args["price"] = 10.4506

	text, isErr := call(t, tl.impliedVol, args)
	require.False(t, isErr, text)
	var res analytics.ImpliedVolResult
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.InDelta(t, 0.2, res.Volatility, 1e-4)

	args["price"] = 150.0
	text, isErr = call(t, tl.impliedVol, args)
	assert.True(t, isErr)
	assert.Contains(t, text, "failed to solve implied volatility")
}

func TestSweepTool(t *testing.T) {
	args := atmCall()
	args["dimension"] = "volatility"
	args["from"] = 0.1
	args["to"] = 0.5
	args["points"] = 5.0

	text, isErr := call(t, newTools(t).sweep, args)
	require.False(t, isErr, text)
	assert.Contains(t, text, "Volatility")
	assert.Contains(t, text, "0.3000")

	args["dimension"] = "strike"
	_, isErr = call(t, newTools(t).sweep, args)
	assert.True(t, isErr)
}

func TestAnalyseTool(t *testing.T) {
	tl := newTools(t)

	text, isErr := call(t, tl.analyse, map[string]any{"ticker": "SPY", "option_type": "put"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "SPY (SPY) PUT 100, expiry 2024-07-20")
	assert.Contains(t, text, "30.0%")

	text, isErr = call(t, tl.analyse, map[string]any{"ticker": "SPY", "option_type": "put", "strike": 95.0, "format": "json"})
	require.False(t, isErr, text)
	var report engine.Report
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Equal(t, 95.0, report.Strike)
	assert.InDelta(t, 0.3, report.ImpliedVol, 1e-3)

	text, isErr = call(t, tl.analyse, map[string]any{"ticker": "QQQ"})
	assert.True(t, isErr)
	assert.Contains(t, text, "failed to analyse QQQ")
}
