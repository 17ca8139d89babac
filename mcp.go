package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/souvik131/options-analyser/analytics"
	"github.com/souvik131/options-analyser/engine"
	"github.com/souvik131/options-analyser/marketdata"
)

func mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analytics as MCP tools over stdio",
		RunE: withApp(func(_ context.Context, a *app, _ *cobra.Command, _ []string) error {
			srv := mcpserver.NewMCPServer("options-analyser", "1.0.0")
			registerOptionsTools(srv, &tools{engine: a.engine, now: time.Now})

			log.Info("Starting options analyser MCP server...")
			return mcpserver.ServeStdio(srv)
		}),
	}
}

type tools struct {
	engine *engine.Engine
	now    func() time.Time
}

func contractParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("option_type", mcp.Description("Option type"), mcp.Required(), mcp.Enum("call", "put")),
		mcp.WithNumber("spot", mcp.Description("Spot price of the underlying"), mcp.Required()),
		mcp.WithNumber("strike", mcp.Description("Strike price"), mcp.Required()),
		mcp.WithNumber("time_to_expiry", mcp.Description("Time to expiry in years; give this or expiry")),
		mcp.WithString("expiry", mcp.Description("Expiry date (YYYY-MM-DD); give this or time_to_expiry")),
		mcp.WithNumber("risk_free_rate", mcp.Description("Continuously compounded risk-free rate (default: configured rate)")),
		mcp.WithNumber("dividend_yield", mcp.Description("Continuous dividend yield (default: configured yield)")),
	}
}

func toolOptions(description string, extra ...mcp.ToolOption) []mcp.ToolOption {
	return append(append([]mcp.ToolOption{mcp.WithDescription(description)}, contractParams()...), extra...)
}

func registerOptionsTools(srv *mcpserver.MCPServer, t *tools) {
	// Price tool
	priceTool := mcp.NewTool("options_price", toolOptions(
		"Black-Scholes-Merton price of a European option",
		mcp.WithNumber("volatility", mcp.Description("Annualised volatility, e.g. 0.2 for 20%"), mcp.Required()),
	)...)
	srv.AddTool(priceTool, t.price)

	// Greeks tool
	greeksTool := mcp.NewTool("options_greeks", toolOptions(
		"Delta, gamma, vega (per vol point), theta (per day) and rho of a European option",
		mcp.WithNumber("volatility", mcp.Description("Annualised volatility, e.g. 0.2 for 20%"), mcp.Required()),
	)...)
	srv.AddTool(greeksTool, t.greeks)

	// Implied volatility tool
	ivTool := mcp.NewTool("options_implied_vol", toolOptions(
		"Volatility implied by an observed option premium",
		mcp.WithNumber("price", mcp.Description("Observed option premium"), mcp.Required()),
		mcp.WithNumber("seed", mcp.Description("Volatility guess that narrows the search"), mcp.DefaultNumber(0)),
	)...)
	srv.AddTool(ivTool, t.impliedVol)

	// Sweep tool
	sweepTool := mcp.NewTool("options_sweep", toolOptions(
		"Price and greeks of an option across a grid of spot, volatility or time to expiry",
		mcp.WithNumber("volatility", mcp.Description("Annualised volatility, e.g. 0.2 for 20%"), mcp.Required()),
		mcp.WithString("dimension", mcp.Description("What to vary"), mcp.Required(), mcp.Enum("spot", "volatility", "time")),
		mcp.WithNumber("from", mcp.Description("First grid value")),
		mcp.WithNumber("to", mcp.Description("Last grid value")),
		mcp.WithNumber("points", mcp.Description("Grid size"), mcp.DefaultNumber(11)),
	)...)
	srv.AddTool(sweepTool, t.sweep)

	// Analysis tool
	analyseTool := mcp.NewTool("options_analyse",
		mcp.WithDescription("Full analysis of a listed option: chain implied vols, greeks, breakeven, curves and simulated price distribution"),
		mcp.WithString("ticker", mcp.Description("Ticker of the underlying (e.g., AAPL, SPY)"), mcp.Required()),
		mcp.WithString("option_type", mcp.Description("Option type"), mcp.Enum("call", "put")),
		mcp.WithString("expiry", mcp.Description("Expiry date (YYYY-MM-DD); nearest listed when omitted")),
		mcp.WithNumber("strike", mcp.Description("Strike; at-the-money when omitted"), mcp.DefaultNumber(0)),
		mcp.WithString("format", mcp.Description("Output format"), mcp.Enum("text", "json")),
	)
	srv.AddTool(analyseTool, t.analyse)

	log.Info("Registered options analytics MCP tools")
}

func (t *tools) contract(request mcp.CallToolRequest) (analytics.Contract, error) {
	typeName, err := request.RequireString("option_type")
	if err != nil {
		return analytics.Contract{}, errors.New("option_type is required")
	}
	typ, err := analytics.ParseOptionType(typeName)
	if err != nil {
		return analytics.Contract{}, err
	}
	spot, err := request.RequireFloat("spot")
	if err != nil {
		return analytics.Contract{}, errors.New("spot is required")
	}
	strike, err := request.RequireFloat("strike")
	if err != nil {
		return analytics.Contract{}, errors.New("strike is required")
	}

	years := request.GetFloat("time_to_expiry", -1)
	if expiry := request.GetString("expiry", ""); expiry != "" {
		if years, err = marketdata.YearFraction(expiry, t.now()); err != nil {
			return analytics.Contract{}, err
		}
	}
	if years < 0 {
		return analytics.Contract{}, errors.New("one of time_to_expiry or expiry is required")
	}

	rate := request.GetFloat("risk_free_rate", t.engine.Options.RiskFreeRate)
	dividend := request.GetFloat("dividend_yield", t.engine.Options.DividendYield)
	return analytics.NewContract(typ, spot, strike, years, rate, dividend)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	resultBytes, _ := json.Marshal(v)
	return mcp.NewToolResultText(string(resultBytes)), nil
}

func (t *tools) price(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := t.contract(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vol, err := request.RequireFloat("volatility")
	if err != nil {
		return mcp.NewToolResultError("volatility is required"), nil
	}
	p, err := analytics.Price(c, vol)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to price option: %v", err)), nil
	}
	lower, upper := analytics.Bounds(c)
	return jsonResult(map[string]any{
		"price":       p,
		"intrinsic":   analytics.Intrinsic(c),
		"lower_bound": lower,
		"upper_bound": upper,
		"moneyness":   analytics.MoneynessOf(c),
	})
}

func (t *tools) greeks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := t.contract(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vol, err := request.RequireFloat("volatility")
	if err != nil {
		return mcp.NewToolResultError("volatility is required"), nil
	}
	g, err := analytics.ComputeGreeks(c, vol)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute greeks: %v", err)), nil
	}
	return jsonResult(g.Reported())
}

func (t *tools) impliedVol(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := t.contract(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	premium, err := request.RequireFloat("price")
	if err != nil {
		return mcp.NewToolResultError("price is required"), nil
	}
	res, err := analytics.ImpliedVolatilityWithOptions(c, premium, analytics.SolverOptions{Seed: request.GetFloat("seed", 0)})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to solve implied volatility: %v", err)), nil
	}
	return jsonResult(res)
}

func (t *tools) sweep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := t.contract(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vol, err := request.RequireFloat("volatility")
	if err != nil {
		return mcp.NewToolResultError("volatility is required"), nil
	}
	name, err := request.RequireString("dimension")
	if err != nil {
		return mcp.NewToolResultError("dimension is required"), nil
	}
	dim, err := analytics.ParseDimension(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	points := int(request.GetFloat("points", 11))
	if points < 1 || points > 1000 {
		return mcp.NewToolResultError("points must be between 1 and 1000"), nil
	}

	lo, hi := defaultRange(c, dim, t.engine.Options.MinTime)
	lo = request.GetFloat("from", lo)
	hi = request.GetFloat("to", hi)

	var out bytes.Buffer
	engine.RenderSweep(&out, dim, analytics.Sweep(c, vol, dim, analytics.Linspace(lo, hi, points)))
	return mcp.NewToolResultText(out.String()), nil
}

func (t *tools) analyse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ticker, err := request.RequireString("ticker")
	if err != nil {
		return mcp.NewToolResultError("ticker is required"), nil
	}
	typ, err := analytics.ParseOptionType(request.GetString("option_type", "call"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := t.engine.Analyse(ctx, engine.Request{
		Ticker: ticker,
		Expiry: request.GetString("expiry", ""),
		Strike: request.GetFloat("strike", 0),
		Type:   typ,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to analyse %s: %v", ticker, err)), nil
	}

	if request.GetString("format", "text") == "json" {
		return jsonResult(report)
	}
	var out bytes.Buffer
	engine.RenderReport(&out, report)
	return mcp.NewToolResultText(out.String()), nil
}
