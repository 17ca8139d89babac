package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/souvik131/options-analyser/analytics"
	"github.com/souvik131/options-analyser/engine"
	"github.com/souvik131/options-analyser/marketdata"
	"github.com/souvik131/options-analyser/server"
)

type contractFlags struct {
	optionType string
	spot       float64
	strike     float64
	years      float64
	expiry     string
	rate       float64
	dividend   float64
}

func (f *contractFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.optionType, "type", "call", "call or put")
	cmd.Flags().Float64Var(&f.spot, "spot", 0, "spot price of the underlying")
	cmd.Flags().Float64Var(&f.strike, "strike", 0, "strike price")
	cmd.Flags().Float64Var(&f.years, "t", 0, "time to expiry in years")
	cmd.Flags().StringVar(&f.expiry, "expiry", "", "expiry date (YYYY-MM-DD), instead of --t")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "risk-free rate (default from OA_RISK_FREE_RATE)")
	cmd.Flags().Float64Var(&f.dividend, "dividend", 0, "dividend yield (default from OA_DIVIDEND_YIELD)")
	cmd.MarkFlagRequired("spot")
	cmd.MarkFlagRequired("strike")
	cmd.MarkFlagsMutuallyExclusive("t", "expiry")
	cmd.MarkFlagsOneRequired("t", "expiry")
}

func (f *contractFlags) contract(cmd *cobra.Command, a *app) (analytics.Contract, error) {
	typ, err := analytics.ParseOptionType(f.optionType)
	if err != nil {
		return analytics.Contract{}, err
	}
	t := f.years
	if f.expiry != "" {
		if t, err = marketdata.YearFraction(f.expiry, time.Now()); err != nil {
			return analytics.Contract{}, err
		}
	}
	rate, dividend := a.cfg.RiskFreeRate, a.cfg.DividendYield
	if cmd.Flags().Changed("rate") {
		rate = f.rate
	}
	if cmd.Flags().Changed("dividend") {
		dividend = f.dividend
	}
	return analytics.NewContract(typ, f.spot, f.strike, t, rate, dividend)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func priceCommand() *cobra.Command {
	var (
		flags contractFlags
		vol   float64
	)
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price an option and its greeks",
		RunE: withApp(func(_ context.Context, a *app, cmd *cobra.Command, _ []string) error {
			c, err := flags.contract(cmd, a)
			if err != nil {
				return err
			}
			p, err := analytics.Price(c, vol)
			if err != nil {
				return err
			}
			g, err := analytics.ComputeGreeks(c, vol)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s, spot %.2f, T %.4f years, vol %.1f%%: %.4f\n\n", c.Type, fmt.Sprint(c.Strike), c.Spot, c.TimeToExpiry, vol*100, p)
			engine.RenderGreeks(os.Stdout, g.Reported())
			return nil
		}),
	}
	flags.register(cmd)
	cmd.Flags().Float64Var(&vol, "vol", 0, "volatility, e.g. 0.2 for 20%")
	cmd.MarkFlagRequired("vol")
	return cmd
}

func ivCommand() *cobra.Command {
	var (
		flags   contractFlags
		premium float64
		seed    float64
	)
	cmd := &cobra.Command{
		Use:   "iv",
		Short: "Solve the implied volatility of an observed premium",
		RunE: withApp(func(_ context.Context, a *app, cmd *cobra.Command, _ []string) error {
			c, err := flags.contract(cmd, a)
			if err != nil {
				return err
			}
			res, err := analytics.ImpliedVolatilityWithOptions(c, premium, analytics.SolverOptions{Seed: seed})
			if err != nil {
				return err
			}
			return printJSON(res)
		}),
	}
	flags.register(cmd)
	cmd.Flags().Float64Var(&premium, "price", 0, "observed option premium")
	cmd.Flags().Float64Var(&seed, "seed", 0, "volatility guess that narrows the search bracket")
	cmd.MarkFlagRequired("price")
	return cmd
}

func sweepCommand() *cobra.Command {
	var (
		flags     contractFlags
		vol       float64
		dimension string
		from, to  float64
		points    int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Price and greeks across a grid of spot, volatility or time",
		RunE: withApp(func(_ context.Context, a *app, cmd *cobra.Command, _ []string) error {
			c, err := flags.contract(cmd, a)
			if err != nil {
				return err
			}
			dim, err := analytics.ParseDimension(dimension)
			if err != nil {
				return err
			}
			if points <= 0 {
				points = a.cfg.GridPoints
			}
			lo, hi := defaultRange(c, dim, a.engine.Options.MinTime)
			if cmd.Flags().Changed("from") {
				lo = from
			}
			if cmd.Flags().Changed("to") {
				hi = to
			}
			engine.RenderSweep(os.Stdout, dim, analytics.Sweep(c, vol, dim, analytics.Linspace(lo, hi, points)))
			return nil
		}),
	}
	flags.register(cmd)
	cmd.Flags().Float64Var(&vol, "vol", 0, "volatility, e.g. 0.2 for 20%")
	cmd.Flags().StringVar(&dimension, "dimension", "spot", "spot, volatility or time")
	cmd.Flags().Float64Var(&from, "from", 0, "first grid value")
	cmd.Flags().Float64Var(&to, "to", 0, "last grid value")
	cmd.Flags().IntVar(&points, "points", 0, "grid size (default from OA_GRID_POINTS)")
	cmd.MarkFlagRequired("vol")
	return cmd
}

func defaultRange(c analytics.Contract, dim analytics.Dimension, minTime float64) (float64, float64) {
	switch dim {
	case analytics.Volatility:
		return 0.01, 1
	case analytics.Time:
		return minTime, c.TimeToExpiry
	}
	return 0.5 * c.Spot, 1.5 * c.Spot
}

func analyseCommand() *cobra.Command {
	var (
		req        engine.Request
		optionType string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "analyse TICKER",
		Short: "Analyse a listed option against its market chain",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			var err error
			req.Ticker = args[0]
			if req.Type, err = analytics.ParseOptionType(optionType); err != nil {
				return err
			}
			report, err := a.engine.Analyse(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(report)
			}
			engine.RenderReport(os.Stdout, report)
			return nil
		}),
	}
	cmd.Flags().StringVar(&req.Expiry, "expiry", "", "expiry date (default: nearest listed)")
	cmd.Flags().Float64Var(&req.Strike, "strike", 0, "strike (default: at-the-money)")
	cmd.Flags().StringVar(&optionType, "type", "call", "call or put")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			srv := server.New(a.engine, a.provider.Cache)
			if err := srv.StartCacheRefresh(a.cfg.CacheRefresh); err != nil {
				return fmt.Errorf("OA_CACHE_REFRESH: %w", err)
			}
			log.WithFields(log.Fields{"addr": addr, "cache_refresh": a.cfg.CacheRefresh}).Info("starting options analyser")
			return srv.Run(ctx, addr)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from OA_HTTP_ADDR)")
	return cmd
}
