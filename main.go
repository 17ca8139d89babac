package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/souvik131/options-analyser/config"
	"github.com/souvik131/options-analyser/engine"
	"github.com/souvik131/options-analyser/marketdata"
)

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	cfg      config.Config
	provider *marketdata.CachedProvider
	engine   *engine.Engine
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log.SetLevel(cfg.LogLevel)

	provider, err := cfg.Provider()
	if err != nil {
		return nil, err
	}
	e := engine.New(provider, cfg.EngineOptions())

	if cfg.NATSURL != "" {
		pub, err := engine.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			// reports are still served without the feed
			log.WithError(err).Warn("NATS unavailable, analysis reports will not be published")
		} else {
			e.Publisher = pub
		}
	}
	return &app{cfg: cfg, provider: provider, engine: e}, nil
}

func (a *app) Close() {
	if err := a.engine.Publisher.Close(); err != nil {
		log.WithError(err).Warn("closing publisher")
	}
}

// withApp wraps a subcommand so it runs with a loaded app.
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), a, cmd, args)
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:           "options-analyser",
		Short:         "European option pricing, greeks, implied volatility and scenario analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		mcpCommand(),
		serveCommand(),
		priceCommand(),
		ivCommand(),
		sweepCommand(),
		analyseCommand(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
