// Package config reads runtime settings from the environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-analyser/engine"
	"github.com/souvik131/options-analyser/marketdata"
)

type Config struct {
	RiskFreeRate  float64
	DividendYield float64

	HTTPAddr string

	MarketDataURL     string
	MarketDataTimeout time.Duration
	// ChainCSV and SpotCSV switch market data to the offline CSV provider.
	ChainCSV string
	SpotCSV  string

	CacheRefresh string
	NATSURL      string

	MonteCarloSamples int
	MonteCarloSeed    uint64
	GridPoints        int

	LogLevel log.Level
}

func Default() Config {
	return Config{
		RiskFreeRate:      0.05,
		HTTPAddr:          ":8081",
		MarketDataURL:     marketdata.DefaultBaseURL,
		MarketDataTimeout: marketdata.DefaultTimeout,
		CacheRefresh:      "@every 5m",
		MonteCarloSamples: 1000,
		MonteCarloSeed:    42,
		GridPoints:        100,
		LogLevel:          log.InfoLevel,
	}
}

// Load reads the OA_* variables. Outside production a .env file in the working directory is
// loaded first; it never overrides variables already set.
func Load() (Config, error) {
	if os.Getenv("OA_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("could not read .env")
		}
	}

	cfg := Default()
	var err error
	if cfg.RiskFreeRate, err = envFloat("OA_RISK_FREE_RATE", cfg.RiskFreeRate); err != nil {
		return cfg, err
	}
	if cfg.DividendYield, err = envFloat("OA_DIVIDEND_YIELD", cfg.DividendYield); err != nil {
		return cfg, err
	}
	if cfg.MarketDataTimeout, err = envDuration("OA_MARKETDATA_TIMEOUT", cfg.MarketDataTimeout); err != nil {
		return cfg, err
	}
	if cfg.MonteCarloSamples, err = envInt("OA_MC_SAMPLES", cfg.MonteCarloSamples); err != nil {
		return cfg, err
	}
	if cfg.GridPoints, err = envInt("OA_GRID_POINTS", cfg.GridPoints); err != nil {
		return cfg, err
	}
	if v := os.Getenv("OA_MC_SEED"); v != "" {
		if cfg.MonteCarloSeed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return cfg, fmt.Errorf("OA_MC_SEED: %q is not an unsigned integer", v)
		}
	}
	if v := os.Getenv("OA_LOG_LEVEL"); v != "" {
		if cfg.LogLevel, err = log.ParseLevel(v); err != nil {
			return cfg, fmt.Errorf("OA_LOG_LEVEL: %w", err)
		}
	}

	cfg.HTTPAddr = envString("OA_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MarketDataURL = envString("OA_MARKETDATA_URL", cfg.MarketDataURL)
	cfg.ChainCSV = os.Getenv("OA_CHAIN_CSV")
	cfg.SpotCSV = os.Getenv("OA_SPOT_CSV")
	cfg.CacheRefresh = envString("OA_CACHE_REFRESH", cfg.CacheRefresh)
	cfg.NATSURL = os.Getenv("OA_NATS_URL")

	if cfg.MonteCarloSamples <= 0 {
		return cfg, fmt.Errorf("OA_MC_SAMPLES must be positive")
	}
	if cfg.GridPoints < 2 {
		return cfg, fmt.Errorf("OA_GRID_POINTS must be at least 2")
	}
	if cfg.ChainCSV != "" && cfg.SpotCSV == "" {
		return cfg, fmt.Errorf("OA_SPOT_CSV is required with OA_CHAIN_CSV")
	}
	return cfg, nil
}

// EngineOptions applies the configuration on top of the engine defaults.
func (c Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.RiskFreeRate = c.RiskFreeRate
	opts.DividendYield = c.DividendYield
	opts.MonteCarloSamples = c.MonteCarloSamples
	opts.MonteCarloSeed = c.MonteCarloSeed
	opts.GridPoints = c.GridPoints
	return opts
}

// Provider returns the configured market-data source wrapped in a cache.
func (c Config) Provider() (*marketdata.CachedProvider, error) {
	if c.ChainCSV != "" {
		p, err := marketdata.NewCSVProvider(c.ChainCSV, c.SpotCSV)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{"chain": c.ChainCSV, "history": c.SpotCSV}).Info("using offline market data")
		return marketdata.NewCachedProvider(p, nil), nil
	}
	return marketdata.NewCachedProvider(marketdata.NewHTTPProvider(c.MarketDataURL, c.MarketDataTimeout), nil), nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return f, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
