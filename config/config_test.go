package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souvik131/options-analyser/marketdata"
)

// isolate runs the test from an empty directory so no stray .env is picked up.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("OA_ENV", "production")
	for _, key := range []string{
		"OA_RISK_FREE_RATE", "OA_DIVIDEND_YIELD", "OA_HTTP_ADDR", "OA_MARKETDATA_URL",
		"OA_MARKETDATA_TIMEOUT", "OA_CHAIN_CSV", "OA_SPOT_CSV", "OA_CACHE_REFRESH",
		"OA_NATS_URL", "OA_MC_SAMPLES", "OA_MC_SEED", "OA_GRID_POINTS", "OA_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, marketdata.DefaultBaseURL, cfg.MarketDataURL)
	assert.Equal(t, 10*time.Second, cfg.MarketDataTimeout)
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("OA_RISK_FREE_RATE", "0.0425")
	t.Setenv("OA_DIVIDEND_YIELD", "0.013")
	t.Setenv("OA_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("OA_MARKETDATA_TIMEOUT", "3s")
	t.Setenv("OA_MC_SAMPLES", "5000")
	t.Setenv("OA_MC_SEED", "7")
	t.Setenv("OA_GRID_POINTS", "50")
	t.Setenv("OA_NATS_URL", "nats://localhost:4222")
	t.Setenv("OA_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.0425, cfg.RiskFreeRate)
	assert.Equal(t, 0.013, cfg.DividendYield)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.MarketDataTimeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, log.DebugLevel, cfg.LogLevel)

	opts := cfg.EngineOptions()
	assert.Equal(t, 0.0425, opts.RiskFreeRate)
	assert.Equal(t, 0.013, opts.DividendYield)
	assert.Equal(t, 5000, opts.MonteCarloSamples)
	assert.Equal(t, uint64(7), opts.MonteCarloSeed)
	assert.Equal(t, 50, opts.GridPoints)
	assert.Equal(t, 183, opts.HistoryDays)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"rate":          {"OA_RISK_FREE_RATE", "five percent"},
		"timeout":       {"OA_MARKETDATA_TIMEOUT", "10"},
		"samples":       {"OA_MC_SAMPLES", "0"},
		"samples float": {"OA_MC_SAMPLES", "1e3"},
		"seed":          {"OA_MC_SEED", "-1"},
		"grid":          {"OA_GRID_POINTS", "1"},
		"log level":     {"OA_LOG_LEVEL", "loud"},
		"csv pair":      {"OA_CHAIN_CSV", "chain.csv"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	t.Setenv("OA_ENV", "")
	os.Unsetenv("OA_RISK_FREE_RATE")
	os.Unsetenv("OA_HTTP_ADDR")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OA_RISK_FREE_RATE=0.03\nOA_HTTP_ADDR=:7000\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("OA_RISK_FREE_RATE")
		os.Unsetenv("OA_HTTP_ADDR")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.03, cfg.RiskFreeRate)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
}

func TestProvider(t *testing.T) {
	isolate(t)
	cfg := Default()
	p, err := cfg.Provider()
	require.NoError(t, err)
	assert.IsType(t, &marketdata.HTTPProvider{}, p.Provider)
	assert.NotNil(t, p.Cache)

	cfg.ChainCSV = filepath.Join(t.TempDir(), "missing.csv")
	cfg.SpotCSV = cfg.ChainCSV
	_, err = cfg.Provider()
	assert.Error(t, err)
}
