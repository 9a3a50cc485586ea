package config

import (
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/pkg/errors"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	var cfg Config
	require.NoError(t, envconfig.Process("", &cfg))
	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := loadDefaults(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "USDTTMN", cfg.Market.Symbol)
	assert.Equal(t, 24, cfg.ML.Window)
	assert.Equal(t, 0.7, cfg.ML.SequenceWeight)
	assert.Equal(t, 120*time.Minute, cfg.Validation.Horizon)
	assert.Equal(t, 5*time.Second, cfg.Cycle.FailureBackoff)
	assert.Equal(t, []string{"sma_50", "pct_change_3h", "pct_change_24h", "vol_ratio", "macd_hist"}, cfg.ML.Features)

	require.Len(t, cfg.Strategy.MacroRules, 2)
	assert.Equal(t, MacroRule{Key: "USDT_IRT", Above: 65000, Bonus: 15, Reason: "High USD Rate"}, cfg.Strategy.MacroRules[0])
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKET_SYMBOL", "BTCUSDT")
	t.Setenv("CYCLE_INTERVAL", "2m")
	t.Setenv("STRATEGY_MACRO_RULES", "BTC_USDT>100000:5:Risk On")

	cfg := loadDefaults(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "BTCUSDT", cfg.Market.Symbol)
	assert.Equal(t, 2*time.Minute, cfg.Cycle.Interval)
	assert.Equal(t, MacroRules{{Key: "BTC_USDT", Above: 100000, Bonus: 5, Reason: "Risk On"}}, cfg.Strategy.MacroRules)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.ML.LinearWeight = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Strategy.SellThreshold = 70

	assert.Error(t, cfg.Validate())
}

func TestMacroRulesDecodeErrors(t *testing.T) {
	var rules MacroRules
	assert.Error(t, rules.Decode("USDT_IRT:15:x"))
	assert.Error(t, rules.Decode("USDT_IRT>abc:15:x"))
	assert.NoError(t, rules.Decode(""))
	assert.Empty(t, rules)
}
