package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.Addr)
	assert.Equal(t, "matchbook.db", cfg.DBPath)
	assert.Equal(t, "PERP-USD", cfg.Symbol)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "matchbook.trades", cfg.KafkaTopic)
	assert.Equal(t, 0, cfg.RateLimit)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MATCHBOOK_ADDR", ":9000")
	t.Setenv("MATCHBOOK_SYMBOL", "BTC-USD")
	t.Setenv("MATCHBOOK_KAFKA_BROKERS", "kafka1:9092,kafka2:9092")
	t.Setenv("MATCHBOOK_RATE_LIMIT", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "BTC-USD", cfg.Symbol)
	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 120, cfg.RateLimit)
}
