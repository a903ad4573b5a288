package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CART_TTL", "")
	t.Setenv("STORAGE", "")

	cfg := Load()
	require.Equal(t, ":8081", cfg.HTTPAddr)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "postgres", cfg.Storage)
	require.Equal(t, 7*24*time.Hour, cfg.CartTTL)
	require.False(t, cfg.MidtransProduction)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("STORAGE", "Memory")
	t.Setenv("SHIPPING_FEE", "15000")
	t.Setenv("MIDTRANS_PRODUCTION", "true")
	t.Setenv("CART_TTL", "30m")
	t.Setenv("NOTIFIER_WORKERS", "nope")

	cfg := Load()
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "memory", cfg.Storage)
	require.EqualValues(t, 15000, cfg.ShippingFee)
	require.True(t, cfg.MidtransProduction)
	require.Equal(t, 30*time.Minute, cfg.CartTTL)
	require.Equal(t, 4, cfg.NotifierWorkers)
}
