package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.PublishEvents)
	assert.False(t, cfg.RestockOnCancel)
	assert.Empty(t, cfg.PublicURL)
	assert.Equal(t, int64(1000), cfg.Pricing.ShippingFlatCents)
	assert.Equal(t, int64(5000), cfg.Pricing.FreeShippingThresholdCents)
	assert.True(t, decimal.RequireFromString("0.08").Equal(cfg.Pricing.TaxRate))
	assert.Equal(t, 4, cfg.Reconciler.Workers)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PRICING_TAX_RATE", "0.11")
	t.Setenv("PRICING_SHIPPING_FLAT_CENTS", "1500")
	t.Setenv("RESTOCK_ON_CANCEL", "true")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PUBLISH_EVENTS", "false")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "0.11", cfg.Pricing.TaxRate.String())
	assert.Equal(t, int64(1500), cfg.Pricing.ShippingFlatCents)
	assert.True(t, cfg.RestockOnCancel)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.False(t, cfg.PublishEvents)
}

func TestParseRejectsBadValues(t *testing.T) {
	t.Run("tax rate", func(t *testing.T) {
		t.Setenv("PRICING_TAX_RATE", "eight percent")
		_, err := Parse()
		assert.Error(t, err)
	})
	t.Run("negative tax rate", func(t *testing.T) {
		t.Setenv("PRICING_TAX_RATE", "-0.1")
		_, err := Parse()
		assert.Error(t, err)
	})
	t.Run("driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		_, err := Parse()
		assert.Error(t, err)
	})
}
