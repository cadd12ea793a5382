package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "KAFKA_BROKERS", "SHIPPING_FEE", "CHECKOUT_LOCK_TTL", "SMTP_PORT", "STORE"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "50", cfg.ShippingFee.String())
	assert.Equal(t, 30*time.Second, cfg.CheckoutLockTTL)
	assert.Equal(t, 1025, cfg.SMTPPort)
	assert.Equal(t, "postgres", cfg.Store)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("SHIPPING_FEE", "75.50")
	t.Setenv("CHECKOUT_LOCK_TTL", "10s")
	t.Setenv("NOTIFIER_WORKERS", "3")
	t.Setenv("STORE", "memory")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "75.5", cfg.ShippingFee.String())
	assert.Equal(t, 10*time.Second, cfg.CheckoutLockTTL)
	assert.Equal(t, 3, cfg.NotifierWorkers)
	assert.Equal(t, "memory", cfg.Store)
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("SHIPPING_FEE", "-5")
	t.Setenv("CHECKOUT_LOCK_TTL", "soon")
	t.Setenv("SMTP_PORT", "smtp")

	cfg := Load()
	assert.Equal(t, "50", cfg.ShippingFee.String())
	assert.Equal(t, 30*time.Second, cfg.CheckoutLockTTL)
	assert.Equal(t, 1025, cfg.SMTPPort)
}
