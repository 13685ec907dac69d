package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Success loading from env", func(t *testing.T) {
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("DB_USER", "testuser")
		t.Setenv("DB_PASSWORD", "testpass")
		t.Setenv("DB_NAME", "testdb")
		t.Setenv("DB_PORT", "5432")
		t.Setenv("APP_PORT", "8080")
		t.Setenv("APP_ENV", "test")
		t.Setenv("PAYMENT_MERCHANT_ID", "MERCHANTUAT")
		t.Setenv("PAYMENT_SALT_KEYS", "1:salt-one, 2:salt-two")
		t.Setenv("PAYMENT_SALT_INDEX", "1")
		t.Setenv("SHIPPING_FEE", "1500")

		cfg := LoadConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, "localhost", cfg.DBHost)
		assert.Equal(t, "testuser", cfg.DBUser)
		assert.Equal(t, "testpass", cfg.DBPassword)
		assert.Equal(t, "testdb", cfg.DBName)
		assert.Equal(t, "5432", cfg.DBPort)
		assert.Equal(t, "8080", cfg.AppPort)
		assert.Equal(t, "test", cfg.AppEnv)
		assert.Equal(t, "MERCHANTUAT", cfg.MerchantID)
		assert.Equal(t, map[string]string{"1": "salt-one", "2": "salt-two"}, cfg.SaltKeys)
		assert.Equal(t, "1", cfg.ActiveSaltIndex)
		assert.Equal(t, int64(1500), cfg.ShippingFee)
	})

	t.Run("Defaults applied when optional vars missing", func(t *testing.T) {
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("CURRENCY", "")
		t.Setenv("SHIPPING_FEE", "")
		t.Setenv("LOW_STOCK_THRESHOLD", "")

		cfg := LoadConfig()

		assert.Equal(t, "INR", cfg.Currency)
		assert.Equal(t, int64(1000), cfg.ShippingFee)
		assert.Equal(t, 10, cfg.LowStockThreshold)
	})
}

func TestParseSaltKeys(t *testing.T) {
	t.Run("Multiple keys", func(t *testing.T) {
		keys := parseSaltKeys("1:alpha,2:beta")
		assert.Len(t, keys, 2)
		assert.Equal(t, "alpha", keys["1"])
		assert.Equal(t, "beta", keys["2"])
	})

	t.Run("Malformed pairs skipped", func(t *testing.T) {
		keys := parseSaltKeys("1:alpha,broken,,3:gamma")
		assert.Len(t, keys, 2)
		assert.Equal(t, "gamma", keys["3"])
	})

	t.Run("Empty input", func(t *testing.T) {
		assert.Empty(t, parseSaltKeys(""))
	})
}
