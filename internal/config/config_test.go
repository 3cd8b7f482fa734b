package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("REGISTER_AUTH_SECRET", "")
	t.Setenv("REGISTER_MANAGER_PIN", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AuthSecret)
	assert.Empty(t, cfg.ManagerPIN)
}

func TestLoadReadsPrefixedValues(t *testing.T) {
	t.Setenv("REGISTER_PORT", "9090")
	t.Setenv("REGISTER_ID", "LANE-3")
	t.Setenv("REGISTER_STORE_NAME", "Corner Shop")
	t.Setenv("REGISTER_SCALE_MODE", " Offline ")
	t.Setenv("REGISTER_SCALE_MAX_KG", "15.5")
	t.Setenv("REGISTER_SCALE_LATENCY_MS", "0")
	t.Setenv("REGISTER_PRODUCT_CACHE_TTL_SECONDS", "60")
	t.Setenv("REGISTER_MANAGER_PIN", " 482916 ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, "LANE-3", cfg.RegisterID)
	assert.Equal(t, "Corner Shop", cfg.StoreName)
	assert.Equal(t, "offline", cfg.ScaleMode)
	assert.Equal(t, "15.5", cfg.ScaleMaxKg.String())
	assert.Equal(t, time.Duration(0), cfg.ScaleLatency())
	assert.Equal(t, time.Minute, cfg.ProductCacheTTL())
	assert.Equal(t, "482916", cfg.ManagerPIN)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REGISTER_SCALE_MODE", "simulated")
	t.Setenv("REGISTER_STORE_NAME", "SuperMart")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "simulated", cfg.ScaleMode)
	assert.Equal(t, "SuperMart", cfg.StoreName)
	assert.True(t, cfg.ScaleMaxKg.IsPositive())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"REGISTER_SCALE_MODE":                "usb",
		"REGISTER_SCALE_MAX_KG":              "0",
		"REGISTER_SCALE_LATENCY_MS":          "-5",
		"REGISTER_PRODUCT_CACHE_TTL_SECONDS": "0",
		"REGISTER_REDIS_DB":                  "zero",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
