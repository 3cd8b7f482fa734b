package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// EnvPrefix namespaces every variable, e.g. REGISTER_PORT.
const EnvPrefix = "REGISTER"

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	RedisAddr              string `envconfig:"REDIS_ADDR"`
	RedisPassword          string `envconfig:"REDIS_PASSWORD"`
	RedisDB                int    `envconfig:"REDIS_DB" default:"0"`
	ProductCacheTTLSeconds int    `envconfig:"PRODUCT_CACHE_TTL_SECONDS" default:"300"`

	RegisterID string `envconfig:"ID" default:"REG-01"`
	StoreName  string `envconfig:"STORE_NAME" default:"SuperMart"`

	AuthSecret string `envconfig:"AUTH_SECRET"`
	ManagerPIN string `envconfig:"MANAGER_PIN"`

	ScaleMode      string          `envconfig:"SCALE_MODE" default:"simulated"`
	ScaleMaxKg     decimal.Decimal `envconfig:"SCALE_MAX_KG" default:"30"`
	ScaleLatencyMS int             `envconfig:"SCALE_LATENCY_MS" default:"400"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.ManagerPIN = strings.TrimSpace(cfg.ManagerPIN)
	cfg.ScaleMode = strings.ToLower(strings.TrimSpace(cfg.ScaleMode))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.ScaleMode {
	case "simulated", "offline":
	default:
		return fmt.Errorf("%s_SCALE_MODE must be simulated or offline, got %q", EnvPrefix, c.ScaleMode)
	}
	if !c.ScaleMaxKg.IsPositive() {
		return fmt.Errorf("%s_SCALE_MAX_KG must be > 0", EnvPrefix)
	}
	if c.ScaleLatencyMS < 0 {
		return fmt.Errorf("%s_SCALE_LATENCY_MS must be >= 0", EnvPrefix)
	}
	if c.ProductCacheTTLSeconds < 1 {
		return fmt.Errorf("%s_PRODUCT_CACHE_TTL_SECONDS must be >= 1", EnvPrefix)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) ProductCacheTTL() time.Duration {
	return time.Duration(c.ProductCacheTTLSeconds) * time.Second
}

func (c Config) ScaleLatency() time.Duration {
	return time.Duration(c.ScaleLatencyMS) * time.Millisecond
}
