package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"kasirinaja/register/internal/cache"
	"kasirinaja/register/internal/config"
	"kasirinaja/register/internal/httpapi"
	"kasirinaja/register/internal/logger"
	"kasirinaja/register/internal/metrics"
	"kasirinaja/register/internal/register"
	"kasirinaja/register/internal/scale"
	"kasirinaja/register/internal/store"
	"kasirinaja/register/internal/store/memory"
	pgstore "kasirinaja/register/internal/store/postgres"
	"kasirinaja/register/internal/weighing"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "register",
		RegisterID:  cfg.RegisterID,
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewRegister(registry)

	var (
		lookup  store.ProductLookup
		history store.ReceiptHistory
		sinks   []store.NamedSink
	)
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		closers = append(closers, pg.Close)
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				log.Fatal().Err(err).Msg("migrations failed")
			}
			seeded, err := pg.SeedProducts(ctx, memory.Catalogue())
			if err != nil {
				log.Fatal().Err(err).Msg("seeding catalogue failed")
			}
			log.Info().Int("products", seeded).Msg("catalogue seeded")
		}
		lookup, history = pg, pg
		sinks = append(sinks, store.NamedSink{Name: "postgres", Sink: pg})
		log.Info().Msg("repository: postgres")
	} else {
		mem := memory.NewSeeded()
		lookup, history = mem, mem
		sinks = append(sinks, store.NamedSink{Name: "memory", Sink: mem})
		log.Info().Msg("repository: in-memory")
	}

	productCache := cache.ProductCache(cache.NoopProductCache{})
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rdb.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop cache")
		} else {
			productCache = rdb.Products()
			sinks = append(sinks, store.NamedSink{Name: "redis", Sink: rdb.Receipts(cfg.RegisterID)})
			closers = append(closers, rdb.Close)
			log.Info().Msg("cache: redis")
		}
	} else {
		log.Info().Msg("cache: noop")
	}

	fanout := store.NewFanout(sinks...)
	fanout.OnFailure = func(name string, err error) {
		m.SinkFailure(name)
		log.Warn().Err(err).Str("sink", name).Msg("receipt sink failed")
	}

	reg, err := register.New(register.Options{
		RegisterID: cfg.RegisterID,
		StoreName:  cfg.StoreName,
		Lookup:     cache.NewCachedLookup(lookup, productCache, cfg.ProductCacheTTL(), log),
		Sensor:     newSensor(cfg),
		Sink:       fanout,
		History:    history,
		Logger:     log,
		Metrics:    m,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("register setup failed")
	}

	api := httpapi.New(httpapi.Options{
		Register:      reg,
		Auth:          httpapi.NewAuthManager(cfg.AuthSecret, cfg.ManagerPIN),
		AllowedOrigin: cfg.AllowedOrigin,
		Metrics:       m,
		Gatherer:      registry,
		Logger:        log,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Weight reads can take a few seconds on real hardware.
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("scale", cfg.ScaleMode).Msg("register listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	closeAll(log, closers)
	log.Info().Msg("server stopped")
}

func newSensor(cfg config.Config) weighing.Sensor {
	if cfg.ScaleMode == scale.ModeOffline {
		return scale.NewOffline(cfg.ScaleMaxKg)
	}
	return scale.NewSimulated(cfg.ScaleMaxKg, cfg.ScaleLatency(), nil)
}

func closeAll(log zerolog.Logger, closers []func() error) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("%s_AUTH_SECRET must be set and at least 32 characters", config.EnvPrefix)
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("%s_MANAGER_PIN must be set and at least 6 digits", config.EnvPrefix)
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("%s_MANAGER_PIN is too weak: %w", config.EnvPrefix, err)
	}
	return nil
}

// validatePINStrength rejects PINs that repeat one digit, run in sequence,
// or appear on the common-PIN list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"121212": true, "112233": true, "123123": true, "696969": true,
	}
	if known[pin] {
		return errors.New("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return errors.New("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return errors.New("sequential PIN not allowed")
	}
	return nil
}
