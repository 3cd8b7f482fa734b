package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"kasirinaja/register/internal/domain"
	"kasirinaja/register/internal/store"
)

type ProductCache interface {
	Get(ctx context.Context, barcode string) (*domain.Product, bool, error)
	Set(ctx context.Context, product domain.Product, ttl time.Duration) error
}

type NoopProductCache struct{}

func (NoopProductCache) Get(_ context.Context, _ string) (*domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) Set(_ context.Context, _ domain.Product, _ time.Duration) error {
	return nil
}

// CachedLookup reads through cache before asking source. Cache failures are
// logged and never fail a scan. Misses on the source are not cached.
type CachedLookup struct {
	source store.ProductLookup
	cache  ProductCache
	ttl    time.Duration
	log    zerolog.Logger
}

func NewCachedLookup(source store.ProductLookup, cache ProductCache, ttl time.Duration, log zerolog.Logger) *CachedLookup {
	if cache == nil {
		cache = NoopProductCache{}
	}
	return &CachedLookup{source: source, cache: cache, ttl: ttl, log: log}
}

func (l *CachedLookup) Lookup(ctx context.Context, barcode string) (domain.Product, error) {
	cached, ok, err := l.cache.Get(ctx, barcode)
	if err != nil {
		l.log.Warn().Err(err).Str("barcode", barcode).Msg("product cache read failed")
	}
	if ok && cached != nil {
		return *cached, nil
	}

	product, err := l.source.Lookup(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	if err := l.cache.Set(ctx, product, l.ttl); err != nil {
		l.log.Warn().Err(err).Str("barcode", barcode).Msg("product cache write failed")
	}
	return product, nil
}
