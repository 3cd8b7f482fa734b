package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"kasirinaja/register/internal/domain"
)

const keyPrefix = "register"

type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Redis{client: client}
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

// Products returns the product cache view of this connection.
func (c *Redis) Products() *RedisProductCache {
	return &RedisProductCache{client: c.client}
}

// Receipts returns a sink that keeps the last receipt of registerID.
func (c *Redis) Receipts(registerID string) *RedisReceiptSink {
	return &RedisReceiptSink{
		client: c.client,
		key:    fmt.Sprintf("%s:%s:last_receipt", keyPrefix, strings.TrimSpace(registerID)),
	}
}

type RedisProductCache struct {
	client *redis.Client
}

func productKey(barcode string) string {
	return fmt.Sprintf("%s:product:%s", keyPrefix, strings.TrimSpace(barcode))
}

func (c *RedisProductCache) Get(ctx context.Context, barcode string) (*domain.Product, bool, error) {
	val, err := c.client.Get(ctx, productKey(barcode)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var product domain.Product
	if err := json.Unmarshal([]byte(val), &product); err != nil {
		return nil, false, err
	}
	return &product, true, nil
}

func (c *RedisProductCache) Set(ctx context.Context, product domain.Product, ttl time.Duration) error {
	payload, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productKey(product.Barcode), payload, ttl).Err()
}

// RedisReceiptSink keeps the latest receipt so a restarted register can
// still show it.
type RedisReceiptSink struct {
	client *redis.Client
	key    string
}

func (s *RedisReceiptSink) Publish(ctx context.Context, receipt domain.Receipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, payload, 0).Err()
}

func (s *RedisReceiptSink) Last(ctx context.Context) (domain.Receipt, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Receipt{}, fmt.Errorf("%w: no receipt issued yet", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Receipt{}, err
	}

	var receipt domain.Receipt
	if err := json.Unmarshal([]byte(val), &receipt); err != nil {
		return domain.Receipt{}, err
	}
	return receipt, nil
}
