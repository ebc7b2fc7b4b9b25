package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	domain "github.com/suitline/fulfillment/internal/domain"
)

const (
	defaultVariantTTL    = 15 * time.Minute
	defaultVariantJitter = 5 * time.Minute
	variantKeyPrefix     = "commerce:variant:"
	productKeyPrefix     = "commerce:product:"
)

// CachedClient memoises variant lookups in Redis and collapses concurrent misses for the
// same SKU. Writes pass through to the wrapped client; archiving or deleting a product drops
// its cached variant.
type CachedClient struct {
	Client
	redis  *redis.Client
	ttl    time.Duration
	jitter time.Duration
	group  singleflight.Group
	logger Logger
}

// CacheOption customises the CachedClient.
type CacheOption func(*CachedClient)

// WithVariantTTL overrides the base TTL applied to cached variants.
func WithVariantTTL(ttl time.Duration) CacheOption {
	return func(c *CachedClient) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithVariantJitter overrides the random TTL spread. Zero disables jitter.
func WithVariantJitter(jitter time.Duration) CacheOption {
	return func(c *CachedClient) {
		if jitter >= 0 {
			c.jitter = jitter
		}
	}
}

// WithCacheLogger sets the logger used for cache failures.
func WithCacheLogger(logger Logger) CacheOption {
	return func(c *CachedClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachedClient wraps next with a Redis backed variant cache.
func NewCachedClient(next Client, rdb *redis.Client, opts ...CacheOption) (*CachedClient, error) {
	if next == nil {
		return nil, errors.New("commerce cache: client is required")
	}
	if rdb == nil {
		return nil, errors.New("commerce cache: redis client is required")
	}
	c := &CachedClient{
		Client: next,
		redis:  rdb,
		ttl:    defaultVariantTTL,
		jitter: defaultVariantJitter,
		logger: noopLogger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// GetVariantBySKU serves from Redis when possible. Cache failures never fail the lookup.
func (c *CachedClient) GetVariantBySKU(ctx context.Context, sku string) (domain.CatalogVariant, error) {
	sku = strings.TrimSpace(sku)
	key := variantKey(sku)

	if variant, ok := c.get(ctx, key); ok {
		return variant, nil
	}

	// Waiters share the leader's call, so it must outlive the leader's request.
	shared := context.WithoutCancel(ctx)
	value, err, _ := c.group.Do(key, func() (any, error) {
		variant, err := c.Client.GetVariantBySKU(shared, sku)
		if err != nil {
			return domain.CatalogVariant{}, err
		}
		c.set(shared, key, variant)
		return variant, nil
	})
	if err != nil {
		return domain.CatalogVariant{}, err
	}
	return value.(domain.CatalogVariant), nil
}

// ArchiveProduct archives through the wrapped client and then drops the cached variant.
func (c *CachedClient) ArchiveProduct(ctx context.Context, productID string) error {
	if err := c.Client.ArchiveProduct(ctx, productID); err != nil {
		return err
	}
	c.forgetProduct(ctx, productID)
	return nil
}

// DeleteProduct deletes through the wrapped client and then drops the cached variant.
func (c *CachedClient) DeleteProduct(ctx context.Context, productID string) error {
	if err := c.Client.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	c.forgetProduct(ctx, productID)
	return nil
}

func (c *CachedClient) forgetProduct(ctx context.Context, productID string) {
	pkey := productKey(strings.TrimSpace(productID))
	sku, err := c.redis.Get(ctx, pkey).Result()
	if errors.Is(err, redis.Nil) {
		return
	}
	if err != nil {
		c.logger(ctx, "commerce.cache.get.failed", map[string]any{"key": pkey, "error": err.Error()})
		return
	}
	if err := c.redis.Del(ctx, variantKey(sku), pkey).Err(); err != nil {
		c.logger(ctx, "commerce.cache.invalidate.failed", map[string]any{"productId": productID, "error": err.Error()})
	}
}

func (c *CachedClient) get(ctx context.Context, key string) (domain.CatalogVariant, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CatalogVariant{}, false
	}
	if err != nil {
		c.logger(ctx, "commerce.cache.get.failed", map[string]any{"key": key, "error": err.Error()})
		return domain.CatalogVariant{}, false
	}
	var variant domain.CatalogVariant
	if err := json.Unmarshal(data, &variant); err != nil {
		c.logger(ctx, "commerce.cache.decode.failed", map[string]any{"key": key, "error": err.Error()})
		return domain.CatalogVariant{}, false
	}
	return variant, true
}

func (c *CachedClient) set(ctx context.Context, key string, variant domain.CatalogVariant) {
	data, err := json.Marshal(variant)
	if err != nil {
		return
	}
	ttl := c.ttl
	if c.jitter > 0 {
		ttl += time.Duration(rand.Int63n(int64(c.jitter)))
	}
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	if variant.ProductID != "" {
		pipe.Set(ctx, productKey(variant.ProductID), variant.SKU, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger(ctx, "commerce.cache.set.failed", map[string]any{"key": key, "error": err.Error()})
	}
}

func variantKey(sku string) string {
	return variantKeyPrefix + sku
}

func productKey(productID string) string {
	return productKeyPrefix + productID
}
