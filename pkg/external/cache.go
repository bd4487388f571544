package external

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

const pageKeyPrefix = "snpedia:page:"

// PageCache stores fetched pages keyed by canonical variant ID.
// Get reports a miss with ok=false and a nil error.
type PageCache interface {
	Get(ctx context.Context, variantID string) (page *domain.RawPage, ok bool, err error)
	Set(ctx context.Context, page *domain.RawPage) error
}

// MemoryPageCache is an in-process LRU with per-entry expiry
type MemoryPageCache struct {
	lru *expirable.LRU[string, *domain.RawPage]
}

// NewMemoryPageCache creates a cache holding at most size pages for ttl each
func NewMemoryPageCache(size int, ttl time.Duration) *MemoryPageCache {
	if size <= 0 {
		size = 1000
	}
	return &MemoryPageCache{lru: expirable.NewLRU[string, *domain.RawPage](size, nil, ttl)}
}

func (m *MemoryPageCache) Get(_ context.Context, variantID string) (*domain.RawPage, bool, error) {
	page, ok := m.lru.Get(variantID)
	if !ok {
		return nil, false, nil
	}
	copied := *page
	return &copied, true, nil
}

func (m *MemoryPageCache) Set(_ context.Context, page *domain.RawPage) error {
	if page == nil || page.VariantID == "" {
		return fmt.Errorf("cannot cache page without variant id")
	}
	copied := *page
	m.lru.Add(page.VariantID, &copied)
	return nil
}

// Len returns the number of live entries
func (m *MemoryPageCache) Len() int {
	return m.lru.Len()
}

// CachedPage represents a cached page with metadata
type CachedPage struct {
	Page      *domain.RawPage `json:"page"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// RedisPageCache wraps a Redis client for sharing fetched pages across processes
type RedisPageCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewRedisPageCache connects to Redis and verifies the connection
func NewRedisPageCache(config domain.CacheConfig) (*RedisPageCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPageCacheFromClient(client, config.DefaultTTL), nil
}

// NewRedisPageCacheFromClient wraps an existing client
func NewRedisPageCacheFromClient(client *redis.Client, ttl time.Duration) *RedisPageCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPageCache{redis: client, defaultTTL: ttl}
}

func (c *RedisPageCache) Get(ctx context.Context, variantID string) (*domain.RawPage, bool, error) {
	key := pageKeyPrefix + variantID

	val, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get page cache: %w", err)
	}

	var cached CachedPage
	if err := json.Unmarshal(val, &cached); err != nil || cached.Page == nil {
		// corrupted entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return cached.Page, true, nil
}

func (c *RedisPageCache) Set(ctx context.Context, page *domain.RawPage) error {
	if page == nil || page.VariantID == "" {
		return fmt.Errorf("cannot cache page without variant id")
	}
	now := time.Now()
	cached := CachedPage{
		Page:      page,
		CachedAt:  now,
		ExpiresAt: now.Add(c.defaultTTL),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal page cache data: %w", err)
	}
	return c.redis.Set(ctx, pageKeyPrefix+page.VariantID, data, c.defaultTTL).Err()
}

// Ping checks the Redis connection
func (c *RedisPageCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisPageCache) Close() error {
	return c.redis.Close()
}

// TieredPageCache reads through layers in order and backfills the faster ones on a hit
type TieredPageCache struct {
	layers []PageCache
}

// NewTieredPageCache builds a cache from fastest to slowest layer; nil layers are skipped
func NewTieredPageCache(layers ...PageCache) *TieredPageCache {
	t := &TieredPageCache{}
	for _, l := range layers {
		if l != nil {
			t.layers = append(t.layers, l)
		}
	}
	return t
}

func (t *TieredPageCache) Get(ctx context.Context, variantID string) (*domain.RawPage, bool, error) {
	var firstErr error
	for i, layer := range t.layers {
		page, ok, err := layer.Get(ctx, variantID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}
		for _, faster := range t.layers[:i] {
			_ = faster.Set(ctx, page)
		}
		return page, true, nil
	}
	return nil, false, firstErr
}

func (t *TieredPageCache) Set(ctx context.Context, page *domain.RawPage) error {
	var firstErr error
	for _, layer := range t.layers {
		if err := layer.Set(ctx, page); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
