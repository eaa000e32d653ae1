package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fundchain-core/internal/types"
	"github.com/redis/go-redis/v9"
)

// CacheService provides high-level caching for live on-chain reads. Entries
// carry a short TTL; the chain is always the source of truth.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyFundraiserLive is for live fundraiser contract reads
	CacheKeyFundraiserLive CacheKeyType = "fundraiser:live"
	// CacheKeyPoolLive is for live staking pool reads
	CacheKeyPoolLive CacheKeyType = "pool:live"
	// CacheKeyStakerLive is for live per-staker position reads
	CacheKeyStakerLive CacheKeyType = "staker:live"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	// Normalize all parameters to lowercase for consistency
	normalizedParams := make([]string, len(params))
	for i, param := range params {
		normalizedParams[i] = strings.ToLower(param)
	}

	parts := append([]string{string(keyType)}, normalizedParams...)
	return strings.Join(parts, ":")
}

// GenerateFundraiserKey generates a cache key for live fundraiser data
// Format: fundraiser:live:<chain>:<address>
func (c *CacheService) GenerateFundraiserKey(chainID types.ChainID, address string) string {
	return c.GenerateCacheKey(CacheKeyFundraiserLive, strconv.FormatInt(int64(chainID), 10), address)
}

// GeneratePoolKey generates a cache key for live staking pool data
// Format: pool:live:<chain>:<address>
func (c *CacheService) GeneratePoolKey(chainID types.ChainID, address string) string {
	return c.GenerateCacheKey(CacheKeyPoolLive, strconv.FormatInt(int64(chainID), 10), address)
}

// GenerateStakerKey generates a cache key for a staker's live position
// Format: staker:live:<chain>:<pool>:<staker>
func (c *CacheService) GenerateStakerKey(chainID types.ChainID, pool, staker string) string {
	return c.GenerateCacheKey(CacheKeyStakerLive, strconv.FormatInt(int64(chainID), 10), pool, staker)
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redis.Set(ctx, key, data, ttl)
}

// Get retrieves a value from cache and deserializes it. A missing key is a
// cache miss, not an error.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidatePattern removes all keys matching a pattern
// Pattern examples: "fundraiser:live:*", "pool:live:84532:*"
func (c *CacheService) InvalidatePattern(ctx context.Context, pattern string) error {
	keys, err := c.redis.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to find keys matching pattern: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	return c.redis.Del(ctx, keys...)
}
