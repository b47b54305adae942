package xcache

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/store"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
	redis "github.com/redis/go-redis/v9"

	"github.com/leadhub/leadhub/internal/log"
	redis_store "github.com/leadhub/leadhub/internal/pkg/xcache/redis"
)

// Cache is the gocache CacheInterface: Get, Set, Delete, Invalidate, Clear and GetType.
type Cache[T any] = cachelib.CacheInterface[T]

type SetterCache[T any] = cachelib.SetterCacheInterface[T]

const (
	defaultMemoryExpiration = 5 * time.Minute
	defaultCleanupInterval  = 10 * time.Minute
	defaultRedisExpiration  = 30 * time.Minute
)

// NewMemory builds an in-process cache. A positive MaxEntries selects an
// expiring LRU, otherwise patrickmn/go-cache is used.
func NewMemory[T any](cfg MemoryConfig) SetterCache[T] {
	expiration := defaultIfZero(cfg.Expiration, defaultMemoryExpiration)

	if cfg.MaxEntries > 0 {
		return cachelib.New[T](NewLRUStore(cfg.MaxEntries, expiration))
	}

	client := gocache.New(expiration, defaultIfZero(cfg.CleanupInterval, defaultCleanupInterval))

	return cachelib.New[T](gocache_store.NewGoCache(client, store.WithExpiration(expiration)))
}

func NewRedis[T any](client *redis.Client, cfg RedisConfig) SetterCache[T] {
	expiration := defaultIfZero(cfg.Expiration, defaultRedisExpiration)

	return cachelib.New[T](redis_store.NewStore[T](client, cfg.KeyPrefix, store.WithExpiration(expiration)))
}

// NewFromConfig builds a typed cache for cfg.Mode. client is required for the
// redis and two-level modes and ignored otherwise.
func NewFromConfig[T any](cfg Config, client *redis.Client) (Cache[T], error) {
	ctx := context.Background()

	switch cfg.Mode {
	case "", ModeNone:
		log.Info(ctx, "cache disabled")
		return NewNoop[T](), nil
	case ModeMemory:
		log.Info(ctx, "using memory cache", log.Int("max_entries", cfg.Memory.MaxEntries))
		return NewMemory[T](cfg.Memory), nil
	case ModeRedis:
		if client == nil {
			return nil, fmt.Errorf("cache mode %q requires a redis client", cfg.Mode)
		}

		log.Info(ctx, "using redis cache", log.String("key_prefix", cfg.Redis.KeyPrefix))

		return NewRedis[T](client, cfg.Redis), nil
	case ModeTwoLevel:
		if client == nil {
			return nil, fmt.Errorf("cache mode %q requires a redis client", cfg.Mode)
		}

		log.Info(ctx, "using two-level cache", log.String("key_prefix", cfg.Redis.KeyPrefix))

		return cachelib.NewChain[T](NewMemory[T](cfg.Memory), NewRedis[T](client, cfg.Redis)), nil
	default:
		return nil, fmt.Errorf("unknown cache mode %q", cfg.Mode)
	}
}

func defaultIfZero(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}

	return d
}
