package xcache

import (
	"time"

	"github.com/leadhub/leadhub/internal/pkg/xredis"
)

// Modes:
//   - "" or none: caching disabled
//   - memory: in-process only
//   - redis: shared redis only
//   - two-level: memory in front of redis
const (
	ModeNone     = "none"
	ModeMemory   = "memory"
	ModeRedis    = "redis"
	ModeTwoLevel = "two-level"
)

type Config struct {
	Mode   string       `conf:"mode" yaml:"mode" json:"mode"`
	Memory MemoryConfig `conf:"memory" yaml:"memory" json:"memory"`
	Redis  RedisConfig  `conf:"redis" yaml:"redis" json:"redis"`
}

type MemoryConfig struct {
	Expiration      time.Duration `conf:"expiration" yaml:"expiration" json:"expiration"`
	CleanupInterval time.Duration `conf:"cleanup_interval" yaml:"cleanup_interval" json:"cleanup_interval"`

	// MaxEntries bounds the memory cache with LRU eviction. Zero means unbounded.
	MaxEntries int `conf:"max_entries" yaml:"max_entries" json:"max_entries"`
}

type RedisConfig struct {
	Client     xredis.Config `conf:"client" yaml:"client" json:"client"`
	Expiration time.Duration `conf:"expiration" yaml:"expiration" json:"expiration"`
	KeyPrefix  string        `conf:"key_prefix" yaml:"key_prefix" json:"key_prefix"`
}

// UsesRedis reports whether the mode needs a redis client.
func (c Config) UsesRedis() bool {
	return c.Mode == ModeRedis || c.Mode == ModeTwoLevel
}
