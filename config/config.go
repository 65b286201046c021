// Package config holds the cache-layer configuration: which engine backs the
// store, default TTL, store name, and the page size used when defaulting list
// keys. Values come from YAML with SEGCACHE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// reservedChars separate or match keys in the store namespace.
const reservedChars = `:*?[]\`

// Engine selects the store backend.
type Engine string

const (
	// EngineMemory is the development placeholder: caching is disabled and
	// no store is opened.
	EngineMemory    Engine = "memory"
	EngineRedis     Engine = "redis"
	EngineRistretto Engine = "ristretto"
	EngineBigCache  Engine = "bigcache"
)

// Enabled reports whether the engine is a real store. Only those turn the
// cache on; the decision is fixed for the life of a cache instance.
func (e Engine) Enabled() bool {
	switch e {
	case EngineRedis, EngineRistretto, EngineBigCache:
		return true
	default:
		return false
	}
}

// Shared reports whether entries live outside the process that wrote them,
// so another process opening the same config sees them.
func (e Engine) Shared() bool { return e == EngineRedis }

func (e Engine) valid() bool {
	return e == EngineMemory || e.Enabled()
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	ScanCount int64  `yaml:"scan_count"`
}

type RistrettoConfig struct {
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items"`
}

type BigCacheConfig struct {
	LifeWindowMs       int64 `yaml:"life_window_ms"`
	MaxEntriesInWindow int   `yaml:"max_entries_in_window"`
	MaxEntrySize       int   `yaml:"max_entry_size"`
	HardMaxCacheSizeMB int   `yaml:"hard_max_cache_size_mb"`
}

// Cache is the explicit configuration passed to every cache constructor.
type Cache struct {
	Engine          Engine `yaml:"engine"`
	TTLMs           int64  `yaml:"ttl_ms"`
	StoreName       string `yaml:"store_name"`
	DefaultPageSize int    `yaml:"default_page_size"`
	// IdempotentOpen lets a segment be opened twice (hot reload) instead of
	// reporting it as already provisioned.
	IdempotentOpen bool `yaml:"idempotent_open"`

	Redis     RedisConfig     `yaml:"redis"`
	Ristretto RistrettoConfig `yaml:"ristretto"`
	BigCache  BigCacheConfig  `yaml:"bigcache"`
}

// File is the on-disk layout; the cache section lives under "cache".
type File struct {
	Cache Cache `yaml:"cache"`
}

// Default returns a Config with sensible defaults
func Default() Cache {
	return Cache{
		Engine:          EngineMemory,
		TTLMs:           5 * 60 * 1000,
		StoreName:       "app",
		DefaultPageSize: 20,
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Ristretto: RistrettoConfig{
			NumCounters: 1e5,
			MaxCost:     1 << 26,
			BufferItems: 64,
		},
		BigCache: BigCacheConfig{
			LifeWindowMs:       10 * 60 * 1000,
			MaxEntriesInWindow: 10000,
			MaxEntrySize:       1024,
		},
	}
}

// TTL returns TTLMs as a duration.
func (c Cache) TTL() time.Duration { return time.Duration(c.TTLMs) * time.Millisecond }

// Validate reports the first misconfiguration as *Error.
func (c Cache) Validate() error {
	switch {
	case !c.Engine.valid():
		return &Error{Key: "cache.engine", Reason: fmt.Sprintf("unknown engine %q", c.Engine)}
	case c.TTLMs <= 0:
		return &Error{Key: "cache.ttl_ms", Reason: "must be positive"}
	case c.StoreName == "":
		return &Error{Key: "cache.store_name", Reason: "required"}
	case strings.ContainsAny(c.StoreName, reservedChars):
		return &Error{Key: "cache.store_name", Reason: "must not contain any of " + reservedChars}
	case c.DefaultPageSize <= 0:
		return &Error{Key: "cache.default_page_size", Reason: "must be positive"}
	case c.Engine == EngineRedis && c.Redis.Addr == "":
		return &Error{Key: "cache.redis.addr", Reason: "required for redis engine"}
	case c.Engine == EngineBigCache && c.BigCache.LifeWindowMs <= 0:
		return &Error{Key: "cache.bigcache.life_window_ms", Reason: "must be positive"}
	}
	return nil
}

// Load reads a YAML file on top of Default.
func Load(path string) (Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Cache{}, err
	}
	f := File{Cache: Default()}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Cache{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f.Cache, nil
}

// ApplyEnv applies environment variable overrides to the config.
func ApplyEnv(c *Cache) error {
	if v := os.Getenv("SEGCACHE_ENGINE"); v != "" {
		c.Engine = Engine(v)
	}
	if v := os.Getenv("SEGCACHE_TTL_MS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &Error{Key: "SEGCACHE_TTL_MS", Reason: err.Error()}
		}
		c.TTLMs = n
	}
	if v := os.Getenv("SEGCACHE_STORE_NAME"); v != "" {
		c.StoreName = v
	}
	if v := os.Getenv("SEGCACHE_DEFAULT_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Key: "SEGCACHE_DEFAULT_PAGE_SIZE", Reason: err.Error()}
		}
		c.DefaultPageSize = n
	}
	if v := os.Getenv("SEGCACHE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SEGCACHE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	return nil
}
