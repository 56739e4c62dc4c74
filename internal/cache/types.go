package cache

import (
	"time"

	"github.com/docveil/docveil/internal/entity"
)

// CachedResult is one detection result stored under the document's content
// hash. Fingerprint identifies the detector configuration that produced it,
// so a config change invalidates old entries on lookup.
type CachedResult struct {
	Entities    []entity.Entity `json:"entities"`
	Fingerprint string          `json:"fingerprint"`
	CachedAt    time.Time       `json:"cached_at"`
	TTL         int64           `json:"ttl"`
}

// Stats represents cache performance statistics
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}

// Config contains cache configuration
type Config struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	MaxConns     int           `yaml:"max_conns" mapstructure:"max_conns"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL   time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}
