package lru

// config.go defines the functional-options configuration surface for the
// sharded LRU cache: a defaultConfig() constructor, a set of Option
// values, and applyOptions() that folds and validates them.

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// DefaultShardBits yields 16 shards (2^4), matching the engine's default
	// cache shards constant (spec.md §6).
	DefaultShardBits = 4
	// DefaultTotalCharge is 1000 entries at the default per-entry charge of 8
	// (spec.md §6's "default total cache charge").
	DefaultTotalCharge = 1000 * DefaultChargePerEntry
	// DefaultChargePerEntry is the charge assumed for a cache entry when the
	// caller does not compute one explicitly.
	DefaultChargePerEntry = 8
	// DefaultExpandRatio is the load factor above which a shard's bucket
	// array is doubled.
	DefaultExpandRatio = 0.8
	// DefaultExpandFactor is the growth multiplier applied on expansion.
	DefaultExpandFactor = 2
	// initialShardCap is every shard's starting bucket-array size.
	initialShardCap = 2
)

// EjectCallback is invoked, in the calling goroutine, whenever an entry is
// removed from the table by capacity-pressure eviction, Erase or Prune.
// Replacing a key through Insert does not invoke it. It must not block or
// call back into the cache.
type EjectCallback[V any] func(key string, value V, charge int)

// Option configures a Cache[V] at construction time.
type Option[V any] func(*config[V])

type config[V any] struct {
	shardBits    uint
	totalCharge  int
	expandRatio  float64
	expandFactor int

	registry *prometheus.Registry
	logger   *zap.Logger
	ejectCb  EjectCallback[V]
}

func defaultConfig[V any]() *config[V] {
	return &config[V]{
		shardBits:    DefaultShardBits,
		totalCharge:  DefaultTotalCharge,
		expandRatio:  DefaultExpandRatio,
		expandFactor: DefaultExpandFactor,
		logger:       zap.NewNop(),
	}
}

// WithShardBits sets the number of shards to 2^bits. Default 4 (16 shards).
func WithShardBits[V any](bits uint) Option[V] {
	return func(c *config[V]) { c.shardBits = bits }
}

// WithTotalCharge sets the aggregate charge ceiling, divided evenly across
// shards.
func WithTotalCharge[V any](charge int) Option[V] {
	return func(c *config[V]) { c.totalCharge = charge }
}

// WithExpandRatio overrides the load factor that triggers a shard rehash.
func WithExpandRatio[V any](ratio float64) Option[V] {
	return func(c *config[V]) { c.expandRatio = ratio }
}

// WithExpandFactor overrides the growth multiplier applied on expansion.
func WithExpandFactor[V any](factor int) Option[V] {
	return func(c *config[V]) { c.expandFactor = factor }
}

// WithMetrics enables Prometheus metrics for the cache. Passing nil disables
// metrics (the default).
func WithMetrics[V any](reg *prometheus.Registry) Option[V] {
	return func(c *config[V]) { c.registry = reg }
}

// WithLogger plugs an external zap.Logger into the cache configuration.
// The cache stores the logger but emits no log lines itself.
func WithLogger[V any](l *zap.Logger) Option[V] {
	return func(c *config[V]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEjectCallback registers a function invoked whenever an entry is
// removed by eviction, Erase or Prune (see EjectCallback).
func WithEjectCallback[V any](cb EjectCallback[V]) Option[V] {
	return func(c *config[V]) { c.ejectCb = cb }
}

func applyOptions[V any](cfg *config[V], opts []Option[V]) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.shardBits > 24 {
		return errors.New("lru: shardBits too large")
	}
	if cfg.totalCharge <= 0 {
		return errors.New("lru: totalCharge must be > 0")
	}
	if cfg.expandRatio <= 0 || cfg.expandRatio > 1 {
		return errors.New("lru: expandRatio must be in (0, 1]")
	}
	if cfg.expandFactor < 2 {
		return errors.New("lru: expandFactor must be >= 2")
	}
	return nil
}
