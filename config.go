package tagfilterdb

// config.go follows the same functional-options pattern used throughout
// this module (see internal/lru/config.go): a defaultConfig() constructor,
// a set of Option values, and applyOptions() that folds and validates
// them.

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tin2003tin/tagfilterdb/internal/rtree"
)

const (
	// DefaultDimension is the bounding-box dimension when the caller
	// doesn't specify one (2D spatial data is the common case).
	DefaultDimension = 2
	// DefaultPageBytes is spec.md §6's "default page size".
	DefaultPageBytes = 4096
	// DefaultCacheShardBits gives 16 shards (spec.md §6's "default cache
	// shards 16").
	DefaultCacheShardBits = 4
	// DefaultCacheCapacityPages bounds the heap's page working set.
	DefaultCacheCapacityPages = 100
)

// Option configures a Memtable at Open time.
type Option func(*config)

type config struct {
	dimension          int
	pageBytes          int
	cacheShardBits     uint
	cacheCapacityPages int
	maxChildren         int
	minChildren         int
	compressPages      bool

	logger   *zap.Logger
	registry *prometheus.Registry
}

func defaultConfig() *config {
	return &config{
		dimension:          DefaultDimension,
		pageBytes:          DefaultPageBytes,
		cacheShardBits:     DefaultCacheShardBits,
		cacheCapacityPages: DefaultCacheCapacityPages,
		maxChildren:        rtree.DefaultMaxChildren,
		minChildren:        rtree.DefaultMinChildren,
		logger:             zap.NewNop(),
	}
}

// WithDimension sets the bounding-box dimension. Default 2.
func WithDimension(n int) Option {
	return func(c *config) { c.dimension = n }
}

// WithPageBytes sets the paged heap's page size. Default 4096.
func WithPageBytes(n int) Option {
	return func(c *config) { c.pageBytes = n }
}

// WithCacheShardBits records a page-cache shard count of 2^bits in the
// configuration. Open does not pass it on: the heap's page cache always
// runs with a single shard.
func WithCacheShardBits(bits uint) Option {
	return func(c *config) { c.cacheShardBits = bits }
}

// WithCacheCapacityPages bounds the heap's resident page working set.
func WithCacheCapacityPages(n int) Option {
	return func(c *config) { c.cacheCapacityPages = n }
}

// WithChildBounds overrides the spatial index's MAX_CHILDREN/MIN_CHILDREN.
func WithChildBounds(max, min int) Option {
	return func(c *config) { c.maxChildren, c.minChildren = max, min }
}

// WithCompressPages enables zstd compression of heap page payloads.
func WithCompressPages(enabled bool) Option {
	return func(c *config) { c.compressPages = enabled }
}

// WithLogger plugs an external zap.Logger. The engine only logs rare
// events (flush, compaction), never the hot path.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics, registered against reg.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

func applyOptions(opts []Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.dimension <= 0 {
		return nil, errors.New("tagfilterdb: dimension must be > 0")
	}
	if cfg.pageBytes <= 0 {
		return nil, errors.New("tagfilterdb: page bytes must be > 0")
	}
	if cfg.maxChildren < 2 {
		return nil, errors.New("tagfilterdb: max children must be >= 2")
	}
	if cfg.minChildren < 1 || cfg.minChildren > cfg.maxChildren/2 {
		return nil, errors.New("tagfilterdb: min children must be in [1, max/2]")
	}
	return cfg, nil
}
