package lru

// metrics.go is a thin Prometheus abstraction: a no-op sink by default, a
// labeled Prometheus sink when the caller opts in via WithMetrics. All
// metrics are shard-level; sum()/rate() on the Prometheus side aggregates
// them.

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsSink interface {
	incHit(shard uint8)
	incMiss(shard uint8)
	incEvict(shard uint8)
	setUsage(shard uint8, value int64)
}

type noopMetrics struct{}

func (noopMetrics) incHit(uint8)          {}
func (noopMetrics) incMiss(uint8)         {}
func (noopMetrics) incEvict(uint8)        {}
func (noopMetrics) setUsage(uint8, int64) {}

type promMetrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	usage     *prometheus.GaugeVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"shard"}
	pm := &promMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagfilterdb", Subsystem: "lru", Name: "hits_total",
			Help: "Number of cache hits.",
		}, label),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagfilterdb", Subsystem: "lru", Name: "misses_total",
			Help: "Number of cache misses.",
		}, label),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagfilterdb", Subsystem: "lru", Name: "evictions_total",
			Help: "Number of entries evicted under charge pressure.",
		}, label),
		usage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tagfilterdb", Subsystem: "lru", Name: "usage_bytes",
			Help: "Resident charge per shard.",
		}, label),
	}
	reg.MustRegister(pm.hits, pm.misses, pm.evictions, pm.usage)
	return pm
}

func (m *promMetrics) incHit(shard uint8)   { m.hits.WithLabelValues(strconv.Itoa(int(shard))).Inc() }
func (m *promMetrics) incMiss(shard uint8)  { m.misses.WithLabelValues(strconv.Itoa(int(shard))).Inc() }
func (m *promMetrics) incEvict(shard uint8) { m.evictions.WithLabelValues(strconv.Itoa(int(shard))).Inc() }
func (m *promMetrics) setUsage(shard uint8, value int64) {
	m.usage.WithLabelValues(strconv.Itoa(int(shard))).Set(float64(value))
}

func newMetricsSink(shardCount int, reg *prometheus.Registry) metricsSink {
	_ = shardCount
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
