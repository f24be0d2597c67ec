package tagfilterdb

// metrics.go wires github.com/prometheus/client_golang the way
// internal/lru/metrics.go does: a no-op sink by default, a Prometheus-
// backed sink when the caller opts in via WithMetrics. Surfaces the
// memtable-level metrics SPEC_FULL.md §7a promises: spatial index
// size/height, flush compaction count.

import "github.com/prometheus/client_golang/prometheus"

type metricsSink interface {
	setIndexSize(n int)
	setIndexHeight(n int)
	incFlush(compacted bool)
}

type noopMetrics struct{}

func (noopMetrics) setIndexSize(int)   {}
func (noopMetrics) setIndexHeight(int) {}
func (noopMetrics) incFlush(bool)      {}

type promMetrics struct {
	indexSize   prometheus.Gauge
	indexHeight prometheus.Gauge
	flushes     *prometheus.CounterVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	pm := &promMetrics{
		indexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tagfilterdb", Name: "index_size",
			Help: "Number of leaf entries in the spatial index.",
		}),
		indexHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tagfilterdb", Name: "index_height",
			Help: "Height of the spatial index's root.",
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tagfilterdb", Name: "flushes_total",
			Help: "Number of Memtable.Flush calls, by whether they triggered compaction.",
		}, []string{"compacted"}),
	}
	reg.MustRegister(pm.indexSize, pm.indexHeight, pm.flushes)
	return pm
}

func (m *promMetrics) setIndexSize(n int)   { m.indexSize.Set(float64(n)) }
func (m *promMetrics) setIndexHeight(n int) { m.indexHeight.Set(float64(n)) }
func (m *promMetrics) incFlush(compacted bool) {
	label := "false"
	if compacted {
		label = "true"
	}
	m.flushes.WithLabelValues(label).Inc()
}

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
