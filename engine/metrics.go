package engine

import "github.com/prometheus/client_golang/prometheus"

// metricsSet holds the counters the engine exposes when a
// prometheus.Registerer is supplied; left nil (Engine.metrics), the
// engine never touches prometheus at all.
type metricsSet struct {
	mutations   *prometheus.CounterVec
	compactions *prometheus.CounterVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	m := &metricsSet{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parquedb",
			Name:      "mutations_total",
			Help:      "Total number of create/update/delete operations, by namespace and op.",
		}, []string{"namespace", "op"}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parquedb",
			Name:      "compactions_total",
			Help:      "Total number of compaction runs, by namespace and outcome.",
		}, []string{"namespace", "outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parquedb",
			Name:      "cache_hits_total",
			Help:      "Total cache hits across parquet metadata and row-group lookups.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parquedb",
			Name:      "cache_misses_total",
			Help:      "Total cache misses across parquet metadata and row-group lookups.",
		}),
	}
	reg.MustRegister(m.mutations, m.compactions, m.cacheHits, m.cacheMisses)
	return m
}

func (e *Engine) recordMutation(ns, op string) {
	if e.metrics == nil {
		return
	}
	e.metrics.mutations.WithLabelValues(ns, op).Inc()
}

func (e *Engine) recordCompaction(ns, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.compactions.WithLabelValues(ns, outcome).Inc()
}
