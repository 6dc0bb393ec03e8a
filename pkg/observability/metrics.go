package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Relation metrics
	RelationChecksTotal   *prometheus.CounterVec
	RelationCheckDuration *prometheus.HistogramVec

	// Tree metrics
	TreeQueriesTotal    *prometheus.CounterVec
	TreeQueryDuration   *prometheus.HistogramVec
	TreeMovesTotal      prometheus.Counter
	TreeMovedNodesTotal prometheus.Counter

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	StoreErrorsTotal       *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RelationChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratum_relation_checks_total",
				Help: "Total number of relation checks by tag and outcome",
			},
			[]string{"tag", "outcome"},
		),
		RelationCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stratum_relation_check_duration_seconds",
				Help:    "Relation check duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tag"},
		),
		TreeQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratum_tree_queries_total",
				Help: "Total number of tree queries by query kind",
			},
			[]string{"query_kind"},
		),
		TreeQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stratum_tree_query_duration_seconds",
				Help:    "Tree query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"query_kind"},
		),
		TreeMovesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stratum_tree_moves_total",
				Help: "Total number of category reparent operations",
			},
		),
		TreeMovedNodesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stratum_tree_moved_nodes_total",
				Help: "Total number of nodes rewritten by reparent operations",
			},
		),
		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratum_store_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"entity", "operation"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stratum_store_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity", "operation"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratum_store_errors_total",
				Help: "Total number of store errors by taxonomy kind",
			},
			[]string{"entity", "kind"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratum_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratum_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stratum_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stratum_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.RelationChecksTotal,
		m.RelationCheckDuration,
		m.TreeQueriesTotal,
		m.TreeQueryDuration,
		m.TreeMovesTotal,
		m.TreeMovedNodesTotal,
		m.StoreOperationsTotal,
		m.StoreOperationDuration,
		m.StoreErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// NewDefaultMetrics creates metrics registered on a fresh private registry.
// Useful for tests and embedded use where no scrape endpoint exists.
func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ObserveRelationCheck records one relation check with its outcome.
func (m *Metrics) ObserveRelationCheck(tag string, accepted bool, duration time.Duration) {
	outcome := "reject"
	if accepted {
		outcome = "accept"
	}
	m.RelationChecksTotal.WithLabelValues(tag, outcome).Inc()
	m.RelationCheckDuration.WithLabelValues(tag).Observe(duration.Seconds())
}

// ObserveTreeQuery records one tree fetch.
func (m *Metrics) ObserveTreeQuery(queryKind string, duration time.Duration) {
	m.TreeQueriesTotal.WithLabelValues(queryKind).Inc()
	m.TreeQueryDuration.WithLabelValues(queryKind).Observe(duration.Seconds())
}

// ObserveMove records one reparent operation and the number of rewritten nodes.
func (m *Metrics) ObserveMove(rewritten int) {
	m.TreeMovesTotal.Inc()
	m.TreeMovedNodesTotal.Add(float64(rewritten))
}
