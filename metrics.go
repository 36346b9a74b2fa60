package statcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statcache",
		Name:      "requests_total",
		Help:      "Total number of RequestData calls.",
	})
	metricCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statcache",
		Name:      "cache_hits_total",
		Help:      "Total number of fragments served directly from the interval index without a backend fill.",
	})
	metricFillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statcache",
		Name:      "fills_total",
		Help:      "Total number of placeholder fills, by outcome and series shard.",
	}, []string{"outcome", "shard"})
	metricFillDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "statcache",
		Name:      "fill_duration_seconds",
		Help:      "Time between a placeholder's creation and its population.",
		Buckets:   prometheus.ExponentialBuckets(.005, 2, 12),
	})
	metricPendingQueries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statcache",
		Name:      "pending_queries",
		Help:      "Number of RequestData calls awaiting one or more placeholder fills.",
	})
)
