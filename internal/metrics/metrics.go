package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_engine_search_total",
		Help: "Route searches by preference and outcome.",
	}, []string{"preference", "outcome"})

	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "route_engine_search_duration_seconds",
		Help:    "Route search latency including cache lookup.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"preference"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "route_engine_cache_hits_total",
		Help: "Search results served from the result cache.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "route_engine_cache_misses_total",
		Help: "Searches that had to run the path finder.",
	})

	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "route_engine_cache_invalidations_total",
		Help: "Generation bumps of the result cache.",
	})

	BuildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_engine_graph_builds_total",
		Help: "Graph builds by result (ok or the build error reason).",
	}, []string{"result"})

	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "route_engine_graph_build_duration_seconds",
		Help:    "Wall time of successful graph builds.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
	})

	GraphVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "route_engine_graph_version",
		Help: "Version of the live graph snapshot.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "route_engine_graph_edges",
		Help: "Segment count of the live graph snapshot.",
	})

	ImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "route_engine_import_rows_total",
		Help: "Imported rows by data type and status (accepted, rejected).",
	}, []string{"data_type", "status"})
)
