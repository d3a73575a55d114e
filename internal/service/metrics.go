package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domainatlas_runs_total",
		Help: "Pipeline runs by outcome.",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "domainatlas_run_duration_seconds",
		Help:    "Wall time of a full pipeline run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	domainsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domainatlas_domains_resolved_total",
		Help: "Domains whose DNS attributes were resolved.",
	})

	attributeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "domainatlas_attribute_cache_hits_total",
		Help: "Domain attribute lookups served from cache.",
	})

	categoryGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "domainatlas_category_count",
		Help: "Organizations per effective category, from the latest run.",
	}, []string{"service", "category"})
)
