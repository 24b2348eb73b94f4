package hierarchy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	computed    prometheus.Counter
	memoHits    prometheus.Counter
	diskHits    prometheus.Counter
	fatal       prometheus.Counter
	diagnostics *prometheus.CounterVec
	seconds     prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		computed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "netconn",
			Name:      "cells_computed_total",
			Help:      "Cells whose connectivity was computed from scratch.",
		}),
		memoHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "netconn",
			Name:      "memo_hits_total",
			Help:      "Interface requests served from the in-memory memo.",
		}),
		diskHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "netconn",
			Name:      "disk_cache_hits_total",
			Help:      "Interface requests served from the on-disk cache.",
		}),
		fatal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "netconn",
			Name:      "fatal_errors_total",
			Help:      "Cells that could not be analyzed.",
		}),
		diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netconn",
			Name:      "diagnostics_total",
			Help:      "Diagnostics reported while computing cells, by code.",
		}, []string{"code"}),
		seconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netconn",
			Name:      "cell_compute_seconds",
			Help:      "Time spent computing one cell.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
}
