package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DegradedReads counts source lookups that failed and were replaced by an
	// empty result.
	DegradedReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_degraded_reads_total",
		Help: "Data source reads that failed and degraded to empty results.",
	}, []string{"source"})

	LiveStatuses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_live_status_total",
		Help: "Live statuses emitted, by label.",
	}, []string{"status"})

	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_report_duration_seconds",
		Help:    "Time spent building monthly reports.",
		Buckets: prometheus.DefBuckets,
	})

	// ReportCache counts cache lookups by result (hit, miss, error).
	ReportCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_report_cache_total",
		Help: "Monthly report cache lookups.",
	}, []string{"result"})
)
