package collab

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_ops_applied_total",
		Help: "Operations applied to documents",
	})
	opsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_ops_rejected_total",
		Help: "Operations rejected, by reason",
	}, []string{"reason"})
	applyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collab_apply_duration_seconds",
		Help:    "Time spent applying one operation",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	})
	eventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_kafka_events_dropped_total",
		Help: "Operation events dropped after enqueue timeout or exhausted retries",
	})
	loadedDocuments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_loaded_documents",
		Help: "Documents currently held in memory",
	})
)
