// Package metrics exposes Prometheus metrics for the ingestion pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openpulse_events_received_total",
			Help: "Total number of tracking beacons received, by event type",
		},
		[]string{"type"},
	)

	EventsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openpulse_events_rejected_total",
			Help: "Total number of beacons rejected before enqueue, by reason",
		},
		[]string{"reason"},
	)

	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openpulse_events_dropped_total",
			Help: "Total number of events dropped due to queue overflow",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "openpulse_queue_depth",
			Help: "Current number of events buffered in the event queue",
		},
	)

	FlushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openpulse_queue_flush_total",
			Help: "Total number of queue flushes, by outcome",
		},
		[]string{"status"},
	)

	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openpulse_queue_flush_duration_seconds",
			Help:    "Duration of queue flushes including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openpulse_queue_flush_batch_size",
			Help:    "Number of events per flushed batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	SessionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openpulse_sessions_created_total",
			Help: "Total number of sessions created by the stitcher",
		},
	)

	SessionsReusedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openpulse_sessions_reused_total",
			Help: "Total number of events stitched onto an existing session",
		},
	)

	SessionsEndedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openpulse_sessions_ended_total",
			Help: "Total number of sessions marked inactive",
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(EventsReceivedTotal)
	prometheus.MustRegister(EventsRejectedTotal)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(FlushTotal)
	prometheus.MustRegister(FlushDuration)
	prometheus.MustRegister(FlushBatchSize)
	prometheus.MustRegister(SessionsCreatedTotal)
	prometheus.MustRegister(SessionsReusedTotal)
	prometheus.MustRegister(SessionsEndedTotal)
}
