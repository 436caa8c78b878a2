package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "posi_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	BroadcastsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "posi_broadcasts_created_total", Help: "Broadcasts created"},
		[]string{"mode"},
	)
	BroadcastsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "posi_broadcasts_finalized_total", Help: "Broadcast terminal statuses"},
		[]string{"status"},
	)
	TargetsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "posi_broadcast_targets_total", Help: "Per-target delivery outcomes"},
		[]string{"result"},
	)
	TargetsRetried = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "posi_broadcast_targets_retried_total", Help: "Failed targets re-queued"},
	)
	PushSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "posi_push_send_total", Help: "Push gateway outcomes"},
		[]string{"result"},
	)
	PushLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "posi_push_send_latency_seconds", Help: "Push gateway latency"},
	)
	RealtimePublish = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "posi_realtime_publish_total", Help: "Realtime publish outcomes"},
		[]string{"result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		APIRequests, BroadcastsCreated, BroadcastsFinalized,
		TargetsProcessed, TargetsRetried, PushSend, PushLatency, RealtimePublish,
	)
}
