package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion outcomes
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeUpdated   = "updated"
	OutcomeUnmatched = "unmatched"
	OutcomeFailed    = "failed"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsrelay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whatsrelay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	WebhookMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsrelay_webhook_messages_total",
			Help: "Inbound webhook messages by ingestion outcome",
		},
		[]string{"outcome"},
	)

	WebhookStatusesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsrelay_webhook_statuses_total",
			Help: "Inbound delivery status events by reconciliation outcome",
		},
		[]string{"outcome"},
	)

	OutboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsrelay_outbound_messages_total",
			Help: "Client originated messages by result",
		},
		[]string{"result"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whatsrelay_realtime_connections",
			Help: "Currently connected realtime clients",
		},
	)

	RealtimeRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whatsrelay_realtime_rooms",
			Help: "Conversation rooms with at least one member",
		},
	)

	RealtimeFramesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsrelay_realtime_frames_total",
			Help: "Realtime frames queued for delivery by event name",
		},
		[]string{"event"},
	)

	RealtimeSlowConsumers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsrelay_realtime_slow_consumers_total",
			Help: "Clients disconnected because their send queue was full",
		},
	)

	EventsForwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsrelay_events_forwarded_total",
			Help: "Realtime events mirrored to NATS by result",
		},
		[]string{"result"},
	)

	RetentionDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsrelay_retention_deleted_total",
			Help: "Messages removed by the retention scheduler",
		},
	)
)

// RecordHTTPRequest feeds both the Prometheus collectors and the JSON registry.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())

	labels := map[string]string{"method": method, "route": route, "status": code}
	IncrementCounter("http_requests_total", labels, "Total HTTP requests")
	RecordTimer("http_request_duration", duration, map[string]string{"method": method, "route": route}, "HTTP request duration")
}

func RecordWebhookMessage(outcome string) {
	WebhookMessagesTotal.WithLabelValues(outcome).Inc()
	IncrementCounter("webhook_messages_total", map[string]string{"outcome": outcome}, "Inbound webhook messages")
}

func RecordWebhookStatus(outcome string) {
	WebhookStatusesTotal.WithLabelValues(outcome).Inc()
	IncrementCounter("webhook_statuses_total", map[string]string{"outcome": outcome}, "Inbound delivery status events")
}

func RecordOutbound(result string) {
	OutboundMessagesTotal.WithLabelValues(result).Inc()
	IncrementCounter("outbound_messages_total", map[string]string{"result": result}, "Client originated messages")
}

func SetRealtimeGauges(connections, rooms int) {
	RealtimeConnections.Set(float64(connections))
	RealtimeRooms.Set(float64(rooms))
	SetGauge("realtime_connections", float64(connections), nil, "Connected realtime clients")
	SetGauge("realtime_rooms", float64(rooms), nil, "Active conversation rooms")
}

func RecordFramePublished(event string) {
	RealtimeFramesPublished.WithLabelValues(event).Inc()
	IncrementCounter("realtime_frames_total", map[string]string{"event": event}, "Realtime frames queued")
}

func RecordSlowConsumer() {
	RealtimeSlowConsumers.Inc()
	IncrementCounter("realtime_slow_consumers_total", nil, "Slow realtime clients dropped")
}

func RecordRetentionDeleted(n int64) {
	RetentionDeletedTotal.Add(float64(n))
	globalRegistry.AddToCounter("retention_deleted_total", float64(n), nil, "Messages removed by retention")
}

func RecordEventForwarded(result string) {
	EventsForwardedTotal.WithLabelValues(result).Inc()
	IncrementCounter("events_forwarded_total", map[string]string{"result": result}, "Events mirrored to NATS")
}
