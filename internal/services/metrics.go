package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Snapshot pipeline
	FramesProcessed   prometheus.Counter
	SnapshotsRejected prometheus.Counter
	ChangesDetected   *prometheus.CounterVec

	// Event bus
	EventsDispatched *prometheus.CounterVec
	HandlerFailures  *prometheus.CounterVec

	// Notification router
	NotificationsCreated   *prometheus.CounterVec
	NotificationsThrottled prometheus.Counter
	DeliveryFailures       *prometheus.CounterVec

	// WebSocket metrics
	WebSocketConnections prometheus.Gauge

	// Connection manager reference for dynamic metrics
	connManager *ConnectionManager
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics(connManager *ConnectionManager) *Metrics {
	metrics := &Metrics{
		connManager: connManager,

		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "domus_frames_processed_total",
			Help: "Total number of fridge snapshots accepted and analyzed",
		}),

		SnapshotsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "domus_snapshots_rejected_total",
			Help: "Total number of snapshots rejected by the ingest debounce",
		}),

		// kind: "added", "removed", "moved", "consumption"
		ChangesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domus_changes_detected_total",
			Help: "Total number of inventory changes detected by kind",
		}, []string{"kind"}),

		EventsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domus_events_dispatched_total",
			Help: "Total number of events dispatched by type",
		}, []string{"event_type"}),

		HandlerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domus_handler_failures_total",
			Help: "Total number of event handler failures after retry by type",
		}, []string{"event_type"}),

		NotificationsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domus_notifications_created_total",
			Help: "Total number of notifications created by severity",
		}, []string{"severity"}),

		NotificationsThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "domus_notifications_throttled_total",
			Help: "Total number of notifications suppressed by the expiry throttle",
		}),

		DeliveryFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domus_delivery_failures_total",
			Help: "Total number of channel delivery failures by channel",
		}, []string{"channel"}),

		// WebSocket active connections (gauge - can go up and down)
		WebSocketConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "domus_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		}),
	}

	// Register a collector that reads the live count from ConnectionManager
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "domus_websocket_connections_current",
			Help: "Current number of active WebSocket connections (from connection manager)",
		},
		func() float64 {
			if connManager != nil {
				return float64(connManager.Count())
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance, which may be nil in tests
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordFrameProcessed records an accepted snapshot
func (m *Metrics) RecordFrameProcessed() {
	m.FramesProcessed.Inc()
}

// RecordSnapshotRejected records a debounced snapshot
func (m *Metrics) RecordSnapshotRejected() {
	m.SnapshotsRejected.Inc()
}

// RecordChange records a detected inventory change by kind
func (m *Metrics) RecordChange(kind string) {
	m.ChangesDetected.WithLabelValues(kind).Inc()
}

// RecordEventDispatched records a dispatched event
func (m *Metrics) RecordEventDispatched(eventType string) {
	m.EventsDispatched.WithLabelValues(eventType).Inc()
}

// RecordHandlerFailure records an exhausted handler delivery
func (m *Metrics) RecordHandlerFailure(eventType string) {
	m.HandlerFailures.WithLabelValues(eventType).Inc()
}

// RecordNotificationCreated records a created notification
func (m *Metrics) RecordNotificationCreated(severity string) {
	m.NotificationsCreated.WithLabelValues(severity).Inc()
}

// RecordNotificationThrottled records a throttled notification
func (m *Metrics) RecordNotificationThrottled() {
	m.NotificationsThrottled.Inc()
}

// RecordDeliveryFailure records a channel delivery failure
func (m *Metrics) RecordDeliveryFailure(channel string) {
	m.DeliveryFailures.WithLabelValues(channel).Inc()
}

// RecordWebSocketConnect records a new WebSocket connection
func (m *Metrics) RecordWebSocketConnect() {
	m.WebSocketConnections.Inc()
}

// RecordWebSocketDisconnect records a WebSocket disconnection
func (m *Metrics) RecordWebSocketDisconnect() {
	m.WebSocketConnections.Dec()
}
