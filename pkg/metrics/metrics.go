package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"
	metricsEnabled     = true

	// Engine metrics
	EvaluationsTotal *prometheus.CounterVec
	AlertsEmitted    *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec
	SuggestionsTotal *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge

	// Transport metrics
	WebsocketClients      prometheus.Gauge
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionStatus  prometheus.Gauge
	ESIndexedAlerts       *prometheus.CounterVec
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		EvaluationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realsync_evaluations_total",
				Help: "Total number of signal evaluations by signal type",
			},
			[]string{"signal"},
		)

		AlertsEmitted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realsync_alerts_emitted_total",
				Help: "Total number of alerts emitted by category and severity",
			},
			[]string{"category", "severity"},
		)

		AlertsSuppressed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realsync_alerts_suppressed_total",
				Help: "Total number of alerts suppressed by cooldown",
			},
			[]string{"source"},
		)

		SuggestionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realsync_suggestions_total",
				Help: "Total number of suggestions emitted by severity",
			},
			[]string{"severity"},
		)

		ActiveSessions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "realsync_active_sessions",
				Help: "Number of sessions with live state",
			},
		)

		WebsocketClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "realsync_websocket_clients",
				Help: "Number of connected websocket clients",
			},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realsync_amqp_published_messages_total",
				Help: "Total number of AMQP messages published",
			},
			[]string{"queue", "status"},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "realsync_amqp_connection_status",
				Help: "AMQP connection status (1 connected, 0 disconnected)",
			},
		)

		ESIndexedAlerts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realsync_es_indexed_alerts_total",
				Help: "Total number of alerts indexed to Elasticsearch",
			},
			[]string{"status"},
		)

		registry.MustRegister(
			EvaluationsTotal,
			AlertsEmitted,
			AlertsSuppressed,
			SuggestionsTotal,
			ActiveSessions,
			WebsocketClients,
			AMQPPublishedMessages,
			AMQPConnectionStatus,
			ESIndexedAlerts,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	return registry
}

// SetMetricsPath sets the HTTP path for metrics endpoint
func SetMetricsPath(path string) {
	defaultMetricsPath = path
}

// EnableMetrics enables or disables metrics collection
func EnableMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IsMetricsEnabled returns whether metrics are enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// RegisterHandler registers the metrics HTTP handler
func RegisterHandler(mux *http.ServeMux) {
	if metricsEnabled && registry != nil {
		handler := promhttp.HandlerFor(
			registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          registry,
			},
		)
		mux.Handle(defaultMetricsPath, handler)
	}
}

// StartMetrics initializes the metrics service
func StartMetrics(logger *logrus.Logger, enabled bool) {
	if !enabled {
		EnableMetrics(false)
		logger.Info("Metrics collection is disabled")
		return
	}

	Init(logger)
	EnableMetrics(true)
	logger.WithField("metrics_path", defaultMetricsPath).Info("Metrics endpoint initialized")
}

// active reports whether collectors exist and collection is on. Callers
// may run before Init (tests, disabled deployments).
func active() bool {
	return metricsEnabled && registry != nil
}

// RecordEvaluation counts one evaluation for a signal type
func RecordEvaluation(signal string) {
	if active() {
		EvaluationsTotal.WithLabelValues(signal).Inc()
	}
}

// RecordAlert counts an emitted alert
func RecordAlert(category, severity string) {
	if active() {
		AlertsEmitted.WithLabelValues(category, severity).Inc()
	}
}

// RecordSuppressed counts an alert suppressed by cooldown
func RecordSuppressed(source string) {
	if active() {
		AlertsSuppressed.WithLabelValues(source).Inc()
	}
}

// RecordSuggestion counts an emitted suggestion
func RecordSuggestion(severity string) {
	if active() {
		SuggestionsTotal.WithLabelValues(severity).Inc()
	}
}

// SessionStarted increments the active session gauge
func SessionStarted() {
	if active() {
		ActiveSessions.Inc()
	}
}

// SessionEnded decrements the active session gauge
func SessionEnded() {
	if active() {
		ActiveSessions.Dec()
	}
}

// WebsocketClientConnected increments the websocket client gauge
func WebsocketClientConnected() {
	if active() {
		WebsocketClients.Inc()
	}
}

// WebsocketClientDisconnected decrements the websocket client gauge
func WebsocketClientDisconnected() {
	if active() {
		WebsocketClients.Dec()
	}
}

// RecordAMQPPublish records metrics for an AMQP publish
func RecordAMQPPublish(queue, status string) {
	if active() {
		AMQPPublishedMessages.WithLabelValues(queue, status).Inc()
	}
}

// SetAMQPConnectionStatus sets the AMQP connection status
func SetAMQPConnectionStatus(connected bool) {
	if active() {
		if connected {
			AMQPConnectionStatus.Set(1)
		} else {
			AMQPConnectionStatus.Set(0)
		}
	}
}

// RecordESIndex records an Elasticsearch index attempt
func RecordESIndex(status string) {
	if active() {
		ESIndexedAlerts.WithLabelValues(status).Inc()
	}
}
