package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"realsync-server/pkg/errors"
	"realsync-server/pkg/metrics"
	"realsync-server/pkg/version"
)

// HealthCheck probes one dependency for the readiness endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server is the HTTP server carrying the ingest API, health endpoints,
// metrics, and the websocket alert stream.
type Server struct {
	config     *Config
	logger     *logrus.Logger
	httpServer *http.Server
	mux        *http.ServeMux
	startTime  time.Time
	hub        *AlertHub
	checks     []HealthCheck
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	server := &Server{
		config:    config,
		logger:    logger,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	server.mux = mux

	// Wrap handlers with middleware that adds the Server header
	addServerHeader := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", version.ServerHeader())
			next(w, r)
		}
	}

	mux.HandleFunc("/health", addServerHeader(server.HealthHandler))
	mux.HandleFunc("/health/live", addServerHeader(server.LivenessHandler))
	mux.HandleFunc("/health/ready", addServerHeader(server.ReadinessHandler))
	mux.HandleFunc("/status", addServerHeader(server.statusHandler))

	if config.EnableMetrics {
		if registry := metrics.GetRegistry(); registry != nil {
			promHandler := promhttp.HandlerFor(
				registry,
				promhttp.HandlerOpts{
					EnableOpenMetrics: true,
					Registry:          registry,
				},
			)
			mux.HandleFunc(config.MetricsPath, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Server", version.ServerHeader())
				promHandler.ServeHTTP(w, r)
			})
			logger.Info("Prometheus metrics endpoint enabled at " + config.MetricsPath)
		}
	} else {
		logger.Info("Metrics endpoint disabled")
	}

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return server
}

// RegisterHandler adds a custom handler to the server
func (s *Server) RegisterHandler(path string, handler http.HandlerFunc) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", version.ServerHeader())
		handler(w, r)
	})
	s.logger.WithField("path", path).Debug("Registered HTTP handler")
}

// RegisterHealthCheck adds a readiness probe for one dependency.
func (s *Server) RegisterHealthCheck(name string, check func(ctx context.Context) error) {
	s.checks = append(s.checks, HealthCheck{Name: name, Check: check})
}

// SetAlertHub attaches the websocket alert hub and registers its endpoint.
func (s *Server) SetAlertHub(hub *AlertHub) {
	s.hub = hub
	s.mux.HandleFunc("/ws/alerts", hub.ServeWs)
	s.logger.Info("Alert stream endpoint registered at /ws/alerts")
}

// Start starts the HTTP server in a goroutine
func (s *Server) Start() {
	s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server failed")
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

// HealthHandler reports overall service health with per-component detail.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string, len(s.checks))
	healthy := true
	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			components[check.Name] = err.Error()
			healthy = false
		} else {
			components[check.Name] = "ok"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, map[string]interface{}{
		"status":     status,
		"version":    version.Version,
		"uptime":     time.Since(s.startTime).String(),
		"components": components,
	}, code)
}

// LivenessHandler answers liveness probes. It only proves the process is
// serving requests.
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]string{"status": "alive"}, http.StatusOK)
}

// ReadinessHandler answers readiness probes by running the registered
// dependency checks.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			s.logger.WithError(err).WithField("component", check.Name).Warn("Readiness check failed")
			writeJSONResponse(w, map[string]string{
				"status":    "not ready",
				"component": check.Name,
			}, http.StatusServiceUnavailable)
			return
		}
	}
	writeJSONResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// statusHandler handles the /status endpoint
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).String(),
		"version":    version.Version,
		"started_at": s.startTime.Format(time.RFC3339),
	}
	if s.hub != nil {
		status["websocket_clients"] = s.hub.ClientCount()
	}
	writeJSONResponse(w, status, http.StatusOK)
}

// writeJSONResponse writes a JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError maps a domain error onto an HTTP status and JSON body.
func writeError(w http.ResponseWriter, err error) {
	code := errors.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	response := map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	}
	if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
		logrus.WithError(encErr).Error("Failed to encode JSON error response")
	}
}
