// Package observability wires tracing and a metrics endpoint for the start
// daemon: an OpenTelemetry tracer provider with a stdout exporter, and an
// HTTP server exposing a Prometheus registry on /metrics.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds observability configuration.
type Config struct {
	// ServiceName identifies the service in trace resources
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// MetricsPort is the port for the Prometheus metrics endpoint.
	// Set to 0 to disable the metrics HTTP server.
	MetricsPort int

	// EnableTracing enables OpenTelemetry tracing with a stdout exporter
	EnableTracing bool
}

// Manager owns the tracer provider and the metrics HTTP server.
type Manager struct {
	config         *Config
	registry       *prometheus.Registry
	tracerProvider *sdktrace.TracerProvider
	metricsServer  *http.Server
	shutdownOnce   sync.Once
}

// NewManager creates a Manager serving the given Prometheus registry.
func NewManager(config *Config, registry *prometheus.Registry) *Manager {
	if config == nil {
		config = &Config{
			ServiceName:    "unknown",
			ServiceVersion: "0.0.0",
		}
	}

	return &Manager{
		config:   config,
		registry: registry,
	}
}

// Initialize sets up tracing and starts the metrics server.
func (m *Manager) Initialize(ctx context.Context) error {
	slog.Info("initializing observability",
		"service_name", m.config.ServiceName,
		"service_version", m.config.ServiceVersion,
		"metrics_port", m.config.MetricsPort,
		"enable_tracing", m.config.EnableTracing)

	if m.config.EnableTracing {
		if err := m.initializeTracing(ctx); err != nil {
			return fmt.Errorf("initialize tracing: %w", err)
		}
	}

	if m.config.MetricsPort > 0 {
		m.startMetricsServer()
		slog.Info("metrics server started",
			"endpoint", fmt.Sprintf("http://localhost:%d/metrics", m.config.MetricsPort))
	}

	return nil
}

// initializeTracing installs a global tracer provider with a stdout exporter.
func (m *Manager) initializeTracing(ctx context.Context) error {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(m.config.ServiceName),
			semconv.ServiceVersion(m.config.ServiceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("create stdout exporter: %w", err)
	}

	m.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(m.tracerProvider)

	return nil
}

// TracerProvider returns the installed tracer provider, or nil when tracing
// is disabled.
func (m *Manager) TracerProvider() trace.TracerProvider {
	if m.tracerProvider == nil {
		return nil
	}
	return m.tracerProvider
}

// startMetricsServer serves /metrics, /health, and /ready in the background.
func (m *Manager) startMetricsServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	if m.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	}

	m.metricsServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", m.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := m.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown stops the metrics server and flushes pending trace spans.
func (m *Manager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	m.shutdownOnce.Do(func() {
		slog.Info("shutting down observability components")

		if m.metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := m.metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("failed to shutdown metrics server", "error", err)
				shutdownErr = err
			}
		}

		if m.tracerProvider != nil {
			if err := m.tracerProvider.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer provider", "error", err)
				shutdownErr = err
			}
		}
	})

	return shutdownErr
}
