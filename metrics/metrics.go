// Package metrics exposes Prometheus collectors for registry operations and
// HTTP traffic, and a standalone server that serves them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruteri/utility-registry/interfaces"
)

var (
	// Registry holds the collectors of this process.
	Registry = prometheus.NewRegistry()

	registryOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "utility_registry",
			Subsystem: "registry",
			Name:      "operations_total",
			Help:      "Total number of mutating registry operations by result.",
		},
		[]string{"op", "result"},
	)

	totalSupply = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "utility_registry",
			Subsystem: "registry",
			Name:      "total_supply",
			Help:      "Number of minted tokens.",
		},
	)

	checkpoints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "utility_registry",
			Subsystem: "storage",
			Name:      "checkpoints_total",
			Help:      "Checkpoint writes by backend and result.",
		},
		[]string{"backend", "result"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "utility_registry",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "utility_registry",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "utility_registry",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		registryOperations,
		totalSupply,
		checkpoints,
		httpInFlight,
		httpRequests,
		httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// RecordOperation counts a mutating registry operation. Rejections are
// labelled with the failure reason.
func RecordOperation(op string, err error) {
	registryOperations.WithLabelValues(op, Result(err)).Inc()
}

// SetTotalSupply reports the current number of minted tokens.
func SetTotalSupply(n int) {
	totalSupply.Set(float64(n))
}

// RecordCheckpoint counts a checkpoint write to one backend.
func RecordCheckpoint(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	checkpoints.WithLabelValues(backend, result).Inc()
}

var reasons = []struct {
	err   error
	label string
}{
	{interfaces.ErrNotAuthorized, "not_authorized"},
	{interfaces.ErrAlreadyMinted, "already_minted"},
	{interfaces.ErrUnknownToken, "unknown_token"},
	{interfaces.ErrSupplyExceeded, "supply_exceeded"},
	{interfaces.ErrCapReduced, "cap_reduced"},
	{interfaces.ErrNotHolder, "not_holder"},
	{interfaces.ErrInvalidAccount, "invalid_account"},
	{interfaces.ErrInvalidApproval, "invalid_approval"},
}

// Result turns an operation error into a low-cardinality metric label.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "error"
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// InstrumentHandler wraps next with HTTP metrics collection. Requests are
// labelled with their chi route pattern to keep token ids out of the labels.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// MetricsServer serves /metrics on its own listen address.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the named service. An empty addr yields
// a server that is never started.
func New(name, addr string) (*MetricsServer, error) {
	if name == "" {
		return nil, errors.New("metrics server needs a service name")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
