// Package metrics exposes Prometheus collectors for the HTTP surface and
// the ingestion pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gigboard/gigboard/internal/models"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and
// pipeline outcomes on a private registry.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	outcomeTotal    *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gigboard",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gigboard",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	// "skipped" and "failed" are separate label values on purpose: a source
	// that lists nothing new looks identical to a broken one otherwise.
	outcomeTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gigboard",
		Subsystem: "pipeline",
		Name:      "candidate_outcomes_total",
		Help:      "Terminal candidate outcomes per source and result.",
	}, []string{"source_id", "result"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gigboard",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Duration of per-source ingestion runs.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"source_id"})

	for _, c := range []prometheus.Collector{requestDuration, requestTotal, outcomeTotal, runDuration} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		outcomeTotal:    outcomeTotal,
		runDuration:     runDuration,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObserveOutcome implements ingestion.Observer.
func (c *Collector) ObserveOutcome(sourceID string, result models.OutcomeResult) {
	c.outcomeTotal.WithLabelValues(sourceID, string(result)).Inc()
}

// ObserveRun implements ingestion.Observer.
func (c *Collector) ObserveRun(sourceID string, duration time.Duration) {
	c.runDuration.WithLabelValues(sourceID).Observe(duration.Seconds())
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
