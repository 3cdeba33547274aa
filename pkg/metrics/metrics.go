// Package metrics provides Prometheus collectors for the HTTP API, background
// jobs and the assistant's memory and prompt pipeline.
package metrics

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

const subsystem = "friday"

// Job metric counter indices.
const (
	JobMetricTotal = iota
	JobMetricTotalSuccess
	JobMetricTotalFailed
	JobMetricTotalKilled
)

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration prometheus.Histogram

	JobMetricCounters map[int]prometheus.Counter
	JobsDropped       prometheus.Counter

	StoreOperations *prometheus.CounterVec
	PromptTokens    prometheus.Histogram
	LLMRequests     *prometheus.CounterVec

	log logger.Logger
}

// NewMetrics creates a Metrics instance. HTTP and job collectors are optional;
// the store, prompt and LLM collectors are always registered.
func NewMetrics(httpCounters, jobMetrics bool, l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}

	if httpCounters {
		m.HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "http_responses_total",
			Help:      "HTTP responses by status code",
		}, []string{"code"})
		m.HTTPDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1.0, 3.0, 5.0, 10.0, 30.0},
		})
		m.reg.MustRegister(m.HTTPRequests, m.HTTPDuration)
	}

	if jobMetrics {
		m.JobMetricCounters = newJobCounters()
		for _, c := range m.JobMetricCounters {
			m.reg.MustRegister(c)
		}
		m.JobsDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "jobs_dropped_total",
			Help:      "Background jobs dropped because the queue was full",
		})
		m.reg.MustRegister(m.JobsDropped)
	}

	m.StoreOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "store_operations_total",
		Help:      "Memory store operations by name and outcome",
	}, []string{"operation", "outcome"})
	m.PromptTokens = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "prompt_estimated_tokens",
		Help:      "Estimated token size of assembled system prompts",
		Buckets:   prometheus.ExponentialBuckets(128, 2, 8),
	})
	m.LLMRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "llm_requests_total",
		Help:      "LLM provider calls by provider and outcome",
	}, []string{"provider", "outcome"})
	m.reg.MustRegister(m.StoreOperations, m.PromptTokens, m.LLMRequests)

	return m
}

func newJobCounters() map[int]prometheus.Counter {
	spec := map[int][2]string{
		JobMetricTotal:        {"jobs_handled_total", "Total background jobs handled"},
		JobMetricTotalSuccess: {"jobs_successful_total", "Background jobs that completed without error"},
		JobMetricTotalFailed:  {"jobs_failed_total", "Background jobs that returned an error"},
		JobMetricTotalKilled:  {"jobs_killed_total", "Background jobs abandoned at shutdown"},
	}
	out := make(map[int]prometheus.Counter, len(spec))
	for idx, s := range spec {
		out[idx] = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      s[0],
			Help:      s[1],
		})
	}
	return out
}

// AddCustomMetric registers a custom Prometheus collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.reg.MustRegister(c)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen serves the registry at path on addr until ctx is cancelled. The
// returned channel yields the server's terminal error.
func (m *Metrics) Listen(ctx context.Context, addr, path string) <-chan error {
	m.log.Info("Starting metrics listener", logger.StringField("addr", addr), logger.StringField("path", path))

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.Handle("/", http.NotFoundHandler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	go func() {
		<-ctx.Done()
		m.log.Info("Stopping metrics listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return errCh
}

// IncJob bumps one of the job counters; a no-op when job metrics are disabled.
func (m *Metrics) IncJob(idx int) {
	if m == nil || m.JobMetricCounters == nil {
		return
	}
	if c, ok := m.JobMetricCounters[idx]; ok {
		c.Inc()
	}
}

// IncJobsDropped records a job rejected by a full queue.
func (m *Metrics) IncJobsDropped() {
	if m == nil || m.JobsDropped == nil {
		return
	}
	m.JobsDropped.Inc()
}

// ObserveStoreOp records the outcome of a store operation.
func (m *Metrics) ObserveStoreOp(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StoreOperations.WithLabelValues(op, outcome).Inc()
}

// ObservePromptTokens records the estimated size of an assembled prompt.
func (m *Metrics) ObservePromptTokens(tokens int) {
	if m == nil {
		return
	}
	m.PromptTokens.Observe(float64(tokens))
}

// ObserveLLMRequest records an LLM call outcome (ok, rate_limit, auth, network, other).
func (m *Metrics) ObserveLLMRequest(provider, outcome string) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(provider, outcome).Inc()
}

// HTTPMiddleware returns a chi-compatible middleware that tracks HTTP metrics.
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.HTTPRequests == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			m.HTTPDuration.Observe(time.Since(start).Seconds())
			m.HTTPRequests.WithLabelValues(strconv.Itoa(rw.statusCode)).Inc()
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
