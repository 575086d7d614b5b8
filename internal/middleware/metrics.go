package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sparktutor_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"path", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sparktutor_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	// Classifier metrics
	classifierDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sparktutor_classifier_decisions_total",
		Help: "Total number of classifier decisions",
	}, []string{"decision"})

	zeroShotErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparktutor_classifier_zeroshot_errors_total",
		Help: "Total number of zero-shot backend failures (failed open)",
	})

	// Model routing metrics
	modelRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sparktutor_model_requests_total",
		Help: "Total number of model requests",
	}, []string{"model", "status"})

	modelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sparktutor_model_request_duration_seconds",
		Help:    "Duration of model requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model", "status"})

	modelFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparktutor_model_fallbacks_total",
		Help: "Total number of paid-to-reason tier fallbacks",
	})

	// Cache metrics
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparktutor_cache_hits_total",
		Help: "Total number of answer cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparktutor_cache_misses_total",
		Help: "Total number of answer cache misses",
	})

	// Extraction metrics
	extractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sparktutor_extractions_total",
		Help: "Total number of file text extractions",
	}, []string{"file_type", "status"})

	// Rate limit metrics
	rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparktutor_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(path, method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(path, method, fmt.Sprintf("%d", status)).Inc()
	httpRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordClassifierDecision records a classifier outcome
func (m *Metrics) RecordClassifierDecision(educational bool) {
	decision := "non_educational"
	if educational {
		decision = "educational"
	}
	classifierDecisions.WithLabelValues(decision).Inc()
}

// RecordZeroShotError records a zero-shot backend failure
func (m *Metrics) RecordZeroShotError() {
	zeroShotErrors.Inc()
}

// RecordModelRequest records a model request
func (m *Metrics) RecordModelRequest(model, status string, duration time.Duration) {
	modelRequestsTotal.WithLabelValues(model, status).Inc()
	modelRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordModelFallback records a paid-to-reason fallback
func (m *Metrics) RecordModelFallback() {
	modelFallbacks.Inc()
}

// RecordCacheHit records an answer cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records an answer cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordExtraction records a file extraction attempt
func (m *Metrics) RecordExtraction(fileType, status string) {
	extractionsTotal.WithLabelValues(fileType, status).Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event
func (m *Metrics) RecordRateLimitExceeded() {
	rateLimitExceeded.Inc()
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
