package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by operation",
		},
		[]string{"operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	JobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_submitted_total",
			Help: "Total number of grading jobs submitted",
		},
	)
	JobsProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of grading jobs currently processing",
		},
	)
	JobsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of grading jobs completed",
		},
	)
	JobsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of grading jobs failed",
		},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1200},
		},
		[]string{"stage"},
	)
	StageItemFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_item_failures_total",
			Help: "Per-item failures swallowed by a stage (isolated, non-fatal)",
		},
		[]string{"stage"},
	)

	// Full score distribution lives here even though the API payload only
	// breaks out the score=1 and score=2 buckets.
	ScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grading_score",
			Help:    "Distribution of final grades",
			Buckets: []float64{0, 1, 2},
		},
	)
	SimilarityHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grading_caption_similarity",
			Help:    "Distribution of transcription/caption cosine similarity",
			Buckets: []float64{-1, -0.5, 0, 0.25, 0.5, 0.75, 0.9, 1},
		},
	)
)

var initOnce sync.Once

// InitMetrics registers all Prometheus metrics once per process.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(AIRequestsTotal)
		prometheus.MustRegister(AIRequestDuration)
		prometheus.MustRegister(JobsSubmittedTotal)
		prometheus.MustRegister(JobsProcessing)
		prometheus.MustRegister(JobsCompletedTotal)
		prometheus.MustRegister(JobsFailedTotal)
		prometheus.MustRegister(StageDuration)
		prometheus.MustRegister(StageItemFailures)
		prometheus.MustRegister(ScoreHistogram)
		prometheus.MustRegister(SimilarityHistogram)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}
