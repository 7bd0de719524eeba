package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the HTTP and ledger Prometheus metrics.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	documentsPosted   *prometheus.CounterVec
	documentsCanceled *prometheus.CounterVec
	repostRuns        *prometheus.CounterVec
	repostEntries     *prometheus.CounterVec
}

// NewMetrics creates the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	posted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_documents_posted_total",
		Help: "Documents posted to the ledger by kind.",
	}, []string{"kind"})
	cancelled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_documents_cancelled_total",
		Help: "Documents reversed by STORNO by kind.",
	}, []string{"kind"})
	reposts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_reposts_total",
		Help: "Repost runs by outcome.",
	}, []string{"status"})
	repostEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_repost_entries_total",
		Help: "Journal entries deleted and recreated by reposting.",
	}, []string{"op"})
	registry.MustRegister(requests, duration, posted, cancelled, reposts, repostEntries)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		documentsPosted:   posted,
		documentsCanceled: cancelled,
		repostRuns:        reposts,
		repostEntries:     repostEntries,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// DocumentPosted counts a committed posting.
func (m *Metrics) DocumentPosted(kind string) {
	if m == nil {
		return
	}
	m.documentsPosted.WithLabelValues(kind).Inc()
}

// DocumentCancelled counts a committed reversal.
func (m *Metrics) DocumentCancelled(kind string) {
	if m == nil {
		return
	}
	m.documentsCanceled.WithLabelValues(kind).Inc()
}

// RepostCompleted counts a successful repost and the entries it touched.
func (m *Metrics) RepostCompleted(deleted, recreated int) {
	if m == nil {
		return
	}
	m.repostRuns.WithLabelValues("success").Inc()
	m.repostEntries.WithLabelValues("deleted").Add(float64(deleted))
	m.repostEntries.WithLabelValues("recreated").Add(float64(recreated))
}

// RepostFailed counts an aborted repost.
func (m *Metrics) RepostFailed() {
	if m == nil {
		return
	}
	m.repostRuns.WithLabelValues("failure").Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
