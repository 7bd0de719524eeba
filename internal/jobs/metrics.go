package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the worker's collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	integrity   *prometheus.CounterVec
	purged      prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the default
// registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = register(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing job. A nil *Metrics yields a tracker that records nothing.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	m := t.metrics
	m.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	if err != nil {
		m.runs.WithLabelValues(t.job, "failure").Inc()
		m.failures.WithLabelValues(t.job).Inc()
		return err
	}
	m.runs.WithLabelValues(t.job, "success").Inc()
	m.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	return nil
}

// AddIntegrityIssues counts ledger integrity findings per problem and company.
func (m *Metrics) AddIntegrityIssues(problem string, companyID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.integrity.WithLabelValues(problem, strconv.FormatInt(companyID, 10)).Add(float64(count))
}

// AddPurgedKeys counts idempotency keys removed by the cleanup job.
func (m *Metrics) AddPurgedKeys(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_jobs_total",
			Help: "Job runs by job and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_jobs_failures_total",
			Help: "Failed job runs by job.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_job_duration_seconds",
			Help:    "Job run duration in seconds.",
			Buckets: []float64{0.05, 0.25, 1, 5, 30, 120},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odyssey_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run by job.",
		}, []string{"job"}),
		integrity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_ledger_integrity_issues_total",
			Help: "Journal entries found empty or unbalanced by the integrity job.",
		}, []string{"problem", "company"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_idempotency_keys_purged_total",
			Help: "Idempotency keys removed after their retention.",
		}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.lastSuccess, m.integrity, m.purged)
	return m
}
