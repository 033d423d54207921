// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	// OutcomeDropped marks runs that failed with asynq.SkipRetry and will not
	// be retried.
	OutcomeDropped = "dropped"
)

// Metrics holds the job collectors.
type Metrics struct {
	runs     *prometheus.CounterVec
	inflight *prometheus.GaugeVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers job collectors on registerer. A nil registerer selects
// the process-wide default registry, registered once.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = register(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecoguard",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Job runs by task type and outcome.",
		}, []string{"task", "outcome"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ecoguard",
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Job runs currently executing.",
		}, []string{"task"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ecoguard",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job run duration by task type.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"task"}),
	}
	registerer.MustRegister(m.runs, m.inflight, m.duration)
	return m
}

// Tracker measures a single run.
type Tracker struct {
	metrics *Metrics
	task    string
	start   time.Time
}

// Track starts measuring a run of task. Safe on a nil receiver.
func (m *Metrics) Track(task string) *Tracker {
	t := &Tracker{metrics: m, task: task, start: time.Now()}
	if m != nil {
		m.inflight.WithLabelValues(task).Inc()
	}
	return t
}

// End records the outcome of err and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	t.metrics.inflight.WithLabelValues(t.task).Dec()
	t.metrics.runs.WithLabelValues(t.task, Outcome(err)).Inc()
	t.metrics.duration.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	return err
}

// Outcome classifies a handler result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, asynq.SkipRetry):
		return OutcomeDropped
	default:
		return OutcomeFailure
	}
}
