package jobmetrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, metrics.Track("mail:send").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("mail:send").End(boom), boom)
	_ = metrics.Track("mail:send").End(fmt.Errorf("bad payload: %w", asynq.SkipRetry))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("mail:send", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("mail:send", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("mail:send", OutcomeDropped)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.inflight.WithLabelValues("mail:send")))
}

func TestTrackInFlight(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	tracker := metrics.Track("mail:send")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.inflight.WithLabelValues("mail:send")))
	_ = tracker.End(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.inflight.WithLabelValues("mail:send")))
}

func TestNilMetricsPassErrorThrough(t *testing.T) {
	var metrics *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("noop").End(boom), boom)
}
