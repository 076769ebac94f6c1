package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("mail:welcome").End(nil))
	failure := errors.New("relay down")
	assert.Equal(t, failure, m.Track("mail:welcome").End(failure))
	m.Skip("mail:welcome")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:welcome", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:welcome", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("mail:welcome")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("mail:welcome")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	err := errors.New("boom")
	assert.Equal(t, err, m.Track("x").End(err))
	m.Skip("x")
}
