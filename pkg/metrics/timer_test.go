package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())
	assert.Less(t, time.Since(timer.start), time.Second)
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 50 * time.Millisecond
	time.Sleep(sleepDuration)

	first := timer.Duration()
	assert.GreaterOrEqual(t, first, sleepDuration)

	time.Sleep(10 * time.Millisecond)
	assert.Greater(t, timer.Duration(), first)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	NewTimer().ObserveDuration(histogram)

	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_vec_seconds",
			Help:    "Test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	NewTimer().ObserveDurationVec(histogramVec, "getReloadStatus")
	NewTimer().ObserveDurationVec(histogramVec, "startAutoReload")

	assert.Equal(t, 2, testutil.CollectAndCount(histogramVec))
}

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(ReloadsTotal.WithLabelValues(TriggerCatchUp))
	ReloadsTotal.WithLabelValues(TriggerCatchUp).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ReloadsTotal.WithLabelValues(TriggerCatchUp)))
}
