package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/tabwarden/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusUpdate(t *testing.T) {
	cfg := Config{Retries: 2}
	s := NewStatus()
	ok := Result{Healthy: true}
	bad := Result{Healthy: false, Message: "down"}

	s.Update(bad, cfg)
	assert.True(t, s.Healthy, "one failure is under the retry threshold")
	assert.Equal(t, 1, s.ConsecutiveFailures)

	s.Update(bad, cfg)
	assert.False(t, s.Healthy)

	s.Update(ok, cfg)
	assert.True(t, s.Healthy)
	assert.Equal(t, 0, s.ConsecutiveFailures)
	assert.Equal(t, 1, s.ConsecutiveSuccesses)
}

func TestStatusStartPeriod(t *testing.T) {
	cfg := Config{Retries: 1, StartPeriod: time.Hour}
	s := NewStatus()

	s.Update(Result{Healthy: false}, cfg)
	assert.True(t, s.Healthy, "failures inside the start period do not count")
	assert.Equal(t, 0, s.ConsecutiveFailures)
}

func TestFuncChecker(t *testing.T) {
	healthy := NewFuncChecker(func(context.Context) error { return nil })
	assert.True(t, healthy.Check(context.Background()).Healthy)
	assert.Equal(t, CheckTypeFunc, healthy.Type())

	failing := NewFuncChecker(func(context.Context) error { return errors.New("disk gone") })
	result := failing.Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Equal(t, "disk gone", result.Message)

	assert.NoError(t, Err(context.Background(), healthy))
	assert.EqualError(t, Err(context.Background(), failing), "disk gone")
}

func TestMonitor(t *testing.T) {
	var fail bool
	m := NewMonitor(Config{Interval: time.Hour, Retries: 2})
	m.Add("test-component", NewFuncChecker(func(context.Context) error {
		if fail {
			return errors.New("check failed")
		}
		return nil
	}))

	ctx := context.Background()

	m.CheckAll(ctx)
	status, ok := m.Status("test-component")
	require.True(t, ok)
	assert.True(t, status.Healthy)
	assert.Equal(t, "healthy", metrics.GetHealth().Components["test-component"])

	fail = true
	m.CheckAll(ctx)
	m.CheckAll(ctx)
	status, _ = m.Status("test-component")
	assert.False(t, status.Healthy)
	assert.Equal(t, "unhealthy: check failed", metrics.GetHealth().Components["test-component"])

	_, ok = m.Status("missing")
	assert.False(t, ok)
}

func TestMonitorRunStopsWithContext(t *testing.T) {
	calls := make(chan struct{}, 10)
	m := NewMonitor(Config{Interval: time.Hour})
	m.Add("runner", NewFuncChecker(func(context.Context) error {
		calls <- struct{}{}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("first check did not run")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
