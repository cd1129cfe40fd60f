package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/tabwarden/pkg/log"
	"github.com/cuemby/tabwarden/pkg/metrics"
)

// Monitor runs a set of named checkers on an interval and publishes their
// state as metrics health components
type Monitor struct {
	config Config

	mu       sync.Mutex
	checkers map[string]Checker
	statuses map[string]*Status
}

// NewMonitor creates an empty monitor
func NewMonitor(config Config) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Retries <= 0 {
		config.Retries = 1
	}
	return &Monitor{
		config:   config,
		checkers: make(map[string]Checker),
		statuses: make(map[string]*Status),
	}
}

// Add registers a checker under a component name
func (m *Monitor) Add(name string, c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
	m.statuses[name] = NewStatus()
}

// Run checks every component immediately and then on each interval until
// ctx is done
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.CheckAll(ctx)
	for {
		select {
		case <-ticker.C:
			m.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs every checker once
func (m *Monitor) CheckAll(ctx context.Context) {
	m.mu.Lock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	m.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		m.check(ctx, name)
	}
}

// Status returns a copy of the component's current status
func (m *Monitor) Status(name string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.statuses[name]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

func (m *Monitor) check(ctx context.Context, name string) {
	m.mu.Lock()
	checker := m.checkers[name]
	m.mu.Unlock()

	checkCtx := ctx
	cancel := func() {}
	if m.config.Timeout > 0 {
		checkCtx, cancel = context.WithTimeout(ctx, m.config.Timeout)
	}
	result := checker.Check(checkCtx)
	cancel()

	m.mu.Lock()
	status := m.statuses[name]
	wasHealthy := status.Healthy
	status.Update(result, m.config)
	healthy := status.Healthy
	m.mu.Unlock()

	metrics.UpdateComponent(name, healthy, result.Message)
	if wasHealthy != healthy {
		log.Logger.Warn().
			Str("component", name).
			Bool("healthy", healthy).
			Str("message", result.Message).
			Msg("Component health changed")
	}
}
