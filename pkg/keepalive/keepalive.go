package keepalive

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/tabwarden/pkg/browser"
	"github.com/cuemby/tabwarden/pkg/clock"
	"github.com/cuemby/tabwarden/pkg/events"
	"github.com/cuemby/tabwarden/pkg/log"
	"github.com/cuemby/tabwarden/pkg/metrics"
	"github.com/cuemby/tabwarden/pkg/storage"
	"github.com/cuemby/tabwarden/pkg/types"
	"github.com/rs/zerolog"
)

// Default periods
const (
	DefaultProcessInterval = 20 * time.Second
	DefaultTabInterval     = 30 * time.Second
	DefaultSweepInterval   = 2 * time.Minute
)

// Timers is the part of the registry the discard sweep needs
type Timers interface {
	IsActive(id types.TabID) bool
	Stop(ctx context.Context, id types.TabID) error
}

// Config holds the keep-alive periods. Zero values use the defaults.
type Config struct {
	ProcessInterval time.Duration
	TabInterval     time.Duration
	SweepInterval   time.Duration
	CallTimeout     time.Duration
}

// Controller keeps the browser and hidden tabs from being suspended while
// any timer is active
type Controller struct {
	store  storage.Store
	driver browser.Driver
	timers Timers
	clock  clock.Clock
	broker *events.Broker
	cfg    Config
	logger zerolog.Logger

	mu         sync.Mutex
	process    *clock.Ticker
	tabs       *clock.Ticker
	sweep      *clock.Ticker
	heartbeats map[types.TabID]time.Time
}

// New creates a controller. Nothing runs until Manage or Start is called.
func New(store storage.Store, driver browser.Driver, timers Timers, clk clock.Clock, broker *events.Broker, cfg Config) *Controller {
	if cfg.ProcessInterval <= 0 {
		cfg.ProcessInterval = DefaultProcessInterval
	}
	if cfg.TabInterval <= 0 {
		cfg.TabInterval = DefaultTabInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Controller{
		store:      store,
		driver:     driver,
		timers:     timers,
		clock:      clk,
		broker:     broker,
		cfg:        cfg,
		logger:     log.WithComponent("keepalive"),
		heartbeats: make(map[types.TabID]time.Time),
	}
}

// Manage starts the keep-alive tickers when the active timer set is
// non-empty and stops them when it is empty. It is safe to call after every
// set change.
func (c *Controller) Manage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ids, err := c.store.ListActive()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	running := c.process != nil
	switch {
	case len(ids) > 0 && !running:
		c.process = clock.NewTicker(c.clock, c.cfg.ProcessInterval, c.pingProcess)
		c.tabs = clock.NewTicker(c.clock, c.cfg.TabInterval, c.nudgeTabs)
		metrics.KeepAliveRunning.Set(1)
		c.logger.Info().Int("timers", len(ids)).Msg("Keep-alive started")
		c.broker.Publish(&events.Event{Type: events.EventKeepAliveOn})
	case len(ids) == 0 && running:
		c.stopKeepAliveLocked()
		c.logger.Info().Msg("Keep-alive stopped")
		c.broker.Publish(&events.Event{Type: events.EventKeepAliveOff})
	}
	return nil
}

// Running reports whether the keep-alive tickers are running
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.process != nil
}

// Start runs the discard sweep until Stop
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sweep == nil {
		c.sweep = clock.NewTicker(c.clock, c.cfg.SweepInterval, c.sweepDiscarded)
	}
}

// Stop halts the discard sweep and the keep-alive tickers
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sweep != nil {
		c.sweep.Stop()
		c.sweep = nil
	}
	if c.process != nil {
		c.stopKeepAliveLocked()
	}
}

// Heartbeat records a keep-alive ping sent by the tab's agent
func (c *Controller) Heartbeat(id types.TabID) {
	c.mu.Lock()
	c.heartbeats[id] = c.clock.Now()
	c.mu.Unlock()

	metrics.TabHeartbeatsTotal.Inc()
	c.logger.Debug().Str("tab_id", id.String()).Msg("Tab heartbeat")
}

// LastHeartbeat returns when the tab last sent a heartbeat
func (c *Controller) LastHeartbeat(id types.TabID) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.heartbeats[id]
	return at, ok
}

func (c *Controller) stopKeepAliveLocked() {
	c.process.Stop()
	c.tabs.Stop()
	c.process, c.tabs = nil, nil
	metrics.KeepAliveRunning.Set(0)
}

// pingProcess keeps the browser process from idling out
func (c *Controller) pingProcess() {
	metrics.KeepAliveTicksTotal.WithLabelValues(metrics.KeepAliveProcess).Inc()

	ctx, cancel := c.callContext()
	defer cancel()

	if err := c.driver.Ping(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("Process keep-alive ping failed")
	}
}

// nudgeTabs touches every hidden, loaded tab in the active set
func (c *Controller) nudgeTabs() {
	metrics.KeepAliveTicksTotal.WithLabelValues(metrics.KeepAliveTab).Inc()

	ids, err := c.store.ListActive()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to list active timers")
		return
	}

	for _, id := range ids {
		ctx, cancel := c.callContext()
		tab, err := c.driver.GetTab(ctx, id)
		if err == nil && tab.Hidden && !tab.Discarded {
			err = c.driver.Nudge(ctx, id)
		}
		cancel()

		if err != nil {
			c.logger.Debug().Err(err).Str("tab_id", id.String()).Msg("Tab keep-alive failed")
		}
	}
}

// sweepDiscarded reloads active tabs the browser discarded and stops timers
// whose tab is gone
func (c *Controller) sweepDiscarded() {
	metrics.KeepAliveTicksTotal.WithLabelValues(metrics.KeepAliveSweep).Inc()

	ids, err := c.store.ListActive()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to list active timers")
		return
	}

	live := make(map[types.TabID]struct{}, len(ids))
	for _, id := range ids {
		live[id] = struct{}{}
		if !c.timers.IsActive(id) {
			continue
		}
		c.sweepTab(id)
	}

	c.mu.Lock()
	for id := range c.heartbeats {
		if _, ok := live[id]; !ok {
			delete(c.heartbeats, id)
		}
	}
	c.mu.Unlock()
}

func (c *Controller) sweepTab(id types.TabID) {
	ctx, cancel := c.callContext()
	defer cancel()

	logger := c.logger.With().Str("tab_id", id.String()).Logger()

	tab, err := c.driver.GetTab(ctx, id)
	if err != nil {
		logger.Info().Err(err).Msg("Tab gone, stopping timer")
		if err := c.timers.Stop(ctx, id); err != nil {
			logger.Error().Err(err).Msg("Failed to stop timer")
		}
		return
	}
	if !tab.Discarded {
		return
	}

	if err := c.driver.Reload(ctx, id); err != nil {
		logger.Warn().Err(err).Msg("Failed to reload discarded tab")
		return
	}
	metrics.ReloadsTotal.WithLabelValues(metrics.TriggerSweep).Inc()
	logger.Info().Msg("Reloaded discarded tab")
}

func (c *Controller) callContext() (context.Context, context.CancelFunc) {
	if c.cfg.CallTimeout > 0 {
		return context.WithTimeout(context.Background(), c.cfg.CallTimeout)
	}
	return context.WithCancel(context.Background())
}
