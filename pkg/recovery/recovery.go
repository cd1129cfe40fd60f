package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/tabwarden/pkg/browser"
	"github.com/cuemby/tabwarden/pkg/clock"
	"github.com/cuemby/tabwarden/pkg/events"
	"github.com/cuemby/tabwarden/pkg/log"
	"github.com/cuemby/tabwarden/pkg/metrics"
	"github.com/cuemby/tabwarden/pkg/storage"
	"github.com/cuemby/tabwarden/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many tabs are recovered at once
const DefaultConcurrency = 4

// Timers is the part of the registry recovery drives
type Timers interface {
	Start(ctx context.Context, id types.TabID, interval time.Duration) error
	Stop(ctx context.Context, id types.TabID) error
	ArmAfter(id types.TabID, interval, delay time.Duration)
}

// Config tunes a recovery run
type Config struct {
	Concurrency int
	CallTimeout time.Duration
}

// Engine restores persisted timers after a restart
type Engine struct {
	store  storage.Store
	driver browser.Driver
	timers Timers
	clock  clock.Clock
	broker *events.Broker
	cfg    Config
	logger zerolog.Logger
}

// Result is the outcome for one tab. Outcome is one of the metrics.Outcome*
// values.
type Result struct {
	TabID   types.TabID
	Outcome string
	Err     error
}

// Report summarizes a recovery run
type Report struct {
	Results []Result

	CaughtUp int
	Deferred int
	Purged   int
	TabGone  int
	Failed   int
}

// Recovered returns the number of tabs that have a timer again
func (r *Report) Recovered() int {
	return r.CaughtUp + r.Deferred
}

// Err joins the per-tab errors
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("tab %s: %w", res.TabID, res.Err))
		}
	}
	return errors.Join(errs...)
}

// NewEngine creates a recovery engine
func NewEngine(store storage.Store, driver browser.Driver, timers Timers, clk clock.Clock, broker *events.Broker, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Engine{
		store:  store,
		driver: driver,
		timers: timers,
		clock:  clk,
		broker: broker,
		cfg:    cfg,
		logger: log.WithComponent("recovery"),
	}
}

// RecoverTimers re-arms every timer listed in the store. A tab whose period
// elapsed while the process was down gets one catch-up reload and a fresh
// timer. A tab still inside its period is re-armed when the period ends, so
// its phase is kept. Failures are isolated per tab and reported, not
// returned; the error is only set when the active list cannot be read.
func (e *Engine) RecoverTimers(ctx context.Context) (*Report, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RecoveryDuration)

	ids, err := e.store.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list active timers: %w", err)
	}

	results := make([]Result, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = e.recoverTab(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Results: results}
	for _, res := range results {
		metrics.RecoveredTimersTotal.WithLabelValues(res.Outcome).Inc()
		switch res.Outcome {
		case metrics.OutcomeCaughtUp:
			report.CaughtUp++
		case metrics.OutcomeDeferred:
			report.Deferred++
		case metrics.OutcomePurged:
			report.Purged++
		case metrics.OutcomeTabGone:
			report.TabGone++
		default:
			report.Failed++
		}
	}

	e.logger.Info().
		Int("listed", len(ids)).
		Int("caught_up", report.CaughtUp).
		Int("deferred", report.Deferred).
		Int("purged", report.Purged).
		Int("tab_gone", report.TabGone).
		Int("failed", report.Failed).
		Dur("took", timer.Duration()).
		Msg("Timer recovery complete")

	return report, nil
}

func (e *Engine) recoverTab(ctx context.Context, id types.TabID) Result {
	logger := e.logger.With().Str("tab_id", id.String()).Logger()

	rec, err := e.store.GetTimer(id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Error().Err(err).Msg("Failed to read timer record")
		return Result{TabID: id, Outcome: metrics.OutcomeFailed, Err: err}
	}
	if !rec.Valid() {
		// The list and the record disagree; the record wins
		if err := e.store.DeleteTimer(id); err != nil {
			return Result{TabID: id, Outcome: metrics.OutcomeFailed, Err: err}
		}
		logger.Debug().Msg("Purged stale active timer entry")
		return Result{TabID: id, Outcome: metrics.OutcomePurged}
	}

	if err := e.lookupTab(ctx, id); err != nil {
		logger.Info().Err(err).Msg("Tab gone, dropping timer")
		if err := e.timers.Stop(ctx, id); err != nil {
			return Result{TabID: id, Outcome: metrics.OutcomeFailed, Err: err}
		}
		return Result{TabID: id, Outcome: metrics.OutcomeTabGone}
	}

	interval := types.NormalizeInterval(rec.Period())
	elapsed := e.clock.Now().Sub(rec.Started())
	if elapsed < 0 {
		elapsed = 0
	}

	if elapsed >= interval {
		missed := int64(elapsed / interval)
		if err := e.catchUp(ctx, id); err != nil {
			logger.Warn().Err(err).Msg("Catch-up reload failed, stopping timer")
			if stopErr := e.timers.Stop(ctx, id); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
			return Result{TabID: id, Outcome: metrics.OutcomeFailed, Err: err}
		}
		if err := e.timers.Start(ctx, id, interval); err != nil {
			return Result{TabID: id, Outcome: metrics.OutcomeFailed, Err: err}
		}

		logger.Info().Int64("missed", missed).Msg("Timer caught up")
		e.broker.Publish(&events.Event{
			Type:     events.EventTimerRecovered,
			TabID:    id.String(),
			Message:  "caught up with one reload",
			Metadata: map[string]string{"missed": fmt.Sprint(missed)},
		})
		return Result{TabID: id, Outcome: metrics.OutcomeCaughtUp}
	}

	delay := interval - elapsed%interval
	e.timers.ArmAfter(id, interval, delay)

	logger.Info().Dur("delay", delay).Msg("Timer re-arm deferred")
	e.broker.Publish(&events.Event{
		Type:     events.EventTimerDeferred,
		TabID:    id.String(),
		Message:  fmt.Sprintf("re-arming in %s", delay),
		Metadata: map[string]string{"delay_ms": fmt.Sprint(delay.Milliseconds())},
	})
	return Result{TabID: id, Outcome: metrics.OutcomeDeferred}
}

func (e *Engine) lookupTab(ctx context.Context, id types.TabID) error {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	_, err := e.driver.GetTab(ctx, id)
	return err
}

func (e *Engine) catchUp(ctx context.Context, id types.TabID) error {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	if err := e.driver.Reload(ctx, id); err != nil {
		return err
	}
	metrics.ReloadsTotal.WithLabelValues(metrics.TriggerCatchUp).Inc()
	return nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}
