package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

// Config tunes platform calls made by the registry
type Config struct {
	// ReloadRetries is the number of extra reload attempts before a
	// failing tab is stopped. Zero makes the first failure terminal.
	ReloadRetries int

	// CallTimeout bounds every browser call. Zero means no bound.
	CallTimeout time.Duration
}

// Registry owns the set of armed reload timers, one per tab, and keeps the
// store in step with it
type Registry struct {
	store  storage.Store
	driver browser.Driver
	clock  clock.Clock
	broker *events.Broker
	cfg    Config
	logger zerolog.Logger

	// opMu serializes Start, Stop and deferred arms so store writes land
	// in the same order as the in-memory transitions
	opMu sync.Mutex

	mu       sync.Mutex
	entries  map[types.TabID]*entry
	pending  map[types.TabID]*pendingArm
	onChange func()
}

// entry is one armed timer. startTime is guarded by Registry.mu; fireMu is
// held for the whole of a firing.
type entry struct {
	interval  time.Duration
	startTime time.Time
	ticker    *clock.Ticker
	fireMu    sync.Mutex
}

// pendingArm is a deferred Start scheduled by ArmAfter
type pendingArm struct {
	interval time.Duration
	due      time.Time
	timer    clock.Timer
}

// Status is a read-only view of one tab's timer
type Status struct {
	TabID     types.TabID
	Active    bool
	Pending   bool
	Interval  time.Duration
	Remaining time.Duration
}

// New creates an empty registry. broker may be nil.
func New(store storage.Store, driver browser.Driver, clk clock.Clock, broker *events.Broker, cfg Config) *Registry {
	if cfg.ReloadRetries < 0 {
		cfg.ReloadRetries = 0
	}
	return &Registry{
		store:   store,
		driver:  driver,
		clock:   clk,
		broker:  broker,
		cfg:     cfg,
		logger:  log.WithComponent("registry"),
		entries: make(map[types.TabID]*entry),
		pending: make(map[types.TabID]*pendingArm),
	}
}

// OnChange registers fn to run after every change to the active timer set.
// fn runs without any registry lock held.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Start arms a repeating reload for the tab, replacing any existing timer or
// deferred arm. The record is persisted before Start returns.
func (r *Registry) Start(ctx context.Context, id types.TabID, interval time.Duration) error {
	if id == "" {
		return errors.New("tab id is required")
	}

	r.opMu.Lock()
	err := r.startLocked(ctx, id, interval)
	r.opMu.Unlock()

	r.changed()
	return err
}

// startLocked runs with opMu held
func (r *Registry) startLocked(ctx context.Context, id types.TabID, interval time.Duration) error {
	interval = types.NormalizeInterval(interval)
	now := r.clock.Now()
	e := &entry{interval: interval, startTime: now}

	r.mu.Lock()
	old := r.detachLocked(id)
	r.entries[id] = e
	e.ticker = clock.NewTicker(r.clock, interval, func() { r.fire(id, e) })
	r.updateGaugesLocked()
	r.mu.Unlock()

	if old != nil {
		old.fireMu.Lock()
		old.fireMu.Unlock()
	}

	if err := r.store.SaveTimer(types.NewTimerRecord(id, interval, now)); err != nil {
		r.mu.Lock()
		if r.entries[id] == e {
			delete(r.entries, id)
			e.ticker.Stop()
			r.updateGaugesLocked()
		}
		r.mu.Unlock()

		metrics.TimerStopsTotal.WithLabelValues(metrics.StopReasonPersist).Inc()
		return fmt.Errorf("failed to persist timer for tab %s: %w", id, err)
	}

	r.bestEffort(ctx, id, "updateTabTitle", func(ctx context.Context) error {
		_, err := r.driver.Send(ctx, id, browser.TitleMessage(true))
		return err
	})

	r.logger.Info().
		Str("tab_id", id.String()).
		Dur("interval", interval).
		Msg("Timer started")
	r.broker.Publish(&events.Event{
		Type:     events.EventTimerStarted,
		TabID:    id.String(),
		Message:  fmt.Sprintf("reloading every %s", interval),
		Metadata: map[string]string{"interval_ms": fmt.Sprint(interval.Milliseconds())},
	})
	return nil
}

// Stop cancels the tab's timer and any deferred arm, then removes its
// persisted state. No firing is in progress once Stop returns. Stopping an
// inactive tab is not an error.
func (r *Registry) Stop(ctx context.Context, id types.TabID) error {
	r.opMu.Lock()
	err := r.stopLocked(ctx, id, metrics.StopReasonRequested)
	r.opMu.Unlock()

	r.changed()
	return err
}

// stopLocked runs with opMu held
func (r *Registry) stopLocked(ctx context.Context, id types.TabID, reason string) error {
	r.mu.Lock()
	e := r.detachLocked(id)
	r.updateGaugesLocked()
	r.mu.Unlock()

	if e != nil {
		e.fireMu.Lock()
		e.fireMu.Unlock()
	}

	if err := r.store.DeleteTimer(id); err != nil {
		return fmt.Errorf("failed to delete timer for tab %s: %w", id, err)
	}

	if e != nil {
		r.bestEffort(ctx, id, "updateTabTitle", func(ctx context.Context) error {
			_, err := r.driver.Send(ctx, id, browser.TitleMessage(false))
			return err
		})
		r.stopped(id, reason)
	}
	return nil
}

// StopAll stops every armed or pending timer and clears any state left in
// the store. Errors for individual tabs are joined.
func (r *Registry) StopAll(ctx context.Context) error {
	r.opMu.Lock()

	ids := make(map[types.TabID]struct{})
	r.mu.Lock()
	for id := range r.entries {
		ids[id] = struct{}{}
	}
	for id := range r.pending {
		ids[id] = struct{}{}
	}
	r.mu.Unlock()

	var errs []error
	stored, err := r.store.ListActive()
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list active timers: %w", err))
	}
	for _, id := range stored {
		ids[id] = struct{}{}
	}

	for _, id := range sortedIDs(ids) {
		if err := r.stopLocked(ctx, id, metrics.StopReasonRequested); err != nil {
			errs = append(errs, err)
		}
	}
	r.opMu.Unlock()

	r.changed()
	return errors.Join(errs...)
}

// SetInterval restarts an active timer with a new period. It reports false
// and does nothing when the tab has no timer.
func (r *Registry) SetInterval(ctx context.Context, id types.TabID, interval time.Duration) (bool, error) {
	r.opMu.Lock()
	if !r.IsActive(id) && !r.Pending(id) {
		r.opMu.Unlock()
		return false, nil
	}
	err := r.startLocked(ctx, id, interval)
	r.opMu.Unlock()

	r.changed()
	return err == nil, err
}

// ArmAfter schedules Start(id, interval) to run after delay. The arm is
// dropped if the tab is started or stopped before it runs. A tab that
// already has a live timer is left alone.
func (r *Registry) ArmAfter(id types.TabID, interval, delay time.Duration) {
	interval = types.NormalizeInterval(interval)
	if delay < 0 {
		delay = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; ok {
		return
	}
	if prev, ok := r.pending[id]; ok {
		prev.timer.Stop()
	}

	p := &pendingArm{interval: interval, due: r.clock.Now().Add(delay)}
	r.pending[id] = p
	p.timer = r.clock.AfterFunc(delay, func() { r.arm(id, p) })
	r.updateGaugesLocked()

	r.logger.Debug().
		Str("tab_id", id.String()).
		Dur("delay", delay).
		Msg("Deferred timer arm scheduled")
}

// arm runs a deferred Start if it is still the tab's current pending arm
func (r *Registry) arm(id types.TabID, p *pendingArm) {
	r.opMu.Lock()

	r.mu.Lock()
	current := r.pending[id] == p
	if current {
		delete(r.pending, id)
		r.updateGaugesLocked()
	}
	r.mu.Unlock()

	if !current {
		r.opMu.Unlock()
		return
	}

	ctx, cancel := r.callContext(context.Background())
	err := r.startLocked(ctx, id, p.interval)
	cancel()
	r.opMu.Unlock()

	if err != nil {
		r.logger.Error().Err(err).Str("tab_id", id.String()).Msg("Deferred timer arm failed")
	}
	r.changed()
}

// Close disarms every timer and deferred arm without touching the store,
// so the persisted state is left for recovery on the next start. It waits
// for in-flight firings.
func (r *Registry) Close() {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	ids := make(map[types.TabID]struct{}, len(r.entries)+len(r.pending))
	for id := range r.entries {
		ids[id] = struct{}{}
	}
	for id := range r.pending {
		ids[id] = struct{}{}
	}
	var detached []*entry
	for id := range ids {
		if e := r.detachLocked(id); e != nil {
			detached = append(detached, e)
		}
	}
	r.updateGaugesLocked()
	r.mu.Unlock()

	for _, e := range detached {
		e.fireMu.Lock()
		e.fireMu.Unlock()
	}
	r.logger.Info().Int("timers", len(detached)).Msg("Timers disarmed")
}

// IsActive reports whether the tab has a live timer
func (r *Registry) IsActive(id types.TabID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Pending reports whether the tab has a deferred arm waiting to run
func (r *Registry) Pending(id types.TabID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[id]
	return ok
}

// Interval returns the tab's reload period, or the default when the tab has
// no timer
func (r *Registry) Interval(id types.TabID) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		return e.interval
	}
	if p, ok := r.pending[id]; ok {
		return p.interval
	}
	return types.DefaultInterval
}

// TimeRemaining returns the time until the tab's next reload, or zero when
// the tab has no live timer
func (r *Registry) TimeRemaining(id types.TabID) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return 0
	}
	return r.remainingLocked(e)
}

// Status returns a snapshot of the tab's timer. A pending tab reports the
// time until its first reload after the deferred arm.
func (r *Registry) Status(id types.TabID) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked(id)
}

// Active returns the tabs with a live timer, sorted
func (r *Registry) Active() []types.TabID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make(map[types.TabID]struct{}, len(r.entries))
	for id := range r.entries {
		ids[id] = struct{}{}
	}
	return sortedIDs(ids)
}

// Timers returns the status of every live or pending timer, sorted by tab
func (r *Registry) Timers() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make(map[types.TabID]struct{}, len(r.entries)+len(r.pending))
	for id := range r.entries {
		ids[id] = struct{}{}
	}
	for id := range r.pending {
		ids[id] = struct{}{}
	}

	statuses := make([]Status, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		statuses = append(statuses, r.statusLocked(id))
	}
	return statuses
}

func (r *Registry) statusLocked(id types.TabID) Status {
	if e, ok := r.entries[id]; ok {
		return Status{
			TabID:     id,
			Active:    true,
			Interval:  e.interval,
			Remaining: r.remainingLocked(e),
		}
	}
	if p, ok := r.pending[id]; ok {
		wait := p.due.Sub(r.clock.Now())
		if wait < 0 {
			wait = 0
		}
		return Status{
			TabID:     id,
			Pending:   true,
			Interval:  p.interval,
			Remaining: wait + p.interval,
		}
	}
	return Status{TabID: id, Interval: types.DefaultInterval}
}

func (r *Registry) remainingLocked(e *entry) time.Duration {
	elapsed := r.clock.Now().Sub(e.startTime)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := e.interval - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// fire performs one scheduled reload. A failed firing detaches the timer
// while holding fireMu and tears down its state after releasing it.
func (r *Registry) fire(id types.TabID, e *entry) {
	if reason, failed := r.fireOnce(id, e); failed {
		r.teardown(id, reason)
	}
}

// fireOnce runs the reload under fireMu. It reports the stop reason when the
// timer was detached.
func (r *Registry) fireOnce(id types.TabID, e *entry) (string, bool) {
	e.fireMu.Lock()
	defer e.fireMu.Unlock()

	if !r.isCurrent(id, e) {
		return "", false
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FireDuration)

	ctx, cancel := r.callContext(context.Background())
	defer cancel()

	if _, err := r.lookupTab(ctx, id); err != nil {
		r.logger.Info().Err(err).Str("tab_id", id.String()).Msg("Tab gone, stopping timer")
		return metrics.StopReasonTabGone, r.detachFromFire(id, e)
	}

	if err := r.reload(ctx, id); err != nil {
		reason := metrics.StopReasonReloadFailed
		if isGone(err) {
			reason = metrics.StopReasonTabGone
		}
		r.logger.Warn().Err(err).Str("tab_id", id.String()).Msg("Reload failed, stopping timer")
		return reason, r.detachFromFire(id, e)
	}

	now := r.clock.Now()
	r.mu.Lock()
	if r.entries[id] != e {
		r.mu.Unlock()
		return "", false
	}
	e.startTime = now
	r.mu.Unlock()

	rec := types.NewTimerRecord(id, e.interval, now)
	rec.LastReload = now.UnixMilli()
	if err := r.store.UpdateTimer(rec); err != nil {
		r.logger.Error().Err(err).Str("tab_id", id.String()).Msg("Failed to persist reload time")
	}

	metrics.ReloadsTotal.WithLabelValues(metrics.TriggerScheduled).Inc()

	r.bestEffort(ctx, id, "timerHeartbeat", func(ctx context.Context) error {
		_, err := r.driver.Send(ctx, id, browser.HeartbeatMessage(now.UnixMilli()))
		return err
	})

	r.logger.Debug().Str("tab_id", id.String()).Msg("Tab reloaded")
	r.broker.Publish(&events.Event{
		Type:      events.EventTimerFired,
		Timestamp: now,
		TabID:     id.String(),
		Message:   "tab reloaded",
	})
	return "", false
}

// detachFromFire removes the firing timer from the registry. It must not
// wait on e.fireMu.
func (r *Registry) detachFromFire(id types.TabID, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[id] != e {
		return false
	}
	delete(r.entries, id)
	e.ticker.Stop()
	r.updateGaugesLocked()
	return true
}

// teardown removes the persisted state of a timer detached by a failed
// firing. It runs under opMu without fireMu held, and keeps the state when
// the tab was armed again after the detach.
func (r *Registry) teardown(id types.TabID, reason string) {
	r.opMu.Lock()

	r.mu.Lock()
	_, armed := r.entries[id]
	_, pending := r.pending[id]
	r.mu.Unlock()

	if armed || pending {
		r.opMu.Unlock()
		r.logger.Debug().Str("tab_id", id.String()).Msg("Tab armed again, keeping timer state")
		return
	}

	if err := r.store.DeleteTimer(id); err != nil {
		r.logger.Error().Err(err).Str("tab_id", id.String()).Msg("Failed to delete timer state")
	}
	r.opMu.Unlock()

	r.stopped(id, reason)
	r.changed()
}

func (r *Registry) stopped(id types.TabID, reason string) {
	metrics.TimerStopsTotal.WithLabelValues(reason).Inc()
	r.logger.Info().
		Str("tab_id", id.String()).
		Str("reason", reason).
		Msg("Timer stopped")
	r.broker.Publish(&events.Event{
		Type:     events.EventTimerStopped,
		TabID:    id.String(),
		Metadata: map[string]string{"reason": reason},
	})
}

// detachLocked removes the tab's entry and pending arm and cancels both.
// It returns the removed entry, if any.
func (r *Registry) detachLocked(id types.TabID) *entry {
	if p, ok := r.pending[id]; ok {
		p.timer.Stop()
		delete(r.pending, id)
	}
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	delete(r.entries, id)
	e.ticker.Stop()
	return e
}

func (r *Registry) isCurrent(id types.TabID, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id] == e
}

func (r *Registry) updateGaugesLocked() {
	metrics.TimersActive.Set(float64(len(r.entries)))
	metrics.TimersPending.Set(float64(len(r.pending)))
}

func (r *Registry) changed() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func sortedIDs(set map[types.TabID]struct{}) []types.TabID {
	ids := make([]types.TabID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
