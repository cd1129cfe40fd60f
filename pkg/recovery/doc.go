/*
Package recovery restores reload timers after the daemon restarts.

Timers only live in memory, so a restart loses every armed timer. The store
still holds each tab's TimerRecord and the activeTimers list. RecoverTimers
walks that list once at startup and hands each tab back to the registry.

# Architecture

	┌────────────────────────────────────────────────────────┐
	│                    RecoverTimers                       │
	│          (once, before the API starts serving)         │
	└───────────────┬────────────────────────────────────────┘
	                │ store.ListActive
	                ▼
	┌────────────────────────────────────────────────────────┐
	│      errgroup, at most Config.Concurrency tabs         │
	└───┬────────────────┬────────────────┬──────────────────┘
	    │                │                │
	    ▼                ▼                ▼
	recoverTab       recoverTab       recoverTab
	    │
	    ├── store.GetTimer
	    ├── driver.GetTab (lookup)
	    └── Timers.Start / Timers.ArmAfter / Timers.Stop
	                │
	                ▼
	          Result per tab ──► Report

# Decisions

	record missing or inactive  ► purge the list entry
	tab gone                    ► stop (deletes state)
	elapsed >= interval         ► one catch-up reload, then Start
	elapsed <  interval         ► ArmAfter(interval - elapsed%interval)

Any number of missed periods collapses into a single catch-up reload:

	Started:  10:00:00   Interval: 30s
	Now:      10:02:10   (4 periods missed)
	Action:   reload once, Start(30s)

A tab still inside its period keeps its phase:

	Started:  10:00:00   Interval: 30s
	Now:      10:00:12
	Action:   ArmAfter(30s, delay 18s)

A failed catch-up reload stops the timer, so a broken tab does not come
back on every restart.

# Failure Handling

A failure for one tab never aborts the others. Each Result carries the
outcome and error for its tab, and Report.Err joins the per-tab errors.
RecoverTimers itself only fails when the active list cannot be read.

# Usage

	engine := recovery.NewEngine(store, driver, reg, clk, broker, recovery.Config{
		Concurrency: 4,
		CallTimeout: 5 * time.Second,
	})
	report, err := engine.RecoverTimers(ctx)
	if err != nil {
		return err
	}
	if err := report.Err(); err != nil {
		logger.Warn().Err(err).Msg("Some timers could not be recovered")
	}
*/
package recovery
