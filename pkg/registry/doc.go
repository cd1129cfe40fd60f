/*
Package registry keeps one repeating reload timer per browser tab.

A Registry maps tab IDs to armed timers. Start arms (or re-arms) a tab, Stop
disarms it, and each firing looks the tab up, reloads it and records the reload
time. Every transition is mirrored to a storage.Store in a single batch: the
tab's TimerRecord plus its entry in the activeTimers list. That persisted
state is what the recovery engine reads after a restart.

# Architecture

	┌──────────────────────────────────────────────────────────┐
	│                        Registry                          │
	│                                                          │
	│   opMu ── Start / Stop / StopAll / deferred arms         │
	│   mu   ── entries (armed)    pending (ArmAfter)          │
	└──────┬───────────────────────┬───────────────────────────┘
	       │                       │
	       ▼                       ▼
	┌──────────────┐        ┌──────────────┐
	│  entry       │        │ pendingArm   │
	│  ticker      │        │ clock timer  │──► Start when due
	│  fireMu      │        └──────────────┘
	└──────┬───────┘
	       │ every interval
	       ▼
	  fire ──► browser.Driver (GetTab, Reload, Send)
	       │
	       ▼
	  storage.Store   events.Broker   metrics gauges

opMu serializes operations that change the timer set, so store writes land in
the same order as the in-memory transitions. mu only guards the two maps and
is never held across a browser or store call.

# Firing

	lookup (GetTab) ── error ──► detach, delete state
	   │
	reload ── error after ReloadRetries ──► detach, delete state
	   │
	startTime = now, persist, push timerHeartbeat

A tab that has disappeared is never retried. Each entry carries a fire
mutex, so firings of one tab never overlap and Stop does not return while a
firing of the timer it cancelled is still running.

A failed firing detaches its entry while it still holds the fire mutex and
removes the persisted state afterwards under opMu. If the tab was armed
again in between, by Start or a due deferred arm, the new timer and its
record are left alone.

# Deferred arms

ArmAfter schedules a Start to run later. Recovery uses it to keep a timer's
phase across a restart. A deferred arm is dropped if the tab is started or
stopped first.

# Side effects

Starting and stopping push updateTabTitle to the tab agent, publish
lifecycle events on the broker and update the tabwarden_timers_* gauges.
OnChange hooks run after every set change, outside registry locks.

# Usage

	reg := registry.New(store, driver, clock.New(), broker, registry.Config{
		ReloadRetries: 2,
		CallTimeout:   5 * time.Second,
	})
	defer reg.Close()

	reg.OnChange(func() { _ = ka.Manage(context.Background()) })

	if err := reg.Start(ctx, tabID, 30*time.Second); err != nil {
		return err
	}
	fmt.Println(reg.TimeRemaining(tabID))

Close disarms every timer in memory but keeps the persisted state, so the
next process can recover it.
*/
package registry
