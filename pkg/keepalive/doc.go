/*
Package keepalive stops the browser from suspending tabs that have active
reload timers.

# Architecture

The Controller runs up to three tickers on the injected clock:

	        registry.OnChange
	               │
	               ▼
	┌──────────────────────────────┐
	│           Manage             │
	│  active set empty?           │
	└──────┬───────────────┬───────┘
	    no │               │ yes
	       ▼               ▼
	 start tickers     stop tickers
	       │
	       ├── process (20s) ──► driver.Ping
	       └── tab     (30s) ──► driver.Nudge hidden, loaded tabs

	┌──────────────────────────────┐
	│     Start / Stop (sweep)     │
	└──────┬───────────────────────┘
	       └── sweep (2m) ──► reload discarded tabs
	                          stop timers whose tab closed

Manage is idempotent and is called after every change to the timer set. It
publishes keepalive.started and keepalive.stopped events and sets the
tabwarden_keepalive_running gauge. The discard sweep runs for the lifetime
of the daemon, independent of the active set.

# Heartbeats

Tab agents post tabKeepAlive while their timer is active. Heartbeat records
the time and LastHeartbeat reports it. The sweep forgets heartbeats of tabs
that left the active set.

# Usage

	ka := keepalive.New(store, driver, reg, clk, broker, keepalive.Config{
		CallTimeout: 5 * time.Second,
	})
	defer ka.Stop()

	reg.OnChange(func() { _ = ka.Manage(context.Background()) })
	if err := ka.Manage(ctx); err != nil {
		return err
	}
	ka.Start()

Zero intervals fall back to DefaultProcessInterval, DefaultTabInterval and
DefaultSweepInterval.
*/
package keepalive
