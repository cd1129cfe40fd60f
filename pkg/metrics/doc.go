/*
Package metrics exposes Prometheus collectors and component health for the
tabwarden daemon.

All collectors are registered on the default registry at init time and served
by Handler on /metrics.

# Metrics

Timers:
  - tabwarden_timers_active: live reload timers
  - tabwarden_timers_pending: recovered timers waiting for their deferred re-arm
  - tabwarden_reloads_total{trigger}: reloads by trigger (scheduled, catchup, sweep)
  - tabwarden_timer_stops_total{reason}: stops by reason (requested, tab_gone, reload_failed, persist_failed)
  - tabwarden_timer_fire_duration_seconds: lookup + reload + persist of one firing

Recovery:
  - tabwarden_recovery_duration_seconds
  - tabwarden_recovered_timers_total{outcome}: caught_up, deferred, purged, tab_gone, failed

Keep-alive:
  - tabwarden_keepalive_running
  - tabwarden_keepalive_ticks_total{kind}: process, tab, sweep
  - tabwarden_tab_heartbeats_total

API:
  - tabwarden_messages_total{action,status}
  - tabwarden_message_duration_seconds{action}

# Timing Operations

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FireDuration)

# Health

Components report their state with UpdateComponent. /health is unhealthy when
any component is; /ready additionally requires the store, browser and api
components to be registered and healthy.

	metrics.UpdateComponent(metrics.ComponentBrowser, false, err.Error())
*/
package metrics
