package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values shared by callers
const (
	TriggerScheduled = "scheduled"
	TriggerCatchUp   = "catchup"
	TriggerSweep     = "sweep"

	StopReasonRequested    = "requested"
	StopReasonTabGone      = "tab_gone"
	StopReasonReloadFailed = "reload_failed"
	StopReasonPersist      = "persist_failed"

	OutcomeCaughtUp = "caught_up"
	OutcomeDeferred = "deferred"
	OutcomePurged   = "purged"
	OutcomeTabGone  = "tab_gone"
	OutcomeFailed   = "failed"

	KeepAliveProcess = "process"
	KeepAliveTab     = "tab"
	KeepAliveSweep   = "sweep"
)

var (
	// Timer metrics
	TimersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabwarden_timers_active",
			Help: "Number of tabs with a live reload timer",
		},
	)

	TimersPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabwarden_timers_pending",
			Help: "Number of recovered timers waiting for their deferred re-arm",
		},
	)

	ReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_reloads_total",
			Help: "Total number of page reloads by trigger",
		},
		[]string{"trigger"},
	)

	TimerStopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_timer_stops_total",
			Help: "Total number of stopped timers by reason",
		},
		[]string{"reason"},
	)

	FireDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabwarden_timer_fire_duration_seconds",
			Help:    "Time taken to look up, reload and persist one timer firing",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Recovery metrics
	RecoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tabwarden_recovery_duration_seconds",
			Help:    "Time taken to recover timers after a restart",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecoveredTimersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_recovered_timers_total",
			Help: "Timers processed during recovery by outcome",
		},
		[]string{"outcome"},
	)

	// Keep-alive metrics
	KeepAliveRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabwarden_keepalive_running",
			Help: "Whether the keep-alive tickers are running (1 = running)",
		},
	)

	KeepAliveTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_keepalive_ticks_total",
			Help: "Total number of keep-alive ticks by kind",
		},
		[]string{"kind"},
	)

	TabHeartbeatsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabwarden_tab_heartbeats_total",
			Help: "Total number of heartbeats received from tab agents",
		},
	)

	// API metrics
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_messages_total",
			Help: "Total number of API messages by action and status",
		},
		[]string{"action", "status"},
	)

	MessageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabwarden_message_duration_seconds",
			Help:    "API message handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(TimersActive)
	prometheus.MustRegister(TimersPending)
	prometheus.MustRegister(ReloadsTotal)
	prometheus.MustRegister(TimerStopsTotal)
	prometheus.MustRegister(FireDuration)
	prometheus.MustRegister(RecoveryDuration)
	prometheus.MustRegister(RecoveredTimersTotal)
	prometheus.MustRegister(KeepAliveRunning)
	prometheus.MustRegister(KeepAliveTicksTotal)
	prometheus.MustRegister(TabHeartbeatsTotal)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(MessageDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
