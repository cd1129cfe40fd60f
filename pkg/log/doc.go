/*
Package log provides structured logging for tabwarden using zerolog.

The package wraps a single global zerolog.Logger. Every long-lived component
derives a child logger once at construction time and attaches its own fields,
so log lines can be filtered by component. Tab-scoped lines carry a tab_id
field.

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})

Component Loggers:

	logger := log.WithComponent("registry")
	logger.Info().
		Str("tab_id", string(id)).
		Dur("interval", interval).
		Msg("Timer armed")

# Log Output Examples

JSON Format:

	{"level":"info","component":"recovery","recovered":3,"caught_up":1,"time":"2024-10-13T10:30:00Z","message":"Timer recovery complete"}

Console Format:

	2024-10-13T10:30:00Z INF Timer recovery complete caught_up=1 component=recovery recovered=3

# Levels

Best-effort platform calls (title updates, heartbeats, keep-alive pings) log
their failures at debug level. State transitions (timer started, stopped,
tab gone) log at info. Storage failures log at error.
*/
package log
