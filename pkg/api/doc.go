/*
Package api serves the tabwarden message protocol over HTTP.

Tab agents, the CLI and any other local client talk to the daemon by posting
JSON messages to /v1/message. Every message carries an action; the sending
tab, when there is one, identifies itself with the X-Tab-Id header.

	POST /v1/message  {"action":"startAutoReload","tabId":"7","interval":5000}
	                  -> {"success":true}

	POST /v1/message  {"action":"getReloadStatus","tabId":"7"}
	                  -> {"active":true,"interval":5000,"timeRemaining":3}

Commands without a tabId apply to the sender. tabId may be a JSON string or
number. Failures, unknown actions and handler panics all come back as
{"error": "..."} and never take the server down.

# Endpoints

	POST /v1/message   message protocol
	GET  /v1/timers    armed and pending timers
	GET  /v1/tabs      browser tabs with their timer flag
	GET  /v1/events    server-sent stream of timer lifecycle events
	GET  /health       component health
	GET  /ready        readiness (runs the configured checks)
	GET  /live         liveness
	GET  /metrics      Prometheus metrics

# Middleware

Requests pass through an IP allow list (loopback by default), CORS for page
origins and a per-client token bucket keyed by sender tab or client IP.
*/
package api
