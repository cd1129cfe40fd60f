/*
Package browser drives browser tabs for the timer core.

Driver is the narrow interface the registry, recovery engine and keep-alive
controller need: look a tab up, reload it, ping the browser, nudge a hidden
tab and push a message to the tab. CDPDriver implements it over the Chrome
DevTools Protocol with chromedp, either attached to a running browser
(--remote-debugging-port) or by launching one.

# Failure Semantics

GetTab is the existence check. Any error it returns means the tab is gone,
and callers turn that into a stopped timer. Every other method is allowed to
fail transiently; callers decide whether that failure matters.

# Tab Agent

The first message sent to a tab installs a small agent script, registered to
run again on every new document so it survives the reloads it is there for.
While the tab's timer is active the agent:

  - inserts and removes a transient DOM node every heartbeat (~25s)
  - stores a last-activity timestamp in localStorage
  - posts {"action":"tabKeepAlive"} to the daemon
  - prefixes the title with a lightning marker

It stops when told the timer is inactive and restarts its heartbeat on the
page "resume" lifecycle event. After a reload it asks the daemon for the
tab's status and restores itself.
*/
package browser
