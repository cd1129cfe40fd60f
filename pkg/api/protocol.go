package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/tabwarden/pkg/types"
)

// TabIDHeader carries the sending tab's ID on /v1/message requests
const TabIDHeader = "X-Tab-Id"

// AgentTokenHeader carries the per-launch token handed to injected tab
// agents. Browser requests without it are rejected when a token is set.
const AgentTokenHeader = "X-Tabwarden-Token"

// Actions accepted on /v1/message
const (
	ActionGetCurrentTabID   = "getCurrentTabId"
	ActionStartAutoReload   = "startAutoReload"
	ActionStopAutoReload    = "stopAutoReload"
	ActionStopAllTimers     = "stopAllTimers"
	ActionSetReloadInterval = "setReloadInterval"
	ActionGetReloadStatus   = "getReloadStatus"
	ActionTabKeepAlive      = "tabKeepAlive"
	ActionUpdateTabTitle    = "updateTabTitle"
	ActionTimerHeartbeat    = "timerHeartbeat"
)

// TabRef is a tab ID that decodes from a JSON string or number. Browsers
// number their tabs; the daemon treats IDs as opaque strings.
type TabRef string

// UnmarshalJSON accepts "7", 7 and null
func (r *TabRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = TabRef(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("tabId must be a string or number: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("tabId must be an integer: %s", n)
	}
	*r = TabRef(n.String())
	return nil
}

// TabID converts the reference to a types.TabID
func (r TabRef) TabID() types.TabID {
	return types.TabID(r)
}

// Request is one /v1/message call
type Request struct {
	Action    string `json:"action"`
	TabID     TabRef `json:"tabId,omitempty"`
	Interval  int64  `json:"interval,omitempty"` // milliseconds
	Active    bool   `json:"active,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// IntervalDuration returns the requested interval as a duration
func (r *Request) IntervalDuration() time.Duration {
	return time.Duration(r.Interval) * time.Millisecond
}

// TabIDResponse answers getCurrentTabId
type TabIDResponse struct {
	TabID types.TabID `json:"tabId"`
}

// SuccessResponse answers commands
type SuccessResponse struct {
	Success bool `json:"success"`
}

// StatusResponse answers getReloadStatus. Interval is in milliseconds and
// TimeRemaining in whole seconds, rounded up.
type StatusResponse struct {
	Active        bool  `json:"active"`
	Interval      int64 `json:"interval"`
	TimeRemaining int64 `json:"timeRemaining"`
}

// ReceivedResponse answers tabKeepAlive
type ReceivedResponse struct {
	Received bool `json:"received"`
}

// HeartbeatResponse answers timerHeartbeat
type HeartbeatResponse struct {
	Active    bool  `json:"active"`
	Timestamp int64 `json:"timestamp,omitempty"`
}

// ErrorResponse reports a failed message
type ErrorResponse struct {
	Error string `json:"error"`

	status int
}

// StatusCode returns the HTTP status the response is served with
func (e *ErrorResponse) StatusCode() int {
	if e.status == 0 {
		return http.StatusInternalServerError
	}
	return e.status
}

// TimerInfo describes one timer on /v1/timers
type TimerInfo struct {
	TabID         types.TabID `json:"tabId"`
	Active        bool        `json:"active"`
	Pending       bool        `json:"pending,omitempty"`
	Interval      int64       `json:"interval"`
	TimeRemaining int64       `json:"timeRemaining"`
}

// TabInfo describes one browser tab on /v1/tabs
type TabInfo struct {
	TabID     types.TabID `json:"tabId"`
	URL       string      `json:"url,omitempty"`
	Title     string      `json:"title,omitempty"`
	Discarded bool        `json:"discarded"`
	Hidden    bool        `json:"hidden"`
	Timer     bool        `json:"timer"`
}

// CeilSeconds rounds d up to whole seconds
func CeilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
