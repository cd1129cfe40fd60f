package browser

import (
	"context"
	"errors"

	"github.com/cuemby/tabwarden/pkg/types"
)

// ErrTabNotFound is returned when the browser has no tab with the given ID
var ErrTabNotFound = errors.New("tab not found")

// Tab is a snapshot of one browser tab
type Tab struct {
	ID    types.TabID `json:"id"`
	URL   string      `json:"url,omitempty"`
	Title string      `json:"title,omitempty"`

	// Discarded is set when the browser unloaded the page to save memory
	Discarded bool `json:"discarded"`

	// Hidden is set when the page is not visible to the user
	Hidden bool `json:"hidden"`
}

// Driver performs page-level operations on browser tabs
type Driver interface {
	// GetTab looks a tab up by ID. Any error means the tab is gone.
	GetTab(ctx context.Context, id types.TabID) (*Tab, error)

	// Reload reloads the tab's page
	Reload(ctx context.Context, id types.TabID) error

	// Ping performs a trivial browser call that resets idle timers
	Ping(ctx context.Context) error

	// Nudge performs a DOM mutation with no visible effect so a hidden tab
	// still counts as active
	Nudge(ctx context.Context, id types.TabID) error

	// Send pushes a message to the agent running inside the tab
	Send(ctx context.Context, id types.TabID, msg Message) (*Reply, error)
}

// Lister is implemented by drivers that can enumerate tabs
type Lister interface {
	ListTabs(ctx context.Context) ([]*Tab, error)
}

// Actions pushed to tabs
const (
	ActionUpdateTabTitle = "updateTabTitle"
	ActionTimerHeartbeat = "timerHeartbeat"
)

// Message is a background-to-tab push
type Message struct {
	Action    string `json:"action"`
	Active    bool   `json:"active"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Reply is the tab agent's answer to a Message
type Reply struct {
	Success   bool   `json:"success,omitempty"`
	Active    bool   `json:"active"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TitleMessage asks the tab to show or clear the active-timer title marker
func TitleMessage(active bool) Message {
	return Message{Action: ActionUpdateTabTitle, Active: active}
}

// HeartbeatMessage tells the tab a reload was performed at ts (ms since epoch)
func HeartbeatMessage(ts int64) Message {
	return Message{Action: ActionTimerHeartbeat, Timestamp: ts}
}
