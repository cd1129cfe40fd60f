// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/tabwarden/pkg/browser"
	"github.com/cuemby/tabwarden/pkg/types"
)

// ErrInjected is returned by calls configured to fail
var ErrInjected = errors.New("injected failure")

// Driver is a fake browser holding a set of tabs
type Driver struct {
	mu          sync.Mutex
	tabs        map[types.TabID]*browser.Tab
	reloads     map[types.TabID]int
	failReloads map[types.TabID]int
	nudges      map[types.TabID]int
	messages    map[types.TabID][]browser.Message
	pings       int
	pingErr     error
}

// New returns a driver with no tabs
func New() *Driver {
	return &Driver{
		tabs:        make(map[types.TabID]*browser.Tab),
		reloads:     make(map[types.TabID]int),
		failReloads: make(map[types.TabID]int),
		nudges:      make(map[types.TabID]int),
		messages:    make(map[types.TabID][]browser.Message),
	}
}

// AddTab opens a visible, loaded tab
func (d *Driver) AddTab(ids ...types.TabID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.tabs[id] = &browser.Tab{ID: id, URL: "https://example.com/" + string(id)}
	}
}

// CloseTab removes a tab
func (d *Driver) CloseTab(id types.TabID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.tabs, id)
}

// SetDiscarded marks a tab as discarded by the browser
func (d *Driver) SetDiscarded(id types.TabID, discarded bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tab, ok := d.tabs[id]; ok {
		tab.Discarded = discarded
	}
}

// SetHidden marks a tab as hidden
func (d *Driver) SetHidden(id types.TabID, hidden bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tab, ok := d.tabs[id]; ok {
		tab.Hidden = hidden
	}
}

// FailReloads makes the next n reloads of the tab fail
func (d *Driver) FailReloads(id types.TabID, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failReloads[id] = n
}

// FailPings makes Ping return err (nil to clear)
func (d *Driver) FailPings(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pingErr = err
}

// Reloads returns how many successful reloads the tab received
func (d *Driver) Reloads(id types.TabID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reloads[id]
}

// Pings returns how many times Ping was called
func (d *Driver) Pings() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pings
}

// Nudges returns how many times the tab was nudged
func (d *Driver) Nudges(id types.TabID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nudges[id]
}

// Messages returns the messages pushed to the tab, oldest first
func (d *Driver) Messages(id types.TabID) []browser.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]browser.Message(nil), d.messages[id]...)
}

func (d *Driver) GetTab(ctx context.Context, id types.TabID) (*browser.Tab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tab, ok := d.tabs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrTabNotFound, id)
	}
	copied := *tab
	return &copied, nil
}

func (d *Driver) Reload(ctx context.Context, id types.TabID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tab, ok := d.tabs[id]
	if !ok {
		return fmt.Errorf("%w: %s", browser.ErrTabNotFound, id)
	}
	if d.failReloads[id] > 0 {
		d.failReloads[id]--
		return ErrInjected
	}
	d.reloads[id]++
	tab.Discarded = false
	return nil
}

func (d *Driver) Ping(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pings++
	return d.pingErr
}

func (d *Driver) Nudge(ctx context.Context, id types.TabID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tabs[id]; !ok {
		return fmt.Errorf("%w: %s", browser.ErrTabNotFound, id)
	}
	d.nudges[id]++
	return nil
}

func (d *Driver) Send(ctx context.Context, id types.TabID, msg browser.Message) (*browser.Reply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tabs[id]; !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrTabNotFound, id)
	}
	d.messages[id] = append(d.messages[id], msg)
	return &browser.Reply{Success: true, Active: msg.Active, Timestamp: msg.Timestamp}, nil
}

func (d *Driver) ListTabs(ctx context.Context) ([]*browser.Tab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tabs := make([]*browser.Tab, 0, len(d.tabs))
	for _, tab := range d.tabs {
		copied := *tab
		tabs = append(tabs, &copied)
	}
	return tabs, nil
}
