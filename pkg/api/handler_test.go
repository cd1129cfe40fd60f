package api

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/tabwarden/pkg/browser"
	"github.com/cuemby/tabwarden/pkg/browser/browsertest"
	"github.com/cuemby/tabwarden/pkg/clock"
	"github.com/cuemby/tabwarden/pkg/registry"
	"github.com/cuemby/tabwarden/pkg/storage"
	"github.com/cuemby/tabwarden/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 10, 13, 9, 0, 0, 0, time.UTC)

type heartbeatRecorder struct {
	mu   sync.Mutex
	tabs []types.TabID
}

func (h *heartbeatRecorder) Heartbeat(id types.TabID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tabs = append(h.tabs, id)
}

type fixture struct {
	handler    *Handler
	reg        *registry.Registry
	driver     *browsertest.Driver
	clock      *clock.Fake
	heartbeats *heartbeatRecorder
}

func newFixture(t *testing.T, tabs ...types.TabID) *fixture {
	t.Helper()

	f := &fixture{
		driver:     browsertest.New(),
		clock:      clock.NewFake(epoch),
		heartbeats: &heartbeatRecorder{},
	}
	f.driver.AddTab(tabs...)
	f.reg = registry.New(storage.NewMemoryStore(), f.driver, f.clock, nil, registry.Config{})
	f.handler = NewHandler(f.reg, f.heartbeats, f.driver)
	return f
}

func (f *fixture) send(sender types.TabID, req Request) interface{} {
	return f.handler.Handle(context.Background(), sender, &req)
}

func TestHandleGetCurrentTabID(t *testing.T) {
	f := newFixture(t, "7")

	assert.Equal(t, &TabIDResponse{TabID: "7"}, f.send("7", Request{Action: ActionGetCurrentTabID}))

	resp, ok := f.send("", Request{Action: ActionGetCurrentTabID}).(*ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestHandleTimerLifecycle(t *testing.T) {
	f := newFixture(t, "7")

	resp := f.send("", Request{Action: ActionStartAutoReload, TabID: "7", Interval: 5000})
	assert.Equal(t, &SuccessResponse{Success: true}, resp)
	assert.True(t, f.reg.IsActive("7"))

	f.clock.Advance(2500 * time.Millisecond)
	resp = f.send("", Request{Action: ActionGetReloadStatus, TabID: "7"})
	assert.Equal(t, &StatusResponse{Active: true, Interval: 5000, TimeRemaining: 3}, resp)

	resp = f.send("", Request{Action: ActionSetReloadInterval, TabID: "7", Interval: 10000})
	assert.Equal(t, &SuccessResponse{Success: true}, resp)
	assert.Equal(t, 10*time.Second, f.reg.Interval("7"))

	resp = f.send("", Request{Action: ActionStopAutoReload, TabID: "7"})
	assert.Equal(t, &SuccessResponse{Success: true}, resp)
	assert.False(t, f.reg.IsActive("7"))

	resp = f.send("", Request{Action: ActionGetReloadStatus, TabID: "7"})
	assert.Equal(t, &StatusResponse{Active: false, Interval: 30000, TimeRemaining: 0}, resp)
}

func TestHandleDefaultsToSender(t *testing.T) {
	f := newFixture(t, "7")

	assert.Equal(t, &SuccessResponse{Success: true},
		f.send("7", Request{Action: ActionStartAutoReload}))
	assert.True(t, f.reg.IsActive("7"))
	assert.Equal(t, types.DefaultInterval, f.reg.Interval("7"))

	assert.Equal(t, &StatusResponse{Active: true, Interval: 30000, TimeRemaining: 30},
		f.send("7", Request{Action: ActionGetReloadStatus}))
}

func TestHandleSetIntervalInactive(t *testing.T) {
	f := newFixture(t, "7")

	resp := f.send("", Request{Action: ActionSetReloadInterval, TabID: "7", Interval: 10000})
	assert.Equal(t, &SuccessResponse{Success: true}, resp)
	assert.False(t, f.reg.IsActive("7"), "setting the interval never starts a timer")
}

func TestHandleStopAll(t *testing.T) {
	f := newFixture(t, "1", "2")

	f.send("", Request{Action: ActionStartAutoReload, TabID: "1", Interval: 5000})
	f.send("", Request{Action: ActionStartAutoReload, TabID: "2", Interval: 5000})

	assert.Equal(t, &SuccessResponse{Success: true}, f.send("", Request{Action: ActionStopAllTimers}))
	assert.Empty(t, f.reg.Active())
}

func TestHandleTabKeepAlive(t *testing.T) {
	f := newFixture(t, "7")

	assert.Equal(t, &ReceivedResponse{Received: true}, f.send("7", Request{Action: ActionTabKeepAlive}))
	assert.Equal(t, []types.TabID{"7"}, f.heartbeats.tabs)

	_, ok := f.send("", Request{Action: ActionTabKeepAlive}).(*ErrorResponse)
	assert.True(t, ok)
}

func TestHandlePushedActions(t *testing.T) {
	f := newFixture(t, "7")

	resp := f.send("", Request{Action: ActionUpdateTabTitle, TabID: "7", Active: true})
	assert.Equal(t, &SuccessResponse{Success: true}, resp)

	resp = f.send("", Request{Action: ActionTimerHeartbeat, TabID: "7", Timestamp: 1234})
	assert.Equal(t, &HeartbeatResponse{Active: false}, resp, "fake agent echoes the inactive heartbeat")

	assert.Equal(t, []browser.Message{
		browser.TitleMessage(true),
		browser.HeartbeatMessage(1234),
	}, f.driver.Messages("7"))

	errResp, ok := f.send("", Request{Action: ActionUpdateTabTitle, TabID: "404"}).(*ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, errResp.StatusCode())
}

func TestHandlePushedActionsWithoutBrowser(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.reg, f.heartbeats, nil)

	resp, ok := h.Handle(context.Background(), "7", &Request{Action: ActionUpdateTabTitle}).(*ErrorResponse)
	require.True(t, ok)
	assert.Contains(t, resp.Error, "no browser")
}

func TestHandleUnknownAction(t *testing.T) {
	f := newFixture(t)

	resp, ok := f.send("7", Request{Action: "reticulateSplines"}).(*ErrorResponse)
	require.True(t, ok)
	assert.Contains(t, resp.Error, "unknown action")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

// panickingTimers forwards to a real registry but panics on StopAll
type panickingTimers struct {
	reg *registry.Registry
}

func (p panickingTimers) Start(ctx context.Context, id types.TabID, interval time.Duration) error {
	return p.reg.Start(ctx, id, interval)
}

func (p panickingTimers) Stop(ctx context.Context, id types.TabID) error {
	return p.reg.Stop(ctx, id)
}

func (panickingTimers) StopAll(context.Context) error {
	panic("boom")
}

func (p panickingTimers) SetInterval(ctx context.Context, id types.TabID, interval time.Duration) (bool, error) {
	return p.reg.SetInterval(ctx, id, interval)
}

func (p panickingTimers) Status(id types.TabID) registry.Status {
	return p.reg.Status(id)
}

func (p panickingTimers) Timers() []registry.Status {
	return p.reg.Timers()
}

func TestHandleRecoversPanics(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(panickingTimers{reg: f.reg}, f.heartbeats, f.driver)

	resp, ok := h.Handle(context.Background(), "", &Request{Action: ActionStopAllTimers}).(*ErrorResponse)
	require.True(t, ok)
	assert.Contains(t, resp.Error, "boom")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())

	// The handler keeps working afterwards
	assert.Equal(t, &TabIDResponse{TabID: "7"}, h.Handle(context.Background(), "7", &Request{Action: ActionGetCurrentTabID}))
}

func TestCeilSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{in: 0, want: 0},
		{in: -time.Second, want: 0},
		{in: time.Millisecond, want: 1},
		{in: time.Second, want: 1},
		{in: 2500 * time.Millisecond, want: 3},
		{in: 30 * time.Second, want: 30},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CeilSeconds(tt.in), tt.in.String())
	}
}
