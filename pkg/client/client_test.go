package client

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/tabwarden/pkg/api"
	"github.com/cuemby/tabwarden/pkg/browser/browsertest"
	"github.com/cuemby/tabwarden/pkg/clock"
	"github.com/cuemby/tabwarden/pkg/registry"
	"github.com/cuemby/tabwarden/pkg/storage"
	"github.com/cuemby/tabwarden/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noHeartbeats struct{}

func (noHeartbeats) Heartbeat(types.TabID) {}

func newDaemon(t *testing.T, tabs ...types.TabID) (*Client, *registry.Registry) {
	t.Helper()

	driver := browsertest.New()
	driver.AddTab(tabs...)
	clk := clock.NewFake(time.Date(2024, 10, 13, 9, 0, 0, 0, time.UTC))
	reg := registry.New(storage.NewMemoryStore(), driver, clk, nil, registry.Config{})

	handler := api.NewHandler(reg, noHeartbeats{}, driver)
	srv := httptest.NewServer(api.NewServer(api.ServerConfig{}, handler, nil, driver).Handler())
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	return c, reg
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)

	c, err := NewClient("127.0.0.1:7420")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:7420", c.baseURL)

	c, err = NewClient("http://localhost:7420/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7420", c.baseURL)
}

func TestTimerCommands(t *testing.T) {
	c, reg := newDaemon(t, "1", "2")

	require.NoError(t, c.StartTimer("1", 5*time.Second))
	require.NoError(t, c.StartTimer("2", time.Minute))
	assert.Equal(t, []types.TabID{"1", "2"}, reg.Active())

	require.NoError(t, c.SetInterval("1", 10*time.Second))
	assert.Equal(t, 10*time.Second, reg.Interval("1"))

	status, err := c.Status("1")
	require.NoError(t, err)
	assert.Equal(t, &api.StatusResponse{Active: true, Interval: 10000, TimeRemaining: 10}, status)

	timers, err := c.ListTimers()
	require.NoError(t, err)
	assert.Len(t, timers, 2)

	tabs, err := c.ListTabs()
	require.NoError(t, err)
	assert.Len(t, tabs, 2)

	require.NoError(t, c.StopTimer("1"))
	assert.Equal(t, []types.TabID{"2"}, reg.Active())

	require.NoError(t, c.StopAll())
	assert.Empty(t, reg.Active())
}

func TestErrorResponse(t *testing.T) {
	c, _ := newDaemon(t)

	// No tab and no sender
	err := c.StopTimer("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tab id")
}

func TestDaemonUnreachable(t *testing.T) {
	c, err := NewClient("127.0.0.1:1")
	require.NoError(t, err)
	c.timeout = time.Second

	err = c.StopAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach daemon")
}
