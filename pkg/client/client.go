package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/tabwarden/pkg/api"
	"github.com/cuemby/tabwarden/pkg/types"
)

// DefaultTimeout bounds every client call
const DefaultTimeout = 10 * time.Second

// Client talks to a tabwarden daemon over its HTTP API
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a client for the daemon at addr. addr may be a host:port
// or a full URL.
func NewClient(addr string) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("daemon address is required")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}, nil
}

// StartTimer arms a reload timer for the tab
func (c *Client) StartTimer(tabID types.TabID, interval time.Duration) error {
	return c.command(&api.Request{
		Action:   api.ActionStartAutoReload,
		TabID:    api.TabRef(tabID),
		Interval: interval.Milliseconds(),
	})
}

// StopTimer stops the tab's reload timer
func (c *Client) StopTimer(tabID types.TabID) error {
	return c.command(&api.Request{
		Action: api.ActionStopAutoReload,
		TabID:  api.TabRef(tabID),
	})
}

// StopAll stops every reload timer
func (c *Client) StopAll() error {
	return c.command(&api.Request{Action: api.ActionStopAllTimers})
}

// SetInterval changes the period of an active timer. Inactive tabs are left
// alone.
func (c *Client) SetInterval(tabID types.TabID, interval time.Duration) error {
	return c.command(&api.Request{
		Action:   api.ActionSetReloadInterval,
		TabID:    api.TabRef(tabID),
		Interval: interval.Milliseconds(),
	})
}

// Status returns the tab's timer status
func (c *Client) Status(tabID types.TabID) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.message(&api.Request{
		Action: api.ActionGetReloadStatus,
		TabID:  api.TabRef(tabID),
	}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTimers returns every armed or pending timer
func (c *Client) ListTimers() ([]api.TimerInfo, error) {
	var timers []api.TimerInfo
	if err := c.get("/v1/timers", &timers); err != nil {
		return nil, err
	}
	return timers, nil
}

// ListTabs returns the browser's tabs
func (c *Client) ListTabs() ([]api.TabInfo, error) {
	var tabs []api.TabInfo
	if err := c.get("/v1/tabs", &tabs); err != nil {
		return nil, err
	}
	return tabs, nil
}

func (c *Client) command(req *api.Request) error {
	var resp api.SuccessResponse
	if err := c.message(req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s was not acknowledged", req.Action)
	}
	return nil
}

func (c *Client) message(req *api.Request, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq, req.Action, out)
}

func (c *Client) get(path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(httpReq, path, out)
}

func (c *Client) do(req *http.Request, what string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%s failed: %s", what, errResp.Error)
		}
		return fmt.Errorf("%s failed: %s", what, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", what, err)
	}
	return nil
}
