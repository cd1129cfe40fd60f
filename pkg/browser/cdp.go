package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/cuemby/tabwarden/pkg/log"
	"github.com/cuemby/tabwarden/pkg/types"
)

//go:embed agent.js
var agentSource string

const nudgeScript = `(() => {
	if (!document.hidden) return false;
	const n = document.createElement('meta');
	n.name = 'tabwarden-keepalive';
	(document.head || document.documentElement).appendChild(n);
	n.remove();
	window.postMessage({ type: 'tabwarden-keep-alive' }, '*');
	return true;
})()`

const stateScript = `(() => ({
	hidden: document.hidden,
	discarded: !!document.wasDiscarded,
}))()`

// Config controls how the driver reaches the browser
type Config struct {
	// CDPURL is the DevTools websocket or http endpoint of a running
	// browser. When empty a local browser is launched.
	CDPURL string

	// ExecPath overrides the browser binary for a launched browser
	ExecPath string

	// Headless launches the local browser without a window
	Headless bool

	// AgentEndpoint is the message URL the tab agent posts heartbeats to
	AgentEndpoint string

	// AgentHeartbeat is the tab agent heartbeat period
	AgentHeartbeat time.Duration

	// AgentToken is sent by the tab agent with every API request
	AgentToken string
}

// CDPDriver implements Driver over the Chrome DevTools Protocol. Tab IDs are
// CDP target IDs.
type CDPDriver struct {
	cfg    Config
	logger zerolog.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	tabs   map[types.TabID]*tabConn
	agents map[types.TabID]bool
}

type tabConn struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type pageState struct {
	Hidden    bool `json:"hidden"`
	Discarded bool `json:"discarded"`
}

// NewCDPDriver connects to (or launches) a browser
func NewCDPDriver(ctx context.Context, cfg Config) (*CDPDriver, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if cfg.CDPURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.CDPURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			// Keep hidden tabs and their timers running at full speed
			chromedp.Flag("disable-background-timer-throttling", true),
			chromedp.Flag("disable-renderer-backgrounding", true),
			chromedp.Flag("disable-backgrounding-occluded-windows", true),
			chromedp.Flag("headless", cfg.Headless),
		)
		if cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.SetDiscoverTargets(true).Do(ctx)
	}))
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &CDPDriver{
		cfg:           cfg,
		logger:        log.WithComponent("browser"),
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          make(map[types.TabID]*tabConn),
		agents:        make(map[types.TabID]bool),
	}, nil
}

// Close detaches from every tab and releases the browser connection
func (d *CDPDriver) Close() {
	d.mu.Lock()
	for id, conn := range d.tabs {
		conn.cancel()
		delete(d.tabs, id)
	}
	d.mu.Unlock()

	d.browserCancel()
	d.allocCancel()
}

// ListTabs returns every page target
func (d *CDPDriver) ListTabs(ctx context.Context) ([]*Tab, error) {
	infos, err := d.targets(ctx)
	if err != nil {
		return nil, err
	}

	var tabs []*Tab
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		tabs = append(tabs, &Tab{
			ID:    types.TabID(info.TargetID),
			URL:   info.URL,
			Title: info.Title,
		})
	}
	return tabs, nil
}

// GetTab finds the page target and reads its visibility. A page that cannot
// evaluate script is reported as discarded.
func (d *CDPDriver) GetTab(ctx context.Context, id types.TabID) (*Tab, error) {
	infos, err := d.targets(ctx)
	if err != nil {
		return nil, err
	}

	var found *target.Info
	for _, info := range infos {
		if info.Type == "page" && types.TabID(info.TargetID) == id {
			found = info
			break
		}
	}
	if found == nil {
		d.forget(id)
		return nil, fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}

	tab := &Tab{ID: id, URL: found.URL, Title: found.Title}

	var state pageState
	if err := d.run(ctx, id, chromedp.Evaluate(stateScript, &state)); err != nil {
		d.logger.Debug().Err(err).Str("tab_id", string(id)).Msg("Page state unavailable")
		tab.Discarded = true
		return tab, nil
	}
	tab.Hidden = state.Hidden
	tab.Discarded = state.Discarded
	return tab, nil
}

// Reload reloads the page without waiting for it to finish loading
func (d *CDPDriver) Reload(ctx context.Context, id types.TabID) error {
	err := d.run(ctx, id, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.Reload().Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("reload tab %s: %w", id, err)
	}
	return nil
}

// Ping lists targets, which is enough browser traffic to keep the
// connection from idling out
func (d *CDPDriver) Ping(ctx context.Context) error {
	_, err := d.targets(ctx)
	return err
}

// Nudge inserts and removes a DOM node if the page is hidden
func (d *CDPDriver) Nudge(ctx context.Context, id types.TabID) error {
	var touched bool
	return d.run(ctx, id, chromedp.Evaluate(nudgeScript, &touched))
}

// Send installs the tab agent if needed and hands it the message
func (d *CDPDriver) Send(ctx context.Context, id types.TabID, msg Message) (*Reply, error) {
	if err := d.ensureAgent(ctx, id); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	expr := fmt.Sprintf(`(window.__tabwarden ? window.__tabwarden.receive(%s) : {error: "agent not loaded"})`, payload)

	var reply Reply
	if err := d.run(ctx, id, chromedp.Evaluate(expr, &reply)); err != nil {
		return nil, fmt.Errorf("send %s to tab %s: %w", msg.Action, id, err)
	}
	if reply.Error != "" {
		return &reply, fmt.Errorf("tab %s: %s", id, reply.Error)
	}
	return &reply, nil
}

// WatchRemoved calls fn for every page target the browser destroys
func (d *CDPDriver) WatchRemoved(fn func(types.TabID)) {
	chromedp.ListenBrowser(d.browserCtx, func(ev interface{}) {
		if e, ok := ev.(*target.EventTargetDestroyed); ok {
			id := types.TabID(e.TargetID)
			d.forget(id)
			go fn(id)
		}
	})
}

func (d *CDPDriver) ensureAgent(ctx context.Context, id types.TabID) error {
	d.mu.Lock()
	installed := d.agents[id]
	d.mu.Unlock()
	if installed {
		return nil
	}

	source, err := d.agentScript(id)
	if err != nil {
		return err
	}

	err = d.run(ctx, id,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(source).Do(ctx)
			return err
		}),
		chromedp.Evaluate(source, nil),
	)
	if err != nil {
		return fmt.Errorf("install agent in tab %s: %w", id, err)
	}

	d.mu.Lock()
	d.agents[id] = true
	d.mu.Unlock()
	return nil
}

func (d *CDPDriver) agentScript(id types.TabID) (string, error) {
	cfg, err := json.Marshal(map[string]interface{}{
		"tabId":       id,
		"endpoint":    d.cfg.AgentEndpoint,
		"heartbeatMs": d.cfg.AgentHeartbeat.Milliseconds(),
		"token":       d.cfg.AgentToken,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("window.__tabwardenConfig = %s;\n%s", cfg, agentSource), nil
}

func (d *CDPDriver) targets(ctx context.Context) ([]*target.Info, error) {
	runCtx, cancel := d.bound(ctx, d.browserCtx)
	defer cancel()
	return chromedp.Targets(runCtx)
}

// run executes actions against the tab, bounded by the caller's context
func (d *CDPDriver) run(ctx context.Context, id types.TabID, actions ...chromedp.Action) error {
	tabCtx, err := d.tabContext(id)
	if err != nil {
		return err
	}
	runCtx, cancel := d.bound(ctx, tabCtx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// bound derives a context from the chromedp context base that is also
// cancelled when ctx ends
func (d *CDPDriver) bound(ctx, base context.Context) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(base, deadline)
	} else {
		runCtx, cancel = context.WithCancel(base)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// tabContext returns the chromedp context attached to the tab, attaching on
// first use. The attach runs without a deadline because chromedp ties the
// target session to the context of the first Run.
func (d *CDPDriver) tabContext(id types.TabID) (context.Context, error) {
	d.mu.Lock()
	if conn, ok := d.tabs[id]; ok {
		d.mu.Unlock()
		return conn.ctx, nil
	}
	d.mu.Unlock()

	ctx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(target.ID(id)))
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("attach to tab %s: %w", id, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if conn, ok := d.tabs[id]; ok {
		// Lost a race with another caller
		cancel()
		return conn.ctx, nil
	}
	d.tabs[id] = &tabConn{ctx: ctx, cancel: cancel}
	return ctx, nil
}

func (d *CDPDriver) forget(id types.TabID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if conn, ok := d.tabs[id]; ok {
		conn.cancel()
		delete(d.tabs, id)
	}
	delete(d.agents, id)
}
