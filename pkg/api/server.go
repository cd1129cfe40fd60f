package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/tabwarden/pkg/browser"
	"github.com/cuemby/tabwarden/pkg/events"
	"github.com/cuemby/tabwarden/pkg/log"
	"github.com/cuemby/tabwarden/pkg/metrics"
	"github.com/cuemby/tabwarden/pkg/types"
	"github.com/rs/zerolog"
)

const maxMessageBytes = 64 << 10

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Middleware MiddlewareConfig

	// Checks run on /ready. Each result is recorded as a health component.
	Checks map[string]func(context.Context) error
}

// Server serves the message protocol and the observability endpoints
type Server struct {
	handler *Handler
	broker  *events.Broker
	lister  browser.Lister
	checks  map[string]func(context.Context) error
	mw      *Middleware
	mux     *http.ServeMux
	http    *http.Server
	logger  zerolog.Logger

	// done is closed on Shutdown to end open event streams
	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates the API server. broker and lister may be nil; the
// matching endpoints then report 503.
func NewServer(cfg ServerConfig, handler *Handler, broker *events.Broker, lister browser.Lister) *Server {
	mux := http.NewServeMux()
	s := &Server{
		handler: handler,
		broker:  broker,
		lister:  lister,
		checks:  cfg.Checks,
		mw:      NewMiddleware(cfg.Middleware),
		mux:     mux,
		logger:  log.WithComponent("api"),
		done:    make(chan struct{}),
	}

	mux.HandleFunc("/v1/message", s.messageHandler)
	mux.HandleFunc("/v1/timers", s.timersHandler)
	mux.HandleFunc("/v1/tabs", s.tabsHandler)
	mux.HandleFunc("/v1/events", s.eventsHandler)
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.HandleFunc("/ready", s.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	s.http = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.mw.Wrap(s.mux)
}

// Serve accepts connections on ln until Shutdown. It returns nil once the
// server is shut down, even when Shutdown ran first.
func (s *Server) Serve(ln net.Listener) error {
	metrics.UpdateComponent(metrics.ComponentAPI, true, "listening on "+ln.Addr().String())
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("API listening")

	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens on addr and serves until Shutdown
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ln)
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	metrics.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	s.closeOnce.Do(func() { close(s.done) })
	return s.http.Shutdown(ctx)
}

// CleanupLoop drops idle rate limiters until ctx is done
func (s *Server) CleanupLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.mw.CleanupRateLimiters(every); n > 0 {
				s.logger.Debug().Int("removed", n).Msg("Dropped idle rate limiters")
			}
		case <-ctx.Done():
			return
		}
	}
}

// messageHandler implements POST /v1/message
func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	body := io.LimitReader(r.Body, maxMessageBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &ErrorResponse{Error: "invalid message: " + err.Error()})
		return
	}

	sender := types.TabID(r.Header.Get(TabIDHeader))
	resp := s.handler.Handle(r.Context(), sender, &req)

	status := http.StatusOK
	if errResp, ok := resp.(*ErrorResponse); ok {
		status = errResp.StatusCode()
	}
	writeJSON(w, status, resp)
}

// timersHandler implements GET /v1/timers
func (s *Server) timersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statuses := s.handler.timers.Timers()
	timers := make([]TimerInfo, 0, len(statuses))
	for _, st := range statuses {
		timers = append(timers, timerInfo(st))
	}
	writeJSON(w, http.StatusOK, timers)
}

// tabsHandler implements GET /v1/tabs
func (s *Server) tabsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.lister == nil {
		writeJSON(w, http.StatusServiceUnavailable, &ErrorResponse{Error: "tab listing not available"})
		return
	}

	tabs, err := s.lister.ListTabs(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, &ErrorResponse{Error: err.Error()})
		return
	}

	infos := make([]TabInfo, 0, len(tabs))
	for _, tab := range tabs {
		st := s.handler.timers.Status(tab.ID)
		infos = append(infos, TabInfo{
			TabID:     tab.ID,
			URL:       tab.URL,
			Title:     tab.Title,
			Discarded: tab.Discarded,
			Hidden:    tab.Hidden,
			Timer:     st.Active || st.Pending,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].TabID < infos[j].TabID })
	writeJSON(w, http.StatusOK, infos)
}

// eventsHandler implements GET /v1/events as a server-sent event stream.
// The tabId and type query parameters narrow the stream.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.broker == nil {
		http.Error(w, "Event stream not available", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var filters []events.Filter
	if tab := r.URL.Query().Get("tabId"); tab != "" {
		filters = append(filters, events.ForTab(tab))
	}
	if kinds := r.URL.Query()["type"]; len(kinds) > 0 {
		wanted := make([]events.EventType, 0, len(kinds))
		for _, k := range kinds {
			wanted = append(wanted, events.EventType(k))
		}
		filters = append(filters, events.OfType(wanted...))
	}

	sub := s.broker.Subscribe(filters...)
	defer s.broker.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		}
	}
}

// readyHandler implements GET /ready. Each configured check is run and
// recorded before readiness is computed.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			metrics.UpdateComponent(name, false, err.Error())
		} else {
			metrics.UpdateComponent(name, true, "ok")
		}
	}

	metrics.ReadyHandler()(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
