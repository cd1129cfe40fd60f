package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/tabwarden/pkg/browser"
	"github.com/cuemby/tabwarden/pkg/log"
	"github.com/cuemby/tabwarden/pkg/metrics"
	"github.com/cuemby/tabwarden/pkg/registry"
	"github.com/cuemby/tabwarden/pkg/types"
	"github.com/rs/zerolog"
)

// ErrUnknownAction is returned for actions the daemon does not handle
var ErrUnknownAction = errors.New("unknown action")

// ErrNoTab is returned when a message names no tab and has no sender
var ErrNoTab = errors.New("no tab id given and no sender tab")

// Timers is the registry surface the handler drives
type Timers interface {
	Start(ctx context.Context, id types.TabID, interval time.Duration) error
	Stop(ctx context.Context, id types.TabID) error
	StopAll(ctx context.Context) error
	SetInterval(ctx context.Context, id types.TabID, interval time.Duration) (bool, error)
	Status(id types.TabID) registry.Status
	Timers() []registry.Status
}

// Heartbeats records tab agent keep-alive pings
type Heartbeats interface {
	Heartbeat(id types.TabID)
}

// Handler dispatches protocol messages
type Handler struct {
	timers     Timers
	heartbeats Heartbeats
	driver     browser.Driver
	logger     zerolog.Logger
}

// NewHandler creates a message handler. driver may be nil, in which case
// the pushed actions report an error.
func NewHandler(timers Timers, heartbeats Heartbeats, driver browser.Driver) *Handler {
	return &Handler{
		timers:     timers,
		heartbeats: heartbeats,
		driver:     driver,
		logger:     log.WithComponent("api"),
	}
}

// Handle runs one message sent by the sender tab (empty when the caller is
// not a tab) and returns the response value. Failures, panics included, are
// returned as *ErrorResponse.
func (h *Handler) Handle(ctx context.Context, sender types.TabID, req *Request) (resp interface{}) {
	timer := metrics.NewTimer()
	action := metricAction(req.Action)

	defer func() {
		if p := recover(); p != nil {
			h.logger.Error().
				Str("action", req.Action).
				Interface("panic", p).
				Msg("Message handler panicked")
			resp = &ErrorResponse{Error: fmt.Sprintf("internal error: %v", p), status: http.StatusInternalServerError}
		}

		status := "ok"
		if _, failed := resp.(*ErrorResponse); failed {
			status = "error"
		}
		metrics.MessagesTotal.WithLabelValues(action, status).Inc()
		timer.ObserveDurationVec(metrics.MessageDuration, action)
	}()

	resp, err := h.dispatch(ctx, sender, req)
	if err != nil {
		h.logger.Debug().
			Err(err).
			Str("action", req.Action).
			Str("sender", sender.String()).
			Msg("Message failed")
		return &ErrorResponse{Error: err.Error(), status: errorStatus(err)}
	}
	return resp
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownAction), errors.Is(err, ErrNoTab):
		return http.StatusBadRequest
	case errors.Is(err, browser.ErrTabNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) dispatch(ctx context.Context, sender types.TabID, req *Request) (interface{}, error) {
	switch req.Action {
	case ActionGetCurrentTabID:
		if sender == "" {
			return nil, ErrNoTab
		}
		return &TabIDResponse{TabID: sender}, nil

	case ActionStartAutoReload:
		id, err := target(req, sender)
		if err != nil {
			return nil, err
		}
		if err := h.timers.Start(ctx, id, req.IntervalDuration()); err != nil {
			return nil, err
		}
		return &SuccessResponse{Success: true}, nil

	case ActionStopAutoReload:
		id, err := target(req, sender)
		if err != nil {
			return nil, err
		}
		if err := h.timers.Stop(ctx, id); err != nil {
			return nil, err
		}
		return &SuccessResponse{Success: true}, nil

	case ActionStopAllTimers:
		if err := h.timers.StopAll(ctx); err != nil {
			return nil, err
		}
		return &SuccessResponse{Success: true}, nil

	case ActionSetReloadInterval:
		id, err := target(req, sender)
		if err != nil {
			return nil, err
		}
		if _, err := h.timers.SetInterval(ctx, id, req.IntervalDuration()); err != nil {
			return nil, err
		}
		return &SuccessResponse{Success: true}, nil

	case ActionGetReloadStatus:
		id, err := target(req, sender)
		if err != nil {
			return nil, err
		}
		return statusResponse(h.timers.Status(id)), nil

	case ActionTabKeepAlive:
		if sender == "" {
			return nil, ErrNoTab
		}
		h.heartbeats.Heartbeat(sender)
		return &ReceivedResponse{Received: true}, nil

	case ActionUpdateTabTitle:
		id, err := target(req, sender)
		if err != nil {
			return nil, err
		}
		if _, err := h.push(ctx, id, browser.TitleMessage(req.Active)); err != nil {
			return nil, err
		}
		return &SuccessResponse{Success: true}, nil

	case ActionTimerHeartbeat:
		id, err := target(req, sender)
		if err != nil {
			return nil, err
		}
		ts := req.Timestamp
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		reply, err := h.push(ctx, id, browser.HeartbeatMessage(ts))
		if err != nil {
			return nil, err
		}
		if !reply.Active {
			return &HeartbeatResponse{Active: false}, nil
		}
		return &HeartbeatResponse{Active: true, Timestamp: reply.Timestamp}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
}

// push forwards a background-to-tab message through the driver
func (h *Handler) push(ctx context.Context, id types.TabID, msg browser.Message) (*browser.Reply, error) {
	if h.driver == nil {
		return nil, errors.New("no browser connected")
	}
	reply, err := h.driver.Send(ctx, id, msg)
	if err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return reply, nil
}

// target picks the tab a command applies to: the explicit tabId, else the
// sender
func target(req *Request, sender types.TabID) (types.TabID, error) {
	if req.TabID != "" {
		return req.TabID.TabID(), nil
	}
	if sender != "" {
		return sender, nil
	}
	return "", ErrNoTab
}

func statusResponse(st registry.Status) *StatusResponse {
	active := st.Active || st.Pending
	resp := &StatusResponse{
		Active:   active,
		Interval: st.Interval.Milliseconds(),
	}
	if active {
		resp.TimeRemaining = CeilSeconds(st.Remaining)
	}
	return resp
}

func timerInfo(st registry.Status) TimerInfo {
	return TimerInfo{
		TabID:         st.TabID,
		Active:        st.Active,
		Pending:       st.Pending,
		Interval:      st.Interval.Milliseconds(),
		TimeRemaining: CeilSeconds(st.Remaining),
	}
}

// metricAction bounds the action label to known values
func metricAction(action string) string {
	switch action {
	case ActionGetCurrentTabID, ActionStartAutoReload, ActionStopAutoReload,
		ActionStopAllTimers, ActionSetReloadInterval, ActionGetReloadStatus,
		ActionTabKeepAlive, ActionUpdateTabTitle, ActionTimerHeartbeat:
		return action
	default:
		return "unknown"
	}
}
