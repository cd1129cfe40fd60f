package registry

import (
	"context"
	"errors"

	"github.com/cuemby/tabwarden/pkg/browser"
	"github.com/cuemby/tabwarden/pkg/types"
)

// Browser calls come in two kinds. A lookup's error drives a state
// transition and is returned. A best-effort call's error is logged at debug
// and dropped. Keep the two on separate helpers.

// lookupTab fetches the tab. Any error means the tab is gone.
func (r *Registry) lookupTab(ctx context.Context, id types.TabID) (*browser.Tab, error) {
	return r.driver.GetTab(ctx, id)
}

// reload reloads the tab, retrying up to cfg.ReloadRetries times. A missing
// tab is never retried.
func (r *Registry) reload(ctx context.Context, id types.TabID) error {
	var err error
	for attempt := 0; attempt <= r.cfg.ReloadRetries; attempt++ {
		if err = r.driver.Reload(ctx, id); err == nil {
			return nil
		}
		if isGone(err) || ctx.Err() != nil {
			return err
		}
		r.logger.Debug().
			Err(err).
			Str("tab_id", id.String()).
			Int("attempt", attempt+1).
			Msg("Reload attempt failed")
	}
	return err
}

// bestEffort runs fn with its own call timeout and drops any error
func (r *Registry) bestEffort(ctx context.Context, id types.TabID, call string, fn func(context.Context) error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	if err := fn(ctx); err != nil {
		r.logger.Debug().
			Err(err).
			Str("tab_id", id.String()).
			Str("call", call).
			Msg("Best-effort call failed")
	}
}

func (r *Registry) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, r.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func isGone(err error) bool {
	return errors.Is(err, browser.ErrTabNotFound)
}
