package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// workspace holds the table state of one admin session.
type workspace struct {
	tabs map[TabID]grid
}

func newWorkspace(store Store, now func() time.Time) (*workspace, error) {
	tabs, err := newTabs(store, now)
	if err != nil {
		return nil, err
	}
	return &workspace{tabs: tabs}, nil
}

func (w *workspace) tab(id TabID) (grid, error) {
	g, ok := w.tabs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTab, id)
	}
	return g, nil
}

// preload loads every tab concurrently. A failing tab is left in the Failed
// state and does not stop the others.
func (w *workspace) preload(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(len(Tabs))
	for _, id := range Tabs {
		t := w.tabs[id]
		g.Go(func() error {
			if err := t.Reload(ctx); err != nil {
				slog.Warn("Failed to preload admin tab", "tab", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
