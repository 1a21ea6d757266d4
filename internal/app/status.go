package app

import (
	"context"
	"fmt"

	"mealsync/internal/identity"
	"mealsync/internal/metrics"
	"mealsync/internal/remote"
	"mealsync/internal/store"
)

// Status describes the session, the queued changes and the local install.
type Status struct {
	Mode      identity.Mode
	User      *remote.User
	Offline   bool
	Reachable bool
	// Pending counts queued changes per collection kind.
	Pending map[string]int
	System  metrics.SysHealth
	Daily   []metrics.DailySummary
}

// Status reports the current state. days limits the sync summary.
func (a *App) Status(ctx context.Context, days int) (Status, error) {
	st := Status{
		Mode:      a.Session.Mode(),
		User:      a.Session.User(),
		Offline:   a.Session.Offline(),
		Reachable: a.Client.CheckHealth(ctx),
		Pending:   make(map[string]int),
		System:    metrics.GetSysHealth(a.cfg.DataDir),
	}
	countPending(ctx, st.Pending, a.Recipes.Saved())
	countPending(ctx, st.Pending, a.Recipes.Created())
	countPending(ctx, st.Pending, a.Plan.Store())
	countPending(ctx, st.Pending, a.Shopping.Store())
	countPending(ctx, st.Pending, a.People.Store())

	daily, err := a.Metrics.GetDailySummary(ctx, days)
	if err != nil {
		return st, fmt.Errorf("failed to load sync summary: %w", err)
	}
	st.Daily = daily
	return st, nil
}

// CleanupMetrics removes sync events older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	return a.Metrics.Cleanup(ctx, days)
}

func countPending[T store.Record[T]](ctx context.Context, into map[string]int, s *store.Store[T]) {
	if n := len(s.Pending(ctx)); n > 0 {
		into[s.Kind()] += n
	}
}
