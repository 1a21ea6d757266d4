package app

import (
	"context"

	"go.uber.org/zap"

	"mealsync/internal/identity"
	"mealsync/internal/notify"
	"mealsync/internal/scheduler"
)

// Watch runs the background jobs until ctx is done:
//   - pending changes are replayed every SyncInterval,
//   - template notifications are polled every NotifyInterval,
//   - the shopping list follows the meal plan of the selected week,
//   - collections reload when the identity changes,
//   - a reminder fires after IdleReminder without plan changes.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	idle := scheduler.NewInactivity(a.cfg.IdleReminder, func() {
		a.toast(ctx, notify.Toast{
			Title:   "Time to plan",
			Message: "Your meal plan has not changed in a while.",
			Level:   notify.LevelInfo,
		})
	})
	defer idle.Stop()

	modes := make(chan identity.Mode, 1)
	unsubscribe := a.Session.OnChange(func(m identity.Mode) {
		select {
		case <-modes:
		default:
		}
		select {
		case modes <- m:
		default:
		}
	})
	defer unsubscribe()

	tasks := []*scheduler.Task{
		scheduler.Every("sync", a.cfg.SyncInterval, a.syncTick, a.logger),
		scheduler.Every("template-updates", a.cfg.NotifyInterval, a.templateTick, a.logger),
	}
	for _, t := range tasks {
		t.Start(ctx)
	}
	defer func() {
		for _, t := range tasks {
			t.Stop()
		}
	}()

	meals := a.Plan.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-modes:
			a.logger.Info("identity changed, reloading", zap.Stringer("mode", m))
			if err := a.LoadAll(ctx); err != nil {
				a.logger.Error("failed to reload collections", zap.Error(err))
			}
		case _, ok := <-meals:
			if !ok {
				return nil
			}
			idle.Touch()
			a.followPlan(ctx)
		}
	}
}

func (a *App) syncTick(ctx context.Context) {
	if _, err := a.SyncAll(ctx); err != nil {
		a.logger.Warn("background sync failed", zap.Error(err))
	}
}

func (a *App) templateTick(ctx context.Context) {
	if a.Session.Mode() != identity.ModeAuthenticated {
		return
	}
	notes, err := a.Templates.CheckUpdates(ctx)
	if err != nil {
		a.logger.Debug("failed to check template updates", zap.Error(err))
		return
	}
	for _, n := range notes {
		title := "New meal plan available"
		if n.Action == "deleted" {
			title = "Meal plan removed"
		}
		a.toast(ctx, notify.Toast{Title: title, Message: n.MealPlanData.Name, Level: notify.LevelInfo})
	}
}

func (a *App) followPlan(ctx context.Context) {
	if a.Session.Mode() == identity.ModeLoading {
		return
	}
	added, err := a.GenerateShoppingList(ctx)
	if err != nil {
		a.logger.Warn("failed to update shopping list", zap.Error(err))
		return
	}
	if len(added) > 0 {
		a.logger.Info("shopping list updated from meal plan", zap.Int("added", len(added)))
	}
}
