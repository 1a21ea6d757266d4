// Package app wires the identity session, the resource stores and the
// background jobs into one application.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"mealsync/internal/config"
	"mealsync/internal/database"
	"mealsync/internal/household"
	"mealsync/internal/identity"
	"mealsync/internal/localstore"
	"mealsync/internal/logging"
	"mealsync/internal/metrics"
	"mealsync/internal/notify"
	"mealsync/internal/planner"
	"mealsync/internal/recipe"
	"mealsync/internal/remote"
	"mealsync/internal/shared"
	"mealsync/internal/shopping"
	"mealsync/internal/store"
)

// DBFile is the SQLite database created under the data directory.
const DBFile = "mealsync.db"

// App holds the application's dependencies.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *database.DB
	notifier notify.Notifier

	Local     *localstore.Store
	Client    *remote.Client
	Session   *identity.Session
	Metrics   *metrics.Store
	Recipes   *recipe.Book
	Importer  *recipe.Importer
	Plan      *planner.Plan
	Templates *planner.Templates
	Shopping  *shopping.List
	People    *household.People
	Settings  *household.Settings
}

// NewApp opens the local database and builds every service. Toasts go to the
// log, to out when it is not nil, and to Telegram when it is configured.
func NewApp(cfg *config.Config, logger *zap.Logger, out notify.Notifier) (*App, error) {
	logger = logging.OrNop(logger)

	db, err := database.NewDB(filepath.Join(cfg.DataDir, DBFile), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	backend, err := newBackend(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	local := localstore.New(backend, logger)

	client := remote.NewClient(cfg, logger)
	session := identity.NewSession(local, client, logger)
	client.SetTokenSource(session.Token)

	sinks := notify.Fanout{notify.NewLog(logger)}
	if out != nil {
		sinks = append(sinks, out)
	}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg)
		if err != nil {
			logger.Warn("telegram toasts disabled", zap.Error(err))
		} else {
			sinks = append(sinks, tg)
		}
	}

	metricsStore := metrics.NewStore(db.SQL)
	deps := store.Deps{
		Health:       client,
		Identity:     session,
		Local:        local,
		Notifier:     sinks,
		Recorder:     metricsStore,
		Logger:       logger,
		SyncAttempts: cfg.SyncAttempts,
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		notifier:  sinks,
		Local:     local,
		Client:    client,
		Session:   session,
		Metrics:   metricsStore,
		Recipes:   recipe.NewBook(client, deps),
		Importer:  recipe.NewImporter(),
		Plan:      planner.NewPlan(client, deps),
		Templates: planner.NewTemplates(client, logger),
		Shopping:  shopping.NewList(client, deps),
		People:    household.NewPeople(client, deps),
		Settings:  household.NewSettings(client, deps),
	}, nil
}

func newBackend(cfg *config.Config, db *database.DB) (localstore.Backend, error) {
	switch cfg.LocalBackend {
	case config.BackendFile:
		backend, err := localstore.NewFileBackend(afero.NewOsFs(), filepath.Join(cfg.DataDir, "local"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file backend: %w", err)
		}
		return backend, nil
	default:
		return localstore.NewSQLiteBackend(db.SQL), nil
	}
}

// Close releases the database.
func (a *App) Close() error {
	return a.db.Close()
}

// Init restores the previous identity and loads its data.
func (a *App) Init(ctx context.Context) (identity.Mode, error) {
	mode := a.Session.Init(ctx)
	return mode, a.LoadAll(ctx)
}

// LoadAll rehydrates every collection for the current identity. Preferences
// load first because they pick the week the plan shows.
func (a *App) LoadAll(ctx context.Context) error {
	prefs, err := a.Settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	if err := a.Plan.SetWeek(prefs.SelectedWeek); err != nil {
		return err
	}

	p := pool.New().WithContext(ctx)
	p.Go(a.Recipes.Load)
	p.Go(a.Plan.Load)
	p.Go(a.Shopping.Load)
	p.Go(a.People.Load)
	if err := p.Wait(); err != nil {
		return fmt.Errorf("failed to load collections: %w", err)
	}
	return nil
}

// Login signs in and reloads every collection for the account.
func (a *App) Login(ctx context.Context, email, password string) error {
	if err := a.Session.Login(ctx, email, password); err != nil {
		return err
	}
	return a.LoadAll(ctx)
}

// Register creates an account, signs in and reloads.
func (a *App) Register(ctx context.Context, name, email, password string) error {
	if err := a.Session.Register(ctx, name, email, password); err != nil {
		return err
	}
	return a.LoadAll(ctx)
}

// Logout signs out. Collections are emptied until the next login or guest
// session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	return a.LoadAll(ctx)
}

// ContinueAsGuest switches to guest mode and loads the guest data.
func (a *App) ContinueAsGuest(ctx context.Context) error {
	if err := a.Session.ContinueAsGuest(ctx); err != nil {
		return err
	}
	return a.LoadAll(ctx)
}

// SelectWeek changes the week shown by the plan and remembers the choice.
func (a *App) SelectWeek(ctx context.Context, week string) error {
	if _, err := a.Settings.Update(ctx, household.Preferences{SelectedWeek: week}); err != nil {
		return err
	}
	if err := a.Plan.SetWeek(week); err != nil {
		return err
	}
	return a.Plan.Load(ctx)
}

// GenerateShoppingList adds the ingredients of the current week's meals that
// the list does not have yet.
func (a *App) GenerateShoppingList(ctx context.Context) ([]shopping.Item, error) {
	return a.Shopping.Generate(ctx, a.Plan.Entries(), a.Recipes.Catalog())
}

// SyncAll replays the pending changes of every collection. It does nothing
// unless signed in.
func (a *App) SyncAll(ctx context.Context) (store.SyncReport, error) {
	if a.Session.Mode() != identity.ModeAuthenticated {
		return store.SyncReport{}, nil
	}

	p := pool.NewWithResults[store.SyncReport]().WithContext(ctx)
	p.Go(a.Recipes.Sync)
	p.Go(a.Plan.Sync)
	p.Go(a.Shopping.Sync)
	p.Go(a.People.Sync)
	p.Go(func(ctx context.Context) (store.SyncReport, error) {
		sent, err := a.Settings.Sync(ctx)
		if sent {
			return store.SyncReport{Updated: 1}, err
		}
		return store.SyncReport{}, err
	})
	reports, err := p.Wait()

	var total store.SyncReport
	for _, r := range reports {
		total = total.Add(r)
	}
	if err != nil {
		return total, fmt.Errorf("failed to sync: %w", err)
	}
	if total.Applied() > 0 {
		a.logger.Info("synced pending changes",
			zap.Int("created", total.Created),
			zap.Int("updated", total.Updated),
			zap.Int("deleted", total.Deleted),
			zap.Int("remaining", total.Remaining))
	}
	return total, nil
}

// ImportGuest copies the guest data of this device into the signed-in
// account. Collections are imported one after the other so that recipes
// exist before the meals that point at them.
func (a *App) ImportGuest(ctx context.Context) (store.SyncReport, error) {
	if a.Session.Mode() != identity.ModeAuthenticated {
		return store.SyncReport{}, shared.Validation("sign in to import guest data")
	}

	var total store.SyncReport
	steps := []func(context.Context) (store.SyncReport, error){
		a.Recipes.AdoptGuest,
		a.Plan.AdoptGuest,
		a.Shopping.AdoptGuest,
		a.People.AdoptGuest,
	}
	var errs []error
	for _, step := range steps {
		r, err := step(ctx)
		total = total.Add(r)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return total, fmt.Errorf("failed to import guest data: %w", err)
	}
	return total, nil
}

func (a *App) toast(ctx context.Context, t notify.Toast) {
	if err := a.notifier.Notify(ctx, t); err != nil {
		a.logger.Warn("failed to deliver toast", zap.String("title", t.Title), zap.Error(err))
	}
}
