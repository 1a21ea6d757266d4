package household

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"mealsync/internal/identity"
	"mealsync/internal/localstore"
	"mealsync/internal/logging"
	"mealsync/internal/metrics"
	"mealsync/internal/notify"
	"mealsync/internal/shared"
	"mealsync/internal/store"
)

// Local storage keys.
const (
	KeyGuestPreferences   = "guest_preferences"
	KeyAccountPreferences = "account_preferences"
	keyPreferencesPending = "account_preferences_pending"
)

// ViewModes lists the accepted plan layouts.
var ViewModes = []string{"list", "grid"}

// Preferences are the user's display settings.
type Preferences struct {
	SelectedWeek string `json:"selected_week"`
	ViewMode     string `json:"view_mode"`
}

// DefaultPreferences returns the settings of a new user.
func DefaultPreferences() Preferences {
	return Preferences{SelectedWeek: "Week - 1", ViewMode: "list"}
}

func (p Preferences) withDefaults() Preferences {
	d := DefaultPreferences()
	if p.SelectedWeek == "" {
		p.SelectedWeek = d.SelectedWeek
	}
	if p.ViewMode == "" {
		p.ViewMode = d.ViewMode
	}
	return p
}

// Validate checks the view mode is one the app can show.
func (p Preferences) Validate() error {
	if !slices.Contains(ViewModes, p.ViewMode) {
		return shared.Validation("unknown view mode %q", p.ViewMode)
	}
	return nil
}

// Doer sends a JSON request to the backend. *remote.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// Settings keeps the preferences in memory and persists them like any other
// record: to the backend when signed in, to local storage otherwise.
type Settings struct {
	client   Doer
	health   store.Health
	identity store.Identity
	local    *localstore.Store
	notifier notify.Notifier
	recorder store.Recorder
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.RWMutex
	prefs Preferences
}

// NewSettings creates Settings holding the defaults.
func NewSettings(client Doer, deps store.Deps) *Settings {
	n := deps.Notifier
	if n == nil {
		n = notify.NewLog(deps.Logger)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Settings{
		client:   client,
		health:   deps.Health,
		identity: deps.Identity,
		local:    deps.Local,
		notifier: n,
		recorder: deps.Recorder,
		logger:   logging.OrNop(deps.Logger),
		now:      now,
		prefs:    DefaultPreferences(),
	}
}

// Get returns the current preferences.
func (s *Settings) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *Settings) set(p Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p.withDefaults()
}

// Load rehydrates the preferences for the current identity.
func (s *Settings) Load(ctx context.Context) (Preferences, error) {
	switch s.identity.Mode() {
	case identity.ModeGuest:
		p, _ := localstore.Value[Preferences](ctx, s.local, KeyGuestPreferences)
		s.set(p)
	case identity.ModeAuthenticated:
		var resp struct {
			Preferences Preferences `json:"preferences"`
		}
		if err := s.client.Do(ctx, http.MethodGet, "/preferences", nil, &resp); err != nil {
			s.logger.Warn("failed to load preferences, using cached copy", zap.Error(err))
			p, _ := localstore.Value[Preferences](ctx, s.local, KeyAccountPreferences)
			s.set(p)
			break
		}
		s.set(resp.Preferences)
		s.cache(ctx, KeyAccountPreferences)
	default:
		s.set(Preferences{})
	}
	return s.Get(), nil
}

// Update merges the non-empty fields of change into the preferences and
// saves them.
func (s *Settings) Update(ctx context.Context, change Preferences) (store.Outcome, error) {
	mode := s.identity.Mode()
	start := s.now()
	if mode == identity.ModeLoading {
		return store.OutcomeNone, shared.Validation("sign in or continue as guest to change preferences")
	}

	next := s.Get()
	if change.SelectedWeek != "" {
		next.SelectedWeek = change.SelectedWeek
	}
	if change.ViewMode != "" {
		next.ViewMode = change.ViewMode
	}
	if err := next.Validate(); err != nil {
		return store.OutcomeNone, err
	}
	s.set(next)

	if mode == identity.ModeGuest {
		s.cache(ctx, KeyGuestPreferences)
		return s.finish(ctx, start, store.OutcomeSavedLocally), nil
	}

	s.cache(ctx, KeyAccountPreferences)
	if err := s.push(ctx); err != nil {
		s.logger.Warn("failed to save preferences to backend", zap.Error(err))
		if err := s.local.PutValue(ctx, keyPreferencesPending, true); err != nil {
			s.logger.Error("failed to flag preferences for sync", zap.Error(err))
		}
		return s.finish(ctx, start, store.OutcomeSavedLocally), nil
	}
	return s.finish(ctx, start, store.OutcomeSavedToAccount), nil
}

// Sync pushes preferences changed while the backend was unreachable.
// It reports whether anything was sent.
func (s *Settings) Sync(ctx context.Context) (bool, error) {
	if s.identity.Mode() != identity.ModeAuthenticated {
		return false, nil
	}
	if pending, _ := localstore.Value[bool](ctx, s.local, keyPreferencesPending); !pending {
		return false, nil
	}
	if err := s.push(ctx); err != nil {
		return false, err
	}
	return true, s.local.Remove(ctx, keyPreferencesPending)
}

func (s *Settings) push(ctx context.Context) error {
	if !s.health.CheckHealth(ctx) {
		return &shared.Error{Kind: shared.KindNetwork, Op: "save preferences", Message: "backend unreachable"}
	}
	return s.client.Do(ctx, http.MethodPut, "/preferences", s.Get(), nil)
}

func (s *Settings) cache(ctx context.Context, key string) {
	if err := s.local.PutValue(ctx, key, s.Get()); err != nil {
		s.logger.Error("failed to persist preferences", zap.String("key", key), zap.Error(err))
	}
}

func (s *Settings) finish(ctx context.Context, start time.Time, o store.Outcome) store.Outcome {
	now := s.now()
	t := notify.Toast{Title: o.String(), Message: "preferences", Level: o.Level(), At: now}
	if err := s.notifier.Notify(ctx, t); err != nil {
		s.logger.Warn("failed to deliver toast", zap.Error(err))
	}
	if s.recorder != nil {
		event := metrics.SyncEvent{Kind: "preferences", Operation: "update", Outcome: o.String(), Latency: now.Sub(start), Timestamp: now}
		if err := s.recorder.Record(ctx, event); err != nil {
			s.logger.Warn("failed to record sync event", zap.Error(err))
		}
	}
	return o
}
