package app

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealsync/internal/config"
	"mealsync/internal/household"
	"mealsync/internal/identity"
	"mealsync/internal/notify"
	"mealsync/internal/planner"
	"mealsync/internal/remote"
	"mealsync/internal/remote/remotetest"
	"mealsync/internal/shared"
	"mealsync/internal/shopping"
	"mealsync/internal/store"
)

func fakeBackend(t *testing.T) *remotetest.Server {
	t.Helper()
	srv := remotetest.NewServer(t)
	srv.Collection("/recipes", "recipes", "recipe")
	srv.Collection("/saved-recipes", "saved_recipes", "recipe")
	srv.Collection("/meal-plan", "meal_plan", "item")
	srv.Collection("/shopping/items", "items", "item")
	srv.Collection("/persons", "persons", "person")
	srv.Handle(http.MethodPost, "/auth/login", func(w http.ResponseWriter, r *http.Request) {
		remotetest.WriteJSON(w, http.StatusOK, remote.AuthResponse{
			Token: "token-1",
			User:  remote.User{ID: "u1", Email: "cook@example.com"},
		})
	})
	return srv
}

func testConfig(t *testing.T, srv *remotetest.Server, dataDir string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.APIURL = srv.URL
	cfg.DataDir = dataDir
	cfg.HealthTimeout = time.Second
	cfg.SyncAttempts = 1
	return &cfg
}

func openApp(t *testing.T, cfg *config.Config) (*App, *notify.Recorder) {
	t.Helper()
	toasts := &notify.Recorder{}
	a, err := NewApp(cfg, nil, toasts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, toasts
}

func chickenSalad() planner.Entry {
	return planner.Entry{RecipeName: "Chicken Salad", Day: "Monday", MealTime: "Lunch"}
}

func TestNewApp(t *testing.T) {
	ctx := context.Background()

	t.Run("SQLiteGuestDataSurvivesRestart", func(t *testing.T) {
		srv := fakeBackend(t)
		cfg := testConfig(t, srv, t.TempDir())

		a, _ := openApp(t, cfg)
		require.NoError(t, a.ContinueAsGuest(ctx))
		_, err := a.Shopping.Add(ctx, shopping.Item{Name: "Milk"})
		require.NoError(t, err)
		require.NoError(t, a.Close())

		_, err = os.Stat(filepath.Join(cfg.DataDir, DBFile))
		require.NoError(t, err)

		b, _ := openApp(t, cfg)
		mode, err := b.Init(ctx)
		require.NoError(t, err)
		assert.Equal(t, identity.ModeGuest, mode)
		require.Len(t, b.Shopping.Items(), 1)
		assert.Equal(t, "Milk", b.Shopping.Items()[0].Name)
		assert.Equal(t, "Dairy", b.Shopping.Items()[0].Category)
	})

	t.Run("FileBackend", func(t *testing.T) {
		srv := fakeBackend(t)
		cfg := testConfig(t, srv, t.TempDir())
		cfg.LocalBackend = config.BackendFile

		a, _ := openApp(t, cfg)
		require.NoError(t, a.ContinueAsGuest(ctx))
		_, err := a.People.Add(ctx, household.Person{Name: "Sam"})
		require.NoError(t, err)

		entries, err := os.ReadDir(filepath.Join(cfg.DataDir, "local"))
		require.NoError(t, err)
		assert.NotEmpty(t, entries)
	})

	t.Run("BackendDownStartsAsGuest", func(t *testing.T) {
		srv := fakeBackend(t)
		srv.SetDown(true)
		a, _ := openApp(t, testConfig(t, srv, t.TempDir()))

		mode, err := a.Init(ctx)
		require.NoError(t, err)
		assert.Equal(t, identity.ModeGuest, mode)
	})
}

func TestGenerateShoppingList(t *testing.T) {
	ctx := context.Background()
	srv := fakeBackend(t)
	a, _ := openApp(t, testConfig(t, srv, t.TempDir()))
	require.NoError(t, a.ContinueAsGuest(ctx))

	_, err := a.Plan.Add(ctx, chickenSalad())
	require.NoError(t, err)

	added, err := a.GenerateShoppingList(ctx)
	require.NoError(t, err)
	var names []string
	for _, it := range added {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Chicken Breast", "Mixed Greens", "Cherry Tomatoes", "Olive Oil", "Lemon"}, names)

	again, err := a.GenerateShoppingList(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, a.Shopping.Items(), 5)
}

func TestAuthenticated(t *testing.T) {
	ctx := context.Background()

	t.Run("LoginLoadsAccountData", func(t *testing.T) {
		srv := fakeBackend(t)
		srv.Seed("/shopping/items", map[string]any{"name": "Rice", "category": "Pantry"})
		a, _ := openApp(t, testConfig(t, srv, t.TempDir()))

		mode, err := a.Init(ctx)
		require.NoError(t, err)
		assert.Equal(t, identity.ModeLoading, mode)
		assert.Empty(t, a.Shopping.Items())

		require.NoError(t, a.Login(ctx, "cook@example.com", "secret"))
		assert.Equal(t, identity.ModeAuthenticated, a.Session.Mode())
		require.Len(t, a.Shopping.Items(), 1)
		assert.Equal(t, "Rice", a.Shopping.Items()[0].Name)

		require.NoError(t, a.Logout(ctx))
		assert.Empty(t, a.Shopping.Items())
	})

	t.Run("SyncAllReplaysOfflineChanges", func(t *testing.T) {
		srv := fakeBackend(t)
		a, _ := openApp(t, testConfig(t, srv, t.TempDir()))
		_, err := a.Init(ctx)
		require.NoError(t, err)
		require.NoError(t, a.Login(ctx, "cook@example.com", "secret"))

		srv.SetDown(true)
		res, err := a.Shopping.Add(ctx, shopping.Item{Name: "Eggs"})
		require.NoError(t, err)
		assert.Equal(t, store.OutcomeSavedLocally, res.Outcome)

		st, err := a.Status(ctx, 7)
		require.NoError(t, err)
		assert.False(t, st.Reachable)
		assert.Equal(t, 1, st.Pending[a.Shopping.Store().Kind()])

		srv.SetDown(false)
		report, err := a.SyncAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Created)
		assert.Equal(t, []string{"Eggs"}, srv.Names("/shopping/items"))
		posted := srv.Posted("/shopping/items")
		require.Len(t, posted, 1)
		assert.NotContains(t, posted[0], "id")
		assert.False(t, a.Shopping.Items()[0].ID.IsTemp())

		st, err = a.Status(ctx, 7)
		require.NoError(t, err)
		assert.True(t, st.Reachable)
		assert.Empty(t, st.Pending)
		assert.NotEmpty(t, st.Daily)
	})

	t.Run("SyncAllIgnoredForGuests", func(t *testing.T) {
		srv := fakeBackend(t)
		a, _ := openApp(t, testConfig(t, srv, t.TempDir()))
		require.NoError(t, a.ContinueAsGuest(ctx))

		report, err := a.SyncAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Applied())
	})
}

func TestImportGuest(t *testing.T) {
	ctx := context.Background()
	srv := fakeBackend(t)
	a, _ := openApp(t, testConfig(t, srv, t.TempDir()))

	require.NoError(t, a.ContinueAsGuest(ctx))
	_, err := a.Shopping.Add(ctx, shopping.Item{Name: "Milk"})
	require.NoError(t, err)

	_, err = a.ImportGuest(ctx)
	assert.True(t, shared.IsValidation(err))

	require.NoError(t, a.Login(ctx, "cook@example.com", "secret"))
	assert.Empty(t, srv.Items("/shopping/items"), "login must not migrate guest data")

	report, err := a.ImportGuest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, []string{"Milk"}, srv.Names("/shopping/items"))
	assert.NotContains(t, srv.Posted("/shopping/items")[0], "id")
}

func TestWatch(t *testing.T) {
	srv := fakeBackend(t)
	cfg := testConfig(t, srv, t.TempDir())
	cfg.SyncInterval = 10 * time.Millisecond
	cfg.NotifyInterval = 10 * time.Millisecond
	cfg.IdleReminder = 50 * time.Millisecond
	a, toasts := openApp(t, cfg)
	require.NoError(t, a.ContinueAsGuest(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()

	_, err := a.Plan.Add(ctx, chickenSalad())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(a.Shopping.Items()) == 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		for _, title := range toasts.Titles() {
			if title == "Time to plan" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchFollowsSelectedWeek(t *testing.T) {
	srv := fakeBackend(t)
	cfg := testConfig(t, srv, t.TempDir())
	a, _ := openApp(t, cfg)
	require.NoError(t, a.ContinueAsGuest(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()

	omelette := planner.Entry{RecipeName: "Omelette", Day: "Tuesday", MealTime: "Breakfast"}
	_, err := a.Plan.Add(ctx, omelette)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(a.Shopping.Items()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	for _, it := range a.Shopping.Items() {
		_, err := a.Shopping.Remove(ctx, it.ID)
		require.NoError(t, err)
	}

	require.NoError(t, a.SelectWeek(ctx, "Week - 2"))
	_, err = a.Plan.Add(ctx, chickenSalad())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(a.Shopping.Items()) == 5
	}, 2*time.Second, 10*time.Millisecond)
	var sources []string
	for _, it := range a.Shopping.Items() {
		sources = append(sources, it.SourceMeal)
	}
	assert.NotContains(t, sources, "Omelette")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchIdentityChangesDoNotBlock(t *testing.T) {
	srv := fakeBackend(t)
	a, _ := openApp(t, testConfig(t, srv, t.TempDir()))
	require.NoError(t, a.ContinueAsGuest(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()

	switched := make(chan struct{})
	go func() {
		defer close(switched)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					_ = a.Session.Logout(ctx)
					_ = a.Session.ContinueAsGuest(ctx)
				}
			}()
		}
		wg.Wait()
	}()
	select {
	case <-switched:
	case <-time.After(2 * time.Second):
		t.Fatal("identity changes blocked on Watch")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
