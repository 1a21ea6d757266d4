package planner

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mealsync/internal/identity"
	"mealsync/internal/localstore"
	"mealsync/internal/shared"
	"mealsync/internal/store"
	"mealsync/internal/store/storetest"
)

func newPlan(t *testing.T, mode identity.Mode) (*Plan, *storetest.Env) {
	t.Helper()
	env := storetest.New(t, mode)
	env.Server.Collection("/meal-plan", "meal_plan", "item")
	return NewPlan(env.Client, env.Deps()), env
}

func names(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.RecipeName)
	}
	return out
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"Valid", Entry{RecipeName: "Soup", Day: "Monday", MealTime: "Lunch"}, false},
		{"MissingName", Entry{Day: "Monday", MealTime: "Lunch"}, true},
		{"UnknownDay", Entry{RecipeName: "Soup", Day: "Funday", MealTime: "Lunch"}, true},
		{"LowercaseDay", Entry{RecipeName: "Soup", Day: "monday", MealTime: "Lunch"}, true},
		{"UnknownMealTime", Entry{RecipeName: "Soup", Day: "Monday", MealTime: "Brunch"}, true},
		{"NegativeServings", Entry{RecipeName: "Soup", Day: "Monday", MealTime: "Lunch", Servings: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr {
				assert.True(t, shared.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}

	day, ok := NormalizeDay(" tuesday ")
	assert.True(t, ok)
	assert.Equal(t, "Tuesday", day)
	_, ok = NormalizeMealTime("elevenses")
	assert.False(t, ok)
}

func TestPlanGuest(t *testing.T) {
	ctx := context.Background()
	plan, env := newPlan(t, identity.ModeGuest)

	_, err := plan.Add(ctx, Entry{RecipeName: "Chicken Salad", Day: "Monday", MealTime: "Lunch"})
	require.NoError(t, err)
	_, err = plan.Add(ctx, Entry{RecipeName: "Porridge", Day: "Monday", MealTime: "Breakfast"})
	require.NoError(t, err)
	_, err = plan.Add(ctx, Entry{RecipeName: "Tacos", Day: "Sunday", MealTime: "Dinner"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Porridge", "Chicken Salad", "Tacos"}, names(plan.Entries()))
	assert.Equal(t, []string{"Porridge", "Chicken Salad"}, names(plan.MealsForDay("Monday")))

	entries := plan.Entries()
	assert.Equal(t, DefaultWeek, entries[0].Week)
	assert.Equal(t, 1, entries[0].Servings)

	t.Run("SameSlotReplaces", func(t *testing.T) {
		res, err := plan.Add(ctx, Entry{RecipeName: "Pasta", Day: "Monday", MealTime: "Lunch"})
		require.NoError(t, err)
		assert.Equal(t, entries[1].ID, res.Item.ID)
		assert.Equal(t, []string{"Porridge", "Pasta"}, names(plan.MealsForDay("Monday")))

		stored := localstore.Read[Entry](ctx, env.Local, KeyGuestPlanPrefix+DefaultWeek)
		assert.Len(t, stored, 3)
	})

	t.Run("WeeksAreSeparate", func(t *testing.T) {
		require.NoError(t, plan.SetWeek("Week - 2"))
		require.NoError(t, plan.Load(ctx))
		assert.Empty(t, plan.Entries())

		_, err := plan.Add(ctx, Entry{RecipeName: "Curry", Day: "Friday", MealTime: "Dinner"})
		require.NoError(t, err)
		assert.Len(t, localstore.Read[Entry](ctx, env.Local, KeyGuestPlanPrefix+"Week - 2"), 1)

		require.NoError(t, plan.SetWeek(DefaultWeek))
		assert.Len(t, plan.Entries(), 3)
	})

	t.Run("Remove", func(t *testing.T) {
		res, err := plan.Remove(ctx, entries[2].ID)
		require.NoError(t, err)
		assert.Equal(t, store.OutcomeRemoved, res.Outcome)
		assert.Empty(t, plan.MealsForDay("Sunday"))
	})

	assert.Error(t, plan.SetWeek("  "))
	assert.Empty(t, env.Server.Requests())
}

func TestPlanSubscribe(t *testing.T) {
	ctx := context.Background()
	plan, _ := newPlan(t, identity.ModeGuest)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	subCtx, cancel := context.WithCancel(ctx)
	updates := plan.Subscribe(subCtx)

	waitFor := func(t *testing.T, want ...string) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case snap := <-updates:
				if slices.Equal(names(snap), want) {
					return
				}
			case <-deadline:
				t.Fatalf("no snapshot with %v", want)
			}
		}
	}

	waitFor(t)
	_, err := plan.Add(ctx, Entry{RecipeName: "Soup", Day: "Monday", MealTime: "Lunch"})
	require.NoError(t, err)
	waitFor(t, "Soup")

	t.Run("FollowsWeekChange", func(t *testing.T) {
		require.NoError(t, plan.SetWeek("Week - 2"))
		require.NoError(t, plan.Load(ctx))
		waitFor(t)

		_, err := plan.Add(ctx, Entry{RecipeName: "Chicken Salad", Day: "Monday", MealTime: "Lunch"})
		require.NoError(t, err)
		waitFor(t, "Chicken Salad")

		require.NoError(t, plan.SetWeek(DefaultWeek))
		waitFor(t, "Soup")
	})

	cancel()
	for range updates {
	}
}

func TestPlanAuthenticated(t *testing.T) {
	ctx := context.Background()
	plan, env := newPlan(t, identity.ModeAuthenticated)
	env.Server.Seed("/meal-plan",
		map[string]any{"recipe_name": "Omelette", "day": "Tuesday", "meal_time": "Breakfast", "week": DefaultWeek},
		map[string]any{"recipe_name": "Risotto", "day": "Tuesday", "meal_time": "Dinner", "week": "Week - 2"},
	)

	require.NoError(t, plan.Load(ctx))
	assert.Equal(t, []string{"Omelette"}, names(plan.Entries()))
	assert.Contains(t, env.Server.Requests(), "GET /meal-plan?week=Week+-+1")

	res, err := plan.Add(ctx, Entry{RecipeName: "Chicken Salad", Day: "Monday", MealTime: "Lunch"})
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeSavedToAccount, res.Outcome)
	assert.False(t, res.Item.ID.IsTemp())

	items := env.Server.Items("/meal-plan")
	require.Len(t, items, 3)
	assert.Equal(t, "Monday", items[2]["day"])
	assert.Equal(t, "Lunch", items[2]["meal_time"])
	assert.Equal(t, DefaultWeek, items[2]["week"])

	t.Run("OfflineChangesSyncAcrossWeeks", func(t *testing.T) {
		env.Server.SetDown(true)
		require.NoError(t, plan.SetWeek("Week - 3"))
		_, err := plan.Add(ctx, Entry{RecipeName: "Stew", Day: "Sunday", MealTime: "Dinner"})
		require.NoError(t, err)
		require.NoError(t, plan.SetWeek(DefaultWeek))

		env.Server.SetDown(false)
		report, err := plan.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Created)
		assert.Len(t, env.Server.Items("/meal-plan"), 4)
	})
}
