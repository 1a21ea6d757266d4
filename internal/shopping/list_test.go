package shopping

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealsync/internal/identity"
	"mealsync/internal/localstore"
	"mealsync/internal/planner"
	"mealsync/internal/remote/remotetest"
	"mealsync/internal/shared"
	"mealsync/internal/store"
	"mealsync/internal/store/storetest"
)

func newList(t *testing.T, mode identity.Mode) (*List, *storetest.Env) {
	t.Helper()
	env := storetest.New(t, mode)
	env.Server.Collection("/shopping/items", "items", "item")
	return NewList(env.Client, env.Deps()), env
}

func itemNames(items []Item) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestListGuest(t *testing.T) {
	ctx := context.Background()

	t.Run("AddSurvivesReload", func(t *testing.T) {
		list, env := newList(t, identity.ModeGuest)
		res, err := list.Add(ctx, Item{Name: "Milk", Category: "Dairy"})
		require.NoError(t, err)
		assert.Equal(t, store.OutcomeSavedLocally, res.Outcome)
		assert.Equal(t, []string{"Milk"}, itemNames(list.Items()))

		reloaded := NewList(env.Client, env.Deps())
		require.NoError(t, reloaded.Load(ctx))
		assert.Equal(t, []string{"Milk"}, itemNames(reloaded.Items()))
		assert.Len(t, localstore.Read[Item](ctx, env.Local, KeyGuestItems), 1)
	})

	t.Run("AddFillsCategory", func(t *testing.T) {
		list, _ := newList(t, identity.ModeGuest)
		res, err := list.Add(ctx, Item{Name: " Cherry Tomatoes "})
		require.NoError(t, err)
		assert.Equal(t, "Cherry Tomatoes", res.Item.Name)
		assert.Equal(t, "Vegetables", res.Item.Category)
	})

	t.Run("Validation", func(t *testing.T) {
		list, _ := newList(t, identity.ModeGuest)
		_, err := list.Add(ctx, Item{Name: "", Category: "Dairy"})
		assert.True(t, shared.IsValidation(err))
		_, err = list.Add(ctx, Item{Name: "Soap", Category: "Household"})
		assert.True(t, shared.IsValidation(err))
		_, err = list.Toggle(ctx, "nope")
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("Toggle", func(t *testing.T) {
		list, _ := newList(t, identity.ModeGuest)
		res, err := list.Add(ctx, Item{Name: "Bread"})
		require.NoError(t, err)
		toggled, err := list.Toggle(ctx, res.Item.ID)
		require.NoError(t, err)
		assert.True(t, toggled.Item.Checked)
		it, ok := list.Store().Get(res.Item.ID)
		require.True(t, ok)
		assert.True(t, it.Checked)
	})
}

func TestListRemoveIsImmediate(t *testing.T) {
	ctx := context.Background()
	list, env := newList(t, identity.ModeAuthenticated)
	env.Server.Seed("/shopping/items", map[string]any{"name": "Milk", "category": "Dairy"})
	require.NoError(t, list.Load(ctx))
	require.Len(t, list.Items(), 1)
	id := list.Items()[0].ID

	env.Server.Handle(http.MethodDelete, "/shopping/items/"+id.String(), func(w http.ResponseWriter, _ *http.Request) {
		remotetest.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "database locked"})
	})

	res, err := list.Remove(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeRemoved, res.Outcome)
	assert.Equal(t, shared.KindServer, shared.KindOf(res.Err))
	assert.Empty(t, list.Items())
	assert.Len(t, list.Store().Pending(ctx), 1)
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	entries := []planner.Entry{{RecipeName: "Chicken Salad", Day: "Monday", MealTime: "Lunch"}}

	list, _ := newList(t, identity.ModeGuest)
	_, err := list.Add(ctx, Item{Name: "lemon", Category: "Fruits"})
	require.NoError(t, err)

	added, err := list.Generate(ctx, entries, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chicken Breast", "Mixed Greens", "Cherry Tomatoes", "Olive Oil"}, itemNames(added))
	assert.Equal(t, "Chicken Salad", added[0].SourceMeal)
	assert.Len(t, list.Items(), 5)

	t.Run("Idempotent", func(t *testing.T) {
		added, err := list.Generate(ctx, entries, nil)
		require.NoError(t, err)
		assert.Empty(t, added)
		assert.Len(t, list.Items(), 5)
	})

	t.Run("DeletedNamesStayDeleted", func(t *testing.T) {
		var greens shared.ID
		for _, it := range list.Items() {
			if it.Name == "Mixed Greens" {
				greens = it.ID
			}
		}
		_, err := list.Remove(ctx, greens)
		require.NoError(t, err)

		added, err := list.Generate(ctx, entries, nil)
		require.NoError(t, err)
		assert.Empty(t, added)

		_, err = list.Add(ctx, Item{Name: "Mixed greens"})
		require.NoError(t, err)
		assert.Len(t, list.Items(), 5)
	})
}
