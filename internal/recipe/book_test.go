package recipe

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealsync/internal/identity"
	"mealsync/internal/localstore"
	"mealsync/internal/shared"
	"mealsync/internal/store"
	"mealsync/internal/store/storetest"
)

func newBook(t *testing.T, mode identity.Mode) (*Book, *storetest.Env) {
	t.Helper()
	env := storetest.New(t, mode)
	env.Server.Collection("/saved-recipes", "saved_recipes", "recipe")
	env.Server.Collection("/recipes", "recipes", "recipe")
	return NewBook(env.Client, env.Deps()), env
}

func TestBookGuest(t *testing.T) {
	ctx := context.Background()
	book, env := newBook(t, identity.ModeGuest)

	res, err := book.Save(ctx, Recipe{ID: "42", Name: "Greek Salad"})
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeSavedLocally, res.Outcome)

	created, err := book.Create(ctx, Recipe{ID: "ignored", Name: "Family Lasagna", Ingredients: []string{"pasta sheets"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.Item.ID.String(), "recipe-"))

	assert.True(t, book.IsSaved("42"))
	assert.True(t, book.IsSaved(created.Item.ID))
	assert.False(t, book.IsSaved("7"))

	saved := localstore.Read[Recipe](ctx, env.Local, KeySaved)
	require.Len(t, saved, 1)
	assert.Equal(t, "Greek Salad", saved[0].Name)
	assert.Len(t, localstore.Read[Recipe](ctx, env.Local, KeyCreated), 1)
	assert.Empty(t, env.Server.Requests())

	t.Run("CatalogListsCreatedFirst", func(t *testing.T) {
		var names []string
		for _, r := range book.Catalog() {
			names = append(names, r.Name)
		}
		assert.Equal(t, []string{"Family Lasagna", "Greek Salad"}, names)
	})

	t.Run("SaveTwiceKeepsOneCopy", func(t *testing.T) {
		_, err := book.Save(ctx, Recipe{ID: "42", Name: "Greek Salad"})
		require.NoError(t, err)
		assert.Len(t, book.Saved().Items(), 1)
	})

	t.Run("SaveRequiresID", func(t *testing.T) {
		_, err := book.Save(ctx, Recipe{Name: "No id"})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("Unsave", func(t *testing.T) {
		res, err := book.Unsave(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, store.OutcomeRemoved, res.Outcome)
		assert.False(t, book.IsSaved("42"))
	})
}

func TestBookAuthenticated(t *testing.T) {
	ctx := context.Background()
	book, env := newBook(t, identity.ModeAuthenticated)
	env.Server.Seed("/saved-recipes", map[string]any{"id": 7, "name": "Pad Thai"})

	require.NoError(t, book.Load(ctx))
	assert.True(t, book.IsSaved("7"))

	res, err := book.Create(ctx, Recipe{Name: "Family Lasagna"})
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeSavedToAccount, res.Outcome)
	assert.False(t, res.Item.ID.IsTemp())
	assert.Equal(t, []string{"Family Lasagna"}, env.Server.Names("/recipes"))

	updated := res.Item
	updated.Servings = 6
	_, err = book.UpdateCreated(ctx, updated)
	require.NoError(t, err)
	items := env.Server.Items("/recipes")
	require.Len(t, items, 1)
	assert.EqualValues(t, 6, items[0]["servings"])

	_, err = book.DeleteCreated(ctx, res.Item.ID)
	require.NoError(t, err)
	assert.Empty(t, env.Server.Items("/recipes"))

	t.Run("OfflineSaveSyncsLater", func(t *testing.T) {
		env.Server.SetDown(true)
		res, err := book.Save(ctx, Recipe{ID: "9", Name: "Ramen"})
		require.NoError(t, err)
		assert.Equal(t, store.OutcomeSavedLocally, res.Outcome)

		env.Server.SetDown(false)
		report, err := book.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Created)
		assert.ElementsMatch(t, []string{"Pad Thai", "Ramen"}, env.Server.Names("/saved-recipes"))
	})
}

func TestFind(t *testing.T) {
	catalog := []Recipe{{ID: "1", Name: "Chicken Salad"}, {ID: "2", Name: "Pasta Carbonara"}}

	r, ok := Find(catalog, "2", "")
	assert.True(t, ok)
	assert.Equal(t, "Pasta Carbonara", r.Name)

	r, ok = Find(catalog, "99", "  chicken salad ")
	assert.True(t, ok)
	assert.Equal(t, shared.ID("1"), r.ID)

	_, ok = Find(catalog, "", "Soup")
	assert.False(t, ok)
}
