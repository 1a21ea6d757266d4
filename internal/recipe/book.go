package recipe

import (
	"context"
	"strings"

	"mealsync/internal/remote"
	"mealsync/internal/shared"
	"mealsync/internal/store"
)

// Local storage keys.
const (
	KeySaved          = "savedRecipes"
	KeyCreated        = "createdRecipes"
	KeyAccountSaved   = "account_savedRecipes"
	KeyAccountCreated = "account_createdRecipes"
)

// Book holds the recipes a user saved and the ones they created.
type Book struct {
	saved   *store.Store[Recipe]
	created *store.Store[Recipe]
}

// NewBook wires both recipe collections to the backend.
func NewBook(client *remote.Client, deps store.Deps) *Book {
	saved := store.New(store.Options[Recipe]{
		Kind:     "saved recipe",
		GuestKey: KeySaved,
		CacheKey: KeyAccountSaved,
	}, remote.NewResource[Recipe](client, remote.Endpoint{
		Path:      "/saved-recipes",
		ListField: "saved_recipes",
		ItemField: "recipe",
	}), deps)

	created := store.New(store.Options[Recipe]{
		Kind:          "recipe",
		GuestKey:      KeyCreated,
		CacheKey:      KeyAccountCreated,
		GuestIDPrefix: "recipe",
	}, remote.NewResource[Recipe](client, remote.Endpoint{
		Path:      "/recipes",
		ListField: "recipes",
		ItemField: "recipe",
	}), deps)

	return &Book{saved: saved, created: created}
}

// Saved returns the saved-recipes collection.
func (b *Book) Saved() *store.Store[Recipe] { return b.saved }

// Created returns the user's own recipes.
func (b *Book) Created() *store.Store[Recipe] { return b.created }

// Load rehydrates both collections.
func (b *Book) Load(ctx context.Context) error {
	if _, err := b.saved.Load(ctx); err != nil {
		return err
	}
	_, err := b.created.Load(ctx)
	return err
}

// Save bookmarks a catalog recipe. Saving it twice keeps one copy.
func (b *Book) Save(ctx context.Context, r Recipe) (store.Result[Recipe], error) {
	if r.ID == "" {
		return store.Result[Recipe]{}, shared.Validation("recipe id is required to save a recipe")
	}
	return b.saved.Add(ctx, r)
}

// Unsave removes a bookmark.
func (b *Book) Unsave(ctx context.Context, id shared.ID) (store.Result[Recipe], error) {
	return b.saved.Remove(ctx, id)
}

// IsSaved reports whether the recipe is saved or was created by the user.
func (b *Book) IsSaved(id shared.ID) bool {
	return b.saved.IsPresent(id) || b.created.IsPresent(id)
}

// Create adds a recipe written by the user. Any id on r is discarded.
func (b *Book) Create(ctx context.Context, r Recipe) (store.Result[Recipe], error) {
	r.ID = ""
	return b.created.Add(ctx, r)
}

// UpdateCreated edits one of the user's recipes.
func (b *Book) UpdateCreated(ctx context.Context, r Recipe) (store.Result[Recipe], error) {
	return b.created.Update(ctx, r)
}

// DeleteCreated removes one of the user's recipes.
func (b *Book) DeleteCreated(ctx context.Context, id shared.ID) (store.Result[Recipe], error) {
	return b.created.Remove(ctx, id)
}

// Catalog lists every recipe the user can plan with: their own first, then
// saved ones not already listed.
func (b *Book) Catalog() []Recipe {
	all := b.created.Items()
	seen := make(map[string]bool, len(all))
	for _, r := range all {
		seen[r.ID.String()] = true
	}
	for _, r := range b.saved.Items() {
		if !seen[r.ID.String()] {
			all = append(all, r)
		}
	}
	return all
}

// Find looks a recipe up by id, then by case-insensitive name.
func Find(catalog []Recipe, id shared.ID, name string) (Recipe, bool) {
	if id != "" {
		for _, r := range catalog {
			if r.ID == id {
				return r, true
			}
		}
	}
	name = strings.TrimSpace(name)
	if name != "" {
		for _, r := range catalog {
			if strings.EqualFold(strings.TrimSpace(r.Name), name) {
				return r, true
			}
		}
	}
	return Recipe{}, false
}

// Sync replays pending changes of both collections.
func (b *Book) Sync(ctx context.Context) (store.SyncReport, error) {
	saved, err := b.saved.Sync(ctx)
	if err != nil {
		return saved, err
	}
	created, err := b.created.Sync(ctx)
	return saved.Add(created), err
}

// AdoptGuest imports guest recipes into the signed-in account.
func (b *Book) AdoptGuest(ctx context.Context) (store.SyncReport, error) {
	saved, err := b.saved.AdoptGuest(ctx)
	if err != nil {
		return saved, err
	}
	created, err := b.created.AdoptGuest(ctx)
	return saved.Add(created), err
}
