package shopping

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"mealsync/internal/localstore"
	"mealsync/internal/logging"
	"mealsync/internal/planner"
	"mealsync/internal/recipe"
	"mealsync/internal/remote"
	"mealsync/internal/shared"
	"mealsync/internal/store"
)

// Local storage keys.
const (
	KeyGuestItems   = "guest_shopping_items"
	KeyAccountItems = "account_shopping_items"
)

// List is the shopping list. Names the user deleted are remembered so that
// regenerating from the meal plan does not bring them back.
type List struct {
	items   *store.Store[Item]
	deleted *localstore.DeletedItems
	logger  *zap.Logger
}

// NewList wires the shopping list to the backend.
func NewList(client *remote.Client, deps store.Deps) *List {
	items := store.New(store.Options[Item]{
		Kind:          "shopping item",
		GuestKey:      KeyGuestItems,
		CacheKey:      KeyAccountItems,
		GuestIDPrefix: "item",
	}, remote.NewResource[Item](client, remote.Endpoint{
		Path:      "/shopping/items",
		ListField: "items",
		ItemField: "item",
	}), deps)
	return &List{
		items:   items,
		deleted: localstore.NewDeletedItems(deps.Local),
		logger:  logging.OrNop(deps.Logger),
	}
}

// Store returns the underlying collection.
func (l *List) Store() *store.Store[Item] { return l.items }

// Load rehydrates the list.
func (l *List) Load(ctx context.Context) error {
	_, err := l.items.Load(ctx)
	return err
}

// Items returns the list in insertion order.
func (l *List) Items() []Item { return l.items.Items() }

// Add puts an item on the list. An empty category is filled in from the
// name. Adding a name by hand forgets that it was deleted.
func (l *List) Add(ctx context.Context, it Item) (store.Result[Item], error) {
	it.Name = strings.TrimSpace(it.Name)
	if it.Category == "" {
		it.Category = Categorize(it.Name)
	}
	res, err := l.items.Add(ctx, it)
	if err != nil {
		return res, err
	}
	if err := l.deleted.Restore(ctx, key(it.Name)); err != nil {
		l.logger.Warn("failed to restore deleted item name", zap.String("name", it.Name), zap.Error(err))
	}
	return res, nil
}

// Remove deletes an item. It leaves the visible list at once whatever the
// backend answers.
func (l *List) Remove(ctx context.Context, id shared.ID) (store.Result[Item], error) {
	if it, ok := l.items.Get(id); ok {
		if err := l.deleted.Mark(ctx, key(it.Name)); err != nil {
			l.logger.Warn("failed to remember deleted item", zap.String("name", it.Name), zap.Error(err))
		}
	}
	return l.items.Remove(ctx, id)
}

// Toggle flips the checked state of an item.
func (l *List) Toggle(ctx context.Context, id shared.ID) (store.Result[Item], error) {
	it, ok := l.items.Get(id)
	if !ok {
		return store.Result[Item]{}, shared.Validation("shopping item %q not found", id)
	}
	it.Checked = !it.Checked
	return l.items.Update(ctx, it)
}

// Generate adds the ingredients of the planned meals that are not on the
// list yet and were not deleted by the user. Running it again with the same
// plan adds nothing.
func (l *List) Generate(ctx context.Context, entries []planner.Entry, catalog []recipe.Recipe) ([]Item, error) {
	derived := localstore.Filter(ctx, l.deleted, Derive(entries, catalog), func(it Item) string {
		return key(it.Name)
	})

	var added []Item
	for _, it := range Missing(l.items.Items(), derived) {
		res, err := l.items.Add(ctx, it)
		if err != nil {
			return added, err
		}
		added = append(added, res.Item)
	}
	return added, nil
}

// Sync replays pending changes.
func (l *List) Sync(ctx context.Context) (store.SyncReport, error) {
	return l.items.Sync(ctx)
}

// AdoptGuest imports the guest shopping list into the account.
func (l *List) AdoptGuest(ctx context.Context) (store.SyncReport, error) {
	return l.items.AdoptGuest(ctx)
}
