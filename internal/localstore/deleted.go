package localstore

import (
	"context"
	"slices"
)

// DeletedItems remembers ids the user removed so that regenerated lists do
// not bring them back.
type DeletedItems struct {
	store *Store
	key   string
}

// NewDeletedItems tracks deletions under the deletedRecentItems key.
func NewDeletedItems(s *Store) *DeletedItems {
	return &DeletedItems{store: s, key: KeyDeletedRecents}
}

// All returns every id marked as deleted.
func (d *DeletedItems) All(ctx context.Context) []string {
	return Read[string](ctx, d.store, d.key)
}

// Mark records id as deleted.
func (d *DeletedItems) Mark(ctx context.Context, id string) error {
	ids := d.All(ctx)
	if slices.Contains(ids, id) {
		return nil
	}
	return Write(ctx, d.store, d.key, append(ids, id))
}

// IsDeleted reports whether id was marked.
func (d *DeletedItems) IsDeleted(ctx context.Context, id string) bool {
	return slices.Contains(d.All(ctx), id)
}

// Restore unmarks id.
func (d *DeletedItems) Restore(ctx context.Context, id string) error {
	ids := d.All(ctx)
	if !slices.Contains(ids, id) {
		return nil
	}
	return Write(ctx, d.store, d.key, slices.DeleteFunc(ids, func(s string) bool { return s == id }))
}

// Clear forgets every deletion.
func (d *DeletedItems) Clear(ctx context.Context) error {
	return d.store.Remove(ctx, d.key)
}

// Filter drops entries whose key is marked as deleted.
func Filter[T any](ctx context.Context, d *DeletedItems, items []T, key func(T) string) []T {
	deleted := d.All(ctx)
	if len(deleted) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !slices.Contains(deleted, key(it)) {
			out = append(out, it)
		}
	}
	return out
}
