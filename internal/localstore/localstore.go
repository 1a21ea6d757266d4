// Package localstore provides durable key-scoped persistence used as the
// guest's primary store and as the signed-in user's offline cache.
//
// Values are JSON documents stored whole under a key. Writes overwrite the
// previous value; merging is the caller's job.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"mealsync/internal/logging"
)

// Keys shared across packages. Resource-specific keys live with their
// resource package.
const (
	KeyAuthToken      = "auth_token"
	KeyGuestMode      = "guest_mode"
	KeyDeletedRecents = "deletedRecentItems"
	KeyTourPrefix     = "genie-tour-completed-"
)

// Backend is raw key-value storage.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Store wraps a Backend with JSON encoding. Reads never fail: an absent or
// unreadable value is reported as missing.
type Store struct {
	backend Backend
	logger  *zap.Logger
}

// New creates a Store over the given backend.
func New(backend Backend, logger *zap.Logger) *Store {
	return &Store{backend: backend, logger: logging.OrNop(logger)}
}

// ReadInto decodes the value under key into v and reports whether it was
// present and well-formed.
func (s *Store) ReadInto(ctx context.Context, key string, v any) bool {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("local read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("ignoring corrupt local value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// PutValue encodes v and stores it under key, replacing any previous value.
func (s *Store) PutValue(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal local value %s: %w", key, err)
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write local value %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to remove local value %s: %w", key, err)
	}
	return nil
}

// Read returns the collection stored under key, or nil when it is absent or
// corrupt.
func Read[T any](ctx context.Context, s *Store, key string) []T {
	var items []T
	if !s.ReadInto(ctx, key, &items) {
		return nil
	}
	if items == nil {
		items = []T{}
	}
	return items
}

// Write replaces the collection stored under key.
func Write[T any](ctx context.Context, s *Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	return s.PutValue(ctx, key, items)
}

// Value returns the primitive stored under key.
func Value[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var v T
	ok := s.ReadInto(ctx, key, &v)
	return v, ok
}
