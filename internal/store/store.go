// Package store implements the dual-persistence resource store: an in-memory
// collection that is updated optimistically, written through to the backend
// for signed-in users and to local storage for guests or when the backend
// cannot be reached.
package store

import (
	"context"
	"errors"
	"fmt"
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
)

// Record is implemented by every resource kind the store can hold.
type Record[T any] interface {
	GetID() shared.ID
	WithID(id shared.ID) T
	Validate() error
}

// Remote is the backend collection a store writes through to.
type Remote[T any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id shared.ID, item T) (T, error)
	Remove(ctx context.Context, id shared.ID) error
}

// Health reports whether the backend is worth calling.
type Health interface {
	CheckHealth(ctx context.Context) bool
}

// Identity exposes the active identity mode.
type Identity interface {
	Mode() identity.Mode
}

// Recorder receives one event per store operation.
type Recorder interface {
	Record(ctx context.Context, e metrics.SyncEvent) error
}

// Options describe one resource kind.
type Options[T any] struct {
	// Kind names the resource in toasts, logs and metrics.
	Kind string
	// GuestKey is where guests' records live.
	GuestKey string
	// CacheKey is where a signed-in user's records are cached. Pending
	// changes are kept under CacheKey + "_pending".
	CacheKey string
	// GuestIDPrefix is used for ids minted in guest mode ("<prefix>-<ms>").
	GuestIDPrefix string
	// Slot, when set, makes records with the same slot replace each other.
	Slot func(T) string
}

// Deps are the collaborators shared by every Store. Notifier and Recorder
// are optional.
type Deps struct {
	Health   Health
	Identity Identity
	Local    *localstore.Store
	Notifier notify.Notifier
	Recorder Recorder
	Logger   *zap.Logger
	Now      func() time.Time

	// SyncAttempts bounds retries of one queued change during Sync.
	SyncAttempts uint
	RetryDelay   time.Duration
}

// Store is the reconciling facade over one resource kind.
type Store[T Record[T]] struct {
	opts     Options[T]
	attempts uint
	delay    time.Duration
	remote   Remote[T]
	health   Health
	identity Identity
	local    *localstore.Store
	notifier notify.Notifier
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time

	// ops serializes mutations, loads and syncs. Readers only take mu, so
	// an optimistic change is visible while its remote call is in flight.
	ops sync.Mutex

	mu         sync.RWMutex
	items      []T
	loaded     bool
	loadedMode identity.Mode
	lastStamp  int64
	subs       map[int]chan []T
	nextSub    int
}

// New creates a Store writing through to remote. Call Load before reading.
func New[T Record[T]](opts Options[T], remote Remote[T], deps Deps) *Store[T] {
	attempts := deps.SyncAttempts
	if attempts == 0 {
		attempts = 3
	}
	delay := deps.RetryDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := logging.OrNop(deps.Logger).With(zap.String("kind", opts.Kind))
	return &Store[T]{
		opts:     opts,
		attempts: attempts,
		delay:    delay,
		remote:   remote,
		health:   deps.Health,
		identity: deps.Identity,
		local:    deps.Local,
		notifier: deps.Notifier,
		recorder: deps.Recorder,
		logger:   logger,
		now:      now,
		subs:     make(map[int]chan []T),
	}
}

// Kind returns the resource kind name.
func (s *Store[T]) Kind() string { return s.opts.Kind }

func (s *Store[T]) activeMode() (identity.Mode, error) {
	mode := s.identity.Mode()
	if mode == identity.ModeLoading {
		return mode, shared.Validation("sign in or continue as guest to change your %s", s.opts.Kind)
	}
	return mode, nil
}

func validation(err error) error {
	if shared.IsValidation(err) {
		return err
	}
	return &shared.Error{Kind: shared.KindValidation, Message: err.Error(), Err: err}
}

// Add inserts item. An item without an id gets a provisional one; an item
// whose id or slot is already taken updates that record instead.
func (s *Store[T]) Add(ctx context.Context, item T) (Result[T], error) {
	mode, err := s.activeMode()
	if err != nil {
		return Result[T]{}, err
	}
	if err := item.Validate(); err != nil {
		return Result[T]{}, validation(err)
	}

	s.ops.Lock()
	defer s.ops.Unlock()
	s.ensureLoaded(ctx, mode)

	if s.opts.Slot != nil {
		if existing, ok := s.findSlot(s.opts.Slot(item)); ok {
			return s.update(ctx, mode, "add", item.WithID(existing.GetID()))
		}
	}
	if item.GetID() != "" && s.IsPresent(item.GetID()) {
		return s.update(ctx, mode, "add", item)
	}
	if item.GetID() == "" {
		item = item.WithID(s.provisionalID(mode))
	}

	start := s.now()
	s.insert(item)

	if mode == identity.ModeGuest {
		s.mirror(ctx, mode)
		return s.finish(ctx, "add", start, Result[T]{Outcome: OutcomeSavedLocally, Item: item}), nil
	}

	if !s.health.CheckHealth(ctx) {
		s.enqueue(ctx, OpCreate, item.GetID(), item)
		s.mirror(ctx, mode)
		return s.finish(ctx, "add", start, Result[T]{Outcome: OutcomeSavedLocally, Item: item}), nil
	}

	created, err := s.remote.Create(ctx, s.outbound(item))
	if err != nil {
		s.logger.Warn("remote create failed, keeping change locally",
			zap.String("id", item.GetID().String()), zap.Error(err))
		s.enqueue(ctx, OpCreate, item.GetID(), item)
		s.mirror(ctx, mode)
		return s.finish(ctx, "add", start, Result[T]{Outcome: OutcomeSavedLocally, Item: item, Err: err}), nil
	}

	s.replace(item.GetID(), created, false)
	s.mirror(ctx, mode)
	return s.finish(ctx, "add", start, Result[T]{Outcome: OutcomeSavedToAccount, Item: created}), nil
}

// Update replaces the record with item's id.
func (s *Store[T]) Update(ctx context.Context, item T) (Result[T], error) {
	mode, err := s.activeMode()
	if err != nil {
		return Result[T]{}, err
	}
	if err := item.Validate(); err != nil {
		return Result[T]{}, validation(err)
	}

	s.ops.Lock()
	defer s.ops.Unlock()
	s.ensureLoaded(ctx, mode)

	return s.update(ctx, mode, "update", item)
}

func (s *Store[T]) update(ctx context.Context, mode identity.Mode, op string, item T) (Result[T], error) {
	id := item.GetID()
	if !s.IsPresent(id) {
		return Result[T]{}, shared.Validation("%s %q not found", s.opts.Kind, id)
	}

	start := s.now()
	s.replace(id, item, false)

	if mode == identity.ModeGuest {
		s.mirror(ctx, mode)
		return s.finish(ctx, op, start, Result[T]{Outcome: OutcomeSavedLocally, Item: item}), nil
	}

	// The server has never seen this record; fold the change into its
	// queued create.
	if s.hasPendingCreate(ctx, id) || id.HasLocalPrefix(s.opts.GuestIDPrefix) {
		s.enqueue(ctx, OpUpdate, id, item)
		s.mirror(ctx, mode)
		return s.finish(ctx, op, start, Result[T]{Outcome: OutcomeSavedLocally, Item: item}), nil
	}

	if !s.health.CheckHealth(ctx) {
		s.enqueue(ctx, OpUpdate, id, item)
		s.mirror(ctx, mode)
		return s.finish(ctx, op, start, Result[T]{Outcome: OutcomeSavedLocally, Item: item}), nil
	}

	updated, err := s.remote.Update(ctx, id, item)
	if err != nil {
		s.enqueue(ctx, OpUpdate, id, item)
		s.mirror(ctx, mode)
		if shared.IsNetwork(err) {
			return s.finish(ctx, op, start, Result[T]{Outcome: OutcomeSavedLocally, Item: item, Err: err}), nil
		}
		s.logger.Warn("remote update rejected", zap.String("id", id.String()), zap.Error(err))
		return s.finish(ctx, op, start, Result[T]{Outcome: OutcomeError, Item: item, Err: err}), nil
	}

	s.replace(id, updated, false)
	s.mirror(ctx, mode)
	return s.finish(ctx, op, start, Result[T]{Outcome: OutcomeSavedToAccount, Item: updated}), nil
}

// Remove deletes the record with the given id. The record leaves memory
// immediately whatever the backend says.
func (s *Store[T]) Remove(ctx context.Context, id shared.ID) (Result[T], error) {
	mode, err := s.activeMode()
	if err != nil {
		return Result[T]{}, err
	}

	s.ops.Lock()
	defer s.ops.Unlock()
	s.ensureLoaded(ctx, mode)

	start := s.now()
	item, _ := s.Get(id)
	s.delete(id)

	res := Result[T]{Outcome: OutcomeRemoved, Item: item}
	if mode == identity.ModeGuest {
		s.mirror(ctx, mode)
		return s.finish(ctx, "remove", start, res), nil
	}

	// Provisional records never reached the server.
	if id.HasLocalPrefix(s.opts.GuestIDPrefix) || s.hasPendingCreate(ctx, id) {
		s.enqueue(ctx, OpDelete, id, item)
		s.mirror(ctx, mode)
		return s.finish(ctx, "remove", start, res), nil
	}

	if !s.health.CheckHealth(ctx) {
		s.logger.Warn("backend unreachable, remote delete deferred", zap.String("id", id.String()))
		s.enqueue(ctx, OpDelete, id, item)
		s.mirror(ctx, mode)
		return s.finish(ctx, "remove", start, res), nil
	}

	if err := s.remote.Remove(ctx, id); err != nil && !isNotFound(err) {
		s.logger.Warn("sync discrepancy: remote delete failed", zap.String("id", id.String()), zap.Error(err))
		if retryable(err) {
			s.enqueue(ctx, OpDelete, id, item)
		}
		res.Err = err
	}
	s.mirror(ctx, mode)
	return s.finish(ctx, "remove", start, res), nil
}

// Load rehydrates memory for the current identity: the guest key for guests,
// the backend (merged with pending local changes) for signed-in users, and the
// account cache when the backend fails.
func (s *Store[T]) Load(ctx context.Context) (Result[T], error) {
	s.ops.Lock()
	defer s.ops.Unlock()
	return s.load(ctx, s.identity.Mode()), nil
}

func (s *Store[T]) ensureLoaded(ctx context.Context, mode identity.Mode) {
	s.mu.RLock()
	current := s.loaded && s.loadedMode == mode
	s.mu.RUnlock()
	if !current {
		s.load(ctx, mode)
	}
}

func (s *Store[T]) load(ctx context.Context, mode identity.Mode) Result[T] {
	switch mode {
	case identity.ModeGuest:
		s.publish(localstore.Read[T](ctx, s.local, s.opts.GuestKey), mode)
		return Result[T]{}

	case identity.ModeAuthenticated:
		start := s.now()
		var listErr error
		if s.health.CheckHealth(ctx) {
			items, err := s.remote.List(ctx)
			if err == nil {
				s.publish(s.mergePending(ctx, items), mode)
				s.mirror(ctx, mode)
				return Result[T]{}
			}
			listErr = err
			s.logger.Warn("remote list failed, using cache", zap.Error(err))
		}
		s.publish(localstore.Read[T](ctx, s.local, s.opts.CacheKey), mode)
		return s.finish(ctx, "load", start, Result[T]{Outcome: OutcomeCached, Err: listErr})

	default:
		s.publish(nil, mode)
		return Result[T]{}
	}
}

// mirror writes the in-memory collection to the key for mode.
func (s *Store[T]) mirror(ctx context.Context, mode identity.Mode) {
	key := s.opts.CacheKey
	if mode == identity.ModeGuest {
		key = s.opts.GuestKey
	}
	if err := localstore.Write(ctx, s.local, key, s.Items()); err != nil {
		s.logger.Error("failed to mirror to local storage", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store[T]) finish(ctx context.Context, op string, start time.Time, res Result[T]) Result[T] {
	now := s.now()
	if s.notifier != nil && res.Outcome != OutcomeNone {
		toast := notify.Toast{Title: res.Outcome.String(), Message: s.describe(res.Item), Level: res.Outcome.Level(), At: now}
		if err := s.notifier.Notify(ctx, toast); err != nil {
			s.logger.Warn("failed to deliver toast", zap.Error(err))
		}
	}
	if s.recorder != nil {
		event := metrics.SyncEvent{
			Kind:      s.opts.Kind,
			Operation: op,
			Outcome:   res.Outcome.String(),
			Latency:   now.Sub(start),
			Timestamp: now,
		}
		if err := s.recorder.Record(ctx, event); err != nil {
			s.logger.Warn("failed to record sync event", zap.Error(err))
		}
	}
	return res
}

func (s *Store[T]) describe(item T) string {
	if item.GetID() == "" {
		return s.opts.Kind
	}
	if named, ok := any(item).(fmt.Stringer); ok {
		return s.opts.Kind + " " + named.String()
	}
	return s.opts.Kind + " " + item.GetID().String()
}

// outbound strips a provisional id so the backend assigns its own. Ids that
// came from the backend, such as a saved catalog recipe, are kept.
func (s *Store[T]) outbound(item T) T {
	if item.GetID().HasLocalPrefix(s.opts.GuestIDPrefix) {
		return item.WithID("")
	}
	return item
}

// provisionalID mints temp_<ms> for signed-in users and <prefix>-<ms> for
// guests, unique within the collection.
func (s *Store[T]) provisionalID(mode identity.Mode) shared.ID {
	prefix := shared.TempPrefix
	if mode == identity.ModeGuest && s.opts.GuestIDPrefix != "" {
		prefix = s.opts.GuestIDPrefix + "-"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stamp := s.now().UnixMilli()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	for {
		id := shared.ID(fmt.Sprintf("%s%d", prefix, stamp))
		if indexOf(s.items, id) < 0 {
			s.lastStamp = stamp
			return id
		}
		stamp++
	}
}

func isNotFound(err error) bool {
	var se *shared.Error
	return errors.As(err, &se) && se.Status == 404
}

// Items returns a copy of the in-memory collection.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Get returns the record with the given id.
func (s *Store[T]) Get(id shared.ID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// IsPresent reports whether a record with the given id is in memory.
func (s *Store[T]) IsPresent(id shared.ID) bool {
	_, ok := s.Get(id)
	return ok
}

func (s *Store[T]) findSlot(slot string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if s.opts.Slot(it) == slot {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Subscribe streams the collection after every change, starting with the
// current one. A slow reader only sees the latest snapshot. The channel is
// closed when ctx is done.
func (s *Store[T]) Subscribe(ctx context.Context) <-chan []T {
	ch := make(chan []T, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- slices.Clone(s.items)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

func indexOf[T Record[T]](items []T, id shared.ID) int {
	return slices.IndexFunc(items, func(it T) bool { return it.GetID() == id })
}

func (s *Store[T]) insert(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	s.broadcast()
}

// replace swaps the record with id for item. When the id is unknown, item is
// appended if appendMissing is set.
func (s *Store[T]) replace(id shared.ID, item T, appendMissing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.items, id)
	switch {
	case i >= 0:
		s.items[i] = item
	case appendMissing:
		s.items = append(s.items, item)
	default:
		return
	}
	s.broadcast()
}

func (s *Store[T]) delete(id shared.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(it T) bool { return it.GetID() == id })
	if len(s.items) != before {
		s.broadcast()
	}
}

func (s *Store[T]) publish(items []T, mode identity.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.Clone(items)
	s.loaded = true
	s.loadedMode = mode
	s.broadcast()
}

// broadcast must be called with mu held.
func (s *Store[T]) broadcast() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- slices.Clone(s.items)
	}
}
