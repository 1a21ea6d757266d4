package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"mealsync/internal/identity"
	"mealsync/internal/localstore"
	"mealsync/internal/shared"
)

// OpKind is the kind of a queued remote write.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// PendingOp is a remote write that has not reached the backend yet.
type PendingOp[T any] struct {
	Op   OpKind    `json:"op"`
	ID   shared.ID `json:"id"`
	Item T         `json:"item"`
}

// SyncReport summarizes one replay of the pending queue.
type SyncReport struct {
	Imported  int
	Created   int
	Updated   int
	Deleted   int
	Dropped   int
	Remaining int
	// Replaced maps provisional ids to the ids the server assigned.
	Replaced map[shared.ID]shared.ID
}

// Applied is the number of queued changes the backend accepted.
func (r SyncReport) Applied() int {
	return r.Created + r.Updated + r.Deleted
}

// Add combines two reports.
func (r SyncReport) Add(o SyncReport) SyncReport {
	out := SyncReport{
		Imported:  r.Imported + o.Imported,
		Created:   r.Created + o.Created,
		Updated:   r.Updated + o.Updated,
		Deleted:   r.Deleted + o.Deleted,
		Dropped:   r.Dropped + o.Dropped,
		Remaining: r.Remaining + o.Remaining,
		Replaced:  make(map[shared.ID]shared.ID, len(r.Replaced)+len(o.Replaced)),
	}
	for k, v := range r.Replaced {
		out.Replaced[k] = v
	}
	for k, v := range o.Replaced {
		out.Replaced[k] = v
	}
	return out
}

func (s *Store[T]) pendingKey() string {
	return s.opts.CacheKey + "_pending"
}

// Pending returns the queued remote writes in order.
func (s *Store[T]) Pending(ctx context.Context) []PendingOp[T] {
	return localstore.Read[PendingOp[T]](ctx, s.local, s.pendingKey())
}

func (s *Store[T]) hasPendingCreate(ctx context.Context, id shared.ID) bool {
	return slices.ContainsFunc(s.Pending(ctx), func(op PendingOp[T]) bool {
		return op.Op == OpCreate && op.ID == id
	})
}

func (s *Store[T]) enqueue(ctx context.Context, kind OpKind, id shared.ID, item T) {
	ops := coalesce(s.Pending(ctx), PendingOp[T]{Op: kind, ID: id, Item: item}, s.opts.GuestIDPrefix)
	s.savePending(ctx, ops)
}

func (s *Store[T]) savePending(ctx context.Context, ops []PendingOp[T]) {
	var err error
	if len(ops) == 0 {
		err = s.local.Remove(ctx, s.pendingKey())
	} else {
		err = localstore.Write(ctx, s.local, s.pendingKey(), ops)
	}
	if err != nil {
		s.logger.Error("failed to persist pending changes", zap.Error(err))
	}
}

// coalesce folds op into the queue so that each record has at most one
// create or update followed by at most one delete.
func coalesce[T any](ops []PendingOp[T], op PendingOp[T], localPrefix string) []PendingOp[T] {
	switch op.Op {
	case OpCreate:
		for i := range ops {
			if ops[i].Op == OpCreate && ops[i].ID == op.ID {
				ops[i].Item = op.Item
				return ops
			}
		}
		return append(ops, op)

	case OpUpdate:
		for i := range ops {
			if ops[i].ID == op.ID && (ops[i].Op == OpCreate || ops[i].Op == OpUpdate) {
				ops[i].Item = op.Item
				return ops
			}
		}
		if op.ID.HasLocalPrefix(localPrefix) {
			op.Op = OpCreate
		}
		return append(ops, op)

	case OpDelete:
		out := make([]PendingOp[T], 0, len(ops)+1)
		created := false
		for _, p := range ops {
			if p.ID == op.ID {
				created = created || p.Op == OpCreate
				continue
			}
			out = append(out, p)
		}
		if created || op.ID.HasLocalPrefix(localPrefix) {
			return out
		}
		return append(out, op)
	}
	return ops
}

func retryable(err error) bool {
	switch shared.KindOf(err) {
	case shared.KindNetwork, shared.KindServer:
		return true
	default:
		return false
	}
}

// Sync replays queued changes against the backend. Creates swap their
// provisional ids for server ids. Changes the backend rejects with a client
// error are dropped; network and server failures stay queued. Sync is a no-op
// unless signed in.
func (s *Store[T]) Sync(ctx context.Context) (SyncReport, error) {
	if s.identity.Mode() != identity.ModeAuthenticated {
		return SyncReport{}, nil
	}

	s.ops.Lock()
	defer s.ops.Unlock()
	s.ensureLoaded(ctx, identity.ModeAuthenticated)
	return s.sync(ctx)
}

func (s *Store[T]) sync(ctx context.Context) (SyncReport, error) {
	report := SyncReport{Replaced: make(map[shared.ID]shared.ID)}
	ops := s.Pending(ctx)
	if len(ops) == 0 {
		return report, nil
	}

	start := s.now()
	if !s.health.CheckHealth(ctx) {
		report.Remaining = len(ops)
		return report, nil
	}

	var remaining []PendingOp[T]
replay:
	for i, op := range ops {
		if ctx.Err() != nil {
			remaining = append(remaining, ops[i:]...)
			break
		}

		err := s.replay(ctx, op, &report)
		switch {
		case err == nil:
		case shared.IsNetwork(err), shared.KindOf(err) == shared.KindAuth:
			// Nothing after this will get through either.
			s.logger.Warn("sync interrupted", zap.String("op", string(op.Op)), zap.Error(err))
			remaining = append(remaining, ops[i:]...)
			break replay
		case retryable(err):
			s.logger.Warn("keeping change for next sync", zap.String("op", string(op.Op)),
				zap.String("id", op.ID.String()), zap.Error(err))
			remaining = append(remaining, op)
		default:
			s.logger.Warn("dropping change rejected by backend", zap.String("op", string(op.Op)),
				zap.String("id", op.ID.String()), zap.Error(err))
			report.Dropped++
		}
	}

	report.Remaining = len(remaining)
	s.savePending(ctx, remaining)
	s.mirror(ctx, identity.ModeAuthenticated)

	if report.Applied() > 0 {
		s.finish(ctx, "sync", start, Result[T]{Outcome: OutcomeSavedToAccount})
	}
	s.logger.Info("sync finished",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("deleted", report.Deleted),
		zap.Int("dropped", report.Dropped),
		zap.Int("remaining", report.Remaining),
	)
	return report, ctx.Err()
}

func (s *Store[T]) replay(ctx context.Context, op PendingOp[T], report *SyncReport) error {
	return retry.Do(
		func() error {
			switch op.Op {
			case OpCreate:
				created, err := s.remote.Create(ctx, s.outbound(op.Item))
				if err != nil {
					return err
				}
				s.replace(op.ID, created, true)
				if created.GetID() != op.ID {
					report.Replaced[op.ID] = created.GetID()
				}
				report.Created++
			case OpUpdate:
				updated, err := s.remote.Update(ctx, op.ID, op.Item)
				if err != nil {
					return err
				}
				s.replace(op.ID, updated, false)
				report.Updated++
			case OpDelete:
				if err := s.remote.Remove(ctx, op.ID); err != nil && !isNotFound(err) {
					return err
				}
				report.Deleted++
			default:
				return fmt.Errorf("unknown pending op %q", op.Op)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("retrying pending change", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

// AdoptGuest imports the records created in guest mode on this device into
// the signed-in account, then syncs them. The guest copy is removed once the
// records are queued. Records whose slot is already taken in the account are
// left out. Signing in never does this implicitly.
func (s *Store[T]) AdoptGuest(ctx context.Context) (SyncReport, error) {
	if s.identity.Mode() != identity.ModeAuthenticated {
		return SyncReport{}, shared.Validation("sign in to import guest %s", s.opts.Kind)
	}

	s.ops.Lock()
	defer s.ops.Unlock()
	s.ensureLoaded(ctx, identity.ModeAuthenticated)

	guest := localstore.Read[T](ctx, s.local, s.opts.GuestKey)
	if len(guest) == 0 {
		return SyncReport{Replaced: map[shared.ID]shared.ID{}}, nil
	}

	imported := 0
	for _, item := range guest {
		if s.opts.Slot != nil {
			if _, taken := s.findSlot(s.opts.Slot(item)); taken {
				s.logger.Info("guest record skipped, slot already used", zap.String("id", item.GetID().String()))
				continue
			}
		}
		id := item.GetID()
		if id == "" || id.HasLocalPrefix(s.opts.GuestIDPrefix) {
			id = s.provisionalID(identity.ModeAuthenticated)
		} else if s.IsPresent(id) {
			continue
		}
		item = item.WithID(id)
		s.insert(item)
		s.enqueue(ctx, OpCreate, id, item)
		imported++
	}

	s.mirror(ctx, identity.ModeAuthenticated)
	if err := s.local.Remove(ctx, s.opts.GuestKey); err != nil {
		s.logger.Error("failed to clear guest records after import", zap.Error(err))
	}
	s.logger.Info("imported guest records", zap.Int("count", imported))

	report, err := s.sync(ctx)
	report.Imported = imported
	return report, err
}

// mergePending applies queued changes on top of a fresh remote list so that
// a reload does not lose or resurrect anything that has not synced yet.
func (s *Store[T]) mergePending(ctx context.Context, items []T) []T {
	for _, op := range s.Pending(ctx) {
		i := indexOf(items, op.ID)
		switch op.Op {
		case OpCreate:
			if i < 0 {
				items = append(items, op.Item)
			}
		case OpUpdate:
			if i >= 0 {
				items[i] = op.Item
			}
		case OpDelete:
			if i >= 0 {
				items = slices.Delete(items, i, i+1)
			}
		}
	}
	return items
}
