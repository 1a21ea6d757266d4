// Package storetest wires resource stores to an in-memory backend and an
// in-memory local store for tests.
package storetest

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"mealsync/internal/identity"
	"mealsync/internal/localstore"
	"mealsync/internal/notify"
	"mealsync/internal/remote"
	"mealsync/internal/remote/remotetest"
	"mealsync/internal/store"
)

// Env is the shared fixture for domain package tests.
type Env struct {
	Server *remotetest.Server
	Client *remote.Client
	Local  *localstore.Store
	Toasts *notify.Recorder

	mode atomic.Int32
}

// New returns an Env in the given identity mode.
func New(t testing.TB, mode identity.Mode) *Env {
	t.Helper()
	backend, err := localstore.NewFileBackend(afero.NewMemMapFs(), "/data")
	if err != nil {
		t.Fatalf("failed to create file backend: %v", err)
	}
	server := remotetest.NewServer(t)
	e := &Env{
		Server: server,
		Client: server.Client(),
		Local:  localstore.New(backend, nil),
		Toasts: &notify.Recorder{},
	}
	e.SetMode(mode)
	return e
}

// Mode implements store.Identity.
func (e *Env) Mode() identity.Mode { return identity.Mode(e.mode.Load()) }

// SetMode switches the identity mode seen by every store built from Deps.
func (e *Env) SetMode(mode identity.Mode) { e.mode.Store(int32(mode)) }

// Deps returns store dependencies with fast retries.
func (e *Env) Deps() store.Deps {
	return store.Deps{
		Health:       e.Client,
		Identity:     e,
		Local:        e.Local,
		Notifier:     e.Toasts,
		SyncAttempts: 2,
		RetryDelay:   time.Millisecond,
	}
}
