// Package identity tracks who the user is: not yet decided, a guest whose
// data lives only on this device, or a signed-in account.
package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mealsync/internal/localstore"
	"mealsync/internal/logging"
	"mealsync/internal/remote"
	"mealsync/internal/shared"
)

// Mode is the identity state every resource store consults.
type Mode int

const (
	// ModeLoading covers both "not determined yet" and "signed out".
	ModeLoading Mode = iota
	ModeGuest
	ModeAuthenticated
)

func (m Mode) String() string {
	switch m {
	case ModeGuest:
		return "guest"
	case ModeAuthenticated:
		return "authenticated"
	default:
		return "loading"
	}
}

// ErrCannotConnect is the message shown when login fails for lack of a
// backend.
const ErrCannotConnect = "Cannot connect to server. Would you like to continue as a guest?"

// Authenticator is the subset of the remote client the session needs.
type Authenticator interface {
	CheckHealth(ctx context.Context) bool
	Login(ctx context.Context, email, password string) (*remote.AuthResponse, error)
	Register(ctx context.Context, name, email, password string) (*remote.AuthResponse, error)
	Verify(ctx context.Context) (*remote.User, error)
}

// Session holds the active identity.
type Session struct {
	local  *localstore.Store
	auth   Authenticator
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	mode      Mode
	token     string
	user      *remote.User
	offline   bool
	listeners map[int]func(Mode)
	nextID    int
}

// NewSession creates a session in ModeLoading. Call Init to restore the
// previous identity.
func NewSession(local *localstore.Store, auth Authenticator, logger *zap.Logger) *Session {
	return &Session{
		local:     local,
		auth:      auth,
		logger:    logging.OrNop(logger),
		now:       time.Now,
		listeners: make(map[int]func(Mode)),
	}
}

// Init restores the identity persisted by a previous run.
func (s *Session) Init(ctx context.Context) Mode {
	if guest, _ := localstore.Value[string](ctx, s.local, localstore.KeyGuestMode); guest == "true" {
		s.set(ModeGuest, "", nil, false)
		return ModeGuest
	}

	if token, ok := localstore.Value[string](ctx, s.local, localstore.KeyAuthToken); ok && token != "" {
		if mode, restored := s.restore(ctx, token); restored {
			return mode
		}
	}

	if !s.auth.CheckHealth(ctx) {
		s.logger.Warn("backend not available, continuing in guest mode")
		if err := s.local.PutValue(ctx, localstore.KeyGuestMode, "true"); err != nil {
			s.logger.Error("failed to persist guest mode", zap.Error(err))
		}
		s.set(ModeGuest, "", nil, false)
		return ModeGuest
	}

	s.set(ModeLoading, "", nil, false)
	return ModeLoading
}

// restore validates a stored token. It reports false when the token had to be
// discarded.
func (s *Session) restore(ctx context.Context, token string) (Mode, bool) {
	var subject string
	if claims, err := ParseClaims(token); err == nil {
		if claims.Expired(s.now()) {
			s.logger.Info("stored token expired", zap.Time("expires_at", claims.ExpiresAt))
			s.forgetToken(ctx)
			return ModeLoading, false
		}
		subject = claims.Subject
	}

	// Verify needs the token on the wire.
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	user, err := s.auth.Verify(ctx)
	switch {
	case err == nil:
		s.set(ModeAuthenticated, token, user, false)
		return ModeAuthenticated, true
	case shared.IsNetwork(err):
		s.logger.Warn("cannot verify token due to network error, keeping user signed in")
		var offlineUser *remote.User
		if subject != "" {
			offlineUser = &remote.User{ID: shared.ID(subject)}
		}
		s.set(ModeAuthenticated, token, offlineUser, true)
		return ModeAuthenticated, true
	default:
		s.logger.Warn("token verification failed", zap.Error(err))
		s.forgetToken(ctx)
		return ModeLoading, false
	}
}

// Login signs in with email and password.
func (s *Session) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return shared.Validation("email and password are required")
	}
	resp, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return loginError("login", err)
	}
	return s.signedIn(ctx, resp)
}

// Register creates an account and signs in with it.
func (s *Session) Register(ctx context.Context, name, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return shared.Validation("email and password are required")
	}
	resp, err := s.auth.Register(ctx, strings.TrimSpace(name), email, password)
	if err != nil {
		return loginError("register", err)
	}
	return s.signedIn(ctx, resp)
}

func loginError(op string, err error) error {
	if shared.IsNetwork(err) {
		return &shared.Error{Kind: shared.KindNetwork, Op: op, Message: ErrCannotConnect, Err: err}
	}
	return err
}

func (s *Session) signedIn(ctx context.Context, resp *remote.AuthResponse) error {
	if err := s.local.PutValue(ctx, localstore.KeyAuthToken, resp.Token); err != nil {
		return err
	}
	if err := s.local.Remove(ctx, localstore.KeyGuestMode); err != nil {
		return err
	}
	user := resp.User
	s.set(ModeAuthenticated, resp.Token, &user, false)
	s.logger.Info("signed in", zap.String("user_id", user.ID.String()))
	return nil
}

// Logout clears the stored credential. Guest and account data stay on disk.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.local.Remove(ctx, localstore.KeyAuthToken); err != nil {
		return err
	}
	if err := s.local.Remove(ctx, localstore.KeyGuestMode); err != nil {
		return err
	}
	s.set(ModeLoading, "", nil, false)
	return nil
}

// ContinueAsGuest switches to guest mode and remembers the choice.
func (s *Session) ContinueAsGuest(ctx context.Context) error {
	if err := s.local.PutValue(ctx, localstore.KeyGuestMode, "true"); err != nil {
		return err
	}
	s.set(ModeGuest, "", nil, false)
	return nil
}

func (s *Session) forgetToken(ctx context.Context) {
	if err := s.local.Remove(ctx, localstore.KeyAuthToken); err != nil {
		s.logger.Error("failed to remove stored token", zap.Error(err))
	}
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// Mode returns the current identity mode.
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Token returns the bearer token, or "" when not signed in.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the signed-in user, if known.
func (s *Session) User() *remote.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// UserID returns the signed-in user's id, or "" for guests.
func (s *Session) UserID() string {
	if u := s.User(); u != nil {
		return u.ID.String()
	}
	return ""
}

// Offline reports whether the session was restored without reaching the
// backend.
func (s *Session) Offline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offline
}

// OnChange registers fn to run after every mode transition. The returned
// function unregisters it.
func (s *Session) OnChange(fn func(Mode)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) set(mode Mode, token string, user *remote.User, offline bool) {
	s.mu.Lock()
	changed := s.mode != mode || s.token != token
	s.mode = mode
	s.token = token
	s.user = user
	s.offline = offline
	var listeners []func(Mode)
	if changed {
		for _, fn := range s.listeners {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(mode)
	}
}
