package session

import (
	"log/slog"
	"sync"
)

// TokenPersister mirrors the bearer token to durable storage so a session
// survives process restarts. Only the token is persisted; the user profile
// is re-fetched from the server on startup.
// This interface is defined in the domain to avoid circular imports.
// Implementations: tokenfile (prod), in-memory (test).
type TokenPersister interface {
	// Load returns the persisted token, or "" if none is stored.
	Load() (string, error)

	// Save replaces the persisted token.
	Save(token string) error

	// Clear removes the persisted token.
	Clear() error
}

// Subscriber receives the new session state after every change.
type Subscriber func(Session)

// Store is the single authoritative holder of the current session.
// Token and user are replaced or cleared atomically, the persisted mirror
// is updated on every change, and subscribers are notified so downstream
// components can react to authentication state.
type Store struct {
	mu        sync.RWMutex
	token     string
	user      *User
	persister TokenPersister
	subs      []Subscriber
	logger    *slog.Logger
}

// NewStore creates a Store backed by the given persister.
func NewStore(persister TokenPersister, logger *slog.Logger) *Store {
	return &Store{
		persister: persister,
		logger:    logger,
	}
}

// Seed loads the persisted token into memory. Must be called once after
// construction, before anything else reads the store. The user stays nil
// until CheckAuth populates it from the server.
func (s *Store) Seed() error {
	token, err := s.persister.Load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Get returns a snapshot of the current session. The returned user is a
// copy; mutating it does not affect the store.
func (s *Store) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Token returns the current bearer token, or "" when unauthenticated.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set atomically replaces both token and user, persists the token, and
// notifies subscribers. A persistence failure is logged but does not
// invalidate the in-memory session.
func (s *Store) Set(token string, user *User) {
	s.mu.Lock()
	s.token = token
	s.user = copyUser(user)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persister.Save(token); err != nil {
		s.logger.Warn("failed to persist token", "error", err)
	}
	s.notify(snap)
}

// SetUser replaces only the user profile, leaving the token and the
// refresh schedule untouched. Used for in-place profile patches such as
// flipping the two-factor flag.
func (s *Store) SetUser(user *User) {
	s.mu.Lock()
	s.user = copyUser(user)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Clear removes the session and its persisted mirror and notifies
// subscribers with the empty session.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if err := s.persister.Clear(); err != nil {
		s.logger.Warn("failed to clear persisted token", "error", err)
	}
	s.notify(Session{})
}

// Subscribe registers fn to be called after every Set, SetUser, and Clear.
// Subscribers run synchronously on the mutating goroutine and must not
// call back into the store.
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// snapshotLocked builds a Session copy. Caller must hold s.mu.
func (s *Store) snapshotLocked() Session {
	return Session{
		Token: s.token,
		User:  copyUser(s.user),
	}
}

func (s *Store) notify(snap Session) {
	s.mu.RLock()
	subs := make([]Subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
