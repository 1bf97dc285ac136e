package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lurekit/lurekit/internal/domain/session"
	"github.com/lurekit/lurekit/internal/port/outbound"
)

// RefreshObserver is notified after every refresh attempt. result is
// "success" or "failure". Used by the agent to drive metrics.
type RefreshObserver func(result string, elapsed time.Duration)

// AuthService is the public face of the session lifecycle: login,
// register, startup session restoration, logout, and the refresh cycle
// that keeps the token renewed for as long as the process runs.
//
// Failure semantics: a failed refresh -- rejected token and transient
// network error alike -- tears the session down and is not retried. The
// design fails closed rather than silently extending an unrefreshable
// session; the user logs in again.
type AuthService struct {
	api    outbound.AuthAPI
	store  *session.Store
	sched  *session.Scheduler
	lead   time.Duration
	logger *slog.Logger

	// refreshing serializes refresh attempts so the timer and a direct
	// CheckAuth call can never run two refreshes at once.
	refreshing atomic.Bool

	// mu guards epoch and the apply phase of a refresh. Logout and
	// Shutdown bump epoch; a refresh that was in flight when the session
	// ended sees the stale epoch and discards its result instead of
	// resurrecting the session.
	mu    sync.Mutex
	epoch uint64

	onRefresh RefreshObserver
}

// NewAuthService creates an AuthService with its own refresh scheduler.
// A lead of zero or less falls back to session.DefaultRefreshLead.
func NewAuthService(api outbound.AuthAPI, store *session.Store, lead time.Duration, logger *slog.Logger) *AuthService {
	if lead <= 0 {
		lead = session.DefaultRefreshLead
	}
	s := &AuthService{
		api:    api,
		store:  store,
		lead:   lead,
		logger: logger,
	}
	s.sched = session.NewScheduler(lead, s.onTimerFire, logger)
	return s
}

// SetRefreshObserver registers fn to be called after every refresh
// attempt. Must be called before the service starts scheduling.
func (s *AuthService) SetRefreshObserver(fn RefreshObserver) {
	s.onRefresh = fn
}

// Login exchanges credentials for a session, stores it, and arms the
// refresh schedule. Server-reported errors (invalid credentials, bad or
// missing two-factor code, locked account) propagate unchanged.
func (s *AuthService) Login(ctx context.Context, email, password, twoFactorCode string) (*session.User, error) {
	result, err := s.api.Login(ctx, email, password, twoFactorCode)
	if err != nil {
		return nil, err
	}
	s.establish(result)
	return result.User, nil
}

// Register creates an account and establishes its first session.
// Same contract as Login, different endpoint.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*session.User, error) {
	result, err := s.api.Register(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	s.establish(result)
	return result.User, nil
}

// CheckAuth restores the session at process start. The store must have
// been seeded from persisted storage first.
//
//  1. No persisted token: finish unauthenticated.
//  2. Token inside the lead window or expired: refresh before trusting it.
//  3. Populate the user via whoami; on whoami failure attempt one refresh
//     before giving up (a failed refresh clears the session).
//  4. Arm the scheduler for whatever token is current.
func (s *AuthService) CheckAuth(ctx context.Context) error {
	token := s.store.Token()
	if token == "" {
		return nil
	}

	if expiry, ok := session.ExpiryOf(token); ok && !expiry.After(time.Now().Add(s.lead)) {
		if err := s.refreshNow(ctx); err != nil {
			return err
		}
		token = s.store.Token()
	}

	user, err := s.api.Me(ctx, token)
	if err != nil {
		s.logger.Warn("whoami failed, attempting refresh", "error", err)
		// One refresh as fallback; success replaces both token and user
		// and re-arms, failure clears the session.
		return s.refreshNow(ctx)
	}

	s.store.SetUser(user)
	s.sched.Arm(token)
	return nil
}

// Logout cancels the refresh schedule, notifies the server best-effort,
// and clears the session. Logout always succeeds locally; a failed server
// notification is only logged.
func (s *AuthService) Logout(ctx context.Context) {
	s.invalidateInFlight()
	s.sched.Cancel()
	if token := s.store.Token(); token != "" {
		if err := s.api.Logout(ctx, token); err != nil {
			s.logger.Debug("logout notification failed", "error", err)
		}
	}
	s.store.Clear()
}

// SetUserData patches the user profile in place without touching the
// token or the refresh schedule (e.g. after flipping the two-factor flag).
func (s *AuthService) SetUserData(user *session.User) {
	s.store.SetUser(user)
}

// Shutdown cancels any pending refresh without clearing the session.
// The persisted token stays valid for the next process start.
func (s *AuthService) Shutdown() {
	s.invalidateInFlight()
	s.sched.Cancel()
}

// invalidateInFlight bumps the epoch so any refresh currently talking to
// the server drops its result.
func (s *AuthService) invalidateInFlight() {
	s.mu.Lock()
	s.epoch++
	s.mu.Unlock()
}

// establish stores a fresh session and arms the scheduler for it.
func (s *AuthService) establish(result *outbound.AuthResult) {
	s.store.Set(result.Token, result.User)
	s.sched.Arm(result.Token)
}

// onTimerFire runs on the scheduler's timer goroutine. The API client's
// request timeout bounds the call; no extra deadline is attached.
func (s *AuthService) onTimerFire() {
	_ = s.refreshNow(context.Background())
}

// refreshNow performs one refresh cycle: exchange the current token for a
// new session and re-arm, or tear the session down on any failure.
// Concurrent calls coalesce; the loser of the in-flight race is a no-op.
func (s *AuthService) refreshNow(ctx context.Context) error {
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.refreshing.Store(false)

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	token := s.store.Token()
	if token == "" {
		return nil
	}

	start := time.Now()
	result, err := s.api.Refresh(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// Logout or shutdown overtook this refresh; the session is gone
		// and the result must not bring it back.
		s.logger.Debug("refresh result discarded, session ended while in flight")
		return nil
	}
	if err != nil {
		s.observe("failure", time.Since(start))
		s.logger.Warn("token refresh failed, clearing session", "error", err)
		s.store.Clear()
		return err
	}

	s.store.Set(result.Token, result.User)
	s.sched.Arm(result.Token)
	s.observe("success", time.Since(start))
	s.logger.Debug("token refreshed", "user_id", result.User.ID)
	return nil
}

func (s *AuthService) observe(result string, elapsed time.Duration) {
	if s.onRefresh != nil {
		s.onRefresh(result, elapsed)
	}
}
