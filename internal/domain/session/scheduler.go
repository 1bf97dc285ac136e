package session

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultRefreshLead is how long before token expiry a refresh is
// proactively triggered.
const DefaultRefreshLead = 5 * time.Minute

// Scheduler owns the single one-shot timer that renews the session ahead
// of expiry. It is either idle (no timer) or armed (one pending timer);
// Arm always cancels any pending timer first, so at most one is ever
// outstanding.
//
// The refresh callback itself is responsible for re-arming on success --
// that is what makes renewal perpetual -- and for tearing the session down
// on failure.
type Scheduler struct {
	lead    time.Duration
	refresh func()
	logger  *slog.Logger

	mu    sync.Mutex
	timer *time.Timer

	// Overridable in tests for deterministic scheduling.
	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
}

// NewScheduler creates a Scheduler that invokes refresh when the timer
// fires. A lead of zero or less falls back to DefaultRefreshLead.
func NewScheduler(lead time.Duration, refresh func(), logger *slog.Logger) *Scheduler {
	if lead <= 0 {
		lead = DefaultRefreshLead
	}
	return &Scheduler{
		lead:      lead,
		refresh:   refresh,
		logger:    logger,
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// Arm schedules a refresh for the given token and reports whether a timer
// was armed. Any previously armed timer is cancelled first.
//
//   - Unknown expiry (malformed token, no exp claim): stay idle. Nothing
//     can be scheduled against an unknown instant.
//   - Already expired: stay idle. The caller handles expired tokens via
//     the immediate-refresh path in CheckAuth.
//   - Inside the lead window but not expired: fire immediately.
//   - Otherwise: fire at expiry minus lead.
func (s *Scheduler) Arm(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	expiry, ok := ExpiryOf(token)
	if !ok {
		s.logger.Debug("token has no readable expiry, refresh not scheduled")
		return false
	}

	now := s.now()
	if !expiry.After(now) {
		s.logger.Debug("token already expired, refresh not scheduled",
			"expired_at", expiry)
		return false
	}

	delay := expiry.Sub(now) - s.lead
	if delay < 0 {
		delay = 0
	}
	s.timer = s.afterFunc(delay, s.fire)
	s.logger.Debug("refresh scheduled", "in", delay, "token_expires_at", expiry)
	return true
}

// Cancel stops any pending timer. Called before every new Arm and on
// logout; a fired or never-armed scheduler is a no-op.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Armed reports whether a timer is currently pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// fire runs on the timer goroutine: transition to idle, then refresh.
// The scheduler is idle for the duration of the refresh call; a fresh Arm
// happens inside the refresh success path.
func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()
	s.refresh()
}

// stopLocked stops and drops the pending timer. Caller must hold s.mu.
func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
