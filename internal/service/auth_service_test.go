package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/goleak"

	"github.com/lurekit/lurekit/internal/adapter/outbound/api"
	"github.com/lurekit/lurekit/internal/domain/session"
	"github.com/lurekit/lurekit/internal/port/outbound"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "1", "exp": exp.Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

// memPersister is an in-memory session.TokenPersister.
type memPersister struct {
	mu    sync.Mutex
	token string
}

func (m *memPersister) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memPersister) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memPersister) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// fakeAPI is an in-memory outbound.AuthAPI that records the order of
// calls and delegates to programmable functions.
type fakeAPI struct {
	mu         sync.Mutex
	calls      []string
	loginFn    func(email, password, code string) (*outbound.AuthResult, error)
	registerFn func(email, password, name string) (*outbound.AuthResult, error)
	refreshFn  func(token string) (*outbound.AuthResult, error)
	meFn       func(token string) (*session.User, error)
	logoutFn   func(token string) error
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeAPI) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAPI) count(name string) int {
	n := 0
	for _, c := range f.callList() {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) Login(_ context.Context, email, password, code string) (*outbound.AuthResult, error) {
	f.record("login")
	if f.loginFn == nil {
		return nil, errors.New("unexpected login call")
	}
	return f.loginFn(email, password, code)
}

func (f *fakeAPI) Register(_ context.Context, email, password, name string) (*outbound.AuthResult, error) {
	f.record("register")
	if f.registerFn == nil {
		return nil, errors.New("unexpected register call")
	}
	return f.registerFn(email, password, name)
}

func (f *fakeAPI) Refresh(_ context.Context, token string) (*outbound.AuthResult, error) {
	f.record("refresh")
	if f.refreshFn == nil {
		return nil, errors.New("unexpected refresh call")
	}
	return f.refreshFn(token)
}

func (f *fakeAPI) Me(_ context.Context, token string) (*session.User, error) {
	f.record("me")
	if f.meFn == nil {
		return nil, errors.New("unexpected me call")
	}
	return f.meFn(token)
}

func (f *fakeAPI) Logout(_ context.Context, token string) error {
	f.record("logout")
	if f.logoutFn == nil {
		return nil
	}
	return f.logoutFn(token)
}

func newTestService(t *testing.T, fake *fakeAPI, persisted string) (*AuthService, *session.Store) {
	t.Helper()
	store := session.NewStore(&memPersister{token: persisted}, discardLogger())
	if err := store.Seed(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	svc := NewAuthService(fake, store, 5*time.Minute, discardLogger())
	t.Cleanup(func() { svc.sched.Cancel() })
	return svc, store
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestLoginEstablishesSession(t *testing.T) {
	token := mintToken(t, time.Now().Add(30*time.Minute))
	fake := &fakeAPI{
		loginFn: func(email, password, code string) (*outbound.AuthResult, error) {
			return &outbound.AuthResult{Token: token, User: &session.User{ID: 7, Email: email}}, nil
		},
	}
	svc, store := newTestService(t, fake, "")

	user, err := svc.Login(context.Background(), "admin@example.com", "pw", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != 7 {
		t.Errorf("unexpected user: %+v", user)
	}

	got := store.Get()
	if got.Token != token || got.User == nil || got.User.ID != 7 {
		t.Errorf("session not established: %+v", got)
	}
	if !svc.sched.Armed() {
		t.Error("expected refresh schedule armed after login")
	}
}

func TestLoginErrorLeavesNoSession(t *testing.T) {
	fake := &fakeAPI{
		loginFn: func(email, password, code string) (*outbound.AuthResult, error) {
			return nil, &api.APIError{Status: 401, Code: api.CodeInvalidCredentials, Message: "nope"}
		},
	}
	svc, store := newTestService(t, fake, "")

	_, err := svc.Login(context.Background(), "a@b.c", "wrong", "")
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected server error to propagate unchanged, got %v", err)
	}
	if store.Get().Authenticated() {
		t.Error("no session may exist after failed login")
	}
	if svc.sched.Armed() {
		t.Error("scheduler must stay idle after failed login")
	}
}

func TestRegisterEstablishesSession(t *testing.T) {
	token := mintToken(t, time.Now().Add(time.Hour))
	fake := &fakeAPI{
		registerFn: func(email, password, name string) (*outbound.AuthResult, error) {
			return &outbound.AuthResult{Token: token, User: &session.User{ID: 3, Email: email, Name: name}}, nil
		},
	}
	svc, store := newTestService(t, fake, "")

	user, err := svc.Register(context.Background(), "new@example.com", "pw", "New Admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "New Admin" {
		t.Errorf("unexpected user: %+v", user)
	}
	if !store.Get().Authenticated() || !svc.sched.Armed() {
		t.Error("expected established session and armed schedule after register")
	}
}

func TestRefreshRejectionFailsClosed(t *testing.T) {
	token := mintToken(t, time.Now().Add(30*time.Minute))
	fake := &fakeAPI{
		refreshFn: func(string) (*outbound.AuthResult, error) {
			return nil, &api.APIError{Status: 401, Code: api.CodeTokenExpired, Message: "revoked"}
		},
	}
	svc, store := newTestService(t, fake, token)

	if err := svc.refreshNow(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	if got := store.Get(); got.Token != "" || got.User != nil {
		t.Errorf("expected empty session after rejected refresh, got %+v", got)
	}
	if svc.sched.Armed() {
		t.Error("no timer may be armed after a failed refresh")
	}
}

func TestCheckAuthValidTokenSkipsRefresh(t *testing.T) {
	token := mintToken(t, time.Now().Add(30*time.Minute))
	fake := &fakeAPI{
		meFn: func(got string) (*session.User, error) {
			if got != token {
				t.Errorf("whoami called with wrong token: %q", got)
			}
			return &session.User{ID: 2, Email: "persisted@example.com"}, nil
		},
	}
	svc, store := newTestService(t, fake, token)

	if err := svc.CheckAuth(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fake.count("refresh") != 0 {
		t.Error("a token outside the lead window must not be refreshed")
	}
	got := store.Get()
	if !got.Authenticated() || got.User.ID != 2 {
		t.Errorf("expected populated session, got %+v", got)
	}
	if !svc.sched.Armed() {
		t.Error("expected schedule armed after CheckAuth")
	}
}

func TestCheckAuthNearExpiryRefreshesFirst(t *testing.T) {
	oldToken := mintToken(t, time.Now().Add(2*time.Minute))
	newToken := mintToken(t, time.Now().Add(time.Hour))
	fake := &fakeAPI{}
	fake.refreshFn = func(got string) (*outbound.AuthResult, error) {
		if got != oldToken {
			t.Errorf("refresh called with wrong token: %q", got)
		}
		return &outbound.AuthResult{Token: newToken, User: &session.User{ID: 1}}, nil
	}
	fake.meFn = func(got string) (*session.User, error) {
		if got != newToken {
			t.Errorf("whoami must use the refreshed token, got %q", got)
		}
		return &session.User{ID: 1, Role: "admin"}, nil
	}
	svc, store := newTestService(t, fake, oldToken)

	if err := svc.CheckAuth(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := fake.callList()
	if len(calls) != 2 || calls[0] != "refresh" || calls[1] != "me" {
		t.Errorf("expected refresh before whoami, got %v", calls)
	}
	if store.Get().Token != newToken {
		t.Error("session should hold the refreshed token")
	}
}

func TestCheckAuthWithoutTokenIsNoop(t *testing.T) {
	fake := &fakeAPI{}
	svc, store := newTestService(t, fake, "")

	if err := svc.CheckAuth(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.callList()) != 0 {
		t.Errorf("no network calls expected, got %v", fake.callList())
	}
	if store.Get().Authenticated() {
		t.Error("expected unauthenticated session")
	}
}

func TestCheckAuthWhoamiFailureRecoversViaRefresh(t *testing.T) {
	oldToken := mintToken(t, time.Now().Add(30*time.Minute))
	newToken := mintToken(t, time.Now().Add(time.Hour))
	fake := &fakeAPI{
		meFn: func(string) (*session.User, error) {
			return nil, &api.APIError{Status: 500, Message: "boom"}
		},
		refreshFn: func(string) (*outbound.AuthResult, error) {
			return &outbound.AuthResult{Token: newToken, User: &session.User{ID: 9}}, nil
		},
	}
	svc, store := newTestService(t, fake, oldToken)

	if err := svc.CheckAuth(context.Background()); err != nil {
		t.Fatalf("expected recovery via refresh, got %v", err)
	}

	got := store.Get()
	if got.Token != newToken || got.User == nil || got.User.ID != 9 {
		t.Errorf("expected refreshed session, got %+v", got)
	}
	if !svc.sched.Armed() {
		t.Error("expected schedule armed after recovery")
	}
}

func TestCheckAuthWhoamiAndRefreshFailure(t *testing.T) {
	token := mintToken(t, time.Now().Add(30*time.Minute))
	fake := &fakeAPI{
		meFn: func(string) (*session.User, error) {
			return nil, errors.New("whoami down")
		},
		refreshFn: func(string) (*outbound.AuthResult, error) {
			return nil, errors.New("refresh down")
		},
	}
	svc, store := newTestService(t, fake, token)

	if err := svc.CheckAuth(context.Background()); err == nil {
		t.Fatal("expected error when both whoami and refresh fail")
	}
	if store.Get().Token != "" {
		t.Error("expected cleared session")
	}
	if svc.sched.Armed() {
		t.Error("expected idle scheduler")
	}
}

func TestScheduledRefreshCycle(t *testing.T) {
	// Token inside the lead window: the timer fires immediately after
	// login, refreshes to newToken, and re-arms for the next cycle.
	oldToken := mintToken(t, time.Now().Add(4*time.Minute))
	newToken := mintToken(t, time.Now().Add(time.Hour))
	fake := &fakeAPI{
		loginFn: func(string, string, string) (*outbound.AuthResult, error) {
			return &outbound.AuthResult{Token: oldToken, User: &session.User{ID: 1}}, nil
		},
		refreshFn: func(string) (*outbound.AuthResult, error) {
			return &outbound.AuthResult{Token: newToken, User: &session.User{ID: 1}}, nil
		},
	}
	svc, store := newTestService(t, fake, "")

	if _, err := svc.Login(context.Background(), "a@b.c", "pw", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eventually(t, 2*time.Second, func() bool {
		return store.Get().Token == newToken
	}, "scheduled refresh did not replace the session")

	got := store.Get()
	if got.User == nil || got.User.ID != 1 {
		t.Errorf("expected user carried through refresh, got %+v", got.User)
	}
	eventually(t, 2*time.Second, svc.sched.Armed,
		"expected a new timer armed for the refreshed token")
}

func TestLogoutCancelsScheduledRefresh(t *testing.T) {
	// Timer due 100ms after login; logout must stop it from ever firing.
	token := mintToken(t, time.Now().Add(5*time.Minute+100*time.Millisecond))
	fake := &fakeAPI{
		loginFn: func(string, string, string) (*outbound.AuthResult, error) {
			return &outbound.AuthResult{Token: token, User: &session.User{ID: 1}}, nil
		},
		logoutFn: func(string) error {
			return errors.New("server unreachable") // swallowed
		},
	}
	svc, store := newTestService(t, fake, "")

	if _, err := svc.Login(context.Background(), "a@b.c", "pw", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Logout(context.Background())

	if store.Get().Authenticated() {
		t.Error("expected empty session after logout")
	}
	time.Sleep(300 * time.Millisecond)
	if n := fake.count("refresh"); n != 0 {
		t.Errorf("cancelled timer still refreshed %d times", n)
	}
}

func TestSetUserDataKeepsSchedule(t *testing.T) {
	token := mintToken(t, time.Now().Add(time.Hour))
	fake := &fakeAPI{
		loginFn: func(string, string, string) (*outbound.AuthResult, error) {
			return &outbound.AuthResult{Token: token, User: &session.User{ID: 1}}, nil
		},
	}
	svc, store := newTestService(t, fake, "")
	if _, err := svc.Login(context.Background(), "a@b.c", "pw", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.SetUserData(&session.User{ID: 1, TwoFactorEnabled: true})

	got := store.Get()
	if got.Token != token {
		t.Error("SetUserData must not touch the token")
	}
	if !got.User.TwoFactorEnabled {
		t.Error("expected patched user")
	}
	if !svc.sched.Armed() {
		t.Error("SetUserData must not disturb the refresh schedule")
	}
}

func TestRefreshInFlightGuard(t *testing.T) {
	token := mintToken(t, time.Now().Add(30*time.Minute))
	block := make(chan struct{})
	fake := &fakeAPI{
		refreshFn: func(string) (*outbound.AuthResult, error) {
			<-block
			return &outbound.AuthResult{Token: token, User: &session.User{ID: 1}}, nil
		},
	}
	svc, _ := newTestService(t, fake, token)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.refreshNow(context.Background())
	}()

	eventually(t, time.Second, func() bool { return fake.count("refresh") == 1 },
		"first refresh never started")

	// Second caller loses the in-flight race and is a no-op.
	if err := svc.refreshNow(context.Background()); err != nil {
		t.Fatalf("coalesced refresh returned error: %v", err)
	}
	close(block)
	<-done

	if n := fake.count("refresh"); n != 1 {
		t.Errorf("expected exactly 1 network refresh, got %d", n)
	}
}

func TestLogoutDiscardsInFlightRefresh(t *testing.T) {
	oldToken := mintToken(t, time.Now().Add(30*time.Minute))
	newToken := mintToken(t, time.Now().Add(time.Hour))
	block := make(chan struct{})
	fake := &fakeAPI{
		refreshFn: func(string) (*outbound.AuthResult, error) {
			<-block
			return &outbound.AuthResult{Token: newToken, User: &session.User{ID: 1}}, nil
		},
	}
	svc, store := newTestService(t, fake, oldToken)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.refreshNow(context.Background())
	}()
	eventually(t, time.Second, func() bool { return fake.count("refresh") == 1 },
		"refresh never started")

	// Logout while the refresh is still on the wire. When the response
	// arrives it must be dropped, not re-establish the session.
	svc.Logout(context.Background())
	close(block)
	<-done

	if got := store.Get(); got.Authenticated() || got.Token != "" {
		t.Errorf("session resurrected after logout: token=%q", got.Token)
	}
	if svc.sched.Armed() {
		t.Error("scheduler re-armed after logout")
	}
}

// TestCheckAuthOverHTTP runs the real HTTP client against a mock server:
// a persisted token 2 minutes from expiry is exchanged before whoami.
func TestCheckAuthOverHTTP(t *testing.T) {
	oldToken := mintToken(t, time.Now().Add(2*time.Minute))
	newToken := mintToken(t, time.Now().Add(time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/refresh":
			if r.Header.Get("Authorization") != "Bearer "+oldToken {
				t.Errorf("refresh with wrong credential: %s", r.Header.Get("Authorization"))
			}
			json.NewEncoder(w).Encode(map[string]any{
				"token": newToken,
				"user":  session.User{ID: 5, Email: "ops@example.com"},
			})
		case "/auth/me":
			if r.Header.Get("Authorization") != "Bearer "+newToken {
				t.Errorf("whoami with stale credential: %s", r.Header.Get("Authorization"))
			}
			json.NewEncoder(w).Encode(session.User{ID: 5, Email: "ops@example.com", Role: "admin"})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := api.NewClient(api.WithBaseURL(server.URL), api.WithLogger(discardLogger()))
	store := session.NewStore(&memPersister{token: oldToken}, discardLogger())
	if err := store.Seed(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	svc := NewAuthService(client, store, 5*time.Minute, discardLogger())
	t.Cleanup(func() { svc.Logout(context.Background()) })

	if err := svc.CheckAuth(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := store.Get()
	if got.Token != newToken {
		t.Error("expected refreshed token in session")
	}
	if got.User == nil || got.User.Role != "admin" {
		t.Errorf("expected whoami profile, got %+v", got.User)
	}
}
