package status

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"

	"github.com/lurekit/lurekit/internal/domain/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memPersister struct {
	token string
}

func (p *memPersister) Load() (string, error) { return p.token, nil }
func (p *memPersister) Save(t string) error   { p.token = t; return nil }
func (p *memPersister) Clear() error          { p.token = ""; return nil }

func newTestServer(t *testing.T) (*Server, *session.Store, *prometheus.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewStore(&memPersister{}, logger)
	reg := prometheus.NewRegistry()
	return NewServer("127.0.0.1:0", reg, store, logger), store, reg
}

func TestHealthzUnauthenticated(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status        string `json:"status"`
		Authenticated bool   `json:"authenticated"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Authenticated {
		t.Error("authenticated = true for empty store")
	}
}

func TestHealthzAuthenticated(t *testing.T) {
	srv, store, _ := newTestServer(t)
	store.Set("tok", &session.User{ID: 1, Email: "admin@example.com"})

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Authenticated {
		t.Error("authenticated = false after Set")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, store, reg := newTestServer(t)

	m := NewMetrics(reg)
	store.Subscribe(m.TrackSession)
	m.ObserveRefresh("success", 20*time.Millisecond)
	store.Set("tok", &session.User{ID: 1})

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	out := rec.Body.String()
	if !strings.Contains(out, `lurekit_refresh_total{result="success"} 1`) {
		t.Errorf("refresh counter missing from exposition:\n%s", out)
	}
	if !strings.Contains(out, "lurekit_session_authenticated 1") {
		t.Errorf("session gauge missing from exposition:\n%s", out)
	}
}

func TestStartAndShutdown(t *testing.T) {
	srv, _, _ := newTestServer(t)

	errCh := srv.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err, ok := <-errCh; ok && err != nil {
		t.Fatalf("server error: %v", err)
	}
}
