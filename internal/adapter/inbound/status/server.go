package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lurekit/lurekit/internal/domain/session"
)

// Server serves /healthz and /metrics for a long-running agent.
// It is meant for a localhost listener; there is no auth on it.
type Server struct {
	addr   string
	store  *session.Store
	logger *slog.Logger
	server *http.Server
}

// NewServer creates a status server that reports on the given session
// store and exposes the registry's metrics.
func NewServer(addr string, reg *prometheus.Registry, store *session.Store, logger *slog.Logger) *Server {
	s := &Server{
		addr:   addr,
		store:  store,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry: reg,
	}))

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Start runs the listener. The returned channel yields at most one error
// and is closed when the server stops.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth reports process liveness and whether a session is held.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":        "ok",
		"authenticated": s.store.Get().Authenticated(),
		"time":          time.Now().UTC().Format(time.RFC3339),
	})
}
